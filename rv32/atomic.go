package rv32

import (
	"github.com/colorfulnotion/rv32emu/rv32/isa"
)

// atomic executes LR.W, SC.W and the AMO*.W read-modify-write ops. There
// is one hart, so aq/rl ordering bits have no effect. The address must be
// word aligned.
func (s *State) atomic(ins isa.Instruction, addr, src uint32) error {
	if addr&3 != 0 {
		acc := AccessStore
		if ins.Op == isa.LR_W {
			acc = AccessLoad
		}
		return &MemoryFault{Address: addr, Size: 4, Access: acc, Kind: FaultMisaligned}
	}

	switch ins.Op {
	case isa.LR_W:
		v, err := s.Mem.Load32(addr)
		if err != nil {
			return err
		}
		s.Regs.Write(ins.Rd, v)
		s.reserved, s.reservation = true, addr
		return nil

	case isa.SC_W:
		if !s.reserved || s.reservation != addr {
			s.reserved = false
			s.Regs.Write(ins.Rd, 1)
			return nil
		}
		if err := s.Mem.Store32(addr, src); err != nil {
			return err
		}
		s.noteStore(addr, 4)
		s.reserved = false
		s.Regs.Write(ins.Rd, 0)
		return nil
	}

	old, err := s.Mem.Load32(addr)
	if err != nil {
		return err
	}
	if err := s.Mem.Store32(addr, amoApply(ins.Op, old, src)); err != nil {
		return err
	}
	s.noteStore(addr, 4)
	s.Regs.Write(ins.Rd, old)
	return nil
}

func amoApply(op isa.Op, old, src uint32) uint32 {
	switch op {
	case isa.AMOSWAP_W:
		return src
	case isa.AMOADD_W:
		return old + src
	case isa.AMOXOR_W:
		return old ^ src
	case isa.AMOAND_W:
		return old & src
	case isa.AMOOR_W:
		return old | src
	case isa.AMOMIN_W:
		if int32(src) < int32(old) {
			return src
		}
		return old
	case isa.AMOMAX_W:
		if int32(src) > int32(old) {
			return src
		}
		return old
	case isa.AMOMINU_W:
		if src < old {
			return src
		}
		return old
	case isa.AMOMAXU_W:
		if src > old {
			return src
		}
		return old
	}
	return old
}
