package rv32

import (
	"fmt"

	"github.com/colorfulnotion/rv32emu/log"
	"github.com/colorfulnotion/rv32emu/rv32/isa"
	"github.com/colorfulnotion/rv32emu/rverrors"
)

// execute runs one decoded instruction at pc. On Continue and Syscall the
// pc has been advanced or redirected; on Trap nothing was changed.
func (s *State) execute(pc uint32, ins isa.Instruction) StepResult {
	if need := ins.Requires(); !s.ext.Has(need) {
		return trapResult(TrapIllegalInstruction, pc, pc, &UnsupportedInstructionError{Instruction: ins, Missing: need &^ s.ext})
	}
	if log.IsModuleEnabled(log.RV32Module) {
		log.Trace(log.RV32Module, "exec", "pc", fmt.Sprintf("0x%08x", pc), "ins", ins.String())
	}

	r := &s.Regs
	rs1 := r.Read(ins.Rs1)
	rs2 := r.Read(ins.Rs2)
	imm := uint32(ins.Imm)
	next := pc + uint32(ins.Width)

	switch ins.Op {
	case isa.LUI:
		r.Write(ins.Rd, imm)
	case isa.AUIPC:
		r.Write(ins.Rd, pc+imm)

	case isa.JAL, isa.JALR:
		target := pc + imm
		if ins.Op == isa.JALR {
			target = (rs1 + imm) &^ 1
		}
		if res, ok := s.checkTarget(pc, target); !ok {
			return res
		}
		r.Write(ins.Rd, next)
		next = target

	case isa.BEQ, isa.BNE, isa.BLT, isa.BGE, isa.BLTU, isa.BGEU:
		if branchTaken(ins.Op, rs1, rs2) {
			target := pc + imm
			if res, ok := s.checkTarget(pc, target); !ok {
				return res
			}
			next = target
		}

	case isa.LB, isa.LH, isa.LW, isa.LBU, isa.LHU:
		addr := rs1 + imm
		v, err := s.load(ins.Op, addr)
		if err != nil {
			return trapResult(TrapMemoryFault, pc, addr, err)
		}
		r.Write(ins.Rd, v)

	case isa.SB, isa.SH, isa.SW:
		addr := rs1 + imm
		if err := s.store(ins.Op, addr, rs2); err != nil {
			return trapResult(TrapMemoryFault, pc, addr, err)
		}

	case isa.ADDI, isa.SLTI, isa.SLTIU, isa.XORI, isa.ORI, isa.ANDI, isa.SLLI, isa.SRLI, isa.SRAI:
		r.Write(ins.Rd, aluImm(ins.Op, rs1, imm))

	case isa.ADD, isa.SUB, isa.SLL, isa.SLT, isa.SLTU, isa.XOR, isa.SRL, isa.SRA, isa.OR, isa.AND:
		r.Write(ins.Rd, aluReg(ins.Op, rs1, rs2))

	case isa.MUL, isa.MULH, isa.MULHSU, isa.MULHU, isa.DIV, isa.DIVU, isa.REM, isa.REMU:
		r.Write(ins.Rd, mulDiv(ins.Op, rs1, rs2))

	case isa.FENCE, isa.FENCE_I:
		// single hart, no caches

	case isa.ECALL:
		r.PC = next
		return StepResult{Kind: StepSyscall, Syscall: s.raiseSyscall(pc)}

	case isa.EBREAK:
		return trapResult(TrapBreakpoint, pc, pc, rverrors.ErrBreakpoint)

	case isa.LR_W, isa.SC_W, isa.AMOSWAP_W, isa.AMOADD_W, isa.AMOXOR_W, isa.AMOAND_W,
		isa.AMOOR_W, isa.AMOMIN_W, isa.AMOMAX_W, isa.AMOMINU_W, isa.AMOMAXU_W:
		if err := s.atomic(ins, rs1, rs2); err != nil {
			return trapResult(TrapMemoryFault, pc, rs1, err)
		}

	case isa.CSRRW, isa.CSRRS, isa.CSRRC, isa.CSRRWI, isa.CSRRSI, isa.CSRRCI:
		v, err := s.readCSR(ins)
		if err != nil {
			return trapResult(TrapIllegalInstruction, pc, pc, err)
		}
		r.Write(ins.Rd, v)

	default:
		// FLOAT and anything decoded but not executed here
		return trapResult(TrapIllegalInstruction, pc, pc, &UnsupportedInstructionError{Instruction: ins})
	}

	r.PC = next
	return continueResult()
}

// checkTarget traps when a control transfer lands off the instruction
// alignment: 2 bytes with C enabled, 4 without.
func (s *State) checkTarget(pc, target uint32) (StepResult, bool) {
	align := uint32(4)
	if s.ext.Has(isa.ExtC) {
		align = 2
	}
	if target&(align-1) != 0 {
		err := fmt.Errorf("jump target 0x%08x not %d-byte aligned: %w", target, align, rverrors.ErrMisaligned)
		return trapResult(TrapInstructionMisaligned, pc, target, err), false
	}
	return StepResult{}, true
}

func branchTaken(op isa.Op, a, b uint32) bool {
	switch op {
	case isa.BEQ:
		return a == b
	case isa.BNE:
		return a != b
	case isa.BLT:
		return int32(a) < int32(b)
	case isa.BGE:
		return int32(a) >= int32(b)
	case isa.BLTU:
		return a < b
	case isa.BGEU:
		return a >= b
	}
	return false
}

func (s *State) load(op isa.Op, addr uint32) (uint32, error) {
	switch op {
	case isa.LB:
		v, err := s.Mem.Load8(addr)
		return uint32(int32(int8(v))), err
	case isa.LBU:
		return s.Mem.Load8(addr)
	case isa.LH:
		v, err := s.Mem.Load16(addr)
		return uint32(int32(int16(v))), err
	case isa.LHU:
		return s.Mem.Load16(addr)
	default:
		return s.Mem.Load32(addr)
	}
}

func (s *State) store(op isa.Op, addr, v uint32) error {
	var err error
	size := uint32(4)
	switch op {
	case isa.SB:
		size, err = 1, s.Mem.Store8(addr, v)
	case isa.SH:
		size, err = 2, s.Mem.Store16(addr, v)
	default:
		err = s.Mem.Store32(addr, v)
	}
	if err != nil {
		return err
	}
	s.noteStore(addr, size)
	return nil
}

func (s *State) noteStore(addr, size uint32) {
	s.lastStore, s.lastStoreSz = addr, size
	if s.reserved && addr < s.reservation+4 && s.reservation < addr+size {
		s.reserved = false
	}
}
