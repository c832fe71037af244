//go:build unicorn

package sandbox

import (
	"errors"
	"fmt"

	"github.com/colorfulnotion/rv32emu/log"
	"github.com/colorfulnotion/rv32emu/rv32"
	"github.com/colorfulnotion/rv32emu/rv32/isa"
	"github.com/colorfulnotion/rv32emu/rv32/rvtypes"
	uc "github.com/unicorn-engine/unicorn/bindings/go/unicorn"
)

const pageSize = 0x1000

var ErrReferenceStopped = errors.New("reference cpu stopped before returning")

// Snapshot is the architectural state after a run.
type Snapshot struct {
	Regs [rvtypes.NumRegs]uint32
	PC   uint32
	RAM  []byte
}

// Reference runs images on Unicorn in RV32 mode.
type Reference struct {
	mu        uc.Unicorn
	img       *rv32.Image
	start     uint64
	end       uint64
	interrupt *uint32
}

// NewReference maps img into a fresh Unicorn instance. Code and RAM share
// one page-aligned mapping since Unicorn cannot split a page between
// protections.
func NewReference(img *rv32.Image) (*Reference, error) {
	if err := img.Validate(); err != nil {
		return nil, err
	}
	mu, err := uc.NewUnicorn(uc.ARCH_RISCV, uc.MODE_RISCV32)
	if err != nil {
		return nil, fmt.Errorf("create unicorn: %w", err)
	}
	lo := uint64(min(img.CodeBase, img.RAMBase)) &^ (pageSize - 1)
	hi := (max(img.CodeEnd(), img.RAMEnd()) + pageSize - 1) &^ (pageSize - 1)
	if err := mu.MemMap(lo, hi-lo); err != nil {
		mu.Close()
		return nil, fmt.Errorf("map guest memory: %w", err)
	}
	if err := mu.MemWrite(uint64(img.CodeBase), img.Code); err != nil {
		mu.Close()
		return nil, fmt.Errorf("write code: %w", err)
	}
	if len(img.RAM) > 0 {
		if err := mu.MemWrite(uint64(img.RAMBase), img.RAM); err != nil {
			mu.Close()
			return nil, fmt.Errorf("write ram: %w", err)
		}
	}
	r := &Reference{mu: mu, img: img, start: lo, end: hi}
	if _, err := mu.HookAdd(uc.HOOK_INTR, func(mu uc.Unicorn, intno uint32) {
		n := intno
		r.interrupt = &n
		mu.Stop()
	}, 1, 0); err != nil {
		mu.Close()
		return nil, fmt.Errorf("hook interrupts: %w", err)
	}
	return r, nil
}

func (r *Reference) Close() error {
	return r.mu.Close()
}

// Call runs from entry with the given register presets until the
// function returns to the sentinel, executing at most maxSteps
// instructions.
func (r *Reference) Call(entry uint32, regs map[uint8]uint32, maxSteps uint64) (*Snapshot, error) {
	for i := uint8(1); i < rvtypes.NumRegs; i++ {
		if err := r.mu.RegWrite(uc.RISCV_REG_X0+int(i), uint64(regs[i])); err != nil {
			return nil, err
		}
	}
	r.interrupt = nil
	err := r.mu.StartWithOptions(uint64(entry), uint64(rvtypes.ReturnSentinel), &uc.UcOptions{Count: maxSteps})
	if err != nil {
		return nil, fmt.Errorf("reference run: %w", err)
	}
	snap, err := r.snapshot()
	if err != nil {
		return nil, err
	}
	if r.interrupt != nil || snap.PC != rvtypes.ReturnSentinel {
		return snap, fmt.Errorf("pc=0x%08x: %w", snap.PC, ErrReferenceStopped)
	}
	return snap, nil
}

func (r *Reference) snapshot() (*Snapshot, error) {
	s := &Snapshot{}
	for i := 1; i < rvtypes.NumRegs; i++ {
		v, err := r.mu.RegRead(uc.RISCV_REG_X0 + i)
		if err != nil {
			return nil, err
		}
		s.Regs[i] = uint32(v)
	}
	pc, err := r.mu.RegRead(uc.RISCV_REG_PC)
	if err != nil {
		return nil, err
	}
	s.PC = uint32(pc)
	ram, err := r.mu.MemRead(uint64(r.img.RAMBase), uint64(r.img.RAMSize))
	if err != nil {
		return nil, err
	}
	s.RAM = ram
	return s, nil
}

// Mismatch is the first difference found by Compare.
type Mismatch struct {
	What      string
	Emulator  uint32
	Reference uint32
}

func (m *Mismatch) Error() string {
	return fmt.Sprintf("%s: emulator=0x%08x reference=0x%08x", m.What, m.Emulator, m.Reference)
}

// Compare runs img from its entry on both the interpreter and Unicorn with
// the same starting registers and reports the first register or RAM
// difference. A nil Mismatch means the runs agree.
func Compare(img *rv32.Image, ext isa.Extensions, maxSteps uint64) (*Mismatch, error) {
	st, err := rv32.NewState(img, rv32.Config{Extensions: ext, Budget: maxSteps})
	if err != nil {
		return nil, err
	}
	res := st.RunUntilReturn(rvtypes.ReturnSentinel)
	if res.Kind != rv32.StepHalted || res.Halt != rv32.HaltReturned {
		return nil, fmt.Errorf("emulator stopped: %s", res)
	}

	ref, err := NewReference(img)
	if err != nil {
		return nil, err
	}
	defer ref.Close()
	snap, err := ref.Call(img.Entry, map[uint8]uint32{
		rvtypes.RegSP: st.StackTop(),
		rvtypes.RegRA: rvtypes.ReturnSentinel,
	}, maxSteps)
	if err != nil {
		return nil, err
	}

	for i := uint8(1); i < rvtypes.NumRegs; i++ {
		if got, want := st.Regs.Read(i), snap.Regs[i]; got != want {
			return &Mismatch{What: rvtypes.RegName(int(i)), Emulator: got, Reference: want}, nil
		}
	}
	ram := st.Mem.RAM()
	for off := 0; off+4 <= len(ram); off += 4 {
		got := uint32(ram[off]) | uint32(ram[off+1])<<8 | uint32(ram[off+2])<<16 | uint32(ram[off+3])<<24
		want := uint32(snap.RAM[off]) | uint32(snap.RAM[off+1])<<8 | uint32(snap.RAM[off+2])<<16 | uint32(snap.RAM[off+3])<<24
		if got != want {
			return &Mismatch{What: fmt.Sprintf("ram[0x%08x]", img.RAMBase+uint32(off)), Emulator: got, Reference: want}, nil
		}
	}
	log.Debug(log.RV32Module, "reference agrees", "retired", st.Retired())
	return nil, nil
}
