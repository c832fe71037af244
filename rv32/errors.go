package rv32

import (
	"fmt"

	"github.com/colorfulnotion/rv32emu/rv32/isa"
	"github.com/colorfulnotion/rv32emu/rverrors"
)

// UnsupportedInstructionError is a valid encoding whose extension is not
// enabled, or which the emulator does not execute (floating point).
type UnsupportedInstructionError struct {
	Instruction isa.Instruction
	Missing     isa.Extensions
}

func (e *UnsupportedInstructionError) Error() string {
	if e.Missing == 0 {
		return fmt.Sprintf("unsupported instruction %s (0x%08x)", e.Instruction.Op, e.Instruction.Raw)
	}
	return fmt.Sprintf("unsupported instruction %s (0x%08x): needs %s", e.Instruction.Op, e.Instruction.Raw, missingNames(e.Missing))
}

func (e *UnsupportedInstructionError) Unwrap() error {
	return rverrors.ErrUnsupportedInstruction
}

func missingNames(ext isa.Extensions) string {
	names := []struct {
		e isa.Extensions
		n string
	}{{isa.ExtM, "M"}, {isa.ExtA, "A"}, {isa.ExtF, "F"}, {isa.ExtD, "D"}, {isa.ExtC, "C"}, {isa.ExtZicsr, "Zicsr"}}
	out := ""
	for _, n := range names {
		if ext.Has(n.e) {
			if out != "" {
				out += "+"
			}
			out += n.n
		}
	}
	return out
}

// HaltError is returned by Driver.Call when execution halts without
// reaching the return sentinel.
type HaltError struct {
	Reason  HaltReason
	Retired uint64
	PC      uint32
}

func (e *HaltError) Error() string {
	return fmt.Sprintf("halted (%s) at pc=0x%08x after %d instructions", e.Reason, e.PC, e.Retired)
}

func (e *HaltError) Unwrap() error {
	if e.Reason == HaltBudgetExceeded {
		return rverrors.ErrBudgetExceeded
	}
	return rverrors.ErrHalted
}

// ExitError reports a guest exit syscall during an invocation.
type ExitError struct {
	Code int32
	PC   uint32
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("guest exited with code %d at pc=0x%08x", e.Code, e.PC)
}

func (e *ExitError) Unwrap() error {
	return rverrors.ErrExited
}
