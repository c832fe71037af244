package rv32

import (
	"fmt"

	"github.com/colorfulnotion/rv32emu/rv32/rvtypes"
	"github.com/colorfulnotion/rv32emu/rverrors"
)

// StepKind is the variant of a StepResult.
type StepKind int

const (
	StepContinue StepKind = rvtypes.CONTINUE
	StepTrap     StepKind = rvtypes.TRAP
	StepSyscall  StepKind = rvtypes.HOST
	StepHalted   StepKind = rvtypes.HALT
)

func (k StepKind) String() string {
	switch k {
	case StepContinue:
		return "continue"
	case StepTrap:
		return "trap"
	case StepSyscall:
		return "syscall"
	case StepHalted:
		return "halted"
	}
	return fmt.Sprintf("step(%d)", int(k))
}

type TrapReason uint8

const (
	TrapIllegalInstruction TrapReason = iota
	TrapMemoryFault
	TrapBreakpoint
	TrapInstructionMisaligned
)

func (r TrapReason) String() string {
	switch r {
	case TrapIllegalInstruction:
		return "illegal instruction"
	case TrapMemoryFault:
		return "memory fault"
	case TrapBreakpoint:
		return "breakpoint"
	case TrapInstructionMisaligned:
		return "instruction misaligned"
	}
	return "trap"
}

// Trap is a typed interruption at PC. Address is the faulting data or
// target address where one exists. Trap is an error so drivers can return
// it directly; Unwrap exposes the cause.
type Trap struct {
	Reason  TrapReason
	PC      uint32
	Address uint32
	Err     error
}

func (t *Trap) Error() string {
	switch t.Reason {
	case TrapMemoryFault, TrapInstructionMisaligned:
		return fmt.Sprintf("trap: %s at pc=0x%08x addr=0x%08x: %v", t.Reason, t.PC, t.Address, t.Err)
	}
	return fmt.Sprintf("trap: %s at pc=0x%08x: %v", t.Reason, t.PC, t.Err)
}

func (t *Trap) Unwrap() error {
	return t.Err
}

type HaltReason uint8

const (
	HaltReturned HaltReason = iota
	HaltBudgetExceeded
	HaltExited
)

func (r HaltReason) String() string {
	switch r {
	case HaltReturned:
		return "returned"
	case HaltBudgetExceeded:
		return "budget exceeded"
	case HaltExited:
		return "exited"
	}
	return "halted"
}

// StepResult is the outcome of Step or of a run loop. Exactly one of Trap
// and Syscall is set for the matching kinds; Halt and ExitCode apply to
// StepHalted. Values holds the decoded results once Driver.Call returns;
// a bare RunUntilReturn has no result kinds to decode and leaves it nil.
type StepResult struct {
	Kind     StepKind
	Trap     *Trap
	Syscall  *SyscallRequest
	Halt     HaltReason
	ExitCode int32
	Values   []Value
}

func (r StepResult) String() string {
	switch r.Kind {
	case StepTrap:
		return r.Trap.Error()
	case StepSyscall:
		return fmt.Sprintf("syscall %s", r.Syscall)
	case StepHalted:
		if r.Halt == HaltExited {
			return fmt.Sprintf("halted: exited(%d)", r.ExitCode)
		}
		return "halted: " + r.Halt.String()
	}
	return r.Kind.String()
}

// Err converts a terminal result into the error Driver.Call would return.
// Continue, Syscall and a Returned halt yield nil.
func (r StepResult) Err() error {
	switch r.Kind {
	case StepTrap:
		return r.Trap
	case StepHalted:
		switch r.Halt {
		case HaltBudgetExceeded:
			return fmt.Errorf("step: %w", rverrors.ErrBudgetExceeded)
		case HaltExited:
			return &ExitError{Code: r.ExitCode}
		}
	}
	return nil
}

func continueResult() StepResult {
	return StepResult{Kind: StepContinue}
}

func trapResult(reason TrapReason, pc, addr uint32, err error) StepResult {
	return StepResult{Kind: StepTrap, Trap: &Trap{Reason: reason, PC: pc, Address: addr, Err: err}}
}
