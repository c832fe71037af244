package rverrors

import (
	"errors"
	"strings"
)

// Execution (E) Errors
var (
	ErrDecode                 = errors.New("E1|DecodeError: Bit pattern is not a recognized instruction encoding.")
	ErrUnsupportedInstruction = errors.New("E2|UnsupportedInstruction: Valid encoding whose extension is not enabled.")
	ErrMemoryFault            = errors.New("E3|MemoryFault: Access outside the image or to the wrong region.")
	ErrBudgetExceeded         = errors.New("E4|BudgetExceeded: Instruction budget exhausted before completion.")
	ErrBreakpoint             = errors.New("E10|Breakpoint: Guest executed ebreak.")
	ErrMisaligned             = errors.New("E11|Misaligned: Instruction or atomic address violates alignment.")
)

// Host Interface (H) Errors
var (
	ErrNotImplemented     = errors.New("H1|NotImplemented: Syscall has no host implementation.")
	ErrBadSyscallArgument = errors.New("H2|BadSyscallArgument: Syscall argument references invalid guest memory.")
	ErrExited             = errors.New("H3|Exited: Guest requested exit.")
	ErrSyscallPending     = errors.New("H4|SyscallPending: Previous syscall has not been answered.")
)

// Invocation (I) Errors
var (
	ErrInvalidImage = errors.New("I1|InvalidImage: Image regions are empty, overlapping or misplaced.")
	ErrAbiOverflow  = errors.New("I2|AbiOverflow: Arguments or results do not fit in the stack region.")
	ErrAbiMismatch  = errors.New("I3|AbiMismatch: Value kind does not match the requested signature.")
	ErrHalted       = errors.New("I4|Halted: Execution state is already halted.")
)

var catalog = []error{
	ErrDecode, ErrUnsupportedInstruction, ErrMemoryFault, ErrBudgetExceeded, ErrBreakpoint, ErrMisaligned,
	ErrNotImplemented, ErrBadSyscallArgument, ErrExited, ErrSyscallPending,
	ErrInvalidImage, ErrAbiOverflow, ErrAbiMismatch, ErrHalted,
}

// Root returns the catalog error wrapped by err, or nil.
func Root(err error) error {
	if err == nil {
		return nil
	}
	for _, c := range catalog {
		if errors.Is(err, c) {
			return c
		}
	}
	return nil
}

// GetErrorName extracts the error name from the error message.
func GetErrorName(err error) string {
	if err == nil {
		return "No Error"
	}
	if c := Root(err); c != nil {
		err = c
	}
	errStr := err.Error()
	if !strings.Contains(errStr, "|") || !strings.Contains(errStr, ":") {
		return errStr
	}
	parts := strings.SplitN(errStr, "|", 2)
	nameParts := strings.SplitN(parts[1], ":", 2)
	return strings.TrimSpace(nameParts[0])
}

func GetErrorNames(errs []error) []string {
	errStrs := make([]string, len(errs))
	for i, err := range errs {
		errStrs[i] = GetErrorName(err)
	}
	return errStrs
}

// GetErrorCode extracts the error code from the error message.
func GetErrorCode(err error) string {
	if err == nil {
		return ""
	}
	if c := Root(err); c != nil {
		err = c
	}
	errStr := err.Error()
	if !strings.Contains(errStr, "|") {
		return ""
	}
	parts := strings.SplitN(errStr, "|", 2)
	return strings.TrimSpace(parts[0])
}

// GetErrorCodeWithName returns the error code and name in the format "Code_ErrorName".
func GetErrorCodeWithName(err error) string {
	code := GetErrorCode(err)
	name := GetErrorName(err)
	if code == "" || name == "" {
		return ""
	}
	return code + "_" + name
}

// GetErrorDesc extracts the error description from the error message.
func GetErrorDesc(err error) string {
	if err == nil {
		return ""
	}
	if c := Root(err); c != nil {
		err = c
	}
	parts := strings.SplitN(err.Error(), ":", 2)
	if len(parts) < 2 {
		return "DESC NOT SET"
	}
	return strings.TrimSpace(parts[1])
}
