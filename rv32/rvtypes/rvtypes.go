// Package rvtypes consolidates shared constants for the RV32 emulator.
package rvtypes

import "fmt"

// ============================================================================
// Register indices (RISC-V integer calling convention)
// ============================================================================

const (
	RegZero = 0
	RegRA   = 1
	RegSP   = 2
	RegGP   = 3
	RegTP   = 4
	RegT0   = 5
	RegT1   = 6
	RegT2   = 7
	RegS0   = 8
	RegS1   = 9
	RegA0   = 10
	RegA1   = 11
	RegA2   = 12
	RegA3   = 13
	RegA4   = 14
	RegA5   = 15
	RegA6   = 16
	RegA7   = 17
	RegS2   = 18
	RegT3   = 28
	RegT4   = 29
	RegT5   = 30
	RegT6   = 31

	NumRegs = 32

	// NumArgRegs is the count of argument registers a0-a7.
	NumArgRegs = 8
	// NumRetRegs is the count of return registers a0-a1.
	NumRetRegs = 2

	WordSize = 4
)

var regNames = [NumRegs]string{
	"zero", "ra", "sp", "gp", "tp", "t0", "t1", "t2",
	"s0", "s1", "a0", "a1", "a2", "a3", "a4", "a5",
	"a6", "a7", "s2", "s3", "s4", "s5", "s6", "s7",
	"s8", "s9", "s10", "s11", "t3", "t4", "t5", "t6",
}

// RegName returns the ABI name of register i.
func RegName(i int) string {
	if i < 0 || i >= NumRegs {
		return fmt.Sprintf("x%d", i)
	}
	return regNames[i]
}

// RegIndex resolves an ABI name ("a0") or architectural name ("x10").
func RegIndex(name string) (int, bool) {
	for i, n := range regNames {
		if n == name {
			return i, true
		}
	}
	if name == "fp" {
		return RegS0, true
	}
	var idx int
	if _, err := fmt.Sscanf(name, "x%d", &idx); err == nil && idx >= 0 && idx < NumRegs {
		return idx, true
	}
	return 0, false
}

// ============================================================================
// Step outcomes
// ============================================================================

const (
	CONTINUE = 0 // instruction retired, keep going
	TRAP     = 1 // illegal instruction, memory fault, breakpoint
	HOST     = 2 // syscall raised, host must answer
	HALT     = 3 // terminal: returned, budget exhausted, exited
)

// ============================================================================
// Syscall numbers (guest/host wire contract)
// ============================================================================

const (
	SysSerialWrite   uint32 = 1
	SysSerialRead    uint32 = 2
	SysSerialHasData uint32 = 3
	SysTimeMs        uint32 = 4
	SysLog           uint32 = 5
	SysYield         uint32 = 6
	SysExit          uint32 = 93

	// MaxSyscallArgs is the number of argument words packaged per request.
	MaxSyscallArgs = 5
)

// SyscallName returns a printable name for a syscall number.
func SyscallName(n uint32) string {
	switch n {
	case SysSerialWrite:
		return "serial_write"
	case SysSerialRead:
		return "serial_read"
	case SysSerialHasData:
		return "serial_has_data"
	case SysTimeMs:
		return "time_ms"
	case SysLog:
		return "log"
	case SysYield:
		return "yield"
	case SysExit:
		return "exit"
	default:
		return fmt.Sprintf("syscall_%d", n)
	}
}

// ============================================================================
// Syscall result codes written to a0
// ============================================================================

const (
	ResultOK     int32 = 0
	ResultEIO    int32 = -5
	ResultEFAULT int32 = -14
	ResultEINVAL int32 = -22
	ResultENOSYS int32 = -38
)

// ============================================================================
// Guest log levels (log syscall)
// ============================================================================

const (
	GuestLogError = 0
	GuestLogWarn  = 1
	GuestLogInfo  = 2
	GuestLogDebug = 3
)

// ============================================================================
// Memory layout defaults
// ============================================================================

const (
	// ReturnSentinel is written to ra before an invocation. It lies outside
	// any image the loader produces and is even, so a ret lands on it exactly.
	ReturnSentinel uint32 = 0xFFFF_FFF0

	// DefaultStackMargin is left unused above the initial stack pointer.
	DefaultStackMargin uint32 = 16

	// StackAlign is the stack pointer alignment required by the ABI.
	StackAlign uint32 = 16
)

func AlignDown(x, a uint32) uint32 {
	return x &^ (a - 1)
}

func AlignUp(x, a uint32) uint32 {
	return (x + a - 1) &^ (a - 1)
}
