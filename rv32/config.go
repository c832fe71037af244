package rv32

import (
	"fmt"
	"strings"

	"github.com/colorfulnotion/rv32emu/rv32/isa"
	"github.com/colorfulnotion/rv32emu/rv32/rvtypes"
)

// SyscallConvention selects which register carries the syscall number.
type SyscallConvention uint8

const (
	// NumberInA7: number in a7, arguments in a0..a4.
	NumberInA7 SyscallConvention = iota
	// NumberInA0: number in a0, arguments in a1..a5.
	NumberInA0
)

func (c SyscallConvention) String() string {
	if c == NumberInA0 {
		return "a0"
	}
	return "a7"
}

func ParseSyscallConvention(s string) (SyscallConvention, error) {
	switch strings.ToLower(s) {
	case "a7", "":
		return NumberInA7, nil
	case "a0":
		return NumberInA0, nil
	}
	return 0, fmt.Errorf("unknown syscall convention %q (want a7 or a0)", s)
}

// Config is fixed when a State is constructed.
type Config struct {
	// Extensions enabled for execution. Zero means isa.DefaultExtensions.
	Extensions isa.Extensions
	// Budget caps retired instructions; 0 means unlimited.
	Budget            uint64
	SyscallConvention SyscallConvention
	// StackTop is the initial stack pointer before alignment. Zero means the
	// top of RAM minus StackMargin.
	StackTop    uint32
	StackMargin uint32
	// Tracer, when set, receives every executed step.
	Tracer Tracer
}

func DefaultConfig() Config {
	return Config{
		Extensions:  isa.DefaultExtensions,
		StackMargin: rvtypes.DefaultStackMargin,
	}
}

func (c Config) withDefaults() Config {
	if c.Extensions == 0 {
		c.Extensions = isa.DefaultExtensions
	}
	c.Extensions |= isa.ExtI
	if c.StackMargin == 0 {
		c.StackMargin = rvtypes.DefaultStackMargin
	}
	return c
}
