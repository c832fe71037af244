package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/colorfulnotion/rv32emu/rv32"
	"github.com/colorfulnotion/rv32emu/rv32/isa"
	"github.com/colorfulnotion/rv32emu/rv32/loader"
	"github.com/spf13/pflag"
)

// machineOptions are the flags shared by every command that builds a State.
type machineOptions struct {
	isa         string
	budget      uint64
	syscallReg  string
	ramSize     uint32
	stackTop    uint32
	stackMargin uint32
}

func (o *machineOptions) register(fs *pflag.FlagSet) {
	fs.StringVar(&o.isa, "isa", isa.DefaultExtensions.String(), "Enabled extensions, e.g. rv32imac_zicsr or imc")
	fs.Uint64Var(&o.budget, "budget", 0, "Instruction budget (0 = unlimited)")
	fs.StringVar(&o.syscallReg, "syscall-reg", "a7", "Register holding the syscall number (a7 or a0)")
	fs.Uint32Var(&o.ramSize, "ram", loader.DefaultRAMSize, "RAM bytes for flat images, added after ELF data segments")
	fs.Uint32Var(&o.stackTop, "stack-top", 0, "Initial stack pointer (0 = top of RAM minus margin)")
	fs.Uint32Var(&o.stackMargin, "stack-margin", 0, "Bytes left free above the initial stack pointer")
}

func (o *machineOptions) config() (rv32.Config, error) {
	cfg := rv32.DefaultConfig()
	ext, err := isa.ParseExtensions(o.isa)
	if err != nil {
		return cfg, err
	}
	conv, err := rv32.ParseSyscallConvention(o.syscallReg)
	if err != nil {
		return cfg, err
	}
	cfg.Extensions = ext
	cfg.SyscallConvention = conv
	cfg.Budget = o.budget
	cfg.StackTop = o.stackTop
	if o.stackMargin != 0 {
		cfg.StackMargin = o.stackMargin
	}
	return cfg, nil
}

func (o *machineOptions) load(path string) (*loader.Program, error) {
	return loader.LoadFile(path, o.ramSize)
}

// boot loads path and builds a fresh State for it.
func (o *machineOptions) boot(path string) (*loader.Program, *rv32.State, error) {
	prog, err := o.load(path)
	if err != nil {
		return nil, nil, err
	}
	cfg, err := o.config()
	if err != nil {
		return nil, nil, err
	}
	st, err := rv32.NewState(prog.Image, cfg)
	if err != nil {
		return nil, nil, err
	}
	return prog, st, nil
}

// resolveAddr accepts a symbol name or a numeric address.
func resolveAddr(prog *loader.Program, s string) (uint32, error) {
	if addr, ok := prog.Lookup(s); ok {
		return addr, nil
	}
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("unknown symbol or address %q", s)
	}
	return uint32(v), nil
}

func parseArgs(args []string) ([]rv32.Value, error) {
	vals := make([]rv32.Value, 0, len(args))
	for i, a := range args {
		v, err := rv32.ParseValue(a)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		vals = append(vals, v)
	}
	return vals, nil
}

func parseKinds(list string) ([]rv32.ValueKind, error) {
	var kinds []rv32.ValueKind
	for _, s := range strings.Split(list, ",") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		k, err := rv32.ParseValueKind(s)
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}

// exitCode carries a process exit status out of a command.
type exitCode struct {
	code int
	err  error
}

func (e *exitCode) Error() string {
	if e.err != nil {
		return e.err.Error()
	}
	return fmt.Sprintf("exit status %d", e.code)
}

func (e *exitCode) Unwrap() error { return e.err }

// Process statuses for non-exit outcomes.
const (
	statusTrap    = 2
	statusBudget  = 3
	statusAborted = 130
)

// runSlice is how many instructions run between interrupt checks.
const runSlice = 1 << 20

// runSliced runs st to a terminal result in budget slices so that ctx is
// honoured during pure compute. budget, when non-zero, still halts the run
// after exactly that many instructions. An interrupted run returns the
// context error.
func runSliced(ctx context.Context, st *rv32.State, h rv32.SyscallHandler, budget uint64) (rv32.StepResult, error) {
	left := budget
	for {
		slice := uint64(runSlice)
		if budget != 0 && left < slice {
			slice = left
		}
		st.SetBudget(slice)
		before := st.Retired()
		res := st.Run(ctx, h)
		if budget != 0 {
			left -= st.Retired() - before
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if res.Kind != rv32.StepHalted || res.Halt != rv32.HaltBudgetExceeded || (budget != 0 && left == 0) {
			return res, nil
		}
	}
}

// runStatus is resultStatus for runSliced.
func runStatus(res rv32.StepResult, err error) *exitCode {
	if err != nil {
		return &exitCode{code: statusAborted, err: fmt.Errorf("interrupted after %s: %w", res, err)}
	}
	return resultStatus(res)
}

// resultStatus maps a terminal run result onto a process exit status.
func resultStatus(res rv32.StepResult) *exitCode {
	switch res.Kind {
	case rv32.StepHalted:
		switch res.Halt {
		case rv32.HaltExited:
			return &exitCode{code: int(res.ExitCode)}
		case rv32.HaltBudgetExceeded:
			return &exitCode{code: statusBudget, err: res.Err()}
		}
		return &exitCode{}
	case rv32.StepTrap:
		return &exitCode{code: statusTrap, err: res.Err()}
	case rv32.StepSyscall:
		return &exitCode{code: statusAborted, err: fmt.Errorf("interrupted at %s", res.Syscall)}
	}
	return &exitCode{code: 1, err: fmt.Errorf("unexpected result %s", res)}
}
