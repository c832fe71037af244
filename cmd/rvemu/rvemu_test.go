package main

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/colorfulnotion/rv32emu/rv32"
	"github.com/colorfulnotion/rv32emu/rv32/isa"
	"github.com/colorfulnotion/rv32emu/rv32/loader"
	"github.com/colorfulnotion/rv32emu/rv32/rvtypes"
	"github.com/colorfulnotion/rv32emu/rv32/trace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	a0 uint32 = 10
	a7 uint32 = 17
)

// countdown loops three times, then exits with code 7.
//
//	0x1000 _start: li a0, 3
//	0x1004 loop:   addi a0, a0, -1
//	0x1008         bnez a0, loop
//	0x100c done:   li a0, 7
//	0x1010         li a7, 93
//	0x1014         ecall
//	0x1018         ret
func countdown(t *testing.T) (*loader.Program, *rv32.State) {
	t.Helper()
	p := isa.NewProgram().
		Li(a0, 3).
		Emit(isa.Addi(a0, a0, -1), isa.Bne(a0, 0, -4)).
		Li(a0, 7).Li(a7, int32(rvtypes.SysExit)).Emit(isa.Ecall()).Ret()
	prog, err := loader.LoadFlat(p.Bytes(), 4096)
	require.NoError(t, err)
	prog.Symbols["_start"] = 0x1000
	prog.Symbols["loop"] = 0x1004
	prog.Symbols["done"] = 0x100c
	st, err := rv32.NewState(prog.Image, rv32.DefaultConfig())
	require.NoError(t, err)
	return prog, st
}

func TestParseKinds(t *testing.T) {
	kinds, err := parseKinds("i64, i32,")
	require.NoError(t, err)
	assert.Equal(t, []rv32.ValueKind{rv32.KindI64, rv32.KindI32}, kinds)

	kinds, err = parseKinds("")
	require.NoError(t, err)
	assert.Empty(t, kinds)

	_, err = parseKinds("i16")
	assert.Error(t, err)
}

func TestParseArgs(t *testing.T) {
	vals, err := parseArgs([]string{"-5", "u64:0x10", "f32:1.5"})
	require.NoError(t, err)
	require.Len(t, vals, 3)
	assert.Equal(t, int32(-5), vals[0].Int32())
	assert.Equal(t, uint64(16), vals[1].Uint64())
	assert.Equal(t, float32(1.5), vals[2].Float32())

	_, err = parseArgs([]string{"1", "nope"})
	assert.ErrorContains(t, err, "argument 1")
}

func TestResolveAddr(t *testing.T) {
	prog, _ := countdown(t)
	addr, err := resolveAddr(prog, "done")
	require.NoError(t, err)
	assert.Equal(t, uint32(0x100c), addr)

	addr, err = resolveAddr(prog, "0x1008")
	require.NoError(t, err)
	assert.Equal(t, uint32(0x1008), addr)

	_, err = resolveAddr(prog, "missing")
	assert.Error(t, err)
}

func TestResultStatus(t *testing.T) {
	tests := []struct {
		name    string
		res     rv32.StepResult
		code    int
		withErr bool
	}{
		{"returned", rv32.StepResult{Kind: rv32.StepHalted, Halt: rv32.HaltReturned}, 0, false},
		{"exited", rv32.StepResult{Kind: rv32.StepHalted, Halt: rv32.HaltExited, ExitCode: 4}, 4, false},
		{"budget", rv32.StepResult{Kind: rv32.StepHalted, Halt: rv32.HaltBudgetExceeded}, statusBudget, true},
		{"trap", rv32.StepResult{Kind: rv32.StepTrap, Trap: &rv32.Trap{Reason: rv32.TrapBreakpoint}}, statusTrap, true},
		{"interrupted", rv32.StepResult{Kind: rv32.StepSyscall, Syscall: &rv32.SyscallRequest{Number: 1}}, statusAborted, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ec := resultStatus(tc.res)
			assert.Equal(t, tc.code, ec.code)
			assert.Equal(t, tc.withErr, ec.err != nil)
		})
	}
}

func TestMachineOptions(t *testing.T) {
	o := &machineOptions{isa: "imc", syscallReg: "a0", budget: 100, stackMargin: 64}
	cfg, err := o.config()
	require.NoError(t, err)
	assert.False(t, cfg.Extensions.Has(isa.ExtA))
	assert.Equal(t, rv32.NumberInA0, cfg.SyscallConvention)
	assert.Equal(t, uint64(100), cfg.Budget)
	assert.Equal(t, uint32(64), cfg.StackMargin)

	o.syscallReg = "a3"
	_, err = o.config()
	assert.Error(t, err)
}

func TestDisassembleLabels(t *testing.T) {
	prog, _ := countdown(t)
	var out bytes.Buffer
	require.NoError(t, disassemble(&out, prog, 0, 0))
	text := out.String()
	assert.Contains(t, text, "00001004 <loop>:")
	assert.Contains(t, text, "ecall")

	out.Reset()
	require.NoError(t, disassemble(&out, prog, 0x100c, 2))
	assert.Contains(t, out.String(), "<done>")
	assert.NotContains(t, out.String(), "ecall")

	assert.Error(t, disassemble(&out, prog, 0x4000, 0))
}

func TestLayoutTree(t *testing.T) {
	prog, st := countdown(t)
	text := layoutTree("countdown.bin", prog, st).String()
	assert.Contains(t, text, "countdown.bin (flat)")
	assert.Contains(t, text, "entry 0x00001000")
	assert.Contains(t, text, "0x00001004 loop")
	assert.Contains(t, text, "budget unlimited")
}

func TestDebuggerSession(t *testing.T) {
	prog, st := countdown(t)
	var out bytes.Buffer
	d := newDebugger(context.Background(), prog, st, &out)

	quit, err := d.exec("step")
	require.NoError(t, err)
	assert.False(t, quit)
	assert.Equal(t, uint32(0x1004), st.Regs.PC)
	assert.Contains(t, out.String(), "<loop>")

	_, err = d.exec("break done")
	require.NoError(t, err)
	out.Reset()
	_, err = d.exec("continue")
	require.NoError(t, err)
	assert.Contains(t, out.String(), "breakpoint 0x0000100c <done>")
	assert.Equal(t, uint32(0x100c), st.Regs.PC)
	assert.Equal(t, uint64(7), st.Retired())

	out.Reset()
	_, err = d.exec("js reg('a0') + 1")
	require.NoError(t, err)
	assert.Equal(t, "1\n", out.String())

	_, err = d.exec("js reg('bogus')")
	assert.Error(t, err)

	_, err = d.exec("mem sp 4")
	require.NoError(t, err)

	out.Reset()
	_, err = d.exec("continue")
	require.NoError(t, err)
	assert.Contains(t, out.String(), "exited with code 7")
	reason, halted := st.HaltReason()
	assert.True(t, halted)
	assert.Equal(t, rv32.HaltExited, reason)

	_, err = d.exec("frobnicate")
	assert.Error(t, err)
	quit, err = d.exec("quit")
	require.NoError(t, err)
	assert.True(t, quit)
}

func writeTrace(t *testing.T, path string, rdValue uint32) {
	t.Helper()
	w, err := trace.NewJSONLWriterFile(path)
	require.NoError(t, err)
	rd := uint8(10)
	for i := uint64(0); i < 3; i++ {
		v := uint32(i)
		if i == 2 {
			v = rdValue
		}
		require.NoError(t, w.WriteRecord(&trace.Record{Index: i, PC: "0x00001000", Op: "addi", Kind: "continue", Rd: &rd, RdValue: &v}))
	}
	require.NoError(t, w.Close())
}

func TestTraceDiffCommand(t *testing.T) {
	dir := t.TempDir()
	left := filepath.Join(dir, "left.jsonl")
	same := filepath.Join(dir, "same.jsonl")
	other := filepath.Join(dir, "other.jsonl")
	writeTrace(t, left, 2)
	writeTrace(t, same, 2)
	writeTrace(t, other, 9)

	cmd := newTraceCmd(nil)
	cmd.SetArgs([]string{"diff", left, same})
	require.NoError(t, cmd.Execute())

	cmd = newTraceCmd(nil)
	cmd.SetArgs([]string{"diff", left, other})
	err := cmd.Execute()
	var ec *exitCode
	require.True(t, errors.As(err, &ec))
	assert.Equal(t, 1, ec.code)
}

func TestCommitHash(t *testing.T) {
	prev := Commit
	defer func() { Commit = prev }()
	Commit = "abc1234"
	assert.Equal(t, "abc1234", commitHash())
	assert.Empty(t, headHash(t.TempDir()))
}

func spin(t *testing.T) *rv32.State {
	t.Helper()
	prog, err := loader.LoadFlat(isa.NewProgram().Emit(isa.Jal(0, 0)).Bytes(), 4096)
	require.NoError(t, err)
	st, err := rv32.NewState(prog.Image, rv32.DefaultConfig())
	require.NoError(t, err)
	return st
}

func TestRunSlicedInterruptsCompute(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	st := spin(t)
	res, err := runSliced(ctx, st, nil, 0)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, uint64(runSlice), st.Retired())

	ec := runStatus(res, err)
	assert.Equal(t, statusAborted, ec.code)
	assert.ErrorIs(t, ec, context.Canceled)
}

func TestRunSlicedKeepsBudget(t *testing.T) {
	st := spin(t)
	res, err := runSliced(context.Background(), st, nil, runSlice+5)
	require.NoError(t, err)
	assert.Equal(t, rv32.HaltBudgetExceeded, res.Halt)
	assert.Equal(t, uint64(runSlice+5), st.Retired())

	_, st = countdown(t)
	res, err = runSliced(context.Background(), st, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, rv32.HaltExited, res.Halt)
	assert.Equal(t, int32(7), res.ExitCode)
}
