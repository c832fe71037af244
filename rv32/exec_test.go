package rv32

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/colorfulnotion/rv32emu/rv32/isa"
	"github.com/colorfulnotion/rv32emu/rverrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDivisionByZero(t *testing.T) {
	for _, x := range []uint32{0, 1, 7, 0xffffffff, 0x80000000, 0x7fffffff} {
		assert.Equal(t, uint32(math.MaxUint32), mulDiv(isa.DIV, x, 0), "div %#x/0", x)
		assert.Equal(t, uint32(math.MaxUint32), mulDiv(isa.DIVU, x, 0), "divu %#x/0", x)
		assert.Equal(t, x, mulDiv(isa.REM, x, 0), "rem %#x%%0", x)
		assert.Equal(t, x, mulDiv(isa.REMU, x, 0), "remu %#x%%0", x)
	}
}

func TestMulDivSemantics(t *testing.T) {
	minInt := uint32(0x80000000)
	neg := func(v int32) uint32 { return uint32(v) }
	tests := []struct {
		op   isa.Op
		a, b uint32
		want uint32
	}{
		{isa.DIV, minInt, neg(-1), minInt},
		{isa.REM, minInt, neg(-1), 0},
		{isa.DIV, neg(-7), 2, neg(-3)},
		{isa.REM, neg(-7), 2, neg(-1)},
		{isa.DIVU, neg(-7), 2, 0x7ffffffc},
		{isa.REMU, 7, 3, 1},
		{isa.MUL, 0x10000, 0x10000, 0},
		{isa.MULH, neg(-1), neg(-1), 0},
		{isa.MULH, minInt, minInt, 0x40000000},
		{isa.MULHU, 0xffffffff, 0xffffffff, 0xfffffffe},
		{isa.MULHSU, neg(-1), 0xffffffff, 0xffffffff},
		{isa.MULHSU, 2, 0x80000000, 1},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, mulDiv(tc.op, tc.a, tc.b), "%s %#x %#x", tc.op, tc.a, tc.b)
	}
}

func TestDivideByZeroInGuest(t *testing.T) {
	p := isa.NewProgram().
		Emit(isa.Div(a2, a0, a1), isa.Rem(a3, a0, a1), isa.Divu(a4, a0, a1), isa.Remu(a5, a0, a1)).
		Emit(isa.Addi(a0, a2, 0), isa.Addi(a1, a3, 0)).
		Ret()
	vals, err := call(t, p, nil, []Value{I32(math.MinInt32), I32(0)}, KindI32, KindI32)
	require.NoError(t, err)
	assert.Equal(t, int32(-1), vals[0].Int32())
	assert.Equal(t, int32(math.MinInt32), vals[1].Int32())
}

func TestALUAndLoads(t *testing.T) {
	p := isa.NewProgram().
		Li(t0, -128).
		Emit(isa.Sb(t0, sp, -4), isa.Lb(a0, sp, -4), isa.Lbu(a1, sp, -4)).
		Li(t1, -2).
		Emit(isa.Srai(a2, t1, 1), isa.Srli(a3, t1, 28), isa.Slt(a4, t1, x0), isa.Sltu(a5, t1, x0)).
		Emit(isa.Sh(t1, sp, -8), isa.Lh(a6, sp, -8), isa.Lhu(a7, sp, -8)).
		Emit(isa.Ebreak())
	st := newState(t, p, DefaultConfig())
	res := st.RunUntilReturn(0xFFFF_FFF0)
	require.Equal(t, StepTrap, res.Kind)
	require.Equal(t, TrapBreakpoint, res.Trap.Reason)
	assert.ErrorIs(t, res.Trap, rverrors.ErrBreakpoint)

	r := &st.Regs
	assert.Equal(t, int32(-128), r.ReadSigned(uint8(a0)))
	assert.Equal(t, uint32(128), r.Read(uint8(a1)))
	assert.Equal(t, int32(-1), r.ReadSigned(uint8(a2)))
	assert.Equal(t, uint32(0xf), r.Read(uint8(a3)))
	assert.Equal(t, uint32(1), r.Read(uint8(a4)))
	assert.Equal(t, uint32(0), r.Read(uint8(a5)))
	assert.Equal(t, int32(-2), r.ReadSigned(uint8(a6)))
	assert.Equal(t, uint32(0xfffe), r.Read(uint8(a7)))
}

func TestUnsupportedExtensionTrap(t *testing.T) {
	p := isa.NewProgram().Emit(isa.Mul(a0, a0, a1)).Ret()

	noM := newState(t, p, Config{Extensions: isa.ExtI | isa.ExtC})
	res := noM.Step()
	require.Equal(t, StepTrap, res.Kind)
	assert.Equal(t, TrapIllegalInstruction, res.Trap.Reason)
	assert.ErrorIs(t, res.Trap, rverrors.ErrUnsupportedInstruction)
	var ue *UnsupportedInstructionError
	require.True(t, errors.As(res.Trap, &ue))
	assert.Equal(t, isa.ExtM, ue.Missing)
	assert.Equal(t, uint64(0), noM.Retired())
	assert.Equal(t, noM.Mem.CodeBase(), noM.Regs.PC)

	withM := newState(t, p, Config{Extensions: isa.ExtI | isa.ExtM})
	withM.Regs.Write(uint8(a0), 6)
	withM.Regs.Write(uint8(a1), 7)
	res = withM.Step()
	require.Equal(t, StepContinue, res.Kind)
	assert.Equal(t, uint32(42), withM.Regs.Read(uint8(a0)))
}

func TestCompressedNeedsC(t *testing.T) {
	p := isa.NewProgram().EmitC(isa.CLi(a0, 5), isa.CJr(ra))
	st := newState(t, p, Config{Extensions: isa.ExtI | isa.ExtM})
	res := st.Step()
	require.Equal(t, StepTrap, res.Kind)
	assert.ErrorIs(t, res.Trap, rverrors.ErrUnsupportedInstruction)
}

func TestCompressedExecution(t *testing.T) {
	p := isa.NewProgram().
		EmitC(isa.CLi(a0, 5), isa.CAddi(a0, 3), isa.CMv(a1, a0), isa.CAdd(a0, a1), isa.CNop()).
		EmitC(isa.CSwsp(a0, 8), isa.CLwsp(a2, 8), isa.CAdd(a0, a2)).
		EmitC(isa.CJ(4), isa.CEbreak()).
		EmitC(isa.CJr(ra))
	vals, err := call(t, p, nil, nil, KindI32)
	require.NoError(t, err)
	assert.Equal(t, int32(32), vals[0].Int32())
}

func TestIllegalInstructionTrap(t *testing.T) {
	p := isa.NewProgram().Emit(0x0000007b)
	st := newState(t, p, DefaultConfig())
	res := st.Step()
	require.Equal(t, StepTrap, res.Kind)
	assert.Equal(t, TrapIllegalInstruction, res.Trap.Reason)
	assert.ErrorIs(t, res.Trap, rverrors.ErrDecode)
	var de *isa.DecodeError
	assert.True(t, errors.As(res.Trap, &de))
}

func TestFloatInstructionTraps(t *testing.T) {
	p := isa.NewProgram().Emit(0x0005a007) // flw f0, 0(a1)
	st := newState(t, p, DefaultConfig())
	res := st.Step()
	require.Equal(t, StepTrap, res.Kind)
	assert.ErrorIs(t, res.Trap, rverrors.ErrUnsupportedInstruction)

	st = newState(t, p, Config{Extensions: isa.DefaultExtensions | isa.ExtF})
	res = st.Step()
	require.Equal(t, StepTrap, res.Kind)
	assert.ErrorIs(t, res.Trap, rverrors.ErrUnsupportedInstruction)
}

func TestMisalignedJumpTarget(t *testing.T) {
	p := isa.NewProgram().Emit(isa.Jal(x0, 6))
	st := newState(t, p, Config{Extensions: isa.ExtI | isa.ExtM})
	res := st.Step()
	require.Equal(t, StepTrap, res.Kind)
	assert.Equal(t, TrapInstructionMisaligned, res.Trap.Reason)
	assert.Equal(t, st.Mem.CodeBase()+6, res.Trap.Address)
	assert.ErrorIs(t, res.Trap, rverrors.ErrMisaligned)

	// with C a 2-byte aligned target is legal
	st = newState(t, isa.NewProgram().Emit(isa.Jal(x0, 6), 0, 0), DefaultConfig())
	res = st.Step()
	assert.Equal(t, StepContinue, res.Kind)
}

func TestBudgetEnforcement(t *testing.T) {
	const k = 25
	p := isa.NewProgram().Emit(isa.Addi(a0, a0, 1), isa.Jal(x0, -4))
	st := newState(t, p, Config{Budget: k})

	for i := 0; i < k; i++ {
		res := st.Step()
		require.Equal(t, StepContinue, res.Kind, "step %d", i)
	}
	res := st.Step()
	require.Equal(t, StepHalted, res.Kind)
	assert.Equal(t, HaltBudgetExceeded, res.Halt)
	assert.Equal(t, uint64(k), st.Retired())
	assert.Equal(t, uint32(13), st.Regs.Read(uint8(a0)))
	assert.Equal(t, st.Mem.CodeBase()+4, st.Regs.PC)

	// halted states stay halted
	res = st.Step()
	assert.Equal(t, HaltBudgetExceeded, res.Halt)
	assert.Equal(t, uint64(k), st.Retired())

	st = newState(t, p, Config{Budget: k})
	res = st.RunUntilReturn(0xFFFF_FFF0)
	assert.Equal(t, StepHalted, res.Kind)
	assert.Equal(t, uint64(k), st.Retired())
	assert.ErrorIs(t, res.Err(), rverrors.ErrBudgetExceeded)

	st.SetBudget(4)
	assert.False(t, st.Halted())
	res = st.RunUntilReturn(0xFFFF_FFF0)
	assert.Equal(t, HaltBudgetExceeded, res.Halt)
	assert.Equal(t, uint64(k+4), st.Retired())
}

func TestBudgetThroughDriver(t *testing.T) {
	p := isa.NewProgram().Emit(isa.Jal(x0, 0))
	st := newState(t, p, Config{Budget: 100})
	_, err := NewDriver(st, nil).Call(context.Background(), st.Mem.CodeBase(), nil, nil)
	var he *HaltError
	require.True(t, errors.As(err, &he))
	assert.Equal(t, HaltBudgetExceeded, he.Reason)
	assert.Equal(t, uint64(100), he.Retired)
	assert.ErrorIs(t, err, rverrors.ErrBudgetExceeded)
}

func TestAtomics(t *testing.T) {
	p := isa.NewProgram().
		Emit(isa.Addi(t0, sp, -16)).
		Li(t1, 40).
		Emit(isa.Sw(t1, t0, 0)).
		Emit(isa.LrW(a0, t0), isa.Addi(t2, a0, 2), isa.ScW(a1, t0, t2)). // a0=40, mem=42, a1=0
		Emit(isa.ScW(a2, t0, t2)).                                      // no reservation: a2=1
		Li(t1, 8).
		Emit(isa.AmoAddW(a3, t0, t1)).  // a3=42, mem=50
		Emit(isa.AmoSwapW(a4, t0, x0)). // a4=50, mem=0
		Emit(isa.Lw(a5, t0, 0)).
		Emit(isa.Ebreak())
	st := newState(t, p, DefaultConfig())
	res := st.RunUntilReturn(0xFFFF_FFF0)
	require.Equal(t, TrapBreakpoint, res.Trap.Reason)

	r := &st.Regs
	assert.Equal(t, uint32(40), r.Read(uint8(a0)))
	assert.Equal(t, uint32(0), r.Read(uint8(a1)))
	assert.Equal(t, uint32(1), r.Read(uint8(a2)))
	assert.Equal(t, uint32(42), r.Read(uint8(a3)))
	assert.Equal(t, uint32(50), r.Read(uint8(a4)))
	assert.Equal(t, uint32(0), r.Read(uint8(a5)))
}

func TestAmoMinMax(t *testing.T) {
	neg := uint32(0xfffffffe)
	assert.Equal(t, neg, amoApply(isa.AMOMIN_W, 3, neg))
	assert.Equal(t, uint32(3), amoApply(isa.AMOMAX_W, 3, neg))
	assert.Equal(t, uint32(3), amoApply(isa.AMOMINU_W, 3, neg))
	assert.Equal(t, neg, amoApply(isa.AMOMAXU_W, 3, neg))
	assert.Equal(t, uint32(0b0110), amoApply(isa.AMOXOR_W, 0b1100, 0b1010))
	assert.Equal(t, uint32(0b1000), amoApply(isa.AMOAND_W, 0b1100, 0b1010))
	assert.Equal(t, uint32(0b1110), amoApply(isa.AMOOR_W, 0b1100, 0b1010))
}

func TestMisalignedAtomic(t *testing.T) {
	p := isa.NewProgram().Emit(isa.Addi(t0, sp, -6), isa.AmoAddW(a0, t0, x0))
	st := newState(t, p, DefaultConfig())
	require.Equal(t, StepContinue, st.Step().Kind)
	res := st.Step()
	require.Equal(t, StepTrap, res.Kind)
	assert.Equal(t, TrapMemoryFault, res.Trap.Reason)
	assert.ErrorIs(t, res.Trap, rverrors.ErrMisaligned)
	assert.ErrorIs(t, res.Trap, rverrors.ErrMemoryFault)
}

func TestCounterCSRs(t *testing.T) {
	p := isa.NewProgram().
		Emit(isa.Fence(), isa.Fence(), isa.Csrrs(a0, CSRInstret, x0), isa.Csrrs(a1, CSRCycleH, x0)).
		Ret()
	vals, err := call(t, p, nil, nil, KindI32, KindI32)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), vals[0].Uint32())
	assert.Equal(t, uint32(0), vals[1].Uint32())

	write := isa.NewProgram().Emit(isa.Csrrs(a0, CSRInstret, a1))
	st := newState(t, write, DefaultConfig())
	res := st.Step()
	require.Equal(t, StepTrap, res.Kind)
	assert.Equal(t, TrapIllegalInstruction, res.Trap.Reason)

	other := isa.NewProgram().Emit(isa.Csrrs(a0, 0x300, x0))
	st = newState(t, other, DefaultConfig())
	assert.Equal(t, StepTrap, st.Step().Kind)

	noCSR := newState(t, p, Config{Extensions: isa.ExtI | isa.ExtM})
	noCSR.Step()
	noCSR.Step()
	res = noCSR.Step()
	require.Equal(t, StepTrap, res.Kind)
	assert.ErrorIs(t, res.Trap, rverrors.ErrUnsupportedInstruction)
}

func TestTracerEvents(t *testing.T) {
	p := isa.NewProgram().Emit(isa.Addi(a0, x0, 9), isa.Sw(a0, sp, -4)).Ret()
	rec := &recorder{}
	st := newState(t, p, Config{Tracer: rec})
	res := st.RunUntilReturn(0xFFFF_FFF0)
	require.Equal(t, HaltReturned, res.Halt)
	require.Len(t, rec.events, 3)

	assert.Equal(t, uint64(0), rec.events[0].Index)
	assert.True(t, rec.events[0].RdWritten)
	assert.Equal(t, uint32(9), rec.events[0].RdValue)

	assert.True(t, rec.events[1].MemWritten)
	assert.Equal(t, st.StackTop()-4, rec.events[1].MemAddr)
	assert.Equal(t, []byte{9, 0, 0, 0}, rec.events[1].MemData)
	assert.False(t, rec.events[1].RdWritten)

	assert.Equal(t, isa.JALR, rec.events[2].Instruction.Op)
	assert.False(t, rec.events[2].RdWritten)
}
