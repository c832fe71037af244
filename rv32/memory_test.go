package rv32

import (
	"errors"
	"testing"

	"github.com/colorfulnotion/rv32emu/rv32/isa"
	"github.com/colorfulnotion/rv32emu/rverrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func faultKind(t *testing.T, err error) FaultKind {
	t.Helper()
	var f *MemoryFault
	require.True(t, errors.As(err, &f), "want MemoryFault, got %v", err)
	return f.Kind
}

func TestMemoryRegions(t *testing.T) {
	m := NewMemory(0x1000, make([]byte, 16), 0x1010, make([]byte, 16))

	require.NoError(t, m.Store32(0x1010, 0xdeadbeef))
	v, err := m.Load32(0x1010)
	require.NoError(t, err)
	assert.Equal(t, uint32(0xdeadbeef), v)

	v, err = m.Load16(0x1012)
	require.NoError(t, err)
	assert.Equal(t, uint32(0xdead), v)

	assert.Equal(t, FaultReadOnly, faultKind(t, m.Store8(0x1000, 1)))
	_, err = m.Fetch16(0x1010)
	assert.Equal(t, FaultNotExecutable, faultKind(t, err))
	_, err = m.Load32(0x100e)
	assert.Equal(t, FaultCrossRegion, faultKind(t, err))
	_, err = m.Load8(0x0fff)
	assert.Equal(t, FaultOutOfBounds, faultKind(t, err))
	_, err = m.Load32(0x101e)
	assert.Equal(t, FaultOutOfBounds, faultKind(t, err))
	_, err = m.Load32(0xfffffffe)
	assert.Equal(t, FaultOutOfBounds, faultKind(t, err))

	err = m.Store32(0x1020, 1)
	assert.ErrorIs(t, err, rverrors.ErrMemoryFault)
	assert.NotErrorIs(t, err, rverrors.ErrMisaligned)
}

func TestMemoryBytes(t *testing.T) {
	m := NewMemory(0x1000, make([]byte, 4), 0x2000, make([]byte, 8))
	require.NoError(t, m.WriteBytes(0x2002, []byte("abc")))
	b, err := m.ReadBytes(0x2002, 3)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(b))

	b, err = m.ReadBytes(0xdead0000, 0)
	require.NoError(t, err)
	assert.Empty(t, b)

	_, err = m.ReadBytes(0x2006, 4)
	assert.Error(t, err)
	assert.Error(t, m.WriteBytes(0x1000, []byte{1}))
}

func TestStoreOnePastEnd(t *testing.T) {
	p := isa.NewProgram()
	st := newState(t, p.Li(a0, 0).Emit(isa.Sw(a1, a0, 0)).Ret(), DefaultConfig())
	end := st.Mem.RAMBase() + st.Mem.RAMSize()
	st.Regs.Write(uint8(a1), 0x55555555)
	before := append([]byte(nil), st.Mem.RAM()...)

	// rewrite a0 with the one-past-end address after li executes
	res := st.Step()
	require.Equal(t, StepContinue, res.Kind)
	st.Regs.Write(uint8(a0), end)

	res = st.Step()
	require.Equal(t, StepTrap, res.Kind)
	assert.Equal(t, TrapMemoryFault, res.Trap.Reason)
	assert.Equal(t, end, res.Trap.Address)
	assert.ErrorIs(t, res.Trap, rverrors.ErrMemoryFault)
	assert.Equal(t, before, st.Mem.RAM())
	assert.Equal(t, uint64(1), st.Retired())

	// the last word in RAM is fine
	st.Regs.Write(uint8(a0), end-4)
	res = st.Step()
	require.Equal(t, StepContinue, res.Kind)
	v, err := st.Mem.Load32(end - 4)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x55555555), v)
}

func TestImageValidate(t *testing.T) {
	img := NewImage([]byte{0x13, 0, 0, 0}, 256)
	require.NoError(t, img.Validate())
	assert.Equal(t, uint32(0x1010), img.RAMBase)

	bad := *img
	bad.Code = nil
	assert.ErrorIs(t, bad.Validate(), rverrors.ErrInvalidImage)

	bad = *img
	bad.RAMBase = 0x1000
	assert.ErrorIs(t, bad.Validate(), rverrors.ErrInvalidImage)

	bad = *img
	bad.Entry = 0x2000
	assert.ErrorIs(t, bad.Validate(), rverrors.ErrInvalidImage)

	bad = *img
	bad.RAMBase = 0xffff_ff00
	assert.ErrorIs(t, bad.Validate(), rverrors.ErrInvalidImage)

	bad = *img
	bad.RAM = make([]byte, 512)
	assert.ErrorIs(t, bad.Validate(), rverrors.ErrInvalidImage)
}
