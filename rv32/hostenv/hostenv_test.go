package hostenv

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/colorfulnotion/rv32emu/rv32"
	"github.com/colorfulnotion/rv32emu/rv32/isa"
	"github.com/colorfulnotion/rv32emu/rv32/rvtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	sp uint32 = 2
	t0 uint32 = 5
	a0 uint32 = 10
	a1 uint32 = 11
	a2 uint32 = 12
	a3 uint32 = 13
	a4 uint32 = 14
	a7 uint32 = 17
)

// putString stores s at sp+off one byte at a time.
func putString(p *isa.Program, off int32, s string) *isa.Program {
	for i := 0; i < len(s); i++ {
		p.Li(t0, int32(s[i])).Emit(isa.Sb(t0, sp, off+int32(i)))
	}
	return p
}

func syscall(p *isa.Program, num uint32) *isa.Program {
	return p.Li(a7, int32(num)).Emit(isa.Ecall())
}

func run(t *testing.T, p *isa.Program, h rv32.SyscallHandler, results ...rv32.ValueKind) (*rv32.State, []rv32.Value) {
	t.Helper()
	st, err := rv32.NewState(rv32.NewImage(p.Ret().Bytes(), 4096), rv32.DefaultConfig())
	require.NoError(t, err)
	vals, err := rv32.NewDriver(st, h).Call(context.Background(), st.Mem.CodeBase(), nil, results)
	require.NoError(t, err)
	return st, vals
}

func TestSerialWrite(t *testing.T) {
	e := NewEmulated()
	p := putString(isa.NewProgram(), -16, "hello")
	p.Emit(isa.Addi(a0, sp, -16)).Li(a1, 5)
	syscall(p, rvtypes.SysSerialWrite)
	_, vals := run(t, p, e, rv32.KindI32)
	assert.Equal(t, int32(5), vals[0].Int32())
	assert.Equal(t, "hello", string(e.Output()))
}

func TestSerialWriteToWriter(t *testing.T) {
	var out bytes.Buffer
	e := NewEmulated(WithSerialOutput(&out))
	p := putString(isa.NewProgram(), -8, "ok")
	p.Emit(isa.Addi(a0, sp, -8)).Li(a1, 2)
	syscall(p, rvtypes.SysSerialWrite)
	run(t, p, e, rv32.KindI32)
	assert.Equal(t, "ok", out.String())
	assert.Nil(t, e.Output())
}

func TestSerialWriteBadPointer(t *testing.T) {
	e := NewEmulated()
	p := isa.NewProgram().Li(a0, 0x7000_0000).Li(a1, 4)
	syscall(p, rvtypes.SysSerialWrite)
	_, vals := run(t, p, e, rv32.KindI32)
	assert.Equal(t, rvtypes.ResultEFAULT, vals[0].Int32())
	assert.Empty(t, e.Output())
}

func TestSerialWriteTooLong(t *testing.T) {
	p := isa.NewProgram().Emit(isa.Addi(a0, sp, -16)).Li(a1, maxTransfer+1)
	syscall(p, rvtypes.SysSerialWrite)
	_, vals := run(t, p, NewEmulated(), rv32.KindI32)
	assert.Equal(t, rvtypes.ResultEFAULT, vals[0].Int32())
}

func TestSerialRead(t *testing.T) {
	e := NewEmulated()
	e.PushInput([]byte("abc"))

	// has-data, then read up to 8 bytes into sp-16 and return the first byte
	p := isa.NewProgram()
	syscall(p, rvtypes.SysSerialHasData)
	p.Emit(isa.Addi(a2, a0, 0))
	p.Emit(isa.Addi(a0, sp, -16)).Li(a1, 8)
	syscall(p, rvtypes.SysSerialRead)
	p.Emit(isa.Lbu(a1, sp, -16))

	st, vals := run(t, p, e, rv32.KindI32, rv32.KindI32)
	assert.Equal(t, int32(3), vals[0].Int32())
	assert.Equal(t, int32('a'), vals[1].Int32())
	assert.Equal(t, uint32(1), st.Regs.Read(uint8(a2)))

	ram, err := st.Mem.ReadBytes(st.StackTop()-16, 3)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(ram))

	p = isa.NewProgram()
	syscall(p, rvtypes.SysSerialHasData)
	_, vals = run(t, p, e, rv32.KindI32)
	assert.Equal(t, int32(0), vals[0].Int32())
}

func TestSerialReadPartialAndEmpty(t *testing.T) {
	e := NewEmulated()
	p := isa.NewProgram().Emit(isa.Addi(a0, sp, -16)).Li(a1, 4)
	syscall(p, rvtypes.SysSerialRead)
	_, vals := run(t, p, e, rv32.KindI32)
	assert.Equal(t, int32(0), vals[0].Int32())

	e.PushInput([]byte("0123456789"))
	p = isa.NewProgram().Emit(isa.Addi(a0, sp, -16)).Li(a1, 4)
	syscall(p, rvtypes.SysSerialRead)
	_, vals = run(t, p, e, rv32.KindI32)
	assert.Equal(t, int32(4), vals[0].Int32())

	// a faulting read leaves the input queued
	p = isa.NewProgram().Li(a0, 0x1000).Li(a1, 4)
	syscall(p, rvtypes.SysSerialRead)
	_, vals = run(t, p, e, rv32.KindI32)
	assert.Equal(t, rvtypes.ResultEFAULT, vals[0].Int32())

	p = isa.NewProgram()
	syscall(p, rvtypes.SysSerialHasData)
	_, vals = run(t, p, e, rv32.KindI32)
	assert.Equal(t, int32(1), vals[0].Int32())
}

func TestTimeMs(t *testing.T) {
	now := time.UnixMilli(0x0000_0123_89ab_cdef)
	e := NewEmulated(WithClock(func() time.Time { return now }))
	p := syscall(isa.NewProgram(), rvtypes.SysTimeMs)
	_, vals := run(t, p, e, rv32.KindI64)
	assert.Equal(t, uint64(0x0000_0123_89ab_cdef), vals[0].Uint64())
}

func TestGuestLogJSON(t *testing.T) {
	var buf bytes.Buffer
	e := NewEmulated(
		WithGuestLogJSON(&buf),
		WithClock(func() time.Time { return time.Unix(1700000000, 0).UTC() }),
	)
	p := putString(isa.NewProgram(), -32, "app")
	putString(p, -16, "booted")
	p.Li(a0, rvtypes.GuestLogWarn).Emit(isa.Addi(a1, sp, -32)).Li(a2, 3).Emit(isa.Addi(a3, sp, -16)).Li(a4, 6)
	syscall(p, rvtypes.SysLog)
	p.Li(a0, 9)
	_, vals := run(t, p, e, rv32.KindI32)
	assert.Equal(t, int32(9), vals[0].Int32())

	var rec map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &rec))
	assert.Equal(t, "warn", rec["level"])
	assert.Equal(t, "app", rec["target"])
	assert.Equal(t, "booted", rec["msg"])
	assert.Contains(t, rec, "pc")
}

func TestGuestLogBadPointer(t *testing.T) {
	p := isa.NewProgram().Li(a0, 2).Li(a1, 0).Li(a2, 4).Li(a3, 0).Li(a4, 0)
	syscall(p, rvtypes.SysLog)
	_, vals := run(t, p, NewEmulated(), rv32.KindI32)
	assert.Equal(t, rvtypes.ResultEFAULT, vals[0].Int32())
}

func TestYieldAndUnknown(t *testing.T) {
	e := NewEmulated()
	p := isa.NewProgram().Li(a0, 77)
	syscall(p, rvtypes.SysYield)
	syscall(p, rvtypes.SysYield)
	_, vals := run(t, p, e, rv32.KindI32)
	assert.Equal(t, int32(77), vals[0].Int32())
	assert.Equal(t, uint64(2), e.Yields())

	p = syscall(isa.NewProgram(), 200)
	_, vals = run(t, p, e, rv32.KindI32)
	assert.Equal(t, rvtypes.ResultENOSYS, vals[0].Int32())
}

func TestEmulatedConcurrentInput(t *testing.T) {
	e := NewEmulated()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			e.PushInput([]byte{byte(i)})
		}
	}()
	p := isa.NewProgram()
	for i := 0; i < 10; i++ {
		p.Emit(isa.Addi(a0, sp, -64)).Li(a1, 32)
		syscall(p, rvtypes.SysSerialRead)
	}
	run(t, p, e, rv32.KindI32)
	<-done
}

func TestMockScripted(t *testing.T) {
	m := NewMock().On(rvtypes.SysSerialHasData, MockReply{Ret: []uint32{1}}, MockReply{Ret: []uint32{0}})

	p := isa.NewProgram()
	syscall(p, rvtypes.SysSerialHasData)
	p.Emit(isa.Addi(a2, a0, 0))
	syscall(p, rvtypes.SysSerialHasData)
	p.Emit(isa.Add(a2, a2, a0))
	syscall(p, rvtypes.SysSerialHasData)
	p.Emit(isa.Add(a0, a2, a0))
	_, vals := run(t, p, m, rv32.KindI32)
	assert.Equal(t, int32(1), vals[0].Int32())
	assert.Equal(t, 3, m.Count(rvtypes.SysSerialHasData))
	assert.Len(t, m.Requests(), 3)
}

func TestMockWritesMemory(t *testing.T) {
	p := isa.NewProgram().Emit(isa.Addi(a0, sp, -16)).Li(a1, 2)
	syscall(p, rvtypes.SysSerialRead)
	p.Emit(isa.Lbu(a1, sp, -15)).Ret()
	st, err := rv32.NewState(rv32.NewImage(p.Bytes(), 4096), rv32.DefaultConfig())
	require.NoError(t, err)
	buf := st.StackTop() - 16

	m := NewMock().On(rvtypes.SysSerialRead, MockReply{Ret: []uint32{2}, WriteAddr: buf, Write: []byte("hi")})
	vals, err := rv32.NewDriver(st, m).Call(context.Background(), st.Mem.CodeBase(), nil, []rv32.ValueKind{rv32.KindI32, rv32.KindI32})
	require.NoError(t, err)
	assert.Equal(t, int32(2), vals[0].Int32())
	assert.Equal(t, int32('i'), vals[1].Int32())
	assert.Equal(t, buf, m.Requests()[0].Args[0])
}

func TestMockErrorsAndFuncs(t *testing.T) {
	m := NewMock().
		On(rvtypes.SysSerialWrite, MockReply{Err: errors.New("device gone")}).
		OnFunc(rvtypes.SysTimeMs, func(ctx context.Context, mem rv32.GuestMemory, req rv32.SyscallRequest) (rv32.SyscallReply, error) {
			return rv32.Reply(42, 0), nil
		})

	p := syscall(isa.NewProgram(), rvtypes.SysSerialWrite)
	_, vals := run(t, p, m, rv32.KindI32)
	assert.Equal(t, rvtypes.ResultEIO, vals[0].Int32())

	p = syscall(isa.NewProgram(), rvtypes.SysTimeMs)
	_, vals = run(t, p, m, rv32.KindI64)
	assert.Equal(t, uint64(42), vals[0].Uint64())

	p = syscall(isa.NewProgram(), rvtypes.SysLog)
	_, vals = run(t, p, m, rv32.KindI32)
	assert.Equal(t, rvtypes.ResultENOSYS, vals[0].Int32())
}

func TestMockFuncLeavesScriptQueued(t *testing.T) {
	m := NewMock().
		On(rvtypes.SysSerialHasData, MockReply{Ret: []uint32{1}}, MockReply{Ret: []uint32{2}}).
		OnFunc(rvtypes.SysSerialHasData, func(context.Context, rv32.GuestMemory, rv32.SyscallRequest) (rv32.SyscallReply, error) {
			return rv32.Reply(9), nil
		})

	for i := 0; i < 2; i++ {
		_, vals := run(t, syscall(isa.NewProgram(), rvtypes.SysSerialHasData), m, rv32.KindI32)
		assert.Equal(t, int32(9), vals[0].Int32())
	}

	m.OnFunc(rvtypes.SysSerialHasData, nil)
	for _, want := range []int32{1, 2, 2} {
		_, vals := run(t, syscall(isa.NewProgram(), rvtypes.SysSerialHasData), m, rv32.KindI32)
		assert.Equal(t, want, vals[0].Int32())
	}
	assert.Equal(t, 5, m.Count(rvtypes.SysSerialHasData))
}
