package rv32

import (
	"context"
	"testing"

	"github.com/colorfulnotion/rv32emu/rv32/isa"
	"github.com/stretchr/testify/require"
)

// register numbers for the encoders
const (
	x0 uint32 = 0
	ra uint32 = 1
	sp uint32 = 2
	t0 uint32 = 5
	t1 uint32 = 6
	t2 uint32 = 7
	a0 uint32 = 10
	a1 uint32 = 11
	a2 uint32 = 12
	a3 uint32 = 13
	a4 uint32 = 14
	a5 uint32 = 15
	a6 uint32 = 16
	a7 uint32 = 17
)

const testRAMSize = 64 * 1024

func newState(t *testing.T, p *isa.Program, cfg Config) *State {
	t.Helper()
	st, err := NewState(NewImage(p.Bytes(), testRAMSize), cfg)
	require.NoError(t, err)
	return st
}

func call(t *testing.T, p *isa.Program, h SyscallHandler, args []Value, results ...ValueKind) ([]Value, error) {
	t.Helper()
	st := newState(t, p, DefaultConfig())
	return NewDriver(st, h).Call(context.Background(), st.Mem.CodeBase(), args, results)
}

// recorder collects trace events.
type recorder struct {
	events []StepEvent
}

func (r *recorder) TraceStep(ev *StepEvent) {
	r.events = append(r.events, *ev)
}
