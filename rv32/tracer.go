package rv32

import "github.com/colorfulnotion/rv32emu/rv32/isa"

// StepEvent describes one executed instruction for tracers. Events for
// trapped instructions carry the trap and no side effects.
type StepEvent struct {
	Index       uint64 // retired instructions before this one
	PC          uint32
	Instruction isa.Instruction
	Kind        StepKind

	RdWritten bool
	Rd        uint8
	RdValue   uint32

	MemWritten bool
	MemAddr    uint32
	MemData    []byte

	Syscall *SyscallRequest
	Trap    *Trap
}

// Tracer observes executed steps. Implementations must not retain ev.MemData
// past the call without copying.
type Tracer interface {
	TraceStep(ev *StepEvent)
}

// MultiTracer fans events out to several tracers.
type MultiTracer []Tracer

func (m MultiTracer) TraceStep(ev *StepEvent) {
	for _, t := range m {
		t.TraceStep(ev)
	}
}
