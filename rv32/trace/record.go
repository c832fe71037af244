// Package trace records per-step execution traces of the rv32 emulator and
// moves them between sinks: JSON Lines files, a LevelDB store and live
// WebSocket subscribers.
package trace

import (
	"fmt"

	"github.com/colorfulnotion/rv32emu/rv32"
	"golang.org/x/crypto/blake2b"
)

// maxInlineBytes is the largest memory write stored verbatim; larger
// writes are stored as their blake2b-256 hash.
const maxInlineBytes = 32

type Record struct {
	Index uint64 `json:"index"`
	PC    string `json:"pc"`
	Raw   string `json:"raw"`
	Op    string `json:"op"`
	Kind  string `json:"kind"`

	Rd      *uint8  `json:"rd,omitempty"`
	RdValue *uint32 `json:"rdValue,omitempty"`

	MemAddr   *uint32 `json:"memAddr,omitempty"`
	MemLength *uint32 `json:"memLength,omitempty"`
	MemBytes  []byte  `json:"memBytes,omitempty"` // hash when MemLength > 32

	Syscall *uint32 `json:"syscall,omitempty"`
	Trap    string  `json:"trap,omitempty"`
}

// NewRecord converts a step event into its serialisable form.
func NewRecord(ev *rv32.StepEvent) *Record {
	rec := &Record{
		Index: ev.Index,
		PC:    fmt.Sprintf("0x%08x", ev.PC),
		Op:    ev.Instruction.Op.String(),
		Kind:  ev.Kind.String(),
	}
	if ev.Instruction.Width == 2 {
		rec.Raw = fmt.Sprintf("%04x", ev.Instruction.Raw)
	} else {
		rec.Raw = fmt.Sprintf("%08x", ev.Instruction.Raw)
	}
	if ev.RdWritten {
		rd, v := ev.Rd, ev.RdValue
		rec.Rd, rec.RdValue = &rd, &v
	}
	if ev.MemWritten {
		rec.SetChangedMemory(ev.MemAddr, ev.MemData)
	}
	if ev.Syscall != nil {
		n := ev.Syscall.Number
		rec.Syscall = &n
	}
	if ev.Trap != nil {
		rec.Trap = ev.Trap.Reason.String()
	}
	return rec
}

func (r *Record) SetChangedMemory(addr uint32, data []byte) {
	n := uint32(len(data))
	r.MemAddr = &addr
	r.MemLength = &n
	switch {
	case n == 0:
		r.MemBytes = nil
	case n > maxInlineBytes:
		sum := blake2b.Sum256(data)
		r.MemBytes = sum[:]
	default:
		r.MemBytes = append([]byte(nil), data...)
	}
}

// Sink consumes trace records.
type Sink interface {
	WriteRecord(rec *Record) error
}

// Tracer adapts sinks to rv32.Tracer. The first sink error is kept and
// later events are dropped.
type Tracer struct {
	sinks []Sink
	err   error
	count uint64
}

func NewTracer(sinks ...Sink) *Tracer {
	return &Tracer{sinks: sinks}
}

func (t *Tracer) TraceStep(ev *rv32.StepEvent) {
	if t.err != nil {
		return
	}
	rec := NewRecord(ev)
	for _, s := range t.sinks {
		if err := s.WriteRecord(rec); err != nil {
			t.err = err
			return
		}
	}
	t.count++
}

// Err returns the first sink error.
func (t *Tracer) Err() error {
	return t.err
}

// Count is the number of records delivered to every sink.
func (t *Tracer) Count() uint64 {
	return t.count
}

// Collector keeps records in memory.
type Collector struct {
	Records []*Record
}

func (c *Collector) WriteRecord(rec *Record) error {
	c.Records = append(c.Records, rec)
	return nil
}
