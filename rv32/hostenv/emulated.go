// Package hostenv provides syscall handlers for guests run by the rv32
// emulator: an emulated device set (serial, clock, log) and a scripted mock.
package hostenv

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/colorfulnotion/rv32emu/log"
	"github.com/colorfulnotion/rv32emu/rv32"
	"github.com/colorfulnotion/rv32emu/rv32/rvtypes"
	"github.com/colorfulnotion/rv32emu/rverrors"
)

// maxTransfer caps a single serial or log transfer.
const maxTransfer = 1 << 20

// Emulated serves the fixed syscall set over in-process devices. Serial
// input may be pushed from another goroutine while the guest runs.
type Emulated struct {
	mu      sync.Mutex
	input   []byte
	output  io.Writer
	outBuf  *bytes.Buffer
	logJSON io.Writer
	clock   func() time.Time
	yields  uint64
}

type Option func(*Emulated)

// WithSerialOutput sends serial writes to w instead of the internal buffer.
func WithSerialOutput(w io.Writer) Option {
	return func(e *Emulated) { e.output = w }
}

// WithClock replaces time.Now for the time syscall and log timestamps.
func WithClock(clock func() time.Time) Option {
	return func(e *Emulated) { e.clock = clock }
}

// WithGuestLogJSON additionally writes each guest log record as one JSON
// line to w.
func WithGuestLogJSON(w io.Writer) Option {
	return func(e *Emulated) { e.logJSON = w }
}

func NewEmulated(opts ...Option) *Emulated {
	e := &Emulated{clock: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	if e.output == nil {
		e.outBuf = &bytes.Buffer{}
		e.output = e.outBuf
	}
	return e
}

// PushInput queues bytes for the guest's serial reads.
func (e *Emulated) PushInput(b []byte) {
	e.mu.Lock()
	e.input = append(e.input, b...)
	e.mu.Unlock()
}

// Output returns what the guest wrote to serial when no writer was given.
func (e *Emulated) Output() []byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.outBuf == nil {
		return nil
	}
	return bytes.Clone(e.outBuf.Bytes())
}

func (e *Emulated) Yields() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.yields
}

func (e *Emulated) HandleSyscall(ctx context.Context, mem rv32.GuestMemory, req rv32.SyscallRequest) (rv32.SyscallReply, error) {
	switch req.Number {
	case rvtypes.SysSerialWrite:
		return e.serialWrite(mem, req.Args[0], req.Args[1])
	case rvtypes.SysSerialRead:
		return e.serialRead(mem, req.Args[0], req.Args[1])
	case rvtypes.SysSerialHasData:
		e.mu.Lock()
		defer e.mu.Unlock()
		if len(e.input) > 0 {
			return rv32.Reply(1), nil
		}
		return rv32.Reply(0), nil
	case rvtypes.SysTimeMs:
		ms := uint64(e.clock().UnixMilli())
		return rv32.Reply(uint32(ms), uint32(ms>>32)), nil
	case rvtypes.SysLog:
		return e.guestLog(mem, req)
	case rvtypes.SysYield:
		e.mu.Lock()
		e.yields++
		e.mu.Unlock()
		return rv32.Reply(), nil
	}
	return rv32.SyscallReply{}, fmt.Errorf("syscall %d: %w", req.Number, rverrors.ErrNotImplemented)
}

func checkLen(n uint32) error {
	if n > maxTransfer {
		return fmt.Errorf("length %d exceeds %d: %w", n, maxTransfer, rverrors.ErrBadSyscallArgument)
	}
	return nil
}

func (e *Emulated) serialWrite(mem rv32.GuestMemory, ptr, n uint32) (rv32.SyscallReply, error) {
	if err := checkLen(n); err != nil {
		return rv32.SyscallReply{}, err
	}
	data, err := mem.ReadBytes(ptr, n)
	if err != nil {
		return rv32.SyscallReply{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	written, err := e.output.Write(data)
	if err != nil {
		return rv32.SyscallReply{}, err
	}
	return rv32.Reply(uint32(written)), nil
}

func (e *Emulated) serialRead(mem rv32.GuestMemory, ptr, n uint32) (rv32.SyscallReply, error) {
	if err := checkLen(n); err != nil {
		return rv32.SyscallReply{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	take := min(int(n), len(e.input))
	if take == 0 {
		return rv32.Reply(0), nil
	}
	if err := mem.WriteBytes(ptr, e.input[:take]); err != nil {
		return rv32.SyscallReply{}, err
	}
	e.input = e.input[take:]
	return rv32.Reply(uint32(take)), nil
}

func (e *Emulated) guestLog(mem rv32.GuestMemory, req rv32.SyscallRequest) (rv32.SyscallReply, error) {
	level, modPtr, modLen, msgPtr, msgLen := req.Args[0], req.Args[1], req.Args[2], req.Args[3], req.Args[4]
	if err := checkLen(modLen); err != nil {
		return rv32.SyscallReply{}, err
	}
	if err := checkLen(msgLen); err != nil {
		return rv32.SyscallReply{}, err
	}
	target, err := mem.ReadBytes(modPtr, modLen)
	if err != nil {
		return rv32.SyscallReply{}, err
	}
	msg, err := mem.ReadBytes(msgPtr, msgLen)
	if err != nil {
		return rv32.SyscallReply{}, err
	}
	rec := log.GuestRecord{
		Time:    e.clock(),
		Level:   log.LevelString(log.GuestLevel(level)),
		Target:  string(target),
		Message: string(msg),
		PC:      req.PC,
	}
	log.Guest(rec)
	if e.logJSON != nil {
		line, err := json.Marshal(rec)
		if err != nil {
			return rv32.SyscallReply{}, err
		}
		e.mu.Lock()
		_, err = e.logJSON.Write(append(line, '\n'))
		e.mu.Unlock()
		if err != nil {
			return rv32.SyscallReply{}, err
		}
	}
	return rv32.Reply(), nil
}
