package hostenv

import (
	"context"
	"fmt"
	"sync"

	"github.com/colorfulnotion/rv32emu/rv32"
	"github.com/colorfulnotion/rv32emu/rverrors"
)

// MockReply is one scripted answer. Write, when set, is copied into guest
// memory at WriteAddr before the reply is returned.
type MockReply struct {
	Ret       []uint32
	Err       error
	WriteAddr uint32
	Write     []byte
}

// Mock is a scripted, recording SyscallHandler for tests. Each syscall
// number has a queue of replies; the last reply repeats once the queue is
// down to one. Unscripted numbers answer ErrNotImplemented.
type Mock struct {
	mu       sync.Mutex
	scripts  map[uint32][]MockReply
	funcs    map[uint32]rv32.SyscallHandlerFunc
	requests []rv32.SyscallRequest
}

func NewMock() *Mock {
	return &Mock{
		scripts: make(map[uint32][]MockReply),
		funcs:   make(map[uint32]rv32.SyscallHandlerFunc),
	}
}

// On appends replies for syscall num.
func (m *Mock) On(num uint32, replies ...MockReply) *Mock {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scripts[num] = append(m.scripts[num], replies...)
	return m
}

// OnFunc routes syscall num to fn. Functions take precedence over scripts,
// which stay queued while a function answers. A nil fn removes the route.
func (m *Mock) OnFunc(num uint32, fn rv32.SyscallHandlerFunc) *Mock {
	m.mu.Lock()
	defer m.mu.Unlock()
	if fn == nil {
		delete(m.funcs, num)
		return m
	}
	m.funcs[num] = fn
	return m
}

// Requests returns every request seen so far, in order.
func (m *Mock) Requests() []rv32.SyscallRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]rv32.SyscallRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// Count returns how many times syscall num was raised.
func (m *Mock) Count(num uint32) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.requests {
		if r.Number == num {
			n++
		}
	}
	return n
}

func (m *Mock) HandleSyscall(ctx context.Context, mem rv32.GuestMemory, req rv32.SyscallRequest) (rv32.SyscallReply, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	fn := m.funcs[req.Number]
	var reply MockReply
	queue, scripted := m.scripts[req.Number]
	if fn == nil && scripted && len(queue) > 0 {
		reply = queue[0]
		if len(queue) > 1 {
			m.scripts[req.Number] = queue[1:]
		}
	}
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, mem, req)
	}
	if !scripted || len(queue) == 0 {
		return rv32.SyscallReply{}, fmt.Errorf("mock: syscall %d unscripted: %w", req.Number, rverrors.ErrNotImplemented)
	}
	if reply.Write != nil {
		if err := mem.WriteBytes(reply.WriteAddr, reply.Write); err != nil {
			return rv32.SyscallReply{}, err
		}
	}
	if reply.Err != nil {
		return rv32.SyscallReply{}, reply.Err
	}
	return rv32.SyscallReply{Ret: reply.Ret}, nil
}
