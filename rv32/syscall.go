package rv32

import (
	"context"
	"errors"
	"fmt"

	"github.com/colorfulnotion/rv32emu/log"
	"github.com/colorfulnotion/rv32emu/rv32/rvtypes"
	"github.com/colorfulnotion/rv32emu/rverrors"
)

// SyscallRequest is one host-bound request raised by ecall. It is a value
// type; handlers receive a copy.
type SyscallRequest struct {
	Number uint32
	Args   [rvtypes.MaxSyscallArgs]uint32
	PC     uint32 // address of the ecall
}

func (r *SyscallRequest) String() string {
	return fmt.Sprintf("%s(%d) args=%08x pc=0x%08x", rvtypes.SyscallName(r.Number), r.Number, r.Args, r.PC)
}

// GuestMemory is the view of guest memory a syscall handler gets. Pointer
// arguments must be resolved through it; there is no shared address space.
type GuestMemory interface {
	ReadBytes(addr, n uint32) ([]byte, error)
	WriteBytes(addr uint32, data []byte) error
}

// SyscallReply carries the words written back to a0 (and a1). A nil Ret
// leaves the registers untouched.
type SyscallReply struct {
	Ret []uint32
}

// Reply builds a SyscallReply writing ret to a0, a1, ...
func Reply(ret ...uint32) SyscallReply {
	return SyscallReply{Ret: ret}
}

// SyscallHandler answers guest syscalls. Errors never abort the guest:
// they are reported back through a0 as negative codes.
type SyscallHandler interface {
	HandleSyscall(ctx context.Context, mem GuestMemory, req SyscallRequest) (SyscallReply, error)
}

// SyscallHandlerFunc adapts a function to SyscallHandler.
type SyscallHandlerFunc func(ctx context.Context, mem GuestMemory, req SyscallRequest) (SyscallReply, error)

func (f SyscallHandlerFunc) HandleSyscall(ctx context.Context, mem GuestMemory, req SyscallRequest) (SyscallReply, error) {
	return f(ctx, mem, req)
}

// raiseSyscall packages the request from the configured registers.
func (s *State) raiseSyscall(pc uint32) *SyscallRequest {
	req := &SyscallRequest{PC: pc}
	first := uint8(rvtypes.RegA0)
	if s.cfg.SyscallConvention == NumberInA0 {
		req.Number = s.Regs.Read(rvtypes.RegA0)
		first = rvtypes.RegA1
	} else {
		req.Number = s.Regs.Read(rvtypes.RegA7)
	}
	for i := range req.Args {
		req.Args[i] = s.Regs.Read(first + uint8(i))
	}
	return req
}

// ErrorCode maps a handler error to the negative code the guest sees.
func ErrorCode(err error) int32 {
	var fault *MemoryFault
	switch {
	case errors.Is(err, rverrors.ErrNotImplemented):
		return rvtypes.ResultENOSYS
	case errors.Is(err, rverrors.ErrBadSyscallArgument), errors.As(err, &fault):
		return rvtypes.ResultEFAULT
	case errors.Is(err, rverrors.ErrAbiMismatch):
		return rvtypes.ResultEINVAL
	}
	return rvtypes.ResultEIO
}

// Answer writes a reply into the result registers. The next Step resumes
// after the ecall.
func (s *State) Answer(reply SyscallReply) {
	for i, w := range reply.Ret {
		if i >= rvtypes.NumRetRegs {
			break
		}
		s.Regs.Write(rvtypes.RegA0+uint8(i), w)
	}
	s.pending = nil
}

// AnswerError reports err to the guest as a negative code in a0.
func (s *State) AnswerError(err error) {
	s.Answer(Reply(uint32(ErrorCode(err))))
}

// dispatch hands req to h and writes the reply. It returns the exit code
// and true when req is the exit syscall, which is handled here and never
// reaches h.
func (s *State) dispatch(ctx context.Context, h SyscallHandler, req *SyscallRequest) (int32, bool) {
	if req.Number == rvtypes.SysExit {
		s.pending = nil
		log.Debug(log.SyscallModule, "guest exit", "code", int32(req.Args[0]), "pc", fmt.Sprintf("0x%08x", req.PC))
		return int32(req.Args[0]), true
	}
	if h == nil {
		s.AnswerError(fmt.Errorf("%s: %w", rvtypes.SyscallName(req.Number), rverrors.ErrNotImplemented))
		return 0, false
	}
	reply, err := h.HandleSyscall(ctx, s.Mem, *req)
	if err != nil {
		code := ErrorCode(err)
		log.Debug(log.SyscallModule, "syscall failed", "num", req.Number, "name", rvtypes.SyscallName(req.Number), "code", code, "err", err)
		s.Answer(Reply(uint32(code)))
		return 0, false
	}
	log.Trace(log.SyscallModule, "syscall", "num", req.Number, "name", rvtypes.SyscallName(req.Number), "ret", reply.Ret)
	s.Answer(reply)
	return 0, false
}

// ServePending answers the syscall raised by the last Step through h. It
// reports true when that was the exit syscall, which halts the state.
func (s *State) ServePending(ctx context.Context, h SyscallHandler) bool {
	if s.pending == nil {
		return false
	}
	code, exited := s.dispatch(ctx, h, s.pending)
	if exited {
		s.exitCode = code
		s.halt(HaltExited)
	}
	return exited
}
