package rv32

import (
	"context"
	"fmt"

	"github.com/colorfulnotion/rv32emu/log"
	"github.com/colorfulnotion/rv32emu/rv32/rvtypes"
	"github.com/colorfulnotion/rv32emu/rverrors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/colorfulnotion/rv32emu/rv32"

// Driver invokes guest functions on a State, answering syscalls through
// its handler.
type Driver struct {
	state   *State
	handler SyscallHandler
	tracer  trace.Tracer
}

// NewDriver binds h to st. A nil handler answers every syscall except
// exit with ENOSYS.
func NewDriver(st *State, h SyscallHandler) *Driver {
	return &Driver{
		state:   st,
		handler: h,
		tracer:  otel.Tracer(tracerName),
	}
}

func (d *Driver) State() *State {
	return d.state
}

// Call invokes the function at entry with args and decodes results of
// the given kinds. It sets up the stack and a sentinel return address,
// then steps until the function returns to the sentinel. Traps come back
// as *Trap, budget exhaustion as *HaltError and the exit syscall as
// *ExitError. ctx is checked between syscalls. A syscall raised by a
// manual Step must be answered before the state can be called.
func (d *Driver) Call(ctx context.Context, entry uint32, args []Value, results []ValueKind) (vals []Value, err error) {
	ctx, span := d.tracer.Start(ctx, "rv32.Call", trace.WithAttributes(
		attribute.String("rv32.entry", fmt.Sprintf("0x%08x", entry)),
		attribute.Int("rv32.args", len(args)),
		attribute.Int("rv32.results", len(results)),
	))
	st := d.state
	startRetired := st.retired
	defer func() {
		span.SetAttributes(attribute.Int64("rv32.retired", int64(st.retired-startRetired)))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if st.pending != nil {
		return nil, fmt.Errorf("%s: %w", st.pending, rverrors.ErrSyscallPending)
	}
	st.clearHalt()
	layout := PlanCall(kindsOf(args), results)
	frame, err := st.marshalArgs(layout, args)
	if err != nil {
		return nil, err
	}
	st.Regs.Write(rvtypes.RegRA, rvtypes.ReturnSentinel)
	st.Regs.PC = entry
	log.Debug(log.RV32Module, "call", "entry", fmt.Sprintf("0x%08x", entry), "args", len(args), "results", len(results))

	for {
		res := st.RunUntilReturn(rvtypes.ReturnSentinel)
		switch res.Kind {
		case StepTrap:
			return nil, res.Trap
		case StepHalted:
			if res.Halt != HaltReturned {
				return nil, &HaltError{Reason: res.Halt, Retired: st.retired, PC: st.Regs.PC}
			}
			vals, err := st.unmarshalResults(layout, results, frame)
			if err != nil {
				return nil, err
			}
			st.returned = vals
			return vals, nil
		case StepSyscall:
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			span.AddEvent("syscall", trace.WithAttributes(attribute.Int64("rv32.syscall", int64(res.Syscall.Number))))
			if code, exited := st.dispatch(ctx, d.handler, res.Syscall); exited {
				st.exitCode = code
				st.halt(HaltExited)
				return nil, &ExitError{Code: code, PC: res.Syscall.PC}
			}
		}
	}
}

func kindsOf(vals []Value) []ValueKind {
	out := make([]ValueKind, len(vals))
	for i, v := range vals {
		out[i] = v.Kind
	}
	return out
}
