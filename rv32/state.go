package rv32

import (
	"context"
	"fmt"

	"github.com/colorfulnotion/rv32emu/log"
	"github.com/colorfulnotion/rv32emu/rv32/isa"
	"github.com/colorfulnotion/rv32emu/rv32/rvtypes"
	"github.com/colorfulnotion/rv32emu/rverrors"
)

// State is one emulated hart with its memory. It is mutated in place by
// every step and has no internal locking: a State belongs to exactly one
// caller at a time.
type State struct {
	Regs RegisterFile
	Mem  *Memory

	cfg       Config
	ext       isa.Extensions
	stackTop  uint32
	retired   uint64
	remaining uint64

	halted     bool
	haltReason HaltReason
	exitCode   int32
	returned   []Value
	pending    *SyscallRequest

	reserved    bool
	reservation uint32

	// set by the executor when a store lands, for tracers
	lastStore   uint32
	lastStoreSz uint32
}

// NewState builds a State from img. Code and RAM are copied, so one Image
// can seed many independent states.
func NewState(img *Image, cfg Config) (*State, error) {
	if err := img.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	code := make([]byte, len(img.Code))
	copy(code, img.Code)
	ram := make([]byte, img.RAMSize)
	copy(ram, img.RAM)

	s := &State{
		Mem: NewMemory(img.CodeBase, code, img.RAMBase, ram),
		cfg: cfg,
		ext: cfg.Extensions,
	}
	top := cfg.StackTop
	if top == 0 {
		top = uint32(img.RAMEnd() - uint64(cfg.StackMargin))
	}
	top = rvtypes.AlignDown(top, rvtypes.StackAlign)
	if top <= img.RAMBase || uint64(top) > img.RAMEnd() {
		return nil, fmt.Errorf("stack top 0x%08x outside ram: %w", top, rverrors.ErrInvalidImage)
	}
	s.stackTop = top
	s.remaining = cfg.Budget

	s.Regs.PC = img.Entry
	s.Regs.Write(rvtypes.RegSP, top)
	s.Regs.Write(rvtypes.RegRA, rvtypes.ReturnSentinel)
	return s, nil
}

func (s *State) Config() Config { return s.cfg }
func (s *State) Extensions() isa.Extensions { return s.ext }
func (s *State) StackTop() uint32 { return s.stackTop }
func (s *State) Retired() uint64 { return s.retired }
func (s *State) Halted() bool { return s.halted }
func (s *State) Pending() *SyscallRequest { return s.pending }
func (s *State) SetTracer(t Tracer) { s.cfg.Tracer = t }
func (s *State) ExitCode() int32 { return s.exitCode }
func (s *State) HaltReason() (HaltReason, bool) { return s.haltReason, s.halted }

// Remaining returns the unspent budget and whether a budget is set.
func (s *State) Remaining() (uint64, bool) {
	return s.remaining, s.cfg.Budget != 0
}

// SetBudget replaces the remaining budget; 0 removes the cap. A state
// halted on its budget becomes runnable again.
func (s *State) SetBudget(n uint64) {
	s.cfg.Budget = n
	s.remaining = n
	if s.halted && s.haltReason == HaltBudgetExceeded {
		s.halted = false
	}
}

func (s *State) halt(reason HaltReason) StepResult {
	s.halted = true
	s.haltReason = reason
	s.returned = nil
	return s.haltResult()
}

func (s *State) haltResult() StepResult {
	res := StepResult{Kind: StepHalted, Halt: s.haltReason, ExitCode: s.exitCode}
	if s.haltReason == HaltReturned {
		res.Values = s.returned
	}
	return res
}

// clearHalt makes a returned or exited state runnable for a new call.
func (s *State) clearHalt() {
	if s.halted && s.haltReason != HaltBudgetExceeded {
		s.halted = false
	}
}

// Step executes one instruction under the budget. A halted state keeps
// returning its halt. When a syscall was raised by the previous step the
// host answers it (Answer, or by writing registers) before calling Step
// again.
func (s *State) Step() StepResult {
	if s.halted {
		return s.haltResult()
	}
	s.pending = nil
	if s.cfg.Budget != 0 && s.remaining == 0 {
		log.Debug(log.RV32Module, "budget exhausted", "retired", s.retired, "pc", fmt.Sprintf("0x%08x", s.Regs.PC))
		return s.halt(HaltBudgetExceeded)
	}

	pc := s.Regs.PC
	ins, res := s.fetch(pc)
	if res.Kind == StepContinue {
		res = s.execute(pc, ins)
	}
	if res.Kind == StepContinue || res.Kind == StepSyscall {
		s.retire()
	}
	if res.Kind == StepSyscall {
		s.pending = res.Syscall
	}
	if s.cfg.Tracer != nil {
		s.emit(pc, ins, res)
	}
	s.lastStoreSz = 0
	if res.Kind == StepTrap && log.IsModuleEnabled(log.RV32Module) {
		log.Debug(log.RV32Module, "trap", "pc", fmt.Sprintf("0x%08x", pc), "reason", res.Trap.Reason, "err", res.Trap.Err)
	}
	return res
}

func (s *State) retire() {
	s.retired++
	if s.cfg.Budget != 0 {
		s.remaining--
	}
}

// fetch reads and decodes the instruction at pc, trapping on fetch faults
// and undecodable encodings.
func (s *State) fetch(pc uint32) (isa.Instruction, StepResult) {
	lo, err := s.Mem.Fetch16(pc)
	if err != nil {
		return isa.Instruction{}, trapResult(TrapMemoryFault, pc, pc, err)
	}
	word := uint32(lo)
	if lo&0x3 == 0x3 {
		hi, err := s.Mem.Fetch16(pc + 2)
		if err != nil {
			return isa.Instruction{}, trapResult(TrapMemoryFault, pc, pc+2, err)
		}
		word |= uint32(hi) << 16
	}
	ins, err := isa.Decode(word)
	if err != nil {
		return ins, trapResult(TrapIllegalInstruction, pc, pc, err)
	}
	return ins, continueResult()
}

func (s *State) emit(pc uint32, ins isa.Instruction, res StepResult) {
	ev := &StepEvent{
		Index:       s.retired,
		PC:          pc,
		Instruction: ins,
		Kind:        res.Kind,
		Syscall:     res.Syscall,
		Trap:        res.Trap,
	}
	if res.Kind != StepTrap {
		ev.Index--
		if writesRd(ins) && ins.Rd != 0 {
			ev.RdWritten, ev.Rd, ev.RdValue = true, ins.Rd, s.Regs.Read(ins.Rd)
		}
		if s.lastStoreSz != 0 {
			data, err := s.Mem.ReadBytes(s.lastStore, s.lastStoreSz)
			if err == nil {
				ev.MemWritten, ev.MemAddr, ev.MemData = true, s.lastStore, data
			}
		}
	}
	s.cfg.Tracer.TraceStep(ev)
}

func writesRd(ins isa.Instruction) bool {
	switch ins.Op.Format() {
	case isa.FormatS, isa.FormatB, isa.FormatNone:
		return false
	}
	return true
}

// RunUntilReturn steps until pc equals sentinel (Halted(Returned)) or a
// step yields anything other than Continue.
func (s *State) RunUntilReturn(sentinel uint32) StepResult {
	for {
		if s.halted {
			return s.haltResult()
		}
		if s.Regs.PC == sentinel {
			return s.halt(HaltReturned)
		}
		res := s.Step()
		if res.Kind != StepContinue {
			return res
		}
	}
}

// Run executes until a terminal result, answering syscalls through h. The
// exit syscall ends the run with Halted(Exited); returning to the initial
// ra ends it with Halted(Returned). ctx is checked at syscall boundaries.
func (s *State) Run(ctx context.Context, h SyscallHandler) StepResult {
	for {
		res := s.RunUntilReturn(rvtypes.ReturnSentinel)
		if res.Kind != StepSyscall {
			return res
		}
		if err := ctx.Err(); err != nil {
			log.Debug(log.RV32Module, "run cancelled", "err", err)
			return res
		}
		if code, exited := s.dispatch(ctx, h, res.Syscall); exited {
			s.exitCode = code
			return s.halt(HaltExited)
		}
	}
}
