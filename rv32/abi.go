package rv32

import (
	"fmt"

	"github.com/colorfulnotion/rv32emu/log"
	"github.com/colorfulnotion/rv32emu/rv32/rvtypes"
	"github.com/colorfulnotion/rv32emu/rverrors"
)

type LocationKind uint8

const (
	LocRegister LocationKind = iota
	LocStack
)

// AbiLocation is where one 32-bit word of an argument or result lives.
// Stack offsets of arguments are relative to the callee's sp; stack
// offsets of results are relative to the return buffer.
type AbiLocation struct {
	Kind     LocationKind
	Register uint8
	Offset   uint32
}

func (l AbiLocation) String() string {
	if l.Kind == LocRegister {
		return rvtypes.RegName(int(l.Register))
	}
	return fmt.Sprintf("stack+%d", l.Offset)
}

// CallLayout is the register/stack assignment for one signature.
type CallLayout struct {
	Args    [][]AbiLocation // per argument, one location per word
	Results [][]AbiLocation // per result, one location per word
	// UsesSret is set when results need more than a0/a1. The caller then
	// passes a return buffer address in a0 and explicit arguments shift
	// right by one register.
	UsesSret      bool
	SretBytes     uint32
	StackArgWords int
}

func wordLoc(i int) AbiLocation {
	if i < rvtypes.NumArgRegs {
		return AbiLocation{Kind: LocRegister, Register: uint8(rvtypes.RegA0 + i)}
	}
	return AbiLocation{Kind: LocStack, Offset: uint32(i-rvtypes.NumArgRegs) * rvtypes.WordSize}
}

// PlanCall assigns locations. Values are flattened to words, 64-bit ones
// low word first. Argument words fill a0..a7 then the stack upward from
// the callee's sp. Up to two result words come back in a0/a1; with three
// or more, words 0 and 1 still come back in a0/a1 and word k >= 2 is read
// from the return buffer at 4*(k-2).
func PlanCall(args, results []ValueKind) CallLayout {
	var layout CallLayout

	total := 0
	for _, k := range results {
		total += k.Words()
	}
	word := 0
	if total > rvtypes.NumRetRegs {
		layout.UsesSret = true
		layout.SretBytes = uint32(total-rvtypes.NumRetRegs) * rvtypes.WordSize
		word = 1
	}

	for _, k := range args {
		locs := make([]AbiLocation, k.Words())
		for i := range locs {
			locs[i] = wordLoc(word)
			word++
		}
		layout.Args = append(layout.Args, locs)
	}
	if word > rvtypes.NumArgRegs {
		layout.StackArgWords = word - rvtypes.NumArgRegs
	}

	rw := 0
	for _, k := range results {
		locs := make([]AbiLocation, k.Words())
		for i := range locs {
			if rw < rvtypes.NumRetRegs {
				locs[i] = AbiLocation{Kind: LocRegister, Register: uint8(rvtypes.RegA0 + rw)}
			} else {
				locs[i] = AbiLocation{Kind: LocStack, Offset: uint32(rw-rvtypes.NumRetRegs) * rvtypes.WordSize}
			}
			rw++
		}
		layout.Results = append(layout.Results, locs)
	}
	return layout
}

// callFrame is the memory the caller set up for one invocation.
type callFrame struct {
	sp   uint32
	sret uint32
}

// marshalArgs writes args into registers and the stack below the stack
// top, reserving the return buffer first when the layout needs one.
func (s *State) marshalArgs(layout CallLayout, args []Value) (callFrame, error) {
	if len(args) != len(layout.Args) {
		return callFrame{}, fmt.Errorf("%d arguments for %d-argument layout: %w", len(args), len(layout.Args), rverrors.ErrAbiMismatch)
	}
	align := uint64(rvtypes.StackAlign)
	sretArea := (uint64(layout.SretBytes) + align - 1) &^ (align - 1)
	argArea := (uint64(layout.StackArgWords)*rvtypes.WordSize + align - 1) &^ (align - 1)
	if need := sretArea + argArea; need >= uint64(s.stackTop)-uint64(s.Mem.RAMBase()) {
		return callFrame{}, fmt.Errorf("call frame of %d bytes below sp=0x%08x: %w", need, s.stackTop, rverrors.ErrAbiOverflow)
	}
	var frame callFrame
	frame.sret = s.stackTop - uint32(sretArea)
	frame.sp = frame.sret - uint32(argArea)

	if layout.UsesSret {
		if err := s.Mem.WriteBytes(frame.sret, make([]byte, layout.SretBytes)); err != nil {
			return callFrame{}, err
		}
		s.Regs.Write(rvtypes.RegA0, frame.sret)
	}
	for i, v := range args {
		words := v.Words()
		if len(words) != len(layout.Args[i]) {
			return callFrame{}, fmt.Errorf("argument %d is %s, layout expects %d words: %w", i, v.Kind, len(layout.Args[i]), rverrors.ErrAbiMismatch)
		}
		for j, loc := range layout.Args[i] {
			if loc.Kind == LocRegister {
				s.Regs.Write(loc.Register, words[j])
				continue
			}
			if err := s.Mem.Store32(frame.sp+loc.Offset, words[j]); err != nil {
				return callFrame{}, fmt.Errorf("argument %d word %d: %w", i, j, err)
			}
		}
	}
	s.Regs.Write(rvtypes.RegSP, frame.sp)
	log.Debug(log.AbiModule, "marshal", "args", len(args), "stackWords", layout.StackArgWords, "sret", layout.UsesSret, "sp", fmt.Sprintf("0x%08x", frame.sp))
	return frame, nil
}

// unmarshalResults reads typed results after the callee returned.
func (s *State) unmarshalResults(layout CallLayout, kinds []ValueKind, frame callFrame) ([]Value, error) {
	out := make([]Value, 0, len(kinds))
	for i, k := range kinds {
		locs := layout.Results[i]
		words := make([]uint32, len(locs))
		for j, loc := range locs {
			if loc.Kind == LocRegister {
				words[j] = s.Regs.Read(loc.Register)
				continue
			}
			w, err := s.Mem.Load32(frame.sret + loc.Offset)
			if err != nil {
				return nil, fmt.Errorf("result %d word %d: %w", i, j, err)
			}
			words[j] = w
		}
		out = append(out, valueFromWords(k, words))
	}
	log.Debug(log.AbiModule, "unmarshal", "results", len(out), "sret", layout.UsesSret)
	return out, nil
}
