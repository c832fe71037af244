package isa

import (
	"fmt"

	"github.com/colorfulnotion/rv32emu/rv32/rvtypes"
	"github.com/colorfulnotion/rv32emu/rverrors"
)

// Instruction is one decoded machine instruction.
type Instruction struct {
	Op    Op
	Rd    uint8
	Rs1   uint8
	Rs2   uint8
	Imm   int32 // sign-extended; CSR number for Zicsr ops
	Width uint8 // encoded bytes: 2 (compressed) or 4
	Raw   uint32
	Ext   Extensions // extension owning Op (D for double-precision FLOAT)
}

// Compressed reports whether the instruction came from a 16-bit encoding.
func (i Instruction) Compressed() bool {
	return i.Width == 2
}

// Requires returns every extension that must be active to execute i.
func (i Instruction) Requires() Extensions {
	ext := i.Ext
	if ext == 0 {
		ext = i.Op.Extension()
	}
	if i.Compressed() {
		ext |= ExtC
	}
	return ext
}

func (i Instruction) String() string {
	r := rvtypes.RegName
	prefix := ""
	if i.Compressed() {
		prefix = "c:"
	}
	name := prefix + i.Op.String()
	switch i.Op.Format() {
	case FormatR:
		return fmt.Sprintf("%s %s, %s, %s", name, r(int(i.Rd)), r(int(i.Rs1)), r(int(i.Rs2)))
	case FormatI:
		return fmt.Sprintf("%s %s, %s, %d", name, r(int(i.Rd)), r(int(i.Rs1)), i.Imm)
	case FormatLoad:
		return fmt.Sprintf("%s %s, %d(%s)", name, r(int(i.Rd)), i.Imm, r(int(i.Rs1)))
	case FormatS:
		return fmt.Sprintf("%s %s, %d(%s)", name, r(int(i.Rs2)), i.Imm, r(int(i.Rs1)))
	case FormatB:
		return fmt.Sprintf("%s %s, %s, %d", name, r(int(i.Rs1)), r(int(i.Rs2)), i.Imm)
	case FormatU:
		return fmt.Sprintf("%s %s, 0x%x", name, r(int(i.Rd)), uint32(i.Imm)>>12)
	case FormatJ:
		return fmt.Sprintf("%s %s, %d", name, r(int(i.Rd)), i.Imm)
	case FormatAMO:
		if i.Op == LR_W {
			return fmt.Sprintf("%s %s, (%s)", name, r(int(i.Rd)), r(int(i.Rs1)))
		}
		return fmt.Sprintf("%s %s, %s, (%s)", name, r(int(i.Rd)), r(int(i.Rs2)), r(int(i.Rs1)))
	case FormatCSR:
		return fmt.Sprintf("%s %s, 0x%03x, %s", name, r(int(i.Rd)), uint32(i.Imm), r(int(i.Rs1)))
	case FormatCSRI:
		return fmt.Sprintf("%s %s, 0x%03x, %d", name, r(int(i.Rd)), uint32(i.Imm), i.Rs1)
	}
	return name
}

// DecodeError reports a bit pattern that is not a recognized encoding.
type DecodeError struct {
	Raw    uint32
	Width  uint8
	Reason string
}

func (e *DecodeError) Error() string {
	if e.Width == 2 {
		return fmt.Sprintf("decode 0x%04x: %s", e.Raw, e.Reason)
	}
	return fmt.Sprintf("decode 0x%08x: %s", e.Raw, e.Reason)
}

func (e *DecodeError) Unwrap() error {
	return rverrors.ErrDecode
}

func illegal(raw uint32, width uint8, format string, args ...interface{}) (Instruction, error) {
	return Instruction{Raw: raw, Width: width}, &DecodeError{Raw: raw, Width: width, Reason: fmt.Sprintf(format, args...)}
}
