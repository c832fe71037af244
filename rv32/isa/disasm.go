package isa

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/arch/riscv64/riscv64asm"
)

// Disassemble renders the instruction at the start of word as GNU
// assembler text. 32-bit encodings go through the x/arch RISC-V decoder,
// whose base and M/A/Zicsr encodings coincide with RV32. Compressed forms
// differ between RV32 and RV64 (c.jal, c.flw) so they are rendered from
// the local expansion.
func Disassemble(word uint32) (string, int) {
	ins, err := Decode(word)
	if err != nil {
		if word&0x3 != 0x3 {
			return fmt.Sprintf(".half 0x%04x", word&0xffff), 2
		}
		return fmt.Sprintf(".word 0x%08x", word), 4
	}
	if ins.Compressed() {
		return ins.String(), 2
	}
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], word)
	inst, err := riscv64asm.Decode(buf[:])
	if err != nil {
		return ins.String(), 4
	}
	return riscv64asm.GNUSyntax(inst), 4
}

// DisassembleBytes walks code from base and returns one line per
// instruction in "addr: bytes  text" form.
func DisassembleBytes(code []byte, base uint32) []string {
	var lines []string
	for off := 0; off+2 <= len(code); {
		var word uint32
		if off+4 <= len(code) {
			word = binary.LittleEndian.Uint32(code[off:])
		} else {
			word = uint32(binary.LittleEndian.Uint16(code[off:]))
		}
		text, n := Disassemble(word)
		if n == 4 && off+4 > len(code) {
			lines = append(lines, fmt.Sprintf("%08x: %04x      .half 0x%04x", base+uint32(off), word&0xffff, word&0xffff))
			break
		}
		if n == 2 {
			lines = append(lines, fmt.Sprintf("%08x: %04x      %s", base+uint32(off), word&0xffff, text))
		} else {
			lines = append(lines, fmt.Sprintf("%08x: %08x  %s", base+uint32(off), word, text))
		}
		off += n
	}
	return lines
}
