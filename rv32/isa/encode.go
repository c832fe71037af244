package isa

import (
	"encoding/binary"
	"fmt"
)

// Field-level encoders. Register and funct arguments are masked to their
// field widths; immediates are truncated to the bits the format carries.

func EncodeR(opcode, rd, funct3, rs1, rs2, funct7 uint32) uint32 {
	return (funct7&0x7f)<<25 | (rs2&0x1f)<<20 | (rs1&0x1f)<<15 | (funct3&0x7)<<12 | (rd&0x1f)<<7 | opcode&0x7f
}

func EncodeI(opcode, rd, funct3, rs1 uint32, imm int32) uint32 {
	return (uint32(imm)&0xfff)<<20 | (rs1&0x1f)<<15 | (funct3&0x7)<<12 | (rd&0x1f)<<7 | opcode&0x7f
}

func EncodeS(opcode, funct3, rs1, rs2 uint32, imm int32) uint32 {
	u := uint32(imm)
	return ((u>>5)&0x7f)<<25 | (rs2&0x1f)<<20 | (rs1&0x1f)<<15 | (funct3&0x7)<<12 | (u&0x1f)<<7 | opcode&0x7f
}

func EncodeB(opcode, funct3, rs1, rs2 uint32, imm int32) uint32 {
	u := uint32(imm)
	return ((u>>12)&1)<<31 | ((u>>5)&0x3f)<<25 | (rs2&0x1f)<<20 | (rs1&0x1f)<<15 |
		(funct3&0x7)<<12 | ((u>>1)&0xf)<<8 | ((u>>11)&1)<<7 | opcode&0x7f
}

func EncodeU(opcode, rd uint32, imm int32) uint32 {
	return uint32(imm)&0xfffff000 | (rd&0x1f)<<7 | opcode&0x7f
}

func EncodeJ(opcode, rd uint32, imm int32) uint32 {
	u := uint32(imm)
	return ((u>>20)&1)<<31 | ((u>>1)&0x3ff)<<21 | ((u>>11)&1)<<20 | ((u>>12)&0xff)<<12 | (rd&0x1f)<<7 | opcode&0x7f
}

// Mnemonic helpers for the common base, M and A instructions.

func Lui(rd uint32, imm int32) uint32   { return EncodeU(opcLui, rd, imm) }
func Auipc(rd uint32, imm int32) uint32 { return EncodeU(opcAuipc, rd, imm) }
func Jal(rd uint32, off int32) uint32   { return EncodeJ(opcJal, rd, off) }
func Jalr(rd, rs1 uint32, imm int32) uint32 {
	return EncodeI(opcJalr, rd, 0, rs1, imm)
}

func Beq(rs1, rs2 uint32, off int32) uint32  { return EncodeB(opcBranch, 0, rs1, rs2, off) }
func Bne(rs1, rs2 uint32, off int32) uint32  { return EncodeB(opcBranch, 1, rs1, rs2, off) }
func Blt(rs1, rs2 uint32, off int32) uint32  { return EncodeB(opcBranch, 4, rs1, rs2, off) }
func Bge(rs1, rs2 uint32, off int32) uint32  { return EncodeB(opcBranch, 5, rs1, rs2, off) }
func Bltu(rs1, rs2 uint32, off int32) uint32 { return EncodeB(opcBranch, 6, rs1, rs2, off) }
func Bgeu(rs1, rs2 uint32, off int32) uint32 { return EncodeB(opcBranch, 7, rs1, rs2, off) }

func Lb(rd, rs1 uint32, imm int32) uint32  { return EncodeI(opcLoad, rd, 0, rs1, imm) }
func Lh(rd, rs1 uint32, imm int32) uint32  { return EncodeI(opcLoad, rd, 1, rs1, imm) }
func Lw(rd, rs1 uint32, imm int32) uint32  { return EncodeI(opcLoad, rd, 2, rs1, imm) }
func Lbu(rd, rs1 uint32, imm int32) uint32 { return EncodeI(opcLoad, rd, 4, rs1, imm) }
func Lhu(rd, rs1 uint32, imm int32) uint32 { return EncodeI(opcLoad, rd, 5, rs1, imm) }
func Sb(rs2, rs1 uint32, imm int32) uint32 { return EncodeS(opcStore, 0, rs1, rs2, imm) }
func Sh(rs2, rs1 uint32, imm int32) uint32 { return EncodeS(opcStore, 1, rs1, rs2, imm) }
func Sw(rs2, rs1 uint32, imm int32) uint32 { return EncodeS(opcStore, 2, rs1, rs2, imm) }

func Addi(rd, rs1 uint32, imm int32) uint32  { return EncodeI(opcOpImm, rd, 0, rs1, imm) }
func Slti(rd, rs1 uint32, imm int32) uint32  { return EncodeI(opcOpImm, rd, 2, rs1, imm) }
func Sltiu(rd, rs1 uint32, imm int32) uint32 { return EncodeI(opcOpImm, rd, 3, rs1, imm) }
func Xori(rd, rs1 uint32, imm int32) uint32  { return EncodeI(opcOpImm, rd, 4, rs1, imm) }
func Ori(rd, rs1 uint32, imm int32) uint32   { return EncodeI(opcOpImm, rd, 6, rs1, imm) }
func Andi(rd, rs1 uint32, imm int32) uint32  { return EncodeI(opcOpImm, rd, 7, rs1, imm) }
func Slli(rd, rs1, sh uint32) uint32         { return EncodeI(opcOpImm, rd, 1, rs1, int32(sh&0x1f)) }
func Srli(rd, rs1, sh uint32) uint32         { return EncodeI(opcOpImm, rd, 5, rs1, int32(sh&0x1f)) }
func Srai(rd, rs1, sh uint32) uint32 {
	return EncodeI(opcOpImm, rd, 5, rs1, int32(0x400|sh&0x1f))
}

func Add(rd, rs1, rs2 uint32) uint32  { return EncodeR(opcOp, rd, 0, rs1, rs2, 0x00) }
func Sub(rd, rs1, rs2 uint32) uint32  { return EncodeR(opcOp, rd, 0, rs1, rs2, 0x20) }
func Sll(rd, rs1, rs2 uint32) uint32  { return EncodeR(opcOp, rd, 1, rs1, rs2, 0x00) }
func Slt(rd, rs1, rs2 uint32) uint32  { return EncodeR(opcOp, rd, 2, rs1, rs2, 0x00) }
func Sltu(rd, rs1, rs2 uint32) uint32 { return EncodeR(opcOp, rd, 3, rs1, rs2, 0x00) }
func Xor(rd, rs1, rs2 uint32) uint32  { return EncodeR(opcOp, rd, 4, rs1, rs2, 0x00) }
func Srl(rd, rs1, rs2 uint32) uint32  { return EncodeR(opcOp, rd, 5, rs1, rs2, 0x00) }
func Sra(rd, rs1, rs2 uint32) uint32  { return EncodeR(opcOp, rd, 5, rs1, rs2, 0x20) }
func Or(rd, rs1, rs2 uint32) uint32   { return EncodeR(opcOp, rd, 6, rs1, rs2, 0x00) }
func And(rd, rs1, rs2 uint32) uint32  { return EncodeR(opcOp, rd, 7, rs1, rs2, 0x00) }

func Mul(rd, rs1, rs2 uint32) uint32    { return EncodeR(opcOp, rd, 0, rs1, rs2, 0x01) }
func Mulh(rd, rs1, rs2 uint32) uint32   { return EncodeR(opcOp, rd, 1, rs1, rs2, 0x01) }
func Mulhsu(rd, rs1, rs2 uint32) uint32 { return EncodeR(opcOp, rd, 2, rs1, rs2, 0x01) }
func Mulhu(rd, rs1, rs2 uint32) uint32  { return EncodeR(opcOp, rd, 3, rs1, rs2, 0x01) }
func Div(rd, rs1, rs2 uint32) uint32    { return EncodeR(opcOp, rd, 4, rs1, rs2, 0x01) }
func Divu(rd, rs1, rs2 uint32) uint32   { return EncodeR(opcOp, rd, 5, rs1, rs2, 0x01) }
func Rem(rd, rs1, rs2 uint32) uint32    { return EncodeR(opcOp, rd, 6, rs1, rs2, 0x01) }
func Remu(rd, rs1, rs2 uint32) uint32   { return EncodeR(opcOp, rd, 7, rs1, rs2, 0x01) }

func Fence() uint32  { return 0x0ff0000f }
func Ecall() uint32  { return 0x00000073 }
func Ebreak() uint32 { return 0x00100073 }

func Csrrs(rd, csr, rs1 uint32) uint32 {
	return EncodeI(opcSystem, rd, 2, rs1, int32(csr&0xfff))
}

// Amo encodes an A-extension word operation; funct5 selects the operation.
func Amo(funct5, rd, rs1, rs2 uint32) uint32 {
	return EncodeR(opcAmo, rd, 2, rs1, rs2, funct5<<2)
}

func LrW(rd, rs1 uint32) uint32          { return Amo(0x02, rd, rs1, 0) }
func ScW(rd, rs1, rs2 uint32) uint32     { return Amo(0x03, rd, rs1, rs2) }
func AmoAddW(rd, rs1, rs2 uint32) uint32 { return Amo(0x00, rd, rs1, rs2) }
func AmoSwapW(rd, rs1, rs2 uint32) uint32 {
	return Amo(0x01, rd, rs1, rs2)
}

// Compressed encoders for the forms tests and tools emit.

func CAddi(rd uint32, imm int32) uint16 {
	u := uint32(imm)
	return uint16(0x1 | ((u>>5)&1)<<12 | (rd&0x1f)<<7 | (u&0x1f)<<2)
}

func CLi(rd uint32, imm int32) uint16 {
	return CAddi(rd, imm) | 0x4000
}

func CMv(rd, rs2 uint32) uint16 {
	return uint16(0x8002 | (rd&0x1f)<<7 | (rs2&0x1f)<<2)
}

func CAdd(rd, rs2 uint32) uint16 {
	return uint16(0x9002 | (rd&0x1f)<<7 | (rs2&0x1f)<<2)
}

func CJr(rs1 uint32) uint16 {
	return uint16(0x8002 | (rs1&0x1f)<<7)
}

func CEbreak() uint16 { return 0x9002 }
func CNop() uint16    { return 0x0001 }

func CLwsp(rd uint32, off uint32) uint16 {
	return uint16(0x4002 | ((off>>5)&1)<<12 | (rd&0x1f)<<7 | ((off>>2)&0x7)<<4 | ((off>>6)&0x3)<<2)
}

func CSwsp(rs2 uint32, off uint32) uint16 {
	return uint16(0xc002 | ((off>>2)&0xf)<<9 | ((off>>6)&0x3)<<7 | (rs2&0x1f)<<2)
}

func CJ(off int32) uint16 {
	u := uint32(off)
	return uint16(0xa001 | ((u>>11)&1)<<12 | ((u>>4)&1)<<11 | ((u>>8)&3)<<9 | ((u>>10)&1)<<8 |
		((u>>6)&1)<<7 | ((u>>7)&1)<<6 | ((u>>1)&7)<<3 | ((u>>5)&1)<<2)
}

// Program assembles a flat little-endian code image from encoded words
// and halfwords. Labels are resolved by the caller via Len.
type Program struct {
	buf []byte
}

func NewProgram() *Program {
	return &Program{}
}

// Emit appends 32-bit instruction words.
func (p *Program) Emit(words ...uint32) *Program {
	for _, w := range words {
		p.buf = binary.LittleEndian.AppendUint32(p.buf, w)
	}
	return p
}

// EmitC appends 16-bit compressed instructions.
func (p *Program) EmitC(halves ...uint16) *Program {
	for _, h := range halves {
		p.buf = binary.LittleEndian.AppendUint16(p.buf, h)
	}
	return p
}

// Li loads an arbitrary 32-bit constant with lui+addi, or addi alone when
// the value fits in 12 signed bits.
func (p *Program) Li(rd uint32, v int32) *Program {
	if v >= -2048 && v < 2048 {
		return p.Emit(Addi(rd, 0, v))
	}
	lo := v << 20 >> 20
	hi := (v - lo)
	return p.Emit(Lui(rd, hi), Addi(rd, rd, lo))
}

// Ret appends jalr zero, 0(ra).
func (p *Program) Ret() *Program {
	return p.Emit(Jalr(0, 1, 0))
}

// Len is the current byte length, i.e. the offset of the next instruction.
func (p *Program) Len() int {
	return len(p.buf)
}

func (p *Program) Bytes() []byte {
	out := make([]byte, len(p.buf))
	copy(out, p.buf)
	return out
}

func (p *Program) String() string {
	return fmt.Sprintf("Program(%d bytes)", len(p.buf))
}
