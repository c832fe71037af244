package isa

import (
	"errors"
	"testing"

	"github.com/colorfulnotion/rv32emu/rverrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode32(t *testing.T) {
	tests := []struct {
		name string
		word uint32
		want Instruction
	}{
		{"addi negative", 0xfff50513, Instruction{Op: ADDI, Rd: 10, Rs1: 10, Imm: -1}},
		{"addi max imm", 0x7ff00513, Instruction{Op: ADDI, Rd: 10, Imm: 2047}},
		{"addi min imm", 0x80000513, Instruction{Op: ADDI, Rd: 10, Imm: -2048}},
		{"lw", 0x00412503, Instruction{Op: LW, Rd: 10, Rs1: 2, Imm: 4}},
		{"sw", 0x00112623, Instruction{Op: SW, Rs1: 2, Rs2: 1, Imm: 12}},
		{"jal", 0x010000ef, Instruction{Op: JAL, Rd: 1, Imm: 16}},
		{"jal min offset", 0x8000006f, Instruction{Op: JAL, Imm: -1048576}},
		{"beq backwards", 0xfeb50ce3, Instruction{Op: BEQ, Rs1: 10, Rs2: 11, Imm: -8}},
		{"lui", 0x12345537, Instruction{Op: LUI, Rd: 10, Imm: 0x12345000}},
		{"lui sign bit", 0x80000537, Instruction{Op: LUI, Rd: 10, Imm: -0x80000000}},
		{"srai", 0x40355513, Instruction{Op: SRAI, Rd: 10, Rs1: 10, Imm: 3}},
		{"mul", 0x02b50533, Instruction{Op: MUL, Rd: 10, Rs1: 10, Rs2: 11}},
		{"div", 0x02b54533, Instruction{Op: DIV, Rd: 10, Rs1: 10, Rs2: 11}},
		{"ecall", 0x00000073, Instruction{Op: ECALL}},
		{"ebreak", 0x00100073, Instruction{Op: EBREAK}},
		{"rdcycle", 0xc0002573, Instruction{Op: CSRRS, Rd: 10, Imm: 0xc00}},
		{"lr.w", 0x1005a52f, Instruction{Op: LR_W, Rd: 10, Rs1: 11}},
		{"amoadd.w", 0x00c5a52f, Instruction{Op: AMOADD_W, Rd: 10, Rs1: 11, Rs2: 12}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Decode(tc.word)
			require.NoError(t, err)
			assert.Equal(t, tc.want.Op, got.Op)
			assert.Equal(t, tc.want.Rd, got.Rd, "rd")
			assert.Equal(t, tc.want.Rs1, got.Rs1, "rs1")
			assert.Equal(t, tc.want.Rs2, got.Rs2, "rs2")
			assert.Equal(t, tc.want.Imm, got.Imm, "imm")
			assert.Equal(t, uint8(4), got.Width)
			assert.Equal(t, tc.word, got.Raw)
		})
	}
}

func TestDecodeExtensionTagging(t *testing.T) {
	mul, err := Decode(0x02b50533)
	require.NoError(t, err)
	assert.Equal(t, ExtM, mul.Requires())

	flw, err := Decode(0x0005a007)
	require.NoError(t, err)
	assert.Equal(t, FLOAT, flw.Op)
	assert.Equal(t, ExtF, flw.Requires())

	faddd, err := Decode(0x02000053)
	require.NoError(t, err)
	assert.Equal(t, ExtD, faddd.Requires())

	cadd, err := Decode(0x952e)
	require.NoError(t, err)
	assert.Equal(t, ExtI|ExtC, cadd.Requires())
}

func TestDecodeCompressed(t *testing.T) {
	tests := []struct {
		name string
		half uint16
		want Instruction
	}{
		{"c.addi4spn", 0x0808, Instruction{Op: ADDI, Rd: 10, Rs1: 2, Imm: 16}},
		{"c.lw", 0x41c8, Instruction{Op: LW, Rd: 10, Rs1: 11, Imm: 4}},
		{"c.li", 0x557d, Instruction{Op: ADDI, Rd: 10, Imm: -1}},
		{"c.lui", 0x6785, Instruction{Op: LUI, Rd: 15, Imm: 0x1000}},
		{"c.addi16sp", 0x7139, Instruction{Op: ADDI, Rd: 2, Rs1: 2, Imm: -64}},
		{"c.addi", 0x1101, Instruction{Op: ADDI, Rd: 2, Rs1: 2, Imm: -32}},
		{"c.nop", 0x0001, Instruction{Op: ADDI}},
		{"c.srai", 0x8509, Instruction{Op: SRAI, Rd: 10, Rs1: 10, Imm: 2}},
		{"c.sub", 0x8d0d, Instruction{Op: SUB, Rd: 10, Rs1: 10, Rs2: 11}},
		{"c.and", 0x8d6d, Instruction{Op: AND, Rd: 10, Rs1: 10, Rs2: 11}},
		{"c.beqz", 0xc501, Instruction{Op: BEQ, Rs1: 10, Imm: 8}},
		{"c.jal", 0x2001, Instruction{Op: JAL, Rd: 1}},
		{"c.slli", 0x050e, Instruction{Op: SLLI, Rd: 10, Rs1: 10, Imm: 3}},
		{"c.lwsp", 0x40b2, Instruction{Op: LW, Rd: 1, Rs1: 2, Imm: 12}},
		{"c.swsp", 0xc606, Instruction{Op: SW, Rs1: 2, Rs2: 1, Imm: 12}},
		{"c.jr", 0x8082, Instruction{Op: JALR, Rs1: 1}},
		{"c.mv", 0x852e, Instruction{Op: ADD, Rd: 10, Rs2: 11}},
		{"c.add", 0x952e, Instruction{Op: ADD, Rd: 10, Rs1: 10, Rs2: 11}},
		{"c.jalr", 0x9502, Instruction{Op: JALR, Rd: 1, Rs1: 10}},
		{"c.ebreak", 0x9002, Instruction{Op: EBREAK}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Decode(uint32(tc.half) | 0xdead0000)
			require.NoError(t, err)
			assert.Equal(t, tc.want.Op, got.Op)
			assert.Equal(t, tc.want.Rd, got.Rd, "rd")
			assert.Equal(t, tc.want.Rs1, got.Rs1, "rs1")
			assert.Equal(t, tc.want.Rs2, got.Rs2, "rs2")
			assert.Equal(t, tc.want.Imm, got.Imm, "imm")
			assert.True(t, got.Compressed())
			assert.Equal(t, uint32(tc.half), got.Raw)
		})
	}
}

func TestCompressedEncodersRoundTrip(t *testing.T) {
	for _, off := range []int32{-2048, -2, 2, 6, 1022, 2046} {
		ins, err := DecodeCompressed(CJ(off))
		require.NoError(t, err)
		assert.Equal(t, JAL, ins.Op)
		assert.Equal(t, off, ins.Imm, "c.j offset %d", off)
	}
	for _, off := range []uint32{0, 4, 60, 124, 252} {
		lw, err := DecodeCompressed(CLwsp(8, off))
		require.NoError(t, err)
		assert.Equal(t, int32(off), lw.Imm)
		sw, err := DecodeCompressed(CSwsp(8, off))
		require.NoError(t, err)
		assert.Equal(t, int32(off), sw.Imm)
	}
}

func TestDecodeIllegal(t *testing.T) {
	tests := []struct {
		name string
		word uint32
	}{
		{"all zero", 0x00000000},
		{"addi4spn zero imm", 0x0004},
		{"lwsp rd zero", 0x4002},
		{"slli shamt 32+", 0x150e},
		{"lui zero imm", 0x6781},
		{"subw on rv32", 0x9d0d},
		{"quadrant0 reserved", 0x8000},
		{"jr zero", 0x8002},
		{"jalr funct3", 0x00001067},
		{"48-bit prefix", 0xffffffff},
		{"bad opcode", 0x0000007b},
		{"mret", 0x30200073},
		{"lr.w with rs2", 0x10b5a52f},
		{"slli funct7", 0x02051513},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode(tc.word)
			require.Error(t, err)
			var de *DecodeError
			assert.True(t, errors.As(err, &de))
			assert.ErrorIs(t, err, rverrors.ErrDecode)
		})
	}
}

func TestProgramEncodesDecodable(t *testing.T) {
	p := NewProgram().Li(10, 0x12345678).Li(11, -5).Emit(Mul(10, 10, 11)).Ret()
	code := p.Bytes()
	require.Equal(t, 20, len(code))
	lines := DisassembleBytes(code, 0x1000)
	assert.Len(t, lines, 5)
	for _, l := range lines {
		assert.NotContains(t, l, ".word")
	}

	lui, err := Decode(uint32(code[0]) | uint32(code[1])<<8 | uint32(code[2])<<16 | uint32(code[3])<<24)
	require.NoError(t, err)
	addi, err := Decode(uint32(code[4]) | uint32(code[5])<<8 | uint32(code[6])<<16 | uint32(code[7])<<24)
	require.NoError(t, err)
	assert.Equal(t, int32(0x12345678), lui.Imm+addi.Imm)
}

func TestDisassemble(t *testing.T) {
	text, n := Disassemble(0x02b50533)
	assert.Equal(t, 4, n)
	assert.Contains(t, text, "mul")

	text, n = Disassemble(0x852e)
	assert.Equal(t, 2, n)
	assert.Equal(t, "c:add a0, zero, a1", text)

	text, n = Disassemble(0x0000007b)
	assert.Equal(t, 4, n)
	assert.Equal(t, ".word 0x0000007b", text)
}

func TestParseExtensions(t *testing.T) {
	ext, err := ParseExtensions("rv32imac_zicsr")
	require.NoError(t, err)
	assert.Equal(t, DefaultExtensions, ext)
	assert.Equal(t, "rv32imac_zicsr", ext.String())

	ext, err = ParseExtensions("IC")
	require.NoError(t, err)
	assert.True(t, ext.Has(ExtC))
	assert.False(t, ext.Has(ExtM))

	ext, err = ParseExtensions("imafd")
	require.NoError(t, err)
	assert.True(t, ext.Has(ExtF|ExtD))

	_, err = ParseExtensions("g")
	assert.Error(t, err)
	_, err = ParseExtensions("imac_zbb")
	assert.Error(t, err)
}
