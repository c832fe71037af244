package rv32

import (
	"math"

	"github.com/colorfulnotion/rv32emu/rv32/isa"
)

func aluImm(op isa.Op, a, imm uint32) uint32 {
	switch op {
	case isa.ADDI:
		return a + imm
	case isa.SLTI:
		return b2u(int32(a) < int32(imm))
	case isa.SLTIU:
		return b2u(a < imm)
	case isa.XORI:
		return a ^ imm
	case isa.ORI:
		return a | imm
	case isa.ANDI:
		return a & imm
	case isa.SLLI:
		return a << (imm & 31)
	case isa.SRLI:
		return a >> (imm & 31)
	case isa.SRAI:
		return uint32(int32(a) >> (imm & 31))
	}
	return 0
}

func aluReg(op isa.Op, a, b uint32) uint32 {
	switch op {
	case isa.ADD:
		return a + b
	case isa.SUB:
		return a - b
	case isa.SLL:
		return a << (b & 31)
	case isa.SLT:
		return b2u(int32(a) < int32(b))
	case isa.SLTU:
		return b2u(a < b)
	case isa.XOR:
		return a ^ b
	case isa.SRL:
		return a >> (b & 31)
	case isa.SRA:
		return uint32(int32(a) >> (b & 31))
	case isa.OR:
		return a | b
	case isa.AND:
		return a & b
	}
	return 0
}

// mulDiv implements the M extension. Division by zero and signed overflow
// do not trap: x/0 is all ones, x%0 is x, MinInt32/-1 is MinInt32 with
// remainder 0.
func mulDiv(op isa.Op, a, b uint32) uint32 {
	switch op {
	case isa.MUL:
		return a * b
	case isa.MULH:
		return uint32(uint64(int64(int32(a))*int64(int32(b))) >> 32)
	case isa.MULHSU:
		return uint32(uint64(int64(int32(a))*int64(b)) >> 32)
	case isa.MULHU:
		return uint32((uint64(a) * uint64(b)) >> 32)
	case isa.DIV:
		switch {
		case b == 0:
			return math.MaxUint32
		case int32(a) == math.MinInt32 && int32(b) == -1:
			return a
		}
		return uint32(int32(a) / int32(b))
	case isa.DIVU:
		if b == 0 {
			return math.MaxUint32
		}
		return a / b
	case isa.REM:
		switch {
		case b == 0:
			return a
		case int32(a) == math.MinInt32 && int32(b) == -1:
			return 0
		}
		return uint32(int32(a) % int32(b))
	case isa.REMU:
		if b == 0 {
			return a
		}
		return a % b
	}
	return 0
}

func b2u(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
