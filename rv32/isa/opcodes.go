package isa

// Op is the semantic operation of a decoded instruction. Compressed forms
// decode to the Op of the standard instruction they expand to.
type Op uint8

const (
	OpInvalid Op = iota

	// RV32I
	LUI
	AUIPC
	JAL
	JALR
	BEQ
	BNE
	BLT
	BGE
	BLTU
	BGEU
	LB
	LH
	LW
	LBU
	LHU
	SB
	SH
	SW
	ADDI
	SLTI
	SLTIU
	XORI
	ORI
	ANDI
	SLLI
	SRLI
	SRAI
	ADD
	SUB
	SLL
	SLT
	SLTU
	XOR
	SRL
	SRA
	OR
	AND
	FENCE
	FENCE_I
	ECALL
	EBREAK

	// M
	MUL
	MULH
	MULHSU
	MULHU
	DIV
	DIVU
	REM
	REMU

	// A
	LR_W
	SC_W
	AMOSWAP_W
	AMOADD_W
	AMOXOR_W
	AMOAND_W
	AMOOR_W
	AMOMIN_W
	AMOMAX_W
	AMOMINU_W
	AMOMAXU_W

	// Zicsr
	CSRRW
	CSRRS
	CSRRC
	CSRRWI
	CSRRSI
	CSRRCI

	// F/D: decoded for extension checks only
	FLOAT

	numOps
)

var opNames = [numOps]string{
	OpInvalid: "invalid",
	LUI:       "lui", AUIPC: "auipc", JAL: "jal", JALR: "jalr",
	BEQ: "beq", BNE: "bne", BLT: "blt", BGE: "bge", BLTU: "bltu", BGEU: "bgeu",
	LB: "lb", LH: "lh", LW: "lw", LBU: "lbu", LHU: "lhu",
	SB: "sb", SH: "sh", SW: "sw",
	ADDI: "addi", SLTI: "slti", SLTIU: "sltiu", XORI: "xori", ORI: "ori", ANDI: "andi",
	SLLI: "slli", SRLI: "srli", SRAI: "srai",
	ADD: "add", SUB: "sub", SLL: "sll", SLT: "slt", SLTU: "sltu",
	XOR: "xor", SRL: "srl", SRA: "sra", OR: "or", AND: "and",
	FENCE: "fence", FENCE_I: "fence.i", ECALL: "ecall", EBREAK: "ebreak",
	MUL: "mul", MULH: "mulh", MULHSU: "mulhsu", MULHU: "mulhu",
	DIV: "div", DIVU: "divu", REM: "rem", REMU: "remu",
	LR_W: "lr.w", SC_W: "sc.w", AMOSWAP_W: "amoswap.w", AMOADD_W: "amoadd.w",
	AMOXOR_W: "amoxor.w", AMOAND_W: "amoand.w", AMOOR_W: "amoor.w",
	AMOMIN_W: "amomin.w", AMOMAX_W: "amomax.w", AMOMINU_W: "amominu.w", AMOMAXU_W: "amomaxu.w",
	CSRRW: "csrrw", CSRRS: "csrrs", CSRRC: "csrrc",
	CSRRWI: "csrrwi", CSRRSI: "csrrsi", CSRRCI: "csrrci",
	FLOAT: "float",
}

func (op Op) String() string {
	if op >= numOps {
		return "invalid"
	}
	return opNames[op]
}

// Extension returns the extension an operation belongs to. FLOAT reports F;
// the decoded Instruction carries D when the encoding is double precision.
func (op Op) Extension() Extensions {
	switch {
	case op >= MUL && op <= REMU:
		return ExtM
	case op >= LR_W && op <= AMOMAXU_W:
		return ExtA
	case op >= CSRRW && op <= CSRRCI:
		return ExtZicsr
	case op == FLOAT:
		return ExtF
	default:
		return ExtI
	}
}

// Format is the operand shape used when rendering an instruction.
type Format uint8

const (
	FormatR Format = iota
	FormatI
	FormatLoad
	FormatS
	FormatB
	FormatU
	FormatJ
	FormatNone
	FormatAMO
	FormatCSR
	FormatCSRI
)

func (op Op) Format() Format {
	switch op {
	case LUI, AUIPC:
		return FormatU
	case JAL:
		return FormatJ
	case JALR, LB, LH, LW, LBU, LHU:
		return FormatLoad
	case BEQ, BNE, BLT, BGE, BLTU, BGEU:
		return FormatB
	case SB, SH, SW:
		return FormatS
	case ADDI, SLTI, SLTIU, XORI, ORI, ANDI, SLLI, SRLI, SRAI:
		return FormatI
	case FENCE, FENCE_I, ECALL, EBREAK, FLOAT, OpInvalid:
		return FormatNone
	case CSRRW, CSRRS, CSRRC:
		return FormatCSR
	case CSRRWI, CSRRSI, CSRRCI:
		return FormatCSRI
	}
	if op >= LR_W && op <= AMOMAXU_W {
		return FormatAMO
	}
	return FormatR
}

// IsControlFlow reports whether op may redirect the program counter.
func (op Op) IsControlFlow() bool {
	switch op {
	case JAL, JALR, BEQ, BNE, BLT, BGE, BLTU, BGEU:
		return true
	}
	return false
}
