package isa

// Major opcodes (bits 6:0) of the 32-bit encodings.
const (
	opcLoad    = 0x03
	opcLoadFP  = 0x07
	opcMiscMem = 0x0f
	opcOpImm   = 0x13
	opcAuipc   = 0x17
	opcStore   = 0x23
	opcStoreFP = 0x27
	opcAmo     = 0x2f
	opcOp      = 0x33
	opcLui     = 0x37
	opcMadd    = 0x43
	opcMsub    = 0x47
	opcNmsub   = 0x4b
	opcNmadd   = 0x4f
	opcOpFP    = 0x53
	opcBranch  = 0x63
	opcJalr    = 0x67
	opcJal     = 0x6f
	opcSystem  = 0x73
)

func rdOf(w uint32) uint8  { return uint8((w >> 7) & 0x1f) }
func rs1Of(w uint32) uint8 { return uint8((w >> 15) & 0x1f) }
func rs2Of(w uint32) uint8 { return uint8((w >> 20) & 0x1f) }
func f3Of(w uint32) uint32 { return (w >> 12) & 0x7 }
func f7Of(w uint32) uint32 { return w >> 25 }

func immI(w uint32) int32 { return int32(w) >> 20 }

func immS(w uint32) int32 {
	return (int32(w)>>25)<<5 | int32((w>>7)&0x1f)
}

func immB(w uint32) int32 {
	return (int32(w)>>31)<<12 |
		int32((w>>7)&0x1)<<11 |
		int32((w>>25)&0x3f)<<5 |
		int32((w>>8)&0xf)<<1
}

func immU(w uint32) int32 { return int32(w & 0xfffff000) }

func immJ(w uint32) int32 {
	return (int32(w)>>31)<<20 |
		int32((w>>12)&0xff)<<12 |
		int32((w>>20)&0x1)<<11 |
		int32((w>>21)&0x3ff)<<1
}

var (
	branchOps = [8]Op{BEQ, BNE, OpInvalid, OpInvalid, BLT, BGE, BLTU, BGEU}
	loadOps   = [8]Op{LB, LH, LW, OpInvalid, LBU, LHU, OpInvalid, OpInvalid}
	storeOps  = [8]Op{SB, SH, SW, OpInvalid, OpInvalid, OpInvalid, OpInvalid, OpInvalid}
	opImmOps  = [8]Op{ADDI, SLLI, SLTI, SLTIU, XORI, SRLI, ORI, ANDI}
	opBase    = [8]Op{ADD, SLL, SLT, SLTU, XOR, SRL, OR, AND}
	opMul     = [8]Op{MUL, MULH, MULHSU, MULHU, DIV, DIVU, REM, REMU}
	csrOps    = [8]Op{OpInvalid, CSRRW, CSRRS, CSRRC, OpInvalid, CSRRWI, CSRRSI, CSRRCI}
)

var amoOps = map[uint32]Op{
	0x00: AMOADD_W,
	0x01: AMOSWAP_W,
	0x02: LR_W,
	0x03: SC_W,
	0x04: AMOXOR_W,
	0x08: AMOOR_W,
	0x0c: AMOAND_W,
	0x10: AMOMIN_W,
	0x14: AMOMAX_W,
	0x18: AMOMINU_W,
	0x1c: AMOMAXU_W,
}

// Decode decodes the instruction at the start of word. When the low two
// bits are not 0b11 only the low halfword is consumed and the result has
// Width 2. Decode is pure; extension gating happens at execution time.
func Decode(word uint32) (Instruction, error) {
	if word&0x3 != 0x3 {
		return DecodeCompressed(uint16(word))
	}
	if word&0x1c == 0x1c {
		return illegal(word, 4, "instruction longer than 32 bits")
	}
	return decode32(word)
}

func decode32(w uint32) (Instruction, error) {
	ins := Instruction{Width: 4, Raw: w, Rd: rdOf(w), Rs1: rs1Of(w), Rs2: rs2Of(w)}
	f3 := f3Of(w)
	f7 := f7Of(w)

	switch w & 0x7f {
	case opcLui:
		ins.Op, ins.Imm = LUI, immU(w)
		ins.Rs1, ins.Rs2 = 0, 0
	case opcAuipc:
		ins.Op, ins.Imm = AUIPC, immU(w)
		ins.Rs1, ins.Rs2 = 0, 0
	case opcJal:
		ins.Op, ins.Imm = JAL, immJ(w)
		ins.Rs1, ins.Rs2 = 0, 0
	case opcJalr:
		if f3 != 0 {
			return illegal(w, 4, "jalr funct3=%d", f3)
		}
		ins.Op, ins.Imm, ins.Rs2 = JALR, immI(w), 0
	case opcBranch:
		if ins.Op = branchOps[f3]; ins.Op == OpInvalid {
			return illegal(w, 4, "branch funct3=%d", f3)
		}
		ins.Imm, ins.Rd = immB(w), 0
	case opcLoad:
		if ins.Op = loadOps[f3]; ins.Op == OpInvalid {
			return illegal(w, 4, "load funct3=%d", f3)
		}
		ins.Imm, ins.Rs2 = immI(w), 0
	case opcStore:
		if ins.Op = storeOps[f3]; ins.Op == OpInvalid {
			return illegal(w, 4, "store funct3=%d", f3)
		}
		ins.Imm, ins.Rd = immS(w), 0
	case opcOpImm:
		ins.Op, ins.Imm = opImmOps[f3], immI(w)
		switch f3 {
		case 1:
			if f7 != 0 {
				return illegal(w, 4, "slli funct7=0x%02x", f7)
			}
			ins.Imm = int32(ins.Rs2)
		case 5:
			switch f7 {
			case 0x00:
			case 0x20:
				ins.Op = SRAI
			default:
				return illegal(w, 4, "shift-right funct7=0x%02x", f7)
			}
			ins.Imm = int32(ins.Rs2)
		}
		ins.Rs2 = 0
	case opcOp:
		switch f7 {
		case 0x00:
			ins.Op = opBase[f3]
		case 0x20:
			switch f3 {
			case 0:
				ins.Op = SUB
			case 5:
				ins.Op = SRA
			default:
				return illegal(w, 4, "op funct7=0x20 funct3=%d", f3)
			}
		case 0x01:
			ins.Op = opMul[f3]
		default:
			return illegal(w, 4, "op funct7=0x%02x", f7)
		}
	case opcMiscMem:
		switch f3 {
		case 0:
			ins.Op = FENCE
		case 1:
			ins.Op = FENCE_I
		default:
			return illegal(w, 4, "misc-mem funct3=%d", f3)
		}
		ins.Rd, ins.Rs1, ins.Rs2 = 0, 0, 0
	case opcSystem:
		if f3 == 0 {
			switch w {
			case 0x00000073:
				ins.Op = ECALL
			case 0x00100073:
				ins.Op = EBREAK
			default:
				return illegal(w, 4, "privileged system instruction")
			}
			ins.Rd, ins.Rs1, ins.Rs2 = 0, 0, 0
			break
		}
		if ins.Op = csrOps[f3]; ins.Op == OpInvalid {
			return illegal(w, 4, "system funct3=%d", f3)
		}
		ins.Imm, ins.Rs2 = int32(w>>20), 0
	case opcAmo:
		if f3 != 2 {
			return illegal(w, 4, "atomic width funct3=%d", f3)
		}
		op, ok := amoOps[w>>27]
		if !ok {
			return illegal(w, 4, "atomic funct5=0x%02x", w>>27)
		}
		if op == LR_W && ins.Rs2 != 0 {
			return illegal(w, 4, "lr.w with rs2=%d", ins.Rs2)
		}
		ins.Op = op
	case opcLoadFP, opcStoreFP:
		switch f3 {
		case 2:
			ins.Ext = ExtF
		case 3:
			ins.Ext = ExtD
		default:
			return illegal(w, 4, "fp load/store funct3=%d", f3)
		}
		ins.Op = FLOAT
	case opcMadd, opcMsub, opcNmsub, opcNmadd, opcOpFP:
		switch f7 & 0x3 {
		case 0:
			ins.Ext = ExtF
		case 1:
			ins.Ext = ExtD
		default:
			return illegal(w, 4, "fp format %d", f7&0x3)
		}
		ins.Op = FLOAT
	default:
		return illegal(w, 4, "opcode 0x%02x", w&0x7f)
	}
	if ins.Ext == 0 {
		ins.Ext = ins.Op.Extension()
	}
	return ins, nil
}
