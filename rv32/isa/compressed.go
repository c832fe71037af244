package isa

import "github.com/colorfulnotion/rv32emu/rv32/rvtypes"

// bits returns h[hi:lo].
func bits(h uint16, hi, lo uint) uint32 {
	return (uint32(h) >> lo) & ((1 << (hi - lo + 1)) - 1)
}

func sext(v uint32, width uint) int32 {
	shift := 32 - width
	return int32(v<<shift) >> shift
}

// creg maps a 3-bit compressed register field onto x8..x15.
func creg(v uint32) uint8 { return uint8(v + 8) }

// DecodeCompressed expands a 16-bit RVC encoding into the equivalent
// standard instruction. The result keeps Width 2 and the raw halfword.
func DecodeCompressed(h uint16) (Instruction, error) {
	raw := uint32(h)
	if h == 0 {
		return illegal(raw, 2, "all-zero halfword")
	}
	ins := Instruction{Width: 2, Raw: raw}
	f3 := bits(h, 15, 13)
	rdFull := uint8(bits(h, 11, 7))
	rs2Full := uint8(bits(h, 6, 2))
	imm6 := sext(bits(h, 12, 12)<<5|bits(h, 6, 2), 6)

	switch h & 0x3 {
	case 0:
		rdp := creg(bits(h, 4, 2))
		rs1p := creg(bits(h, 9, 7))
		lwImm := int32(bits(h, 12, 10)<<3 | bits(h, 6, 6)<<2 | bits(h, 5, 5)<<6)
		switch f3 {
		case 0: // c.addi4spn
			nz := bits(h, 12, 11)<<4 | bits(h, 10, 7)<<6 | bits(h, 6, 6)<<2 | bits(h, 5, 5)<<3
			if nz == 0 {
				return illegal(raw, 2, "c.addi4spn with zero immediate")
			}
			ins.Op, ins.Rd, ins.Rs1, ins.Imm = ADDI, rdp, rvtypes.RegSP, int32(nz)
		case 2: // c.lw
			ins.Op, ins.Rd, ins.Rs1, ins.Imm = LW, rdp, rs1p, lwImm
		case 6: // c.sw
			ins.Op, ins.Rs2, ins.Rs1, ins.Imm = SW, rdp, rs1p, lwImm
		case 1, 5: // c.fld, c.fsd
			ins.Op, ins.Ext = FLOAT, ExtD
		case 3, 7: // c.flw, c.fsw
			ins.Op, ins.Ext = FLOAT, ExtF
		default:
			return illegal(raw, 2, "reserved quadrant 0 funct3=%d", f3)
		}

	case 1:
		switch f3 {
		case 0: // c.addi, c.nop
			ins.Op, ins.Rd, ins.Rs1, ins.Imm = ADDI, rdFull, rdFull, imm6
		case 1, 5: // c.jal, c.j
			off := bits(h, 12, 12)<<11 | bits(h, 11, 11)<<4 | bits(h, 10, 9)<<8 |
				bits(h, 8, 8)<<10 | bits(h, 7, 7)<<6 | bits(h, 6, 6)<<7 |
				bits(h, 5, 3)<<1 | bits(h, 2, 2)<<5
			ins.Op, ins.Imm = JAL, sext(off, 12)
			if f3 == 1 {
				ins.Rd = rvtypes.RegRA
			}
		case 2: // c.li
			ins.Op, ins.Rd, ins.Rs1, ins.Imm = ADDI, rdFull, rvtypes.RegZero, imm6
		case 3:
			if rdFull == rvtypes.RegSP { // c.addi16sp
				nz := bits(h, 12, 12)<<9 | bits(h, 6, 6)<<4 | bits(h, 5, 5)<<6 |
					bits(h, 4, 3)<<7 | bits(h, 2, 2)<<5
				if nz == 0 {
					return illegal(raw, 2, "c.addi16sp with zero immediate")
				}
				ins.Op, ins.Rd, ins.Rs1, ins.Imm = ADDI, rvtypes.RegSP, rvtypes.RegSP, sext(nz, 10)
				break
			}
			if imm6 == 0 {
				return illegal(raw, 2, "c.lui with zero immediate")
			}
			ins.Op, ins.Rd, ins.Imm = LUI, rdFull, imm6<<12
		case 4:
			rd := creg(bits(h, 9, 7))
			ins.Rd, ins.Rs1 = rd, rd
			switch bits(h, 11, 10) {
			case 0, 1: // c.srli, c.srai
				if bits(h, 12, 12) != 0 {
					return illegal(raw, 2, "shift amount exceeds 31")
				}
				ins.Op, ins.Imm = SRLI, int32(bits(h, 6, 2))
				if bits(h, 11, 10) == 1 {
					ins.Op = SRAI
				}
			case 2: // c.andi
				ins.Op, ins.Imm = ANDI, imm6
			case 3:
				if bits(h, 12, 12) != 0 {
					return illegal(raw, 2, "c.subw/c.addw on rv32")
				}
				ins.Rs2 = creg(bits(h, 4, 2))
				ins.Op = [4]Op{SUB, XOR, OR, AND}[bits(h, 6, 5)]
			}
		case 6, 7: // c.beqz, c.bnez
			off := bits(h, 12, 12)<<8 | bits(h, 11, 10)<<3 | bits(h, 6, 5)<<6 |
				bits(h, 4, 3)<<1 | bits(h, 2, 2)<<5
			ins.Op, ins.Rs1, ins.Rs2, ins.Imm = BEQ, creg(bits(h, 9, 7)), rvtypes.RegZero, sext(off, 9)
			if f3 == 7 {
				ins.Op = BNE
			}
		}

	case 2:
		switch f3 {
		case 0: // c.slli
			if bits(h, 12, 12) != 0 {
				return illegal(raw, 2, "shift amount exceeds 31")
			}
			ins.Op, ins.Rd, ins.Rs1, ins.Imm = SLLI, rdFull, rdFull, int32(bits(h, 6, 2))
		case 2: // c.lwsp
			if rdFull == 0 {
				return illegal(raw, 2, "c.lwsp with rd=zero")
			}
			off := bits(h, 12, 12)<<5 | bits(h, 6, 4)<<2 | bits(h, 3, 2)<<6
			ins.Op, ins.Rd, ins.Rs1, ins.Imm = LW, rdFull, rvtypes.RegSP, int32(off)
		case 4:
			link := bits(h, 12, 12) == 1
			switch {
			case !link && rs2Full == 0: // c.jr
				if rdFull == 0 {
					return illegal(raw, 2, "c.jr with rs1=zero")
				}
				ins.Op, ins.Rs1 = JALR, rdFull
			case !link: // c.mv
				ins.Op, ins.Rd, ins.Rs1, ins.Rs2 = ADD, rdFull, rvtypes.RegZero, rs2Full
			case rdFull == 0 && rs2Full == 0: // c.ebreak
				ins.Op = EBREAK
			case rs2Full == 0: // c.jalr
				ins.Op, ins.Rd, ins.Rs1 = JALR, rvtypes.RegRA, rdFull
			default: // c.add
				ins.Op, ins.Rd, ins.Rs1, ins.Rs2 = ADD, rdFull, rdFull, rs2Full
			}
		case 6: // c.swsp
			off := bits(h, 12, 9)<<2 | bits(h, 8, 7)<<6
			ins.Op, ins.Rs1, ins.Rs2, ins.Imm = SW, rvtypes.RegSP, rs2Full, int32(off)
		case 1, 5: // c.fldsp, c.fsdsp
			ins.Op, ins.Ext = FLOAT, ExtD
		case 3, 7: // c.flwsp, c.fswsp
			ins.Op, ins.Ext = FLOAT, ExtF
		}

	default:
		return illegal(raw, 2, "not a compressed encoding")
	}

	if ins.Ext == 0 {
		ins.Ext = ins.Op.Extension()
	}
	return ins, nil
}
