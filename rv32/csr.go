package rv32

import (
	"fmt"

	"github.com/colorfulnotion/rv32emu/rv32/isa"
	"github.com/colorfulnotion/rv32emu/rverrors"
)

// User-level counter CSRs. All are read-only.
const (
	CSRCycle    = 0xc00
	CSRTime     = 0xc01
	CSRInstret  = 0xc02
	CSRCycleH   = 0xc80
	CSRTimeH    = 0xc81
	CSRInstretH = 0xc82
)

// readCSR serves the counter CSRs from the retired-instruction count. Any
// write, and any other CSR, is an illegal instruction.
func (s *State) readCSR(ins isa.Instruction) (uint32, error) {
	csr := uint32(ins.Imm) & 0xfff
	writes := false
	switch ins.Op {
	case isa.CSRRW, isa.CSRRWI:
		writes = true
	case isa.CSRRS, isa.CSRRC, isa.CSRRSI, isa.CSRRCI:
		// rs1 holds either the source register or the 5-bit immediate;
		// zero in both cases means read-only
		writes = ins.Rs1 != 0
	}
	if writes {
		return 0, fmt.Errorf("write to read-only csr 0x%03x: %w", csr, rverrors.ErrUnsupportedInstruction)
	}
	n := s.retired
	switch csr {
	case CSRCycle, CSRTime, CSRInstret:
		return uint32(n), nil
	case CSRCycleH, CSRTimeH, CSRInstretH:
		return uint32(n >> 32), nil
	}
	return 0, fmt.Errorf("csr 0x%03x: %w", csr, rverrors.ErrUnsupportedInstruction)
}
