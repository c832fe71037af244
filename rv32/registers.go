package rv32

import (
	"fmt"
	"strings"

	"github.com/colorfulnotion/rv32emu/rv32/rvtypes"
)

// RegisterFile holds x0..x31 and the program counter. x0 is hardwired to
// zero: writes to it are dropped here, at the write site.
type RegisterFile struct {
	regs [rvtypes.NumRegs]uint32
	PC   uint32
}

// Read returns register i. Callers pass indices 0..31.
func (r *RegisterFile) Read(i uint8) uint32 {
	return r.regs[i]
}

func (r *RegisterFile) ReadSigned(i uint8) int32 {
	return int32(r.regs[i])
}

// Write sets register i to v; writes to x0 are no-ops.
func (r *RegisterFile) Write(i uint8, v uint32) {
	if i == rvtypes.RegZero {
		return
	}
	r.regs[i] = v
}

// Snapshot returns a copy of all 32 registers.
func (r *RegisterFile) Snapshot() [rvtypes.NumRegs]uint32 {
	return r.regs
}

func (r *RegisterFile) Reset() {
	r.regs = [rvtypes.NumRegs]uint32{}
	r.PC = 0
}

func (r *RegisterFile) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "pc=0x%08x", r.PC)
	for i := 1; i < rvtypes.NumRegs; i++ {
		if r.regs[i] != 0 {
			fmt.Fprintf(&b, " %s=0x%x", rvtypes.RegName(i), r.regs[i])
		}
	}
	return b.String()
}
