// Package loader turns flat binaries and RV32 ELF executables into
// rv32.Image values.
package loader

import (
	"bytes"
	"debug/elf"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/colorfulnotion/rv32emu/rv32"
	"github.com/colorfulnotion/rv32emu/rv32/rvtypes"
	"github.com/colorfulnotion/rv32emu/rverrors"
)

// DefaultRAMSize is the RAM given to images that do not declare one.
const DefaultRAMSize = 1 << 20

// Program is a loaded image plus the function symbols it exports.
type Program struct {
	Image   *rv32.Image
	Symbols map[string]uint32
	Format  string
}

// Lookup resolves a function name to its address.
func (p *Program) Lookup(name string) (uint32, bool) {
	addr, ok := p.Symbols[name]
	return addr, ok
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), rverrors.ErrInvalidImage)
}

// LoadFlat places raw code at rv32.DefaultImageBase with ramSize bytes of
// RAM after it.
func LoadFlat(code []byte, ramSize uint32) (*Program, error) {
	if ramSize == 0 {
		ramSize = DefaultRAMSize
	}
	img := rv32.NewImage(code, ramSize)
	if err := img.Validate(); err != nil {
		return nil, err
	}
	return &Program{Image: img, Symbols: map[string]uint32{}, Format: "flat"}, nil
}

// LoadFile reads path and loads it as ELF when it carries the ELF magic,
// otherwise as a flat binary.
func LoadFile(path string, ramSize uint32) (*Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if bytes.HasPrefix(data, []byte(elf.ELFMAG)) {
		return LoadELF(bytes.NewReader(data), ramSize)
	}
	return LoadFlat(data, ramSize)
}

// LoadELF loads a 32-bit little-endian RISC-V executable. Non-writable
// PT_LOAD segments form the code region and writable ones the RAM region;
// ramSize bytes of heap and stack are appended to RAM.
func LoadELF(r io.ReaderAt, ramSize uint32) (*Program, error) {
	f, err := elf.NewFile(r)
	if err != nil {
		return nil, invalid("elf: %v", err)
	}
	defer f.Close()

	switch {
	case f.Class != elf.ELFCLASS32:
		return nil, invalid("elf: class %s, want ELFCLASS32", f.Class)
	case f.Data != elf.ELFDATA2LSB:
		return nil, invalid("elf: %s, want little endian", f.Data)
	case f.Machine != elf.EM_RISCV:
		return nil, invalid("elf: machine %s, want RISC-V", f.Machine)
	case f.Type != elf.ET_EXEC:
		return nil, invalid("elf: type %s, want executable", f.Type)
	}
	if ramSize == 0 {
		ramSize = DefaultRAMSize
	}

	var code, data []*elf.Prog
	for _, p := range f.Progs {
		if p.Type != elf.PT_LOAD || p.Memsz == 0 {
			continue
		}
		if p.Flags&elf.PF_W != 0 {
			data = append(data, p)
		} else {
			code = append(code, p)
		}
	}
	if len(code) == 0 {
		return nil, invalid("elf: no loadable code segment")
	}

	codeBase, codeEnd := span(code)
	if codeEnd > 1<<32 {
		return nil, invalid("elf: code segment past the 32-bit address space")
	}
	codeBytes := make([]byte, codeEnd-codeBase)
	if err := fill(codeBytes, codeBase, code); err != nil {
		return nil, err
	}

	img := &rv32.Image{
		CodeBase: uint32(codeBase),
		Code:     codeBytes,
		Entry:    uint32(f.Entry),
	}
	if len(data) > 0 {
		ramBase, ramEnd := span(data)
		if ramEnd > 1<<32 {
			return nil, invalid("elf: data segment past the 32-bit address space")
		}
		ram := make([]byte, ramEnd-ramBase)
		if err := fill(ram, ramBase, data); err != nil {
			return nil, err
		}
		total := ramEnd - ramBase + uint64(ramSize)
		if total > 1<<32 {
			return nil, invalid("elf: ram of %d bytes does not fit", total)
		}
		img.RAMBase, img.RAM, img.RAMSize = uint32(ramBase), ram, uint32(total)
	} else {
		img.RAMBase = rvtypes.AlignUp(uint32(codeEnd), rvtypes.StackAlign)
		img.RAMSize = ramSize
	}
	if err := img.Validate(); err != nil {
		return nil, err
	}

	prog := &Program{Image: img, Symbols: map[string]uint32{}, Format: "elf32"}
	syms, err := f.Symbols()
	if err != nil && !errors.Is(err, elf.ErrNoSymbols) {
		return nil, invalid("elf symbols: %v", err)
	}
	for _, s := range syms {
		if elf.ST_TYPE(s.Info) == elf.STT_FUNC && s.Name != "" {
			prog.Symbols[s.Name] = uint32(s.Value)
		}
	}
	return prog, nil
}

func span(progs []*elf.Prog) (lo, hi uint64) {
	lo = progs[0].Vaddr
	for _, p := range progs {
		lo = min(lo, p.Vaddr)
		hi = max(hi, p.Vaddr+p.Memsz)
	}
	return lo, hi
}

// fill copies each segment's file bytes into buf, which starts at base.
// Bytes past Filesz stay zero.
func fill(buf []byte, base uint64, progs []*elf.Prog) error {
	for _, p := range progs {
		if p.Filesz > p.Memsz {
			return invalid("elf: segment at 0x%x has filesz > memsz", p.Vaddr)
		}
		off := p.Vaddr - base
		if _, err := p.ReadAt(buf[off:off+p.Filesz], 0); err != nil && err != io.EOF {
			return invalid("elf: segment at 0x%x: %v", p.Vaddr, err)
		}
	}
	return nil
}
