package rv32

import (
	"encoding/binary"
	"fmt"

	"github.com/colorfulnotion/rv32emu/rverrors"
)

// Access is the kind of memory operation that faulted.
type Access uint8

const (
	AccessLoad Access = iota
	AccessStore
	AccessFetch
)

func (a Access) String() string {
	switch a {
	case AccessLoad:
		return "load"
	case AccessStore:
		return "store"
	case AccessFetch:
		return "fetch"
	}
	return "access"
}

// FaultKind classifies a MemoryFault.
type FaultKind uint8

const (
	FaultOutOfBounds FaultKind = iota
	FaultReadOnly
	FaultNotExecutable
	FaultCrossRegion
	FaultMisaligned
)

func (k FaultKind) String() string {
	switch k {
	case FaultOutOfBounds:
		return "out of bounds"
	case FaultReadOnly:
		return "write to read-only code"
	case FaultNotExecutable:
		return "fetch from data region"
	case FaultCrossRegion:
		return "crosses region boundary"
	case FaultMisaligned:
		return "misaligned"
	}
	return "fault"
}

// MemoryFault is returned for any access the memory model refuses.
type MemoryFault struct {
	Address uint32
	Size    uint32
	Access  Access
	Kind    FaultKind
}

func (f *MemoryFault) Error() string {
	return fmt.Sprintf("memory fault: %s of %d bytes at 0x%08x: %s", f.Access, f.Size, f.Address, f.Kind)
}

func (f *MemoryFault) Unwrap() []error {
	if f.Kind == FaultMisaligned {
		return []error{rverrors.ErrMemoryFault, rverrors.ErrMisaligned}
	}
	return []error{rverrors.ErrMemoryFault}
}

type region struct {
	base     uint32
	data     []byte
	writable bool
	exec     bool
}

func (r *region) contains(addr uint32) bool {
	return addr >= r.base && uint64(addr) < uint64(r.base)+uint64(len(r.data))
}

// Memory is the guest address space: a read/execute code region and a
// read/write RAM region. Every access is bounds-checked before any byte
// is touched, so a faulting store leaves memory unchanged.
type Memory struct {
	code region
	ram  region
}

// NewMemory takes ownership of code and ram.
func NewMemory(codeBase uint32, code []byte, ramBase uint32, ram []byte) *Memory {
	return &Memory{
		code: region{base: codeBase, data: code, exec: true},
		ram:  region{base: ramBase, data: ram, writable: true},
	}
}

func (m *Memory) CodeBase() uint32 { return m.code.base }
func (m *Memory) CodeSize() uint32 { return uint32(len(m.code.data)) }
func (m *Memory) RAMBase() uint32  { return m.ram.base }
func (m *Memory) RAMSize() uint32  { return uint32(len(m.ram.data)) }

// Code returns the code region bytes. Callers must not modify them.
func (m *Memory) Code() []byte { return m.code.data }

// RAM returns the live RAM region.
func (m *Memory) RAM() []byte { return m.ram.data }

func (m *Memory) regionOf(addr uint32) *region {
	switch {
	case m.code.contains(addr):
		return &m.code
	case m.ram.contains(addr):
		return &m.ram
	}
	return nil
}

// span resolves [addr, addr+size) to a slice of one region, checking
// permissions for acc.
func (m *Memory) span(addr, size uint32, acc Access) ([]byte, error) {
	fault := func(kind FaultKind) ([]byte, error) {
		return nil, &MemoryFault{Address: addr, Size: size, Access: acc, Kind: kind}
	}
	r := m.regionOf(addr)
	if r == nil {
		return fault(FaultOutOfBounds)
	}
	end := uint64(addr) + uint64(size)
	if end > uint64(r.base)+uint64(len(r.data)) {
		if end <= 1<<32 && m.regionOf(uint32(end-1)) != nil {
			return fault(FaultCrossRegion)
		}
		return fault(FaultOutOfBounds)
	}
	switch {
	case acc == AccessStore && !r.writable:
		return fault(FaultReadOnly)
	case acc == AccessFetch && !r.exec:
		return fault(FaultNotExecutable)
	}
	off := addr - r.base
	return r.data[off : off+size], nil
}

func (m *Memory) Load8(addr uint32) (uint32, error) {
	b, err := m.span(addr, 1, AccessLoad)
	if err != nil {
		return 0, err
	}
	return uint32(b[0]), nil
}

func (m *Memory) Load16(addr uint32) (uint32, error) {
	b, err := m.span(addr, 2, AccessLoad)
	if err != nil {
		return 0, err
	}
	return uint32(binary.LittleEndian.Uint16(b)), nil
}

func (m *Memory) Load32(addr uint32) (uint32, error) {
	b, err := m.span(addr, 4, AccessLoad)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (m *Memory) Store8(addr uint32, v uint32) error {
	b, err := m.span(addr, 1, AccessStore)
	if err != nil {
		return err
	}
	b[0] = byte(v)
	return nil
}

func (m *Memory) Store16(addr uint32, v uint32) error {
	b, err := m.span(addr, 2, AccessStore)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(b, uint16(v))
	return nil
}

func (m *Memory) Store32(addr uint32, v uint32) error {
	b, err := m.span(addr, 4, AccessStore)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(b, v)
	return nil
}

// Fetch16 reads one instruction parcel from the code region.
func (m *Memory) Fetch16(addr uint32) (uint16, error) {
	b, err := m.span(addr, 2, AccessFetch)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

// ReadBytes copies n bytes starting at addr out of guest memory. A zero
// length read succeeds at any address.
func (m *Memory) ReadBytes(addr, n uint32) ([]byte, error) {
	if n == 0 {
		return []byte{}, nil
	}
	b, err := m.span(addr, n, AccessLoad)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, b)
	return out, nil
}

// WriteBytes copies data into RAM at addr.
func (m *Memory) WriteBytes(addr uint32, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if uint64(len(data)) > 1<<32 {
		return &MemoryFault{Address: addr, Size: ^uint32(0), Access: AccessStore, Kind: FaultOutOfBounds}
	}
	b, err := m.span(addr, uint32(len(data)), AccessStore)
	if err != nil {
		return err
	}
	copy(b, data)
	return nil
}
