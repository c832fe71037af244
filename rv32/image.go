package rv32

import (
	"fmt"

	"github.com/colorfulnotion/rv32emu/rv32/rvtypes"
	"github.com/colorfulnotion/rv32emu/rverrors"
)

// DefaultImageBase keeps the zero page unmapped so null dereferences fault.
const DefaultImageBase uint32 = 0x0000_1000

// Image is what a loader hands to the emulator: the code bytes, the
// initial RAM contents with its declared size, and the entry address.
type Image struct {
	CodeBase uint32
	Code     []byte
	RAMBase  uint32
	RAM      []byte // initial contents, zero-filled up to RAMSize
	RAMSize  uint32
	Entry    uint32
}

// NewImage lays code at DefaultImageBase with RAM directly after it,
// aligned to 16 bytes. Entry is the first code byte.
func NewImage(code []byte, ramSize uint32) *Image {
	ramBase := rvtypes.AlignUp(DefaultImageBase+uint32(len(code)), rvtypes.StackAlign)
	return &Image{
		CodeBase: DefaultImageBase,
		Code:     code,
		RAMBase:  ramBase,
		RAMSize:  ramSize,
		Entry:    DefaultImageBase,
	}
}

func (img *Image) CodeEnd() uint64 {
	return uint64(img.CodeBase) + uint64(len(img.Code))
}

func (img *Image) RAMEnd() uint64 {
	return uint64(img.RAMBase) + uint64(img.RAMSize)
}

// Validate checks region placement. Errors wrap rverrors.ErrInvalidImage.
func (img *Image) Validate() error {
	bad := func(format string, args ...interface{}) error {
		return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), rverrors.ErrInvalidImage)
	}
	switch {
	case len(img.Code) == 0:
		return bad("empty code region")
	case img.RAMSize == 0:
		return bad("empty ram region")
	case uint64(len(img.RAM)) > uint64(img.RAMSize):
		return bad("ram contents (%d bytes) exceed declared size %d", len(img.RAM), img.RAMSize)
	case img.CodeEnd() > 1<<32 || img.RAMEnd() > 1<<32:
		return bad("region extends past the 32-bit address space")
	case uint64(img.CodeBase) < img.RAMEnd() && uint64(img.RAMBase) < img.CodeEnd():
		return bad("code [0x%08x,0x%x) overlaps ram [0x%08x,0x%x)", img.CodeBase, img.CodeEnd(), img.RAMBase, img.RAMEnd())
	case uint64(img.Entry) < uint64(img.CodeBase) || uint64(img.Entry) >= img.CodeEnd():
		return bad("entry 0x%08x outside code region", img.Entry)
	}
	s := uint64(rvtypes.ReturnSentinel)
	if (s >= uint64(img.CodeBase) && s < img.CodeEnd()) || (s >= uint64(img.RAMBase) && s < img.RAMEnd()) {
		return bad("return sentinel 0x%08x is mapped", rvtypes.ReturnSentinel)
	}
	return nil
}

// Contains reports whether addr is mapped by either region.
func (img *Image) Contains(addr uint32) bool {
	a := uint64(addr)
	return (a >= uint64(img.CodeBase) && a < img.CodeEnd()) || (a >= uint64(img.RAMBase) && a < img.RAMEnd())
}
