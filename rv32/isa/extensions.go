package isa

import (
	"fmt"
	"strings"
)

// Extensions is the set of instruction-set extensions active for a target.
type Extensions uint16

const (
	ExtI Extensions = 1 << iota
	ExtM
	ExtA
	ExtF
	ExtD
	ExtC
	ExtZicsr
)

// DefaultExtensions matches a typical rv32imac_zicsr firmware target.
const DefaultExtensions = ExtI | ExtM | ExtA | ExtC | ExtZicsr

var extLetters = []struct {
	ext    Extensions
	letter byte
}{
	{ExtI, 'i'}, {ExtM, 'm'}, {ExtA, 'a'}, {ExtF, 'f'}, {ExtD, 'd'}, {ExtC, 'c'},
}

func (e Extensions) Has(other Extensions) bool {
	return e&other == other
}

func (e Extensions) With(other Extensions) Extensions {
	return e | other
}

func (e Extensions) Without(other Extensions) Extensions {
	return e &^ other
}

// String renders the set as an ISA string, e.g. "rv32imac_zicsr".
func (e Extensions) String() string {
	var b strings.Builder
	b.WriteString("rv32")
	for _, l := range extLetters {
		if e.Has(l.ext) {
			b.WriteByte(l.letter)
		}
	}
	if e.Has(ExtZicsr) {
		b.WriteString("_zicsr")
	}
	return b.String()
}

// ParseExtensions parses "rv32imac", "imc", "rv32ima_zicsr". The base
// integer set is always included.
func ParseExtensions(s string) (Extensions, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimPrefix(s, "rv32")
	parts := strings.Split(s, "_")
	ext := ExtI
	for _, ch := range parts[0] {
		switch ch {
		case 'i', 'e':
			ext |= ExtI
		case 'm':
			ext |= ExtM
		case 'a':
			ext |= ExtA
		case 'f':
			ext |= ExtF
		case 'd':
			ext |= ExtD | ExtF
		case 'c':
			ext |= ExtC
		default:
			return 0, fmt.Errorf("unknown extension %q in %q", ch, s)
		}
	}
	for _, p := range parts[1:] {
		switch p {
		case "zicsr":
			ext |= ExtZicsr
		case "zifencei", "":
		default:
			return 0, fmt.Errorf("unknown extension %q", p)
		}
	}
	return ext, nil
}
