package rv32

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ValueKind is the type tag of a Value.
type ValueKind uint8

const (
	KindI32 ValueKind = iota
	KindI64
	KindF32
	KindF64
)

func (k ValueKind) String() string {
	switch k {
	case KindI32:
		return "i32"
	case KindI64:
		return "i64"
	case KindF32:
		return "f32"
	case KindF64:
		return "f64"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Words is the number of 32-bit words the kind occupies under the
// soft-float ilp32 convention.
func (k ValueKind) Words() int {
	if k == KindI64 || k == KindF64 {
		return 2
	}
	return 1
}

func ParseValueKind(s string) (ValueKind, error) {
	switch s {
	case "i32", "u32":
		return KindI32, nil
	case "i64", "u64":
		return KindI64, nil
	case "f32":
		return KindF32, nil
	case "f64":
		return KindF64, nil
	}
	return 0, fmt.Errorf("unknown value kind %q", s)
}

// Value is one typed argument or result. Floats are carried as raw bits.
type Value struct {
	Kind ValueKind
	bits uint64
}

func I32(v int32) Value   { return Value{Kind: KindI32, bits: uint64(uint32(v))} }
func U32(v uint32) Value  { return Value{Kind: KindI32, bits: uint64(v)} }
func I64(v int64) Value   { return Value{Kind: KindI64, bits: uint64(v)} }
func U64(v uint64) Value  { return Value{Kind: KindI64, bits: v} }
func F32(v float32) Value { return Value{Kind: KindF32, bits: uint64(math.Float32bits(v))} }
func F64(v float64) Value { return Value{Kind: KindF64, bits: math.Float64bits(v)} }

func (v Value) Int32() int32     { return int32(uint32(v.bits)) }
func (v Value) Uint32() uint32   { return uint32(v.bits) }
func (v Value) Int64() int64     { return int64(v.bits) }
func (v Value) Uint64() uint64   { return v.bits }
func (v Value) Float32() float32 { return math.Float32frombits(uint32(v.bits)) }
func (v Value) Float64() float64 { return math.Float64frombits(v.bits) }

// Words flattens v into 32-bit words, low word first.
func (v Value) Words() []uint32 {
	if v.Kind.Words() == 2 {
		return []uint32{uint32(v.bits), uint32(v.bits >> 32)}
	}
	return []uint32{uint32(v.bits)}
}

// valueFromWords rebuilds a Value of kind k from its flattened words.
func valueFromWords(k ValueKind, w []uint32) Value {
	if k.Words() == 2 {
		return Value{Kind: k, bits: uint64(w[0]) | uint64(w[1])<<32}
	}
	return Value{Kind: k, bits: uint64(w[0])}
}

func (v Value) String() string {
	switch v.Kind {
	case KindI32:
		return fmt.Sprintf("%d", v.Int32())
	case KindI64:
		return fmt.Sprintf("%d", v.Int64())
	case KindF32:
		return fmt.Sprintf("%g", v.Float32())
	case KindF64:
		return fmt.Sprintf("%g", v.Float64())
	}
	return fmt.Sprintf("0x%x", v.bits)
}

// ParseValue parses "kind:literal", e.g. "i32:-5", "u64:0x10", "f32:1.5".
// A bare literal is an i32.
func ParseValue(s string) (Value, error) {
	kind, lit := "i32", s
	if k, l, ok := strings.Cut(s, ":"); ok {
		kind, lit = k, l
	}
	switch kind {
	case "i32", "u32":
		n, err := strconv.ParseInt(lit, 0, 64)
		if err != nil {
			return Value{}, fmt.Errorf("parse %q: %w", s, err)
		}
		if n < math.MinInt32 || n > math.MaxUint32 {
			return Value{}, fmt.Errorf("parse %q: out of 32-bit range", s)
		}
		return U32(uint32(n)), nil
	case "i64", "u64":
		if kind == "u64" {
			n, err := strconv.ParseUint(lit, 0, 64)
			if err != nil {
				return Value{}, fmt.Errorf("parse %q: %w", s, err)
			}
			return U64(n), nil
		}
		n, err := strconv.ParseInt(lit, 0, 64)
		if err != nil {
			return Value{}, fmt.Errorf("parse %q: %w", s, err)
		}
		return I64(n), nil
	case "f32":
		f, err := strconv.ParseFloat(lit, 32)
		if err != nil {
			return Value{}, fmt.Errorf("parse %q: %w", s, err)
		}
		return F32(float32(f)), nil
	case "f64":
		f, err := strconv.ParseFloat(lit, 64)
		if err != nil {
			return Value{}, fmt.Errorf("parse %q: %w", s, err)
		}
		return F64(f), nil
	}
	return Value{}, fmt.Errorf("parse %q: unknown kind %q", s, kind)
}
