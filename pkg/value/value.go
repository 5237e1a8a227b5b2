// Package value models stream configuration blobs: JSON-compatible values
// with ordered mappings and exact decimal numbers.
//
// A configuration is a *Map. Keys keep their insertion order, which is the
// order they are serialized in, and numbers are held as apd decimals so a
// configuration read back from a container compares equal to the one that
// was written.
package value

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/cockroachdb/apd/v3"
)

// ErrSerialization is returned for values that cannot be represented in a
// configuration blob.
var ErrSerialization = errors.New("value is not serializable")

// Kind is the variant held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindSequence
	KindMapping
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindSequence:
		return "sequence"
	case KindMapping:
		return "mapping"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Value is an immutable JSON-compatible value. The zero Value is null.
type Value struct {
	kind Kind
	b    bool
	num  *apd.Decimal
	str  string
	seq  []Value
	m    *Map
}

// Null returns the null value.
func Null() Value { return Value{} }

// Bool wraps b.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// String wraps s.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Int wraps an integer.
func Int(i int64) Value {
	d := new(apd.Decimal)
	d.SetInt64(i)
	return Value{kind: KindNumber, num: d}
}

// Uint wraps an unsigned integer.
func Uint(u uint64) Value {
	d, _, err := apd.NewFromString(strconv.FormatUint(u, 10))
	if err != nil {
		panic(err)
	}
	return Value{kind: KindNumber, num: d}
}

// Float wraps a float using its shortest decimal representation. NaN and
// infinities have no JSON form and fail with ErrSerialization.
func Float(f float64) (Value, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Value{}, fmt.Errorf("%w: %v", ErrSerialization, f)
	}
	d := new(apd.Decimal)
	if _, err := d.SetFloat64(f); err != nil {
		return Value{}, fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	return Value{kind: KindNumber, num: d}, nil
}

// MustFloat is Float for values known to be finite.
func MustFloat(f float64) Value {
	v, err := Float(f)
	if err != nil {
		panic(err)
	}
	return v
}

// Float32 wraps a float32 using the shortest decimal that round-trips at
// single precision, so 0.1 stays 0.1 instead of 0.10000000149011612.
func Float32(f float32) (Value, error) {
	if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
		return Value{}, fmt.Errorf("%w: %v", ErrSerialization, f)
	}
	return Number(fmt.Sprintf("%v", f))
}

// Number parses a decimal literal.
func Number(s string) (Value, error) {
	d, _, err := apd.NewFromString(s)
	if err != nil {
		return Value{}, fmt.Errorf("%w: number %q: %v", ErrSerialization, s, err)
	}
	if d.Form != apd.Finite {
		return Value{}, fmt.Errorf("%w: number %q is not finite", ErrSerialization, s)
	}
	return Value{kind: KindNumber, num: d}, nil
}

// Decimal wraps a copy of d.
func Decimal(d *apd.Decimal) (Value, error) {
	if d == nil {
		return Null(), nil
	}
	if d.Form != apd.Finite {
		return Value{}, fmt.Errorf("%w: number %s is not finite", ErrSerialization, d)
	}
	c := new(apd.Decimal)
	c.Set(d)
	return Value{kind: KindNumber, num: c}, nil
}

// Seq wraps a sequence of values.
func Seq(items ...Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{kind: KindSequence, seq: items}
}

// Mapping wraps m. A nil map is an empty mapping.
func Mapping(m *Map) Value {
	if m == nil {
		m = NewMap()
	}
	return Value{kind: KindMapping, m: m}
}

// Kind reports which variant v holds.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsBool returns the boolean held by v.
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

// AsString returns the string held by v.
func (v Value) AsString() (string, bool) { return v.str, v.kind == KindString }

// AsDecimal returns a copy of the number held by v.
func (v Value) AsDecimal() (*apd.Decimal, bool) {
	if v.kind != KindNumber {
		return nil, false
	}
	return new(apd.Decimal).Set(v.num), true
}

// AsFloat64 returns the number held by v, rounded to a float64.
func (v Value) AsFloat64() (float64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	f, err := v.num.Float64()
	if err != nil {
		return 0, false
	}
	return f, true
}

// AsInt64 returns the number held by v when it is an integer in range.
func (v Value) AsInt64() (int64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	i, err := v.num.Int64()
	if err != nil {
		return 0, false
	}
	return i, true
}

// AsSeq returns the items of a sequence.
func (v Value) AsSeq() ([]Value, bool) { return v.seq, v.kind == KindSequence }

// AsMap returns the mapping held by v.
func (v Value) AsMap() (*Map, bool) { return v.m, v.kind == KindMapping }

// String returns the canonical JSON text of v.
func (v Value) String() string {
	b, err := v.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("<%s: %v>", v.kind, err)
	}
	return string(b)
}

// Equal reports whether a and b hold the same value. Numbers compare by
// value, so 1.0 equals 1; mappings compare keys in order.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNull:
		return true
	case KindBool:
		return a.b == b.b
	case KindNumber:
		return a.num.Cmp(b.num) == 0
	case KindString:
		return a.str == b.str
	case KindSequence:
		if len(a.seq) != len(b.seq) {
			return false
		}
		for i := range a.seq {
			if !Equal(a.seq[i], b.seq[i]) {
				return false
			}
		}
		return true
	case KindMapping:
		return a.m.Equal(b.m)
	}
	return false
}
