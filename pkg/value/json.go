package value

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/cockroachdb/apd/v3"
)

// ErrParse is returned when a configuration blob is not a JSON object.
var ErrParse = errors.New("malformed configuration json")

// MarshalJSON writes compact JSON with mapping keys in insertion order.
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.appendJSON(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MarshalJSON writes m as a compact JSON object in insertion order.
func (m *Map) MarshalJSON() ([]byte, error) {
	return Mapping(m).MarshalJSON()
}

// UnmarshalJSON replaces the contents of m with the parsed object.
func (m *Map) UnmarshalJSON(data []byte) error {
	parsed, err := ParseJSON(data)
	if err != nil {
		return err
	}
	*m = *parsed
	return nil
}

func (v Value) appendJSON(buf *bytes.Buffer) error {
	switch v.kind {
	case KindNull:
		buf.WriteString("null")
	case KindBool:
		if v.b {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case KindNumber:
		buf.WriteString(formatNumber(v.num))
	case KindString:
		if !utf8.ValidString(v.str) {
			return fmt.Errorf("%w: string %q is not valid utf-8", ErrSerialization, v.str)
		}
		b, err := json.Marshal(v.str)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrSerialization, err)
		}
		buf.Write(b)
	case KindSequence:
		buf.WriteByte('[')
		for i, e := range v.seq {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := e.appendJSON(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindMapping:
		buf.WriteByte('{')
		var err error
		i := 0
		v.m.Range(func(k string, e Value) bool {
			if i > 0 {
				buf.WriteByte(',')
			}
			i++
			if !utf8.ValidString(k) {
				err = fmt.Errorf("%w: key %q is not valid utf-8", ErrSerialization, k)
				return false
			}
			kb, kerr := json.Marshal(k)
			if kerr != nil {
				err = fmt.Errorf("%w: %v", ErrSerialization, kerr)
				return false
			}
			buf.Write(kb)
			buf.WriteByte(':')
			err = e.appendJSON(buf)
			return err == nil
		})
		if err != nil {
			return err
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("%w: kind %s", ErrSerialization, v.kind)
	}
	return nil
}

// ParseJSON parses a JSON object, keeping key order and exact numbers.
func ParseJSON(data []byte) (*Map, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	v, err := parseValue(dec)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data after object", ErrParse)
	}
	m, ok := v.AsMap()
	if !ok {
		return nil, fmt.Errorf("%w: top level is a %s, not an object", ErrParse, v.Kind())
	}
	return m, nil
}

func parseValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		if err == io.EOF {
			return Value{}, io.ErrUnexpectedEOF
		}
		return Value{}, err
	}

	switch t := tok.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(t), nil
	case string:
		return String(t), nil
	case json.Number:
		return Number(t.String())
	case json.Delim:
		switch t {
		case '[':
			items := []Value{}
			for dec.More() {
				e, err := parseValue(dec)
				if err != nil {
					return Value{}, err
				}
				items = append(items, e)
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, err
			}
			return Seq(items...), nil
		case '{':
			m := NewMap()
			for dec.More() {
				kt, err := dec.Token()
				if err != nil {
					return Value{}, err
				}
				key, ok := kt.(string)
				if !ok {
					return Value{}, fmt.Errorf("object key is %T", kt)
				}
				e, err := parseValue(dec)
				if err != nil {
					return Value{}, err
				}
				m.Set(key, e)
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, err
			}
			return Mapping(m), nil
		}
	}
	return Value{}, fmt.Errorf("unexpected token %v", tok)
}

// maxPlainExponent bounds the positive exponents written without
// scientific notation, so 8500 stays 8500 rather than 8.5E+3.
const maxPlainExponent = 21

func formatNumber(d *apd.Decimal) string {
	if d.Exponent > 0 && d.Exponent <= maxPlainExponent {
		return d.Text('f')
	}
	return d.String()
}
