package value

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"

	"github.com/cockroachdb/apd/v3"
)

// From converts a plain Go value into a Value.
//
// Accepted inputs are nil, bool, string, the integer and float types,
// json.Number, apd decimals, Value, *Map, slices and arrays of accepted
// values, and maps with string keys. Go maps have no order, so their keys
// are sorted. Anything else fails with ErrSerialization.
func From(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Null(), nil
	case Value:
		return t, nil
	case *Map:
		return Mapping(t), nil
	case bool:
		return Bool(t), nil
	case string:
		return String(t), nil
	case int:
		return Int(int64(t)), nil
	case int8:
		return Int(int64(t)), nil
	case int16:
		return Int(int64(t)), nil
	case int32:
		return Int(int64(t)), nil
	case int64:
		return Int(t), nil
	case uint:
		return Uint(uint64(t)), nil
	case uint8:
		return Uint(uint64(t)), nil
	case uint16:
		return Uint(uint64(t)), nil
	case uint32:
		return Uint(uint64(t)), nil
	case uint64:
		return Uint(t), nil
	case float32:
		return Float32(t)
	case float64:
		return Float(t)
	case json.Number:
		return Number(t.String())
	case *apd.Decimal:
		return Decimal(t)
	case apd.Decimal:
		return Decimal(&t)
	case []any:
		items := make([]Value, 0, len(t))
		for i, e := range t {
			v, err := From(e)
			if err != nil {
				return Value{}, fmt.Errorf("index %d: %w", i, err)
			}
			items = append(items, v)
		}
		return Seq(items...), nil
	case map[string]any:
		m := NewMap()
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if err := m.SetAny(k, t[k]); err != nil {
				return Value{}, err
			}
		}
		return Mapping(m), nil
	}

	return fromReflect(reflect.ValueOf(x))
}

// fromReflect handles typed slices and string-keyed maps such as []float64
// or map[string]string.
func fromReflect(rv reflect.Value) (Value, error) {
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return Seq(), nil
		}
		items := make([]Value, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			v, err := From(rv.Index(i).Interface())
			if err != nil {
				return Value{}, fmt.Errorf("index %d: %w", i, err)
			}
			items = append(items, v)
		}
		return Seq(items...), nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return Value{}, fmt.Errorf("%w: map key type %s", ErrSerialization, rv.Type().Key())
		}
		keys := make([]string, 0, rv.Len())
		for _, k := range rv.MapKeys() {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)
		m := NewMap()
		for _, k := range keys {
			e := rv.MapIndex(reflect.ValueOf(k).Convert(rv.Type().Key()))
			if err := m.SetAny(k, e.Interface()); err != nil {
				return Value{}, err
			}
		}
		return Mapping(m), nil
	case reflect.Pointer:
		if rv.IsNil() {
			return Null(), nil
		}
		return From(rv.Elem().Interface())
	case reflect.Invalid:
		return Null(), nil
	}
	return Value{}, fmt.Errorf("%w: unsupported type %s", ErrSerialization, rv.Type())
}

// FromMap converts a plain Go map into a *Map with sorted keys.
func FromMap(m map[string]any) (*Map, error) {
	v, err := From(m)
	if err != nil {
		return nil, err
	}
	out, _ := v.AsMap()
	return out, nil
}
