// Package ctype holds the closed table of primitive types a routine may
// declare, with the C spelling and Go representation of each.
package ctype

import (
	"fmt"
	"math"
	"reflect"
	"slices"
)

// Tag identifies one primitive type from the table.
type Tag uint8

const (
	Invalid Tag = iota
	Int32
	Int64
	Float32
	Float64
)

// info describes one row of the table.
type info struct {
	name  string       // Go spelling used in routine source
	cName string       // C spelling used by the translator
	goTyp reflect.Type // type carried across the native boundary
	float bool
	rank  int // usual arithmetic conversion rank
}

// table is the complete set of supported types. Adding a row is an explicit
// change; lookups never fall back to a default.
var table = map[Tag]info{
	Int32:   {name: "int32", cName: "int", goTyp: reflect.TypeFor[int32](), rank: 1},
	Int64:   {name: "int64", cName: "long long", goTyp: reflect.TypeFor[int64](), rank: 2},
	Float32: {name: "float32", cName: "float", goTyp: reflect.TypeFor[float32](), float: true, rank: 3},
	Float64: {name: "float64", cName: "double", goTyp: reflect.TypeFor[float64](), float: true, rank: 4},
}

// Lookup resolves a type name from routine source.
func Lookup(name string) (Tag, bool) {
	for tag, row := range table {
		if row.name == name {
			return tag, true
		}
	}
	return Invalid, false
}

// Names returns the accepted type names in table order.
func Names() []string {
	names := make([]string, 0, len(table))
	for _, tag := range []Tag{Int32, Int64, Float32, Float64} {
		names = append(names, table[tag].name)
	}
	return slices.Clip(names)
}

func (t Tag) String() string {
	if row, ok := table[t]; ok {
		return row.name
	}
	return fmt.Sprintf("ctype.Tag(%d)", uint8(t))
}

// Valid reports whether t is a row of the table.
func (t Tag) Valid() bool {
	_, ok := table[t]
	return ok
}

// CName returns the C spelling of t.
func (t Tag) CName() string { return table[t].cName }

// GoType returns the Go type used to pass t across the native boundary.
func (t Tag) GoType() reflect.Type { return table[t].goTyp }

// IsFloat reports whether t is passed in floating-point registers.
func (t Tag) IsFloat() bool { return table[t].float }

// Promote applies the C usual arithmetic conversions to a pair of operand
// types. Both operands must be valid.
func Promote(a, b Tag) Tag {
	if table[a].rank >= table[b].rank {
		return a
	}
	return b
}

// Convert coerces a Go numeric value to the Go representation of t using
// Go conversion semantics, which match C for the table's types: floats
// truncate toward zero when converted to integers, wide integers wrap.
func Convert(v any, t Tag) (any, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("convert to %v: unknown type", t)
	}
	if f, ok := asFloat(v); ok {
		if !table[t].float && (math.IsNaN(f) || math.IsInf(f, 0)) {
			return nil, fmt.Errorf("convert %v to %v: not finite", v, t)
		}
		switch t {
		case Int32:
			return int32(int64(f)), nil
		case Int64:
			return int64(f), nil
		case Float32:
			return float32(f), nil
		default:
			return f, nil
		}
	}
	if i, ok := asInt(v); ok {
		switch t {
		case Int32:
			return int32(i), nil
		case Int64:
			return i, nil
		case Float32:
			return float32(i), nil
		default:
			return float64(i), nil
		}
	}
	return nil, fmt.Errorf("convert %T to %v: not a number", v, t)
}

// asFloat reports v as a float64 when v is a Go floating-point value. A
// float32 is widened exactly.
func asFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float32:
		return float64(x), true
	case float64:
		return x, true
	}
	return 0, false
}

func asInt(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case uint:
		return int64(x), true
	case uint8:
		return int64(x), true
	case uint16:
		return int64(x), true
	case uint32:
		return int64(x), true
	case uint64:
		return int64(x), true
	}
	return 0, false
}
