// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package schema

// This file converts between the strings the store holds and the
// scalars that appear in JSON and XML documents.  Store strings are
// always canonical: decimal integers, "true"/"false", and the numeric
// value of enumerations.  "Typed" output turns these into JSON
// numbers, booleans and enumeration names; untyped output leaves them
// as strings.

import (
	"math"
	"strconv"
	"strings"

	"github.com/openconfig/goyang/pkg/yang"
)

// Base is the underlying representation of a leaf's values.
type Base int

const (
	// String values are stored as is.
	String Base = iota
	// Bool values are "true" or "false".
	Bool
	// Int values are signed decimal integers.
	Int
	// Uint values are unsigned decimal integers.
	Uint
	// Enum values are stored as their numeric value.
	Enum
	// Empty leaves carry no value; they are stored as "true".
	Empty
	// Decimal values are decimal64 numbers.
	Decimal
	// Union values are whichever member type accepts them first.
	Union
)

// Type describes the values of a leaf or leaf-list.
type Type struct {
	Base Base

	// Bits is the size of integer types.
	Bits int

	// Ranges holds the permitted ranges of numeric types; a value
	// must fall in at least one.
	Ranges yang.YangRange

	// Digits is the fraction-digits of a decimal64 type.
	Digits int

	// Members are the member types of a union.
	Members []*Type

	names  map[string]int64
	values map[int64]string
}

func newType(t *yang.YangType) *Type {
	if t == nil {
		return &Type{Base: String}
	}
	typ := &Type{Ranges: t.Range}
	switch t.Kind {
	case yang.Ybool:
		typ.Base = Bool
	case yang.Yint8, yang.Yint16, yang.Yint32, yang.Yint64:
		typ.Base = Int
	case yang.Yuint8, yang.Yuint16, yang.Yuint32, yang.Yuint64:
		typ.Base = Uint
	case yang.Yenum:
		typ.Base = Enum
		if t.Enum != nil {
			typ.names = t.Enum.NameMap()
			typ.values = t.Enum.ValueMap()
		}
	case yang.Yempty:
		typ.Base = Empty
	case yang.Ydecimal64:
		typ.Base = Decimal
		typ.Digits = t.FractionDigits
	case yang.Yunion:
		typ.Base = Union
		for _, member := range t.Type {
			typ.Members = append(typ.Members, newType(member))
		}
	default:
		typ.Base = String
		typ.Ranges = nil
	}
	switch t.Kind {
	case yang.Yint8, yang.Yuint8:
		typ.Bits = 8
	case yang.Yint16, yang.Yuint16:
		typ.Bits = 16
	case yang.Yint32, yang.Yuint32:
		typ.Bits = 32
	case yang.Yint64, yang.Yuint64:
		typ.Bits = 64
	}
	return typ
}

// EnumName returns the name of an enumeration value, if it has one.
func (t *Type) EnumName(value int64) (string, bool) {
	name, ok := t.values[value]
	return name, ok
}

// EnumValue returns the value of an enumeration name, if it has one.
func (t *Type) EnumValue(name string) (int64, bool) {
	value, ok := t.names[name]
	return value, ok
}

// Encode converts a store string to a wire scalar.  In untyped mode
// this is always the string itself.  In typed mode integers of up to
// 32 bits become int64 or uint64, booleans become bool, and
// enumerations become their names.  64-bit integers stay strings, as
// RFC 7951 requires, since JSON numbers cannot carry them exactly.
// Strings that do not parse as their type are returned as is.
func (t *Type) Encode(raw string, typed bool) interface{} {
	if !typed {
		return raw
	}
	if (t.Base == Int || t.Base == Uint) && t.bits() == 64 {
		return raw
	}
	switch t.Base {
	case Bool:
		switch raw {
		case "true":
			return true
		case "false":
			return false
		}
	case Int:
		if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return v
		}
	case Uint:
		if v, err := strconv.ParseUint(raw, 10, 64); err == nil {
			return v
		}
	case Enum:
		if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
			if name, ok := t.values[v]; ok {
				return name
			}
		}
	case Empty:
		return []interface{}{nil}
	case Union:
		for _, member := range t.Members {
			if canonical, err := member.Decode("", raw); err == nil && canonical == raw {
				return member.Encode(raw, typed)
			}
		}
	}
	return raw
}

// Decode converts a wire scalar to a canonical store string,
// validating it.  name is used in error messages.  A nil or empty
// value decodes to "", which deletes.
func (t *Type) Decode(name string, wire interface{}) (string, error) {
	s, ok := scalarString(wire)
	if !ok {
		if t.Base == Empty && isEmptyMarker(wire) {
			return "true", nil
		}
		return "", ErrInvalidValue{Name: name, Value: describe(wire)}
	}
	if s == "" {
		return "", nil
	}

	switch t.Base {
	case Bool:
		switch strings.ToLower(s) {
		case "true":
			return "true", nil
		case "false":
			return "false", nil
		}
		return "", ErrInvalidValue{Name: name, Value: s}

	case Int:
		v, err := strconv.ParseInt(s, 10, t.bits())
		if err != nil {
			if isRangeError(err) {
				return "", ErrOutOfRange{Name: name, Value: s}
			}
			return "", ErrInvalidValue{Name: name, Value: s}
		}
		if !t.inRange(yang.FromInt(v)) {
			return "", ErrOutOfRange{Name: name, Value: s}
		}
		return strconv.FormatInt(v, 10), nil

	case Uint:
		v, err := strconv.ParseUint(s, 10, t.bits())
		if err != nil {
			if isRangeError(err) {
				return "", ErrOutOfRange{Name: name, Value: s}
			}
			if _, serr := strconv.ParseInt(s, 10, 64); serr == nil || isRangeError(serr) {
				// A negative number
				return "", ErrOutOfRange{Name: name, Value: s}
			}
			return "", ErrInvalidValue{Name: name, Value: s}
		}
		if !t.inRange(yang.FromUint(v)) {
			return "", ErrOutOfRange{Name: name, Value: s}
		}
		return strconv.FormatUint(v, 10), nil

	case Enum:
		if v, ok := t.names[s]; ok {
			return strconv.FormatInt(v, 10), nil
		}
		if v, err := strconv.ParseInt(s, 10, 64); err == nil {
			if _, ok := t.values[v]; ok {
				return strconv.FormatInt(v, 10), nil
			}
		}
		return "", ErrInvalidEnum{Name: name, Value: s}

	case Empty:
		return "true", nil

	case Decimal:
		number, err := yang.ParseDecimal(s, uint8(t.Digits))
		if err != nil {
			return "", ErrInvalidValue{Name: name, Value: s}
		}
		if !t.inRange(number) {
			return "", ErrOutOfRange{Name: name, Value: s}
		}
		return number.String(), nil

	case Union:
		var first error
		for _, member := range t.Members {
			raw, err := member.Decode(name, wire)
			if err == nil {
				return raw, nil
			}
			if first == nil {
				first = err
			}
		}
		if first == nil {
			first = ErrInvalidValue{Name: name, Value: s}
		}
		return "", first
	}
	return s, nil
}

func (t *Type) bits() int {
	if t.Bits == 0 {
		return 64
	}
	return t.Bits
}

func (t *Type) inRange(n yang.Number) bool {
	if len(t.Ranges) == 0 {
		return true
	}
	for _, r := range t.Ranges {
		if !(r.Max.Less(n) || n.Less(r.Min)) {
			return true
		}
	}
	return false
}

func isRangeError(err error) bool {
	if numErr, ok := err.(*strconv.NumError); ok {
		return numErr.Err == strconv.ErrRange
	}
	return false
}

// scalarString renders any JSON scalar as the string it would be
// stored as.  Integral floats are accepted; other floats are
// rendered in full so that integer parsing rejects them.
func scalarString(wire interface{}) (string, bool) {
	switch v := wire.(type) {
	case nil:
		return "", true
	case string:
		return v, true
	case []byte:
		return string(v), true
	case bool:
		return strconv.FormatBool(v), true
	case int:
		return strconv.FormatInt(int64(v), 10), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case uint64:
		return strconv.FormatUint(v, 10), true
	case float64:
		if v == math.Trunc(v) && math.Abs(v) < 1<<53 {
			return strconv.FormatInt(int64(v), 10), true
		}
		return strconv.FormatFloat(v, 'f', -1, 64), true
	}
	return "", false
}

// isEmptyMarker recognizes the JSON encoding of an empty leaf, [null].
func isEmptyMarker(wire interface{}) bool {
	list, ok := wire.([]interface{})
	return ok && len(list) == 1 && list[0] == nil
}

func describe(wire interface{}) string {
	switch wire.(type) {
	case map[string]interface{}:
		return "{...}"
	case []interface{}:
		return "[...]"
	}
	return "?"
}

// Encode converts a store string for one of n's values.
func (n *Node) Encode(raw string, typed bool) interface{} {
	if n.Type == nil {
		return raw
	}
	return n.Type.Encode(raw, typed)
}

// Decode converts and validates a wire scalar for one of n's values.
func (n *Node) Decode(wire interface{}) (string, error) {
	if n.Type == nil {
		return "", ErrInvalidValue{Name: n.Name, Value: describe(wire)}
	}
	return n.Type.Decode(n.Name, wire)
}
