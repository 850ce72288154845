package jsonval

import (
	"encoding/json"
	"strconv"
)

// Kind identifies the JSON type of a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

// String returns the JSON type name.
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
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// Value is one JSON value. The concrete types are Null, Bool, Number, String,
// *Array and *Object.
type Value interface {
	Kind() Kind
	// Clone returns a deep copy sharing no mutable state with the original.
	Clone() Value
	appendJSON(dst []byte) []byte
}

// Null is the JSON null.
type Null struct{}

func (Null) Kind() Kind                   { return KindNull }
func (Null) Clone() Value                 { return Null{} }
func (Null) appendJSON(dst []byte) []byte { return append(dst, "null"...) }

// Bool is a JSON boolean.
type Bool bool

func (Bool) Kind() Kind     { return KindBool }
func (b Bool) Clone() Value { return b }
func (b Bool) appendJSON(dst []byte) []byte {
	if b {
		return append(dst, "true"...)
	}
	return append(dst, "false"...)
}

// Number is a JSON number carried as its literal text.
type Number json.Number

func (Number) Kind() Kind     { return KindNumber }
func (n Number) Clone() Value { return n }
func (n Number) appendJSON(dst []byte) []byte {
	if n == "" {
		return append(dst, '0')
	}
	return append(dst, n...)
}

// Int builds a Number from an int64.
func Int(v int64) Number { return Number(strconv.FormatInt(v, 10)) }

// Float builds a Number from a float64.
func Float(v float64) Number { return Number(strconv.FormatFloat(v, 'g', -1, 64)) }

// Int64 returns the number as int64 when it parses as one.
func (n Number) Int64() (int64, bool) {
	v, err := json.Number(n).Int64()
	return v, err == nil
}

// Float64 returns the number as float64 when it parses as one.
func (n Number) Float64() (float64, bool) {
	v, err := json.Number(n).Float64()
	return v, err == nil
}

// String is a JSON string.
type String string

func (String) Kind() Kind                     { return KindString }
func (s String) Clone() Value                 { return s }
func (s String) appendJSON(dst []byte) []byte { return appendQuoted(dst, string(s)) }

// Array is a JSON array.
type Array struct {
	Elems []Value
}

// NewArray builds an array from the given elements.
func NewArray(elems ...Value) *Array {
	return &Array{Elems: elems}
}

func (*Array) Kind() Kind { return KindArray }

// Clone deep-copies the array.
func (a *Array) Clone() Value {
	if a == nil {
		return (*Array)(nil)
	}
	out := &Array{Elems: make([]Value, len(a.Elems))}
	for i, e := range a.Elems {
		out.Elems[i] = e.Clone()
	}
	return out
}

// Append adds elements to the end of the array.
func (a *Array) Append(elems ...Value) { a.Elems = append(a.Elems, elems...) }

// Len returns the number of elements.
func (a *Array) Len() int {
	if a == nil {
		return 0
	}
	return len(a.Elems)
}

func (a *Array) appendJSON(dst []byte) []byte {
	dst = append(dst, '[')
	if a != nil {
		for i, e := range a.Elems {
			if i > 0 {
				dst = append(dst, ',')
			}
			if e == nil {
				dst = append(dst, "null"...)
				continue
			}
			dst = e.appendJSON(dst)
		}
	}
	return append(dst, ']')
}

// Equal reports deep equality of two values. Numbers compare numerically, so
// 1 and 1.0 are equal.
func Equal(a, b Value) bool {
	if a == nil {
		a = Null{}
	}
	if b == nil {
		b = Null{}
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch av := a.(type) {
	case Null:
		return true
	case Bool:
		return av == b.(Bool)
	case Number:
		bv := b.(Number)
		if av == bv {
			return true
		}
		af, aok := av.Float64()
		bf, bok := bv.Float64()
		return aok && bok && af == bf
	case String:
		return av == b.(String)
	case *Array:
		bv := b.(*Array)
		if av.Len() != bv.Len() {
			return false
		}
		for i := range av.Elems {
			if !Equal(av.Elems[i], bv.Elems[i]) {
				return false
			}
		}
		return true
	case *Object:
		bv := b.(*Object)
		if av.Len() != bv.Len() {
			return false
		}
		ok := true
		av.Range(func(k string, v Value) bool {
			bvv, found := bv.Get(k)
			if !found || !Equal(v, bvv) {
				ok = false
				return false
			}
			return true
		})
		return ok
	default:
		return false
	}
}

// StringForm renders a value the way sorting and substring search see it:
// strings verbatim, scalars as their literals, composites as compact JSON,
// null as the empty string.
func StringForm(v Value) string {
	switch t := v.(type) {
	case nil, Null:
		return ""
	case String:
		return string(t)
	case Number:
		return string(t)
	case Bool:
		if t {
			return "true"
		}
		return "false"
	default:
		return string(Encode(v))
	}
}
