package jsonval

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Encode renders v as compact JSON. Object members appear in insertion
// order, so encoding the same value twice yields identical bytes.
func Encode(v Value) []byte {
	if v == nil {
		return []byte("null")
	}
	return v.appendJSON(make([]byte, 0, 256))
}

// Decode parses data into a Value, preserving object member order and number
// literals.
func Decode(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := decodeValue(dec)
	if err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, errors.New("trailing data after JSON value")
	}
	return v, nil
}

// DecodeObject parses data and requires the result to be a JSON object.
func DecodeObject(data []byte) (*Object, error) {
	v, err := Decode(data)
	if err != nil {
		return nil, err
	}
	obj, ok := v.(*Object)
	if !ok {
		return nil, fmt.Errorf("expected JSON object, got %s", v.Kind())
	}
	return obj, nil
}

func decodeValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			obj := NewObject()
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, fmt.Errorf("object key is not a string: %v", keyTok)
				}
				val, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				obj.Set(key, val)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return obj, nil
		case '[':
			arr := &Array{}
			for dec.More() {
				val, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				arr.Elems = append(arr.Elems, val)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return arr, nil
		default:
			return nil, fmt.Errorf("unexpected delimiter %q", t.String())
		}
	case string:
		return String(t), nil
	case json.Number:
		return Number(t), nil
	case bool:
		return Bool(t), nil
	case nil:
		return Null{}, nil
	default:
		return nil, fmt.Errorf("unexpected token %v", tok)
	}
}

// appendQuoted appends s as a JSON string literal.
func appendQuoted(dst []byte, s string) []byte {
	b, err := json.Marshal(s)
	if err != nil {
		// Strings cannot fail to marshal; keep the key visible regardless.
		return append(append(dst, '"'), append([]byte(s), '"')...)
	}
	return append(dst, b...)
}

// MarshalJSON implementations let values embed directly in encoding/json
// payloads while keeping deterministic member order.

func (n Null) MarshalJSON() ([]byte, error)    { return n.appendJSON(nil), nil }
func (b Bool) MarshalJSON() ([]byte, error)    { return b.appendJSON(nil), nil }
func (n Number) MarshalJSON() ([]byte, error)  { return n.appendJSON(nil), nil }
func (s String) MarshalJSON() ([]byte, error)  { return s.appendJSON(nil), nil }
func (a *Array) MarshalJSON() ([]byte, error)  { return a.appendJSON(nil), nil }
func (o *Object) MarshalJSON() ([]byte, error) { return o.appendJSON(nil), nil }

// UnmarshalJSON replaces the object's members with the decoded data.
func (o *Object) UnmarshalJSON(data []byte) error {
	decoded, err := DecodeObject(data)
	if err != nil {
		return err
	}
	*o = *decoded
	return nil
}

// ToInterface converts a Value to plain Go types: map[string]interface{} for
// objects (order is lost), []interface{} for arrays, int64 or float64 for
// numbers. Used where libraries expect native values, such as filter
// expression evaluation.
func ToInterface(v Value) interface{} {
	switch t := v.(type) {
	case nil, Null:
		return nil
	case Bool:
		return bool(t)
	case Number:
		if i, ok := t.Int64(); ok {
			return i
		}
		if f, ok := t.Float64(); ok {
			return f
		}
		return string(t)
	case String:
		return string(t)
	case *Array:
		out := make([]interface{}, t.Len())
		for i, e := range t.Elems {
			out[i] = ToInterface(e)
		}
		return out
	case *Object:
		out := make(map[string]interface{}, t.Len())
		t.Range(func(k string, v Value) bool {
			out[k] = ToInterface(v)
			return true
		})
		return out
	default:
		return nil
	}
}
