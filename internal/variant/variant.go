// Package variant defines the small set of value kinds that can be held in the
// shared store and exchanged over the wire.
package variant

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrParse is returned when text cannot be read as the requested kind.
var ErrParse = errors.New("variant parse failed")

// Kind discriminates the payload of a Variant. Its byte value is the
// one-character wire tag.
type Kind byte

const (
	KindInvalid Kind = 0
	KindInt     Kind = 'i'
	KindFloat   Kind = 'f'
	KindBool    Kind = 'b'
	KindString  Kind = 's'
)

// KindOf maps a wire tag to its Kind, or KindInvalid.
func KindOf(tag string) Kind {
	if len(tag) != 1 {
		return KindInvalid
	}
	switch k := Kind(tag[0]); k {
	case KindInt, KindFloat, KindBool, KindString:
		return k
	}
	return KindInvalid
}

// String returns the wire tag.
func (k Kind) String() string {
	if k == KindInvalid {
		return "invalid"
	}
	return string(rune(k))
}

// Variant is an immutable tagged value. The zero Variant has KindInvalid.
// Two variants are equal under == when kind and payload match.
type Variant struct {
	kind Kind
	i    int32
	f    float32
	b    bool
	s    string
}

func Int(v int32) Variant     { return Variant{kind: KindInt, i: v} }
func Float(v float32) Variant { return Variant{kind: KindFloat, f: v} }
func Bool(v bool) Variant     { return Variant{kind: KindBool, b: v} }
func String(v string) Variant { return Variant{kind: KindString, s: v} }

// Of builds a Variant from any supported primitive.
func Of[T int32 | float32 | bool | string](v T) Variant {
	switch x := any(v).(type) {
	case int32:
		return Int(x)
	case float32:
		return Float(x)
	case bool:
		return Bool(x)
	case string:
		return String(x)
	}
	panic("unreachable")
}

// Kind returns the discriminant.
func (v Variant) Kind() Kind { return v.kind }

// IsValid reports whether v holds a payload.
func (v Variant) IsValid() bool { return v.kind != KindInvalid }

// Size is the byte footprint of the payload. It is descriptive only and
// plays no part in wire framing.
func (v Variant) Size() int {
	switch v.kind {
	case KindInt, KindFloat:
		return 4
	case KindBool:
		return 1
	case KindString:
		return len(v.s)
	}
	return 0
}

func (v Variant) AsInt() (int32, bool)     { return v.i, v.kind == KindInt }
func (v Variant) AsFloat() (float32, bool) { return v.f, v.kind == KindFloat }
func (v Variant) AsBool() (bool, bool)     { return v.b, v.kind == KindBool }
func (v Variant) AsString() (string, bool) { return v.s, v.kind == KindString }

// String renders the payload in its natural textual form. Floats use the
// shortest representation that reads back to the same float32, without an
// exponent, so 123 renders as "123" and 1.5 as "1.5".
func (v Variant) String() string {
	switch v.kind {
	case KindInt:
		return strconv.FormatInt(int64(v.i), 10)
	case KindFloat:
		return strconv.FormatFloat(float64(v.f), 'f', -1, 32)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindString:
		return v.s
	}
	return ""
}

// GoString makes %#v output readable in test failures.
func (v Variant) GoString() string {
	switch v.kind {
	case KindInt:
		return fmt.Sprintf("Int(%d)", v.i)
	case KindFloat:
		return fmt.Sprintf("Float(%s)", v.String())
	case KindBool:
		return fmt.Sprintf("Bool(%t)", v.b)
	case KindString:
		return fmt.Sprintf("String(%q)", v.s)
	}
	return "Invalid"
}

// Parse reads text rendered by String back into a Variant of kind k.
// Bools accept only "true" and "false".
func Parse(k Kind, text string) (Variant, error) {
	switch k {
	case KindInt:
		n, err := strconv.ParseInt(text, 10, 32)
		if err != nil {
			return Variant{}, fmt.Errorf("%w: %q is not an int: %w", ErrParse, text, err)
		}
		return Int(int32(n)), nil
	case KindFloat:
		f, err := strconv.ParseFloat(text, 32)
		if err != nil {
			return Variant{}, fmt.Errorf("%w: %q is not a float: %w", ErrParse, text, err)
		}
		return Float(float32(f)), nil
	case KindBool:
		switch text {
		case "true":
			return Bool(true), nil
		case "false":
			return Bool(false), nil
		}
		return Variant{}, fmt.Errorf("%w: %q is not a bool", ErrParse, text)
	case KindString:
		return String(text), nil
	}
	return Variant{}, fmt.Errorf("%w: unknown kind %q", ErrParse, byte(k))
}
