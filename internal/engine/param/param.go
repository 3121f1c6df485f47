// Package param defines the typed parameter store the graph player reads
// from. Game code owns the store and writes it between ticks.
package param

import (
	"fmt"
	"strconv"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Kind is the type tag of a Value.
type Kind uint8

const (
	KindNone Kind = iota
	KindInt
	KindFloat
	KindBool
)

// KindBits is the width of a cooked Kind tag.
const KindBits = 2

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(k))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "none", "":
		*k = KindNone
	case "int":
		*k = KindInt
	case "float":
		*k = KindFloat
	case "bool":
		*k = KindBool
	default:
		return errors.Errorf("unknown parameter kind %q", text)
	}
	return nil
}

// Value is a tagged parameter value. The zero Value has KindNone.
type Value struct {
	kind Kind
	i    int32
	f    float32
	b    bool
}

// Int returns an int value.
func Int(v int32) Value { return Value{kind: KindInt, i: v} }

// Float returns a float value.
func Float(v float32) Value { return Value{kind: KindFloat, f: v} }

// Bool returns a bool value.
func Bool(v bool) Value { return Value{kind: KindBool, b: v} }

// Kind returns the type tag.
func (v Value) Kind() Kind { return v.kind }

// IsNone reports whether the value is unset.
func (v Value) IsNone() bool { return v.kind == KindNone }

// IsZero lets yaml omitempty drop unset values.
func (v Value) IsZero() bool { return v.kind == KindNone }

// AsInt returns the value as an int. Floats truncate, bools map to 0/1.
func (v Value) AsInt() int32 {
	switch v.kind {
	case KindInt:
		return v.i
	case KindFloat:
		return int32(v.f)
	case KindBool:
		if v.b {
			return 1
		}
	}
	return 0
}

// AsFloat returns the value as a float. Bools map to 0/1.
func (v Value) AsFloat() float32 {
	switch v.kind {
	case KindInt:
		return float32(v.i)
	case KindFloat:
		return v.f
	case KindBool:
		if v.b {
			return 1
		}
	}
	return 0
}

// AsBool returns the value as a bool; numbers are true when non-zero.
func (v Value) AsBool() bool {
	switch v.kind {
	case KindInt:
		return v.i != 0
	case KindFloat:
		return v.f != 0
	case KindBool:
		return v.b
	}
	return false
}

// Equal compares two values. Values of different kinds compare by their
// float coercion so an int parameter can match a float literal; none only
// equals none.
func (v Value) Equal(other Value) bool {
	if v.kind == KindNone || other.kind == KindNone {
		return v.kind == other.kind
	}
	if v.kind == other.kind {
		return v == other
	}
	return v.AsFloat() == other.AsFloat()
}

func (v Value) String() string {
	switch v.kind {
	case KindInt:
		return strconv.FormatInt(int64(v.i), 10)
	case KindFloat:
		return strconv.FormatFloat(float64(v.f), 'g', -1, 32)
	case KindBool:
		return strconv.FormatBool(v.b)
	default:
		return "none"
	}
}

// Parse reads a value of the given kind from text.
func Parse(kind Kind, text string) (Value, error) {
	switch kind {
	case KindInt:
		n, err := strconv.ParseInt(text, 10, 32)
		if err != nil {
			return Value{}, errors.Wrapf(err, "parsing int parameter %q", text)
		}
		return Int(int32(n)), nil
	case KindFloat:
		f, err := strconv.ParseFloat(text, 32)
		if err != nil {
			return Value{}, errors.Wrapf(err, "parsing float parameter %q", text)
		}
		return Float(float32(f)), nil
	case KindBool:
		b, err := strconv.ParseBool(text)
		if err != nil {
			return Value{}, errors.Wrapf(err, "parsing bool parameter %q", text)
		}
		return Bool(b), nil
	default:
		return Value{}, nil
	}
}

// Infer parses text as bool, then int, then float.
func Infer(text string) (Value, error) {
	if b, err := strconv.ParseBool(text); err == nil {
		return Bool(b), nil
	}
	if n, err := strconv.ParseInt(text, 10, 32); err == nil {
		return Int(int32(n)), nil
	}
	if f, err := strconv.ParseFloat(text, 32); err == nil {
		return Float(float32(f)), nil
	}
	return Value{}, errors.Errorf("cannot infer parameter value from %q", text)
}

// MarshalYAML writes the bare scalar.
func (v Value) MarshalYAML() (interface{}, error) {
	switch v.kind {
	case KindInt:
		return v.i, nil
	case KindFloat:
		// Tagged so that whole numbers read back as floats.
		return &yaml.Node{
			Kind:  yaml.ScalarNode,
			Tag:   "!!float",
			Value: strconv.FormatFloat(float64(v.f), 'g', -1, 32),
		}, nil
	case KindBool:
		return v.b, nil
	default:
		return nil, nil
	}
}

// UnmarshalYAML accepts a bare scalar and infers its kind from the YAML tag.
func (v *Value) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return errors.Errorf("line %d: parameter value must be a scalar", node.Line)
	}
	switch node.ShortTag() {
	case "!!null":
		*v = Value{}
		return nil
	case "!!bool":
		return v.decode(node, KindBool)
	case "!!int":
		return v.decode(node, KindInt)
	case "!!float":
		return v.decode(node, KindFloat)
	}
	return errors.Errorf("line %d: unsupported parameter value %q", node.Line, node.Value)
}

func (v *Value) decode(node *yaml.Node, kind Kind) error {
	switch kind {
	case KindBool:
		var b bool
		if err := node.Decode(&b); err != nil {
			return err
		}
		*v = Bool(b)
	case KindInt:
		var n int32
		if err := node.Decode(&n); err != nil {
			return err
		}
		*v = Int(n)
	case KindFloat:
		var f float32
		if err := node.Decode(&f); err != nil {
			return err
		}
		*v = Float(f)
	}
	return nil
}
