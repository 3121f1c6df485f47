// Package resource defines the identifiers and kinds shared by every
// project resource, plus their bit encoding.
package resource

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/Faultbox/midgard-anim/pkg/bitstream"
)

// ID identifies a resource inside a project.
type ID = uuid.UUID

// Nil is the zero ID, used for "no resource".
var Nil = uuid.Nil

// NewID returns a fresh random ID.
func NewID() ID {
	return uuid.New()
}

// ParseID parses the canonical textual form of an ID.
func ParseID(s string) (ID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return Nil, errors.Wrapf(err, "parsing resource id %q", s)
	}
	return id, nil
}

// MustParseID is ParseID for ids known to be valid, e.g. in tests and
// fixtures. It panics on malformed input.
func MustParseID(s string) ID {
	return uuid.MustParse(s)
}

// Kind is the resource type tag.
type Kind uint8

const (
	KindSkeleton Kind = iota
	KindMask
	KindClip
	KindGraph

	kindCount
)

// KindBits is the width of a cooked Kind tag.
const KindBits = 2

var kindNames = [...]string{
	KindSkeleton: "skeleton",
	KindMask:     "mask",
	KindClip:     "clip",
	KindGraph:    "graph",
}

// String returns the kind name used in project files.
func (k Kind) String() string {
	if k < kindCount {
		return kindNames[k]
	}
	return fmt.Sprintf("Unknown(%d)", uint8(k))
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k < kindCount
}

// ParseKind converts a kind name into a Kind.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return Kind(k), nil
		}
	}
	return 0, errors.Errorf("unknown resource kind %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, errors.Errorf("invalid resource kind %d", uint8(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// WriteID writes the 128 bits of id as four 32-bit fields.
func WriteID(w *bitstream.Writer, id ID) error {
	for i := 0; i < 16; i += 4 {
		v := uint32(id[i]) | uint32(id[i+1])<<8 | uint32(id[i+2])<<16 | uint32(id[i+3])<<24
		if err := w.WriteBits(v, 32); err != nil {
			return err
		}
	}
	return nil
}

// ReadID reads an ID written by WriteID. Errors surface through r.Err.
func ReadID(r *bitstream.Reader) ID {
	var id ID
	for i := 0; i < 16; i += 4 {
		v := r.Uint(32)
		id[i] = byte(v)
		id[i+1] = byte(v >> 8)
		id[i+2] = byte(v >> 16)
		id[i+3] = byte(v >> 24)
	}
	return id
}
