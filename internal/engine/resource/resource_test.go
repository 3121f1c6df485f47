package resource

import (
	"testing"

	"github.com/Faultbox/midgard-anim/pkg/bitstream"
)

func TestIDRoundTrip(t *testing.T) {
	ids := []ID{Nil, NewID(), NewID()}

	w := bitstream.NewWriter(make([]byte, 64))
	w.WriteBits(1, 3) // unaligned start
	for _, id := range ids {
		if err := WriteID(w, id); err != nil {
			t.Fatalf("WriteID: %v", err)
		}
	}

	r := bitstream.NewReader(w.Bytes())
	r.Uint(3)
	for _, want := range ids {
		if got := ReadID(r); got != want {
			t.Errorf("ReadID() = %s, want %s", got, want)
		}
	}
	if r.Err() != nil {
		t.Fatalf("read: %v", r.Err())
	}
}

func TestKindText(t *testing.T) {
	for k := KindSkeleton; k < kindCount; k++ {
		text, err := k.MarshalText()
		if err != nil {
			t.Fatalf("MarshalText(%d): %v", k, err)
		}
		var back Kind
		if err := back.UnmarshalText(text); err != nil {
			t.Fatalf("UnmarshalText(%s): %v", text, err)
		}
		if back != k {
			t.Errorf("kind %s round-tripped to %s", k, back)
		}
	}

	var k Kind
	if err := k.UnmarshalText([]byte("texture")); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestParseID(t *testing.T) {
	id := NewID()
	got, err := ParseID(id.String())
	if err != nil {
		t.Fatalf("ParseID: %v", err)
	}
	if got != id {
		t.Errorf("ParseID() = %s, want %s", got, id)
	}
	if _, err := ParseID("not-a-uuid"); err == nil {
		t.Error("expected error for malformed id")
	}
}
