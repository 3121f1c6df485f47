package param

import (
	"testing"

	"gopkg.in/yaml.v3"
)

func TestCoercion(t *testing.T) {
	tests := []struct {
		v     Value
		i     int32
		f     float32
		b     bool
		kind  Kind
		label string
	}{
		{Int(3), 3, 3, true, KindInt, "3"},
		{Float(2.5), 2, 2.5, true, KindFloat, "2.5"},
		{Bool(true), 1, 1, true, KindBool, "true"},
		{Bool(false), 0, 0, false, KindBool, "false"},
		{Value{}, 0, 0, false, KindNone, "none"},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			if tt.v.Kind() != tt.kind {
				t.Errorf("Kind() = %v, want %v", tt.v.Kind(), tt.kind)
			}
			if tt.v.AsInt() != tt.i {
				t.Errorf("AsInt() = %d, want %d", tt.v.AsInt(), tt.i)
			}
			if tt.v.AsFloat() != tt.f {
				t.Errorf("AsFloat() = %v, want %v", tt.v.AsFloat(), tt.f)
			}
			if tt.v.AsBool() != tt.b {
				t.Errorf("AsBool() = %v, want %v", tt.v.AsBool(), tt.b)
			}
			if tt.v.String() != tt.label {
				t.Errorf("String() = %q, want %q", tt.v.String(), tt.label)
			}
		})
	}
}

func TestEqual(t *testing.T) {
	tests := []struct {
		a, b Value
		want bool
	}{
		{Int(1), Int(1), true},
		{Int(1), Int(2), false},
		{Int(2), Float(2), true},
		{Bool(true), Int(1), true},
		{Value{}, Value{}, true},
		{Value{}, Int(0), false},
	}
	for _, tt := range tests {
		if got := tt.a.Equal(tt.b); got != tt.want {
			t.Errorf("%v.Equal(%v) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestInfer(t *testing.T) {
	tests := map[string]Value{
		"true": Bool(true),
		"12":   Int(12),
		"0.25": Float(0.25),
	}
	for in, want := range tests {
		got, err := Infer(in)
		if err != nil {
			t.Fatalf("Infer(%q): %v", in, err)
		}
		if got != want {
			t.Errorf("Infer(%q) = %v (%v), want %v (%v)", in, got, got.Kind(), want, want.Kind())
		}
	}
	if _, err := Infer("fast"); err == nil {
		t.Error("expected error for non-value text")
	}
}

func TestValueYAML(t *testing.T) {
	var doc struct {
		A Value `yaml:"a"`
		B Value `yaml:"b"`
		C Value `yaml:"c"`
		D Value `yaml:"d"`
	}
	src := "a: 3\nb: 1.5\nc: true\nd: ~\n"
	if err := yaml.Unmarshal([]byte(src), &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if doc.A != Int(3) || doc.B != Float(1.5) || doc.C != Bool(true) || !doc.D.IsNone() {
		t.Errorf("decoded %+v", doc)
	}

	out, err := yaml.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back struct {
		A Value `yaml:"a"`
		B Value `yaml:"b"`
		C Value `yaml:"c"`
	}
	if err := yaml.Unmarshal(out, &back); err != nil {
		t.Fatalf("re-unmarshal: %v", err)
	}
	if back.A != doc.A || back.B != doc.B || back.C != doc.C {
		t.Errorf("round trip mismatch: %+v vs %+v", back, doc)
	}
}

func TestMapStore(t *testing.T) {
	s := NewMapStore()
	if !s.Get("speed").IsNone() {
		t.Error("missing parameter should be none")
	}
	s.Set("speed", Float(2))
	s.Set("grounded", Bool(true))
	if s.Get("speed") != Float(2) {
		t.Errorf("speed = %v", s.Get("speed"))
	}
	s.Set("grounded", Value{})
	if names := s.Names(); len(names) != 1 || names[0] != "speed" {
		t.Errorf("Names() = %v, want [speed]", names)
	}
}

func TestWholeFloatKeepsKind(t *testing.T) {
	out, err := yaml.Marshal(map[string]Value{"f": Float(2)})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back map[string]Value
	if err := yaml.Unmarshal(out, &back); err != nil {
		t.Fatalf("unmarshal %q: %v", out, err)
	}
	if back["f"] != Float(2) {
		t.Errorf("got %v of kind %s from %q, want float 2", back["f"], back["f"].Kind(), out)
	}
}
