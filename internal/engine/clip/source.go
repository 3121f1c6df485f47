// Package clip holds animation clips in their editable form (Source) and in
// their cooked, bit-packed form (Clip), plus the streaming Cursor that
// decodes a cooked clip while playback time moves forward.
package clip

import (
	"fmt"
	stdmath "math"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/Faultbox/midgard-anim/internal/engine/resource"
	"github.com/Faultbox/midgard-anim/internal/engine/skeleton"
	"github.com/Faultbox/midgard-anim/pkg/math"
)

// ErrInvalidClip reports a source clip that cannot be cooked.
var ErrInvalidClip = errors.New("invalid clip")

// MaxKeys is the most keys one track can hold.
const MaxKeys = 1<<16 - 1

// Scheme selects how keys are stored in a cooked clip.
type Scheme uint8

const (
	// SchemeUnset defers to the cook default.
	SchemeUnset Scheme = iota
	// SchemeRaw stores times and components as 32-bit floats.
	SchemeRaw
	// SchemeQuantized stores 16 bits per time and component.
	SchemeQuantized
)

const schemeBits = 2

func (s Scheme) String() string {
	switch s {
	case SchemeUnset:
		return ""
	case SchemeRaw:
		return "raw"
	case SchemeQuantized:
		return "quantized"
	default:
		return fmt.Sprintf("Scheme(%d)", uint8(s))
	}
}

// ParseScheme parses a scheme name; the empty string is SchemeUnset.
func ParseScheme(s string) (Scheme, error) {
	switch s {
	case "":
		return SchemeUnset, nil
	case "raw":
		return SchemeRaw, nil
	case "quantized":
		return SchemeQuantized, nil
	}
	return SchemeUnset, errors.Errorf("unknown clip scheme %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (s Scheme) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Scheme) UnmarshalText(text []byte) error {
	v, err := ParseScheme(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// VecKey is a translation or scale keyframe.
type VecKey struct {
	Time  float32   `yaml:"time"`
	Value math.Vec3 `yaml:"value"`
}

// QuatKey is a rotation keyframe.
type QuatKey struct {
	Time  float32   `yaml:"time"`
	Value math.Quat `yaml:"value"`
}

// JointTrack holds the keyframes of one joint. Any of the three tracks may
// be empty, in which case that component is left as the pose has it.
type JointTrack struct {
	Joint       int       `yaml:"joint"`
	Translation []VecKey  `yaml:"translation,omitempty"`
	Rotation    []QuatKey `yaml:"rotation,omitempty"`
	Scale       []VecKey  `yaml:"scale,omitempty"`
}

// TimeRange is a window of the base clip an additive clip maps onto.
type TimeRange struct {
	Start float32 `yaml:"start"`
	End   float32 `yaml:"end"`
}

// AdditiveSource turns a clip into a delta against a base clip.
type AdditiveSource struct {
	Base  resource.ID `yaml:"base"`
	Mask  resource.ID `yaml:"mask,omitempty"` // Nil applies to every joint
	Range *TimeRange  `yaml:"range,omitempty"`
}

// Source is an editable clip as produced by import or written by hand.
type Source struct {
	Skeleton resource.ID     `yaml:"skeleton"`
	Duration float32         `yaml:"duration"`
	Scheme   Scheme          `yaml:"scheme,omitempty"`
	Tracks   []JointTrack    `yaml:"tracks"`
	Additive *AdditiveSource `yaml:"additive,omitempty"`
}

// Validate checks the source against its skeleton and reports every
// problem found.
func (s *Source) Validate(skel *skeleton.Skeleton) error {
	var errs error
	fail := func(format string, args ...interface{}) {
		errs = multierr.Append(errs, errors.Wrapf(ErrInvalidClip, format, args...))
	}

	if s.Duration < 0 || stdmath.IsNaN(float64(s.Duration)) || stdmath.IsInf(float64(s.Duration), 0) {
		fail("duration %v", s.Duration)
	}
	if s.Scheme > SchemeQuantized {
		fail("unknown scheme %d", s.Scheme)
	}

	seen := make(map[int]bool, len(s.Tracks))
	for i, tr := range s.Tracks {
		if tr.Joint < 0 || tr.Joint >= skel.Len() {
			fail("track %d: joint %d out of range [0, %d)", i, tr.Joint, skel.Len())
			continue
		}
		if seen[tr.Joint] {
			fail("track %d: joint %d animated twice", i, tr.Joint)
		}
		seen[tr.Joint] = true

		if n := max(len(tr.Translation), len(tr.Rotation), len(tr.Scale)); n > MaxKeys {
			fail("joint %d: %d keys in one track, at most %d", tr.Joint, n, MaxKeys)
		}
		if err := s.checkTimes(len(tr.Translation), func(k int) float32 { return tr.Translation[k].Time }); err != "" {
			fail("joint %d translation: %s", tr.Joint, err)
		}
		if err := s.checkTimes(len(tr.Rotation), func(k int) float32 { return tr.Rotation[k].Time }); err != "" {
			fail("joint %d rotation: %s", tr.Joint, err)
		}
		if err := s.checkTimes(len(tr.Scale), func(k int) float32 { return tr.Scale[k].Time }); err != "" {
			fail("joint %d scale: %s", tr.Joint, err)
		}
		for k, key := range tr.Rotation {
			if key.Value.Dot(key.Value) == 0 {
				fail("joint %d rotation key %d is a zero quaternion", tr.Joint, k)
			}
		}
	}
	return errs
}

func (s *Source) checkTimes(n int, at func(int) float32) string {
	prev := float32(-1)
	for k := 0; k < n; k++ {
		t := at(k)
		if t < 0 || t > s.Duration {
			return fmt.Sprintf("key %d at %v outside [0, %v]", k, t, s.Duration)
		}
		if t <= prev {
			return fmt.Sprintf("key %d at %v not after %v", k, t, prev)
		}
		prev = t
	}
	return ""
}

// ValidateAdditive checks an additive source against its resolved base and
// mask. mask may be nil.
func (s *Source) ValidateAdditive(base *Source, mask *skeleton.Mask) error {
	a := s.Additive
	if a == nil {
		return nil
	}
	var errs error
	if base == nil {
		return errors.Wrapf(ErrInvalidClip, "base clip %s not found", a.Base)
	}
	if base.Additive != nil {
		errs = multierr.Append(errs, errors.Wrapf(ErrInvalidClip, "base clip %s is itself additive", a.Base))
	}
	if base.Skeleton != s.Skeleton {
		errs = multierr.Append(errs, errors.Wrapf(ErrInvalidClip, "base clip skeleton %s, want %s", base.Skeleton, s.Skeleton))
	}
	if mask != nil && mask.Skeleton != s.Skeleton {
		errs = multierr.Append(errs, errors.Wrapf(ErrInvalidClip, "mask skeleton %s, want %s", mask.Skeleton, s.Skeleton))
	}
	if r := a.Range; r != nil && (r.Start < 0 || r.End < r.Start || r.End > base.Duration) {
		errs = multierr.Append(errs, errors.Wrapf(ErrInvalidClip, "base range [%v, %v] outside [0, %v]", r.Start, r.End, base.Duration))
	}
	return errs
}
