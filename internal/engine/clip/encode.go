package clip

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/Faultbox/midgard-anim/internal/engine/resource"
	"github.com/Faultbox/midgard-anim/internal/engine/skeleton"
	"github.com/Faultbox/midgard-anim/pkg/bitstream"
	"github.com/Faultbox/midgard-anim/pkg/math"
)

// Channel kinds, in stream order.
const (
	Translation = iota
	Rotation
	Scale
	numChannels
)

const (
	countBits = 16
	quantBits = 16
	quantMax  = 1<<quantBits - 1
)

// Env supplies what encoding needs besides the source itself.
type Env struct {
	Skeleton      *skeleton.Skeleton // target skeleton, for additive rest values
	Base          *Source            // base clip of an additive source
	DefaultScheme Scheme             // used when the source names no scheme
}

// Encode writes the cooked form of s.
//
// Layout: skeleton id, duration, scheme, optional additive header, then a
// byte-aligned region prefixed with its byte length holding three
// joint-major streams (translation, rotation, scale). Each stream is a
// channel count followed by channels of [joint, key count, quantization
// box, keys].
func (s *Source) Encode(w *bitstream.Writer, env Env) error {
	scheme := s.Scheme
	if scheme == SchemeUnset {
		scheme = env.DefaultScheme
	}
	if scheme == SchemeUnset {
		scheme = SchemeQuantized
	}

	tracks := s.Tracks
	if a := s.Additive; a != nil {
		if env.Base == nil || env.Skeleton == nil {
			return errors.Wrap(ErrInvalidClip, "additive clip encoded without base and skeleton")
		}
		tracks = s.deltaTracks(env.Skeleton, env.Base)
	}
	sorted := make([]JointTrack, len(tracks))
	copy(sorted, tracks)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Joint < sorted[j].Joint })

	resource.WriteID(w, s.Skeleton)
	w.WriteFloat32(s.Duration)
	w.WriteBits(uint32(scheme), schemeBits)
	w.WriteBool(s.Additive != nil)
	if a := s.Additive; a != nil {
		resource.WriteID(w, a.Base)
		w.WriteBool(a.Mask != resource.Nil)
		if a.Mask != resource.Nil {
			resource.WriteID(w, a.Mask)
		}
		w.WriteBool(a.Range != nil)
		if a.Range != nil {
			w.WriteFloat32(a.Range.Start)
			w.WriteFloat32(a.Range.End)
		}
	}

	w.Align()
	lenPos := w.Pos()
	w.WriteBits(0, 32)
	start := w.Pos()

	e := encoder{w: w, scheme: scheme, duration: s.Duration}
	e.vecStream(sorted, func(tr *JointTrack) []VecKey { return tr.Translation })
	e.quatStream(sorted)
	e.vecStream(sorted, func(tr *JointTrack) []VecKey { return tr.Scale })
	w.Align()

	if err := w.Err(); err != nil {
		return errors.Wrap(err, "encoding clip")
	}
	return errors.Wrap(w.Patch(lenPos, uint32((w.Pos()-start)/8), 32), "patching clip length")
}

type encoder struct {
	w        *bitstream.Writer
	scheme   Scheme
	duration float32
}

func quantize(v, lo, extent float32) uint32 {
	if extent <= 0 {
		return 0
	}
	return uint32(math.Clamp01((v-lo)/extent)*quantMax + 0.5)
}

func dequantize(q uint32, lo, extent float32) float32 {
	return lo + float32(q)/quantMax*extent
}

func (e *encoder) time(t float32) {
	if e.scheme == SchemeRaw {
		e.w.WriteFloat32(t)
		return
	}
	e.w.WriteBits(quantize(t, 0, e.duration), quantBits)
}

func (e *encoder) header(joint, keys int) {
	e.w.WriteBits(uint32(joint), countBits)
	e.w.WriteBits(uint32(keys), countBits)
}

func (e *encoder) vecStream(tracks []JointTrack, keysOf func(*JointTrack) []VecKey) {
	n := 0
	for i := range tracks {
		if len(keysOf(&tracks[i])) > 0 {
			n++
		}
	}
	e.w.WriteBits(uint32(n), countBits)
	for i := range tracks {
		keys := keysOf(&tracks[i])
		if len(keys) == 0 {
			continue
		}
		e.header(tracks[i].Joint, len(keys))

		var lo, extent math.Vec3
		if e.scheme == SchemeQuantized {
			lo, extent = bounds(keys)
			skeleton.WriteVec3(e.w, lo)
			skeleton.WriteVec3(e.w, extent)
		}
		for _, k := range keys {
			e.time(k.Time)
			if e.scheme == SchemeRaw {
				skeleton.WriteVec3(e.w, k.Value)
				continue
			}
			e.w.WriteBits(quantize(k.Value.X, lo.X, extent.X), quantBits)
			e.w.WriteBits(quantize(k.Value.Y, lo.Y, extent.Y), quantBits)
			e.w.WriteBits(quantize(k.Value.Z, lo.Z, extent.Z), quantBits)
		}
	}
}

func (e *encoder) quatStream(tracks []JointTrack) {
	n := 0
	for i := range tracks {
		if len(tracks[i].Rotation) > 0 {
			n++
		}
	}
	e.w.WriteBits(uint32(n), countBits)
	for i := range tracks {
		keys := tracks[i].Rotation
		if len(keys) == 0 {
			continue
		}
		e.header(tracks[i].Joint, len(keys))
		for _, k := range keys {
			e.time(k.Time)
			q := k.Value.Normalize()
			if e.scheme == SchemeRaw {
				skeleton.WriteQuat(e.w, q)
				continue
			}
			for _, c := range q.Array() {
				e.w.WriteBits(quantize(c, -1, 2), quantBits)
			}
		}
	}
}

// bounds returns the per-component minimum and extent of the key values.
func bounds(keys []VecKey) (lo, extent math.Vec3) {
	lo, hi := keys[0].Value, keys[0].Value
	for _, k := range keys[1:] {
		v := k.Value
		lo = math.Vec3{X: min(lo.X, v.X), Y: min(lo.Y, v.Y), Z: min(lo.Z, v.Z)}
		hi = math.Vec3{X: max(hi.X, v.X), Y: max(hi.Y, v.Y), Z: max(hi.Z, v.Z)}
	}
	return lo, hi.Sub(lo)
}
