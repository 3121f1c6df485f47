package clip

import (
	"fmt"
	"sort"

	"github.com/Faultbox/midgard-anim/internal/engine/skeleton"
	"github.com/Faultbox/midgard-anim/pkg/math"
)

// coeff returns the clamped interpolation factor of t between two key
// times.
func coeff(t, lt, rt float32) float32 {
	if rt <= lt {
		return 1
	}
	return math.Clamp01((t - lt) / (rt - lt))
}

func lerpVec(a, b math.Vec3, c float32) math.Vec3 {
	if c <= 0 {
		return a
	}
	if c >= 1 {
		return b
	}
	return a.Lerp(b, c)
}

func sampleVec(keys []VecKey, t float32) math.Vec3 {
	i := sort.Search(len(keys), func(i int) bool { return keys[i].Time >= t })
	switch i {
	case 0:
		return keys[0].Value
	case len(keys):
		return keys[len(keys)-1].Value
	}
	l, r := keys[i-1], keys[i]
	return lerpVec(l.Value, r.Value, coeff(t, l.Time, r.Time))
}

func sampleQuat(keys []QuatKey, t float32) math.Quat {
	i := sort.Search(len(keys), func(i int) bool { return keys[i].Time >= t })
	switch i {
	case 0:
		return keys[0].Value.Normalize()
	case len(keys):
		return keys[len(keys)-1].Value.Normalize()
	}
	l, r := keys[i-1], keys[i]
	return l.Value.Normalize().Slerp(r.Value.Normalize(), coeff(t, l.Time, r.Time))
}

// at overrides the animated components of local with the track values at t.
func (tr *JointTrack) at(t float32, local math.Transform) math.Transform {
	if len(tr.Translation) > 0 {
		local.Translation = sampleVec(tr.Translation, t)
	}
	if len(tr.Rotation) > 0 {
		local.Rotation = sampleQuat(tr.Rotation, t)
	}
	if len(tr.Scale) > 0 {
		local.Scale = sampleVec(tr.Scale, t)
	}
	return local
}

// delta is at for a track of additive deltas: missing components are the
// neutral delta.
func (tr *JointTrack) delta(t float32) math.Transform {
	return tr.at(t, math.Transform{Rotation: math.QuatIdentity(), Scale: math.Vec3One()})
}

func (s *Source) track(joint int) *JointTrack {
	for i := range s.Tracks {
		if s.Tracks[i].Joint == joint {
			return &s.Tracks[i]
		}
	}
	return nil
}

func checkTime(t, duration float32) {
	if !(t >= 0 && t <= duration) {
		panic(fmt.Sprintf("clip: time %v outside [0, %v]", t, duration))
	}
}

// Sample writes the clip at time t into pose by direct key lookup, without
// a cursor. Joints and components the clip does not animate keep the pose's
// current values. Additive sources need their base; use SampleAdditive.
func (s *Source) Sample(t float32, pose *skeleton.Pose) {
	checkTime(t, s.Duration)
	if s.Additive != nil {
		panic("clip: additive source sampled without its base")
	}
	for i := range s.Tracks {
		tr := &s.Tracks[i]
		pose.SetLocal(tr.Joint, tr.at(t, pose.Local(tr.Joint)))
	}
}

// SampleAdditive samples base at the mapped time into pose and adds this
// clip's delta at t, weighted per joint by mask (nil weighs every joint 1).
func (s *Source) SampleAdditive(t float32, pose *skeleton.Pose, base *Source, mask *skeleton.Mask) {
	checkTime(t, s.Duration)
	base.Sample(baseTime(t, s.Duration, s.Additive.Range, base.Duration), pose)
	for _, tr := range s.deltaTracks(pose.Skeleton(), base) {
		w := mask.Weight(tr.Joint)
		pose.SetLocal(tr.Joint, pose.Local(tr.Joint).AddDelta(tr.delta(t), w))
	}
}

// baseTime maps a time of an additive clip onto its base clip.
func baseTime(t, duration float32, r *TimeRange, baseDuration float32) float32 {
	var bt float32
	if r != nil {
		bt = r.Start
		if duration > 0 {
			bt += t / duration * (r.End - r.Start)
		}
	} else {
		bt = t
	}
	if bt > baseDuration {
		bt = baseDuration
	}
	if bt < 0 {
		bt = 0
	}
	return bt
}

// deltaTracks converts the source keys into per-key deltas against the base
// clip sampled at the mapped time. Joints the base does not animate are
// compared against the rest pose.
func (s *Source) deltaTracks(skel *skeleton.Skeleton, base *Source) []JointTrack {
	out := make([]JointTrack, 0, len(s.Tracks))
	ref := func(joint int, t float32) math.Transform {
		rest := skel.Rest(joint)
		if bt := base.track(joint); bt != nil {
			return bt.at(baseTime(t, s.Duration, s.Additive.Range, base.Duration), rest)
		}
		return rest
	}
	for _, tr := range s.Tracks {
		d := JointTrack{Joint: tr.Joint}
		for _, k := range tr.Translation {
			b := ref(tr.Joint, k.Time)
			d.Translation = append(d.Translation, VecKey{Time: k.Time, Value: k.Value.Sub(b.Translation)})
		}
		for _, k := range tr.Rotation {
			b := ref(tr.Joint, k.Time)
			d.Rotation = append(d.Rotation, QuatKey{Time: k.Time, Value: b.Rotation.Conjugate().Mul(k.Value.Normalize()).Normalize()})
		}
		for _, k := range tr.Scale {
			b := ref(tr.Joint, k.Time)
			d.Scale = append(d.Scale, VecKey{Time: k.Time, Value: k.Value.Div(b.Scale)})
		}
		out = append(out, d)
	}
	return out
}
