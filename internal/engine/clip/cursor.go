package clip

import (
	"fmt"

	"github.com/Faultbox/midgard-anim/internal/engine/skeleton"
	"github.com/Faultbox/midgard-anim/pkg/bitstream"
	"github.com/Faultbox/midgard-anim/pkg/math"
)

// window brackets the query time with two decoded keys. A negative time
// marks an unset key.
type window struct {
	next      int // bit offset of the next unread key
	remaining int
	lt, rt    float32
	lv, rv    [4]float32
}

// Cursor is the decode state of one playback of a Clip. Queries with
// non-decreasing times advance each channel by the keys they pass; a query
// earlier than the previous one rewinds the cursor first.
type Cursor struct {
	clip      *Clip
	r         *bitstream.Reader
	windows   [numChannels][]window
	lastTime  float32
	lastJoint int
	decoded   int
	base      *Cursor
}

// NewCursor returns a cursor positioned at time 0 of c.
func NewCursor(c *Clip) *Cursor {
	cur := &Cursor{clip: c, r: bitstream.NewReader(c.data)}
	for kind := range cur.windows {
		cur.windows[kind] = make([]window, len(c.channels[kind]))
	}
	cur.Reset()
	return cur
}

// Reset rewinds the cursor to time 0.
func (cur *Cursor) Reset() {
	for kind, chans := range cur.clip.channels {
		for i := range chans {
			cur.windows[kind][i] = window{next: chans[i].pos, remaining: chans[i].keys, lt: -1, rt: -1}
		}
	}
	cur.lastTime = 0
	cur.lastJoint = -1
	if cur.base != nil {
		cur.base.Reset()
	}
}

// Clip returns the clip the cursor decodes.
func (cur *Cursor) Clip() *Clip {
	return cur.clip
}

// Time returns the last queried time.
func (cur *Cursor) Time() float32 {
	return cur.lastTime
}

// LastJoint returns the highest joint written by the last query, or -1.
func (cur *Cursor) LastJoint() int {
	return cur.lastJoint
}

// KeysDecoded returns how many keys the cursor has read from the stream
// since it was created, across rewinds.
func (cur *Cursor) KeysDecoded() int {
	return cur.decoded
}

func (cur *Cursor) advance(kind int, w *window, ch *channel, t float32) {
	for (w.lt < 0 || w.rt < t) && w.remaining > 0 {
		w.lt, w.lv = w.rt, w.rv
		w.rt, w.rv = cur.clip.readKey(cur.r, kind, ch, w.next)
		w.next += cur.clip.keyBits(kind)
		w.remaining--
		cur.decoded++
	}
	if err := cur.r.Err(); err != nil {
		panic(fmt.Sprintf("clip: reading keys: %v", err))
	}
}

func (w *window) vec(t float32) math.Vec3 {
	r := math.Vec3{X: w.rv[0], Y: w.rv[1], Z: w.rv[2]}
	if w.lt < 0 {
		return r
	}
	l := math.Vec3{X: w.lv[0], Y: w.lv[1], Z: w.lv[2]}
	return lerpVec(l, r, coeff(t, w.lt, w.rt))
}

func (w *window) quat(t float32) math.Quat {
	r := math.QuatFromArray(w.rv)
	if w.lt < 0 {
		return r
	}
	return math.QuatFromArray(w.lv).Slerp(r, coeff(t, w.lt, w.rt))
}

// Play writes the clip at time t into pose, advancing cur. t must lie in
// [0, Duration]. Components the clip does not animate keep the pose's
// current values. An additive clip first plays its base into pose, then
// adds its delta weighted by the mask.
func (c *Clip) Play(t float32, cur *Cursor, pose *skeleton.Pose) {
	checkTime(t, c.duration)
	if cur.clip != c {
		panic("clip: cursor belongs to another clip")
	}
	if t < cur.lastTime {
		cur.Reset()
	}
	cur.lastTime = t

	a := c.additive
	if a != nil {
		if a.base == nil {
			panic("clip: additive clip played before Link")
		}
		if cur.base == nil {
			cur.base = NewCursor(a.base)
		}
		a.base.Play(baseTime(t, c.duration, a.Range, a.base.duration), cur.base, pose)
	}

	// Walk the three joint-sorted channel lists together.
	var next [numChannels]int
	for {
		joint := -1
		for kind, chans := range c.channels {
			if i := next[kind]; i < len(chans) && (joint < 0 || chans[i].joint < joint) {
				joint = chans[i].joint
			}
		}
		if joint < 0 {
			break
		}

		var local math.Transform
		if a != nil {
			local = math.Transform{Rotation: math.QuatIdentity(), Scale: math.Vec3One()}
		} else {
			local = pose.Local(joint)
		}
		for kind, chans := range c.channels {
			i := next[kind]
			if i >= len(chans) || chans[i].joint != joint {
				continue
			}
			w := &cur.windows[kind][i]
			cur.advance(kind, w, &chans[i], t)
			switch kind {
			case Translation:
				local.Translation = w.vec(t)
			case Rotation:
				local.Rotation = w.quat(t)
			case Scale:
				local.Scale = w.vec(t)
			}
			next[kind]++
		}

		if a != nil {
			pose.SetLocal(joint, pose.Local(joint).AddDelta(local, a.mask.Weight(joint)))
		} else {
			pose.SetLocal(joint, local)
		}
		cur.lastJoint = joint
	}
}
