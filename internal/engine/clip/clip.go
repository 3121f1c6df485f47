package clip

import (
	"github.com/pkg/errors"

	"github.com/Faultbox/midgard-anim/internal/engine/resource"
	"github.com/Faultbox/midgard-anim/internal/engine/skeleton"
	"github.com/Faultbox/midgard-anim/pkg/bitstream"
	"github.com/Faultbox/midgard-anim/pkg/math"
)

// ErrCorruptClip reports a cooked clip whose key region is inconsistent.
var ErrCorruptClip = errors.New("corrupt cooked clip")

// Additive is the cooked additive header. Base and mask are attached by
// Link once the project is loaded.
type Additive struct {
	Base  resource.ID
	Mask  resource.ID
	Range *TimeRange

	base *Clip
	mask *skeleton.Mask
}

type channel struct {
	joint  int
	keys   int
	lo     math.Vec3 // quantization box of translation and scale channels
	extent math.Vec3
	pos    int // bit offset of the first key in data
}

// Clip is a cooked clip. It is immutable and may be played by any number
// of cursors at once.
type Clip struct {
	skeleton resource.ID
	duration float32
	scheme   Scheme
	additive *Additive

	data     []byte
	channels [numChannels][]channel
}

// Decode reads a clip written by Source.Encode. The clip keeps a view of
// the reader's buffer; the buffer must not change afterwards.
func Decode(r *bitstream.Reader) (*Clip, error) {
	c := &Clip{
		skeleton: resource.ReadID(r),
		duration: r.Float32(),
		scheme:   Scheme(r.Uint(schemeBits)),
	}
	if r.Bool() {
		a := &Additive{Base: resource.ReadID(r)}
		if r.Bool() {
			a.Mask = resource.ReadID(r)
		}
		if r.Bool() {
			a.Range = &TimeRange{Start: r.Float32(), End: r.Float32()}
		}
		c.additive = a
	}
	r.Align()
	size := int(r.Uint(32))
	if err := r.Err(); err != nil {
		return nil, errors.Wrap(err, "decoding clip header")
	}
	if c.scheme != SchemeRaw && c.scheme != SchemeQuantized {
		return nil, errors.Wrapf(ErrCorruptClip, "scheme %d", c.scheme)
	}

	start := r.Pos() / 8
	if err := r.Skip(size * 8); err != nil {
		return nil, errors.Wrap(err, "decoding clip keys")
	}
	c.data = r.Buffer()[start : start+size]
	if err := c.index(); err != nil {
		return nil, err
	}
	return c, nil
}

// keyBits returns the stored size of one key of the given channel kind.
func (c *Clip) keyBits(kind int) int {
	comps := 3
	if kind == Rotation {
		comps = 4
	}
	if c.scheme == SchemeRaw {
		return 32 * (1 + comps)
	}
	return quantBits * (1 + comps)
}

// index reads the channel headers of the three streams.
func (c *Clip) index() error {
	r := bitstream.NewReader(c.data)
	for kind := range c.channels {
		n := int(r.Uint(countBits))
		prev := -1
		for i := 0; i < n && r.Err() == nil; i++ {
			ch := channel{joint: int(r.Uint(countBits)), keys: int(r.Uint(countBits))}
			if c.scheme == SchemeQuantized && kind != Rotation {
				ch.lo = skeleton.ReadVec3(r)
				ch.extent = skeleton.ReadVec3(r)
			}
			ch.pos = r.Pos()
			if r.Err() == nil && (ch.keys == 0 || ch.joint <= prev) {
				return errors.Wrapf(ErrCorruptClip, "stream %d channel %d: joint %d with %d keys", kind, i, ch.joint, ch.keys)
			}
			r.Skip(ch.keys * c.keyBits(kind))
			prev = ch.joint
			c.channels[kind] = append(c.channels[kind], ch)
		}
	}
	return errors.Wrap(r.Err(), "indexing clip keys")
}

// readKey decodes the key stored at bit offset pos of ch.
func (c *Clip) readKey(r *bitstream.Reader, kind int, ch *channel, pos int) (float32, [4]float32) {
	var v [4]float32
	r.Seek(pos)
	if c.scheme == SchemeRaw {
		t := r.Float32()
		v[0], v[1], v[2] = r.Float32(), r.Float32(), r.Float32()
		if kind == Rotation {
			v[3] = r.Float32()
		}
		return t, v
	}

	t := dequantize(r.Uint(quantBits), 0, c.duration)
	if kind == Rotation {
		for i := range v {
			v[i] = dequantize(r.Uint(quantBits), -1, 2)
		}
		return t, math.QuatFromArray(v).Normalize().Array()
	}
	v[0] = dequantize(r.Uint(quantBits), ch.lo.X, ch.extent.X)
	v[1] = dequantize(r.Uint(quantBits), ch.lo.Y, ch.extent.Y)
	v[2] = dequantize(r.Uint(quantBits), ch.lo.Z, ch.extent.Z)
	return t, v
}

// Link attaches the base clip and mask of an additive clip. mask may be
// nil. Non-additive clips ignore the call.
func (c *Clip) Link(base *Clip, mask *skeleton.Mask) error {
	a := c.additive
	if a == nil {
		return nil
	}
	if base == nil || base.additive != nil {
		return errors.Wrapf(ErrInvalidClip, "base clip %s missing or additive", a.Base)
	}
	if base.skeleton != c.skeleton {
		return errors.Wrapf(ErrInvalidClip, "base clip skeleton %s, want %s", base.skeleton, c.skeleton)
	}
	a.base = base
	a.mask = mask
	return nil
}

// Validate checks that every animated joint exists in skel.
func (c *Clip) Validate(skel *skeleton.Skeleton) error {
	for kind, chans := range c.channels {
		if n := len(chans); n > 0 && chans[n-1].joint >= skel.Len() {
			return errors.Wrapf(ErrInvalidClip, "stream %d animates joint %d of %d", kind, chans[n-1].joint, skel.Len())
		}
	}
	return nil
}

// Skeleton returns the id of the target skeleton.
func (c *Clip) Skeleton() resource.ID {
	return c.skeleton
}

// Duration returns the clip length in seconds.
func (c *Clip) Duration() float32 {
	return c.duration
}

// Scheme returns the key encoding.
func (c *Clip) Scheme() Scheme {
	return c.scheme
}

// Additive returns the additive header, or nil.
func (c *Clip) Additive() *Additive {
	return c.additive
}

// Size returns the size of the key region in bytes.
func (c *Clip) Size() int {
	return len(c.data)
}

// Channels returns the number of animated channels of a kind.
func (c *Clip) Channels(kind int) int {
	return len(c.channels[kind])
}

// Keys returns the total key count.
func (c *Clip) Keys() int {
	n := 0
	for _, chans := range c.channels {
		for _, ch := range chans {
			n += ch.keys
		}
	}
	return n
}
