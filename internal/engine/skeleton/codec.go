package skeleton

import (
	"github.com/pkg/errors"

	"github.com/Faultbox/midgard-anim/internal/engine/resource"
	"github.com/Faultbox/midgard-anim/pkg/bitstream"
	"github.com/Faultbox/midgard-anim/pkg/math"
)

const countBits = 16

// WriteVec3 writes three raw float32 components.
func WriteVec3(w *bitstream.Writer, v math.Vec3) {
	w.WriteFloat32(v.X)
	w.WriteFloat32(v.Y)
	w.WriteFloat32(v.Z)
}

// ReadVec3 reads a vector written by WriteVec3.
func ReadVec3(r *bitstream.Reader) math.Vec3 {
	return math.Vec3{X: r.Float32(), Y: r.Float32(), Z: r.Float32()}
}

// WriteQuat writes four raw float32 components.
func WriteQuat(w *bitstream.Writer, q math.Quat) {
	w.WriteFloat32(q.X)
	w.WriteFloat32(q.Y)
	w.WriteFloat32(q.Z)
	w.WriteFloat32(q.W)
}

// ReadQuat reads a quaternion written by WriteQuat.
func ReadQuat(r *bitstream.Reader) math.Quat {
	return math.Quat{X: r.Float32(), Y: r.Float32(), Z: r.Float32(), W: r.Float32()}
}

// WriteTransform writes translation, rotation and scale as raw floats.
func WriteTransform(w *bitstream.Writer, t math.Transform) {
	WriteVec3(w, t.Translation)
	WriteQuat(w, t.Rotation)
	WriteVec3(w, t.Scale)
}

// ReadTransform reads a transform written by WriteTransform.
func ReadTransform(r *bitstream.Reader) math.Transform {
	return math.Transform{
		Translation: ReadVec3(r),
		Rotation:    ReadQuat(r),
		Scale:       ReadVec3(r),
	}
}

// Encode writes the skeleton.
func (s *Skeleton) Encode(w *bitstream.Writer) error {
	n := len(s.joints)
	w.WriteBits(uint32(n), countBits)
	parentBits := bitstream.BitsFor(n)
	for _, j := range s.joints {
		w.WriteString(j.Name)
		w.WriteBool(j.Parent != NoParent)
		if j.Parent != NoParent {
			w.WriteBits(uint32(j.Parent), parentBits)
		}
		WriteTransform(w, j.Rest)

		w.WriteBool(j.Constraint != nil)
		if c := j.Constraint; c != nil {
			WriteQuat(w, c.ParentFrame)
			WriteQuat(w, c.ChildFrame)
			w.WriteBool(c.Swing != nil)
			if c.Swing != nil {
				w.WriteFloat32(*c.Swing)
			}
			w.WriteBool(c.Twist != nil)
			if c.Twist != nil {
				w.WriteFloat32(c.Twist.Min)
				w.WriteFloat32(c.Twist.Max)
			}
		}
	}
	return errors.Wrap(w.Err(), "encoding skeleton")
}

// Decode reads a skeleton written by Encode.
func Decode(r *bitstream.Reader) (*Skeleton, error) {
	n := int(r.Uint(countBits))
	parentBits := bitstream.BitsFor(n)
	joints := make([]Joint, 0, n)
	for i := 0; i < n && r.Err() == nil; i++ {
		j := Joint{Name: r.String(), Parent: NoParent}
		if r.Bool() {
			j.Parent = int(r.Uint(parentBits))
		}
		j.Rest = ReadTransform(r)

		if r.Bool() {
			c := &Constraint{ParentFrame: ReadQuat(r), ChildFrame: ReadQuat(r)}
			if r.Bool() {
				swing := r.Float32()
				c.Swing = &swing
			}
			if r.Bool() {
				c.Twist = &TwistLimit{Min: r.Float32(), Max: r.Float32()}
			}
			j.Constraint = c
		}
		joints = append(joints, j)
	}
	if err := r.Err(); err != nil {
		return nil, errors.Wrap(err, "decoding skeleton")
	}
	return New(joints)
}

// Encode writes the mask.
func (m *Mask) Encode(w *bitstream.Writer) error {
	resource.WriteID(w, m.Skeleton)
	w.WriteBits(uint32(len(m.Weights)), countBits)
	for _, v := range m.Weights {
		w.WriteFloat32(v)
	}
	return errors.Wrap(w.Err(), "encoding mask")
}

// DecodeMask reads a mask written by Mask.Encode.
func DecodeMask(r *bitstream.Reader) (*Mask, error) {
	m := &Mask{Skeleton: resource.ReadID(r)}
	n := int(r.Uint(countBits))
	if r.Err() == nil {
		m.Weights = make([]float32, n)
		for i := range m.Weights {
			m.Weights[i] = r.Float32()
		}
	}
	if err := r.Err(); err != nil {
		return nil, errors.Wrap(err, "decoding mask")
	}
	return m, nil
}
