package skeleton

import (
	"fmt"

	"github.com/Faultbox/midgard-anim/pkg/math"
)

// Pose is one instance's joint-space transforms plus a lazily rebuilt cache
// of object-space (world) transforms.
//
// The cache is valid for every joint below dirty. Writing joint i lowers
// dirty to at most i; reading the world transform of joint i at or above
// dirty recomputes [dirty, i] in one pass, which is enough because parents
// always precede their children.
type Pose struct {
	skeleton *Skeleton
	local    []math.Transform
	world    []math.Transform
	dirty    int
}

// NewPose returns a pose for s set to the rest pose. The skeleton is
// borrowed and must outlive the pose.
func NewPose(s *Skeleton) *Pose {
	p := &Pose{
		skeleton: s,
		local:    make([]math.Transform, s.Len()),
		world:    make([]math.Transform, s.Len()),
	}
	p.Reset()
	return p
}

// Skeleton returns the skeleton the pose is laid out for.
func (p *Pose) Skeleton() *Skeleton {
	return p.skeleton
}

// Len returns the joint count.
func (p *Pose) Len() int {
	return len(p.local)
}

// DirtyIndex returns the lowest joint whose world transform is stale.
func (p *Pose) DirtyIndex() int {
	return p.dirty
}

// Reset restores the rest pose.
func (p *Pose) Reset() {
	for i := range p.local {
		p.local[i] = p.skeleton.joints[i].Rest
	}
	p.dirty = 0
}

func (p *Pose) check(i int) {
	if i < 0 || i >= len(p.local) {
		panic(fmt.Sprintf("skeleton: joint %d out of range [0, %d)", i, len(p.local)))
	}
}

func (p *Pose) checkSame(other *Pose) {
	if other.skeleton != p.skeleton {
		panic("skeleton: poses belong to different skeletons")
	}
}

// Local returns the joint-space transform of joint i.
func (p *Pose) Local(i int) math.Transform {
	p.check(i)
	return p.local[i]
}

// SetLocal writes the joint-space transform of joint i.
func (p *Pose) SetLocal(i int, t math.Transform) {
	p.check(i)
	p.local[i] = t
	if i < p.dirty {
		p.dirty = i
	}
}

// World returns the object-space transform of joint i.
func (p *Pose) World(i int) math.Transform {
	p.check(i)
	if i >= p.dirty {
		p.rebuild(i)
	}
	return p.world[i]
}

// WorldMatrix returns World(i) as a column-major matrix for renderers.
func (p *Pose) WorldMatrix(i int) math.Mat4 {
	return p.World(i).Matrix()
}

func (p *Pose) rebuild(upto int) {
	joints := p.skeleton.joints
	for j := p.dirty; j <= upto; j++ {
		parent := joints[j].Parent
		if parent == NoParent {
			p.world[j] = p.local[j]
		} else {
			p.world[j] = p.world[parent].Mul(p.local[j])
		}
	}
	p.dirty = upto + 1
}

// CopyFrom copies the joint-space transforms of src.
func (p *Pose) CopyFrom(src *Pose) {
	if src == p {
		return
	}
	p.checkSame(src)
	copy(p.local, src.local)
	p.dirty = 0
}

// Blend writes the per-joint blend of a and b at weight w into p.
// Translation and scale are lerped, rotation slerped; w<=0 yields a and
// w>=1 yields b exactly. a or b may be p itself.
func (p *Pose) Blend(a, b *Pose, w float32) {
	p.checkSame(a)
	p.checkSame(b)
	for i := range p.local {
		p.local[i] = a.local[i].Lerp(b.local[i], w)
	}
	p.dirty = 0
}

// AddRelativeToRest adds other's offset from the rest pose onto p,
// unweighted, joint by joint.
func (p *Pose) AddRelativeToRest(other *Pose) {
	p.checkSame(other)
	joints := p.skeleton.joints
	for i := range p.local {
		d := joints[i].Rest.Delta(other.local[i])
		p.local[i] = p.local[i].AddDelta(d, 1)
	}
	p.dirty = 0
}
