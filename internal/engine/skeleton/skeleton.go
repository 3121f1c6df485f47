// Package skeleton holds the read-only joint hierarchy shared by every
// animated instance, per-joint masks, and the mutable per-instance Pose.
package skeleton

import (
	"fmt"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/Faultbox/midgard-anim/pkg/math"
)

// ErrInvalidSkeleton reports a joint list that breaks hierarchy rules.
var ErrInvalidSkeleton = errors.New("invalid skeleton")

// NoParent marks a root joint.
const NoParent = -1

// MaxJoints is the largest joint count the cooked format can address.
const MaxJoints = 1<<16 - 1

// TwistLimit bounds rotation around the joint's own axis, in radians.
type TwistLimit struct {
	Min float32 `yaml:"min"`
	Max float32 `yaml:"max"`
}

// Constraint describes how a joint may move. The core stores it for the IK
// solver and editors; pose evaluation never reads it.
type Constraint struct {
	ParentFrame math.Quat   `yaml:"parent_frame"` // constraint frame relative to the parent
	ChildFrame  math.Quat   `yaml:"child_frame"`  // constraint frame relative to the joint
	Swing       *float32    `yaml:"swing,omitempty"`
	Twist       *TwistLimit `yaml:"twist,omitempty"`
}

// UnmarshalYAML defaults both frames to identity.
func (c *Constraint) UnmarshalYAML(node *yaml.Node) error {
	type plain Constraint
	p := plain{ParentFrame: math.QuatIdentity(), ChildFrame: math.QuatIdentity()}
	if err := node.Decode(&p); err != nil {
		return err
	}
	*c = Constraint(p)
	return nil
}

// Joint is one element of the hierarchy. Its index in the skeleton is its
// identity.
type Joint struct {
	Name       string         `yaml:"name"`
	Parent     int            `yaml:"parent"`
	Rest       math.Transform `yaml:"rest"`
	Constraint *Constraint    `yaml:"constraint,omitempty"`
}

// UnmarshalYAML defaults the parent to NoParent and the rest pose to identity.
func (j *Joint) UnmarshalYAML(node *yaml.Node) error {
	type plain Joint
	p := plain{Parent: NoParent, Rest: math.TransformIdentity()}
	if err := node.Decode(&p); err != nil {
		return err
	}
	*j = Joint(p)
	return nil
}

// Skeleton is an ordered joint list where every parent precedes its
// children. It is immutable once built.
type Skeleton struct {
	joints []Joint
	byName map[string]int
}

// New validates joints and builds a skeleton over a copy of them.
func New(joints []Joint) (*Skeleton, error) {
	if len(joints) == 0 {
		return nil, errors.Wrap(ErrInvalidSkeleton, "no joints")
	}
	if len(joints) > MaxJoints {
		return nil, errors.Wrapf(ErrInvalidSkeleton, "%d joints exceeds %d", len(joints), MaxJoints)
	}

	s := &Skeleton{
		joints: make([]Joint, len(joints)),
		byName: make(map[string]int, len(joints)),
	}
	copy(s.joints, joints)

	for i, j := range s.joints {
		if j.Parent != NoParent && (j.Parent < 0 || j.Parent >= i) {
			return nil, errors.Wrapf(ErrInvalidSkeleton, "joint %d (%s) has parent %d, parents must precede children", i, j.Name, j.Parent)
		}
		if j.Name != "" {
			if prev, dup := s.byName[j.Name]; dup {
				return nil, errors.Wrapf(ErrInvalidSkeleton, "joint name %q used by %d and %d", j.Name, prev, i)
			}
			s.byName[j.Name] = i
		}
	}
	return s, nil
}

// MustNew is New for fixtures; it panics on error.
func MustNew(joints []Joint) *Skeleton {
	s, err := New(joints)
	if err != nil {
		panic(err)
	}
	return s
}

// Len returns the joint count.
func (s *Skeleton) Len() int {
	return len(s.joints)
}

// Joint returns joint i.
func (s *Skeleton) Joint(i int) Joint {
	return s.joints[i]
}

// Joints returns a copy of the joint list.
func (s *Skeleton) Joints() []Joint {
	out := make([]Joint, len(s.joints))
	copy(out, s.joints)
	return out
}

// Parent returns the parent index of joint i, or NoParent.
func (s *Skeleton) Parent(i int) int {
	return s.joints[i].Parent
}

// Rest returns the rest-pose local transform of joint i.
func (s *Skeleton) Rest(i int) math.Transform {
	return s.joints[i].Rest
}

// JointIndex looks a joint up by name.
func (s *Skeleton) JointIndex(name string) (int, bool) {
	i, ok := s.byName[name]
	return i, ok
}

func (s *Skeleton) String() string {
	return fmt.Sprintf("Skeleton(%d joints)", len(s.joints))
}
