package skeleton

import (
	"github.com/pkg/errors"

	"github.com/Faultbox/midgard-anim/internal/engine/resource"
)

// ErrInvalidMask reports a mask that does not fit its skeleton.
var ErrInvalidMask = errors.New("invalid skeleton mask")

// Mask assigns each joint of a skeleton a weight in [0, 1]. 0 leaves the
// joint untouched by an additive layer, 1 applies the layer fully.
type Mask struct {
	Skeleton resource.ID `yaml:"skeleton"`
	Weights  []float32   `yaml:"weights"`
}

// Weight returns the weight of joint i; joints beyond the list weigh 0.
func (m *Mask) Weight(i int) float32 {
	if m == nil {
		return 1
	}
	if i < 0 || i >= len(m.Weights) {
		return 0
	}
	return m.Weights[i]
}

// Validate checks the mask against the skeleton it targets.
func (m *Mask) Validate(s *Skeleton) error {
	if len(m.Weights) != s.Len() {
		return errors.Wrapf(ErrInvalidMask, "%d weights for %d joints", len(m.Weights), s.Len())
	}
	for i, w := range m.Weights {
		if w < 0 || w > 1 {
			return errors.Wrapf(ErrInvalidMask, "joint %d weight %v outside [0, 1]", i, w)
		}
	}
	return nil
}
