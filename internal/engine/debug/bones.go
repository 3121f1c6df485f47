package debug

import "github.com/Faultbox/midgard-anim/internal/engine/skeleton"

// BoneVertexCount is the number of vertices per bone line.
const BoneVertexCount = 2

// BoneLines creates one line per joint that has a parent, from the
// parent's world position to the joint's. Roots contribute nothing.
func BoneLines(p *skeleton.Pose) []float32 {
	skel := p.Skeleton()
	out := make([]float32, 0, p.Len()*BoneVertexCount*3)
	for i := 0; i < p.Len(); i++ {
		parent := skel.Parent(i)
		if parent == skeleton.NoParent {
			continue
		}
		a := p.World(parent).Translation
		b := p.World(i).Translation
		out = append(out, a.X, a.Y, a.Z, b.X, b.Y, b.Z)
	}
	return out
}
