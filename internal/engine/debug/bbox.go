// Package debug provides debug visualization utilities for posed skeletons.
// Output is plain line vertex data, format: [x, y, z] per vertex, so any
// renderer or exporter can draw it.
package debug

import (
	"github.com/Faultbox/midgard-anim/internal/engine/skeleton"
	"github.com/Faultbox/midgard-anim/pkg/math"
)

// BBoxWireframeVertexCount is the number of vertices for a bbox wireframe (12 edges × 2).
const BBoxWireframeVertexCount = 24

// DefaultBBoxPadding is the default padding around pose bounds.
const DefaultBBoxPadding = 0.05

// BBoxWireframe creates line vertices for a wireframe box.
// Returns 24 vertices (12 edges × 2 endpoints).
func BBoxWireframe(lo, hi math.Vec3) []float32 {
	minX, minY, minZ := lo.X, lo.Y, lo.Z
	maxX, maxY, maxZ := hi.X, hi.Y, hi.Z
	return []float32{
		// Bottom face (4 edges)
		minX, minY, minZ, maxX, minY, minZ,
		maxX, minY, minZ, maxX, minY, maxZ,
		maxX, minY, maxZ, minX, minY, maxZ,
		minX, minY, maxZ, minX, minY, minZ,
		// Top face (4 edges)
		minX, maxY, minZ, maxX, maxY, minZ,
		maxX, maxY, minZ, maxX, maxY, maxZ,
		maxX, maxY, maxZ, minX, maxY, maxZ,
		minX, maxY, maxZ, minX, maxY, minZ,
		// Vertical edges (4 edges)
		minX, minY, minZ, minX, maxY, minZ,
		maxX, minY, minZ, maxX, maxY, minZ,
		maxX, minY, maxZ, maxX, maxY, maxZ,
		minX, minY, maxZ, minX, maxY, maxZ,
	}
}

// PoseBounds returns the axis-aligned box around every joint's world
// position, grown by padding on all sides.
func PoseBounds(p *skeleton.Pose, padding float32) (lo, hi math.Vec3) {
	lo = p.World(0).Translation
	hi = lo
	for i := 1; i < p.Len(); i++ {
		t := p.World(i).Translation
		lo = math.Vec3{X: min(lo.X, t.X), Y: min(lo.Y, t.Y), Z: min(lo.Z, t.Z)}
		hi = math.Vec3{X: max(hi.X, t.X), Y: max(hi.Y, t.Y), Z: max(hi.Z, t.Z)}
	}

	pad := math.Vec3{X: padding, Y: padding, Z: padding}
	return lo.Sub(pad), hi.Add(pad)
}

// PoseBBoxWireframe creates wireframe vertices around a pose.
func PoseBBoxWireframe(p *skeleton.Pose, padding float32) []float32 {
	return BBoxWireframe(PoseBounds(p, padding))
}
