package render

import (
	"math"

	"github.com/flywave/go3d/float64/vec3"
)

// intersectBox computes the parametric entry and exit distances of a ray
// against an axis-aligned box using the slab method. ok is false when the
// ray misses the box entirely or the box lies behind the origin.
func intersectBox(origin, dir vec3.T, box vec3.Box) (tNear, tFar float64, ok bool) {
	tNear = math.Inf(-1)
	tFar = math.Inf(1)
	for axis := 0; axis < 3; axis++ {
		if dir[axis] == 0 {
			if origin[axis] < box.Min[axis] || origin[axis] > box.Max[axis] {
				return 0, 0, false
			}
			continue
		}
		inv := 1 / dir[axis]
		t0 := (box.Min[axis] - origin[axis]) * inv
		t1 := (box.Max[axis] - origin[axis]) * inv
		if t0 > t1 {
			t0, t1 = t1, t0
		}
		if t0 > tNear {
			tNear = t0
		}
		if t1 < tFar {
			tFar = t1
		}
		if tNear > tFar {
			return 0, 0, false
		}
	}
	if tFar < 0 {
		return 0, 0, false
	}
	if tNear < 0 {
		tNear = 0
	}
	return tNear, tFar, true
}
