package render

import (
	"math"

	"github.com/flywave/go3d/float64/mat4"
	"github.com/flywave/go3d/float64/vec3"
	"github.com/flywave/go3d/float64/vec4"
)

// Camera orbit limits. Elevation stops short of the poles so the view
// basis never degenerates.
const (
	minCameraDistance = 0.5
	maxCameraDistance = 10.0
	maxElevation      = math.Pi/2 - 0.01
)

// Camera maintains the orbit state and view/projection matrices consumed
// by the render pipeline. The camera orbits a target point at a fixed
// distance; the volume is rendered in a normalized space with its longest
// edge spanning one unit, so the default distance frames typical volumes.
type Camera struct {
	// Distance is the orbit radius from the target.
	Distance float64

	// Azimuth and Elevation are the orbit angles in radians.
	Azimuth, Elevation float64

	// Target is the orbit center in normalized volume space.
	Target vec3.T

	// FOV is the vertical field of view in radians.
	FOV float64

	// Aspect is the viewport width/height ratio.
	Aspect float64
}

// NewCamera returns a camera framing the normalized volume from the front.
func NewCamera() *Camera {
	return &Camera{
		Distance: 2.0,
		FOV:      45 * math.Pi / 180,
		Aspect:   1,
	}
}

// Position returns the camera's world-space position on its orbit.
func (c *Camera) Position() vec3.T {
	ce := math.Cos(c.Elevation)
	dir := vec3.T{
		ce * math.Sin(c.Azimuth),
		math.Sin(c.Elevation),
		ce * math.Cos(c.Azimuth),
	}
	offset := dir.Scaled(c.Distance)
	return vec3.Add(&c.Target, &offset)
}

// Rotate orbits the camera around the target by the given angle deltas,
// clamping elevation short of the poles.
func (c *Camera) Rotate(dAzimuth, dElevation float64) {
	c.Azimuth = math.Mod(c.Azimuth+dAzimuth, 2*math.Pi)
	c.Elevation += dElevation
	if c.Elevation > maxElevation {
		c.Elevation = maxElevation
	} else if c.Elevation < -maxElevation {
		c.Elevation = -maxElevation
	}
}

// SetDistance clamps and sets the orbit radius.
func (c *Camera) SetDistance(d float64) {
	if d < minCameraDistance {
		d = minCameraDistance
	} else if d > maxCameraDistance {
		d = maxCameraDistance
	}
	c.Distance = d
}

// Zoom scales the orbit radius by 1/factor, so factors above one move the
// camera closer.
func (c *Camera) Zoom(factor float64) {
	if factor <= 0 {
		return
	}
	c.SetDistance(c.Distance / factor)
}

// Basis returns the camera origin and its orthonormal view basis.
func (c *Camera) Basis() (origin, forward, right, up vec3.T) {
	origin = c.Position()
	forward = vec3.Sub(&c.Target, &origin)
	forward.Normalize()
	worldUp := vec3.T{0, 1, 0}
	right = vec3.Cross(&forward, &worldUp)
	right.Normalize()
	up = vec3.Cross(&right, &forward)
	return origin, forward, right, up
}

// ViewMatrix returns the world-to-camera matrix (column-major).
func (c *Camera) ViewMatrix() mat4.T {
	eye, f, r, u := c.Basis()
	return mat4.T{
		vec4.T{r[0], u[0], -f[0], 0},
		vec4.T{r[1], u[1], -f[1], 0},
		vec4.T{r[2], u[2], -f[2], 0},
		vec4.T{-vec3.Dot(&r, &eye), -vec3.Dot(&u, &eye), vec3.Dot(&f, &eye), 1},
	}
}

// ProjectionMatrix returns the perspective projection matrix for the
// camera's field of view and aspect ratio.
func (c *Camera) ProjectionMatrix() mat4.T {
	const near, far = 0.01, 100.0
	aspect := c.Aspect
	if aspect <= 0 {
		aspect = 1
	}
	fcot := 1 / math.Tan(c.FOV/2)
	return mat4.T{
		vec4.T{fcot / aspect, 0, 0, 0},
		vec4.T{0, fcot, 0, 0},
		vec4.T{0, 0, (far + near) / (near - far), -1},
		vec4.T{0, 0, 2 * far * near / (near - far), 0},
	}
}
