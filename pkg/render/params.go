package render

import (
	"github.com/flywave/go3d/float64/mat4"
	"github.com/flywave/go3d/float64/vec3"
)

// RenderParameters carries everything one frame's kernels need. The
// pipeline rebuilds it from the camera and user settings at the start of
// every frame and owns it for the frame's duration; nothing in it persists
// across frames except the counter.
type RenderParameters struct {
	// Model, View, Projection and their product, column-major.
	Model, View, Projection, MVP mat4.T

	// CameraPos is the camera origin in normalized volume space.
	CameraPos vec3.T

	// StepSize is the ray-march step in normalized units; MaxSamples caps
	// samples per ray. Both come from the active quality level.
	StepSize   float64
	MaxSamples int

	// DensityThreshold is the isosurface crossing value in [0,1].
	DensityThreshold float64

	// Opacity scales per-sample alpha; Brightness scales the final color.
	Opacity, Brightness float64

	// WindowCenter and WindowWidth define the normalized display window.
	WindowCenter, WindowWidth float64

	// Shading enables gradient-based Lambertian shading where a gradient
	// field is available.
	Shading bool

	// Jitter offsets each frame's ray starts by a fraction of the step,
	// driven by the frame counter. Temporal only; no state accumulates.
	Jitter bool

	// Frame is the running frame counter.
	Frame uint64
}
