// Package transfer maps normalized scalar intensities to color and opacity
// through piecewise-linear transfer functions, and resamples them into 1D
// lookup tables for the render pipeline.
package transfer

import (
	"sort"

	"volrender/internal/models"
)

// DefaultTextureResolution is the lookup-table size used when no explicit
// resolution is requested.
const DefaultTextureResolution = 1024

// ControlPoint anchors a color at a normalized intensity in [0,1].
type ControlPoint struct {
	Value float64
	Color models.RGBA
}

// Function is a piecewise-linear transfer function over sorted control
// points. The zero value is not usable; construct with New.
type Function struct {
	points  []ControlPoint
	texture []models.RGBA
	dirty   bool
}

// New builds a transfer function from the given control points, which are
// sorted by value. At least one point is required.
func New(points []ControlPoint) (*Function, error) {
	if len(points) == 0 {
		return nil, &models.InvalidInputError{Reason: "transfer function needs at least one control point"}
	}
	sorted := make([]ControlPoint, len(points))
	copy(sorted, points)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Value < sorted[j].Value
	})
	return &Function{points: sorted, dirty: true}, nil
}

// Points returns the sorted control points. The returned slice is shared;
// callers must not mutate it.
func (f *Function) Points() []ControlPoint {
	return f.points
}

// SetPoints replaces the control points and marks the lookup texture for
// rebuild.
func (f *Function) SetPoints(points []ControlPoint) error {
	nf, err := New(points)
	if err != nil {
		return err
	}
	f.points = nf.points
	f.dirty = true
	return nil
}

// Evaluate returns the color at a scalar value. The value is clamped to
// [0,1]; values at or below the first control point return its color,
// values at or above the last return its color, and values in between are
// linearly interpolated between the bracketing points.
func (f *Function) Evaluate(value float64) models.RGBA {
	if value < 0 {
		value = 0
	} else if value > 1 {
		value = 1
	}

	pts := f.points
	if value <= pts[0].Value {
		return pts[0].Color
	}
	last := pts[len(pts)-1]
	if value >= last.Value {
		return last.Color
	}

	// First point with Value >= value. A non-finite value falls through
	// the range checks above and fails the search; treat it as the top of
	// the range rather than indexing past the table.
	hi := sort.Search(len(pts), func(i int) bool {
		return pts[i].Value >= value
	})
	if hi <= 0 || hi >= len(pts) {
		return last.Color
	}
	lo := hi - 1
	span := pts[hi].Value - pts[lo].Value
	if span <= 0 {
		return pts[hi].Color
	}
	t := (value - pts[lo].Value) / span
	return pts[lo].Color.Lerp(pts[hi].Color, t)
}

// Texture returns the function resampled into a lookup table of the given
// resolution (DefaultTextureResolution when <= 0). The table is rebuilt
// only when control points have changed since the last call.
func (f *Function) Texture(resolution int) []models.RGBA {
	if resolution <= 0 {
		resolution = DefaultTextureResolution
	}
	if !f.dirty && len(f.texture) == resolution {
		return f.texture
	}
	tex := make([]models.RGBA, resolution)
	if resolution == 1 {
		// A single texel has no span to sample across.
		tex[0] = f.Evaluate(0)
	} else {
		for i := range tex {
			tex[i] = f.Evaluate(float64(i) / float64(resolution-1))
		}
	}
	f.texture = tex
	f.dirty = false
	return tex
}

// FreeTexture drops the cached lookup table; the next Texture call rebuilds
// it. Called on memory pressure.
func (f *Function) FreeTexture() {
	f.texture = nil
	f.dirty = true
}
