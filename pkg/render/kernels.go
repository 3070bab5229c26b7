package render

import (
	"math"

	"github.com/flywave/go3d/float64/vec3"

	"volrender/internal/models"
	"volrender/pkg/transfer"
	"volrender/pkg/volume"
)

// frameContext is the read-only input block one frame's kernels sample
// from: the volume, its world-to-voxel mapping, the transfer lookup
// texture, and the frame parameters.
type frameContext struct {
	vol    *volume.Volume
	grad   *volume.GradientField
	tfTex  []models.RGBA
	params RenderParameters

	// box is the volume's bounding box in normalized space: centered at
	// the origin with its longest physical edge spanning one unit.
	box vec3.Box

	// voxelScale converts normalized-space offsets from box.Min into
	// fractional voxel coordinates per axis.
	voxelScale vec3.T
}

func newFrameContext(vol *volume.Volume, grad *volume.GradientField, tf *transfer.Function, params RenderParameters) *frameContext {
	ext := vol.Extent()
	maxExt := math.Max(ext[0], math.Max(ext[1], ext[2]))
	half := vec3.T{ext[0] / (2 * maxExt), ext[1] / (2 * maxExt), ext[2] / (2 * maxExt)}
	return &frameContext{
		vol:    vol,
		grad:   grad,
		tfTex:  tf.Texture(transfer.DefaultTextureResolution),
		params: params,
		box:    vec3.Box{Min: half.Scaled(-1), Max: half},
		voxelScale: vec3.T{
			maxExt / vol.Spacing[0],
			maxExt / vol.Spacing[1],
			maxExt / vol.Spacing[2],
		},
	}
}

// sample returns the normalized intensity at a point in normalized space.
func (fc *frameContext) sample(p vec3.T) float64 {
	return fc.vol.SampleTrilinear(
		(p[0]-fc.box.Min[0])*fc.voxelScale[0],
		(p[1]-fc.box.Min[1])*fc.voxelScale[1],
		(p[2]-fc.box.Min[2])*fc.voxelScale[2],
	)
}

// windowed applies the normalized display window to an intensity.
func (fc *frameContext) windowed(v float64) float64 {
	w := fc.params.WindowWidth
	if w <= 0 {
		return clamp01(v)
	}
	return clamp01((v - (fc.params.WindowCenter - w/2)) / w)
}

// lookup maps a windowed intensity through the transfer lookup texture.
func (fc *frameContext) lookup(v float64) models.RGBA {
	idx := int(clamp01(v) * float64(len(fc.tfTex)-1))
	return fc.tfTex[idx]
}

// normalAt returns the shading normal at a normalized-space point, flipped
// to face against the viewing direction. ok is false where the gradient
// vanishes.
func (fc *frameContext) normalAt(p, viewDir vec3.T) (vec3.T, bool) {
	x := int((p[0] - fc.box.Min[0]) * fc.voxelScale[0])
	y := int((p[1] - fc.box.Min[1]) * fc.voxelScale[1])
	z := int((p[2] - fc.box.Min[2]) * fc.voxelScale[2])
	n, mag := fc.grad.At(x, y, z)
	if mag == 0 {
		return vec3.T{}, false
	}
	if vec3.Dot(&n, &viewDir) > 0 {
		n = n.Inverted()
	}
	return n, true
}

// lambert computes headlight Lambertian shading at a sample point.
func (fc *frameContext) lambert(p, viewDir vec3.T) float64 {
	const ambient = 0.25
	n, ok := fc.normalAt(p, viewDir)
	if !ok {
		return 1
	}
	// Light rides the camera, so the diffuse term is the (already
	// non-negative) alignment of normal and reversed view direction.
	diffuse := -vec3.Dot(&n, &viewDir)
	if diffuse < 0 {
		diffuse = 0
	}
	return ambient + (1-ambient)*diffuse
}

// jitterOffset staggers ray starts across frames by a fraction of the step
// to break up slice banding. Purely a function of the frame counter.
func (fc *frameContext) jitterOffset() float64 {
	if !fc.params.Jitter {
		return 0
	}
	return float64(fc.params.Frame%8) / 8 * fc.params.StepSize
}

// raycastKernel implements DVR: front-to-back compositing of transfer
// function samples with early ray termination.
func raycastKernel(fc *frameContext, origin, dir vec3.T) models.RGBA {
	tNear, tFar, ok := intersectBox(origin, dir, fc.box)
	if !ok {
		return models.RGBA{}
	}

	var acc models.RGBA
	step := fc.params.StepSize
	t := tNear + fc.jitterOffset()
	for i := 0; i < fc.params.MaxSamples && t <= tFar; i++ {
		if acc.A >= earlyTerminationAlpha {
			break
		}
		d := dir.Scaled(t)
		p := vec3.Add(&origin, &d)

		c := fc.lookup(fc.windowed(fc.sample(p)))
		a := clamp01(c.A * fc.params.Opacity)
		if a > 0 {
			shade := 1.0
			if fc.params.Shading {
				shade = fc.lambert(p, dir)
			}
			w := (1 - acc.A) * a
			acc.R += w * c.R * shade
			acc.G += w * c.G * shade
			acc.B += w * c.B * shade
			acc.A += w
		}
		t += step
	}
	return acc
}

// mipKernel tracks the maximum windowed intensity along the ray and maps
// that single value through the transfer function. No compositing.
func mipKernel(fc *frameContext, origin, dir vec3.T) models.RGBA {
	tNear, tFar, ok := intersectBox(origin, dir, fc.box)
	if !ok {
		return models.RGBA{}
	}

	maxV := 0.0
	step := fc.params.StepSize
	t := tNear + fc.jitterOffset()
	for i := 0; i < fc.params.MaxSamples && t <= tFar; i++ {
		v := fc.windowed(fc.sample(pointAt(origin, dir, t)))
		if v > maxV {
			maxV = v
		}
		t += step
	}

	c := fc.lookup(maxV)
	return models.RGBA{R: c.R, G: c.G, B: c.B, A: 1}
}

// isosurfaceKernel marches until the first density-threshold crossing and
// shades it with the local gradient normal. Rays that never cross render
// as background.
func isosurfaceKernel(fc *frameContext, origin, dir vec3.T) models.RGBA {
	tNear, tFar, ok := intersectBox(origin, dir, fc.box)
	if !ok {
		return models.RGBA{}
	}

	threshold := fc.params.DensityThreshold
	step := fc.params.StepSize
	prev := tNear
	t := tNear + fc.jitterOffset()
	for i := 0; i < fc.params.MaxSamples && t <= tFar; i++ {
		if fc.sample(pointAt(origin, dir, t)) >= threshold {
			// One bisection step tightens the hit between the last two
			// samples.
			mid := (prev + t) / 2
			hit := pointAt(origin, dir, t)
			if fc.sample(pointAt(origin, dir, mid)) >= threshold {
				hit = pointAt(origin, dir, mid)
			}

			c := fc.lookup(fc.windowed(threshold))
			shade := 1.0
			if fc.grad != nil {
				shade = fc.lambert(hit, dir)
			}
			return models.RGBA{R: c.R * shade, G: c.G * shade, B: c.B * shade, A: 1}
		}
		prev = t
		t += step
	}
	return models.RGBA{}
}

func pointAt(origin, dir vec3.T, t float64) vec3.T {
	d := dir.Scaled(t)
	return vec3.Add(&origin, &d)
}

