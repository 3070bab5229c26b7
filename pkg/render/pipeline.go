// Package render executes the volume-rendering algorithms: ray-cast DVR,
// maximum intensity projection, and isosurface extraction. Each mode is a
// kernel dispatched over the output resolution by a bounded worker pool;
// the dispatch table maps the active mode to its kernel entry point.
package render

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"runtime"
	"sync/atomic"

	"github.com/flywave/go3d/float64/mat4"
	"github.com/flywave/go3d/float64/vec3"
	"golang.org/x/sync/errgroup"

	"volrender/internal/logging"
	"volrender/internal/models"
	"volrender/pkg/transfer"
	"volrender/pkg/volume"
)

// Mode selects the rendering algorithm.
type Mode int

const (
	// ModeRayCast is direct volume rendering with front-to-back
	// compositing and early ray termination.
	ModeRayCast Mode = iota

	// ModeMIP renders the maximum windowed intensity along each ray.
	ModeMIP

	// ModeIsosurface shades the first density-threshold crossing using the
	// local gradient as the surface normal.
	ModeIsosurface
)

func (m Mode) String() string {
	switch m {
	case ModeRayCast:
		return "raycast"
	case ModeMIP:
		return "mip"
	case ModeIsosurface:
		return "isosurface"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode maps a mode name to its value.
func ParseMode(name string) (Mode, error) {
	switch name {
	case "raycast", "dvr":
		return ModeRayCast, nil
	case "mip":
		return ModeMIP, nil
	case "iso", "isosurface":
		return ModeIsosurface, nil
	default:
		return ModeRayCast, fmt.Errorf("unknown render mode %q", name)
	}
}

// ErrFrameInFlight is returned when Render is called while a previous
// frame is still being produced. Render calls are strictly ordered per
// caller; overlapping frames are not supported.
var ErrFrameInFlight = errors.New("render: frame already in flight")

// Accumulated opacity above this value terminates a DVR ray early.
const earlyTerminationAlpha = 0.98

// kernel computes the color contribution of one ray.
type kernel func(fc *frameContext, origin, dir vec3.T) models.RGBA

// kernels is the mode dispatch table. One entry point per mode.
var kernels = map[Mode]kernel{
	ModeRayCast:    raycastKernel,
	ModeMIP:        mipKernel,
	ModeIsosurface: isosurfaceKernel,
}

// Pipeline selects and executes one rendering kernel per frame against the
// current volume, transfer function, and optional gradient field. It is a
// pure function of its inputs plus the frame counter; no render state
// persists between frames.
type Pipeline struct {
	// Camera provides the per-frame view basis and matrices.
	Camera *Camera

	mode    Mode
	quality QualityLevel
	tf      *transfer.Function
	vol     *volume.Volume
	grad    *volume.GradientField

	opacity          float64
	brightness       float64
	windowCenter     float64
	windowWidth      float64
	densityThreshold float64
	shading          bool
	jitter           bool

	workers  int
	frame    uint64
	inFlight atomic.Bool
}

// NewPipeline returns a pipeline with medium quality, DVR mode, and
// neutral settings. A transfer function must be set before DVR or MIP
// frames produce anything but background.
func NewPipeline() *Pipeline {
	return &Pipeline{
		Camera:           NewCamera(),
		quality:          QualityMedium,
		opacity:          1,
		brightness:       1,
		windowCenter:     0.5,
		windowWidth:      1,
		densityThreshold: 0.3,
		shading:          true,
		workers:          runtime.NumCPU(),
	}
}

// SetMode selects the rendering algorithm for subsequent frames.
func (p *Pipeline) SetMode(m Mode) { p.mode = m }

// Mode returns the active rendering algorithm.
func (p *Pipeline) Mode() Mode { return p.mode }

// SetQuality selects the sampling density for subsequent frames.
func (p *Pipeline) SetQuality(q QualityLevel) { p.quality = q }

// Quality returns the active quality level.
func (p *Pipeline) Quality() QualityLevel { return p.quality }

// SetVolume replaces the rendered volume and drops the gradient field,
// which belongs to the previous volume.
func (p *Pipeline) SetVolume(v *volume.Volume) {
	p.vol = v
	p.grad = nil
}

// SetGradients attaches a gradient field for shading and isosurface
// normals.
func (p *Pipeline) SetGradients(g *volume.GradientField) { p.grad = g }

// SetTransferFunction replaces the transfer function.
func (p *Pipeline) SetTransferFunction(tf *transfer.Function) { p.tf = tf }

// SetWindowLevel sets the normalized display window; both values are
// clamped to [0,1].
func (p *Pipeline) SetWindowLevel(center, width float64) {
	p.windowCenter = clamp01(center)
	p.windowWidth = clamp01(width)
}

// SetOpacity scales per-sample alpha.
func (p *Pipeline) SetOpacity(o float64) {
	if o < 0 {
		o = 0
	}
	p.opacity = o
}

// SetBrightness scales the final color.
func (p *Pipeline) SetBrightness(b float64) {
	if b < 0 {
		b = 0
	}
	p.brightness = b
}

// SetDensityThreshold sets the isosurface crossing value, clamped to [0,1].
func (p *Pipeline) SetDensityThreshold(t float64) { p.densityThreshold = clamp01(t) }

// SetShading toggles gradient-based Lambertian shading.
func (p *Pipeline) SetShading(on bool) { p.shading = on }

// SetJitter toggles temporal ray-start jitter.
func (p *Pipeline) SetJitter(on bool) { p.jitter = on }

// Render produces one frame at the given output resolution.
//
// When no volume is loaded a fixed neutral frame is returned with a nil
// error: the presentation loop degrades rather than fails on missing
// content. A second Render call before the first returns fails with
// ErrFrameInFlight.
func (p *Pipeline) Render(width, height int) (*image.RGBA, error) {
	if width <= 0 || height <= 0 {
		return nil, &models.InvalidInputError{Reason: "viewport dimensions must be positive"}
	}
	kern, ok := kernels[p.mode]
	if !ok {
		return nil, &models.InvalidInputError{Reason: fmt.Sprintf("unknown render mode %d", p.mode)}
	}
	if !p.inFlight.CompareAndSwap(false, true) {
		return nil, ErrFrameInFlight
	}
	defer p.inFlight.Store(false)

	p.frame++
	img := image.NewRGBA(image.Rect(0, 0, width, height))

	if p.vol == nil || p.tf == nil {
		fillFallback(img)
		return img, nil
	}

	params := p.buildParameters(width, height)
	fc := newFrameContext(p.vol, p.grad, p.tf, params)

	origin, forward, right, up := p.Camera.Basis()
	tanHalf := math.Tan(p.Camera.FOV / 2)
	aspect := float64(width) / float64(height)

	g := new(errgroup.Group)
	g.SetLimit(p.workers)
	for y := 0; y < height; y++ {
		g.Go(func() error {
			for x := 0; x < width; x++ {
				ndcX := (2*(float64(x)+0.5)/float64(width) - 1) * tanHalf * aspect
				ndcY := (1 - 2*(float64(y)+0.5)/float64(height)) * tanHalf
				rx := right.Scaled(ndcX)
				uy := up.Scaled(ndcY)
				dir := vec3.Add(&forward, &rx)
				dir = vec3.Add(&dir, &uy)
				dir.Normalize()

				c := kern(fc, origin, dir)
				img.SetRGBA(x, y, toPixel(c, params.Brightness))
			}
			return nil
		})
	}
	// Row kernels never return errors; Wait only joins the workers.
	_ = g.Wait()

	logging.Logger().Debug("frame rendered",
		"mode", p.mode.String(), "quality", p.quality.String(),
		"frame", params.Frame, "viewport", fmt.Sprintf("%dx%d", width, height))
	return img, nil
}

// buildParameters assembles the per-frame parameter block from the camera
// and the current settings.
func (p *Pipeline) buildParameters(width, height int) RenderParameters {
	p.Camera.Aspect = float64(width) / float64(height)

	model := mat4.Ident
	view := p.Camera.ViewMatrix()
	proj := p.Camera.ProjectionMatrix()
	var pv, mvp mat4.T
	pv.AssignMul(&proj, &view)
	mvp.AssignMul(&pv, &model)

	return RenderParameters{
		Model:            model,
		View:             view,
		Projection:       proj,
		MVP:              mvp,
		CameraPos:        p.Camera.Position(),
		StepSize:         p.quality.StepSize(),
		MaxSamples:       p.quality.MaxSamples(),
		DensityThreshold: p.densityThreshold,
		Opacity:          p.opacity,
		Brightness:       p.brightness,
		WindowCenter:     p.windowCenter,
		WindowWidth:      p.windowWidth,
		Shading:          p.shading && p.grad != nil,
		Jitter:           p.jitter,
		Frame:            p.frame,
	}
}

// fallbackColor is the fixed neutral frame rendered when no volume is
// loaded.
var fallbackColor = color.RGBA{R: 42, G: 42, B: 48, A: 255}

func fillFallback(img *image.RGBA) {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			img.SetRGBA(x, y, fallbackColor)
		}
	}
}

func toPixel(c models.RGBA, brightness float64) color.RGBA {
	return color.RGBA{
		R: uint8(clamp01(c.R*brightness) * 255),
		G: uint8(clamp01(c.G*brightness) * 255),
		B: uint8(clamp01(c.B*brightness) * 255),
		A: 255,
	}
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
