// Package mpr reformats a 3D volume into 2D slice images along named or
// arbitrary planes, with pan/zoom/rotate/flip view composition and a
// crosshair overlay.
package mpr

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/flywave/go3d/float64/vec2"
	"github.com/flywave/go3d/float64/vec3"
	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"volrender/internal/models"
	"volrender/pkg/volume"
)

// Orientation names the sampling plane.
type Orientation int

const (
	// Axial slices lie in the XY plane, stepping along Z.
	Axial Orientation = iota

	// Sagittal slices lie in the YZ plane, stepping along X.
	Sagittal

	// Coronal slices lie in the XZ plane, stepping along Y.
	Coronal

	// Oblique samples an arbitrary plane given by a normal and point.
	Oblique
)

func (o Orientation) String() string {
	switch o {
	case Axial:
		return "axial"
	case Sagittal:
		return "sagittal"
	case Coronal:
		return "coronal"
	case Oblique:
		return "oblique"
	default:
		return fmt.Sprintf("Orientation(%d)", int(o))
	}
}

// ParseOrientation maps a named orientation; oblique planes are set
// through SetObliquePlane instead.
func ParseOrientation(name string) (Orientation, error) {
	switch name {
	case "axial", "z":
		return Axial, nil
	case "sagittal", "x":
		return Sagittal, nil
	case "coronal", "y":
		return Coronal, nil
	default:
		return Axial, fmt.Errorf("unknown orientation %q", name)
	}
}

// Zoom limits for the view transform.
const (
	minZoom = 0.1
	maxZoom = 20.0
)

// Reformatter samples a volume along its current plane and composes the
// result with the active pan/zoom/rotate/flip view transform. It is owned
// by a single rendering session; concurrent mutation is not supported.
type Reformatter struct {
	vol *volume.Volume

	orientation Orientation
	normal      vec3.T // oblique only, unit length
	sliceIndex  int

	zoom         float64
	rotation     float64
	pan          vec2.T
	flipH, flipV bool

	crosshair   vec2.T
	crosshairOn bool

	windowCenter, windowWidth float64
}

// New creates a reformatter positioned at the middle axial slice, with the
// volume's suggested display window.
func New(vol *volume.Volume) *Reformatter {
	r := &Reformatter{
		vol:          vol,
		orientation:  Axial,
		zoom:         1,
		crosshair:    vec2.T{0.5, 0.5},
		windowCenter: vol.WindowCenter,
		windowWidth:  vol.WindowWidth,
	}
	r.sliceIndex = r.MaxSlices() / 2
	return r
}

// MaxSlices returns the number of addressable slices along the current
// orientation's axis.
func (r *Reformatter) MaxSlices() int {
	switch r.orientation {
	case Axial:
		return r.vol.Depth
	case Sagittal:
		return r.vol.Width
	case Coronal:
		return r.vol.Height
	default:
		lo, hi := r.projectionRange()
		n := int(math.Ceil((hi - lo) / r.obliqueStep()))
		if n < 1 {
			n = 1
		}
		return n
	}
}

// SetPlane switches to a named orientation and clamps the slice index into
// the new axis's valid range.
func (r *Reformatter) SetPlane(o Orientation) {
	if o == Oblique {
		// Oblique planes carry a normal and point; they go through
		// SetObliquePlane.
		return
	}
	r.orientation = o
	r.SetSliceIndex(r.sliceIndex)
}

// SetObliquePlane switches to an arbitrary plane. The slice index is
// derived from the projection of the given point onto the normal.
func (r *Reformatter) SetObliquePlane(normal, point vec3.T) error {
	if normal.Length() == 0 {
		return &models.InvalidInputError{Reason: "oblique plane normal must be non-zero"}
	}
	n := normal.Normalized()
	r.orientation = Oblique
	r.normal = n
	lo, _ := r.projectionRange()
	r.SetSliceIndex(int((vec3.Dot(&n, &point) - lo) / r.obliqueStep()))
	return nil
}

// SetSliceIndex clamps i to [0, MaxSlices-1] and makes it current.
func (r *Reformatter) SetSliceIndex(i int) {
	max := r.MaxSlices()
	if i < 0 {
		i = 0
	} else if i >= max {
		i = max - 1
	}
	r.sliceIndex = i
}

// SliceIndex returns the current slice index.
func (r *Reformatter) SliceIndex() int { return r.sliceIndex }

// Orientation returns the current sampling orientation.
func (r *Reformatter) Orientation() Orientation { return r.orientation }

// NextSlice advances one slice, clamped at the end of the range.
func (r *Reformatter) NextSlice() { r.SetSliceIndex(r.sliceIndex + 1) }

// PreviousSlice steps back one slice, clamped at zero.
func (r *Reformatter) PreviousSlice() { r.SetSliceIndex(r.sliceIndex - 1) }

// SlicePosition returns the physical position of the current slice along
// its axis in mm.
func (r *Reformatter) SlicePosition() float64 {
	switch r.orientation {
	case Axial:
		return (float64(r.sliceIndex) + 0.5) * r.vol.Spacing[2]
	case Sagittal:
		return (float64(r.sliceIndex) + 0.5) * r.vol.Spacing[0]
	case Coronal:
		return (float64(r.sliceIndex) + 0.5) * r.vol.Spacing[1]
	default:
		lo, _ := r.projectionRange()
		return lo + (float64(r.sliceIndex)+0.5)*r.obliqueStep()
	}
}

// SetZoom clamps and sets the view zoom factor.
func (r *Reformatter) SetZoom(z float64) {
	if z < minZoom {
		z = minZoom
	} else if z > maxZoom {
		z = maxZoom
	}
	r.zoom = z
}

// SetPan sets the view pan offset in output pixels.
func (r *Reformatter) SetPan(x, y float64) { r.pan = vec2.T{x, y} }

// SetRotation sets the in-plane view rotation in radians.
func (r *Reformatter) SetRotation(radians float64) { r.rotation = radians }

// SetFlip sets the horizontal and vertical flip flags.
func (r *Reformatter) SetFlip(horizontal, vertical bool) {
	r.flipH = horizontal
	r.flipV = vertical
}

// SetCrosshair clamps both components to [0,1] and moves the crosshair.
func (r *Reformatter) SetCrosshair(x, y float64) {
	r.crosshair = vec2.T{clamp01(x), clamp01(y)}
}

// Crosshair returns the normalized crosshair position.
func (r *Reformatter) Crosshair() (x, y float64) {
	return r.crosshair[0], r.crosshair[1]
}

// SetCrosshairEnabled toggles the crosshair overlay.
func (r *Reformatter) SetCrosshairEnabled(on bool) { r.crosshairOn = on }

// SetWindowLevel sets the normalized display window; both values are
// clamped to [0,1].
func (r *Reformatter) SetWindowLevel(center, width float64) {
	r.windowCenter = clamp01(center)
	r.windowWidth = clamp01(width)
}

// Render samples the current plane and composes it with the view transform
// into an image of the requested size.
func (r *Reformatter) Render(width, height int) (*image.Gray16, error) {
	if width <= 0 || height <= 0 {
		return nil, &models.InvalidInputError{Reason: "viewport dimensions must be positive"}
	}

	base := r.extractBase()
	dst := image.NewGray16(image.Rect(0, 0, width, height))

	srcW := float64(base.Bounds().Dx())
	srcH := float64(base.Bounds().Dy())
	fit := math.Min(float64(width)/srcW, float64(height)/srcH) * r.zoom
	sx, sy := fit, fit
	if r.flipH {
		sx = -sx
	}
	if r.flipV {
		sy = -sy
	}
	cos := math.Cos(r.rotation)
	sin := math.Sin(r.rotation)

	// dst = T(center+pan) * R(rotation) * S(flip*fit) * T(-srcCenter)
	a := cos * sx
	b := -sin * sy
	d := sin * sx
	e := cos * sy
	cx := float64(width)/2 + r.pan[0] - (a*srcW/2 + b*srcH/2)
	cy := float64(height)/2 + r.pan[1] - (d*srcW/2 + e*srcH/2)

	draw.ApproxBiLinear.Transform(dst, f64.Aff3{a, b, cx, d, e, cy}, base, base.Bounds(), draw.Src, nil)

	if r.crosshairOn {
		r.drawCrosshair(dst, width, height)
	}
	return dst, nil
}

// extractBase samples the current slice at the plane's native resolution.
func (r *Reformatter) extractBase() *image.Gray16 {
	vol := r.vol
	switch r.orientation {
	case Axial:
		img := image.NewGray16(image.Rect(0, 0, vol.Width, vol.Height))
		for y := 0; y < vol.Height; y++ {
			for x := 0; x < vol.Width; x++ {
				img.SetGray16(x, y, r.gray(vol.Sample(x, y, r.sliceIndex)))
			}
		}
		return img
	case Sagittal:
		img := image.NewGray16(image.Rect(0, 0, vol.Depth, vol.Height))
		for y := 0; y < vol.Height; y++ {
			for z := 0; z < vol.Depth; z++ {
				img.SetGray16(z, y, r.gray(vol.Sample(r.sliceIndex, y, z)))
			}
		}
		return img
	case Coronal:
		img := image.NewGray16(image.Rect(0, 0, vol.Width, vol.Depth))
		for z := 0; z < vol.Depth; z++ {
			for x := 0; x < vol.Width; x++ {
				img.SetGray16(x, z, r.gray(vol.Sample(x, r.sliceIndex, z)))
			}
		}
		return img
	default:
		return r.extractOblique()
	}
}

// extractOblique samples an arbitrary plane on a grid spanned by two
// orthonormal in-plane axes.
func (r *Reformatter) extractOblique() *image.Gray16 {
	u, v := planeBasis(r.normal)
	step := r.obliqueStep()
	lo, _ := r.projectionRange()

	ext := r.vol.Extent()
	diag := math.Sqrt(ext[0]*ext[0] + ext[1]*ext[1] + ext[2]*ext[2])
	n := int(math.Ceil(diag / step))
	if n < 1 {
		n = 1
	}

	center := ext.Scaled(0.5)
	proj := vec3.Dot(&r.normal, &center)
	offset := lo + (float64(r.sliceIndex)+0.5)*step - proj
	planeOrigin := r.normal.Scaled(offset)
	planeOrigin = vec3.Add(&center, &planeOrigin)

	img := image.NewGray16(image.Rect(0, 0, n, n))
	half := float64(n) / 2
	for j := 0; j < n; j++ {
		for i := 0; i < n; i++ {
			du := u.Scaled((float64(i) - half) * step)
			dv := v.Scaled((float64(j) - half) * step)
			pos := vec3.Add(&planeOrigin, &du)
			pos = vec3.Add(&pos, &dv)
			val := r.vol.SampleTrilinear(
				pos[0]/r.vol.Spacing[0],
				pos[1]/r.vol.Spacing[1],
				pos[2]/r.vol.Spacing[2],
			)
			img.SetGray16(i, j, r.gray(val))
		}
	}
	return img
}

// gray windows a normalized intensity into a 16-bit display value.
func (r *Reformatter) gray(v float64) color.Gray16 {
	w := r.windowWidth
	if w > 0 {
		v = (v - (r.windowCenter - w/2)) / w
	}
	return color.Gray16{Y: uint16(clamp01(v) * 65535)}
}

// projectionRange returns the projection interval of the volume's corners
// onto the oblique normal.
func (r *Reformatter) projectionRange() (lo, hi float64) {
	ext := r.vol.Extent()
	lo = math.Inf(1)
	hi = math.Inf(-1)
	for i := 0; i < 8; i++ {
		corner := vec3.T{
			float64(i&1) * ext[0],
			float64(i>>1&1) * ext[1],
			float64(i>>2&1) * ext[2],
		}
		p := vec3.Dot(&r.normal, &corner)
		if p < lo {
			lo = p
		}
		if p > hi {
			hi = p
		}
	}
	return lo, hi
}

// obliqueStep is the sampling step for arbitrary planes: the finest voxel
// spacing, so oblique slices never undersample the grid.
func (r *Reformatter) obliqueStep() float64 {
	return math.Min(r.vol.Spacing[0], math.Min(r.vol.Spacing[1], r.vol.Spacing[2]))
}

// planeBasis builds two orthonormal in-plane axes for a unit normal.
func planeBasis(n vec3.T) (u, v vec3.T) {
	ref := vec3.T{0, 0, 1}
	if math.Abs(n[2]) > 0.9 {
		ref = vec3.T{0, 1, 0}
	}
	u = vec3.Cross(&n, &ref)
	u.Normalize()
	v = vec3.Cross(&n, &u)
	return u, v
}

func (r *Reformatter) drawCrosshair(img *image.Gray16, width, height int) {
	white := color.Gray16{Y: 65535}
	cx := int(r.crosshair[0] * float64(width-1))
	cy := int(r.crosshair[1] * float64(height-1))
	for x := 0; x < width; x++ {
		img.SetGray16(x, cy, white)
	}
	for y := 0; y < height; y++ {
		img.SetGray16(cx, y, white)
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
