// Package volume assembles ordered 2D slice stacks into 3D scalar volumes
// and derives per-voxel gradients for shading and isosurface normals.
package volume

import (
	"fmt"
	"math"

	"github.com/flywave/go3d/float64/vec3"

	"volrender/internal/models"
)

// Volume is a 3D scalar grid with physical spacing metadata. Voxels are
// stored in a flat buffer ordered x-fastest, then y, then z, matching the
// depth-layer layout produced by the loader.
type Volume struct {
	// Width, Height, Depth are the voxel dimensions, all > 0.
	Width, Height, Depth int

	// Spacing is the physical voxel size in mm along each axis, all > 0.
	Spacing vec3.T

	// Format is the scalar storage format.
	Format models.ScalarFormat

	// MinValue and MaxValue are the raw scalar data range, set by the
	// loader after all layers are populated. Used for normalization.
	MinValue, MaxValue float64

	// WindowCenter and WindowWidth are the suggested normalized display
	// window in [0,1], derived from the intensity statistics at load time.
	WindowCenter, WindowWidth float64

	data []byte
}

// AllocationError reports that volume storage could not be created, for
// example because the requested dimensions exceed device texture limits.
type AllocationError struct {
	Width, Height, Depth int
	Reason               string
}

func (e *AllocationError) Error() string {
	return fmt.Sprintf("volume allocation failed (%dx%dx%d): %s",
		e.Width, e.Height, e.Depth, e.Reason)
}

// New allocates a volume with the given dimensions, spacing, and format.
// maxDim bounds each dimension (0 means unbounded); exceeding it returns
// an AllocationError the way a failed 3D texture creation would.
func New(width, height, depth int, spacing vec3.T, format models.ScalarFormat, maxDim int) (*Volume, error) {
	if width <= 0 || height <= 0 || depth <= 0 {
		return nil, &models.InvalidInputError{Reason: "volume dimensions must be positive"}
	}
	if spacing[0] <= 0 || spacing[1] <= 0 || spacing[2] <= 0 {
		return nil, &models.InvalidInputError{Reason: "voxel spacing must be positive"}
	}
	if maxDim > 0 && (width > maxDim || height > maxDim || depth > maxDim) {
		return nil, &AllocationError{
			Width: width, Height: height, Depth: depth,
			Reason: fmt.Sprintf("dimensions exceed texture limit %d", maxDim),
		}
	}
	return &Volume{
		Width:   width,
		Height:  height,
		Depth:   depth,
		Spacing: spacing,
		Format:  format,
		data:    make([]byte, width*height*depth*format.BytesPerVoxel()),
	}, nil
}

// At returns the raw scalar value at integer voxel coordinates. Coordinates
// outside the grid are clamped to the nearest voxel.
func (v *Volume) At(x, y, z int) float64 {
	if x < 0 {
		x = 0
	} else if x >= v.Width {
		x = v.Width - 1
	}
	if y < 0 {
		y = 0
	} else if y >= v.Height {
		y = v.Height - 1
	}
	if z < 0 {
		z = 0
	} else if z >= v.Depth {
		z = v.Depth - 1
	}
	idx := (z*v.Height+y)*v.Width + x
	switch v.Format {
	case models.FormatUint8:
		return float64(v.data[idx])
	case models.FormatInt8:
		return float64(int8(v.data[idx]))
	case models.FormatUint16:
		return float64(uint16(v.data[2*idx]) | uint16(v.data[2*idx+1])<<8)
	default:
		return float64(int16(uint16(v.data[2*idx]) | uint16(v.data[2*idx+1])<<8))
	}
}

// Sample returns the scalar at integer voxel coordinates normalized to
// [0,1] over the volume's data range.
func (v *Volume) Sample(x, y, z int) float64 {
	r := v.MaxValue - v.MinValue
	if r <= 0 {
		return 0
	}
	return (v.At(x, y, z) - v.MinValue) / r
}

// SampleTrilinear returns the normalized scalar at fractional voxel
// coordinates using trilinear interpolation of the eight surrounding
// voxels.
func (v *Volume) SampleTrilinear(x, y, z float64) float64 {
	x0 := int(math.Floor(x))
	y0 := int(math.Floor(y))
	z0 := int(math.Floor(z))
	fx := x - float64(x0)
	fy := y - float64(y0)
	fz := z - float64(z0)

	c000 := v.Sample(x0, y0, z0)
	c100 := v.Sample(x0+1, y0, z0)
	c010 := v.Sample(x0, y0+1, z0)
	c110 := v.Sample(x0+1, y0+1, z0)
	c001 := v.Sample(x0, y0, z0+1)
	c101 := v.Sample(x0+1, y0, z0+1)
	c011 := v.Sample(x0, y0+1, z0+1)
	c111 := v.Sample(x0+1, y0+1, z0+1)

	c00 := c000 + fx*(c100-c000)
	c10 := c010 + fx*(c110-c010)
	c01 := c001 + fx*(c101-c001)
	c11 := c011 + fx*(c111-c011)

	c0 := c00 + fy*(c10-c00)
	c1 := c01 + fy*(c11-c01)

	return c0 + fz*(c1-c0)
}

// Extent returns the physical size of the volume in mm along each axis.
func (v *Volume) Extent() vec3.T {
	return vec3.T{
		float64(v.Width) * v.Spacing[0],
		float64(v.Height) * v.Spacing[1],
		float64(v.Depth) * v.Spacing[2],
	}
}

// Bounds returns the volume's axis-aligned bounding box in patient space,
// with the first voxel's corner at the origin.
func (v *Volume) Bounds() vec3.Box {
	return vec3.Box{Min: vec3.T{0, 0, 0}, Max: v.Extent()}
}

// copyLayer copies one slice's pixel buffer into depth layer z.
func (v *Volume) copyLayer(z int, s *models.Slice) {
	bpv := v.Format.BytesPerVoxel()
	layer := v.Width * v.Height * bpv
	copy(v.data[z*layer:(z+1)*layer], s.Pixels)
}

// scanRange computes the raw data min/max over all voxels for the depth
// range [z0,z1).
func (v *Volume) scanRange(z0, z1 int) (min, max float64) {
	min = math.Inf(1)
	max = math.Inf(-1)
	for z := z0; z < z1; z++ {
		for y := 0; y < v.Height; y++ {
			for x := 0; x < v.Width; x++ {
				val := v.At(x, y, z)
				if val < min {
					min = val
				}
				if val > max {
					max = val
				}
			}
		}
	}
	return min, max
}
