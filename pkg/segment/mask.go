package segment

import (
	"github.com/flywave/go3d/float64/vec3"
)

// Mask is a label volume matching its source's dimensions. Zero is
// background. Masks are created per segmentation run and owned by the
// caller; the engine does not persist them.
type Mask struct {
	Width, Height, Depth int

	// Spacing is carried over from the source volume for measurements.
	Spacing vec3.T

	Labels []uint8
}

// NewMask allocates an all-background mask.
func NewMask(width, height, depth int, spacing vec3.T) *Mask {
	return &Mask{
		Width:   width,
		Height:  height,
		Depth:   depth,
		Spacing: spacing,
		Labels:  make([]uint8, width*height*depth),
	}
}

// At returns the label at voxel coordinates, or 0 outside the grid.
func (m *Mask) At(x, y, z int) uint8 {
	if x < 0 || x >= m.Width || y < 0 || y >= m.Height || z < 0 || z >= m.Depth {
		return 0
	}
	return m.Labels[(z*m.Height+y)*m.Width+x]
}

// Set writes the label at voxel coordinates; out-of-grid writes are
// ignored.
func (m *Mask) Set(x, y, z int, label uint8) {
	if x < 0 || x >= m.Width || y < 0 || y >= m.Height || z < 0 || z >= m.Depth {
		return
	}
	m.Labels[(z*m.Height+y)*m.Width+x] = label
}

// VoxelCount returns the number of voxels carrying the given label, or the
// number of all foreground voxels when label is 0.
func (m *Mask) VoxelCount(label uint8) int {
	n := 0
	for _, l := range m.Labels {
		if (label == 0 && l != 0) || (label != 0 && l == label) {
			n++
		}
	}
	return n
}

// VolumeML returns the physical volume of a label in milliliters.
func (m *Mask) VolumeML(label uint8) float64 {
	voxelMM3 := m.Spacing[0] * m.Spacing[1] * m.Spacing[2]
	return float64(m.VoxelCount(label)) * voxelMM3 / 1000
}

// HasLabel reports whether any voxel carries the given label.
func (m *Mask) HasLabel(label uint8) bool {
	for _, l := range m.Labels {
		if l == label {
			return true
		}
	}
	return false
}
