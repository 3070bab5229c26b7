package volume

import (
	"context"
	"fmt"
	"math"

	"github.com/flywave/go3d/float64/vec3"
	"golang.org/x/sync/errgroup"

	"volrender/internal/logging"
)

// GradientField holds a per-voxel gradient of the normalized volume:
// a unit direction for shading normals plus the raw gradient magnitude.
type GradientField struct {
	Width, Height, Depth int

	dirs []vec3.T
	mags []float64
}

// At returns the gradient direction and magnitude at integer voxel
// coordinates, clamped to the grid.
func (g *GradientField) At(x, y, z int) (vec3.T, float64) {
	if x < 0 {
		x = 0
	} else if x >= g.Width {
		x = g.Width - 1
	}
	if y < 0 {
		y = 0
	} else if y >= g.Height {
		y = g.Height - 1
	}
	if z < 0 {
		z = 0
	} else if z >= g.Depth {
		z = g.Depth - 1
	}
	idx := (z*g.Height+y)*g.Width + x
	return g.dirs[idx], g.mags[idx]
}

// ComputeGradients estimates the spacing-aware intensity gradient at every
// voxel using central differences, with one-sided differences at the grid
// boundary. The work is split into depth slabs processed in parallel.
func ComputeGradients(ctx context.Context, vol *Volume) (*GradientField, error) {
	gf := &GradientField{
		Width:  vol.Width,
		Height: vol.Height,
		Depth:  vol.Depth,
		dirs:   make([]vec3.T, vol.Width*vol.Height*vol.Depth),
		mags:   make([]float64, vol.Width*vol.Height*vol.Depth),
	}

	g, ctx := errgroup.WithContext(ctx)
	workers := workerCount()
	g.SetLimit(workers)
	slab := (vol.Depth + workers - 1) / workers
	for z0 := 0; z0 < vol.Depth; z0 += slab {
		z1 := z0 + slab
		if z1 > vol.Depth {
			z1 = vol.Depth
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			gf.computeSlab(vol, z0, z1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("gradient estimation aborted: %w", err)
	}

	logging.Logger().Debug("gradient field computed",
		"voxels", vol.Width*vol.Height*vol.Depth, "workers", workers)
	return gf, nil
}

func (gf *GradientField) computeSlab(vol *Volume, z0, z1 int) {
	for z := z0; z < z1; z++ {
		for y := 0; y < vol.Height; y++ {
			for x := 0; x < vol.Width; x++ {
				dx := (vol.Sample(x+1, y, z) - vol.Sample(x-1, y, z)) / (2 * vol.Spacing[0])
				dy := (vol.Sample(x, y+1, z) - vol.Sample(x, y-1, z)) / (2 * vol.Spacing[1])
				dz := (vol.Sample(x, y, z+1) - vol.Sample(x, y, z-1)) / (2 * vol.Spacing[2])

				// Sample clamps out-of-range coordinates, which halves the
				// difference interval at the boundary; compensate there.
				if x == 0 || x == vol.Width-1 {
					dx *= 2
				}
				if y == 0 || y == vol.Height-1 {
					dy *= 2
				}
				if z == 0 || z == vol.Depth-1 {
					dz *= 2
				}

				idx := (z*vol.Height+y)*vol.Width + x
				mag := math.Sqrt(dx*dx + dy*dy + dz*dz)
				gf.mags[idx] = mag
				if mag > 0 {
					gf.dirs[idx] = vec3.T{dx / mag, dy / mag, dz / mag}
				}
			}
		}
	}
}
