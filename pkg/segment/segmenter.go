package segment

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"volrender/internal/logging"
	"volrender/pkg/volume"
)

// Segmenter runs the fixed three-stage tissue pipeline against a volume.
// Stages execute in order — threshold, morphology, connected components —
// with each stage's output feeding the next. Voxel passes are split into
// depth slabs processed by a bounded worker pool.
type Segmenter struct {
	// Workers bounds the slab workers; NumCPU when zero.
	Workers int
}

// Segment runs the pipeline for one tissue parameter set and returns a
// fresh mask carrying params.Label for foreground voxels.
func (s *Segmenter) Segment(ctx context.Context, vol *volume.Volume, params TissueParams) (*Mask, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	// Stage 1: threshold.
	fg, err := s.threshold(ctx, vol, params)
	if err != nil {
		return nil, &OrganError{Organ: params.Name, Stage: "threshold", Err: err}
	}

	// Stage 2: morphology (optional). Erosion removes speckle, the
	// following dilation restores the bulk of surviving structures.
	if mp := params.Morphology; mp != nil {
		if mp.ErodeRadius > 0 {
			if fg, err = s.morphPass(ctx, vol, fg, mp.ErodeRadius, true); err != nil {
				return nil, &OrganError{Organ: params.Name, Stage: "erosion", Err: err}
			}
		}
		if mp.DilateRadius > 0 {
			if fg, err = s.morphPass(ctx, vol, fg, mp.DilateRadius, false); err != nil {
				return nil, &OrganError{Organ: params.Name, Stage: "dilation", Err: err}
			}
		}
	}

	// Stage 3: connected components (optional).
	if params.MinVoxels > 0 {
		if err := ctx.Err(); err != nil {
			return nil, &OrganError{Organ: params.Name, Stage: "connected-components", Err: err}
		}
		fg = filterComponents(vol, fg, params.MinVoxels)
	}

	mask := NewMask(vol.Width, vol.Height, vol.Depth, vol.Spacing)
	for i, f := range fg {
		if f != 0 {
			mask.Labels[i] = params.Label
		}
	}

	logging.Logger().Info("segmentation finished",
		"tissue", params.Name, "foreground_voxels", mask.VoxelCount(params.Label))
	return mask, nil
}

// threshold marks voxels inside the scalar window as foreground.
func (s *Segmenter) threshold(ctx context.Context, vol *volume.Volume, params TissueParams) ([]uint8, error) {
	fg := make([]uint8, vol.Width*vol.Height*vol.Depth)
	err := s.forEachSlab(ctx, vol.Depth, func(z0, z1 int) {
		for z := z0; z < z1; z++ {
			for y := 0; y < vol.Height; y++ {
				for x := 0; x < vol.Width; x++ {
					v := vol.At(x, y, z)
					if v >= params.MinValue && v <= params.MaxValue {
						fg[(z*vol.Height+y)*vol.Width+x] = 1
					}
				}
			}
		}
	})
	if err != nil {
		return nil, err
	}
	return fg, nil
}

// morphPass applies one erosion (erode=true) or dilation over the
// Chebyshev cube of the given radius, reading from src into a fresh
// buffer.
func (s *Segmenter) morphPass(ctx context.Context, vol *volume.Volume, src []uint8, radius int, erode bool) ([]uint8, error) {
	dst := make([]uint8, len(src))
	at := func(x, y, z int) uint8 {
		if x < 0 || x >= vol.Width || y < 0 || y >= vol.Height || z < 0 || z >= vol.Depth {
			return 0
		}
		return src[(z*vol.Height+y)*vol.Width+x]
	}

	err := s.forEachSlab(ctx, vol.Depth, func(z0, z1 int) {
		for z := z0; z < z1; z++ {
			for y := 0; y < vol.Height; y++ {
				for x := 0; x < vol.Width; x++ {
					val := at(x, y, z)
				neighborhood:
					for dz := -radius; dz <= radius; dz++ {
						for dy := -radius; dy <= radius; dy++ {
							for dx := -radius; dx <= radius; dx++ {
								n := at(x+dx, y+dy, z+dz)
								if erode && n == 0 {
									val = 0
									break neighborhood
								}
								if !erode && n != 0 {
									val = 1
									break neighborhood
								}
							}
						}
					}
					dst[(z*vol.Height+y)*vol.Width+x] = val
				}
			}
		}
	})
	if err != nil {
		return nil, err
	}
	return dst, nil
}

// filterComponents removes 26-connected foreground components smaller than
// minVoxels. The flood fill is sequential; component labeling does not
// decompose into independent slabs.
func filterComponents(vol *volume.Volume, fg []uint8, minVoxels int) []uint8 {
	visited := make([]bool, len(fg))
	out := make([]uint8, len(fg))
	var stack []int
	component := make([]int, 0, minVoxels)

	idx := func(x, y, z int) int { return (z*vol.Height+y)*vol.Width + x }

	for seed := range fg {
		if fg[seed] == 0 || visited[seed] {
			continue
		}
		component = component[:0]
		stack = append(stack[:0], seed)
		visited[seed] = true

		for len(stack) > 0 {
			i := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			component = append(component, i)

			x := i % vol.Width
			y := i / vol.Width % vol.Height
			z := i / (vol.Width * vol.Height)
			for dz := -1; dz <= 1; dz++ {
				for dy := -1; dy <= 1; dy++ {
					for dx := -1; dx <= 1; dx++ {
						nx, ny, nz := x+dx, y+dy, z+dz
						if nx < 0 || nx >= vol.Width || ny < 0 || ny >= vol.Height || nz < 0 || nz >= vol.Depth {
							continue
						}
						ni := idx(nx, ny, nz)
						if fg[ni] != 0 && !visited[ni] {
							visited[ni] = true
							stack = append(stack, ni)
						}
					}
				}
			}
		}

		if len(component) >= minVoxels {
			for _, i := range component {
				out[i] = 1
			}
		}
	}
	return out
}

// forEachSlab runs fn over depth slabs with bounded parallelism.
func (s *Segmenter) forEachSlab(ctx context.Context, depth int, fn func(z0, z1 int)) error {
	workers := s.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	slab := (depth + workers - 1) / workers
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for z0 := 0; z0 < depth; z0 += slab {
		z1 := z0 + slab
		if z1 > depth {
			z1 = depth
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			fn(z0, z1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("segmentation pass aborted: %w", err)
	}
	return nil
}
