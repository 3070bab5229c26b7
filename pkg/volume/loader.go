package volume

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sort"

	"github.com/flywave/go3d/float64/vec3"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"volrender/internal/logging"
	"volrender/internal/models"
)

// ErrEmptySeries is returned when Load is called with no slices.
var ErrEmptySeries = errors.New("volume: empty slice series")

// DefaultBatchSize bounds how many slice copies are in flight at once.
// Batching bounds peak memory while still parallelizing the per-layer work.
const DefaultBatchSize = 10

// DefaultMaxTextureDim is the per-axis dimension limit applied when the
// loader is constructed with a zero limit, mirroring typical mobile GPU
// 3D texture limits.
const DefaultMaxTextureDim = 2048

// Loader assembles an ordered series of 2D slices into a Volume.
type Loader struct {
	// BatchSize is the number of concurrent slice copies; DefaultBatchSize
	// when zero.
	BatchSize int

	// MaxTextureDim bounds each volume dimension; DefaultMaxTextureDim
	// when zero.
	MaxTextureDim int
}

// Load builds a volume from the given slices.
//
// Slices are sorted by the Z component of their position metadata. When any
// slice lacks a position, the whole series falls back to instance-number
// ordering; the degraded mode is logged once, never mixed per slice. The
// resulting depth-layer assignment is deterministic regardless of the
// completion order of the underlying copy tasks.
//
// Load builds into a fresh volume and returns it only on success, so a
// cancelled context never leaves a partially-populated volume visible to
// the caller.
func (l *Loader) Load(ctx context.Context, slices []models.Slice) (*Volume, error) {
	if len(slices) == 0 {
		return nil, ErrEmptySeries
	}

	first := slices[0]
	for i := range slices {
		s := &slices[i]
		if s.Format != first.Format {
			return nil, &models.InvalidInputError{
				Reason: fmt.Sprintf("slice %d format %s differs from series format %s",
					i, s.Format, first.Format),
			}
		}
		if s.Width != first.Width || s.Height != first.Height {
			return nil, &models.InvalidInputError{
				Reason: fmt.Sprintf("slice %d dimensions %dx%d differ from series %dx%d",
					i, s.Width, s.Height, first.Width, first.Height),
			}
		}
		if len(s.Pixels) != s.Width*s.Height*s.Format.BytesPerVoxel() {
			return nil, &models.InvalidInputError{
				Reason: fmt.Sprintf("slice %d pixel buffer is %d bytes, expected %d",
					i, len(s.Pixels), s.Width*s.Height*s.Format.BytesPerVoxel()),
			}
		}
	}

	ordered := orderSlices(slices)

	spacing := inferSpacing(ordered)
	vol, err := New(first.Width, first.Height, len(ordered), spacing, first.Format, l.maxDim())
	if err != nil {
		return nil, err
	}

	// Copy slices into depth layers in bounded batches. Layer assignment is
	// by sorted index, so completion order does not matter.
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(l.batchSize())
	for z := range ordered {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			vol.copyLayer(z, &ordered[z])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("volume load aborted: %w", err)
	}

	vol.MinValue, vol.MaxValue = vol.scanRange(0, vol.Depth)
	vol.WindowCenter, vol.WindowWidth = l.suggestWindow(vol, &first)

	logging.Logger().Info("volume loaded",
		"width", vol.Width, "height", vol.Height, "depth", vol.Depth,
		"format", vol.Format.String(),
		"spacing_mm", fmt.Sprintf("%.3fx%.3fx%.3f", spacing[0], spacing[1], spacing[2]))

	return vol, nil
}

// orderSlices returns the series in depth order: by position Z when every
// slice carries a position, otherwise by instance number for the whole
// series.
func orderSlices(slices []models.Slice) []models.Slice {
	ordered := make([]models.Slice, len(slices))
	copy(ordered, slices)

	havePositions := true
	for i := range ordered {
		if ordered[i].Position == nil {
			havePositions = false
			break
		}
	}

	if havePositions {
		sort.SliceStable(ordered, func(i, j int) bool {
			return ordered[i].Position[2] < ordered[j].Position[2]
		})
	} else {
		logging.Logger().Warn("slice positions missing, ordering series by instance number")
		sort.SliceStable(ordered, func(i, j int) bool {
			return ordered[i].InstanceNumber < ordered[j].InstanceNumber
		})
	}
	return ordered
}

// inferSpacing derives voxel spacing from in-plane pixel spacing and either
// the slice thickness or the mean inter-slice Z distance.
func inferSpacing(ordered []models.Slice) vec3.T {
	first := &ordered[0]
	sx := first.PixelSpacing[1]
	sy := first.PixelSpacing[0]
	if sx <= 0 {
		sx = 1
	}
	if sy <= 0 {
		sy = 1
	}

	sz := first.Thickness
	if sz <= 0 && len(ordered) > 1 && first.Position != nil {
		var sum float64
		var n int
		for i := 1; i < len(ordered); i++ {
			if ordered[i].Position == nil {
				continue
			}
			sum += math.Abs(ordered[i].Position[2] - ordered[i-1].Position[2])
			n++
		}
		if n > 0 {
			sz = sum / float64(n)
		}
	}
	if sz <= 0 {
		sz = 1
	}
	return vec3.T{sx, sy, sz}
}

// suggestWindow picks a normalized display window. A window carried by the
// series metadata wins; otherwise one is derived from the intensity mean
// and spread.
func (l *Loader) suggestWindow(vol *Volume, first *models.Slice) (center, width float64) {
	r := vol.MaxValue - vol.MinValue
	if r <= 0 {
		return 0.5, 1
	}
	if first.WindowWidth > 0 {
		center = (first.WindowCenter - vol.MinValue) / r
		width = first.WindowWidth / r
		return clamp01(center), clamp01(width)
	}

	// Subsample the volume; full statistics are not worth a second pass
	// over every voxel.
	stride := vol.Width * vol.Height * vol.Depth / 65536
	if stride < 1 {
		stride = 1
	}
	samples := make([]float64, 0, 65536)
	total := vol.Width * vol.Height * vol.Depth
	for i := 0; i < total; i += stride {
		z := i / (vol.Width * vol.Height)
		rem := i % (vol.Width * vol.Height)
		samples = append(samples, vol.At(rem%vol.Width, rem/vol.Width, z))
	}
	mean, std := stat.MeanStdDev(samples, nil)
	center = (mean - vol.MinValue) / r
	width = 4 * std / r
	return clamp01(center), clamp01(width)
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

func (l *Loader) batchSize() int {
	if l.BatchSize > 0 {
		return l.BatchSize
	}
	return DefaultBatchSize
}

func (l *Loader) maxDim() int {
	if l.MaxTextureDim > 0 {
		return l.MaxTextureDim
	}
	return DefaultMaxTextureDim
}

// workerCount is the shared default for slab-parallel voxel passes.
func workerCount() int {
	n := runtime.NumCPU()
	if n < 1 {
		n = 1
	}
	return n
}
