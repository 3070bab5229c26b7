package segment

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"volrender/internal/logging"
	"volrender/pkg/volume"
)

// OrganError wraps a failure inside one organ's pipeline with the organ
// name and stage, so the caller can present a specific message.
type OrganError struct {
	Organ string
	Stage string
	Err   error
}

func (e *OrganError) Error() string {
	return fmt.Sprintf("segmenting %s failed at %s stage: %v", e.Organ, e.Stage, e.Err)
}

func (e *OrganError) Unwrap() error { return e.Err }

// SegmentOrgans runs one single-organ pipeline per named organ and merges
// the successes into one multi-label mask. Organ names resolve through
// OrganPreset; an unknown name counts as that organ failing.
func (s *Segmenter) SegmentOrgans(ctx context.Context, vol *volume.Volume, organs []string) (*Mask, error) {
	params := make([]TissueParams, 0, len(organs))
	var failures []error
	for _, name := range organs {
		p, err := OrganPreset(name)
		if err != nil {
			failures = append(failures, &OrganError{Organ: name, Stage: "preset", Err: err})
			logging.Logger().Warn("organ excluded from batch", "organ", name, "error", err)
			continue
		}
		params = append(params, p)
	}
	return s.segmentMulti(ctx, vol, params, failures)
}

// SegmentMulti is SegmentOrgans for explicit parameter sets.
func (s *Segmenter) SegmentMulti(ctx context.Context, vol *volume.Volume, params []TissueParams) (*Mask, error) {
	return s.segmentMulti(ctx, vol, params, nil)
}

// segmentMulti runs the per-organ pipelines concurrently and merges the
// results in request order. A failed organ is logged and excluded; the
// batch fails only when no organ succeeds.
func (s *Segmenter) segmentMulti(ctx context.Context, vol *volume.Volume, params []TissueParams, failures []error) (*Mask, error) {
	masks := make([]*Mask, len(params))
	errs := make([]error, len(params))

	workers := s.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range params {
		g.Go(func() error {
			masks[i], errs[i] = s.Segment(gctx, vol, params[i])
			// Per-organ failures are collected, not propagated; one organ
			// must not cancel its siblings.
			return nil
		})
	}
	_ = g.Wait()

	merged := NewMask(vol.Width, vol.Height, vol.Depth, vol.Spacing)
	succeeded := 0
	for i := range params {
		if errs[i] != nil {
			failures = append(failures, errs[i])
			logging.Logger().Warn("organ excluded from batch",
				"organ", params[i].Name, "error", errs[i])
			continue
		}
		succeeded++
		// Merge in request order; the first organ to claim a voxel keeps it.
		for j, l := range masks[i].Labels {
			if l != 0 && merged.Labels[j] == 0 {
				merged.Labels[j] = l
			}
		}
	}

	if succeeded == 0 {
		if len(failures) > 0 {
			return nil, fmt.Errorf("all organ segmentations failed: %w", failures[0])
		}
		return nil, fmt.Errorf("no organ segmentations requested")
	}

	logging.Logger().Info("multi-organ segmentation merged",
		"requested", len(params)+len(failures), "succeeded", succeeded)
	return merged, nil
}
