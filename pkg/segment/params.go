// Package segment runs the automatic tissue-segmentation pipeline:
// scalar-window thresholding, optional morphological cleanup, and optional
// connected-component filtering, in that fixed order.
package segment

import (
	"fmt"

	"volrender/internal/models"
)

// Morphology configures the optional erosion/dilation stage. Radii are in
// voxels; the neighborhood is the Chebyshev cube of that radius.
type Morphology struct {
	ErodeRadius  int
	DilateRadius int
}

// TissueParams parameterizes one segmentation pipeline run. Window bounds
// are in raw scalar units (Hounsfield units for CT series).
type TissueParams struct {
	// Name labels the tissue or organ in logs and errors.
	Name string

	// MinValue and MaxValue bound the foreground scalar window.
	MinValue, MaxValue float64

	// Morphology enables erosion-then-dilation cleanup when non-nil.
	Morphology *Morphology

	// MinVoxels drops connected components smaller than this count when
	// positive.
	MinVoxels int

	// Label is the value written into the mask for foreground voxels.
	Label uint8
}

// Validate rejects parameter sets before any pipeline work is dispatched.
func (p *TissueParams) Validate() error {
	if p.MinValue > p.MaxValue {
		return &models.InvalidInputError{
			Reason: fmt.Sprintf("tissue %q window [%g, %g] is inverted", p.Name, p.MinValue, p.MaxValue),
		}
	}
	if p.Label == 0 {
		return &models.InvalidInputError{
			Reason: fmt.Sprintf("tissue %q label must be non-zero (zero is background)", p.Name),
		}
	}
	return nil
}

// tissuePresets are Hounsfield-range windows for common tissue classes.
var tissuePresets = map[string]TissueParams{
	"lung":            {Name: "lung", MinValue: -950, MaxValue: -300, Label: 1},
	"bone":            {Name: "bone", MinValue: 300, MaxValue: 3000, Label: 2},
	"fat":             {Name: "fat", MinValue: -120, MaxValue: -60, Label: 3},
	"muscle":          {Name: "muscle", MinValue: 10, MaxValue: 60, Label: 4},
	"contrast-vessel": {Name: "contrast-vessel", MinValue: 100, MaxValue: 300, Label: 5},
	"air":             {Name: "air", MinValue: -1024, MaxValue: -950, Label: 6},
	"water":           {Name: "water", MinValue: -10, MaxValue: 10, Label: 7},
}

// organPresets tune the full pipeline per organ: a Hounsfield window plus
// cleanup sized to the organ's typical bulk.
var organPresets = map[string]TissueParams{
	"liver":   {Name: "liver", MinValue: 40, MaxValue: 180, Morphology: &Morphology{ErodeRadius: 1, DilateRadius: 1}, MinVoxels: 500, Label: 10},
	"kidneys": {Name: "kidneys", MinValue: 20, MaxValue: 150, Morphology: &Morphology{ErodeRadius: 1, DilateRadius: 1}, MinVoxels: 200, Label: 11},
	"spleen":  {Name: "spleen", MinValue: 40, MaxValue: 160, Morphology: &Morphology{ErodeRadius: 1, DilateRadius: 1}, MinVoxels: 150, Label: 12},
	"lungs":   {Name: "lungs", MinValue: -950, MaxValue: -300, MinVoxels: 1000, Label: 13},
	"bone":    {Name: "bone", MinValue: 300, MaxValue: 3000, Label: 14},
	"heart":   {Name: "heart", MinValue: 20, MaxValue: 140, Morphology: &Morphology{ErodeRadius: 1, DilateRadius: 1}, MinVoxels: 400, Label: 15},
}

// TissuePreset returns the named Hounsfield-window tissue preset.
func TissuePreset(name string) (TissueParams, error) {
	p, ok := tissuePresets[name]
	if !ok {
		return TissueParams{}, fmt.Errorf("unknown tissue preset %q", name)
	}
	return p, nil
}

// OrganPreset returns the named organ pipeline preset.
func OrganPreset(name string) (TissueParams, error) {
	p, ok := organPresets[name]
	if !ok {
		return TissueParams{}, fmt.Errorf("unknown organ preset %q", name)
	}
	return p, nil
}
