package transfer

import (
	"fmt"

	"volrender/internal/models"
)

// Preset names a hand-authored transfer function tuned to a modality and
// tissue target.
type Preset string

const (
	CTDefault    Preset = "ct-default"
	CTBone       Preset = "ct-bone"
	CTSoftTissue Preset = "ct-soft-tissue"
	MRDefault    Preset = "mr-default"
	MRBrain      Preset = "mr-brain"
)

// Presets lists all shipped preset names.
func Presets() []Preset {
	return []Preset{CTDefault, CTBone, CTSoftTissue, MRDefault, MRBrain}
}

// presetTables holds the control points for each preset. Values are
// normalized intensities; the tables assume the loader's full-range
// normalization of typical CT and MR series.
var presetTables = map[Preset][]ControlPoint{
	CTDefault: {
		{Value: 0.0, Color: models.RGBA{R: 0, G: 0, B: 0, A: 0}},
		{Value: 0.2, Color: models.RGBA{R: 0.4, G: 0.2, B: 0.1, A: 0.0}},
		{Value: 0.35, Color: models.RGBA{R: 0.8, G: 0.5, B: 0.35, A: 0.25}},
		{Value: 0.55, Color: models.RGBA{R: 0.95, G: 0.85, B: 0.7, A: 0.6}},
		{Value: 0.8, Color: models.RGBA{R: 1, G: 1, B: 0.95, A: 0.9}},
		{Value: 1.0, Color: models.RGBA{R: 1, G: 1, B: 1, A: 1}},
	},
	CTBone: {
		{Value: 0.0, Color: models.RGBA{R: 0, G: 0, B: 0, A: 0}},
		{Value: 0.55, Color: models.RGBA{R: 0, G: 0, B: 0, A: 0}},
		{Value: 0.65, Color: models.RGBA{R: 0.85, G: 0.8, B: 0.65, A: 0.4}},
		{Value: 0.8, Color: models.RGBA{R: 0.95, G: 0.93, B: 0.85, A: 0.85}},
		{Value: 1.0, Color: models.RGBA{R: 1, G: 1, B: 1, A: 1}},
	},
	CTSoftTissue: {
		{Value: 0.0, Color: models.RGBA{R: 0, G: 0, B: 0, A: 0}},
		{Value: 0.3, Color: models.RGBA{R: 0.3, G: 0.1, B: 0.1, A: 0.0}},
		{Value: 0.45, Color: models.RGBA{R: 0.85, G: 0.45, B: 0.35, A: 0.35}},
		{Value: 0.6, Color: models.RGBA{R: 0.95, G: 0.65, B: 0.55, A: 0.6}},
		{Value: 1.0, Color: models.RGBA{R: 1, G: 0.9, B: 0.85, A: 0.8}},
	},
	MRDefault: {
		{Value: 0.0, Color: models.RGBA{R: 0, G: 0, B: 0, A: 0}},
		{Value: 0.15, Color: models.RGBA{R: 0.2, G: 0.2, B: 0.2, A: 0.05}},
		{Value: 0.5, Color: models.RGBA{R: 0.6, G: 0.6, B: 0.6, A: 0.45}},
		{Value: 1.0, Color: models.RGBA{R: 1, G: 1, B: 1, A: 0.95}},
	},
	MRBrain: {
		{Value: 0.0, Color: models.RGBA{R: 0, G: 0, B: 0, A: 0}},
		{Value: 0.25, Color: models.RGBA{R: 0.45, G: 0.35, B: 0.3, A: 0.1}},
		{Value: 0.45, Color: models.RGBA{R: 0.75, G: 0.6, B: 0.5, A: 0.4}},
		{Value: 0.7, Color: models.RGBA{R: 0.9, G: 0.85, B: 0.8, A: 0.75}},
		{Value: 1.0, Color: models.RGBA{R: 1, G: 1, B: 1, A: 0.95}},
	},
}

// NewPreset builds the transfer function for a named preset.
func NewPreset(p Preset) (*Function, error) {
	table, ok := presetTables[p]
	if !ok {
		return nil, fmt.Errorf("unknown transfer function preset %q", p)
	}
	return New(table)
}
