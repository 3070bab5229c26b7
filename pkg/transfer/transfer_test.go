package transfer

import (
	"errors"
	"math"
	"testing"

	"volrender/internal/models"
)

func grayscalePoints() []ControlPoint {
	return []ControlPoint{
		{Value: 0.0, Color: models.RGBA{R: 0, G: 0, B: 0, A: 0}},
		{Value: 0.5, Color: models.RGBA{R: 1, G: 0, B: 0, A: 0.5}},
		{Value: 1.0, Color: models.RGBA{R: 1, G: 1, B: 1, A: 1}},
	}
}

func TestNewRequiresControlPoints(t *testing.T) {
	_, err := New(nil)
	var inputErr *models.InvalidInputError
	if !errors.As(err, &inputErr) {
		t.Errorf("Expected InvalidInputError for empty control points, got %v", err)
	}
}

func TestNewSortsControlPoints(t *testing.T) {
	// Points given out of order still evaluate as a sorted ramp.
	f, err := New([]ControlPoint{
		{Value: 1.0, Color: models.RGBA{R: 1, A: 1}},
		{Value: 0.0, Color: models.RGBA{A: 0}},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	got := f.Evaluate(0.5)
	if math.Abs(got.A-0.5) > 1e-9 {
		t.Errorf("Expected interpolated alpha 0.5, got %v", got.A)
	}
}

func TestEvaluateClampsToEndpoints(t *testing.T) {
	f, err := New(grayscalePoints())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	low := f.Evaluate(-2.0)
	if low.A != 0 || low.R != 0 {
		t.Errorf("Expected first point color below range, got %+v", low)
	}
	high := f.Evaluate(2.0)
	if high.A != 1 || high.B != 1 {
		t.Errorf("Expected last point color above range, got %+v", high)
	}
}

func TestEvaluateInterpolatesBetweenPoints(t *testing.T) {
	f, err := New(grayscalePoints())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	// Halfway between the 0.0 and 0.5 anchors.
	got := f.Evaluate(0.25)
	if math.Abs(got.R-0.5) > 1e-9 {
		t.Errorf("Expected red 0.5 at value 0.25, got %v", got.R)
	}
	if math.Abs(got.A-0.25) > 1e-9 {
		t.Errorf("Expected alpha 0.25 at value 0.25, got %v", got.A)
	}
}

func TestTextureResolutionAndEndpoints(t *testing.T) {
	f, err := New(grayscalePoints())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	tex := f.Texture(0)
	if len(tex) != DefaultTextureResolution {
		t.Errorf("Expected default texture resolution %d, got %d", DefaultTextureResolution, len(tex))
	}
	if tex[0].A != 0 {
		t.Errorf("Expected first texel to carry first point alpha 0, got %v", tex[0].A)
	}
	if tex[len(tex)-1].A != 1 {
		t.Errorf("Expected last texel to carry last point alpha 1, got %v", tex[len(tex)-1].A)
	}
}

func TestTextureRebuiltOnlyWhenDirty(t *testing.T) {
	f, err := New(grayscalePoints())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	first := f.Texture(256)
	second := f.Texture(256)
	if &first[0] != &second[0] {
		t.Error("Expected texture to be cached between calls with unchanged points")
	}

	if err := f.SetPoints(grayscalePoints()); err != nil {
		t.Fatalf("SetPoints failed: %v", err)
	}
	third := f.Texture(256)
	if &first[0] == &third[0] {
		t.Error("Expected texture rebuild after SetPoints")
	}
}

func TestTextureSingleTexel(t *testing.T) {
	f, err := New(grayscalePoints())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	tex := f.Texture(1)
	if len(tex) != 1 {
		t.Fatalf("Expected a 1-texel table, got %d", len(tex))
	}
	if tex[0] != f.Evaluate(0) {
		t.Errorf("Expected the single texel to carry the first point color, got %+v", tex[0])
	}
}

func TestEvaluateNonFiniteValue(t *testing.T) {
	f, err := New(grayscalePoints())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	// NaN fails every ordered comparison; it must still map to a table
	// color instead of escaping the lookup.
	got := f.Evaluate(math.NaN())
	if got.A != 1 || got.B != 1 {
		t.Errorf("Expected NaN to resolve to the last point color, got %+v", got)
	}
}

func TestFreeTextureForcesRebuild(t *testing.T) {
	f, err := New(grayscalePoints())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	first := f.Texture(128)
	f.FreeTexture()
	second := f.Texture(128)
	if &first[0] == &second[0] {
		t.Error("Expected a fresh texture after FreeTexture")
	}
}

func TestPresetsResolve(t *testing.T) {
	for _, p := range Presets() {
		f, err := NewPreset(p)
		if err != nil {
			t.Errorf("Preset %s failed to build: %v", p, err)
			continue
		}
		if len(f.Points()) < 2 {
			t.Errorf("Preset %s has %d control points, expected at least 2", p, len(f.Points()))
		}
	}
}

func TestUnknownPreset(t *testing.T) {
	if _, err := NewPreset("not-a-preset"); err == nil {
		t.Error("Expected error for unknown preset name")
	}
}
