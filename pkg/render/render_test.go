package render

import (
	"context"
	"errors"
	"image"
	"math"
	"testing"

	"github.com/flywave/go3d/float64/vec3"

	"volrender/internal/models"
	"volrender/pkg/transfer"
	"volrender/pkg/volume"
)

func TestQualityTable(t *testing.T) {
	tests := []struct {
		quality QualityLevel
		step    float64
		samples int
	}{
		{QualityLow, 0.02, 200},
		{QualityMedium, 0.01, 500},
		{QualityHigh, 0.005, 1000},
		{QualityUltra, 0.002, 2000},
	}
	for _, tt := range tests {
		if got := tt.quality.StepSize(); got != tt.step {
			t.Errorf("%s: expected step size %v, got %v", tt.quality, tt.step, got)
		}
		if got := tt.quality.MaxSamples(); got != tt.samples {
			t.Errorf("%s: expected %d max samples, got %d", tt.quality, tt.samples, got)
		}
	}

	// Smaller steps must come with larger sample budgets.
	for q := QualityMedium; q <= QualityUltra; q++ {
		if q.StepSize() >= (q - 1).StepSize() {
			t.Errorf("Expected step size to shrink from %s to %s", q-1, q)
		}
		if q.MaxSamples() <= (q - 1).MaxSamples() {
			t.Errorf("Expected sample budget to grow from %s to %s", q-1, q)
		}
	}
}

func TestQualityOutOfRangeFallsBack(t *testing.T) {
	bad := QualityLevel(99)
	if bad.StepSize() != QualityMedium.StepSize() {
		t.Errorf("Expected out-of-range quality to fall back to medium step size")
	}
}

func TestParseQuality(t *testing.T) {
	if q, err := ParseQuality("ultra"); err != nil || q != QualityUltra {
		t.Errorf("Expected ultra to parse, got %v, %v", q, err)
	}
	if _, err := ParseQuality("extreme"); err == nil {
		t.Error("Expected error for unknown quality name")
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		name string
		mode Mode
	}{
		{"raycast", ModeRayCast},
		{"mip", ModeMIP},
		{"isosurface", ModeIsosurface},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.name)
		if err != nil {
			t.Errorf("ParseMode(%q) failed: %v", tt.name, err)
			continue
		}
		if got != tt.mode {
			t.Errorf("ParseMode(%q) = %v, expected %v", tt.name, got, tt.mode)
		}
	}
	if _, err := ParseMode("xray"); err == nil {
		t.Error("Expected error for unknown mode name")
	}
}

func TestCameraElevationClamp(t *testing.T) {
	c := NewCamera()
	c.Rotate(0, 10.0)
	limit := math.Pi/2 - 0.01
	if c.Elevation > limit+1e-9 {
		t.Errorf("Expected elevation clamped to %v, got %v", limit, c.Elevation)
	}
	c.Rotate(0, -20.0)
	if c.Elevation < -limit-1e-9 {
		t.Errorf("Expected elevation clamped to %v, got %v", -limit, c.Elevation)
	}
}

func TestCameraDistanceClamp(t *testing.T) {
	c := NewCamera()
	c.SetDistance(100)
	if c.Distance != 10 {
		t.Errorf("Expected distance clamped to 10, got %v", c.Distance)
	}
	c.SetDistance(0.01)
	if c.Distance != 0.5 {
		t.Errorf("Expected distance clamped to 0.5, got %v", c.Distance)
	}
}

func TestCameraZoom(t *testing.T) {
	c := NewCamera()
	start := c.Distance
	c.Zoom(2.0)
	if math.Abs(c.Distance-start/2) > 1e-9 {
		t.Errorf("Expected zoom factor 2 to halve distance, got %v", c.Distance)
	}
}

func TestCameraPositionOrbits(t *testing.T) {
	c := NewCamera()
	before := c.Position()
	c.Rotate(math.Pi/4, 0)
	after := c.Position()

	// Orbiting keeps the camera on a sphere around the target.
	db := vec3.Sub(&before, &c.Target)
	da := vec3.Sub(&after, &c.Target)
	if math.Abs(db.Length()-da.Length()) > 1e-9 {
		t.Errorf("Expected constant orbit radius, got %v then %v", db.Length(), da.Length())
	}
	if before == after {
		t.Error("Expected rotation to move the camera position")
	}
}

func TestIntersectBox(t *testing.T) {
	box := vec3.Box{Min: vec3.T{-0.5, -0.5, -0.5}, Max: vec3.T{0.5, 0.5, 0.5}}

	// Ray straight through the center.
	tNear, tFar, ok := intersectBox(vec3.T{0, 0, -2}, vec3.T{0, 0, 1}, box)
	if !ok {
		t.Fatal("Expected centered ray to hit the box")
	}
	if math.Abs(tNear-1.5) > 1e-9 || math.Abs(tFar-2.5) > 1e-9 {
		t.Errorf("Expected hit interval [1.5,2.5], got [%v,%v]", tNear, tFar)
	}

	// Ray that misses.
	if _, _, ok := intersectBox(vec3.T{0, 2, -2}, vec3.T{0, 0, 1}, box); ok {
		t.Error("Expected offset ray to miss the box")
	}

	// Origin inside the box clamps the entry to zero.
	tNear, _, ok = intersectBox(vec3.T{0, 0, 0}, vec3.T{0, 0, 1}, box)
	if !ok {
		t.Fatal("Expected interior ray to hit the box")
	}
	if tNear != 0 {
		t.Errorf("Expected interior ray entry at 0, got %v", tNear)
	}
}

// solidVolume builds a small bright cube for end-to-end render checks.
func solidVolume(t *testing.T) *volume.Volume {
	t.Helper()
	slices := make([]models.Slice, 8)
	for z := range slices {
		pixels := make([]byte, 8*8)
		for i := range pixels {
			pixels[i] = 200
		}
		slices[z] = models.Slice{
			Pixels:         pixels,
			Width:          8,
			Height:         8,
			Format:         models.FormatUint8,
			PixelSpacing:   [2]float64{1, 1},
			Thickness:      1,
			Position:       &[3]float64{0, 0, float64(z)},
			InstanceNumber: z + 1,
		}
	}
	// Vary one voxel so the data range is non-degenerate.
	slices[0].Pixels[0] = 0

	var l volume.Loader
	vol, err := l.Load(context.Background(), slices)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	return vol
}

func TestRenderFallbackWithoutVolume(t *testing.T) {
	p := NewPipeline()
	img, err := p.Render(16, 16)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	got := img.RGBAAt(8, 8)
	if got != fallbackColor {
		t.Errorf("Expected fallback color %v without a volume, got %v", fallbackColor, got)
	}
}

func TestRenderModesProduceContent(t *testing.T) {
	vol := solidVolume(t)
	tf, err := transfer.NewPreset(transfer.CTDefault)
	if err != nil {
		t.Fatalf("NewPreset failed: %v", err)
	}
	grad, err := volume.ComputeGradients(context.Background(), vol)
	if err != nil {
		t.Fatalf("ComputeGradients failed: %v", err)
	}

	for _, mode := range []Mode{ModeRayCast, ModeMIP, ModeIsosurface} {
		p := NewPipeline()
		p.SetVolume(vol)
		p.SetGradients(grad)
		p.SetTransferFunction(tf)
		p.SetMode(mode)
		p.SetQuality(QualityLow)
		p.SetDensityThreshold(0.3)

		img, err := p.Render(32, 32)
		if err != nil {
			t.Fatalf("%s render failed: %v", mode, err)
		}
		if img.Bounds() != image.Rect(0, 0, 32, 32) {
			t.Errorf("%s: unexpected frame bounds %v", mode, img.Bounds())
		}
		center := img.RGBAAt(16, 16)
		if center == fallbackColor {
			t.Errorf("%s: expected rendered content at frame center, got fallback color", mode)
		}
		if center.A != 255 {
			t.Errorf("%s: expected opaque output pixel, got alpha %d", mode, center.A)
		}
	}
}

func TestRenderInvalidFrameSize(t *testing.T) {
	p := NewPipeline()
	if _, err := p.Render(0, 32); err == nil {
		t.Error("Expected error for zero-width frame")
	}
}

func TestRenderRejectsUnknownMode(t *testing.T) {
	p := NewPipeline()
	p.SetMode(Mode(42))
	_, err := p.Render(4, 4)
	var inputErr *models.InvalidInputError
	if !errors.As(err, &inputErr) {
		t.Errorf("Expected InvalidInputError for unknown mode, got %v", err)
	}
}

func TestRenderRejectsOverlappingFrame(t *testing.T) {
	p := NewPipeline()
	p.inFlight.Store(true)
	if _, err := p.Render(4, 4); !errors.Is(err, ErrFrameInFlight) {
		t.Errorf("Expected ErrFrameInFlight while a frame is in flight, got %v", err)
	}
	p.inFlight.Store(false)
	if _, err := p.Render(4, 4); err != nil {
		t.Errorf("Expected render to succeed after the frame completes, got %v", err)
	}
}
