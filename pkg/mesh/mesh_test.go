package mesh

import (
	"errors"
	"math"
	"testing"

	"github.com/flywave/go3d/float64/vec3"

	"volrender/internal/models"
)

func unitSquare() Contour {
	return Contour{
		Type: TypeClosedPlanar,
		Points: []vec3.T{
			{0, 0, 0},
			{1, 0, 0},
			{1, 1, 0},
			{0, 1, 0},
		},
	}
}

func TestBuildClosedContour(t *testing.T) {
	b := NewBuilder(0)
	key := Key{StructureSetID: "set1", ROINumber: 1}

	m, err := b.Build(key, []Contour{unitSquare()}, models.RGBA{R: 1, A: 1})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if m.Topology != TopologyTriangles {
		t.Errorf("Expected triangle topology for closed contour, got %v", m.Topology)
	}
	// A quad fans into 2 triangles.
	if len(m.Indices) != 6 {
		t.Errorf("Expected 6 triangle indices for a quad, got %d", len(m.Indices))
	}
	// 3 edges per triangle, 2 indices per edge, duplicates kept.
	if len(m.Wireframe) != 12 {
		t.Errorf("Expected 12 wireframe indices, got %d", len(m.Wireframe))
	}
	if len(m.Normals) != len(m.Vertices) {
		t.Errorf("Expected one normal per vertex, got %d for %d vertices",
			len(m.Normals), len(m.Vertices))
	}
	// A planar contour's vertex normals all point along Z.
	for i, n := range m.Normals {
		if math.Abs(math.Abs(n[2])-1) > 1e-9 {
			t.Errorf("Normal %d: expected unit Z normal, got %v", i, n)
		}
	}
}

func TestBuildOpenContour(t *testing.T) {
	b := NewBuilder(0)
	c := Contour{
		Type:   TypeOpenPlanar,
		Points: []vec3.T{{0, 0, 0}, {1, 0, 0}, {2, 1, 0}},
	}

	m, err := b.Build(Key{StructureSetID: "set1", ROINumber: 2}, []Contour{c}, models.RGBA{})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if m.Topology != TopologyLines {
		t.Errorf("Expected line topology for open contour, got %v", m.Topology)
	}
	// 3 points chain into 2 segments.
	if len(m.Indices) != 4 {
		t.Errorf("Expected 4 line indices, got %d", len(m.Indices))
	}
}

func TestBuildPointContour(t *testing.T) {
	b := NewBuilder(0)
	c := Contour{Type: TypePoint, Points: []vec3.T{{5, 5, 5}}}

	m, err := b.Build(Key{StructureSetID: "set1", ROINumber: 3}, []Contour{c}, models.RGBA{})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if m.Topology != TopologyPoints {
		t.Errorf("Expected point topology, got %v", m.Topology)
	}
	if len(m.Indices) != 1 {
		t.Errorf("Expected 1 point index, got %d", len(m.Indices))
	}
}

func TestBuildRejectsDegenerateClosedContour(t *testing.T) {
	b := NewBuilder(0)
	c := Contour{Type: TypeClosedPlanar, Points: []vec3.T{{0, 0, 0}, {1, 0, 0}}}

	_, err := b.Build(Key{StructureSetID: "set1", ROINumber: 4}, []Contour{c}, models.RGBA{})
	var inputErr *models.InvalidInputError
	if !errors.As(err, &inputErr) {
		t.Errorf("Expected InvalidInputError for 2-point closed contour, got %v", err)
	}
}

func TestBuildReturnsCachedMesh(t *testing.T) {
	b := NewBuilder(0)
	key := Key{StructureSetID: "set1", ROINumber: 1}

	first, err := b.Build(key, []Contour{unitSquare()}, models.RGBA{})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	// Same key with different contours still hits the cache.
	second, err := b.Build(key, nil, models.RGBA{})
	if err != nil {
		t.Fatalf("Cached build failed: %v", err)
	}
	if first != second {
		t.Error("Expected repeat Build with the same key to return the cached mesh")
	}
}

func TestDecimationCeiling(t *testing.T) {
	b := NewBuilder(0)
	b.DecimationCeiling = 50

	points := make([]vec3.T, 400)
	for i := range points {
		angle := 2 * math.Pi * float64(i) / float64(len(points))
		points[i] = vec3.T{math.Cos(angle), math.Sin(angle), 0}
	}
	c := Contour{Type: TypeClosedPlanar, Points: points}

	m, err := b.Build(Key{StructureSetID: "set1", ROINumber: 7}, []Contour{c}, models.RGBA{})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if len(m.Vertices) != 50 {
		t.Errorf("Expected decimation to 50 vertices, got %d", len(m.Vertices))
	}
	// Closure point survives decimation.
	if m.Vertices[len(m.Vertices)-1] != points[len(points)-1] {
		t.Error("Expected the original last point to survive decimation")
	}
}

func TestBuildSetSkipsHiddenROIs(t *testing.T) {
	b := NewBuilder(0)
	set := &StructureSet{
		ID: "set1",
		ROIs: []ROI{
			{Number: 1, Name: "liver", Visible: true, Contours: []Contour{unitSquare()}},
			{Number: 2, Name: "skipme", Visible: false, Contours: []Contour{unitSquare()}},
		},
	}
	if err := b.BuildSet(set); err != nil {
		t.Fatalf("BuildSet failed: %v", err)
	}
	if _, ok := b.Cache().Get(Key{StructureSetID: "set1", ROINumber: 1}); !ok {
		t.Error("Expected visible ROI to be cached")
	}
	if _, ok := b.Cache().Get(Key{StructureSetID: "set1", ROINumber: 2}); ok {
		t.Error("Expected hidden ROI to be skipped")
	}
}

func TestMeshBounds(t *testing.T) {
	b := NewBuilder(0)
	m, err := b.Build(Key{StructureSetID: "set1", ROINumber: 1}, []Contour{unitSquare()}, models.RGBA{})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	box := m.Bounds()
	if box.Min != (vec3.T{0, 0, 0}) || box.Max != (vec3.T{1, 1, 0}) {
		t.Errorf("Expected bounds [0,0,0]..[1,1,0], got %v..%v", box.Min, box.Max)
	}
}

func TestCacheEvictsOldest(t *testing.T) {
	c := NewCache(0)
	if cap := DefaultCacheCapacity; cap != 10 {
		t.Fatalf("Unexpected default capacity %d", cap)
	}

	for i := 0; i < 11; i++ {
		c.Put(Key{StructureSetID: "set1", ROINumber: i}, &Mesh{})
	}
	if c.Len() != 10 {
		t.Errorf("Expected cache to hold 10 entries after overflow, got %d", c.Len())
	}
	// The first insertion is the oldest and must be gone.
	if _, ok := c.Get(Key{StructureSetID: "set1", ROINumber: 0}); ok {
		t.Error("Expected the oldest entry to be evicted")
	}
	if _, ok := c.Get(Key{StructureSetID: "set1", ROINumber: 10}); !ok {
		t.Error("Expected the newest entry to be present")
	}
}

func TestCacheReplaceDoesNotEvict(t *testing.T) {
	c := NewCache(2)
	a := Key{StructureSetID: "set1", ROINumber: 1}
	b := Key{StructureSetID: "set1", ROINumber: 2}
	c.Put(a, &Mesh{})
	c.Put(b, &Mesh{})

	// Overwriting an existing key must not push anything out.
	c.Put(a, &Mesh{})
	if c.Len() != 2 {
		t.Errorf("Expected 2 entries after replacement, got %d", c.Len())
	}
	if _, ok := c.Get(b); !ok {
		t.Error("Expected untouched entry to survive replacement")
	}
}

func TestCacheInvalidateAndClear(t *testing.T) {
	c := NewCache(4)
	key := Key{StructureSetID: "set1", ROINumber: 1}
	c.Put(key, &Mesh{})

	c.Invalidate(key)
	if _, ok := c.Get(key); ok {
		t.Error("Expected entry gone after Invalidate")
	}

	for i := 0; i < 4; i++ {
		c.Put(Key{StructureSetID: "set1", ROINumber: i}, &Mesh{})
	}
	c.Clear()
	if c.Len() != 0 {
		t.Errorf("Expected empty cache after Clear, got %d entries", c.Len())
	}
}

func TestGeometricTypeClosed(t *testing.T) {
	tests := []struct {
		t      GeometricType
		closed bool
	}{
		{TypePoint, false},
		{TypeOpenPlanar, false},
		{TypeOpenNonplanar, false},
		{TypeClosedPlanar, true},
		{TypeClosedNonplanar, true},
	}
	for _, tt := range tests {
		if got := tt.t.Closed(); got != tt.closed {
			t.Errorf("%s: Closed() = %v, expected %v", tt.t, got, tt.closed)
		}
	}
}

func TestBuildEmptyContours(t *testing.T) {
	b := NewBuilder(0)
	_, err := b.Build(Key{StructureSetID: "s", ROINumber: 1}, nil, models.RGBA{})
	if err == nil {
		t.Error("Expected error for empty contour list")
	}
}

func TestCacheKeysAreDistinctPerSet(t *testing.T) {
	b := NewBuilder(0)
	for _, id := range []string{"setA", "setB"} {
		if _, err := b.Build(Key{StructureSetID: id, ROINumber: 1}, []Contour{unitSquare()}, models.RGBA{}); err != nil {
			t.Fatalf("Build for %s failed: %v", id, err)
		}
	}
	if b.Cache().Len() != 2 {
		t.Errorf("Expected separate cache entries per structure set, got %d", b.Cache().Len())
	}
}
