package mesh

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/qmuntal/gltf"

	"volrender/internal/models"
)

func buildTestMesh(t *testing.T) *Mesh {
	t.Helper()
	b := NewBuilder(0)
	m, err := b.Build(Key{StructureSetID: "export", ROINumber: 1},
		[]Contour{unitSquare()}, models.RGBA{R: 0.8, G: 0.2, B: 0.1, A: 1})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return m
}

func TestBuildDocument(t *testing.T) {
	m := buildTestMesh(t)

	doc, err := BuildDocument([]*Mesh{m})
	if err != nil {
		t.Fatalf("BuildDocument failed: %v", err)
	}

	if doc.Asset.Version != "2.0" {
		t.Errorf("Expected glTF version 2.0, got %s", doc.Asset.Version)
	}
	if len(doc.Meshes) != 1 || len(doc.Nodes) != 1 {
		t.Fatalf("Expected 1 mesh and 1 node, got %d and %d", len(doc.Meshes), len(doc.Nodes))
	}
	prim := doc.Meshes[0].Primitives[0]
	if prim.Mode != gltf.PrimitiveTriangles {
		t.Errorf("Expected triangle primitive, got %v", prim.Mode)
	}
	if _, ok := prim.Attributes["POSITION"]; !ok {
		t.Error("Expected POSITION attribute")
	}
	if _, ok := prim.Attributes["NORMAL"]; !ok {
		t.Error("Expected NORMAL attribute for a triangle mesh")
	}

	idxAcc := doc.Accessors[*prim.Indices]
	if idxAcc.Count != uint32(len(m.Indices)) {
		t.Errorf("Expected %d index elements, got %d", len(m.Indices), idxAcc.Count)
	}
	posAcc := doc.Accessors[prim.Attributes["POSITION"]]
	if posAcc.Count != uint32(len(m.Vertices)) {
		t.Errorf("Expected %d position elements, got %d", len(m.Vertices), posAcc.Count)
	}
	if len(posAcc.Min) != 3 || len(posAcc.Max) != 3 {
		t.Error("Expected position accessor min/max bounds")
	}

	mat := doc.Materials[*prim.Material]
	base := mat.PBRMetallicRoughness.BaseColorFactor
	if base == nil || base[0] != 0.8 {
		t.Errorf("Expected base color factor carrying the mesh color, got %v", base)
	}

	// The shared buffer holds every view end to end.
	var total uint32
	for _, bv := range doc.BufferViews {
		total += bv.ByteLength
	}
	if doc.Buffers[0].ByteLength != total {
		t.Errorf("Expected buffer length %d to match the summed views, got %d",
			total, doc.Buffers[0].ByteLength)
	}
}

func TestBuildDocumentSkipsEmptyMeshes(t *testing.T) {
	m := buildTestMesh(t)
	doc, err := BuildDocument([]*Mesh{{}, m})
	if err != nil {
		t.Fatalf("BuildDocument failed: %v", err)
	}
	if len(doc.Meshes) != 1 {
		t.Errorf("Expected empty mesh skipped, got %d meshes", len(doc.Meshes))
	}
}

func TestExportGLTF(t *testing.T) {
	m := buildTestMesh(t)
	path := filepath.Join(t.TempDir(), "structures.glb")

	if err := ExportGLTF([]*Mesh{m}, path); err != nil {
		t.Fatalf("ExportGLTF failed: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Exported file missing: %v", err)
	}
	if info.Size() == 0 {
		t.Error("Expected non-empty glb file")
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Failed to reopen export: %v", err)
	}
	defer f.Close()
	header := make([]byte, 4)
	if _, err := f.Read(header); err != nil {
		t.Fatalf("Failed to read header: %v", err)
	}
	if string(header) != "glTF" {
		t.Errorf("Expected glb magic header, got %q", header)
	}
}
