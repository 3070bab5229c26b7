package mesh

import (
	"math"
	"time"

	"github.com/flywave/go3d/float64/vec3"

	"volrender/internal/logging"
	"volrender/internal/models"
)

// Topology describes how a mesh's indices are interpreted.
type Topology int

const (
	TopologyTriangles Topology = iota
	TopologyLines
	TopologyPoints
)

// DefaultDecimationCeiling is the contour point count above which input is
// resampled before meshing.
const DefaultDecimationCeiling = 500

// Mesh is a renderable contour mesh.
type Mesh struct {
	Vertices []vec3.T
	Normals  []vec3.T

	// Indices index Vertices according to Topology: triples for
	// triangles, pairs for lines, single entries for points.
	Indices []uint32

	// Wireframe holds the edge index pairs of the triangle list for
	// overlay rendering. Edges shared between adjacent triangles appear
	// once per triangle; duplicates are kept rather than deduplicated.
	Wireframe []uint32

	Topology  Topology
	Color     models.RGBA
	CreatedAt time.Time
}

// Bounds returns the mesh's axis-aligned bounding box for overlay culling
// and plane-intersection tests.
func (m *Mesh) Bounds() vec3.Box {
	box := vec3.Box{
		Min: vec3.T{math.MaxFloat64, math.MaxFloat64, math.MaxFloat64},
		Max: vec3.T{-math.MaxFloat64, -math.MaxFloat64, -math.MaxFloat64},
	}
	for i := range m.Vertices {
		for axis := 0; axis < 3; axis++ {
			if m.Vertices[i][axis] < box.Min[axis] {
				box.Min[axis] = m.Vertices[i][axis]
			}
			if m.Vertices[i][axis] > box.Max[axis] {
				box.Max[axis] = m.Vertices[i][axis]
			}
		}
	}
	return box
}

// Key identifies a cached mesh by its parent structure set and ROI.
type Key struct {
	StructureSetID string
	ROINumber      int
}

// Builder triangulates contours into meshes and caches them by ROI.
type Builder struct {
	// DecimationCeiling is the point count above which contours are
	// resampled; DefaultDecimationCeiling when zero.
	DecimationCeiling int

	cache *Cache
}

// NewBuilder creates a builder with a mesh cache of the given capacity
// (DefaultCacheCapacity when <= 0).
func NewBuilder(cacheCapacity int) *Builder {
	return &Builder{cache: NewCache(cacheCapacity)}
}

// Cache exposes the builder's mesh cache.
func (b *Builder) Cache() *Cache { return b.cache }

// Build returns the mesh for the given contours, building and caching it
// on first use. Repeat calls with the same key return the cached mesh
// until it is evicted or invalidated.
//
// Closed contours are fan-triangulated from their first vertex. The fan is
// correct for convex and near-convex boundaries, which manually drawn
// organ contours overwhelmingly are; concave or self-intersecting input is
// an accepted limitation. Open contours become line-segment meshes and
// single points become point meshes.
func (b *Builder) Build(key Key, contours []Contour, color models.RGBA) (*Mesh, error) {
	if m, ok := b.cache.Get(key); ok {
		return m, nil
	}
	if len(contours) == 0 {
		return nil, &models.InvalidInputError{Reason: "no contours to mesh"}
	}
	for i := range contours {
		if err := contours[i].Validate(); err != nil {
			return nil, err
		}
	}

	m := &Mesh{Color: color, CreatedAt: time.Now()}
	topology := TopologyPoints
	for i := range contours {
		c := b.decimate(&contours[i])
		base := uint32(len(m.Vertices))
		m.Vertices = append(m.Vertices, c.Points...)

		switch {
		case c.Type.Closed():
			topology = TopologyTriangles
			appendFan(m, base, len(c.Points))
		case c.Type == TypePoint:
			m.Indices = append(m.Indices, base)
		default:
			if topology != TopologyTriangles {
				topology = TopologyLines
			}
			for j := 0; j+1 < len(c.Points); j++ {
				m.Indices = append(m.Indices, base+uint32(j), base+uint32(j+1))
			}
		}
	}
	m.Topology = topology
	if topology == TopologyTriangles {
		m.Wireframe = wireframeEdges(m.Indices)
		m.Normals = vertexNormals(m.Vertices, m.Indices)
	}

	b.cache.Put(key, m)
	logging.Logger().Debug("contour mesh built",
		"structure_set", key.StructureSetID, "roi", key.ROINumber,
		"vertices", len(m.Vertices), "indices", len(m.Indices))
	return m, nil
}

// BuildSet builds and caches one mesh per visible ROI in the set.
func (b *Builder) BuildSet(set *StructureSet) error {
	for i := range set.ROIs {
		roi := &set.ROIs[i]
		if !roi.Visible {
			continue
		}
		key := Key{StructureSetID: set.ID, ROINumber: roi.Number}
		if _, err := b.Build(key, roi.Contours, roi.Color); err != nil {
			return err
		}
	}
	return nil
}

// appendFan emits the fan triangulation (0, i, i+1) of a closed contour.
func appendFan(m *Mesh, base uint32, n int) {
	for i := 1; i < n-1; i++ {
		m.Indices = append(m.Indices, base, base+uint32(i), base+uint32(i+1))
	}
}

// wireframeEdges extracts the three edges of every triangle.
func wireframeEdges(indices []uint32) []uint32 {
	edges := make([]uint32, 0, len(indices)*2)
	for i := 0; i+2 < len(indices); i += 3 {
		a, b, c := indices[i], indices[i+1], indices[i+2]
		edges = append(edges, a, b, b, c, c, a)
	}
	return edges
}

// vertexNormals accumulates area-weighted triangle normals per vertex and
// normalizes them.
func vertexNormals(vertices []vec3.T, indices []uint32) []vec3.T {
	normals := make([]vec3.T, len(vertices))
	for i := 0; i+2 < len(indices); i += 3 {
		p1 := vertices[indices[i]]
		p2 := vertices[indices[i+1]]
		p3 := vertices[indices[i+2]]

		e1 := vec3.Sub(&p3, &p2)
		e2 := vec3.Sub(&p1, &p2)
		cross := vec3.Cross(&e1, &e2)
		l := cross.Length()
		if l == 0 {
			continue
		}
		weighted := cross.Scaled(1 / l)
		normals[indices[i]].Add(&weighted)
		normals[indices[i+1]].Add(&weighted)
		normals[indices[i+2]].Add(&weighted)
	}
	for i := range normals {
		if normals[i].Length() > 0 {
			normals[i].Normalize()
		}
	}
	return normals
}

// decimate resamples a contour above the ceiling by uniform stride. Closed
// contours keep the original last point so closure is preserved.
func (b *Builder) decimate(c *Contour) Contour {
	ceiling := b.DecimationCeiling
	if ceiling <= 0 {
		ceiling = DefaultDecimationCeiling
	}
	if len(c.Points) <= ceiling {
		return *c
	}

	stride := float64(len(c.Points)) / float64(ceiling)
	points := make([]vec3.T, 0, ceiling)
	for i := 0; i < ceiling; i++ {
		points = append(points, c.Points[int(float64(i)*stride)])
	}
	if c.Type.Closed() {
		points[len(points)-1] = c.Points[len(c.Points)-1]
	}
	logging.Logger().Debug("contour decimated",
		"from", len(c.Points), "to", len(points))
	return Contour{Points: points, Type: c.Type}
}
