// Package mesh converts clinical structure contours into renderable
// triangle and line meshes, caches the results, and exports them as glTF.
package mesh

import (
	"fmt"

	"github.com/flywave/go3d/float64/vec3"

	"volrender/internal/models"
)

// GeometricType classifies a contour's point sequence.
type GeometricType int

const (
	// TypePoint is a single landmark point.
	TypePoint GeometricType = iota

	// TypeOpenPlanar is an open polyline within one plane.
	TypeOpenPlanar

	// TypeOpenNonplanar is an open polyline crossing planes.
	TypeOpenNonplanar

	// TypeClosedPlanar is a closed boundary within one plane.
	TypeClosedPlanar

	// TypeClosedNonplanar is a closed boundary crossing planes.
	TypeClosedNonplanar
)

// Closed reports whether the type denotes a closed boundary.
func (t GeometricType) Closed() bool {
	return t == TypeClosedPlanar || t == TypeClosedNonplanar
}

func (t GeometricType) String() string {
	switch t {
	case TypePoint:
		return "point"
	case TypeOpenPlanar:
		return "open-planar"
	case TypeOpenNonplanar:
		return "open-nonplanar"
	case TypeClosedPlanar:
		return "closed-planar"
	case TypeClosedNonplanar:
		return "closed-nonplanar"
	default:
		return fmt.Sprintf("GeometricType(%d)", int(t))
	}
}

// Contour is an ordered sequence of 3D points in patient space.
type Contour struct {
	Points []vec3.T
	Type   GeometricType
}

// Validate checks the contour's point count against its geometric type.
// Closed contours need at least three points to be meshable.
func (c *Contour) Validate() error {
	if len(c.Points) == 0 {
		return &models.InvalidInputError{Reason: "contour has no points"}
	}
	if c.Type.Closed() && len(c.Points) < 3 {
		return &models.InvalidInputError{
			Reason: fmt.Sprintf("%s contour has %d points, closed contours need at least 3",
				c.Type, len(c.Points)),
		}
	}
	return nil
}

// ROI is one named structure: its contours plus display attributes.
type ROI struct {
	Number   int
	Name     string
	Color    models.RGBA
	Visible  bool
	Contours []Contour
}

// StructureSet groups the ROIs delineated on one image series.
type StructureSet struct {
	ID   string
	ROIs []ROI
}
