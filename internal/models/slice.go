// Package models holds the data types shared between the volume, rendering,
// and geometry packages: decoded 2D slices with their spatial metadata,
// voxel scalar formats, and colors.
package models

import "fmt"

// ScalarFormat identifies the storage format of voxel scalar values.
type ScalarFormat int

const (
	// FormatUint8 is 8-bit unsigned (secondary captures, some MR exports).
	FormatUint8 ScalarFormat = iota

	// FormatInt8 is 8-bit signed.
	FormatInt8

	// FormatUint16 is 16-bit unsigned, little-endian.
	FormatUint16

	// FormatInt16 is 16-bit signed, little-endian. CT series store
	// Hounsfield units in this format.
	FormatInt16
)

// BytesPerVoxel returns the storage size of one scalar value.
func (f ScalarFormat) BytesPerVoxel() int {
	switch f {
	case FormatUint8, FormatInt8:
		return 1
	default:
		return 2
	}
}

// Signed reports whether the format stores signed values.
func (f ScalarFormat) Signed() bool {
	return f == FormatInt8 || f == FormatInt16
}

// Range returns the representable value range of the format.
func (f ScalarFormat) Range() (min, max float64) {
	switch f {
	case FormatUint8:
		return 0, 255
	case FormatInt8:
		return -128, 127
	case FormatUint16:
		return 0, 65535
	default:
		return -32768, 32767
	}
}

func (f ScalarFormat) String() string {
	switch f {
	case FormatUint8:
		return "uint8"
	case FormatInt8:
		return "int8"
	case FormatUint16:
		return "uint16"
	case FormatInt16:
		return "int16"
	default:
		return fmt.Sprintf("ScalarFormat(%d)", int(f))
	}
}

// Slice represents a single decoded 2D cross-sectional image with the
// spatial metadata needed to place it inside a 3D volume. Pixel data is
// row-major; 16-bit formats are little-endian.
type Slice struct {
	// Pixels is the raw decoded pixel buffer.
	Pixels []byte

	// Width and Height are the pixel dimensions of the slice.
	Width, Height int

	// Format is the scalar storage format of Pixels.
	Format ScalarFormat

	// PixelSpacing is the physical in-plane spacing in mm (row, column).
	PixelSpacing [2]float64

	// Thickness is the slice thickness in mm, or 0 when absent.
	Thickness float64

	// Position is the 3D position of the slice's first pixel in patient
	// space, or nil when the series carries no position metadata.
	Position *[3]float64

	// InstanceNumber is the acquisition sequence number, used as the
	// ordering fallback when Position is absent.
	InstanceNumber int

	// WindowCenter and WindowWidth are the suggested display window in
	// raw scalar units, both 0 when absent.
	WindowCenter, WindowWidth float64
}

// RGBA is a color with components in [0,1].
type RGBA struct {
	R, G, B, A float64
}

// Lerp linearly interpolates between c and other at parameter t in [0,1].
func (c RGBA) Lerp(other RGBA, t float64) RGBA {
	return RGBA{
		R: c.R + t*(other.R-c.R),
		G: c.G + t*(other.G-c.G),
		B: c.B + t*(other.B-c.B),
		A: c.A + t*(other.A-c.A),
	}
}

// InvalidInputError reports input that fails validation before any
// processing is dispatched: an empty series, inconsistent slice formats,
// or a malformed contour.
type InvalidInputError struct {
	Reason string
}

func (e *InvalidInputError) Error() string {
	return "invalid input: " + e.Reason
}
