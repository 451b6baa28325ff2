// Package profile implements fragment reassembly and the profile assembler
// (§4.5, §4.6): the per-(head,camera,laser,timestamp) fragment accumulator,
// the preallocated point-array ring, and the bounded profile queue with its
// replace-oldest overflow policy.
package profile

import (
	"math"

	"github.com/scanworks/scanhead-client/internal/align"
	"github.com/scanworks/scanhead-client/internal/wire"
)

// RawLen is the fixed column count of every produced profile (§3, §8 property 1).
const RawLen = 1456

// InvalidBrightness is the sentinel brightness for uninitialized/invalid columns.
const InvalidBrightness uint8 = 0

// CameraCols is the per-row column count an image-mode capture's raw rows
// and final subpixel-pair table are both sized by (§4.6). The wire format
// never varies it independent of the point array, so it is fixed at RawLen.
const CameraCols = RawLen

// Profile is one fully assembled, mill-frame-transformed laser stripe (§3).
type Profile struct {
	Source wire.Source

	Timestamp    uint64 // head-local nanoseconds
	Encoders     []int64
	LaserOnTime  uint16 // microseconds
	ExposureTime uint16 // microseconds
	DataFormat   wire.DataType

	Points          [RawLen]align.Point
	ValidPointCount int

	// SubpixelRows holds the SP payload's raw camera-frame row per column,
	// or InvalidSubpixelRow where the column carries no SP value.
	SubpixelRows []int16
	Image        []byte
}

// ValidPoints returns the subset of Points whose Y is finite (§3, §8 property 3).
func (p *Profile) ValidPoints() []align.Point {
	out := make([]align.Point, 0, p.ValidPointCount)
	for _, pt := range p.Points {
		if !math.IsNaN(pt.Y) {
			out = append(out, pt)
		}
	}
	return out
}

// defaultPoints is the immutable template every ring slot is reset from.
var defaultPoints [RawLen]align.Point

func init() {
	for i := range defaultPoints {
		defaultPoints[i] = align.Point{X: math.NaN(), Y: math.NaN(), Brightness: InvalidBrightness}
	}
}

func resetPoints(pts *[RawLen]align.Point) {
	*pts = defaultPoints
}
