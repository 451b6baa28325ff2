package align

import (
	"math"

	"github.com/scanworks/scanhead-client/internal/wire"
)

// RectangleConstraints decomposes a mill-frame axis-aligned rectangle
// (top/bottom/left/right in inches) into the four line constraints the
// device expects, in wire order: top edge, bottom edge, right edge, left
// edge (§3, §6, end-to-end scenario A).
//
// For a cable-downstream head the X axis is mirrored relative to
// cable-upstream (yaw=180 vs 0), so each constraint's two endpoints are
// swapped to keep the device-side winding consistent — the orientation
// picks which endpoint plays p1 vs p2, per §4.10/§6.
func RectangleConstraints(top, bottom, left, right float64, orientation Orientation) [][2]Point {
	edges := [][2]Point{
		{{X: left, Y: top}, {X: right, Y: top}},
		{{X: right, Y: bottom}, {X: left, Y: bottom}},
		{{X: right, Y: top}, {X: right, Y: bottom}},
		{{X: left, Y: bottom}, {X: left, Y: top}},
	}
	if orientation == CableDownstream {
		for i, e := range edges {
			edges[i] = [2]Point{e[1], e[0]}
		}
	}
	return edges
}

// EncodeWindow inverse-transforms a rectangle's constraints through a into
// raw milli-inch LineConstraint values ready for wire.WindowRequest.
func EncodeWindow(cameraID uint8, a *Alignment, top, bottom, left, right float64) wire.WindowRequest {
	edges := RectangleConstraints(top, bottom, left, right, a.Orientation)
	constraints := make([]wire.LineConstraint, len(edges))
	for i, e := range edges {
		p1 := a.Inverse(e[0])
		p2 := a.Inverse(e[1])
		constraints[i] = wire.LineConstraint{
			X1: int32(math.Round(p1.X)), Y1: int32(math.Round(p1.Y)),
			X2: int32(math.Round(p2.X)), Y2: int32(math.Round(p2.Y)),
		}
	}
	return wire.WindowRequest{CameraID: cameraID, Constraints: constraints}
}
