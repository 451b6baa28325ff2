// Package align implements the per-camera geometric transform between
// raw (device-frame, milli-inch) samples and mill-frame (inch) coordinates
// (§3, §4.4). The 2x2 rotation/reflection component of the transform is
// expressed as a gonum/mat matrix multiply rather than six hand-inlined
// multiplies: the forward and inverse paths each hold one matrix derived
// from roll/orientation.
package align

import (
	"math"

	"github.com/scanworks/scanhead-client/internal/scanerr"
	"gonum.org/v1/gonum/mat"
)

// Orientation describes which way the head's cable faces, which in turn
// determines the yaw applied ahead of the roll rotation (§3).
type Orientation int

const (
	CableUpstream Orientation = iota
	CableDownstream
)

func (o Orientation) cosYaw() float64 {
	if o == CableDownstream {
		return -1 // yaw = 180 degrees
	}
	return 1 // yaw = 0 degrees
}

// Point is a raw or mill-frame sample; Brightness is carried through
// unchanged by both transforms.
type Point struct {
	X, Y       float64
	Brightness uint8
}

// Alignment holds one camera's calibration and the precomputed rotation
// matrix derived from it.
type Alignment struct {
	RollDeg     float64
	ShiftXIn    float64
	ShiftYIn    float64
	Orientation Orientation

	rot    *mat.Dense // forward 2x2 rotation*cosYaw, scaled by 1/1000
	rotInv *mat.Dense // inverse (transpose) of the unscaled rotation
}

// New builds an Alignment, rejecting NaN/Inf inputs as InvalidArgument
// (§4.4: "Setters reject NaN/Inf").
func New(rollDeg, shiftXIn, shiftYIn float64, orientation Orientation) (*Alignment, error) {
	a := &Alignment{}
	if err := a.set(rollDeg, shiftXIn, shiftYIn, orientation); err != nil {
		return nil, err
	}
	return a, nil
}

// Set updates the alignment in place. Callers must not invoke this while the
// head is connected (§4.4, §4.8) — enforced by the head package, not here.
func (a *Alignment) Set(rollDeg, shiftXIn, shiftYIn float64, orientation Orientation) error {
	return a.set(rollDeg, shiftXIn, shiftYIn, orientation)
}

func (a *Alignment) set(rollDeg, shiftXIn, shiftYIn float64, orientation Orientation) error {
	for _, v := range []float64{rollDeg, shiftXIn, shiftYIn} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return scanerr.Wrap(scanerr.InvalidArgument, "alignment value must be finite, got %v", v)
		}
	}

	a.RollDeg = rollDeg
	a.ShiftXIn = shiftXIn
	a.ShiftYIn = shiftYIn
	a.Orientation = orientation

	rollRad := rollDeg * math.Pi / 180
	cosRoll, sinRoll := math.Cos(rollRad), math.Sin(rollRad)
	cosYaw := orientation.cosYaw()

	// Forward rotation matrix, scaled by 1/1000 (raw is milli-inch, mill is inch):
	//   [Xmill]   1/1000 * [cosYaw*cosRoll  -sinRoll] [X]   [shiftX]
	//   [Ymill] =          [cosYaw*sinRoll   cosRoll] [Y] + [shiftY]
	a.rot = mat.NewDense(2, 2, []float64{
		cosYaw * cosRoll / 1000, -sinRoll / 1000,
		cosYaw * sinRoll / 1000, cosRoll / 1000,
	})

	// Inverse: undo the shift, then apply the transpose of the unscaled
	// rotation (its inverse, since it's orthogonal up to the cosYaw=-1
	// reflection), then undo the 1/1000 scale and the cosYaw reflection on X.
	a.rotInv = mat.NewDense(2, 2, []float64{
		cosRoll, sinRoll,
		-sinRoll, cosRoll,
	})

	return nil
}

// Forward transforms a raw (milli-inch) point into mill-frame inches.
func (a *Alignment) Forward(p Point) Point {
	in := mat.NewVecDense(2, []float64{p.X, p.Y})
	var out mat.VecDense
	out.MulVec(a.rot, in)
	return Point{
		X:          out.AtVec(0) + a.ShiftXIn,
		Y:          out.AtVec(1) + a.ShiftYIn,
		Brightness: p.Brightness,
	}
}

// Inverse transforms a mill-frame (inch) point back to raw milli-inches.
func (a *Alignment) Inverse(p Point) Point {
	shifted := mat.NewVecDense(2, []float64{
		(p.X - a.ShiftXIn) * 1000,
		(p.Y - a.ShiftYIn) * 1000,
	})
	var out mat.VecDense
	out.MulVec(a.rotInv, shifted)

	cosYaw := a.Orientation.cosYaw()
	return Point{
		X:          out.AtVec(0) * cosYaw,
		Y:          out.AtVec(1),
		Brightness: p.Brightness,
	}
}

// Coefficients are the six precomputed forward-transform scalars used by the
// hot-path assembler (§4.6), which needs raw floats rather than a matrix
// multiply per point to stay allocation-free.
type Coefficients struct {
	CosYawCosRollOver1000 float64
	SinRollOver1000       float64
	CosYawSinRollOver1000 float64
	CosRollOver1000       float64
	ShiftXIn              float64
	ShiftYIn              float64
}

// Coefficients extracts the assembler's precomputed scalars from the
// underlying rotation matrix.
func (a *Alignment) Coefficients() Coefficients {
	return Coefficients{
		CosYawCosRollOver1000: a.rot.At(0, 0),
		SinRollOver1000:       -a.rot.At(0, 1),
		CosYawSinRollOver1000: a.rot.At(1, 0),
		CosRollOver1000:       a.rot.At(1, 1),
		ShiftXIn:              a.ShiftXIn,
		ShiftYIn:              a.ShiftYIn,
	}
}

// ApplyForward applies precomputed coefficients to one raw XY sample,
// without allocating — used on the assembler hot path (§4.6).
func ApplyForward(c Coefficients, x, y float64) (mx, my float64) {
	mx = x*c.CosYawCosRollOver1000 - y*c.SinRollOver1000 + c.ShiftXIn
	my = x*c.CosYawSinRollOver1000 + y*c.CosRollOver1000 + c.ShiftYIn
	return mx, my
}
