package align

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestForwardInverseRoundTrip(t *testing.T) {
	cases := []struct {
		roll        float64
		orientation Orientation
	}{
		{0, CableUpstream},
		{15, CableUpstream},
		{-37.5, CableDownstream},
		{90, CableDownstream},
	}

	for _, c := range cases {
		a, err := New(c.roll, 1.25, -0.5, c.orientation)
		require.NoError(t, err)

		original := Point{X: 1234.5, Y: -6789.25, Brightness: 200}
		mill := a.Forward(original)
		back := a.Inverse(mill)

		require.InDelta(t, original.X, back.X, 1e-4)
		require.InDelta(t, original.Y, back.Y, 1e-4)
		require.Equal(t, original.Brightness, back.Brightness)

		mill2 := a.Forward(back)
		require.InDelta(t, mill.X, mill2.X, 1e-4)
		require.InDelta(t, mill.Y, mill2.Y, 1e-4)
	}
}

func TestNewRejectsNaNAndInf(t *testing.T) {
	_, err := New(math.NaN(), 0, 0, CableUpstream)
	require.Error(t, err)

	_, err = New(0, math.Inf(1), 0, CableUpstream)
	require.Error(t, err)
}

func TestApplyForwardMatchesDense(t *testing.T) {
	a, err := New(12.5, 0.25, -0.1, CableUpstream)
	require.NoError(t, err)

	coeff := a.Coefficients()
	mx, my := ApplyForward(coeff, 500, -250)
	p := a.Forward(Point{X: 500, Y: -250})

	require.InDelta(t, p.X, mx, 1e-9)
	require.InDelta(t, p.Y, my, 1e-9)
}

func TestRectangleConstraints_ScenarioA(t *testing.T) {
	edges := RectangleConstraints(30, -30, -30, 30, CableUpstream)
	require.Equal(t, [][2]Point{
		{{X: -30, Y: 30}, {X: 30, Y: 30}},
		{{X: 30, Y: -30}, {X: -30, Y: -30}},
		{{X: 30, Y: 30}, {X: 30, Y: -30}},
		{{X: -30, Y: -30}, {X: -30, Y: 30}},
	}, edges)
}
