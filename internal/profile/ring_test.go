package profile

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRing_BorrowWrapsAndResets(t *testing.T) {
	r := NewRing(2)

	p0 := r.Borrow()
	p0.Points[0].X = 42
	p0.ValidPointCount = 9

	p1 := r.Borrow()
	require.NotSame(t, p0, p1)

	p2 := r.Borrow() // wraps back to slot 0
	require.Same(t, p0, p2)
	require.True(t, math.IsNaN(p2.Points[0].X))
	require.Equal(t, 0, p2.ValidPointCount)
}

func TestRing_Len(t *testing.T) {
	r := NewRing(5)
	require.Equal(t, 5, r.Len())
}
