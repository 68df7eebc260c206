package capex

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetail_Knots(t *testing.T) {
	assert.Equal(t, 10, DetailRough.Knots())
	assert.Equal(t, 20, DetailAverage.Knots())
	assert.Equal(t, 300, DetailFine.Knots())
	assert.Equal(t, 0, DetailAdaptive.Knots())
	assert.True(t, DetailAdaptive.Valid())
	assert.False(t, Detail("coarse").Valid())
}

func TestLinearize_ExactAtEveryKnot(t *testing.T) {
	curves := []Curve{
		{ReferenceCost: 1e6, ReferenceFlow: 10, Exponent: 0.6},
		{ReferenceCost: 2.5e5, ReferenceFlow: 3.3, Exponent: 0.75},
		{ReferenceCost: 42, ReferenceFlow: 1, Exponent: 1},
		{ReferenceCost: 7e4, ReferenceFlow: 120, Exponent: 1.2},
	}
	details := []Detail{DetailRough, DetailAverage, DetailFine, DetailAdaptive}

	for _, c := range curves {
		for _, d := range details {
			lin, err := Linearize(c, Policy{Detail: d, UpperFlow: 100})
			require.NoError(t, err)
			require.GreaterOrEqual(t, lin.Len(), 3)

			assert.Equal(t, 0.0, lin.X[0])
			assert.Equal(t, 0.0, lin.Y[0])
			assert.GreaterOrEqual(t, lin.X[lin.Len()-1], 100.0)
			for j := range lin.X {
				want := c.ReferenceCost * math.Pow(lin.X[j]/c.ReferenceFlow, c.Exponent)
				assert.Equal(t, want, lin.Y[j], "detail=%s knot=%d", d, j)
				if j > 0 {
					assert.Greater(t, lin.X[j], lin.X[j-1])
				}
			}
		}
	}
}

func TestLinearize_FixedKnotCounts(t *testing.T) {
	c := Curve{ReferenceCost: 1, ReferenceFlow: 1, Exponent: 0.6}
	for d, n := range map[Detail]int{DetailRough: 10, DetailAverage: 20, DetailFine: 300} {
		lin, err := Linearize(c, Policy{Detail: d, UpperFlow: 5})
		require.NoError(t, err)
		assert.Equal(t, n, lin.Len())
		assert.Equal(t, n-1, lin.Segments())
	}
}

func TestLinearize_AdaptiveMeetsTolerance(t *testing.T) {
	c := Curve{ReferenceCost: 1e6, ReferenceFlow: 10, Exponent: 0.6}
	lin, err := Linearize(c, Policy{Detail: DetailAdaptive, UpperFlow: 100, Tolerance: 0.01})
	require.NoError(t, err)
	assert.LessOrEqual(t, lin.MaxRelativeError(), 0.01)
	assert.Less(t, lin.Len(), MaxKnots)

	tighter, err := Linearize(c, Policy{Detail: DetailAdaptive, UpperFlow: 100, Tolerance: 0.001})
	require.NoError(t, err)
	assert.Greater(t, tighter.Len(), lin.Len())
}

func TestLinearize_Rejects(t *testing.T) {
	good := Curve{ReferenceCost: 1, ReferenceFlow: 1, Exponent: 0.6}

	_, err := Linearize(Curve{ReferenceCost: 1, ReferenceFlow: 0, Exponent: 0.6}, Policy{Detail: DetailRough, UpperFlow: 1})
	assert.Error(t, err)
	_, err = Linearize(Curve{ReferenceCost: 1, ReferenceFlow: 1, Exponent: 0}, Policy{Detail: DetailRough, UpperFlow: 1})
	assert.Error(t, err)
	_, err = Linearize(good, Policy{Detail: DetailRough, UpperFlow: 0})
	assert.Error(t, err)
	_, err = Linearize(good, Policy{Detail: "coarse", UpperFlow: 1})
	assert.Error(t, err)
}

func TestInterpolate(t *testing.T) {
	c := Curve{ReferenceCost: 100, ReferenceFlow: 10, Exponent: 1}
	lin, err := Linearize(c, Policy{Detail: DetailRough, UpperFlow: 10})
	require.NoError(t, err)

	assert.InDelta(t, 50.0, lin.Interpolate(5), 1e-9)
	assert.Equal(t, 0.0, lin.Interpolate(-1))
	// linear curves are reproduced exactly, including extrapolation
	assert.InDelta(t, 200.0, lin.Interpolate(20), 1e-9)
	assert.InDelta(t, 0.0, lin.MaxRelativeError(), 1e-12)
}
