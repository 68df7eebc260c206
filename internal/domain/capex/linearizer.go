// Package capex turns power-law equipment cost curves into piecewise-linear
// knot tables. The compiler encodes a unit's capital cost as a convex
// combination of two consecutive knots, so the curve is exact at every knot
// and interpolated in between.
package capex

import (
	"math"

	"github.com/turtacn/ProcSynth/pkg/errors"
)

// Detail selects how many knots a linearization uses.
type Detail string

const (
	DetailRough    Detail = "rough"
	DetailAverage  Detail = "average"
	DetailFine     Detail = "fine"
	DetailAdaptive Detail = "adaptive"
)

// Knot counts per detail level.
const (
	RoughKnots   = 10
	AverageKnots = 20
	FineKnots    = 300
	// MaxKnots caps the adaptive scheme.
	MaxKnots = FineKnots
)

// Headroom stretches the last knot beyond the expected operating range.
const Headroom = 1.1

// DefaultTolerance is the adaptive scheme's chord error bound, relative to
// the cost at the last knot.
const DefaultTolerance = 0.005

// Knots returns the fixed knot count of d, or 0 for adaptive and unknown
// levels.
func (d Detail) Knots() int {
	switch d {
	case DetailRough:
		return RoughKnots
	case DetailAverage:
		return AverageKnots
	case DetailFine:
		return FineKnots
	default:
		return 0
	}
}

// Valid reports whether d is a known level.
func (d Detail) Valid() bool {
	return d == DetailAdaptive || d.Knots() > 0
}

// Curve is reference_cost * (flow / reference_flow)^exponent.
type Curve struct {
	ReferenceCost float64
	ReferenceFlow float64
	Exponent      float64
}

// Cost evaluates the curve at flow x.
func (c Curve) Cost(x float64) float64 {
	return c.ReferenceCost * math.Pow(x/c.ReferenceFlow, c.Exponent)
}

// Policy controls knot placement.
type Policy struct {
	Detail Detail
	// UpperFlow is the largest flow the unit is expected to see.
	UpperFlow float64
	// Tolerance applies to the adaptive scheme only.
	Tolerance float64
}

// Linearization is the knot table of one unit. X[0] is always 0.
type Linearization struct {
	Curve Curve
	X     []float64
	Y     []float64
}

// Linearize builds the knot table for c under p.
func Linearize(c Curve, p Policy) (*Linearization, error) {
	if c.ReferenceFlow <= 0 {
		return nil, errors.InvalidParam("capex reference flow must be positive").WithDetailf("reference_flow=%g", c.ReferenceFlow)
	}
	if c.Exponent <= 0 || math.IsNaN(c.Exponent) {
		return nil, errors.InvalidParam("capex exponent must be positive").WithDetailf("exponent=%g", c.Exponent)
	}
	if p.UpperFlow <= 0 {
		return nil, errors.InvalidParam("capex upper flow must be positive").WithDetailf("upper_flow=%g", p.UpperFlow)
	}
	top := p.UpperFlow * Headroom

	if n := p.Detail.Knots(); n > 0 {
		return tabulate(c, uniform(top, n)), nil
	}
	if p.Detail != DetailAdaptive {
		return nil, errors.InvalidParam("unknown capex detail level").WithDetail(string(p.Detail))
	}

	tol := p.Tolerance
	if tol <= 0 {
		tol = DefaultTolerance
	}
	var lin *Linearization
	for n := 3; n <= MaxKnots; n++ {
		lin = tabulate(c, equalCost(top, n, c.Exponent))
		if lin.MaxRelativeError() <= tol {
			break
		}
	}
	return lin, nil
}

func uniform(top float64, n int) []float64 {
	xs := make([]float64, n)
	for j := 1; j < n; j++ {
		xs[j] = top * float64(j) / float64(n-1)
	}
	xs[n-1] = top
	return xs
}

// equalCost spaces knots so consecutive knots differ by the same cost.
func equalCost(top float64, n int, exp float64) []float64 {
	xs := make([]float64, n)
	for j := 1; j < n; j++ {
		xs[j] = top * math.Pow(float64(j)/float64(n-1), 1/exp)
	}
	xs[n-1] = top
	return xs
}

func tabulate(c Curve, xs []float64) *Linearization {
	ys := make([]float64, len(xs))
	for j, x := range xs {
		ys[j] = c.Cost(x)
	}
	return &Linearization{Curve: c, X: xs, Y: ys}
}

// Len is the number of knots.
func (l *Linearization) Len() int { return len(l.X) }

// Segments is the number of linear pieces.
func (l *Linearization) Segments() int { return len(l.X) - 1 }

// Interpolate evaluates the piecewise-linear approximation at x. Flows past
// the last knot are extrapolated along the last segment.
func (l *Linearization) Interpolate(x float64) float64 {
	n := len(l.X)
	if n == 0 {
		return 0
	}
	if x <= l.X[0] {
		return l.Y[0]
	}
	for j := 1; j < n; j++ {
		if x <= l.X[j] || j == n-1 {
			t := (x - l.X[j-1]) / (l.X[j] - l.X[j-1])
			return l.Y[j-1] + t*(l.Y[j]-l.Y[j-1])
		}
	}
	return l.Y[n-1]
}

// MaxRelativeError samples each segment and returns the largest gap between
// chord and curve, relative to the cost at the last knot.
func (l *Linearization) MaxRelativeError() float64 {
	n := len(l.X)
	if n < 2 || l.Y[n-1] == 0 {
		return 0
	}
	const samples = 8
	worst := 0.0
	for j := 1; j < n; j++ {
		for s := 1; s < samples; s++ {
			x := l.X[j-1] + (l.X[j]-l.X[j-1])*float64(s)/samples
			gap := math.Abs(l.Interpolate(x) - l.Curve.Cost(x))
			worst = math.Max(worst, gap/l.Y[n-1])
		}
	}
	return worst
}
