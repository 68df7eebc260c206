package milp

import (
	"context"
	"math"
	"time"
)

// Status is the outcome of a solve. It is a value, not an error: callers
// branch on it without unwinding.
type Status int

const (
	StatusUnknown Status = iota
	StatusOptimal
	StatusInfeasible
	// StatusTimeLimit covers every exhausted budget: wall clock, node count or
	// context cancellation. An incumbent may still be present.
	StatusTimeLimit
	StatusUnbounded
)

func (s Status) String() string {
	switch s {
	case StatusOptimal:
		return "optimal"
	case StatusInfeasible:
		return "infeasible"
	case StatusTimeLimit:
		return "timeout"
	case StatusUnbounded:
		return "unbounded"
	default:
		return "unknown"
	}
}

// ParseStatus is the inverse of Status.String.
func ParseStatus(s string) Status {
	switch s {
	case "optimal":
		return StatusOptimal
	case "infeasible":
		return StatusInfeasible
	case "timeout":
		return StatusTimeLimit
	case "unbounded":
		return StatusUnbounded
	default:
		return StatusUnknown
	}
}

// Options is the caller-supplied budget of one solve.
type Options struct {
	TimeLimit   time.Duration
	MaxNodes    int
	RelativeGap float64
	// IntegralityTol decides when a relaxed integer value counts as integral.
	IntegralityTol float64
}

// WithDefaults fills zero fields.
func (o Options) WithDefaults() Options {
	if o.RelativeGap <= 0 {
		o.RelativeGap = 1e-6
	}
	if o.IntegralityTol <= 0 {
		o.IntegralityTol = 1e-6
	}
	return o
}

// Result is what a solver returns. Values is indexed by Var and is only
// meaningful when HasSolution is true.
type Result struct {
	Status      Status
	HasSolution bool
	Objective   float64
	Bound       float64
	Gap         float64
	Values      []float64
	Nodes       int
	Elapsed     time.Duration
}

// Value returns the primal value of v.
func (r *Result) Value(v Var) float64 {
	if r == nil || int(v) >= len(r.Values) {
		return 0
	}
	return r.Values[v]
}

// RelativeGap is |objective - bound| / max(1, |objective|).
func RelativeGap(objective, bound float64) float64 {
	if math.IsInf(bound, 0) || math.IsNaN(bound) {
		return math.Inf(1)
	}
	return math.Abs(objective-bound) / math.Max(1, math.Abs(objective))
}

// Solver solves a model. Implementations must honour ctx cancellation and
// report it as StatusTimeLimit, never as StatusInfeasible.
type Solver interface {
	Name() string
	Solve(ctx context.Context, m *Model, opts Options) (*Result, error)
}
