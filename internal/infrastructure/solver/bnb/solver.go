// Package bnb is the built-in MILP solver: depth-first branch-and-bound over
// LP relaxations solved with gonum's simplex. It needs no external binary and
// is sized for small and medium superstructures; larger models should go to
// the HiGHS adapter.
package bnb

import (
	"context"
	"math"
	"time"

	"github.com/turtacn/ProcSynth/internal/domain/milp"
	"github.com/turtacn/ProcSynth/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ProcSynth/pkg/errors"
)

// Name identifies this solver in configuration and logs.
const Name = "bnb"

const lpTolerance = 1e-9

// Solver implements milp.Solver.
type Solver struct {
	logger logging.Logger
}

// New creates a branch-and-bound solver.
func New(logger logging.Logger) *Solver {
	return &Solver{logger: logging.OrNop(logger).Named("bnb")}
}

// Name implements milp.Solver.
func (s *Solver) Name() string { return Name }

type node struct {
	lb, ub []float64
	// bound is the relaxation value of the parent, in minimization form.
	bound float64
	depth int
}

// Solve implements milp.Solver. The context and time limit are checked
// between nodes and between simplex pivots; the node limit between nodes. An
// exhausted budget yields StatusTimeLimit with the incumbent, if any.
func (s *Solver) Solve(ctx context.Context, m *milp.Model, opts milp.Options) (*milp.Result, error) {
	if m == nil {
		return nil, errors.New(errors.ErrCodeSolverFailure, "nil model")
	}
	if err := m.Err(); err != nil {
		return nil, err
	}
	opts = opts.WithDefaults()
	start := time.Now()
	var deadline time.Time
	if opts.TimeLimit > 0 {
		deadline = start.Add(opts.TimeLimit)
	}

	sense, obj := m.Objective()
	sign := 1.0
	if sense == milp.Maximize {
		sign = -1
	}

	vars := m.Variables()
	lb := make([]float64, len(vars))
	ub := make([]float64, len(vars))
	var ints []int
	for j, v := range vars {
		lb[j], ub[j] = v.Lower, v.Upper
		if v.Domain == milp.Continuous {
			continue
		}
		ints = append(ints, j)
		lb[j] = math.Ceil(lb[j] - opts.IntegralityTol)
		ub[j] = math.Floor(ub[j] + opts.IntegralityTol)
		if v.Domain == milp.Binary {
			lb[j], ub[j] = math.Max(lb[j], 0), math.Min(ub[j], 1)
		}
	}

	expired := func() bool {
		return ctx.Err() != nil || (!deadline.IsZero() && time.Now().After(deadline))
	}

	best := math.Inf(1)
	var incumbent []float64
	stack := []node{{lb: lb, ub: ub, bound: math.Inf(-1)}}
	nodes := 0
	stopped := false

	for len(stack) > 0 {
		if expired() || (opts.MaxNodes > 0 && nodes >= opts.MaxNodes) {
			stopped = true
			break
		}
		nd := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if dominated(nd.bound, best, opts.RelativeGap) {
			continue
		}
		nodes++

		rel, err := relax(m, obj, sign, nd.lb, nd.ub, lpTolerance, expired)
		if err == errInterrupted {
			stack = append(stack, nd)
			stopped = true
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrCodeSolverFailure, "node %d at depth %d", nodes, nd.depth)
		}
		switch rel.status {
		case relaxInfeasible:
			continue
		case relaxUnbounded:
			s.logger.Debug("relaxation unbounded", logging.Int("nodes", nodes))
			return &milp.Result{Status: milp.StatusUnbounded, Nodes: nodes, Elapsed: time.Since(start)}, nil
		}
		if dominated(rel.obj, best, opts.RelativeGap) {
			continue
		}

		j := mostFractional(rel.x, ints, opts.IntegralityTol)
		if j < 0 {
			best = rel.obj
			incumbent = rel.x
			for _, k := range ints {
				incumbent[k] = math.Round(incumbent[k])
			}
			s.logger.Debug("incumbent", logging.Float64("objective", sign*best), logging.Int("nodes", nodes))
			continue
		}

		f := math.Floor(rel.x[j])
		down := node{lb: clone(nd.lb), ub: clone(nd.ub), bound: rel.obj, depth: nd.depth + 1}
		down.ub[j] = f
		up := node{lb: clone(nd.lb), ub: clone(nd.ub), bound: rel.obj, depth: nd.depth + 1}
		up.lb[j] = f + 1
		// nearer side is popped first
		if rel.x[j]-f >= 0.5 {
			stack = append(stack, down, up)
		} else {
			stack = append(stack, up, down)
		}
	}

	res := &milp.Result{Nodes: nodes, Elapsed: time.Since(start), Gap: math.Inf(1)}
	if incumbent != nil {
		res.HasSolution = true
		res.Values = incumbent
		res.Objective = obj.Eval(incumbent)
	}
	switch {
	case stopped:
		res.Status = milp.StatusTimeLimit
		bound := best
		for _, nd := range stack {
			bound = math.Min(bound, nd.bound)
		}
		res.Bound = sign * bound
		if res.HasSolution {
			res.Gap = milp.RelativeGap(res.Objective, res.Bound)
		}
	case res.HasSolution:
		res.Status = milp.StatusOptimal
		res.Bound = res.Objective
		res.Gap = 0
	default:
		res.Status = milp.StatusInfeasible
	}

	s.logger.Debug("solve finished",
		logging.String("model", m.Name),
		logging.String("status", res.Status.String()),
		logging.Int("nodes", nodes),
		logging.Duration("elapsed", res.Elapsed))
	return res, nil
}

// dominated reports whether a node bounded below by bound cannot improve on
// the incumbent value best by more than the relative gap.
func dominated(bound, best, gap float64) bool {
	if math.IsInf(best, 1) {
		return false
	}
	tol := math.Max(1e-9, gap*math.Max(1, math.Abs(best)))
	return bound >= best-tol
}

// mostFractional returns the integer variable whose relaxed value is
// furthest from integral, or -1. Ties go to the lowest index.
func mostFractional(x []float64, ints []int, tol float64) int {
	pick, worst := -1, tol
	for _, j := range ints {
		frac := math.Abs(x[j] - math.Round(x[j]))
		if frac > worst {
			pick, worst = j, frac
		}
	}
	return pick
}

func clone(v []float64) []float64 { return append([]float64(nil), v...) }
