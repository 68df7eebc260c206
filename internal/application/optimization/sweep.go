package optimization

import (
	"context"
	"fmt"
	"math"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/turtacn/ProcSynth/internal/domain/compiler"
	"github.com/turtacn/ProcSynth/internal/domain/milp"
	"github.com/turtacn/ProcSynth/internal/domain/run"
	"github.com/turtacn/ProcSynth/internal/domain/superstructure"
	"github.com/turtacn/ProcSynth/pkg/errors"
	"github.com/turtacn/ProcSynth/pkg/types/process"
)

// defaultParetoPoints is used when a multi-objective record leaves Points
// unset.
const defaultParetoPoints = 5

// SweepPoint is one grid point of a (cross) sensitivity sweep.
type SweepPoint struct {
	Keys       []string           `json:"keys"`
	Deviations []float64          `json:"deviations"`
	Status     string             `json:"status"`
	Objective  *float64           `json:"objective,omitempty"`
	Aggregates compiler.Results   `json:"aggregates,omitempty"`
	Design     map[string]float64 `json:"design,omitempty"`
}

// Label renders the point as key=deviation pairs.
func (p SweepPoint) Label() string {
	parts := make([]string, len(p.Keys))
	for i, k := range p.Keys {
		parts[i] = fmt.Sprintf("%s=%+g", k, p.Deviations[i])
	}
	return strings.Join(parts, ",")
}

// ParetoPoint is one epsilon-constraint solve.
type ParetoPoint struct {
	Epsilon   float64            `json:"epsilon"`
	Status    string             `json:"status"`
	Primary   *float64           `json:"primary,omitempty"`
	Secondary *float64           `json:"secondary,omitempty"`
	Design    map[string]float64 `json:"design,omitempty"`
}

type sweepAxis struct {
	key    superstructure.ParamKey
	levels []float64
}

func axis(rec process.SensitivityRecord) (sweepAxis, error) {
	key, err := superstructure.ParseParamKey(rec.Key)
	if err != nil {
		return sweepAxis{}, err
	}
	if rec.High < rec.Low {
		return sweepAxis{}, errors.InvalidParam("sensitivity range is reversed").WithDetailf("%s: [%g, %g]", rec.Key, rec.Low, rec.High)
	}
	if rec.Low <= -1 {
		return sweepAxis{}, errors.InvalidParam("relative deviation must stay above -100%").WithDetailf("%s: %g", rec.Key, rec.Low)
	}
	return sweepAxis{key: key, levels: Levels(rec.Low, rec.High, rec.Steps)}, nil
}

// Levels spreads steps points evenly over [low, high]. One step (or fewer)
// yields low alone.
func Levels(low, high float64, steps int) []float64 {
	if steps <= 1 || high == low {
		return []float64{low}
	}
	out := make([]float64, steps)
	d := (high - low) / float64(steps-1)
	for i := range out {
		out[i] = low + float64(i)*d
	}
	out[steps-1] = high
	return out
}

// sensitivity sweeps the first record.
func (s *service) sensitivity(ctx context.Context, base superstructure.View, obj superstructure.Objective, recs []process.SensitivityRecord, resp *Response) ([]run.Outcome, error) {
	if len(recs) == 0 {
		return nil, errors.InvalidParam("sensitivity run needs a parameter to sweep")
	}
	a, err := axis(recs[0])
	if err != nil {
		return nil, err
	}
	return s.sweep(ctx, base, obj, []sweepAxis{a}, string(run.ModeSensitivity), resp)
}

// crossSensitivity sweeps the grid spanned by the first two records.
func (s *service) crossSensitivity(ctx context.Context, base superstructure.View, obj superstructure.Objective, recs []process.SensitivityRecord, resp *Response) ([]run.Outcome, error) {
	if len(recs) < 2 {
		return nil, errors.InvalidParam("cross sensitivity needs two parameters").WithDetailf("got %d", len(recs))
	}
	a, err := axis(recs[0])
	if err != nil {
		return nil, err
	}
	b, err := axis(recs[1])
	if err != nil {
		return nil, err
	}
	if a.key == b.key {
		return nil, errors.InvalidParam("cross sensitivity parameters must differ").WithDetail(a.key.String())
	}
	return s.sweep(ctx, base, obj, []sweepAxis{a, b}, string(run.ModeCrossSensitivity), resp)
}

// sweep solves every point of the grid spanned by axes on the worker pool.
// Perturbations apply in axis order, each on top of the previous one.
func (s *service) sweep(ctx context.Context, base superstructure.View, obj superstructure.Objective, axes []sweepAxis, stage string, resp *Response) ([]run.Outcome, error) {
	grid := [][]float64{{}}
	for _, a := range axes {
		var next [][]float64
		for _, prefix := range grid {
			for _, l := range a.levels {
				next = append(next, append(append([]float64(nil), prefix...), l))
			}
		}
		grid = next
	}
	keys := make([]string, len(axes))
	for i, a := range axes {
		keys[i] = a.key.String()
	}

	// views are built up front so perturbation errors abort before solving
	views := make([]superstructure.View, len(grid))
	for i, devs := range grid {
		v := base
		for j, a := range axes {
			patch, err := v.Perturb(a.key, devs[j])
			if err != nil {
				return nil, err
			}
			v = v.With(patch)
		}
		views[i] = v
	}

	bar := s.openProgress(stage, len(grid))
	defer bar.Finish()

	points := make([]SweepPoint, len(grid))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)
	for i := range grid {
		i := i
		g.Go(func() error {
			defer bar.Increment()
			c, err := s.compiler.Compile(views[i], obj)
			if err != nil {
				return err
			}
			sol, err := s.solve(gctx, c)
			if err != nil {
				return err
			}
			points[i] = SweepPoint{
				Keys:       keys,
				Deviations: grid[i],
				Status:     sol.Status,
				Objective:  sol.Objective,
				Design:     sol.Design,
			}
			if sol.Feasible() {
				points[i].Aggregates = sol.Results.Aggregates()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	resp.Sweep = points
	resp.Summary = sweepSummary(points)
	outcomes := make([]run.Outcome, len(points))
	for i, p := range points {
		outcomes[i] = run.Outcome{Label: p.Label(), Stage: stage, Status: p.Status, Objective: p.Objective}
	}
	return outcomes, nil
}

func sweepSummary(points []SweepPoint) map[string]float64 {
	sum := map[string]float64{"points": float64(len(points))}
	lo, hi, feasible := math.Inf(1), math.Inf(-1), 0
	for _, p := range points {
		if p.Objective == nil {
			continue
		}
		feasible++
		lo = math.Min(lo, *p.Objective)
		hi = math.Max(hi, *p.Objective)
	}
	sum["feasible"] = float64(feasible)
	if feasible > 0 {
		sum["objective_min"] = lo
		sum["objective_max"] = hi
	}
	return sum
}

// pareto traces the front between obj and the secondary objective of mo with
// the epsilon-constraint method: the two anchor solves bound the secondary
// objective, which is then constrained to evenly spaced levels between them
// while obj is optimized.
func (s *service) pareto(ctx context.Context, base superstructure.View, obj superstructure.Objective, mo *process.MultiObjectiveRecord, resp *Response) ([]run.Outcome, error) {
	if mo == nil {
		return nil, errors.InvalidParam("multi-objective run needs a secondary objective")
	}
	primary := obj
	if mo.Primary != "" {
		primary = superstructure.Objective(strings.ToUpper(mo.Primary))
	}
	secondary := superstructure.Objective(strings.ToUpper(mo.Secondary))
	if !primary.Valid() || !secondary.Valid() {
		return nil, errors.InvalidParam("unknown objective in multi-objective record").WithDetailf("%s/%s", mo.Primary, mo.Secondary)
	}
	if primary == secondary {
		return nil, errors.InvalidParam("multi-objective needs two distinct objectives").WithDetail(string(primary))
	}
	resp.Objective = primary
	n := mo.Points
	if n <= 0 {
		n = defaultParetoPoints
	}
	secAgg := compiler.AggregateFor(secondary)

	// anchors: the primary optimum and the secondary optimum
	anchor := func(o superstructure.Objective) (float64, error) {
		c, err := s.compiler.Compile(base, o)
		if err != nil {
			return 0, err
		}
		sol, err := s.solve(ctx, c)
		if err != nil {
			return 0, err
		}
		if !sol.Feasible() {
			return 0, errors.Newf(errors.ErrCodeSolverFailure, "anchor solve for %s has no solution (%s)", o, sol.Status)
		}
		return sol.Results[secAgg], nil
	}
	from, err := anchor(primary)
	if err != nil {
		return nil, err
	}
	to, err := anchor(secondary)
	if err != nil {
		return nil, err
	}

	rel := milp.LE
	if secondary.Maximized() {
		rel = milp.GE
	}
	eps := Levels(from, to, n)
	if from == to {
		eps = []float64{from}
	}

	bar := s.openProgress(string(run.ModeMultiObjective), len(eps))
	defer bar.Finish()

	points := make([]ParetoPoint, len(eps))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)
	for i, e := range eps {
		i, e := i, e
		g.Go(func() error {
			defer bar.Increment()
			c, err := s.compiler.Compile(base, primary)
			if err != nil {
				return err
			}
			// a relative slack keeps the anchor points feasible after rounding
			if err := c.Bound(secAgg, rel, e+slack(e, rel)); err != nil {
				return err
			}
			sol, err := s.solve(gctx, c)
			if err != nil {
				return err
			}
			p := ParetoPoint{Epsilon: e, Status: sol.Status, Primary: sol.Objective, Design: sol.Design}
			if sol.Feasible() {
				v := sol.Results[secAgg]
				p.Secondary = &v
			}
			points[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	resp.Pareto = points
	resp.Summary = map[string]float64{"points": float64(len(points))}
	outcomes := make([]run.Outcome, len(points))
	feasible := 0
	for i, p := range points {
		if p.Primary != nil {
			feasible++
		}
		outcomes[i] = run.Outcome{
			Label:     fmt.Sprintf("%s%s%g", secondary, rel, p.Epsilon),
			Stage:     string(run.ModeMultiObjective),
			Status:    p.Status,
			Objective: p.Primary,
		}
	}
	resp.Summary["feasible"] = float64(feasible)
	return outcomes, nil
}

func slack(e float64, rel milp.Relation) float64 {
	d := 1e-7 * math.Max(1, math.Abs(e))
	if rel == milp.GE {
		return -d
	}
	return d
}

// openProgress starts a reporter when one is configured.
func (s *service) openProgress(label string, total int) ProgressReporter {
	if s.progress == nil {
		return nopProgress{}
	}
	if p := s.progress(label, total); p != nil {
		return p
	}
	return nopProgress{}
}

type nopProgress struct{}

func (nopProgress) Increment() int { return 0 }
func (nopProgress) Finish()        {}
