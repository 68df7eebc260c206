package scenario

import (
	"context"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/turtacn/ProcSynth/internal/domain/compiler"
	"github.com/turtacn/ProcSynth/internal/domain/milp"
	"github.com/turtacn/ProcSynth/internal/domain/superstructure"
	"github.com/turtacn/ProcSynth/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ProcSynth/pkg/errors"
)

// Stage names the solve a failure happened in.
type Stage string

const (
	StageWaitAndSee Stage = "wait_and_see"
	StageEEV        Stage = "eev"
)

// Failure records a scenario that produced no usable solution.
type Failure struct {
	ScenarioID string
	Stage      Stage
	Status     milp.Status
	Message    string
}

// Outcome is the solve of one scenario.
type Outcome struct {
	ScenarioID  string
	Probability float64
	Status      milp.Status
	Objective   float64
	Results     compiler.Results
	Elapsed     time.Duration
}

// Feasible reports whether the outcome carries a solution.
func (o Outcome) Feasible() bool { return o.Results != nil }

// Report is the full stochastic evaluation.
type Report struct {
	Objective superstructure.Objective

	WaitAndSee []Outcome
	WS         float64
	// EV is the optimum of the mean-value problem and Design its first
	// stage decisions.
	EV      float64
	Design  map[string]float64
	EEV     []Outcome
	EEVMean float64
	RP      float64
	// RPCommon is the recourse optimum over the scenarios in which the
	// mean-value design is feasible. It equals RP when the design is
	// feasible wherever a scenario has a solution, and VSS compares
	// against it so both sides cover the same scenarios.
	RPCommon float64
	// RecourseDesign and Recourse are the first stage and per-scenario
	// results of the extensive form.
	RecourseDesign map[string]float64
	Recourse       []compiler.Results
	VSS            float64
	EVPI           float64

	// FeasibleMass and InfeasibleMass split the probability at the
	// wait-and-see stage. EEVInfeasibleMass is the share of FeasibleMass in
	// which the mean-value design admits no solution.
	FeasibleMass      float64
	InfeasibleMass    float64
	EEVInfeasibleMass float64
	Infeasible        []Failure
}

// Progress is advanced once per finished scenario solve.
// *pb.ProgressBar satisfies it.
type Progress interface {
	Increment() int
}

// Config bounds the engine.
type Config struct {
	Workers int
	Options milp.Options
}

// Engine runs scenario batches against one solver.
type Engine struct {
	compiler *compiler.Compiler
	solver   milp.Solver
	cfg      Config
	logger   logging.Logger
	progress Progress
}

// NewEngine creates an engine. Workers below one run sequentially.
func NewEngine(c *compiler.Compiler, s milp.Solver, cfg Config, logger logging.Logger) *Engine {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Engine{compiler: c, solver: s, cfg: cfg, logger: logging.OrNop(logger).Named("scenario")}
}

// WithProgress returns a copy of e that reports to p.
func (e *Engine) WithProgress(p Progress) *Engine {
	c := *e
	c.progress = p
	return &c
}

// Prepare materializes the scenario patches of set over v.
func (e *Engine) Prepare(v superstructure.View, set *Set) error {
	return set.Materialize(v)
}

// WaitAndSee solves every scenario independently. Infeasible scenarios are
// recorded and excluded; the remaining probability mass is renormalized.
func (e *Engine) WaitAndSee(ctx context.Context, v superstructure.View, set *Set, obj superstructure.Objective) (*Report, error) {
	if err := set.Materialize(v); err != nil {
		return nil, err
	}
	rep := &Report{Objective: obj}
	outcomes, err := e.solveAll(ctx, set, func(sc Scenario) (*compiler.Compiled, error) {
		return e.compiler.Compile(v.With(sc.Patch), obj)
	})
	if err != nil {
		return nil, err
	}
	rep.WaitAndSee = outcomes
	mean, feasible, failures := expectation(outcomes, StageWaitAndSee)
	rep.Infeasible = append(rep.Infeasible, failures...)
	rep.FeasibleMass = feasible
	rep.InfeasibleMass = 1 - feasible
	if feasible <= 0 {
		return rep, errors.Newf(errors.ErrCodeAllScenariosFailed, "all %d scenarios failed", set.Len())
	}
	rep.WS = mean
	e.logger.Info("wait-and-see finished",
		logging.Int("scenarios", set.Len()),
		logging.Int("infeasible", len(failures)),
		logging.Float64("ws", rep.WS))
	return rep, nil
}

// Run performs the full two-stage evaluation: wait-and-see, the mean-value
// problem, its design re-solved per scenario, and the recourse problem.
func (e *Engine) Run(ctx context.Context, v superstructure.View, set *Set, obj superstructure.Objective) (*Report, error) {
	rep, err := e.WaitAndSee(ctx, v, set, obj)
	if err != nil {
		return rep, err
	}

	// mean-value problem
	evView := v.With(meanPatch(v, set))
	evModel, err := e.compiler.Compile(evView, obj)
	if err != nil {
		return rep, err
	}
	evRes, err := e.solver.Solve(ctx, evModel.Model, e.cfg.Options)
	if err != nil {
		return rep, err
	}
	if !evRes.HasSolution {
		return rep, errors.Newf(errors.ErrCodeInvalidScenario, "mean-value problem has no solution (%s)", evRes.Status)
	}
	rep.EV = evRes.Value(evModel.ObjectiveVar)
	rep.Design = evModel.FirstStageValues(evRes)

	// expected result of the mean-value design
	eev, err := e.solveAll(ctx, set, func(sc Scenario) (*compiler.Compiled, error) {
		if !feasibleIn(rep.WaitAndSee, sc.ID) {
			return nil, nil
		}
		c, err := e.compiler.Compile(v.With(sc.Patch), obj)
		if err != nil {
			return nil, err
		}
		return c, c.Freeze(rep.Design)
	})
	if err != nil {
		return rep, err
	}
	rep.EEV = eev
	eevMean, eevMass, failures := expectation(eev, StageEEV)
	rep.Infeasible = append(rep.Infeasible, failures...)
	if eevMass <= 0 {
		return rep, errors.New(errors.ErrCodeAllScenariosFailed, "mean-value design is infeasible in every scenario")
	}
	rep.EEVMean = eevMean

	rep.EEVInfeasibleMass = rep.FeasibleMass - eevMass
	if rep.EEVInfeasibleMass < 1e-12 {
		rep.EEVInfeasibleMass = 0
	}

	// recourse problem over the scenarios that have a solution
	kept := subset(set, func(id string) bool { return feasibleIn(rep.WaitAndSee, id) })
	ext, rpRes, err := e.recourse(ctx, v, kept, rep.FeasibleMass, obj)
	if err != nil {
		return rep, err
	}
	rep.RP = rpRes.Objective
	rep.RPCommon = rep.RP
	rep.RecourseDesign = ext.Scenarios[0].FirstStageValues(rpRes)
	for _, c := range ext.Scenarios {
		rep.Recourse = append(rep.Recourse, compiler.Collect(c, rpRes))
	}

	if rep.EEVInfeasibleMass > 0 {
		common := subset(set, func(id string) bool { return feasibleIn(rep.EEV, id) })
		_, res, err := e.recourse(ctx, v, common, eevMass, obj)
		if err != nil {
			return rep, err
		}
		rep.RPCommon = res.Objective
		e.logger.Warn("mean-value design infeasible in some scenarios",
			logging.Float64("mass", rep.EEVInfeasibleMass),
			logging.Float64("rp_common", rep.RPCommon))
	}

	if obj.Maximized() {
		rep.VSS = rep.RPCommon - rep.EEVMean
		rep.EVPI = rep.WS - rep.RP
	} else {
		rep.VSS = rep.EEVMean - rep.RPCommon
		rep.EVPI = rep.RP - rep.WS
	}
	e.logger.Info("stochastic evaluation finished",
		logging.Int("scenarios", len(kept)),
		logging.Float64("ws", rep.WS),
		logging.Float64("ev", rep.EV),
		logging.Float64("eev", rep.EEVMean),
		logging.Float64("rp", rep.RP),
		logging.Float64("vss", rep.VSS),
		logging.Float64("evpi", rep.EVPI))
	return rep, nil
}

// subset returns the scenarios whose id passes keep, in set order.
func subset(set *Set, keep func(id string) bool) []Scenario {
	var out []Scenario
	for _, sc := range set.Scenarios {
		if keep(sc.ID) {
			out = append(out, sc)
		}
	}
	return out
}

// recourse solves the extensive form over scenarios, their probabilities
// renormalized by mass.
func (e *Engine) recourse(ctx context.Context, v superstructure.View, scenarios []Scenario, mass float64, obj superstructure.Objective) (*compiler.Extensive, *milp.Result, error) {
	views := make([]superstructure.View, len(scenarios))
	probs := make([]float64, len(scenarios))
	for i, sc := range scenarios {
		views[i] = v.With(sc.Patch)
		probs[i] = sc.Probability / mass
	}
	ext, err := e.compiler.CompileExtensive(views, probs, obj)
	if err != nil {
		return nil, nil, err
	}
	res, err := e.solver.Solve(ctx, ext.Model, e.cfg.Options)
	if err != nil {
		return nil, nil, err
	}
	if !res.HasSolution {
		return nil, nil, errors.Newf(errors.ErrCodeAllScenariosFailed, "recourse problem has no solution (%s)", res.Status)
	}
	return ext, res, nil
}

// solveAll compiles and solves each scenario on the worker pool. build may
// return a nil model to skip a scenario. Outcomes keep scenario order.
func (e *Engine) solveAll(ctx context.Context, set *Set, build func(Scenario) (*compiler.Compiled, error)) ([]Outcome, error) {
	out := make([]Outcome, set.Len())
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Workers)
	for i, sc := range set.Scenarios {
		i, sc := i, sc
		out[i] = Outcome{ScenarioID: sc.ID, Probability: sc.Probability}
		g.Go(func() error {
			defer e.tick()
			c, err := build(sc)
			if err != nil {
				return errors.Wrapf(err, errors.CodeUnknown, "scenario %s", sc.ID)
			}
			if c == nil {
				out[i].Status = milp.StatusUnknown
				return nil
			}
			res, err := e.solver.Solve(gctx, c.Model, e.cfg.Options)
			if err != nil {
				return errors.Wrapf(err, errors.CodeUnknown, "scenario %s", sc.ID)
			}
			out[i].Status = res.Status
			out[i].Elapsed = res.Elapsed
			if res.HasSolution {
				if res.Status != milp.StatusOptimal {
					e.logger.Warn("scenario solved without optimality proof",
						logging.ScenarioID(sc.ID), logging.String("status", res.Status.String()))
				}
				out[i].Results = compiler.Collect(c, res)
				out[i].Objective = res.Value(c.ObjectiveVar)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (e *Engine) tick() {
	if e.progress != nil {
		e.progress.Increment()
	}
}

// expectation returns the renormalized mean objective over feasible
// outcomes, their probability mass and a failure per infeasible outcome.
func expectation(outcomes []Outcome, stage Stage) (mean, mass float64, failures []Failure) {
	sum := 0.0
	for _, o := range outcomes {
		if o.Feasible() {
			sum += o.Probability * o.Objective
			mass += o.Probability
			continue
		}
		if o.Status == milp.StatusUnknown && stage == StageEEV {
			// skipped: already recorded in the wait-and-see stage
			continue
		}
		failures = append(failures, Failure{
			ScenarioID: o.ScenarioID,
			Stage:      stage,
			Status:     o.Status,
			Message:    "no solution: " + o.Status.String(),
		})
	}
	if mass > 0 {
		mean = sum / mass
	}
	return mean, mass, failures
}

func feasibleIn(outcomes []Outcome, id string) bool {
	for _, o := range outcomes {
		if o.ScenarioID == id {
			return o.Feasible()
		}
	}
	return false
}

// meanPatch sets every patched parameter to its probability-weighted value.
// Scenarios that leave a parameter untouched contribute its base value.
func meanPatch(v superstructure.View, set *Set) superstructure.Overrides {
	keys := make(map[superstructure.ParamKey]bool)
	for _, sc := range set.Scenarios {
		for k := range sc.Patch {
			keys[k] = true
		}
	}
	out := make(superstructure.Overrides, len(keys))
	for k := range keys {
		base, err := v.Value(k)
		if err != nil {
			continue
		}
		mean := 0.0
		for _, sc := range set.Scenarios {
			x, ok := sc.Patch[k]
			if !ok {
				x = base
			}
			mean += sc.Probability * x
		}
		if !math.IsNaN(mean) {
			out[k] = mean
		}
	}
	return out
}
