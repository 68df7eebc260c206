// Package compiler turns a prepared superstructure, read through a parameter
// view, into a milp.Model: selection logic, mass balances, splits and
// distributor digits, the energy balances and heat cascade, capital and
// operating costs, environmental totals, logic constraints and the
// objective. Compilation is deterministic: the same view always yields the
// same variables and constraints in the same order.
package compiler

import (
	"fmt"
	"math"
	"time"

	"github.com/turtacn/ProcSynth/internal/domain/milp"
	"github.com/turtacn/ProcSynth/internal/domain/superstructure"
	"github.com/turtacn/ProcSynth/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ProcSynth/pkg/errors"
)

// Aggregate names exposed in every compiled model and in Results.
const (
	AggCapex       = "CAPEX"
	AggTCI         = "TCI"
	AggOpex        = "OPEX"
	AggProfit      = "PROFIT"
	AggRawMaterial = "RM_COST"
	AggUtility     = "UTILITY_COST"
	AggOM          = "OM_COST"
	AggWaste       = "WASTE_COST"
	AggHEN         = "HEN_COST"
	AggTAC         = "TAC"
	AggNPC         = "NPC"
	AggEBIT        = "EBIT"
	AggNPE         = "NPE"
	AggGWP         = "GWP_TOT"
	AggFWD         = "FWD_TOT"
)

// Observer receives compile timings. It is satisfied by the metrics
// collector; nil disables it.
type Observer interface {
	ObserveCompile(model string, d time.Duration, stats milp.Stats)
}

// Compiler emits models. It holds no per-model state and is safe for
// concurrent use.
type Compiler struct {
	logger   logging.Logger
	observer Observer
}

// New creates a compiler.
func New(logger logging.Logger, observer Observer) *Compiler {
	return &Compiler{logger: logging.OrNop(logger).Named("compiler"), observer: observer}
}

// Compiled is one emitted model together with the handles needed to read
// results back and to freeze the design for re-solves.
type Compiled struct {
	Model     *milp.Model
	Objective superstructure.Objective
	// ObjectiveVar holds the objective aggregate of this (sub)model.
	ObjectiveVar milp.Var
	// FirstStage lists the design binaries: unit selection, distributor
	// digits and the heat pump indicator.
	FirstStage []milp.Var

	prefix     string
	aggregates map[string]milp.Var
	extras     map[string]milp.Expr
}

// Prefix returns the namespace of second-stage symbols, empty for a
// stand-alone model.
func (c *Compiled) Prefix() string { return c.prefix }

// Aggregate returns the variable of an aggregate such as "TAC".
func (c *Compiled) Aggregate(name string) (milp.Var, bool) {
	v, ok := c.aggregates[name]
	return v, ok
}

// Compile emits the model of one parameter view.
func (c *Compiler) Compile(v superstructure.View, obj superstructure.Objective) (*Compiled, error) {
	start := time.Now()
	s := v.Superstructure()
	if err := c.check(v, obj); err != nil {
		return nil, err
	}
	m := milp.NewModel(s.Name)
	b := newBuilder(m, v, "", nil)
	b.build()
	b.logic()
	out := b.finish(obj)
	sense, expr := objectiveOf(out)
	m.SetObjective(sense, expr)
	if err := m.Err(); err != nil {
		return nil, err
	}
	c.report(m, start)
	return out, nil
}

// Extensive is the deterministic equivalent of a two-stage problem: one block
// of second-stage symbols per scenario, shared first-stage binaries and the
// probability-weighted objective.
type Extensive struct {
	Model      *milp.Model
	FirstStage []milp.Var
	Scenarios  []*Compiled
}

// CompileExtensive emits the extensive form over views weighted by probs.
func (c *Compiler) CompileExtensive(views []superstructure.View, probs []float64, obj superstructure.Objective) (*Extensive, error) {
	start := time.Now()
	if len(views) == 0 || len(views) != len(probs) {
		return nil, errors.NewCompilationError(errors.ErrCodeInconsistentSets, "extensive form needs one probability per scenario, got %d views and %d probabilities", len(views), len(probs))
	}
	for _, v := range views {
		if err := c.check(v, obj); err != nil {
			return nil, err
		}
	}
	m := milp.NewModel(views[0].Superstructure().Name + "-extensive")
	shared := make(map[string]milp.Var)
	ext := &Extensive{Model: m}
	total := milp.NewExpr(0)
	for i, v := range views {
		b := newBuilder(m, v, fmt.Sprintf("s%d.", i+1), shared)
		b.build()
		if i == 0 {
			b.logic()
		}
		sc := b.finish(obj)
		ext.Scenarios = append(ext.Scenarios, sc)
		total.Add(sc.ObjectiveVar, probs[i])
		if i == 0 {
			ext.FirstStage = sc.FirstStage
		}
	}
	sense := milp.Minimize
	if obj.Maximized() {
		sense = milp.Maximize
	}
	m.SetObjective(sense, total)
	if err := m.Err(); err != nil {
		return nil, err
	}
	c.report(m, start)
	return ext, nil
}

func (c *Compiler) check(v superstructure.View, obj superstructure.Objective) error {
	s := v.Superstructure()
	if s == nil {
		return errors.InvalidParam("view has no superstructure")
	}
	if !s.Prepared() {
		return errors.NewCompilationError(errors.ErrCodeUnpreparedTopology, "superstructure %q must be prepared before compilation", s.Name)
	}
	if !obj.Valid() {
		return errors.InvalidParam("unknown objective").WithDetail(string(obj))
	}
	if err := s.RequireMainProduct(obj); err != nil {
		return err
	}
	return s.Validate(v.Overrides())
}

func (c *Compiler) report(m *milp.Model, start time.Time) {
	st := m.Stats()
	d := time.Since(start)
	c.logger.Debug("model compiled",
		logging.String("model", m.Name),
		logging.Int("variables", st.Variables),
		logging.Int("binaries", st.Binaries),
		logging.Int("constraints", st.Constraints),
		logging.Duration("elapsed", d))
	if c.observer != nil {
		c.observer.ObserveCompile(m.Name, d, st)
	}
}

func objectiveOf(c *Compiled) (milp.Sense, milp.Expr) {
	sense := milp.Minimize
	if c.Objective.Maximized() {
		sense = milp.Maximize
	}
	return sense, milp.Sum(1, c.ObjectiveVar)
}

// FirstStageValues reads the design decisions of a solved model, rounded to
// the nearest integer.
func (c *Compiled) FirstStageValues(r *milp.Result) map[string]float64 {
	out := make(map[string]float64, len(c.FirstStage))
	for _, v := range c.FirstStage {
		out[c.Model.Variable(v).Name] = math.Round(r.Value(v))
	}
	return out
}

// Freeze pins the named design decisions. Every name must exist.
func (c *Compiled) Freeze(values map[string]float64) error {
	for _, name := range sortedNames(values) {
		if !c.Model.FixByName(name, values[name]) {
			return errors.NewCompilationError(errors.ErrCodeInconsistentSets, "design variable %q not present in model %q", name, c.Model.Name)
		}
	}
	return nil
}

// Bound adds agg rel rhs as a side constraint, used by the epsilon-constraint
// sweep.
func (c *Compiled) Bound(agg string, rel milp.Relation, rhs float64) error {
	v, ok := c.aggregates[agg]
	if !ok {
		return errors.NewCompilationError(errors.ErrCodeUnknownParameter, "unknown aggregate %q", agg)
	}
	c.Model.AddConstraint(c.prefix+"EPSILON["+agg+"]", milp.Sum(1, v), rel, rhs)
	return c.Model.Err()
}
