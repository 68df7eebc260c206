// Package prometheus exposes ProcSynth metrics: model compilation, solver
// outcomes, scenario batches, cache efficiency and run lifecycle.
package prometheus

import (
	"context"
	"time"

	"github.com/turtacn/ProcSynth/internal/domain/milp"
)

// Buckets
var (
	CompileDurationBuckets = []float64{.001, .005, .01, .05, .1, .5, 1, 5, 10}
	SolveDurationBuckets   = []float64{.01, .05, .1, .5, 1, 5, 10, 30, 60, 300, 1800}
	ModelSizeBuckets       = []float64{10, 100, 1000, 1e4, 1e5, 1e6}
	NodeBuckets            = []float64{1, 10, 100, 1000, 1e4, 1e5}
)

// AppMetrics holds every metric ProcSynth records.
type AppMetrics struct {
	CompileDuration HistogramVec
	ModelVariables  HistogramVec
	ModelBinaries   HistogramVec
	ModelRows       HistogramVec

	SolvesTotal   CounterVec
	SolveDuration HistogramVec
	SolveNodes    HistogramVec

	ScenarioOutcomes CounterVec
	ActiveRuns       GaugeVec
	RunsTotal        CounterVec

	CacheHits   CounterVec
	CacheMisses CounterVec

	MessagesProcessed CounterVec
	ErrorsTotal       CounterVec
}

// NewAppMetrics registers the metrics on collector.
func NewAppMetrics(c MetricsCollector) *AppMetrics {
	return &AppMetrics{
		CompileDuration: c.RegisterHistogram("compile_duration_seconds", "Model compilation time", CompileDurationBuckets, "model"),
		ModelVariables:  c.RegisterHistogram("model_variables", "Variables per compiled model", ModelSizeBuckets, "model"),
		ModelBinaries:   c.RegisterHistogram("model_binaries", "Binary variables per compiled model", ModelSizeBuckets, "model"),
		ModelRows:       c.RegisterHistogram("model_constraints", "Constraints per compiled model", ModelSizeBuckets, "model"),

		SolvesTotal:   c.RegisterCounter("solves_total", "Solver calls by outcome", "solver", "status"),
		SolveDuration: c.RegisterHistogram("solve_duration_seconds", "Solver wall time", SolveDurationBuckets, "solver"),
		SolveNodes:    c.RegisterHistogram("solve_nodes", "Branch-and-bound nodes per solve", NodeBuckets, "solver"),

		ScenarioOutcomes: c.RegisterCounter("scenario_outcomes_total", "Scenario solves by stage and feasibility", "stage", "outcome"),
		ActiveRuns:       c.RegisterGauge("active_runs", "Runs in progress", "mode"),
		RunsTotal:        c.RegisterCounter("runs_total", "Finished runs", "mode", "status"),

		CacheHits:   c.RegisterCounter("cache_hits_total", "Result cache hits", "cache"),
		CacheMisses: c.RegisterCounter("cache_misses_total", "Result cache misses", "cache"),

		MessagesProcessed: c.RegisterCounter("messages_processed_total", "Queue messages handled", "topic", "status"),
		ErrorsTotal:       c.RegisterCounter("errors_total", "Errors by component and code", "component", "code"),
	}
}

// ObserveCompile implements compiler.Observer.
func (m *AppMetrics) ObserveCompile(model string, d time.Duration, st milp.Stats) {
	m.CompileDuration.WithLabelValues(model).Observe(d.Seconds())
	m.ModelVariables.WithLabelValues(model).Observe(float64(st.Variables))
	m.ModelBinaries.WithLabelValues(model).Observe(float64(st.Binaries))
	m.ModelRows.WithLabelValues(model).Observe(float64(st.Constraints))
}

// ObserveSolve records one solver call.
func (m *AppMetrics) ObserveSolve(solver string, res *milp.Result, err error) {
	status := "error"
	if err == nil && res != nil {
		status = res.Status.String()
		m.SolveDuration.WithLabelValues(solver).Observe(res.Elapsed.Seconds())
		m.SolveNodes.WithLabelValues(solver).Observe(float64(res.Nodes))
	}
	m.SolvesTotal.WithLabelValues(solver, status).Inc()
}

// ObserveScenario records the outcome of one scenario solve.
func (m *AppMetrics) ObserveScenario(stage string, feasible bool) {
	outcome := "feasible"
	if !feasible {
		outcome = "infeasible"
	}
	m.ScenarioOutcomes.WithLabelValues(stage, outcome).Inc()
}

// RecordCacheAccess counts a hit or a miss.
func (m *AppMetrics) RecordCacheAccess(cache string, hit bool) {
	if hit {
		m.CacheHits.WithLabelValues(cache).Inc()
		return
	}
	m.CacheMisses.WithLabelValues(cache).Inc()
}

// RunStarted and RunFinished bracket a run.
func (m *AppMetrics) RunStarted(mode string) { m.ActiveRuns.WithLabelValues(mode).Inc() }

func (m *AppMetrics) RunFinished(mode, status string) {
	m.ActiveRuns.WithLabelValues(mode).Dec()
	m.RunsTotal.WithLabelValues(mode, status).Inc()
}

// RecordError counts an error.
func (m *AppMetrics) RecordError(component, code string) {
	m.ErrorsTotal.WithLabelValues(component, code).Inc()
}

// InstrumentedSolver decorates a milp.Solver with solve metrics.
type InstrumentedSolver struct {
	milp.Solver
	metrics *AppMetrics
}

// Instrument wraps s. A nil metrics returns s unchanged.
func Instrument(s milp.Solver, m *AppMetrics) milp.Solver {
	if m == nil {
		return s
	}
	return &InstrumentedSolver{Solver: s, metrics: m}
}

// Solve implements milp.Solver.
func (s *InstrumentedSolver) Solve(ctx context.Context, m *milp.Model, opts milp.Options) (*milp.Result, error) {
	res, err := s.Solver.Solve(ctx, m, opts)
	s.metrics.ObserveSolve(s.Solver.Name(), res, err)
	return res, err
}
