package prometheus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/ProcSynth/internal/domain/milp"
)

type stubSolver struct {
	res *milp.Result
	err error
}

func (s stubSolver) Name() string { return "stub" }

func (s stubSolver) Solve(context.Context, *milp.Model, milp.Options) (*milp.Result, error) {
	return s.res, s.err
}

func TestAppMetrics_ObserveCompile(t *testing.T) {
	c := newTestCollector(t)
	m := NewAppMetrics(c)
	m.ObserveCompile("reactor", 20*time.Millisecond, milp.Stats{Variables: 40, Binaries: 3, Constraints: 55})

	out := scrapeMetrics(t, c)
	assert.Contains(t, out, `test_unit_compile_duration_seconds_count{model="reactor"} 1`)
	assert.Contains(t, out, `test_unit_model_variables_sum{model="reactor"} 40`)
	assert.Contains(t, out, `test_unit_model_binaries_sum{model="reactor"} 3`)
}

func TestInstrument_CountsOutcomes(t *testing.T) {
	c := newTestCollector(t)
	m := NewAppMetrics(c)

	ok := Instrument(stubSolver{res: &milp.Result{Status: milp.StatusOptimal, Nodes: 7, Elapsed: time.Second}}, m)
	_, err := ok.Solve(context.Background(), milp.NewModel("x"), milp.Options{})
	require.NoError(t, err)
	assert.Equal(t, "stub", ok.Name())

	bad := Instrument(stubSolver{err: assert.AnError}, m)
	_, err = bad.Solve(context.Background(), milp.NewModel("x"), milp.Options{})
	assert.Error(t, err)

	out := scrapeMetrics(t, c)
	assert.Contains(t, out, `test_unit_solves_total{solver="stub",status="optimal"} 1`)
	assert.Contains(t, out, `test_unit_solves_total{solver="stub",status="error"} 1`)
	assert.Contains(t, out, `test_unit_solve_nodes_sum{solver="stub"} 7`)
}

func TestInstrument_NilMetricsIsPassThrough(t *testing.T) {
	s := stubSolver{}
	assert.Equal(t, milp.Solver(s), Instrument(s, nil))
}

func TestAppMetrics_RunsScenariosAndCache(t *testing.T) {
	c := newTestCollector(t)
	m := NewAppMetrics(c)

	m.RunStarted("2_stage_recourse")
	m.ObserveScenario("wait_and_see", true)
	m.ObserveScenario("wait_and_see", false)
	m.RecordCacheAccess("redis", true)
	m.RecordCacheAccess("redis", false)
	m.RecordError("worker", "SLV_001")
	m.RunFinished("2_stage_recourse", "succeeded")

	out := scrapeMetrics(t, c)
	assert.Contains(t, out, `test_unit_active_runs{mode="2_stage_recourse"} 0`)
	assert.Contains(t, out, `test_unit_runs_total{mode="2_stage_recourse",status="succeeded"} 1`)
	assert.Contains(t, out, `test_unit_scenario_outcomes_total{outcome="infeasible",stage="wait_and_see"} 1`)
	assert.Contains(t, out, `test_unit_cache_hits_total{cache="redis"} 1`)
	assert.Contains(t, out, `test_unit_cache_misses_total{cache="redis"} 1`)
	assert.Contains(t, out, `test_unit_errors_total{code="SLV_001",component="worker"} 1`)
}
