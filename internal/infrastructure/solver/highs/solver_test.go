package highs

import (
	"context"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/ProcSynth/internal/domain/milp"
	"github.com/turtacn/ProcSynth/internal/testutil"
	"github.com/turtacn/ProcSynth/pkg/errors"
)

const optimalSolution = `Model status
Optimal

# Primal solution values
Feasible
Objective 11
# Columns 3
x 3
y 1
Y(2) 0.9999999
# Rows 2
c1 4
c2 6

# Dual solution values
None
`

func toyModel() *milp.Model {
	m := milp.NewModel("toy")
	x := m.NonNegative("x")
	y := m.NonNegative("y")
	b := m.Binary("Y[2]")
	m.AddConstraint("c1", milp.Sum(1, x, y), milp.LE, 4)
	e := milp.Sum(1, x)
	e.Add(y, 3)
	m.AddConstraint("c2", e, milp.LE, 6)
	obj := milp.Sum(3, x)
	obj.Add(y, 2).Add(b, 0).AddConst(5)
	m.SetObjective(milp.Maximize, obj)
	return m
}

type fakeRunner struct {
	solution string
	err      error
	args     []string
	options  string
	model    string
}

func (f *fakeRunner) Run(_ context.Context, _ string, args ...string) ([]byte, error) {
	f.args = args
	for i := 0; i+1 < len(args); i++ {
		switch args[i] {
		case "--options_file":
			b, _ := os.ReadFile(args[i+1])
			f.options = string(b)
		case "--model_file":
			b, _ := os.ReadFile(args[i+1])
			f.model = string(b)
		case "--solution_file":
			if f.solution != "" {
				if err := os.WriteFile(args[i+1], []byte(f.solution), 0o600); err != nil {
					return nil, err
				}
			}
		}
	}
	return []byte("Running HiGHS"), f.err
}

func TestParseSolution(t *testing.T) {
	sol, err := ParseSolution(strings.NewReader(optimalSolution))
	require.NoError(t, err)
	assert.Equal(t, "Optimal", sol.ModelStatus)
	assert.True(t, sol.Feasible)
	assert.Equal(t, 11.0, sol.Objective)
	assert.Equal(t, map[string]float64{"x": 3, "y": 1, "Y(2)": 0.9999999}, sol.Columns)
	assert.Equal(t, milp.StatusOptimal, sol.Status())
}

func TestParseSolution_Rejections(t *testing.T) {
	tests := map[string]string{
		"no status":     "# Primal solution values\nNone\n",
		"bad objective": "Model status\nOptimal\n\n# Primal solution values\nFeasible\nObjective abc\n",
		"bad column":    "Model status\nOptimal\n\n# Primal solution values\nFeasible\nObjective 1\n# Columns 1\nx\n",
		"no columns":    "Model status\nOptimal\n\n# Primal solution values\nFeasible\nObjective 1\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseSolution(strings.NewReader(body))
			assert.True(t, errors.IsCode(err, errors.ErrCodeSolverFailure))
		})
	}
}

func TestSolution_Status(t *testing.T) {
	tests := []struct {
		in   string
		want milp.Status
	}{
		{"Optimal", milp.StatusOptimal},
		{"Infeasible", milp.StatusInfeasible},
		{"Unbounded", milp.StatusUnbounded},
		{"Primal infeasible or unbounded", milp.StatusUnbounded},
		{"Time limit reached", milp.StatusTimeLimit},
		{"Solution limit reached", milp.StatusTimeLimit},
		{"Load error", milp.StatusUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, (&Solution{ModelStatus: tt.in}).Status(), tt.in)
	}
}

func TestSolve_MapsColumnsByExportName(t *testing.T) {
	run := &fakeRunner{solution: optimalSolution}
	log := testutil.NewMockLogger()
	s := New(Config{WorkDir: t.TempDir(), Threads: 2}, log, WithRunner(run))
	m := toyModel()

	res, err := s.Solve(context.Background(), m, milp.Options{TimeLimit: 2 * time.Second, MaxNodes: 50})
	require.NoError(t, err)
	assert.Equal(t, milp.StatusOptimal, res.Status)
	assert.True(t, res.HasSolution)
	assert.Equal(t, []float64{3, 1, 1}, res.Values)
	assert.InDelta(t, 16, res.Objective, 1e-9, "objective constant is restored")
	assert.Equal(t, 0.0, res.Gap)

	assert.Contains(t, run.args, "--time_limit")
	assert.Contains(t, run.args, "2.000")
	assert.Contains(t, run.options, "mip_max_nodes = 50")
	assert.Contains(t, run.options, "threads = 2")
	assert.Contains(t, run.model, "Maximize")
	assert.True(t, log.HasMessage("debug", "solve finished"))
}

func TestSolve_Infeasible(t *testing.T) {
	run := &fakeRunner{solution: "Model status\nInfeasible\n\n# Primal solution values\nNone\n"}
	res, err := New(Config{WorkDir: t.TempDir()}, nil, WithRunner(run)).Solve(context.Background(), toyModel(), milp.Options{})
	require.NoError(t, err)
	assert.Equal(t, milp.StatusInfeasible, res.Status)
	assert.False(t, res.HasSolution)
}

func TestSolve_Failures(t *testing.T) {
	t.Run("missing binary", func(t *testing.T) {
		run := &fakeRunner{err: &exec.Error{Name: "highs", Err: exec.ErrNotFound}}
		_, err := New(Config{WorkDir: t.TempDir()}, nil, WithRunner(run)).Solve(context.Background(), toyModel(), milp.Options{})
		assert.True(t, errors.IsCode(err, errors.ErrCodeSolverUnavailable))
	})
	t.Run("non-zero exit", func(t *testing.T) {
		run := &fakeRunner{err: assert.AnError}
		_, err := New(Config{WorkDir: t.TempDir()}, nil, WithRunner(run)).Solve(context.Background(), toyModel(), milp.Options{})
		assert.True(t, errors.IsCode(err, errors.ErrCodeSolverFailure))
	})
	t.Run("no solution file", func(t *testing.T) {
		_, err := New(Config{WorkDir: t.TempDir()}, nil, WithRunner(&fakeRunner{})).Solve(context.Background(), toyModel(), milp.Options{})
		assert.True(t, errors.IsCode(err, errors.ErrCodeSolverFailure))
	})
	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		res, err := New(Config{WorkDir: t.TempDir()}, nil, WithRunner(&fakeRunner{})).Solve(ctx, toyModel(), milp.Options{})
		require.NoError(t, err)
		assert.Equal(t, milp.StatusTimeLimit, res.Status)
	})
}

func TestNew_Defaults(t *testing.T) {
	s := New(Config{}, nil)
	assert.Equal(t, "highs", s.cfg.Binary)
	assert.Equal(t, Name, s.Name())
	assert.True(t, New(Config{}, nil, WithRunner(&fakeRunner{})).Available())
}
