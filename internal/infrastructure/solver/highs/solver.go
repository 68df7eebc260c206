// Package highs drives the HiGHS command-line solver. The model is written in
// CPLEX LP format to a scratch directory, solved out of process, and the
// solution file is read back by column name.
package highs

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"github.com/turtacn/ProcSynth/internal/domain/milp"
	"github.com/turtacn/ProcSynth/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ProcSynth/pkg/errors"
)

// Name identifies this solver in configuration and logs.
const Name = "highs"

// Runner executes the solver binary. The default runs a subprocess; tests
// substitute a fake that writes the solution file.
type Runner interface {
	Run(ctx context.Context, bin string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, bin string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, bin, args...).CombinedOutput()
}

// Config locates the binary and its scratch space.
type Config struct {
	Binary  string `mapstructure:"binary"`
	WorkDir string `mapstructure:"work_dir"`
	Threads int    `mapstructure:"threads"`
}

// Solver implements milp.Solver on top of the HiGHS CLI.
type Solver struct {
	cfg    Config
	runner Runner
	logger logging.Logger
}

// Option customizes a Solver.
type Option func(*Solver)

// WithRunner replaces the subprocess runner.
func WithRunner(r Runner) Option {
	return func(s *Solver) { s.runner = r }
}

// New creates the adapter. An empty Binary means "highs" on PATH.
func New(cfg Config, logger logging.Logger, opts ...Option) *Solver {
	if cfg.Binary == "" {
		cfg.Binary = "highs"
	}
	s := &Solver{cfg: cfg, runner: execRunner{}, logger: logging.OrNop(logger).Named("highs")}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Name implements milp.Solver.
func (s *Solver) Name() string { return Name }

// Available reports whether the binary can be found.
func (s *Solver) Available() bool {
	if _, ok := s.runner.(execRunner); !ok {
		return true
	}
	_, err := exec.LookPath(s.cfg.Binary)
	return err == nil
}

// Solve implements milp.Solver.
func (s *Solver) Solve(ctx context.Context, m *milp.Model, opts milp.Options) (*milp.Result, error) {
	if m == nil {
		return nil, errors.New(errors.ErrCodeSolverFailure, "nil model")
	}
	opts = opts.WithDefaults()
	dir, err := os.MkdirTemp(s.cfg.WorkDir, "highs-*")
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSolverFailure, "create scratch directory")
	}
	defer os.RemoveAll(dir)

	modelPath := filepath.Join(dir, "model.lp")
	solPath := filepath.Join(dir, "model.sol")
	optPath := filepath.Join(dir, "highs.opt")

	f, err := os.Create(modelPath)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSolverFailure, "create model file")
	}
	if err := milp.WriteLP(f, m); err != nil {
		f.Close()
		return nil, err
	}
	if err := f.Close(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSolverFailure, "write model file")
	}
	if err := os.WriteFile(optPath, []byte(s.optionsFile(opts)), 0o600); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSolverFailure, "write options file")
	}

	args := []string{
		"--model_file", modelPath,
		"--solution_file", solPath,
		"--options_file", optPath,
	}
	if opts.TimeLimit > 0 {
		args = append(args, "--time_limit", strconv.FormatFloat(opts.TimeLimit.Seconds(), 'f', 3, 64))
	}

	start := time.Now()
	out, runErr := s.runner.Run(ctx, s.cfg.Binary, args...)
	elapsed := time.Since(start)
	if ctx.Err() != nil {
		return &milp.Result{Status: milp.StatusTimeLimit, Elapsed: elapsed, Gap: inf}, nil
	}
	if runErr != nil {
		if errors.Is(runErr, exec.ErrNotFound) {
			return nil, errors.Wrapf(runErr, errors.ErrCodeSolverUnavailable, "highs binary %q not found", s.cfg.Binary)
		}
		s.logger.Warn("highs exited with error", logging.Err(runErr), logging.String("output", tail(out, 512)))
		return nil, errors.Wrap(runErr, errors.ErrCodeSolverFailure, "highs run failed")
	}

	sol, err := os.Open(solPath)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSolverFailure, "solution file missing")
	}
	defer sol.Close()
	parsed, err := ParseSolution(sol)
	if err != nil {
		return nil, err
	}
	res, err := parsed.Result(m)
	if err != nil {
		return nil, err
	}
	res.Elapsed = elapsed
	s.logger.Debug("solve finished",
		logging.String("model", m.Name),
		logging.String("status", res.Status.String()),
		logging.Duration("elapsed", elapsed))
	return res, nil
}

func (s *Solver) optionsFile(opts milp.Options) string {
	body := fmt.Sprintf("mip_rel_gap = %g\nmip_feasibility_tolerance = %g\n", opts.RelativeGap, opts.IntegralityTol)
	if opts.MaxNodes > 0 {
		body += fmt.Sprintf("mip_max_nodes = %d\n", opts.MaxNodes)
	}
	if s.cfg.Threads > 0 {
		body += fmt.Sprintf("threads = %d\n", s.cfg.Threads)
	}
	return body
}

func tail(b []byte, n int) string {
	if len(b) > n {
		b = b[len(b)-n:]
	}
	return string(b)
}
