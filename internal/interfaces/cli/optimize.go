package cli

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/turtacn/ProcSynth/internal/application/optimization"
	"github.com/turtacn/ProcSynth/internal/domain/run"
	"github.com/turtacn/ProcSynth/internal/domain/superstructure"
	"github.com/turtacn/ProcSynth/pkg/errors"
	"github.com/turtacn/ProcSynth/pkg/types/process"
)

// runFlags are shared by every command that executes a run.
type runFlags struct {
	objective string
	tags      []string
	artifacts bool
}

func (f *runFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.objective, "objective", "", "objective (NPC, NPE, TAC, EBIT, FWD); default from the case")
	cmd.Flags().StringSliceVar(&f.tags, "tag", nil, "tag recorded with the run (repeatable)")
	cmd.Flags().BoolVar(&f.artifacts, "artifacts", false, "upload the result document to object storage")
}

func (f *runFlags) request(mode run.Mode) *optimization.Request {
	return &optimization.Request{
		Mode:      mode,
		Objective: superstructure.Objective(strings.ToUpper(f.objective)),
		Tags:      f.tags,
		Artifacts: f.artifacts,
	}
}

// execute loads the case at path, runs req and prints the response.
func execute(cmd *cobra.Command, path string, req *optimization.Request) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	ctx, cancel := cliCtx.operation(cmd)
	defer cancel()

	cs, err := process.LoadCase(path)
	if err != nil {
		return err
	}
	rt, err := cliCtx.runtime(ctx, cmd, false)
	if err != nil {
		return err
	}
	defer rt.Close()

	req.Case = cs
	resp, err := rt.Service.Execute(ctx, req)
	if err != nil {
		return err
	}
	return PrintResult(cmd, responseView{resp})
}

// NewSolveCmd solves a case once.
func NewSolveCmd() *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "solve <case>",
		Short: "Solve a case once",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(cmd, args[0], f.request(run.ModeSingle))
		},
	}
	f.register(cmd)
	return cmd
}

// parseSweep reads "key=low:high:steps".
func parseSweep(s string) (process.SensitivityRecord, error) {
	bad := func() (process.SensitivityRecord, error) {
		return process.SensitivityRecord{}, errors.InvalidParam("sweep must look like key=low:high:steps").WithDetail(s)
	}
	eq := strings.LastIndex(s, "=")
	if eq <= 0 {
		return bad()
	}
	parts := strings.Split(s[eq+1:], ":")
	if len(parts) != 3 {
		return bad()
	}
	low, err1 := strconv.ParseFloat(parts[0], 64)
	high, err2 := strconv.ParseFloat(parts[1], 64)
	steps, err3 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil || err3 != nil || steps < 1 {
		return bad()
	}
	return process.SensitivityRecord{Key: s[:eq], Low: low, High: high, Steps: steps}, nil
}

func parseSweeps(specs []string) ([]process.SensitivityRecord, error) {
	out := make([]process.SensitivityRecord, 0, len(specs))
	for _, s := range specs {
		rec, err := parseSweep(s)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// NewSensitivityCmd sweeps one parameter.
func NewSensitivityCmd() *cobra.Command {
	var (
		f     runFlags
		param string
	)
	cmd := &cobra.Command{
		Use:   "sensitivity <case>",
		Short: "Sweep one parameter over a relative range",
		Long: "Sweep one parameter over a relative range and solve every point.\n" +
			"Without --param the first sensitivity record of the case is used.",
		Example: "  procsynth sensitivity case.yaml --param 'source_cost[1]=-0.2:0.2:5'",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := f.request(run.ModeSensitivity)
			if param != "" {
				rec, err := parseSweep(param)
				if err != nil {
					return err
				}
				req.Sensitivity = []process.SensitivityRecord{rec}
			}
			return execute(cmd, args[0], req)
		},
	}
	f.register(cmd)
	cmd.Flags().StringVar(&param, "param", "", "sweep as key=low:high:steps")
	return cmd
}

// NewCrossSensitivityCmd sweeps the grid of two parameters.
func NewCrossSensitivityCmd() *cobra.Command {
	var (
		f      runFlags
		params []string
	)
	cmd := &cobra.Command{
		Use:     "cross-sensitivity <case>",
		Short:   "Sweep the grid spanned by two parameters",
		Example: "  procsynth cross-sensitivity case.yaml --param 'source_cost[1]=-0.1:0.1:3' --param 'product_price[2]=-0.1:0.1:3'",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := f.request(run.ModeCrossSensitivity)
			if len(params) > 0 {
				recs, err := parseSweeps(params)
				if err != nil {
					return err
				}
				req.Sensitivity = recs
			}
			return execute(cmd, args[0], req)
		},
	}
	f.register(cmd)
	cmd.Flags().StringArrayVar(&params, "param", nil, "sweep as key=low:high:steps (twice)")
	return cmd
}

// NewParetoCmd traces the trade-off between two objectives.
func NewParetoCmd() *cobra.Command {
	var (
		f         runFlags
		secondary string
		points    int
	)
	cmd := &cobra.Command{
		Use:   "pareto <case>",
		Short: "Trace the Pareto front between two objectives",
		Long: "Optimize the primary objective (--objective, default from the case) while the\n" +
			"secondary objective is bounded at evenly spaced levels between its anchor values.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := f.request(run.ModeMultiObjective)
			if secondary != "" {
				req.MultiObjective = &process.MultiObjectiveRecord{
					Primary:   f.objective,
					Secondary: secondary,
					Points:    points,
				}
			}
			return execute(cmd, args[0], req)
		},
	}
	f.register(cmd)
	cmd.Flags().StringVar(&secondary, "secondary", "", "secondary objective; default from the case")
	cmd.Flags().IntVar(&points, "points", 0, "number of front points (default 5)")
	return cmd
}

// NewStochasticCmd evaluates the case over its scenarios.
func NewStochasticCmd() *cobra.Command {
	var (
		f          runFlags
		waitAndSee bool
	)
	cmd := &cobra.Command{
		Use:   "stochastic <case>",
		Short: "Evaluate a design under uncertainty",
		Long: "Solve the case per scenario (wait-and-see), then the mean-value and two-stage\n" +
			"recourse problems, and report WS, EV, EEV, RP, VSS and EVPI.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode := run.ModeStochastic
			if waitAndSee {
				mode = run.ModeWaitAndSee
			}
			return execute(cmd, args[0], f.request(mode))
		},
	}
	f.register(cmd)
	cmd.Flags().BoolVar(&waitAndSee, "wait-and-see", false, "only solve each scenario with perfect information")
	return cmd
}
