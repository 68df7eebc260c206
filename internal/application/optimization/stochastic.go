package optimization

import (
	"context"

	"github.com/turtacn/ProcSynth/internal/domain/run"
	"github.com/turtacn/ProcSynth/internal/domain/scenario"
	"github.com/turtacn/ProcSynth/internal/domain/superstructure"
	"github.com/turtacn/ProcSynth/pkg/errors"
	"github.com/turtacn/ProcSynth/pkg/types/process"
)

// Summary keys of a stochastic run.
const (
	KeyWS             = "WS"
	KeyEV             = "EV"
	KeyEEV            = "EEV"
	KeyRP             = "RP"
	KeyVSS            = "VSS"
	KeyEVPI           = "EVPI"
	KeyScenarios      = "scenarios"
	KeyFeasibleMass   = "feasible_mass"
	KeyInfeasibleMass = "infeasible_mass"
	// KeyEEVInfeasibleMass is the probability of scenarios in which the
	// mean-value design admits no solution; KeyRPCommon the recourse
	// optimum VSS is measured against.
	KeyEEVInfeasibleMass = "eev_infeasible_mass"
	KeyRPCommon          = "RP_common"
)

// ScenarioResult is one scenario solve of a stochastic run.
type ScenarioResult struct {
	ID          string   `json:"id"`
	Stage       string   `json:"stage"`
	Probability float64  `json:"probability"`
	Status      string   `json:"status"`
	Objective   *float64 `json:"objective,omitempty"`
}

// Failure is a scenario that produced no usable solution.
type Failure struct {
	ScenarioID string `json:"scenario_id"`
	Stage      string `json:"stage"`
	Status     string `json:"status"`
	Message    string `json:"message"`
}

// StochasticResult is the evaluation of an uncertain case. Without
// WaitAndSeeOnly every figure is filled; otherwise only WS and the masses.
type StochasticResult struct {
	WaitAndSeeOnly bool               `json:"wait_and_see_only"`
	Figures        map[string]float64 `json:"figures"`
	// Design is the mean-value design, RecourseDesign the first stage of the
	// recourse problem.
	Design         map[string]float64 `json:"design,omitempty"`
	RecourseDesign map[string]float64 `json:"recourse_design,omitempty"`
	Scenarios      []ScenarioResult   `json:"scenarios"`
	Infeasible     []Failure          `json:"infeasible,omitempty"`
}

// stochastic runs the scenario engine. waitAndSee stops after the
// per-scenario solves.
func (s *service) stochastic(ctx context.Context, base superstructure.View, obj superstructure.Objective, u *process.UncertaintyRecord, waitAndSee bool, resp *Response) ([]run.Outcome, error) {
	if u == nil {
		return nil, errors.New(errors.ErrCodeInvalidUncertainty, "stochastic run needs an uncertainty definition")
	}
	set, err := scenario.FromRecord(u)
	if err != nil {
		return nil, err
	}

	label := string(run.ModeStochastic)
	total := 2 * set.Len()
	if waitAndSee {
		label, total = string(run.ModeWaitAndSee), set.Len()
	}
	bar := s.openProgress(label, total)
	defer bar.Finish()

	eng := scenario.NewEngine(s.compiler, s.solver, s.cfg, s.logger).WithProgress(bar)
	var rep *scenario.Report
	if waitAndSee {
		rep, err = eng.WaitAndSee(ctx, base, set, obj)
	} else {
		rep, err = eng.Run(ctx, base, set, obj)
	}
	if rep != nil {
		resp.Stochastic = s.stochasticResult(rep, set.Len(), waitAndSee)
		resp.Summary = resp.Stochastic.Figures
	}
	if err != nil {
		return nil, err
	}
	return outcomesOf(resp.Stochastic), nil
}

func (s *service) stochasticResult(rep *scenario.Report, n int, waitAndSee bool) *StochasticResult {
	out := &StochasticResult{
		WaitAndSeeOnly: waitAndSee,
		Figures: map[string]float64{
			KeyWS:             rep.WS,
			KeyScenarios:      float64(n),
			KeyFeasibleMass:   rep.FeasibleMass,
			KeyInfeasibleMass: rep.InfeasibleMass,
		},
		Design:         rep.Design,
		RecourseDesign: rep.RecourseDesign,
	}
	if !waitAndSee && rep.RecourseDesign != nil {
		out.Figures[KeyEV] = rep.EV
		out.Figures[KeyEEV] = rep.EEVMean
		out.Figures[KeyRP] = rep.RP
		out.Figures[KeyRPCommon] = rep.RPCommon
		out.Figures[KeyEEVInfeasibleMass] = rep.EEVInfeasibleMass
		out.Figures[KeyVSS] = rep.VSS
		out.Figures[KeyEVPI] = rep.EVPI
	}
	add := func(stage scenario.Stage, outcomes []scenario.Outcome) {
		for _, o := range outcomes {
			r := ScenarioResult{
				ID:          o.ScenarioID,
				Stage:       string(stage),
				Probability: o.Probability,
				Status:      o.Status.String(),
			}
			if o.Feasible() {
				x := o.Objective
				r.Objective = &x
			}
			s.metrics.ObserveScenario(string(stage), o.Feasible())
			out.Scenarios = append(out.Scenarios, r)
		}
	}
	add(scenario.StageWaitAndSee, rep.WaitAndSee)
	add(scenario.StageEEV, rep.EEV)
	for _, f := range rep.Infeasible {
		out.Infeasible = append(out.Infeasible, Failure{
			ScenarioID: f.ScenarioID,
			Stage:      string(f.Stage),
			Status:     f.Status.String(),
			Message:    f.Message,
		})
	}
	return out
}

func outcomesOf(r *StochasticResult) []run.Outcome {
	out := make([]run.Outcome, 0, len(r.Scenarios))
	failed := make(map[string]string, len(r.Infeasible))
	for _, f := range r.Infeasible {
		failed[f.Stage+"/"+f.ScenarioID] = f.Message
	}
	for _, sc := range r.Scenarios {
		out = append(out, run.Outcome{
			Label:       sc.ID,
			Stage:       sc.Stage,
			Probability: sc.Probability,
			Status:      sc.Status,
			Objective:   sc.Objective,
			Error:       failed[sc.Stage+"/"+sc.ID],
		})
	}
	return out
}
