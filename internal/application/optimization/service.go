// Package optimization orchestrates a run end to end: it assembles the
// superstructure from a case, compiles and solves it in the requested mode,
// and records the run through the optional repository, artifact store, event
// publisher and metrics.
package optimization

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/ProcSynth/internal/domain/compiler"
	"github.com/turtacn/ProcSynth/internal/domain/milp"
	"github.com/turtacn/ProcSynth/internal/domain/run"
	"github.com/turtacn/ProcSynth/internal/domain/scenario"
	"github.com/turtacn/ProcSynth/internal/domain/superstructure"
	"github.com/turtacn/ProcSynth/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/ProcSynth/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ProcSynth/internal/infrastructure/storage/minio"
	"github.com/turtacn/ProcSynth/pkg/errors"
	"github.com/turtacn/ProcSynth/pkg/types/process"
)

// violationTolerance bounds the breaches tolerated when a solver's point is
// checked against the model.
const violationTolerance = 1e-5

// -----------------------------------------------------------------------
// Request / Response DTOs
// -----------------------------------------------------------------------

// Request describes one run. Zero fields fall back to the case.
type Request struct {
	// RunID adopts an identifier assigned upstream, e.g. by a queued request.
	RunID     uuid.UUID
	Case      *process.CaseRecord
	Mode      run.Mode
	Objective superstructure.Objective

	Sensitivity    []process.SensitivityRecord
	MultiObjective *process.MultiObjectiveRecord
	Uncertainty    *process.UncertaintyRecord

	Tags []string
	// Artifacts uploads the result document and, for single solves, the LP
	// export.
	Artifacts bool
}

// Solution is one solved model.
type Solution struct {
	Status     string             `json:"status"`
	Objective  *float64           `json:"objective,omitempty"`
	Gap        *float64           `json:"gap,omitempty"`
	Nodes      int                `json:"nodes"`
	Elapsed    time.Duration      `json:"elapsed"`
	Design     map[string]float64 `json:"design,omitempty"`
	Results    compiler.Results   `json:"results,omitempty"`
	Violations int                `json:"violations"`
}

// Feasible reports whether the solve produced a point.
func (s *Solution) Feasible() bool { return s != nil && s.Objective != nil }

// Response is the outcome of a run. Exactly one of Single, Sweep, Pareto and
// Stochastic is set, according to Mode.
type Response struct {
	RunID     uuid.UUID                `json:"run_id"`
	Mode      run.Mode                 `json:"mode"`
	Case      string                   `json:"case"`
	Objective superstructure.Objective `json:"objective"`
	Solver    string                   `json:"solver"`

	Single     *Solution         `json:"single,omitempty"`
	Sweep      []SweepPoint      `json:"sweep,omitempty"`
	Pareto     []ParetoPoint     `json:"pareto,omitempty"`
	Stochastic *StochasticResult `json:"stochastic,omitempty"`

	Summary   map[string]float64 `json:"summary"`
	Artifacts []string           `json:"artifacts,omitempty"`
	Elapsed   time.Duration      `json:"elapsed"`

	lp []byte
}

// -----------------------------------------------------------------------
// Collaborators
// -----------------------------------------------------------------------

// EventPublisher emits run lifecycle events. *kafka.Producer satisfies it.
type EventPublisher interface {
	PublishEvent(ctx context.Context, topic, key string, env *kafka.EventEnvelope) error
}

// Metrics records run and scenario figures. *prometheus.AppMetrics
// satisfies it.
type Metrics interface {
	RunStarted(mode string)
	RunFinished(mode, status string)
	ObserveScenario(stage string, feasible bool)
	RecordError(component, code string)
}

// ProgressReporter is advanced once per solve of a batch. *pb.ProgressBar
// satisfies it.
type ProgressReporter interface {
	Increment() int
	Finish()
}

// ProgressFunc opens a reporter for a batch of total solves.
type ProgressFunc func(label string, total int) ProgressReporter

// -----------------------------------------------------------------------
// Service
// -----------------------------------------------------------------------

// Service runs optimization cases.
type Service interface {
	// Execute performs a run in the requested mode.
	Execute(ctx context.Context, req *Request) (*Response, error)
	// Export compiles cs for obj and writes the model to w.
	Export(ctx context.Context, cs *process.CaseRecord, obj superstructure.Objective, format ExportFormat, w io.Writer) (milp.Stats, error)
}

// ServiceConfig holds the collaborators of the service. Catalog, Compiler and
// Solver are required; everything else is optional.
type ServiceConfig struct {
	Catalog  *superstructure.Catalog
	Compiler *compiler.Compiler
	Solver   milp.Solver
	Scenario scenario.Config

	Runs      run.Repository
	Artifacts minio.ArtifactStore
	Events    EventPublisher
	Metrics   Metrics
	Progress  ProgressFunc
	Logger    logging.Logger
}

type service struct {
	catalog   *superstructure.Catalog
	compiler  *compiler.Compiler
	solver    milp.Solver
	cfg       scenario.Config
	runs      run.Repository
	artifacts minio.ArtifactStore
	events    EventPublisher
	metrics   Metrics
	progress  ProgressFunc
	logger    logging.Logger
	now       func() time.Time
}

// NewService constructs a Service.
func NewService(cfg ServiceConfig) (Service, error) {
	if cfg.Catalog == nil {
		return nil, errors.New(errors.ErrCodeValidation, "optimization service requires a unit catalog")
	}
	if cfg.Compiler == nil {
		return nil, errors.New(errors.ErrCodeValidation, "optimization service requires a compiler")
	}
	if cfg.Solver == nil {
		return nil, errors.New(errors.ErrCodeValidation, "optimization service requires a solver")
	}
	if cfg.Scenario.Workers < 1 {
		cfg.Scenario.Workers = 1
	}
	cfg.Scenario.Options = cfg.Scenario.Options.WithDefaults()
	m := cfg.Metrics
	if m == nil {
		m = nopMetrics{}
	}
	return &service{
		catalog:   cfg.Catalog,
		compiler:  cfg.Compiler,
		solver:    cfg.Solver,
		cfg:       cfg.Scenario,
		runs:      cfg.Runs,
		artifacts: cfg.Artifacts,
		events:    cfg.Events,
		metrics:   m,
		progress:  cfg.Progress,
		logger:    logging.OrNop(cfg.Logger).Named("optimization"),
		now:       time.Now,
	}, nil
}

// RunMode maps a case mode onto a run mode. The two-stage recourse mode is
// the stochastic run.
func RunMode(m superstructure.Mode) run.Mode {
	switch m {
	case superstructure.ModeTwoStageRecourse:
		return run.ModeStochastic
	case "":
		return run.ModeSingle
	default:
		return run.Mode(m)
	}
}

// Execute implements Service.
func (s *service) Execute(ctx context.Context, req *Request) (*Response, error) {
	if req == nil || req.Case == nil {
		return nil, errors.InvalidParam("request carries no case")
	}
	mode := req.Mode
	if mode == "" {
		mode = RunMode(superstructure.Mode(strings.ToLower(req.Case.Mode)))
	}
	if _, err := run.ParseMode(string(mode)); err != nil {
		return nil, err
	}

	obj := req.Objective
	if obj == "" {
		obj = superstructure.Objective(strings.ToUpper(req.Case.Objective))
	}
	rn := run.New(mode, req.Case.Name, string(obj), s.solver.Name())
	if req.RunID != uuid.Nil {
		rn.ID = req.RunID
	}
	rn.Tags = append([]string(nil), req.Tags...)

	start := s.now()
	s.begin(ctx, rn)
	log := s.logger.With(logging.RunID(rn.ID.String()), logging.String("mode", string(mode)))

	resp, outcomes, err := s.dispatch(ctx, req, mode, obj)
	if resp != nil {
		resp.RunID = rn.ID
		resp.Elapsed = s.now().Sub(start)
	}
	if err != nil {
		log.Error("run failed", logging.Err(err))
		s.fail(ctx, rn, err)
		return resp, err
	}
	rn.Objective = string(resp.Objective)
	s.succeed(ctx, rn, resp, outcomes, req.Artifacts)
	log.Info("run finished",
		logging.String("case", resp.Case),
		logging.Duration("elapsed", resp.Elapsed))
	return resp, nil
}

func (s *service) dispatch(ctx context.Context, req *Request, mode run.Mode, obj superstructure.Objective) (*Response, []run.Outcome, error) {
	sup, err := s.build(req.Case)
	if err != nil {
		return nil, nil, err
	}
	if obj == "" {
		obj = sup.Objective
	}
	if !obj.Valid() {
		return nil, nil, errors.InvalidParam("unknown objective").WithDetail(string(obj))
	}
	resp := &Response{
		Mode:      mode,
		Case:      sup.Name,
		Objective: obj,
		Solver:    s.solver.Name(),
	}
	base := sup.View(nil)

	var outcomes []run.Outcome
	switch mode {
	case run.ModeSingle:
		err = s.single(ctx, base, obj, resp)
	case run.ModeSensitivity:
		outcomes, err = s.sensitivity(ctx, base, obj, sweepRecords(req), resp)
	case run.ModeCrossSensitivity:
		outcomes, err = s.crossSensitivity(ctx, base, obj, sweepRecords(req), resp)
	case run.ModeMultiObjective:
		mo := req.MultiObjective
		if mo == nil {
			mo = req.Case.MultiObjective
		}
		outcomes, err = s.pareto(ctx, base, obj, mo, resp)
	case run.ModeStochastic, run.ModeWaitAndSee:
		u := req.Uncertainty
		if u == nil {
			u = req.Case.Uncertainty
		}
		outcomes, err = s.stochastic(ctx, base, obj, u, mode == run.ModeWaitAndSee, resp)
	}
	return resp, outcomes, err
}

func sweepRecords(req *Request) []process.SensitivityRecord {
	if len(req.Sensitivity) > 0 {
		return req.Sensitivity
	}
	return req.Case.Sensitivity
}

// build assembles and prepares the superstructure of cs.
func (s *service) build(cs *process.CaseRecord) (*superstructure.Superstructure, error) {
	sup, err := s.catalog.Build(cs)
	if err != nil {
		return nil, err
	}
	if err := sup.Prepare(); err != nil {
		return nil, err
	}
	return sup, nil
}

// single solves the base view.
func (s *service) single(ctx context.Context, v superstructure.View, obj superstructure.Objective, resp *Response) error {
	c, err := s.compiler.Compile(v, obj)
	if err != nil {
		return err
	}
	sol, err := s.solve(ctx, c)
	if err != nil {
		return err
	}
	resp.Single = sol
	resp.lp = exportLP(c.Model)
	resp.Summary = map[string]float64{"nodes": float64(sol.Nodes)}
	for k, x := range sol.Results.Aggregates() {
		resp.Summary[k] = x
	}
	return nil
}

// solve runs the solver on c and reads the result back.
func (s *service) solve(ctx context.Context, c *compiler.Compiled) (*Solution, error) {
	res, err := s.solver.Solve(ctx, c.Model, s.cfg.Options)
	if err != nil {
		return nil, err
	}
	sol := &Solution{
		Status:  res.Status.String(),
		Nodes:   res.Nodes,
		Elapsed: res.Elapsed,
		Gap:     finite(res.Gap),
	}
	if !res.HasSolution {
		return sol, nil
	}
	sol.Results = compiler.Collect(c, res)
	obj := res.Value(c.ObjectiveVar)
	sol.Objective = &obj
	if len(c.FirstStage) > 0 {
		sol.Design = c.FirstStageValues(res)
	}
	if vs := c.Model.Violations(res.Values, violationTolerance); len(vs) > 0 {
		sol.Violations = len(vs)
		s.logger.Warn("solver point violates the model",
			logging.String("model", c.Model.Name),
			logging.Int("violations", len(vs)),
			logging.String("first", vs[0].Name),
			logging.Float64("amount", vs[0].Amount))
	}
	return sol, nil
}

func finite(x float64) *float64 {
	if math.IsInf(x, 0) || math.IsNaN(x) {
		return nil
	}
	return &x
}

// -----------------------------------------------------------------------
// Lifecycle bookkeeping
// -----------------------------------------------------------------------

func (s *service) begin(ctx context.Context, rn *run.Run) {
	rn.CreatedAt = s.now()
	_ = rn.Start(rn.CreatedAt)
	s.metrics.RunStarted(string(rn.Mode))
	if s.runs != nil {
		if err := s.runs.Create(ctx, rn); err != nil {
			s.warn("run.create", err)
		}
	}
	s.publish(ctx, kafka.TopicRunStarted, rn, nil)
}

func (s *service) succeed(ctx context.Context, rn *run.Run, resp *Response, outcomes []run.Outcome, upload bool) {
	if resp.Summary == nil {
		resp.Summary = map[string]float64{}
	}
	if upload {
		resp.Artifacts = s.upload(ctx, rn.ID, resp)
	}
	_ = rn.Succeed(s.now(), resp.Summary)
	if s.runs != nil {
		if len(outcomes) > 0 {
			for i := range outcomes {
				outcomes[i].RunID = rn.ID
			}
			if err := s.runs.SaveOutcomes(ctx, rn.ID, outcomes); err != nil {
				s.warn("run.outcomes", err)
			}
		}
		if err := s.runs.Update(ctx, rn); err != nil {
			s.warn("run.update", err)
		}
	}
	s.metrics.RunFinished(string(rn.Mode), string(rn.Status))
	s.publish(ctx, kafka.TopicRunCompleted, rn, resp.Artifacts)
}

func (s *service) fail(ctx context.Context, rn *run.Run, cause error) {
	_ = rn.Fail(s.now(), cause)
	s.metrics.RecordError("optimization", string(errors.GetCode(cause)))
	if s.runs != nil {
		if err := s.runs.Update(ctx, rn); err != nil {
			s.warn("run.update", err)
		}
	}
	s.metrics.RunFinished(string(rn.Mode), string(rn.Status))
	s.publish(ctx, kafka.TopicRunFailed, rn, nil)
}

func (s *service) publish(ctx context.Context, topic string, rn *run.Run, artifacts []string) {
	if s.events == nil {
		return
	}
	env, err := kafka.NewEventEnvelope(topic, "procsynth", kafka.RunStatusPayload{
		RunID:     rn.ID.String(),
		Mode:      string(rn.Mode),
		Status:    string(rn.Status),
		Summary:   rn.Summary,
		Artifacts: artifacts,
		Error:     rn.Error,
	})
	if err == nil {
		err = s.events.PublishEvent(ctx, topic, rn.ID.String(), env)
	}
	if err != nil {
		s.warn("events."+topic, err)
	}
}

// upload stores the result document and, for single solves, the LP export.
// Failures are logged; the run itself has already succeeded.
func (s *service) upload(ctx context.Context, id uuid.UUID, resp *Response) []string {
	if s.artifacts == nil {
		return nil
	}
	var names []string
	doc, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		s.warn("artifacts.encode", err)
		return nil
	}
	if _, err := s.artifacts.PutArtifact(ctx, id.String(), "result.json", "application/json", doc); err != nil {
		s.warn("artifacts.result", err)
	} else {
		names = append(names, "result.json")
	}
	if resp.Single != nil && resp.lp != nil {
		if _, err := s.artifacts.PutArtifact(ctx, id.String(), "model.lp", "text/plain", resp.lp); err != nil {
			s.warn("artifacts.model", err)
		} else {
			names = append(names, "model.lp")
		}
	}
	return names
}

func (s *service) warn(component string, err error) {
	s.metrics.RecordError(component, string(errors.GetCode(err)))
	s.logger.Warn("run bookkeeping failed", logging.String("component", component), logging.Err(err))
}

// -----------------------------------------------------------------------
// Export
// -----------------------------------------------------------------------

// ExportFormat selects a model file format.
type ExportFormat string

const (
	ExportLP  ExportFormat = "lp"
	ExportMPS ExportFormat = "mps"
)

// Export implements Service.
func (s *service) Export(ctx context.Context, cs *process.CaseRecord, obj superstructure.Objective, format ExportFormat, w io.Writer) (milp.Stats, error) {
	if err := ctx.Err(); err != nil {
		return milp.Stats{}, err
	}
	sup, err := s.build(cs)
	if err != nil {
		return milp.Stats{}, err
	}
	if obj == "" {
		obj = sup.Objective
	}
	c, err := s.compiler.Compile(sup.View(nil), obj)
	if err != nil {
		return milp.Stats{}, err
	}
	switch format {
	case ExportMPS:
		err = milp.WriteMPS(w, c.Model)
	case ExportLP, "":
		err = milp.WriteLP(w, c.Model)
	default:
		return milp.Stats{}, errors.InvalidParam("unknown export format").WithDetail(string(format))
	}
	if err != nil {
		return milp.Stats{}, errors.Wrap(err, errors.ErrCodeModelExport, "write model")
	}
	return c.Model.Stats(), nil
}

func exportLP(m *milp.Model) []byte {
	var buf bytes.Buffer
	if err := milp.WriteLP(&buf, m); err != nil {
		return nil
	}
	return buf.Bytes()
}

type nopMetrics struct{}

func (nopMetrics) RunStarted(string)            {}
func (nopMetrics) RunFinished(string, string)   {}
func (nopMetrics) ObserveScenario(string, bool) {}
func (nopMetrics) RecordError(string, string)   {}
