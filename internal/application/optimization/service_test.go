package optimization

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/turtacn/ProcSynth/internal/domain/compiler"
	"github.com/turtacn/ProcSynth/internal/domain/milp"
	"github.com/turtacn/ProcSynth/internal/domain/run"
	"github.com/turtacn/ProcSynth/internal/domain/scenario"
	"github.com/turtacn/ProcSynth/internal/domain/superstructure"
	"github.com/turtacn/ProcSynth/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/ProcSynth/internal/infrastructure/solver/bnb"
	"github.com/turtacn/ProcSynth/internal/infrastructure/storage/minio"
	"github.com/turtacn/ProcSynth/internal/testutil"
	"github.com/turtacn/ProcSynth/pkg/errors"
	"github.com/turtacn/ProcSynth/pkg/types/process"
)

// -----------------------------------------------------------------------
// Mocks
// -----------------------------------------------------------------------

type MockRunRepository struct{ mock.Mock }

func (m *MockRunRepository) Create(ctx context.Context, r *run.Run) error {
	return m.Called(ctx, r).Error(0)
}

func (m *MockRunRepository) Update(ctx context.Context, r *run.Run) error {
	return m.Called(ctx, r).Error(0)
}

func (m *MockRunRepository) Get(ctx context.Context, id uuid.UUID) (*run.Run, error) {
	args := m.Called(ctx, id)
	if r, ok := args.Get(0).(*run.Run); ok {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRunRepository) List(ctx context.Context, status *run.Status, limit, offset int) ([]*run.Run, int64, error) {
	args := m.Called(ctx, status, limit, offset)
	return args.Get(0).([]*run.Run), args.Get(1).(int64), args.Error(2)
}

func (m *MockRunRepository) SaveOutcomes(ctx context.Context, id uuid.UUID, outcomes []run.Outcome) error {
	return m.Called(ctx, id, outcomes).Error(0)
}

func (m *MockRunRepository) Outcomes(ctx context.Context, id uuid.UUID) ([]run.Outcome, error) {
	args := m.Called(ctx, id)
	return args.Get(0).([]run.Outcome), args.Error(1)
}

type MockArtifactStore struct{ mock.Mock }

func (m *MockArtifactStore) PutArtifact(ctx context.Context, runID, name, contentType string, data []byte) (*minio.Artifact, error) {
	args := m.Called(ctx, runID, name, contentType, data)
	if a, ok := args.Get(0).(*minio.Artifact); ok {
		return a, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockArtifactStore) GetArtifact(ctx context.Context, runID, name string) ([]byte, error) {
	args := m.Called(ctx, runID, name)
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockArtifactStore) ListArtifacts(ctx context.Context, runID string) ([]minio.Artifact, error) {
	args := m.Called(ctx, runID)
	return args.Get(0).([]minio.Artifact), args.Error(1)
}

func (m *MockArtifactStore) DeleteArtifacts(ctx context.Context, runID string) error {
	return m.Called(ctx, runID).Error(0)
}

func (m *MockArtifactStore) PutCase(ctx context.Context, name string, data []byte) error {
	return m.Called(ctx, name, data).Error(0)
}

func (m *MockArtifactStore) GetCase(ctx context.Context, name string) ([]byte, error) {
	args := m.Called(ctx, name)
	return args.Get(0).([]byte), args.Error(1)
}

type publishedEvent struct {
	topic   string
	key     string
	payload kafka.RunStatusPayload
}

type capturePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

func (p *capturePublisher) PublishEvent(_ context.Context, topic, key string, env *kafka.EventEnvelope) error {
	var payload kafka.RunStatusPayload
	if err := env.DecodePayload(&payload); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{topic: topic, key: key, payload: payload})
	return p.err
}

func (p *capturePublisher) topics() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.topic
	}
	return out
}

type recordingMetrics struct {
	mu        sync.Mutex
	started   map[string]int
	finished  map[string]int
	scenarios map[string]int
	errors    map[string]int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{
		started:   map[string]int{},
		finished:  map[string]int{},
		scenarios: map[string]int{},
		errors:    map[string]int{},
	}
}

func (m *recordingMetrics) RunStarted(mode string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started[mode]++
}

func (m *recordingMetrics) RunFinished(mode, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finished[mode+"/"+status]++
}

func (m *recordingMetrics) ObserveScenario(stage string, feasible bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if feasible {
		m.scenarios[stage]++
	}
}

func (m *recordingMetrics) RecordError(component, code string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[component+"/"+code]++
}

type countingProgress struct {
	mu       sync.Mutex
	totals   map[string]int
	ticks    int
	finished int
}

func (p *countingProgress) open(label string, total int) ProgressReporter {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.totals == nil {
		p.totals = map[string]int{}
	}
	p.totals[label] = total
	return p
}

func (p *countingProgress) Increment() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ticks++
	return p.ticks
}

func (p *countingProgress) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.finished++
}

// -----------------------------------------------------------------------
// Suite
// -----------------------------------------------------------------------

type ServiceTestSuite struct {
	suite.Suite
	repo      *MockRunRepository
	store     *MockArtifactStore
	events    *capturePublisher
	metrics   *recordingMetrics
	progress  *countingProgress
	logger    *testutil.MockLogger
	svc       Service
	ctx       context.Context
	runStatus []run.Status
}

func (s *ServiceTestSuite) SetupTest() {
	s.repo = new(MockRunRepository)
	s.store = new(MockArtifactStore)
	s.events = &capturePublisher{}
	s.metrics = newRecordingMetrics()
	s.progress = &countingProgress{}
	s.logger = testutil.NewMockLogger()
	s.ctx = context.Background()
	s.runStatus = nil

	svc, err := NewService(ServiceConfig{
		Catalog:   superstructure.NewCatalog(superstructure.CatalogOptions{}, nil),
		Compiler:  compiler.New(nil, nil),
		Solver:    bnb.New(nil),
		Scenario:  scenario.Config{Workers: 2},
		Runs:      s.repo,
		Artifacts: s.store,
		Events:    s.events,
		Metrics:   s.metrics,
		Progress:  s.progress.open,
		Logger:    s.logger,
	})
	s.Require().NoError(err)
	s.svc = svc
}

func (s *ServiceTestSuite) expectLifecycle(outcomes int) {
	s.repo.On("Create", mock.Anything, mock.AnythingOfType("*run.Run")).Return(nil).Once()
	s.repo.On("Update", mock.Anything, mock.AnythingOfType("*run.Run")).
		Run(func(args mock.Arguments) { s.runStatus = append(s.runStatus, args.Get(1).(*run.Run).Status) }).
		Return(nil).Once()
	if outcomes > 0 {
		s.repo.On("SaveOutcomes", mock.Anything, mock.Anything, mock.MatchedBy(func(o []run.Outcome) bool {
			return len(o) == outcomes
		})).Return(nil).Once()
	}
}

func (s *ServiceTestSuite) TestSingle_TwoUnitCase() {
	s.expectLifecycle(0)
	s.store.On("PutArtifact", mock.Anything, mock.Anything, "result.json", "application/json", mock.Anything).
		Return(&minio.Artifact{}, nil).Once()
	s.store.On("PutArtifact", mock.Anything, mock.Anything, "model.lp", "text/plain", mock.MatchedBy(func(b []byte) bool {
		return bytes.Contains(b, []byte("Minimize"))
	})).Return(&minio.Artifact{}, nil).Once()

	resp, err := s.svc.Execute(s.ctx, &Request{Case: testutil.TwoUnitCase(), Artifacts: true, Tags: []string{"smoke"}})
	s.Require().NoError(err)

	s.Equal(run.ModeSingle, resp.Mode)
	s.Equal(superstructure.ObjectiveNPC, resp.Objective)
	s.Equal(bnb.Name, resp.Solver)
	s.Require().NotNil(resp.Single)
	s.Equal("optimal", resp.Single.Status)
	s.Require().NotNil(resp.Single.Objective)
	s.InDelta(-40, *resp.Single.Objective, 1e-6)
	s.InDelta(32e6, resp.Single.Results[compiler.KeyMargin], 1e-3)
	s.Zero(resp.Single.Violations)
	s.InDelta(-40, resp.Summary[compiler.AggNPC], 1e-6)
	s.ElementsMatch([]string{"result.json", "model.lp"}, resp.Artifacts)
	s.NotEqual(uuid.Nil, resp.RunID)

	s.Equal([]run.Status{run.StatusSucceeded}, s.runStatus)
	s.Equal([]string{kafka.TopicRunStarted, kafka.TopicRunCompleted}, s.events.topics())
	s.Equal(resp.RunID.String(), s.events.events[1].key)
	s.Equal(string(run.StatusSucceeded), s.events.events[1].payload.Status)
	s.Equal(1, s.metrics.finished["single/succeeded"])
	s.repo.AssertExpectations(s.T())
	s.store.AssertExpectations(s.T())
}

func (s *ServiceTestSuite) TestSingle_AdoptsRunID() {
	s.expectLifecycle(0)
	id := uuid.New()
	resp, err := s.svc.Execute(s.ctx, &Request{RunID: id, Case: testutil.TwoUnitCase()})
	s.Require().NoError(err)
	s.Equal(id, resp.RunID)
	s.Empty(resp.Artifacts)
	s.store.AssertNotCalled(s.T(), "PutArtifact", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func (s *ServiceTestSuite) TestConstructionFailureMarksRunFailed() {
	s.expectLifecycle(0)
	cs := testutil.TwoUnitCase()
	cs.Units[1].MainProduct = false

	_, err := s.svc.Execute(s.ctx, &Request{Case: cs})
	s.Require().Error(err)
	s.True(errors.IsCode(err, errors.ErrCodeMissingMainProduct))

	s.Equal([]run.Status{run.StatusFailed}, s.runStatus)
	s.Equal([]string{kafka.TopicRunStarted, kafka.TopicRunFailed}, s.events.topics())
	s.NotEmpty(s.events.events[1].payload.Error)
	s.Equal(1, s.metrics.errors["optimization/"+string(errors.ErrCodeMissingMainProduct)])
	s.True(s.logger.HasMessage("error", "run failed"))
}

func (s *ServiceTestSuite) TestRepositoryFailuresDoNotFailTheRun() {
	s.repo.On("Create", mock.Anything, mock.Anything).Return(errors.New(errors.ErrCodeDatabaseError, "down")).Once()
	s.repo.On("Update", mock.Anything, mock.Anything).Return(errors.New(errors.ErrCodeDatabaseError, "down")).Once()
	s.events.err = errors.New(errors.ErrCodeMessagePublish, "broker gone")

	resp, err := s.svc.Execute(s.ctx, &Request{Case: testutil.TwoUnitCase()})
	s.Require().NoError(err)
	s.True(resp.Single.Feasible())
	s.Equal(4, bookkeepingWarnings(s.logger))
	s.Equal(1, s.metrics.errors["run.create/"+string(errors.ErrCodeDatabaseError)])
	s.Equal(1, s.metrics.finished["single/succeeded"])
}

func bookkeepingWarnings(l *testutil.MockLogger) int {
	n := 0
	for _, m := range l.GetMessages() {
		if m.Level == "warn" && m.Message == "run bookkeeping failed" {
			n++
		}
	}
	return n
}

func (s *ServiceTestSuite) TestSensitivity_SweepsSourceCost() {
	s.expectLifecycle(3)
	resp, err := s.svc.Execute(s.ctx, &Request{
		Case:        testutil.TwoUnitCase(),
		Mode:        run.ModeSensitivity,
		Sensitivity: []process.SensitivityRecord{{Key: "source_cost[1]", Low: -0.1, High: 0.1, Steps: 3}},
	})
	s.Require().NoError(err)
	s.Require().Len(resp.Sweep, 3)

	want := []float64{-41, -40, -39}
	for i, p := range resp.Sweep {
		s.Equal([]string{"source_cost[1]"}, p.Keys)
		s.Require().NotNil(p.Objective, "point %d", i)
		s.InDelta(want[i], *p.Objective, 1e-6)
	}
	s.Equal("source_cost[1]=-0.1", resp.Sweep[0].Label())
	s.Equal(3.0, resp.Summary["feasible"])
	s.InDelta(-41, resp.Summary["objective_min"], 1e-6)
	s.InDelta(-39, resp.Summary["objective_max"], 1e-6)
	s.Equal(3, s.progress.totals["sensitivity"])
	s.Equal(3, s.progress.ticks)
	s.Equal(1, s.progress.finished)
}

func (s *ServiceTestSuite) TestSensitivity_UsesCaseRecords() {
	s.expectLifecycle(2)
	cs := testutil.TwoUnitCase()
	cs.Mode = "sensitivity"
	cs.Sensitivity = []process.SensitivityRecord{{Key: "product_price[2]", Low: 0, High: 0.2, Steps: 2}}

	resp, err := s.svc.Execute(s.ctx, &Request{Case: cs})
	s.Require().NoError(err)
	s.Equal(run.ModeSensitivity, resp.Mode)
	s.Require().Len(resp.Sweep, 2)
	s.InDelta(-40, *resp.Sweep[0].Objective, 1e-6)
	s.InDelta(-50, *resp.Sweep[1].Objective, 1e-6)
}

func (s *ServiceTestSuite) TestCrossSensitivity_Grid() {
	s.expectLifecycle(4)
	resp, err := s.svc.Execute(s.ctx, &Request{
		Case: testutil.TwoUnitCase(),
		Mode: run.ModeCrossSensitivity,
		Sensitivity: []process.SensitivityRecord{
			{Key: "source_cost[1]", Low: -0.1, High: 0.1, Steps: 2},
			{Key: "product_price[2]", Low: -0.1, High: 0.1, Steps: 2},
		},
	})
	s.Require().NoError(err)
	s.Require().Len(resp.Sweep, 4)

	// cost 9|11 crossed with price 45|55
	want := []float64{-36, -46, -34, -44}
	for i, p := range resp.Sweep {
		s.Len(p.Deviations, 2)
		s.InDelta(want[i], *p.Objective, 1e-6, "point %s", p.Label())
	}
}

func (s *ServiceTestSuite) TestCrossSensitivity_Rejections() {
	s.repo.On("Create", mock.Anything, mock.Anything).Return(nil)
	s.repo.On("Update", mock.Anything, mock.Anything).Return(nil)

	_, err := s.svc.Execute(s.ctx, &Request{
		Case:        testutil.TwoUnitCase(),
		Mode:        run.ModeCrossSensitivity,
		Sensitivity: []process.SensitivityRecord{{Key: "source_cost[1]", Low: -0.1, High: 0.1, Steps: 2}},
	})
	s.True(errors.IsCode(err, errors.CodeInvalidParam))

	_, err = s.svc.Execute(s.ctx, &Request{
		Case: testutil.TwoUnitCase(),
		Mode: run.ModeCrossSensitivity,
		Sensitivity: []process.SensitivityRecord{
			{Key: "source_cost[1]", Low: -0.1, High: 0.1, Steps: 2},
			{Key: "source_cost[1]", Low: 0, High: 0.2, Steps: 2},
		},
	})
	s.True(errors.IsCode(err, errors.CodeInvalidParam))

	_, err = s.svc.Execute(s.ctx, &Request{
		Case:        testutil.TwoUnitCase(),
		Mode:        run.ModeSensitivity,
		Sensitivity: []process.SensitivityRecord{{Key: "source_cost[1]", Low: 0.2, High: -0.2, Steps: 2}},
	})
	s.True(errors.IsCode(err, errors.CodeInvalidParam))
}

func (s *ServiceTestSuite) TestStochastic_TwoSourceCase() {
	s.expectLifecycle(6)
	resp, err := s.svc.Execute(s.ctx, &Request{Case: testutil.TwoSourceCase()})
	s.Require().NoError(err)

	s.Equal(run.ModeStochastic, resp.Mode)
	st := resp.Stochastic
	s.Require().NotNil(st)
	s.False(st.WaitAndSeeOnly)
	s.InDelta(-40.1666667, st.Figures[KeyWS], 1e-6)
	s.InDelta(-40, st.Figures[KeyEV], 1e-6)
	s.InDelta(-40, st.Figures[KeyEEV], 1e-6)
	s.InDelta(-40, st.Figures[KeyRP], 1e-6)
	s.InDelta(0, st.Figures[KeyVSS], 1e-6)
	s.InDelta(0.1666667, st.Figures[KeyEVPI], 1e-6)
	s.Equal(3.0, st.Figures[KeyScenarios])
	s.InDelta(1, st.Figures[KeyFeasibleMass], 1e-12)
	s.Equal(1.0, st.Design["Y[1]"])
	s.Equal(1.0, st.RecourseDesign["Y[1]"])
	s.Len(st.Scenarios, 6)
	s.Empty(st.Infeasible)
	s.Equal(st.Figures, resp.Summary)

	s.Equal(6, s.progress.totals["stochastic"])
	s.Equal(6, s.progress.ticks)
	s.Equal(3, s.metrics.scenarios[string(scenario.StageWaitAndSee)])
	s.Equal(3, s.metrics.scenarios[string(scenario.StageEEV)])
}

func (s *ServiceTestSuite) TestWaitAndSee_OnlyWS() {
	s.expectLifecycle(3)
	resp, err := s.svc.Execute(s.ctx, &Request{Case: testutil.TwoSourceCase(), Mode: run.ModeWaitAndSee})
	s.Require().NoError(err)

	st := resp.Stochastic
	s.Require().NotNil(st)
	s.True(st.WaitAndSeeOnly)
	s.InDelta(-40.1666667, st.Figures[KeyWS], 1e-6)
	s.NotContains(st.Figures, KeyVSS)
	s.Len(st.Scenarios, 3)
	s.Equal(3, s.progress.totals["wait_and_see"])
}

func (s *ServiceTestSuite) TestStochastic_RequiresUncertainty() {
	s.expectLifecycle(0)
	cs := testutil.TwoSourceCase()
	cs.Uncertainty = nil

	_, err := s.svc.Execute(s.ctx, &Request{Case: cs})
	s.True(errors.IsCode(err, errors.ErrCodeInvalidUncertainty))
	s.Equal([]run.Status{run.StatusFailed}, s.runStatus)
}

func (s *ServiceTestSuite) TestPareto_CollinearObjectivesCollapse() {
	s.expectLifecycle(1)
	resp, err := s.svc.Execute(s.ctx, &Request{
		Case:           testutil.TwoSourceCase(),
		Mode:           run.ModeMultiObjective,
		MultiObjective: &process.MultiObjectiveRecord{Primary: "npc", Secondary: "tac", Points: 4},
	})
	s.Require().NoError(err)
	s.Equal(superstructure.ObjectiveNPC, resp.Objective)
	s.Require().Len(resp.Pareto, 1)
	p := resp.Pareto[0]
	s.Equal("optimal", p.Status)
	s.InDelta(-40, *p.Primary, 1e-6)
	s.NotNil(p.Secondary)
	s.Equal(1.0, p.Design["Y[1]"])
}

func (s *ServiceTestSuite) TestPareto_Rejections() {
	s.repo.On("Create", mock.Anything, mock.Anything).Return(nil)
	s.repo.On("Update", mock.Anything, mock.Anything).Return(nil)

	for _, mo := range []*process.MultiObjectiveRecord{
		nil,
		{Secondary: "NPC"},
		{Primary: "NPC", Secondary: "PROFIT"},
	} {
		_, err := s.svc.Execute(s.ctx, &Request{Case: testutil.TwoSourceCase(), Mode: run.ModeMultiObjective, MultiObjective: mo})
		s.True(errors.IsCode(err, errors.CodeInvalidParam), "%+v", mo)
	}
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceTestSuite))
}

// -----------------------------------------------------------------------
// Plain tests
// -----------------------------------------------------------------------

func TestNewService_RequiresCollaborators(t *testing.T) {
	cat := superstructure.NewCatalog(superstructure.CatalogOptions{}, nil)
	comp := compiler.New(nil, nil)

	_, err := NewService(ServiceConfig{Compiler: comp, Solver: bnb.New(nil)})
	assert.True(t, errors.IsCode(err, errors.ErrCodeValidation))
	_, err = NewService(ServiceConfig{Catalog: cat, Solver: bnb.New(nil)})
	assert.True(t, errors.IsCode(err, errors.ErrCodeValidation))
	_, err = NewService(ServiceConfig{Catalog: cat, Compiler: comp})
	assert.True(t, errors.IsCode(err, errors.ErrCodeValidation))

	svc, err := NewService(ServiceConfig{Catalog: cat, Compiler: comp, Solver: bnb.New(nil)})
	require.NoError(t, err)
	resp, err := svc.Execute(context.Background(), &Request{Case: testutil.TwoUnitCase()})
	require.NoError(t, err)
	assert.True(t, resp.Single.Feasible())
}

func TestExecute_RejectsBadRequests(t *testing.T) {
	svc, err := NewService(ServiceConfig{
		Catalog:  superstructure.NewCatalog(superstructure.CatalogOptions{}, nil),
		Compiler: compiler.New(nil, nil),
		Solver:   bnb.New(nil),
	})
	require.NoError(t, err)

	_, err = svc.Execute(context.Background(), nil)
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParam))
	_, err = svc.Execute(context.Background(), &Request{Case: testutil.TwoUnitCase(), Mode: "annealing"})
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParam))
	_, err = svc.Execute(context.Background(), &Request{Case: testutil.TwoUnitCase(), Objective: "ROI"})
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParam))
}

func TestExport(t *testing.T) {
	svc, err := NewService(ServiceConfig{
		Catalog:  superstructure.NewCatalog(superstructure.CatalogOptions{}, nil),
		Compiler: compiler.New(nil, nil),
		Solver:   bnb.New(nil),
	})
	require.NoError(t, err)
	ctx := context.Background()

	var lp bytes.Buffer
	stats, err := svc.Export(ctx, testutil.TwoUnitCase(), "", ExportLP, &lp)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(lp.String(), `\ Problem: two-unit`))
	assert.Positive(t, stats.Variables)

	var mps bytes.Buffer
	_, err = svc.Export(ctx, testutil.TwoUnitCase(), superstructure.ObjectiveTAC, ExportMPS, &mps)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(mps.String(), "NAME two_unit"))

	_, err = svc.Export(ctx, testutil.TwoUnitCase(), "", "gms", &mps)
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParam))
}

func TestRunMode(t *testing.T) {
	assert.Equal(t, run.ModeStochastic, RunMode(superstructure.ModeTwoStageRecourse))
	assert.Equal(t, run.ModeSingle, RunMode(""))
	assert.Equal(t, run.ModeWaitAndSee, RunMode(superstructure.ModeWaitAndSee))
	assert.Equal(t, run.ModeCrossSensitivity, RunMode(superstructure.ModeCrossSensitivity))
}

func TestLevels(t *testing.T) {
	assert.Equal(t, []float64{-0.1}, Levels(-0.1, 0.1, 1))
	assert.Equal(t, []float64{0.2}, Levels(0.2, 0.2, 5))
	got := Levels(-0.2, 0.2, 5)
	require.Len(t, got, 5)
	assert.InDelta(t, 0, got[2], 1e-12)
	assert.Equal(t, 0.2, got[4])
}

func TestSolutionFeasible(t *testing.T) {
	var nilSol *Solution
	assert.False(t, nilSol.Feasible())
	assert.False(t, (&Solution{Status: milp.StatusInfeasible.String()}).Feasible())
	x := 1.0
	assert.True(t, (&Solution{Objective: &x}).Feasible())
}
