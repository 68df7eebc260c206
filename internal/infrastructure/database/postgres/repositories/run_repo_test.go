package repositories

import (
	"context"
	"database/sql"
	stderrors "errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"github.com/turtacn/ProcSynth/internal/domain/run"
	"github.com/turtacn/ProcSynth/internal/infrastructure/database/postgres"
	"github.com/turtacn/ProcSynth/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ProcSynth/pkg/errors"
)

var runRowColumns = []string{
	"id", "mode", "status", "case_name", "objective", "solver", "tags", "summary", "error",
	"created_at", "started_at", "finished_at",
}

type RunRepoTestSuite struct {
	suite.Suite
	db   *sql.DB
	mock sqlmock.Sqlmock
	repo run.Repository
}

func (s *RunRepoTestSuite) SetupTest() {
	var err error
	s.db, s.mock, err = sqlmock.New()
	s.Require().NoError(err)
	s.repo = NewPostgresRunRepo(postgres.NewConnectionWithDB(s.db, logging.NewNopLogger()), nil)
}

func (s *RunRepoTestSuite) TearDownTest() {
	s.NoError(s.mock.ExpectationsWereMet())
	s.db.Close()
}

func (s *RunRepoTestSuite) TestCreate() {
	rn := run.New(run.ModeStochastic, "two-source", "NPC", "bnb")
	rn.Tags = []string{"nightly", "vss"}
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	s.mock.ExpectQuery("INSERT INTO runs").
		WithArgs(rn.ID, "stochastic", "pending", "two-source", "NPC", "bnb", "{\"nightly\",\"vss\"}", sqlmock.AnyArg(), "").
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(created))

	s.Require().NoError(s.repo.Create(context.Background(), rn))
	s.Equal(created, rn.CreatedAt)
}

func (s *RunRepoTestSuite) TestCreate_DatabaseError() {
	rn := run.New(run.ModeSingle, "reactor", "TAC", "bnb")
	s.mock.ExpectQuery("INSERT INTO runs").WillReturnError(stderrors.New("duplicate key"))

	err := s.repo.Create(context.Background(), rn)
	s.True(errors.IsCode(err, errors.ErrCodeDatabaseError))
}

func (s *RunRepoTestSuite) TestGet_Found() {
	id := uuid.New()
	started := time.Date(2026, 3, 1, 12, 0, 1, 0, time.UTC)
	s.mock.ExpectQuery("SELECT id, mode, .* FROM runs WHERE id = \\$1").
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(runRowColumns).AddRow(
			id.String(), "single", "running", "reactor", "TAC", "highs", "{a,b}", []byte(`{"TAC":-32}`), "",
			started, started, nil,
		))

	rn, err := s.repo.Get(context.Background(), id)
	s.Require().NoError(err)
	s.Equal(run.ModeSingle, rn.Mode)
	s.Equal(run.StatusRunning, rn.Status)
	s.Equal([]string{"a", "b"}, rn.Tags)
	s.Equal(-32.0, rn.Summary["TAC"])
	s.Require().NotNil(rn.StartedAt)
	s.Equal(started, *rn.StartedAt)
	s.Nil(rn.FinishedAt)
}

func (s *RunRepoTestSuite) TestGet_NotFound() {
	id := uuid.New()
	s.mock.ExpectQuery("SELECT .* FROM runs WHERE id").WithArgs(id).WillReturnError(sql.ErrNoRows)

	_, err := s.repo.Get(context.Background(), id)
	s.True(errors.IsCode(err, errors.ErrCodeRunNotFound))
}

func (s *RunRepoTestSuite) TestUpdate_NotFound() {
	rn := run.New(run.ModeSingle, "reactor", "TAC", "bnb")
	s.mock.ExpectExec("UPDATE runs").WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.repo.Update(context.Background(), rn)
	s.True(errors.IsCode(err, errors.ErrCodeRunNotFound))
}

func (s *RunRepoTestSuite) TestUpdate() {
	rn := run.New(run.ModeSingle, "reactor", "TAC", "bnb")
	s.Require().NoError(rn.Start(time.Now()))
	s.mock.ExpectExec("UPDATE runs").
		WithArgs("running", sqlmock.AnyArg(), "", sqlmock.AnyArg(), nil, "{}", rn.ID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	s.NoError(s.repo.Update(context.Background(), rn))
}

func (s *RunRepoTestSuite) TestList_FilteredByStatus() {
	status := run.StatusFailed
	s.mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM runs WHERE status = \\$1").
		WithArgs("failed").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	s.mock.ExpectQuery("SELECT id, .* FROM runs WHERE status = \\$1 ORDER BY created_at DESC LIMIT \\$2 OFFSET \\$3").
		WithArgs("failed", 10, 0).
		WillReturnRows(sqlmock.NewRows(runRowColumns).AddRow(
			uuid.NewString(), "stochastic", "failed", "two-source", "NPC", "bnb", "{}", []byte(`{}`), "no feasible scenario",
			time.Now(), nil, time.Now(),
		))

	runs, total, err := s.repo.List(context.Background(), &status, 10, 0)
	s.Require().NoError(err)
	s.EqualValues(1, total)
	s.Require().Len(runs, 1)
	s.Equal("no feasible scenario", runs[0].Error)
	s.NotNil(runs[0].FinishedAt)
}

func (s *RunRepoTestSuite) TestSaveOutcomes_ReplacesInTransaction() {
	id := uuid.New()
	obj := -41.0
	outcomes := []run.Outcome{
		{Label: "s1", Stage: "wait_and_see", Probability: 1.0 / 3, Status: "optimal", Objective: &obj},
		{Label: "s2", Stage: "wait_and_see", Probability: 1.0 / 3, Status: "infeasible"},
	}

	s.mock.ExpectBegin()
	s.mock.ExpectExec("DELETE FROM run_outcomes WHERE run_id = \\$1").WithArgs(id).WillReturnResult(sqlmock.NewResult(0, 2))
	s.mock.ExpectExec("INSERT INTO run_outcomes").
		WithArgs(id, "s1", "wait_and_see", 1.0/3, "optimal", -41.0, "").
		WillReturnResult(sqlmock.NewResult(0, 1))
	s.mock.ExpectExec("INSERT INTO run_outcomes").
		WithArgs(id, "s2", "wait_and_see", 1.0/3, "infeasible", nil, "").
		WillReturnResult(sqlmock.NewResult(0, 1))
	s.mock.ExpectCommit()

	s.NoError(s.repo.SaveOutcomes(context.Background(), id, outcomes))
}

func (s *RunRepoTestSuite) TestSaveOutcomes_RollsBackOnFailure() {
	id := uuid.New()
	s.mock.ExpectBegin()
	s.mock.ExpectExec("DELETE FROM run_outcomes").WillReturnResult(sqlmock.NewResult(0, 0))
	s.mock.ExpectExec("INSERT INTO run_outcomes").WillReturnError(stderrors.New("constraint violation"))
	s.mock.ExpectRollback()

	err := s.repo.SaveOutcomes(context.Background(), id, []run.Outcome{{Label: "s1", Stage: "eev"}})
	s.True(errors.IsCode(err, errors.ErrCodeDatabaseError))
}

func (s *RunRepoTestSuite) TestOutcomes() {
	id := uuid.New()
	s.mock.ExpectQuery("SELECT label, stage, .* FROM run_outcomes").
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"label", "stage", "probability", "status", "objective", "error"}).
			AddRow("s1", "eev", 0.5, "optimal", -40.0, "").
			AddRow("s2", "eev", 0.5, "unknown", nil, "skipped"))

	out, err := s.repo.Outcomes(context.Background(), id)
	s.Require().NoError(err)
	s.Require().Len(out, 2)
	s.Equal(id, out[0].RunID)
	s.Require().NotNil(out[0].Objective)
	s.Equal(-40.0, *out[0].Objective)
	s.Nil(out[1].Objective)
}

func TestRunRepoTestSuite(t *testing.T) {
	suite.Run(t, new(RunRepoTestSuite))
}
