// Package run describes an optimization run as it is persisted: the mode it
// was started in, its lifecycle status and the per-scenario outcomes of a
// stochastic evaluation.
package run

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/ProcSynth/pkg/errors"
)

// Mode is the kind of evaluation a run performs.
type Mode string

const (
	ModeSingle           Mode = "single"
	ModeSensitivity      Mode = "sensitivity"
	ModeCrossSensitivity Mode = "cross_sensitivity"
	ModeMultiObjective   Mode = "multi_objective"
	ModeStochastic       Mode = "stochastic"
	ModeWaitAndSee       Mode = "wait_and_see"
)

// ParseMode validates s.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeSingle, ModeSensitivity, ModeCrossSensitivity, ModeMultiObjective, ModeStochastic, ModeWaitAndSee:
		return m, nil
	}
	return "", errors.InvalidParam("unknown run mode").WithDetail(s)
}

// Status is the lifecycle state of a run.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool { return s == StatusSucceeded || s == StatusFailed }

// Run is one evaluation of a case.
type Run struct {
	ID         uuid.UUID
	Mode       Mode
	Status     Status
	CaseName   string
	Objective  string
	Solver     string
	Tags       []string
	Summary    map[string]float64
	Error      string
	CreatedAt  time.Time
	StartedAt  *time.Time
	FinishedAt *time.Time
}

// New returns a pending run with a fresh ID.
func New(mode Mode, caseName, objective, solver string) *Run {
	return &Run{
		ID:        uuid.New(),
		Mode:      mode,
		Status:    StatusPending,
		CaseName:  caseName,
		Objective: objective,
		Solver:    solver,
		Summary:   map[string]float64{},
	}
}

// Start moves a pending run to running.
func (r *Run) Start(at time.Time) error {
	if r.Status != StatusPending {
		return errors.Newf(errors.ErrCodeConflict, "run %s cannot start from %s", r.ID, r.Status)
	}
	r.Status = StatusRunning
	r.StartedAt = &at
	return nil
}

// Succeed records the summary figures and finishes the run.
func (r *Run) Succeed(at time.Time, summary map[string]float64) error {
	if r.Status.Terminal() {
		return errors.Newf(errors.ErrCodeConflict, "run %s already %s", r.ID, r.Status)
	}
	r.Status = StatusSucceeded
	r.FinishedAt = &at
	if summary != nil {
		r.Summary = summary
	}
	return nil
}

// Fail finishes the run with cause.
func (r *Run) Fail(at time.Time, cause error) error {
	if r.Status.Terminal() {
		return errors.Newf(errors.ErrCodeConflict, "run %s already %s", r.ID, r.Status)
	}
	r.Status = StatusFailed
	r.FinishedAt = &at
	if cause != nil {
		r.Error = cause.Error()
	}
	return nil
}

// Outcome is one solved point of a run: a scenario of a stochastic
// evaluation or a grid point of a sweep.
type Outcome struct {
	RunID       uuid.UUID
	Label       string
	Stage       string
	Probability float64
	Status      string
	Objective   *float64
	Error       string
}

// Repository persists runs and their outcomes.
type Repository interface {
	Create(ctx context.Context, r *Run) error
	Update(ctx context.Context, r *Run) error
	Get(ctx context.Context, id uuid.UUID) (*Run, error)
	List(ctx context.Context, status *Status, limit, offset int) ([]*Run, int64, error)
	SaveOutcomes(ctx context.Context, id uuid.UUID, outcomes []Outcome) error
	Outcomes(ctx context.Context, id uuid.UUID) ([]Outcome, error)
}
