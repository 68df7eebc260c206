package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/turtacn/ProcSynth/internal/domain/run"
	"github.com/turtacn/ProcSynth/internal/infrastructure/database/postgres"
	"github.com/turtacn/ProcSynth/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ProcSynth/pkg/errors"
)

const runColumns = `id, mode, status, case_name, objective, solver, tags, summary, error, created_at, started_at, finished_at`

type postgresRunRepo struct {
	conn *postgres.Connection
	log  logging.Logger
}

// NewPostgresRunRepo returns a run.Repository backed by conn.
func NewPostgresRunRepo(conn *postgres.Connection, log logging.Logger) run.Repository {
	return &postgresRunRepo{conn: conn, log: logging.OrNop(log).Named("run_repo")}
}

func (r *postgresRunRepo) Create(ctx context.Context, rn *run.Run) error {
	summary, err := json.Marshal(rn.Summary)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "encode run summary")
	}
	query := `
		INSERT INTO runs (id, mode, status, case_name, objective, solver, tags, summary, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at
	`
	err = r.conn.DB().QueryRowContext(ctx, query,
		rn.ID, string(rn.Mode), string(rn.Status), rn.CaseName, rn.Objective, rn.Solver,
		pq.Array(tags(rn)), summary, rn.Error,
	).Scan(&rn.CreatedAt)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to create run")
	}
	r.log.Debug("run created", logging.RunID(rn.ID.String()), logging.String("mode", string(rn.Mode)))
	return nil
}

func (r *postgresRunRepo) Update(ctx context.Context, rn *run.Run) error {
	summary, err := json.Marshal(rn.Summary)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "encode run summary")
	}
	query := `
		UPDATE runs
		SET status = $1, summary = $2, error = $3, started_at = $4, finished_at = $5, tags = $6
		WHERE id = $7
	`
	res, err := r.conn.DB().ExecContext(ctx, query,
		string(rn.Status), summary, rn.Error, rn.StartedAt, rn.FinishedAt, pq.Array(tags(rn)), rn.ID,
	)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to update run")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.New(errors.ErrCodeRunNotFound, "run not found").WithDetail(rn.ID.String())
	}
	return nil
}

func (r *postgresRunRepo) Get(ctx context.Context, id uuid.UUID) (*run.Run, error) {
	row := r.conn.DB().QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = $1`, id)
	rn, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, errors.New(errors.ErrCodeRunNotFound, "run not found").WithDetail(id.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to load run")
	}
	return rn, nil
}

func (r *postgresRunRepo) List(ctx context.Context, status *run.Status, limit, offset int) ([]*run.Run, int64, error) {
	base := `FROM runs`
	var args []interface{}
	if status != nil {
		base += ` WHERE status = $1`
		args = append(args, string(*status))
	}

	var total int64
	if err := r.conn.DB().QueryRowContext(ctx, "SELECT COUNT(*) "+base, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to count runs")
	}

	query := fmt.Sprintf("SELECT %s %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d", runColumns, base, len(args)+1, len(args)+2)
	args = append(args, limit, offset)
	rows, err := r.conn.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to list runs")
	}
	defer rows.Close()

	var runs []*run.Run
	for rows.Next() {
		rn, err := scanRun(rows)
		if err != nil {
			return nil, 0, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to scan run")
		}
		runs = append(runs, rn)
	}
	return runs, total, rows.Err()
}

// SaveOutcomes replaces the stored outcomes of a run in one transaction.
func (r *postgresRunRepo) SaveOutcomes(ctx context.Context, id uuid.UUID, outcomes []run.Outcome) error {
	tx, err := r.conn.DB().BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to begin transaction")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM run_outcomes WHERE run_id = $1`, id); err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to clear outcomes")
	}
	insert := `
		INSERT INTO run_outcomes (run_id, label, stage, probability, status, objective, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	for _, o := range outcomes {
		if _, err := tx.ExecContext(ctx, insert, id, o.Label, o.Stage, o.Probability, o.Status, o.Objective, o.Error); err != nil {
			return errors.Wrapf(err, errors.ErrCodeDatabaseError, "failed to insert outcome %q", o.Label)
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to commit outcomes")
	}
	r.log.Debug("outcomes saved", logging.RunID(id.String()), logging.Int("count", len(outcomes)))
	return nil
}

func (r *postgresRunRepo) Outcomes(ctx context.Context, id uuid.UUID) ([]run.Outcome, error) {
	rows, err := r.conn.DB().QueryContext(ctx, `
		SELECT label, stage, probability, status, objective, error
		FROM run_outcomes WHERE run_id = $1 ORDER BY stage, label
	`, id)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to load outcomes")
	}
	defer rows.Close()

	var out []run.Outcome
	for rows.Next() {
		o := run.Outcome{RunID: id}
		var obj sql.NullFloat64
		if err := rows.Scan(&o.Label, &o.Stage, &o.Probability, &o.Status, &obj, &o.Error); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to scan outcome")
		}
		o.Objective = nullFloat(obj)
		out = append(out, o)
	}
	return out, rows.Err()
}

func scanRun(s scanner) (*run.Run, error) {
	var (
		rn                run.Run
		mode, status      string
		summary           []byte
		started, finished sql.NullTime
	)
	err := s.Scan(&rn.ID, &mode, &status, &rn.CaseName, &rn.Objective, &rn.Solver,
		pq.Array(&rn.Tags), &summary, &rn.Error, &rn.CreatedAt, &started, &finished)
	if err != nil {
		return nil, err
	}
	rn.Mode, rn.Status = run.Mode(mode), run.Status(status)
	rn.StartedAt, rn.FinishedAt = nullTime(started), nullTime(finished)
	rn.Summary = map[string]float64{}
	if len(summary) > 0 {
		if err := json.Unmarshal(summary, &rn.Summary); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeSerialization, "decode run summary")
		}
	}
	return &rn, nil
}

func tags(rn *run.Run) []string {
	if rn.Tags == nil {
		return []string{}
	}
	return rn.Tags
}
