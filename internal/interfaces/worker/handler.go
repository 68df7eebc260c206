// Package worker evaluates queued run requests.
package worker

import (
	"bytes"
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/ProcSynth/internal/application/optimization"
	"github.com/turtacn/ProcSynth/internal/infrastructure/database/redis"
	"github.com/turtacn/ProcSynth/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/ProcSynth/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ProcSynth/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/ProcSynth/pkg/errors"
	"github.com/turtacn/ProcSynth/pkg/types/common"
	"github.com/turtacn/ProcSynth/pkg/types/process"
)

// Outcome labels of the processed-messages counter.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
	StatusSkipped   = "skipped"
	StatusRejected  = "rejected"
	StatusRetry     = "retry"
)

// CaseSource fetches uploaded cases. minio.ArtifactStore satisfies it.
type CaseSource interface {
	GetCase(ctx context.Context, name string) ([]byte, error)
}

// Config holds the collaborators of a Handler. Service and Cases are
// required.
type Config struct {
	Service optimization.Service
	Cases   CaseSource
	// Locks, when set, keeps a redelivered request from running twice at
	// the same time.
	Locks   *redis.Client
	LockTTL time.Duration
	// Timeout bounds one run; zero means no bound.
	Timeout   time.Duration
	Processed prometheus.CounterVec
	Logger    logging.Logger
}

// Handler turns run-request messages into service runs.
type Handler struct {
	cfg     Config
	timeout atomic.Int64
	logger  logging.Logger
}

// NewHandler validates cfg.
func NewHandler(cfg Config) (*Handler, error) {
	if cfg.Service == nil {
		return nil, errors.InvalidParam("worker needs an optimization service")
	}
	if cfg.Cases == nil {
		return nil, errors.InvalidParam("worker needs a case source")
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 30 * time.Minute
	}
	h := &Handler{cfg: cfg, logger: logging.OrNop(cfg.Logger).Named("worker")}
	h.SetTimeout(cfg.Timeout)
	return h, nil
}

// SetTimeout changes the bound applied to runs started from now on.
func (h *Handler) SetTimeout(d time.Duration) { h.timeout.Store(int64(d)) }

// Handle is a common.MessageHandler. Returned errors are retried by the
// consumer and end in the dead-letter topic; a run that fails on its own
// terms is recorded by the service and acknowledged here.
func (h *Handler) Handle(ctx context.Context, msg *common.Message) error {
	status, err := h.handle(ctx, msg)
	if h.cfg.Processed != nil {
		h.cfg.Processed.WithLabelValues(msg.Topic, status).Inc()
	}
	return err
}

func (h *Handler) handle(ctx context.Context, msg *common.Message) (string, error) {
	env, err := kafka.MessageToEventEnvelope(msg)
	if err != nil {
		h.logger.Warn("undecodable run request", logging.Int64("offset", msg.Offset), logging.Err(err))
		return StatusRejected, err
	}
	req, key, err := optimization.ParseRunRequest(env)
	if err != nil {
		h.logger.Warn("malformed run request", logging.String("event_id", env.EventID), logging.Err(err))
		return StatusRejected, err
	}

	lockName := key
	if req.RunID != uuid.Nil {
		lockName = req.RunID.String()
	}
	if h.cfg.Locks != nil {
		lock := redis.NewLock(h.cfg.Locks, "run:"+lockName, h.cfg.LockTTL)
		if err := lock.TryLock(ctx); err != nil {
			if errors.IsCode(err, errors.ErrCodeConflict) {
				h.logger.Info("run already in progress", logging.RunID(lockName))
				return StatusSkipped, nil
			}
			return StatusRetry, err
		}
		defer func() {
			if err := lock.Unlock(context.Background()); err != nil {
				h.logger.Warn("releasing run lock failed", logging.RunID(lockName), logging.Err(err))
			}
		}()
	}

	data, err := h.cfg.Cases.GetCase(ctx, key)
	if err != nil {
		return StatusRetry, err
	}
	cs, err := process.DecodeCase(bytes.NewReader(data), process.FormatFromPath(key))
	if err != nil {
		h.logger.Warn("stored case does not decode", logging.String("case_key", key), logging.Err(err))
		return StatusRejected, err
	}
	req.Case = cs

	if d := time.Duration(h.timeout.Load()); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}
	start := time.Now()
	resp, err := h.cfg.Service.Execute(ctx, req)
	if err != nil {
		h.logger.Warn("queued run failed", logging.RunID(lockName), logging.Err(err))
		return StatusFailed, nil
	}
	h.logger.Info("queued run finished",
		logging.RunID(resp.RunID.String()),
		logging.String("mode", string(resp.Mode)),
		logging.Duration("elapsed", time.Since(start)))
	return StatusSucceeded, nil
}
