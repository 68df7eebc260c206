package optimization

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"time"

	"github.com/turtacn/ProcSynth/internal/domain/milp"
	"github.com/turtacn/ProcSynth/internal/infrastructure/database/redis"
	"github.com/turtacn/ProcSynth/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ProcSynth/pkg/errors"
)

const cacheName = "solve"

// ResultKey identifies a solve: the LP export of m, the options and the
// solver name.
func ResultKey(m *milp.Model, opts milp.Options, solver string) (string, error) {
	h := sha256.New()
	if err := milp.WriteLP(h, m); err != nil {
		return "", errors.Wrap(err, errors.ErrCodeModelExport, "hash model")
	}
	fmt.Fprintf(h, "\n%s|%d|%d|%g|%g", solver, opts.TimeLimit, opts.MaxNodes, opts.RelativeGap, opts.IntegralityTol)
	return cacheName + ":" + hex.EncodeToString(h.Sum(nil)), nil
}

// cachedResult is the stored form of a milp.Result; non-finite bounds are
// dropped because JSON cannot carry them.
type cachedResult struct {
	Status      string    `json:"status"`
	HasSolution bool      `json:"has_solution"`
	Objective   float64   `json:"objective"`
	Bound       *float64  `json:"bound,omitempty"`
	Gap         *float64  `json:"gap,omitempty"`
	Values      []float64 `json:"values,omitempty"`
	Nodes       int       `json:"nodes"`
	ElapsedNS   int64     `json:"elapsed_ns"`
}

func toCached(r *milp.Result) *cachedResult {
	return &cachedResult{
		Status:      r.Status.String(),
		HasSolution: r.HasSolution,
		Objective:   r.Objective,
		Bound:       finite(r.Bound),
		Gap:         finite(r.Gap),
		Values:      r.Values,
		Nodes:       r.Nodes,
		ElapsedNS:   int64(r.Elapsed),
	}
}

func (c *cachedResult) result() *milp.Result {
	r := &milp.Result{
		Status:      milp.ParseStatus(c.Status),
		HasSolution: c.HasSolution,
		Objective:   c.Objective,
		Bound:       math.Inf(1),
		Gap:         math.Inf(1),
		Values:      c.Values,
		Nodes:       c.Nodes,
		Elapsed:     time.Duration(c.ElapsedNS),
	}
	if c.Bound != nil {
		r.Bound = *c.Bound
	}
	if c.Gap != nil {
		r.Gap = *c.Gap
	}
	return r
}

// uncacheable carries a result that must not be stored through the cache
// loader back to the caller.
type uncacheable struct{ res *milp.Result }

func (uncacheable) Error() string { return "result not cacheable" }

// CacheRecorder counts cache hits and misses. *prometheus.AppMetrics
// satisfies it.
type CacheRecorder interface {
	RecordCacheAccess(cache string, hit bool)
}

// CachedSolver memoizes solves in the result cache. Only optimal and
// infeasible outcomes are stored; a time limit depends on machine load and is
// always re-solved. Concurrent identical solves share one call.
type CachedSolver struct {
	next    milp.Solver
	cache   redis.Cache
	ttl     time.Duration
	metrics CacheRecorder
	logger  logging.Logger
}

// NewCachedSolver wraps next. A nil cache returns next unchanged.
func NewCachedSolver(next milp.Solver, cache redis.Cache, ttl time.Duration, metrics CacheRecorder, logger logging.Logger) milp.Solver {
	if cache == nil {
		return next
	}
	return &CachedSolver{
		next:    next,
		cache:   cache,
		ttl:     ttl,
		metrics: metrics,
		logger:  logging.OrNop(logger).Named("solve-cache"),
	}
}

// Name implements milp.Solver.
func (s *CachedSolver) Name() string { return s.next.Name() }

// Solve implements milp.Solver.
func (s *CachedSolver) Solve(ctx context.Context, m *milp.Model, opts milp.Options) (*milp.Result, error) {
	key, err := ResultKey(m, opts, s.next.Name())
	if err != nil {
		s.logger.Warn("solve cache bypassed", logging.Err(err))
		return s.next.Solve(ctx, m, opts)
	}

	hit := true
	var entry cachedResult
	err = s.cache.GetOrLoad(ctx, key, &entry, s.ttl, func(ctx context.Context) (interface{}, error) {
		hit = false
		res, err := s.next.Solve(ctx, m, opts)
		if err != nil {
			return nil, err
		}
		if res.Status != milp.StatusOptimal && res.Status != milp.StatusInfeasible {
			return nil, uncacheable{res: res}
		}
		return toCached(res), nil
	})
	s.record(hit)

	var u uncacheable
	if errors.As(err, &u) {
		return u.res, nil
	}
	if err != nil {
		return nil, err
	}
	res := entry.result()
	if res.HasSolution && len(res.Values) != m.NumVars() {
		// a stale entry for a model with a colliding key; solve afresh
		s.logger.Warn("cached solution does not match model", logging.String("key", key))
		return s.next.Solve(ctx, m, opts)
	}
	if hit {
		s.logger.Debug("solve served from cache", logging.String("model", m.Name))
	}
	return res, nil
}

func (s *CachedSolver) record(hit bool) {
	if s.metrics != nil {
		s.metrics.RecordCacheAccess(cacheName, hit)
	}
}
