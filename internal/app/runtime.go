// Package app assembles the optimization service and the backing services
// enabled in configuration. Both binaries build one Runtime at startup.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/turtacn/ProcSynth/internal/application/optimization"
	"github.com/turtacn/ProcSynth/internal/config"
	"github.com/turtacn/ProcSynth/internal/domain/compiler"
	"github.com/turtacn/ProcSynth/internal/domain/milp"
	"github.com/turtacn/ProcSynth/internal/domain/run"
	"github.com/turtacn/ProcSynth/internal/domain/superstructure"
	"github.com/turtacn/ProcSynth/internal/infrastructure/database/postgres"
	"github.com/turtacn/ProcSynth/internal/infrastructure/database/postgres/repositories"
	"github.com/turtacn/ProcSynth/internal/infrastructure/database/redis"
	"github.com/turtacn/ProcSynth/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/ProcSynth/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ProcSynth/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/ProcSynth/internal/infrastructure/solver/bnb"
	"github.com/turtacn/ProcSynth/internal/infrastructure/solver/highs"
	"github.com/turtacn/ProcSynth/internal/infrastructure/storage/minio"
	"github.com/turtacn/ProcSynth/pkg/errors"
	"github.com/turtacn/ProcSynth/pkg/types/common"
)

// Options adjusts what New assembles.
type Options struct {
	Progress optimization.ProgressFunc
	// Offline skips every backing service regardless of configuration.
	Offline bool
}

// Runtime owns the assembled service and its connections.
type Runtime struct {
	Config    *config.Config
	Logger    logging.Logger
	Solver    milp.Solver
	Service   optimization.Service
	Collector prometheus.MetricsCollector
	Metrics   *prometheus.AppMetrics

	Redis     *redis.Client
	Cache     redis.Cache
	Postgres  *postgres.Connection
	Runs      run.Repository
	MinIO     *minio.Client
	Artifacts minio.ArtifactStore
	Producer  *kafka.Producer

	closers []func() error
}

// New connects the enabled backing services and builds the service on top of
// them. On error everything opened so far is closed again.
func New(ctx context.Context, cfg *config.Config, logger logging.Logger, opts Options) (_ *Runtime, err error) {
	if cfg == nil {
		cfg = config.Default()
	}
	logger = logging.OrNop(logger)
	rt := &Runtime{Config: cfg, Logger: logger}
	defer func() {
		if err != nil {
			rt.Close()
		}
	}()

	if cfg.Metrics.Enabled {
		rt.Collector, err = prometheus.NewMetricsCollector(cfg.Metrics.Collector(), logger)
		if err != nil {
			return nil, err
		}
		rt.Metrics = prometheus.NewAppMetrics(rt.Collector)
	}

	solver, err := newSolver(cfg.Solver, logger)
	if err != nil {
		return nil, err
	}
	if rt.Metrics != nil {
		solver = prometheus.Instrument(solver, rt.Metrics)
	}

	if !opts.Offline {
		if err := rt.connect(ctx); err != nil {
			return nil, err
		}
	}
	if rt.Cache != nil {
		var rec optimization.CacheRecorder
		if rt.Metrics != nil {
			rec = rt.Metrics
		}
		solver = optimization.NewCachedSolver(solver, rt.Cache, cfg.Redis.CacheTTL, rec, logger)
	}
	rt.Solver = solver

	var observer compiler.Observer
	sc := optimization.ServiceConfig{
		Catalog:  superstructure.NewCatalog(cfg.Compiler.CatalogOptions(), logger),
		Solver:   solver,
		Scenario: cfg.ScenarioEngine(),
		Progress: opts.Progress,
		Logger:   logger,
	}
	if rt.Metrics != nil {
		observer = rt.Metrics
		sc.Metrics = rt.Metrics
	}
	sc.Compiler = compiler.New(logger, observer)
	if rt.Runs != nil {
		sc.Runs = rt.Runs
	}
	if rt.Artifacts != nil {
		sc.Artifacts = rt.Artifacts
	}
	if rt.Producer != nil {
		sc.Events = rt.Producer
	}
	rt.Service, err = optimization.NewService(sc)
	if err != nil {
		return nil, err
	}

	logger.Info("runtime ready",
		logging.String("solver", solver.Name()),
		logging.Bool("cache", rt.Cache != nil),
		logging.Bool("runs", rt.Runs != nil),
		logging.Bool("artifacts", rt.Artifacts != nil),
		logging.Bool("events", rt.Producer != nil),
		logging.Bool("metrics", rt.Metrics != nil))
	return rt, nil
}

func newSolver(cfg config.SolverConfig, logger logging.Logger) (milp.Solver, error) {
	switch cfg.Backend {
	case config.SolverHiGHS:
		s := highs.New(cfg.HiGHS, logger)
		if !s.Available() {
			return nil, errors.New(errors.ErrCodeSolverUnavailable, "highs binary not found").WithDetail(cfg.HiGHS.Binary)
		}
		return s, nil
	case config.SolverBnB, "":
		return bnb.New(logger), nil
	default:
		return nil, errors.InvalidParam("unknown solver backend").WithDetail(cfg.Backend)
	}
}

func (rt *Runtime) connect(ctx context.Context) error {
	cfg, logger := rt.Config, rt.Logger

	if cfg.Redis.Enabled {
		client, err := redis.NewClient(cfg.Redis.Config, logger)
		if err != nil {
			return err
		}
		rt.Redis = client
		rt.closers = append(rt.closers, client.Close)
		rt.Cache = redis.NewCache(client, logger, redis.WithDefaultTTL(cfg.Redis.CacheTTL))
	}

	if cfg.Postgres.Enabled {
		conn, err := postgres.NewConnection(cfg.Postgres.Config, logger)
		if err != nil {
			return err
		}
		rt.Postgres = conn
		rt.closers = append(rt.closers, conn.Close)
		if err := conn.Migrate(); err != nil {
			return err
		}
		rt.Runs = repositories.NewPostgresRunRepo(conn, logger)
	}

	if cfg.MinIO.Enabled {
		client, err := minio.NewClient(cfg.MinIO.Config, logger)
		if err != nil {
			return err
		}
		rt.MinIO = client
		rt.closers = append(rt.closers, client.Close)
		if err := client.EnsureBuckets(ctx); err != nil {
			return err
		}
		rt.Artifacts = minio.NewArtifactStore(client, logger)
	}

	if cfg.Kafka.Enabled {
		p, err := kafka.NewProducer(cfg.Kafka.Producer(), logger)
		if err != nil {
			return err
		}
		rt.Producer = p
		rt.closers = append(rt.closers, p.Close)
	}
	return nil
}

// Health probes every connected backing service.
func (rt *Runtime) Health(ctx context.Context) []common.ComponentHealth {
	var out []common.ComponentHealth
	probe := func(name string, check func(context.Context) error) {
		start := time.Now()
		h := common.ComponentHealth{Name: name, Status: common.HealthUp}
		if err := check(ctx); err != nil {
			h.Status = common.HealthDown
			h.Message = err.Error()
		}
		h.Latency = time.Since(start)
		out = append(out, h)
	}
	if rt.Redis != nil {
		probe("redis", rt.Redis.Ping)
	}
	if rt.Postgres != nil {
		probe("postgres", rt.Postgres.HealthCheck)
	}
	if rt.MinIO != nil {
		probe("minio", rt.MinIO.HealthCheck)
	}
	return out
}

// MetricsHandler serves the metrics registry, or nil when metrics are
// disabled.
func (rt *Runtime) MetricsHandler() http.Handler {
	if rt.Collector == nil {
		return nil
	}
	return rt.Collector.Handler()
}

// Close releases the connections in reverse order of opening.
func (rt *Runtime) Close() error {
	var first error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	rt.closers = nil
	return first
}
