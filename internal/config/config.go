// Package config provides configuration loading, defaults, and validation for
// ProcSynth.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/turtacn/ProcSynth/internal/domain/capex"
	"github.com/turtacn/ProcSynth/internal/domain/distributor"
	"github.com/turtacn/ProcSynth/internal/domain/milp"
	"github.com/turtacn/ProcSynth/internal/domain/scenario"
	"github.com/turtacn/ProcSynth/internal/domain/superstructure"
	"github.com/turtacn/ProcSynth/internal/infrastructure/database/postgres"
	"github.com/turtacn/ProcSynth/internal/infrastructure/database/redis"
	"github.com/turtacn/ProcSynth/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/ProcSynth/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ProcSynth/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/ProcSynth/internal/infrastructure/solver/highs"
	"github.com/turtacn/ProcSynth/internal/infrastructure/storage/minio"
	"github.com/turtacn/ProcSynth/pkg/errors"
)

// Solver backends.
const (
	SolverBnB   = "bnb"
	SolverHiGHS = "highs"
)

// Config is the root configuration object.
type Config struct {
	Solver   SolverConfig      `mapstructure:"solver"`
	Scenario ScenarioConfig    `mapstructure:"scenario"`
	Compiler CompilerConfig    `mapstructure:"compiler"`
	Log      logging.LogConfig `mapstructure:"log"`
	Redis    RedisConfig       `mapstructure:"redis"`
	Postgres PostgresConfig    `mapstructure:"postgres"`
	MinIO    MinIOConfig       `mapstructure:"minio"`
	Kafka    KafkaConfig       `mapstructure:"kafka"`
	Metrics  MetricsConfig     `mapstructure:"metrics"`
	Worker   WorkerConfig      `mapstructure:"worker"`
}

// SolverConfig selects and tunes the MILP backend.
type SolverConfig struct {
	Backend        string        `mapstructure:"backend"`
	TimeLimit      time.Duration `mapstructure:"time_limit"`
	MaxNodes       int           `mapstructure:"max_nodes"`
	RelativeGap    float64       `mapstructure:"relative_gap"`
	IntegralityTol float64       `mapstructure:"integrality_tol"`
	HiGHS          highs.Config  `mapstructure:"highs"`
}

// Options converts the section to solver options.
func (s SolverConfig) Options() milp.Options {
	return milp.Options{
		TimeLimit:      s.TimeLimit,
		MaxNodes:       s.MaxNodes,
		RelativeGap:    s.RelativeGap,
		IntegralityTol: s.IntegralityTol,
	}
}

// ScenarioConfig tunes the scenario engine.
type ScenarioConfig struct {
	Workers  int  `mapstructure:"workers"`
	Progress bool `mapstructure:"progress"`
}

// CompilerConfig holds the unit catalog defaults applied while compiling.
type CompilerConfig struct {
	BigM           float64 `mapstructure:"big_m"`
	Resolution     int     `mapstructure:"resolution"`
	CapexDetail    string  `mapstructure:"capex_detail"`
	CapexTolerance float64 `mapstructure:"capex_tolerance"`
}

// CatalogOptions converts the section to catalog options.
func (c CompilerConfig) CatalogOptions() superstructure.CatalogOptions {
	return superstructure.CatalogOptions{
		DefaultBigM:       c.BigM,
		DefaultResolution: c.Resolution,
		CapexDetail:       capex.Detail(c.CapexDetail),
		CapexTolerance:    c.CapexTolerance,
	}
}

// RedisConfig enables the solve-result cache.
type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	CacheTTL     time.Duration `mapstructure:"cache_ttl"`
	redis.Config `mapstructure:",squash"`
}

// PostgresConfig enables the run repository.
type PostgresConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	postgres.Config `mapstructure:",squash"`
}

// MinIOConfig enables artifact and case storage.
type MinIOConfig struct {
	Enabled      bool `mapstructure:"enabled"`
	minio.Config `mapstructure:",squash"`
}

// KafkaConfig enables lifecycle events and the worker's request queue.
type KafkaConfig struct {
	Enabled      bool `mapstructure:"enabled"`
	kafka.Config `mapstructure:",squash"`
}

// MetricsConfig exposes Prometheus metrics.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Addr      string `mapstructure:"addr"`
	Path      string `mapstructure:"path"`
	Namespace string `mapstructure:"namespace"`
}

// Collector converts the section to collector options.
func (m MetricsConfig) Collector() prometheus.CollectorConfig {
	return prometheus.CollectorConfig{
		Namespace:            m.Namespace,
		EnableProcessMetrics: true,
		EnableGoMetrics:      true,
	}
}

// WorkerConfig tunes the queue worker.
type WorkerConfig struct {
	RunTimeout time.Duration `mapstructure:"run_timeout"`
	LockTTL    time.Duration `mapstructure:"lock_ttl"`
	HealthAddr string        `mapstructure:"health_addr"`
}

// ScenarioEngine builds the engine configuration from the solver and scenario
// sections.
func (c *Config) ScenarioEngine() scenario.Config {
	return scenario.Config{Workers: c.Scenario.Workers, Options: c.Solver.Options()}
}

// ─────────────────────────────────────────────────────────────────────────────
// Validation
// ─────────────────────────────────────────────────────────────────────────────

func invalid(format string, args ...interface{}) error {
	return errors.New(errors.ErrCodeValidation, "invalid configuration").WithDetail(fmt.Sprintf(format, args...))
}

// Validate performs semantic validation of the fully-populated Config and
// returns the first problem found.
func (c *Config) Validate() error {
	switch c.Solver.Backend {
	case SolverBnB, SolverHiGHS:
	default:
		return invalid("solver.backend %q is invalid; expected bnb|highs", c.Solver.Backend)
	}
	if c.Solver.TimeLimit < 0 {
		return invalid("solver.time_limit must be >= 0, got %s", c.Solver.TimeLimit)
	}
	if c.Solver.MaxNodes < 1 {
		return invalid("solver.max_nodes must be >= 1, got %d", c.Solver.MaxNodes)
	}
	if c.Solver.RelativeGap < 0 || c.Solver.RelativeGap >= 1 {
		return invalid("solver.relative_gap must be in [0, 1), got %g", c.Solver.RelativeGap)
	}
	if c.Solver.HiGHS.Threads < 0 {
		return invalid("solver.highs.threads must be >= 0, got %d", c.Solver.HiGHS.Threads)
	}

	if c.Scenario.Workers < 1 {
		return invalid("scenario.workers must be >= 1, got %d", c.Scenario.Workers)
	}

	if c.Compiler.BigM <= 0 {
		return invalid("compiler.big_m must be > 0, got %g", c.Compiler.BigM)
	}
	if c.Compiler.Resolution < 1 || c.Compiler.Resolution > distributor.MaxResolution {
		return invalid("compiler.resolution must be in [1, %d], got %d", distributor.MaxResolution, c.Compiler.Resolution)
	}
	if !capex.Detail(c.Compiler.CapexDetail).Valid() {
		return invalid("compiler.capex_detail %q is invalid; expected rough|average|fine|adaptive", c.Compiler.CapexDetail)
	}

	switch strings.ToLower(c.Log.Level) {
	case logging.LevelDebug, logging.LevelInfo, logging.LevelWarn, logging.LevelError:
	default:
		return invalid("log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return invalid("log.format %q is invalid; expected json|console", c.Log.Format)
	}

	if c.Redis.Enabled {
		if c.Redis.Addr == "" && len(c.Redis.ClusterAddrs) == 0 && len(c.Redis.SentinelAddrs) == 0 {
			return invalid("redis.addr is required when redis is enabled")
		}
		if c.Redis.DB < 0 {
			return invalid("redis.db must be >= 0, got %d", c.Redis.DB)
		}
	}
	if c.Postgres.Enabled {
		if c.Postgres.Host == "" {
			return invalid("postgres.host is required when postgres is enabled")
		}
		if c.Postgres.Port < 1 || c.Postgres.Port > 65535 {
			return invalid("postgres.port %d is out of range [1, 65535]", c.Postgres.Port)
		}
		if c.Postgres.Database == "" {
			return invalid("postgres.database is required when postgres is enabled")
		}
	}
	if c.MinIO.Enabled && c.MinIO.Endpoint == "" {
		return invalid("minio.endpoint is required when minio is enabled")
	}
	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return invalid("kafka.brokers must contain at least one broker address")
		}
		if c.Kafka.GroupID == "" {
			return invalid("kafka.group_id is required when kafka is enabled")
		}
	}
	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return invalid("metrics.addr is required when metrics are enabled")
	}
	if c.Worker.RunTimeout < 0 {
		return invalid("worker.run_timeout must be >= 0, got %s", c.Worker.RunTimeout)
	}
	return nil
}
