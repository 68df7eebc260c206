package config

import "time"

// ─────────────────────────────────────────────────────────────────────────────
// Default value constants
// ─────────────────────────────────────────────────────────────────────────────

const (
	DefaultSolverBackend  = SolverBnB
	DefaultTimeLimit      = 60 * time.Second
	DefaultMaxNodes       = 100000
	DefaultRelativeGap    = 1e-6
	DefaultIntegralityTol = 1e-6

	DefaultScenarioWorkers = 4

	DefaultBigM        = 100000.0
	DefaultResolution  = 3
	DefaultCapexDetail = "average"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultRedisAddr     = "localhost:6379"
	DefaultRedisCacheTTL = 24 * time.Hour

	DefaultPostgresHost = "localhost"
	DefaultPostgresPort = 5432
	DefaultPostgresDB   = "procsynth"

	DefaultMinIOEndpoint = "localhost:9000"

	DefaultKafkaBroker  = "localhost:9092"
	DefaultKafkaGroupID = "procsynth-worker"

	DefaultMetricsAddr      = ":9090"
	DefaultMetricsPath      = "/metrics"
	DefaultMetricsNamespace = "procsynth"

	DefaultWorkerRunTimeout = 30 * time.Minute
	DefaultWorkerLockTTL    = time.Hour
	DefaultWorkerHealthAddr = ":8081"
)

// ApplyDefaults fills every zero-value field in cfg with its default. Values
// already set by the caller are left unchanged.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	// ── Solver ────────────────────────────────────────────────────────────────
	if cfg.Solver.Backend == "" {
		cfg.Solver.Backend = DefaultSolverBackend
	}
	if cfg.Solver.TimeLimit == 0 {
		cfg.Solver.TimeLimit = DefaultTimeLimit
	}
	if cfg.Solver.MaxNodes == 0 {
		cfg.Solver.MaxNodes = DefaultMaxNodes
	}
	if cfg.Solver.RelativeGap == 0 {
		cfg.Solver.RelativeGap = DefaultRelativeGap
	}
	if cfg.Solver.IntegralityTol == 0 {
		cfg.Solver.IntegralityTol = DefaultIntegralityTol
	}

	// ── Scenario ──────────────────────────────────────────────────────────────
	if cfg.Scenario.Workers == 0 {
		cfg.Scenario.Workers = DefaultScenarioWorkers
	}

	// ── Compiler ──────────────────────────────────────────────────────────────
	if cfg.Compiler.BigM == 0 {
		cfg.Compiler.BigM = DefaultBigM
	}
	if cfg.Compiler.Resolution == 0 {
		cfg.Compiler.Resolution = DefaultResolution
	}
	if cfg.Compiler.CapexDetail == "" {
		cfg.Compiler.CapexDetail = DefaultCapexDetail
	}

	// ── Log ───────────────────────────────────────────────────────────────────
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}

	// ── Backing services ──────────────────────────────────────────────────────
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = DefaultRedisAddr
	}
	if cfg.Redis.CacheTTL == 0 {
		cfg.Redis.CacheTTL = DefaultRedisCacheTTL
	}
	if cfg.Postgres.Host == "" {
		cfg.Postgres.Host = DefaultPostgresHost
	}
	if cfg.Postgres.Port == 0 {
		cfg.Postgres.Port = DefaultPostgresPort
	}
	if cfg.Postgres.Database == "" {
		cfg.Postgres.Database = DefaultPostgresDB
	}
	if cfg.MinIO.Endpoint == "" {
		cfg.MinIO.Endpoint = DefaultMinIOEndpoint
	}
	if len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{DefaultKafkaBroker}
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = DefaultKafkaGroupID
	}

	// ── Metrics ───────────────────────────────────────────────────────────────
	if cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = DefaultMetricsAddr
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}

	// ── Worker ────────────────────────────────────────────────────────────────
	if cfg.Worker.RunTimeout == 0 {
		cfg.Worker.RunTimeout = DefaultWorkerRunTimeout
	}
	if cfg.Worker.LockTTL == 0 {
		cfg.Worker.LockTTL = DefaultWorkerLockTTL
	}
	if cfg.Worker.HealthAddr == "" {
		cfg.Worker.HealthAddr = DefaultWorkerHealthAddr
	}
}

// Default returns a Config holding only defaults.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
