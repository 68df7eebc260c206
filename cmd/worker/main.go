// Command worker consumes queued run requests and evaluates them.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/turtacn/ProcSynth/internal/app"
	"github.com/turtacn/ProcSynth/internal/config"
	"github.com/turtacn/ProcSynth/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/ProcSynth/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ProcSynth/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/ProcSynth/internal/interfaces/worker"
	"github.com/turtacn/ProcSynth/pkg/types/common"
)

const shutdownTimeout = 10 * time.Second

// optional components degrade the worker instead of failing its probe.
var optional = map[string]bool{"redis": true}

func main() {
	configPath := flag.String("config", "", "path to configuration file (default: environment only)")
	healthAddr := flag.String("health-addr", "", "health and metrics listen address (overrides worker.health_addr)")
	ensureTopics := flag.Bool("ensure-topics", false, "create the run topics before consuming")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *healthAddr != "" {
		cfg.Worker.HealthAddr = *healthAddr
	}

	logger, err := logging.NewLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logging.SetDefault(logger)

	if err := run(cfg, *configPath, *ensureTopics, logger); err != nil {
		logger.Error("worker stopped with error", logging.Err(err))
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.LoadFromEnv()
	}
	return config.Load(path)
}

func run(cfg *config.Config, configPath string, ensureTopics bool, logger logging.Logger) error {
	if !cfg.Kafka.Enabled || !cfg.MinIO.Enabled {
		return fmt.Errorf("the worker needs kafka and minio enabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if ensureTopics {
		tm, err := kafka.NewTopicManager(cfg.Kafka.Brokers, logger)
		if err != nil {
			return err
		}
		err = tm.EnsureDefaultTopics(ctx)
		tm.Close()
		if err != nil {
			return err
		}
	}

	rt, err := app.New(ctx, cfg, logger, app.Options{})
	if err != nil {
		return err
	}
	defer rt.Close()

	var processed prometheus.CounterVec
	if rt.Metrics != nil {
		processed = rt.Metrics.MessagesProcessed
	}
	handler, err := worker.NewHandler(worker.Config{
		Service:   rt.Service,
		Cases:     rt.Artifacts,
		Locks:     rt.Redis,
		LockTTL:   cfg.Worker.LockTTL,
		Timeout:   cfg.Worker.RunTimeout,
		Processed: processed,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	if configPath != "" {
		err := config.Watch(configPath, func(next *config.Config) {
			handler.SetTimeout(next.Worker.RunTimeout)
			logger.Info("configuration reloaded", logging.Duration("run_timeout", next.Worker.RunTimeout))
		}, func(err error) {
			logger.Warn("ignoring invalid configuration change", logging.Err(err))
		})
		if err != nil {
			return err
		}
	}

	consumer, err := kafka.NewConsumer(cfg.Kafka.Consumer(kafka.TopicRunRequested), logger)
	if err != nil {
		return err
	}
	defer consumer.Close()
	consumer.Subscribe(kafka.TopicRunRequested, handler.Handle)

	srv := &http.Server{Addr: cfg.Worker.HealthAddr, Handler: healthMux(rt, cfg.Metrics.Path), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info("health server listening", logging.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("health server error", logging.Err(err))
		}
	}()

	if err := consumer.Start(ctx); err != nil {
		return err
	}
	logger.Info("worker started", logging.String("topic", kafka.TopicRunRequested), logging.String("group", cfg.Kafka.GroupID))

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("health server shutdown error", logging.Err(err))
	}
	return nil
}

func healthMux(rt *app.Runtime, metricsPath string) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		components := rt.Health(ctx)
		status := common.Overall(components, optional)

		code := http.StatusOK
		if status == common.HealthDown {
			code = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"status": status, "components": components})
	})
	if h := rt.MetricsHandler(); h != nil {
		mux.Handle(metricsPath, h)
	}
	return mux
}
