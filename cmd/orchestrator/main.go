// cmd/orchestrator/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"audit-orchestrator/internal/api"
	"audit-orchestrator/internal/capabilities/genai"
	"audit-orchestrator/internal/capabilities/knowledge"
	"audit-orchestrator/internal/common/auth"
	awsclient "audit-orchestrator/internal/common/aws"
	"audit-orchestrator/internal/common/camunda"
	"audit-orchestrator/internal/common/config"
	"audit-orchestrator/internal/common/database"
	"audit-orchestrator/internal/common/logger"
	"audit-orchestrator/internal/common/observability"
	"audit-orchestrator/internal/observations"
	"audit-orchestrator/internal/orchestration/orchestrator"
	"audit-orchestrator/internal/orchestration/registry"
	"audit-orchestrator/internal/results"

	lao "audit-orchestrator/internal/workers/audit/log-audit-observation"
	paq "audit-orchestrator/internal/workers/audit/process-audit-query"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.NewService(cfg.App.Name, cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting audit orchestrator...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New(cfg.App.Name, log)
	if cfg.Tracing.Enabled {
		tracing, err := observability.NewTracing(observability.TracingConfig{
			ServiceName:    cfg.App.Name,
			Version:        cfg.App.Version,
			Environment:    cfg.App.Environment,
			JaegerEndpoint: cfg.Tracing.JaegerEndpoint,
			SampleRatio:    cfg.Tracing.SampleRatio,
		})
		if err != nil {
			zapLog.Warn("tracing disabled", zap.Error(err))
		} else {
			obs = obs.WithTracing(tracing)
		}
	}
	defer obs.Shutdown()

	ctx := context.Background()

	// --- PostgreSQL: observations and stored results ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	observationStore := observations.NewStore(pg.GetDB())
	resultStore, err := results.NewStore(pg.GetDB(), cfg.Results.Table)
	if err != nil {
		zapLog.Fatal("invalid results configuration", zap.Error(err))
	}

	schema := append([]string{}, observations.Schema...)
	if cfg.Results.Persist {
		schema = append(schema, resultStore.Schema()...)
	}
	if err := pg.Migrate(ctx, schema...); err != nil {
		zapLog.Fatal("schema migration failed", zap.Error(err))
	}

	// --- Elasticsearch: knowledge indices ---
	var esClient *database.ElasticsearchClient
	err = retryWithBackoff(func() error {
		var err error
		esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return err
		}
		return esClient.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
	if err != nil {
		zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
	}
	zapLog.Info("Elasticsearch connected successfully")

	// --- Redis: knowledge search cache ---
	var redis *database.RedisClient
	if cfg.Knowledge.CacheEnabled {
		err = retryWithBackoff(func() error {
			var err error
			redis, err = database.NewRedis(cfg.Database.Redis)
			if err != nil {
				return err
			}
			return redis.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		defer redis.Close()
		zapLog.Info("Redis connected successfully")
	}

	reg := loadRegistry(cfg.Orchestrator.RegistryPath, zapLog)
	checkIndices(ctx, esClient, reg, cfg.Knowledge.IndexPrefix, zapLog)

	searcher := knowledge.NewElasticSearcher(knowledge.NewConfig(cfg), esClient.Client, redis.GetClient(), log)
	generator := genai.NewClient(genai.NewConfig(cfg), log)
	orch := orchestrator.NewFromConfig(cfg, reg, searcher, generator, obs, log)

	notifier := newNotifier(ctx, cfg, log, zapLog)

	checks := map[string]api.ReadinessCheck{
		"postgres":      pg.Ping,
		"elasticsearch": esClient.Ping,
	}
	if redis != nil {
		checks["redis"] = redis.Ping
	}

	// --- Zeebe job workers ---
	var pool *camunda.Pool
	if cfg.Camunda.Enabled {
		zeebe, err := camunda.NewClient(ctx, camunda.NewClientConfig(cfg))
		if err != nil {
			zapLog.Fatal("zeebe client failed", zap.Error(err))
		}
		defer zeebe.Close()
		checks["zeebe"] = zeebe.HealthCheck

		var saver paq.ResultSaver
		if cfg.Results.Persist {
			saver = resultStore
		}
		var alerts lao.CriticalNotifier
		if notifier != nil {
			alerts = notifier
		}

		pool = camunda.NewPool(zeebe.GetClient(), log)
		pool.Start(paq.TaskType, cfg.Workers[paq.TaskType],
			paq.NewHandler(paq.NewConfig(cfg), orch, saver, &processAuditQueryLoggerAdapter{log}))
		pool.Start(lao.TaskType, cfg.Workers[lao.TaskType],
			lao.NewHandler(lao.NewConfig(cfg), observationStore, alerts, &logAuditObservationLoggerAdapter{log}))
		zapLog.Info("Zeebe workers registered", zap.Strings("taskTypes", pool.Running()))
	}

	// --- HTTP API ---
	deps := api.Dependencies{
		Queries:        orch,
		Results:        resultStore,
		PersistResults: cfg.Results.Persist,
		Observations:   observationStore,
		Checks:         checks,
		RequestTimeout: config.GetDuration(cfg.Server.WriteTimeout),
	}
	if notifier != nil {
		deps.Notifier = notifier
	}
	if cfg.Auth.Enabled {
		deps.Validator = auth.NewKeycloakClient(
			cfg.Auth.Keycloak.URL,
			cfg.Auth.Keycloak.Realm,
			cfg.Auth.Keycloak.ClientID,
			cfg.Auth.Keycloak.ClientSecret,
		)
	}

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      api.NewServer(deps, log).Router(),
		ReadTimeout:  config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout),
	}

	go func() {
		zapLog.Info("HTTP API listening", zap.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("HTTP server shutdown failed", zap.Error(err))
	}
	if pool != nil {
		pool.Stop()
	}
	zapLog.Info("Audit orchestrator stopped")
}

// loadRegistry reads the registry file, falling back to the built-in registry when
// no path is configured or the file does not exist.
func loadRegistry(path string, log *zap.Logger) *registry.Registry {
	if path == "" {
		return registry.Default()
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		log.Warn("registry file not found, using built-in registry", zap.String("path", path))
		return registry.Default()
	}

	reg, err := registry.Load(path)
	if err != nil {
		log.Fatal("registry load failed", zap.String("path", path), zap.Error(err))
	}
	log.Info("registry loaded", zap.String("path", path), zap.Int("handlers", reg.Len()))
	return reg
}

func checkIndices(ctx context.Context, es *database.ElasticsearchClient, reg *registry.Registry, prefix string, log *zap.Logger) {
	indices := make([]string, 0, reg.Len())
	for _, d := range reg.Descriptors() {
		indices = append(indices, database.IndexName(prefix, d.Index))
	}
	missing, err := es.IndicesExist(ctx, indices)
	if err != nil {
		log.Warn("knowledge index check failed", zap.Error(err))
		return
	}
	if len(missing) > 0 {
		log.Warn("knowledge indices missing; affected handlers will report errors", zap.Strings("indices", missing))
	}
}

func newNotifier(ctx context.Context, cfg *config.Config, log logger.Logger, zapLog *zap.Logger) *observations.Notifier {
	n := cfg.Notifications
	if !n.Email.Enabled && !n.SMS.Enabled {
		return nil
	}

	awsCfg, err := awsclient.LoadConfig(ctx, n.AWS.Region)
	if err != nil {
		zapLog.Warn("AWS config unavailable, critical observation alerts disabled", zap.Error(err))
		return nil
	}
	return observations.NewNotifier(
		observations.NewNotifierConfig(cfg),
		awsclient.NewSESClient(awsCfg),
		awsclient.NewSNSClient(awsCfg),
		log,
	)
}

type processAuditQueryLoggerAdapter struct {
	logger.Logger
}

func (a *processAuditQueryLoggerAdapter) With(fields map[string]interface{}) paq.Logger {
	return &processAuditQueryLoggerAdapter{a.Logger.With(fields)}
}

type logAuditObservationLoggerAdapter struct {
	logger.Logger
}

func (a *logAuditObservationLoggerAdapter) With(fields map[string]interface{}) lao.Logger {
	return &logAuditObservationLoggerAdapter{a.Logger.With(fields)}
}
