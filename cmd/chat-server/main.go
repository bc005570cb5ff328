// cmd/chat-server/main.go
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

	"travelgo-chat/internal/chat"
	"travelgo-chat/internal/common/auth"
	"travelgo-chat/internal/common/camunda"
	"travelgo-chat/internal/common/config"
	"travelgo-chat/internal/common/database"
	"travelgo-chat/internal/common/logger"
	"travelgo-chat/internal/common/observability"
	"travelgo-chat/internal/common/validation"
	"travelgo-chat/internal/server"
	ac "travelgo-chat/internal/workers/chat/assemble-context"
	ci "travelgo-chat/internal/workers/chat/classify-intent"
	gr "travelgo-chat/internal/workers/chat/generate-reply"
	qe "travelgo-chat/internal/workers/data-access/query-elasticsearch"
	qp "travelgo-chat/internal/workers/data-access/query-postgresql"
	"travelgo-chat/pkg/registry"
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
		bootLog := logger.New("info", "console")
		bootLog.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting chat server...",
		zap.String("app", cfg.App.Name),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New("travelgo-chat")
	defer obs.Shutdown()

	ctx := context.Background()

	reg, err := loadRegistry(cfg.Chat.SchemaPath)
	if err != nil {
		zapLog.Fatal("schema registry failed to load", zap.Error(err))
	}
	zapLog.Info("Schema registry loaded",
		zap.Int("version", reg.Version()),
		zap.Strings("tables", reg.Tables()),
	)

	// --- Init PostgreSQL with retry ---
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

	// --- Init Redis with retry ---
	var rdb *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		rdb, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return rdb.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer rdb.Close()
	zapLog.Info("Redis connected successfully")

	checks := map[string]server.Check{
		"postgres": pg.Ping,
		"redis":    rdb.Ping,
	}

	queryTimeout := config.GetDuration(cfg.Chat.QueryTimeout)
	relational := qp.NewHandler(&qp.Config{Timeout: queryTimeout}, pg.DB, log)

	// --- Init Elasticsearch with retry, only when some tables are served by it ---
	var search ac.PlanExecutor
	if len(cfg.Chat.SearchTables) > 0 {
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
		zapLog.Info("Elasticsearch connected successfully", zap.Strings("searchTables", cfg.Chat.SearchTables))

		search = qe.NewHandler(&qe.Config{
			Timeout:     queryTimeout,
			IndexPrefix: cfg.Database.Elasticsearch.IndexPrefix,
			PrimaryKeys: primaryKeys(reg, cfg.Chat.SearchTables),
		}, esClient.Client, log)
		checks["elasticsearch"] = esClient.Ping
	}

	executor := ac.NewRouter(relational, search, cfg.Chat.SearchTables, cfg.Database.Elasticsearch.IndexPrefix)

	generator := gr.NewHandler(&gr.Config{
		BaseURL:     cfg.APIs.GenAI.BaseURL,
		APIKey:      cfg.APIs.GenAI.APIKey,
		Model:       cfg.APIs.GenAI.Model,
		MaxTokens:   cfg.APIs.GenAI.MaxTokens,
		Temperature: cfg.APIs.GenAI.Temperature,
		Timeout:     config.GetDuration(cfg.Chat.GenerationTimeout),
	}, log)

	stages, err := chat.NewStages(chat.StageOptions{
		Chat:      cfg.Chat,
		Registry:  reg,
		Executor:  executor,
		Generator: generator,
		Logger:    log,
	})
	if err != nil {
		zapLog.Fatal("pipeline setup failed", zap.Error(err))
	}
	service := chat.NewService(stages, obs, log)

	identities := auth.NewResolver(
		auth.NewKeycloakClientFromConfig(cfg.Auth.Keycloak),
		rdb.Client,
		cfg.Auth.RevokedTokenPrefix,
		log,
	)

	// --- Optional Zeebe workers ---
	var zeebe *camunda.Client
	var workers []*camunda.Worker
	if cfg.Camunda.Enabled {
		err = retryWithBackoff(func() error {
			var err error
			zeebe, err = camunda.NewClient(cfg.Camunda.BrokerAddress)
			return err
		}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
		if err != nil {
			zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
		}
		zapLog.Info("Zeebe client connected successfully")
		checks["zeebe"] = zeebe.HealthCheck

		if config.IsWorkerEnabled(cfg, chat.JobType) {
			wcfg := config.GetWorkerConfig(cfg, chat.JobType)
			timeout := config.GetDuration(wcfg.Timeout)
			workers = append(workers, zeebe.StartWorker(chat.JobType, wcfg.MaxJobsActive, timeout,
				service.JobHandler(identities, timeout), zapLog))
		}
		if config.IsWorkerEnabled(cfg, ci.TaskType) {
			wcfg := config.GetWorkerConfig(cfg, ci.TaskType)
			classifyCfg := ci.LoadConfig()
			classifyCfg.OnTopicThreshold = cfg.Chat.OnTopicThreshold
			classifyCfg.Timeout = config.GetDuration(wcfg.Timeout)
			classifier := chat.NewClassifier(classifyCfg, log)
			workers = append(workers, zeebe.StartWorker(ci.TaskType, wcfg.MaxJobsActive,
				config.GetDuration(wcfg.Timeout), classifier.Handle, zapLog))
		}
	}

	validator, err := validation.NewChatRequestValidator(cfg.Chat.MaxMessageLength)
	if err != nil {
		zapLog.Fatal("chat request schema failed to compile", zap.Error(err))
	}

	api, err := server.New(server.Options{
		Chat:           service,
		Identities:     identities,
		Validator:      validator,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Checks:         checks,
		Logger:         log,
	})
	if err != nil {
		zapLog.Fatal("http server setup failed", zap.Error(err))
	}

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      api.Router(),
		ReadTimeout:  config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout),
	}

	go func() {
		zapLog.Info("HTTP server listening", zap.String("address", cfg.Server.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, draining requests...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("HTTP server shutdown failed", zap.Error(err))
	}

	for _, w := range workers {
		w.Stop()
	}
	if zeebe != nil {
		if err := zeebe.Close(); err != nil {
			zapLog.Error("Error closing Zeebe client", zap.Error(err))
		}
	}

	zapLog.Info("Chat server stopped gracefully")
}

func loadRegistry(path string) (*registry.Registry, error) {
	if path == "" {
		return registry.Default()
	}
	return registry.Load(path)
}

// primaryKeys maps each search table to its registry primary key.
func primaryKeys(reg *registry.Registry, tables []string) map[string]string {
	keys := make(map[string]string, len(tables))
	for _, name := range tables {
		if t, ok := reg.Table(name); ok {
			keys[name] = t.PrimaryKey
		}
	}
	return keys
}
