// flowgraph API — HTTP API и движок выполнения workflow в одном процессе.
//
// API:
//   - Управляет workflows в хранилище (Postgres или память)
//   - Запускает runs синхронно (execute) и в фоне (webhooks)
//   - Потребляет сообщения workflow.trigger из RabbitMQ, если RABBITMQ_URL задан
//   - Публикует execution.finished после каждого run
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/flowgraph/internal/api"
	"github.com/shaiso/flowgraph/internal/engine"
	"github.com/shaiso/flowgraph/internal/mail"
	"github.com/shaiso/flowgraph/internal/mq"
	"github.com/shaiso/flowgraph/internal/repo"
	"github.com/shaiso/flowgraph/internal/steps"
	"github.com/shaiso/flowgraph/internal/telemetry"
	"github.com/shaiso/flowgraph/internal/trigger"
)

var (
	startTime = time.Now()
	reqTotal  = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flowgraph_api_healthz_requests_total",
		Help: "Total health check requests handled by flowgraph-api",
	})
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger("flowgraph-api")
	logger.Info("starting flowgraph-api")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Хранилище
	var (
		workflows  repo.WorkflowStore
		executions repo.ExecutionStore
		recorder   engine.Notifier
		querier    steps.Querier
	)

	switch storage := os.Getenv("FLOWGRAPH_STORAGE"); storage {
	case "memory":
		store := repo.NewMemoryStore()
		workflows, executions, recorder = store, store.Executions(), store
		logger.Warn("using in-memory storage, data is lost on restart")

	case "", "postgres":
		pool, err := repo.NewPool(ctx)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		logger.Info("connected to database")

		if err := repo.EnsureSchema(ctx, pool); err != nil {
			logger.Error("failed to create schema", "error", err)
			os.Exit(1)
		}

		execRepo := repo.NewExecutionRepo(pool)
		workflows, executions, recorder = repo.NewWorkflowRepo(pool), execRepo, execRepo
		querier = pool

	default:
		logger.Error("unknown storage", "storage", storage)
		os.Exit(1)
	}

	// Отправка писем
	mailer, err := newMailer(ctx, logger)
	if err != nil {
		logger.Error("failed to create mail sender", "error", err)
		os.Exit(1)
	}

	// Движок
	registry := steps.DefaultRegistry(steps.Options{
		Logger: logger,
		Mailer: mailer,
		DB:     querier,
	})

	envPrefix := os.Getenv("FLOWGRAPH_ENV_PREFIX")
	if envPrefix == "" {
		envPrefix = "FLOWGRAPH_VAR_"
	}

	eng := engine.New(engine.Config{
		Registry:  registry,
		Logger:    logger,
		Metrics:   telemetry.NewMetrics(prometheus.DefaultRegisterer),
		Notifiers: []engine.Notifier{recorder},
		Env:       engine.EnvFromProcess(envPrefix),
	})

	triggers := trigger.New(trigger.Config{
		Workflows: workflows,
		Engine:    eng,
		Logger:    logger,
	})

	// RabbitMQ (опционально)
	var listener *trigger.Listener
	if mqURL := os.Getenv("RABBITMQ_URL"); mqURL != "" {
		mqConn, err := mq.NewConnection(mqURL, "flowgraph-api", logger)
		if err != nil {
			logger.Warn("RabbitMQ not available, running without queue triggers", "error", err)
		} else {
			defer mqConn.Close()
			logger.Info("RabbitMQ connected")

			if err := mq.SetupTopology(ctx, mqConn); err != nil {
				logger.Warn("failed to setup topology", "error", err)
			}

			eng.AddNotifier(mq.NewPublisher(mqConn, logger))

			listener = trigger.NewListener(triggers, mqConn, envInt("MQ_PREFETCH", 4))
			listener.Start(ctx)
		}
	} else {
		logger.Info("RABBITMQ_URL not set, queue triggers disabled")
	}

	handler := api.NewHandler(api.Config{
		Workflows:  workflows,
		Executions: executions,
		Engine:     eng,
		Triggers:   triggers,
		Logger:     logger,
	})

	mux := http.NewServeMux()

	// Health и metrics
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		reqTotal.Inc()
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok %s", time.Since(startTime))
	})
	mux.Handle("/metrics", promhttp.Handler())

	// Регистрируем API маршруты
	handler.RegisterRoutes(mux)

	addr := ":8080"
	if v := os.Getenv("API_PORT"); v != "" {
		addr = ":" + v
	}

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			cancel()
		}
	}()

	// Ожидаем сигнал завершения
	<-ctx.Done()
	logger.Info("shutting down")

	// Graceful shutdown с таймаутом 10 секунд
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	if listener != nil {
		listener.Stop()
	}
	if err := triggers.Shutdown(shutdownCtx); err != nil {
		logger.Error("runs did not finish", "error", err)
	}

	logger.Info("stopped")
}

// newMailer выбирает SES, если заданы MAIL_FROM и AWS_REGION, иначе пишет письма в лог.
func newMailer(ctx context.Context, logger *slog.Logger) (steps.Mailer, error) {
	from := os.Getenv("MAIL_FROM")
	region := os.Getenv("AWS_REGION")

	if from == "" || region == "" {
		logger.Info("MAIL_FROM or AWS_REGION not set, emails are written to the log")
		return mail.NewLogSender(logger, from), nil
	}

	sender, err := mail.NewSESSender(ctx, mail.SESConfig{
		Region:          region,
		AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
		SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
		From:            from,
	})
	if err != nil {
		return nil, err
	}
	logger.Info("SES mail sender configured", "region", region)
	return sender, nil
}

func envInt(key string, def int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil || v <= 0 {
		return def
	}
	return v
}
