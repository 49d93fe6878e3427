// flowgraph Scheduler — запускает schedule триггеры активных workflows.
//
// Scheduler:
//   - Выбирает лидера через pg_try_advisory_lock, тики выполняет только лидер
//   - Читает активные workflows из Postgres
//   - Публикует workflow.trigger в RabbitMQ, runs выполняет flowgraph-api
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/flowgraph/internal/mq"
	"github.com/shaiso/flowgraph/internal/repo"
	"github.com/shaiso/flowgraph/internal/scheduler"
	"github.com/shaiso/flowgraph/internal/telemetry"
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger("flowgraph-scheduler")
	logger.Info("starting flowgraph-scheduler")

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// DB pool
	pool, err := repo.NewPool(ctx)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("database connected")

	// RabbitMQ
	mqURL := os.Getenv("RABBITMQ_URL")
	if mqURL == "" {
		mqURL = mq.DefaultURL()
	}

	mqConn, err := mq.NewConnection(mqURL, "flowgraph-scheduler", logger)
	if err != nil {
		logger.Error("failed to connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer mqConn.Close()

	if err := mq.SetupTopology(ctx, mqConn); err != nil {
		logger.Warn("failed to setup topology", "error", err)
	}

	sched := scheduler.New(scheduler.Config{
		Workflows: repo.NewWorkflowRepo(pool),
		Firer:     mq.NewPublisher(mqConn, logger),
		Logger:    logger,
	})

	leader := scheduler.NewLeader(pool, scheduler.LockKey, logger)

	tick := 15 * time.Second
	if v := os.Getenv("SCHED_TICK"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			logger.Error("invalid SCHED_TICK", "value", v)
			os.Exit(1)
		}
		tick = d
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		sched.Run(ctx, tick, leader.IsLeader)
	}()
	logger.Info("scheduler started", "tick", tick)

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	port := ":8081"
	if v := os.Getenv("SCHED_PORT"); v != "" {
		port = ":" + v
	}

	server := &http.Server{Addr: port, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		logger.Info("listening", "addr", port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	// Ожидаем сигнал завершения
	<-ctx.Done()
	<-done

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	leader.Release(shutdownCtx)
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	logger.Info("flowgraph-scheduler stopped")
}
