package api

import (
	"log/slog"

	"github.com/shaiso/flowgraph/internal/engine"
	"github.com/shaiso/flowgraph/internal/repo"
	"github.com/shaiso/flowgraph/internal/trigger"
)

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	workflows  repo.WorkflowStore
	executions repo.ExecutionStore
	engine     *engine.Engine
	triggers   *trigger.Service
	logger     *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	Workflows  repo.WorkflowStore
	Executions repo.ExecutionStore
	Engine     *engine.Engine
	Triggers   *trigger.Service
	Logger     *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		workflows:  cfg.Workflows,
		executions: cfg.Executions,
		engine:     cfg.Engine,
		triggers:   cfg.Triggers,
		logger:     logger,
	}
}
