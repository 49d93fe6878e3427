package telemetry

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// LoggerConfig — параметры логгера сервиса.
type LoggerConfig struct {
	// Service добавляется в каждую запись как атрибут service.
	Service string

	Level slog.Level

	// Format — "json" или "text".
	Format string

	// Output — куда писать (default: os.Stdout).
	Output io.Writer
}

// LoggerConfigFromEnv читает LOG_LEVEL и LOG_FORMAT.
func LoggerConfigFromEnv(service string) LoggerConfig {
	return LoggerConfig{
		Service: service,
		Level:   LogLevel(),
		Format:  os.Getenv("LOG_FORMAT"),
	}
}

// ParseLevel разбирает уровень: DEBUG, INFO, WARN (WARNING), ERROR.
// Регистр не важен, неизвестное значение даёт INFO.
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LogLevel возвращает уровень из LOG_LEVEL.
func LogLevel() slog.Level {
	return ParseLevel(os.Getenv("LOG_LEVEL"))
}

// NewLogger создаёт логгер по конфигурации.
// На уровне DEBUG в записи добавляется источник.
func NewLogger(cfg LoggerConfig) *slog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}

	opts := &slog.HandlerOptions{
		Level:     cfg.Level,
		AddSource: cfg.Level <= slog.LevelDebug,
	}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}

	logger := slog.New(handler)
	if cfg.Service != "" {
		logger = logger.With("service", cfg.Service)
	}
	return logger
}

// SetupLogger создаёт логгер сервиса из окружения и делает его глобальным.
//
// LOG_FORMAT:
//   - "json" (по умолчанию) — для production
//   - "text" — для разработки
func SetupLogger(service string) *slog.Logger {
	logger := NewLogger(LoggerConfigFromEnv(service))
	slog.SetDefault(logger)
	return logger
}

// WithRunID возвращает логгер с добавленным run_id.
func WithRunID(logger *slog.Logger, runID string) *slog.Logger {
	return logger.With("run_id", runID)
}

// WithWorkflowID возвращает логгер с добавленным workflow_id.
func WithWorkflowID(logger *slog.Logger, workflowID string) *slog.Logger {
	return logger.With("workflow_id", workflowID)
}

// WithNodeID возвращает логгер с добавленным node_id.
func WithNodeID(logger *slog.Logger, nodeID string) *slog.Logger {
	return logger.With("node_id", nodeID)
}
