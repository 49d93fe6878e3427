package steps

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/shaiso/flowgraph/internal/domain"
)

// Ключи конфигурации database.
const (
	configDBOperation = "operation"
	configDBQuery     = "query"
	configDBParams    = "params"
	configDBMaxRows   = "max_rows"
)

// Операции database шага.
const (
	dbOperationQuery   = "query"
	dbOperationExecute = "execute"

	defaultMaxRows = 1000
)

// Querier — подключение к PostgreSQL. *pgxpool.Pool удовлетворяет интерфейсу.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// DatabaseStep — шаг SQL запроса.
//
// Конфигурация:
//
//	{
//	    "operation": "query",   // или "execute"
//	    "query": "SELECT id, email FROM users WHERE plan = $1",
//	    "params": ["{{ .Input.plan }}"],
//	    "max_rows": 1000
//	}
//
// Outputs:
//
//	query:   {"rows": [{"id": 1, "email": "..."}], "rowCount": 1, "truncated": false}
//	execute: {"rowsAffected": 3}
type DatabaseStep struct {
	db Querier
}

// NewDatabaseStep создаёт DatabaseStep. db может быть nil.
func NewDatabaseStep(db Querier) *DatabaseStep {
	return &DatabaseStep{db: db}
}

// Kind возвращает ключ шага.
func (s *DatabaseStep) Kind() domain.Kind {
	return domain.Kind{Category: domain.CategoryAction, Subtype: domain.SubtypeDatabase}
}

// Validate проверяет запрос, операцию и параметры.
func (s *DatabaseStep) Validate(config map[string]any) []string {
	var errs []string
	if strings.TrimSpace(GetConfigString(config, configDBQuery)) == "" {
		errs = append(errs, "query is required")
	}
	switch s.operation(config) {
	case dbOperationQuery, dbOperationExecute:
	default:
		errs = append(errs, "operation must be query or execute")
	}
	if v, ok := config[configDBParams]; ok && v != nil {
		if _, isList := v.([]any); !isList {
			errs = append(errs, "params must be an array")
		}
	}
	if GetConfigInt(config, configDBMaxRows) < 0 {
		errs = append(errs, "max_rows must not be negative")
	}
	return errs
}

// DefaultConfig возвращает SELECT-запрос без текста.
func (s *DatabaseStep) DefaultConfig() map[string]any {
	return map[string]any{
		configDBOperation: dbOperationQuery,
		configDBQuery:     "",
		configDBParams:    []any{},
		configDBMaxRows:   defaultMaxRows,
	}
}

// Execute выполняет запрос.
func (s *DatabaseStep) Execute(ctx context.Context, ec *ExecContext) Result {
	if errs := s.Validate(ec.Config); len(errs) > 0 {
		return Fail("database validation failed: %s", strings.Join(errs, ", "))
	}
	if s.db == nil {
		return Fail("database is not configured")
	}

	query := GetConfigString(ec.Config, configDBQuery)
	params, _ := ec.Config[configDBParams].([]any)

	if s.operation(ec.Config) == dbOperationExecute {
		tag, err := s.db.Exec(ctx, query, params...)
		if err != nil {
			return Fail("database execute: %v", err)
		}
		return Ok(map[string]any{"rowsAffected": tag.RowsAffected()})
	}

	maxRows := GetConfigInt(ec.Config, configDBMaxRows)
	if maxRows == 0 {
		maxRows = defaultMaxRows
	}

	rows, err := s.db.Query(ctx, query, params...)
	if err != nil {
		return Fail("database query: %v", err)
	}
	defer rows.Close()

	// Читаем не больше maxRows+1 строк: лишняя строка только отмечает усечение
	items := make([]any, 0, min(maxRows, 64))
	truncated := false
	for rows.Next() {
		if len(items) == maxRows {
			truncated = true
			break
		}
		rec, err := pgx.RowToMap(rows)
		if err != nil {
			return Fail("database query: %v", err)
		}
		items = append(items, rec)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return Fail("database query: %v", err)
	}

	return Ok(map[string]any{
		"rows":      items,
		"rowCount":  len(items),
		"truncated": truncated,
	})
}

// operation возвращает операцию, по умолчанию query.
func (s *DatabaseStep) operation(config map[string]any) string {
	op := strings.ToLower(strings.TrimSpace(GetConfigString(config, configDBOperation)))
	if op == "" {
		return dbOperationQuery
	}
	return op
}
