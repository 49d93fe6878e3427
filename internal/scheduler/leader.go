package scheduler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

// LockKey — ключ advisory lock планировщика.
const LockKey int64 = 424242

// Leader — выбор лидера через pg_try_advisory_lock.
//
// Advisory lock принадлежит сессии, поэтому Leader держит
// отдельное соединение из пула, пока он лидер.
type Leader struct {
	pool   *pgxpool.Pool
	key    int64
	logger *slog.Logger

	conn *pgxpool.Conn
}

// NewLeader создаёт Leader для ключа key.
func NewLeader(pool *pgxpool.Pool, key int64, logger *slog.Logger) *Leader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Leader{pool: pool, key: key, logger: logger}
}

// IsLeader пытается получить или подтвердить лидерство.
func (l *Leader) IsLeader(ctx context.Context) bool {
	ok, err := l.tryAcquire(ctx)
	if err != nil {
		l.logger.Warn("leader election failed", "error", err)
		return false
	}
	return ok
}

func (l *Leader) tryAcquire(ctx context.Context) (bool, error) {
	if l.conn != nil {
		// Соединение живо — лидерство сохраняется
		if err := l.conn.Ping(ctx); err == nil {
			return true, nil
		}
		l.logger.Warn("leader connection lost")
		l.conn.Release()
		l.conn = nil
	}

	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire conn: %w", err)
	}

	var ok bool
	if err := conn.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", l.key).Scan(&ok); err != nil {
		conn.Release()
		return false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !ok {
		conn.Release()
		return false, nil
	}

	l.conn = conn
	l.logger.Info("became scheduler leader", "lock_key", l.key)
	return true, nil
}

// Release отпускает лидерство.
func (l *Leader) Release(ctx context.Context) {
	if l.conn == nil {
		return
	}
	if _, err := l.conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", l.key); err != nil {
		l.logger.Warn("advisory unlock failed", "error", err)
	}
	l.conn.Release()
	l.conn = nil
}
