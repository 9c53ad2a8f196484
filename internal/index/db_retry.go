package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

type retryRow struct {
	ctx     context.Context
	q       querier
	timeout time.Duration
	query   string
	args    []any
	caller  string
}

func (r retryRow) Scan(dest ...any) error {
	_, err := withBusyRetry(r.ctx, r.timeout, "sql query row", r.caller, func() (struct{}, error) {
		return struct{}{}, r.q.QueryRowContext(r.ctx, r.query, r.args...).Scan(dest...)
	})
	return err
}

// withBusyRetry runs fn and retries once while sqlite reports SQLITE_BUSY and
// the lock timeout has not elapsed.
func withBusyRetry[T any](ctx context.Context, timeout time.Duration, op, caller string, fn func() (T, error)) (T, error) {
	start := time.Now()
	for attempt := 0; ; attempt++ {
		res, err := fn()
		if err == nil || !isSQLiteBusy(err) {
			slog.Debug(op+" done", "caller", caller, "duration_ms", time.Since(start).Milliseconds(), "attempts", attempt+1, "err", err)
			return res, err
		}
		reason := ""
		switch {
		case attempt >= 1:
			reason = "max-retries"
		case timeout <= 0:
			reason = "no-timeout"
		case ctx.Err() != nil:
			err = ctx.Err()
			reason = "context"
		case time.Since(start) >= timeout:
			reason = "timeout"
		}
		if reason != "" {
			slog.Debug(op+" done", "caller", caller, "duration_ms", time.Since(start).Milliseconds(), "attempts", attempt+1, "err", err, "reason", reason)
			var zero T
			return zero, err
		}
		slog.Debug(op+" busy", "caller", caller, "attempt", attempt+1, "err", err)
		time.Sleep(retryDelay(attempt))
	}
}

func callerOf(skip int) string {
	_, file, line, ok := runtime.Caller(skip + 1)
	if !ok {
		return "unknown"
	}
	return file + ":" + fmt.Sprint(line)
}

func (i *Index) queryRow(ctx context.Context, q querier, query string, args ...any) rowScanner {
	caller := callerOf(1)
	slog.Debug("sql query row", "query", query, "args", args, "caller", caller)
	return retryRow{ctx: ctx, q: q, timeout: i.lockTimeout, query: query, args: args, caller: caller}
}

func (i *Index) exec(ctx context.Context, q querier, query string, args ...any) (sql.Result, error) {
	caller := callerOf(1)
	slog.Debug("sql exec", "query", query, "args", args, "caller", caller)
	return withBusyRetry(ctx, i.lockTimeout, "sql exec", caller, func() (sql.Result, error) {
		return q.ExecContext(ctx, query, args...)
	})
}

func (i *Index) query(ctx context.Context, q querier, query string, args ...any) (*sql.Rows, error) {
	caller := callerOf(1)
	slog.Debug("sql query", "query", query, "args", args, "caller", caller)
	return withBusyRetry(ctx, i.lockTimeout, "sql query", caller, func() (*sql.Rows, error) {
		return q.QueryContext(ctx, query, args...)
	})
}

func retryDelay(attempt int) time.Duration {
	delay := time.Duration(attempt+1) * 40 * time.Millisecond
	if delay > 300*time.Millisecond {
		delay = 300 * time.Millisecond
	}
	return delay
}

func (i *Index) beginTx(ctx context.Context, name string) (*sql.Tx, time.Time, error) {
	start := time.Now()
	slog.Debug("sql tx begin", "op", name)
	tx, err := i.db.BeginTx(ctx, nil)
	if err != nil {
		slog.Error("sql tx begin failed", "op", name, "err", err)
		return nil, start, err
	}
	return tx, start, nil
}

func (i *Index) commitTx(tx *sql.Tx, name string, start time.Time) error {
	if tx == nil {
		return sql.ErrTxDone
	}
	err := tx.Commit()
	slog.Debug("sql tx commit", "op", name, "duration_ms", time.Since(start).Milliseconds(), "err", err)
	return err
}

func (i *Index) rollbackTx(tx *sql.Tx, name string, start time.Time) {
	if tx == nil {
		return
	}
	err := tx.Rollback()
	if err != nil && !errors.Is(err, sql.ErrTxDone) {
		slog.Warn("sql tx rollback failed", "op", name, "duration_ms", time.Since(start).Milliseconds(), "err", err)
		return
	}
	slog.Debug("sql tx rollback", "op", name, "duration_ms", time.Since(start).Milliseconds())
}

func isSQLiteBusy(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		code := se.Code() & 0xff
		return code == sqlite3.SQLITE_BUSY || code == sqlite3.SQLITE_LOCKED
	}
	return false
}
