package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
)

// Session outcomes reported to the observer.
const (
	OutcomeCommitted      = "committed"
	OutcomeCommitFailed   = "commit_failed"
	OutcomeRolledBack     = "rolled_back"
	OutcomeDiscarded      = "discarded"
	OutcomePanicked       = "panicked"
	OutcomeRollbackFailed = "rollback_failed"
)

// ErrSessionClosed is returned by Commit on a session that already finished.
var ErrSessionClosed = errors.New("database: session already closed")

// DBTX is the subset of database/sql repositories run against.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Session is a transactional unit of work bound to one pooled connection.
// Work that is not committed is rolled back when the scope exits.
type Session interface {
	DBTX
	Commit() error
}

// Runner opens session scopes. *ConnectionPool is the production Runner.
type Runner interface {
	WithSession(ctx context.Context, work func(ctx context.Context, s Session) error) error
}

// PersistenceError reports a failure of the session machinery itself.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("database: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// WithSession acquires a dedicated connection, begins a transaction and runs
// work inside it. The transaction is rolled back when work returns an error,
// panics, or returns without calling Commit. A panic is re-raised after the
// rollback. The connection goes back to the pool on every path.
//
// The scope ignores cancellation of ctx so a client disconnect cannot leave a
// half-run unit of work; the configured statement timeout bounds it instead.
func (cp *ConnectionPool) WithSession(ctx context.Context, work func(ctx context.Context, s Session) error) (err error) {
	ctx = context.WithoutCancel(ctx)
	if cp.statementTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cp.statementTimeout)
		defer cancel()
	}

	conn, err := cp.db.Conn(ctx)
	if err != nil {
		return &PersistenceError{Op: "acquire connection", Err: err}
	}
	defer conn.Close()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return &PersistenceError{Op: "begin transaction", Err: err}
	}

	s := &txSession{tx: tx, pool: cp}

	defer func() {
		if p := recover(); p != nil {
			s.rollback(OutcomePanicked)
			panic(p)
		}
		switch {
		case s.done:
		case err != nil:
			s.rollback(OutcomeRolledBack)
		default:
			s.rollback(OutcomeDiscarded)
		}
	}()

	return work(ctx, s)
}

// WithSession runs work in a session scope opened by r and returns its value.
func WithSession[T any](ctx context.Context, r Runner, work func(ctx context.Context, s Session) (T, error)) (T, error) {
	var out T
	err := r.WithSession(ctx, func(ctx context.Context, s Session) error {
		v, err := work(ctx, s)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

type txSession struct {
	tx   *sql.Tx
	pool *ConnectionPool
	done bool
}

func (s *txSession) Commit() error {
	if s.done {
		return ErrSessionClosed
	}
	s.done = true
	if err := s.tx.Commit(); err != nil {
		s.pool.observe(OutcomeCommitFailed)
		return &PersistenceError{Op: "commit", Err: err}
	}
	s.pool.observe(OutcomeCommitted)
	return nil
}

// rollback never returns an error: a failed rollback is logged and the
// caller's original error, if any, is what propagates.
func (s *txSession) rollback(outcome string) {
	if s.done {
		return
	}
	s.done = true
	if err := s.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		s.pool.logger.Error("session rollback failed",
			slog.String("outcome", outcome),
			slog.String("error", err.Error()),
		)
		s.pool.observe(OutcomeRollbackFailed)
		return
	}
	s.pool.observe(outcome)
}

func (s *txSession) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	s.echo(ctx, query, len(args))
	return s.tx.ExecContext(ctx, query, args...)
}

func (s *txSession) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	s.echo(ctx, query, len(args))
	return s.tx.QueryContext(ctx, query, args...)
}

func (s *txSession) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	s.echo(ctx, query, len(args))
	return s.tx.QueryRowContext(ctx, query, args...)
}

// echo logs the statement text only; arguments may carry password hashes.
func (s *txSession) echo(ctx context.Context, query string, nargs int) {
	if !s.pool.echo {
		return
	}
	s.pool.logger.DebugContext(ctx, "sql",
		slog.String("query", query),
		slog.Int("args", nargs),
	)
}
