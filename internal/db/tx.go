package db

import (
	"context"
	"database/sql"
	"time"
)

// DBTX is the subset of *sql.DB and *sql.Tx the repositories use.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Transactor runs fn inside one unit of work. The ctx passed to fn carries the transaction;
// repositories pick it up through Conn. Nested calls join the outer unit.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type txKey struct{}

type txState struct {
	tx          *sql.Tx
	afterCommit []func(context.Context)
}

func stateFrom(ctx context.Context) *txState {
	s, _ := ctx.Value(txKey{}).(*txState)
	return s
}

// Conn returns the transaction carried by ctx, or fallback when there is none.
func Conn(ctx context.Context, fallback *sql.DB) DBTX {
	if s := stateFrom(ctx); s != nil && s.tx != nil {
		return s.tx
	}
	return fallback
}

// InTx reports whether ctx carries a unit of work.
func InTx(ctx context.Context) bool {
	return stateFrom(ctx) != nil
}

// Detach returns a context that carries no unit of work and ignores the caller's cancellation.
// Writes made with it commit on their own, independent of any surrounding transaction.
func Detach(ctx context.Context) context.Context {
	return context.WithValue(context.WithoutCancel(ctx), txKey{}, (*txState)(nil))
}

// AfterCommit registers fn to run once the unit of work carried by ctx commits.
// Without a unit of work fn runs immediately. Hooks never run after a rollback.
func AfterCommit(ctx context.Context, fn func(context.Context)) {
	if s := stateFrom(ctx); s != nil {
		s.afterCommit = append(s.afterCommit, fn)
		return
	}
	fn(ctx)
}

// SQLTransactor implements Transactor over a *sql.DB.
type SQLTransactor struct {
	db      *sql.DB
	timeout time.Duration
}

// NewTransactor returns a SQLTransactor. timeout bounds the whole transaction; zero means no bound.
func NewTransactor(db *sql.DB, timeout time.Duration) *SQLTransactor {
	return &SQLTransactor{db: db, timeout: timeout}
}

// WithinTx begins a transaction, runs fn and commits. Any error from fn rolls back.
// If ctx already carries a transaction, fn joins it and commit is left to the outer caller.
func (t *SQLTransactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if InTx(ctx) {
		return fn(ctx)
	}
	txCtx := ctx
	if t.timeout > 0 {
		var cancel context.CancelFunc
		txCtx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}
	tx, err := t.db.BeginTx(txCtx, nil)
	if err != nil {
		return Unavailable("db: begin", err)
	}
	state := &txState{tx: tx}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()
	if err := fn(context.WithValue(txCtx, txKey{}, state)); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return Unavailable("db: commit", err)
	}
	runHooks(context.WithoutCancel(ctx), state.afterCommit)
	return nil
}

// NopTransactor runs fn without a database transaction. After-commit hooks run when fn succeeds.
// It backs in-memory repositories in tests.
type NopTransactor struct{}

// WithinTx implements Transactor.
func (NopTransactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if InTx(ctx) {
		return fn(ctx)
	}
	state := &txState{}
	if err := fn(context.WithValue(ctx, txKey{}, state)); err != nil {
		return err
	}
	runHooks(ctx, state.afterCommit)
	return nil
}

func runHooks(ctx context.Context, hooks []func(context.Context)) {
	for _, h := range hooks {
		h(ctx)
	}
}
