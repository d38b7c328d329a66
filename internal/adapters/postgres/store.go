// Package postgres is the Truth Store adapter (C1): the Postgres
// implementation of domain.Store, grounded on the teacher's per-entity
// repository shape (raw database/sql calls with positional parameters,
// Masterminds/squirrel for dynamic filters, pgconn.PgError translation) but
// collapsed into one Store struct because spec §4 requires several
// operations to span entities within one transaction.
package postgres

import (
	"context"
	"database/sql"

	"github.com/sremani/Artifortress-sub001/internal/platform/mlog"
	"github.com/sremani/Artifortress-sub001/internal/platform/mpostgres"
	"github.com/sremani/Artifortress-sub001/internal/platform/mtrace"
)

// execer is satisfied by both *sql.DB and *sql.Tx, letting every query
// helper run unchanged whether or not it is inside a transaction.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is the Postgres-backed domain.Store implementation.
type Store struct {
	conn   *mpostgres.Connection
	logger mlog.Logger
}

// New builds a Store over an already-configured connection.
func New(conn *mpostgres.Connection, logger mlog.Logger) *Store {
	return &Store{conn: conn, logger: logger}
}

func (s *Store) db(ctx context.Context) (*sql.DB, error) {
	return s.conn.DB()
}

// withTx runs fn inside a new serializable transaction, committing on
// success and rolling back on any error or panic.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	db, err := s.db(ctx)
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	return tx.Commit()
}

// withRetryTx runs fn inside withTx, retrying the whole attempt on a
// serialization failure per spec §4.1's bounded-retry failure semantics.
func (s *Store) withRetryTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return mpostgres.WithRetry(ctx, mpostgres.DefaultRetryOptions, func() error {
		return s.withTx(ctx, fn)
	})
}

func (s *Store) span(ctx context.Context, name string) (context.Context, func(err error)) {
	ctx, sp := mtrace.Start(ctx, "postgres."+name)

	return ctx, func(err error) {
		mtrace.RecordError(sp, name, err)
		sp.End()
	}
}

// Ping probes the truth store for readiness (C9).
func (s *Store) Ping(ctx context.Context) error {
	return s.conn.Ping()
}
