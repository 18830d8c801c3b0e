// Package sqlite implements store.Store on SQLite via modernc.org/sqlite,
// a pure-Go driver that needs no cgo. Schema management is handled by
// embedded golang-migrate migrations.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/Dodge100/FairArena-sub008/internal/auth/store"
)

// dbtx is satisfied by both *sql.DB and *sql.Tx so every repository works
// unchanged inside and outside a transaction.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is the SQLite-backed store.Store.
type Store struct {
	db *sql.DB
	q  dbtx
}

var _ store.Store = (*Store)(nil)

// New opens (or creates) the database at dsn. Use ":memory:" for tests.
// Foreign keys and WAL are enabled via pragmas; SQLite only supports one
// writer so the pool is capped at a single connection.
func New(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	return &Store{db: db, q: db}, nil
}

func (s *Store) Applications() store.Applications   { return &applications{q: s.q} }
func (s *Store) Users() store.Users                 { return &users{q: s.q} }
func (s *Store) Scopes() store.Scopes               { return &scopes{q: s.q} }
func (s *Store) Consents() store.Consents           { return &consents{q: s.q} }
func (s *Store) SigningKeys() store.SigningKeys     { return &signingKeys{q: s.q} }
func (s *Store) RefreshTokens() store.RefreshTokens { return &refreshTokens{q: s.q} }
func (s *Store) RevokedTokens() store.RevokedTokens { return &revokedTokens{q: s.q} }

// WithTx executes fn in a transaction, committing on nil and rolling back on
// error or panic.
func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	tx := &Tx{Store: Store{db: s.db, q: sqlTx}, tx: sqlTx}

	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}

	return sqlTx.Commit()
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// Tx is a transaction-scoped Store.
type Tx struct {
	Store
	tx *sql.Tx
}

var _ store.Tx = (*Tx)(nil)

func (t *Tx) Commit() error   { return t.tx.Commit() }
func (t *Tx) Rollback() error { return t.tx.Rollback() }

// mapNotFound translates the driver's miss sentinel into the store one.
func mapNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}
