// Package pg implements bank.Store on PostgreSQL through the pgx
// database/sql driver.
package pg

import (
	"context"
	"database/sql"
	"embed"
	"io/fs"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pkg/errors"

	"bloodnet.org/internal/bank"
)

//go:embed migrations/*.sql seeds/*.sql
var files embed.FS

// Migrations holds the schema migrations as NNNN_name.up.sql/.down.sql pairs.
func Migrations() fs.FS { return sub("migrations") }

// Seeds holds idempotent seed files.
func Seeds() fs.FS { return sub("seeds") }

func sub(dir string) fs.FS {
	f, err := fs.Sub(files, dir)
	if err != nil {
		panic(err)
	}
	return f
}

const (
	pgErrForeignKeyViolation = "23503"
	pgErrUniqueViolation     = "23505"
	pgErrCheckViolation      = "23514"
)

type Store struct {
	db *sql.DB
}

var _ bank.Store = (*Store)(nil)

func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Tuned pool defaults; adjust under load tests
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// New wraps an existing handle.
func New(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// Atomically runs fn in a read-committed transaction. Rows fetched by id are
// read with "for update" and stock changes are single conditional
// statements, so concurrent units of work touching the same rows serialize.
func (s *Store) Atomically(ctx context.Context, fn func(ctx context.Context, tx bank.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if err := fn(ctx, &txn{q: tx, lock: true}); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) View(ctx context.Context, fn func(ctx context.Context, tx bank.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if err := fn(ctx, &txn{q: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

type txn struct {
	q    *sql.Tx
	lock bool
}

var _ bank.Tx = (*txn)(nil)

func (t *txn) forUpdate() string {
	if t.lock {
		return " for update"
	}
	return ""
}

// translate maps driver errors onto bank sentinels.
func translate(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return errors.Wrap(bank.ErrNotFound, what)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgErrForeignKeyViolation:
			return errors.Wrapf(bank.ErrNotFound, "%s: %s", what, pgErr.Detail)
		case pgErrUniqueViolation:
			return errors.Wrapf(bank.ErrInvalidInput, "%s already exists", what)
		case pgErrCheckViolation:
			return errors.Wrapf(bank.ErrInvalidInput, "%s: %s", what, pgErr.ConstraintName)
		}
	}
	return errors.Wrap(err, what)
}

// affected fails with ErrNotFound when the statement touched no row.
func affected(res sql.Result, err error, what string) error {
	if err != nil {
		return translate(err, what)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.Wrap(bank.ErrNotFound, what)
	}
	return nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

// dateOnly normalizes a scanned "date" column to UTC midnight.
func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
