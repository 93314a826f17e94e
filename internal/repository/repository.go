// Package repository implements store.Store on Postgres with pgx.
package repository

import (
	"context"
	"errors"
	"fmt"

	"pharmapos/internal/store"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Repository struct {
	pool *pgxpool.Pool
	db   querier
}

var _ store.Store = (*Repository)(nil)

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, db: pool}
}

// WithTx runs fn inside one database transaction. A repository that is
// already bound to a transaction runs fn in it directly.
func (r *Repository) WithTx(ctx context.Context, fn func(q store.Queries) error) error {
	if r.pool == nil {
		return fn(r)
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&Repository{db: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	if r.pool == nil {
		return nil
	}
	return r.pool.Ping(ctx)
}

// wrap turns driver errors into store sentinels and adds the operation name.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return fmt.Errorf("%s: %w: %s already exists", op, store.ErrConflict, constraintSubject(pgErr))
		case pgForeignKeyViolation:
			return fmt.Errorf("%s: %w: still referenced by %s", op, store.ErrConflict, pgErr.TableName)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func constraintSubject(pgErr *pgconn.PgError) string {
	switch pgErr.ConstraintName {
	case "categories_name_key":
		return "category name"
	case "descriptions_text_key":
		return "description text"
	case "products_name_key":
		return "product name"
	case "products_barcode_key", "package_units_barcode_key":
		return "barcode"
	case "package_units_name_key":
		return "package unit name"
	case "accounts_code_key":
		return "account code"
	}
	if pgErr.ConstraintName != "" {
		return pgErr.ConstraintName
	}
	return "record"
}

func affectedOne(tag pgconn.CommandTag) error {
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}
