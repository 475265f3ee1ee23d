// Package postgres implements the store ports on PostgreSQL through pgx.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/nazeru/phoneshop-go/internal/domain"
	"github.com/nazeru/phoneshop-go/internal/store"
	"github.com/nazeru/phoneshop-go/pkg/tx/saga/coordinator"
)

//go:embed schema.sql
var schema string

// querier is satisfied by *pgxpool.Pool and pgx.Tx. Begin on a pgx.Tx opens
// a savepoint.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

type Store struct {
	pool *pgxpool.Pool
	root *uow
}

// New connects and pings the database.
func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	s := &Store{pool: pool, root: &uow{q: pool}}
	if err := s.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return s, nil
}

// Migrate creates missing tables and indexes.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (s *Store) Pool() *pgxpool.Pool { return s.pool }

func (s *Store) Products() store.ProductRepository   { return s.root.Products() }
func (s *Store) Customers() store.CustomerRepository { return s.root.Customers() }
func (s *Store) Accounts() store.AccountRepository   { return s.root.Accounts() }
func (s *Store) Orders() store.OrderRepository       { return s.root.Orders() }
func (s *Store) Sequences() store.SequenceRepository { return s.root.Sequences() }
func (s *Store) Outbox() store.OutboxRepository      { return s.root.Outbox() }
func (s *Store) Reports() store.ReportRepository     { return reportRepo{q: s.pool} }
func (s *Store) TxLog() coordinator.TxLogStore       { return txLogRepo{q: s.pool} }

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, uow store.UnitOfWork) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, &uow{q: tx}); err != nil {
		return err
	}
	return mapErr(tx.Commit(ctx), "commit")
}

func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return s.pool.Ping(ctx)
}

func (s *Store) Close(context.Context) error {
	s.pool.Close()
	return nil
}

type uow struct {
	q querier
}

func (u *uow) Products() store.ProductRepository   { return productRepo{q: u.q} }
func (u *uow) Customers() store.CustomerRepository { return customerRepo{q: u.q} }
func (u *uow) Accounts() store.AccountRepository   { return accountRepo{q: u.q} }
func (u *uow) Orders() store.OrderRepository       { return orderRepo{q: u.q} }
func (u *uow) Sequences() store.SequenceRepository { return sequenceRepo{q: u.q} }
func (u *uow) Outbox() store.OutboxRepository      { return outboxRepo{q: u.q} }

// subTx runs fn in a nested transaction: a savepoint inside InTx, a real
// transaction otherwise. A failed statement inside it does not abort the
// caller's transaction.
func subTx(ctx context.Context, q querier, fn func(tx pgx.Tx) error) error {
	tx, err := q.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// isTxConflict reports deadlock (40P01) and serialization failure (40001).
func isTxConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && (pgErr.Code == "40P01" || pgErr.Code == "40001")
}

// mapErr classifies driver errors for what ("product", "order", ...).
func mapErr(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return domain.WrapNotFound(err, what+" not found")
	case isUniqueViolation(err):
		return domain.WrapConflict(err, what+" already exists")
	case isTxConflict(err):
		return domain.WrapConflict(err, what+": concurrent update, retry")
	}
	return fmt.Errorf("%s: %w", what, err)
}

func parseDecimal(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
