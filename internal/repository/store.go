package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/mysql"

	"github.com/rpk6432/library-service/internal/model"
	"github.com/rpk6432/library-service/internal/policy"
)

// dialect builds the dynamic list queries.  Prepared mode keeps values
// out of the SQL text and emits ? placeholders.
var dialect = goqu.Dialect("mysql")

// querier is satisfied by both *sql.DB and *sql.Tx so that every
// repository can run either standalone or inside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// BookRepository is the inventory ledger plus the lookups the lifecycle
// needs.
type BookRepository interface {
	GetByID(ctx context.Context, id uint64) (model.Book, error)
	Reserve(ctx context.Context, id uint64) error
	Release(ctx context.Context, id uint64) error
}

// BorrowingRepository persists borrowings.
type BorrowingRepository interface {
	Create(ctx context.Context, b *model.Borrowing) error
	GetByID(ctx context.Context, id uint64) (model.Borrowing, error)
	GetForUpdate(ctx context.Context, id uint64) (model.Borrowing, error)
	MarkReturned(ctx context.Context, id uint64, on time.Time) error
	List(ctx context.Context, scope policy.Scope) ([]model.Borrowing, error)
	ListOverdue(ctx context.Context, today time.Time) ([]model.OverdueBorrowing, error)
}

// PaymentRepository persists payments.
type PaymentRepository interface {
	Create(ctx context.Context, p *model.Payment) error
	GetByID(ctx context.Context, id uint64) (model.Payment, error)
	GetBySessionForUpdate(ctx context.Context, sessionID string) (model.Payment, error)
	MarkPaid(ctx context.Context, id uint64) error
	List(ctx context.Context, scope policy.Scope) ([]model.Payment, error)
	ListByBorrowing(ctx context.Context, borrowingID uint64) ([]model.Payment, error)
}

// Repos bundles the repositories bound to one connection or transaction.
type Repos interface {
	Books() BookRepository
	Borrowings() BorrowingRepository
	Payments() PaymentRepository
}

// Store exposes non-transactional repositories and runs scoped
// transactions.  WithinTx commits when fn returns nil and rolls back
// otherwise; the repositories handed to fn must not escape it.
type Store interface {
	Repos
	WithinTx(ctx context.Context, fn func(r Repos) error) error
}

// SQLStore implements Store on a MySQL database.
type SQLStore struct {
	db *sql.DB
	repos
}

type repos struct {
	books      *BookRepo
	borrowings *BorrowingRepo
	payments   *PaymentRepo
}

func (r repos) Books() BookRepository           { return r.books }
func (r repos) Borrowings() BorrowingRepository { return r.borrowings }
func (r repos) Payments() PaymentRepository     { return r.payments }

func bind(q querier) repos {
	return repos{
		books:      &BookRepo{q: q},
		borrowings: &BorrowingRepo{q: q},
		payments:   &PaymentRepo{q: q},
	}
}

// NewSQLStore returns a Store backed by db.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db, repos: bind(db)}
}

// DB exposes the underlying handle.
func (s *SQLStore) DB() *sql.DB { return s.db }

// WithinTx runs fn inside a single transaction.
func (s *SQLStore) WithinTx(ctx context.Context, fn func(r Repos) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(bind(tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}
