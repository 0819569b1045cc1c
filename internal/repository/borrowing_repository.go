package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/doug-martin/goqu/v9"

	"github.com/rpk6432/library-service/internal/model"
	"github.com/rpk6432/library-service/internal/policy"
)

// BorrowingRepo persists borrowings.  Rows are never deleted by the
// lifecycle; the only mutation after insert is MarkReturned.
type BorrowingRepo struct {
	q querier
}

// NewBorrowingRepo returns a new BorrowingRepo bound to the given database.
func NewBorrowingRepo(db *sql.DB) *BorrowingRepo { return &BorrowingRepo{q: db} }

const borrowingSelect = `SELECT b.id, b.user_id, b.book_id, b.borrow_date, b.expected_return_date,
       b.actual_return_date, bk.title, u.email
FROM borrowings b
JOIN books bk ON bk.id = b.book_id
JOIN users u ON u.id = b.user_id`

func scanBorrowing(row interface{ Scan(...any) error }) (model.Borrowing, error) {
	var (
		b        model.Borrowing
		returned sql.NullTime
	)
	err := row.Scan(&b.ID, &b.UserID, &b.BookID, &b.BorrowDate, &b.ExpectedReturnDate,
		&returned, &b.BookTitle, &b.UserEmail)
	if err != nil {
		return b, err
	}
	if returned.Valid {
		d := model.Date(returned.Time)
		b.ActualReturnDate = &d
	}
	b.BorrowDate = model.Date(b.BorrowDate)
	b.ExpectedReturnDate = model.Date(b.ExpectedReturnDate)
	return b, nil
}

// Create inserts a borrowing and populates its ID.  Run it in the same
// transaction as the inventory reservation.
func (r *BorrowingRepo) Create(ctx context.Context, b *model.Borrowing) error {
	res, err := r.q.ExecContext(ctx,
		`INSERT INTO borrowings (user_id, book_id, borrow_date, expected_return_date) VALUES (?, ?, ?, ?)`,
		b.UserID, b.BookID, model.Date(b.BorrowDate), model.Date(b.ExpectedReturnDate))
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	return nil
}

// GetByID fetches a borrowing with its book title and borrower email.
func (r *BorrowingRepo) GetByID(ctx context.Context, id uint64) (model.Borrowing, error) {
	b, err := scanBorrowing(r.q.QueryRowContext(ctx, borrowingSelect+` WHERE b.id = ?`, id))
	return b, notFound(err)
}

// GetForUpdate is GetByID taking an exclusive lock on the borrowing row
// until the surrounding transaction ends.  The joined book and user rows
// are not locked.
func (r *BorrowingRepo) GetForUpdate(ctx context.Context, id uint64) (model.Borrowing, error) {
	b, err := scanBorrowing(r.q.QueryRowContext(ctx,
		borrowingSelect+` WHERE b.id = ? FOR UPDATE OF b`, id))
	return b, notFound(err)
}

// MarkReturned sets actual_return_date.  The IS NULL guard makes the
// transition one-way; ErrConflict is returned when the row was already
// returned.
func (r *BorrowingRepo) MarkReturned(ctx context.Context, id uint64, on time.Time) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE borrowings SET actual_return_date = ? WHERE id = ? AND actual_return_date IS NULL`,
		model.Date(on), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

// List returns the borrowings inside scope, most recent borrow_date first
// and insertion order among equal dates.
func (r *BorrowingRepo) List(ctx context.Context, scope policy.Scope) ([]model.Borrowing, error) {
	ds := dialect.From(goqu.T("borrowings").As("b")).
		Join(goqu.T("books").As("bk"), goqu.On(goqu.Ex{"bk.id": goqu.I("b.book_id")})).
		Join(goqu.T("users").As("u"), goqu.On(goqu.Ex{"u.id": goqu.I("b.user_id")})).
		Select("b.id", "b.user_id", "b.book_id", "b.borrow_date", "b.expected_return_date",
			"b.actual_return_date", "bk.title", "u.email").
		Order(goqu.I("b.borrow_date").Desc(), goqu.I("b.id").Asc()).
		Prepared(true)
	if scope.OwnerID != nil {
		ds = ds.Where(goqu.Ex{"b.user_id": *scope.OwnerID})
	}
	if scope.IsActive != nil {
		if *scope.IsActive {
			ds = ds.Where(goqu.I("b.actual_return_date").IsNull())
		} else {
			ds = ds.Where(goqu.I("b.actual_return_date").IsNotNull())
		}
	}
	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, err
	}
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Borrowing, 0)
	for rows.Next() {
		b, err := scanBorrowing(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// ListOverdue returns active borrowings due on or before today, oldest due
// date first.
func (r *BorrowingRepo) ListOverdue(ctx context.Context, today time.Time) ([]model.OverdueBorrowing, error) {
	const q = `SELECT b.id, b.user_id, u.email, bk.title, b.expected_return_date
               FROM borrowings b
               JOIN books bk ON bk.id = b.book_id
               JOIN users u ON u.id = b.user_id
               WHERE b.actual_return_date IS NULL AND b.expected_return_date <= ?
               ORDER BY b.expected_return_date, b.id`
	rows, err := r.q.QueryContext(ctx, q, model.Date(today))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.OverdueBorrowing, 0)
	for rows.Next() {
		var o model.OverdueBorrowing
		if err := rows.Scan(&o.BorrowingID, &o.UserID, &o.UserEmail, &o.BookTitle, &o.ExpectedReturnDate); err != nil {
			return nil, err
		}
		o.ExpectedReturnDate = model.Date(o.ExpectedReturnDate)
		out = append(out, o)
	}
	return out, rows.Err()
}
