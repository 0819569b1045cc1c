package repository

import (
	"context"
	"database/sql"

	"github.com/rpk6432/library-service/internal/model"
)

// BookRepo stores the catalogue and acts as the inventory ledger.
type BookRepo struct {
	q querier
}

// NewBookRepo returns a BookRepo bound to the given database.
func NewBookRepo(db *sql.DB) *BookRepo { return &BookRepo{q: db} }

const bookColumns = `id, title, author, cover, inventory, daily_fee, created_at, updated_at`

func scanBook(row interface{ Scan(...any) error }) (model.Book, error) {
	var b model.Book
	err := row.Scan(&b.ID, &b.Title, &b.Author, &b.Cover, &b.Inventory, &b.DailyFee, &b.CreatedAt, &b.UpdatedAt)
	return b, err
}

// GetByID fetches a book by id.  ErrNotFound is returned when it does not
// exist.
func (r *BookRepo) GetByID(ctx context.Context, id uint64) (model.Book, error) {
	b, err := scanBook(r.q.QueryRowContext(ctx,
		`SELECT `+bookColumns+` FROM books WHERE id = ?`, id))
	return b, notFound(err)
}

// List returns the whole catalogue ordered by title.
func (r *BookRepo) List(ctx context.Context) ([]model.Book, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT `+bookColumns+` FROM books ORDER BY title, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	books := make([]model.Book, 0)
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		books = append(books, b)
	}
	return books, rows.Err()
}

// Create inserts a book and populates its ID.
func (r *BookRepo) Create(ctx context.Context, b *model.Book) error {
	res, err := r.q.ExecContext(ctx,
		`INSERT INTO books (title, author, cover, inventory, daily_fee) VALUES (?, ?, ?, ?, ?)`,
		b.Title, b.Author, b.Cover, b.Inventory, b.DailyFee)
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

// Update overwrites the editable columns of a book.
func (r *BookRepo) Update(ctx context.Context, b *model.Book) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE books SET title = ?, author = ?, cover = ?, inventory = ?, daily_fee = ? WHERE id = ?`,
		b.Title, b.Author, b.Cover, b.Inventory, b.DailyFee, b.ID)
	if err != nil {
		return err
	}
	// MySQL reports 0 affected rows for a no-op update, so confirm existence.
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := r.GetByID(ctx, b.ID); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes a book.  Books with copies still lent out cannot be
// removed and ErrConflict is returned instead.
func (r *BookRepo) Delete(ctx context.Context, id uint64) error {
	var active int
	if err := r.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM borrowings WHERE book_id = ? AND actual_return_date IS NULL`, id,
	).Scan(&active); err != nil {
		return err
	}
	if active > 0 {
		return ErrConflict
	}
	res, err := r.q.ExecContext(ctx, `DELETE FROM books WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Reserve takes one copy out of stock.  The conditional update locks the
// book row for the rest of the surrounding transaction, so concurrent
// reservations of the same title are serialised and inventory can never
// drop below zero.  ErrOutOfStock is returned when no copy is left and
// ErrNotFound when the book does not exist.
func (r *BookRepo) Reserve(ctx context.Context, id uint64) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE books SET inventory = inventory - 1 WHERE id = ? AND inventory > 0`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	return ErrOutOfStock
}

// Release puts one copy back into stock.
func (r *BookRepo) Release(ctx context.Context, id uint64) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE books SET inventory = inventory + 1 WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
