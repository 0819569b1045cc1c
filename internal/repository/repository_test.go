package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpk6432/library-service/internal/model"
	"github.com/rpk6432/library-service/internal/policy"
)

func newMock(t *testing.T) (*SQLStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewSQLStore(db), mock
}

var bookCols = []string{"id", "title", "author", "cover", "inventory", "daily_fee", "created_at", "updated_at"}

func TestBookRepo_Reserve(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectExec(`UPDATE books SET inventory = inventory - 1 WHERE id = \? AND inventory > 0`).
		WithArgs(1).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Books().Reserve(context.Background(), 1))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookRepo_ReserveOutOfStock(t *testing.T) {
	store, mock := newMock(t)
	now := time.Now().UTC()
	mock.ExpectExec(`UPDATE books SET inventory = inventory - 1`).
		WithArgs(1).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT (.+) FROM books WHERE id = \?`).
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows(bookCols).AddRow(1, "Dune", "Herbert", "HARD", 0, "1.00", now, now))

	err := store.Books().Reserve(context.Background(), 1)
	assert.ErrorIs(t, err, ErrOutOfStock)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookRepo_ReserveMissingBook(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectExec(`UPDATE books SET inventory = inventory - 1`).
		WithArgs(9).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT (.+) FROM books WHERE id = \?`).
		WithArgs(9).
		WillReturnRows(sqlmock.NewRows(bookCols))

	err := store.Books().Reserve(context.Background(), 9)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBookRepo_GetByIDScansDecimal(t *testing.T) {
	store, mock := newMock(t)
	now := time.Now().UTC()
	mock.ExpectQuery(`SELECT (.+) FROM books WHERE id = \?`).
		WithArgs(2).
		WillReturnRows(sqlmock.NewRows(bookCols).AddRow(2, "Emma", "Austen", "SOFT", 3, []byte("2.50"), now, now))

	b, err := store.Books().GetByID(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, model.CoverSoft, b.Cover)
	assert.Equal(t, uint32(3), b.Inventory)
	assert.True(t, b.DailyFee.Equal(decimal.RequireFromString("2.50")))
}

func TestBookRepo_DeleteWithActiveBorrowings(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM borrowings WHERE book_id = \? AND actual_return_date IS NULL`).
		WithArgs(4).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	err = NewBookRepo(db).Delete(context.Background(), 4)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestBorrowingRepo_MarkReturnedTwice(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectExec(`UPDATE borrowings SET actual_return_date = \? WHERE id = \? AND actual_return_date IS NULL`).
		WithArgs(sqlmock.AnyArg(), 5).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.Borrowings().MarkReturned(context.Background(), 5, time.Now())
	assert.ErrorIs(t, err, ErrConflict)
}

func TestBorrowingRepo_ListScope(t *testing.T) {
	store, mock := newMock(t)
	owner := uint64(7)
	active := true
	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("FROM `borrowings` AS `b` INNER JOIN `books` AS `bk`.*`b`.`user_id` = \\?.*`b`.`actual_return_date` IS NULL.*ORDER BY `b`.`borrow_date` DESC, `b`.`id` ASC").
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "book_id", "borrow_date", "expected_return_date", "actual_return_date", "title", "email"}).
			AddRow(3, 7, 1, day, day.AddDate(0, 0, 5), nil, "Dune", "a@example.com"))

	list, err := store.Borrowings().List(context.Background(), policy.Scope{OwnerID: &owner, IsActive: &active})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].IsActive())
	assert.Equal(t, "Dune", list[0].BookTitle)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBorrowingRepo_ListReturnedWithoutOwner(t *testing.T) {
	store, mock := newMock(t)
	active := false
	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("`b`.`actual_return_date` IS NOT NULL").
		WithoutArgs().
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "book_id", "borrow_date", "expected_return_date", "actual_return_date", "title", "email"}).
			AddRow(3, 7, 1, day, day.AddDate(0, 0, 5), day.AddDate(0, 0, 2), "Dune", "a@example.com"))

	list, err := store.Borrowings().List(context.Background(), policy.Scope{IsActive: &active})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.NotNil(t, list[0].ActualReturnDate)
	assert.Equal(t, day.AddDate(0, 0, 2), *list[0].ActualReturnDate)
}

func TestPaymentRepo_CreateDuplicateSession(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectExec(`INSERT INTO payments`).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})

	err := store.Payments().Create(context.Background(), &model.Payment{
		BorrowingID: 1, Type: model.PaymentTypeRental, SessionID: "cs_1", MoneyToPay: decimal.NewFromInt(3),
	})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestPaymentRepo_GetBySessionForUpdate(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectQuery(`WHERE p.session_id = \? FOR UPDATE OF p`).
		WithArgs("cs_missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := store.Payments().GetBySessionForUpdate(context.Background(), "cs_missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLStore_WithinTxRollsBackOnError(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE books SET inventory = inventory \+ 1 WHERE id = \?`).
		WithArgs(1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	boom := errors.New("boom")
	err := store.WithinTx(context.Background(), func(r Repos) error {
		if err := r.Books().Release(context.Background(), 1); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_WithinTxCommits(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO borrowings`).
		WithArgs(2, 1, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(11, 1))
	mock.ExpectCommit()

	b := &model.Borrowing{UserID: 2, BookID: 1, BorrowDate: time.Now(), ExpectedReturnDate: time.Now().AddDate(0, 0, 3)}
	err := store.WithinTx(context.Background(), func(r Repos) error {
		return r.Borrowings().Create(context.Background(), b)
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(11), b.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
