package service

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpk6432/library-service/internal/model"
	"github.com/rpk6432/library-service/internal/policy"
)

var (
	alice = policy.Caller{UserID: 1, Email: "alice@example.com"}
	bob   = policy.Caller{UserID: 2, Email: "bob@example.com"}
	staff = policy.Caller{UserID: 9, Email: "admin@example.com", IsStaff: true}
)

func seedBook(f *fixture, id uint64, inventory uint32, fee string) {
	f.store.addBook(model.Book{
		ID:        id,
		Title:     "Dune",
		Author:    "Frank Herbert",
		Cover:     model.CoverHard,
		Inventory: inventory,
		DailyFee:  decimal.RequireFromString(fee),
	})
}

func borrow(t *testing.T, f *fixture, c policy.Caller, bookID uint64, due string) model.BorrowingDetail {
	t.Helper()
	d, err := f.borrowings.Create(context.Background(), c, CreateBorrowingInput{BookID: bookID, ExpectedReturnDate: day(due)})
	require.NoError(t, err)
	return d
}

func TestCreateBorrowing(t *testing.T) {
	f := newFixture("2024-01-01")
	seedBook(f, 7, 3, "2.00")

	d := borrow(t, f, alice, 7, "2024-01-06")

	assert.Equal(t, alice.UserID, d.UserID)
	assert.Equal(t, day("2024-01-01"), d.BorrowDate)
	assert.True(t, d.IsActive())
	assert.Equal(t, uint32(2), d.Book.Inventory)
	assert.Equal(t, uint32(2), f.store.book(7).Inventory)

	require.Len(t, d.Payments, 1)
	p := d.Payments[0]
	assert.Equal(t, model.PaymentPending, p.Status)
	assert.Equal(t, model.PaymentTypeRental, p.Type)
	assert.Equal(t, "10.00", p.MoneyToPay.StringFixed(2))
	assert.Equal(t, "cs_test_1", p.SessionID)
	assert.Equal(t, d.ID, p.BorrowingID)

	require.Len(t, f.gateway.items, 1)
	assert.Equal(t, int64(1000), f.gateway.items[0].UnitAmount)
	assert.Equal(t, int64(1), f.gateway.items[0].Quantity)

	msgs := f.notes.messages()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "alice@example.com")
}

func TestCreateBorrowingOutOfStock(t *testing.T) {
	f := newFixture("2024-01-01")
	seedBook(f, 7, 0, "2.00")

	_, err := f.borrowings.Create(context.Background(), alice, CreateBorrowingInput{BookID: 7, ExpectedReturnDate: day("2024-01-06")})
	assert.ErrorIs(t, err, ErrOutOfStock)
	assert.Zero(t, f.gateway.sessions())
	assert.Empty(t, f.notes.messages())
}

func TestCreateBorrowingMissingBook(t *testing.T) {
	f := newFixture("2024-01-01")

	_, err := f.borrowings.Create(context.Background(), alice, CreateBorrowingInput{BookID: 7, ExpectedReturnDate: day("2024-01-06")})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateBorrowingInvalidDate(t *testing.T) {
	for _, due := range []string{"2024-01-01", "2023-12-31"} {
		t.Run(due, func(t *testing.T) {
			f := newFixture("2024-01-01")
			seedBook(f, 7, 1, "2.00")

			_, err := f.borrowings.Create(context.Background(), alice, CreateBorrowingInput{BookID: 7, ExpectedReturnDate: day(due)})
			assert.ErrorIs(t, err, ErrInvalidDate)
			assert.Equal(t, uint32(1), f.store.book(7).Inventory)
			assert.Zero(t, f.gateway.sessions())
		})
	}
}

func TestCreateBorrowingGatewayFailureLeavesNoTrace(t *testing.T) {
	f := newFixture("2024-01-01")
	seedBook(f, 7, 1, "2.00")
	f.gateway.createErr = errBoom

	_, err := f.borrowings.Create(context.Background(), alice, CreateBorrowingInput{BookID: 7, ExpectedReturnDate: day("2024-01-06")})
	assert.ErrorIs(t, err, ErrPaymentSession)
	assert.Equal(t, uint32(1), f.store.book(7).Inventory)
	assert.Empty(t, f.store.current().borrowings)
	assert.Empty(t, f.store.allPayments())
	assert.Empty(t, f.notes.messages())
}

func TestCreateBorrowingConcurrentLastCopy(t *testing.T) {
	f := newFixture("2024-01-01")
	seedBook(f, 7, 1, "2.00")

	const callers = 8
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := policy.Caller{UserID: uint64(100 + i), Email: "reader@example.com"}
			_, errs[i] = f.borrowings.Create(context.Background(), c, CreateBorrowingInput{BookID: 7, ExpectedReturnDate: day("2024-01-03")})
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, ErrOutOfStock)
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, uint32(0), f.store.book(7).Inventory)
	assert.Len(t, f.store.current().borrowings, 1)
	assert.Len(t, f.store.allPayments(), 1)
}

func TestReturnOnTime(t *testing.T) {
	f := newFixture("2024-01-01")
	seedBook(f, 7, 1, "2.00")
	b := borrow(t, f, alice, 7, "2024-01-10")

	f.setToday("2024-01-10")
	d, err := f.borrowings.Return(context.Background(), alice, b.ID)
	require.NoError(t, err)

	require.NotNil(t, d.ActualReturnDate)
	assert.Equal(t, day("2024-01-10"), *d.ActualReturnDate)
	assert.Equal(t, uint32(1), f.store.book(7).Inventory)
	require.Len(t, d.Payments, 1)
	assert.Equal(t, model.PaymentTypeRental, d.Payments[0].Type)
}

func TestReturnLateOpensFine(t *testing.T) {
	f := newFixture("2024-01-01")
	seedBook(f, 7, 1, "2.00")
	b := borrow(t, f, alice, 7, "2024-01-10")

	f.setToday("2024-01-13")
	d, err := f.borrowings.Return(context.Background(), alice, b.ID)
	require.NoError(t, err)

	require.Len(t, d.Payments, 2)
	fine := d.Payments[1]
	assert.Equal(t, model.PaymentTypeFine, fine.Type)
	assert.Equal(t, model.PaymentPending, fine.Status)
	assert.Equal(t, "9.00", fine.MoneyToPay.StringFixed(2))
	assert.Equal(t, int64(900), f.gateway.items[1].UnitAmount)
	assert.Equal(t, "Fine: Dune", f.gateway.items[1].Name)
	assert.Equal(t, uint32(1), f.store.book(7).Inventory)
}

func TestReturnTwice(t *testing.T) {
	f := newFixture("2024-01-01")
	seedBook(f, 7, 1, "2.00")
	b := borrow(t, f, alice, 7, "2024-01-10")

	_, err := f.borrowings.Return(context.Background(), alice, b.ID)
	require.NoError(t, err)
	_, err = f.borrowings.Return(context.Background(), alice, b.ID)
	assert.ErrorIs(t, err, ErrAlreadyReturned)
	assert.Equal(t, uint32(1), f.store.book(7).Inventory)
}

func TestReturnFineGatewayFailureRollsBack(t *testing.T) {
	f := newFixture("2024-01-01")
	seedBook(f, 7, 1, "2.00")
	b := borrow(t, f, alice, 7, "2024-01-10")

	f.setToday("2024-01-13")
	f.gateway.createErr = errBoom
	_, err := f.borrowings.Return(context.Background(), alice, b.ID)
	assert.ErrorIs(t, err, ErrPaymentSession)

	assert.True(t, f.store.borrowing(b.ID).IsActive())
	assert.Equal(t, uint32(0), f.store.book(7).Inventory)
	assert.Len(t, f.store.allPayments(), 1)
}

func TestReturnByAnotherUser(t *testing.T) {
	f := newFixture("2024-01-01")
	seedBook(f, 7, 1, "2.00")
	b := borrow(t, f, alice, 7, "2024-01-10")

	_, err := f.borrowings.Return(context.Background(), bob, b.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.True(t, f.store.borrowing(b.ID).IsActive())
	assert.Equal(t, uint32(0), f.store.book(7).Inventory)
}

func TestReturnOfReturnedBorrowingByAnotherUserIsNotFound(t *testing.T) {
	f := newFixture("2024-01-01")
	seedBook(f, 7, 1, "2.00")
	b := borrow(t, f, alice, 7, "2024-01-10")
	_, err := f.borrowings.Return(context.Background(), alice, b.ID)
	require.NoError(t, err)

	_, err = f.borrowings.Return(context.Background(), bob, b.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrAlreadyReturned)
}

func TestReturnByStaff(t *testing.T) {
	f := newFixture("2024-01-01")
	seedBook(f, 7, 1, "2.00")
	b := borrow(t, f, alice, 7, "2024-01-10")

	d, err := f.borrowings.Return(context.Background(), staff, b.ID)
	require.NoError(t, err)
	assert.False(t, d.IsActive())
}

func TestReturnMissing(t *testing.T) {
	f := newFixture("2024-01-01")

	_, err := f.borrowings.Return(context.Background(), staff, 42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListBorrowingsVisibility(t *testing.T) {
	f := newFixture("2024-01-01")
	seedBook(f, 7, 10, "2.00")
	a1 := borrow(t, f, alice, 7, "2024-01-10")
	borrow(t, f, bob, 7, "2024-01-10")
	f.setToday("2024-01-02")
	a2 := borrow(t, f, alice, 7, "2024-01-10")

	other := bob.UserID
	got, err := f.borrowings.List(context.Background(), alice, policy.Filter{UserID: &other})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, a2.ID, got[0].ID)
	assert.Equal(t, a1.ID, got[1].ID)

	got, err = f.borrowings.List(context.Background(), staff, policy.Filter{UserID: &other})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, bob.UserID, got[0].UserID)

	got, err = f.borrowings.List(context.Background(), staff, policy.Filter{})
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestListBorrowingsInactiveFilter(t *testing.T) {
	f := newFixture("2024-01-01")
	seedBook(f, 7, 10, "2.00")
	b1 := borrow(t, f, alice, 7, "2024-01-10")
	borrow(t, f, alice, 7, "2024-01-10")
	f.setToday("2024-01-03")
	b3 := borrow(t, f, alice, 7, "2024-01-10")
	for _, id := range []uint64{b1.ID, b3.ID} {
		_, err := f.borrowings.Return(context.Background(), alice, id)
		require.NoError(t, err)
	}

	inactive := false
	got, err := f.borrowings.List(context.Background(), alice, policy.Filter{IsActive: &inactive})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, b3.ID, got[0].ID)
	assert.Equal(t, b1.ID, got[1].ID)
}

func TestGetBorrowing(t *testing.T) {
	f := newFixture("2024-01-01")
	seedBook(f, 7, 1, "2.00")
	b := borrow(t, f, alice, 7, "2024-01-10")

	d, err := f.borrowings.Get(context.Background(), alice, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "Dune", d.Book.Title)
	assert.Len(t, d.Payments, 1)

	_, err = f.borrowings.Get(context.Background(), bob, b.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.borrowings.Get(context.Background(), staff, b.ID)
	assert.NoError(t, err)
}

func TestPricing(t *testing.T) {
	fee := decimal.RequireFromString("1.99")
	assert.Equal(t, "9.95", RentalCost(fee, 5).StringFixed(2))
	assert.Equal(t, "8.96", FineAmount(fee, 3, decimal.RequireFromString("1.5")).StringFixed(2))
}
