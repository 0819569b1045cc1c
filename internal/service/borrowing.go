package service

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	"github.com/rpk6432/library-service/internal/model"
	"github.com/rpk6432/library-service/internal/notify"
	"github.com/rpk6432/library-service/internal/policy"
	"github.com/rpk6432/library-service/internal/repository"
)

// CreateBorrowingInput is what a caller supplies to borrow a book.
type CreateBorrowingInput struct {
	BookID             uint64
	ExpectedReturnDate time.Time
}

// Borrowings drives the borrowing lifecycle: creation with its rental
// payment, return with an optional fine, and visibility-scoped reads.
type Borrowings struct {
	store          repository.Store
	payments       *Payments
	notifier       notify.Notifier
	fineMultiplier decimal.Decimal
	options
}

func NewBorrowings(store repository.Store, payments *Payments, n notify.Notifier, fineMultiplier decimal.Decimal, opts ...Option) *Borrowings {
	return &Borrowings{
		store:          store,
		payments:       payments,
		notifier:       n,
		fineMultiplier: fineMultiplier,
		options:        buildOptions(opts),
	}
}

// Create borrows one copy of a book for the caller and opens the rental
// payment.  The gateway session is opened before the transaction so that
// a provider failure leaves nothing behind; inventory, borrowing and
// payment are then written atomically.
func (s *Borrowings) Create(ctx context.Context, caller policy.Caller, in CreateBorrowingInput) (d model.BorrowingDetail, err error) {
	ctx, span := startSpan(ctx, "borrowings.create",
		attribute.Int64("user.id", int64(caller.UserID)),
		attribute.Int64("book.id", int64(in.BookID)))
	defer func() { endSpan(span, err) }()

	today := model.Date(s.now())
	book, err := s.store.Books().GetByID(ctx, in.BookID)
	if err != nil {
		return model.BorrowingDetail{}, err
	}
	if !book.InStock() {
		return model.BorrowingDetail{}, ErrOutOfStock
	}
	expected := model.Date(in.ExpectedReturnDate)
	if !expected.After(today) {
		return model.BorrowingDetail{}, ErrInvalidDate
	}

	cost := RentalCost(book.DailyFee, model.DaysBetween(today, expected))
	sess, err := s.payments.openSession(ctx, book.Title, cost)
	if err != nil {
		return model.BorrowingDetail{}, err
	}

	b := model.Borrowing{
		UserID:             caller.UserID,
		BookID:             book.ID,
		BorrowDate:         today,
		ExpectedReturnDate: expected,
		BookTitle:          book.Title,
		UserEmail:          caller.Email,
	}
	pay := model.Payment{
		Status:     model.PaymentPending,
		Type:       model.PaymentTypeRental,
		SessionURL: sess.URL,
		SessionID:  sess.ID,
		MoneyToPay: cost,
		UserID:     caller.UserID,
	}
	err = s.store.WithinTx(ctx, func(r repository.Repos) error {
		if err := r.Books().Reserve(ctx, book.ID); err != nil {
			return err
		}
		if err := r.Borrowings().Create(ctx, &b); err != nil {
			return err
		}
		pay.BorrowingID = b.ID
		return r.Payments().Create(ctx, &pay)
	})
	if err != nil {
		if errors.Is(err, ErrOutOfStock) {
			s.log.Warn("checkout session orphaned by concurrent reservation", "session_id", sess.ID, "book_id", book.ID)
		}
		return model.BorrowingDetail{}, err
	}
	book.Inventory--

	s.log.Info("borrowing created", "borrowing_id", b.ID, "user_id", b.UserID, "book_id", b.BookID)
	s.notifyAfterCommit(s.notifier, notify.BorrowingCreatedMessage(b, caller.Email, book.Title))
	return model.BorrowingDetail{Borrowing: b, Book: book, Payments: []model.Payment{pay}}, nil
}

// Return closes an active borrowing, puts the copy back into stock and,
// when the book is late, opens a fine.  The fine session is opened before
// commit, so a gateway failure rolls the whole return back.
func (s *Borrowings) Return(ctx context.Context, caller policy.Caller, id uint64) (d model.BorrowingDetail, err error) {
	ctx, span := startSpan(ctx, "borrowings.return",
		attribute.Int64("user.id", int64(caller.UserID)),
		attribute.Int64("borrowing.id", int64(id)))
	defer func() { endSpan(span, err) }()

	today := model.Date(s.now())
	err = s.store.WithinTx(ctx, func(r repository.Repos) error {
		b, err := r.Borrowings().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !caller.CanAccess(b.UserID) {
			return ErrForbidden
		}
		if !b.IsActive() {
			return ErrAlreadyReturned
		}

		if err := r.Borrowings().MarkReturned(ctx, b.ID, today); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return ErrAlreadyReturned
			}
			return err
		}
		if err := r.Books().Release(ctx, b.BookID); err != nil {
			return err
		}
		b.ActualReturnDate = &today

		book, err := r.Books().GetByID(ctx, b.BookID)
		if err != nil {
			return err
		}
		if late := b.DaysLate(today); late > 0 {
			amount := FineAmount(book.DailyFee, late, s.fineMultiplier)
			sess, err := s.payments.openSession(ctx, "Fine: "+book.Title, amount)
			if err != nil {
				return err
			}
			fine := model.Payment{
				BorrowingID: b.ID,
				Status:      model.PaymentPending,
				Type:        model.PaymentTypeFine,
				SessionURL:  sess.URL,
				SessionID:   sess.ID,
				MoneyToPay:  amount,
			}
			if err := r.Payments().Create(ctx, &fine); err != nil {
				return err
			}
			s.log.Info("fine opened", "borrowing_id", b.ID, "days_late", late, "amount", amount.StringFixed(2))
		}

		payments, err := r.Payments().ListByBorrowing(ctx, b.ID)
		if err != nil {
			return err
		}
		d = model.BorrowingDetail{Borrowing: b, Book: book, Payments: payments}
		return nil
	})
	if err != nil {
		return model.BorrowingDetail{}, err
	}
	s.log.Info("borrowing returned", "borrowing_id", d.ID, "user_id", d.UserID)
	return d, nil
}

// List returns the borrowings the caller may see, narrowed by f.
func (s *Borrowings) List(ctx context.Context, caller policy.Caller, f policy.Filter) ([]model.Borrowing, error) {
	return s.store.Borrowings().List(ctx, policy.BorrowingScope(caller, f))
}

// Get returns one borrowing with its book and payments.
func (s *Borrowings) Get(ctx context.Context, caller policy.Caller, id uint64) (model.BorrowingDetail, error) {
	b, err := s.store.Borrowings().GetByID(ctx, id)
	if err != nil {
		return model.BorrowingDetail{}, err
	}
	if !caller.CanAccess(b.UserID) {
		return model.BorrowingDetail{}, ErrForbidden
	}
	book, err := s.store.Books().GetByID(ctx, b.BookID)
	if err != nil {
		return model.BorrowingDetail{}, err
	}
	payments, err := s.store.Payments().ListByBorrowing(ctx, b.ID)
	if err != nil {
		return model.BorrowingDetail{}, err
	}
	return model.BorrowingDetail{Borrowing: b, Book: book, Payments: payments}, nil
}
