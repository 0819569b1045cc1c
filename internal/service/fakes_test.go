package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rpk6432/library-service/internal/model"
	"github.com/rpk6432/library-service/internal/payment"
	"github.com/rpk6432/library-service/internal/policy"
	"github.com/rpk6432/library-service/internal/repository"
)

// memState is one committed snapshot of the fake database.
type memState struct {
	books         map[uint64]model.Book
	borrowings    map[uint64]model.Borrowing
	payments      map[uint64]model.Payment
	nextBorrowing uint64
	nextPayment   uint64
}

func (s *memState) clone() *memState {
	c := &memState{
		books:         make(map[uint64]model.Book, len(s.books)),
		borrowings:    make(map[uint64]model.Borrowing, len(s.borrowings)),
		payments:      make(map[uint64]model.Payment, len(s.payments)),
		nextBorrowing: s.nextBorrowing,
		nextPayment:   s.nextPayment,
	}
	for k, v := range s.books {
		c.books[k] = v
	}
	for k, v := range s.borrowings {
		c.borrowings[k] = v
	}
	for k, v := range s.payments {
		c.payments[k] = v
	}
	return c
}

// memStore is a repository.Store whose transactions run one at a time on
// a private copy of the state and are published on commit.  Holding the
// store lock for the whole transaction stands in for row locks.
type memStore struct {
	mu sync.Mutex
	st *memState
}

func newMemStore() *memStore {
	return &memStore{st: &memState{
		books:      map[uint64]model.Book{},
		borrowings: map[uint64]model.Borrowing{},
		payments:   map[uint64]model.Payment{},
	}}
}

func (m *memStore) current() *memState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st
}

func (m *memStore) Books() repository.BookRepository           { return memBooks{m.current()} }
func (m *memStore) Borrowings() repository.BorrowingRepository { return memBorrowings{m.current()} }
func (m *memStore) Payments() repository.PaymentRepository     { return memPayments{m.current()} }

func (m *memStore) WithinTx(_ context.Context, fn func(r repository.Repos) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx := m.st.clone()
	if err := fn(memRepos{tx}); err != nil {
		return err
	}
	m.st = tx
	return nil
}

func (m *memStore) addBook(b model.Book) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.books[b.ID] = b
}

func (m *memStore) book(id uint64) model.Book {
	return m.current().books[id]
}

func (m *memStore) borrowing(id uint64) model.Borrowing {
	return m.current().borrowings[id]
}

func (m *memStore) allPayments() []model.Payment {
	st := m.current()
	out := make([]model.Payment, 0, len(st.payments))
	for _, p := range st.payments {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type memRepos struct{ st *memState }

func (r memRepos) Books() repository.BookRepository           { return memBooks{r.st} }
func (r memRepos) Borrowings() repository.BorrowingRepository { return memBorrowings{r.st} }
func (r memRepos) Payments() repository.PaymentRepository     { return memPayments{r.st} }

type memBooks struct{ st *memState }

func (r memBooks) GetByID(_ context.Context, id uint64) (model.Book, error) {
	b, ok := r.st.books[id]
	if !ok {
		return model.Book{}, repository.ErrNotFound
	}
	return b, nil
}

func (r memBooks) Reserve(_ context.Context, id uint64) error {
	b, ok := r.st.books[id]
	if !ok {
		return repository.ErrNotFound
	}
	if b.Inventory == 0 {
		return repository.ErrOutOfStock
	}
	b.Inventory--
	r.st.books[id] = b
	return nil
}

func (r memBooks) Release(_ context.Context, id uint64) error {
	b, ok := r.st.books[id]
	if !ok {
		return repository.ErrNotFound
	}
	b.Inventory++
	r.st.books[id] = b
	return nil
}

type memBorrowings struct{ st *memState }

func (r memBorrowings) Create(_ context.Context, b *model.Borrowing) error {
	r.st.nextBorrowing++
	b.ID = r.st.nextBorrowing
	r.st.borrowings[b.ID] = *b
	return nil
}

func (r memBorrowings) GetByID(_ context.Context, id uint64) (model.Borrowing, error) {
	b, ok := r.st.borrowings[id]
	if !ok {
		return model.Borrowing{}, repository.ErrNotFound
	}
	return b, nil
}

func (r memBorrowings) GetForUpdate(ctx context.Context, id uint64) (model.Borrowing, error) {
	return r.GetByID(ctx, id)
}

func (r memBorrowings) MarkReturned(_ context.Context, id uint64, on time.Time) error {
	b, ok := r.st.borrowings[id]
	if !ok {
		return repository.ErrNotFound
	}
	if !b.IsActive() {
		return repository.ErrConflict
	}
	d := model.Date(on)
	b.ActualReturnDate = &d
	r.st.borrowings[id] = b
	return nil
}

func (r memBorrowings) List(_ context.Context, scope policy.Scope) ([]model.Borrowing, error) {
	out := make([]model.Borrowing, 0)
	for _, b := range r.st.borrowings {
		if scope.OwnerID != nil && b.UserID != *scope.OwnerID {
			continue
		}
		if scope.IsActive != nil && b.IsActive() != *scope.IsActive {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].BorrowDate.Equal(out[j].BorrowDate) {
			return out[i].BorrowDate.After(out[j].BorrowDate)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r memBorrowings) ListOverdue(_ context.Context, today time.Time) ([]model.OverdueBorrowing, error) {
	out := make([]model.OverdueBorrowing, 0)
	for _, b := range r.st.borrowings {
		if !b.IsActive() || b.ExpectedReturnDate.After(today) {
			continue
		}
		out = append(out, model.OverdueBorrowing{
			BorrowingID:        b.ID,
			UserID:             b.UserID,
			UserEmail:          b.UserEmail,
			BookTitle:          b.BookTitle,
			ExpectedReturnDate: b.ExpectedReturnDate,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BorrowingID < out[j].BorrowingID })
	return out, nil
}

type memPayments struct{ st *memState }

func (r memPayments) Create(_ context.Context, p *model.Payment) error {
	for _, q := range r.st.payments {
		if q.SessionID == p.SessionID || (q.BorrowingID == p.BorrowingID && q.Type == p.Type) {
			return repository.ErrConflict
		}
	}
	if p.Status == "" {
		p.Status = model.PaymentPending
	}
	r.st.nextPayment++
	p.ID = r.st.nextPayment
	p.MoneyToPay = p.MoneyToPay.Round(2)
	p.UserID = r.st.borrowings[p.BorrowingID].UserID
	r.st.payments[p.ID] = *p
	return nil
}

func (r memPayments) GetByID(_ context.Context, id uint64) (model.Payment, error) {
	p, ok := r.st.payments[id]
	if !ok {
		return model.Payment{}, repository.ErrNotFound
	}
	return p, nil
}

func (r memPayments) GetBySessionForUpdate(_ context.Context, sessionID string) (model.Payment, error) {
	for _, p := range r.st.payments {
		if p.SessionID == sessionID {
			return p, nil
		}
	}
	return model.Payment{}, repository.ErrNotFound
}

func (r memPayments) MarkPaid(_ context.Context, id uint64) error {
	p, ok := r.st.payments[id]
	if ok && p.Status == model.PaymentPending {
		p.Status = model.PaymentPaid
		r.st.payments[id] = p
	}
	return nil
}

func (r memPayments) List(_ context.Context, scope policy.Scope) ([]model.Payment, error) {
	out := make([]model.Payment, 0)
	for _, p := range r.st.payments {
		if scope.OwnerID != nil && p.UserID != *scope.OwnerID {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r memPayments) ListByBorrowing(_ context.Context, borrowingID uint64) ([]model.Payment, error) {
	out := make([]model.Payment, 0)
	for _, p := range r.st.payments {
		if p.BorrowingID == borrowingID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// fakeGateway issues sequential session ids and lets tests settle them.
type fakeGateway struct {
	mu          sync.Mutex
	n           int
	createErr   error
	retrieveErr error
	status      map[string]string
	items       []payment.LineItem
}

func newFakeGateway() *fakeGateway { return &fakeGateway{status: map[string]string{}} }

func (g *fakeGateway) CreateCheckoutSession(_ context.Context, item payment.LineItem, successURL, cancelURL string) (payment.Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createErr != nil {
		return payment.Session{}, g.createErr
	}
	g.n++
	id := fmt.Sprintf("cs_test_%d", g.n)
	g.status[id] = "unpaid"
	g.items = append(g.items, item)
	return payment.Session{ID: id, URL: "https://checkout.test/" + id, PaymentStatus: "unpaid"}, nil
}

func (g *fakeGateway) RetrieveSession(_ context.Context, id string) (payment.Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.retrieveErr != nil {
		return payment.Session{}, g.retrieveErr
	}
	st, ok := g.status[id]
	if !ok {
		return payment.Session{}, payment.ErrInvalidSession
	}
	return payment.Session{ID: id, PaymentStatus: st}, nil
}

func (g *fakeGateway) settle(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.status[id] = payment.StatusPaid
}

func (g *fakeGateway) sessions() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.n
}

// recorder is a notify.Notifier that remembers every message.
type recorder struct {
	mu   sync.Mutex
	msgs []string
	err  error
}

func (r *recorder) Send(_ context.Context, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, text)
	return r.err
}

func (r *recorder) messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.msgs...)
}

var errBoom = errors.New("boom")

func day(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return t
}

func fixedClock(s string) Clock {
	t := day(s).Add(15 * time.Hour)
	return func() time.Time { return t }
}

func inline(fn func()) { fn() }

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

// fixture wires the services over fakes with a settable clock.
type fixture struct {
	store      *memStore
	gateway    *fakeGateway
	notes      *recorder
	payments   *Payments
	borrowings *Borrowings
	now        time.Time
}

func newFixture(today string) *fixture {
	f := &fixture{store: newMemStore(), gateway: newFakeGateway(), notes: &recorder{}}
	f.setToday(today)
	opts := []Option{
		WithClock(func() time.Time { return f.now }),
		WithDispatcher(inline),
		WithLogger(quietLogger()),
	}
	f.payments = NewPayments(f.store, f.gateway, f.notes, PaymentConfig{
		SuccessURL: "http://localhost/api/payments/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  "http://localhost/api/payments/cancel",
	}, opts...)
	f.borrowings = NewBorrowings(f.store, f.payments, f.notes, decimal.RequireFromString("1.5"), opts...)
	return f
}

func (f *fixture) setToday(s string) { f.now = day(s).Add(9 * time.Hour) }
