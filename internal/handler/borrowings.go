package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/rpk6432/library-service/internal/model"
	"github.com/rpk6432/library-service/internal/policy"
	"github.com/rpk6432/library-service/internal/service"
)

// BorrowingService is the lifecycle behind the borrowing endpoints.
type BorrowingService interface {
	Create(ctx context.Context, caller policy.Caller, in service.CreateBorrowingInput) (model.BorrowingDetail, error)
	Return(ctx context.Context, caller policy.Caller, id uint64) (model.BorrowingDetail, error)
	List(ctx context.Context, caller policy.Caller, f policy.Filter) ([]model.Borrowing, error)
	Get(ctx context.Context, caller policy.Caller, id uint64) (model.BorrowingDetail, error)
}

// BorrowingHandler serves /api/borrowings.  Every route requires a caller.
type BorrowingHandler struct {
	Svc   BorrowingService
	Cache Purger
	Log   *slog.Logger
}

func NewBorrowingHandler(svc BorrowingService, cache Purger, log *slog.Logger) *BorrowingHandler {
	return &BorrowingHandler{Svc: svc, Cache: cache, Log: log}
}

type createBorrowingReq struct {
	BookID             uint64 `json:"book" validate:"required"`
	ExpectedReturnDate string `json:"expected_return_date" validate:"required,datetime=2006-01-02"`
}

// borrowingRow is a list item.  UserID is only filled in for staff.
type borrowingRow struct {
	ID                 uint64  `json:"id"`
	BookID             uint64  `json:"book"`
	BookTitle          string  `json:"book_title"`
	BorrowDate         string  `json:"borrow_date"`
	ExpectedReturnDate string  `json:"expected_return_date"`
	ActualReturnDate   *string `json:"actual_return_date"`
	UserID             *uint64 `json:"user_id,omitempty"`
}

// borrowingDetailResp nests the full book and the payments.  The owner's
// id and email are always present.
type borrowingDetailResp struct {
	ID                 uint64        `json:"id"`
	UserID             uint64        `json:"user_id"`
	UserEmail          string        `json:"user_email"`
	BookTitle          string        `json:"book_title"`
	BorrowDate         string        `json:"borrow_date"`
	ExpectedReturnDate string        `json:"expected_return_date"`
	ActualReturnDate   *string       `json:"actual_return_date"`
	Book               bookResp      `json:"book"`
	Payments           []paymentResp `json:"payments"`
}

func date(t time.Time) string { return t.Format(time.DateOnly) }

func toRow(b model.Borrowing, staff bool) borrowingRow {
	r := borrowingRow{
		ID:                 b.ID,
		BookID:             b.BookID,
		BookTitle:          b.BookTitle,
		BorrowDate:         date(b.BorrowDate),
		ExpectedReturnDate: date(b.ExpectedReturnDate),
	}
	if b.ActualReturnDate != nil {
		s := date(*b.ActualReturnDate)
		r.ActualReturnDate = &s
	}
	if staff {
		uid := b.UserID
		r.UserID = &uid
	}
	return r
}

func toDetail(d model.BorrowingDetail) borrowingDetailResp {
	row := toRow(d.Borrowing, false)
	if row.BookTitle == "" {
		row.BookTitle = d.Book.Title
	}
	return borrowingDetailResp{
		ID:                 row.ID,
		UserID:             d.UserID,
		UserEmail:          d.UserEmail,
		BookTitle:          row.BookTitle,
		BorrowDate:         row.BorrowDate,
		ExpectedReturnDate: row.ExpectedReturnDate,
		ActualReturnDate:   row.ActualReturnDate,
		Book:               toBook(d.Book),
		Payments:           toPayments(d.Payments),
	}
}

// parseFilter reads user_id and is_active.  Unparseable values are
// ignored rather than rejected.
func parseFilter(c echo.Context) policy.Filter {
	var f policy.Filter
	if v := c.QueryParam("user_id"); v != "" {
		if id, err := strconv.ParseUint(v, 10, 64); err == nil {
			f.UserID = &id
		}
	}
	if v := c.QueryParam("is_active"); v != "" {
		if active, err := strconv.ParseBool(v); err == nil {
			f.IsActive = &active
		}
	}
	return f
}

// List returns the caller's borrowings, or everyone's for staff.
func (h *BorrowingHandler) List(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	cl := caller(c)
	items, err := h.Svc.List(ctx, cl, parseFilter(c))
	if err != nil {
		return respondError(c, h.Log, err)
	}
	out := make([]borrowingRow, 0, len(items))
	for _, b := range items {
		out = append(out, toRow(b, cl.IsStaff))
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out})
}

// Get returns one borrowing with its book and payments.
func (h *BorrowingHandler) Get(c echo.Context) error {
	id, ok := parseID(c)
	if !ok {
		return badRequest(c, "invalid id")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	cl := caller(c)
	d, err := h.Svc.Get(ctx, cl, id)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, toDetail(d))
}

// Create borrows a book and returns the borrowing with its checkout URL.
// The context is not given a deadline here; the payment gateway applies
// its own.
func (h *BorrowingHandler) Create(c echo.Context) error {
	var req createBorrowingReq
	if err := bindValid(c, &req); err != nil {
		return badRequest(c, err.Error())
	}
	due, err := time.Parse(time.DateOnly, req.ExpectedReturnDate)
	if err != nil {
		return badRequest(c, "expected_return_date must be a date formatted 2006-01-02")
	}

	cl := caller(c)
	d, err := h.Svc.Create(c.Request().Context(), cl, service.CreateBorrowingInput{BookID: req.BookID, ExpectedReturnDate: due})
	if err != nil {
		return respondError(c, h.Log, err)
	}
	h.purge(c.Request().Context())
	return c.JSON(http.StatusCreated, toDetail(d))
}

// Return closes a borrowing.  A late return comes back with a pending
// fine payment.
func (h *BorrowingHandler) Return(c echo.Context) error {
	id, ok := parseID(c)
	if !ok {
		return badRequest(c, "invalid id")
	}
	cl := caller(c)
	d, err := h.Svc.Return(c.Request().Context(), cl, id)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	h.purge(c.Request().Context())
	return c.JSON(http.StatusOK, toDetail(d))
}

func (h *BorrowingHandler) purge(ctx context.Context) {
	if h.Cache == nil {
		return
	}
	if err := h.Cache.Purge(ctx); err != nil {
		h.Log.Warn("catalogue cache purge failed", "err", err)
	}
}
