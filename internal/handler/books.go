package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/rpk6432/library-service/internal/model"
)

// Catalogue is the book persistence behind the catalogue endpoints.
type Catalogue interface {
	List(ctx context.Context) ([]model.Book, error)
	GetByID(ctx context.Context, id uint64) (model.Book, error)
	Create(ctx context.Context, b *model.Book) error
	Update(ctx context.Context, b *model.Book) error
	Delete(ctx context.Context, id uint64) error
}

// Purger drops cached catalogue responses after a write.
type Purger interface {
	Purge(ctx context.Context) error
}

// BookHandler serves the catalogue.  Reads are public; writes are mounted
// behind RequireStaff.
type BookHandler struct {
	Books Catalogue
	Cache Purger
	Log   *slog.Logger
}

func NewBookHandler(books Catalogue, cache Purger, log *slog.Logger) *BookHandler {
	return &BookHandler{Books: books, Cache: cache, Log: log}
}

type bookReq struct {
	Title     string          `json:"title" validate:"required,max=255"`
	Author    string          `json:"author" validate:"required,max=255"`
	Cover     model.Cover     `json:"cover" validate:"required,oneof=HARD SOFT"`
	Inventory *uint32         `json:"inventory" validate:"required"`
	DailyFee  decimal.Decimal `json:"daily_fee"`
}

func (r bookReq) book() model.Book {
	return model.Book{
		Title:     r.Title,
		Author:    r.Author,
		Cover:     r.Cover,
		Inventory: *r.Inventory,
		DailyFee:  r.DailyFee.Round(2),
	}
}

func (h *BookHandler) bind(c echo.Context) (model.Book, bool, error) {
	var req bookReq
	if err := bindValid(c, &req); err != nil {
		return model.Book{}, false, badRequest(c, err.Error())
	}
	if !req.DailyFee.IsPositive() {
		return model.Book{}, false, badRequest(c, "daily_fee must be greater than zero")
	}
	return req.book(), true, nil
}

// List returns the whole catalogue.
func (h *BookHandler) List(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	books, err := h.Books.List(ctx)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": toBooks(books)})
}

// Get returns one book.
func (h *BookHandler) Get(c echo.Context) error {
	id, ok := parseID(c)
	if !ok {
		return badRequest(c, "invalid id")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	b, err := h.Books.GetByID(ctx, id)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, toBook(b))
}

// Create adds a book.
func (h *BookHandler) Create(c echo.Context) error {
	b, ok, err := h.bind(c)
	if !ok {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.Books.Create(ctx, &b); err != nil {
		return respondError(c, h.Log, err)
	}
	h.purge(ctx)
	created, err := h.Books.GetByID(ctx, b.ID)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, toBook(created))
}

// Update replaces the editable fields of a book.
func (h *BookHandler) Update(c echo.Context) error {
	id, ok := parseID(c)
	if !ok {
		return badRequest(c, "invalid id")
	}
	b, ok, err := h.bind(c)
	if !ok {
		return err
	}
	b.ID = id
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.Books.Update(ctx, &b); err != nil {
		return respondError(c, h.Log, err)
	}
	h.purge(ctx)
	updated, err := h.Books.GetByID(ctx, id)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, toBook(updated))
}

// Delete removes a book that has no active borrowings.
func (h *BookHandler) Delete(c echo.Context) error {
	id, ok := parseID(c)
	if !ok {
		return badRequest(c, "invalid id")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.Books.Delete(ctx, id); err != nil {
		return respondError(c, h.Log, err)
	}
	h.purge(ctx)
	return c.NoContent(http.StatusNoContent)
}

func (h *BookHandler) purge(ctx context.Context) {
	if h.Cache == nil {
		return
	}
	if err := h.Cache.Purge(ctx); err != nil {
		h.Log.Warn("catalogue cache purge failed", "err", err)
	}
}
