package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/rpk6432/library-service/internal/model"
	"github.com/rpk6432/library-service/internal/policy"
	"github.com/rpk6432/library-service/internal/service"
)

// PaymentService is the orchestrator behind the payment endpoints.
type PaymentService interface {
	Confirm(ctx context.Context, sessionID string) (service.Confirmation, error)
	List(ctx context.Context, caller policy.Caller) ([]model.Payment, error)
	Get(ctx context.Context, caller policy.Caller, id uint64) (model.Payment, error)
}

// PaymentHandler serves /api/payments.  Success and cancel are the
// provider's redirect targets and are mounted without authentication.
type PaymentHandler struct {
	Svc PaymentService
	Log *slog.Logger
}

func NewPaymentHandler(svc PaymentService, log *slog.Logger) *PaymentHandler {
	return &PaymentHandler{Svc: svc, Log: log}
}

// List returns the payments visible to the caller.
func (h *PaymentHandler) List(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	items, err := h.Svc.List(ctx, caller(c))
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": toPayments(items)})
}

// Get returns one payment.
func (h *PaymentHandler) Get(c echo.Context) error {
	id, ok := parseID(c)
	if !ok {
		return badRequest(c, "invalid id")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	p, err := h.Svc.Get(ctx, caller(c), id)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, toPayment(p))
}

// Success confirms the payment for the session id the provider appended
// to the redirect.  Repeating the call is harmless.
func (h *PaymentHandler) Success(c echo.Context) error {
	sid := c.QueryParam("session_id")
	if sid == "" {
		return badRequest(c, "session_id not found in query parameters")
	}
	res, err := h.Svc.Confirm(c.Request().Context(), sid)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	if !res.Paid {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "Payment was not successful."})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message": fmt.Sprintf("Payment successful! Borrowing ID: %d.", res.Payment.BorrowingID),
	})
}

// Cancel tells the user the checkout can still be completed later.
func (h *PaymentHandler) Cancel(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"message": "Payment cancelled. You can retry later, the session remains valid for 24 hours.",
	})
}
