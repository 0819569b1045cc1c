// Package handler exposes the HTTP API.  Handlers decode and validate the
// request, call one service or repository operation and map its error
// kind to a status code.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/rpk6432/library-service/internal/middleware"
	"github.com/rpk6432/library-service/internal/policy"
	"github.com/rpk6432/library-service/internal/repository"
	"github.com/rpk6432/library-service/internal/service"
	"github.com/rpk6432/library-service/internal/utils"
)

// dbTimeout bounds handlers that only talk to the database.
const dbTimeout = 5 * time.Second

// errorStatus maps an error kind to its HTTP status and public message.
// Forbidden wraps not found, so both produce the same 404 body.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, service.ErrOutOfStock):
		return http.StatusBadRequest, "this book is out of stock"
	case errors.Is(err, service.ErrInvalidDate):
		return http.StatusBadRequest, service.ErrInvalidDate.Error()
	case errors.Is(err, service.ErrAlreadyReturned):
		return http.StatusBadRequest, service.ErrAlreadyReturned.Error()
	case errors.Is(err, service.ErrInvalidSession):
		return http.StatusBadRequest, "invalid payment session"
	case errors.Is(err, service.ErrPaymentSession), errors.Is(err, service.ErrGateway):
		return http.StatusBadGateway, "payment provider unavailable, try again later"
	case errors.Is(err, utils.ErrWeakPassword):
		return http.StatusBadRequest, utils.ErrWeakPassword.Error()
	case errors.Is(err, repository.ErrEmailExists):
		return http.StatusConflict, "email already exists"
	case errors.Is(err, repository.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	}
	return http.StatusInternalServerError, "internal error"
}

// respondError writes the JSON error body for err and logs unexpected
// failures.
func respondError(c echo.Context, log *slog.Logger, err error) error {
	status, msg := errorStatus(err)
	if status >= http.StatusInternalServerError {
		log.Error("request failed",
			"path", c.Path(),
			"req_id", c.Response().Header().Get(echo.HeaderXRequestID),
			"err", err)
	}
	return c.JSON(status, echo.Map{"error": msg})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
}

func parseID(c echo.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	return id, err == nil && id > 0
}

// caller returns the authenticated caller.  Routes using it are always
// mounted behind JWTAuth.
func caller(c echo.Context) policy.Caller {
	cl, _ := middleware.CallerFrom(c)
	return cl
}

// bindValid binds the request body into dst and runs struct validation.
func bindValid(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return errors.New("invalid body")
	}
	if err := c.Validate(dst); err != nil {
		return err
	}
	return nil
}
