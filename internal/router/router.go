// Package router wires handlers and middleware onto echo routes.
package router

import (
	"database/sql"

	"github.com/labstack/echo/v4"

	"github.com/rpk6432/library-service/internal/handler"
	"github.com/rpk6432/library-service/internal/middleware"
)

// Handlers bundles everything the route table needs.
type Handlers struct {
	Users      *handler.UserHandler
	Books      *handler.BookHandler
	Borrowings *handler.BorrowingHandler
	Payments   *handler.PaymentHandler
}

// Register mounts the full API.  cache fronts the public catalogue reads.
func Register(e *echo.Echo, db *sql.DB, h Handlers, jwtSecret string, cache echo.MiddlewareFunc) {
	e.GET("/healthz", handler.Health(db))

	auth := middleware.JWTAuth(jwtSecret)
	registerUsers(e, h.Users, auth)
	registerBooks(e, h.Books, auth, cache)
	registerBorrowings(e, h.Borrowings, auth)
	registerPayments(e, h.Payments, auth)
}

func registerUsers(e *echo.Echo, u *handler.UserHandler, auth echo.MiddlewareFunc) {
	g := e.Group("/api/users")
	g.POST("/register", u.Register)
	g.POST("/token", u.Token)
	g.GET("/me", u.Me, auth)
	g.PATCH("/me", u.UpdateMe, auth)
}
