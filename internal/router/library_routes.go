package router

import (
	"github.com/labstack/echo/v4"

	"github.com/rpk6432/library-service/internal/handler"
	"github.com/rpk6432/library-service/internal/middleware"
)

// registerBooks: reads are public and cached, writes are staff only.
func registerBooks(e *echo.Echo, b *handler.BookHandler, auth, cache echo.MiddlewareFunc) {
	g := e.Group("/api/books")
	g.GET("", b.List, cache)
	g.GET("/:id", b.Get, cache)

	staff := []echo.MiddlewareFunc{auth, middleware.RequireStaff()}
	g.POST("", b.Create, staff...)
	g.PUT("/:id", b.Update, staff...)
	g.DELETE("/:id", b.Delete, staff...)
}

func registerBorrowings(e *echo.Echo, b *handler.BorrowingHandler, auth echo.MiddlewareFunc) {
	g := e.Group("/api/borrowings", auth)
	g.GET("", b.List)
	g.POST("", b.Create)
	g.GET("/:id", b.Get)
	g.POST("/:id/return", b.Return)
}

// registerPayments: success and cancel are the checkout redirect targets
// and carry no bearer token.
func registerPayments(e *echo.Echo, p *handler.PaymentHandler, auth echo.MiddlewareFunc) {
	e.GET("/api/payments/success", p.Success)
	e.GET("/api/payments/cancel", p.Cancel)

	g := e.Group("/api/payments", auth)
	g.GET("", p.List)
	g.GET("/:id", p.Get)
}
