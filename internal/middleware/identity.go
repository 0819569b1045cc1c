package middleware

// identity.go keeps the authenticated caller in the echo context so that
// handlers and the rate limiter read it the same way.

import (
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/rpk6432/library-service/internal/policy"
	"github.com/rpk6432/library-service/internal/utils"
)

const callerKey = "caller"

// SetCaller stores the authenticated caller on the request context.
func SetCaller(c echo.Context, caller policy.Caller) { c.Set(callerKey, caller) }

// CallerFrom returns the caller stored by JWTAuth.
func CallerFrom(c echo.Context) (policy.Caller, bool) {
	caller, ok := c.Get(callerKey).(policy.Caller)
	return caller, ok
}

// userKey identifies the caller for rate limiting, "anon" when the request
// carries no valid access token.  The limiter runs ahead of JWTAuth, so the
// bearer token is read directly when no caller is stored yet.
func userKey(c echo.Context, secret string) string {
	if caller, ok := CallerFrom(c); ok {
		return strconv.FormatUint(caller.UserID, 10)
	}
	auth := c.Request().Header.Get(echo.HeaderAuthorization)
	if secret == "" || !strings.HasPrefix(auth, "Bearer ") {
		return "anon"
	}
	claims, err := utils.ParseAccessToken(secret, strings.TrimPrefix(auth, "Bearer "))
	if err != nil {
		return "anon"
	}
	id, _ := claims.UserID()
	return strconv.FormatUint(id, 10)
}
