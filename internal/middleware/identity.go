package middleware

// identity.go holds the helpers that read the authenticated caller back out
// of the Echo context.

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// UserID returns the id stored by JWTAuth.
func UserID(c echo.Context) (uint64, bool) {
	id, ok := c.Get(CtxUserID).(uint64)
	return id, ok && id != 0
}

// Role returns the role stored by JWTAuth, or "" for anonymous callers.
func Role(c echo.Context) string {
	r, _ := c.Get(CtxRole).(string)
	return r
}

// subject renders the caller for rate-limit and log keys; anonymous callers
// are "anon".
func subject(c echo.Context) string {
	if id, ok := UserID(c); ok {
		return strconv.FormatUint(id, 10)
	}
	return "anon"
}
