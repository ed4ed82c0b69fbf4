package middleware

// identity.go holds the shared user-identity helper used by the cache and
// rate-limit middleware when building Redis keys.

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// requestUserID returns the authenticated user's id as a string, or "anon"
// for unauthenticated requests.  JWTAuth stores the raw "sub" claim, which
// the jwt library decodes as float64; string subjects are passed through.
func requestUserID(c echo.Context) string {
	switch v := c.Get("user_id").(type) {
	case float64:
		return strconv.FormatUint(uint64(v), 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case string:
		if v != "" {
			return v
		}
	}
	return "anon"
}
