package handler

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/room-reservation/internal/model"
)

// dbTimeout bounds every database call made from a handler.
const dbTimeout = 5 * time.Second

// getUserID extracts the authenticated user's id from the context values set
// by the JWT middleware.  The jwt library decodes numeric claims as float64;
// string subjects are parsed for tokens minted elsewhere.
func getUserID(c echo.Context) (uint64, bool) {
	switch v := c.Get("user_id").(type) {
	case float64:
		return uint64(v), true
	case uint64:
		return v, true
	case string:
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			return n, true
		}
	}
	return 0, false
}

// getRole returns the caller's role claim, or the empty string.
func getRole(c echo.Context) string {
	if s, ok := c.Get("role").(string); ok {
		return s
	}
	return ""
}

// isAdmin reports whether the caller carries the ADMIN role.
func isAdmin(c echo.Context) bool {
	return getRole(c) == model.RoleAdmin
}

// pathID parses the :id path parameter.
func pathID(c echo.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}
