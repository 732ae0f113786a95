package handler

import (
	"fmt"
	"strconv"

	"github.com/labstack/echo/v4"
)

// getUserID extracts the authenticated user ID that JWTAuth stored in
// the context.  JWT numeric claims arrive as float64 after JSON
// decoding, but tests and other middleware may set native ints, so a
// type switch covers the practical cases.
func getUserID(c echo.Context) (uint64, error) {
	switch v := c.Get("user_id").(type) {
	case uint64:
		return v, nil
	case int:
		return uint64(v), nil
	case int64:
		return uint64(v), nil
	case float64:
		return uint64(v), nil
	case string:
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			return n, nil
		}
	}
	return 0, fmt.Errorf("user id missing from context")
}

// isAdmin reports whether the authenticated caller holds the ADMIN role.
func isAdmin(c echo.Context) bool {
	role, _ := c.Get("role").(string)
	return role == "ADMIN"
}

// pathID parses a numeric path parameter, returning 0 when absent or
// malformed.  Handlers treat 0 as "not found" input.
func pathID(c echo.Context, name string) uint64 {
	n, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func parseUintParam(v string) (uint64, error) {
	return strconv.ParseUint(v, 10, 64)
}
