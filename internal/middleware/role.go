package middleware

import (
	"net/http" // status codes

	"github.com/labstack/echo/v4" // Echo middleware types
)

// RequireRole lets the request through only when the role stored by
// JWTAuth is one of roles. Anything else gets 403.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	// Build the allow-set once at registration time.
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			// JWTAuth stores the role as a string; a missing or foreign
			// value is treated as no role at all.
			role, ok := c.Get(CtxRole).(string)
			if !ok || !allowed[role] {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden", "message": "insufficient role"})
			}
			return next(c)
		}
	}
}
