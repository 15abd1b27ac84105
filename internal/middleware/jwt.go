package middleware // reusable Echo middleware: auth, roles, rate limiting, caching, request logs

import (
	"net/http" // HTTP status codes for responses
	"strings"  // prefix checks and trimming of the Authorization header

	"github.com/labstack/echo/v4" // Echo framework types for middleware and handlers

	"github.com/iliyamo/game-rental-reservation/internal/utils" // access token parsing
)

// Context keys set by JWTAuth.
const (
	CtxUserID = "user_id" // uint64 id of the authenticated user
	CtxRole   = "role"    // role claim, CUSTOMER or ADMIN
)

// JWTAuth returns an Echo middleware that validates a Bearer access token
// and stores the caller's id (uint64) and role (string) in the context under
// CtxUserID and CtxRole. The secret must match the one used when issuing
// tokens. Handlers behind it read the caller with c.Get(CtxUserID).
func JWTAuth(secret string) echo.MiddlewareFunc {
	// The outer function runs once, when the middleware is registered.
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		// The returned handler runs for every request on the route.
		return func(c echo.Context) error {
			// A valid header is "Bearer <jwt>"; anything else is a 401.
			auth := c.Request().Header.Get(echo.HeaderAuthorization)
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized", "message": "missing bearer token"})
			}
			// Strip the scheme to get the raw token.
			raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))

			// Verify signature, algorithm and expiry, and pull out sub and role.
			id, err := utils.ParseAccessToken(secret, raw)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized", "message": "invalid token"})
			}

			// Expose the identity to downstream middleware and handlers.
			c.Set(CtxUserID, id.UserID)
			c.Set(CtxRole, id.Role)
			// Continue down the chain.
			return next(c)
		}
	}
}
