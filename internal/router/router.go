package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/game-rental-reservation/internal/config"
	"github.com/iliyamo/game-rental-reservation/internal/handler"
	"github.com/iliyamo/game-rental-reservation/internal/middleware"
)

// RegisterRoutes registers the unauthenticated health endpoints. /healthz is pure
// liveness; /health also pings the database.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	e.GET("/healthz", handler.Health)
	e.GET("/health", handler.Readiness(db))
}

// RegisterAuth registers the session endpoints under /v1/auth and the
// claims echo at /v1/me.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/refresh-access", a.RefreshAccess)
	g.POST("/logout", a.Logout)
	g.POST("/verify", a.Verify)

	auth := e.Group("/v1", middleware.JWTAuth(jwtSecret))
	auth.GET("/me", a.Me)
}

// RegisterPublic registers the catalog. List and detail go through the
// Redis response cache; availability and calendar are always live.
func RegisterPublic(e *echo.Echo, g *handler.GameHandler, cacheCfg config.CacheConfig, rdb *redis.Client) {
	cache := middleware.NewRedisCache(cacheCfg, rdb)
	e.GET("/v1/games", g.List, cache)
	e.GET("/v1/games/:id", g.Get, cache)
	e.GET("/v1/games/:id/availability", g.Availability)
	e.GET("/v1/games/:id/calendar", g.Calendar)
}
