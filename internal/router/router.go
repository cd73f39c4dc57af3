package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/gym-management/internal/config"
	"github.com/iliyamo/gym-management/internal/handler"    // handlers that implement business logic
	"github.com/iliyamo/gym-management/internal/middleware" // middleware for JWT authentication, rate limiting and caching
	"github.com/iliyamo/gym-management/internal/repository"
)

// RegisterRoutes registers routes that do not require authentication on the
// provided Echo instance: the API root greeting and the health check used
// by load balancers and monitoring systems.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/", handler.Welcome)
	e.GET("/api/health", handler.Health)
}

// RegisterAuth registers all authentication-related routes under /api/auth.
// The whole group sits behind the Redis token-bucket limiter (a no-op when
// Redis is absent) since these endpoints are the natural target for
// credential stuffing. Register, login, refresh and logout do not require a
// session; /api/auth/me resolves the caller through the JWT middleware.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, users *repository.UserRepo, rdb *redis.Client) {
	limiter := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)

	g := e.Group("/api/auth", limiter)
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	// Refresh rotates the presented token; a second use of the same token
	// is rejected.
	g.POST("/refresh", a.Refresh)
	// Logout invalidates the refresh token from the body when present, and
	// always succeeds.
	g.POST("/logout", a.Logout)
	g.GET("/me", a.Me, middleware.JWTAuth(a.Cfg.JWTSecret, users))
}

// RegisterGyms registers the gym CRUD routes under /api/gyms. Every route
// requires a valid access token; per-resource authorization (owner or head
// coach) happens inside the handlers. The optional response cache runs
// after authentication so cache keys can include the caller.
func RegisterGyms(e *echo.Echo, h *handler.GymHandler, jwtSecret string, users *repository.UserRepo, rdb *redis.Client) {
	g := e.Group("/api/gyms")
	g.Use(middleware.JWTAuth(jwtSecret, users))
	g.Use(middleware.NewRedisCache(config.LoadCacheConfig(), rdb))

	g.POST("", h.CreateGym)
	g.GET("", h.ListGyms)
	g.GET("/:id", h.GetGym)
	g.PUT("/:id", h.UpdateGym)
	g.DELETE("/:id", h.DeleteGym)
}
