// Package router defines how HTTP routes are registered for the API.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/churchfinder/internal/handler"
	"github.com/iliyamo/churchfinder/internal/middleware"
	"github.com/iliyamo/churchfinder/internal/model"
)

// RegisterRoutes registers the health checks.  They bypass rate limiting.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	e.GET("/healthz", handler.Health)
	e.GET("/readyz", handler.Ready(db))
}

// RegisterPublic registers the unauthenticated directory endpoints under
// /api.  Responses go through the rate limiter and the response cache.
// The static segments nearby and search are matched before :id.
func RegisterPublic(e *echo.Echo, h *handler.ChurchHandler, rateLimit, cache echo.MiddlewareFunc) {
	g := e.Group("/api")
	mw := []echo.MiddlewareFunc{rateLimit, cache}
	g.GET("/churches", h.List, mw...)
	g.GET("/churches/nearby", h.Nearby, mw...)
	g.GET("/churches/search", h.Search, mw...)
	g.GET("/churches/:id", h.Get, mw...)
}

// RegisterAuth registers signup, login, refresh and logout under /api/auth.
// Logout reads the bearer itself so it works without a valid access token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, rateLimit echo.MiddlewareFunc) {
	g := e.Group("/api/auth")
	g.POST("/signup", a.Signup, rateLimit)
	g.POST("/login", a.Login, rateLimit)
	g.POST("/refresh", a.Refresh, rateLimit)
	g.POST("/logout", a.Logout, rateLimit)
}

// RegisterUser registers the endpoints of any signed-in user.
func RegisterUser(e *echo.Echo, a *handler.AuthHandler, u *handler.UserHandler, jwtSecret string, rateLimit echo.MiddlewareFunc) {
	g := e.Group("/api")
	mw := []echo.MiddlewareFunc{middleware.JWTAuth(jwtSecret), rateLimit}

	g.GET("/users/me", a.Me, mw...)
	g.PUT("/users/me", a.UpdateMe, mw...)

	g.GET("/users/favorites", u.ListFavorites, mw...)
	g.POST("/users/favorites", u.AddFavorite, mw...)
	g.DELETE("/users/favorites/:church_id", u.RemoveFavorite, mw...)

	g.GET("/users/checkins", u.ListCheckIns, mw...)
	g.POST("/churches/:id/checkins", u.CheckIn, mw...)
	g.POST("/churches/:id/claim", u.Claim, mw...)
}

// RegisterAdmin registers church management, restricted to role ADMIN.
func RegisterAdmin(e *echo.Echo, h *handler.AdminHandler, jwtSecret string) {
	g := e.Group("/api")
	mw := []echo.MiddlewareFunc{middleware.JWTAuth(jwtSecret), middleware.RequireRole(model.RoleAdmin)}
	g.POST("/churches", h.Create, mw...)
	g.PUT("/churches/:id", h.Update, mw...)
	g.PUT("/churches/:id/verified", h.SetVerified, mw...)
}
