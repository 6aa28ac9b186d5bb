package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/secure-auth-service/internal/auth"
	"github.com/iliyamo/secure-auth-service/internal/config"
	"github.com/iliyamo/secure-auth-service/internal/handler"
	"github.com/iliyamo/secure-auth-service/internal/middleware"
	"github.com/iliyamo/secure-auth-service/internal/token"
)

// RegisterRoutes registers routes that carry no session at all.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth wires the session endpoints. The credential routes (login,
// recover) are rate limited per client; everything under the session group
// runs the auto-login middleware so handlers see a principal when one can be
// resolved from the request cookies.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, authn *auth.Authenticator,
	rlCfg config.RateLimitConfig, rdb *redis.Client) {
	limited := middleware.RateLimit(rlCfg, rdb)

	pub := e.Group("/v1/auth")
	pub.POST("/login", a.Login, limited)
	pub.POST("/recover", a.Recover, limited)
	pub.POST("/reset-password", a.ResetPassword)
	pub.GET("/activate", a.Activate)

	sess := e.Group("/v1", middleware.Session(authn))
	sess.POST("/auth/logout", a.Logout)
	sess.POST("/auth/logout-all", a.LogoutAll, middleware.RequireAuthenticated())
	sess.GET("/me", a.Me, middleware.RequireAuthenticated())
}

// RegisterUsers wires the admin account-management endpoints. Every route
// runs the session middleware and a guard; the role/permission pairs mirror
// the authority model carried in the access token.
func RegisterUsers(e *echo.Echo, u *handler.UserHandler, authn *auth.Authenticator) {
	g := e.Group("/v1/users", middleware.Session(authn))

	g.POST("", u.Register, middleware.RequireBoth(token.RoleAdmin, token.PermCreate))
	g.GET("", u.Search, middleware.RequirePermission(token.PermSearch))
	g.GET("/:id", u.Get, middleware.RequirePermission(token.PermView))
	g.PUT("/:id", u.Update, middleware.RequirePermission(token.PermEdit))
	g.PUT("/:id/password", u.UpdatePassword, middleware.RequirePermission(token.PermEdit))
	g.POST("/:id/disable", u.Disable, middleware.RequireBoth(token.RoleAdmin, token.PermDisable))
	g.DELETE("/:id", u.Delete, middleware.RequireBoth(token.RoleAdmin, token.PermDisable))
}
