package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/secure-auth-service/internal/auth"
)

// Session runs the auto-login procedure on every request: it hands the
// request's cookies to the authenticator and, when a principal results,
// attaches it to the request-scoped Echo context for downstream guards and
// handlers. Anonymous requests pass through with no principal set; the
// authenticator has already instructed the transport to clear stale session
// cookies in that case.
func Session(authn *auth.Authenticator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cookies := auth.NewEchoCookies(c)
			if p := authn.Authenticate(c.Request().Context(), cookies); p != nil {
				setPrincipal(c, p)
				// After a rotation the cookie store already holds the new
				// access token; logout must revoke that one.
				if raw, ok := cookies.Get(auth.CookieAccess); ok {
					setAccessToken(c, raw)
				}
			}
			return next(c)
		}
	}
}
