package middleware

// identity.go holds the request-scoped principal accessors shared across
// middleware files. The principal is set once by the Session middleware and
// read by guards, rate-limit key building and handlers. There is no ambient
// global security context; everything flows through the Echo context.

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/secure-auth-service/internal/token"
)

const (
	principalContextKey   = "principal"
	accessTokenContextKey = "access_token_raw"
)

func setPrincipal(c echo.Context, p *token.Principal) {
	c.Set(principalContextKey, p)
}

func setAccessToken(c echo.Context, raw string) {
	c.Set(accessTokenContextKey, raw)
}

// AccessTokenFrom returns the raw access token that authenticates this
// request. When the session was rotated during auto-login this is the
// freshly minted token, not the stale one the client presented.
func AccessTokenFrom(c echo.Context) (string, bool) {
	raw, ok := c.Get(accessTokenContextKey).(string)
	return raw, ok && raw != ""
}

// PrincipalFrom returns the authenticated principal for this request, or
// false when the request is anonymous.
func PrincipalFrom(c echo.Context) (*token.Principal, bool) {
	p, ok := c.Get(principalContextKey).(*token.Principal)
	return p, ok && p != nil
}

// principalLogin returns the authenticated login for rate-limit keys, or
// "anon" for anonymous requests.
func principalLogin(c echo.Context) string {
	if p, ok := PrincipalFrom(c); ok {
		return p.Login
	}
	return "anon"
}
