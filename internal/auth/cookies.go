package auth

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Session cookie names. The access and refresh cookies are HTTP-only; the
// identity cookie is readable by client-side script so the UI can render the
// logged-in user without an extra round-trip.
const (
	CookieAccess   = "access_token"
	CookieRefresh  = "refresh_token"
	CookieIdentity = "id_token"
)

// CookieStore is the narrow transport contract the authenticator talks to.
// It hides how raw token strings travel between client and server so the
// session engine stays independent of the HTTP framework.
type CookieStore interface {
	// Get returns the raw token for a cookie name, false when absent.
	Get(name string) (string, bool)
	// Set emits a session cookie with the given lifetime in seconds.
	Set(name, value string, httpOnly bool, maxAge int)
	// ClearAll expires all three session cookies.
	ClearAll()
}

// echoCookies adapts an Echo request/response pair to CookieStore. All
// cookies are Secure, Path=/ and SameSite=Lax. Writes are remembered so a
// Get issued later in the same request observes the rotated-in value, not
// the stale one the client sent.
type echoCookies struct {
	c       echo.Context
	written map[string]string
}

// NewEchoCookies wraps the request-scoped Echo context.
func NewEchoCookies(c echo.Context) CookieStore {
	return &echoCookies{c: c, written: map[string]string{}}
}

func (e *echoCookies) Get(name string) (string, bool) {
	if v, ok := e.written[name]; ok {
		return v, v != ""
	}
	ck, err := e.c.Cookie(name)
	if err != nil || ck.Value == "" {
		return "", false
	}
	return ck.Value, true
}

func (e *echoCookies) Set(name, value string, httpOnly bool, maxAge int) {
	e.written[name] = value
	e.c.SetCookie(&http.Cookie{
		Name:     name,
		Value:    value,
		HttpOnly: httpOnly,
		Secure:   true,
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	})
}

func (e *echoCookies) ClearAll() {
	e.Set(CookieAccess, "", true, -1)
	e.Set(CookieRefresh, "", true, -1)
	e.Set(CookieIdentity, "", false, -1)
}
