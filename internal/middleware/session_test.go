package middleware

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/secure-auth-service/internal/auth"
	"github.com/iliyamo/secure-auth-service/internal/store"
	"github.com/iliyamo/secure-auth-service/internal/token"
)

func testSessionStack(t *testing.T) (*auth.Authenticator, *token.Codec, *store.RevocationStore) {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	codec := token.NewCodec(priv, &priv.PublicKey, 5*time.Minute, 7*24*time.Hour)

	m := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: m.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	revocations := store.NewRevocationStore(rdb, time.Second)

	return auth.NewAuthenticator(codec, revocations), codec, revocations
}

func TestSessionMiddlewareSetsPrincipal(t *testing.T) {
	authn, codec, _ := testSessionStack(t)

	p := &token.Principal{
		ID:          uuid.New(),
		Login:       "carol@example.com",
		Role:        token.RoleUser,
		Permissions: []token.Permission{token.PermView},
	}
	access, err := codec.IssueAccess(p, time.Now().UTC())
	require.NoError(t, err)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/me", nil)
	req.AddCookie(&http.Cookie{Name: auth.CookieAccess, Value: access})
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var got *token.Principal
	handler := Session(authn)(func(c echo.Context) error {
		got, _ = PrincipalFrom(c)
		return c.NoContent(http.StatusOK)
	})

	require.NoError(t, handler(c))
	require.NotNil(t, got)
	assert.Equal(t, p.ID, got.ID)
	assert.Equal(t, p.Login, got.Login)

	raw, ok := AccessTokenFrom(c)
	assert.True(t, ok)
	assert.Equal(t, access, raw)
}

// When auto-login rotates the session, downstream handlers must see the
// rotated-in access token, not the stale cookie the client sent; logout
// blacklists through this value.
func TestSessionMiddlewareExposesRotatedAccessToken(t *testing.T) {
	authn, codec, revocations := testSessionStack(t)

	p := &token.Principal{
		ID:          uuid.New(),
		Login:       "carol@example.com",
		Name:        "Carol",
		Role:        token.RoleUser,
		Permissions: []token.Permission{token.PermView},
	}
	past := time.Now().UTC().Add(-time.Hour)
	staleAccess, err := codec.IssueAccess(p, past)
	require.NoError(t, err)
	refresh, err := codec.IssueRefresh(p.Login, past)
	require.NoError(t, err)
	identity, err := codec.IssueIdentity(p, past)
	require.NoError(t, err)
	revocations.WhitelistRefresh(context.Background(), p.ID.String(), refresh, time.Hour)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/me", nil)
	req.AddCookie(&http.Cookie{Name: auth.CookieAccess, Value: staleAccess})
	req.AddCookie(&http.Cookie{Name: auth.CookieRefresh, Value: refresh})
	req.AddCookie(&http.Cookie{Name: auth.CookieIdentity, Value: identity})
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := Session(authn)(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	require.NoError(t, handler(c))

	_, ok := PrincipalFrom(c)
	require.True(t, ok)

	raw, ok := AccessTokenFrom(c)
	require.True(t, ok)
	assert.NotEqual(t, staleAccess, raw)
	_, err = codec.VerifyAccess(raw)
	assert.NoError(t, err)
}

func TestSessionMiddlewareAnonymousPassesThrough(t *testing.T) {
	authn, _, _ := testSessionStack(t)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/me", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	called := false
	handler := Session(authn)(func(c echo.Context) error {
		called = true
		_, ok := PrincipalFrom(c)
		assert.False(t, ok)
		return c.NoContent(http.StatusOK)
	})

	require.NoError(t, handler(c))
	assert.True(t, called, "anonymous requests still reach the handler")

	// Stale session cookies get expired on the response.
	cleared := 0
	for _, ck := range rec.Result().Cookies() {
		if ck.MaxAge < 0 {
			cleared++
		}
	}
	assert.Equal(t, 3, cleared)
}
