package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/secure-auth-service/internal/store"
	"github.com/iliyamo/secure-auth-service/internal/token"
)

// fakeCookies is an in-memory CookieStore standing in for the HTTP layer.
type fakeCookies struct {
	values  map[string]string
	writes  int
	cleared bool
}

func newFakeCookies() *fakeCookies {
	return &fakeCookies{values: map[string]string{}}
}

func (f *fakeCookies) Get(name string) (string, bool) {
	v, ok := f.values[name]
	return v, ok && v != ""
}

func (f *fakeCookies) Set(name, value string, httpOnly bool, maxAge int) {
	f.values[name] = value
	f.writes++
}

func (f *fakeCookies) ClearAll() {
	f.values = map[string]string{}
	f.cleared = true
}

func testAuthenticator(t *testing.T) (*Authenticator, *token.Codec, *store.RevocationStore) {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	codec := token.NewCodec(priv, &priv.PublicKey, 5*time.Minute, 7*24*time.Hour)

	m := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: m.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	revocations := store.NewRevocationStore(rdb, time.Second)

	return NewAuthenticator(codec, revocations), codec, revocations
}

func sessionPrincipal() *token.Principal {
	return &token.Principal{
		ID:          uuid.New(),
		Login:       "bob@example.com",
		Name:        "Bob",
		Role:        token.RoleModerator,
		Permissions: []token.Permission{token.PermView, token.PermSearch},
	}
}

func TestAuthenticateWithValidAccessToken(t *testing.T) {
	a, _, _ := testAuthenticator(t)
	p := sessionPrincipal()
	ctx := context.Background()

	set, err := a.IssueSessionTokens(ctx, p)
	require.NoError(t, err)

	cookies := newFakeCookies()
	cookies.values[CookieAccess] = set.Access

	got := a.Authenticate(ctx, cookies)
	require.NotNil(t, got)
	assert.Equal(t, p.ID, got.ID)
	assert.Equal(t, p.Role, got.Role)
	assert.Zero(t, cookies.writes, "valid access token must not rewrite cookies")
	assert.False(t, cookies.cleared)
}

func TestAuthenticateRejectsBlacklistedAccessToken(t *testing.T) {
	a, _, _ := testAuthenticator(t)
	p := sessionPrincipal()
	ctx := context.Background()

	set, err := a.IssueSessionTokens(ctx, p)
	require.NoError(t, err)
	a.RevokeToken(ctx, set.Access)

	cookies := newFakeCookies()
	cookies.values[CookieAccess] = set.Access

	got := a.Authenticate(ctx, cookies)
	assert.Nil(t, got, "revoked token verifies cryptographically but must not authenticate")
	assert.True(t, cookies.cleared)
}

func TestAuthenticateRotatesOnExpiredAccess(t *testing.T) {
	a, codec, revocations := testAuthenticator(t)
	p := sessionPrincipal()
	ctx := context.Background()

	// Issue a session in the past so the access token is already expired but
	// the refresh and identity tokens are still live.
	past := time.Now().UTC().Add(-time.Hour)
	a.now = func() time.Time { return past }
	set, err := a.IssueSessionTokens(ctx, p)
	require.NoError(t, err)
	a.now = time.Now

	_, err = codec.VerifyAccess(set.Access)
	require.Error(t, err, "access token should be expired")

	cookies := newFakeCookies()
	cookies.values[CookieAccess] = set.Access
	cookies.values[CookieRefresh] = set.Refresh
	cookies.values[CookieIdentity] = set.Identity

	got := a.Authenticate(ctx, cookies)
	require.NotNil(t, got)
	assert.Equal(t, p.ID, got.ID)
	assert.Equal(t, p.Login, got.Login)

	// Rotation replaced all three cookies with a fresh set.
	assert.Equal(t, 3, cookies.writes)
	newAccess := cookies.values[CookieAccess]
	assert.NotEqual(t, set.Access, newAccess)
	_, err = codec.VerifyAccess(newAccess)
	assert.NoError(t, err)

	// The old refresh token was rotated out server-side.
	assert.False(t, revocations.IsRefreshValid(ctx, p.ID.String(), set.Refresh))
	assert.True(t, revocations.IsRefreshValid(ctx, p.ID.String(), cookies.values[CookieRefresh]))
}

func TestAuthenticateRefreshRequiresIdentityToken(t *testing.T) {
	a, _, _ := testAuthenticator(t)
	p := sessionPrincipal()
	ctx := context.Background()

	past := time.Now().UTC().Add(-time.Hour)
	a.now = func() time.Time { return past }
	set, err := a.IssueSessionTokens(ctx, p)
	require.NoError(t, err)
	a.now = time.Now

	cookies := newFakeCookies()
	cookies.values[CookieAccess] = set.Access
	cookies.values[CookieRefresh] = set.Refresh
	// No identity cookie: the principal cannot be rebuilt.

	got := a.Authenticate(ctx, cookies)
	assert.Nil(t, got)
	assert.True(t, cookies.cleared)
}

func TestAuthenticateRejectsMismatchedIdentity(t *testing.T) {
	a, codec, _ := testAuthenticator(t)
	p := sessionPrincipal()
	ctx := context.Background()

	past := time.Now().UTC().Add(-time.Hour)
	a.now = func() time.Time { return past }
	set, err := a.IssueSessionTokens(ctx, p)
	require.NoError(t, err)
	a.now = time.Now

	other := sessionPrincipal()
	other.Login = "mallory@example.com"
	otherIdentity, err := codec.IssueIdentity(other, time.Now().UTC())
	require.NoError(t, err)

	cookies := newFakeCookies()
	cookies.values[CookieRefresh] = set.Refresh
	cookies.values[CookieIdentity] = otherIdentity

	got := a.Authenticate(ctx, cookies)
	assert.Nil(t, got, "identity token for a different login must not ride on this refresh token")
}

func TestAuthenticateRejectsRotatedOutRefresh(t *testing.T) {
	a, _, _ := testAuthenticator(t)
	p := sessionPrincipal()
	ctx := context.Background()

	past := time.Now().UTC().Add(-time.Hour)
	a.now = func() time.Time { return past }
	stale, err := a.IssueSessionTokens(ctx, p)
	require.NoError(t, err)
	a.now = time.Now

	// A later login displaced the stale session's refresh token.
	_, err = a.IssueSessionTokens(ctx, p)
	require.NoError(t, err)

	cookies := newFakeCookies()
	cookies.values[CookieAccess] = stale.Access
	cookies.values[CookieRefresh] = stale.Refresh
	cookies.values[CookieIdentity] = stale.Identity

	got := a.Authenticate(ctx, cookies)
	assert.Nil(t, got)
	assert.True(t, cookies.cleared)
}

func TestAuthenticateAnonymousClearsCookies(t *testing.T) {
	a, _, _ := testAuthenticator(t)
	ctx := context.Background()

	t.Run("no cookies at all", func(t *testing.T) {
		cookies := newFakeCookies()
		assert.Nil(t, a.Authenticate(ctx, cookies))
		assert.True(t, cookies.cleared)
	})

	t.Run("garbage tokens", func(t *testing.T) {
		cookies := newFakeCookies()
		cookies.values[CookieAccess] = "garbage"
		cookies.values[CookieRefresh] = "also-garbage"
		assert.Nil(t, a.Authenticate(ctx, cookies))
		assert.True(t, cookies.cleared)
	})
}

// Two requests carrying the same stale refresh token can both pass the
// whitelist check before either rotates. There is no per-user lock, so both
// proceed to mint a token set; the whitelist ends up holding the last
// writer's refresh token and both requests finish authenticated with a
// usable access token.
func TestStaleRefreshDoubleRotation(t *testing.T) {
	a, codec, revocations := testAuthenticator(t)
	p := sessionPrincipal()
	ctx := context.Background()

	stale, err := a.IssueSessionTokens(ctx, p)
	require.NoError(t, err)

	// Both requests observe the stale token as valid before either writes.
	assert.True(t, revocations.IsRefreshValid(ctx, p.ID.String(), stale.Refresh))
	assert.True(t, revocations.IsRefreshValid(ctx, p.ID.String(), stale.Refresh))

	first, err := a.IssueSessionTokens(ctx, p)
	require.NoError(t, err)
	second, err := a.IssueSessionTokens(ctx, p)
	require.NoError(t, err)

	// The stale token is rotated out and the last writer's token is live.
	assert.False(t, revocations.IsRefreshValid(ctx, p.ID.String(), stale.Refresh))
	assert.True(t, revocations.IsRefreshValid(ctx, p.ID.String(), second.Refresh))

	// Claims carry second-resolution timestamps and no per-token id, so two
	// sets minted within the same second are byte-identical and "last writer
	// wins" may collapse to "same token". Either way both attempts hold a
	// verifiable, non-blacklisted access token.
	for _, set := range []TokenSet{first, second} {
		_, err := codec.VerifyAccess(set.Access)
		assert.NoError(t, err)
		assert.False(t, revocations.IsBlacklisted(ctx, set.Access))
	}
}

func TestLogoutEndsSingleSession(t *testing.T) {
	a, _, revocations := testAuthenticator(t)
	p := sessionPrincipal()
	ctx := context.Background()

	set, err := a.IssueSessionTokens(ctx, p)
	require.NoError(t, err)

	a.Logout(ctx, p.ID.String(), set.Access)

	assert.True(t, revocations.IsBlacklisted(ctx, set.Access))
	assert.False(t, revocations.IsRefreshValid(ctx, p.ID.String(), set.Refresh))
}

func TestRevokeBlacklistsAllTrackedTokens(t *testing.T) {
	a, _, revocations := testAuthenticator(t)
	p := sessionPrincipal()
	ctx := context.Background()

	first, err := a.IssueSessionTokens(ctx, p)
	require.NoError(t, err)
	second, err := a.IssueSessionTokens(ctx, p)
	require.NoError(t, err)

	a.Revoke(ctx, p.ID.String())

	assert.True(t, revocations.IsBlacklisted(ctx, first.Access))
	assert.True(t, revocations.IsBlacklisted(ctx, second.Access))
	assert.False(t, revocations.IsRefreshValid(ctx, p.ID.String(), second.Refresh))
}
