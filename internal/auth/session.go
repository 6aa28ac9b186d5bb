// Package auth implements the per-request session engine: resolving an
// incoming request to an authenticated principal via the access token, a
// refresh-token rotation, or an anonymous fallback, plus issuance and
// revocation entry points for the login and logout endpoints.
package auth

import (
	"context"
	"time"

	"github.com/iliyamo/secure-auth-service/internal/store"
	"github.com/iliyamo/secure-auth-service/internal/token"
)

// TokenSet bundles freshly issued session tokens with their cookie
// lifetimes, for handing to the transport layer.
type TokenSet struct {
	Access         string
	Refresh        string
	Identity       string
	AccessMaxAge   int
	RefreshMaxAge  int
	IdentityMaxAge int
}

// Authenticator orchestrates per-request credential resolution. It holds no
// per-request state and no locks; the revocation store is the only shared
// mutable resource and its single-key atomicity comes from Redis itself.
type Authenticator struct {
	codec       *token.Codec
	revocations *store.RevocationStore
	now         func() time.Time
}

func NewAuthenticator(codec *token.Codec, revocations *store.RevocationStore) *Authenticator {
	return &Authenticator{
		codec:       codec,
		revocations: revocations,
		now:         time.Now,
	}
}

func (a *Authenticator) refreshTTL() time.Duration {
	return time.Duration(a.codec.RefreshMaxAge()) * time.Second
}

func (a *Authenticator) accessTTL() time.Duration {
	return time.Duration(a.codec.AccessMaxAge()) * time.Second
}

// Authenticate resolves the request's cookies to a principal, or nil for an
// anonymous request. Evaluated once per request:
//
//  1. A verifiable, non-blacklisted access token authenticates directly.
//  2. Otherwise a verifiable refresh token triggers rotation: the principal
//     is rebuilt from the identity token, the refresh token is checked
//     against the per-user whitelist, and a full new token set is issued
//     and written back through the cookie store.
//  3. Anything else is anonymous and clears all session cookies.
//
// All token-verification failures are swallowed here; callers never see the
// underlying JWT errors. Two near-simultaneous requests carrying the same
// stale refresh token may both rotate; the whitelist ends up holding the
// last writer's token and both requests authenticate. That narrow race is
// accepted instead of paying for a per-user distributed lock.
func (a *Authenticator) Authenticate(ctx context.Context, cookies CookieStore) *token.Principal {
	if access, ok := cookies.Get(CookieAccess); ok {
		if p, err := a.codec.VerifyAccess(access); err == nil {
			if !a.revocations.IsBlacklisted(ctx, access) {
				return p
			}
		}
	}

	if refresh, ok := cookies.Get(CookieRefresh); ok {
		if p := a.refreshSession(ctx, refresh, cookies); p != nil {
			return p
		}
	}

	cookies.ClearAll()
	return nil
}

// refreshSession attempts refresh-token re-authentication. Every failure
// path returns nil; the caller clears the session cookies.
func (a *Authenticator) refreshSession(ctx context.Context, refresh string, cookies CookieStore) *token.Principal {
	subject, err := a.codec.VerifyRefresh(refresh)
	if err != nil {
		return nil
	}

	idTok, ok := cookies.Get(CookieIdentity)
	if !ok {
		return nil
	}
	p, err := a.codec.VerifyIdentity(idTok)
	if err != nil {
		return nil
	}
	// The identity token must describe the same account the refresh token
	// was issued for.
	if p.Login != subject {
		return nil
	}

	if !a.revocations.IsRefreshValid(ctx, p.ID.String(), refresh) {
		return nil
	}

	set, err := a.IssueSessionTokens(ctx, p)
	if err != nil {
		return nil
	}
	WriteCookies(cookies, set)
	return p
}

// IssueSessionTokens mints a full access/refresh/identity set for the
// principal and rotates the server-side refresh whitelist: the previous
// refresh token becomes unusable even if it has not expired. The new access
// token is also tracked so Revoke can blacklist it later.
func (a *Authenticator) IssueSessionTokens(ctx context.Context, p *token.Principal) (TokenSet, error) {
	now := a.now().UTC()

	access, err := a.codec.IssueAccess(p, now)
	if err != nil {
		return TokenSet{}, err
	}
	refresh, err := a.codec.IssueRefresh(p.Login, now)
	if err != nil {
		return TokenSet{}, err
	}
	identity, err := a.codec.IssueIdentity(p, now)
	if err != nil {
		return TokenSet{}, err
	}

	userID := p.ID.String()
	a.revocations.InvalidateRefresh(ctx, userID)
	a.revocations.WhitelistRefresh(ctx, userID, refresh, a.refreshTTL())
	a.revocations.TrackAccessToken(ctx, userID, access, a.refreshTTL())

	return TokenSet{
		Access:         access,
		Refresh:        refresh,
		Identity:       identity,
		AccessMaxAge:   a.codec.AccessMaxAge(),
		RefreshMaxAge:  a.codec.RefreshMaxAge(),
		IdentityMaxAge: a.codec.IdentityMaxAge(),
	}, nil
}

// RevokeToken blacklists a single access token for the remainder of its
// natural life. The token's expiry is read without re-verification; callers
// only pass tokens that already authenticated the current request.
func (a *Authenticator) RevokeToken(ctx context.Context, rawAccess string) {
	dec, err := a.codec.DecodeUnverified(rawAccess)
	if err != nil {
		return
	}
	remaining := dec.ExpiresAt.Sub(a.now().UTC())
	if remaining <= 0 {
		return
	}
	a.revocations.Blacklist(ctx, rawAccess, remaining)
}

// Revoke implements "log out everywhere" for a user: every tracked access
// token is blacklisted and the refresh whitelist entry is cleared.
func (a *Authenticator) Revoke(ctx context.Context, userID string) {
	a.revocations.InvalidateAllForUser(ctx, userID, a.accessTTL())
}

// Logout ends a single session: the presented access token is blacklisted
// for its remaining life and the user's refresh whitelist entry is cleared,
// so neither credential survives past this request.
func (a *Authenticator) Logout(ctx context.Context, userID, rawAccess string) {
	if rawAccess != "" {
		a.RevokeToken(ctx, rawAccess)
	}
	if userID != "" {
		a.revocations.InvalidateRefresh(ctx, userID)
	}
}

// WriteCookies hands a freshly issued token set to the transport layer,
// replacing the three session cookies.
func WriteCookies(cookies CookieStore, set TokenSet) {
	cookies.Set(CookieAccess, set.Access, true, set.AccessMaxAge)
	cookies.Set(CookieRefresh, set.Refresh, true, set.RefreshMaxAge)
	cookies.Set(CookieIdentity, set.Identity, false, set.IdentityMaxAge)
}
