package token

import (
	"crypto/rsa"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Issuer is the fixed service identifier stamped into every token.
const Issuer = "auth-api"

// Token type tags. Access and identity tokens carry no type claim; every
// other kind is tagged so it can never be replayed as an access token.
const (
	TypeRefresh    = "refresh"
	TypeActivation = "activation"
	TypeRecovery   = "recovery"
)

// sessionClaims is the single wire schema shared by all token kinds. Which
// fields are populated depends on the kind: access tokens embed id, role and
// permissions; identity tokens additionally embed the display name; refresh
// and action tokens carry only the type tag and no authority claims.
type sessionClaims struct {
	ID          string   `json:"id,omitempty"`
	Name        string   `json:"name,omitempty"`
	Role        string   `json:"role,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
	TokenType   string   `json:"type,omitempty"`
	jwt.RegisteredClaims
}

// DecodedClaims exposes the subset of claims callers may inspect without
// re-verifying, e.g. to compute a blacklist TTL from the expiry of a token
// whose signature was already checked.
type DecodedClaims struct {
	Subject   string
	TokenType string
	ExpiresAt time.Time
}

// Codec signs and verifies the three session token kinds with a fixed RSA
// key pair. Verification is pure: it never consults the revocation store and
// has no side effects. A Codec is immutable after construction and safe for
// concurrent use.
type Codec struct {
	priv       *rsa.PrivateKey
	pub        *rsa.PublicKey
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewCodec builds a codec from loaded key material and the configured TTLs.
// Identity tokens share the refresh TTL so a still-valid refresh token is
// always accompanied by a decodable identity token.
func NewCodec(priv *rsa.PrivateKey, pub *rsa.PublicKey, accessTTL, refreshTTL time.Duration) *Codec {
	return &Codec{priv: priv, pub: pub, accessTTL: accessTTL, refreshTTL: refreshTTL}
}

// AccessMaxAge returns the access-token cookie lifetime in whole seconds.
func (c *Codec) AccessMaxAge() int { return int(c.accessTTL / time.Second) }

// RefreshMaxAge returns the refresh-token cookie lifetime in whole seconds.
func (c *Codec) RefreshMaxAge() int { return int(c.refreshTTL / time.Second) }

// IdentityMaxAge returns the identity-token cookie lifetime in whole seconds.
func (c *Codec) IdentityMaxAge() int { return c.RefreshMaxAge() }

// IssueAccess signs a short-lived access token embedding the principal's id,
// role and permissions. Expiry is computed from now at every call.
func (c *Codec) IssueAccess(p *Principal, now time.Time) (string, error) {
	claims := sessionClaims{
		ID:          p.ID.String(),
		Role:        string(p.Role),
		Permissions: p.PermissionStrings(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   p.Login,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.accessTTL)),
		},
	}
	return c.sign(claims)
}

// IssueRefresh signs a long-lived refresh token. It deliberately carries no
// id, role or permission claims: even if accepted by signature verification,
// it can never stand in for an access token.
func (c *Codec) IssueRefresh(login string, now time.Time) (string, error) {
	claims := sessionClaims{
		TokenType: TypeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   login,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.refreshTTL)),
		},
	}
	return c.sign(claims)
}

// IssueIdentity signs the client-readable identity token. Its claim set is
// the access claim set plus the display name, and it lives as long as the
// refresh token so the principal can be rebuilt after the access token
// expires.
func (c *Codec) IssueIdentity(p *Principal, now time.Time) (string, error) {
	claims := sessionClaims{
		ID:          p.ID.String(),
		Name:        p.Name,
		Role:        string(p.Role),
		Permissions: p.PermissionStrings(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   p.Login,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.refreshTTL)),
		},
	}
	return c.sign(claims)
}

// IssueAction signs a single-purpose short-lived token (account activation,
// password recovery) tagged with the given type. Like refresh tokens these
// carry no authority claims.
func (c *Codec) IssueAction(login, tokenType string, ttl time.Duration, now time.Time) (string, error) {
	claims := sessionClaims{
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   login,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return c.sign(claims)
}

func (c *Codec) sign(claims sessionClaims) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signed, err := t.SignedString(c.priv)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// VerifyAccess checks signature, issuer and expiry, rejects anything tagged
// as a non-access kind, and rebuilds the principal from the claims. Claim
// decoding fails closed: an unknown role or permission invalidates the whole
// token.
func (c *Codec) VerifyAccess(raw string) (*Principal, error) {
	claims, err := c.parse(raw)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != "" {
		return nil, fmt.Errorf("%w: token type %q is not an access token", ErrTokenInvalid, claims.TokenType)
	}
	return principalFromClaims(claims)
}

// VerifyRefresh checks signature, issuer, expiry and the refresh type tag,
// returning the subject login. Tokens without the tag are rejected even when
// their signature is valid.
func (c *Codec) VerifyRefresh(raw string) (string, error) {
	claims, err := c.parse(raw)
	if err != nil {
		return "", err
	}
	if claims.TokenType != TypeRefresh {
		return "", fmt.Errorf("%w: missing refresh type claim", ErrTokenInvalid)
	}
	return claims.Subject, nil
}

// VerifyIdentity validates an identity token and rebuilds the principal,
// including the display name.
func (c *Codec) VerifyIdentity(raw string) (*Principal, error) {
	claims, err := c.parse(raw)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != "" {
		return nil, fmt.Errorf("%w: token type %q is not an identity token", ErrTokenInvalid, claims.TokenType)
	}
	return principalFromClaims(claims)
}

// VerifyAction validates an activation or recovery token of the expected
// type and returns the subject login.
func (c *Codec) VerifyAction(raw, tokenType string) (string, error) {
	claims, err := c.parse(raw)
	if err != nil {
		return "", err
	}
	if claims.TokenType != tokenType {
		return "", fmt.Errorf("%w: expected %s token", ErrTokenInvalid, tokenType)
	}
	return claims.Subject, nil
}

// DecodeUnverified extracts claims without checking the signature. Only for
// paths where the token was already verified (e.g. reading the expiry of an
// access token being revoked); never an input to an authorization decision.
func (c *Codec) DecodeUnverified(raw string) (DecodedClaims, error) {
	var claims sessionClaims
	if _, _, err := jwt.NewParser().ParseUnverified(raw, &claims); err != nil {
		return DecodedClaims{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	dec := DecodedClaims{Subject: claims.Subject, TokenType: claims.TokenType}
	if claims.ExpiresAt != nil {
		dec.ExpiresAt = claims.ExpiresAt.Time
	}
	return dec, nil
}

// parse runs full verification: RS256 only, fixed issuer, expiry required.
func (c *Codec) parse(raw string) (*sessionClaims, error) {
	var claims sessionClaims
	_, err := jwt.ParseWithClaims(raw, &claims,
		func(t *jwt.Token) (interface{}, error) { return c.pub, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	return &claims, nil
}

// principalFromClaims rebuilds a Principal from verified claims. The claim
// set must be independently sufficient: id, subject and role are mandatory
// so no storage lookup is ever needed.
func principalFromClaims(claims *sessionClaims) (*Principal, error) {
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}
	id, err := uuid.Parse(claims.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed id claim", ErrTokenInvalid)
	}
	role, err := ParseRole(claims.Role)
	if err != nil {
		return nil, err
	}
	perms, err := ParsePermissions(claims.Permissions)
	if err != nil {
		return nil, err
	}
	return &Principal{
		ID:          id,
		Login:       claims.Subject,
		Name:        claims.Name,
		Role:        role,
		Permissions: perms,
	}, nil
}
