package token

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrTokenInvalid is returned for any verification failure: bad signature,
// wrong issuer, expired token, wrong token type, or a claim value outside
// the closed role/permission sets. Callers treat all of these uniformly as
// "not authenticated".
var ErrTokenInvalid = errors.New("invalid token")

// Role is the single-valued role carried by access and identity tokens.
type Role string

const (
	RoleAdmin     Role = "ADMIN"
	RoleModerator Role = "MODERATOR"
	RoleUser      Role = "USER"
)

// ParseRole maps a claim string onto the closed role set. Unknown values
// fail with ErrTokenInvalid rather than degrading to a default role.
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleAdmin, RoleModerator, RoleUser:
		return r, nil
	}
	return "", fmt.Errorf("%w: unknown role %q", ErrTokenInvalid, s)
}

// Permission is a fine-grained authority carried alongside the role.
type Permission string

const (
	PermCreate  Permission = "CREATE"
	PermEdit    Permission = "EDIT"
	PermDisable Permission = "DISABLE"
	PermView    Permission = "VIEW"
	PermSearch  Permission = "SEARCH"
)

// ParsePermission maps a claim string onto the closed permission set.
// A malformed permission fails the whole token; silently dropping it would
// let a tampered claim shrink into a "smaller" but still accepted one.
func ParsePermission(s string) (Permission, error) {
	switch p := Permission(s); p {
	case PermCreate, PermEdit, PermDisable, PermView, PermSearch:
		return p, nil
	}
	return "", fmt.Errorf("%w: unknown permission %q", ErrTokenInvalid, s)
}

// ParsePermissions converts a claim array into a permission list, failing
// closed on the first unknown value.
func ParsePermissions(values []string) ([]Permission, error) {
	perms := make([]Permission, 0, len(values))
	for _, v := range values {
		p, err := ParsePermission(v)
		if err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, nil
}

// Principal is an authenticated identity rebuilt purely from token claims.
// It is constructed fresh on every successful verification and is never
// persisted; account storage is not consulted at verification time.
type Principal struct {
	ID          uuid.UUID
	Login       string
	Name        string
	Role        Role
	Permissions []Permission
}

// HasPermission reports whether the principal carries the given permission.
func (p *Principal) HasPermission(perm Permission) bool {
	for _, have := range p.Permissions {
		if have == perm {
			return true
		}
	}
	return false
}

// PermissionStrings returns the permission set as plain strings for claim
// encoding and JSON responses.
func (p *Principal) PermissionStrings() []string {
	out := make([]string, len(p.Permissions))
	for i, perm := range p.Permissions {
		out[i] = string(perm)
	}
	return out
}
