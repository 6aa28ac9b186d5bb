package middleware

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/secure-auth-service/internal/auth"
	"github.com/iliyamo/secure-auth-service/internal/token"
)

// guard.go implements post-authentication authorization. Guards read the
// already-verified principal from the request context and never touch raw
// tokens; authorization stays decoupled from token mechanics.

// RequireRole rejects requests whose principal does not hold the exact role.
func RequireRole(role token.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if err := checkRole(c, role); err != nil {
				return guardReject(c, err)
			}
			return next(c)
		}
	}
}

// RequirePermission rejects requests whose principal lacks the permission.
func RequirePermission(perm token.Permission) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if err := checkPermission(c, perm); err != nil {
				return guardReject(c, err)
			}
			return next(c)
		}
	}
}

// RequireBoth enforces role and permission together.
func RequireBoth(role token.Role, perm token.Permission) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if err := checkRole(c, role); err != nil {
				return guardReject(c, err)
			}
			if err := checkPermission(c, perm); err != nil {
				return guardReject(c, err)
			}
			return next(c)
		}
	}
}

// RequireAuthenticated only demands a principal, with no role constraint.
func RequireAuthenticated() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if _, ok := PrincipalFrom(c); !ok {
				return guardReject(c, auth.ErrUnauthenticated)
			}
			return next(c)
		}
	}
}

func checkRole(c echo.Context, role token.Role) error {
	p, ok := PrincipalFrom(c)
	if !ok {
		return auth.ErrUnauthenticated
	}
	if p.Role != role {
		return auth.ErrForbidden
	}
	return nil
}

func checkPermission(c echo.Context, perm token.Permission) error {
	p, ok := PrincipalFrom(c)
	if !ok {
		return auth.ErrUnauthenticated
	}
	if !p.HasPermission(perm) {
		return auth.ErrForbidden
	}
	return nil
}

// guardReject translates guard errors into the uniform HTTP mapping:
// missing principal -> 401, insufficient role or permission -> 403.
func guardReject(c echo.Context, err error) error {
	if errors.Is(err, auth.ErrUnauthenticated) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthenticated"})
	}
	return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
}
