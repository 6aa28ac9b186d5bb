package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"github.com/iliyamo/secure-auth-service/internal/token"
)

func guardContext(t *testing.T, p *token.Principal) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/users", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if p != nil {
		setPrincipal(c, p)
	}
	return c, rec
}

func okHandler(c echo.Context) error { return c.NoContent(http.StatusOK) }

func moderator() *token.Principal {
	return &token.Principal{
		ID:          uuid.New(),
		Login:       "mod@example.com",
		Role:        token.RoleModerator,
		Permissions: []token.Permission{token.PermView, token.PermEdit},
	}
}

func TestRequireRole(t *testing.T) {
	t.Run("anonymous gets 401", func(t *testing.T) {
		c, rec := guardContext(t, nil)
		assert.NoError(t, RequireRole(token.RoleAdmin)(okHandler)(c))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.JSONEq(t, `{"error":"unauthenticated"}`, rec.Body.String())
	})

	t.Run("wrong role gets 403", func(t *testing.T) {
		c, rec := guardContext(t, moderator())
		assert.NoError(t, RequireRole(token.RoleAdmin)(okHandler)(c))
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.JSONEq(t, `{"error":"forbidden"}`, rec.Body.String())
	})

	t.Run("matching role passes", func(t *testing.T) {
		c, rec := guardContext(t, moderator())
		assert.NoError(t, RequireRole(token.RoleModerator)(okHandler)(c))
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestRequirePermission(t *testing.T) {
	t.Run("anonymous gets 401", func(t *testing.T) {
		c, rec := guardContext(t, nil)
		assert.NoError(t, RequirePermission(token.PermView)(okHandler)(c))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("missing permission gets 403", func(t *testing.T) {
		c, rec := guardContext(t, moderator())
		assert.NoError(t, RequirePermission(token.PermDisable)(okHandler)(c))
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("held permission passes", func(t *testing.T) {
		c, rec := guardContext(t, moderator())
		assert.NoError(t, RequirePermission(token.PermEdit)(okHandler)(c))
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestRequireBoth(t *testing.T) {
	admin := &token.Principal{
		ID:          uuid.New(),
		Login:       "admin@example.com",
		Role:        token.RoleAdmin,
		Permissions: []token.Permission{token.PermCreate},
	}

	t.Run("role without permission gets 403", func(t *testing.T) {
		c, rec := guardContext(t, admin)
		assert.NoError(t, RequireBoth(token.RoleAdmin, token.PermDisable)(okHandler)(c))
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("permission without role gets 403", func(t *testing.T) {
		c, rec := guardContext(t, moderator())
		assert.NoError(t, RequireBoth(token.RoleAdmin, token.PermEdit)(okHandler)(c))
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("both satisfied passes", func(t *testing.T) {
		c, rec := guardContext(t, admin)
		assert.NoError(t, RequireBoth(token.RoleAdmin, token.PermCreate)(okHandler)(c))
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestRequireAuthenticated(t *testing.T) {
	t.Run("anonymous gets 401", func(t *testing.T) {
		c, rec := guardContext(t, nil)
		assert.NoError(t, RequireAuthenticated()(okHandler)(c))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("any principal passes", func(t *testing.T) {
		c, rec := guardContext(t, moderator())
		assert.NoError(t, RequireAuthenticated()(okHandler)(c))
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
