package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/secure-auth-service/internal/auth"
	"github.com/iliyamo/secure-auth-service/internal/config"
	"github.com/iliyamo/secure-auth-service/internal/middleware"
	"github.com/iliyamo/secure-auth-service/internal/queue"
	"github.com/iliyamo/secure-auth-service/internal/repository"
	queue_publisher "github.com/iliyamo/secure-auth-service/internal/service"
	"github.com/iliyamo/secure-auth-service/internal/store"
	"github.com/iliyamo/secure-auth-service/internal/token"
	"github.com/iliyamo/secure-auth-service/internal/utils"
)

// AuthHandler bundles dependencies for session endpoints: login, logout,
// account activation and password recovery.
type AuthHandler struct {
	Cfg     config.Config
	Users   *repository.UserRepo
	Authn   *auth.Authenticator
	Codec   *token.Codec
	Actions *store.ActionTokenStore
}

func NewAuthHandler(cfg config.Config, users *repository.UserRepo, authn *auth.Authenticator,
	codec *token.Codec, actions *store.ActionTokenStore) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Users: users, Authn: authn, Codec: codec, Actions: actions}
}

// ----- DTOs -----

type loginReq struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}
type recoverReq struct {
	Login string `json:"login"`
}
type resetPasswordReq struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

type principalResp struct {
	ID          string   `json:"id"`
	Login       string   `json:"login"`
	Name        string   `json:"name"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
}

func principalJSON(p *token.Principal) principalResp {
	return principalResp{
		ID:          p.ID.String(),
		Login:       p.Login,
		Name:        p.Name,
		Role:        string(p.Role),
		Permissions: p.PermissionStrings(),
	}
}

// Login verifies credentials, issues the access/refresh/identity token set
// and hands it to the client as session cookies. The refresh token is
// whitelisted server-side, displacing any previous session for this user.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Login = strings.ToLower(strings.TrimSpace(req.Login))
	if req.Login == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "login/password required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByLogin(ctx, req.Login)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	if !u.Enabled {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "account disabled"})
	}

	p := u.Principal()
	set, err := h.Authn.IssueSessionTokens(ctx, p)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue tokens failed"})
	}
	auth.WriteCookies(auth.NewEchoCookies(c), set)

	return c.JSON(http.StatusOK, principalJSON(p))
}

// Logout ends the current session: the presented access token is
// blacklisted for the rest of its life, the refresh whitelist entry is
// cleared and all session cookies are expired. Safe to call anonymously;
// it then only clears cookies.
func (h *AuthHandler) Logout(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	cookies := auth.NewEchoCookies(c)
	if p, ok := middleware.PrincipalFrom(c); ok {
		access, _ := middleware.AccessTokenFrom(c)
		h.Authn.Logout(ctx, p.ID.String(), access)
	}
	cookies.ClearAll()
	return c.NoContent(http.StatusNoContent)
}

// LogoutAll revokes every known token for the authenticated user across all
// devices, then clears this client's cookies.
func (h *AuthHandler) LogoutAll(c echo.Context) error {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthenticated"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	h.Authn.Revoke(ctx, p.ID.String())
	auth.NewEchoCookies(c).ClearAll()
	return c.NoContent(http.StatusNoContent)
}

// Me returns the authenticated principal, rebuilt purely from token claims.
func (h *AuthHandler) Me(c echo.Context) error {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthenticated"})
	}
	return c.JSON(http.StatusOK, principalJSON(p))
}

// Recover starts the password recovery flow. The response is 202 whether or
// not the login exists, so the endpoint cannot be used to enumerate
// accounts. The recovery link is emailed via the mail queue.
func (h *AuthHandler) Recover(c echo.Context) error {
	if !h.Cfg.RecoveryEnabled {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "recovery disabled"})
	}
	var req recoverReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Login) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "login required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByLogin(ctx, strings.ToLower(strings.TrimSpace(req.Login)))
	if err != nil {
		// Do not reveal whether the account exists.
		return c.JSON(http.StatusAccepted, echo.Map{"status": "accepted"})
	}

	tok, err := h.Codec.IssueAction(u.Login, token.TypeRecovery, h.Cfg.RecoveryTTL, time.Now().UTC())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue token failed"})
	}
	if err := h.Actions.Store(ctx, token.TypeRecovery, tok, u.ID.String(), h.Cfg.RecoveryTTL); err != nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "try again later"})
	}

	link := h.actionLink("/auth/reset-password", tok)
	_ = queue_publisher.PublishMailRequested(ctx, queue.MailRequestedEvent{
		To:          u.Login,
		Subject:     "Password recovery",
		Body:        fmt.Sprintf("Hello %s,\n\nUse the link below to reset your password:\n%s\n\nIf you did not request this, ignore this email.", u.Name, link),
		Kind:        token.TypeRecovery,
		UserID:      u.ID.String(),
		RequestedAt: time.Now().UTC().Format(time.RFC3339),
	})

	return c.JSON(http.StatusAccepted, echo.Map{"status": "accepted"})
}

// ResetPassword redeems a recovery token: the new password is stored and
// every outstanding session for the user is revoked.
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	if !h.Cfg.RecoveryEnabled {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "recovery disabled"})
	}
	var req resetPasswordReq
	if err := c.Bind(&req); err != nil || req.Token == "" || len(req.Password) < 6 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "token and password (min 6 chars) required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	uid, err := h.redeemActionToken(ctx, req.Token, token.TypeRecovery)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid or expired token"})
	}

	if err := h.Users.UpdatePassword(ctx, uid, req.Password, h.Cfg.BcryptCost); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}
	// A password reset implies the old credentials may be compromised.
	h.Authn.Revoke(ctx, uid.String())

	return c.NoContent(http.StatusNoContent)
}

// Activate redeems an activation token and enables the account.
func (h *AuthHandler) Activate(c echo.Context) error {
	if !h.Cfg.ActivationEnabled {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "activation disabled"})
	}
	tok := c.QueryParam("token")
	if tok == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "token required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	uid, err := h.redeemActionToken(ctx, tok, token.TypeActivation)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid or expired token"})
	}
	if err := h.Users.SetEnabled(ctx, uid, true); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "activation failed"})
	}

	return c.JSON(http.StatusOK, echo.Map{"status": "activated"})
}

// redeemActionToken validates signature and type, then consumes the token
// through the single-use store. Both checks must pass: a signed token that
// was already redeemed (or never recorded) is rejected. Consumption happens
// before the account write, so a failed write burns the token rather than
// leaving it replayable.
func (h *AuthHandler) redeemActionToken(ctx context.Context, tok, kind string) (uuid.UUID, error) {
	if _, err := h.Codec.VerifyAction(tok, kind); err != nil {
		return uuid.Nil, err
	}
	uidStr, ok := h.Actions.Redeem(ctx, kind, tok)
	if !ok {
		return uuid.Nil, token.ErrTokenInvalid
	}
	uid, err := uuid.Parse(uidStr)
	if err != nil {
		return uuid.Nil, token.ErrTokenInvalid
	}
	return uid, nil
}

func (h *AuthHandler) actionLink(path, tok string) string {
	domain := h.Cfg.Domain
	if !strings.HasPrefix(domain, "https://") {
		domain = "https://" + domain
	}
	return domain + path + "?token=" + url.QueryEscape(tok)
}
