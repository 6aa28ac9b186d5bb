package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/secure-auth-service/internal/auth"
	"github.com/iliyamo/secure-auth-service/internal/config"
	"github.com/iliyamo/secure-auth-service/internal/model"
	"github.com/iliyamo/secure-auth-service/internal/queue"
	"github.com/iliyamo/secure-auth-service/internal/repository"
	queue_publisher "github.com/iliyamo/secure-auth-service/internal/service"
	"github.com/iliyamo/secure-auth-service/internal/store"
	"github.com/iliyamo/secure-auth-service/internal/token"
)

// UserHandler implements the admin-facing account management endpoints.
// Authorization is enforced by the guard middleware on the routes; handlers
// here assume an already-authorized caller.
type UserHandler struct {
	Cfg     config.Config
	Users   *repository.UserRepo
	Authn   *auth.Authenticator
	Codec   *token.Codec
	Actions *store.ActionTokenStore
}

func NewUserHandler(cfg config.Config, users *repository.UserRepo, authn *auth.Authenticator,
	codec *token.Codec, actions *store.ActionTokenStore) *UserHandler {
	return &UserHandler{Cfg: cfg, Users: users, Authn: authn, Codec: codec, Actions: actions}
}

// ----- DTOs -----

type registerUserReq struct {
	Name        string   `json:"name"`
	Login       string   `json:"login"`
	Password    string   `json:"password"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
}

type updateUserReq struct {
	Name        string   `json:"name"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
}

type changePasswordReq struct {
	Password string `json:"password"`
}

type userSummary struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Login       string   `json:"login"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
	Enabled     bool     `json:"enabled"`
}

type userPage struct {
	Users []userSummary `json:"users"`
	Total int           `json:"total"`
	Page  int           `json:"page"`
	Size  int           `json:"size"`
}

func summarize(u *model.User) userSummary {
	perms := make([]string, len(u.Permissions))
	for i, p := range u.Permissions {
		perms[i] = string(p)
	}
	return userSummary{
		ID:          u.ID.String(),
		Name:        u.Name,
		Login:       u.Login,
		Role:        string(u.Role),
		Permissions: perms,
		Enabled:     u.Enabled,
	}
}

// Register creates an account. When activation is enabled the account
// starts disabled and an activation link is emailed through the mail queue;
// otherwise it is usable immediately.
func (h *UserHandler) Register(c echo.Context) error {
	var req registerUserReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Login = strings.ToLower(strings.TrimSpace(req.Login))
	if req.Name == "" || req.Login == "" || !strings.Contains(req.Login, "@") {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name and valid login required"})
	}
	if len(req.Password) < 6 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "password must have at least 6 characters"})
	}
	role, perms, err := parseAuthority(req.Role, req.Permissions)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u := model.User{
		Name:        req.Name,
		Login:       req.Login,
		Role:        role,
		Permissions: perms,
		Enabled:     !h.Cfg.ActivationEnabled,
	}
	if err := h.Users.Create(ctx, &u, req.Password, h.Cfg.BcryptCost); err != nil {
		if errors.Is(err, repository.ErrLoginExists) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "login already exists"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create user failed"})
	}

	if h.Cfg.ActivationEnabled {
		h.sendActivationMail(ctx, &u)
	}

	return c.JSON(http.StatusCreated, summarize(&u))
}

// Update replaces name, role and permission set. Outstanding access tokens
// keep the old authority until they expire or are revoked; disabling or
// logging the user out everywhere is the remedy for an urgent demotion.
func (h *UserHandler) Update(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req updateUserReq
	if err := c.Bind(&req); err != nil || req.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name required"})
	}
	role, perms, err := parseAuthority(req.Role, req.Permissions)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Users.Update(ctx, id, req.Name, role, perms); err != nil {
		return userWriteError(c, err)
	}
	return c.NoContent(http.StatusOK)
}

// UpdatePassword stores a new password hash for the user.
func (h *UserHandler) UpdatePassword(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req changePasswordReq
	if err := c.Bind(&req); err != nil || len(req.Password) < 6 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "password must have at least 6 characters"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Users.UpdatePassword(ctx, id, req.Password, h.Cfg.BcryptCost); err != nil {
		return userWriteError(c, err)
	}
	return c.NoContent(http.StatusOK)
}

// Disable turns the account off and revokes its live sessions, so the user
// cannot keep acting on tokens issued before the disable.
func (h *UserHandler) Disable(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Users.SetEnabled(ctx, id, false); err != nil {
		return userWriteError(c, err)
	}
	h.Authn.Revoke(ctx, id.String())
	return c.NoContent(http.StatusOK)
}

// Get returns a single account summary.
func (h *UserHandler) Get(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, summarize(&u))
}

// Delete removes the account record entirely.
func (h *UserHandler) Delete(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Users.Delete(ctx, id); err != nil {
		return userWriteError(c, err)
	}
	return c.NoContent(http.StatusOK)
}

// Search filters users by name, login and role with pagination.
func (h *UserHandler) Search(c echo.Context) error {
	f := repository.SearchFilter{
		Name:      c.QueryParam("name"),
		Login:     c.QueryParam("login"),
		Page:      intParam(c, "page", 0),
		Size:      intParam(c, "size", 20),
		Sort:      c.QueryParam("sort"),
		Ascending: !strings.EqualFold(c.QueryParam("direction"), "desc"),
	}
	if roleStr := c.QueryParam("role"); roleStr != "" {
		role, err := token.ParseRole(strings.ToUpper(roleStr))
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown role"})
		}
		f.Role = role
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	users, total, err := h.Users.Search(ctx, f)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]userSummary, len(users))
	for i := range users {
		out[i] = summarize(&users[i])
	}
	return c.JSON(http.StatusOK, userPage{Users: out, Total: total, Page: f.Page, Size: f.Size})
}

func (h *UserHandler) sendActivationMail(ctx context.Context, u *model.User) {
	now := time.Now().UTC()
	tok, err := h.Codec.IssueAction(u.Login, token.TypeActivation, h.Cfg.ActivationTTL, now)
	if err != nil {
		return
	}
	if err := h.Actions.Store(ctx, token.TypeActivation, tok, u.ID.String(), h.Cfg.ActivationTTL); err != nil {
		return
	}
	domain := h.Cfg.Domain
	if !strings.HasPrefix(domain, "https://") {
		domain = "https://" + domain
	}
	link := domain + "/auth/activate?token=" + tok
	_ = queue_publisher.PublishMailRequested(ctx, queue.MailRequestedEvent{
		To:          u.Login,
		Subject:     "Account activation",
		Body:        fmt.Sprintf("Hello %s,\n\nUse the link below to activate your account:\n%s\n\nIf you did not request this, ignore this email.", u.Name, link),
		Kind:        token.TypeActivation,
		UserID:      u.ID.String(),
		RequestedAt: now.Format(time.RFC3339),
	})
}

func parseAuthority(roleStr string, permStrs []string) (token.Role, []token.Permission, error) {
	role, err := token.ParseRole(strings.ToUpper(strings.TrimSpace(roleStr)))
	if err != nil {
		return "", nil, errors.New("unknown role")
	}
	upper := make([]string, len(permStrs))
	for i, p := range permStrs {
		upper[i] = strings.ToUpper(strings.TrimSpace(p))
	}
	perms, err := token.ParsePermissions(upper)
	if err != nil {
		return "", nil, errors.New("unknown permission")
	}
	return role, perms, nil
}

func pathID(c echo.Context) (uuid.UUID, error) {
	return uuid.Parse(c.Param("id"))
}

func intParam(c echo.Context, name string, def int) int {
	v := c.QueryParam(name)
	if v == "" {
		return def
	}
	if n, err := strconv.Atoi(v); err == nil && n >= 0 {
		return n
	}
	return def
}

func userWriteError(c echo.Context, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
	}
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "operation failed"})
}
