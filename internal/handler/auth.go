package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/game-rental-reservation/internal/config"
	"github.com/iliyamo/game-rental-reservation/internal/middleware"
	"github.com/iliyamo/game-rental-reservation/internal/model"
	"github.com/iliyamo/game-rental-reservation/internal/repository"
	"github.com/iliyamo/game-rental-reservation/internal/utils"
)

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Cfg    config.Config         // JWT secret, token TTLs, bcrypt cost
	Users  *repository.UserRepo  // user lookups and creation
	Tokens *repository.TokenRepo // refresh token storage
}

func NewAuthHandler(cfg config.Config, u *repository.UserRepo, t *repository.TokenRepo) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Users: u, Tokens: t}
}

// ----- DTOs -----

type registerReq struct {
	Username string  `json:"username" validate:"required,min=3,max=50,username"`
	Email    string  `json:"email" validate:"required,email"`
	Password string  `json:"password" validate:"required,min=6"`
	FullName *string `json:"full_name" validate:"omitempty,max=100"`
	Phone    *string `json:"phone" validate:"omitempty,max=30"`
}

// loginReq accepts the identifier as "login", "email" or "username".
type loginReq struct {
	Login    string `json:"login"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

func (r loginReq) identifier() string {
	for _, s := range []string{r.Login, r.Email, r.Username} {
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}

type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type verifyReq struct {
	Token string `json:"token"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}
type userPart struct {
	ID       uint64 `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}
type authResp struct {
	User    userPart  `json:"user"`
	Access  tokenPart `json:"access"`
	Refresh tokenPart `json:"refresh"`
}

func partOf(u model.User) userPart {
	return userPart{ID: u.ID, Username: u.Username, Email: u.Email, Role: u.Role}
}

// Register creates a CUSTOMER account and returns tokens immediately.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "validation_error", "invalid body")
	}
	// normalise username and email before validating
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := c.Validate(&req); err != nil {
		return validationFailed(c, err)
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	// self-registration always yields a customer
	uid, err := h.Users.Create(ctx, repository.NewUser{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		FullName: trimmed(req.FullName),
		Phone:    trimmed(req.Phone),
		Role:     model.RoleCustomer,
	}, h.Cfg.BcryptCost)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return fail(c, http.StatusConflict, "conflict", "username or email already exists")
		}
		return respondError(c, err)
	}
	u, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		return respondError(c, err)
	}
	resp, err := h.issuePair(c, u)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, resp)
}

// Login verifies the password for an email or username and returns a new pair.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "validation_error", "invalid body")
	}
	login := req.identifier()
	if login == "" || req.Password == "" {
		return fail(c, http.StatusBadRequest, "validation_error", "login and password are required")
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	// look the user up by email or username
	u, err := h.Users.GetByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fail(c, http.StatusUnauthorized, "unauthorized", "invalid credentials")
		}
		return respondError(c, err)
	}
	// unknown user and wrong password get the same answer
	if !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return fail(c, http.StatusUnauthorized, "unauthorized", "invalid credentials")
	}
	if !u.IsActive {
		return fail(c, http.StatusForbidden, "forbidden", "account is disabled")
	}
	resp, err := h.issuePair(c, u)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// Refresh validates a refresh token by hash, revokes it and issues a new pair.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return fail(c, http.StatusBadRequest, "validation_error", "refresh_token required")
	}
	hash := utils.HashRefreshRaw(strings.TrimSpace(req.RefreshToken))

	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := h.userForRefresh(c, hash)
	if err != nil || u == nil {
		return err
	}
	// rotate: the presented token is revoked before a new pair is issued
	if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
		return respondError(c, err)
	}
	resp, err := h.issuePair(c, *u)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// RefreshAccess returns a new access token without rotating the refresh token.
func (h *AuthHandler) RefreshAccess(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return fail(c, http.StatusBadRequest, "validation_error", "refresh_token required")
	}
	u, err := h.userForRefresh(c, utils.HashRefreshRaw(strings.TrimSpace(req.RefreshToken)))
	if err != nil || u == nil {
		return err
	}
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.Role, h.Cfg.AccessTTLMin)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"access": tokenPart{Token: access.Token, Expires: access.Exp},
	})
}

// Logout revokes the refresh token in the body, or every refresh token of
// the bearer when the body carries none.
func (h *AuthHandler) Logout(c echo.Context) error {
	var bearer *utils.Identity
	if auth := c.Request().Header.Get(echo.HeaderAuthorization); strings.HasPrefix(auth, "Bearer ") {
		if id, err := utils.ParseAccessToken(h.Cfg.JWTSecret, strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))); err == nil {
			bearer = &id
		}
	}
	var req refreshReq
	_ = c.Bind(&req)
	refreshToken := strings.TrimSpace(req.RefreshToken)

	ctx, cancel := reqCtx(c)
	defer cancel()

	switch {
	case refreshToken != "":
		hash := utils.HashRefreshRaw(refreshToken)
		if _, err := h.Tokens.ValidateRefresh(ctx, hash); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fail(c, http.StatusUnauthorized, "unauthorized", "invalid refresh token")
			}
			return respondError(c, err)
		}
		if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
			return respondError(c, err)
		}
	case bearer != nil:
		if err := h.Tokens.RevokeAllForUser(ctx, bearer.UserID); err != nil {
			return respondError(c, err)
		}
	default:
		return fail(c, http.StatusBadRequest, "validation_error", "provide Authorization header or refresh_token")
	}
	return c.NoContent(http.StatusNoContent)
}

// Verify reports whether an access token (body "token" or bearer header)
// is valid and belongs to an active user.
func (h *AuthHandler) Verify(c echo.Context) error {
	var req verifyReq
	_ = c.Bind(&req)
	raw := strings.TrimSpace(req.Token)
	if raw == "" {
		raw = strings.TrimSpace(strings.TrimPrefix(c.Request().Header.Get(echo.HeaderAuthorization), "Bearer "))
	}
	if raw == "" {
		return fail(c, http.StatusBadRequest, "validation_error", "token required")
	}
	id, err := utils.ParseAccessToken(h.Cfg.JWTSecret, raw)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"valid": false})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := h.Users.GetByID(ctx, id.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"valid": false})
		}
		return respondError(c, err)
	}
	if !u.IsActive {
		return c.JSON(http.StatusUnauthorized, echo.Map{"valid": false})
	}
	return c.JSON(http.StatusOK, echo.Map{"valid": true, "user": partOf(u), "expires": id.Exp})
}

// Me echoes the caller's claims.
func (h *AuthHandler) Me(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"user_id": c.Get(middleware.CtxUserID),
		"role":    c.Get(middleware.CtxRole),
	})
}

func (h *AuthHandler) issuePair(c echo.Context, u model.User) (authResp, error) {
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.Role, h.Cfg.AccessTTLMin)
	if err != nil {
		return authResp{}, err
	}
	refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
	if err != nil {
		return authResp{}, err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Tokens.StoreRefresh(ctx, u.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return authResp{}, err
	}
	return authResp{
		User:    partOf(u),
		Access:  tokenPart{Token: access.Token, Expires: access.Exp},
		Refresh: tokenPart{Token: refresh.Raw, Expires: refresh.Exp},
	}, nil
}

// userForRefresh resolves a refresh token hash to its active user. On
// failure it has already written the response and returns a nil user.
func (h *AuthHandler) userForRefresh(c echo.Context, hash string) (*model.User, error) {
	ctx, cancel := reqCtx(c)
	defer cancel()

	uid, err := h.Tokens.ValidateRefresh(ctx, hash)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fail(c, http.StatusUnauthorized, "unauthorized", "invalid refresh")
		}
		return nil, respondError(c, err)
	}
	u, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fail(c, http.StatusUnauthorized, "unauthorized", "invalid refresh")
		}
		return nil, respondError(c, err)
	}
	if !u.IsActive {
		return nil, fail(c, http.StatusForbidden, "forbidden", "account is disabled")
	}
	return &u, nil
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
