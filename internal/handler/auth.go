package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/churchfinder/internal/config"
	"github.com/iliyamo/churchfinder/internal/geo"
	"github.com/iliyamo/churchfinder/internal/model"
	"github.com/iliyamo/churchfinder/internal/repository"
	"github.com/iliyamo/churchfinder/internal/utils"
)

// AuthHandler bundles dependencies for auth and profile endpoints.
type AuthHandler struct {
	Cfg    config.Config
	Users  UserStore
	Tokens TokenStore
	Log    *zap.Logger
}

// ----- DTOs -----

type signupReq struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}
type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}
type profileReq struct {
	DisplayName   string   `json:"display_name"`
	HomeLatitude  *float64 `json:"home_latitude"`
	HomeLongitude *float64 `json:"home_longitude"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}
type userPart struct {
	ID            uint64   `json:"id"`
	Email         string   `json:"email"`
	DisplayName   string   `json:"display_name"`
	Role          string   `json:"role"`
	HomeLatitude  *float64 `json:"home_latitude,omitempty"`
	HomeLongitude *float64 `json:"home_longitude,omitempty"`
}
type authResp struct {
	User    userPart  `json:"user"`
	Access  tokenPart `json:"access"`
	Refresh tokenPart `json:"refresh"`
}

func userView(u model.User) userPart {
	return userPart{
		ID:            u.ID,
		Email:         u.Email,
		DisplayName:   u.DisplayName,
		Role:          u.Role,
		HomeLatitude:  u.HomeLatitude,
		HomeLongitude: u.HomeLongitude,
	}
}

// issue signs an access token and stores a fresh refresh token for u.
func (h *AuthHandler) issue(c echo.Context, u model.User, status int) error {
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.Role, h.Cfg.AccessTTLMin)
	if err != nil {
		return serverError(c, h.Log, "issue access token", err)
	}
	refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
	if err != nil {
		return serverError(c, h.Log, "issue refresh token", err)
	}

	ctx, cancel := dbContext(c)
	defer cancel()
	if err := h.Tokens.StoreRefresh(ctx, u.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return serverError(c, h.Log, "store refresh token", err)
	}

	return c.JSON(status, authResp{
		User:    userView(u),
		Access:  tokenPart{Token: access.Token, Expires: access.Exp},
		Refresh: tokenPart{Token: refresh.Raw, Expires: refresh.Exp}, // raw back to client
	})
}

// Signup: create user and return tokens immediately.
func (h *AuthHandler) Signup(c echo.Context) error {
	var req signupReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	req.Email = utils.NormalizeEmail(req.Email)
	if !utils.IsValidEmail(req.Email) {
		return badRequest(c, "valid email required")
	}
	if err := utils.CheckPassword(req.Password); err != nil {
		return badRequest(c, err.Error())
	}
	name := utils.PlainText(req.DisplayName)
	if utf8.RuneCountInString(name) > 120 {
		return badRequest(c, "display_name at most 120 characters")
	}

	ctx, cancel := dbContext(c)
	defer cancel()

	uid, err := h.Users.Create(ctx, req.Email, req.Password, name, model.RoleUser, h.Cfg.BcryptCost)
	if err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "email already exists"})
		}
		return serverError(c, h.Log, "create user", err)
	}
	return h.issue(c, model.User{ID: uid, Email: req.Email, DisplayName: name, Role: model.RoleUser}, http.StatusCreated)
}

// Login: verify and return new pair.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	req.Email = utils.NormalizeEmail(req.Email)
	if req.Email == "" || req.Password == "" {
		return badRequest(c, "email/password required")
	}

	ctx, cancel := dbContext(c)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
		}
		return serverError(c, h.Log, "load user", err)
	}
	if !u.IsActive || !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	return h.issue(c, u, http.StatusOK)
}

// Refresh: rotate the refresh token and issue a new access token.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return badRequest(c, "refresh_token required")
	}
	oldHash := utils.HashRefreshRaw(strings.TrimSpace(req.RefreshToken))

	newRef, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
	if err != nil {
		return serverError(c, h.Log, "issue refresh token", err)
	}

	ctx, cancel := dbContext(c)
	defer cancel()

	userID, err := h.Tokens.Rotate(ctx, oldHash, utils.HashRefreshRaw(newRef.Raw), newRef.Exp)
	if err != nil {
		if errors.Is(err, repository.ErrInvalidRefresh) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
		}
		return serverError(c, h.Log, "rotate refresh token", err)
	}
	u, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		return serverError(c, h.Log, "load user", err)
	}
	if !u.IsActive {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
	}
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, userID, u.Role, h.Cfg.AccessTTLMin)
	if err != nil {
		return serverError(c, h.Log, "issue access token", err)
	}

	return c.JSON(http.StatusOK, authResp{
		User:    userView(u),
		Access:  tokenPart{Token: access.Token, Expires: access.Exp},
		Refresh: tokenPart{Token: newRef.Raw, Expires: newRef.Exp},
	})
}

// Logout revokes the refresh token in the body, or every refresh token of
// the bearer when the body carries none.
func (h *AuthHandler) Logout(c echo.Context) error {
	var uid uint64
	if raw, ok := strings.CutPrefix(c.Request().Header.Get(echo.HeaderAuthorization), "Bearer "); ok {
		if claims, err := utils.ParseAccessToken(h.Cfg.JWTSecret, strings.TrimSpace(raw)); err == nil {
			uid, _ = claims.UserID()
		}
	}

	var req refreshReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	refreshToken := strings.TrimSpace(req.RefreshToken)

	ctx, cancel := dbContext(c)
	defer cancel()

	if refreshToken != "" {
		hash := utils.HashRefreshRaw(refreshToken)
		if _, err := h.Tokens.ValidateRefresh(ctx, hash); err != nil {
			if errors.Is(err, repository.ErrInvalidRefresh) {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh token"})
			}
			return serverError(c, h.Log, "validate refresh token", err)
		}
		if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
			return serverError(c, h.Log, "revoke refresh token", err)
		}
		return c.NoContent(http.StatusNoContent)
	}
	if uid != 0 {
		if err := h.Tokens.RevokeAllForUser(ctx, uid); err != nil {
			return serverError(c, h.Log, "revoke refresh tokens", err)
		}
		return c.NoContent(http.StatusNoContent)
	}
	return badRequest(c, "provide Authorization header or refresh_token")
}

// Me: GET /api/users/me
func (h *AuthHandler) Me(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	ctx, cancel := dbContext(c)
	defer cancel()

	u, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return unauthorized(c)
		}
		return serverError(c, h.Log, "load user", err)
	}
	return c.JSON(http.StatusOK, userView(u))
}

// UpdateMe: PUT /api/users/me sets display name and home location.  Both
// coordinates or neither must be given.
func (h *AuthHandler) UpdateMe(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	var req profileReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	name := utils.PlainText(req.DisplayName)
	if utf8.RuneCountInString(name) > 120 {
		return badRequest(c, "display_name at most 120 characters")
	}
	if (req.HomeLatitude == nil) != (req.HomeLongitude == nil) {
		return badRequest(c, "home_latitude and home_longitude must be given together")
	}
	if req.HomeLatitude != nil {
		if err := (geo.Point{Lat: *req.HomeLatitude, Lng: *req.HomeLongitude}).Validate(); err != nil {
			return badRequest(c, err.Error())
		}
	}

	ctx, cancel := dbContext(c)
	defer cancel()

	if err := h.Users.UpdateProfile(ctx, uid, name, req.HomeLatitude, req.HomeLongitude); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return unauthorized(c)
		}
		return serverError(c, h.Log, "update profile", err)
	}
	u, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		return serverError(c, h.Log, "load user", err)
	}
	return c.JSON(http.StatusOK, userView(u))
}
