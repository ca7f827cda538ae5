package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/taskmaster-pro/taskmaster/internal/activity"
	"github.com/taskmaster-pro/taskmaster/internal/apperr"
	"github.com/taskmaster-pro/taskmaster/internal/hash"
	"github.com/taskmaster-pro/taskmaster/internal/middleware"
	"github.com/taskmaster-pro/taskmaster/internal/models"
	"github.com/taskmaster-pro/taskmaster/internal/repo"
	"github.com/taskmaster-pro/taskmaster/internal/service/token"
)

type AuthHTTP struct {
	Users    *repo.UserRepo
	Tokens   *token.Service
	Activity *activity.Service
}

func (h *AuthHTTP) Register(c echo.Context) error {
	ctx := c.Request().Context()

	var req struct {
		Email    string `json:"email"`
		Username string `json:"username"`
		Password string `json:"password"`
		FullName string `json:"full_name"`
	}
	if err := c.Bind(&req); err != nil {
		return apperr.BadRequest("invalid request body")
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Username = strings.TrimSpace(req.Username)
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		return apperr.Validation("a valid email is required")
	}
	if len(req.Username) < 3 {
		return apperr.Validation("username must be at least 3 characters")
	}
	if err := hash.ValidatePassword(req.Password); err != nil {
		return err
	}

	if taken, err := h.Users.EmailTaken(ctx, req.Email); err != nil {
		return apperr.Internal(err)
	} else if taken {
		return apperr.Conflict("email already registered")
	}
	if taken, err := h.Users.UsernameTaken(ctx, req.Username); err != nil {
		return apperr.Internal(err)
	} else if taken {
		return apperr.Conflict("username already taken")
	}

	pwHash, err := hash.HashPassword(req.Password)
	if err != nil {
		return apperr.Internal(err)
	}

	user := &models.User{
		Email:        req.Email,
		Username:     req.Username,
		PasswordHash: pwHash,
		FullName:     req.FullName,
		Role:         models.RoleUser,
		IsActive:     true,
	}
	if err := h.Users.Create(ctx, user); err != nil {
		return apperr.Internal(err)
	}

	h.Activity.Log(ctx, user.ID, "user_registered", "user", user.ID, nil)
	return c.JSON(http.StatusCreated, user)
}

func (h *AuthHTTP) Login(c echo.Context) error {
	ctx := c.Request().Context()

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return apperr.BadRequest("invalid request body")
	}

	user, err := h.Users.GetActiveByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if repo.IsNotFound(err) {
			return apperr.Unauthorized("incorrect email or password")
		}
		return apperr.Internal(err)
	}
	if !hash.CheckPassword(user.PasswordHash, req.Password) {
		return apperr.Unauthorized("incorrect email or password")
	}

	pair, err := h.Tokens.Issue(ctx, user)
	if err != nil {
		return apperr.Internal(err)
	}
	return c.JSON(http.StatusOK, pair)
}

func (h *AuthHTTP) Refresh(c echo.Context) error {
	ctx := c.Request().Context()

	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.Bind(&req); err != nil {
		return apperr.BadRequest("invalid request body")
	}
	if req.RefreshToken == "" {
		return apperr.Validation("refresh_token is required")
	}

	pair, err := h.Tokens.Refresh(ctx, req.RefreshToken)
	switch {
	case errors.Is(err, token.ErrReusedToken):
		return apperr.InvalidToken("refresh token reuse detected, all sessions revoked")
	case errors.Is(err, token.ErrExpiredToken):
		return apperr.InvalidToken("refresh token expired")
	case errors.Is(err, token.ErrInvalidToken):
		return apperr.InvalidToken("invalid refresh token")
	case err != nil:
		return apperr.Internal(err)
	}
	return c.JSON(http.StatusOK, pair)
}

// Logout revokes the presented refresh token. Revoking an unknown token is
// not an error so logout stays idempotent.
func (h *AuthHTTP) Logout(c echo.Context) error {
	ctx := c.Request().Context()
	if middleware.CurrentUser(c) == nil {
		return apperr.Unauthorized("missing authentication token")
	}

	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.Bind(&req); err != nil {
		return apperr.BadRequest("invalid request body")
	}

	if err := h.Tokens.Revoke(ctx, req.RefreshToken); err != nil {
		return apperr.Internal(err)
	}
	return c.NoContent(http.StatusNoContent)
}
