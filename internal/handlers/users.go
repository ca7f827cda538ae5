package handlers

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/taskmaster-pro/taskmaster/internal/apperr"
	"github.com/taskmaster-pro/taskmaster/internal/hash"
	"github.com/taskmaster-pro/taskmaster/internal/middleware"
	"github.com/taskmaster-pro/taskmaster/internal/models"
	"github.com/taskmaster-pro/taskmaster/internal/repo"
	"github.com/taskmaster-pro/taskmaster/internal/service/token"
	"github.com/taskmaster-pro/taskmaster/internal/util"
)

type UserHTTP struct {
	Users  *repo.UserRepo
	Tokens *token.Service
}

func (h *UserHTTP) Me(c echo.Context) error {
	return c.JSON(http.StatusOK, middleware.CurrentUser(c))
}

func (h *UserHTTP) UpdateMe(c echo.Context) error {
	ctx := c.Request().Context()
	user := middleware.CurrentUser(c)

	var req struct {
		Username  *string `json:"username"`
		FullName  *string `json:"full_name"`
		AvatarURL *string `json:"avatar_url"`
	}
	if err := c.Bind(&req); err != nil {
		return apperr.BadRequest("invalid request body")
	}

	if req.Username != nil {
		username := strings.TrimSpace(*req.Username)
		if len(username) < 3 {
			return apperr.Validation("username must be at least 3 characters")
		}
		if username != user.Username {
			taken, err := h.Users.UsernameTaken(ctx, username)
			if err != nil {
				return apperr.Internal(err)
			}
			if taken {
				return apperr.Conflict("username already taken")
			}
			user.Username = username
		}
	}
	if req.FullName != nil {
		user.FullName = *req.FullName
	}
	if req.AvatarURL != nil {
		user.AvatarURL = *req.AvatarURL
	}

	if err := h.Users.Update(ctx, user); err != nil {
		return apperr.Internal(err)
	}
	return c.JSON(http.StatusOK, user)
}

// ChangePassword verifies the current password, applies the policy to the new
// one and revokes every refresh session so stolen tokens die with the old
// password.
func (h *UserHTTP) ChangePassword(c echo.Context) error {
	ctx := c.Request().Context()
	user := middleware.CurrentUser(c)

	var req struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if err := c.Bind(&req); err != nil {
		return apperr.BadRequest("invalid request body")
	}

	if !hash.CheckPassword(user.PasswordHash, req.CurrentPassword) {
		return apperr.BadRequest("current password is incorrect")
	}
	if req.CurrentPassword == req.NewPassword {
		return apperr.BadRequest("new password must differ from current password")
	}
	if err := hash.ValidatePassword(req.NewPassword); err != nil {
		return err
	}

	pwHash, err := hash.HashPassword(req.NewPassword)
	if err != nil {
		return apperr.Internal(err)
	}
	if err := h.Users.UpdatePasswordHash(ctx, user.ID, pwHash); err != nil {
		return apperr.Internal(err)
	}
	if err := h.Tokens.RevokeAllForUser(ctx, user.ID); err != nil {
		return apperr.Internal(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *UserHTTP) List(c echo.Context) error {
	ctx := c.Request().Context()
	page, size := pageParams(c, 100)

	users, total, err := h.Users.List(ctx, util.Offset(page, size), size, queryBool(c, "include_inactive"))
	if err != nil {
		return apperr.Internal(err)
	}
	return c.JSON(http.StatusOK, util.NewPage(users, total, page, size))
}

func (h *UserHTTP) Get(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := pathUUID(c, "user_id")
	if err != nil {
		return err
	}

	user, err := h.Users.Get(ctx, id)
	if err != nil {
		if repo.IsNotFound(err) {
			return apperr.NotFound("user", id.String())
		}
		return apperr.Internal(err)
	}
	return c.JSON(http.StatusOK, user)
}

// Patch lets an admin change role and active status.
func (h *UserHTTP) Patch(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := pathUUID(c, "user_id")
	if err != nil {
		return err
	}

	var req struct {
		Role       *string `json:"role"`
		IsActive   *bool   `json:"is_active"`
		IsVerified *bool   `json:"is_verified"`
	}
	if err := c.Bind(&req); err != nil {
		return apperr.BadRequest("invalid request body")
	}

	user, err := h.Users.Get(ctx, id)
	if err != nil {
		if repo.IsNotFound(err) {
			return apperr.NotFound("user", id.String())
		}
		return apperr.Internal(err)
	}

	if req.Role != nil {
		if *req.Role != models.RoleUser && *req.Role != models.RoleAdmin {
			return apperr.Validation("role must be user or admin")
		}
		user.Role = *req.Role
	}
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}
	if req.IsVerified != nil {
		user.IsVerified = *req.IsVerified
	}

	if err := h.Users.Update(ctx, user); err != nil {
		return apperr.Internal(err)
	}
	return c.JSON(http.StatusOK, user)
}

// Deactivate soft-deletes the account and kills its refresh sessions.
func (h *UserHTTP) Deactivate(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := pathUUID(c, "user_id")
	if err != nil {
		return err
	}

	if err := h.Users.SetActive(ctx, id, false); err != nil {
		if repo.IsNotFound(err) {
			return apperr.NotFound("user", id.String())
		}
		return apperr.Internal(err)
	}
	if err := h.Tokens.RevokeAllForUser(ctx, id); err != nil {
		return apperr.Internal(err)
	}
	return c.NoContent(http.StatusNoContent)
}
