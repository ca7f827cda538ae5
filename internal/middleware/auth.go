package middleware

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/taskmaster-pro/taskmaster/internal/apperr"
	"github.com/taskmaster-pro/taskmaster/internal/models"
	"github.com/taskmaster-pro/taskmaster/internal/repo"
	"github.com/taskmaster-pro/taskmaster/internal/service/token"
)

const userContextKey = "currentUser"

type Auth struct {
	Tokens *token.Service
	Users  *repo.UserRepo
}

// RequireAuth validates the bearer access token and loads the account. A
// token that verifies but belongs to a deactivated account is rejected
// before any handler runs.
func (a *Auth) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		raw := bearerToken(c)
		if raw == "" {
			return apperr.Unauthorized("missing authentication token")
		}

		claims, err := a.Tokens.VerifyAccess(raw)
		if err != nil {
			switch {
			case errors.Is(err, token.ErrExpiredToken):
				return apperr.InvalidToken("access token expired")
			case errors.Is(err, token.ErrMalformedToken):
				return apperr.InvalidToken("malformed access token")
			default:
				return apperr.InvalidToken("invalid access token")
			}
		}

		userID, err := uuid.Parse(claims.Subject)
		if err != nil {
			return apperr.InvalidToken("malformed token subject")
		}

		user, err := a.Users.Get(c.Request().Context(), userID)
		if err != nil {
			if repo.IsNotFound(err) {
				return apperr.Unauthorized("user not found")
			}
			return apperr.Internal(err)
		}
		if !user.IsActive {
			return apperr.InactiveAccount()
		}

		c.Set(userContextKey, user)
		return next(c)
	}
}

// RequireAdmin must be chained after RequireAuth.
func (a *Auth) RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		user := CurrentUser(c)
		if user == nil {
			return apperr.Unauthorized("missing authentication token")
		}
		if user.Role != models.RoleAdmin {
			return apperr.Forbidden("admin privileges required")
		}
		return next(c)
	}
}

func CurrentUser(c echo.Context) *models.User {
	if u, ok := c.Get(userContextKey).(*models.User); ok {
		return u
	}
	return nil
}

// SetCurrentUser is a test seam for handler tests that bypass RequireAuth.
func SetCurrentUser(c echo.Context, u *models.User) {
	c.Set(userContextKey, u)
}

func bearerToken(c echo.Context) string {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
