package handlers

import (
	"errors"

	"github.com/labstack/echo/v4"

	"github.com/taskmaster-pro/taskmaster/internal/apperr"
	"github.com/taskmaster-pro/taskmaster/internal/service/token"
	"github.com/taskmaster-pro/taskmaster/internal/ws"
)

type WSHTTP struct {
	Tokens *token.Service
	Hub    *ws.Hub
}

// Connect authenticates the handshake with a token query parameter (browser
// WebSocket clients cannot set an Authorization header) and hands the
// connection to the hub. The token subject must match the path user id.
func (h *WSHTTP) Connect(c echo.Context) error {
	userID, err := pathUUID(c, "user_id")
	if err != nil {
		return err
	}

	raw := c.QueryParam("token")
	if raw == "" {
		return apperr.Unauthorized("missing authentication token")
	}

	claims, err := h.Tokens.VerifyAccess(raw)
	if err != nil {
		if errors.Is(err, token.ErrExpiredToken) {
			return apperr.InvalidToken("access token expired")
		}
		return apperr.InvalidToken("invalid access token")
	}
	if claims.Subject != userID.String() {
		return apperr.Forbidden("token does not match requested user")
	}

	return h.Hub.Serve(c.Response(), c.Request(), userID)
}
