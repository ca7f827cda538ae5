package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/taskmaster-pro/taskmaster/internal/apperr"
	"github.com/taskmaster-pro/taskmaster/internal/middleware"
	"github.com/taskmaster-pro/taskmaster/internal/repo"
	"github.com/taskmaster-pro/taskmaster/internal/util"
)

type NotificationHTTP struct {
	Notifications *repo.NotificationRepo
}

func (h *NotificationHTTP) List(c echo.Context) error {
	ctx := c.Request().Context()
	user := middleware.CurrentUser(c)
	page, size := pageParams(c, 100)

	items, total, err := h.Notifications.ListByUser(ctx, user.ID,
		util.Offset(page, size), size, queryBool(c, "unread_only"))
	if err != nil {
		return apperr.Internal(err)
	}
	return c.JSON(http.StatusOK, util.NewPage(items, total, page, size))
}

func (h *NotificationHTTP) MarkRead(c echo.Context) error {
	ctx := c.Request().Context()
	user := middleware.CurrentUser(c)
	id, err := pathUUID(c, "notification_id")
	if err != nil {
		return err
	}

	n, err := h.Notifications.MarkRead(ctx, id, user.ID)
	if err != nil {
		if repo.IsNotFound(err) {
			return apperr.NotFound("notification", id.String())
		}
		return apperr.Internal(err)
	}
	return c.JSON(http.StatusOK, n)
}

func (h *NotificationHTTP) MarkAllRead(c echo.Context) error {
	ctx := c.Request().Context()
	user := middleware.CurrentUser(c)

	if err := h.Notifications.MarkAllRead(ctx, user.ID); err != nil {
		return apperr.Internal(err)
	}
	return c.NoContent(http.StatusNoContent)
}
