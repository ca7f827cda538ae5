package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/taskmaster-pro/taskmaster/internal/apperr"
	"github.com/taskmaster-pro/taskmaster/internal/middleware"
	"github.com/taskmaster-pro/taskmaster/internal/repo"
	"github.com/taskmaster-pro/taskmaster/internal/util"
)

type ActivityHTTP struct {
	Logs  *repo.ActivityRepo
	Tasks *TaskHTTP
}

func (h *ActivityHTTP) Mine(c echo.Context) error {
	ctx := c.Request().Context()
	user := middleware.CurrentUser(c)
	page, size := pageParams(c, 100)

	logs, total, err := h.Logs.ListByUser(ctx, user.ID, util.Offset(page, size), size)
	if err != nil {
		return apperr.Internal(err)
	}
	return c.JSON(http.StatusOK, util.NewPage(logs, total, page, size))
}

// ByTask returns the audit trail of one task, visible only to users who can
// view the task itself.
func (h *ActivityHTTP) ByTask(c echo.Context) error {
	ctx := c.Request().Context()
	user := middleware.CurrentUser(c)
	taskID, err := pathUUID(c, "task_id")
	if err != nil {
		return err
	}
	page, size := pageParams(c, 100)

	if _, err := h.Tasks.visibleTask(c, user, taskID); err != nil {
		return err
	}

	logs, total, err := h.Logs.ListByEntity(ctx, "task", taskID, util.Offset(page, size), size)
	if err != nil {
		return apperr.Internal(err)
	}
	return c.JSON(http.StatusOK, util.NewPage(logs, total, page, size))
}

// All is the admin firehose with optional entity_type and action filters.
func (h *ActivityHTTP) All(c echo.Context) error {
	ctx := c.Request().Context()
	page, size := pageParams(c, 100)

	logs, total, err := h.Logs.ListAll(ctx,
		c.QueryParam("entity_type"), c.QueryParam("action"),
		util.Offset(page, size), size)
	if err != nil {
		return apperr.Internal(err)
	}
	return c.JSON(http.StatusOK, util.NewPage(logs, total, page, size))
}
