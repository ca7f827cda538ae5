package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/taskmaster-pro/taskmaster/internal/apperr"
	"github.com/taskmaster-pro/taskmaster/internal/repo"
	"github.com/taskmaster-pro/taskmaster/internal/util"
	"github.com/taskmaster-pro/taskmaster/internal/ws"
)

type AdminHTTP struct {
	Users *repo.UserRepo
	Tasks *repo.TaskRepo
	Teams *repo.TeamRepo
	Hub   *ws.Hub
}

type adminStats struct {
	TotalUsers              int64            `json:"total_users"`
	ActiveUsers             int64            `json:"active_users"`
	TotalTasks              int64            `json:"total_tasks"`
	TasksByStatus           map[string]int64 `json:"tasks_by_status"`
	ActiveTeams             int64            `json:"active_teams"`
	ConnectedWebsocketUsers int              `json:"connected_websocket_users"`
}

func (h *AdminHTTP) Stats(c echo.Context) error {
	ctx := c.Request().Context()

	totalUsers, err := h.Users.CountAll(ctx)
	if err != nil {
		return apperr.Internal(err)
	}
	activeUsers, err := h.Users.CountActive(ctx)
	if err != nil {
		return apperr.Internal(err)
	}
	totalTasks, err := h.Tasks.CountAll(ctx)
	if err != nil {
		return apperr.Internal(err)
	}
	byStatus, err := h.Tasks.CountByStatus(ctx)
	if err != nil {
		return apperr.Internal(err)
	}
	teams, err := h.Teams.CountAll(ctx)
	if err != nil {
		return apperr.Internal(err)
	}

	return c.JSON(http.StatusOK, adminStats{
		TotalUsers:              totalUsers,
		ActiveUsers:             activeUsers,
		TotalTasks:              totalTasks,
		TasksByStatus:           byStatus,
		ActiveTeams:             teams,
		ConnectedWebsocketUsers: h.Hub.ConnectedUsers(),
	})
}

// ListUsers differs from the user-management listing only in defaulting to
// include inactive accounts.
func (h *AdminHTTP) ListUsers(c echo.Context) error {
	ctx := c.Request().Context()
	page, size := pageParams(c, 100)

	includeInactive := true
	if c.QueryParam("include_inactive") != "" {
		includeInactive = queryBool(c, "include_inactive")
	}

	users, total, err := h.Users.List(ctx, util.Offset(page, size), size, includeInactive)
	if err != nil {
		return apperr.Internal(err)
	}
	return c.JSON(http.StatusOK, util.NewPage(users, total, page, size))
}

func (h *AdminHTTP) ListTasks(c echo.Context) error {
	ctx := c.Request().Context()
	page, size := pageParams(c, 100)

	tasks, total, err := h.Tasks.List(ctx, repo.TaskFilter{
		IncludeArchived: queryBool(c, "include_archived"),
		Offset:          util.Offset(page, size),
		Limit:           size,
	})
	if err != nil {
		return apperr.Internal(err)
	}
	return c.JSON(http.StatusOK, util.NewPage(tasks, total, page, size))
}
