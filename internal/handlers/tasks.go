package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/taskmaster-pro/taskmaster/internal/activity"
	"github.com/taskmaster-pro/taskmaster/internal/apperr"
	"github.com/taskmaster-pro/taskmaster/internal/authz"
	"github.com/taskmaster-pro/taskmaster/internal/middleware"
	"github.com/taskmaster-pro/taskmaster/internal/models"
	"github.com/taskmaster-pro/taskmaster/internal/notify"
	"github.com/taskmaster-pro/taskmaster/internal/repo"
	"github.com/taskmaster-pro/taskmaster/internal/search"
	"github.com/taskmaster-pro/taskmaster/internal/util"
)

type TaskHTTP struct {
	Tasks    *repo.TaskRepo
	Teams    *repo.TeamRepo
	Users    *repo.UserRepo
	Notify   *notify.Service
	Activity *activity.Service
	Search   *search.Service
}

func principal(user *models.User) authz.Principal {
	return authz.Principal{UserID: user.ID, Role: user.Role, Active: user.IsActive}
}

func taskResource(task *models.Task) authz.Resource {
	return authz.Resource{OwnerID: task.OwnerID, AssigneeID: task.AssignedToID, TeamID: task.TeamID}
}

// teamRoleFor resolves the caller's role in the task's team, empty when the
// task is personal or the caller is not a member.
func (h *TaskHTTP) teamRoleFor(c echo.Context, user *models.User, teamID *uuid.UUID) (string, error) {
	if teamID == nil {
		return "", nil
	}
	role, err := h.Teams.MemberRole(c.Request().Context(), *teamID, user.ID)
	if err != nil {
		return "", apperr.Internal(err)
	}
	return role, nil
}

// visibleTask loads the task and enforces view access. A task the caller
// cannot see reports not found, never forbidden.
func (h *TaskHTTP) visibleTask(c echo.Context, user *models.User, id uuid.UUID) (*models.Task, error) {
	task, err := h.Tasks.Get(c.Request().Context(), id)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, apperr.NotFound("task", id.String())
		}
		return nil, apperr.Internal(err)
	}

	teamRole, err := h.teamRoleFor(c, user, task.TeamID)
	if err != nil {
		return nil, err
	}
	if d := authz.Authorize(principal(user), authz.TaskView, taskResource(task), teamRole); !d.Allowed {
		if d.Reason == authz.ReasonInactiveAccount {
			return nil, apperr.InactiveAccount()
		}
		return nil, apperr.NotFound("task", id.String())
	}
	return task, nil
}

func (h *TaskHTTP) guardModify(c echo.Context, user *models.User, task *models.Task, act authz.Action, detail string) error {
	teamRole, err := h.teamRoleFor(c, user, task.TeamID)
	if err != nil {
		return err
	}
	if d := authz.Authorize(principal(user), act, taskResource(task), teamRole); !d.Allowed {
		if d.Reason == authz.ReasonInactiveAccount {
			return apperr.InactiveAccount()
		}
		return apperr.Forbidden(detail)
	}
	return nil
}

func (h *TaskHTTP) List(c echo.Context) error {
	ctx := c.Request().Context()
	user := middleware.CurrentUser(c)
	page, size := pageParams(c, 100)

	assignedTo, err := queryUUID(c, "assigned_to_id")
	if err != nil {
		return err
	}
	teamID, err := queryUUID(c, "team_id")
	if err != nil {
		return err
	}

	f := repo.TaskFilter{
		Status:          c.QueryParam("status"),
		Priority:        c.QueryParam("priority"),
		AssignedToID:    assignedTo,
		TeamID:          teamID,
		IncludeArchived: queryBool(c, "is_archived"),
		DueDateFrom:     parseTime(c.QueryParam("due_date_from")),
		DueDateTo:       parseTime(c.QueryParam("due_date_to")),
		Search:          c.QueryParam("search"),
		Offset:          util.Offset(page, size),
		Limit:           size,
	}
	if f.Status != "" && !models.ValidTaskStatus(f.Status) {
		return apperr.Validation("invalid status filter")
	}
	if f.Priority != "" && !models.ValidTaskPriority(f.Priority) {
		return apperr.Validation("invalid priority filter")
	}

	// Non-admins only see tasks they own, are assigned, or share a team with.
	if user.Role != models.RoleAdmin {
		teamIDs, err := h.Teams.UserTeamIDs(ctx, user.ID)
		if err != nil {
			return apperr.Internal(err)
		}
		f.OwnerID = &user.ID
		f.TeamIDs = teamIDs
	}

	tasks, total, err := h.Tasks.List(ctx, f)
	if err != nil {
		return apperr.Internal(err)
	}
	return c.JSON(http.StatusOK, util.NewPage(tasks, total, page, size))
}

func (h *TaskHTTP) Create(c echo.Context) error {
	ctx := c.Request().Context()
	user := middleware.CurrentUser(c)

	var req struct {
		Title        string     `json:"title"`
		Description  string     `json:"description"`
		Status       string     `json:"status"`
		Priority     string     `json:"priority"`
		DueDate      *time.Time `json:"due_date"`
		AssignedToID *uuid.UUID `json:"assigned_to_id"`
		TeamID       *uuid.UUID `json:"team_id"`
		Tags         []string   `json:"tags"`
	}
	if err := c.Bind(&req); err != nil {
		return apperr.BadRequest("invalid request body")
	}

	if req.Title == "" {
		return apperr.Validation("title is required")
	}
	if req.Status == "" {
		req.Status = models.TaskStatusPending
	}
	if req.Priority == "" {
		req.Priority = models.TaskPriorityMedium
	}
	if !models.ValidTaskStatus(req.Status) {
		return apperr.Validation("invalid status")
	}
	if !models.ValidTaskPriority(req.Priority) {
		return apperr.Validation("invalid priority")
	}

	if req.TeamID != nil && user.Role != models.RoleAdmin {
		member, err := h.Teams.GetMember(ctx, *req.TeamID, user.ID)
		if err != nil {
			return apperr.Internal(err)
		}
		if member == nil {
			return apperr.Forbidden("you must be a member of the team to create tasks for it")
		}
	}

	task := &models.Task{
		Title:        req.Title,
		Description:  req.Description,
		Status:       req.Status,
		Priority:     req.Priority,
		DueDate:      req.DueDate,
		OwnerID:      user.ID,
		AssignedToID: req.AssignedToID,
		TeamID:       req.TeamID,
		Tags:         req.Tags,
	}
	if err := h.Tasks.Create(ctx, task); err != nil {
		return apperr.Internal(err)
	}

	h.Search.IndexTask(ctx, task)
	h.Activity.Log(ctx, user.ID, "task_created", "task", task.ID, map[string]any{
		"title": task.Title, "status": task.Status, "priority": task.Priority,
	})
	if task.AssignedToID != nil && *task.AssignedToID != user.ID {
		h.Notify.TaskAssigned(ctx, *task.AssignedToID, task.ID, task.Title, user.Username)
	}

	return c.JSON(http.StatusCreated, task)
}

func (h *TaskHTTP) Get(c echo.Context) error {
	user := middleware.CurrentUser(c)
	id, err := pathUUID(c, "task_id")
	if err != nil {
		return err
	}

	task, err := h.visibleTask(c, user, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, task)
}

func (h *TaskHTTP) Update(c echo.Context) error {
	ctx := c.Request().Context()
	user := middleware.CurrentUser(c)
	id, err := pathUUID(c, "task_id")
	if err != nil {
		return err
	}

	task, err := h.visibleTask(c, user, id)
	if err != nil {
		return err
	}
	if err := h.guardModify(c, user, task, authz.TaskEdit, "only the task owner, team manager, or admin can modify this task"); err != nil {
		return err
	}

	var req struct {
		Title        *string    `json:"title"`
		Description  *string    `json:"description"`
		Status       *string    `json:"status"`
		Priority     *string    `json:"priority"`
		DueDate      *time.Time `json:"due_date"`
		AssignedToID *uuid.UUID `json:"assigned_to_id"`
		Tags         []string   `json:"tags"`
	}
	if err := c.Bind(&req); err != nil {
		return apperr.BadRequest("invalid request body")
	}

	meta := map[string]any{}
	oldAssignee := task.AssignedToID

	if req.Title != nil {
		if *req.Title == "" {
			return apperr.Validation("title must not be empty")
		}
		task.Title = *req.Title
		meta["title"] = task.Title
	}
	if req.Description != nil {
		task.Description = *req.Description
	}
	if req.Status != nil {
		if !models.ValidTaskStatus(*req.Status) {
			return apperr.Validation("invalid status")
		}
		task.Status = *req.Status
		meta["status"] = task.Status
	}
	if req.Priority != nil {
		if !models.ValidTaskPriority(*req.Priority) {
			return apperr.Validation("invalid priority")
		}
		task.Priority = *req.Priority
		meta["priority"] = task.Priority
	}
	if req.DueDate != nil {
		task.DueDate = req.DueDate
	}
	if req.AssignedToID != nil {
		task.AssignedToID = req.AssignedToID
		meta["assigned_to_id"] = req.AssignedToID.String()
	}
	if req.Tags != nil {
		task.Tags = req.Tags
	}

	if err := h.Tasks.Update(ctx, task); err != nil {
		return apperr.Internal(err)
	}

	h.Search.IndexTask(ctx, task)
	h.Activity.Log(ctx, user.ID, "task_updated", "task", task.ID, meta)

	if task.AssignedToID != nil &&
		(oldAssignee == nil || *oldAssignee != *task.AssignedToID) &&
		*task.AssignedToID != user.ID {
		h.Notify.TaskAssigned(ctx, *task.AssignedToID, task.ID, task.Title, user.Username)
	}
	if task.OwnerID != user.ID {
		h.Notify.TaskUpdated(ctx, task.OwnerID, task.ID, task.Title, user.Username)
	}

	return c.JSON(http.StatusOK, task)
}

// Archive is the task delete operation; the row survives with is_archived set.
func (h *TaskHTTP) Archive(c echo.Context) error {
	ctx := c.Request().Context()
	user := middleware.CurrentUser(c)
	id, err := pathUUID(c, "task_id")
	if err != nil {
		return err
	}

	task, err := h.visibleTask(c, user, id)
	if err != nil {
		return err
	}
	if err := h.guardModify(c, user, task, authz.TaskDelete, "only the task owner, team manager, or admin can archive this task"); err != nil {
		return err
	}

	if err := h.Tasks.Archive(ctx, id); err != nil {
		return apperr.Internal(err)
	}
	task.IsArchived = true
	h.Search.IndexTask(ctx, task)
	h.Activity.Log(ctx, user.ID, "task_archived", "task", task.ID, nil)

	return c.NoContent(http.StatusNoContent)
}

func (h *TaskHTTP) Assign(c echo.Context) error {
	ctx := c.Request().Context()
	user := middleware.CurrentUser(c)
	id, err := pathUUID(c, "task_id")
	if err != nil {
		return err
	}

	var req struct {
		AssignedToID uuid.UUID `json:"assigned_to_id"`
	}
	if err := c.Bind(&req); err != nil {
		return apperr.BadRequest("invalid request body")
	}
	if req.AssignedToID == uuid.Nil {
		return apperr.Validation("assigned_to_id is required")
	}

	task, err := h.visibleTask(c, user, id)
	if err != nil {
		return err
	}
	if err := h.guardModify(c, user, task, authz.TaskAssign, "only the task owner, team manager, or admin can assign this task"); err != nil {
		return err
	}

	if _, err := h.Users.Get(ctx, req.AssignedToID); err != nil {
		if repo.IsNotFound(err) {
			return apperr.NotFound("user", req.AssignedToID.String())
		}
		return apperr.Internal(err)
	}

	task.AssignedToID = &req.AssignedToID
	if err := h.Tasks.Update(ctx, task); err != nil {
		return apperr.Internal(err)
	}

	h.Search.IndexTask(ctx, task)
	if req.AssignedToID != user.ID {
		h.Notify.TaskAssigned(ctx, req.AssignedToID, task.ID, task.Title, user.Username)
	}
	h.Activity.Log(ctx, user.ID, "task_assigned", "task", task.ID, map[string]any{
		"assigned_to_id": req.AssignedToID.String(),
	})

	return c.JSON(http.StatusOK, task)
}

func (h *TaskHTTP) ListByTeam(c echo.Context) error {
	ctx := c.Request().Context()
	user := middleware.CurrentUser(c)
	teamID, err := pathUUID(c, "team_id")
	if err != nil {
		return err
	}
	page, size := pageParams(c, 100)

	team, err := h.Teams.Get(ctx, teamID)
	if err != nil {
		if repo.IsNotFound(err) {
			return apperr.NotFound("team", teamID.String())
		}
		return apperr.Internal(err)
	}

	teamRole, err := h.Teams.MemberRole(ctx, teamID, user.ID)
	if err != nil {
		return apperr.Internal(err)
	}
	res := authz.Resource{OwnerID: team.OwnerID, TeamID: &team.ID}
	if d := authz.Authorize(principal(user), authz.TeamView, res, teamRole); !d.Allowed {
		if d.Reason == authz.ReasonInactiveAccount {
			return apperr.InactiveAccount()
		}
		return apperr.NotFound("team", teamID.String())
	}

	tasks, total, err := h.Tasks.ListByTeam(ctx, teamID, util.Offset(page, size), size, queryBool(c, "include_archived"))
	if err != nil {
		return apperr.Internal(err)
	}
	return c.JSON(http.StatusOK, util.NewPage(tasks, total, page, size))
}

// SearchTasks queries the Elasticsearch index and falls back to the SQL LIKE
// filter when no search backend is configured.
func (h *TaskHTTP) SearchTasks(c echo.Context) error {
	ctx := c.Request().Context()
	user := middleware.CurrentUser(c)
	page, size := pageParams(c, 100)

	q := c.QueryParam("q")
	if q == "" {
		return apperr.Validation("q is required")
	}

	if !h.Search.Enabled() {
		f := repo.TaskFilter{Search: q, Offset: util.Offset(page, size), Limit: size}
		if user.Role != models.RoleAdmin {
			teamIDs, err := h.Teams.UserTeamIDs(ctx, user.ID)
			if err != nil {
				return apperr.Internal(err)
			}
			f.OwnerID = &user.ID
			f.TeamIDs = teamIDs
		}
		tasks, total, err := h.Tasks.List(ctx, f)
		if err != nil {
			return apperr.Internal(err)
		}
		return c.JSON(http.StatusOK, util.NewPage(tasks, total, page, size))
	}

	total, ids, err := h.Search.SearchTasks(ctx, q, util.Offset(page, size), size)
	if err != nil {
		return apperr.Internal(err)
	}

	tasks, err := h.Tasks.ListByIDs(ctx, ids)
	if err != nil {
		return apperr.Internal(err)
	}

	// Index hits are re-checked against the guard so search never widens
	// visibility.
	visible := make([]models.Task, 0, len(tasks))
	for i := range tasks {
		task := &tasks[i]
		teamRole, err := h.teamRoleFor(c, user, task.TeamID)
		if err != nil {
			return err
		}
		if d := authz.Authorize(principal(user), authz.TaskView, taskResource(task), teamRole); d.Allowed {
			visible = append(visible, *task)
		}
	}
	return c.JSON(http.StatusOK, util.NewPage(visible, total, page, size))
}

func parseTime(raw string) *time.Time {
	if raw == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil
	}
	return &t
}
