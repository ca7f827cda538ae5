package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/taskmaster-pro/taskmaster/internal/activity"
	"github.com/taskmaster-pro/taskmaster/internal/apperr"
	"github.com/taskmaster-pro/taskmaster/internal/authz"
	"github.com/taskmaster-pro/taskmaster/internal/middleware"
	"github.com/taskmaster-pro/taskmaster/internal/models"
	"github.com/taskmaster-pro/taskmaster/internal/notify"
	"github.com/taskmaster-pro/taskmaster/internal/repo"
	"github.com/taskmaster-pro/taskmaster/internal/util"
)

type CommentHTTP struct {
	Comments *repo.CommentRepo
	Tasks    *TaskHTTP
	Notify   *notify.Service
	Activity *activity.Service
}

func (h *CommentHTTP) List(c echo.Context) error {
	ctx := c.Request().Context()
	user := middleware.CurrentUser(c)
	taskID, err := pathUUID(c, "task_id")
	if err != nil {
		return err
	}
	page, size := pageParams(c, 200)

	if _, err := h.Tasks.visibleTask(c, user, taskID); err != nil {
		return err
	}

	comments, total, err := h.Comments.ListByTask(ctx, taskID, util.Offset(page, size), size)
	if err != nil {
		return apperr.Internal(err)
	}
	return c.JSON(http.StatusOK, util.NewPage(comments, total, page, size))
}

func (h *CommentHTTP) Create(c echo.Context) error {
	ctx := c.Request().Context()
	user := middleware.CurrentUser(c)
	taskID, err := pathUUID(c, "task_id")
	if err != nil {
		return err
	}

	var req struct {
		Content string `json:"content"`
	}
	if err := c.Bind(&req); err != nil {
		return apperr.BadRequest("invalid request body")
	}
	if req.Content == "" {
		return apperr.Validation("content is required")
	}

	task, err := h.Tasks.visibleTask(c, user, taskID)
	if err != nil {
		return err
	}
	if task.IsArchived {
		return apperr.Conflict("cannot comment on an archived task")
	}

	comment := &models.Comment{
		Content:  req.Content,
		TaskID:   taskID,
		AuthorID: user.ID,
	}
	if err := h.Comments.Create(ctx, comment); err != nil {
		return apperr.Internal(err)
	}

	if task.OwnerID != user.ID {
		h.Notify.CommentAdded(ctx, task.OwnerID, task.ID, task.Title, user.Username)
	}
	h.Activity.Log(ctx, user.ID, "comment_created", "comment", comment.ID, map[string]any{
		"task_id": taskID.String(),
	})
	return c.JSON(http.StatusCreated, comment)
}

func (h *CommentHTTP) Update(c echo.Context) error {
	ctx := c.Request().Context()
	user := middleware.CurrentUser(c)

	comment, err := h.ownComment(c, user)
	if err != nil {
		return err
	}

	var req struct {
		Content string `json:"content"`
	}
	if err := c.Bind(&req); err != nil {
		return apperr.BadRequest("invalid request body")
	}
	if req.Content == "" {
		return apperr.Validation("content is required")
	}

	comment.Content = req.Content
	if err := h.Comments.Update(ctx, comment); err != nil {
		return apperr.Internal(err)
	}
	return c.JSON(http.StatusOK, comment)
}

func (h *CommentHTTP) Delete(c echo.Context) error {
	ctx := c.Request().Context()
	user := middleware.CurrentUser(c)

	comment, err := h.ownComment(c, user)
	if err != nil {
		return err
	}

	if err := h.Comments.Delete(ctx, comment.ID); err != nil {
		return apperr.Internal(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ownComment loads the comment addressed by the route and checks that the
// caller may modify it. Author-or-admin only; a comment id under the wrong
// task behaves like a missing one.
func (h *CommentHTTP) ownComment(c echo.Context, user *models.User) (*models.Comment, error) {
	taskID, err := pathUUID(c, "task_id")
	if err != nil {
		return nil, err
	}
	commentID, err := pathUUID(c, "comment_id")
	if err != nil {
		return nil, err
	}

	comment, err := h.Comments.Get(c.Request().Context(), commentID)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, apperr.NotFound("comment", commentID.String())
		}
		return nil, apperr.Internal(err)
	}
	if comment.TaskID != taskID {
		return nil, apperr.NotFound("comment", commentID.String())
	}

	res := authz.Resource{OwnerID: comment.AuthorID}
	if d := authz.Authorize(principal(user), authz.CommentEdit, res, ""); !d.Allowed {
		if d.Reason == authz.ReasonInactiveAccount {
			return nil, apperr.InactiveAccount()
		}
		return nil, apperr.Forbidden("only the comment author or admin can modify this comment")
	}
	return comment, nil
}
