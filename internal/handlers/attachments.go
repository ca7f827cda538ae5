package handlers

import (
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/taskmaster-pro/taskmaster/internal/activity"
	"github.com/taskmaster-pro/taskmaster/internal/apperr"
	"github.com/taskmaster-pro/taskmaster/internal/authz"
	"github.com/taskmaster-pro/taskmaster/internal/logging"
	"github.com/taskmaster-pro/taskmaster/internal/middleware"
	"github.com/taskmaster-pro/taskmaster/internal/models"
	"github.com/taskmaster-pro/taskmaster/internal/repo"
	"github.com/taskmaster-pro/taskmaster/internal/storage"
	"github.com/taskmaster-pro/taskmaster/internal/util"
)

type AttachmentHTTP struct {
	Attachments *repo.AttachmentRepo
	Tasks       *TaskHTTP
	Store       storage.Store
	Activity    *activity.Service
	MaxUploadMB int
}

func (h *AttachmentHTTP) List(c echo.Context) error {
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

	atts, total, err := h.Attachments.ListByTask(ctx, taskID, util.Offset(page, size), size)
	if err != nil {
		return apperr.Internal(err)
	}
	return c.JSON(http.StatusOK, util.NewPage(atts, total, page, size))
}

func (h *AttachmentHTTP) Upload(c echo.Context) error {
	ctx := c.Request().Context()
	user := middleware.CurrentUser(c)
	taskID, err := pathUUID(c, "task_id")
	if err != nil {
		return err
	}

	task, err := h.Tasks.visibleTask(c, user, taskID)
	if err != nil {
		return err
	}
	if task.IsArchived {
		return apperr.Conflict("cannot attach files to an archived task")
	}

	fh, err := c.FormFile("file")
	if err != nil {
		return apperr.BadRequest("multipart field 'file' is required")
	}
	maxBytes := int64(h.MaxUploadMB) << 20
	if fh.Size > maxBytes {
		return apperr.FileTooLarge(h.MaxUploadMB)
	}

	src, err := fh.Open()
	if err != nil {
		return apperr.Internal(err)
	}
	defer src.Close()

	contentType := fh.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	// Key is unique per upload; the original filename survives on the record.
	key := fmt.Sprintf("%s_%s", uuid.New(), filepath.Base(fh.Filename))
	fileURL, err := h.Store.Save(ctx, key, src, fh.Size, contentType)
	if err != nil {
		return apperr.Internal(err)
	}

	att := &models.Attachment{
		Filename:   fh.Filename,
		FileURL:    fileURL,
		FileSize:   fh.Size,
		MimeType:   contentType,
		TaskID:     taskID,
		UploadedBy: user.ID,
	}
	if err := h.Attachments.Create(ctx, att); err != nil {
		if delErr := h.Store.Delete(ctx, key); delErr != nil {
			logging.FromContext(ctx).Error("orphaned attachment blob", "key", key, "error", delErr)
		}
		return apperr.Internal(err)
	}

	h.Activity.Log(ctx, user.ID, "attachment_uploaded", "attachment", att.ID, map[string]any{
		"task_id": taskID.String(), "filename": att.Filename,
	})
	return c.JSON(http.StatusCreated, att)
}

func (h *AttachmentHTTP) Delete(c echo.Context) error {
	ctx := c.Request().Context()
	user := middleware.CurrentUser(c)
	taskID, err := pathUUID(c, "task_id")
	if err != nil {
		return err
	}
	attID, err := pathUUID(c, "attachment_id")
	if err != nil {
		return err
	}

	att, err := h.Attachments.Get(ctx, attID)
	if err != nil {
		if repo.IsNotFound(err) {
			return apperr.NotFound("attachment", attID.String())
		}
		return apperr.Internal(err)
	}
	if att.TaskID != taskID {
		return apperr.NotFound("attachment", attID.String())
	}

	res := authz.Resource{OwnerID: att.UploadedBy}
	if d := authz.Authorize(principal(user), authz.AttachmentDelete, res, ""); !d.Allowed {
		if d.Reason == authz.ReasonInactiveAccount {
			return apperr.InactiveAccount()
		}
		return apperr.Forbidden("only the uploader or admin can delete this attachment")
	}

	// Upload keys never contain a separator, so the base of the stored URL is
	// the key for both the disk and S3 stores.
	if err := h.Store.Delete(ctx, filepath.Base(att.FileURL)); err != nil {
		logging.FromContext(ctx).Error("attachment blob delete failed", "attachment_id", attID, "error", err)
	}
	if err := h.Attachments.Delete(ctx, attID); err != nil {
		return apperr.Internal(err)
	}
	return c.NoContent(http.StatusNoContent)
}
