package handlers

import (
	"net/http"

	"github.com/google/uuid"
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

type TeamHTTP struct {
	Teams    *repo.TeamRepo
	Users    *repo.UserRepo
	Notify   *notify.Service
	Activity *activity.Service
}

func teamResource(team *models.Team) authz.Resource {
	return authz.Resource{OwnerID: team.OwnerID, TeamID: &team.ID}
}

// visibleTeam loads the team and enforces view access, reporting not found
// for teams the caller cannot see.
func (h *TeamHTTP) visibleTeam(c echo.Context, user *models.User, id uuid.UUID) (*models.Team, string, error) {
	ctx := c.Request().Context()

	team, err := h.Teams.Get(ctx, id)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, "", apperr.NotFound("team", id.String())
		}
		return nil, "", apperr.Internal(err)
	}

	teamRole, err := h.Teams.MemberRole(ctx, id, user.ID)
	if err != nil {
		return nil, "", apperr.Internal(err)
	}
	if d := authz.Authorize(principal(user), authz.TeamView, teamResource(team), teamRole); !d.Allowed {
		if d.Reason == authz.ReasonInactiveAccount {
			return nil, "", apperr.InactiveAccount()
		}
		return nil, "", apperr.NotFound("team", id.String())
	}
	return team, teamRole, nil
}

func (h *TeamHTTP) guard(user *models.User, team *models.Team, teamRole string, act authz.Action, detail string) error {
	if d := authz.Authorize(principal(user), act, teamResource(team), teamRole); !d.Allowed {
		if d.Reason == authz.ReasonInactiveAccount {
			return apperr.InactiveAccount()
		}
		return apperr.Forbidden(detail)
	}
	return nil
}

func (h *TeamHTTP) Create(c echo.Context) error {
	ctx := c.Request().Context()
	user := middleware.CurrentUser(c)

	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := c.Bind(&req); err != nil {
		return apperr.BadRequest("invalid request body")
	}
	if req.Name == "" {
		return apperr.Validation("name is required")
	}

	team := &models.Team{
		Name:        req.Name,
		Description: req.Description,
		OwnerID:     user.ID,
	}
	// Create also inserts the owner's manager membership.
	if err := h.Teams.Create(ctx, team); err != nil {
		return apperr.Internal(err)
	}

	h.Activity.Log(ctx, user.ID, "team_created", "team", team.ID, map[string]any{"name": team.Name})
	return c.JSON(http.StatusCreated, team)
}

func (h *TeamHTTP) ListMine(c echo.Context) error {
	ctx := c.Request().Context()
	user := middleware.CurrentUser(c)
	page, size := pageParams(c, 100)

	teams, total, err := h.Teams.ListForUser(ctx, user.ID, util.Offset(page, size), size)
	if err != nil {
		return apperr.Internal(err)
	}
	return c.JSON(http.StatusOK, util.NewPage(teams, total, page, size))
}

func (h *TeamHTTP) Get(c echo.Context) error {
	ctx := c.Request().Context()
	user := middleware.CurrentUser(c)
	id, err := pathUUID(c, "team_id")
	if err != nil {
		return err
	}

	if _, _, err := h.visibleTeam(c, user, id); err != nil {
		return err
	}

	team, err := h.Teams.GetWithMembers(ctx, id)
	if err != nil {
		return apperr.Internal(err)
	}
	return c.JSON(http.StatusOK, team)
}

func (h *TeamHTTP) Update(c echo.Context) error {
	ctx := c.Request().Context()
	user := middleware.CurrentUser(c)
	id, err := pathUUID(c, "team_id")
	if err != nil {
		return err
	}

	team, teamRole, err := h.visibleTeam(c, user, id)
	if err != nil {
		return err
	}
	if err := h.guard(user, team, teamRole, authz.TeamEdit, "only the team owner or admin can update the team"); err != nil {
		return err
	}

	var req struct {
		Name        *string `json:"name"`
		Description *string `json:"description"`
	}
	if err := c.Bind(&req); err != nil {
		return apperr.BadRequest("invalid request body")
	}

	meta := map[string]any{}
	if req.Name != nil {
		if *req.Name == "" {
			return apperr.Validation("name must not be empty")
		}
		team.Name = *req.Name
		meta["name"] = team.Name
	}
	if req.Description != nil {
		team.Description = *req.Description
	}

	if err := h.Teams.Update(ctx, team); err != nil {
		return apperr.Internal(err)
	}
	h.Activity.Log(ctx, user.ID, "team_updated", "team", team.ID, meta)
	return c.JSON(http.StatusOK, team)
}

func (h *TeamHTTP) Delete(c echo.Context) error {
	ctx := c.Request().Context()
	user := middleware.CurrentUser(c)
	id, err := pathUUID(c, "team_id")
	if err != nil {
		return err
	}

	team, teamRole, err := h.visibleTeam(c, user, id)
	if err != nil {
		return err
	}
	if err := h.guard(user, team, teamRole, authz.TeamDelete, "only the team owner or admin can delete the team"); err != nil {
		return err
	}

	if err := h.Teams.Delete(ctx, id); err != nil {
		return apperr.Internal(err)
	}
	h.Activity.Log(ctx, user.ID, "team_deleted", "team", id, nil)
	return c.NoContent(http.StatusNoContent)
}

func (h *TeamHTTP) AddMember(c echo.Context) error {
	ctx := c.Request().Context()
	user := middleware.CurrentUser(c)
	id, err := pathUUID(c, "team_id")
	if err != nil {
		return err
	}

	var req struct {
		UserID uuid.UUID `json:"user_id"`
		Role   string    `json:"role"`
	}
	if err := c.Bind(&req); err != nil {
		return apperr.BadRequest("invalid request body")
	}
	if req.UserID == uuid.Nil {
		return apperr.Validation("user_id is required")
	}
	if req.Role == "" {
		req.Role = models.TeamRoleMember
	}
	if !models.ValidTeamRole(req.Role) {
		return apperr.Validation("role must be member or manager")
	}

	team, teamRole, err := h.visibleTeam(c, user, id)
	if err != nil {
		return err
	}
	if err := h.guard(user, team, teamRole, authz.TeamManageMembers, "only a team manager or admin can add members"); err != nil {
		return err
	}

	if _, err := h.Users.Get(ctx, req.UserID); err != nil {
		if repo.IsNotFound(err) {
			return apperr.NotFound("user", req.UserID.String())
		}
		return apperr.Internal(err)
	}

	existing, err := h.Teams.GetMember(ctx, id, req.UserID)
	if err != nil {
		return apperr.Internal(err)
	}
	if existing != nil {
		return apperr.Conflict("user is already a member of this team")
	}

	member := &models.TeamMember{TeamID: id, UserID: req.UserID, Role: req.Role}
	if err := h.Teams.AddMember(ctx, member); err != nil {
		return apperr.Internal(err)
	}

	h.Notify.TeamInvite(ctx, req.UserID, id, team.Name, user.Username)
	h.Activity.Log(ctx, user.ID, "team_member_added", "team", id, map[string]any{
		"user_id": req.UserID.String(), "role": req.Role,
	})
	return c.JSON(http.StatusCreated, member)
}

// UpdateMemberRole is owner-scoped: managers cannot change each other's
// roles.
func (h *TeamHTTP) UpdateMemberRole(c echo.Context) error {
	ctx := c.Request().Context()
	user := middleware.CurrentUser(c)
	id, err := pathUUID(c, "team_id")
	if err != nil {
		return err
	}
	memberID, err := pathUUID(c, "user_id")
	if err != nil {
		return err
	}

	var req struct {
		Role string `json:"role"`
	}
	if err := c.Bind(&req); err != nil {
		return apperr.BadRequest("invalid request body")
	}
	if !models.ValidTeamRole(req.Role) {
		return apperr.Validation("role must be member or manager")
	}

	team, teamRole, err := h.visibleTeam(c, user, id)
	if err != nil {
		return err
	}
	if err := h.guard(user, team, teamRole, authz.TeamEdit, "only the team owner or admin can change member roles"); err != nil {
		return err
	}

	if err := h.Teams.UpdateMemberRole(ctx, id, memberID, req.Role); err != nil {
		if repo.IsNotFound(err) {
			return apperr.NotFound("team member", memberID.String())
		}
		return apperr.Internal(err)
	}

	member, err := h.Teams.GetMember(ctx, id, memberID)
	if err != nil {
		return apperr.Internal(err)
	}
	return c.JSON(http.StatusOK, member)
}

func (h *TeamHTTP) RemoveMember(c echo.Context) error {
	ctx := c.Request().Context()
	user := middleware.CurrentUser(c)
	id, err := pathUUID(c, "team_id")
	if err != nil {
		return err
	}
	memberID, err := pathUUID(c, "user_id")
	if err != nil {
		return err
	}

	team, teamRole, err := h.visibleTeam(c, user, id)
	if err != nil {
		return err
	}
	if team.OwnerID == memberID {
		return apperr.Forbidden("cannot remove the team owner")
	}
	if err := h.guard(user, team, teamRole, authz.TeamManageMembers, "only a team manager or admin can remove members"); err != nil {
		return err
	}

	if err := h.Teams.RemoveMember(ctx, id, memberID); err != nil {
		if repo.IsNotFound(err) {
			return apperr.NotFound("team member", memberID.String())
		}
		return apperr.Internal(err)
	}

	h.Notify.TeamRemoved(ctx, memberID, id, team.Name)
	h.Activity.Log(ctx, user.ID, "team_member_removed", "team", id, map[string]any{
		"user_id": memberID.String(),
	})
	return c.NoContent(http.StatusNoContent)
}
