// Package authz is the single place permission rules live. The guard is a
// pure decision function over already-fetched data; handlers fetch the
// resource and the caller's team membership, the guard only decides.
package authz

import (
	"github.com/google/uuid"

	"github.com/taskmaster-pro/taskmaster/internal/models"
)

type Action string

const (
	TaskView   Action = "task:view"
	TaskEdit   Action = "task:edit"
	TaskDelete Action = "task:delete"
	TaskAssign Action = "task:assign"

	CommentEdit   Action = "comment:edit"
	CommentDelete Action = "comment:delete"

	AttachmentDelete Action = "attachment:delete"

	TeamView          Action = "team:view"
	TeamEdit          Action = "team:edit"
	TeamDelete        Action = "team:delete"
	TeamManageMembers Action = "team:manage_members"
)

const (
	ReasonInactiveAccount = "InactiveAccount"
	ReasonForbidden       = "Forbidden"
)

type Principal struct {
	UserID uuid.UUID
	Role   string
	Active bool
}

// Resource carries the ownership references the rules evaluate. TeamID nil
// means the resource is personal; AssigneeID only applies to tasks.
type Resource struct {
	OwnerID    uuid.UUID
	AssigneeID *uuid.UUID
	TeamID     *uuid.UUID
}

type Decision struct {
	Allowed bool
	Reason  string
}

func allow() Decision             { return Decision{Allowed: true} }
func deny(reason string) Decision { return Decision{Reason: reason} }

// rule is one row of the decision table.
type rule struct {
	ownerAllowed    bool
	assigneeAllowed bool
	// minTeamRole grants the action to team members holding at least this
	// role; empty means team membership never grants it.
	minTeamRole string
}

var rules = map[Action]rule{
	TaskView:   {ownerAllowed: true, assigneeAllowed: true, minTeamRole: models.TeamRoleMember},
	TaskEdit:   {ownerAllowed: true, minTeamRole: models.TeamRoleManager},
	TaskDelete: {ownerAllowed: true, minTeamRole: models.TeamRoleManager},
	TaskAssign: {ownerAllowed: true, minTeamRole: models.TeamRoleManager},

	CommentEdit:   {ownerAllowed: true},
	CommentDelete: {ownerAllowed: true},

	AttachmentDelete: {ownerAllowed: true},

	TeamView:          {ownerAllowed: true, minTeamRole: models.TeamRoleMember},
	TeamEdit:          {ownerAllowed: true},
	TeamDelete:        {ownerAllowed: true},
	TeamManageMembers: {ownerAllowed: true, minTeamRole: models.TeamRoleManager},
}

// Authorize evaluates the rules in fixed order, first match wins:
// inactive account, admin, resource owner, team role, deny.
// teamRole is the principal's membership role in the resource's team, empty
// when not a member or the resource has no team.
func Authorize(p Principal, act Action, res Resource, teamRole string) Decision {
	if !p.Active {
		return deny(ReasonInactiveAccount)
	}
	if p.Role == models.RoleAdmin {
		return allow()
	}

	r, ok := rules[act]
	if !ok {
		return deny(ReasonForbidden)
	}

	if r.ownerAllowed && res.OwnerID == p.UserID {
		return allow()
	}
	if r.assigneeAllowed && res.AssigneeID != nil && *res.AssigneeID == p.UserID {
		return allow()
	}
	if r.minTeamRole != "" && res.TeamID != nil && teamRoleAtLeast(teamRole, r.minTeamRole) {
		return allow()
	}
	return deny(ReasonForbidden)
}

func teamRoleAtLeast(have, want string) bool {
	return teamRoleRank(have) >= teamRoleRank(want) && teamRoleRank(have) > 0
}

func teamRoleRank(role string) int {
	switch role {
	case models.TeamRoleManager:
		return 2
	case models.TeamRoleMember:
		return 1
	default:
		return 0
	}
}
