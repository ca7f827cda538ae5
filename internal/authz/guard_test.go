package authz

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/taskmaster-pro/taskmaster/internal/models"
)

func TestAuthorize_InactiveAccountDeniesEverything(t *testing.T) {
	t.Parallel()

	owner := uuid.New()
	p := Principal{UserID: owner, Role: models.RoleAdmin, Active: false}
	res := Resource{OwnerID: owner}

	for act := range rules {
		d := Authorize(p, act, res, models.TeamRoleManager)
		assert.False(t, d.Allowed, "action %s", act)
		assert.Equal(t, ReasonInactiveAccount, d.Reason)
	}
}

func TestAuthorize_AdminAllowsEverything(t *testing.T) {
	t.Parallel()

	p := Principal{UserID: uuid.New(), Role: models.RoleAdmin, Active: true}
	res := Resource{OwnerID: uuid.New()}

	for act := range rules {
		d := Authorize(p, act, res, "")
		assert.True(t, d.Allowed, "action %s", act)
	}
}

func TestAuthorize_TaskRules(t *testing.T) {
	t.Parallel()

	owner := uuid.New()
	assignee := uuid.New()
	stranger := uuid.New()
	teamID := uuid.New()

	task := Resource{OwnerID: owner, AssigneeID: &assignee, TeamID: &teamID}

	tests := []struct {
		name     string
		userID   uuid.UUID
		teamRole string
		action   Action
		want     bool
	}{
		{name: "owner views", userID: owner, action: TaskView, want: true},
		{name: "owner edits", userID: owner, action: TaskEdit, want: true},
		{name: "owner deletes", userID: owner, action: TaskDelete, want: true},
		{name: "assignee views", userID: assignee, action: TaskView, want: true},
		{name: "assignee cannot edit", userID: assignee, action: TaskEdit, want: false},
		{name: "team member views", userID: stranger, teamRole: models.TeamRoleMember, action: TaskView, want: true},
		{name: "team member cannot edit", userID: stranger, teamRole: models.TeamRoleMember, action: TaskEdit, want: false},
		{name: "team manager edits", userID: stranger, teamRole: models.TeamRoleManager, action: TaskEdit, want: true},
		{name: "team manager deletes", userID: stranger, teamRole: models.TeamRoleManager, action: TaskDelete, want: true},
		{name: "team manager assigns", userID: stranger, teamRole: models.TeamRoleManager, action: TaskAssign, want: true},
		{name: "non member denied", userID: stranger, action: TaskView, want: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := Principal{UserID: tt.userID, Role: models.RoleUser, Active: true}
			d := Authorize(p, tt.action, task, tt.teamRole)
			assert.Equal(t, tt.want, d.Allowed)
			if !tt.want {
				assert.Equal(t, ReasonForbidden, d.Reason)
			}
		})
	}
}

func TestAuthorize_PersonalResourceIgnoresTeamRole(t *testing.T) {
	t.Parallel()

	// No team on the resource: a manager role somewhere else grants nothing.
	p := Principal{UserID: uuid.New(), Role: models.RoleUser, Active: true}
	res := Resource{OwnerID: uuid.New()}

	d := Authorize(p, TaskEdit, res, models.TeamRoleManager)
	assert.False(t, d.Allowed)
}

func TestAuthorize_CommentAndAttachmentAreOwnerScoped(t *testing.T) {
	t.Parallel()

	author := uuid.New()
	teamID := uuid.New()
	res := Resource{OwnerID: author, TeamID: &teamID}

	owner := Principal{UserID: author, Role: models.RoleUser, Active: true}
	manager := Principal{UserID: uuid.New(), Role: models.RoleUser, Active: true}

	for _, act := range []Action{CommentEdit, CommentDelete, AttachmentDelete} {
		assert.True(t, Authorize(owner, act, res, "").Allowed, "action %s", act)
		// Even a team manager cannot touch someone else's comment.
		assert.False(t, Authorize(manager, act, res, models.TeamRoleManager).Allowed, "action %s", act)
	}
}

func TestAuthorize_TeamRules(t *testing.T) {
	t.Parallel()

	owner := uuid.New()
	teamID := uuid.New()
	team := Resource{OwnerID: owner, TeamID: &teamID}

	member := Principal{UserID: uuid.New(), Role: models.RoleUser, Active: true}
	ownerP := Principal{UserID: owner, Role: models.RoleUser, Active: true}

	assert.True(t, Authorize(member, TeamView, team, models.TeamRoleMember).Allowed)
	assert.False(t, Authorize(member, TeamEdit, team, models.TeamRoleManager).Allowed)
	assert.True(t, Authorize(member, TeamManageMembers, team, models.TeamRoleManager).Allowed)
	assert.False(t, Authorize(member, TeamManageMembers, team, models.TeamRoleMember).Allowed)
	assert.True(t, Authorize(ownerP, TeamDelete, team, models.TeamRoleManager).Allowed)
}

func TestAuthorize_UnknownActionDenied(t *testing.T) {
	t.Parallel()

	p := Principal{UserID: uuid.New(), Role: models.RoleUser, Active: true}
	d := Authorize(p, Action("task:transmogrify"), Resource{OwnerID: p.UserID}, "")
	assert.False(t, d.Allowed)
}

// Granting a higher team role never removes a permission a lower role had.
func TestAuthorize_TeamRoleMonotonic(t *testing.T) {
	t.Parallel()

	teamID := uuid.New()
	res := Resource{OwnerID: uuid.New(), TeamID: &teamID}
	p := Principal{UserID: uuid.New(), Role: models.RoleUser, Active: true}

	for act := range rules {
		asMember := Authorize(p, act, res, models.TeamRoleMember).Allowed
		asManager := Authorize(p, act, res, models.TeamRoleManager).Allowed
		if asMember {
			assert.True(t, asManager, "manager lost %s that member had", act)
		}
	}
}
