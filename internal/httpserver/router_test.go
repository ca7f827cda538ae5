package httpserver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/taskmaster-pro/taskmaster/internal/config"
	"github.com/taskmaster-pro/taskmaster/internal/logging"
	"github.com/taskmaster-pro/taskmaster/internal/models"
	"github.com/taskmaster-pro/taskmaster/internal/service/token"
	"github.com/taskmaster-pro/taskmaster/internal/storage"
	"github.com/taskmaster-pro/taskmaster/internal/ws"
)

type testEnv struct {
	e  *echo.Echo
	db *gorm.DB
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.All()...))

	cfg := &config.Config{
		LogLevel:       "error",
		DatabaseURL:    "test",
		JWTSecret:      []byte("test-jwt-secret-test-jwt-secret!"),
		RefreshSecret:  []byte("test-refresh-secret-0123456789ab"),
		AccessTTL:      15 * time.Minute,
		RefreshTTL:     7 * 24 * time.Hour,
		AllowedOrigins: []string{"*"},
		MaxUploadMB:    1,
		UploadDir:      t.TempDir(),
		LoginRateLimit: 5,
	}
	logger := logging.New(cfg.LogLevel)

	tokens := &token.Service{
		DB:            db,
		JWTSecret:     cfg.JWTSecret,
		RefreshSecret: cfg.RefreshSecret,
		AccessTTL:     cfg.AccessTTL,
		RefreshTTL:    cfg.RefreshTTL,
	}
	hub := ws.NewHub(logger, func(*http.Request) bool { return true })

	e := echo.New()
	Register(e, &Deps{
		Cfg:    cfg,
		Log:    logger,
		DB:     db,
		Tokens: tokens,
		Hub:    hub,
		Store:  &storage.DiskStore{Dir: cfg.UploadDir},
	})
	return &testEnv{e: e, db: db}
}

func (env *testEnv) do(t *testing.T, method, path, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if bearer != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), "body: %s", rec.Body.String())
}

type tokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

type account struct {
	ID      uuid.UUID
	Email   string
	Access  string
	Refresh string
}

// signup registers and logs in a fresh user.
func (env *testEnv) signup(t *testing.T, name string) *account {
	t.Helper()

	email := name + "_" + uuid.NewString()[:8] + "@example.com"
	rec := env.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]any{
		"email":    email,
		"username": name + "_" + uuid.NewString()[:8],
		"password": "Secret123",
	})
	require.Equal(t, http.StatusCreated, rec.Code, "body: %s", rec.Body.String())

	var user models.User
	decode(t, rec, &user)

	rec = env.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]any{
		"email":    email,
		"password": "Secret123",
	})
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())

	var pair tokenPair
	decode(t, rec, &pair)
	return &account{ID: user.ID, Email: email, Access: pair.AccessToken, Refresh: pair.RefreshToken}
}

func (env *testEnv) promoteToAdmin(t *testing.T, id uuid.UUID) {
	t.Helper()
	require.NoError(t, env.db.Model(&models.User{}).
		Where("id = ?", id).
		Update("role", models.RoleAdmin).Error)
}

func errCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	decode(t, rec, &body)
	return body.Error
}

func TestAuthRegisterAndLogin(t *testing.T) {
	env := newTestEnv(t)
	user := env.signup(t, "alice")

	// duplicate email
	rec := env.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]any{
		"email":    user.Email,
		"username": "someone_else",
		"password": "Secret123",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "CONFLICT", errCode(t, rec))

	// weak password
	rec = env.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]any{
		"email":    "new@example.com",
		"username": "new_user",
		"password": "weak",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", errCode(t, rec))

	// wrong password
	rec = env.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]any{
		"email":    user.Email,
		"password": "Wrong1234",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// profile with the issued access token
	rec = env.do(t, http.MethodGet, "/api/v1/users/me", user.Access, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var me models.User
	decode(t, rec, &me)
	assert.Equal(t, user.Email, me.Email)

	// no token
	rec = env.do(t, http.MethodGet, "/api/v1/users/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// garbage token
	rec = env.do(t, http.MethodGet, "/api/v1/users/me", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "INVALID_TOKEN", errCode(t, rec))
}

func TestLoginRateLimit(t *testing.T) {
	env := newTestEnv(t)

	body := map[string]any{"email": "nobody@example.com", "password": "Wrong1234"}
	for i := 0; i < 5; i++ {
		rec := env.do(t, http.MethodPost, "/api/v1/auth/login", "", body)
		require.Equal(t, http.StatusUnauthorized, rec.Code, "attempt %d", i+1)
	}

	rec := env.do(t, http.MethodPost, "/api/v1/auth/login", "", body)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "RATE_LIMITED", errCode(t, rec))
}

func TestRefreshRotationAndReuse(t *testing.T) {
	env := newTestEnv(t)
	user := env.signup(t, "bob")

	rec := env.do(t, http.MethodPost, "/api/v1/auth/refresh", "", map[string]any{
		"refresh_token": user.Refresh,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var rotated tokenPair
	decode(t, rec, &rotated)
	assert.NotEqual(t, user.Refresh, rotated.RefreshToken)

	// replaying the rotated token revokes every session
	rec = env.do(t, http.MethodPost, "/api/v1/auth/refresh", "", map[string]any{
		"refresh_token": user.Refresh,
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "INVALID_TOKEN", errCode(t, rec))

	rec = env.do(t, http.MethodPost, "/api/v1/auth/refresh", "", map[string]any{
		"refresh_token": rotated.RefreshToken,
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTaskLifecycleAndVisibility(t *testing.T) {
	env := newTestEnv(t)
	alice := env.signup(t, "alice")
	mallory := env.signup(t, "mallory")

	rec := env.do(t, http.MethodPost, "/api/v1/tasks", alice.Access, map[string]any{
		"title":    "write report",
		"priority": "high",
		"tags":     []string{"work", "q3"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, "body: %s", rec.Body.String())
	var task models.Task
	decode(t, rec, &task)
	assert.Equal(t, models.TaskStatusPending, task.Status)

	taskPath := "/api/v1/tasks/" + task.ID.String()

	// a stranger sees not found, not forbidden
	rec = env.do(t, http.MethodGet, taskPath, mallory.Access, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = env.do(t, http.MethodPut, taskPath, mallory.Access, map[string]any{"title": "hacked"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPut, taskPath, alice.Access, map[string]any{
		"status": "in_progress",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &task)
	assert.Equal(t, models.TaskStatusInProgress, task.Status)

	rec = env.do(t, http.MethodPut, taskPath, alice.Access, map[string]any{"status": "bogus"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	// archive, then verify the default listing hides it
	rec = env.do(t, http.MethodDelete, taskPath, alice.Access, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/tasks", alice.Access, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var page struct {
		Items []models.Task `json:"items"`
		Total int64         `json:"total"`
	}
	decode(t, rec, &page)
	assert.Zero(t, page.Total)

	rec = env.do(t, http.MethodGet, "/api/v1/tasks?is_archived=true", alice.Access, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &page)
	assert.Equal(t, int64(1), page.Total)

	// archived tasks reject new comments
	rec = env.do(t, http.MethodPost, taskPath+"/comments", alice.Access, map[string]any{
		"content": "too late",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestTeamFlowAndTaskRoles(t *testing.T) {
	env := newTestEnv(t)
	owner := env.signup(t, "owner")
	member := env.signup(t, "member")
	outsider := env.signup(t, "outsider")

	rec := env.do(t, http.MethodPost, "/api/v1/teams", owner.Access, map[string]any{
		"name": "backend",
	})
	require.Equal(t, http.StatusCreated, rec.Code, "body: %s", rec.Body.String())
	var team models.Team
	decode(t, rec, &team)

	teamPath := "/api/v1/teams/" + team.ID.String()

	// the creator is auto-enrolled as manager
	rec = env.do(t, http.MethodGet, teamPath, owner.Access, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var detailed models.Team
	decode(t, rec, &detailed)
	require.Len(t, detailed.Members, 1)
	assert.Equal(t, owner.ID, detailed.Members[0].UserID)
	assert.Equal(t, models.TeamRoleManager, detailed.Members[0].Role)

	// invisible to non-members
	rec = env.do(t, http.MethodGet, teamPath, outsider.Access, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPost, teamPath+"/members", owner.Access, map[string]any{
		"user_id": member.ID,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	// duplicate membership
	rec = env.do(t, http.MethodPost, teamPath+"/members", owner.Access, map[string]any{
		"user_id": member.ID,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodGet, teamPath, member.Access, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// owner creates a team task; the plain member may view but not edit
	rec = env.do(t, http.MethodPost, "/api/v1/tasks", owner.Access, map[string]any{
		"title":   "team task",
		"team_id": team.ID,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var task models.Task
	decode(t, rec, &task)
	taskPath := "/api/v1/tasks/" + task.ID.String()

	rec = env.do(t, http.MethodGet, taskPath, member.Access, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(t, http.MethodPut, taskPath, member.Access, map[string]any{"title": "renamed"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// promote to manager, editing now works
	rec = env.do(t, http.MethodPatch, teamPath+"/members/"+member.ID.String(), owner.Access, map[string]any{
		"role": "manager",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(t, http.MethodPut, taskPath, member.Access, map[string]any{"title": "renamed"})
	assert.Equal(t, http.StatusOK, rec.Code)

	// non-members cannot create tasks for the team
	rec = env.do(t, http.MethodPost, "/api/v1/tasks", outsider.Access, map[string]any{
		"title":   "sneaky",
		"team_id": team.ID,
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// the owner can never be removed
	rec = env.do(t, http.MethodDelete, teamPath+"/members/"+owner.ID.String(), owner.Access, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodDelete, teamPath+"/members/"+member.ID.String(), owner.Access, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = env.do(t, http.MethodGet, teamPath, member.Access, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCommentsAndNotifications(t *testing.T) {
	env := newTestEnv(t)
	owner := env.signup(t, "owner")
	commenter := env.signup(t, "commenter")

	rec := env.do(t, http.MethodPost, "/api/v1/teams", owner.Access, map[string]any{"name": "docs"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var team models.Team
	decode(t, rec, &team)
	rec = env.do(t, http.MethodPost, "/api/v1/teams/"+team.ID.String()+"/members", owner.Access, map[string]any{
		"user_id": commenter.ID,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/tasks", owner.Access, map[string]any{
		"title":   "review doc",
		"team_id": team.ID,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var task models.Task
	decode(t, rec, &task)
	taskPath := "/api/v1/tasks/" + task.ID.String()

	rec = env.do(t, http.MethodPost, taskPath+"/comments", commenter.Access, map[string]any{
		"content": "looks good",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var comment models.Comment
	decode(t, rec, &comment)

	// commenting notified the task owner
	rec = env.do(t, http.MethodGet, "/api/v1/notifications?unread_only=true", owner.Access, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var page struct {
		Items []models.Notification `json:"items"`
		Total int64                 `json:"total"`
	}
	decode(t, rec, &page)
	require.NotEmpty(t, page.Items)
	assert.Equal(t, models.NotificationCommentAdded, page.Items[0].Type)

	// the recipient can mark it read, others cannot
	nPath := "/api/v1/notifications/" + page.Items[0].ID.String() + "/read"
	rec = env.do(t, http.MethodPut, nPath, commenter.Access, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = env.do(t, http.MethodPut, nPath, owner.Access, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// only the author (or admin) edits a comment
	cPath := taskPath + "/comments/" + comment.ID.String()
	rec = env.do(t, http.MethodPut, cPath, owner.Access, map[string]any{"content": "edited"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = env.do(t, http.MethodPut, cPath, commenter.Access, map[string]any{"content": "edited"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodDelete, cPath, commenter.Access, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestAttachmentUpload(t *testing.T) {
	env := newTestEnv(t)
	owner := env.signup(t, "owner")
	stranger := env.signup(t, "stranger")

	rec := env.do(t, http.MethodPost, "/api/v1/tasks", owner.Access, map[string]any{"title": "with files"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var task models.Task
	decode(t, rec, &task)
	attPath := "/api/v1/tasks/" + task.ID.String() + "/attachments"

	upload := func(bearer string, payload []byte) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		fw, err := mw.CreateFormFile("file", "notes.txt")
		require.NoError(t, err)
		_, err = fw.Write(payload)
		require.NoError(t, err)
		require.NoError(t, mw.Close())

		req := httptest.NewRequest(http.MethodPost, attPath, &buf)
		req.Header.Set(echo.HeaderContentType, mw.FormDataContentType())
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+bearer)
		w := httptest.NewRecorder()
		env.e.ServeHTTP(w, req)
		return w
	}

	rec = upload(owner.Access, []byte("meeting notes"))
	require.Equal(t, http.StatusCreated, rec.Code, "body: %s", rec.Body.String())
	var att models.Attachment
	decode(t, rec, &att)
	assert.Equal(t, "notes.txt", att.Filename)
	assert.Equal(t, int64(len("meeting notes")), att.FileSize)

	// over the 1 MB ceiling
	rec = upload(owner.Access, bytes.Repeat([]byte("x"), 2<<20))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "FILE_TOO_LARGE", errCode(t, rec))

	delPath := fmt.Sprintf("%s/%s", attPath, att.ID)
	rec = env.do(t, http.MethodDelete, delPath, stranger.Access, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code) // stranger cannot even see the task
	rec = env.do(t, http.MethodDelete, delPath, owner.Access, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestAdminEndpointsAndDeactivation(t *testing.T) {
	env := newTestEnv(t)
	admin := env.signup(t, "admin")
	victim := env.signup(t, "victim")
	env.promoteToAdmin(t, admin.ID)

	rec := env.do(t, http.MethodGet, "/api/v1/admin/stats", victim.Access, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/admin/stats", admin.Access, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats struct {
		TotalUsers  int64 `json:"total_users"`
		ActiveUsers int64 `json:"active_users"`
	}
	decode(t, rec, &stats)
	assert.Equal(t, int64(2), stats.TotalUsers)

	// deactivation locks the account out immediately, live token or not
	rec = env.do(t, http.MethodDelete, "/api/v1/users/"+victim.ID.String(), admin.Access, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/users/me", victim.Access, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "INACTIVE_ACCOUNT", errCode(t, rec))

	// and their refresh tokens are gone too
	rec = env.do(t, http.MethodPost, "/api/v1/auth/refresh", "", map[string]any{
		"refresh_token": victim.Refresh,
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMyActivityLog(t *testing.T) {
	env := newTestEnv(t)
	user := env.signup(t, "worker")

	rec := env.do(t, http.MethodPost, "/api/v1/tasks", user.Access, map[string]any{"title": "logged"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var task models.Task
	decode(t, rec, &task)

	rec = env.do(t, http.MethodGet, "/api/v1/activity", user.Access, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var page struct {
		Items []models.ActivityLog `json:"items"`
		Total int64                `json:"total"`
	}
	decode(t, rec, &page)
	require.NotEmpty(t, page.Items)
	assert.Equal(t, "task_created", page.Items[0].Action)

	rec = env.do(t, http.MethodGet, "/api/v1/activity/task/"+task.ID.String(), user.Access, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &page)
	assert.Equal(t, int64(1), page.Total)
}
