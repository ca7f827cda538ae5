// Package httpserver wires the echo routing table. Handlers are constructed here
// from the shared dependency set so main stays a thin bootstrap.
package httpserver

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"gorm.io/gorm"

	"github.com/taskmaster-pro/taskmaster/internal/activity"
	"github.com/taskmaster-pro/taskmaster/internal/apperr"
	"github.com/taskmaster-pro/taskmaster/internal/config"
	"github.com/taskmaster-pro/taskmaster/internal/events"
	"github.com/taskmaster-pro/taskmaster/internal/handlers"
	"github.com/taskmaster-pro/taskmaster/internal/middleware"
	"github.com/taskmaster-pro/taskmaster/internal/notify"
	"github.com/taskmaster-pro/taskmaster/internal/repo"
	"github.com/taskmaster-pro/taskmaster/internal/search"
	"github.com/taskmaster-pro/taskmaster/internal/service/token"
	"github.com/taskmaster-pro/taskmaster/internal/storage"
	"github.com/taskmaster-pro/taskmaster/internal/ws"
)

type Deps struct {
	Cfg      *config.Config
	Log      *slog.Logger
	DB       *gorm.DB
	Tokens   *token.Service
	Hub      *ws.Hub
	Store    storage.Store
	Search   *search.Service
	Producer *events.Producer
}

func Register(e *echo.Echo, d *Deps) {
	e.Pre(echomw.RemoveTrailingSlash())
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(d.Log))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: d.Cfg.AllowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAuthorization},
	}))
	e.HTTPErrorHandler = apperr.HTTPErrorHandler

	users := &repo.UserRepo{DB: d.DB}
	tasks := &repo.TaskRepo{DB: d.DB}
	teams := &repo.TeamRepo{DB: d.DB}
	comments := &repo.CommentRepo{DB: d.DB}
	attachments := &repo.AttachmentRepo{DB: d.DB}
	notifications := &repo.NotificationRepo{DB: d.DB}
	activities := &repo.ActivityRepo{DB: d.DB}

	activitySvc := &activity.Service{Repo: activities, Producer: d.Producer}
	notifySvc := &notify.Service{Repo: notifications, Hub: d.Hub}

	authH := &handlers.AuthHTTP{Users: users, Tokens: d.Tokens, Activity: activitySvc}
	userH := &handlers.UserHTTP{Users: users, Tokens: d.Tokens}
	taskH := &handlers.TaskHTTP{
		Tasks: tasks, Teams: teams, Users: users,
		Notify: notifySvc, Activity: activitySvc, Search: d.Search,
	}
	teamH := &handlers.TeamHTTP{Teams: teams, Users: users, Notify: notifySvc, Activity: activitySvc}
	commentH := &handlers.CommentHTTP{Comments: comments, Tasks: taskH, Notify: notifySvc, Activity: activitySvc}
	attachmentH := &handlers.AttachmentHTTP{
		Attachments: attachments, Tasks: taskH, Store: d.Store,
		Activity: activitySvc, MaxUploadMB: d.Cfg.MaxUploadMB,
	}
	notificationH := &handlers.NotificationHTTP{Notifications: notifications}
	activityH := &handlers.ActivityHTTP{Logs: activities, Tasks: taskH}
	adminH := &handlers.AdminHTTP{Users: users, Tasks: tasks, Teams: teams, Hub: d.Hub}
	wsH := &handlers.WSHTTP{Tokens: d.Tokens, Hub: d.Hub}

	auth := &middleware.Auth{Tokens: d.Tokens, Users: users}
	loginLimiter := middleware.NewRateLimiter(d.Cfg.LoginRateLimit)

	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	v1 := e.Group("/api/v1")

	authG := v1.Group("/auth")
	authG.POST("/register", authH.Register)
	authG.POST("/login", authH.Login, loginLimiter.Middleware)
	authG.POST("/refresh", authH.Refresh)
	authG.POST("/logout", authH.Logout, auth.RequireAuth)

	usersG := v1.Group("/users", auth.RequireAuth)
	usersG.GET("/me", userH.Me)
	usersG.PUT("/me", userH.UpdateMe)
	usersG.PUT("/me/password", userH.ChangePassword)
	usersG.GET("", userH.List, auth.RequireAdmin)
	usersG.GET("/:user_id", userH.Get, auth.RequireAdmin)
	usersG.PATCH("/:user_id", userH.Patch, auth.RequireAdmin)
	usersG.DELETE("/:user_id", userH.Deactivate, auth.RequireAdmin)

	tasksG := v1.Group("/tasks", auth.RequireAuth)
	tasksG.GET("", taskH.List)
	tasksG.POST("", taskH.Create)
	tasksG.GET("/team/:team_id", taskH.ListByTeam)
	tasksG.GET("/:task_id", taskH.Get)
	tasksG.PUT("/:task_id", taskH.Update)
	tasksG.DELETE("/:task_id", taskH.Archive)
	tasksG.POST("/:task_id/assign", taskH.Assign)

	tasksG.GET("/:task_id/comments", commentH.List)
	tasksG.POST("/:task_id/comments", commentH.Create)
	tasksG.PUT("/:task_id/comments/:comment_id", commentH.Update)
	tasksG.DELETE("/:task_id/comments/:comment_id", commentH.Delete)

	tasksG.GET("/:task_id/attachments", attachmentH.List)
	tasksG.POST("/:task_id/attachments", attachmentH.Upload)
	tasksG.DELETE("/:task_id/attachments/:attachment_id", attachmentH.Delete)

	v1.GET("/search", taskH.SearchTasks, auth.RequireAuth)

	teamsG := v1.Group("/teams", auth.RequireAuth)
	teamsG.POST("", teamH.Create)
	teamsG.GET("", teamH.ListMine)
	teamsG.GET("/:team_id", teamH.Get)
	teamsG.PUT("/:team_id", teamH.Update)
	teamsG.DELETE("/:team_id", teamH.Delete)
	teamsG.POST("/:team_id/members", teamH.AddMember)
	teamsG.PATCH("/:team_id/members/:user_id", teamH.UpdateMemberRole)
	teamsG.DELETE("/:team_id/members/:user_id", teamH.RemoveMember)

	notificationsG := v1.Group("/notifications", auth.RequireAuth)
	notificationsG.GET("", notificationH.List)
	notificationsG.PUT("/read-all", notificationH.MarkAllRead)
	notificationsG.PUT("/:notification_id/read", notificationH.MarkRead)

	activityG := v1.Group("/activity", auth.RequireAuth)
	activityG.GET("", activityH.Mine)
	activityG.GET("/task/:task_id", activityH.ByTask)
	activityG.GET("/admin", activityH.All, auth.RequireAdmin)

	adminG := v1.Group("/admin", auth.RequireAuth, auth.RequireAdmin)
	adminG.GET("/stats", adminH.Stats)
	adminG.GET("/users", adminH.ListUsers)
	adminG.GET("/tasks", adminH.ListTasks)

	e.GET("/ws/:user_id", wsH.Connect)
}
