// Package router binds handlers to the HTTP surface and owns the route
// policy table consumed by the authentication gate and capability enforcer.
package router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/capstone-hub-api/internal/handler"
	"github.com/noah-isme/capstone-hub-api/internal/middleware"
	"github.com/noah-isme/capstone-hub-api/internal/models"
)

var (
	anyRole        = middleware.RoutePolicy{}
	public         = middleware.RoutePolicy{Public: true}
	adminOnly      = roles(models.RoleAdmin)
	studentOnly    = roles(models.RoleStudent)
	supervisorOnly = roles(models.RoleSupervisor)
	staff          = roles(models.RoleSupervisor, models.RoleAdmin)
)

func roles(allowed ...models.UserRole) middleware.RoutePolicy {
	return middleware.RoutePolicy{Roles: allowed}
}

// Policies returns the static route table. Every route registered under the
// prefix must have an entry; unknown routes are refused.
func Policies(prefix string) middleware.PolicyTable {
	return middleware.PolicyTable{
		Prefix: prefix,
		Routes: map[string]middleware.RoutePolicy{
			"POST /auth/signup": public,
			"POST /auth/signin": public,
			"POST /auth/logout": anyRole,
			"GET /auth/me":      anyRole,

			"GET /users":                    adminOnly,
			"POST /users":                   adminOnly,
			"PATCH /users/:id":              adminOnly,
			"DELETE /users/:id":             adminOnly,
			"GET /users/search-supervisors": studentOnly,
			"GET /users/search-students":    studentOnly,

			"GET /groups":                        adminOnly,
			"POST /groups":                       studentOnly,
			"GET /groups/my-group":               studentOnly,
			"POST /groups/:id/invite/:userId":    studentOnly,
			"POST /groups/join":                  studentOnly,
			"PUT /groups/:id":                    studentOnly,
			"DELETE /groups/:id":                 roles(models.RoleStudent, models.RoleAdmin),
			"DELETE /groups/:id/members/:userId": studentOnly,
			"GET /groups/:id/messages":           studentOnly,
			"POST /groups/:id/messages":          studentOnly,

			"GET /supervisor-requests":              supervisorOnly,
			"POST /supervisor-requests":             studentOnly,
			"PATCH /supervisor-requests/:id/accept": supervisorOnly,
			"PATCH /supervisor-requests/:id/reject": supervisorOnly,

			"POST /projects":           studentOnly,
			"GET /projects/my-project": studentOnly,
			"GET /projects":            roles(models.RoleAdmin, models.RoleSupervisor),
			"GET /projects/:id":        anyRole,
			"PATCH /projects/:id":      roles(models.RoleAdmin, models.RoleStudent),
			"DELETE /projects/:id":     roles(models.RoleAdmin, models.RoleStudent),
			"GET /projects/:id/report": roles(models.RoleAdmin, models.RoleSupervisor),

			"POST /projects/:id/milestones":                staff,
			"GET /projects/:id/milestones":                 anyRole,
			"GET /projects/:id/milestones/:milestoneId":    anyRole,
			"PATCH /projects/:id/milestones/:milestoneId":  staff,
			"DELETE /projects/:id/milestones/:milestoneId": staff,

			"POST /milestones/:milestoneId/submissions": studentOnly,
			"GET /milestones/:milestoneId/submissions":  anyRole,
			"PATCH /submissions/:id":                    staff,
			"GET /files/*key":                           anyRole,

			"GET /notifications":                 anyRole,
			"PATCH /notifications/mark-all-seen": anyRole,

			"GET /admin-dashboard":      adminOnly,
			"GET /supervisor-dashboard": supervisorOnly,
			"GET /student-dashboard":    studentOnly,

			"GET /exports/:token": public,
			"GET /keep-alive":     public,
		},
	}
}

// Handlers groups every HTTP handler the router binds.
type Handlers struct {
	Auth               *handler.AuthHandler
	Users              *handler.UserHandler
	Groups             *handler.GroupHandler
	Chat               *handler.ChatHandler
	SupervisorRequests *handler.SupervisorRequestHandler
	Projects           *handler.ProjectHandler
	Milestones         *handler.MilestoneHandler
	Submissions        *handler.SubmissionHandler
	Notifications      *handler.NotificationHandler
	Dashboard          *handler.DashboardHandler
	Exports            *handler.ExportHandler
	System             *handler.SystemHandler
}

// Options configures Register.
type Options struct {
	Prefix        string
	Authenticator middleware.TokenAuthenticator
	Audit         middleware.AuditWriter
	Logger        *zap.Logger
}

// Register mounts probes at the root and the API under the prefix behind
// the gate and the enforcer.
func Register(r *gin.Engine, h Handlers, opts Options) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r.GET("/health", h.System.Health)
	r.GET("/ready", h.System.Ready)
	r.GET("/metrics", h.System.Prometheus)

	table := Policies(opts.Prefix)
	api := r.Group(opts.Prefix, middleware.Authenticate(opts.Authenticator, table), middleware.Authorize(table))

	auth := api.Group("/auth")
	auth.POST("/signup", h.Auth.Signup)
	auth.POST("/signin", h.Auth.Signin)
	auth.POST("/logout", h.Auth.Logout)
	auth.GET("/me", h.Auth.Me)

	users := api.Group("/users")
	users.GET("", h.Users.List)
	users.POST("", middleware.Audit(opts.Audit, logger, models.AuditActionUserCreate, "user"), h.Users.Create)
	users.PATCH("/:id", middleware.Audit(opts.Audit, logger, models.AuditActionUserUpdate, "user"), h.Users.Update)
	users.DELETE("/:id", middleware.Audit(opts.Audit, logger, models.AuditActionUserDelete, "user"), h.Users.Delete)
	users.GET("/search-supervisors", h.Users.SearchSupervisors)
	users.GET("/search-students", h.Users.SearchStudents)

	groups := api.Group("/groups")
	groups.GET("", h.Groups.List)
	groups.POST("", h.Groups.Create)
	groups.GET("/my-group", h.Groups.MyGroup)
	groups.POST("/join", h.Groups.Join)
	groups.POST("/:id/invite/:userId", h.Groups.Invite)
	groups.PUT("/:id", h.Groups.Update)
	groups.DELETE("/:id", h.Groups.Delete)
	groups.DELETE("/:id/members/:userId", h.Groups.RemoveMember)
	groups.GET("/:id/messages", h.Chat.Messages)
	groups.POST("/:id/messages", h.Chat.Post)

	requests := api.Group("/supervisor-requests")
	requests.GET("", h.SupervisorRequests.List)
	requests.POST("", h.SupervisorRequests.Create)
	requests.PATCH("/:id/accept", h.SupervisorRequests.Accept)
	requests.PATCH("/:id/reject", h.SupervisorRequests.Reject)

	projects := api.Group("/projects")
	projects.POST("", h.Projects.Create)
	projects.GET("", h.Projects.List)
	projects.GET("/my-project", h.Projects.MyProject)
	projects.GET("/:id", h.Projects.Get)
	projects.PATCH("/:id", h.Projects.Update)
	projects.DELETE("/:id", h.Projects.Delete)
	projects.GET("/:id/report", h.Projects.Report)
	projects.POST("/:id/milestones", h.Milestones.Create)
	projects.GET("/:id/milestones", h.Milestones.List)
	projects.GET("/:id/milestones/:milestoneId", h.Milestones.Get)
	projects.PATCH("/:id/milestones/:milestoneId", h.Milestones.Update)
	projects.DELETE("/:id/milestones/:milestoneId", h.Milestones.Delete)

	api.POST("/milestones/:milestoneId/submissions", h.Submissions.Submit)
	api.GET("/milestones/:milestoneId/submissions", h.Submissions.List)
	api.PATCH("/submissions/:id", h.Submissions.Grade)
	api.GET("/files/*key", h.Submissions.File)

	api.GET("/notifications", h.Notifications.List)
	api.PATCH("/notifications/mark-all-seen", h.Notifications.MarkAllSeen)

	api.GET("/admin-dashboard", h.Dashboard.Admin)
	api.GET("/supervisor-dashboard", h.Dashboard.Supervisor)
	api.GET("/student-dashboard", h.Dashboard.Student)

	api.GET("/exports/:token", h.Exports.Download)
	api.GET("/keep-alive", h.System.KeepAlive)
}
