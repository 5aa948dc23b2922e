package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/capstone-hub-api/internal/middleware"
	"github.com/noah-isme/capstone-hub-api/internal/models"
	"github.com/noah-isme/capstone-hub-api/pkg/response"
)

type dashboardService interface {
	Admin(ctx context.Context, actor models.Identity) (*models.AdminDashboard, bool, error)
	Supervisor(ctx context.Context, actor models.Identity) (*models.SupervisorDashboard, bool, error)
	Student(ctx context.Context, actor models.Identity) (*models.StudentDashboard, bool, error)
}

// DashboardHandler wires dashboard service to HTTP endpoints.
type DashboardHandler struct {
	service dashboardService
}

// NewDashboardHandler constructs the handler.
func NewDashboardHandler(service dashboardService) *DashboardHandler {
	return &DashboardHandler{service: service}
}

// Admin godoc
// @Summary Admin dashboard summary
// @Tags Dashboard
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /admin-dashboard [get]
func (h *DashboardHandler) Admin(c *gin.Context) {
	actor, ok := currentIdentity(c)
	if !ok {
		return
	}
	summary, hit, err := h.service.Admin(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.OK(c, summary)
}

// Supervisor godoc
// @Summary Supervisor dashboard
// @Tags Dashboard
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /supervisor-dashboard [get]
func (h *DashboardHandler) Supervisor(c *gin.Context) {
	actor, ok := currentIdentity(c)
	if !ok {
		return
	}
	summary, hit, err := h.service.Supervisor(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.OK(c, summary)
}

// Student godoc
// @Summary Student dashboard
// @Tags Dashboard
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /student-dashboard [get]
func (h *DashboardHandler) Student(c *gin.Context) {
	actor, ok := currentIdentity(c)
	if !ok {
		return
	}
	summary, hit, err := h.service.Student(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.OK(c, summary)
}
