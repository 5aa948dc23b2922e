package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/capstone-hub-api/internal/models"
	"github.com/noah-isme/capstone-hub-api/pkg/response"
)

type milestoneService interface {
	Create(ctx context.Context, actor models.Identity, projectID string, req models.CreateMilestoneRequest) (*models.Milestone, error)
	Update(ctx context.Context, actor models.Identity, projectID, milestoneID string, req models.UpdateMilestoneRequest) (*models.Milestone, error)
	Delete(ctx context.Context, actor models.Identity, projectID, milestoneID string) error
	List(ctx context.Context, actor models.Identity, projectID string) ([]models.MilestoneWithWork, error)
	Get(ctx context.Context, actor models.Identity, projectID, milestoneID string) (*models.MilestoneWithWork, error)
}

// MilestoneHandler exposes the milestone scheduler under a project.
type MilestoneHandler struct {
	service milestoneService
}

// NewMilestoneHandler constructs the handler.
func NewMilestoneHandler(svc milestoneService) *MilestoneHandler {
	return &MilestoneHandler{service: svc}
}

// Create godoc
// @Summary Append a milestone
// @Description The deadline must fall after the previous milestone's deadline.
// @Tags Milestones
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Project ID"
// @Param payload body models.CreateMilestoneRequest true "Milestone payload"
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /projects/{id}/milestones [post]
func (h *MilestoneHandler) Create(c *gin.Context) {
	actor, ok := currentIdentity(c)
	if !ok {
		return
	}
	var req models.CreateMilestoneRequest
	if !bindJSON(c, &req, "invalid milestone payload") {
		return
	}
	milestone, err := h.service.Create(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, milestone, "Milestone created successfully")
}

// List godoc
// @Summary Project milestones with submissions
// @Tags Milestones
// @Produce json
// @Security BearerAuth
// @Param id path string true "Project ID"
// @Success 200 {object} response.Envelope
// @Router /projects/{id}/milestones [get]
func (h *MilestoneHandler) List(c *gin.Context) {
	actor, ok := currentIdentity(c)
	if !ok {
		return
	}
	milestones, err := h.service.List(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, milestones)
}

// Get godoc
// @Summary One milestone with submissions
// @Tags Milestones
// @Produce json
// @Security BearerAuth
// @Param id path string true "Project ID"
// @Param milestoneId path string true "Milestone ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /projects/{id}/milestones/{milestoneId} [get]
func (h *MilestoneHandler) Get(c *gin.Context) {
	actor, ok := currentIdentity(c)
	if !ok {
		return
	}
	milestone, err := h.service.Get(c.Request.Context(), actor, c.Param("id"), c.Param("milestoneId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, milestone)
}

// Update godoc
// @Summary Update a milestone
// @Tags Milestones
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Project ID"
// @Param milestoneId path string true "Milestone ID"
// @Param payload body models.UpdateMilestoneRequest true "Milestone changes"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /projects/{id}/milestones/{milestoneId} [patch]
func (h *MilestoneHandler) Update(c *gin.Context) {
	actor, ok := currentIdentity(c)
	if !ok {
		return
	}
	var req models.UpdateMilestoneRequest
	if !bindJSON(c, &req, "invalid milestone payload") {
		return
	}
	milestone, err := h.service.Update(c.Request.Context(), actor, c.Param("id"), c.Param("milestoneId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, milestone, "Milestone updated successfully")
}

// Delete godoc
// @Summary Delete a milestone
// @Tags Milestones
// @Produce json
// @Security BearerAuth
// @Param id path string true "Project ID"
// @Param milestoneId path string true "Milestone ID"
// @Success 200 {object} response.Envelope
// @Router /projects/{id}/milestones/{milestoneId} [delete]
func (h *MilestoneHandler) Delete(c *gin.Context) {
	actor, ok := currentIdentity(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), actor, c.Param("id"), c.Param("milestoneId")); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, nil, "Milestone deleted successfully")
}
