package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/capstone-hub-api/internal/models"
	"github.com/noah-isme/capstone-hub-api/pkg/response"
)

type groupService interface {
	Create(ctx context.Context, actor models.Identity, req models.CreateGroupRequest) (*models.Group, error)
	MyGroup(ctx context.Context, actor models.Identity) (*models.GroupDetail, error)
	List(ctx context.Context) ([]models.GroupSummary, error)
	Invite(ctx context.Context, actor models.Identity, groupID, targetID string) (*models.GroupInvitation, error)
	Redeem(ctx context.Context, actor models.Identity, req models.RedeemInvitationRequest) (*models.Group, error)
	RemoveMember(ctx context.Context, actor models.Identity, groupID, targetID string) error
	Update(ctx context.Context, actor models.Identity, groupID string, req models.UpdateGroupRequest) (*models.Group, error)
	Delete(ctx context.Context, actor models.Identity, groupID string) error
}

// GroupHandler exposes group formation and membership endpoints.
type GroupHandler struct {
	service groupService
}

// NewGroupHandler constructs the handler.
func NewGroupHandler(svc groupService) *GroupHandler {
	return &GroupHandler{service: svc}
}

// List godoc
// @Summary List all groups
// @Tags Groups
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /groups [get]
func (h *GroupHandler) List(c *gin.Context) {
	groups, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, groups)
}

// Create godoc
// @Summary Create a group led by the caller
// @Tags Groups
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.CreateGroupRequest true "Group payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /groups [post]
func (h *GroupHandler) Create(c *gin.Context) {
	actor, ok := currentIdentity(c)
	if !ok {
		return
	}
	var req models.CreateGroupRequest
	if !bindJSON(c, &req, "invalid group payload") {
		return
	}
	group, err := h.service.Create(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, group, "Group created successfully")
}

// MyGroup godoc
// @Summary The caller's group with members
// @Tags Groups
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /groups/my-group [get]
func (h *GroupHandler) MyGroup(c *gin.Context) {
	actor, ok := currentIdentity(c)
	if !ok {
		return
	}
	group, err := h.service.MyGroup(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, group)
}

// Invite godoc
// @Summary Invite a student to the group
// @Tags Groups
// @Produce json
// @Security BearerAuth
// @Param id path string true "Group ID"
// @Param userId path string true "Student ID"
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /groups/{id}/invite/{userId} [post]
func (h *GroupHandler) Invite(c *gin.Context) {
	actor, ok := currentIdentity(c)
	if !ok {
		return
	}
	invitation, err := h.service.Invite(c.Request.Context(), actor, c.Param("id"), c.Param("userId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, invitation, "Invitation sent successfully")
}

// Join godoc
// @Summary Redeem an invitation code
// @Tags Groups
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.RedeemInvitationRequest true "Invitation code"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /groups/join [post]
func (h *GroupHandler) Join(c *gin.Context) {
	actor, ok := currentIdentity(c)
	if !ok {
		return
	}
	var req models.RedeemInvitationRequest
	if !bindJSON(c, &req, "invalid invitation payload") {
		return
	}
	group, err := h.service.Redeem(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, group, "Joined group successfully")
}

// Update godoc
// @Summary Update group settings
// @Tags Groups
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Group ID"
// @Param payload body models.UpdateGroupRequest true "Group changes"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /groups/{id} [put]
func (h *GroupHandler) Update(c *gin.Context) {
	actor, ok := currentIdentity(c)
	if !ok {
		return
	}
	var req models.UpdateGroupRequest
	if !bindJSON(c, &req, "invalid group payload") {
		return
	}
	group, err := h.service.Update(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, group, "Group updated successfully")
}

// Delete godoc
// @Summary Delete a group
// @Tags Groups
// @Produce json
// @Security BearerAuth
// @Param id path string true "Group ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /groups/{id} [delete]
func (h *GroupHandler) Delete(c *gin.Context) {
	actor, ok := currentIdentity(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, nil, "Group deleted successfully")
}

// RemoveMember godoc
// @Summary Remove a member from the group
// @Tags Groups
// @Produce json
// @Security BearerAuth
// @Param id path string true "Group ID"
// @Param userId path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /groups/{id}/members/{userId} [delete]
func (h *GroupHandler) RemoveMember(c *gin.Context) {
	actor, ok := currentIdentity(c)
	if !ok {
		return
	}
	if err := h.service.RemoveMember(c.Request.Context(), actor, c.Param("id"), c.Param("userId")); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, nil, "Member removed successfully")
}
