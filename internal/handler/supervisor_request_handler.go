package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/capstone-hub-api/internal/models"
	"github.com/noah-isme/capstone-hub-api/pkg/response"
)

type supervisorRequestService interface {
	Request(ctx context.Context, actor models.Identity, req models.CreateSupervisorRequest) (*models.SupervisorRequest, error)
	Accept(ctx context.Context, actor models.Identity, requestID string) (*models.SupervisorRequest, error)
	Reject(ctx context.Context, actor models.Identity, requestID string) (*models.SupervisorRequest, error)
	ListPending(ctx context.Context, actor models.Identity) ([]models.SupervisorRequestDetail, error)
}

// SupervisorRequestHandler exposes the supervisor assignment workflow.
type SupervisorRequestHandler struct {
	service supervisorRequestService
}

// NewSupervisorRequestHandler constructs the handler.
func NewSupervisorRequestHandler(svc supervisorRequestService) *SupervisorRequestHandler {
	return &SupervisorRequestHandler{service: svc}
}

// List godoc
// @Summary Pending requests addressed to the caller
// @Tags Supervisor Requests
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /supervisor-requests [get]
func (h *SupervisorRequestHandler) List(c *gin.Context) {
	actor, ok := currentIdentity(c)
	if !ok {
		return
	}
	requests, err := h.service.ListPending(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, requests)
}

// Create godoc
// @Summary Ask a supervisor to take the group
// @Tags Supervisor Requests
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.CreateSupervisorRequest true "Request payload"
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /supervisor-requests [post]
func (h *SupervisorRequestHandler) Create(c *gin.Context) {
	actor, ok := currentIdentity(c)
	if !ok {
		return
	}
	var req models.CreateSupervisorRequest
	if !bindJSON(c, &req, "invalid request payload") {
		return
	}
	created, err := h.service.Request(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, created, "Request sent successfully")
}

// Accept godoc
// @Summary Accept a supervision request
// @Tags Supervisor Requests
// @Produce json
// @Security BearerAuth
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /supervisor-requests/{id}/accept [patch]
func (h *SupervisorRequestHandler) Accept(c *gin.Context) {
	actor, ok := currentIdentity(c)
	if !ok {
		return
	}
	req, err := h.service.Accept(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, req, "Request accepted")
}

// Reject godoc
// @Summary Reject a supervision request
// @Tags Supervisor Requests
// @Produce json
// @Security BearerAuth
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /supervisor-requests/{id}/reject [patch]
func (h *SupervisorRequestHandler) Reject(c *gin.Context) {
	actor, ok := currentIdentity(c)
	if !ok {
		return
	}
	req, err := h.service.Reject(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, req, "Request rejected")
}
