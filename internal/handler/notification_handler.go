package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/capstone-hub-api/internal/models"
	"github.com/noah-isme/capstone-hub-api/pkg/response"
)

type notificationService interface {
	List(ctx context.Context, actor models.Identity, paging models.Paging) (*models.NotificationPage, error)
	MarkAllSeen(ctx context.Context, actor models.Identity) (int64, error)
}

// NotificationHandler exposes the caller's inbox.
type NotificationHandler struct {
	service notificationService
}

// NewNotificationHandler constructs the handler.
func NewNotificationHandler(svc notificationService) *NotificationHandler {
	return &NotificationHandler{service: svc}
}

// List godoc
// @Summary Caller notifications, newest first
// @Tags Notifications
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /notifications [get]
func (h *NotificationHandler) List(c *gin.Context) {
	actor, ok := currentIdentity(c)
	if !ok {
		return
	}
	page, err := h.service.List(c.Request.Context(), actor, pagingFromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, page)
}

// MarkAllSeen godoc
// @Summary Mark every notification as seen
// @Tags Notifications
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /notifications/mark-all-seen [patch]
func (h *NotificationHandler) MarkAllSeen(c *gin.Context) {
	actor, ok := currentIdentity(c)
	if !ok {
		return
	}
	updated, err := h.service.MarkAllSeen(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"updated": updated})
}
