package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/capstone-hub-api/internal/models"
	"github.com/noah-isme/capstone-hub-api/pkg/response"
)

type chatService interface {
	Messages(ctx context.Context, actor models.Identity, groupID string, paging models.Paging) (*models.ChatPage, error)
	Post(ctx context.Context, actor models.Identity, groupID string, req models.PostMessageRequest) (*models.ChatMessage, error)
}

// ChatHandler serves group chat messages.
type ChatHandler struct {
	service chatService
}

// NewChatHandler constructs the handler.
func NewChatHandler(svc chatService) *ChatHandler {
	return &ChatHandler{service: svc}
}

// Messages godoc
// @Summary Page through group chat messages
// @Description Page 1 holds the newest messages; each page is ordered oldest to newest.
// @Tags Chat
// @Produce json
// @Security BearerAuth
// @Param id path string true "Group ID"
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /groups/{id}/messages [get]
func (h *ChatHandler) Messages(c *gin.Context) {
	actor, ok := currentIdentity(c)
	if !ok {
		return
	}
	page, err := h.service.Messages(c.Request.Context(), actor, c.Param("id"), pagingFromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, page)
}

// Post godoc
// @Summary Send a group chat message
// @Tags Chat
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Group ID"
// @Param payload body models.PostMessageRequest true "Message"
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /groups/{id}/messages [post]
func (h *ChatHandler) Post(c *gin.Context) {
	actor, ok := currentIdentity(c)
	if !ok {
		return
	}
	var req models.PostMessageRequest
	if !bindJSON(c, &req, "invalid message payload") {
		return
	}
	msg, err := h.service.Post(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, msg)
}
