package service

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/capstone-hub-api/internal/models"
	appErrors "github.com/noah-isme/capstone-hub-api/pkg/errors"
	"github.com/noah-isme/capstone-hub-api/pkg/sanitize"
)

type chatRepository interface {
	FindByGroup(ctx context.Context, groupID string) (*models.GroupChat, error)
	CreateMessage(ctx context.Context, msg *models.ChatMessage) error
	ListMessages(ctx context.Context, chatID string, limit, offset int) ([]models.ChatMessage, int, error)
}

type chatGroupRepository interface {
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Group, error)
	FindMembership(ctx context.Context, exec sqlx.ExtContext, studentID string) (*models.GroupMember, error)
}

// ChatService posts and pages messages in a group's chat room.
type ChatService struct {
	chats     chatRepository
	groups    chatGroupRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewChatService constructs the service.
func NewChatService(chats chatRepository, groups chatGroupRepository, validate *validator.Validate, logger *zap.Logger) *ChatService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatService{chats: chats, groups: groups, validator: validate, logger: logger}
}

// Messages returns one page of the chat in chronological order. Page 1 holds
// the most recent messages.
func (s *ChatService) Messages(ctx context.Context, actor models.Identity, groupID string, paging models.Paging) (*models.ChatPage, error) {
	chat, err := s.memberChat(ctx, actor, groupID)
	if err != nil {
		return nil, err
	}
	paging = paging.Normalize(20, 100)
	messages, total, err := s.chats.ListMessages(ctx, chat.ID, paging.Limit, paging.Offset())
	if err != nil {
		return nil, internalError(err, "failed to list messages")
	}
	ordered := make([]models.ChatMessage, len(messages))
	for i, msg := range messages {
		ordered[len(messages)-1-i] = msg
	}
	return &models.ChatPage{Messages: ordered, Meta: models.NewPageMeta(total, paging.Page, paging.Limit)}, nil
}

// Post stores a message from a group member.
func (s *ChatService) Post(ctx context.Context, actor models.Identity, groupID string, req models.PostMessageRequest) (*models.ChatMessage, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid message payload")
	}
	content := sanitize.Text(req.Content)
	if content == "" {
		return nil, appErrors.Clone(appErrors.ErrBadRequest, "Message content cannot be empty")
	}
	chat, err := s.memberChat(ctx, actor, groupID)
	if err != nil {
		return nil, err
	}
	msg := &models.ChatMessage{ChatID: chat.ID, SenderID: actor.ID, SenderName: actor.Name, Content: content}
	if err := s.chats.CreateMessage(ctx, msg); err != nil {
		return nil, internalError(err, "failed to send message")
	}
	return msg, nil
}

func (s *ChatService) memberChat(ctx context.Context, actor models.Identity, groupID string) (*models.GroupChat, error) {
	if _, err := s.groups.FindByID(ctx, nil, groupID); err != nil {
		return nil, lookupError(err, "Group not found", "failed to load group")
	}
	if err := requireMember(ctx, s.groups, nil, actor, groupID); err != nil {
		return nil, err
	}
	chat, err := s.chats.FindByGroup(ctx, groupID)
	if err != nil {
		return nil, lookupError(err, "Chat not found", "failed to load group chat")
	}
	return chat, nil
}
