package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/capstone-hub-api/internal/models"
)

// ChatRepository persists group chats and their messages.
type ChatRepository struct {
	db *sqlx.DB
}

// NewChatRepository constructs the repository.
func NewChatRepository(db *sqlx.DB) *ChatRepository {
	return &ChatRepository{db: db}
}

// Create inserts the chat room of a group.
func (r *ChatRepository) Create(ctx context.Context, exec sqlx.ExtContext, chat *models.GroupChat) error {
	if chat.ID == "" {
		chat.ID = uuid.NewString()
	}
	if chat.CreatedAt.IsZero() {
		chat.CreatedAt = time.Now().UTC()
	}
	if exec == nil {
		exec = r.db
	}
	const query = `INSERT INTO group_chats (id, group_id, created_at) VALUES (:id, :group_id, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, exec, query, chat); err != nil {
		return fmt.Errorf("create group chat: %w", err)
	}
	return nil
}

// FindByGroup returns the chat of a group.
func (r *ChatRepository) FindByGroup(ctx context.Context, groupID string) (*models.GroupChat, error) {
	var chat models.GroupChat
	if err := r.db.GetContext(ctx, &chat, `SELECT id, group_id, created_at FROM group_chats WHERE group_id = $1`, groupID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find group chat: %w", err)
	}
	return &chat, nil
}

// CreateMessage stores a chat message.
func (r *ChatRepository) CreateMessage(ctx context.Context, msg *models.ChatMessage) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO group_chat_messages (id, chat_id, sender_id, content, created_at) VALUES (:id, :chat_id, :sender_id, :content, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, msg); err != nil {
		return fmt.Errorf("create chat message: %w", err)
	}
	return nil
}

// ListMessages returns a page of messages, newest first, with the total count.
func (r *ChatRepository) ListMessages(ctx context.Context, chatID string, limit, offset int) ([]models.ChatMessage, int, error) {
	const query = `SELECT msg.id, msg.chat_id, msg.sender_id, u.name AS sender_name, msg.content, msg.created_at
FROM group_chat_messages msg JOIN users u ON u.id = msg.sender_id
WHERE msg.chat_id = $1
ORDER BY msg.created_at DESC, msg.id DESC
LIMIT $2 OFFSET $3`
	var messages []models.ChatMessage
	if err := r.db.SelectContext(ctx, &messages, query, chatID, limit, offset); err != nil {
		return nil, 0, fmt.Errorf("list chat messages: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM group_chat_messages WHERE chat_id = $1`, chatID); err != nil {
		return nil, 0, fmt.Errorf("count chat messages: %w", err)
	}
	return messages, total, nil
}
