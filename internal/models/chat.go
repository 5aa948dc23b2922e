package models

import "time"

// GroupChat is the single chat room of a group.
type GroupChat struct {
	ID        string    `db:"id" json:"id"`
	GroupID   string    `db:"group_id" json:"groupId"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// ChatMessage is one message posted in a group chat.
type ChatMessage struct {
	ID         string    `db:"id" json:"id"`
	ChatID     string    `db:"chat_id" json:"chatId"`
	SenderID   string    `db:"sender_id" json:"senderId"`
	SenderName string    `db:"sender_name" json:"senderName"`
	Content    string    `db:"content" json:"content"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}

// ChatPage is a page of messages in chronological order.
type ChatPage struct {
	Messages []ChatMessage `json:"messages"`
	Meta     PageMeta      `json:"meta"`
}

// PostMessageRequest is the payload for sending a chat message.
type PostMessageRequest struct {
	Content string `json:"content" validate:"required,max=4000"`
}
