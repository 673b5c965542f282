package model

import (
	"errors"
	"time"
)

// PrivateMessage is a direct message between two readers.
type PrivateMessage struct {
	ID         int64     `db:"id" json:"id"`
	SenderID   int64     `db:"sender_id" json:"sender_id"`
	ReceiverID int64     `db:"receiver_id" json:"receiver_id"`
	Content    string    `db:"content" json:"content"`
	IsRead     bool      `db:"is_read" json:"is_read"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// ChatMessage is a post in the general chat room.
type ChatMessage struct {
	ID        int64        `db:"id" json:"id"`
	UserID    int64        `db:"user_id" json:"-"`
	Content   string       `db:"content" json:"content"`
	CreatedAt time.Time    `db:"created_at" json:"created_at"`
	Author    *UserSummary `db:"-" json:"author,omitempty"`
}

// SendMessageRequest is the body for both direct and general chat messages.
type SendMessageRequest struct {
	Content string `json:"content" validate:"required,max=2000"`
}

// Conversation is one row of the inbox.
type Conversation struct {
	Peer        UserSummary    `json:"peer"`
	LastMessage PrivateMessage `json:"last_message"`
	UnreadCount int            `json:"unread_count"`
}

// MessageListResponse is a page of a conversation, newest first.
type MessageListResponse struct {
	Messages   []PrivateMessage `json:"messages"`
	NextCursor *string          `json:"next_cursor,omitempty"`
	HasMore    bool             `json:"has_more"`
}

// ChatListResponse is a page of the general chat, newest first.
type ChatListResponse struct {
	Messages   []ChatMessage `json:"messages"`
	NextCursor *string       `json:"next_cursor,omitempty"`
	HasMore    bool          `json:"has_more"`
}

var ErrCannotMessageSelf = errors.New("cannot message yourself")
