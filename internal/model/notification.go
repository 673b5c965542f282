package model

import (
	"time"
)

// Notification types
const (
	NotificationTypeFollow      = "follow"
	NotificationTypeComment     = "comment"
	NotificationTypeAchievement = "achievement"
)

// Notification represents a single notification record in the database.
type Notification struct {
	ID            int64     `db:"id" json:"id"`
	UserID        int64     `db:"user_id" json:"-"`                   // Recipient
	ActorID       *int64    `db:"actor_id" json:"actor_id,omitempty"` // Nil for achievements
	Type          string    `db:"type" json:"type"`
	BookID        *int64    `db:"book_id" json:"book_id,omitempty"`
	AchievementID *int64    `db:"achievement_id" json:"achievement_id,omitempty"`
	IsRead        bool      `db:"is_read" json:"is_read"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`

	// Joined fields for display
	Actor            *UserSummary `db:"-" json:"actor,omitempty"`
	AchievementName  *string      `db:"achievement_name" json:"achievement_name,omitempty"`
	AchievementImage *string      `db:"achievement_image" json:"achievement_image,omitempty"`
}

// NotificationListResponse is the notification list response.
type NotificationListResponse struct {
	Notifications []Notification `json:"notifications"`
	// Unread count for badge
	UnreadCount int `json:"unread_count"`
}

// MarkReadRequest is the request body for marking notifications as read.
type MarkReadRequest struct {
	NotificationIDs []int64 `json:"notification_ids" validate:"required,min=1,max=100"`
}
