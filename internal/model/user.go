package model

import (
	"errors"
	"time"
)

// User represents a reader account. Experience and Level are owned by the
// gamification ledger and never written by the user-facing endpoints.
type User struct {
	ID             int64     `db:"id" json:"id"`
	Username       string    `db:"username" json:"username"`
	Email          string    `db:"email" json:"email,omitempty"`
	PasswordHashed string    `db:"password_hashed" json:"-"` // "-" hides from JSON output
	DisplayName    *string   `db:"display_name" json:"display_name"`
	Bio            *string   `db:"bio" json:"bio"`
	Experience     int64     `db:"experience" json:"experience"`
	Level          int       `db:"level" json:"level"`
	FollowerCount  int       `db:"follower_count" json:"follower_count"`
	FollowingCount int       `db:"following_count" json:"following_count"`
	BookCount      int       `db:"book_count" json:"book_count"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// RegisterRequest represents the data needed to register a new user
type RegisterRequest struct {
	Username    string `json:"username" validate:"required,min=3,max=50,alphanum"`
	Email       string `json:"email" validate:"required,email,max=255"`
	Password    string `json:"password" validate:"required,min=6,max=72"`
	DisplayName string `json:"display_name" validate:"max=100"`
}

// LoginRequest represents the data needed to log in
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// ProgressBox is the experience summary shown next to the user's name.
type ProgressBox struct {
	Experience         int64 `json:"experience"`
	Level              int   `json:"level"`
	PercentToNextLevel int   `json:"percent_to_next_level"`
	NextLevelAt        int64 `json:"next_level_at"`
}

// ProfileResponse is a user's public profile as seen by the viewer.
type ProfileResponse struct {
	User        *User       `json:"user"`
	Progress    ProgressBox `json:"progress"`
	IsFollowing bool        `json:"is_following"`
}

var (
	// ErrUserNotFound is returned when a user cannot be found
	ErrUserNotFound = errors.New("user not found")

	// ErrUsernameExists is returned when attempting to create a user with a taken username
	ErrUsernameExists = errors.New("username already exists")

	// ErrEmailExists is returned when the email is already registered
	ErrEmailExists = errors.New("email already registered")

	// ErrInvalidCredentials is returned when login credentials are incorrect
	ErrInvalidCredentials = errors.New("invalid credentials")
)
