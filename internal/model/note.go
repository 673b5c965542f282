package model

import "time"

// Note is a private reading note attached to one of the user's own books.
type Note struct {
	ID        int64     `db:"id" json:"id"`
	BookID    int64     `db:"book_id" json:"book_id"`
	UserID    int64     `db:"user_id" json:"-"`
	Content   string    `db:"content" json:"content"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// CreateNoteRequest is the request body for adding a note.
type CreateNoteRequest struct {
	Content string `json:"content" validate:"required,max=5000"`
}
