package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"bookrecorder/internal/model"
)

type noteRepository struct {
	db *sqlx.DB
}

func NewNoteRepository(db *sqlx.DB) NoteRepository {
	return &noteRepository{db: db}
}

func (r *noteRepository) Create(ctx context.Context, tx *sqlx.Tx, bookID, userID int64, content string) (*model.Note, error) {
	query := `
		INSERT INTO notes (book_id, user_id, content)
		VALUES ($1, $2, $3)
		RETURNING id, book_id, user_id, content, created_at
	`
	var note model.Note
	if err := tx.GetContext(ctx, &note, query, bookID, userID, content); err != nil {
		return nil, fmt.Errorf("insert note: %w", err)
	}
	return &note, nil
}

// ListByBook returns a book's notes, newest first.
func (r *noteRepository) ListByBook(ctx context.Context, bookID int64) ([]model.Note, error) {
	query := `
		SELECT id, book_id, user_id, content, created_at
		FROM notes
		WHERE book_id = $1
		ORDER BY created_at DESC, id DESC
	`
	notes := []model.Note{}
	if err := r.db.SelectContext(ctx, &notes, query, bookID); err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	return notes, nil
}
