package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"bookrecorder/internal/model"
)

type commentRepository struct {
	db *sqlx.DB
}

func NewCommentRepository(db *sqlx.DB) CommentRepository {
	return &commentRepository{db: db}
}

// Create inserts a new comment inside the caller's transaction.
func (r *commentRepository) Create(ctx context.Context, tx *sqlx.Tx, bookID, userID int64, content string) (*model.Comment, error) {
	query := `
		INSERT INTO book_comments (book_id, user_id, content)
		VALUES ($1, $2, $3)
		RETURNING id, book_id, user_id, content, created_at
	`
	var comment model.Comment
	err := tx.GetContext(ctx, &comment, query, bookID, userID, content)
	if err != nil {
		return nil, fmt.Errorf("insert comment: %w", err)
	}
	return &comment, nil
}

// Delete removes a comment. Only the comment owner can delete.
func (r *commentRepository) Delete(ctx context.Context, commentID, userID int64) (int64, error) {
	var bookID int64
	err := r.db.GetContext(ctx, &bookID, `
		DELETE FROM book_comments WHERE id = $1 AND user_id = $2
		RETURNING book_id
	`, commentID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		var exists bool
		if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM book_comments WHERE id = $1)`, commentID); err != nil {
			return 0, fmt.Errorf("check comment exists: %w", err)
		}
		if exists {
			return 0, model.ErrNotCommentOwner
		}
		return 0, model.ErrCommentNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("delete comment: %w", err)
	}
	return bookID, nil
}

// GetByBookID returns paginated comments for a book, newest first.
func (r *commentRepository) GetByBookID(ctx context.Context, bookID int64, cursor *string, limit int) ([]model.Comment, *string, error) {
	var query string
	var args []interface{}

	if cursor == nil {
		query = `
			SELECT c.id, c.book_id, c.user_id, c.content, c.created_at,
			       u.id AS "author.id", u.username AS "author.username",
			       u.display_name AS "author.display_name", u.level AS "author.level"
			FROM book_comments c
			JOIN users u ON u.id = c.user_id
			WHERE c.book_id = $1
			ORDER BY c.created_at DESC, c.id DESC
			LIMIT $2
		`
		args = []interface{}{bookID, limit + 1}
	} else {
		ts, id, err := parseCursor(*cursor)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid cursor: %w", err)
		}
		query = `
			SELECT c.id, c.book_id, c.user_id, c.content, c.created_at,
			       u.id AS "author.id", u.username AS "author.username",
			       u.display_name AS "author.display_name", u.level AS "author.level"
			FROM book_comments c
			JOIN users u ON u.id = c.user_id
			WHERE c.book_id = $1 AND (c.created_at, c.id) < ($2, $3)
			ORDER BY c.created_at DESC, c.id DESC
			LIMIT $4
		`
		args = []interface{}{bookID, ts, id, limit + 1}
	}

	type commentRow struct {
		ID        int64             `db:"id"`
		BookID    int64             `db:"book_id"`
		UserID    int64             `db:"user_id"`
		Content   string            `db:"content"`
		CreatedAt time.Time         `db:"created_at"`
		Author    model.UserSummary `db:"author"`
	}

	var rows []commentRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, nil, fmt.Errorf("get comments: %w", err)
	}

	var nextCursor *string
	if len(rows) > limit {
		rows = rows[:limit]
		last := rows[len(rows)-1]
		c := formatCursor(last.CreatedAt, last.ID)
		nextCursor = &c
	}

	comments := make([]model.Comment, len(rows))
	for i, row := range rows {
		author := row.Author
		comments[i] = model.Comment{
			ID:        row.ID,
			BookID:    row.BookID,
			UserID:    row.UserID,
			Content:   row.Content,
			CreatedAt: row.CreatedAt,
			Author:    &author,
		}
	}
	return comments, nextCursor, nil
}
