package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"bookrecorder/internal/model"
)

const bookColumns = `b.id, b.user_id, b.title, b.author, b.pages, b.read_date, b.cover_url, b.cover_key, b.created_at,
		       (SELECT COUNT(*) FROM book_comments c WHERE c.book_id = b.id) AS comment_count`

type bookRepository struct {
	db *sqlx.DB
}

func NewBookRepository(db *sqlx.DB) BookRepository {
	return &bookRepository{db: db}
}

// Create inserts the book and increments the owner's book_count in tx.
func (r *bookRepository) Create(ctx context.Context, tx *sqlx.Tx, b *model.Book) error {
	query := `
		INSERT INTO books (user_id, title, author, pages, read_date)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	if err := tx.QueryRowxContext(ctx, query, b.UserID, b.Title, b.Author, b.Pages, b.ReadDate).Scan(&b.ID, &b.CreatedAt); err != nil {
		return fmt.Errorf("insert book: %w", err)
	}

	_, err := tx.ExecContext(ctx, `UPDATE users SET book_count = book_count + 1 WHERE id = $1`, b.UserID)
	if err != nil {
		return fmt.Errorf("increment book count: %w", err)
	}
	return nil
}

func (r *bookRepository) FindOwned(ctx context.Context, tx *sqlx.Tx, userID int64, title, author string) (*model.Book, error) {
	query := `
		SELECT ` + bookColumns + `
		FROM books b
		WHERE b.user_id = $1 AND b.title = $2 AND b.author = $3
		ORDER BY b.id
		LIMIT 1
	`
	var book model.Book
	err := tx.GetContext(ctx, &book, query, userID, title, author)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrBookNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find book: %w", err)
	}
	return &book, nil
}

// GetByID retrieves a single book with its reader.
func (r *bookRepository) GetByID(ctx context.Context, bookID int64) (*model.Book, error) {
	books, err := r.GetByIDs(ctx, []int64{bookID})
	if err != nil {
		return nil, err
	}
	if len(books) == 0 {
		return nil, model.ErrBookNotFound
	}
	return &books[0], nil
}

// GetByIDs retrieves books with their readers, in the order of bookIDs.
// Used for hydrating the feed from cache.
func (r *bookRepository) GetByIDs(ctx context.Context, bookIDs []int64) ([]model.Book, error) {
	if len(bookIDs) == 0 {
		return []model.Book{}, nil
	}

	query := `
		SELECT ` + bookColumns + `,
		       u.id AS "reader.id", u.username AS "reader.username",
		       u.display_name AS "reader.display_name", u.level AS "reader.level"
		FROM books b
		JOIN users u ON u.id = b.user_id
		WHERE b.id = ANY($1)
	`
	type bookRow struct {
		model.Book
		Reader model.UserSummary `db:"reader"`
	}
	var rows []bookRow
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(bookIDs)); err != nil {
		return nil, fmt.Errorf("get books by ids: %w", err)
	}

	byID := make(map[int64]model.Book, len(rows))
	for _, row := range rows {
		b := row.Book
		reader := row.Reader
		b.Reader = &reader
		byID[b.ID] = b
	}
	ordered := make([]model.Book, 0, len(bookIDs))
	for _, id := range bookIDs {
		if b, ok := byID[id]; ok {
			ordered = append(ordered, b)
		}
	}
	return ordered, nil
}

// ListByUser returns a reader's books, newest first.
func (r *bookRepository) ListByUser(ctx context.Context, userID int64, cursor *string, limit int) ([]model.Book, *string, error) {
	var query string
	var args []interface{}

	if cursor == nil {
		query = `
			SELECT ` + bookColumns + `
			FROM books b
			WHERE b.user_id = $1
			ORDER BY b.created_at DESC, b.id DESC
			LIMIT $2
		`
		args = []interface{}{userID, limit + 1}
	} else {
		ts, id, err := parseCursor(*cursor)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid cursor: %w", err)
		}
		query = `
			SELECT ` + bookColumns + `
			FROM books b
			WHERE b.user_id = $1 AND (b.created_at, b.id) < ($2, $3)
			ORDER BY b.created_at DESC, b.id DESC
			LIMIT $4
		`
		args = []interface{}{userID, ts, id, limit + 1}
	}

	books := []model.Book{}
	if err := r.db.SelectContext(ctx, &books, query, args...); err != nil {
		return nil, nil, fmt.Errorf("list books: %w", err)
	}

	var nextCursor *string
	if len(books) > limit {
		books = books[:limit]
		last := books[len(books)-1]
		c := formatCursor(last.CreatedAt, last.ID)
		nextCursor = &c
	}
	return books, nextCursor, nil
}

// Delete removes a book owned by userID. The removal is recorded in
// deleted_books so it keeps counting toward achievements.
func (r *bookRepository) Delete(ctx context.Context, tx *sqlx.Tx, bookID, userID int64) (*model.Book, error) {
	var book model.Book
	err := tx.GetContext(ctx, &book, `
		DELETE FROM books
		WHERE id = $1 AND user_id = $2
		RETURNING id, user_id, title, author, pages, read_date, cover_url, cover_key, created_at
	`, bookID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		var exists bool
		if err := tx.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM books WHERE id = $1)`, bookID); err != nil {
			return nil, fmt.Errorf("check book exists: %w", err)
		}
		if exists {
			return nil, model.ErrNotBookOwner
		}
		return nil, model.ErrBookNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("delete book: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO deleted_books (user_id, book_id, title)
		VALUES ($1, $2, $3)
	`, userID, book.ID, book.Title)
	if err != nil {
		return nil, fmt.Errorf("record deleted book: %w", err)
	}

	_, err = tx.ExecContext(ctx, `UPDATE users SET book_count = book_count - 1 WHERE id = $1 AND book_count > 0`, userID)
	if err != nil {
		return nil, fmt.Errorf("decrement book count: %w", err)
	}
	return &book, nil
}

func (r *bookRepository) SetCover(ctx context.Context, bookID, userID int64, url, key string) (*string, error) {
	var old struct {
		UserID   int64   `db:"user_id"`
		CoverKey *string `db:"cover_key"`
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	err = tx.GetContext(ctx, &old, `SELECT user_id, cover_key FROM books WHERE id = $1 FOR UPDATE`, bookID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrBookNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get book cover: %w", err)
	}
	if old.UserID != userID {
		return nil, model.ErrNotBookOwner
	}

	if _, err := tx.ExecContext(ctx, `UPDATE books SET cover_url = $1, cover_key = $2 WHERE id = $3`, url, key, bookID); err != nil {
		return nil, fmt.Errorf("set book cover: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return old.CoverKey, nil
}

// Library lists every logged title once, with the readers who logged it.
func (r *bookRepository) Library(ctx context.Context, limit int) ([]model.LibraryEntry, error) {
	query := `
		SELECT MIN(b.title) AS title, MIN(b.author) AS author, MAX(b.pages) AS pages,
		       array_agg(DISTINCT u.username) AS readers
		FROM books b
		JOIN users u ON u.id = b.user_id
		GROUP BY lower(trim(b.title)), lower(trim(b.author))
		ORDER BY MIN(b.title)
		LIMIT $1
	`
	type libraryRow struct {
		Title   string         `db:"title"`
		Author  string         `db:"author"`
		Pages   int            `db:"pages"`
		Readers pq.StringArray `db:"readers"`
	}
	var rows []libraryRow
	if err := r.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("get library: %w", err)
	}

	entries := make([]model.LibraryEntry, len(rows))
	for i, row := range rows {
		entries[i] = model.LibraryEntry{
			Title:   row.Title,
			Author:  row.Author,
			Pages:   row.Pages,
			Readers: []string(row.Readers),
		}
	}
	return entries, nil
}

// GetRecentByUser returns a reader's recent books (for follow backfill).
func (r *bookRepository) GetRecentByUser(ctx context.Context, userID int64, limit int) ([]model.BookScore, error) {
	query := `
		SELECT id, (EXTRACT(EPOCH FROM created_at) * 1000)::bigint AS timestamp
		FROM books
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	return r.selectScores(ctx, query, userID, limit)
}

// GetFeedBookIDs returns book IDs from the given readers for cache warming.
func (r *bookRepository) GetFeedBookIDs(ctx context.Context, userIDs []int64, limit int) ([]model.BookScore, error) {
	if len(userIDs) == 0 {
		return []model.BookScore{}, nil
	}

	query := `
		SELECT id, (EXTRACT(EPOCH FROM created_at) * 1000)::bigint AS timestamp
		FROM books
		WHERE user_id = ANY($1)
		ORDER BY created_at DESC
		LIMIT $2
	`
	return r.selectScores(ctx, query, pq.Array(userIDs), limit)
}

func (r *bookRepository) selectScores(ctx context.Context, query string, args ...interface{}) ([]model.BookScore, error) {
	type row struct {
		ID        int64 `db:"id"`
		Timestamp int64 `db:"timestamp"`
	}
	var rows []row
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("get book scores: %w", err)
	}

	scores := make([]model.BookScore, len(rows))
	for i, r := range rows {
		scores[i] = model.BookScore{BookID: r.ID, Timestamp: r.Timestamp}
	}
	return scores, nil
}
