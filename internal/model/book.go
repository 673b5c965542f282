package model

import (
	"errors"
	"time"
)

// Book is one entry in a reader's log.
type Book struct {
	ID           int64        `db:"id" json:"id"`
	UserID       int64        `db:"user_id" json:"user_id"`
	Title        string       `db:"title" json:"title"`
	Author       string       `db:"author" json:"author"`
	Pages        int          `db:"pages" json:"pages"`
	ReadDate     *time.Time   `db:"read_date" json:"read_date,omitempty"`
	CoverURL     *string      `db:"cover_url" json:"cover_url,omitempty"`
	CoverKey     *string      `db:"cover_key" json:"-"`
	CommentCount int          `db:"comment_count" json:"comment_count"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
	Reader       *UserSummary `db:"-" json:"reader,omitempty"` // Joined field
}

// CreateBookRequest is the request body for logging a book. Note, when set,
// is stored as the book's first note.
type CreateBookRequest struct {
	Title    string `json:"title" validate:"required,max=255"`
	Author   string `json:"author" validate:"required,max=255"`
	Pages    int    `json:"pages" validate:"gte=0,lte=100000"`
	ReadDate string `json:"read_date" validate:"omitempty,datetime=2006-01-02"`
	Note     string `json:"note" validate:"max=5000"`
}

// BookDetail is a book with its notes and latest comments.
type BookDetail struct {
	Book     *Book     `json:"book"`
	Notes    []Note    `json:"notes"`
	Comments []Comment `json:"comments"`
}

// BookListResponse is the paginated list of a reader's books.
type BookListResponse struct {
	Books      []Book  `json:"books"`
	NextCursor *string `json:"next_cursor,omitempty"`
	HasMore    bool    `json:"has_more"`
}

// DeletedBook records a removal so it still counts toward achievements.
type DeletedBook struct {
	ID        int64     `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	BookID    int64     `db:"book_id" json:"book_id"`
	Title     string    `db:"title" json:"title"`
	DeletedAt time.Time `db:"deleted_at" json:"deleted_at"`
}

// BookScore is a (book, logged-at) pair as stored in feed caches.
type BookScore struct {
	BookID    int64
	Timestamp int64 // Unix milliseconds
}

// FeedResponse is the paginated feed of books logged by followed readers.
type FeedResponse struct {
	Books      []Book  `json:"books"`
	NextCursor *string `json:"next_cursor,omitempty"`
	HasMore    bool    `json:"has_more"`
}

// Book errors
var (
	ErrBookNotFound = errors.New("book not found")
	ErrNotBookOwner = errors.New("not the owner of this book")

	// ErrInvalidBook covers a blank title or author and a malformed read date.
	ErrInvalidBook = errors.New("invalid book")

	// ErrInvalidCursor is returned for a malformed pagination cursor.
	ErrInvalidCursor = errors.New("invalid cursor")
)

// LibraryEntry is a title across all readers, matched case-insensitively.
type LibraryEntry struct {
	Title   string   `json:"title"`
	Author  string   `json:"author"`
	Pages   int      `json:"pages"`
	Readers []string `json:"readers"`
}
