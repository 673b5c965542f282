package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"bookrecorder/internal/model"
)

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id int64) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	Search(ctx context.Context, query string, limit int) ([]model.UserSummary, error)
	// GetSummaries returns summaries keyed by id; unknown ids are absent.
	GetSummaries(ctx context.Context, ids []int64) (map[int64]model.UserSummary, error)
	TopByExperience(ctx context.Context, limit int) ([]model.LeaderboardEntry, error)
	// TopReaders ranks users by books or pages logged since the given time (nil for all time).
	TopReaders(ctx context.Context, by model.RankingKind, since *time.Time, limit int) ([]model.RankingEntry, error)
	IncrementFollowerCount(ctx context.Context, tx *sqlx.Tx, userID int64, delta int) error
	IncrementFollowingCount(ctx context.Context, tx *sqlx.Tx, userID int64, delta int) error
}

type BookRepository interface {
	// Create inserts the book and bumps the owner's book_count.
	Create(ctx context.Context, tx *sqlx.Tx, book *model.Book) error
	// FindOwned returns the user's book with the same title and author, or ErrBookNotFound.
	FindOwned(ctx context.Context, tx *sqlx.Tx, userID int64, title, author string) (*model.Book, error)
	GetByID(ctx context.Context, bookID int64) (*model.Book, error)
	GetByIDs(ctx context.Context, bookIDs []int64) ([]model.Book, error)
	ListByUser(ctx context.Context, userID int64, cursor *string, limit int) ([]model.Book, *string, error)
	// Delete removes the book, records it in deleted_books and returns the removed row.
	Delete(ctx context.Context, tx *sqlx.Tx, bookID, userID int64) (*model.Book, error)
	// SetCover stores the cover and returns the previous object key, if any.
	SetCover(ctx context.Context, bookID, userID int64, url, key string) (*string, error)
	Library(ctx context.Context, limit int) ([]model.LibraryEntry, error)
	GetRecentByUser(ctx context.Context, userID int64, limit int) ([]model.BookScore, error)
	GetFeedBookIDs(ctx context.Context, userIDs []int64, limit int) ([]model.BookScore, error)
}

type NoteRepository interface {
	Create(ctx context.Context, tx *sqlx.Tx, bookID, userID int64, content string) (*model.Note, error)
	ListByBook(ctx context.Context, bookID int64) ([]model.Note, error)
}

type FollowRepository interface {
	Create(ctx context.Context, tx *sqlx.Tx, followerID, followeeID int64) (bool, error)
	Delete(ctx context.Context, tx *sqlx.Tx, followerID, followeeID int64) error
	Exists(ctx context.Context, followerID, followeeID int64) (bool, error)
	GetFollowers(ctx context.Context, userID int64, cursor *time.Time, limit int) ([]model.UserSummary, *time.Time, error)
	GetFollowing(ctx context.Context, userID int64, cursor *time.Time, limit int) ([]model.UserSummary, *time.Time, error)
	CheckFollows(ctx context.Context, followerID int64, followeeIDs []int64) (map[int64]bool, error)
	// Feed fan-out and backfill
	GetFollowerIDs(ctx context.Context, userID int64) ([]int64, error)
	GetFolloweeIDs(ctx context.Context, userID int64) ([]int64, error)
}

type CommentRepository interface {
	Create(ctx context.Context, tx *sqlx.Tx, bookID, userID int64, content string) (*model.Comment, error)
	Delete(ctx context.Context, commentID, userID int64) (bookID int64, err error)
	GetByBookID(ctx context.Context, bookID int64, cursor *string, limit int) ([]model.Comment, *string, error)
}

type MessageRepository interface {
	Send(ctx context.Context, senderID, receiverID int64, content string) (*model.PrivateMessage, error)
	ListConversation(ctx context.Context, userID, peerID int64, cursor *string, limit int) ([]model.PrivateMessage, *string, error)
	ListConversations(ctx context.Context, userID int64, limit int) ([]model.Conversation, error)
	MarkConversationRead(ctx context.Context, userID, peerID int64) error
	PostChat(ctx context.Context, userID int64, content string) (*model.ChatMessage, error)
	ListChat(ctx context.Context, cursor *string, limit int) ([]model.ChatMessage, *string, error)
}

type NotificationRepository interface {
	Create(ctx context.Context, n *model.Notification) error
	// List returns the newest notifications with actor/achievement info plus the unread count
	List(ctx context.Context, userID int64, limit int) ([]model.Notification, int, error)
	MarkAsRead(ctx context.Context, userID int64, notificationIDs []int64) error
	MarkAllAsRead(ctx context.Context, userID int64) error
	GetUnreadCount(ctx context.Context, userID int64) (int, error)
}
