package worker

import (
	"context"
	"fmt"
	"time"

	"bookrecorder/internal/cache"
	"bookrecorder/internal/logger"
	"bookrecorder/internal/model"
	"bookrecorder/internal/queue"
)

const (
	// backfillLimit is how many recent books are copied into a new follower's feed.
	backfillLimit = 20

	// unfollowRemoveLimit bounds how many of the followee's books are removed on unfollow.
	unfollowRemoveLimit = 100
)

// FollowerProvider abstracts the repository layer so workers don't depend on the DB directly.
type FollowerProvider interface {
	GetFollowerIDs(ctx context.Context, userID int64) ([]int64, error)
}

// RecentBooksProvider returns a reader's recent books as (bookID, timestamp) pairs.
type RecentBooksProvider interface {
	GetRecentByUser(ctx context.Context, userID int64, limit int) ([]model.BookScore, error)
}

// NotificationCreator lets the worker create notifications without depending on the service.
type NotificationCreator interface {
	CreateNotification(ctx context.Context, n *model.Notification) error
}

// Handler processes activity events from the queue.
type Handler struct {
	feedCache        cache.FeedCache
	leaderboard      cache.LeaderboardCache
	followerProvider FollowerProvider
	booksProvider    RecentBooksProvider
	notifCreator     NotificationCreator // Can be nil if notifications not wired
	log              *logger.Logger
}

// NewHandler creates a new event handler.
func NewHandler(
	feedCache cache.FeedCache,
	leaderboard cache.LeaderboardCache,
	followerProvider FollowerProvider,
	booksProvider RecentBooksProvider,
	log *logger.Logger,
) *Handler {
	return &Handler{
		feedCache:        feedCache,
		leaderboard:      leaderboard,
		followerProvider: followerProvider,
		booksProvider:    booksProvider,
		log:              log.With("component", "Worker"),
	}
}

// SetNotificationCreator sets the notification creator (optional).
func (h *Handler) SetNotificationCreator(nc NotificationCreator) {
	h.notifCreator = nc
}

// HandleEvent routes an event to the appropriate handler based on type.
func (h *Handler) HandleEvent(ctx context.Context, event queue.ActivityEvent) error {
	start := time.Now()
	var err error

	switch event.Type {
	case queue.EventBookAdded:
		err = h.handleBookAdded(ctx, event)
	case queue.EventBookDeleted:
		err = h.handleBookDeleted(ctx, event)
	case queue.EventUserFollowed:
		err = h.handleUserFollowed(ctx, event)
	case queue.EventUserUnfollowed:
		err = h.handleUserUnfollowed(ctx, event)
	case queue.EventCommentAdded:
		err = h.handleCommentAdded(ctx, event)
	case queue.EventExperienceChanged:
		err = h.handleExperienceChanged(ctx, event)
	case queue.EventAchievementUnlocked:
		err = h.handleAchievementUnlocked(ctx, event)
	default:
		return fmt.Errorf("unknown event type: %s", event.Type)
	}

	if err != nil {
		return err
	}

	h.log.Debug("event handled", "type", event.Type, "duration", time.Since(start))
	return nil
}

// handleBookAdded fans a new book out to the owner's and all followers' feed caches.
func (h *Handler) handleBookAdded(ctx context.Context, event queue.ActivityEvent) error {
	followers, err := h.followerProvider.GetFollowerIDs(ctx, event.UserID)
	if err != nil {
		return fmt.Errorf("get followers: %w", err)
	}

	// A failed follower does not fail the whole fan-out.
	var failed int
	for _, userID := range append(followers, event.UserID) {
		if err := h.feedCache.AddBook(ctx, userID, event.BookID, event.Timestamp); err != nil {
			h.log.Warn("fan-out failed", "user_id", userID, "book_id", event.BookID, "error", err)
			failed++
		}
	}

	h.log.Debug("book fanned out", "book_id", event.BookID, "fanout", len(followers)+1, "failed", failed)
	return nil
}

// handleBookDeleted removes a book from the owner's and all followers' feed caches.
func (h *Handler) handleBookDeleted(ctx context.Context, event queue.ActivityEvent) error {
	followers, err := h.followerProvider.GetFollowerIDs(ctx, event.UserID)
	if err != nil {
		return fmt.Errorf("get followers: %w", err)
	}

	var failed int
	for _, userID := range append(followers, event.UserID) {
		if err := h.feedCache.RemoveBook(ctx, userID, event.BookID); err != nil {
			h.log.Warn("feed removal failed", "user_id", userID, "book_id", event.BookID, "error", err)
			failed++
		}
	}

	h.log.Debug("book removed from feeds", "book_id", event.BookID, "fanout", len(followers)+1, "failed", failed)
	return nil
}

// handleUserFollowed backfills the follower's feed and notifies the followee.
func (h *Handler) handleUserFollowed(ctx context.Context, event queue.ActivityEvent) error {
	books, err := h.booksProvider.GetRecentByUser(ctx, event.FolloweeID, backfillLimit)
	if err != nil {
		return fmt.Errorf("get recent books: %w", err)
	}

	if len(books) > 0 {
		if err := h.feedCache.WarmCache(ctx, event.FollowerID, books); err != nil {
			h.log.Warn("feed backfill failed", "follower_id", event.FollowerID, "error", err)
		}
	}

	if h.notifCreator != nil {
		actorID := event.FollowerID
		err := h.notifCreator.CreateNotification(ctx, &model.Notification{
			UserID:  event.FolloweeID,
			ActorID: &actorID,
			Type:    model.NotificationTypeFollow,
		})
		if err != nil {
			h.log.Warn("failed to create follow notification", "followee_id", event.FolloweeID, "error", err)
		}
	}
	return nil
}

// handleUserUnfollowed removes the followee's books from the follower's feed.
func (h *Handler) handleUserUnfollowed(ctx context.Context, event queue.ActivityEvent) error {
	books, err := h.booksProvider.GetRecentByUser(ctx, event.FolloweeID, unfollowRemoveLimit)
	if err != nil {
		return fmt.Errorf("get books to remove: %w", err)
	}

	for _, b := range books {
		if err := h.feedCache.RemoveBook(ctx, event.FollowerID, b.BookID); err != nil {
			h.log.Warn("feed removal failed", "user_id", event.FollowerID, "book_id", b.BookID, "error", err)
		}
	}
	return nil
}

// handleCommentAdded notifies the book owner unless they commented on their own book.
func (h *Handler) handleCommentAdded(ctx context.Context, event queue.ActivityEvent) error {
	if h.notifCreator == nil || event.UserID == event.OwnerID {
		return nil
	}

	actorID, bookID := event.UserID, event.BookID
	err := h.notifCreator.CreateNotification(ctx, &model.Notification{
		UserID:  event.OwnerID,
		ActorID: &actorID,
		Type:    model.NotificationTypeComment,
		BookID:  &bookID,
	})
	if err != nil {
		return fmt.Errorf("create comment notification: %w", err)
	}
	return nil
}

func (h *Handler) handleExperienceChanged(ctx context.Context, event queue.ActivityEvent) error {
	if err := h.leaderboard.SetExperience(ctx, event.UserID, event.Experience); err != nil {
		return fmt.Errorf("update leaderboard: %w", err)
	}
	return nil
}

// handleAchievementUnlocked moves the user on the leaderboard and notifies them.
func (h *Handler) handleAchievementUnlocked(ctx context.Context, event queue.ActivityEvent) error {
	if err := h.leaderboard.SetExperience(ctx, event.UserID, event.Experience); err != nil {
		h.log.Warn("failed to update leaderboard", "user_id", event.UserID, "error", err)
	}

	if h.notifCreator == nil {
		return nil
	}

	achievementID := event.AchievementID
	err := h.notifCreator.CreateNotification(ctx, &model.Notification{
		UserID:        event.UserID,
		Type:          model.NotificationTypeAchievement,
		AchievementID: &achievementID,
	})
	if err != nil {
		return fmt.Errorf("create achievement notification: %w", err)
	}
	return nil
}
