package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"bookrecorder/internal/cache"
	"bookrecorder/internal/logger"
	"bookrecorder/internal/model"
	"bookrecorder/internal/repository"
)

const (
	// FeedDefaultLimit is the default number of books per page
	FeedDefaultLimit = 10

	// FeedMaxLimit is the maximum number of books per page
	FeedMaxLimit = 50

	// CacheWarmLimit is max books to fetch when warming cache
	CacheWarmLimit = cache.FeedCacheCap
)

// FeedService serves books logged by the readers a user follows, plus
// their own, from the feed cache.
type FeedService struct {
	feedCache  cache.FeedCache
	bookRepo   repository.BookRepository
	followRepo repository.FollowRepository
	log        *logger.Logger
}

func NewFeedService(
	feedCache cache.FeedCache,
	bookRepo repository.BookRepository,
	followRepo repository.FollowRepository,
	log *logger.Logger,
) *FeedService {
	return &FeedService{
		feedCache:  feedCache,
		bookRepo:   bookRepo,
		followRepo: followRepo,
		log:        log.With("component", "FeedService"),
	}
}

// GetFeed pages through the user's feed. A missing cache is warmed from the
// database first; book IDs come from the cache and are hydrated from the DB.
func (s *FeedService) GetFeed(ctx context.Context, userID int64, cursor *string, limit int) (*model.FeedResponse, error) {
	start := time.Now()

	if limit <= 0 {
		limit = FeedDefaultLimit
	}
	if limit > FeedMaxLimit {
		limit = FeedMaxLimit
	}

	var cursorScore *float64
	if cursor != nil {
		score, _, err := parseFeedCursor(*cursor)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", model.ErrInvalidCursor, err)
		}
		cursorScore = &score
	}

	exists, err := s.feedCache.Exists(ctx, userID)
	if err != nil {
		s.log.Warn("cache check failed", "user_id", userID, "error", err)
	}
	if !exists {
		s.log.Debug("cache miss, warming", "user_id", userID)
		if err := s.warmCache(ctx, userID); err != nil {
			s.log.Warn("cache warm failed", "user_id", userID, "error", err)
		}
	}

	bookIDs, scores, err := s.feedCache.GetFeed(ctx, userID, cursorScore, limit)
	if err != nil {
		return nil, fmt.Errorf("get feed from cache: %w", err)
	}
	if len(bookIDs) == 0 {
		return &model.FeedResponse{Books: []model.Book{}}, nil
	}

	// Books deleted after fan-out are simply missing from the hydrated page.
	books, err := s.bookRepo.GetByIDs(ctx, bookIDs)
	if err != nil {
		return nil, fmt.Errorf("hydrate books: %w", err)
	}

	var nextCursor *string
	hasMore := len(bookIDs) == limit
	if hasMore {
		c := formatFeedCursor(scores[len(scores)-1], bookIDs[len(bookIDs)-1])
		nextCursor = &c
	}

	s.log.Debug("feed served", "user_id", userID, "books", len(books), "has_more", hasMore, "duration", time.Since(start))

	return &model.FeedResponse{
		Books:      books,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

// warmCache populates the user's feed cache from the database.
func (s *FeedService) warmCache(ctx context.Context, userID int64) error {
	followeeIDs, err := s.followRepo.GetFolloweeIDs(ctx, userID)
	if err != nil {
		return fmt.Errorf("get followee ids: %w", err)
	}
	// Include user's own books in their feed
	followeeIDs = append(followeeIDs, userID)

	books, err := s.bookRepo.GetFeedBookIDs(ctx, followeeIDs, CacheWarmLimit)
	if err != nil {
		return fmt.Errorf("get feed book ids: %w", err)
	}
	if len(books) == 0 {
		return nil
	}

	if err := s.feedCache.WarmCache(ctx, userID, books); err != nil {
		return fmt.Errorf("warm cache: %w", err)
	}
	s.log.Debug("cache warmed", "user_id", userID, "books", len(books))
	return nil
}

// parseFeedCursor parses an "id:timestamp" cursor into the score and book ID.
func parseFeedCursor(cursor string) (float64, int64, error) {
	parts := strings.Split(cursor, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid cursor format, expected id:timestamp")
	}

	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid book id in cursor: %w", err)
	}

	score, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid timestamp in cursor: %w", err)
	}

	return score, id, nil
}

func formatFeedCursor(score float64, id int64) string {
	return fmt.Sprintf("%d:%.0f", id, score)
}
