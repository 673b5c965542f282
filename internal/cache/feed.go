package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"bookrecorder/internal/logger"
	"bookrecorder/internal/model"
)

const (
	// FeedCachePrefix is the key prefix for user feed caches
	FeedCachePrefix = "feed:user:"

	// FeedCacheCap is the maximum number of books to cache per user
	FeedCacheCap = 500

	// FeedCacheTTL is the TTL for feed cache (7 days)
	FeedCacheTTL = 7 * 24 * time.Hour
)

// FeedCache holds, per user, the books logged by the readers they follow,
// scored by the time the book was logged.
type FeedCache interface {
	// AddBook adds a book to a user's feed, trimming to FeedCacheCap.
	AddBook(ctx context.Context, userID, bookID int64, timestamp int64) error

	// RemoveBook removes a book from a user's feed.
	RemoveBook(ctx context.Context, userID, bookID int64) error

	// GetFeed returns book IDs newest first. With a cursor only books scored
	// strictly below it are returned.
	GetFeed(ctx context.Context, userID int64, cursorScore *float64, limit int) (bookIDs []int64, scores []float64, err error)

	// WarmCache bulk-inserts books into a user's feed.
	WarmCache(ctx context.Context, userID int64, books []model.BookScore) error

	// Exists reports whether the user has a feed key. The service warms the
	// cache when it is missing (new user or TTL expired).
	Exists(ctx context.Context, userID int64) (bool, error)

	// Invalidate drops a user's feed so the next read rebuilds it.
	Invalidate(ctx context.Context, userID int64) error
}

// RedisFeedCache implements FeedCache using Redis sorted sets.
type RedisFeedCache struct {
	client *redis.Client
	log    *logger.Logger
}

// NewFeedCache creates a new FeedCache backed by Redis.
func NewFeedCache(client *redis.Client, log *logger.Logger) FeedCache {
	return &RedisFeedCache{client: client, log: log.With("component", "FeedCache")}
}

func feedKey(userID int64) string {
	return fmt.Sprintf("%s%d", FeedCachePrefix, userID)
}

// AddBook pipelines ZADD + ZREMRANGEBYRANK (trim to cap) + EXPIRE.
func (c *RedisFeedCache) AddBook(ctx context.Context, userID, bookID int64, timestamp int64) error {
	key := feedKey(userID)

	pipe := c.client.Pipeline()
	pipe.ZAdd(ctx, key, redis.Z{
		Score:  float64(timestamp),
		Member: strconv.FormatInt(bookID, 10),
	})
	// Rank 0 is the oldest; keep the newest FeedCacheCap members.
	pipe.ZRemRangeByRank(ctx, key, 0, int64(-FeedCacheCap-1))
	pipe.Expire(ctx, key, FeedCacheTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("add book to feed: %w", err)
	}

	c.log.Debug("book added to feed", "user_id", userID, "book_id", bookID)
	return nil
}

func (c *RedisFeedCache) RemoveBook(ctx context.Context, userID, bookID int64) error {
	removed, err := c.client.ZRem(ctx, feedKey(userID), strconv.FormatInt(bookID, 10)).Result()
	if err != nil {
		return fmt.Errorf("remove book from feed: %w", err)
	}

	c.log.Debug("book removed from feed", "user_id", userID, "book_id", bookID, "removed", removed)
	return nil
}

func (c *RedisFeedCache) GetFeed(ctx context.Context, userID int64, cursorScore *float64, limit int) ([]int64, []float64, error) {
	key := feedKey(userID)

	var results []redis.Z
	var err error
	if cursorScore == nil {
		results, err = c.client.ZRevRangeWithScores(ctx, key, 0, int64(limit-1)).Result()
	} else {
		results, err = c.client.ZRevRangeByScoreWithScores(ctx, key, &redis.ZRangeBy{
			Min:   "-inf",
			Max:   fmt.Sprintf("(%f", *cursorScore), // exclusive
			Count: int64(limit),
		}).Result()
	}
	if err != nil {
		return nil, nil, fmt.Errorf("get feed: %w", err)
	}

	// Refresh TTL on access
	c.client.Expire(ctx, key, FeedCacheTTL)

	bookIDs := make([]int64, len(results))
	scores := make([]float64, len(results))
	for i, z := range results {
		id, err := strconv.ParseInt(z.Member.(string), 10, 64)
		if err != nil {
			return nil, nil, fmt.Errorf("parse book id %v: %w", z.Member, err)
		}
		bookIDs[i] = id
		scores[i] = z.Score
	}
	return bookIDs, scores, nil
}

func (c *RedisFeedCache) WarmCache(ctx context.Context, userID int64, books []model.BookScore) error {
	if len(books) == 0 {
		return nil
	}

	key := feedKey(userID)
	members := make([]redis.Z, len(books))
	for i, b := range books {
		members[i] = redis.Z{
			Score:  float64(b.Timestamp),
			Member: strconv.FormatInt(b.BookID, 10),
		}
	}

	pipe := c.client.Pipeline()
	pipe.ZAdd(ctx, key, members...)
	pipe.ZRemRangeByRank(ctx, key, 0, int64(-FeedCacheCap-1))
	pipe.Expire(ctx, key, FeedCacheTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("warm cache: %w", err)
	}

	c.log.Debug("feed warmed", "user_id", userID, "books", len(books))
	return nil
}

func (c *RedisFeedCache) Exists(ctx context.Context, userID int64) (bool, error) {
	n, err := c.client.Exists(ctx, feedKey(userID)).Result()
	if err != nil {
		return false, fmt.Errorf("check cache exists: %w", err)
	}
	return n > 0, nil
}

func (c *RedisFeedCache) Invalidate(ctx context.Context, userID int64) error {
	if err := c.client.Del(ctx, feedKey(userID)).Err(); err != nil {
		return fmt.Errorf("invalidate feed: %w", err)
	}
	return nil
}
