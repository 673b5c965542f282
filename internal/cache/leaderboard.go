package cache

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"bookrecorder/internal/logger"
	"bookrecorder/internal/model"
)

// LeaderboardKey holds every user's experience as a sorted set.
const LeaderboardKey = "leaderboard:experience"

// UserScore is a user and their experience as stored in the leaderboard.
type UserScore struct {
	UserID     int64
	Experience int64
}

// LeaderboardCache ranks users by experience.
type LeaderboardCache interface {
	// SetExperience records a user's experience. Lower values than the
	// stored one are ignored, so out-of-order events cannot move a user down.
	SetExperience(ctx context.Context, userID, experience int64) error

	// Top returns the n highest-ranked users, best first.
	Top(ctx context.Context, n int) ([]UserScore, error)

	// Rank returns the user's 1-based rank, or found=false.
	Rank(ctx context.Context, userID int64) (rank int64, found bool, err error)

	// Warm loads entries into the set.
	Warm(ctx context.Context, entries []model.LeaderboardEntry) error

	// Size is the number of ranked users.
	Size(ctx context.Context) (int64, error)
}

type RedisLeaderboardCache struct {
	client *redis.Client
	log    *logger.Logger
}

func NewLeaderboardCache(client *redis.Client, log *logger.Logger) LeaderboardCache {
	return &RedisLeaderboardCache{client: client, log: log.With("component", "LeaderboardCache")}
}

func (c *RedisLeaderboardCache) SetExperience(ctx context.Context, userID, experience int64) error {
	err := c.client.ZAddArgs(ctx, LeaderboardKey, redis.ZAddArgs{
		GT: true,
		Members: []redis.Z{{
			Score:  float64(experience),
			Member: strconv.FormatInt(userID, 10),
		}},
	}).Err()
	if err != nil {
		return fmt.Errorf("set leaderboard score: %w", err)
	}
	c.log.Debug("leaderboard updated", "user_id", userID, "experience", experience)
	return nil
}

func (c *RedisLeaderboardCache) Top(ctx context.Context, n int) ([]UserScore, error) {
	if n <= 0 {
		return []UserScore{}, nil
	}
	results, err := c.client.ZRevRangeWithScores(ctx, LeaderboardKey, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("get leaderboard: %w", err)
	}

	scores := make([]UserScore, len(results))
	for i, z := range results {
		id, err := strconv.ParseInt(z.Member.(string), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse user id %v: %w", z.Member, err)
		}
		scores[i] = UserScore{UserID: id, Experience: int64(z.Score)}
	}
	return scores, nil
}

func (c *RedisLeaderboardCache) Rank(ctx context.Context, userID int64) (int64, bool, error) {
	rank, err := c.client.ZRevRank(ctx, LeaderboardKey, strconv.FormatInt(userID, 10)).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get leaderboard rank: %w", err)
	}
	return rank + 1, true, nil
}

func (c *RedisLeaderboardCache) Warm(ctx context.Context, entries []model.LeaderboardEntry) error {
	if len(entries) == 0 {
		return nil
	}
	members := make([]redis.Z, len(entries))
	for i, e := range entries {
		members[i] = redis.Z{Score: float64(e.Experience), Member: strconv.FormatInt(e.UserID, 10)}
	}
	err := c.client.ZAddArgs(ctx, LeaderboardKey, redis.ZAddArgs{GT: true, Members: members}).Err()
	if err != nil {
		return fmt.Errorf("warm leaderboard: %w", err)
	}
	c.log.Info("leaderboard warmed", "users", len(entries))
	return nil
}

func (c *RedisLeaderboardCache) Size(ctx context.Context) (int64, error) {
	n, err := c.client.ZCard(ctx, LeaderboardKey).Result()
	if err != nil {
		return 0, fmt.Errorf("get leaderboard size: %w", err)
	}
	return n, nil
}
