package service

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"bookrecorder/internal/cache"
	"bookrecorder/internal/logger"
	"bookrecorder/internal/model"
	"bookrecorder/internal/repository"
)

// leaderboardWarmSize bounds how many users are loaded into an empty cache.
const leaderboardWarmSize = 1000

// LeaderboardService ranks readers. The experience ranking is served from the
// Redis sorted set the activity worker keeps current; Postgres stays the
// source of truth and refills the set when it is empty.
type LeaderboardService struct {
	cache    cache.LeaderboardCache
	userRepo repository.UserRepository
	size     int
	now      func() time.Time
	log      *logger.Logger
}

func NewLeaderboardService(lc cache.LeaderboardCache, userRepo repository.UserRepository, size int, log *logger.Logger) *LeaderboardService {
	if size <= 0 {
		size = 10
	}
	return &LeaderboardService{
		cache:    lc,
		userRepo: userRepo,
		size:     size,
		now:      time.Now,
		log:      log.With("component", "LeaderboardService"),
	}
}

// Warm loads the top users from Postgres into the cache.
func (s *LeaderboardService) Warm(ctx context.Context) error {
	entries, err := s.userRepo.TopByExperience(ctx, leaderboardWarmSize)
	if err != nil {
		return err
	}
	return s.cache.Warm(ctx, entries)
}

// Top returns the experience ranking. Cache failures fall back to Postgres.
func (s *LeaderboardService) Top(ctx context.Context) ([]model.LeaderboardEntry, error) {
	size, err := s.cache.Size(ctx)
	if err == nil && size == 0 {
		if err = s.Warm(ctx); err != nil {
			s.log.Warn("leaderboard warm failed", "error", err)
		}
	}

	var scores []cache.UserScore
	if err == nil {
		scores, err = s.cache.Top(ctx, s.size)
	}
	if err != nil {
		s.log.Warn("leaderboard cache unavailable, reading from database", "error", err)
		return s.userRepo.TopByExperience(ctx, s.size)
	}

	ids := make([]int64, len(scores))
	for i, sc := range scores {
		ids[i] = sc.UserID
	}
	users, err := s.userRepo.GetSummaries(ctx, ids)
	if err != nil {
		return nil, err
	}

	entries := make([]model.LeaderboardEntry, 0, len(scores))
	for _, sc := range scores {
		u, ok := users[sc.UserID]
		if !ok {
			continue
		}
		entries = append(entries, model.LeaderboardEntry{
			Rank:        len(entries) + 1,
			UserID:      sc.UserID,
			Username:    u.Username,
			DisplayName: u.DisplayName,
			Experience:  sc.Experience,
			Level:       u.Level,
		})
	}
	return entries, nil
}

// Rankings returns the experience ranking alongside the reading rankings:
// most books and most pages all time, and most books this month.
func (s *LeaderboardService) Rankings(ctx context.Context) (*model.RankingsResponse, error) {
	now := s.now()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	var resp model.RankingsResponse
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		resp.Experience, err = s.Top(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		resp.Books, err = s.userRepo.TopReaders(gctx, model.RankingBooks, nil, s.size)
		return err
	})
	g.Go(func() error {
		var err error
		resp.Pages, err = s.userRepo.TopReaders(gctx, model.RankingPages, nil, s.size)
		return err
	})
	g.Go(func() error {
		var err error
		resp.ThisMonth, err = s.userRepo.TopReaders(gctx, model.RankingBooks, &monthStart, s.size)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load rankings: %w", err)
	}
	return &resp, nil
}
