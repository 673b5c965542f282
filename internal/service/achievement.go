package service

import (
	"context"
	"fmt"
	"time"

	"bookrecorder/internal/gamification"
	"bookrecorder/internal/logger"
	"bookrecorder/internal/model"
	"bookrecorder/internal/repository"
)

// WeeklyBookGoal is the number of books the dashboard asks for each week.
const WeeklyBookGoal = 3

// AchievementStore is the read side the achievement pages need.
type AchievementStore interface {
	gamification.Reader
	ListGrants(ctx context.Context, userID int64) ([]gamification.Grant, error)
	GetActivityMetrics(ctx context.Context, userID int64, now time.Time) (gamification.ActivityMetrics, error)
}

// AchievementStatus is a catalog entry as seen by one user.
type AchievementStatus struct {
	gamification.Achievement
	Reward     int64      `json:"reward"`
	Unlocked   bool       `json:"unlocked"`
	UnlockedAt *time.Time `json:"unlocked_at,omitempty"`
}

// WeeklyGoal is progress toward WeeklyBookGoal over the last seven days.
type WeeklyGoal struct {
	Target int   `json:"target"`
	Done   int64 `json:"done"`
	Met    bool  `json:"met"`
}

// Dashboard is the user's reading and progress summary.
type Dashboard struct {
	Progress       model.ProgressBox            `json:"progress"`
	Stats          gamification.ActivityMetrics `json:"stats"`
	Unlocked       int                          `json:"unlocked"`
	Total          int                          `json:"total"`
	LastBook       *model.Book                  `json:"last_book,omitempty"`
	WeeklyGoal     WeeklyGoal                   `json:"weekly_goal"`
	CatalogVersion int                          `json:"catalog_version"`
}

type AchievementService struct {
	store       AchievementStore
	catalog     *gamification.Catalog
	bookRepo    repository.BookRepository
	progression *Progression
	now         func() time.Time
	log         *logger.Logger
}

func NewAchievementService(
	store AchievementStore,
	catalog *gamification.Catalog,
	bookRepo repository.BookRepository,
	progression *Progression,
	log *logger.Logger,
) *AchievementService {
	return &AchievementService{
		store:       store,
		catalog:     catalog,
		bookRepo:    bookRepo,
		progression: progression,
		now:         time.Now,
		log:         log.With("component", "AchievementService"),
	}
}

// Catalog lists every achievement with the user's unlock status.
func (s *AchievementService) Catalog(ctx context.Context, userID int64) ([]AchievementStatus, error) {
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return nil, err
	}

	grants, err := s.store.ListGrants(ctx, userID)
	if err != nil {
		return nil, err
	}
	unlockedAt := make(map[int64]time.Time, len(grants))
	for _, g := range grants {
		unlockedAt[g.ID] = g.UnlockedAt
	}

	achievements := s.catalog.Achievements()
	out := make([]AchievementStatus, len(achievements))
	for i, a := range achievements {
		reward, ok := s.catalog.Reward(a.Code)
		if !ok {
			reward = gamification.DefaultReward
		}
		out[i] = AchievementStatus{Achievement: a, Reward: reward}
		if at, ok := unlockedAt[a.ID]; ok {
			at := at
			out[i].Unlocked = true
			out[i].UnlockedAt = &at
		}
	}
	return out, nil
}

// Grants lists the user's unlocked achievements, most recent first.
func (s *AchievementService) Grants(ctx context.Context, userID int64) ([]gamification.Grant, error) {
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	return s.store.ListGrants(ctx, userID)
}

// Dashboard gathers progress, activity counters and the weekly goal.
func (s *AchievementService) Dashboard(ctx context.Context, userID int64) (*Dashboard, error) {
	progress, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	metrics, err := s.store.GetActivityMetrics(ctx, userID, s.now())
	if err != nil {
		return nil, fmt.Errorf("load activity metrics: %w", err)
	}

	grants, err := s.store.ListGrants(ctx, userID)
	if err != nil {
		return nil, err
	}

	d := &Dashboard{
		Progress: progressBox(progress),
		Stats:    metrics,
		Unlocked: len(grants),
		Total:    s.catalog.Len(),
		WeeklyGoal: WeeklyGoal{
			Target: WeeklyBookGoal,
			Done:   metrics.WeeklyBooks,
			Met:    metrics.WeeklyBooks >= WeeklyBookGoal,
		},
		CatalogVersion: s.catalog.Version,
	}

	books, _, err := s.bookRepo.ListByUser(ctx, userID, nil, 1)
	if err != nil {
		s.log.Warn("failed to load last book", "user_id", userID, "error", err)
	} else if len(books) > 0 {
		d.LastBook = &books[0]
	}
	return d, nil
}

// Check re-runs the unlock scan for the user. Safe to repeat.
func (s *AchievementService) Check(ctx context.Context, userID int64) (*Outcome, error) {
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	outcome := s.progression.Settle(ctx, userID, nil)
	return &outcome, nil
}
