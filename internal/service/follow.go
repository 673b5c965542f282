package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"bookrecorder/internal/logger"
	"bookrecorder/internal/model"
	"bookrecorder/internal/queue"
	"bookrecorder/internal/repository"
)

const (
	followListDefaultLimit = 20
	followListMaxLimit     = 50
)

// FollowResult is the relationship after a toggle and the follower's outcome.
type FollowResult struct {
	model.ToggleFollowResponse
	Outcome
}

type FollowService struct {
	followRepo  repository.FollowRepository
	userRepo    repository.UserRepository
	db          *sqlx.DB
	publisher   queue.Publisher
	progression *Progression
	log         *logger.Logger
}

func NewFollowService(
	followRepo repository.FollowRepository,
	userRepo repository.UserRepository,
	db *sqlx.DB,
	publisher queue.Publisher,
	progression *Progression,
	log *logger.Logger,
) *FollowService {
	return &FollowService{
		followRepo:  followRepo,
		userRepo:    userRepo,
		db:          db,
		publisher:   publisher,
		progression: progression,
		log:         log.With("component", "FollowService"),
	}
}

// Toggle follows followeeID, or unfollows if already following.
func (s *FollowService) Toggle(ctx context.Context, followerID, followeeID int64) (*FollowResult, error) {
	if followerID == followeeID {
		return nil, model.ErrCannotFollowSelf
	}

	following, err := s.followRepo.Exists(ctx, followerID, followeeID)
	if err != nil {
		return nil, fmt.Errorf("check follow: %w", err)
	}

	if following {
		err = s.Unfollow(ctx, followerID, followeeID)
	} else {
		err = s.Follow(ctx, followerID, followeeID)
	}
	if err != nil {
		return nil, err
	}

	followee, err := s.userRepo.GetByID(ctx, followeeID)
	if err != nil {
		return nil, err
	}

	result := &FollowResult{
		ToggleFollowResponse: model.ToggleFollowResponse{
			Following:     !following,
			FollowerCount: followee.FollowerCount,
		},
	}

	// Following unlocks achievements on both sides; unfollowing cannot
	// unlock anything but still reports the follower's progress.
	result.Outcome = s.progression.Settle(ctx, followerID, nil)
	if !following {
		s.progression.Settle(ctx, followeeID, nil)
	}
	return result, nil
}

func (s *FollowService) Follow(ctx context.Context, followerID, followeeID int64) error {
	if followerID == followeeID {
		return model.ErrCannotFollowSelf
	}

	if _, err := s.userRepo.GetByID(ctx, followeeID); err != nil {
		return err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	inserted, err := s.followRepo.Create(ctx, tx, followerID, followeeID)
	if err != nil {
		return err
	}
	if !inserted {
		return model.ErrAlreadyFollowing
	}

	if err := s.userRepo.IncrementFollowerCount(ctx, tx, followeeID, 1); err != nil {
		return err
	}
	if err := s.userRepo.IncrementFollowingCount(ctx, tx, followerID, 1); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	// Publish after commit so the backfill sees the new row.
	s.publish(ctx, queue.NewUserFollowedEvent(followerID, followeeID))
	return nil
}

func (s *FollowService) Unfollow(ctx context.Context, followerID, followeeID int64) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.followRepo.Delete(ctx, tx, followerID, followeeID); err != nil {
		return err
	}
	if err := s.userRepo.IncrementFollowerCount(ctx, tx, followeeID, -1); err != nil {
		return err
	}
	if err := s.userRepo.IncrementFollowingCount(ctx, tx, followerID, -1); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	s.publish(ctx, queue.NewUserUnfollowedEvent(followerID, followeeID))
	return nil
}

func (s *FollowService) publish(ctx context.Context, event queue.ActivityEvent) {
	if s.publisher == nil {
		return
	}
	msgID, err := s.publisher.Publish(ctx, queue.StreamActivity, event)
	if err != nil {
		s.log.Warn("failed to publish event", "type", event.Type,
			"follower_id", event.FollowerID, "followee_id", event.FolloweeID, "error", err)
		return
	}
	s.log.Debug("event published", "type", event.Type, "msg_id", msgID)
}

// GetFollowers pages through users who follow userID, newest first.
func (s *FollowService) GetFollowers(ctx context.Context, userID int64, cursor *time.Time, limit int, viewerID *int64) (*model.FollowListResponse, error) {
	users, nextCursor, err := s.followRepo.GetFollowers(ctx, userID, cursor, clampFollowLimit(limit))
	if err != nil {
		return nil, err
	}
	return s.buildList(ctx, users, nextCursor, viewerID), nil
}

// GetFollowing pages through users userID follows, newest first.
func (s *FollowService) GetFollowing(ctx context.Context, userID int64, cursor *time.Time, limit int, viewerID *int64) (*model.FollowListResponse, error) {
	users, nextCursor, err := s.followRepo.GetFollowing(ctx, userID, cursor, clampFollowLimit(limit))
	if err != nil {
		return nil, err
	}
	return s.buildList(ctx, users, nextCursor, viewerID), nil
}

func (s *FollowService) buildList(ctx context.Context, users []model.UserSummary, nextCursor *time.Time, viewerID *int64) *model.FollowListResponse {
	if viewerID != nil {
		users = s.enrichWithFollowStatus(ctx, *viewerID, users)
	}

	var nextCursorStr *string
	if nextCursor != nil {
		str := nextCursor.Format(time.RFC3339Nano)
		nextCursorStr = &str
	}

	return &model.FollowListResponse{
		Users:      users,
		NextCursor: nextCursorStr,
		HasMore:    nextCursor != nil,
	}
}

// enrichWithFollowStatus checks all users in one ANY($1) query. On failure
// users are returned with is_following=false.
func (s *FollowService) enrichWithFollowStatus(ctx context.Context, viewerID int64, users []model.UserSummary) []model.UserSummary {
	if len(users) == 0 {
		return users
	}

	userIDs := make([]int64, len(users))
	for i, user := range users {
		userIDs[i] = user.ID
	}

	followMap, err := s.followRepo.CheckFollows(ctx, viewerID, userIDs)
	if err != nil {
		s.log.Warn("follow status check failed", "viewer_id", viewerID, "error", err)
		return users
	}

	for i := range users {
		users[i].IsFollowing = followMap[users[i].ID]
	}
	return users
}

func clampFollowLimit(limit int) int {
	if limit <= 0 {
		return followListDefaultLimit
	}
	if limit > followListMaxLimit {
		return followListMaxLimit
	}
	return limit
}
