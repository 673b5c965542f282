package service

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"bookrecorder/internal/cache"
	"bookrecorder/internal/model"
)

// Function-field mocks: each test sets only the functions it needs.

type mockUserRepository struct {
	createFn           func(ctx context.Context, user *model.User) error
	getByIDFn          func(ctx context.Context, id int64) (*model.User, error)
	getByUsernameFn    func(ctx context.Context, username string) (*model.User, error)
	existsByUsernameFn func(ctx context.Context, username string) (bool, error)
	searchFn           func(ctx context.Context, query string, limit int) ([]model.UserSummary, error)
	getSummariesFn     func(ctx context.Context, ids []int64) (map[int64]model.UserSummary, error)
	topByExperienceFn  func(ctx context.Context, limit int) ([]model.LeaderboardEntry, error)
	topReadersFn       func(ctx context.Context, by model.RankingKind, since *time.Time, limit int) ([]model.RankingEntry, error)

	createCalls []*model.User
}

func (m *mockUserRepository) Create(ctx context.Context, user *model.User) error {
	m.createCalls = append(m.createCalls, user)
	if m.createFn != nil {
		return m.createFn(ctx, user)
	}
	return nil
}

func (m *mockUserRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, model.ErrUserNotFound
}

func (m *mockUserRepository) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	if m.getByUsernameFn != nil {
		return m.getByUsernameFn(ctx, username)
	}
	return nil, model.ErrUserNotFound
}

func (m *mockUserRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	if m.existsByUsernameFn != nil {
		return m.existsByUsernameFn(ctx, username)
	}
	return false, nil
}

func (m *mockUserRepository) Search(ctx context.Context, query string, limit int) ([]model.UserSummary, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, query, limit)
	}
	return []model.UserSummary{}, nil
}

func (m *mockUserRepository) GetSummaries(ctx context.Context, ids []int64) (map[int64]model.UserSummary, error) {
	if m.getSummariesFn != nil {
		return m.getSummariesFn(ctx, ids)
	}
	return map[int64]model.UserSummary{}, nil
}

func (m *mockUserRepository) TopByExperience(ctx context.Context, limit int) ([]model.LeaderboardEntry, error) {
	if m.topByExperienceFn != nil {
		return m.topByExperienceFn(ctx, limit)
	}
	return []model.LeaderboardEntry{}, nil
}

func (m *mockUserRepository) TopReaders(ctx context.Context, by model.RankingKind, since *time.Time, limit int) ([]model.RankingEntry, error) {
	if m.topReadersFn != nil {
		return m.topReadersFn(ctx, by, since, limit)
	}
	return []model.RankingEntry{}, nil
}

func (m *mockUserRepository) IncrementFollowerCount(ctx context.Context, tx *sqlx.Tx, userID int64, delta int) error {
	return nil
}

func (m *mockUserRepository) IncrementFollowingCount(ctx context.Context, tx *sqlx.Tx, userID int64, delta int) error {
	return nil
}

type mockFollowRepository struct {
	existsFn       func(ctx context.Context, followerID, followeeID int64) (bool, error)
	checkFollowsFn func(ctx context.Context, followerID int64, followeeIDs []int64) (map[int64]bool, error)
}

func (m *mockFollowRepository) Create(ctx context.Context, tx *sqlx.Tx, followerID, followeeID int64) (bool, error) {
	return true, nil
}

func (m *mockFollowRepository) Delete(ctx context.Context, tx *sqlx.Tx, followerID, followeeID int64) error {
	return nil
}

func (m *mockFollowRepository) Exists(ctx context.Context, followerID, followeeID int64) (bool, error) {
	if m.existsFn != nil {
		return m.existsFn(ctx, followerID, followeeID)
	}
	return false, nil
}

func (m *mockFollowRepository) GetFollowers(ctx context.Context, userID int64, cursor *time.Time, limit int) ([]model.UserSummary, *time.Time, error) {
	return []model.UserSummary{}, nil, nil
}

func (m *mockFollowRepository) GetFollowing(ctx context.Context, userID int64, cursor *time.Time, limit int) ([]model.UserSummary, *time.Time, error) {
	return []model.UserSummary{}, nil, nil
}

func (m *mockFollowRepository) CheckFollows(ctx context.Context, followerID int64, followeeIDs []int64) (map[int64]bool, error) {
	if m.checkFollowsFn != nil {
		return m.checkFollowsFn(ctx, followerID, followeeIDs)
	}
	return map[int64]bool{}, nil
}

func (m *mockFollowRepository) GetFollowerIDs(ctx context.Context, userID int64) ([]int64, error) {
	return []int64{}, nil
}

func (m *mockFollowRepository) GetFolloweeIDs(ctx context.Context, userID int64) ([]int64, error) {
	return []int64{}, nil
}

type mockLeaderboardCache struct {
	sizeFn func(ctx context.Context) (int64, error)
	topFn  func(ctx context.Context, n int) ([]cache.UserScore, error)
	warmFn func(ctx context.Context, entries []model.LeaderboardEntry) error
}

func (m *mockLeaderboardCache) SetExperience(ctx context.Context, userID, experience int64) error {
	return nil
}

func (m *mockLeaderboardCache) Top(ctx context.Context, n int) ([]cache.UserScore, error) {
	if m.topFn != nil {
		return m.topFn(ctx, n)
	}
	return []cache.UserScore{}, nil
}

func (m *mockLeaderboardCache) Rank(ctx context.Context, userID int64) (int64, bool, error) {
	return 0, false, nil
}

func (m *mockLeaderboardCache) Warm(ctx context.Context, entries []model.LeaderboardEntry) error {
	if m.warmFn != nil {
		return m.warmFn(ctx, entries)
	}
	return nil
}

func (m *mockLeaderboardCache) Size(ctx context.Context) (int64, error) {
	if m.sizeFn != nil {
		return m.sizeFn(ctx)
	}
	return 0, nil
}

type mockBookRepository struct {
	listByUserFn func(ctx context.Context, userID int64, cursor *string, limit int) ([]model.Book, *string, error)
}

func (m *mockBookRepository) Create(ctx context.Context, tx *sqlx.Tx, book *model.Book) error {
	return nil
}

func (m *mockBookRepository) FindOwned(ctx context.Context, tx *sqlx.Tx, userID int64, title, author string) (*model.Book, error) {
	return nil, model.ErrBookNotFound
}

func (m *mockBookRepository) GetByID(ctx context.Context, bookID int64) (*model.Book, error) {
	return nil, model.ErrBookNotFound
}

func (m *mockBookRepository) GetByIDs(ctx context.Context, bookIDs []int64) ([]model.Book, error) {
	return []model.Book{}, nil
}

func (m *mockBookRepository) ListByUser(ctx context.Context, userID int64, cursor *string, limit int) ([]model.Book, *string, error) {
	if m.listByUserFn != nil {
		return m.listByUserFn(ctx, userID, cursor, limit)
	}
	return []model.Book{}, nil, nil
}

func (m *mockBookRepository) Delete(ctx context.Context, tx *sqlx.Tx, bookID, userID int64) (*model.Book, error) {
	return nil, model.ErrBookNotFound
}

func (m *mockBookRepository) SetCover(ctx context.Context, bookID, userID int64, url, key string) (*string, error) {
	return nil, nil
}

func (m *mockBookRepository) Library(ctx context.Context, limit int) ([]model.LibraryEntry, error) {
	return []model.LibraryEntry{}, nil
}

func (m *mockBookRepository) GetRecentByUser(ctx context.Context, userID int64, limit int) ([]model.BookScore, error) {
	return []model.BookScore{}, nil
}

func (m *mockBookRepository) GetFeedBookIDs(ctx context.Context, userIDs []int64, limit int) ([]model.BookScore, error) {
	return []model.BookScore{}, nil
}

type mockNotificationRepository struct {
	created []*model.Notification
}

func (m *mockNotificationRepository) Create(ctx context.Context, n *model.Notification) error {
	m.created = append(m.created, n)
	return nil
}

func (m *mockNotificationRepository) List(ctx context.Context, userID int64, limit int) ([]model.Notification, int, error) {
	return []model.Notification{}, 0, nil
}

func (m *mockNotificationRepository) MarkAsRead(ctx context.Context, userID int64, notificationIDs []int64) error {
	return nil
}

func (m *mockNotificationRepository) MarkAllAsRead(ctx context.Context, userID int64) error {
	return nil
}

func (m *mockNotificationRepository) GetUnreadCount(ctx context.Context, userID int64) (int, error) {
	return 0, nil
}
