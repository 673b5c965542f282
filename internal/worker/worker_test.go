package worker_test

import (
	"context"
	"errors"
	"os"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookrecorder/internal/cache"
	"bookrecorder/internal/logger"
	"bookrecorder/internal/model"
	"bookrecorder/internal/queue"
	"bookrecorder/internal/worker"
)

// =============================================================================
// Mock Implementations
// =============================================================================

type mockFollowerProvider struct {
	followers map[int64][]int64
	err       error
}

func newMockFollowerProvider() *mockFollowerProvider {
	return &mockFollowerProvider{followers: make(map[int64][]int64)}
}

func (m *mockFollowerProvider) AddFollower(userID, followerID int64) {
	m.followers[userID] = append(m.followers[userID], followerID)
}

func (m *mockFollowerProvider) GetFollowerIDs(ctx context.Context, userID int64) ([]int64, error) {
	if m.err != nil {
		return nil, m.err
	}
	// Copy so the handler's append cannot alias our slice.
	return append([]int64(nil), m.followers[userID]...), nil
}

type mockBooksProvider struct {
	books map[int64][]model.BookScore
}

func newMockBooksProvider() *mockBooksProvider {
	return &mockBooksProvider{books: make(map[int64][]model.BookScore)}
}

func (m *mockBooksProvider) AddBook(userID, bookID, timestamp int64) {
	m.books[userID] = append(m.books[userID], model.BookScore{BookID: bookID, Timestamp: timestamp})
}

func (m *mockBooksProvider) GetRecentByUser(ctx context.Context, userID int64, limit int) ([]model.BookScore, error) {
	books := m.books[userID]
	if len(books) > limit {
		return books[:limit], nil
	}
	return books, nil
}

// memFeedCache is an in-memory FeedCache.
type memFeedCache struct {
	mu    sync.Mutex
	feeds map[int64]map[int64]int64
	fail  map[int64]bool
}

func newMemFeedCache() *memFeedCache {
	return &memFeedCache{feeds: make(map[int64]map[int64]int64), fail: make(map[int64]bool)}
}

func (c *memFeedCache) AddBook(ctx context.Context, userID, bookID, timestamp int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail[userID] {
		return errors.New("redis down")
	}
	if c.feeds[userID] == nil {
		c.feeds[userID] = make(map[int64]int64)
	}
	c.feeds[userID][bookID] = timestamp
	return nil
}

func (c *memFeedCache) RemoveBook(ctx context.Context, userID, bookID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.feeds[userID], bookID)
	return nil
}

func (c *memFeedCache) GetFeed(ctx context.Context, userID int64, cursorScore *float64, limit int) ([]int64, []float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var ids []int64
	for id := range c.feeds[userID] {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return c.feeds[userID][ids[i]] > c.feeds[userID][ids[j]] })
	scores := make([]float64, len(ids))
	for i, id := range ids {
		scores[i] = float64(c.feeds[userID][id])
	}
	return ids, scores, nil
}

func (c *memFeedCache) WarmCache(ctx context.Context, userID int64, books []model.BookScore) error {
	for _, b := range books {
		if err := c.AddBook(ctx, userID, b.BookID, b.Timestamp); err != nil {
			return err
		}
	}
	return nil
}

func (c *memFeedCache) Exists(ctx context.Context, userID int64) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.feeds[userID]
	return ok, nil
}

func (c *memFeedCache) Invalidate(ctx context.Context, userID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.feeds, userID)
	return nil
}

func (c *memFeedCache) has(userID, bookID int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.feeds[userID][bookID]
	return ok
}

type memLeaderboard struct {
	mu     sync.Mutex
	scores map[int64]int64
}

func newMemLeaderboard() *memLeaderboard {
	return &memLeaderboard{scores: make(map[int64]int64)}
}

func (l *memLeaderboard) SetExperience(ctx context.Context, userID, experience int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if experience > l.scores[userID] {
		l.scores[userID] = experience
	}
	return nil
}

func (l *memLeaderboard) Top(ctx context.Context, n int) ([]cache.UserScore, error) { return nil, nil }
func (l *memLeaderboard) Rank(ctx context.Context, userID int64) (int64, bool, error) {
	return 0, false, nil
}
func (l *memLeaderboard) Warm(ctx context.Context, entries []model.LeaderboardEntry) error {
	return nil
}
func (l *memLeaderboard) Size(ctx context.Context) (int64, error) { return int64(len(l.scores)), nil }

type mockNotificationCreator struct {
	mu            sync.Mutex
	notifications []model.Notification
}

func (m *mockNotificationCreator) CreateNotification(ctx context.Context, n *model.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifications = append(m.notifications, *n)
	return nil
}

type fixture struct {
	handler     *worker.Handler
	feeds       *memFeedCache
	leaderboard *memLeaderboard
	followers   *mockFollowerProvider
	books       *mockBooksProvider
	notifs      *mockNotificationCreator
}

func newFixture() *fixture {
	f := &fixture{
		feeds:       newMemFeedCache(),
		leaderboard: newMemLeaderboard(),
		followers:   newMockFollowerProvider(),
		books:       newMockBooksProvider(),
		notifs:      &mockNotificationCreator{},
	}
	f.handler = worker.NewHandler(f.feeds, f.leaderboard, f.followers, f.books, logger.Nop())
	f.handler.SetNotificationCreator(f.notifs)
	return f
}

// =============================================================================
// Handler
// =============================================================================

func TestBookAddedFansOutToFollowersAndOwner(t *testing.T) {
	f := newFixture()
	f.followers.AddFollower(1, 2)
	f.followers.AddFollower(1, 3)

	err := f.handler.HandleEvent(context.Background(), queue.NewBookAddedEvent(100, 1, 5000))
	require.NoError(t, err)

	for _, userID := range []int64{1, 2, 3} {
		assert.True(t, f.feeds.has(userID, 100), "user %d", userID)
	}
	assert.False(t, f.feeds.has(4, 100))
}

func TestBookAddedToleratesSingleFollowerFailure(t *testing.T) {
	f := newFixture()
	f.followers.AddFollower(1, 2)
	f.followers.AddFollower(1, 3)
	f.feeds.fail[2] = true

	err := f.handler.HandleEvent(context.Background(), queue.NewBookAddedEvent(100, 1, 5000))
	require.NoError(t, err)
	assert.True(t, f.feeds.has(3, 100))
	assert.True(t, f.feeds.has(1, 100))
}

func TestBookAddedFollowerLookupFailure(t *testing.T) {
	f := newFixture()
	f.followers.err = errors.New("db down")

	err := f.handler.HandleEvent(context.Background(), queue.NewBookAddedEvent(100, 1, 5000))
	assert.Error(t, err)
}

func TestBookDeletedRemovesFromFeeds(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.followers.AddFollower(1, 2)
	for _, userID := range []int64{1, 2} {
		require.NoError(t, f.feeds.AddBook(ctx, userID, 100, 5000))
		require.NoError(t, f.feeds.AddBook(ctx, userID, 101, 6000))
	}

	require.NoError(t, f.handler.HandleEvent(ctx, queue.NewBookDeletedEvent(100, 1)))

	for _, userID := range []int64{1, 2} {
		assert.False(t, f.feeds.has(userID, 100))
		assert.True(t, f.feeds.has(userID, 101))
	}
}

func TestUserFollowedBackfillsAndNotifies(t *testing.T) {
	f := newFixture()
	f.books.AddBook(1, 101, 1000)
	f.books.AddBook(1, 102, 2000)

	require.NoError(t, f.handler.HandleEvent(context.Background(), queue.NewUserFollowedEvent(2, 1)))

	assert.True(t, f.feeds.has(2, 101))
	assert.True(t, f.feeds.has(2, 102))
	require.Len(t, f.notifs.notifications, 1)
	n := f.notifs.notifications[0]
	assert.Equal(t, int64(1), n.UserID)
	assert.Equal(t, model.NotificationTypeFollow, n.Type)
	require.NotNil(t, n.ActorID)
	assert.Equal(t, int64(2), *n.ActorID)
}

func TestUserUnfollowedRemovesOnlyFolloweeBooks(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.books.AddBook(1, 101, 1000)
	f.books.AddBook(3, 301, 1500)
	require.NoError(t, f.feeds.AddBook(ctx, 2, 101, 1000))
	require.NoError(t, f.feeds.AddBook(ctx, 2, 301, 1500))

	require.NoError(t, f.handler.HandleEvent(ctx, queue.NewUserUnfollowedEvent(2, 1)))

	assert.False(t, f.feeds.has(2, 101))
	assert.True(t, f.feeds.has(2, 301))
}

func TestCommentAddedNotifiesOwnerOnly(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	require.NoError(t, f.handler.HandleEvent(ctx, queue.NewCommentAddedEvent(100, 2, 1)))
	require.NoError(t, f.handler.HandleEvent(ctx, queue.NewCommentAddedEvent(100, 1, 1)))

	require.Len(t, f.notifs.notifications, 1)
	n := f.notifs.notifications[0]
	assert.Equal(t, int64(1), n.UserID)
	assert.Equal(t, model.NotificationTypeComment, n.Type)
	require.NotNil(t, n.BookID)
	assert.Equal(t, int64(100), *n.BookID)
}

func TestAchievementUnlockedUpdatesLeaderboardAndNotifies(t *testing.T) {
	f := newFixture()

	err := f.handler.HandleEvent(context.Background(), queue.NewAchievementUnlockedEvent(7, 3, 50, 160, 2))
	require.NoError(t, err)

	assert.Equal(t, int64(160), f.leaderboard.scores[7])
	require.Len(t, f.notifs.notifications, 1)
	n := f.notifs.notifications[0]
	assert.Equal(t, model.NotificationTypeAchievement, n.Type)
	assert.Nil(t, n.ActorID)
	require.NotNil(t, n.AchievementID)
	assert.Equal(t, int64(3), *n.AchievementID)
}

func TestExperienceChangedNeverMovesUserDown(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	require.NoError(t, f.handler.HandleEvent(ctx, queue.NewExperienceChangedEvent(7, 210, 3)))
	require.NoError(t, f.handler.HandleEvent(ctx, queue.NewExperienceChangedEvent(7, 10, 1)))

	assert.Equal(t, int64(210), f.leaderboard.scores[7])
}

func TestUnknownEventType(t *testing.T) {
	f := newFixture()
	err := f.handler.HandleEvent(context.Background(), queue.ActivityEvent{Type: "book_liked"})
	assert.Error(t, err)
}

// =============================================================================
// Manager
// =============================================================================

type fakeConsumer struct {
	mu      sync.Mutex
	pending []queue.Message
	batches [][]queue.Message
	acked   []string
}

func (c *fakeConsumer) EnsureGroup(ctx context.Context, stream, group string) error { return nil }

func (c *fakeConsumer) Read(ctx context.Context, stream, group, consumer string, count int64, block time.Duration) ([]queue.Message, error) {
	c.mu.Lock()
	if len(c.batches) > 0 {
		batch := c.batches[0]
		c.batches = c.batches[1:]
		c.mu.Unlock()
		return batch, nil
	}
	c.mu.Unlock()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(5 * time.Millisecond):
		return nil, nil
	}
}

func (c *fakeConsumer) ReadPending(ctx context.Context, stream, group, consumer string, count int64) ([]queue.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.pending
	c.pending = nil
	return out, nil
}

func (c *fakeConsumer) Ack(ctx context.Context, stream, group string, ids ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.acked = append(c.acked, ids...)
	return nil
}

func (c *fakeConsumer) Pending(ctx context.Context, stream, group string) (int64, error) { return 0, nil }

func (c *fakeConsumer) ackedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.acked)
}

type failingHandler struct{}

func (failingHandler) HandleEvent(ctx context.Context, event queue.ActivityEvent) error {
	return errors.New("boom")
}

func TestManagerProcessesPendingThenNewAndAcksAll(t *testing.T) {
	f := newFixture()
	consumer := &fakeConsumer{
		pending: []queue.Message{{ID: "1-0", Event: queue.NewExperienceChangedEvent(1, 10, 1)}},
		batches: [][]queue.Message{{
			{ID: "2-0", Event: queue.NewExperienceChangedEvent(2, 20, 1)},
			{ID: "3-0", Event: queue.NewExperienceChangedEvent(3, 30, 1)},
		}},
	}

	cfg := worker.DefaultManagerConfig()
	cfg.WorkerCount = 1
	m := worker.NewManager(consumer, f.handler, cfg, logger.Nop())
	require.NoError(t, m.Start(context.Background()))

	require.Eventually(t, func() bool { return consumer.ackedCount() == 3 }, time.Second, 5*time.Millisecond)
	m.Stop()

	assert.Equal(t, int64(10), f.leaderboard.scores[1])
	assert.Equal(t, int64(30), f.leaderboard.scores[3])
}

func TestManagerAcksFailedMessages(t *testing.T) {
	consumer := &fakeConsumer{
		batches: [][]queue.Message{{{ID: "1-0", Event: queue.ActivityEvent{Type: queue.EventBookAdded}}}},
	}

	cfg := worker.DefaultManagerConfig()
	cfg.WorkerCount = 1
	m := worker.NewManager(consumer, failingHandler{}, cfg, logger.Nop())
	require.NoError(t, m.Start(context.Background()))

	require.Eventually(t, func() bool { return consumer.ackedCount() == 1 }, time.Second, 5*time.Millisecond)
	m.Stop()
}

// =============================================================================
// Redis integration
// =============================================================================

func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	redisURL := os.Getenv("TEST_REDIS_URL")
	if redisURL == "" {
		redisURL = "redis://localhost:6379"
	}

	opts, err := redis.ParseURL(redisURL)
	require.NoError(t, err)
	// Use DB 1 for testing to avoid conflicts with dev data
	opts.DB = 1

	client := redis.NewClient(opts)
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available, skipping test: %v", err)
	}
	client.FlushDB(ctx)

	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})
	return client
}

func TestStreamToFeedIntegration(t *testing.T) {
	client := setupTestRedis(t)
	ctx := context.Background()
	log := logger.Nop()

	feeds := cache.NewFeedCache(client, log)
	leaderboard := cache.NewLeaderboardCache(client, log)
	followers := newMockFollowerProvider()
	followers.AddFollower(1, 2)
	handler := worker.NewHandler(feeds, leaderboard, followers, newMockBooksProvider(), log)

	publisher := queue.NewPublisher(client, 1000, log)
	consumer := queue.NewConsumer(client, log)

	cfg := worker.DefaultManagerConfig()
	cfg.WorkerCount = 2
	cfg.BlockTimeout = 50 * time.Millisecond
	m := worker.NewManager(consumer, handler, cfg, log)
	require.NoError(t, m.Start(ctx))
	defer m.Stop()

	now := time.Now().UnixMilli()
	_, err := publisher.Publish(ctx, queue.StreamActivity, queue.NewBookAddedEvent(100, 1, now))
	require.NoError(t, err)
	_, err = publisher.Publish(ctx, queue.StreamActivity, queue.NewExperienceChangedEvent(1, 210, 3))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		ids, _, err := feeds.GetFeed(ctx, 2, nil, 10)
		return err == nil && len(ids) == 1 && ids[0] == 100
	}, 3*time.Second, 20*time.Millisecond)

	require.Eventually(t, func() bool {
		top, err := leaderboard.Top(ctx, 1)
		return err == nil && len(top) == 1 && top[0].UserID == 1 && top[0].Experience == 210
	}, 3*time.Second, 20*time.Millisecond)

	require.Eventually(t, func() bool {
		n, err := consumer.Pending(ctx, queue.StreamActivity, queue.ConsumerGroupActivity)
		return err == nil && n == 0
	}, 3*time.Second, 20*time.Millisecond)
}
