package gamification

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"bookrecorder/internal/logger"
)

var fixedNow = time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)

func newTestEvaluator(store *fakeStore, catalog *Catalog) *Evaluator {
	log := logger.Nop()
	return NewEvaluator(store, NewLedger(store, log), catalog, log, WithClock(func() time.Time { return fixedNow }))
}

func codes(unlocks []Unlock) []string {
	out := make([]string, 0, len(unlocks))
	for _, u := range unlocks {
		out = append(out, u.Achievement.Code)
	}
	return out
}

func TestEvaluateThresholdBoundary(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	store.addUser(1, 0)
	store.setMetric(1, MetricBooks, 4)
	e := newTestEvaluator(store, catalogFor(definition("books_5")))

	unlocks, err := e.EvaluateAndGrant(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, unlocks)
	assert.Equal(t, int64(0), store.progress(1).Experience)

	store.setMetric(1, MetricBooks, 5)
	unlocks, err = e.EvaluateAndGrant(ctx, 1)
	require.NoError(t, err)
	require.Len(t, unlocks, 1)
	assert.Equal(t, "books_5", unlocks[0].Achievement.Code)
	assert.Equal(t, int64(100), unlocks[0].Reward)
	assert.Equal(t, int64(100), store.progress(1).Experience)
	assert.Equal(t, store.progress(1), unlocks[0].Progress)
}

func TestEvaluateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	store.addUser(1, 10)
	store.setMetric(1, MetricBooks, 1)
	store.setMetric(1, MetricFollowing, 1)
	e := newTestEvaluator(store, catalogFor(Definitions...))

	first, err := e.EvaluateAndGrant(ctx, 1)
	require.NoError(t, err)
	require.NotEmpty(t, first)
	exp := store.progress(1).Experience

	second, err := e.EvaluateAndGrant(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, second)
	assert.Equal(t, exp, store.progress(1).Experience)
}

func TestFirstBookScenario(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	// The caller already applied the flat book-add reward.
	store.addUser(1, 10)
	store.setMetric(1, MetricBooks, 1)
	store.setMetric(1, MetricWeeklyBooks, 1)
	store.setMetric(1, MetricMonthlyBooks, 1)
	store.setMetric(1, MetricPages, 320)
	store.setMetric(1, MetricWeeklyPages, 320)
	store.setMetric(1, MetricMonthlyPages, 320)
	store.setMetric(1, MetricDistinctAuthors, 1)
	store.setMetric(1, MetricTopAuthorBooks, 1)
	e := newTestEvaluator(store, catalogFor(Definitions...))

	unlocks, err := e.EvaluateAndGrant(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"first_book", "first_finished_book", "level_2", "xp_100"}, codes(unlocks))

	// 10 + 50 + 50 reaches 110, which unlocks the level 2 and 100 XP rewards.
	p := store.progress(1)
	assert.Equal(t, int64(210), p.Experience)
	assert.Equal(t, 3, p.Level)
	assert.Equal(t, p, unlocks[len(unlocks)-1].Progress)
}

func TestEvaluateCascadesRegardlessOfCatalogOrder(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	store.addUser(1, 60)
	store.setMetric(1, MetricBooks, 1)
	// level_2 sorts before first_book, so it can only unlock on a later pass.
	e := newTestEvaluator(store, catalogFor(definition("level_2"), definition("first_book")))

	unlocks, err := e.EvaluateAndGrant(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"first_book", "level_2"}, codes(unlocks))
	assert.Equal(t, int64(160), store.progress(1).Experience)
}

func TestLevelTwoGrantedOnce(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	store.addUser(1, 150)
	catalog := catalogFor(definition("level_2"))
	e := newTestEvaluator(store, catalog)
	ledger := NewLedger(store, logger.Nop())

	unlocks, err := e.EvaluateAndGrant(ctx, 1)
	require.NoError(t, err)
	require.Len(t, unlocks, 1)

	for _, amount := range []int64{30, 500, 1} {
		_, err := ledger.GrantExperience(ctx, 1, amount)
		require.NoError(t, err)
		unlocks, err = e.EvaluateAndGrant(ctx, 1)
		require.NoError(t, err)
		assert.Empty(t, unlocks)
	}
	assert.Equal(t, 1, store.grantCount(1))
	assert.Equal(t, int64(150+50+30+500+1), store.progress(1).Experience)
}

func TestConcurrentEvaluationsGrantOnce(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	store.addUser(1, 10)
	store.setMetric(1, MetricBooks, 1)
	e := newTestEvaluator(store, catalogFor(Definitions...))

	const n = 20
	results := make([][]Unlock, n)
	var g errgroup.Group
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			u, err := e.EvaluateAndGrant(ctx, 1)
			results[i] = u
			return err
		})
	}
	require.NoError(t, g.Wait())

	seen := make(map[string]int)
	for _, r := range results {
		for _, c := range codes(r) {
			seen[c]++
		}
	}
	for c, count := range seen {
		assert.Equal(t, 1, count, "achievement %s reported %d times", c, count)
	}
	assert.Equal(t, 4, store.grantCount(1))
	assert.Equal(t, int64(210), store.progress(1).Experience)
}

func TestFailingMetricOnlySkipsDependents(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	store.addUser(1, 0)
	store.setMetric(1, MetricBooks, 3)
	store.setMetric(1, MetricFollowing, 1)
	store.metricErr[MetricBooks] = errors.New("statement timeout")
	e := newTestEvaluator(store, catalogFor(definition("first_book"), definition("first_follow")))

	unlocks, err := e.EvaluateAndGrant(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"first_follow"}, codes(unlocks))
	assert.Equal(t, 1, store.metricCalls[MetricBooks])
	assert.Equal(t, int64(50), store.progress(1).Experience)
}

func TestLedgerFailureLeavesNoGrant(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	store.addUser(1, 0)
	store.setMetric(1, MetricBooks, 1)
	store.setProgressErr = errors.New("disk full")
	e := newTestEvaluator(store, catalogFor(definition("first_book"), definition("books_5")))

	unlocks, err := e.EvaluateAndGrant(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, unlocks)
	assert.Equal(t, 0, store.grantCount(1))
	assert.Equal(t, int64(0), store.progress(1).Experience)

	store.setProgressErr = nil
	unlocks, err = e.EvaluateAndGrant(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"first_book"}, codes(unlocks))
}

func TestEvaluateUnknownUser(t *testing.T) {
	e := newTestEvaluator(newFakeStore(), catalogFor(Definitions...))

	_, err := e.EvaluateAndGrant(context.Background(), 99)
	assert.True(t, errors.Is(err, ErrUserNotFound))
}

func TestEvaluateInCallerTransaction(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	store.addUser(1, 0)
	store.setMetric(1, MetricBooks, 1)
	e := newTestEvaluator(store, catalogFor(definition("first_book")))
	ledger := NewLedger(store, logger.Nop())

	var unlocks []Unlock
	err := store.RunInTx(ctx, func(tx Tx) error {
		if _, err := ledger.GrantExperienceTx(ctx, tx, 1, 10); err != nil {
			return err
		}
		var err error
		unlocks, err = e.EvaluateAndGrantTx(ctx, tx, 1)
		return err
	})
	require.NoError(t, err)
	require.Len(t, unlocks, 1)
	assert.Equal(t, int64(60), unlocks[0].Progress.Experience)
	assert.Equal(t, int64(60), store.progress(1).Experience)
	assert.True(t, store.hasGrant(1, 1))
}

func TestEvaluateInCallerTransactionRollsBackTogether(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	store.addUser(1, 0)
	store.setMetric(1, MetricBooks, 1)
	e := newTestEvaluator(store, catalogFor(definition("first_book")))

	callerErr := errors.New("book insert failed")
	err := store.RunInTx(ctx, func(tx Tx) error {
		if _, err := e.EvaluateAndGrantTx(ctx, tx, 1); err != nil {
			return err
		}
		return callerErr
	})
	require.ErrorIs(t, err, callerErr)
	assert.Equal(t, 0, store.grantCount(1))
	assert.Equal(t, int64(0), store.progress(1).Experience)
}

func TestEvaluateInCallerTransactionReturnsGrantFailure(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	store.addUser(1, 0)
	store.setMetric(1, MetricBooks, 1)
	store.setProgressErr = errors.New("disk full")
	e := newTestEvaluator(store, catalogFor(definition("first_book")))

	err := store.RunInTx(ctx, func(tx Tx) error {
		_, err := e.EvaluateAndGrantTx(ctx, tx, 1)
		return err
	})
	var pe *PersistenceError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, 0, store.grantCount(1))
}

func TestLoadActivityMetrics(t *testing.T) {
	store := newFakeStore()
	store.addUser(1, 0)
	store.setMetric(1, MetricBooks, 7)
	store.setMetric(1, MetricCoReadBooks, 2)
	store.setMetric(1, MetricDeletedBooks, 1)

	am, err := LoadActivityMetrics(context.Background(), store, 1, fixedNow)
	require.NoError(t, err)
	assert.Equal(t, int64(7), am.Books)
	assert.Equal(t, int64(2), am.CoReadBooks)
	assert.Equal(t, int64(1), am.DeletedBooks)

	store.metricErr[MetricFollowers] = errors.New("boom")
	_, err = LoadActivityMetrics(context.Background(), store, 1, fixedNow)
	assert.Error(t, err)
}
