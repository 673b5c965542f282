package gamification

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEveryTriggerKindHasPredicate(t *testing.T) {
	require.Len(t, triggers, len(AllTriggerKinds))
	for _, k := range AllTriggerKinds {
		assert.True(t, k.Valid(), "kind %q has no predicate", k)
	}
}

func TestEveryMetricHasField(t *testing.T) {
	var am ActivityMetrics
	for i, m := range AllMetrics {
		am.Set(m, int64(i+1))
	}
	for i, m := range AllMetrics {
		assert.Equal(t, int64(i+1), am.Value(m), "metric %q", m)
	}
}

func TestTriggerSatisfied(t *testing.T) {
	tests := []struct {
		name      string
		kind      TriggerKind
		snap      Snapshot
		threshold int64
		want      bool
	}{
		{"books below", TriggerBookCount, Snapshot{Metrics: ActivityMetrics{Books: 4}}, 5, false},
		{"books at", TriggerBookCount, Snapshot{Metrics: ActivityMetrics{Books: 5}}, 5, true},
		{"annotated books", TriggerNoteCount, Snapshot{Metrics: ActivityMetrics{AnnotatedBooks: 10}}, 10, true},
		{"followers", TriggerFollowerCount, Snapshot{Metrics: ActivityMetrics{Followers: 9}}, 10, false},
		{"experience", TriggerExperienceTotal, Snapshot{Progress: Progress{Experience: 100}}, 100, true},
		{"level below", TriggerLevelReached, Snapshot{Progress: Progress{Experience: 99, Level: 1}}, 2, false},
		{"level at", TriggerLevelReached, Snapshot{Progress: Progress{Experience: 100, Level: 2}}, 2, true},
		{"weekly pages", TriggerWeeklyPageTotal, Snapshot{Metrics: ActivityMetrics{WeeklyPages: 500}}, 500, true},
		{"same author", TriggerSameAuthorCount, Snapshot{Metrics: ActivityMetrics{TopAuthorBooks: 4}}, 5, false},
		{"distinct authors", TriggerDistinctAuthorCount, Snapshot{Metrics: ActivityMetrics{DistinctAuthors: 20}}, 20, true},
		{"deletions", TriggerDeletionCount, Snapshot{Metrics: ActivityMetrics{DeletedBooks: 1}}, 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.kind.Satisfied(tt.snap, tt.threshold)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUnknownTrigger(t *testing.T) {
	k := TriggerKind("streak_days")
	assert.False(t, k.Valid())

	_, ok := k.Metric()
	assert.False(t, ok)

	_, err := k.Satisfied(Snapshot{}, 1)
	assert.True(t, errors.Is(err, ErrUnknownTrigger))
}

func TestProgressKindsReadNoMetric(t *testing.T) {
	_, ok := TriggerExperienceTotal.Metric()
	assert.False(t, ok)
	_, ok = TriggerLevelReached.Metric()
	assert.False(t, ok)

	m, ok := TriggerCoReadCount.Metric()
	require.True(t, ok)
	assert.Equal(t, MetricCoReadBooks, m)
}

func TestMetricWindows(t *testing.T) {
	now := time.Date(2026, 3, 31, 12, 0, 0, 0, time.UTC)

	since, ok := MetricWeeklyPages.Since(now)
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 3, 24, 0, 0, 0, 0, time.UTC), since)

	// Feb 31 normalizes to Mar 3.
	since, ok = MetricMonthlyBooks.Since(now)
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC), since)

	local := time.FixedZone("UTC+3", 3*60*60)
	since, ok = MetricWeeklyBooks.Since(time.Date(2026, 3, 31, 1, 0, 0, 0, local))
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 3, 24, 0, 0, 0, 0, local), since)

	_, ok = MetricBooks.Since(now)
	assert.False(t, ok)
}
