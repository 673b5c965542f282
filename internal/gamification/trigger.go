package gamification

import "fmt"

// TriggerKind is the closed set of unlock conditions an achievement can use.
type TriggerKind string

const (
	TriggerBookCount           TriggerKind = "book_count"
	TriggerNoteCount           TriggerKind = "note_count"
	TriggerCommentCount        TriggerKind = "comment_count"
	TriggerFollowingCount      TriggerKind = "following_count"
	TriggerFollowerCount       TriggerKind = "follower_count"
	TriggerExperienceTotal     TriggerKind = "experience_total"
	TriggerLevelReached        TriggerKind = "level_reached"
	TriggerPageTotal           TriggerKind = "page_total"
	TriggerWeeklyPageTotal     TriggerKind = "weekly_page_total"
	TriggerMonthlyPageTotal    TriggerKind = "monthly_page_total"
	TriggerCoReadCount         TriggerKind = "co_read_count"
	TriggerDeletionCount       TriggerKind = "deletion_count"
	TriggerWeeklyBookCount     TriggerKind = "weekly_book_count"
	TriggerMonthlyBookCount    TriggerKind = "monthly_book_count"
	TriggerDistinctAuthorCount TriggerKind = "distinct_author_count"
	TriggerSameAuthorCount     TriggerKind = "same_author_count"
)

// AllTriggerKinds lists every declared kind. Each must have an entry in triggers.
var AllTriggerKinds = []TriggerKind{
	TriggerBookCount,
	TriggerNoteCount,
	TriggerCommentCount,
	TriggerFollowingCount,
	TriggerFollowerCount,
	TriggerExperienceTotal,
	TriggerLevelReached,
	TriggerPageTotal,
	TriggerWeeklyPageTotal,
	TriggerMonthlyPageTotal,
	TriggerCoReadCount,
	TriggerDeletionCount,
	TriggerWeeklyBookCount,
	TriggerMonthlyBookCount,
	TriggerDistinctAuthorCount,
	TriggerSameAuthorCount,
}

// Predicate decides whether a snapshot satisfies a threshold. Predicates are pure.
type Predicate func(s Snapshot, threshold int64) bool

type trigger struct {
	// metric is empty for kinds evaluated against Progress alone.
	metric    Metric
	predicate Predicate
}

func metricAtLeast(m Metric) trigger {
	return trigger{
		metric: m,
		predicate: func(s Snapshot, threshold int64) bool {
			return s.Metrics.Value(m) >= threshold
		},
	}
}

var triggers = map[TriggerKind]trigger{
	TriggerBookCount:           metricAtLeast(MetricBooks),
	TriggerNoteCount:           metricAtLeast(MetricAnnotatedBooks),
	TriggerCommentCount:        metricAtLeast(MetricComments),
	TriggerFollowingCount:      metricAtLeast(MetricFollowing),
	TriggerFollowerCount:       metricAtLeast(MetricFollowers),
	TriggerPageTotal:           metricAtLeast(MetricPages),
	TriggerWeeklyPageTotal:     metricAtLeast(MetricWeeklyPages),
	TriggerMonthlyPageTotal:    metricAtLeast(MetricMonthlyPages),
	TriggerCoReadCount:         metricAtLeast(MetricCoReadBooks),
	TriggerDeletionCount:       metricAtLeast(MetricDeletedBooks),
	TriggerWeeklyBookCount:     metricAtLeast(MetricWeeklyBooks),
	TriggerMonthlyBookCount:    metricAtLeast(MetricMonthlyBooks),
	TriggerDistinctAuthorCount: metricAtLeast(MetricDistinctAuthors),
	TriggerSameAuthorCount:     metricAtLeast(MetricTopAuthorBooks),
	TriggerExperienceTotal: {
		predicate: func(s Snapshot, threshold int64) bool {
			return s.Progress.Experience >= threshold
		},
	},
	TriggerLevelReached: {
		predicate: func(s Snapshot, threshold int64) bool {
			return int64(s.Progress.Level) >= threshold
		},
	},
}

// Valid reports whether k has a predicate.
func (k TriggerKind) Valid() bool {
	_, ok := triggers[k]
	return ok
}

// Metric returns the activity metric k reads, if any.
func (k TriggerKind) Metric() (Metric, bool) {
	t, ok := triggers[k]
	if !ok || t.metric == "" {
		return "", false
	}
	return t.metric, true
}

// Satisfied evaluates k's predicate against s.
func (k TriggerKind) Satisfied(s Snapshot, threshold int64) (bool, error) {
	t, ok := triggers[k]
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrUnknownTrigger, k)
	}
	return t.predicate(s, threshold), nil
}
