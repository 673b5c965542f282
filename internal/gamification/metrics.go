package gamification

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Metric names one aggregate counter derived from a user's activity.
type Metric string

const (
	MetricBooks           Metric = "books"
	MetricAnnotatedBooks  Metric = "annotated_books"
	MetricComments        Metric = "comments"
	MetricFollowing       Metric = "following"
	MetricFollowers       Metric = "followers"
	MetricPages           Metric = "pages"
	MetricWeeklyPages     Metric = "weekly_pages"
	MetricMonthlyPages    Metric = "monthly_pages"
	MetricCoReadBooks     Metric = "co_read_books"
	MetricDeletedBooks    Metric = "deleted_books"
	MetricWeeklyBooks     Metric = "weekly_books"
	MetricMonthlyBooks    Metric = "monthly_books"
	MetricDistinctAuthors Metric = "distinct_authors"
	MetricTopAuthorBooks  Metric = "top_author_books"
)

// AllMetrics lists every metric in display order.
var AllMetrics = []Metric{
	MetricBooks,
	MetricAnnotatedBooks,
	MetricComments,
	MetricFollowing,
	MetricFollowers,
	MetricPages,
	MetricWeeklyPages,
	MetricMonthlyPages,
	MetricCoReadBooks,
	MetricDeletedBooks,
	MetricWeeklyBooks,
	MetricMonthlyBooks,
	MetricDistinctAuthors,
	MetricTopAuthorBooks,
}

// Since returns the start of the trailing window for windowed metrics: the
// first instant of the calendar day one week or one month before now, in
// now's location. The second result is false for lifetime metrics.
func (m Metric) Since(now time.Time) (time.Time, bool) {
	switch m {
	case MetricWeeklyPages, MetricWeeklyBooks:
		return startOfDay(now.AddDate(0, 0, -7)), true
	case MetricMonthlyPages, MetricMonthlyBooks:
		return startOfDay(now.AddDate(0, -1, 0)), true
	default:
		return time.Time{}, false
	}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// ActivityMetrics is a read-only snapshot of a user's activity counters.
type ActivityMetrics struct {
	Books           int64 `json:"books"`
	AnnotatedBooks  int64 `json:"annotated_books"`
	Comments        int64 `json:"comments"`
	Following       int64 `json:"following"`
	Followers       int64 `json:"followers"`
	Pages           int64 `json:"pages"`
	WeeklyPages     int64 `json:"weekly_pages"`
	MonthlyPages    int64 `json:"monthly_pages"`
	CoReadBooks     int64 `json:"co_read_books"`
	DeletedBooks    int64 `json:"deleted_books"`
	WeeklyBooks     int64 `json:"weekly_books"`
	MonthlyBooks    int64 `json:"monthly_books"`
	DistinctAuthors int64 `json:"distinct_authors"`
	TopAuthorBooks  int64 `json:"top_author_books"`
}

// Value returns the counter for m, or 0 for an unknown metric.
func (a ActivityMetrics) Value(m Metric) int64 {
	if p := a.field(m); p != nil {
		return *p
	}
	return 0
}

// Set stores v as the counter for m. Unknown metrics are ignored.
func (a *ActivityMetrics) Set(m Metric, v int64) {
	if p := a.field(m); p != nil {
		*p = v
	}
}

func (a *ActivityMetrics) field(m Metric) *int64 {
	switch m {
	case MetricBooks:
		return &a.Books
	case MetricAnnotatedBooks:
		return &a.AnnotatedBooks
	case MetricComments:
		return &a.Comments
	case MetricFollowing:
		return &a.Following
	case MetricFollowers:
		return &a.Followers
	case MetricPages:
		return &a.Pages
	case MetricWeeklyPages:
		return &a.WeeklyPages
	case MetricMonthlyPages:
		return &a.MonthlyPages
	case MetricCoReadBooks:
		return &a.CoReadBooks
	case MetricDeletedBooks:
		return &a.DeletedBooks
	case MetricWeeklyBooks:
		return &a.WeeklyBooks
	case MetricMonthlyBooks:
		return &a.MonthlyBooks
	case MetricDistinctAuthors:
		return &a.DistinctAuthors
	case MetricTopAuthorBooks:
		return &a.TopAuthorBooks
	}
	return nil
}

// Snapshot is everything a trigger predicate may look at.
type Snapshot struct {
	Progress Progress
	Metrics  ActivityMetrics
}

// LoadActivityMetrics computes every metric for userID concurrently. r must be
// safe for concurrent use, so pass a Store rather than an open Tx.
func LoadActivityMetrics(ctx context.Context, r Reader, userID int64, now time.Time) (ActivityMetrics, error) {
	var (
		mu  sync.Mutex
		out ActivityMetrics
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, m := range AllMetrics {
		m := m
		g.Go(func() error {
			v, err := r.CountMetric(gctx, userID, m, now)
			if err != nil {
				return persistence("count "+string(m), err)
			}
			mu.Lock()
			out.Set(m, v)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return ActivityMetrics{}, err
	}
	return out, nil
}
