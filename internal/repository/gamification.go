package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"bookrecorder/internal/gamification"
	"bookrecorder/internal/logger"
	"bookrecorder/internal/model"
)

const maxTxRetries = 3

// Postgres error codes that mean "run the transaction again".
const (
	pqSerializationFailure = "40001"
	pqDeadlockDetected     = "40P01"
)

// queryer is the subset of *sqlx.DB and *sqlx.Tx the metric queries need.
type queryer interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// metricQueries maps each metric to a query taking ($1 user_id[, $2 since]).
var metricQueries = map[gamification.Metric]string{
	gamification.MetricBooks:          `SELECT COUNT(*) FROM books WHERE user_id = $1`,
	gamification.MetricAnnotatedBooks: `SELECT COUNT(DISTINCT book_id) FROM notes WHERE user_id = $1`,
	gamification.MetricComments:       `SELECT COUNT(*) FROM book_comments WHERE user_id = $1`,
	gamification.MetricFollowing:      `SELECT COUNT(*) FROM follows WHERE follower_id = $1`,
	gamification.MetricFollowers:      `SELECT COUNT(*) FROM follows WHERE followee_id = $1`,
	gamification.MetricPages:          `SELECT COALESCE(SUM(pages), 0) FROM books WHERE user_id = $1`,
	gamification.MetricWeeklyPages:    `SELECT COALESCE(SUM(pages), 0) FROM books WHERE user_id = $1 AND created_at >= $2`,
	gamification.MetricMonthlyPages:   `SELECT COALESCE(SUM(pages), 0) FROM books WHERE user_id = $1 AND created_at >= $2`,
	gamification.MetricCoReadBooks: `
		SELECT COUNT(*) FROM books b
		WHERE b.user_id = $1
		  AND EXISTS (SELECT 1 FROM books o WHERE o.title = b.title AND o.user_id <> b.user_id)`,
	gamification.MetricDeletedBooks:    `SELECT COUNT(*) FROM deleted_books WHERE user_id = $1`,
	gamification.MetricWeeklyBooks:     `SELECT COUNT(*) FROM books WHERE user_id = $1 AND created_at >= $2`,
	gamification.MetricMonthlyBooks:    `SELECT COUNT(*) FROM books WHERE user_id = $1 AND created_at >= $2`,
	gamification.MetricDistinctAuthors: `SELECT COUNT(DISTINCT author) FROM books WHERE user_id = $1`,
	gamification.MetricTopAuthorBooks: `
		SELECT COALESCE(MAX(n), 0) FROM (
			SELECT COUNT(*) AS n FROM books WHERE user_id = $1 GROUP BY author
		) per_author`,
}

// GamificationStore is the Postgres implementation of the ledger and
// evaluator persistence ports.
type GamificationStore struct {
	gamificationReader
	db         *sqlx.DB
	log        *logger.Logger
	newBackOff func() backoff.BackOff
}

func NewGamificationStore(db *sqlx.DB, log *logger.Logger) *GamificationStore {
	return &GamificationStore{
		gamificationReader: gamificationReader{q: db},
		db:                 db,
		log:                log.With("component", "GamificationStore"),
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 20 * time.Millisecond
			b.MaxInterval = 500 * time.Millisecond
			return b
		},
	}
}

// RunInTx runs fn in a new transaction. Serialization failures and
// deadlocks are retried with exponential backoff.
func (s *GamificationStore) RunInTx(ctx context.Context, fn func(tx gamification.Tx) error) error {
	op := func() error {
		err := s.runOnce(ctx, fn)
		if err == nil || isRetryableTxError(err) {
			return err
		}
		return backoff.Permanent(err)
	}

	b := backoff.WithContext(backoff.WithMaxRetries(s.newBackOff(), maxTxRetries), ctx)
	return backoff.RetryNotify(op, b, func(err error, wait time.Duration) {
		s.log.Warn("retrying transaction", "error", err, "wait", wait)
	})
}

func (s *GamificationStore) runOnce(ctx context.Context, fn func(tx gamification.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(NewGamificationTx(tx)); err != nil {
		return err
	}
	return tx.Commit()
}

func isRetryableTxError(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == pqSerializationFailure || pqErr.Code == pqDeadlockDetected
}

// InsertAchievementIfAbsent inserts def unless its code or name is already taken.
func (s *GamificationStore) InsertAchievementIfAbsent(ctx context.Context, def gamification.Definition) (bool, error) {
	query := `
		INSERT INTO achievements (code, name, description, image, trigger_kind, trigger_threshold)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT DO NOTHING
	`
	result, err := s.db.ExecContext(ctx, query, def.Code, def.Name, def.Description, def.Image, def.Kind, def.Threshold)
	if err != nil {
		return false, fmt.Errorf("insert achievement: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("get rows affected: %w", err)
	}
	return rows > 0, nil
}

// ListAchievements returns the stored catalog ordered by id.
func (s *GamificationStore) ListAchievements(ctx context.Context) ([]gamification.Achievement, error) {
	query := `
		SELECT id, code, name, description, image, trigger_kind, trigger_threshold
		FROM achievements
		ORDER BY id
	`
	var achievements []gamification.Achievement
	if err := s.db.SelectContext(ctx, &achievements, query); err != nil {
		return nil, fmt.Errorf("list achievements: %w", err)
	}
	return achievements, nil
}

// ListGrants returns the user's unlocked achievements, most recent first.
func (s *GamificationStore) ListGrants(ctx context.Context, userID int64) ([]gamification.Grant, error) {
	query := `
		SELECT a.id, a.code, a.name, a.description, a.image, a.trigger_kind, a.trigger_threshold, ua.unlocked_at
		FROM user_achievements ua
		JOIN achievements a ON a.id = ua.achievement_id
		WHERE ua.user_id = $1
		ORDER BY ua.unlocked_at DESC, a.id DESC
	`
	grants := []gamification.Grant{}
	if err := s.db.SelectContext(ctx, &grants, query, userID); err != nil {
		return nil, fmt.Errorf("list grants: %w", err)
	}
	return grants, nil
}

// HasGrant reports whether the user already unlocked the achievement.
func (s *GamificationStore) HasGrant(ctx context.Context, userID, achievementID int64) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM user_achievements WHERE user_id = $1 AND achievement_id = $2)`
	var exists bool
	if err := s.db.GetContext(ctx, &exists, query, userID, achievementID); err != nil {
		return false, fmt.Errorf("check grant: %w", err)
	}
	return exists, nil
}

// GetActivityMetrics computes every activity counter for the dashboard.
func (s *GamificationStore) GetActivityMetrics(ctx context.Context, userID int64, now time.Time) (gamification.ActivityMetrics, error) {
	return gamification.LoadActivityMetrics(ctx, s, userID, now)
}

// gamificationReader serves reads against either the pool or an open transaction.
type gamificationReader struct {
	q queryer
}

func (r gamificationReader) GetUser(ctx context.Context, userID int64) (gamification.Progress, error) {
	var p gamification.Progress
	err := r.q.GetContext(ctx, &p, `SELECT id, experience, level FROM users WHERE id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return gamification.Progress{}, model.ErrUserNotFound
	}
	if err != nil {
		return gamification.Progress{}, fmt.Errorf("get user progress: %w", err)
	}
	return p, nil
}

func (r gamificationReader) CountMetric(ctx context.Context, userID int64, metric gamification.Metric, now time.Time) (int64, error) {
	query, ok := metricQueries[metric]
	if !ok {
		return 0, fmt.Errorf("no query for metric %q", metric)
	}

	args := []interface{}{userID}
	if since, windowed := metric.Since(now); windowed {
		args = append(args, since)
	}

	var n int64
	if err := r.q.GetContext(ctx, &n, query, args...); err != nil {
		return 0, fmt.Errorf("count %s: %w", metric, err)
	}
	return n, nil
}

func (r gamificationReader) GrantedAchievementIDs(ctx context.Context, userID int64) (map[int64]bool, error) {
	var ids []int64
	err := r.q.SelectContext(ctx, &ids, `SELECT achievement_id FROM user_achievements WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("get granted achievements: %w", err)
	}
	granted := make(map[int64]bool, len(ids))
	for _, id := range ids {
		granted[id] = true
	}
	return granted, nil
}

// gamificationTx adapts an open *sqlx.Tx to gamification.Tx.
type gamificationTx struct {
	gamificationReader
	tx *sqlx.Tx
}

// NewGamificationTx lets a service run ledger and evaluator calls inside a
// transaction it already owns.
func NewGamificationTx(tx *sqlx.Tx) gamification.Tx {
	return &gamificationTx{gamificationReader: gamificationReader{q: tx}, tx: tx}
}

// LockUser takes FOR NO KEY UPDATE so the row lock does not conflict with the
// key-share locks that foreign key checks on books, comments and grants take.
func (t *gamificationTx) LockUser(ctx context.Context, userID int64) (gamification.Progress, error) {
	var p gamification.Progress
	err := t.tx.GetContext(ctx, &p, `SELECT id, experience, level FROM users WHERE id = $1 FOR NO KEY UPDATE`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return gamification.Progress{}, model.ErrUserNotFound
	}
	if err != nil {
		return gamification.Progress{}, fmt.Errorf("lock user: %w", err)
	}
	return p, nil
}

func (t *gamificationTx) SetUserProgress(ctx context.Context, userID, experience int64, level int) error {
	query := `UPDATE users SET experience = $1, level = $2, updated_at = NOW() WHERE id = $3`
	result, err := t.tx.ExecContext(ctx, query, experience, level, userID)
	if err != nil {
		return fmt.Errorf("set user progress: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return model.ErrUserNotFound
	}
	return nil
}

func (t *gamificationTx) RecordGrant(ctx context.Context, userID, achievementID int64) error {
	query := `
		INSERT INTO user_achievements (user_id, achievement_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id, achievement_id) DO NOTHING
	`
	result, err := t.tx.ExecContext(ctx, query, userID, achievementID)
	if err != nil {
		return fmt.Errorf("record grant: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return gamification.ErrAlreadyGranted
	}
	return nil
}
