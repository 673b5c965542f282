package gamification

import (
	"context"
	"time"
)

// Reader is the read side of the persistence layer. Both the plain store and
// an open transaction implement it, so reads inside a transaction observe that
// transaction's own writes.
type Reader interface {
	// GetUser returns the user's progress or ErrUserNotFound.
	GetUser(ctx context.Context, userID int64) (Progress, error)

	// CountMetric computes one activity counter. Windowed metrics use now as
	// the end of the window (see Metric.Since).
	CountMetric(ctx context.Context, userID int64, metric Metric, now time.Time) (int64, error)

	// GrantedAchievementIDs returns the set of achievements already granted to the user.
	GrantedAchievementIDs(ctx context.Context, userID int64) (map[int64]bool, error)
}

// Tx is a unit of work. Writes made through it commit or roll back together.
type Tx interface {
	Reader

	// LockUser reads the user's progress and holds it against concurrent
	// writers until the transaction ends.
	LockUser(ctx context.Context, userID int64) (Progress, error)

	// SetUserProgress persists experience and level for a locked user.
	SetUserProgress(ctx context.Context, userID, experience int64, level int) error

	// RecordGrant inserts the (user, achievement) pair or returns
	// ErrAlreadyGranted if it already exists.
	RecordGrant(ctx context.Context, userID, achievementID int64) error
}

// Store opens transactions and serves reads outside of them.
type Store interface {
	Reader

	// RunInTx runs fn in a new transaction, committing when fn returns nil.
	RunInTx(ctx context.Context, fn func(tx Tx) error) error
}

// CatalogStore persists the achievement catalog.
type CatalogStore interface {
	// InsertAchievementIfAbsent inserts def unless an achievement with the same
	// code or name exists. It reports whether a row was inserted.
	InsertAchievementIfAbsent(ctx context.Context, def Definition) (bool, error)

	// ListAchievements returns every stored achievement ordered by id.
	ListAchievements(ctx context.Context) ([]Achievement, error)
}
