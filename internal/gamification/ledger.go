package gamification

import (
	"context"
	"math"

	"bookrecorder/internal/logger"
)

// Ledger is the only writer of user experience and level.
type Ledger struct {
	store Store
	log   *logger.Logger
}

func NewLedger(store Store, log *logger.Logger) *Ledger {
	return &Ledger{
		store: store,
		log:   log.With("component", "Ledger"),
	}
}

// GrantExperience adds amount to the user's experience in its own transaction
// and returns the resulting progress.
func (l *Ledger) GrantExperience(ctx context.Context, userID, amount int64) (Progress, error) {
	if amount < 0 {
		return Progress{}, ErrInvalidAmount
	}

	var out Progress
	err := l.store.RunInTx(ctx, func(tx Tx) error {
		p, err := l.GrantExperienceTx(ctx, tx, userID, amount)
		if err != nil {
			return err
		}
		out = p
		return nil
	})
	if err != nil {
		return Progress{}, persistence("grant experience", err)
	}
	return out, nil
}

// GrantExperienceTx is GrantExperience inside a caller-owned transaction.
// The user row stays locked until tx ends.
func (l *Ledger) GrantExperienceTx(ctx context.Context, tx Tx, userID, amount int64) (Progress, error) {
	if amount < 0 {
		return Progress{}, ErrInvalidAmount
	}

	p, err := tx.LockUser(ctx, userID)
	if err != nil {
		return Progress{}, persistence("lock user", err)
	}
	if p.Experience > math.MaxInt64-amount {
		return Progress{}, ErrInvalidAmount
	}

	before := p.Level
	p.UserID = userID
	p.Experience += amount
	p.Level = LevelFor(p.Experience)

	if err := tx.SetUserProgress(ctx, userID, p.Experience, p.Level); err != nil {
		return Progress{}, persistence("set user progress", err)
	}

	l.log.Debug("experience granted",
		"user_id", userID,
		"amount", amount,
		"experience", p.Experience,
		"level", p.Level,
	)
	if p.Level > before {
		l.log.Info("level up", "user_id", userID, "level", p.Level)
	}
	return p, nil
}
