package gamification

import (
	"context"
	"errors"
	"time"

	"bookrecorder/internal/logger"
)

// Unlock describes one achievement granted by an evaluation, with the
// user's progress right after its reward was applied.
type Unlock struct {
	Achievement Achievement `json:"achievement"`
	Reward      int64       `json:"reward"`
	Progress    Progress    `json:"progress"`
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithClock overrides the time source used for windowed metrics.
func WithClock(now func() time.Time) Option {
	return func(e *Evaluator) {
		e.now = now
	}
}

// Evaluator grants every catalog achievement a user currently satisfies.
type Evaluator struct {
	store   Store
	ledger  *Ledger
	catalog *Catalog
	log     *logger.Logger
	now     func() time.Time
}

func NewEvaluator(store Store, ledger *Ledger, catalog *Catalog, log *logger.Logger, opts ...Option) *Evaluator {
	e := &Evaluator{
		store:   store,
		ledger:  ledger,
		catalog: catalog,
		log:     log.With("component", "Evaluator"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Catalog returns the catalog the evaluator scans.
func (e *Evaluator) Catalog() *Catalog {
	return e.catalog
}

// grantFunc records one grant together with its reward.
type grantFunc func(ctx context.Context, a Achievement, reward int64) (Progress, error)

// EvaluateAndGrant runs the unlock scan for userID. Each grant commits in its
// own transaction, so a failure on one achievement is logged and the scan
// continues. Only an unknown user or a failure to read the user's state is
// returned as an error.
func (e *Evaluator) EvaluateAndGrant(ctx context.Context, userID int64) ([]Unlock, error) {
	grant := func(ctx context.Context, a Achievement, reward int64) (Progress, error) {
		var p Progress
		err := e.store.RunInTx(ctx, func(tx Tx) error {
			var err error
			p, err = e.grantTx(ctx, tx, userID, a, reward)
			return err
		})
		return p, err
	}
	return e.evaluate(ctx, e.store, userID, grant, false)
}

// EvaluateAndGrantTx runs the unlock scan inside tx. Grants commit or roll
// back with the caller's transaction, and any grant failure is returned
// because the transaction can no longer be trusted.
func (e *Evaluator) EvaluateAndGrantTx(ctx context.Context, tx Tx, userID int64) ([]Unlock, error) {
	grant := func(ctx context.Context, a Achievement, reward int64) (Progress, error) {
		return e.grantTx(ctx, tx, userID, a, reward)
	}
	return e.evaluate(ctx, tx, userID, grant, true)
}

func (e *Evaluator) grantTx(ctx context.Context, tx Tx, userID int64, a Achievement, reward int64) (Progress, error) {
	if err := tx.RecordGrant(ctx, userID, a.ID); err != nil {
		return Progress{}, persistence("record grant", err)
	}
	return e.ledger.GrantExperienceTx(ctx, tx, userID, reward)
}

func (e *Evaluator) evaluate(ctx context.Context, r Reader, userID int64, grant grantFunc, inherited bool) ([]Unlock, error) {
	progress, err := r.GetUser(ctx, userID)
	if err != nil {
		return nil, persistence("get user", err)
	}
	granted, err := r.GrantedAchievementIDs(ctx, userID)
	if err != nil {
		return nil, persistence("list grants", err)
	}

	metrics := newMetricCache(r, userID, e.now())
	skipped := make(map[int64]bool)
	var unlocks []Unlock

	// Rewards raise experience, which can satisfy experience and level
	// achievements earlier in the catalog. Repeat until a pass changes nothing.
	for {
		changed := false
		stale := false

		for _, a := range e.catalog.Achievements() {
			if granted[a.ID] || skipped[a.ID] {
				continue
			}

			ok, err := e.satisfied(ctx, metrics, progress, a)
			if err != nil {
				e.log.Warn("skipping achievement, trigger not evaluable",
					"user_id", userID, "achievement_id", a.ID, "code", a.Code, "error", err)
				skipped[a.ID] = true
				continue
			}
			if !ok {
				continue
			}

			reward := e.catalog.RewardFor(a)
			p, err := grant(ctx, a, reward)
			switch {
			case errors.Is(err, ErrAlreadyGranted):
				// A concurrent evaluation won the race; its reward is already applied.
				granted[a.ID] = true
				stale = true
				continue
			case err != nil:
				if inherited {
					return nil, err
				}
				e.log.Error("failed to grant achievement",
					"user_id", userID, "achievement_id", a.ID, "code", a.Code, "error", err)
				skipped[a.ID] = true
				continue
			}

			granted[a.ID] = true
			progress = p
			changed = true
			unlocks = append(unlocks, Unlock{Achievement: a, Reward: reward, Progress: p})
			e.log.Info("achievement unlocked",
				"user_id", userID, "achievement_id", a.ID, "code", a.Code, "reward", reward, "experience", p.Experience)
		}

		if stale {
			fresh, err := r.GetUser(ctx, userID)
			if err != nil {
				e.log.Warn("failed to refresh progress", "user_id", userID, "error", err)
			} else if fresh != progress {
				progress = fresh
				changed = true
			}
		}
		if !changed {
			return unlocks, nil
		}
	}
}

func (e *Evaluator) satisfied(ctx context.Context, metrics *metricCache, progress Progress, a Achievement) (bool, error) {
	snap := Snapshot{Progress: progress}
	if m, ok := a.Kind.Metric(); ok {
		v, err := metrics.get(ctx, m)
		if err != nil {
			return false, err
		}
		snap.Metrics.Set(m, v)
	}
	return a.Kind.Satisfied(snap, a.Threshold)
}

// metricCache fetches each metric at most once per evaluation. Failures are
// remembered too, so a broken query is not retried on every pass.
type metricCache struct {
	r      Reader
	userID int64
	now    time.Time
	values map[Metric]int64
	errs   map[Metric]error
}

func newMetricCache(r Reader, userID int64, now time.Time) *metricCache {
	return &metricCache{
		r:      r,
		userID: userID,
		now:    now,
		values: make(map[Metric]int64),
		errs:   make(map[Metric]error),
	}
}

func (c *metricCache) get(ctx context.Context, m Metric) (int64, error) {
	if v, ok := c.values[m]; ok {
		return v, nil
	}
	if err, ok := c.errs[m]; ok {
		return 0, err
	}
	v, err := c.r.CountMetric(ctx, c.userID, m, c.now)
	if err != nil {
		err = persistence("count "+string(m), err)
		c.errs[m] = err
		return 0, err
	}
	c.values[m] = v
	return v, nil
}
