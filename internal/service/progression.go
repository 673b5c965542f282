package service

import (
	"context"
	"errors"

	"github.com/jmoiron/sqlx"

	"bookrecorder/internal/gamification"
	"bookrecorder/internal/logger"
	"bookrecorder/internal/model"
	"bookrecorder/internal/queue"
	"bookrecorder/internal/repository"
)

// Outcome is what an action did to the acting user's progress.
type Outcome struct {
	Progress model.ProgressBox     `json:"progress"`
	Unlocked []gamification.Unlock `json:"unlocked"`
}

// Progression applies flat action rewards and settles achievements once the
// action has committed.
type Progression struct {
	store     gamification.Reader
	ledger    *gamification.Ledger
	evaluator *gamification.Evaluator
	publisher queue.Publisher
	log       *logger.Logger
}

func NewProgression(
	store gamification.Reader,
	ledger *gamification.Ledger,
	evaluator *gamification.Evaluator,
	publisher queue.Publisher,
	log *logger.Logger,
) *Progression {
	return &Progression{
		store:     store,
		ledger:    ledger,
		evaluator: evaluator,
		publisher: publisher,
		log:       log.With("component", "Progression"),
	}
}

// RewardTx grants amount inside the caller's transaction, so the reward
// commits or rolls back with the action that earned it.
func (p *Progression) RewardTx(ctx context.Context, tx *sqlx.Tx, userID, amount int64) (gamification.Progress, error) {
	return p.ledger.GrantExperienceTx(ctx, repository.NewGamificationTx(tx), userID, amount)
}

// Settle runs after commit. It announces a reward given by RewardTx (when
// rewarded is non-nil), evaluates achievements and announces each unlock.
// Failures are logged; the action that triggered them has already succeeded.
func (p *Progression) Settle(ctx context.Context, userID int64, rewarded *gamification.Progress) Outcome {
	out := Outcome{Unlocked: []gamification.Unlock{}}

	var current gamification.Progress
	if rewarded != nil {
		current = *rewarded
		p.publish(ctx, queue.NewExperienceChangedEvent(userID, current.Experience, current.Level))
	}

	unlocks, err := p.evaluator.EvaluateAndGrant(ctx, userID)
	switch {
	case errors.Is(err, gamification.ErrUserNotFound):
		p.log.Warn("evaluation skipped, user not found", "user_id", userID)
	case err != nil:
		p.log.Error("achievement evaluation failed", "user_id", userID, "error", err)
	}

	for _, u := range unlocks {
		current = u.Progress
		p.publish(ctx, queue.NewAchievementUnlockedEvent(userID, u.Achievement.ID, u.Reward, u.Progress.Experience, u.Progress.Level))
	}
	out.Unlocked = append(out.Unlocked, unlocks...)

	if rewarded == nil && len(unlocks) == 0 {
		current, err = p.store.GetUser(ctx, userID)
		if err != nil {
			p.log.Warn("failed to read progress", "user_id", userID, "error", err)
		}
	}
	out.Progress = progressBox(current)
	return out
}

func (p *Progression) publish(ctx context.Context, event queue.ActivityEvent) {
	if p.publisher == nil {
		return
	}
	if _, err := p.publisher.Publish(ctx, queue.StreamActivity, event); err != nil {
		p.log.Warn("failed to publish event", "type", event.Type, "user_id", event.UserID, "error", err)
	}
}

func progressBox(p gamification.Progress) model.ProgressBox {
	return model.ProgressBox{
		Experience:         p.Experience,
		Level:              p.Level,
		PercentToNextLevel: p.PercentToNextLevel(),
		NextLevelAt:        p.NextLevelAt(),
	}
}

// userProgress derives the progress box from a loaded user row.
func userProgress(u *model.User) model.ProgressBox {
	return progressBox(gamification.Progress{UserID: u.ID, Experience: u.Experience, Level: u.Level})
}
