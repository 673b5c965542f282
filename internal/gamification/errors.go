package gamification

import (
	"errors"
	"fmt"

	"bookrecorder/internal/model"
)

var (
	// ErrUserNotFound is the same sentinel the repositories return, so callers
	// can match it with errors.Is regardless of which layer produced it.
	ErrUserNotFound = model.ErrUserNotFound

	// ErrInvalidAmount is returned for negative experience grants.
	ErrInvalidAmount = errors.New("experience amount must not be negative")

	// ErrAlreadyGranted is returned by RecordGrant when the (user, achievement)
	// pair already exists. The evaluator treats it as a no-op.
	ErrAlreadyGranted = errors.New("achievement already granted")

	// ErrUnknownTrigger is returned when an achievement carries a kind with no predicate.
	ErrUnknownTrigger = errors.New("unknown trigger kind")
)

// PersistenceError wraps a storage failure with the operation that failed.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("gamification: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// persistence wraps err unless it is already one of the package's own outcomes.
func persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrUserNotFound) || errors.Is(err, ErrInvalidAmount) || errors.Is(err, ErrAlreadyGranted) {
		return err
	}
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}
