package repositories

import "errors"

var (
	// ErrDuplicateDeposit — the transaction hash was already applied; the
	// caller acknowledges the event as success with no further effect.
	ErrDuplicateDeposit = errors.New("deposit already applied")

	// ErrTradeClosed — the trade no longer accepts deposits (terminal or
	// disputed); the event is recorded for audit but not accumulated.
	ErrTradeClosed = errors.New("trade does not accept deposits")

	// ErrStatusConflict — the conditional status update matched no row:
	// a concurrent writer moved the trade first. Callers re-read and retry
	// a bounded number of times.
	ErrStatusConflict = errors.New("trade status changed concurrently")

	// ErrDuplicateReview — one review per (trade, reviewer).
	ErrDuplicateReview = errors.New("review already submitted for this trade")
)
