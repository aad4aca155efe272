package quiz

import "errors"

// Typed failures returned by engine operations. Callers match with
// errors.Is; the HTTP layer maps each to a status code.
var (
	ErrNotAuthenticated    = errors.New("student authentication required")
	ErrNotFound            = errors.New("not found")
	ErrAttemptLimitReached = errors.New("maximum attempts for this quiz reached")
	ErrRetakeDisabled      = errors.New("retake disabled: a passing attempt already exists")
	ErrResumeNotAllowed    = errors.New("attempt cannot be resumed")
	ErrAttemptClosed       = errors.New("attempt is closed")
	ErrNoQuestions         = errors.New("quiz has no questions")
	ErrInvalidAnswer       = errors.New("invalid answer")
	// ErrConcurrencyConflict surfaces after bounded internal retry of a
	// contended store update. Transient: callers may retry the operation.
	ErrConcurrencyConflict = errors.New("concurrent modification, retry")
)
