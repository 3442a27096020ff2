package domain

import "errors"

var (
	// ErrAttemptExists is returned when a prior attempt record already
	// exists for the user; the store-level guard is authoritative.
	ErrAttemptExists = errors.New("attempt already exists for user")
	// ErrAlreadyAttempted blocks session creation on the client-side flag.
	ErrAlreadyAttempted = errors.New("user has already attempted the quiz")
	// ErrNotEligible indicates payment/eligibility verification failed.
	ErrNotEligible = errors.New("user is not eligible to take the quiz")
	// ErrOutsideWindow indicates the quiz availability window is closed.
	ErrOutsideWindow = errors.New("quiz is not available at this time")
	// ErrQuestionBank indicates the question set could not be loaded.
	ErrQuestionBank = errors.New("questions could not be loaded")
	// ErrInvalidState is returned by operations called outside the state
	// they are valid in and expected to fail loudly.
	ErrInvalidState = errors.New("operation not valid in current session state")
	// ErrSessionNotFound is returned when no session exists for a user.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrProfileNotFound indicates an unknown user identity.
	ErrProfileNotFound = errors.New("profile not found")
)
