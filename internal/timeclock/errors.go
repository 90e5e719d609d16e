package timeclock

import "errors"

// Transition validation errors. These are raised before any mutation; the
// in-memory and remote state are left untouched.
var (
	ErrAlreadyClockedIn      = errors.New("already clocked in")
	ErrNotClockedIn          = errors.New("not clocked in")
	ErrNotClockedInOrAtLunch = errors.New("not clocked in or already at lunch")
	ErrNotAtLunch            = errors.New("not at lunch")
)

// PersistenceError wraps a rejected or timed-out remote store call. It is
// distinguishable from validation errors so a caller can offer retry for
// persistence failures only.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return "persist " + e.Op + ": " + e.Err.Error()
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// IsInvalidTransition reports whether err is a transition validation error.
func IsInvalidTransition(err error) bool {
	return errors.Is(err, ErrAlreadyClockedIn) ||
		errors.Is(err, ErrNotClockedIn) ||
		errors.Is(err, ErrNotClockedInOrAtLunch) ||
		errors.Is(err, ErrNotAtLunch)
}

// IsPersistenceFailure reports whether err came from the remote store rather
// than from validation.
func IsPersistenceFailure(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}
