package lockbridge

import "errors"

var (
	// ErrCapacityExceeded is returned by AddLock once every slot in the
	// registry is active. The registry never grows.
	ErrCapacityExceeded = errors.New("lock registry capacity exceeded")

	// ErrNotFound is returned when an intent targets a slot that is out of
	// range or not currently bound to a lock.
	ErrNotFound = errors.New("lock not found")

	// ErrInvalidTransition is returned when a target state change is
	// requested for a jammed lock. The jam must be cleared first.
	ErrInvalidTransition = errors.New("lock state transition not permitted")
)
