package scheduler

import "errors"

var (
	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("invalid scheduler configuration")

	// ErrStopTimeout is returned when a running job outlives the stop deadline
	ErrStopTimeout = errors.New("ticker did not stop in time")

	// ErrJobPanicked wraps a recovered job panic
	ErrJobPanicked = errors.New("job panicked")
)
