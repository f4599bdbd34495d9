package usecase

import "errors"

var (
	ErrInvalidInput          = errors.New("invalid input")
	ErrNotFound              = errors.New("resource not found")
	ErrDependencyUnavailable = errors.New("dependency unavailable")

	// ErrFeedTransient marks a momentary collaborator failure. Workers
	// treat it as "no data this tick" and retry on the next interval.
	ErrFeedTransient = errors.New("feed transient failure")

	// ErrFeedFatal marks an unusable collaborator (lost session, dead
	// page). It fails the league's current cycle but never the run.
	ErrFeedFatal = errors.New("feed unusable")

	// ErrPhaseTimeout is returned by the scheduler when a bounded phase
	// wait expires before its exit condition is met.
	ErrPhaseTimeout = errors.New("phase wait timed out")
)
