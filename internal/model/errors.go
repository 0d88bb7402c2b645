package model

import "errors"

var (
	// ErrAlreadyInProgress is returned synchronously when a failover is
	// triggered while another run is active. It is not a failure of the
	// existing run.
	ErrAlreadyInProgress = errors.New("failover already in progress")

	// ErrInvalidState is returned when a trigger does not match the current
	// state, e.g. rolling back while the primary is still active.
	ErrInvalidState = errors.New("operation not valid in current state")

	// ErrRunTimeout is recorded when the run-level watchdog expires.
	ErrRunTimeout = errors.New("failover run timed out")

	// ErrUnknownStep is returned when no executor handles a step name.
	ErrUnknownStep = errors.New("unknown failover step")

	// ErrNoHealthSources is returned when an assessment has no configured
	// sources at all.
	ErrNoHealthSources = errors.New("no health sources configured")
)
