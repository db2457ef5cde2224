package domain

import "errors"

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrSessionNotFound = errors.New("session not found")

	// ErrGenerationActive is returned when generation is requested for a
	// session that already has a queued or running job, or that already
	// completed. At most one job may be active per session.
	ErrGenerationActive = errors.New("generation already in progress for this session")
)
