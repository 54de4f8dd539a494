package scheduler

import "errors"

var (
	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("invalid scheduler configuration")

	// ErrAlreadyRunning is returned when a check is requested while one is in flight
	ErrAlreadyRunning = errors.New("health check already in progress")
)
