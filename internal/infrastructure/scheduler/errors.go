package scheduler

import "errors"

var (
	// ErrSweepInProgress is returned when a sweep is triggered while another runs
	ErrSweepInProgress = errors.New("sweep already in progress")

	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("invalid scheduler configuration")
)
