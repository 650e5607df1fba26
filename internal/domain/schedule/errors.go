package schedule

import "errors"

var (
	ErrScheduleNotFound = errors.New("cutoff schedule not found")
	ErrInvalidSchedule  = errors.New("invalid cutoff schedule")
)
