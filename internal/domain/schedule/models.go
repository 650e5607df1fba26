package schedule

import "time"

type Schedule struct {
	ID                string    `json:"id"`
	Kind              string    `json:"kind"`
	DayOfMonth        int       `json:"dayOfMonth,omitempty"`
	FirstCutoffDay    int       `json:"firstCutoffDay,omitempty"`
	LastCutoffDay     int       `json:"lastCutoffDay,omitempty"`
	CutoffWeekday     string    `json:"cutoffWeekday,omitempty"`
	ReleaseOffsetDays int       `json:"releaseOffsetDays"`
	CreatedAt         time.Time `json:"createdAt"`
}

// Period is a materialized cutoff window. The ID is derived from the owning
// schedule and the window bounds, so regenerating an unchanged schedule
// always produces the same ids.
type Period struct {
	ID          string    `json:"id"`
	ScheduleID  string    `json:"scheduleId"`
	StartDate   time.Time `json:"startDate"`
	EndDate     time.Time `json:"endDate"`
	ReleaseDate time.Time `json:"releaseDate"`
	PeriodType  string    `json:"periodType"`
	Status      string    `json:"status"`
}
