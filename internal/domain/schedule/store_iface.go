package schedule

import (
	"context"
)

type StoreAPI interface {
	CreateSchedule(ctx context.Context, tenantID string, s Schedule) (string, error)
	ListSchedules(ctx context.Context, tenantID string) ([]Schedule, error)
	GetSchedule(ctx context.Context, tenantID, scheduleID string) (Schedule, error)
	UpdateSchedule(ctx context.Context, tenantID string, s Schedule) error
	SoftDeleteSchedule(ctx context.Context, tenantID, scheduleID string) error
	ListScheduleIDs(ctx context.Context, tenantID string) ([]string, error)
	ExistingPeriodIDs(ctx context.Context, tenantID string, ids []string) (map[string]bool, error)
	InsertPeriods(ctx context.Context, tenantID string, periods []Period) (int, error)
}
