package schedule

import (
	"context"
	"time"
)

type Service struct {
	store StoreAPI
	now   func() time.Time
}

func NewService(store StoreAPI) *Service {
	return &Service{store: store, now: time.Now}
}

type SyncResult struct {
	ScheduleID string `json:"scheduleId"`
	Generated  int    `json:"generated"`
	Inserted   int    `json:"inserted"`
	Skipped    int    `json:"skipped"`
}

func (s *Service) CreateSchedule(ctx context.Context, tenantID string, payload Schedule) (string, error) {
	if err := Validate(payload); err != nil {
		return "", err
	}
	return s.store.CreateSchedule(ctx, tenantID, payload)
}

func (s *Service) ListSchedules(ctx context.Context, tenantID string) ([]Schedule, error) {
	return s.store.ListSchedules(ctx, tenantID)
}

func (s *Service) GetSchedule(ctx context.Context, tenantID, scheduleID string) (Schedule, error) {
	return s.store.GetSchedule(ctx, tenantID, scheduleID)
}

// UpdateSchedule replaces the schedule configuration. Already-materialized
// periods keep their original bounds; only future generation runs see the
// new configuration.
func (s *Service) UpdateSchedule(ctx context.Context, tenantID string, payload Schedule) error {
	if err := Validate(payload); err != nil {
		return err
	}
	return s.store.UpdateSchedule(ctx, tenantID, payload)
}

func (s *Service) DeleteSchedule(ctx context.Context, tenantID, scheduleID string) error {
	return s.store.SoftDeleteSchedule(ctx, tenantID, scheduleID)
}

// GenerateAndSync materializes the schedule's windows around referenceDate.
// Re-running against an unchanged schedule inserts nothing.
func (s *Service) GenerateAndSync(ctx context.Context, tenantID, scheduleID string, referenceDate time.Time, count int) (SyncResult, error) {
	sc, err := s.store.GetSchedule(ctx, tenantID, scheduleID)
	if err != nil {
		return SyncResult{}, err
	}
	if referenceDate.IsZero() {
		referenceDate = s.now()
	}
	periods, err := GeneratePeriods(sc, referenceDate, count)
	if err != nil {
		return SyncResult{}, err
	}
	result, err := s.SyncPeriods(ctx, tenantID, periods)
	result.ScheduleID = scheduleID
	return result, err
}

// GenerateAndSyncAll runs GenerateAndSync for every live schedule of the
// tenant. Used by the periodic sweep job.
func (s *Service) GenerateAndSyncAll(ctx context.Context, tenantID string, referenceDate time.Time, count int) ([]SyncResult, error) {
	ids, err := s.store.ListScheduleIDs(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	results := make([]SyncResult, 0, len(ids))
	for _, id := range ids {
		result, err := s.GenerateAndSync(ctx, tenantID, id, referenceDate, count)
		if err != nil {
			return results, err
		}
		results = append(results, result)
	}
	return results, nil
}

// SyncPeriods persists generated periods, skipping ones already present.
// One existence query plus one bulk insert, regardless of period count.
func (s *Service) SyncPeriods(ctx context.Context, tenantID string, periods []Period) (SyncResult, error) {
	result := SyncResult{Generated: len(periods)}
	if len(periods) == 0 {
		return result, nil
	}

	ids := make([]string, len(periods))
	for i, p := range periods {
		ids[i] = p.ID
	}
	existing, err := s.store.ExistingPeriodIDs(ctx, tenantID, ids)
	if err != nil {
		return result, err
	}

	missing := make([]Period, 0, len(periods))
	for _, p := range periods {
		if existing[p.ID] {
			continue
		}
		missing = append(missing, p)
	}
	if len(missing) == 0 {
		result.Skipped = len(periods)
		return result, nil
	}

	inserted, err := s.store.InsertPeriods(ctx, tenantID, missing)
	if err != nil {
		return result, err
	}
	result.Inserted = inserted
	result.Skipped = len(periods) - inserted
	return result, nil
}
