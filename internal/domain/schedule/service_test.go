package schedule

import (
	"context"
	"testing"
	"time"
)

type fakeStore struct {
	schedules map[string]Schedule
	periods   map[string]Period
	inserts   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{schedules: map[string]Schedule{}, periods: map[string]Period{}}
}

func (f *fakeStore) CreateSchedule(ctx context.Context, tenantID string, s Schedule) (string, error) {
	f.schedules[s.ID] = s
	return s.ID, nil
}

func (f *fakeStore) ListSchedules(ctx context.Context, tenantID string) ([]Schedule, error) {
	out := make([]Schedule, 0, len(f.schedules))
	for _, s := range f.schedules {
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeStore) GetSchedule(ctx context.Context, tenantID, scheduleID string) (Schedule, error) {
	s, ok := f.schedules[scheduleID]
	if !ok {
		return Schedule{}, ErrScheduleNotFound
	}
	return s, nil
}

func (f *fakeStore) UpdateSchedule(ctx context.Context, tenantID string, s Schedule) error {
	if _, ok := f.schedules[s.ID]; !ok {
		return ErrScheduleNotFound
	}
	f.schedules[s.ID] = s
	return nil
}

func (f *fakeStore) SoftDeleteSchedule(ctx context.Context, tenantID, scheduleID string) error {
	if _, ok := f.schedules[scheduleID]; !ok {
		return ErrScheduleNotFound
	}
	delete(f.schedules, scheduleID)
	return nil
}

func (f *fakeStore) ListScheduleIDs(ctx context.Context, tenantID string) ([]string, error) {
	ids := make([]string, 0, len(f.schedules))
	for id := range f.schedules {
		ids = append(ids, id)
	}
	return ids, nil
}

func (f *fakeStore) ExistingPeriodIDs(ctx context.Context, tenantID string, ids []string) (map[string]bool, error) {
	existing := map[string]bool{}
	for _, id := range ids {
		if _, ok := f.periods[id]; ok {
			existing[id] = true
		}
	}
	return existing, nil
}

func (f *fakeStore) InsertPeriods(ctx context.Context, tenantID string, periods []Period) (int, error) {
	inserted := 0
	for _, p := range periods {
		if _, ok := f.periods[p.ID]; ok {
			continue
		}
		f.periods[p.ID] = p
		inserted++
	}
	f.inserts++
	return inserted, nil
}

func TestGenerateAndSyncIsIdempotent(t *testing.T) {
	store := newFakeStore()
	store.schedules["sch-1"] = Schedule{ID: "sch-1", Kind: KindSemiMonthly, FirstCutoffDay: 15, LastCutoffDay: 30, ReleaseOffsetDays: 5}
	svc := NewService(store)
	ref := time.Date(2024, time.June, 3, 0, 0, 0, 0, time.UTC)

	first, err := svc.GenerateAndSync(context.Background(), "t1", "sch-1", ref, 8)
	if err != nil {
		t.Fatalf("first sync failed: %v", err)
	}
	if first.Generated != 8 || first.Inserted != 8 || first.Skipped != 0 {
		t.Fatalf("unexpected first sync result: %+v", first)
	}

	second, err := svc.GenerateAndSync(context.Background(), "t1", "sch-1", ref, 8)
	if err != nil {
		t.Fatalf("second sync failed: %v", err)
	}
	if second.Inserted != 0 || second.Skipped != 8 {
		t.Fatalf("second sync should insert nothing: %+v", second)
	}
	if len(store.periods) != 8 {
		t.Fatalf("expected 8 stored periods, got %d", len(store.periods))
	}
	if store.inserts != 1 {
		t.Fatalf("second sync should not issue an insert, got %d batches", store.inserts)
	}
}

func TestGenerateAndSyncOverlappingWindows(t *testing.T) {
	store := newFakeStore()
	store.schedules["sch-1"] = Schedule{ID: "sch-1", Kind: KindWeekly, CutoffWeekday: "friday"}
	svc := NewService(store)

	if _, err := svc.GenerateAndSync(context.Background(), "t1", "sch-1", time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC), 4); err != nil {
		t.Fatalf("first sync failed: %v", err)
	}
	// Four weeks later the generation windows overlap by nothing but the
	// derived ids still guard re-inserts of any shared period.
	result, err := svc.GenerateAndSync(context.Background(), "t1", "sch-1", time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC), 4)
	if err != nil {
		t.Fatalf("second sync failed: %v", err)
	}
	if result.Inserted != 2 || result.Skipped != 2 {
		t.Fatalf("expected 2 new and 2 shared periods, got %+v", result)
	}
}

func TestGenerateAndSyncAllSweepsEverySchedule(t *testing.T) {
	store := newFakeStore()
	store.schedules["m"] = Schedule{ID: "m", Kind: KindMonthly, DayOfMonth: 15}
	store.schedules["w"] = Schedule{ID: "w", Kind: KindWeekly, CutoffWeekday: "monday"}
	svc := NewService(store)

	results, err := svc.GenerateAndSyncAll(context.Background(), "t1", time.Date(2024, time.May, 2, 0, 0, 0, 0, time.UTC), 3)
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected one result per schedule, got %d", len(results))
	}
	for _, r := range results {
		if r.Inserted != 3 {
			t.Fatalf("schedule %s: expected 3 inserted, got %+v", r.ScheduleID, r)
		}
	}
	if len(store.periods) != 6 {
		t.Fatalf("expected 6 stored periods, got %d", len(store.periods))
	}
}

func TestCreateScheduleRejectsInvalid(t *testing.T) {
	svc := NewService(newFakeStore())
	_, err := svc.CreateSchedule(context.Background(), "t1", Schedule{ID: "bad", Kind: "biweekly"})
	if err == nil {
		t.Fatal("expected validation error")
	}
}
