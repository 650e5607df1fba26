package schedule

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

func (s *Store) CreateSchedule(ctx context.Context, tenantID string, payload Schedule) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
    INSERT INTO cutoff_schedules (tenant_id, kind, day_of_month, first_cutoff_day, last_cutoff_day, cutoff_weekday, release_offset_days)
    VALUES ($1,$2,$3,$4,$5,$6,$7)
    RETURNING id
  `, tenantID, payload.Kind, payload.DayOfMonth, payload.FirstCutoffDay, payload.LastCutoffDay, nullIfEmpty(payload.CutoffWeekday), payload.ReleaseOffsetDays).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) ListSchedules(ctx context.Context, tenantID string) ([]Schedule, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, kind, day_of_month, first_cutoff_day, last_cutoff_day, COALESCE(cutoff_weekday, ''), release_offset_days, created_at
    FROM cutoff_schedules
    WHERE tenant_id = $1 AND deleted_at IS NULL
    ORDER BY created_at
  `, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var schedules []Schedule
	for rows.Next() {
		var sc Schedule
		if err := rows.Scan(&sc.ID, &sc.Kind, &sc.DayOfMonth, &sc.FirstCutoffDay, &sc.LastCutoffDay, &sc.CutoffWeekday, &sc.ReleaseOffsetDays, &sc.CreatedAt); err != nil {
			return nil, err
		}
		schedules = append(schedules, sc)
	}
	return schedules, nil
}

func (s *Store) GetSchedule(ctx context.Context, tenantID, scheduleID string) (Schedule, error) {
	var sc Schedule
	err := s.DB.QueryRow(ctx, `
    SELECT id, kind, day_of_month, first_cutoff_day, last_cutoff_day, COALESCE(cutoff_weekday, ''), release_offset_days, created_at
    FROM cutoff_schedules
    WHERE tenant_id = $1 AND id = $2 AND deleted_at IS NULL
  `, tenantID, scheduleID).Scan(&sc.ID, &sc.Kind, &sc.DayOfMonth, &sc.FirstCutoffDay, &sc.LastCutoffDay, &sc.CutoffWeekday, &sc.ReleaseOffsetDays, &sc.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Schedule{}, ErrScheduleNotFound
	}
	if err != nil {
		return Schedule{}, err
	}
	return sc, nil
}

func (s *Store) UpdateSchedule(ctx context.Context, tenantID string, payload Schedule) error {
	tag, err := s.DB.Exec(ctx, `
    UPDATE cutoff_schedules
    SET kind = $1, day_of_month = $2, first_cutoff_day = $3, last_cutoff_day = $4, cutoff_weekday = $5, release_offset_days = $6, updated_at = now()
    WHERE tenant_id = $7 AND id = $8 AND deleted_at IS NULL
  `, payload.Kind, payload.DayOfMonth, payload.FirstCutoffDay, payload.LastCutoffDay, nullIfEmpty(payload.CutoffWeekday), payload.ReleaseOffsetDays, tenantID, payload.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrScheduleNotFound
	}
	return nil
}

func (s *Store) SoftDeleteSchedule(ctx context.Context, tenantID, scheduleID string) error {
	tag, err := s.DB.Exec(ctx, `
    UPDATE cutoff_schedules SET deleted_at = now()
    WHERE tenant_id = $1 AND id = $2 AND deleted_at IS NULL
  `, tenantID, scheduleID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrScheduleNotFound
	}
	return nil
}

func (s *Store) ListScheduleIDs(ctx context.Context, tenantID string) ([]string, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id FROM cutoff_schedules WHERE tenant_id = $1 AND deleted_at IS NULL
  `, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// ExistingPeriodIDs resolves which of the candidate ids are already
// materialized, in a single round trip.
func (s *Store) ExistingPeriodIDs(ctx context.Context, tenantID string, ids []string) (map[string]bool, error) {
	existing := make(map[string]bool, len(ids))
	if len(ids) == 0 {
		return existing, nil
	}
	rows, err := s.DB.Query(ctx, `
    SELECT id FROM cutoff_periods WHERE tenant_id = $1 AND id = ANY($2)
  `, tenantID, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		existing[id] = true
	}
	return existing, nil
}

// InsertPeriods bulk-inserts periods in one statement. The primary key on the
// deterministic id is the concurrency guard: duplicate rows racing in from
// another run are skipped, not failed.
func (s *Store) InsertPeriods(ctx context.Context, tenantID string, periods []Period) (int, error) {
	if len(periods) == 0 {
		return 0, nil
	}

	var sb strings.Builder
	sb.WriteString(`
    INSERT INTO cutoff_periods (id, tenant_id, schedule_id, start_date, end_date, release_date, period_type, status)
    VALUES `)
	args := make([]any, 0, len(periods)*8)
	for i, p := range periods {
		if i > 0 {
			sb.WriteString(",")
		}
		base := i * 8
		fmt.Fprintf(&sb, "($%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d)", base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8)
		args = append(args, p.ID, tenantID, p.ScheduleID, p.StartDate, p.EndDate, p.ReleaseDate, p.PeriodType, p.Status)
	}
	sb.WriteString(" ON CONFLICT (id) DO NOTHING")

	tag, err := s.DB.Exec(ctx, sb.String(), args...)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func nullIfEmpty(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}
