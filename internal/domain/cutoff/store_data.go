package cutoff

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

const periodColumns = `id, schedule_id, start_date, end_date, release_date, period_type, status,
    total_gross, total_deductions, total_net, timekeeping_job_id, payroll_job_id, payslip_job_id`

func scanPeriod(row pgx.Row) (Period, error) {
	var p Period
	err := row.Scan(&p.ID, &p.ScheduleID, &p.StartDate, &p.EndDate, &p.ReleaseDate, &p.PeriodType, &p.Status,
		&p.TotalGross, &p.TotalDeductions, &p.TotalNet, &p.TimekeepingJobID, &p.PayrollJobID, &p.PayslipJobID)
	return p, err
}

func (s *Store) GetPeriod(ctx context.Context, tenantID, periodID string) (Period, error) {
	p, err := scanPeriod(s.DB.QueryRow(ctx, `
    SELECT `+periodColumns+`
    FROM cutoff_periods
    WHERE tenant_id = $1 AND id = $2
  `, tenantID, periodID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Period{}, ErrPeriodNotFound
	}
	return p, err
}

func (s *Store) ListPeriods(ctx context.Context, tenantID, status string, limit, offset int) ([]Period, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT `+periodColumns+`
    FROM cutoff_periods
    WHERE tenant_id = $1 AND ($2 = '' OR status = $2)
    ORDER BY end_date DESC, id
    LIMIT $3 OFFSET $4
  `, tenantID, status, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	periods := make([]Period, 0)
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, err
		}
		periods = append(periods, p)
	}
	return periods, rows.Err()
}

func (s *Store) CountPeriods(ctx context.Context, tenantID, status string) (int, error) {
	var count int
	err := s.DB.QueryRow(ctx, `
    SELECT COUNT(*)
    FROM cutoff_periods
    WHERE tenant_id = $1 AND ($2 = '' OR status = $2)
  `, tenantID, status).Scan(&count)
	return count, err
}

func (s *Store) UpdateStatus(ctx context.Context, tenantID, periodID, from, to string) error {
	tag, err := s.DB.Exec(ctx, `
    UPDATE cutoff_periods
    SET status = $4
    WHERE tenant_id = $1 AND id = $2 AND status = $3
  `, tenantID, periodID, from, to)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: period %s is no longer %s", ErrInvalidTransition, periodID, from)
	}
	return nil
}

func (s *Store) SetPayrollJob(ctx context.Context, tenantID, periodID, jobID string) error {
	tag, err := s.DB.Exec(ctx, `
    UPDATE cutoff_periods
    SET payroll_job_id = $3
    WHERE tenant_id = $1 AND id = $2
  `, tenantID, periodID, jobID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPeriodNotFound
	}
	return nil
}

func (s *Store) CreateTasks(ctx context.Context, tenantID string, tasks []ApprovalTask) error {
	for _, t := range tasks {
		if _, err := s.DB.Exec(ctx, `
      INSERT INTO approval_tasks (tenant_id, id, period_id, approver_id, level, status)
      VALUES ($1, $2, $3, $4, $5, $6)
    `, tenantID, t.ID, t.PeriodID, t.ApproverID, t.Level, t.Status); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) OpenTaskCount(ctx context.Context, tenantID, periodID string) (int, error) {
	var count int
	err := s.DB.QueryRow(ctx, `
    SELECT COUNT(*)
    FROM approval_tasks
    WHERE tenant_id = $1 AND period_id = $2 AND status = $3
  `, tenantID, periodID, TaskOpen).Scan(&count)
	return count, err
}

func (s *Store) OpenTaskForApprover(ctx context.Context, tenantID, periodID, approverID string) (ApprovalTask, error) {
	var t ApprovalTask
	err := s.DB.QueryRow(ctx, `
    SELECT id, period_id, approver_id, level, status, remarks, created_at, closed_at
    FROM approval_tasks
    WHERE tenant_id = $1 AND period_id = $2 AND approver_id = $3 AND status = $4
  `, tenantID, periodID, approverID, TaskOpen).
		Scan(&t.ID, &t.PeriodID, &t.ApproverID, &t.Level, &t.Status, &t.Remarks, &t.CreatedAt, &t.ClosedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ApprovalTask{}, ErrTaskNotFound
	}
	return t, err
}

func (s *Store) CloseTask(ctx context.Context, tenantID, taskID, status string, remarks *string) error {
	tag, err := s.DB.Exec(ctx, `
    UPDATE approval_tasks
    SET status = $3, remarks = COALESCE($4, remarks), closed_at = $5
    WHERE tenant_id = $1 AND id = $2 AND status = $6
  `, tenantID, taskID, status, remarks, time.Now().UTC(), TaskOpen)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTaskNotFound
	}
	return nil
}

func (s *Store) CloseOpenTasks(ctx context.Context, tenantID, periodID string) error {
	_, err := s.DB.Exec(ctx, `
    UPDATE approval_tasks
    SET status = $3, closed_at = $4
    WHERE tenant_id = $1 AND period_id = $2 AND status = $5
  `, tenantID, periodID, TaskClosed, time.Now().UTC(), TaskOpen)
	return err
}

func (s *Store) ListTasks(ctx context.Context, tenantID, periodID string) ([]ApprovalTask, error) {
	return s.listTasks(ctx, `
    SELECT id, period_id, approver_id, level, status, remarks, created_at, closed_at
    FROM approval_tasks
    WHERE tenant_id = $1 AND period_id = $2
    ORDER BY level, created_at
  `, tenantID, periodID)
}

func (s *Store) ListTasksForApprover(ctx context.Context, tenantID, approverID string) ([]ApprovalTask, error) {
	return s.listTasks(ctx, `
    SELECT id, period_id, approver_id, level, status, remarks, created_at, closed_at
    FROM approval_tasks
    WHERE tenant_id = $1 AND approver_id = $2 AND status = 'open'
    ORDER BY created_at
  `, tenantID, approverID)
}

func (s *Store) listTasks(ctx context.Context, sql string, args ...any) ([]ApprovalTask, error) {
	rows, err := s.DB.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := make([]ApprovalTask, 0)
	for rows.Next() {
		var t ApprovalTask
		if err := rows.Scan(&t.ID, &t.PeriodID, &t.ApproverID, &t.Level, &t.Status, &t.Remarks, &t.CreatedAt, &t.ClosedAt); err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (s *Store) AddHistory(ctx context.Context, tenantID string, entry HistoryEntry) error {
	_, err := s.DB.Exec(ctx, `
    INSERT INTO cutoff_status_history (tenant_id, id, period_id, actor_id, action, from_status, to_status, level, remarks)
    VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
  `, tenantID, entry.ID, entry.PeriodID, entry.ActorID, entry.Action, entry.FromStatus, entry.ToStatus, entry.Level, entry.Remarks)
	return err
}

func (s *Store) ListHistory(ctx context.Context, tenantID, periodID string) ([]HistoryEntry, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, period_id, actor_id, action, from_status, to_status, level, remarks, created_at
    FROM cutoff_status_history
    WHERE tenant_id = $1 AND period_id = $2
    ORDER BY created_at
  `, tenantID, periodID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]HistoryEntry, 0)
	for rows.Next() {
		var e HistoryEntry
		if err := rows.Scan(&e.ID, &e.PeriodID, &e.ActorID, &e.Action, &e.FromStatus, &e.ToStatus, &e.Level, &e.Remarks, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *Store) GetTotals(ctx context.Context, tenantID, periodID string) (Totals, error) {
	t := Totals{PeriodID: periodID}
	err := s.DB.QueryRow(ctx, `
    SELECT COALESCE(total_gross, 0), COALESCE(total_deductions, 0), COALESCE(total_net, 0),
      (SELECT COUNT(*) FROM employee_period_links l WHERE l.tenant_id = p.tenant_id AND l.period_id = p.id)
    FROM cutoff_periods p
    WHERE tenant_id = $1 AND id = $2
  `, tenantID, periodID).Scan(&t.TotalGross, &t.TotalDeductions, &t.TotalNet, &t.EmployeeCount)
	if errors.Is(err, pgx.ErrNoRows) {
		return Totals{}, ErrPeriodNotFound
	}
	return t, err
}

func (s *Store) ListEmployeeLinkIDs(ctx context.Context, tenantID, periodID string) ([]string, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id
    FROM employee_period_links
    WHERE tenant_id = $1 AND period_id = $2
    ORDER BY employee_id
  `, tenantID, periodID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
