package posting

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

func (s *Store) PeriodStatus(ctx context.Context, tenantID, periodID string) (string, error) {
	var status string
	err := s.DB.QueryRow(ctx, `
    SELECT status
    FROM cutoff_periods
    WHERE tenant_id = $1 AND id = $2
  `, tenantID, periodID).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrPeriodNotFound
	}
	return status, err
}

func (s *Store) HasGovernmentRecords(ctx context.Context, tenantID, periodID string) (bool, error) {
	var exists bool
	err := s.DB.QueryRow(ctx, `
    SELECT EXISTS (
      SELECT 1 FROM government_payment_records
      WHERE tenant_id = $1 AND cutoff_period_id = $2
    )
  `, tenantID, periodID).Scan(&exists)
	return exists, err
}

func (s *Store) ListEmployeeLinks(ctx context.Context, tenantID, periodID string) ([]EmployeeLink, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, employee_id, salary_record_id
    FROM employee_period_links
    WHERE tenant_id = $1 AND period_id = $2
    ORDER BY employee_id
  `, tenantID, periodID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	links := make([]EmployeeLink, 0)
	for rows.Next() {
		var l EmployeeLink
		if err := rows.Scan(&l.ID, &l.EmployeeID, &l.SalaryRecordID); err != nil {
			return nil, err
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

type txStore struct {
	tx pgx.Tx
}

func (t *txStore) Commit(ctx context.Context) error { return t.tx.Commit(ctx) }

func (t *txStore) Rollback(ctx context.Context) error { return t.tx.Rollback(ctx) }

func (t *txStore) PendingDeductionLines(ctx context.Context, tenantID, salaryRecordID string) ([]SalaryLine, error) {
	return t.pendingLines(ctx, "salary_deduction_lines", tenantID, salaryRecordID)
}

func (t *txStore) PendingAllowanceLines(ctx context.Context, tenantID, salaryRecordID string) ([]SalaryLine, error) {
	return t.pendingLines(ctx, "salary_allowance_lines", tenantID, salaryRecordID)
}

func (t *txStore) pendingLines(ctx context.Context, table, tenantID, salaryRecordID string) ([]SalaryLine, error) {
	rows, err := t.tx.Query(ctx, `
    SELECT id, plan_id, amount, COALESCE(note, ''), posted
    FROM `+table+`
    WHERE tenant_id = $1 AND salary_record_id = $2 AND NOT posted
    ORDER BY id
  `, tenantID, salaryRecordID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	lines := make([]SalaryLine, 0)
	for rows.Next() {
		var l SalaryLine
		if err := rows.Scan(&l.ID, &l.PlanID, &l.Amount, &l.Note, &l.Posted); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (t *txStore) Contributions(ctx context.Context, tenantID, salaryRecordID string) ([]Contribution, error) {
	rows, err := t.tx.Query(ctx, `
    SELECT contribution_type, amount, employee_share, employer_share, basis_amount
    FROM salary_contributions
    WHERE tenant_id = $1 AND salary_record_id = $2
    ORDER BY contribution_type
  `, tenantID, salaryRecordID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	contributions := make([]Contribution, 0)
	for rows.Next() {
		var c Contribution
		if err := rows.Scan(&c.Type, &c.Amount, &c.EmployeeShare, &c.EmployerShare, &c.BasisAmount); err != nil {
			return nil, err
		}
		contributions = append(contributions, c)
	}
	return contributions, rows.Err()
}

func (t *txStore) DeductionPlanForUpdate(ctx context.Context, tenantID, planID string) (Plan, error) {
	return t.planForUpdate(ctx, "deduction_plans", tenantID, planID)
}

func (t *txStore) AllowancePlanForUpdate(ctx context.Context, tenantID, planID string) (Plan, error) {
	return t.planForUpdate(ctx, "allowance_plans", tenantID, planID)
}

func (t *txStore) planForUpdate(ctx context.Context, table, tenantID, planID string) (Plan, error) {
	var p Plan
	err := t.tx.QueryRow(ctx, `
    SELECT id, remaining_balance, total_applied_amount, is_open
    FROM `+table+`
    WHERE tenant_id = $1 AND id = $2
    FOR UPDATE
  `, tenantID, planID).Scan(&p.ID, &p.RemainingBalance, &p.TotalApplied, &p.IsOpen)
	if errors.Is(err, pgx.ErrNoRows) {
		return Plan{}, ErrPlanNotFound
	}
	return p, err
}

func (t *txStore) UpdateDeductionPlan(ctx context.Context, tenantID string, p Plan) error {
	return t.updatePlan(ctx, "deduction_plans", tenantID, p)
}

func (t *txStore) UpdateAllowancePlan(ctx context.Context, tenantID string, p Plan) error {
	return t.updatePlan(ctx, "allowance_plans", tenantID, p)
}

func (t *txStore) updatePlan(ctx context.Context, table, tenantID string, p Plan) error {
	tag, err := t.tx.Exec(ctx, `
    UPDATE `+table+`
    SET remaining_balance = $3, total_applied_amount = $4, is_open = $5
    WHERE tenant_id = $1 AND id = $2
  `, tenantID, p.ID, p.RemainingBalance, p.TotalApplied, p.IsOpen)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPlanNotFound
	}
	return nil
}

func (t *txStore) InsertDeductionEntry(ctx context.Context, tenantID string, e LedgerEntry) error {
	return t.insertEntry(ctx, "deduction_ledger_entries", tenantID, e)
}

func (t *txStore) InsertAllowanceEntry(ctx context.Context, tenantID string, e LedgerEntry) error {
	return t.insertEntry(ctx, "allowance_ledger_entries", tenantID, e)
}

func (t *txStore) insertEntry(ctx context.Context, table, tenantID string, e LedgerEntry) error {
	_, err := t.tx.Exec(ctx, `
    INSERT INTO `+table+` (tenant_id, id, plan_id, cutoff_period_id, amount, before_balance, after_balance, note)
    VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
  `, tenantID, e.ID, e.PlanID, e.CutoffPeriodID, e.Amount, e.BeforeBalance, e.AfterBalance, nullIfEmpty(e.Note))
	return err
}

func (t *txStore) InsertGovernmentRecord(ctx context.Context, tenantID string, r GovernmentPaymentRecord) error {
	_, err := t.tx.Exec(ctx, `
    INSERT INTO government_payment_records
      (tenant_id, id, employee_id, cutoff_period_id, contribution_type, amount, employee_share, employer_share, basis_amount)
    VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
  `, tenantID, r.ID, r.EmployeeID, r.CutoffPeriodID, r.ContributionType, r.Amount, r.EmployeeShare, r.EmployerShare, r.BasisAmount)
	return err
}

func (t *txStore) MarkDeductionLinesPosted(ctx context.Context, tenantID string, lineIDs []string) error {
	return t.markPosted(ctx, "salary_deduction_lines", tenantID, lineIDs)
}

func (t *txStore) MarkAllowanceLinesPosted(ctx context.Context, tenantID string, lineIDs []string) error {
	return t.markPosted(ctx, "salary_allowance_lines", tenantID, lineIDs)
}

func (t *txStore) markPosted(ctx context.Context, table, tenantID string, lineIDs []string) error {
	_, err := t.tx.Exec(ctx, `
    UPDATE `+table+`
    SET posted = TRUE
    WHERE tenant_id = $1 AND id = ANY($2)
  `, tenantID, lineIDs)
	return err
}

func (t *txStore) DeductionSumsByPlan(ctx context.Context, tenantID, periodID string) (map[string]decimal.Decimal, error) {
	return t.sumsByPlan(ctx, "deduction_ledger_entries", tenantID, periodID)
}

func (t *txStore) AllowanceSumsByPlan(ctx context.Context, tenantID, periodID string) (map[string]decimal.Decimal, error) {
	return t.sumsByPlan(ctx, "allowance_ledger_entries", tenantID, periodID)
}

func (t *txStore) sumsByPlan(ctx context.Context, table, tenantID, periodID string) (map[string]decimal.Decimal, error) {
	rows, err := t.tx.Query(ctx, `
    SELECT plan_id, SUM(amount)
    FROM `+table+`
    WHERE tenant_id = $1 AND cutoff_period_id = $2
    GROUP BY plan_id
  `, tenantID, periodID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sums := make(map[string]decimal.Decimal)
	for rows.Next() {
		var planID string
		var sum decimal.Decimal
		if err := rows.Scan(&planID, &sum); err != nil {
			return nil, err
		}
		sums[planID] = sum
	}
	return sums, rows.Err()
}

func (t *txStore) DeleteGovernmentRecords(ctx context.Context, tenantID, periodID string) error {
	_, err := t.tx.Exec(ctx, `
    DELETE FROM government_payment_records
    WHERE tenant_id = $1 AND cutoff_period_id = $2
  `, tenantID, periodID)
	return err
}

func (t *txStore) DeleteDeductionEntries(ctx context.Context, tenantID, periodID string) error {
	return t.deleteEntries(ctx, "deduction_ledger_entries", tenantID, periodID)
}

func (t *txStore) DeleteAllowanceEntries(ctx context.Context, tenantID, periodID string) error {
	return t.deleteEntries(ctx, "allowance_ledger_entries", tenantID, periodID)
}

func (t *txStore) deleteEntries(ctx context.Context, table, tenantID, periodID string) error {
	_, err := t.tx.Exec(ctx, `
    DELETE FROM `+table+`
    WHERE tenant_id = $1 AND cutoff_period_id = $2
  `, tenantID, periodID)
	return err
}

// ClearPostedFlags reopens the period's salary line items so the next
// posting run picks them up again.
func (t *txStore) ClearPostedFlags(ctx context.Context, tenantID, periodID string) error {
	for _, table := range []string{"salary_deduction_lines", "salary_allowance_lines"} {
		if _, err := t.tx.Exec(ctx, `
      UPDATE `+table+` t
      SET posted = FALSE
      FROM employee_period_links l
      WHERE t.tenant_id = $1 AND l.tenant_id = t.tenant_id
        AND l.period_id = $2 AND t.salary_record_id = l.salary_record_id
    `, tenantID, periodID); err != nil {
			return err
		}
	}
	return nil
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}
