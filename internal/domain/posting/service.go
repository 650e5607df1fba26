package posting

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"payrolld/internal/platform/metrics"
)

const (
	statusApproved = "approved"
)

type Service struct {
	store   StoreAPI
	metrics *metrics.Collector
}

func NewService(store StoreAPI, collector *metrics.Collector) *Service {
	return &Service{store: store, metrics: collector}
}

// Post commits the period's computed amounts into the balance ledgers, one
// isolated transaction per employee. A failing employee is recorded and the
// batch moves on; committed employees stay committed whatever happens later
// in the batch.
func (s *Service) Post(ctx context.Context, tenantID, cutoffPeriodID string, reposting bool) (PostResult, error) {
	status, err := s.store.PeriodStatus(ctx, tenantID, cutoffPeriodID)
	if err != nil {
		return PostResult{}, err
	}
	if !reposting {
		if status != statusApproved {
			return PostResult{}, fmt.Errorf("%w: status is %s", ErrNotApproved, status)
		}
		posted, err := s.store.HasGovernmentRecords(ctx, tenantID, cutoffPeriodID)
		if err != nil {
			return PostResult{}, err
		}
		if posted {
			return PostResult{}, ErrAlreadyPosted
		}
	}

	links, err := s.store.ListEmployeeLinks(ctx, tenantID, cutoffPeriodID)
	if err != nil {
		return PostResult{}, err
	}

	result := PostResult{Errors: []EmployeeError{}}
	for _, link := range links {
		if err := s.postEmployee(ctx, tenantID, cutoffPeriodID, link); err != nil {
			slog.Warn("employee posting failed",
				"period", cutoffPeriodID, "employee", link.EmployeeID, "error", err)
			result.Errors = append(result.Errors, EmployeeError{
				EmployeeID: link.EmployeeID,
				Category:   categoryOf(err),
				Reason:     err.Error(),
			})
			continue
		}
		result.ProcessedCount++
	}
	result.Success = len(result.Errors) == 0
	s.metrics.RecordPosting(result.ProcessedCount, len(result.Errors))
	return result, nil
}

func (s *Service) postEmployee(ctx context.Context, tenantID, periodID string, link EmployeeLink) error {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return categorize(CategoryTransaction, err)
	}
	defer tx.Rollback(ctx)

	if err := s.postDeductions(ctx, tx, tenantID, periodID, link); err != nil {
		return categorize(CategoryDeduction, err)
	}
	if err := s.postAllowances(ctx, tx, tenantID, periodID, link); err != nil {
		return categorize(CategoryAllowance, err)
	}
	if err := s.postContributions(ctx, tx, tenantID, periodID, link); err != nil {
		return categorize(CategoryGovernment, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return categorize(CategoryTransaction, err)
	}
	return nil
}

func (s *Service) postDeductions(ctx context.Context, tx TxStore, tenantID, periodID string, link EmployeeLink) error {
	lines, err := tx.PendingDeductionLines(ctx, tenantID, link.SalaryRecordID)
	if err != nil {
		return err
	}
	lineIDs := make([]string, 0, len(lines))
	for _, line := range lines {
		plan, err := tx.DeductionPlanForUpdate(ctx, tenantID, line.PlanID)
		if err != nil {
			return err
		}
		if !plan.IsOpen {
			return fmt.Errorf("%w: %s", ErrPlanClosed, plan.ID)
		}
		entry := LedgerEntry{
			ID:             uuid.NewString(),
			PlanID:         plan.ID,
			CutoffPeriodID: periodID,
			Amount:         line.Amount.Neg(),
			BeforeBalance:  plan.RemainingBalance,
			AfterBalance:   plan.RemainingBalance.Sub(line.Amount),
			Note:           line.Note,
		}
		if err := tx.InsertDeductionEntry(ctx, tenantID, entry); err != nil {
			return err
		}
		plan.RemainingBalance = entry.AfterBalance
		plan.TotalApplied = plan.TotalApplied.Add(line.Amount)
		if plan.RemainingBalance.Sign() <= 0 {
			plan.IsOpen = false
		}
		if err := tx.UpdateDeductionPlan(ctx, tenantID, plan); err != nil {
			return err
		}
		lineIDs = append(lineIDs, line.ID)
	}
	if len(lineIDs) == 0 {
		return nil
	}
	return tx.MarkDeductionLinesPosted(ctx, tenantID, lineIDs)
}

func (s *Service) postAllowances(ctx context.Context, tx TxStore, tenantID, periodID string, link EmployeeLink) error {
	lines, err := tx.PendingAllowanceLines(ctx, tenantID, link.SalaryRecordID)
	if err != nil {
		return err
	}
	lineIDs := make([]string, 0, len(lines))
	for _, line := range lines {
		plan, err := tx.AllowancePlanForUpdate(ctx, tenantID, line.PlanID)
		if err != nil {
			return err
		}
		entry := LedgerEntry{
			ID:             uuid.NewString(),
			PlanID:         plan.ID,
			CutoffPeriodID: periodID,
			Amount:         line.Amount,
			BeforeBalance:  plan.RemainingBalance,
			AfterBalance:   plan.RemainingBalance.Add(line.Amount),
			Note:           line.Note,
		}
		if err := tx.InsertAllowanceEntry(ctx, tenantID, entry); err != nil {
			return err
		}
		plan.RemainingBalance = entry.AfterBalance
		plan.TotalApplied = plan.TotalApplied.Add(line.Amount)
		if err := tx.UpdateAllowancePlan(ctx, tenantID, plan); err != nil {
			return err
		}
		lineIDs = append(lineIDs, line.ID)
	}
	if len(lineIDs) == 0 {
		return nil
	}
	return tx.MarkAllowanceLinesPosted(ctx, tenantID, lineIDs)
}

func (s *Service) postContributions(ctx context.Context, tx TxStore, tenantID, periodID string, link EmployeeLink) error {
	contributions, err := tx.Contributions(ctx, tenantID, link.SalaryRecordID)
	if err != nil {
		return err
	}
	for _, c := range contributions {
		if c.Amount.IsZero() {
			continue
		}
		record := GovernmentPaymentRecord{
			ID:               uuid.NewString(),
			EmployeeID:       link.EmployeeID,
			CutoffPeriodID:   periodID,
			ContributionType: c.Type,
			Amount:           c.Amount,
			BasisAmount:      c.BasisAmount,
		}
		// Only SSS carries the employee/employer split.
		if c.Type == ContributionSSS {
			record.EmployeeShare = c.EmployeeShare
			record.EmployerShare = c.EmployerShare
		}
		if err := tx.InsertGovernmentRecord(ctx, tenantID, record); err != nil {
			return err
		}
	}
	return nil
}

// Reverse undoes a prior posting in one all-or-nothing transaction. Every
// restoration is scoped to entries tagged with cutoffPeriodID, so plans
// posted against by later periods still land on exactly their pre-posting
// state for this one.
func (s *Service) Reverse(ctx context.Context, tenantID, cutoffPeriodID string) error {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	deductionSums, err := tx.DeductionSumsByPlan(ctx, tenantID, cutoffPeriodID)
	if err != nil {
		return err
	}
	allowanceSums, err := tx.AllowanceSumsByPlan(ctx, tenantID, cutoffPeriodID)
	if err != nil {
		return err
	}

	for planID, sum := range deductionSums {
		plan, err := tx.DeductionPlanForUpdate(ctx, tenantID, planID)
		if err != nil {
			return err
		}
		// Deduction entries are negative; subtracting the sum adds the
		// posted amount back.
		plan.RemainingBalance = plan.RemainingBalance.Sub(sum)
		plan.TotalApplied = plan.TotalApplied.Add(sum)
		if plan.RemainingBalance.Sign() > 0 {
			plan.IsOpen = true
		}
		if err := tx.UpdateDeductionPlan(ctx, tenantID, plan); err != nil {
			return err
		}
	}
	for planID, sum := range allowanceSums {
		plan, err := tx.AllowancePlanForUpdate(ctx, tenantID, planID)
		if err != nil {
			return err
		}
		plan.RemainingBalance = plan.RemainingBalance.Sub(sum)
		plan.TotalApplied = plan.TotalApplied.Sub(sum)
		if err := tx.UpdateAllowancePlan(ctx, tenantID, plan); err != nil {
			return err
		}
	}

	if err := tx.DeleteGovernmentRecords(ctx, tenantID, cutoffPeriodID); err != nil {
		return err
	}
	if err := tx.DeleteDeductionEntries(ctx, tenantID, cutoffPeriodID); err != nil {
		return err
	}
	if err := tx.DeleteAllowanceEntries(ctx, tenantID, cutoffPeriodID); err != nil {
		return err
	}
	if err := tx.ClearPostedFlags(ctx, tenantID, cutoffPeriodID); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	s.metrics.RecordReversal()
	return nil
}

type postError struct {
	category string
	err      error
}

func (e *postError) Error() string { return e.err.Error() }

func (e *postError) Unwrap() error { return e.err }

func categorize(category string, err error) error {
	return &postError{category: category, err: err}
}

func categoryOf(err error) string {
	if pe, ok := err.(*postError); ok {
		return pe.category
	}
	return CategoryTransaction
}
