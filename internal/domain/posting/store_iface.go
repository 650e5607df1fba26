package posting

import (
	"context"

	"github.com/shopspring/decimal"
)

type StoreAPI interface {
	PeriodStatus(ctx context.Context, tenantID, periodID string) (string, error)
	HasGovernmentRecords(ctx context.Context, tenantID, periodID string) (bool, error)
	ListEmployeeLinks(ctx context.Context, tenantID, periodID string) ([]EmployeeLink, error)
	Begin(ctx context.Context) (TxStore, error)
}

// TxStore is one database transaction over the ledger tables. Posting opens
// one per employee; reversal opens a single one for the whole period.
type TxStore interface {
	PendingDeductionLines(ctx context.Context, tenantID, salaryRecordID string) ([]SalaryLine, error)
	PendingAllowanceLines(ctx context.Context, tenantID, salaryRecordID string) ([]SalaryLine, error)
	Contributions(ctx context.Context, tenantID, salaryRecordID string) ([]Contribution, error)
	DeductionPlanForUpdate(ctx context.Context, tenantID, planID string) (Plan, error)
	AllowancePlanForUpdate(ctx context.Context, tenantID, planID string) (Plan, error)
	UpdateDeductionPlan(ctx context.Context, tenantID string, p Plan) error
	UpdateAllowancePlan(ctx context.Context, tenantID string, p Plan) error
	InsertDeductionEntry(ctx context.Context, tenantID string, e LedgerEntry) error
	InsertAllowanceEntry(ctx context.Context, tenantID string, e LedgerEntry) error
	InsertGovernmentRecord(ctx context.Context, tenantID string, r GovernmentPaymentRecord) error
	MarkDeductionLinesPosted(ctx context.Context, tenantID string, lineIDs []string) error
	MarkAllowanceLinesPosted(ctx context.Context, tenantID string, lineIDs []string) error

	DeductionSumsByPlan(ctx context.Context, tenantID, periodID string) (map[string]decimal.Decimal, error)
	AllowanceSumsByPlan(ctx context.Context, tenantID, periodID string) (map[string]decimal.Decimal, error)
	DeleteGovernmentRecords(ctx context.Context, tenantID, periodID string) error
	DeleteDeductionEntries(ctx context.Context, tenantID, periodID string) error
	DeleteAllowanceEntries(ctx context.Context, tenantID, periodID string) error
	ClearPostedFlags(ctx context.Context, tenantID, periodID string) error

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
