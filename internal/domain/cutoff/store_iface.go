package cutoff

import "context"

type StoreAPI interface {
	GetPeriod(ctx context.Context, tenantID, periodID string) (Period, error)
	ListPeriods(ctx context.Context, tenantID, status string, limit, offset int) ([]Period, error)
	CountPeriods(ctx context.Context, tenantID, status string) (int, error)
	// UpdateStatus is the workflow's serialization point: it only moves a
	// period whose current status still equals from, and reports
	// ErrInvalidTransition otherwise.
	UpdateStatus(ctx context.Context, tenantID, periodID, from, to string) error
	SetPayrollJob(ctx context.Context, tenantID, periodID, jobID string) error

	CreateTasks(ctx context.Context, tenantID string, tasks []ApprovalTask) error
	OpenTaskCount(ctx context.Context, tenantID, periodID string) (int, error)
	OpenTaskForApprover(ctx context.Context, tenantID, periodID, approverID string) (ApprovalTask, error)
	CloseTask(ctx context.Context, tenantID, taskID, status string, remarks *string) error
	CloseOpenTasks(ctx context.Context, tenantID, periodID string) error
	ListTasks(ctx context.Context, tenantID, periodID string) ([]ApprovalTask, error)
	ListTasksForApprover(ctx context.Context, tenantID, approverID string) ([]ApprovalTask, error)

	AddHistory(ctx context.Context, tenantID string, entry HistoryEntry) error
	ListHistory(ctx context.Context, tenantID, periodID string) ([]HistoryEntry, error)

	GetTotals(ctx context.Context, tenantID, periodID string) (Totals, error)
	ListEmployeeLinkIDs(ctx context.Context, tenantID, periodID string) ([]string, error)
}
