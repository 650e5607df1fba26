package cutoff

import (
	"context"

	"payrolld/internal/domain/posting"
)

// ApproverDirectory resolves the tenant's configured approval chain.
type ApproverDirectory interface {
	ApproversByLevel(ctx context.Context, tenantID string, level int) ([]string, error)
	ApprovalChain(ctx context.Context, tenantID string) (map[int][]string, error)
}

// Notifier fans a transition out to interested accounts. Implementations
// must not block the workflow; delivery failures are theirs to absorb.
type Notifier interface {
	Send(ctx context.Context, tenantID, senderID string, recipientIDs []string, message, kind, contextID string)
}

// TaskMailer emails an approver about a newly assigned task.
type TaskMailer interface {
	NotifyAssignment(ctx context.Context, tenantID string, task ApprovalTask) error
}

// Poster commits and reverses a period's ledger effects.
type Poster interface {
	Post(ctx context.Context, tenantID, cutoffPeriodID string, reposting bool) (posting.PostResult, error)
	Reverse(ctx context.Context, tenantID, cutoffPeriodID string) error
}

// SalaryComputer recomputes the per-employee salary record behind an
// employee period link. The computation itself is an external service.
type SalaryComputer interface {
	ComputeSalary(ctx context.Context, tenantID, employeePeriodLinkID string) error
}
