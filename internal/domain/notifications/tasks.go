package notifications

import (
	"context"
	"fmt"

	"payrolld/internal/domain/cutoff"
)

// TaskMailer records an in-app notification for a newly assigned approval
// task and emails the approver when the tenant has email enabled.
type TaskMailer struct {
	Service *Service
}

func NewTaskMailer(service *Service) *TaskMailer {
	return &TaskMailer{Service: service}
}

func (m *TaskMailer) NotifyAssignment(ctx context.Context, tenantID string, task cutoff.ApprovalTask) error {
	title := "Approval requested"
	body := fmt.Sprintf("Cutoff period %s is waiting on your level %d approval.", task.PeriodID, task.Level)
	return m.Service.Create(ctx, tenantID, task.ApproverID, TypeTaskAssigned, title, body, task.PeriodID)
}
