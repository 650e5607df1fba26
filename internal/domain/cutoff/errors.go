package cutoff

import "errors"

var (
	ErrPeriodNotFound    = errors.New("cutoff period not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrOpenApprovalTasks = errors.New("open approval tasks exist for this period")
	ErrTaskNotFound      = errors.New("no open approval task for this approver")
	ErrNoApprovers       = errors.New("no approvers configured")
	ErrUnknownAction     = errors.New("unknown workflow action")
)
