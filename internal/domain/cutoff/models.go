package cutoff

import (
	"time"

	"github.com/shopspring/decimal"
)

// Period is the workflow's view of a materialized cutoff window. Totals and
// job ids stay nil until the external computation has run.
type Period struct {
	ID               string           `json:"id"`
	ScheduleID       string           `json:"scheduleId"`
	StartDate        time.Time        `json:"startDate"`
	EndDate          time.Time        `json:"endDate"`
	ReleaseDate      time.Time        `json:"releaseDate"`
	PeriodType       string           `json:"periodType"`
	Status           string           `json:"status"`
	TotalGross       *decimal.Decimal `json:"totalGross,omitempty"`
	TotalDeductions  *decimal.Decimal `json:"totalDeductions,omitempty"`
	TotalNet         *decimal.Decimal `json:"totalNet,omitempty"`
	TimekeepingJobID *string          `json:"timekeepingJobId,omitempty"`
	PayrollJobID     *string          `json:"payrollJobId,omitempty"`
	PayslipJobID     *string          `json:"payslipJobId,omitempty"`
}

type ApprovalTask struct {
	ID         string     `json:"id"`
	PeriodID   string     `json:"periodId"`
	ApproverID string     `json:"approverId"`
	Level      int        `json:"level"`
	Status     string     `json:"status"`
	Remarks    *string    `json:"remarks,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	ClosedAt   *time.Time `json:"closedAt,omitempty"`
}

// HistoryEntry records one workflow transition. Level carries the approval
// level for chain-driven entries and ManualOverrideLevel for overrides.
type HistoryEntry struct {
	ID         string    `json:"id"`
	PeriodID   string    `json:"periodId"`
	ActorID    string    `json:"actorId"`
	Action     string    `json:"action"`
	FromStatus string    `json:"fromStatus"`
	ToStatus   string    `json:"toStatus"`
	Level      int       `json:"level"`
	Remarks    string    `json:"remarks,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

type Totals struct {
	PeriodID        string          `json:"periodId"`
	EmployeeCount   int             `json:"employeeCount"`
	TotalGross      decimal.Decimal `json:"totalGross"`
	TotalDeductions decimal.Decimal `json:"totalDeductions"`
	TotalNet        decimal.Decimal `json:"totalNet"`
}
