package posting

import (
	"time"

	"github.com/shopspring/decimal"
)

// PostResult is returned synchronously from post and repost. Success means
// every employee committed; a partial batch still reports how many did.
type PostResult struct {
	Success        bool            `json:"success"`
	ProcessedCount int             `json:"processedCount"`
	Errors         []EmployeeError `json:"errors"`
}

type EmployeeError struct {
	EmployeeID string `json:"employeeId"`
	Category   string `json:"category"`
	Reason     string `json:"reason"`
}

// EmployeeLink ties an employee to a cutoff period and its computed salary
// record. It is the unit the posting batch iterates over.
type EmployeeLink struct {
	ID             string `json:"id"`
	EmployeeID     string `json:"employeeId"`
	SalaryRecordID string `json:"salaryRecordId"`
}

// SalaryLine is one itemized deduction or allowance on a computed salary
// record. Posted lines are skipped by later runs.
type SalaryLine struct {
	ID     string          `json:"id"`
	PlanID string          `json:"planId"`
	Amount decimal.Decimal `json:"amount"`
	Note   string          `json:"note,omitempty"`
	Posted bool            `json:"posted"`
}

type Contribution struct {
	Type          string          `json:"type"`
	Amount        decimal.Decimal `json:"amount"`
	EmployeeShare decimal.Decimal `json:"employeeShare"`
	EmployerShare decimal.Decimal `json:"employerShare"`
	BasisAmount   decimal.Decimal `json:"basisAmount"`
}

// Plan is a balance-bearing loan or allowance account. Deduction plans
// drain toward zero and close there; allowance plans carry a running
// credit.
type Plan struct {
	ID               string          `json:"id"`
	RemainingBalance decimal.Decimal `json:"remainingBalance"`
	TotalApplied     decimal.Decimal `json:"totalAppliedAmount"`
	IsOpen           bool            `json:"isOpen"`
}

// LedgerEntry is one append-only movement on a plan. BeforeBalance always
// equals the plan's balance at the instant the entry was written, so the
// chain of entries replays the plan's whole history.
type LedgerEntry struct {
	ID             string          `json:"id"`
	PlanID         string          `json:"planId"`
	CutoffPeriodID string          `json:"cutoffPeriodId"`
	Amount         decimal.Decimal `json:"amount"`
	BeforeBalance  decimal.Decimal `json:"beforeBalance"`
	AfterBalance   decimal.Decimal `json:"afterBalance"`
	Note           string          `json:"note,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
}

type GovernmentPaymentRecord struct {
	ID               string          `json:"id"`
	EmployeeID       string          `json:"employeeId"`
	CutoffPeriodID   string          `json:"cutoffPeriodId"`
	ContributionType string          `json:"contributionType"`
	Amount           decimal.Decimal `json:"amount"`
	EmployeeShare    decimal.Decimal `json:"employeeShare"`
	EmployerShare    decimal.Decimal `json:"employerShare"`
	BasisAmount      decimal.Decimal `json:"basisAmount"`
}
