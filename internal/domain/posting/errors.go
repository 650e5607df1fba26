package posting

import "errors"

var (
	ErrPeriodNotFound = errors.New("cutoff period not found")
	ErrNotApproved    = errors.New("period is not approved for posting")
	ErrAlreadyPosted  = errors.New("period already carries government payment records")
	ErrPlanNotFound   = errors.New("balance plan not found")
	ErrPlanClosed     = errors.New("balance plan is closed")
)
