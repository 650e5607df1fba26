package notifications

const (
	TypeCutoffStatus    = "cutoff_status"
	TypeTaskAssigned    = "task_assigned"
	TypePeriodGenerated = "period_generated"
	TypePostingFailed   = "posting_failed"
)
