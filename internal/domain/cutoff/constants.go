package cutoff

const (
	StatusTimekeeping = "timekeeping"
	StatusPending     = "pending"
	StatusProcessed   = "processed"
	StatusApproved    = "approved"
	StatusPosted      = "posted"
	StatusRejected    = "rejected"

	ActionSubmit   = "submit"
	ActionApprove  = "approve"
	ActionReject   = "reject"
	ActionReturn   = "return"
	ActionResubmit = "resubmit"
	ActionPost     = "post"
	ActionRepost   = "repost"
	ActionOverride = "override"

	TaskOpen     = "open"
	TaskApproved = "approved"
	TaskRejected = "rejected"
	TaskClosed   = "closed"

	NotificationCutoffStatus = "cutoff_status"

	// ManualOverrideLevel marks history entries written outside the
	// approval chain.
	ManualOverrideLevel = 0

	FirstApprovalLevel = 1
)
