package schedule

const (
	KindMonthly     = "monthly"
	KindSemiMonthly = "semimonthly"
	KindWeekly      = "weekly"

	PeriodFirst  = "first"
	PeriodMiddle = "middle"
	PeriodLast   = "last"

	// StatusTimekeeping is the initial status of every materialized period.
	StatusTimekeeping = "timekeeping"

	DefaultGenerateCount = 10
)
