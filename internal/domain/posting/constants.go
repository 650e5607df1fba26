package posting

const (
	ContributionSSS            = "sss"
	ContributionPhilHealth     = "philhealth"
	ContributionPagIbig        = "pagibig"
	ContributionWithholdingTax = "withholding_tax"

	CategoryDeduction   = "deduction"
	CategoryAllowance   = "allowance"
	CategoryGovernment  = "government"
	CategoryTransaction = "transaction"
)
