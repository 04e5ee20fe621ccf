package model

// BudgetState classifies spend against a budget limit.
type BudgetState string

const (
	BudgetStateOK       BudgetState = "OK"
	BudgetStateWarning  BudgetState = "WARNING"
	BudgetStateExceeded BudgetState = "EXCEEDED"
)

// Budget thresholds, in percent of the limit.
const (
	BudgetWarningPercent  = 80.0
	BudgetExceededPercent = 100.0
)

// BudgetStatus is a budget with its classified consumption.
type BudgetStatus struct {
	Name            string      `json:"name"`
	Limit           float64     `json:"limit"`
	ActualSpend     float64     `json:"actualSpend"`
	ForecastedSpend float64     `json:"forecastedSpend"`
	PercentUsed     float64     `json:"percentUsed"`
	Status          BudgetState `json:"status"`
}

// NewBudgetStatus computes the percentage used and the state.
func NewBudgetStatus(name string, limit, actual, forecasted float64) BudgetStatus {
	percent := 0.0
	if limit > 0 {
		percent = Round2(actual / limit * 100)
	}
	return BudgetStatus{
		Name:            name,
		Limit:           Round2(limit),
		ActualSpend:     Round2(actual),
		ForecastedSpend: Round2(forecasted),
		PercentUsed:     percent,
		Status:          ClassifyBudget(percent),
	}
}

// ClassifyBudget maps a percentage used onto a budget state.
func ClassifyBudget(percentUsed float64) BudgetState {
	switch {
	case percentUsed >= BudgetExceededPercent:
		return BudgetStateExceeded
	case percentUsed >= BudgetWarningPercent:
		return BudgetStateWarning
	default:
		return BudgetStateOK
	}
}

// NeedsAttention reports whether the budget is at or above the warning threshold.
func (b BudgetStatus) NeedsAttention() bool {
	return b.Status == BudgetStateWarning || b.Status == BudgetStateExceeded
}
