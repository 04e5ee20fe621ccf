package model

import "time"

// Trend is the direction of the fitted total-cost line.
type Trend string

const (
	TrendIncreasing Trend = "increasing"
	TrendDecreasing Trend = "decreasing"
)

// RegressionModel is an ordinary least squares line over x = 0..N-1.
type RegressionModel struct {
	Slope     float64 `json:"slope"`
	Intercept float64 `json:"intercept"`
}

// At evaluates the line at x.
func (m RegressionModel) At(x float64) float64 {
	return m.Slope*x + m.Intercept
}

// ProviderBreakdown holds per-provider projected amounts.
type ProviderBreakdown struct {
	AWS   float64 `json:"aws"`
	Azure float64 `json:"azure"`
	GCP   float64 `json:"gcp"`
}

// ForecastPoint is a single projected day.
type ForecastPoint struct {
	Date            time.Time         `json:"date"`
	Forecasted      float64           `json:"forecasted"`
	ConfidenceUpper float64           `json:"confidenceUpper"`
	ConfidenceLower float64           `json:"confidenceLower"`
	Breakdown       ProviderBreakdown `json:"breakdown"`
}

// ForecastResult is the output of the forecast engine.
type ForecastResult struct {
	HistoricalDays    int                 `json:"historicalDays"`
	ForecastDays      int                 `json:"forecastDays"`
	Historical        []DailyProviderCost `json:"historical"`
	Forecast          []ForecastPoint     `json:"forecast"`
	Trend             Trend               `json:"trend"`
	MonthlyGrowthRate float64             `json:"monthlyGrowthRate"`
	Model             RegressionModel     `json:"model"`
	StdDev            float64             `json:"stdDev"`
	Notes             []string            `json:"notes,omitempty"`
}
