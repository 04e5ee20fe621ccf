package model

import (
	"sort"
	"time"
)

// NegligibleAmount is the threshold below which a dimension entry is dropped.
const NegligibleAmount = 0.001

// QueryStatus reports whether a cost query produced data.
type QueryStatus string

const (
	QueryStatusSuccess QueryStatus = "success"
	QueryStatusError   QueryStatus = "error"
)

// DimensionCost is one entry of a grouped cost query.
type DimensionCost struct {
	Label  string  `json:"label"`
	Amount float64 `json:"amount"`
}

// CostQueryResult is the normalized output of the cost aggregator.
type CostQueryResult struct {
	AccountID       string          `json:"accountId"`
	Provider        CloudProvider   `json:"provider,omitempty"`
	PeriodStart     time.Time       `json:"periodStart"`
	PeriodEnd       time.Time       `json:"periodEnd"`
	Granularity     Granularity     `json:"granularity,omitempty"`
	TotalCost       float64         `json:"totalCost"`
	CostByDimension []DimensionCost `json:"costByDimension"`
	Status          QueryStatus     `json:"status"`
	Message         string          `json:"message,omitempty"`
}

// OK reports whether the query succeeded.
func (r CostQueryResult) OK() bool {
	return r.Status == QueryStatusSuccess
}

// CostFilters restricts a cost query. All present filters are ANDed.
type CostFilters struct {
	Tags       map[string]string `json:"tags,omitempty"`
	Dimensions map[string]string `json:"dimensions,omitempty"`
}

// Empty reports whether no filter is set.
func (f CostFilters) Empty() bool {
	return len(f.Tags) == 0 && len(f.Dimensions) == 0
}

// RankDimensions turns a label→amount map into a list sorted by descending
// amount, rounded to two decimals, with negligible entries dropped.
func RankDimensions(amounts map[string]float64) []DimensionCost {
	out := make([]DimensionCost, 0, len(amounts))
	for label, amount := range amounts {
		if amount < NegligibleAmount {
			continue
		}
		out = append(out, DimensionCost{Label: label, Amount: Round2(amount)})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Amount == out[j].Amount {
			return out[i].Label < out[j].Label
		}
		return out[i].Amount > out[j].Amount
	})
	return out
}

// DailyProviderCost is one calendar day of spend across providers.
type DailyProviderCost struct {
	Date   time.Time `json:"date"`
	AWS    float64   `json:"aws"`
	Azure  float64   `json:"azure"`
	GCP    float64   `json:"gcp"`
	Total  float64   `json:"total"`
	Errors []string  `json:"errors,omitempty"`
}

// Amount returns the cost of a single provider.
func (d DailyProviderCost) Amount(p CloudProvider) float64 {
	switch p {
	case CloudProviderAWS:
		return d.AWS
	case CloudProviderAzure:
		return d.Azure
	case CloudProviderGCP:
		return d.GCP
	}
	return 0
}

// Set stores a provider amount and refreshes the total.
func (d *DailyProviderCost) Set(p CloudProvider, amount float64) {
	amount = Round2(ClampNonNegative(amount))
	switch p {
	case CloudProviderAWS:
		d.AWS = amount
	case CloudProviderAzure:
		d.Azure = amount
	case CloudProviderGCP:
		d.GCP = amount
	}
	d.Total = Round2(d.AWS + d.Azure + d.GCP)
}

// GCPEstimateNote is surfaced to consumers whenever GCP costs are included.
const GCPEstimateNote = "GCP cost is an estimate: running instances x flat monthly unit cost / days in month, not billing data"
