package azure

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/samber/lo"

	"github.com/finopsmind/costengine/internal/daterange"
	"github.com/finopsmind/costengine/internal/model"
	"github.com/finopsmind/costengine/internal/provider"
)

var dimensionNames = map[string]string{
	provider.DimensionService:   "ServiceName",
	provider.DimensionRegion:    "ResourceLocation",
	provider.DimensionAccount:   "SubscriptionName",
	provider.DimensionUsageType: "MeterCategory",
}

type queryDefinition struct {
	Type       string            `json:"type"`
	Timeframe  string            `json:"timeframe"`
	TimePeriod map[string]string `json:"timePeriod"`
	Dataset    dataset           `json:"dataset"`
}

type dataset struct {
	Granularity string                 `json:"granularity"`
	Aggregation map[string]aggregation `json:"aggregation"`
	Grouping    []grouping             `json:"grouping,omitempty"`
	Filter      *filterExpression      `json:"filter,omitempty"`
}

type aggregation struct {
	Name     string `json:"name"`
	Function string `json:"function"`
}

type grouping struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

type filterExpression struct {
	And        []filterExpression `json:"and,omitempty"`
	Dimensions *comparison        `json:"dimensions,omitempty"`
	Tags       *comparison        `json:"tags,omitempty"`
}

type comparison struct {
	Name     string   `json:"name"`
	Operator string   `json:"operator"`
	Values   []string `json:"values"`
}

type queryResponse struct {
	Properties struct {
		NextLink string `json:"nextLink"`
		Columns  []struct {
			Name string `json:"name"`
			Type string `json:"type"`
		} `json:"columns"`
		Rows [][]any `json:"rows"`
	} `json:"properties"`
}

// TotalCost sums the Cost column over every returned row.
func (c *Client) TotalCost(ctx context.Context, q provider.CostQuery) (float64, error) {
	def, err := buildQuery(q, nil)
	if err != nil {
		return 0, err
	}

	var total float64
	err = c.query(ctx, def, func(resp queryResponse) {
		costIdx, _ := columnIndexes(resp, "")
		for _, row := range resp.Properties.Rows {
			total += numberAt(row, costIdx)
		}
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}

// CostByDimension sums the Cost column per grouping label.
func (c *Client) CostByDimension(ctx context.Context, q provider.CostQuery) (map[string]float64, error) {
	g, err := groupingFor(q.GroupBy)
	if err != nil {
		return nil, err
	}
	def, err := buildQuery(q, &g)
	if err != nil {
		return nil, err
	}

	labelColumn := g.Name
	if g.Type == "TagKey" {
		labelColumn = "TagValue"
	}

	amounts := make(map[string]float64)
	err = c.query(ctx, def, func(resp queryResponse) {
		costIdx, labelIdx := columnIndexes(resp, labelColumn)
		for _, row := range resp.Properties.Rows {
			label := stringAt(row, labelIdx)
			if label == "" {
				label = "(untagged)"
			}
			amounts[label] += numberAt(row, costIdx)
		}
	})
	if err != nil {
		return nil, err
	}
	return amounts, nil
}

// query posts def and follows nextLink pages.
func (c *Client) query(ctx context.Context, def queryDefinition, page func(queryResponse)) error {
	url := fmt.Sprintf("%s/subscriptions/%s/providers/Microsoft.CostManagement/query?api-version=%s",
		c.baseURL, c.subscriptionID, costAPIVersion)
	c.logger.Debug("querying Azure costs",
		"subscription", c.subscriptionID,
		"from", def.TimePeriod["from"],
		"to", def.TimePeriod["to"],
		"grouped", len(def.Dataset.Grouping) > 0,
	)

	for url != "" {
		var resp queryResponse
		if err := c.do(ctx, http.MethodPost, url, def, &resp); err != nil {
			return fmt.Errorf("azure: cost query: %w", err)
		}
		page(resp)
		url = resp.Properties.NextLink
	}
	return nil
}

func buildQuery(q provider.CostQuery, g *grouping) (queryDefinition, error) {
	granularity := "Daily"
	if q.Granularity == model.GranularityMonthly {
		granularity = "Monthly"
	}

	// The Cost Management "to" bound is inclusive, so the exclusive query end
	// is pulled back to the last millisecond of the range.
	from := utcDay(q.Range.Start)
	to := utcDay(daterange.QueryEnd(q.Range)).Add(-time.Millisecond)

	filter, err := buildFilter(q.Filters)
	if err != nil {
		return queryDefinition{}, err
	}

	def := queryDefinition{
		Type:      "ActualCost",
		Timeframe: "Custom",
		TimePeriod: map[string]string{
			"from": from.Format("2006-01-02T15:04:05.000Z"),
			"to":   to.Format("2006-01-02T15:04:05.000Z"),
		},
		Dataset: dataset{
			Granularity: granularity,
			Aggregation: map[string]aggregation{
				"totalCost": {Name: "Cost", Function: "Sum"},
			},
			Filter: filter,
		},
	}
	if g != nil {
		def.Dataset.Grouping = []grouping{*g}
	}
	return def, nil
}

func groupingFor(dimension string) (grouping, error) {
	if dimension == "" {
		dimension = provider.DefaultDimension
	}
	if key, ok := provider.TagKey(dimension); ok && key != "" {
		return grouping{Type: "TagKey", Name: key}, nil
	}
	name, ok := dimensionNames[dimension]
	if !ok {
		return grouping{}, fmt.Errorf("azure: unsupported dimension %q", dimension)
	}
	return grouping{Type: "Dimension", Name: name}, nil
}

func buildFilter(filters model.CostFilters) (*filterExpression, error) {
	var expressions []filterExpression

	for _, key := range sortedKeys(filters.Dimensions) {
		name, ok := dimensionNames[key]
		if !ok {
			return nil, fmt.Errorf("azure: unsupported filter dimension %q", key)
		}
		expressions = append(expressions, filterExpression{
			Dimensions: &comparison{Name: name, Operator: "In", Values: []string{filters.Dimensions[key]}},
		})
	}
	for _, key := range sortedKeys(filters.Tags) {
		expressions = append(expressions, filterExpression{
			Tags: &comparison{Name: key, Operator: "In", Values: []string{filters.Tags[key]}},
		})
	}

	switch len(expressions) {
	case 0:
		return nil, nil
	case 1:
		return &expressions[0], nil
	}
	return &filterExpression{And: expressions}, nil
}

func columnIndexes(resp queryResponse, labelColumn string) (costIdx, labelIdx int) {
	costIdx, labelIdx = -1, -1
	for i, col := range resp.Properties.Columns {
		switch col.Name {
		case "Cost", "PreTaxCost", "CostUSD":
			if costIdx < 0 {
				costIdx = i
			}
		case labelColumn:
			labelIdx = i
		}
	}
	return costIdx, labelIdx
}

func numberAt(row []any, idx int) float64 {
	if idx < 0 || idx >= len(row) {
		return 0
	}
	switch v := row[idx].(type) {
	case float64:
		return v
	case json.Number:
		f, _ := v.Float64()
		return f
	case string:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	}
	return 0
}

func stringAt(row []any, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	if v, ok := row[idx].(string); ok {
		return v
	}
	return ""
}

func utcDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func sortedKeys(m map[string]string) []string {
	keys := lo.Keys(m)
	sort.Strings(keys)
	return keys
}
