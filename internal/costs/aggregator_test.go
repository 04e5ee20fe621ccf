package costs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finopsmind/costengine/internal/credentials"
	"github.com/finopsmind/costengine/internal/daterange"
	"github.com/finopsmind/costengine/internal/model"
	"github.com/finopsmind/costengine/internal/provider"
)

type fakeSource struct {
	accountErr error
	totalErr   error
	total      float64
	byDim      map[string]float64
	queries    []provider.CostQuery
}

func (f *fakeSource) Type() model.CloudProvider { return model.CloudProviderAWS }

func (f *fakeSource) AccountID(context.Context) (string, error) {
	if f.accountErr != nil {
		return "", f.accountErr
	}
	return "111122223333", nil
}

func (f *fakeSource) TotalCost(_ context.Context, q provider.CostQuery) (float64, error) {
	f.queries = append(f.queries, q)
	return f.total, f.totalErr
}

func (f *fakeSource) CostByDimension(_ context.Context, q provider.CostQuery) (map[string]float64, error) {
	return f.byDim, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestAggregator(src *fakeSource) *Aggregator {
	store := credentials.StoreFunc(func(_ context.Context, name string) (*model.Profile, error) {
		if name != "prod" {
			return nil, credentials.ErrProfileNotFound
		}
		return &model.Profile{Name: "prod", Provider: model.CloudProviderAWS, Region: "eu-west-1"}, nil
	})
	resolver := credentials.NewResolver(store, nil, "us-east-1", testLogger())

	registry := provider.NewRegistry()
	registry.Register(model.CloudProviderAWS, func(context.Context, *model.Profile, string) (provider.CostSource, error) {
		return src, nil
	})

	a := NewAggregator(resolver, registry, time.Second, testLogger())
	a.now = func() time.Time { return time.Date(2024, time.March, 15, 9, 0, 0, 0, time.UTC) }
	return a
}

func TestGetCostSuccess(t *testing.T) {
	src := &fakeSource{
		total: 123.456,
		byDim: map[string]float64{"EC2": 80.111, "S3": 40, "Tax": 0.0004, "Lambda": 3.349},
	}
	a := newTestAggregator(src)

	res := a.GetCost(context.Background(), Request{Profile: "prod", Window: daterange.Window{DaysBack: 7}})
	require.True(t, res.OK(), res.Message)
	assert.Equal(t, "111122223333", res.AccountID)
	assert.Equal(t, 123.46, res.TotalCost)
	assert.Equal(t, []model.DimensionCost{
		{Label: "EC2", Amount: 80.11},
		{Label: "S3", Amount: 40},
		{Label: "Lambda", Amount: 3.35},
	}, res.CostByDimension)
	assert.Equal(t, model.GranularityDaily, res.Granularity)
	assert.Equal(t, time.Date(2024, time.March, 9, 0, 0, 0, 0, time.UTC), res.PeriodStart)

	require.Len(t, src.queries, 1)
	assert.Equal(t, provider.DimensionService, src.queries[0].GroupBy)
}

func TestGetCostMonthToDateIsMonthly(t *testing.T) {
	src := &fakeSource{total: 1}
	a := newTestAggregator(src)

	res := a.GetTotal(context.Background(), Request{Profile: "prod"})
	require.True(t, res.OK())
	assert.Equal(t, model.GranularityMonthly, res.Granularity)
	assert.Equal(t, time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC), res.PeriodStart)
	assert.Empty(t, res.CostByDimension)
}

func TestGetCostExplicitRange(t *testing.T) {
	src := &fakeSource{total: 1}
	a := newTestAggregator(src)
	day := time.Date(2024, time.February, 29, 0, 0, 0, 0, time.UTC)

	res := a.GetTotal(context.Background(), Request{Profile: "prod", Range: &model.DateRange{Start: day, End: day}})
	require.True(t, res.OK())
	require.Len(t, src.queries, 1)
	assert.Equal(t, model.GranularityDaily, src.queries[0].Granularity)
	assert.Equal(t, day, src.queries[0].Range.End)
}

func TestGetCostFailuresCollapseToErrorResult(t *testing.T) {
	tests := []struct {
		name    string
		req     Request
		src     *fakeSource
		message string
	}{
		{"unknown profile", Request{Profile: "missing"}, &fakeSource{}, "credential not found"},
		{"identity failure", Request{Profile: "prod"}, &fakeSource{accountErr: errors.New("ExpiredToken")}, "identity lookup failed"},
		{"query failure", Request{Profile: "prod"}, &fakeSource{totalErr: errors.New("throttled")}, "provider query failed"},
		{"bad window", Request{Profile: "prod", Window: daterange.Window{DaysBack: -3}}, &fakeSource{}, "validation error"},
		{"bad dimension", Request{Profile: "prod", GroupBy: "colour"}, &fakeSource{}, "validation error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := newTestAggregator(tt.src).GetCost(context.Background(), tt.req)
			assert.Equal(t, model.QueryStatusError, res.Status)
			assert.Contains(t, res.Message, tt.message)
			assert.Zero(t, res.TotalCost)
			assert.NotNil(t, res.CostByDimension)
		})
	}
}
