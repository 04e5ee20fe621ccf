package forecast

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finopsmind/costengine/internal/apierrors"
	"github.com/finopsmind/costengine/internal/model"
)

type fetchFunc func(ctx context.Context, date time.Time) (model.DailyProviderCost, error)

func (f fetchFunc) FetchDay(ctx context.Context, date time.Time, _ *model.GCPCredentials, _ model.ProviderSet) (model.DailyProviderCost, error) {
	return f(ctx, date)
}

var today = time.Date(2024, time.June, 30, 0, 0, 0, 0, time.UTC)

// seriesFetcher serves amounts indexed by days before today, oldest first.
func seriesFetcher(aws []float64) fetchFunc {
	return func(_ context.Context, date time.Time) (model.DailyProviderCost, error) {
		idx := len(aws) - 1 - int(today.Sub(date).Hours()/24)
		day := model.DailyProviderCost{Date: date}
		day.Set(model.CloudProviderAWS, aws[idx])
		return day, nil
	}
}

func newTestEngine(f DayFetcher) *Engine {
	e := NewEngine(f, Config{MaxHistoricalDays: 365, MaxForecastDays: 365, Concurrency: 3},
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	e.now = func() time.Time { return today.Add(14 * time.Hour) }
	return e
}

func awsOnly() model.ProviderSet { return model.NewProviderSet(model.CloudProviderAWS) }

func TestForecastFlatHistory(t *testing.T) {
	flat := []float64{100, 100, 100, 100, 100, 100, 100}
	res, err := newTestEngine(seriesFetcher(flat)).Forecast(context.Background(),
		Request{HistoricalDays: 7, ForecastDays: 3, Providers: awsOnly()})
	require.NoError(t, err)

	assert.Equal(t, model.TrendDecreasing, res.Trend)
	assert.Zero(t, res.Model.Slope)
	assert.Zero(t, res.MonthlyGrowthRate)
	assert.Zero(t, res.StdDev)
	require.Len(t, res.Forecast, 3)
	for _, p := range res.Forecast {
		assert.Equal(t, 100.0, p.Forecasted)
		assert.Equal(t, 100.0, p.ConfidenceUpper)
		assert.Equal(t, 100.0, p.ConfidenceLower)
		assert.Equal(t, 100.0, p.Breakdown.AWS)
	}
}

func TestForecastLinearGrowth(t *testing.T) {
	growing := []float64{100, 110, 120, 130, 140, 150, 160}
	res, err := newTestEngine(seriesFetcher(growing)).Forecast(context.Background(),
		Request{HistoricalDays: 7, ForecastDays: 2, Providers: awsOnly()})
	require.NoError(t, err)

	assert.InDelta(t, 10, res.Model.Slope, 1e-9)
	assert.InDelta(t, 100, res.Model.Intercept, 1e-9)
	assert.Equal(t, model.TrendIncreasing, res.Trend)
	assert.Equal(t, 230.77, res.MonthlyGrowthRate)

	require.Len(t, res.Forecast, 2)
	assert.Equal(t, 170.0, res.Forecast[0].Forecasted)
	assert.Equal(t, 180.0, res.Forecast[1].Forecasted)
	assert.Equal(t, 170.0, res.Forecast[0].Breakdown.AWS)
	assert.Zero(t, res.Forecast[0].Breakdown.Azure)
	assert.Equal(t, today.AddDate(0, 0, 1), res.Forecast[0].Date)

	require.Len(t, res.Historical, 7)
	assert.Equal(t, today.AddDate(0, 0, -6), res.Historical[0].Date)
	assert.Equal(t, today, res.Historical[6].Date)
	for i, d := range res.Historical {
		assert.Equal(t, growing[i], d.Total)
	}
}

func TestForecastConfidenceBand(t *testing.T) {
	noisy := []float64{90, 130, 95, 140, 100, 150, 105, 160}
	res, err := newTestEngine(seriesFetcher(noisy)).Forecast(context.Background(),
		Request{HistoricalDays: 8, ForecastDays: 10, Providers: awsOnly()})
	require.NoError(t, err)

	m := Fit(noisy)
	sd := StdDev(m, noisy)
	require.Greater(t, sd, 0.0)
	width := 1.96 * sd * math.Sqrt(1+1.0/8)

	for i, p := range res.Forecast {
		assert.LessOrEqual(t, p.ConfidenceLower, p.Forecasted)
		assert.LessOrEqual(t, p.Forecasted, p.ConfidenceUpper)
		assert.InDelta(t, model.Round2(m.At(float64(8+i))+width), p.ConfidenceUpper, 0.011)
	}
}

func TestForecastClampsNegativeProjection(t *testing.T) {
	falling := []float64{60, 50, 40, 30, 20, 10}
	res, err := newTestEngine(seriesFetcher(falling)).Forecast(context.Background(),
		Request{HistoricalDays: 6, ForecastDays: 5, Providers: awsOnly()})
	require.NoError(t, err)

	assert.Equal(t, model.TrendDecreasing, res.Trend)
	last := res.Forecast[len(res.Forecast)-1]
	assert.Zero(t, last.Forecasted)
	assert.Zero(t, last.ConfidenceLower)
	assert.Zero(t, last.Breakdown.AWS)
}

func TestForecastFailedDayIsZero(t *testing.T) {
	f := fetchFunc(func(_ context.Context, date time.Time) (model.DailyProviderCost, error) {
		if date.Equal(today.AddDate(0, 0, -1)) {
			return model.DailyProviderCost{}, errors.New("boom")
		}
		day := model.DailyProviderCost{Date: date}
		day.Set(model.CloudProviderAWS, 50)
		return day, nil
	})
	res, err := newTestEngine(f).Forecast(context.Background(),
		Request{HistoricalDays: 4, ForecastDays: 1, Providers: awsOnly()})
	require.NoError(t, err)

	require.Len(t, res.Historical, 4)
	failed := res.Historical[2]
	assert.Equal(t, today.AddDate(0, 0, -1), failed.Date)
	assert.Zero(t, failed.Total)
	assert.Equal(t, []string{"boom"}, failed.Errors)
	assert.Len(t, res.Notes, 1)
}

func TestForecastValidation(t *testing.T) {
	e := newTestEngine(seriesFetcher(nil))
	for _, req := range []Request{
		{HistoricalDays: -1, ForecastDays: 30},
		{HistoricalDays: 30, ForecastDays: -1},
		{HistoricalDays: 366, ForecastDays: 30},
		{HistoricalDays: 30, ForecastDays: 400},
	} {
		_, err := e.Forecast(context.Background(), req)
		assert.ErrorIs(t, err, apierrors.ErrValidation)
	}
}

func TestForecastNoHistory(t *testing.T) {
	res, err := newTestEngine(seriesFetcher(nil)).Forecast(context.Background(),
		Request{HistoricalDays: 0, ForecastDays: 2, Providers: awsOnly()})
	require.NoError(t, err)
	assert.Empty(t, res.Historical)
	assert.Zero(t, res.MonthlyGrowthRate)
	require.Len(t, res.Forecast, 2)
	assert.Zero(t, res.Forecast[0].ConfidenceUpper)
}

func TestForecastGCPNote(t *testing.T) {
	f := fetchFunc(func(_ context.Context, date time.Time) (model.DailyProviderCost, error) {
		return model.DailyProviderCost{Date: date}, nil
	})
	res, err := newTestEngine(f).Forecast(context.Background(), Request{
		HistoricalDays: 2,
		ForecastDays:   1,
		Providers:      model.NewProviderSet(model.CloudProviderGCP),
		GCP:            &model.GCPCredentials{ProjectID: "p"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{model.GCPEstimateNote}, res.Notes)
}

func TestForecastCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	f := fetchFunc(func(ctx context.Context, date time.Time) (model.DailyProviderCost, error) {
		cancel()
		return model.DailyProviderCost{}, ctx.Err()
	})
	_, err := newTestEngine(f).Forecast(ctx, Request{HistoricalDays: 3, ForecastDays: 1, Providers: awsOnly()})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFit(t *testing.T) {
	assert.Equal(t, model.RegressionModel{}, Fit(nil))
	assert.Equal(t, model.RegressionModel{Intercept: 42}, Fit([]float64{42}))

	m := Fit([]float64{1, 3, 5})
	assert.InDelta(t, 2, m.Slope, 1e-9)
	assert.InDelta(t, 1, m.Intercept, 1e-9)
	assert.InDelta(t, 0, StdDev(m, []float64{1, 3, 5}), 1e-9)
}
