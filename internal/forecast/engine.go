// Package forecast projects daily spend forward from a trailing window of
// per-provider history.
package forecast

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/finopsmind/costengine/internal/apierrors"
	"github.com/finopsmind/costengine/internal/daterange"
	"github.com/finopsmind/costengine/internal/model"
)

// DayFetcher returns one day of per-provider spend.
type DayFetcher interface {
	FetchDay(ctx context.Context, date time.Time, gcpCreds *model.GCPCredentials, connected model.ProviderSet) (model.DailyProviderCost, error)
}

// Config bounds forecast requests.
type Config struct {
	MaxHistoricalDays int
	MaxForecastDays   int
	// Concurrency caps parallel day fetches. Zero or less means unbounded.
	Concurrency int
}

// Request describes a forecast run.
type Request struct {
	HistoricalDays int
	ForecastDays   int
	Providers      model.ProviderSet
	GCP            *model.GCPCredentials
}

// Engine fits linear models to history and projects them forward.
type Engine struct {
	fetcher DayFetcher
	cfg     Config
	now     func() time.Time
	logger  *slog.Logger
}

// NewEngine creates a new forecast engine.
func NewEngine(fetcher DayFetcher, cfg Config, logger *slog.Logger) *Engine {
	return &Engine{fetcher: fetcher, cfg: cfg, now: time.Now, logger: logger}
}

// Validate checks the day counts against the configured maxima.
func (e *Engine) Validate(req Request) error {
	if req.HistoricalDays < 0 || req.ForecastDays < 0 {
		return fmt.Errorf("%w: day counts must not be negative", apierrors.ErrValidation)
	}
	if e.cfg.MaxHistoricalDays > 0 && req.HistoricalDays > e.cfg.MaxHistoricalDays {
		return fmt.Errorf("%w: historicalDays must be at most %d", apierrors.ErrValidation, e.cfg.MaxHistoricalDays)
	}
	if e.cfg.MaxForecastDays > 0 && req.ForecastDays > e.cfg.MaxForecastDays {
		return fmt.Errorf("%w: forecastDays must be at most %d", apierrors.ErrValidation, e.cfg.MaxForecastDays)
	}
	return nil
}

// Forecast fetches the trailing history and projects ForecastDays ahead.
// Provider failures degrade to zero amounts; only validation errors and a
// cancelled context are returned.
func (e *Engine) Forecast(ctx context.Context, req Request) (*model.ForecastResult, error) {
	if err := e.Validate(req); err != nil {
		return nil, err
	}

	start := time.Now()
	today := daterange.Day(e.now())
	historical, err := e.history(ctx, req, today)
	if err != nil {
		return nil, err
	}

	result := project(historical, req.ForecastDays, today)
	result.Notes = notes(historical, req)

	e.logger.Info("forecast computed",
		"historical_days", req.HistoricalDays,
		"forecast_days", req.ForecastDays,
		"providers", req.Providers.List(),
		"trend", result.Trend,
		"duration", time.Since(start),
	)
	return result, nil
}

func (e *Engine) history(ctx context.Context, req Request, today time.Time) ([]model.DailyProviderCost, error) {
	dates := daterange.Trailing(today, req.HistoricalDays)
	days := make([]model.DailyProviderCost, len(dates))

	g, gctx := errgroup.WithContext(ctx)
	if e.cfg.Concurrency > 0 {
		g.SetLimit(e.cfg.Concurrency)
	}
	for i, date := range dates {
		g.Go(func() error {
			day, err := e.fetcher.FetchDay(gctx, date, req.GCP, req.Providers)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				e.logger.Warn("daily cost fetch failed", "date", daterange.Format(date), "error", err)
				day = model.DailyProviderCost{
					Date:   daterange.Day(date),
					Errors: []string{err.Error()},
				}
			}
			days[i] = day
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return days, nil
}

// project fits the total and each provider over x = 0..N-1 and evaluates
// the lines at x = N+i for each forecast day i. History ends on today.
func project(historical []model.DailyProviderCost, forecastDays int, today time.Time) *model.ForecastResult {
	n := len(historical)
	totals := series(historical, func(d model.DailyProviderCost) float64 { return d.Total })
	total := Fit(totals)
	perProvider := make(map[model.CloudProvider]model.RegressionModel, len(model.AllProviders))
	for _, p := range model.AllProviders {
		perProvider[p] = Fit(series(historical, func(d model.DailyProviderCost) float64 { return d.Amount(p) }))
	}

	stdDev := StdDev(total, totals)
	ci := Interval(stdDev, n)

	points := make([]model.ForecastPoint, forecastDays)
	for i := range points {
		x := float64(n + i)
		forecasted := total.At(x)
		points[i] = model.ForecastPoint{
			Date:            today.AddDate(0, 0, i+1),
			Forecasted:      model.Round2(model.ClampNonNegative(forecasted)),
			ConfidenceUpper: model.Round2(model.ClampNonNegative(forecasted + ci)),
			ConfidenceLower: model.Round2(model.ClampNonNegative(forecasted - ci)),
			Breakdown: model.ProviderBreakdown{
				AWS:   model.Round2(model.ClampNonNegative(perProvider[model.CloudProviderAWS].At(x))),
				Azure: model.Round2(model.ClampNonNegative(perProvider[model.CloudProviderAzure].At(x))),
				GCP:   model.Round2(model.ClampNonNegative(perProvider[model.CloudProviderGCP].At(x))),
			},
		}
	}

	trend := model.TrendDecreasing
	if total.Slope > 0 {
		trend = model.TrendIncreasing
	}

	var growth float64
	if avg := mean(totals); avg != 0 {
		growth = model.Round2(total.Slope / avg * 30 * 100)
	}

	return &model.ForecastResult{
		HistoricalDays:    n,
		ForecastDays:      forecastDays,
		Historical:        historical,
		Forecast:          points,
		Trend:             trend,
		MonthlyGrowthRate: growth,
		Model:             total,
		StdDev:            model.Round2(stdDev),
	}
}

func series(days []model.DailyProviderCost, pick func(model.DailyProviderCost) float64) []float64 {
	out := make([]float64, len(days))
	for i, d := range days {
		out[i] = pick(d)
	}
	return out
}

func notes(historical []model.DailyProviderCost, req Request) []string {
	var out []string
	if req.Providers.Has(model.CloudProviderGCP) && req.GCP != nil && req.GCP.ProjectID != "" {
		out = append(out, model.GCPEstimateNote)
	}

	failed := 0
	for _, d := range historical {
		failed += len(d.Errors)
	}
	if failed > 0 {
		out = append(out, fmt.Sprintf("%d provider fetches failed and were counted as 0; see errors on the historical days", failed))
	}
	return out
}
