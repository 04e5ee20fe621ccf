// Package dailycost fetches one calendar day of spend across providers.
package dailycost

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/finopsmind/costengine/internal/costs"
	"github.com/finopsmind/costengine/internal/daterange"
	"github.com/finopsmind/costengine/internal/model"
	"github.com/finopsmind/costengine/internal/provider"
)

// TotalQuerier is the part of the cost aggregator the fetcher uses.
type TotalQuerier interface {
	GetTotal(ctx context.Context, req costs.Request) model.CostQueryResult
}

// Config holds fetcher settings.
type Config struct {
	AWSProfile   string
	AzureProfile string
	// GCPInstanceMonthlyCost is the flat monthly cost assumed per running instance.
	GCPInstanceMonthlyCost float64
	CallTimeout            time.Duration
}

// Fetcher queries each connected provider independently for a single day.
type Fetcher struct {
	costs    TotalQuerier
	counters provider.CounterFactory
	cfg      Config
	logger   *slog.Logger
}

// NewFetcher creates a new Fetcher.
func NewFetcher(costs TotalQuerier, counters provider.CounterFactory, cfg Config, logger *slog.Logger) *Fetcher {
	return &Fetcher{costs: costs, counters: counters, cfg: cfg, logger: logger}
}

type outcome struct {
	provider model.CloudProvider
	amount   float64
	err      error
}

// FetchDay returns the day's cost per connected provider. A provider that
// fails or times out contributes 0 and a message in Errors; the returned
// error is reserved for a cancelled parent context.
func (f *Fetcher) FetchDay(ctx context.Context, date time.Time, gcpCreds *model.GCPCredentials, connected model.ProviderSet) (model.DailyProviderCost, error) {
	day := model.DailyProviderCost{Date: daterange.Day(date)}
	if err := ctx.Err(); err != nil {
		return day, err
	}

	var targets []model.CloudProvider
	for _, p := range connected.List() {
		if p == model.CloudProviderGCP && (gcpCreds == nil || gcpCreds.ProjectID == "") {
			continue
		}
		targets = append(targets, p)
	}

	outcomes := make([]outcome, len(targets))
	var wg sync.WaitGroup
	for i, p := range targets {
		wg.Add(1)
		go func(i int, p model.CloudProvider) {
			defer wg.Done()
			callCtx, cancel := f.withTimeout(ctx)
			defer cancel()

			amount, err := f.fetch(callCtx, p, day.Date, gcpCreds)
			outcomes[i] = outcome{provider: p, amount: amount, err: err}
		}(i, p)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return day, err
	}

	for _, o := range outcomes {
		if o.err != nil {
			f.logger.Warn("daily cost fetch failed",
				"provider", o.provider,
				"date", daterange.Format(day.Date),
				"error", o.err,
			)
			day.Errors = append(day.Errors, fmt.Sprintf("%s: %v", o.provider, o.err))
			day.Set(o.provider, 0)
			continue
		}
		day.Set(o.provider, o.amount)
	}

	return day, nil
}

func (f *Fetcher) fetch(ctx context.Context, p model.CloudProvider, date time.Time, gcpCreds *model.GCPCredentials) (float64, error) {
	switch p {
	case model.CloudProviderAWS:
		return f.total(ctx, f.cfg.AWSProfile, date)
	case model.CloudProviderAzure:
		return f.total(ctx, f.cfg.AzureProfile, date)
	case model.CloudProviderGCP:
		return f.gcpEstimate(ctx, date, gcpCreds)
	}
	return 0, fmt.Errorf("unsupported provider %q", p)
}

func (f *Fetcher) total(ctx context.Context, profile string, date time.Time) (float64, error) {
	r := daterange.SingleDay(date)
	res := f.costs.GetTotal(ctx, costs.Request{Profile: profile, Range: &r})
	if !res.OK() {
		return 0, errors.New(res.Message)
	}
	return res.TotalCost, nil
}

// gcpEstimate approximates the day's cost as running instances times a flat
// monthly unit cost spread over the days of the month.
func (f *Fetcher) gcpEstimate(ctx context.Context, date time.Time, creds *model.GCPCredentials) (float64, error) {
	if f.counters == nil {
		return 0, errors.New("no GCP instance counter configured")
	}
	counter, err := f.counters(ctx, creds)
	if err != nil {
		return 0, err
	}
	running, err := counter.CountRunning(ctx)
	if err != nil {
		return 0, err
	}
	return float64(running) * f.cfg.GCPInstanceMonthlyCost / float64(daterange.DaysInMonth(date)), nil
}

func (f *Fetcher) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if f.cfg.CallTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, f.cfg.CallTimeout)
}
