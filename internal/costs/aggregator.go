// Package costs wraps provider cost queries behind a uniform result shape.
package costs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/finopsmind/costengine/internal/apierrors"
	"github.com/finopsmind/costengine/internal/daterange"
	"github.com/finopsmind/costengine/internal/model"
	"github.com/finopsmind/costengine/internal/provider"
)

// ProfileResolver is the part of the credential resolver the aggregator uses.
type ProfileResolver interface {
	Resolve(ctx context.Context, name string) (*model.Profile, error)
	ResolveRegion(ctx context.Context, name string) string
}

// Request describes one cost query.
type Request struct {
	Profile string
	Window  daterange.Window
	// Range, when set, overrides Window and is queried at daily granularity.
	Range   *model.DateRange
	GroupBy string
	Filters model.CostFilters
}

// Aggregator queries a profile's provider for total and grouped cost.
type Aggregator struct {
	resolver    ProfileResolver
	registry    *provider.Registry
	callTimeout time.Duration
	now         func() time.Time
	logger      *slog.Logger
}

// NewAggregator creates an aggregator. callTimeout bounds each GetCost or
// GetTotal call; zero disables it.
func NewAggregator(resolver ProfileResolver, registry *provider.Registry, callTimeout time.Duration, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		resolver:    resolver,
		registry:    registry,
		callTimeout: callTimeout,
		now:         time.Now,
		logger:      logger,
	}
}

// GetCost runs the total and grouped queries. Failures never escape as Go
// errors; they produce a result with Status error and the message.
func (a *Aggregator) GetCost(ctx context.Context, req Request) model.CostQueryResult {
	return a.run(ctx, req, true)
}

// GetTotal runs only the total query.
func (a *Aggregator) GetTotal(ctx context.Context, req Request) model.CostQueryResult {
	return a.run(ctx, req, false)
}

func (a *Aggregator) run(ctx context.Context, req Request, grouped bool) model.CostQueryResult {
	if a.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.callTimeout)
		defer cancel()
	}

	q, err := a.query(req)
	result := model.CostQueryResult{
		PeriodStart:     q.Range.Start,
		PeriodEnd:       q.Range.End,
		Granularity:     q.Granularity,
		CostByDimension: []model.DimensionCost{},
	}
	if err != nil {
		return a.fail(result, req, err)
	}

	profile, err := a.resolver.Resolve(ctx, req.Profile)
	if err != nil {
		return a.fail(result, req, err)
	}
	result.Provider = profile.Provider

	src, err := a.registry.New(ctx, profile, a.resolver.ResolveRegion(ctx, req.Profile))
	if err != nil {
		return a.fail(result, req, fmt.Errorf("%w: %v", apierrors.ErrProviderQueryFailed, err))
	}

	accountID, err := src.AccountID(ctx)
	if err != nil {
		return a.fail(result, req, fmt.Errorf("%w: %v", apierrors.ErrIdentityLookupFailed, err))
	}
	result.AccountID = accountID

	var (
		total     float64
		breakdown map[string]float64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		total, err = src.TotalCost(gctx, q)
		return err
	})
	if grouped {
		g.Go(func() error {
			var err error
			breakdown, err = src.CostByDimension(gctx, q)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return a.fail(result, req, fmt.Errorf("%w: %v", apierrors.ErrProviderQueryFailed, err))
	}

	result.TotalCost = model.Round2(total)
	result.CostByDimension = model.RankDimensions(breakdown)
	result.Status = model.QueryStatusSuccess
	return result
}

func (a *Aggregator) query(req Request) (provider.CostQuery, error) {
	q := provider.CostQuery{
		GroupBy: req.GroupBy,
		Filters: req.Filters,
	}
	if q.GroupBy == "" {
		q.GroupBy = provider.DefaultDimension
	}

	if req.Range != nil {
		q.Range = *req.Range
		q.Granularity = model.GranularityDaily
	} else {
		r, err := daterange.Compute(a.now(), req.Window)
		if err != nil {
			return q, err
		}
		q.Range = r
		q.Granularity = req.Window.Granularity()
	}

	if err := provider.ValidateDimension(q.GroupBy); err != nil {
		return q, fmt.Errorf("%w: %v", apierrors.ErrValidation, err)
	}
	return q, nil
}

func (a *Aggregator) fail(result model.CostQueryResult, req Request, err error) model.CostQueryResult {
	a.logger.Warn("cost query failed", "profile", req.Profile, "provider", result.Provider, "error", err)
	result.Status = model.QueryStatusError
	result.Message = err.Error()
	return result
}
