// Package audit scans an account for idle resources and budget consumption.
package audit

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/finopsmind/costengine/internal/apierrors"
	"github.com/finopsmind/costengine/internal/model"
	"github.com/finopsmind/costengine/internal/provider"
)

// ProfileResolver is the part of the credential resolver the auditor uses.
type ProfileResolver interface {
	Resolve(ctx context.Context, name string) (*model.Profile, error)
	ResolveRegion(ctx context.Context, name string) string
}

// BudgetNotifier delivers alerts for budgets at or above the warning threshold.
type BudgetNotifier interface {
	NotifyBudgets(ctx context.Context, report *model.AuditReport, budgets []model.BudgetStatus) error
}

// Config holds auditor settings.
type Config struct {
	CallTimeout       time.Duration
	RegionConcurrency int
}

// Request describes one audit run.
type Request struct {
	ProfileName string
	AccountID   string
	Regions     []string
}

// Auditor runs the idle-resource and budget scans for one account.
type Auditor struct {
	resolver ProfileResolver
	scanners map[model.CloudProvider]provider.ScannerFactory
	notifier BudgetNotifier
	cfg      Config
	now      func() time.Time
	logger   *slog.Logger
}

// NewAuditor creates an auditor. notifier may be nil.
func NewAuditor(resolver ProfileResolver, scanners map[model.CloudProvider]provider.ScannerFactory, notifier BudgetNotifier, cfg Config, logger *slog.Logger) *Auditor {
	return &Auditor{
		resolver: resolver,
		scanners: scanners,
		notifier: notifier,
		cfg:      cfg,
		now:      time.Now,
		logger:   logger,
	}
}

// Audit resolves the profile and runs the four scans concurrently. Only a
// profile or scanner construction failure is returned as an error; scan
// failures are reported per category on the report.
func (a *Auditor) Audit(ctx context.Context, req Request) (*model.AuditReport, error) {
	start := time.Now()

	profile, err := a.resolver.Resolve(ctx, req.ProfileName)
	if err != nil {
		return nil, err
	}

	factory, ok := a.scanners[profile.Provider]
	if !ok {
		return nil, fmt.Errorf("%w: resource audit is not supported for %s profiles", apierrors.ErrValidation, profile.Provider)
	}

	homeRegion := a.resolver.ResolveRegion(ctx, req.ProfileName)
	regions := normalizeRegions(req.Regions)
	if len(regions) == 0 {
		regions = []string{homeRegion}
	}

	scanner, err := factory(ctx, profile, homeRegion)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apierrors.ErrProviderQueryFailed, err)
	}

	report := &model.AuditReport{
		ID:          uuid.New().String(),
		ProfileName: req.ProfileName,
		AccountID:   req.AccountID,
		Regions:     regions,
	}

	var wg sync.WaitGroup
	wg.Add(4)
	go func() {
		defer wg.Done()
		report.StoppedInstances, report.Errors.StoppedInstances = scanRegions(ctx, a, regions, scanner.StoppedInstances)
	}()
	go func() {
		defer wg.Done()
		report.UnattachedVolumes, report.Errors.UnattachedVolumes = scanRegions(ctx, a, regions, scanner.UnattachedVolumes)
	}()
	go func() {
		defer wg.Done()
		report.UnassociatedIPs, report.Errors.UnassociatedIPs = scanRegions(ctx, a, regions, scanner.UnassociatedIPs)
	}()
	go func() {
		defer wg.Done()
		report.AccountID, report.Budgets, report.Errors.Budgets = a.scanBudgets(ctx, scanner, req.AccountID)
	}()
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report.GeneratedAt = a.now().UTC()
	report.Summarize()

	attrs := []any{
		"profile", req.ProfileName,
		"account_id", report.AccountID,
		"regions", regions,
		"stopped_instances", report.Summary.StoppedInstances,
		"unattached_volumes", report.Summary.UnattachedVolumes,
		"unassociated_ips", report.Summary.UnassociatedIPs,
		"duration", time.Since(start),
	}
	if report.Summary.Partial {
		a.logger.Warn("audit completed with errors", append(attrs, "errors", report.Errors)...)
	} else {
		a.logger.Info("audit completed", attrs...)
	}

	a.notify(ctx, report)
	return report, nil
}

// scanBudgets resolves the account when it was not supplied and reads its
// budgets. Both failures only affect the budget category.
func (a *Auditor) scanBudgets(ctx context.Context, scanner provider.ResourceScanner, accountID string) (string, []model.BudgetStatus, string) {
	if accountID == "" {
		callCtx, cancel := a.withTimeout(ctx)
		id, err := scanner.AccountID(callCtx)
		cancel()
		if err != nil {
			return "", []model.BudgetStatus{}, fmt.Sprintf("%v: %v", apierrors.ErrIdentityLookupFailed, err)
		}
		accountID = id
	}

	callCtx, cancel := a.withTimeout(ctx)
	defer cancel()
	budgets, err := scanner.Budgets(callCtx, accountID)
	if err != nil {
		a.logger.Warn("budget scan failed", "account_id", accountID, "error", err)
		return accountID, []model.BudgetStatus{}, err.Error()
	}
	if budgets == nil {
		budgets = []model.BudgetStatus{}
	}
	return accountID, budgets, ""
}

func (a *Auditor) notify(ctx context.Context, report *model.AuditReport) {
	if a.notifier == nil {
		return
	}
	attention := lo.Filter(report.Budgets, func(b model.BudgetStatus, _ int) bool {
		return b.NeedsAttention()
	})
	if len(attention) == 0 {
		return
	}
	if err := a.notifier.NotifyBudgets(ctx, report, attention); err != nil {
		a.logger.Error("budget alert delivery failed", "profile", report.ProfileName, "error", err)
	}
}

func (a *Auditor) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.cfg.CallTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.cfg.CallTimeout)
}

type regionResult[T any] struct {
	items []T
	err   error
}

// scanRegions runs fn for every region with bounded concurrency. Results
// keep the region order; failing regions are joined as "region: message".
func scanRegions[T any](ctx context.Context, a *Auditor, regions []string, fn func(context.Context, string) ([]T, error)) ([]T, string) {
	results := make([]regionResult[T], len(regions))

	var g errgroup.Group
	if a.cfg.RegionConcurrency > 0 {
		g.SetLimit(a.cfg.RegionConcurrency)
	}
	for i, region := range regions {
		g.Go(func() error {
			callCtx, cancel := a.withTimeout(ctx)
			defer cancel()
			items, err := fn(callCtx, region)
			results[i] = regionResult[T]{items: items, err: err}
			return nil
		})
	}
	_ = g.Wait()

	items := make([]T, 0)
	var errs []string
	for i, r := range results {
		if r.err != nil {
			a.logger.Warn("region scan failed", "region", regions[i], "error", r.err)
			errs = append(errs, fmt.Sprintf("%s: %v", regions[i], r.err))
			continue
		}
		items = append(items, r.items...)
	}
	return items, strings.Join(errs, "; ")
}

func normalizeRegions(regions []string) []string {
	trimmed := lo.Map(regions, func(r string, _ int) string { return strings.TrimSpace(r) })
	return lo.Uniq(lo.Compact(trimmed))
}
