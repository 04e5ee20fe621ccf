package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/finopsmind/costengine/internal/audit"
	"github.com/finopsmind/costengine/internal/forecast"
	"github.com/finopsmind/costengine/internal/model"
)

// Job names.
const (
	JobForecastRefresh = "forecast-refresh"
	JobAuditSweep      = "audit-sweep"
)

// Forecaster runs a forecast.
type Forecaster interface {
	Forecast(ctx context.Context, req forecast.Request) (*model.ForecastResult, error)
}

// Auditor runs an audit.
type Auditor interface {
	Audit(ctx context.Context, req audit.Request) (*model.AuditReport, error)
}

// Notifier sends job alerts.
type Notifier interface {
	Enabled() bool
	SendForecastAlert(ctx context.Context, result *model.ForecastResult, thresholdPercent float64) error
	SendAuditSummary(ctx context.Context, report *model.AuditReport) error
}

// RunnerConfig selects what the scheduled jobs cover.
type RunnerConfig struct {
	HistoricalDays     int
	ForecastDays       int
	Providers          model.ProviderSet
	AuditProfiles      []string
	AuditRegions       []string
	GrowthAlertPercent float64
}

// Runner implements the scheduled jobs on top of the engine.
type Runner struct {
	forecaster Forecaster
	auditor    Auditor
	notifier   Notifier
	cfg        RunnerConfig
	logger     *slog.Logger
}

// NewRunner creates a new job runner. notifier may be nil.
func NewRunner(forecaster Forecaster, auditor Auditor, notifier Notifier, cfg RunnerConfig, logger *slog.Logger) *Runner {
	return &Runner{
		forecaster: forecaster,
		auditor:    auditor,
		notifier:   notifier,
		cfg:        cfg,
		logger:     logger,
	}
}

// Register adds both jobs to the scheduler.
func (r *Runner) Register(s *Scheduler, forecastSchedule, auditSchedule string) error {
	if err := s.Register(JobForecastRefresh, forecastSchedule, r.RefreshForecast); err != nil {
		return err
	}
	if len(r.cfg.AuditProfiles) == 0 {
		r.logger.Info("audit sweep disabled, no profiles configured")
		return nil
	}
	return s.Register(JobAuditSweep, auditSchedule, r.SweepAudits)
}

// RefreshForecast recomputes the forecast and alerts when monthly growth
// exceeds the configured threshold.
func (r *Runner) RefreshForecast(ctx context.Context) error {
	result, err := r.forecaster.Forecast(ctx, forecast.Request{
		HistoricalDays: r.cfg.HistoricalDays,
		ForecastDays:   r.cfg.ForecastDays,
		Providers:      r.cfg.Providers,
	})
	if err != nil {
		return fmt.Errorf("forecast refresh: %w", err)
	}

	r.logger.Info("forecast refreshed",
		"trend", result.Trend,
		"monthly_growth_rate", result.MonthlyGrowthRate,
		"notes", len(result.Notes),
	)

	if r.notifier == nil || !r.notifier.Enabled() || r.cfg.GrowthAlertPercent <= 0 {
		return nil
	}
	if result.MonthlyGrowthRate > r.cfg.GrowthAlertPercent {
		if err := r.notifier.SendForecastAlert(ctx, result, r.cfg.GrowthAlertPercent); err != nil {
			r.logger.Warn("forecast alert failed", "error", err)
		}
	}
	return nil
}

// SweepAudits audits every configured profile in turn. A failing profile
// does not stop the sweep; all failures are returned together.
func (r *Runner) SweepAudits(ctx context.Context) error {
	var errs []error
	for _, profile := range r.cfg.AuditProfiles {
		report, err := r.auditor.Audit(ctx, audit.Request{ProfileName: profile, Regions: r.cfg.AuditRegions})
		if err != nil {
			r.logger.Error("scheduled audit failed", "profile", profile, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", profile, err))
			continue
		}

		findings := report.Summary.StoppedInstances + report.Summary.UnattachedVolumes + report.Summary.UnassociatedIPs
		if findings > 0 && r.notifier != nil && r.notifier.Enabled() {
			if err := r.notifier.SendAuditSummary(ctx, report); err != nil {
				r.logger.Warn("audit summary alert failed", "profile", profile, "error", err)
			}
		}
	}
	return errors.Join(errs...)
}
