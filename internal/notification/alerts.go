package notification

import (
	"context"
	"errors"
	"fmt"

	"github.com/finopsmind/costengine/internal/model"
)

// SendBudgetAlert sends one budget threshold alert.
func (s *Service) SendBudgetAlert(ctx context.Context, accountID string, b model.BudgetStatus) error {
	eventType := EventBudgetWarning
	title := fmt.Sprintf("Budget Warning: %s", b.Name)
	severity := "medium"
	body := fmt.Sprintf("Budget '%s' has reached %.0f%% of its $%.2f limit (current spend: $%.2f, forecast: $%.2f).",
		b.Name, b.PercentUsed, b.Limit, b.ActualSpend, b.ForecastedSpend)

	if b.Status == model.BudgetStateExceeded {
		eventType = EventBudgetExceeded
		title = fmt.Sprintf("Budget Exceeded: %s", b.Name)
		severity = "high"
		body = fmt.Sprintf("Budget '%s' has been exceeded. Limit: $%.2f, Current spend: $%.2f (%.0f%% used).",
			b.Name, b.Limit, b.ActualSpend, b.PercentUsed)
	}

	return s.Send(ctx, Message{
		EventType: eventType,
		Title:     title,
		Body:      body,
		Severity:  severity,
		Data: map[string]any{
			"Account":  accountID,
			"Budget":   b.Name,
			"Limit":    fmt.Sprintf("$%.2f", b.Limit),
			"Spent":    fmt.Sprintf("$%.2f", b.ActualSpend),
			"Forecast": fmt.Sprintf("$%.2f", b.ForecastedSpend),
			"Used":     fmt.Sprintf("%.2f%%", b.PercentUsed),
		},
	})
}

// NotifyBudgets sends one alert per budget and joins the failures.
func (s *Service) NotifyBudgets(ctx context.Context, report *model.AuditReport, budgets []model.BudgetStatus) error {
	if !s.Enabled() {
		return nil
	}
	var errs []error
	for _, b := range budgets {
		if err := s.SendBudgetAlert(ctx, report.AccountID, b); err != nil {
			errs = append(errs, fmt.Errorf("budget %s: %w", b.Name, err))
		}
	}
	return errors.Join(errs...)
}

// SendAuditSummary reports idle resources found by a scheduled audit.
func (s *Service) SendAuditSummary(ctx context.Context, report *model.AuditReport) error {
	sum := report.Summary
	severity := "low"
	if sum.Partial {
		severity = "medium"
	}
	return s.Send(ctx, Message{
		EventType: EventAuditFindings,
		Title:     fmt.Sprintf("Idle resources in %s", report.ProfileName),
		Body: fmt.Sprintf("%d stopped instances, %d unattached volumes (%d GiB), %d unassociated IPs.",
			sum.StoppedInstances, sum.UnattachedVolumes, sum.UnattachedGiB, sum.UnassociatedIPs),
		Severity: severity,
		Data: map[string]any{
			"Profile": report.ProfileName,
			"Account": report.AccountID,
			"Report":  report.ID,
			"Partial": sum.Partial,
		},
	})
}

// SendForecastAlert reports a projected monthly growth above the threshold.
func (s *Service) SendForecastAlert(ctx context.Context, result *model.ForecastResult, thresholdPercent float64) error {
	var next float64
	if n := len(result.Forecast); n > 0 {
		next = result.Forecast[n-1].Forecasted
	}
	return s.Send(ctx, Message{
		EventType: EventForecastGrowth,
		Title:     fmt.Sprintf("Spend growing %.1f%% per month", result.MonthlyGrowthRate),
		Body: fmt.Sprintf("Daily spend is projected to reach $%.2f in %d days (threshold %.0f%%).",
			next, result.ForecastDays, thresholdPercent),
		Severity: "medium",
		Data: map[string]any{
			"Growth":  fmt.Sprintf("%.2f%%", result.MonthlyGrowthRate),
			"Trend":   string(result.Trend),
			"Horizon": result.ForecastDays,
		},
	})
}
