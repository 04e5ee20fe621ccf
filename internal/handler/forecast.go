package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/finopsmind/costengine/internal/apierrors"
	"github.com/finopsmind/costengine/internal/forecast"
	"github.com/finopsmind/costengine/internal/model"
)

// Forecaster runs a forecast.
type Forecaster interface {
	Forecast(ctx context.Context, req forecast.Request) (*model.ForecastResult, error)
}

// ForecastDefaults fill in day counts a request leaves out.
type ForecastDefaults struct {
	HistoricalDays int
	ForecastDays   int
}

// ForecastHandler handles cost forecast API requests
type ForecastHandler struct {
	engine   Forecaster
	defaults ForecastDefaults
	logger   *slog.Logger
}

// NewForecastHandler creates a new ForecastHandler
func NewForecastHandler(engine Forecaster, defaults ForecastDefaults, logger *slog.Logger) *ForecastHandler {
	return &ForecastHandler{engine: engine, defaults: defaults, logger: logger}
}

// GCPCredentialsRequest carries caller-supplied GCP credentials.
type GCPCredentialsRequest struct {
	ProjectID          string `json:"projectId"`
	ServiceAccountJSON string `json:"serviceAccountJson"`
	BillingAccountID   string `json:"billingAccountId"`
}

// ForecastRequest represents the API request for forecasting
type ForecastRequest struct {
	ForecastDays       *int                   `json:"forecastDays"`
	HistoricalDays     *int                   `json:"historicalDays"`
	ConnectedProviders []string               `json:"connectedProviders"`
	GCPCredentials     *GCPCredentialsRequest `json:"gcpCredentials"`
}

// ForecastResponse is the successful forecast body.
type ForecastResponse struct {
	Success           bool                      `json:"success"`
	ForecastDays      int                       `json:"forecastDays"`
	HistoricalDays    int                       `json:"historicalDays"`
	Historical        []model.DailyProviderCost `json:"historical"`
	Forecast          []model.ForecastPoint     `json:"forecast"`
	Trend             model.Trend               `json:"trend"`
	MonthlyGrowthRate float64                   `json:"monthlyGrowthRate"`
	Notes             []string                  `json:"notes,omitempty"`
	GeneratedAt       time.Time                 `json:"generatedAt"`
}

// Create handles POST /api/v1/forecast
func (h *ForecastHandler) Create(w http.ResponseWriter, r *http.Request) {
	var body ForecastRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	req, err := h.toRequest(body)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	result, err := h.engine.Forecast(r.Context(), req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, ForecastResponse{
		Success:           true,
		ForecastDays:      result.ForecastDays,
		HistoricalDays:    result.HistoricalDays,
		Historical:        result.Historical,
		Forecast:          result.Forecast,
		Trend:             result.Trend,
		MonthlyGrowthRate: result.MonthlyGrowthRate,
		Notes:             result.Notes,
		GeneratedAt:       time.Now().UTC(),
	})
}

func (h *ForecastHandler) toRequest(body ForecastRequest) (forecast.Request, error) {
	providers, err := model.ParseProviderSet(body.ConnectedProviders)
	if err != nil {
		return forecast.Request{}, fmt.Errorf("%w: %v", apierrors.ErrValidation, err)
	}
	if len(providers) == 0 {
		return forecast.Request{}, fmt.Errorf("%w: connectedProviders must name at least one provider", apierrors.ErrValidation)
	}

	req := forecast.Request{
		HistoricalDays: h.defaults.HistoricalDays,
		ForecastDays:   h.defaults.ForecastDays,
		Providers:      providers,
	}
	if body.HistoricalDays != nil {
		req.HistoricalDays = *body.HistoricalDays
	}
	if body.ForecastDays != nil {
		req.ForecastDays = *body.ForecastDays
	}
	if gc := body.GCPCredentials; gc != nil {
		req.GCP = &model.GCPCredentials{
			ProjectID:          gc.ProjectID,
			ServiceAccountJSON: gc.ServiceAccountJSON,
			BillingAccountID:   gc.BillingAccountID,
		}
	}
	return req, nil
}
