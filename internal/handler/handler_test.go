package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finopsmind/costengine/internal/apierrors"
	"github.com/finopsmind/costengine/internal/audit"
	"github.com/finopsmind/costengine/internal/correlation"
	"github.com/finopsmind/costengine/internal/costs"
	"github.com/finopsmind/costengine/internal/forecast"
	"github.com/finopsmind/costengine/internal/model"
)

type stubForecaster struct {
	got forecast.Request
	err error
}

func (s *stubForecaster) Forecast(_ context.Context, req forecast.Request) (*model.ForecastResult, error) {
	s.got = req
	if s.err != nil {
		return nil, s.err
	}
	return &model.ForecastResult{
		HistoricalDays: req.HistoricalDays,
		ForecastDays:   req.ForecastDays,
		Historical:     []model.DailyProviderCost{{Date: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), AWS: 10, Total: 10}},
		Forecast:       []model.ForecastPoint{{Forecasted: 11, ConfidenceUpper: 12, ConfidenceLower: 10}},
		Trend:          model.TrendIncreasing,
		Notes:          []string{model.GCPEstimateNote},
	}, nil
}

type stubAuditor struct {
	got audit.Request
	err error
}

func (s *stubAuditor) Audit(_ context.Context, req audit.Request) (*model.AuditReport, error) {
	s.got = req
	if s.err != nil {
		return nil, s.err
	}
	return &model.AuditReport{
		ProfileName:      req.ProfileName,
		StoppedInstances: []model.StoppedInstance{{ID: "i-1", Region: "us-east-1"}},
		Errors:           model.AuditErrors{Budgets: "AccessDenied"},
	}, nil
}

type stubPlan struct{}

func (stubPlan) ImportPlan(r *model.AuditReport) (string, error) {
	return fmt.Sprintf("# plan for %s\n", r.ProfileName), nil
}

type stubCosts struct {
	got costs.Request
}

func (s *stubCosts) GetCost(_ context.Context, req costs.Request) model.CostQueryResult {
	s.got = req
	return model.CostQueryResult{Status: model.QueryStatusError, Message: "provider query failed: throttled", CostByDimension: []model.DimensionCost{}}
}

type fixture struct {
	forecaster *stubForecaster
	auditor    *stubAuditor
	costs      *stubCosts
	router     http.Handler
}

func newFixture() *fixture {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := &fixture{forecaster: &stubForecaster{}, auditor: &stubAuditor{}, costs: &stubCosts{}}
	f.router = NewRouter(RouterConfig{
		Forecast:       NewForecastHandler(f.forecaster, ForecastDefaults{HistoricalDays: 30, ForecastDays: 14}, logger),
		Audit:          NewAuditHandler(f.auditor, stubPlan{}, logger),
		Costs:          NewCostHandler(f.costs, logger),
		AllowedOrigins: []string{"*"},
		RequestTimeout: 5 * time.Second,
		Providers:      []string{"aws", "azure"},
		Logger:         logger,
	})
	return f
}

func (f *fixture) do(method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	rec := newFixture().do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(correlation.HeaderName))
	assert.Equal(t, "healthy", decode(t, rec)["status"])
}

func TestForecastSuccess(t *testing.T) {
	f := newFixture()
	rec := f.do(http.MethodPost, "/api/v1/forecast",
		`{"forecastDays": 7, "connectedProviders": ["aws", "gcp"], "gcpCredentials": {"projectId": "p1"}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(7), body["forecastDays"])
	assert.Equal(t, float64(30), body["historicalDays"])
	assert.Equal(t, "increasing", body["trend"])
	assert.Len(t, body["historical"], 1)
	assert.Len(t, body["forecast"], 1)
	assert.Len(t, body["notes"], 1)

	assert.Equal(t, 30, f.forecaster.got.HistoricalDays)
	assert.True(t, f.forecaster.got.Providers.Has(model.CloudProviderGCP))
	require.NotNil(t, f.forecaster.got.GCP)
	assert.Equal(t, "p1", f.forecaster.got.GCP.ProjectID)
}

func TestForecastErrors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		err    error
		status int
		code   string
	}{
		{"malformed body", `{"forecastDays":`, nil, http.StatusBadRequest, "BAD_REQUEST"},
		{"unknown provider", `{"connectedProviders":["oracle"]}`, nil, http.StatusUnprocessableEntity, "VALIDATION_ERROR"},
		{"no providers", `{"connectedProviders":[]}`, nil, http.StatusUnprocessableEntity, "VALIDATION_ERROR"},
		{"engine validation", `{"forecastDays":-1,"connectedProviders":["aws"]}`,
			fmt.Errorf("%w: day counts must not be negative", apierrors.ErrValidation), http.StatusUnprocessableEntity, "VALIDATION_ERROR"},
		{"cancelled", `{"connectedProviders":["aws"]}`, context.Canceled, http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.forecaster.err = tt.err
			rec := f.do(http.MethodPost, "/api/v1/forecast", tt.body)
			assert.Equal(t, tt.status, rec.Code)

			body := decode(t, rec)
			assert.Equal(t, false, body["success"])
			assert.Equal(t, tt.code, body["error"])
			assert.NotEmpty(t, body["message"])
		})
	}
}

func TestAudit(t *testing.T) {
	f := newFixture()
	rec := f.do(http.MethodPost, "/api/v1/audit", `{"profileName":"prod","regions":["us-east-1","us-west-2"]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, "prod", body["profileName"])
	assert.Len(t, body["stoppedInstances"], 1)
	assert.Equal(t, "AccessDenied", body["errors"].(map[string]any)["budgets"])
	assert.Equal(t, []string{"us-east-1", "us-west-2"}, f.auditor.got.Regions)
}

func TestAuditUnknownProfile(t *testing.T) {
	f := newFixture()
	f.auditor.err = fmt.Errorf("%w: profile \"nope\"", apierrors.ErrCredentialNotFound)
	rec := f.do(http.MethodPost, "/api/v1/audit", `{"profileName":"nope"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "CREDENTIAL_NOT_FOUND", decode(t, rec)["error"])
}

func TestAuditTerraform(t *testing.T) {
	rec := newFixture().do(http.MethodPost, "/api/v1/audit/terraform", `{"profileName":"prod"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "# plan for prod\n", rec.Body.String())
}

func TestCosts(t *testing.T) {
	f := newFixture()
	rec := f.do(http.MethodGet, "/api/v1/costs?profile=prod&days=7&groupBy=tag:team&tag=env:prod&dimension=SERVICE:Amazon%20EC2", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, "error", body["status"])
	assert.Contains(t, body["message"], "throttled")

	got := f.costs.got
	assert.Equal(t, "prod", got.Profile)
	assert.Equal(t, 7, got.Window.DaysBack)
	assert.Equal(t, "tag:team", got.GroupBy)
	assert.Equal(t, map[string]string{"env": "prod"}, got.Filters.Tags)
	assert.Equal(t, map[string]string{"SERVICE": "Amazon EC2"}, got.Filters.Dimensions)
}

func TestCostsValidation(t *testing.T) {
	f := newFixture()
	for _, target := range []string{
		"/api/v1/costs",
		"/api/v1/costs?profile=prod&days=-2",
		"/api/v1/costs?profile=prod&days=abc",
		"/api/v1/costs?profile=prod&tag=novalue",
	} {
		rec := f.do(http.MethodGet, target, "")
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, target)
	}
}

func TestWriteErrorUsesTaxonomy(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	writeError(rec, req, slog.New(slog.NewTextHandler(io.Discard, nil)), fmt.Errorf("wrap: %w", apierrors.ErrProviderQueryFailed))
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	rec = httptest.NewRecorder()
	writeError(rec, req, slog.New(slog.NewTextHandler(io.Discard, nil)), errors.New("boom"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
