package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/finopsmind/costengine/internal/apierrors"
	"github.com/finopsmind/costengine/internal/costs"
	"github.com/finopsmind/costengine/internal/daterange"
	"github.com/finopsmind/costengine/internal/model"
)

// CostQuerier runs a cost query.
type CostQuerier interface {
	GetCost(ctx context.Context, req costs.Request) model.CostQueryResult
}

// CostHandler exposes the cost aggregator.
type CostHandler struct {
	costs  CostQuerier
	logger *slog.Logger
}

func NewCostHandler(costs CostQuerier, logger *slog.Logger) *CostHandler {
	return &CostHandler{costs: costs, logger: logger}
}

// Get handles GET /api/v1/costs. Provider failures come back as a result
// with status "error"; only malformed parameters are rejected.
func (h *CostHandler) Get(w http.ResponseWriter, r *http.Request) {
	req, err := parseCostRequest(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, h.costs.GetCost(r.Context(), req))
}

func parseCostRequest(r *http.Request) (costs.Request, error) {
	q := r.URL.Query()
	req := costs.Request{
		Profile: q.Get("profile"),
		GroupBy: q.Get("groupBy"),
		Window: daterange.Window{
			Start: q.Get("start"),
			End:   q.Get("end"),
		},
	}
	if req.Profile == "" {
		return req, fmt.Errorf("%w: profile is required", apierrors.ErrValidation)
	}

	if s := q.Get("days"); s != "" {
		days, err := strconv.Atoi(s)
		if err != nil || days < 0 {
			return req, fmt.Errorf("%w: days must be a non-negative integer", apierrors.ErrValidation)
		}
		req.Window.DaysBack = days
	}

	var err error
	if req.Filters.Tags, err = parsePairs(q["tag"]); err != nil {
		return req, err
	}
	if req.Filters.Dimensions, err = parsePairs(q["dimension"]); err != nil {
		return req, err
	}
	return req, nil
}

// parsePairs turns ["k:v", ...] into a map. Nil when empty.
func parsePairs(values []string) (map[string]string, error) {
	if len(values) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(values))
	for _, v := range values {
		key, value, ok := strings.Cut(v, ":")
		if !ok || key == "" {
			return nil, fmt.Errorf("%w: filter %q must be key:value", apierrors.ErrValidation, v)
		}
		out[key] = value
	}
	return out, nil
}
