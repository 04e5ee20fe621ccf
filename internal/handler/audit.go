package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/finopsmind/costengine/internal/audit"
	"github.com/finopsmind/costengine/internal/model"
)

// Auditor runs a resource audit.
type Auditor interface {
	Audit(ctx context.Context, req audit.Request) (*model.AuditReport, error)
}

// PlanGenerator renders an audit report as a Terraform import plan.
type PlanGenerator interface {
	ImportPlan(report *model.AuditReport) (string, error)
}

// AuditHandler handles resource audit requests.
type AuditHandler struct {
	auditor   Auditor
	generator PlanGenerator
	logger    *slog.Logger
}

func NewAuditHandler(auditor Auditor, generator PlanGenerator, logger *slog.Logger) *AuditHandler {
	return &AuditHandler{auditor: auditor, generator: generator, logger: logger}
}

// AuditRequest is the body of both audit endpoints.
type AuditRequest struct {
	ProfileName string   `json:"profileName"`
	AccountID   string   `json:"accountId"`
	Regions     []string `json:"regions"`
}

// Create handles POST /api/v1/audit
func (h *AuditHandler) Create(w http.ResponseWriter, r *http.Request) {
	report, ok := h.run(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// Terraform handles POST /api/v1/audit/terraform
func (h *AuditHandler) Terraform(w http.ResponseWriter, r *http.Request) {
	report, ok := h.run(w, r)
	if !ok {
		return
	}

	plan, err := h.generator.ImportPlan(report)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="idle-resources.tf"`)
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(plan))
}

func (h *AuditHandler) run(w http.ResponseWriter, r *http.Request) (*model.AuditReport, bool) {
	var body AuditRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, r, h.logger, err)
		return nil, false
	}

	report, err := h.auditor.Audit(r.Context(), audit.Request{
		ProfileName: body.ProfileName,
		AccountID:   body.AccountID,
		Regions:     body.Regions,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return nil, false
	}
	return report, true
}
