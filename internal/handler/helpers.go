package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/finopsmind/costengine/internal/apierrors"
	"github.com/finopsmind/costengine/internal/correlation"
)

// maxBodyBytes bounds request bodies. Service account keys are a few KiB.
const maxBodyBytes = 1 << 20

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// writeError renders err through the engine error taxonomy and logs it with
// the request's correlation ID.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	apiErr := apierrors.FromError(err)
	log := correlation.Logger(r.Context(), logger)
	if apiErr.StatusCode >= http.StatusInternalServerError {
		log.Error("request failed", "path", r.URL.Path, "status", apiErr.StatusCode, "error", err)
	} else {
		log.Warn("request rejected", "path", r.URL.Path, "status", apiErr.StatusCode, "error", err)
	}
	apiErr.Write(w, r)
}

// decodeJSON decodes a bounded request body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apierrors.NewBadRequestError(fmt.Sprintf("invalid request body: %v", err))
	}
	return nil
}
