// Package correlation carries a request correlation ID through contexts and logs.
package correlation

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
)

type contextKey string

const correlationIDKey contextKey = "correlation_id"

// HeaderName is the HTTP header for correlation IDs.
const HeaderName = "X-Correlation-ID"

// NewID creates a new correlation ID.
func NewID() string {
	return uuid.New().String()
}

// Middleware reuses an incoming correlation ID or mints one, stores it in the
// request context and echoes it in the response.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(HeaderName)
		if id == "" {
			id = NewID()
		}
		w.Header().Set(HeaderName, id)
		next.ServeHTTP(w, r.WithContext(WithID(r.Context(), id)))
	})
}

// GetID retrieves the correlation ID from context.
func GetID(ctx context.Context) string {
	if id, ok := ctx.Value(correlationIDKey).(string); ok {
		return id
	}
	return ""
}

// WithID adds a correlation ID to the context.
func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey, id)
}

// Logger returns base annotated with the context's correlation ID, if any.
func Logger(ctx context.Context, base *slog.Logger) *slog.Logger {
	if id := GetID(ctx); id != "" {
		return base.With("correlation_id", id)
	}
	return base
}
