package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/finopsmind/costengine/internal/apierrors"
	"github.com/finopsmind/costengine/internal/correlation"
)

// RouterConfig holds the handlers and HTTP settings of the API.
type RouterConfig struct {
	Forecast       *ForecastHandler
	Audit          *AuditHandler
	Costs          *CostHandler
	AllowedOrigins []string
	RequestTimeout time.Duration
	Providers      []string
	Logger         *slog.Logger
}

// NewRouter builds the chi router for the engine API.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(correlation.Middleware)
	r.Use(requestLogger(cfg.Logger))
	r.Use(middleware.Recoverer)
	r.Use(apierrors.ErrorHandler)
	if cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", correlation.HeaderName},
		ExposedHeaders: []string{correlation.HeaderName, "Content-Disposition"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":    "healthy",
			"providers": cfg.Providers,
		})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/forecast", cfg.Forecast.Create)
		r.Post("/audit", cfg.Audit.Create)
		r.Post("/audit/terraform", cfg.Audit.Terraform)
		r.Get("/costs", cfg.Costs.Get)
	})

	return r
}

// requestLogger logs each request through slog with its correlation ID.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			correlation.Logger(r.Context(), logger).Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
			)
		})
	}
}
