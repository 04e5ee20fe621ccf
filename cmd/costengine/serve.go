package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/finopsmind/costengine/internal/handler"
	"github.com/finopsmind/costengine/internal/model"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and background jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctr, err := bootstrap()
			if err != nil {
				return err
			}
			cfg := ctr.Config()
			logger := ctr.Logger()

			providers := ctr.ProviderRegistry().Names()
			if cfg.Engine.GCPInstanceMonthlyCost > 0 {
				providers = append(providers, string(model.CloudProviderGCP))
			}

			router := handler.NewRouter(handler.RouterConfig{
				Forecast: handler.NewForecastHandler(ctr.Forecaster(), handler.ForecastDefaults{
					HistoricalDays: cfg.Engine.DefaultHistoricalDays,
					ForecastDays:   cfg.Engine.DefaultForecastDays,
				}, logger),
				Audit:          handler.NewAuditHandler(ctr.Auditor(), ctr.Generator(), logger),
				Costs:          handler.NewCostHandler(ctr.Aggregator(), logger),
				AllowedOrigins: cfg.Server.AllowedOrigins,
				RequestTimeout: cfg.Server.RequestTimeout,
				Providers:      providers,
				Logger:         logger,
			})

			if err := ctr.Start(); err != nil {
				return fmt.Errorf("starting background jobs: %w", err)
			}

			addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
			srv := &http.Server{
				Addr:         addr,
				Handler:      router,
				ReadTimeout:  cfg.Server.ReadTimeout,
				WriteTimeout: cfg.Server.WriteTimeout,
				IdleTimeout:  60 * time.Second,
			}

			// Graceful shutdown
			done := make(chan struct{})
			go func() {
				defer close(done)
				sigChan := make(chan os.Signal, 1)
				signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
				<-sigChan

				logger.Info("shutting down server...")

				shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
				defer cancel()

				if err := srv.Shutdown(shutdownCtx); err != nil {
					logger.Error("server shutdown error", "error", err)
				}
				if err := ctr.Stop(shutdownCtx); err != nil {
					logger.Error("container shutdown error", "error", err)
				}
			}()

			logger.Info("cost engine API starting", "addr", addr)
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server error: %w", err)
			}

			<-done
			logger.Info("server stopped")
			return nil
		},
	}
}
