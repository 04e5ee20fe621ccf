package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/finopsmind/costengine/internal/forecast"
	"github.com/finopsmind/costengine/internal/model"
)

func newForecastCmd() *cobra.Command {
	var (
		days      int
		history   int
		providers []string
		gcpProj   string
	)

	cmd := &cobra.Command{
		Use:   "forecast",
		Short: "Forecast daily spend across connected providers",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctr, err := bootstrap()
			if err != nil {
				return err
			}
			defer ctr.Stop(cmd.Context())

			set, err := model.ParseProviderSet(providers)
			if err != nil {
				return err
			}

			req := forecast.Request{
				HistoricalDays: ctr.Config().Engine.DefaultHistoricalDays,
				ForecastDays:   ctr.Config().Engine.DefaultForecastDays,
				Providers:      set,
			}
			if cmd.Flags().Changed("history") {
				req.HistoricalDays = history
			}
			if cmd.Flags().Changed("days") {
				req.ForecastDays = days
			}
			if gcpProj != "" {
				req.GCP = &model.GCPCredentials{ProjectID: gcpProj}
			}

			result, err := ctr.Forecaster().Forecast(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}

	cmd.Flags().IntVarP(&days, "days", "d", 30, "days to forecast")
	cmd.Flags().IntVar(&history, "history", 30, "days of history to fit")
	cmd.Flags().StringSliceVar(&providers, "providers", []string{"aws"}, "connected providers (aws, azure, gcp)")
	cmd.Flags().StringVar(&gcpProj, "gcp-project", "", "GCP project for the instance-count estimate")

	return cmd
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
