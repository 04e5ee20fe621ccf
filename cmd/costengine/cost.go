package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/finopsmind/costengine/internal/costs"
	"github.com/finopsmind/costengine/internal/daterange"
	"github.com/finopsmind/costengine/internal/model"
)

func newCostCmd() *cobra.Command {
	var (
		profile    string
		days       int
		start      string
		end        string
		groupBy    string
		tags       []string
		dimensions []string
	)

	cmd := &cobra.Command{
		Use:   "cost",
		Short: "Query grouped cost for one profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			if profile == "" {
				return fmt.Errorf("--profile is required")
			}

			filters := model.CostFilters{}
			var err error
			if filters.Tags, err = splitPairs(tags); err != nil {
				return err
			}
			if filters.Dimensions, err = splitPairs(dimensions); err != nil {
				return err
			}

			ctr, err := bootstrap()
			if err != nil {
				return err
			}
			defer ctr.Stop(cmd.Context())

			result := ctr.Aggregator().GetCost(cmd.Context(), costs.Request{
				Profile: profile,
				Window:  daterange.Window{DaysBack: days, Start: start, End: end},
				GroupBy: groupBy,
				Filters: filters,
			})
			if err := printJSON(result); err != nil {
				return err
			}
			if !result.OK() {
				return fmt.Errorf("cost query failed: %s", result.Message)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&profile, "profile", "p", "", "profile to query")
	cmd.Flags().IntVarP(&days, "days", "d", 0, "trailing days (0 uses the default window)")
	cmd.Flags().StringVar(&start, "start", "", "start date YYYY-MM-DD")
	cmd.Flags().StringVar(&end, "end", "", "end date YYYY-MM-DD (inclusive)")
	cmd.Flags().StringVarP(&groupBy, "group-by", "g", "", "SERVICE, REGION, tag:<key>, ...")
	cmd.Flags().StringArrayVar(&tags, "tag", nil, "tag filter key:value (repeatable)")
	cmd.Flags().StringArrayVar(&dimensions, "dimension", nil, "dimension filter KEY:value (repeatable)")

	return cmd
}

func splitPairs(values []string) (map[string]string, error) {
	if len(values) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(values))
	for _, v := range values {
		key, value, ok := strings.Cut(v, ":")
		if !ok || key == "" {
			return nil, fmt.Errorf("filter %q must be key:value", v)
		}
		out[key] = value
	}
	return out, nil
}
