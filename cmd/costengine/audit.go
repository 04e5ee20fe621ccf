package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/finopsmind/costengine/internal/audit"
)

func newAuditCmd() *cobra.Command {
	var (
		profile   string
		accountID string
		regions   []string
		terraform bool
	)

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Find idle compute, storage and addresses and check budgets",
		RunE: func(cmd *cobra.Command, args []string) error {
			if profile == "" {
				return fmt.Errorf("--profile is required")
			}

			ctr, err := bootstrap()
			if err != nil {
				return err
			}
			defer ctr.Stop(cmd.Context())

			report, err := ctr.Auditor().Audit(cmd.Context(), audit.Request{
				ProfileName: profile,
				AccountID:   accountID,
				Regions:     regions,
			})
			if err != nil {
				return err
			}

			if !terraform {
				return printJSON(report)
			}
			plan, err := ctr.Generator().ImportPlan(report)
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(os.Stdout, plan)
			return err
		},
	}

	cmd.Flags().StringVarP(&profile, "profile", "p", "", "profile to audit")
	cmd.Flags().StringVar(&accountID, "account-id", "", "account ID for the budget scan (looked up when empty)")
	cmd.Flags().StringSliceVarP(&regions, "regions", "r", nil, "regions to scan (defaults to the profile region)")
	cmd.Flags().BoolVar(&terraform, "terraform", false, "print a Terraform import plan instead of JSON")

	return cmd
}
