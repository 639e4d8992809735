package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func reconcileCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Recover pending orders that were paid at the gateway",
		Long: `Scan pending orders older than the grace period and finalize those
whose gateway order is paid. Prints the run summary as JSON.

Examples:
  paymentctl reconcile
  paymentctl reconcile --timeout 2m`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			summary, err := a.Reconciler.Run(ctx)
			if err != nil {
				return fmt.Errorf("reconcile: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), summary)
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "maximum run time")

	return cmd
}
