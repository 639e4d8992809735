package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func processEventsCmd() *cobra.Command {
	var (
		timeout time.Duration
		drain   bool
	)

	cmd := &cobra.Command{
		Use:   "process-events",
		Short: "Process pending events from the event queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			processed, failed := 0, 0
			for {
				results, err := a.Events.ProcessPending(ctx)
				if err != nil {
					return fmt.Errorf("process events: %w", err)
				}
				for _, r := range results {
					if err := printJSON(cmd.OutOrStdout(), r); err != nil {
						return err
					}
					if !r.Success {
						failed++
					}
				}
				processed += len(results)
				if !drain || len(results) == 0 {
					break
				}
			}

			fmt.Fprintf(cmd.ErrOrStderr(), "processed=%d failed=%d\n", processed, failed)
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "maximum run time")
	cmd.Flags().BoolVar(&drain, "drain", false, "keep processing batches until the queue is empty")

	return cmd
}
