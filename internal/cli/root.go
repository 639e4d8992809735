package cli

import (
	"encoding/json"
	"io"

	"payment-service/config"
	"payment-service/internal/app"
	"payment-service/internal/util"

	"github.com/spf13/cobra"
)

var Version = "dev"

// NewRootCommand builds the paymentctl command tree
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "paymentctl",
		Short:         "Operational tasks for the payment service",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(reconcileCmd())
	rootCmd.AddCommand(processEventsCmd())
	rootCmd.AddCommand(migrateCmd())

	return rootCmd
}

// loadApp reads configuration and wires services without Redis
func loadApp() (*app.App, error) {
	cfg := config.Load()
	if err := util.InitLogger(cfg.Server.Env); err != nil {
		return nil, err
	}
	return app.New(cfg)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
