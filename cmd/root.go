package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/haral/audit-reports/internal/config"
	"github.com/haral/audit-reports/internal/service"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "audit-reports",
	Short: "Pallet wrapping audit reports",
	Long:  "Manages customers and pallet-wrapping film audits, computes savings metrics and renders branded PDF audit reports.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	os.Exit(exitCode(rootCmd.Execute()))
}

// exitCode maps a command error to the process exit status: 2 for rejected
// input, 1 for any other failure.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case service.IsValidation(err):
		return 2
	default:
		return 1
	}
}
