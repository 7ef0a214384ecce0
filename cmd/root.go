package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vostroslava/teremok-platform/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "teremok-platform",
	Short: "Lead capture and self-test platform",
	Long:  "Serves the teremok and formula_rsp test APIs, deduplicates incoming leads, and migrates legacy result tables into the unified session store.",
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
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
