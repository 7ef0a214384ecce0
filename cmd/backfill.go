package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vostroslava/teremok-platform/internal/session"
)

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Migrate legacy result tables into the unified session store",
	Long:  "Reads test_results and formula_rsp_results, joins contact fields, and inserts unified sessions keyed by (legacy_source, legacy_id). Safe to re-run: already-migrated rows are skipped.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		counts, err := session.NewBackfiller(env.Store).Run(ctx)
		if err != nil {
			return err
		}

		zap.L().Info("backfill complete",
			zap.Int("teremok", counts.Teremok),
			zap.Int("formula_rsp", counts.Formula),
			zap.Int("inserted", counts.Inserted),
			zap.Int("skipped", counts.Skipped))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(backfillCmd)
}
