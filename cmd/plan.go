package cmd

import (
	"fmt"

	"github.com/michaelpento.lv/arbscope/market"
	"github.com/michaelpento.lv/arbscope/utils"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var snapshotFile string

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Run one tick over a snapshot file and print the plan as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, eng, log, err := setup()
		if err != nil {
			return err
		}
		defer utils.CleanupLogger()

		path := snapshotFile
		if path == "" {
			path = cfg.SnapshotPath
		}
		snap, err := market.LoadSnapshot(path)
		if err != nil {
			return err
		}

		plan, err := eng.Tick(cmd.Context(), snap)
		if err != nil {
			return fmt.Errorf("tick failed: %w", err)
		}

		log.Info("Plan ready",
			zap.String("plan_id", plan.ID),
			zap.Int("opportunities", len(plan.Opportunities)),
			zap.Int("batches", len(plan.Batches)),
			zap.Bool("degraded", plan.Degraded))

		return newJSONSink(cmd.OutOrStdout(), log).Write(plan)
	},
}

func init() {
	rootCmd.AddCommand(planCmd)
	planCmd.Flags().StringVar(&snapshotFile, "snapshot", "", "snapshot file (default from config)")
}
