package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/michaelpento.lv/arbscope/engine"
	"github.com/michaelpento.lv/arbscope/market"
	"github.com/michaelpento.lv/arbscope/utils"
	"github.com/michaelpento.lv/arbscope/utils/metrics"
	"github.com/michaelpento.lv/arbscope/utils/monitor"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Plan every snapshot delivered by the snapshot file feed",
	Long: `run polls the snapshot file on the refresh interval and emits one JSON
plan per admitted tick. Snapshots arriving while a tick is in flight are
dropped. SIGHUP reloads the tables file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, eng, log, err := setup()
		if err != nil {
			return err
		}
		defer utils.CleanupLogger()

		runner, err := engine.NewRunner(eng, newJSONSink(cmd.OutOrStdout(), log), engine.RunnerConfig{
			MaxTickRate:    cfg.MaxTickRate,
			TickBurst:      cfg.TickBurst,
			ReportSchedule: cfg.ReportSchedule,
		}, log)
		if err != nil {
			return err
		}

		ctx := cmd.Context()

		go reloadOnHangup(ctx, cfg.TablesPath, eng, log)

		if cfg.RuntimeSampleInterval > 0 {
			mon := monitor.NewRuntimeMonitor("arbscope", cfg.RuntimeSampleInterval, metrics.Registry(), log)
			mon.Start(ctx)
			defer func() {
				mon.Stop()
				mon.Log()
			}()
		}

		feed := market.NewFileFeed(cfg.SnapshotPath, cfg.RefreshInterval, log)
		if err := runner.Run(ctx, feed.Start(ctx)); err != nil {
			return err
		}

		runner.Report()
		log.Info("Shutting down gracefully...")
		return nil
	},
}

func reloadOnHangup(ctx context.Context, path string, eng *engine.Engine, log *zap.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			tables, err := market.LoadTables(path)
			if err != nil {
				log.Error("Failed to reload tables", zap.String("path", path), zap.Error(err))
				continue
			}
			if err := eng.ReloadTables(tables); err != nil {
				log.Error("Rejected reloaded tables", zap.Error(err))
			}
		}
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
}
