package cmd

import (
	"context"
	"fmt"

	"github.com/michaelpento.lv/arbscope/config"
	"github.com/michaelpento.lv/arbscope/engine"
	"github.com/michaelpento.lv/arbscope/flashloan"
	"github.com/michaelpento.lv/arbscope/market"
	"github.com/michaelpento.lv/arbscope/utils"
	"github.com/michaelpento.lv/arbscope/utils/metrics"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	cfgFile string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "arbscope",
	Short: "Find and batch cross-chain arbitrage opportunities",
	Long: `arbscope enumerates triangle, multi-hop and bridge spread opportunities
from market snapshots, prices them net of trading, bridge and flash-loan fees,
and groups the best of them into capital-bounded execution batches.`,
	SilenceUsage: true,
}

// ExecuteContext runs the root command. Commands stop when ctx is cancelled.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./"+config.DefaultConfigFile+")")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

func initConfig() {
	if err := config.LoadEnv(); err != nil {
		fmt.Printf("Warning: failed to load .env: %v\n", err)
	}
}

// setup loads the configuration, starts the logger and builds an engine
// over the configured tables
func setup() (*config.Config, *engine.Engine, *zap.Logger, error) {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return nil, nil, nil, err
	}

	log := utils.InitLogger(utils.LogOptions{
		Debug: debug || cfg.Debug,
		File:  cfg.LogFile,
	})

	tables, err := market.LoadTables(cfg.TablesPath)
	if err != nil {
		return nil, nil, nil, err
	}

	ledger := flashloan.NewLedger(cfg.Ledger, log)
	eng, err := engine.New(engine.OptionsFromConfig(cfg), tables, ledger, metrics.Registry(), log)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create engine: %w", err)
	}

	log.Info("Engine ready",
		zap.String("tables", cfg.TablesPath),
		zap.Int("pairs", len(tables.Pairs)),
		zap.Int("bridges", len(tables.Bridges)),
		zap.Int("providers", len(tables.Providers)))

	return cfg, eng, log, nil
}
