package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/michaelpento.lv/arbscope/batch"
	"github.com/michaelpento.lv/arbscope/flashloan"
	"github.com/michaelpento.lv/arbscope/gas"
	"github.com/michaelpento.lv/arbscope/profit"
	"github.com/michaelpento.lv/arbscope/strategies/bridgespread"
	"github.com/michaelpento.lv/arbscope/strategies/multihop"
	"github.com/michaelpento.lv/arbscope/strategies/triangle"
	"github.com/michaelpento.lv/arbscope/types"

	"gopkg.in/yaml.v2"
)

const DefaultConfigFile = "arbscope.yaml"

type Config struct {
	// Inputs
	TablesPath   string `yaml:"tables_path"`
	SnapshotPath string `yaml:"snapshot_path"`

	// Tick loop
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	MaxTickRate     float64       `yaml:"max_tick_rate"` // admitted ticks per second
	TickBurst       int           `yaml:"tick_burst"`
	ReportSchedule  string        `yaml:"report_schedule"` // cron spec, empty disables
	PlanHistorySize int           `yaml:"plan_history_size"`

	RuntimeSampleInterval time.Duration `yaml:"runtime_sample_interval"` // 0 disables runtime gauges

	// Logging
	Debug   bool   `yaml:"debug"`
	LogFile string `yaml:"log_file"`

	Triangle TriangleConfig        `yaml:"triangle"`
	MultiHop MultiHopConfig        `yaml:"multihop"`
	Bridge   BridgeConfig          `yaml:"bridge"`
	Batch    BatchConfig           `yaml:"batch"`
	Gas      GasConfig             `yaml:"gas"`
	Ledger   flashloan.LedgerState `yaml:"ledger"` // seed values
}

type TriangleConfig struct {
	Notional   float64       `yaml:"notional"`
	MinProfit  float64       `yaml:"min_profit"`
	LegLatency time.Duration `yaml:"leg_latency"`
	Budget     time.Duration `yaml:"budget"`
}

type MultiHopConfig struct {
	Notional       float64       `yaml:"notional"`
	MaxPathLength  int           `yaml:"max_path_length"`
	BridgeFeeRate  float64       `yaml:"bridge_fee_rate"`
	TradingFeeRate float64       `yaml:"trading_fee_rate"`
	MinProfit      float64       `yaml:"min_profit"`
	MaxResults     int           `yaml:"max_results"`
	HopLatency     time.Duration `yaml:"hop_latency"`
	Budget         time.Duration `yaml:"budget"`
}

type BridgeConfig struct {
	CaptureRatio float64       `yaml:"capture_ratio"`
	MinSpread    float64       `yaml:"min_spread"`
	MinProfit    float64       `yaml:"min_profit"`
	Latency      time.Duration `yaml:"latency"`
	SamplerSeed  uint64        `yaml:"sampler_seed"`
	MinCapacity  float64       `yaml:"min_capacity"`
	MaxCapacity  float64       `yaml:"max_capacity"`
}

type BatchConfig struct {
	CapitalCeiling float64 `yaml:"capital_ceiling"`
	MaxBatchSize   int     `yaml:"max_batch_size"`
}

type GasConfig struct {
	PerLegGas       uint64  `yaml:"per_leg_gas"`
	BatchOverhead   uint64  `yaml:"batch_overhead"`
	BatchedFraction float64 `yaml:"batched_fraction"`
	GasPriceGwei    float64 `yaml:"gas_price_gwei"`
	NativeUSD       float64 `yaml:"native_usd"`
}

func DefaultConfig() *Config {
	return &Config{
		TablesPath:      "tables.yaml",
		SnapshotPath:    "snapshot.json",
		RefreshInterval: 2 * time.Second,
		MaxTickRate:     2,
		TickBurst:       1,
		ReportSchedule:  "@every 1m",
		PlanHistorySize: 128,

		RuntimeSampleInterval: 10 * time.Second,

		Triangle: TriangleConfig{
			Notional:   1000,
			MinProfit:  1,
			LegLatency: 400 * time.Millisecond,
			Budget:     50 * time.Millisecond,
		},
		MultiHop: MultiHopConfig{
			Notional:       1000,
			MaxPathLength:  4,
			BridgeFeeRate:  0.001,
			TradingFeeRate: 0.003,
			MinProfit:      5,
			MaxResults:     15,
			HopLatency:     3 * time.Second,
			Budget:         50 * time.Millisecond,
		},
		Bridge: BridgeConfig{
			CaptureRatio: bridgespread.DefaultCaptureRatio,
			MinSpread:    bridgespread.DefaultMinSpread,
			Latency:      5 * time.Second,
			SamplerSeed:  1,
			MinCapacity:  50_000,
			MaxCapacity:  500_000,
		},
		Batch: BatchConfig{
			CapitalCeiling: 500_000,
			MaxBatchSize:   5,
		},
		Gas: GasConfig{
			PerLegGas:       gas.DefaultPerLegGas,
			BatchOverhead:   gas.DefaultBatchOverhead,
			BatchedFraction: gas.DefaultBatchedFraction,
			GasPriceGwei:    30,
			NativeUSD:       2500,
		},
		Ledger: flashloan.LedgerState{
			SuccessRate: 0.5,
		},
	}
}

func (c *Config) ValidateConfig() error {
	var errors []string

	if c.TablesPath == "" {
		errors = append(errors, "tables_path must be specified")
	}
	if c.RefreshInterval <= 0 {
		errors = append(errors, "refresh_interval must be positive")
	}
	if c.MaxTickRate <= 0 {
		errors = append(errors, "max_tick_rate must be positive")
	}
	if c.TickBurst <= 0 {
		errors = append(errors, "tick_burst must be positive")
	}
	if c.PlanHistorySize <= 0 {
		errors = append(errors, "plan_history_size must be positive")
	}
	if c.RuntimeSampleInterval < 0 {
		errors = append(errors, "runtime_sample_interval must not be negative")
	}

	if err := c.Triangle.Validate(); err != nil {
		errors = append(errors, fmt.Sprintf("triangle config error: %v", err))
	}
	if err := c.MultiHop.Validate(); err != nil {
		errors = append(errors, fmt.Sprintf("multihop config error: %v", err))
	}
	if err := c.Bridge.Validate(); err != nil {
		errors = append(errors, fmt.Sprintf("bridge config error: %v", err))
	}
	if err := c.Batch.Validate(); err != nil {
		errors = append(errors, fmt.Sprintf("batch config error: %v", err))
	}
	if err := c.Gas.Validate(); err != nil {
		errors = append(errors, fmt.Sprintf("gas config error: %v", err))
	}

	if c.Ledger.SuccessRate < 0 || c.Ledger.SuccessRate > flashloan.MaxSuccessRate {
		errors = append(errors, fmt.Sprintf("ledger success_rate must be within [0, %g]", flashloan.MaxSuccessRate))
	}
	if c.Ledger.Volume < 0 || c.Ledger.Streak < 0 {
		errors = append(errors, "ledger volume and streak must be non-negative")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errors, "; "))
	}

	return nil
}

func (t *TriangleConfig) Validate() error {
	if t.Notional <= 0 {
		return fmt.Errorf("notional must be positive")
	}
	if t.LegLatency <= 0 {
		return fmt.Errorf("leg latency must be positive")
	}
	if t.Budget < 0 {
		return fmt.Errorf("budget must not be negative")
	}
	return nil
}

func (m *MultiHopConfig) Validate() error {
	if m.Notional <= 0 {
		return fmt.Errorf("notional must be positive")
	}
	if m.MaxPathLength != 3 && m.MaxPathLength != 4 {
		return fmt.Errorf("max path length must be 3 or 4")
	}
	if m.BridgeFeeRate < 0 || m.TradingFeeRate < 0 || m.BridgeFeeRate+m.TradingFeeRate >= 1 {
		return fmt.Errorf("fee rates must be non-negative and sum below 1")
	}
	if m.MaxResults <= 0 {
		return fmt.Errorf("max results must be positive")
	}
	if m.HopLatency <= 0 {
		return fmt.Errorf("hop latency must be positive")
	}
	if m.Budget < 0 {
		return fmt.Errorf("budget must not be negative")
	}
	return nil
}

func (b *BridgeConfig) Validate() error {
	if b.CaptureRatio <= 0 || b.CaptureRatio > 1 {
		return fmt.Errorf("capture ratio must be within (0, 1]")
	}
	if b.MinSpread < 0 {
		return fmt.Errorf("min spread must not be negative")
	}
	if b.MinCapacity < 0 || b.MaxCapacity < b.MinCapacity {
		return fmt.Errorf("capacity range must be non-negative and ordered")
	}
	if b.Latency <= 0 {
		return fmt.Errorf("latency must be positive")
	}
	return nil
}

func (b *BatchConfig) Validate() error {
	if b.CapitalCeiling <= 0 {
		return fmt.Errorf("capital ceiling must be positive")
	}
	if b.MaxBatchSize <= 0 {
		return fmt.Errorf("max batch size must be positive")
	}
	return nil
}

func (g *GasConfig) Validate() error {
	if g.BatchedFraction < 0 || g.BatchedFraction > 1 {
		return fmt.Errorf("batched fraction must be within [0, 1]")
	}
	if g.GasPriceGwei < 0 || g.NativeUSD < 0 {
		return fmt.Errorf("gas price and native price must not be negative")
	}
	return nil
}

// LoadConfig reads a YAML file over the defaults, applies environment
// overrides and validates the result
func LoadConfig(cfgFile string) (*Config, error) {
	if cfgFile == "" {
		cfgFile = GetEnvWithDefault(EnvConfigFile, DefaultConfigFile)
	}

	config := DefaultConfig()

	data, err := os.ReadFile(cfgFile)
	switch {
	case err == nil:
		if err := yaml.UnmarshalStrict(data, config); err != nil {
			return nil, fmt.Errorf("failed to decode config file: %w", err)
		}
	case os.IsNotExist(err) && cfgFile == DefaultConfigFile:
		// defaults only
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := applyEnv(config); err != nil {
		return nil, err
	}

	if err := config.ValidateConfig(); err != nil {
		return nil, err
	}

	return config, nil
}

func SaveConfig(cfg *Config, cfgFile string) error {
	if cfgFile == "" {
		cfgFile = DefaultConfigFile
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return os.WriteFile(cfgFile, data, 0o644)
}

func (t TriangleConfig) Detector() triangle.Config {
	return triangle.Config{
		Notional:   t.Notional,
		MinProfit:  t.MinProfit,
		LegLatency: t.LegLatency,
		Budget:     t.Budget,
	}
}

func (m MultiHopConfig) PathFinder() multihop.Config {
	return multihop.Config{
		Notional:       m.Notional,
		MaxPathLength:  m.MaxPathLength,
		BridgeFeeRate:  m.BridgeFeeRate,
		TradingFeeRate: m.TradingFeeRate,
		MinProfit:      m.MinProfit,
		MaxResults:     m.MaxResults,
		HopLatency:     m.HopLatency,
		Budget:         m.Budget,
	}
}

func (b BridgeConfig) Scanner() bridgespread.Config {
	return bridgespread.Config{
		CaptureRatio:  b.CaptureRatio,
		MinSpread:     b.MinSpread,
		BridgeLatency: b.Latency,
	}
}

func (b BridgeConfig) Sampler() *bridgespread.HashSampler {
	return bridgespread.NewHashSampler(b.SamplerSeed, b.MinCapacity, b.MaxCapacity)
}

func (b BatchConfig) Planner() batch.Config {
	return batch.Config{
		CapitalCeiling: b.CapitalCeiling,
		MaxBatchSize:   b.MaxBatchSize,
	}
}

func (g GasConfig) Model() *gas.Model {
	return &gas.Model{
		PerLegGas:       g.PerLegGas,
		BatchOverhead:   g.BatchOverhead,
		BatchedFraction: g.BatchedFraction,
		GasToUSD:        gas.GasToUSD(g.GasPriceGwei, g.NativeUSD),
	}
}

// Thresholds collects the per-kind minimum net profit
func (c *Config) Thresholds() profit.Thresholds {
	return profit.Thresholds{
		types.KindTriangle:     c.Triangle.MinProfit,
		types.KindMultiHop:     c.MultiHop.MinProfit,
		types.KindBridgeSpread: c.Bridge.MinProfit,
	}
}
