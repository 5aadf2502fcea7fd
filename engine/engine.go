// Package engine turns market snapshots into ranked opportunities and batch
// plans.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/michaelpento.lv/arbscope/batch"
	"github.com/michaelpento.lv/arbscope/config"
	"github.com/michaelpento.lv/arbscope/flashloan"
	"github.com/michaelpento.lv/arbscope/gas"
	"github.com/michaelpento.lv/arbscope/market"
	"github.com/michaelpento.lv/arbscope/profit"
	"github.com/michaelpento.lv/arbscope/strategies/bridgespread"
	"github.com/michaelpento.lv/arbscope/strategies/multihop"
	"github.com/michaelpento.lv/arbscope/strategies/triangle"
	"github.com/michaelpento.lv/arbscope/types"
	"github.com/michaelpento.lv/arbscope/utils/metrics"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const defaultHistorySize = 128

// Options configures the pipeline stages
type Options struct {
	Triangle    triangle.Config
	MultiHop    multihop.Config
	Bridge      bridgespread.Config
	Sampler     bridgespread.Sampler
	Batch       batch.Config
	Gas         *gas.Model
	Thresholds  profit.Thresholds
	HistorySize int
}

// OptionsFromConfig maps the file configuration onto pipeline options
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Triangle:    cfg.Triangle.Detector(),
		MultiHop:    cfg.MultiHop.PathFinder(),
		Bridge:      cfg.Bridge.Scanner(),
		Sampler:     cfg.Bridge.Sampler(),
		Batch:       cfg.Batch.Planner(),
		Gas:         cfg.Gas.Model(),
		Thresholds:  cfg.Thresholds(),
		HistorySize: cfg.PlanHistorySize,
	}
}

// Engine runs one enumerate, price and plan pass per snapshot
type Engine struct {
	mu     sync.RWMutex
	tables *market.Tables

	triangle   *triangle.Detector
	multihop   *multihop.Pathfinder
	bridge     *bridgespread.Scanner
	negotiator *flashloan.Negotiator
	estimator  *profit.Estimator
	planner    *batch.Planner
	ledger     *flashloan.Ledger

	history *lru.Cache
	metrics *metrics.EngineMetrics
	logger  *zap.Logger
	now     func() time.Time
}

// New creates an engine. It fails when tables carry no trading pairs. reg may
// be nil to leave the instruments unregistered.
func New(opts Options, tables *market.Tables, ledger *flashloan.Ledger, reg prometheus.Registerer, logger *zap.Logger) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := tables.Validate(); err != nil {
		return nil, fmt.Errorf("invalid tables: %w", err)
	}
	if ledger == nil {
		ledger = flashloan.NewLedger(flashloan.LedgerState{}, logger)
	}
	if opts.Sampler == nil {
		opts.Sampler = bridgespread.NewHashSampler(0, 0, 0)
	}
	if opts.HistorySize <= 0 {
		opts.HistorySize = defaultHistorySize
	}

	history, err := lru.New(opts.HistorySize)
	if err != nil {
		return nil, fmt.Errorf("failed to create plan history: %w", err)
	}

	negotiator := flashloan.NewNegotiator(tables.Providers, reg, logger)

	return &Engine{
		tables:     tables,
		triangle:   triangle.NewDetector(opts.Triangle, logger),
		multihop:   multihop.NewPathFinder(opts.MultiHop, logger),
		bridge:     bridgespread.NewScanner(opts.Bridge, opts.Sampler, logger),
		negotiator: negotiator,
		estimator:  profit.NewEstimator(negotiator, opts.Thresholds, logger),
		planner:    batch.NewPlanner(opts.Batch, opts.Gas, logger),
		ledger:     ledger,
		history:    history,
		metrics:    metrics.NewEngineMetrics("arbscope", reg),
		logger:     logger.Named("engine"),
		now:        time.Now,
	}, nil
}

// ReloadTables swaps the static tables for subsequent ticks
func (e *Engine) ReloadTables(tables *market.Tables) error {
	if err := tables.Validate(); err != nil {
		return fmt.Errorf("invalid tables: %w", err)
	}

	e.mu.Lock()
	e.tables = tables
	e.mu.Unlock()

	e.negotiator.SetProviders(tables.Providers)
	e.logger.Info("Reloaded tables",
		zap.Int("pairs", len(tables.Pairs)),
		zap.Int("bridges", len(tables.Bridges)),
		zap.Int("providers", len(tables.Providers)))
	return nil
}

// Tables returns the tables the next tick will use
func (e *Engine) Tables() *market.Tables {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.tables
}

// Ledger returns the trading-history ledger the negotiator reads
func (e *Engine) Ledger() *flashloan.Ledger {
	return e.ledger
}

// Metrics returns the engine instruments
func (e *Engine) Metrics() *metrics.EngineMetrics {
	return e.metrics
}

type enumeration struct {
	triangle triangle.Result
	multihop multihop.Result
	bridge   bridgespread.Result
}

// Tick runs the full pipeline over one snapshot. Enumerators run concurrently
// against a read-only index; the estimator uses one ledger snapshot for every
// candidate. An enumerator that runs out of budget degrades the plan instead
// of failing it.
func (e *Engine) Tick(ctx context.Context, snap market.Snapshot) (*types.Plan, error) {
	start := e.now()
	tables := e.Tables()
	idx := market.NewPriceIndex(snap)

	var res enumeration
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res.triangle = e.triangle.FindAll(gctx, tables)
		return nil
	})
	g.Go(func() error {
		res.multihop = e.multihop.BestRoutes(gctx, idx)
		return nil
	})
	g.Go(func() error {
		res.bridge = e.bridge.Scan(gctx, tables.Bridges, idx)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("enumeration failed: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("tick cancelled: %w", err)
	}

	candidates := make([]*types.Opportunity, 0,
		len(res.triangle.Opportunities)+len(res.multihop.Opportunities)+len(res.bridge.Opportunities))
	candidates = append(candidates, res.triangle.Opportunities...)
	candidates = append(candidates, res.multihop.Opportunities...)
	candidates = append(candidates, res.bridge.Opportunities...)

	e.metrics.Candidates.WithLabelValues(types.KindTriangle.String()).Add(float64(len(res.triangle.Opportunities)))
	e.metrics.Candidates.WithLabelValues(types.KindMultiHop.String()).Add(float64(len(res.multihop.Opportunities)))
	e.metrics.Candidates.WithLabelValues(types.KindBridgeSpread.String()).Add(float64(len(res.bridge.Opportunities)))

	ranked, report := e.estimator.Estimate(candidates, e.ledger.Snapshot())
	e.metrics.Priced.Add(float64(report.Priced))
	e.metrics.Excluded.WithLabelValues("invalid").Add(float64(report.Invalid))
	e.metrics.Excluded.WithLabelValues("no_financing").Add(float64(report.NoFinancing))
	e.metrics.Excluded.WithLabelValues("below_threshold").Add(float64(report.BelowThreshold))

	batches, unplanned := e.planner.Plan(ranked)
	e.metrics.Batches.Add(float64(len(batches)))
	e.metrics.Unplanned.Add(float64(len(unplanned)))

	plan := &types.Plan{
		ID:            uuid.NewString(),
		Sequence:      snap.Sequence,
		GeneratedAt:   e.now().UTC(),
		Opportunities: ranked,
		Batches:       batches,
		Unplanned:     unplanned,
	}
	e.annotate(plan, res, idx, report)

	e.metrics.Ticks.Inc()
	if plan.Degraded {
		e.metrics.DegradedTicks.Inc()
	}
	e.metrics.TickDuration.Observe(e.now().Sub(start).Seconds())
	e.history.Add(plan.ID, plan)

	e.logger.Debug("Tick complete",
		zap.Uint64("sequence", plan.Sequence),
		zap.String("plan_id", plan.ID),
		zap.Int("candidates", report.Candidates),
		zap.Int("priced", report.Priced),
		zap.Int("batches", len(batches)),
		zap.Bool("degraded", plan.Degraded))

	return plan, nil
}

func (e *Engine) annotate(plan *types.Plan, res enumeration, idx *market.PriceIndex, report profit.Report) {
	warn := func(msg string, fields ...zap.Field) {
		plan.Warnings = append(plan.Warnings, msg)
		e.logger.Warn(msg, append(fields, zap.Uint64("sequence", plan.Sequence))...)
	}

	if res.triangle.Degraded {
		plan.Degraded = true
		warn("triangle enumeration exceeded its budget", zap.Int("found", len(res.triangle.Opportunities)))
	}
	if res.multihop.Degraded {
		plan.Degraded = true
		warn("multi-hop enumeration exceeded its budget", zap.Int("found", len(res.multihop.Opportunities)))
	}
	if res.bridge.Degraded {
		plan.Degraded = true
		warn("bridge scan was interrupted", zap.Int("found", len(res.bridge.Opportunities)))
	}
	if n := idx.Skipped(); n > 0 {
		e.logger.Info("Skipped malformed quotes", zap.Int("count", n))
	}
	if report.NoFinancing > 0 {
		e.logger.Info("Candidates excluded without financing", zap.Int("count", report.NoFinancing))
	}
}

// Plan returns a recent plan by ID
func (e *Engine) Plan(id string) (*types.Plan, bool) {
	v, ok := e.history.Get(id)
	if !ok {
		return nil, false
	}
	return v.(*types.Plan), true
}

// RecentPlans returns the retained plans, oldest first
func (e *Engine) RecentPlans() []*types.Plan {
	keys := e.history.Keys()
	plans := make([]*types.Plan, 0, len(keys))
	for _, k := range keys {
		if v, ok := e.history.Peek(k); ok {
			plans = append(plans, v.(*types.Plan))
		}
	}
	return plans
}
