package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/michaelpento.lv/arbscope/market"
	"github.com/michaelpento.lv/arbscope/types"
	"github.com/michaelpento.lv/arbscope/utils/metrics"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// PlanSink consumes finished plans, typically an executor or UI
type PlanSink interface {
	Consume(ctx context.Context, plan *types.Plan) error
}

// PlanSinkFunc adapts a function to PlanSink
type PlanSinkFunc func(ctx context.Context, plan *types.Plan) error

func (f PlanSinkFunc) Consume(ctx context.Context, plan *types.Plan) error {
	return f(ctx, plan)
}

// RunnerConfig controls tick admission and reporting
type RunnerConfig struct {
	MaxTickRate    float64 // admitted ticks per second
	TickBurst      int
	ReportSchedule string // cron spec, empty disables the report
}

// Runner feeds snapshots to the engine one tick at a time. A snapshot that
// arrives while a tick is in flight, or faster than MaxTickRate, is dropped.
type Runner struct {
	engine  *Engine
	sink    PlanSink
	limiter *rate.Limiter
	cron    *cron.Cron
	logger  *zap.Logger

	busy atomic.Bool
	wg   sync.WaitGroup
}

// NewRunner creates a runner delivering plans to sink
func NewRunner(engine *Engine, sink PlanSink, cfg RunnerConfig, logger *zap.Logger) (*Runner, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxTickRate <= 0 {
		return nil, fmt.Errorf("max tick rate must be positive")
	}
	if cfg.TickBurst <= 0 {
		cfg.TickBurst = 1
	}

	r := &Runner{
		engine:  engine,
		sink:    sink,
		limiter: rate.NewLimiter(rate.Limit(cfg.MaxTickRate), cfg.TickBurst),
		logger:  logger.Named("runner"),
	}

	if cfg.ReportSchedule != "" {
		r.cron = cron.New()
		if _, err := r.cron.AddFunc(cfg.ReportSchedule, r.Report); err != nil {
			return nil, fmt.Errorf("invalid report schedule %q: %w", cfg.ReportSchedule, err)
		}
	}

	return r, nil
}

// Submit starts a tick for snap unless one is already in flight or the rate
// limit is exhausted. It reports whether the snapshot was admitted.
func (r *Runner) Submit(ctx context.Context, snap market.Snapshot) bool {
	if !r.busy.CompareAndSwap(false, true) {
		r.engine.metrics.DroppedTicks.Inc()
		r.logger.Debug("Dropping snapshot, tick in flight", zap.Uint64("sequence", snap.Sequence))
		return false
	}
	if !r.limiter.Allow() {
		r.busy.Store(false)
		r.engine.metrics.DroppedTicks.Inc()
		r.logger.Debug("Dropping snapshot, tick rate exceeded", zap.Uint64("sequence", snap.Sequence))
		return false
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.busy.Store(false)
		r.tick(ctx, snap)
	}()
	return true
}

func (r *Runner) tick(ctx context.Context, snap market.Snapshot) {
	plan, err := r.engine.Tick(ctx, snap)
	if err != nil {
		r.logger.Error("Tick failed", zap.Uint64("sequence", snap.Sequence), zap.Error(err))
		return
	}
	if r.sink == nil {
		return
	}
	if err := r.sink.Consume(ctx, plan); err != nil {
		r.logger.Error("Failed to deliver plan",
			zap.String("plan_id", plan.ID),
			zap.Uint64("sequence", plan.Sequence),
			zap.Error(err))
	}
}

// Run admits snapshots from feed until ctx is cancelled or feed closes, then
// waits for the tick in flight
func (r *Runner) Run(ctx context.Context, feed <-chan market.Snapshot) error {
	r.logger.Info("Starting runner")
	if r.cron != nil {
		r.cron.Start()
		defer func() {
			<-r.cron.Stop().Done()
		}()
	}
	defer r.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Stopping runner")
			return nil
		case snap, ok := <-feed:
			if !ok {
				r.logger.Info("Snapshot feed closed")
				return nil
			}
			r.Submit(ctx, snap)
		}
	}
}

// Wait blocks until the tick in flight, if any, has finished
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Report logs the ledger state and the engine counters
func (r *Runner) Report() {
	state := r.engine.Ledger().Snapshot()
	m := r.engine.Metrics()

	r.logger.Info("Engine report",
		zap.Float64("ledger_volume", state.Volume),
		zap.Float64("ledger_success_rate", state.SuccessRate),
		zap.Float64("ledger_profit", state.Profit),
		zap.Int("ledger_streak", state.Streak),
		zap.Float64("ticks", metrics.CounterValue(m.Ticks)),
		zap.Float64("dropped_ticks", metrics.CounterValue(m.DroppedTicks)),
		zap.Float64("degraded_ticks", metrics.CounterValue(m.DegradedTicks)),
		zap.Float64("candidates", metrics.CounterVecTotal(m.Candidates,
			types.KindTriangle.String(), types.KindMultiHop.String(), types.KindBridgeSpread.String())),
		zap.Float64("priced", metrics.CounterValue(m.Priced)),
		zap.Float64("batches", metrics.CounterValue(m.Batches)))
}
