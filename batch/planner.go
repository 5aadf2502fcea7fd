// Package batch groups ranked opportunities into capital- and size-bounded
// execution batches.
package batch

import (
	"sort"

	"github.com/michaelpento.lv/arbscope/gas"
	"github.com/michaelpento.lv/arbscope/types"

	"go.uber.org/zap"
)

// Config bounds every batch
type Config struct {
	CapitalCeiling float64
	MaxBatchSize   int
}

// Planner builds batches from ranked opportunities
type Planner struct {
	cfg    Config
	gas    *gas.Model
	logger *zap.Logger
}

// NewPlanner creates a new batch planner
func NewPlanner(cfg Config, model *gas.Model, logger *zap.Logger) *Planner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if model == nil {
		model = gas.NewModel(0, 0)
	}
	return &Planner{
		cfg:    cfg,
		gas:    model,
		logger: logger.Named("batch"),
	}
}

// Plan extracts batches until the pool is empty or nothing fits. Each batch
// prefers a single financing provider; when no provider group admits anything
// a mixed fill is attempted. Opportunities that never fit are returned as
// unplanned.
func (p *Planner) Plan(opps []*types.Opportunity) ([]*types.Batch, []*types.Opportunity) {
	pool := make([]*types.Opportunity, 0, len(opps))
	for _, o := range opps {
		if o != nil {
			pool = append(pool, o)
		}
	}
	types.SortByNetProfit(pool)

	var batches []*types.Batch
	for len(pool) > 0 {
		picked := p.bestProviderFill(pool)
		if len(picked) == 0 {
			picked = p.fill(pool, func(*types.Opportunity) bool { return true })
		}
		if len(picked) == 0 {
			break
		}

		b := p.build(pool, picked)
		batches = append(batches, b)
		pool = remove(pool, picked)

		p.logger.Debug("Built batch",
			zap.Int("size", len(b.Opportunities)),
			zap.Float64("profit", b.TotalProfit),
			zap.Float64("capital", b.TotalCapital),
			zap.Bool("single_provider", b.ProviderOptimization))
	}

	if len(pool) > 0 {
		p.logger.Debug("Opportunities left unplanned", zap.Int("count", len(pool)))
	}
	return batches, pool
}

// bestProviderFill runs one greedy fill per provider and keeps the group with
// the highest total profit. Providers are tried in order of their best
// member, so ties go to the group holding the more profitable opportunity.
func (p *Planner) bestProviderFill(pool []*types.Opportunity) []int {
	var (
		best       []int
		bestProfit float64
		seen       = make(map[string]bool)
	)
	for _, o := range pool {
		provider := o.Provider()
		if seen[provider] {
			continue
		}
		seen[provider] = true

		picked := p.fill(pool, func(c *types.Opportunity) bool { return c.Provider() == provider })
		if len(picked) == 0 {
			continue
		}
		profit := totalProfit(pool, picked)
		if best == nil || profit > bestProfit {
			best, bestProfit = picked, profit
		}
	}
	return best
}

// fill walks the pool in rank order admitting matching opportunities while the
// capital ceiling and size limit hold. It returns pool indices.
func (p *Planner) fill(pool []*types.Opportunity, match func(*types.Opportunity) bool) []int {
	var (
		picked  []int
		capital float64
	)
	for i, o := range pool {
		if len(picked) >= p.cfg.MaxBatchSize {
			break
		}
		if !match(o) {
			continue
		}
		if capital+o.RequiredCapital > p.cfg.CapitalCeiling {
			continue
		}
		capital += o.RequiredCapital
		picked = append(picked, i)
	}
	return picked
}

func (p *Planner) build(pool []*types.Opportunity, picked []int) *types.Batch {
	b := &types.Batch{
		Opportunities:        make([]*types.Opportunity, 0, len(picked)),
		ProviderOptimization: true,
	}

	legs := make([]int, 0, len(picked))
	for _, i := range picked {
		o := pool[i]
		b.Opportunities = append(b.Opportunities, o)
		b.TotalProfit += o.NetProfit
		b.TotalCapital += o.RequiredCapital
		legs = append(legs, o.Route.LegCount())
		if o.Provider() != pool[picked[0]].Provider() {
			b.ProviderOptimization = false
		}
	}

	b.EstimatedGasSavings = p.gas.EstimateBatch(legs).SavingsUSD
	b.ExecutionOrder = ExecutionOrder(b.Opportunities)
	return b
}

// ExecutionOrder is a permutation of opps by ascending execution time, then
// descending net profit, then position
func ExecutionOrder(opps []*types.Opportunity) []int {
	order := make([]int, len(opps))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		oa, ob := opps[order[a]], opps[order[b]]
		if oa.EstimatedExecutionTimeMs != ob.EstimatedExecutionTimeMs {
			return oa.EstimatedExecutionTimeMs < ob.EstimatedExecutionTimeMs
		}
		if oa.NetProfit != ob.NetProfit {
			return oa.NetProfit > ob.NetProfit
		}
		return order[a] < order[b]
	})
	return order
}

func totalProfit(pool []*types.Opportunity, picked []int) float64 {
	var sum float64
	for _, i := range picked {
		sum += pool[i].NetProfit
	}
	return sum
}

// remove drops the picked indices from pool, keeping rank order
func remove(pool []*types.Opportunity, picked []int) []*types.Opportunity {
	drop := make(map[int]bool, len(picked))
	for _, i := range picked {
		drop[i] = true
	}
	out := pool[:0:0]
	for i, o := range pool {
		if !drop[i] {
			out = append(out, o)
		}
	}
	return out
}
