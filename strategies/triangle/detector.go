// Package triangle finds closed three-leg conversion cycles within one chain.
package triangle

import (
	"context"
	"math"
	"time"

	"github.com/michaelpento.lv/arbscope/market"
	"github.com/michaelpento.lv/arbscope/types"

	"go.uber.org/zap"
)

const (
	baseConfidence      = 70.0
	maxLiquidityScore   = 20.0
	liquidityScoreUnit  = 1_000_000.0 // liquidity that earns the full score
	complexityPenalty   = 5.0
	maxSlippagePerLeg   = 5.0 // percent
	legsPerTriangle     = 3
	budgetCheckInterval = 64
)

// Config controls cycle simulation
type Config struct {
	Notional   float64       // starting balance of every simulated cycle
	MinProfit  float64       // cycles must net strictly more than this
	LegLatency time.Duration // expected time per swap
	Budget     time.Duration // wall-clock cap for one FindAll call, 0 disables
}

// Result is the output of one enumeration pass
type Result struct {
	Opportunities []*types.Opportunity
	Degraded      bool // budget ran out before every triple was visited
	Evaluated     int  // closing triples priced
}

// Detector handles triangle cycle detection
type Detector struct {
	cfg    Config
	logger *zap.Logger
}

// NewDetector creates a new triangle detector
func NewDetector(cfg Config, logger *zap.Logger) *Detector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Detector{
		cfg:    cfg,
		logger: logger.Named("triangle"),
	}
}

// FindAll enumerates cycles on every chain of the pair table within the
// configured budget. Chains are visited in sorted order; when the budget is
// exhausted the cycles found so far are returned and the result is degraded.
func (d *Detector) FindAll(ctx context.Context, tables *market.Tables) Result {
	if d.cfg.Budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.Budget)
		defer cancel()
	}

	byChain := tables.PairsByChain()

	var out Result
	for _, chain := range tables.Chains() {
		res := d.FindCycles(ctx, chain, byChain[chain])
		out.Opportunities = append(out.Opportunities, res.Opportunities...)
		out.Evaluated += res.Evaluated
		if res.Degraded {
			out.Degraded = true
			break
		}
	}

	types.SortByNetProfit(out.Opportunities)
	return out
}

// FindCycles enumerates every closed cycle (p1, p2, p3) of distinct pairs
// from one chain's table. Pairs are indexed by their source token so only
// adjacent pairs are combined. Each cycle is reported once, starting from the
// leg with the lowest table index.
func (d *Detector) FindCycles(ctx context.Context, chain string, pairs []market.TradingPair) Result {
	byFrom := make(map[string][]int)
	for i, p := range pairs {
		if !p.Valid() {
			d.logger.Debug("Skipping malformed pair",
				zap.String("chain", chain),
				zap.String("from", p.From),
				zap.String("to", p.To),
				zap.String("venue", p.Venue))
			continue
		}
		byFrom[p.From] = append(byFrom[p.From], i)
	}

	var (
		res   Result
		steps int
	)
	for i, p1 := range pairs {
		if ctx.Err() != nil {
			return d.exhausted(chain, res)
		}
		if !p1.Valid() {
			continue
		}
		for _, j := range byFrom[p1.To] {
			if j <= i {
				continue
			}
			p2 := pairs[j]
			for _, k := range byFrom[p2.To] {
				steps++
				if steps%budgetCheckInterval == 0 && ctx.Err() != nil {
					return d.exhausted(chain, res)
				}

				if k <= i || k == j {
					continue
				}
				p3 := pairs[k]
				if p3.To != p1.From {
					continue
				}

				tri := &types.Triangle{
					Chain:  chain,
					TokenA: p1.From,
					TokenB: p1.To,
					TokenC: p2.To,
					Legs:   [3]market.TradingPair{p1, p2, p3},
				}
				res.Evaluated++

				pricing := d.Evaluate(tri)
				if pricing.NetProfit <= d.cfg.MinProfit {
					continue
				}
				res.Opportunities = append(res.Opportunities, types.NewOpportunity(tri, pricing))
			}
		}
	}

	types.SortByNetProfit(res.Opportunities)
	return res
}

// exhausted marks a search cut short by the budget and keeps what was found
func (d *Detector) exhausted(chain string, res Result) Result {
	res.Degraded = true
	d.logger.Warn("Triangle budget exhausted",
		zap.String("chain", chain),
		zap.Int("found", len(res.Opportunities)))
	types.SortByNetProfit(res.Opportunities)
	return res
}

// Evaluate simulates one pass of the configured notional through the cycle.
// Gross profit comes from the fee-free conversion; fees are charged on the
// notional at each leg's fee tier.
func (d *Detector) Evaluate(tri *types.Triangle) types.Pricing {
	notional := d.cfg.Notional

	balance := notional
	var (
		feeRate   float64
		liquidity float64
		slippage  float64
	)
	ceiling := math.Inf(1)
	for _, leg := range tri.Legs {
		balance *= leg.Price
		feeRate += leg.FeeRate
		liquidity += leg.Liquidity
		ceiling = math.Min(ceiling, leg.Liquidity)
		slippage += legSlippage(notional, leg.Liquidity)
	}

	gross := balance - notional
	fees := notional * feeRate
	net := gross - fees

	var percent float64
	if notional > 0 {
		percent = net / notional * 100
	}

	avgLiquidity := liquidity / legsPerTriangle
	confidence := baseConfidence +
		math.Min(avgLiquidity/liquidityScoreUnit*maxLiquidityScore, maxLiquidityScore) -
		complexityPenalty

	return types.Pricing{
		GrossProfit:              gross,
		TotalFees:                fees,
		NetProfit:                net,
		ProfitPercent:            percent,
		Confidence:               clamp(confidence, 0, 100),
		EstimatedExecutionTimeMs: legsPerTriangle * d.cfg.LegLatency.Milliseconds(),
		RequiredCapital:          notional,
		LiquidityCeiling:         ceiling,
		SlippagePercent:          slippage,
	}
}

// legSlippage estimates price impact of notional against a leg's liquidity
func legSlippage(notional, liquidity float64) float64 {
	if liquidity <= 0 {
		return maxSlippagePerLeg
	}
	return math.Min(notional/liquidity*100, maxSlippagePerLeg)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}
