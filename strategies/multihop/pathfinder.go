// Package multihop finds closed cross-chain cycles through one or two
// intermediate (chain, token) nodes.
package multihop

import (
	"context"
	"math"
	"time"

	"github.com/michaelpento.lv/arbscope/market"
	"github.com/michaelpento.lv/arbscope/types"

	"go.uber.org/zap"
)

const (
	maxConfidence     = 90.0
	minConfidence     = 60.0
	confidencePerHop  = 10.0
	maxSlippagePerLeg = 5.0
)

// Config controls path construction and simulation
type Config struct {
	Notional       float64
	MaxPathLength  int // nodes including the return to start: 3 or 4
	BridgeFeeRate  float64
	TradingFeeRate float64
	MinProfit      float64 // paths must net strictly more than this
	MaxResults     int
	HopLatency     time.Duration
	Budget         time.Duration
}

// Result is the output of one path search
type Result struct {
	Opportunities []*types.Opportunity
	Degraded      bool
	Evaluated     int
	Skipped       int // paths dropped for a missing price
}

// Pathfinder builds multi-hop cycles from a price index
type Pathfinder struct {
	cfg    Config
	logger *zap.Logger
}

// NewPathFinder creates a path finder
func NewPathFinder(cfg Config, logger *zap.Logger) *Pathfinder {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxPathLength < 3 {
		cfg.MaxPathLength = 3
	}
	if cfg.MaxPathLength > 4 {
		cfg.MaxPathLength = 4
	}
	return &Pathfinder{
		cfg:    cfg,
		logger: logger.Named("multihop"),
	}
}

// BestRoutes enumerates closed paths starting from every indexed node. Each
// leg crosses chains. A cycle is reported once, from its lowest node, and the
// top MaxResults by net profit are kept.
func (p *Pathfinder) BestRoutes(ctx context.Context, idx *market.PriceIndex) Result {
	if p.cfg.Budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.Budget)
		defer cancel()
	}

	nodes := idx.Nodes()

	var res Result
search:
	for si, start := range nodes {
		for ai := si + 1; ai < len(nodes); ai++ {
			if ctx.Err() != nil {
				res.Degraded = true
				p.logger.Warn("Multi-hop budget exhausted", zap.Int("found", len(res.Opportunities)))
				break search
			}

			a := nodes[ai]
			if a.Chain == start.Chain {
				continue
			}
			p.consider(idx, []market.Node{start, a, start}, &res)

			if p.cfg.MaxPathLength < 4 {
				continue
			}
			for bi := si + 1; bi < len(nodes); bi++ {
				b := nodes[bi]
				if bi == ai || b.Chain == a.Chain || b.Chain == start.Chain {
					continue
				}
				p.consider(idx, []market.Node{start, a, b, start}, &res)
			}
		}
	}

	types.SortByNetProfit(res.Opportunities)
	if p.cfg.MaxResults > 0 && len(res.Opportunities) > p.cfg.MaxResults {
		res.Opportunities = res.Opportunities[:p.cfg.MaxResults]
	}
	return res
}

func (p *Pathfinder) consider(idx *market.PriceIndex, path []market.Node, res *Result) {
	route, ok := p.buildRoute(idx, path)
	if !ok {
		res.Skipped++
		p.logger.Debug("Skipping path with missing price", zap.String("path", (&types.MultiHop{Path: path}).Key()))
		return
	}
	res.Evaluated++

	pricing := p.Evaluate(idx, route)
	if pricing.NetProfit <= p.cfg.MinProfit {
		return
	}
	res.Opportunities = append(res.Opportunities, types.NewOpportunity(route, pricing))
}

// buildRoute resolves the conversion rate of every leg. A leg from (ca, ta) to
// (cb, tb) bridges ta onto cb and swaps it for tb at cb's prices.
func (p *Pathfinder) buildRoute(idx *market.PriceIndex, path []market.Node) (*types.MultiHop, bool) {
	feeRate := p.cfg.BridgeFeeRate + p.cfg.TradingFeeRate

	legs := make([]types.Leg, 0, len(path)-1)
	for i := 0; i+1 < len(path); i++ {
		from, to := path[i], path[i+1]

		if _, ok := idx.Price(from.Chain, from.Token); !ok {
			return nil, false
		}
		bridged, ok := idx.Price(to.Chain, from.Token)
		if !ok {
			return nil, false
		}
		target, ok := idx.Price(to.Chain, to.Token)
		if !ok {
			return nil, false
		}

		legs = append(legs, types.Leg{
			From:    from,
			To:      to,
			Rate:    bridged / target,
			FeeRate: feeRate,
		})
	}

	cp := make([]market.Node, len(path))
	copy(cp, path)
	return &types.MultiHop{Path: cp, Legs: legs}, true
}

// Evaluate simulates the notional through the path. Leg fees reduce the
// balance carried into the next leg, so they compound.
func (p *Pathfinder) Evaluate(idx *market.PriceIndex, route *types.MultiHop) types.Pricing {
	notional := p.cfg.Notional

	feeFree := notional
	balance := notional
	ceiling := math.Inf(1)
	var slippage float64
	for _, leg := range route.Legs {
		feeFree *= leg.Rate
		balance *= leg.Rate * (1 - leg.FeeRate)

		liquidity := 0.0
		if q, ok := idx.Quote(leg.To.Chain, leg.To.Token); ok {
			liquidity = q.Liquidity
		}
		ceiling = math.Min(ceiling, liquidity)
		if liquidity > 0 {
			slippage += math.Min(notional/liquidity*100, maxSlippagePerLeg)
		} else {
			slippage += maxSlippagePerLeg
		}
	}

	hops := len(route.Legs)
	gross := feeFree - notional
	net := balance - notional

	var percent float64
	if notional > 0 {
		percent = net / notional * 100
	}

	return types.Pricing{
		GrossProfit:              gross,
		TotalFees:                gross - net,
		NetProfit:                net,
		ProfitPercent:            percent,
		Confidence:               Confidence(hops),
		EstimatedExecutionTimeMs: int64(hops) * p.cfg.HopLatency.Milliseconds(),
		RequiredCapital:          notional,
		LiquidityCeiling:         ceiling,
		SlippagePercent:          slippage,
	}
}

// Confidence strictly decreases with path length, floored at 60
func Confidence(hops int) float64 {
	return math.Max(minConfidence, maxConfidence-float64(hops-2)*confidencePerHop)
}
