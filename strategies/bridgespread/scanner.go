// Package bridgespread compares bridge-quoted prices against the market
// reference price on the destination chain.
package bridgespread

import (
	"context"
	"math"
	"time"

	"github.com/michaelpento.lv/arbscope/market"
	"github.com/michaelpento.lv/arbscope/types"

	"go.uber.org/zap"
)

const (
	DefaultCaptureRatio = 0.8
	DefaultMinSpread    = 0.0001
)

// Config controls spread filtering and pricing
type Config struct {
	CaptureRatio  float64       // share of the theoretical spread assumed realizable
	MinSpread     float64       // spreads at or below this are discarded
	BridgeLatency time.Duration // expected bridge settlement time
}

// Result is the output of one scan
type Result struct {
	Opportunities []*types.Opportunity
	Degraded      bool
	Evaluated     int
	Skipped       int // routes without a reference price or with a bad quote
}

// Scanner finds bridge spread opportunities
type Scanner struct {
	cfg     Config
	sampler Sampler
	logger  *zap.Logger
}

// NewScanner creates a scanner. Capacity and confidence are read from sampler.
func NewScanner(cfg Config, sampler Sampler, logger *zap.Logger) *Scanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.CaptureRatio <= 0 {
		cfg.CaptureRatio = DefaultCaptureRatio
	}
	return &Scanner{
		cfg:     cfg,
		sampler: sampler,
		logger:  logger.Named("bridgespread"),
	}
}

// Scan prices every bridge route against idx and returns the routes whose
// spread exceeds MinSpread, sorted by estimated profit
func (s *Scanner) Scan(ctx context.Context, routes []market.BridgeRoute, idx *market.PriceIndex) Result {
	var res Result
	for _, r := range routes {
		if ctx.Err() != nil {
			res.Degraded = true
			s.logger.Warn("Bridge scan interrupted", zap.Int("found", len(res.Opportunities)))
			break
		}

		if !r.Valid() {
			res.Skipped++
			s.logger.Debug("Skipping malformed bridge route",
				zap.String("bridge", r.Bridge),
				zap.String("token", r.Token))
			continue
		}
		ref, ok := idx.Price(r.ToChain, r.Token)
		if !ok {
			res.Skipped++
			s.logger.Debug("No reference price for bridge route",
				zap.String("bridge", r.Bridge),
				zap.String("token", r.Token),
				zap.String("chain", r.ToChain))
			continue
		}
		res.Evaluated++

		spread := math.Abs(r.QuotedPrice-ref) / ref
		if spread <= s.cfg.MinSpread {
			continue
		}

		route := &types.BridgeSpread{
			Bridge:         r.Bridge,
			Token:          r.Token,
			FromChain:      r.FromChain,
			ToChain:        r.ToChain,
			BridgePrice:    r.QuotedPrice,
			ReferencePrice: ref,
			Spread:         spread,
		}
		pricing, ok := s.Evaluate(route)
		if !ok {
			res.Skipped++
			continue
		}
		res.Opportunities = append(res.Opportunities, types.NewOpportunity(route, pricing))
	}

	types.SortByNetProfit(res.Opportunities)
	return res
}

// Evaluate prices a spread with the sampled capacity. Fees are zero until
// financing is negotiated.
func (s *Scanner) Evaluate(route *types.BridgeSpread) (types.Pricing, bool) {
	key := route.Key()
	capacity := s.sampler.Capacity(key)
	if !market.NonNegative(capacity) {
		s.logger.Debug("Sampler returned unusable capacity",
			zap.String("route", key),
			zap.Float64("capacity", capacity))
		return types.Pricing{}, false
	}

	profit := capacity * route.Spread * s.cfg.CaptureRatio

	var percent float64
	if capacity > 0 {
		percent = profit / capacity * 100
	}

	return types.Pricing{
		GrossProfit:              profit,
		NetProfit:                profit,
		ProfitPercent:            percent,
		Confidence:               s.sampler.Confidence(key),
		EstimatedExecutionTimeMs: s.cfg.BridgeLatency.Milliseconds(),
		RequiredCapital:          capacity,
		LiquidityCeiling:         capacity,
	}, true
}
