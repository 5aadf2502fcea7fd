package triangle

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/michaelpento.lv/arbscope/market"
	"github.com/michaelpento.lv/arbscope/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func testConfig() Config {
	return Config{
		Notional:   1000,
		MinProfit:  1,
		LegLatency: 400 * time.Millisecond,
		Budget:     time.Second,
	}
}

// scenarioPairs approximately close: 98.50 / 98.45 > 1
func scenarioPairs() []market.TradingPair {
	return []market.TradingPair{
		{Chain: "solana", From: "SOL", To: "USDC", Price: 98.50, Venue: "raydium", Liquidity: 2_000_000, FeeRate: 0.0025},
		{Chain: "solana", From: "USDC", To: "ETH", Price: 1.0 / 2420, Venue: "orca", Liquidity: 1_500_000, FeeRate: 0.0025},
		{Chain: "solana", From: "ETH", To: "SOL", Price: 2420 / 98.45, Venue: "jupiter", Liquidity: 1_000_000, FeeRate: 0.0025},
	}
}

func TestEvaluateScenario(t *testing.T) {
	d := NewDetector(testConfig(), zaptest.NewLogger(t))
	pairs := scenarioPairs()
	tri := &types.Triangle{Chain: "solana", Legs: [3]market.TradingPair{pairs[0], pairs[1], pairs[2]}}
	require.True(t, tri.Closed())

	p := d.Evaluate(tri)

	wantGross := 1000*98.50/98.45 - 1000 // ~0.5079
	wantFees := 1000 * 0.0075
	assert.InDelta(t, wantGross, p.GrossProfit, 1e-9)
	assert.InDelta(t, wantFees, p.TotalFees, 1e-9)
	assert.InDelta(t, wantGross-wantFees, p.NetProfit, 1e-9)
	assert.Less(t, p.NetProfit, 0.0)
	assert.InDelta(t, -6.99, p.NetProfit, 0.01)
	assert.InDelta(t, p.NetProfit/10, p.ProfitPercent, 1e-9)
	assert.Equal(t, int64(1200), p.EstimatedExecutionTimeMs)
	assert.Equal(t, 1000.0, p.RequiredCapital)
	assert.Equal(t, 1_000_000.0, p.LiquidityCeiling)

	// avg liquidity 1.5M earns the full liquidity score
	assert.Equal(t, 85.0, p.Confidence)
	// 1000/2M + 1000/1.5M + 1000/1M, in percent
	assert.InDelta(t, 0.05+0.0666667+0.1, p.SlippagePercent, 1e-6)
}

func TestFindCyclesScenarioIsDiscarded(t *testing.T) {
	d := NewDetector(testConfig(), zaptest.NewLogger(t))

	res := d.FindCycles(context.Background(), "solana", scenarioPairs())
	assert.Equal(t, 1, res.Evaluated)
	assert.Empty(t, res.Opportunities)
	assert.False(t, res.Degraded)
}

func TestFindCyclesProfitable(t *testing.T) {
	d := NewDetector(testConfig(), zaptest.NewLogger(t))
	pairs := scenarioPairs()
	pairs[0].Price = 99.50 // ~1% gross edge

	res := d.FindCycles(context.Background(), "solana", pairs)
	require.Len(t, res.Opportunities, 1)

	opp := res.Opportunities[0]
	tri, ok := opp.Route.(*types.Triangle)
	require.True(t, ok)
	assert.True(t, tri.Closed())
	assert.Equal(t, "SOL", tri.TokenA)
	assert.Equal(t, "USDC", tri.TokenB)
	assert.Equal(t, "ETH", tri.TokenC)
	assert.Greater(t, opp.NetProfit, 1.0)
	assert.InDelta(t, opp.GrossProfit-opp.TotalFees, opp.NetProfit, 1e-12)
	assert.Equal(t, types.KindTriangle, opp.Kind())
}

func TestFindCyclesRotationsReportedOnce(t *testing.T) {
	d := NewDetector(testConfig(), zaptest.NewLogger(t))
	pairs := scenarioPairs()
	pairs[0].Price = 99.50
	// same cycle listed in a different table order
	pairs = []market.TradingPair{pairs[2], pairs[0], pairs[1]}

	res := d.FindCycles(context.Background(), "solana", pairs)
	require.Len(t, res.Opportunities, 1)
	tri := res.Opportunities[0].Route.(*types.Triangle)
	assert.Equal(t, "ETH", tri.TokenA)
	assert.True(t, tri.Closed())
}

func TestFindCyclesClosureInvariant(t *testing.T) {
	cfg := testConfig()
	cfg.MinProfit = math.Inf(-1)
	d := NewDetector(cfg, zaptest.NewLogger(t))

	tokens := []string{"A", "B", "C", "D"}
	var pairs []market.TradingPair
	for i, from := range tokens {
		for j, to := range tokens {
			if from == to {
				continue
			}
			pairs = append(pairs, market.TradingPair{
				Chain: "base", From: from, To: to, Price: 1 + float64(i-j)/100,
				Venue: "v", Liquidity: 1_000_000, FeeRate: 0.001,
			})
		}
	}

	res := d.FindCycles(context.Background(), "base", pairs)
	// 4 choose 3 token sets, two directions each
	require.Len(t, res.Opportunities, 8)
	seen := make(map[string]bool)
	for _, opp := range res.Opportunities {
		tri := opp.Route.(*types.Triangle)
		assert.True(t, tri.Closed(), tri.Key())
		assert.False(t, seen[opp.ID], "duplicate %s", tri.Key())
		seen[opp.ID] = true
	}
	for i := 1; i < len(res.Opportunities); i++ {
		assert.GreaterOrEqual(t, res.Opportunities[i-1].NetProfit, res.Opportunities[i].NetProfit)
	}
}

func TestFindCyclesSkipsMalformedPairs(t *testing.T) {
	d := NewDetector(testConfig(), zaptest.NewLogger(t))
	pairs := scenarioPairs()
	pairs[0].Price = 99.50
	pairs[1].Price = math.NaN()

	res := d.FindCycles(context.Background(), "solana", pairs)
	assert.Empty(t, res.Opportunities)
	assert.Equal(t, 0, res.Evaluated)
}

func TestFeeMonotonicity(t *testing.T) {
	d := NewDetector(testConfig(), zaptest.NewLogger(t))
	pairs := scenarioPairs()

	prev := math.Inf(1)
	for _, fee := range []float64{0, 0.0005, 0.001, 0.0025, 0.005, 0.01} {
		for i := range pairs {
			pairs[i].FeeRate = fee
		}
		p := d.Evaluate(&types.Triangle{Legs: [3]market.TradingPair{pairs[0], pairs[1], pairs[2]}})
		assert.Less(t, p.NetProfit, prev, "fee %v", fee)
		prev = p.NetProfit
	}
}

// expiringContext reports no error for the first n checks, then DeadlineExceeded
type expiringContext struct {
	context.Context
	n int
}

func (c *expiringContext) Err() error {
	if c.n > 0 {
		c.n--
		return nil
	}
	return context.DeadlineExceeded
}

func TestFindCyclesBudgetExhausted(t *testing.T) {
	d := NewDetector(testConfig(), zaptest.NewLogger(t))
	pairs := scenarioPairs()
	pairs[0].Price = 99.50

	t.Run("ExpiredBeforeStart", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		res := d.FindCycles(ctx, "solana", pairs)
		assert.True(t, res.Degraded)
		assert.Empty(t, res.Opportunities)
	})

	t.Run("CutShortKeepsPartialResults", func(t *testing.T) {
		// the only cycle starts at pair 0, so it is found before the cut
		ctx := &expiringContext{Context: context.Background(), n: 1}

		res := d.FindCycles(ctx, "solana", pairs)
		assert.True(t, res.Degraded)
		assert.Len(t, res.Opportunities, 1)
	})

	t.Run("ExpiredAfterLastTriple", func(t *testing.T) {
		ctx := &expiringContext{Context: context.Background(), n: len(pairs)}

		res := d.FindCycles(ctx, "solana", pairs)
		assert.False(t, res.Degraded)
		assert.Len(t, res.Opportunities, 1)
		assert.Error(t, ctx.Err())
	})
}

func TestFindAll(t *testing.T) {
	d := NewDetector(testConfig(), zaptest.NewLogger(t))

	solana := scenarioPairs()
	solana[0].Price = 99.50
	base := scenarioPairs()
	for i := range base {
		base[i].Chain = "base"
	}
	base[0].Price = 100.50

	res := d.FindAll(context.Background(), &market.Tables{Pairs: append(solana, base...)})
	require.Len(t, res.Opportunities, 2)
	assert.False(t, res.Degraded)
	assert.Equal(t, 2, res.Evaluated)
	assert.Equal(t, "base", res.Opportunities[0].Route.(*types.Triangle).Chain)
	assert.Equal(t, "solana", res.Opportunities[1].Route.(*types.Triangle).Chain)
}

func BenchmarkFindCycles(b *testing.B) {
	d := NewDetector(testConfig(), zaptest.NewLogger(b))

	var pairs []market.TradingPair
	for i := 0; i < 12; i++ {
		for j := 0; j < 12; j++ {
			if i == j {
				continue
			}
			pairs = append(pairs, market.TradingPair{
				Chain: "base", From: fmt.Sprintf("T%d", i), To: fmt.Sprintf("T%d", j),
				Price: 1.001, Venue: "v", Liquidity: 1_000_000, FeeRate: 0.0001,
			})
		}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		d.FindCycles(context.Background(), "base", pairs)
	}
}
