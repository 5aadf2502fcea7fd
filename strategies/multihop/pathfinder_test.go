package multihop

import (
	"context"
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
		Notional:       1000,
		MaxPathLength:  3,
		BridgeFeeRate:  0.001,
		TradingFeeRate: 0.003,
		MinProfit:      5,
		MaxResults:     15,
		HopLatency:     3 * time.Second,
		Budget:         time.Second,
	}
}

func quote(chain, token string, price float64) market.Quote {
	return market.Quote{Chain: chain, Token: token, Price: price, Liquidity: 5_000_000}
}

func twoChainIndex() *market.PriceIndex {
	return market.NewPriceIndex(market.Snapshot{Quotes: []market.Quote{
		quote("base", "ETH", 2400),
		quote("base", "USDC", 1),
		quote("solana", "ETH", 2500),
		quote("solana", "USDC", 1),
	}})
}

func TestBestRoutesTwoHops(t *testing.T) {
	p := NewPathFinder(testConfig(), zaptest.NewLogger(t))

	res := p.BestRoutes(context.Background(), twoChainIndex())
	require.Len(t, res.Opportunities, 1)
	assert.False(t, res.Degraded)
	assert.Equal(t, 4, res.Evaluated)

	opp := res.Opportunities[0]
	route, ok := opp.Route.(*types.MultiHop)
	require.True(t, ok)
	assert.True(t, route.Closed())
	assert.Equal(t, []market.Node{
		{Chain: "base", Token: "ETH"},
		{Chain: "solana", Token: "USDC"},
		{Chain: "base", Token: "ETH"},
	}, route.Path)

	wantGross := 1000*2500.0/2400 - 1000
	wantNet := 1000*(2500.0/2400)*0.996*0.996 - 1000
	assert.InDelta(t, wantGross, opp.GrossProfit, 1e-9)
	assert.InDelta(t, wantNet, opp.NetProfit, 1e-9)
	assert.InDelta(t, opp.GrossProfit-opp.NetProfit, opp.TotalFees, 1e-12)
	assert.Equal(t, 90.0, opp.Confidence)
	assert.Equal(t, int64(6000), opp.EstimatedExecutionTimeMs)
	assert.Equal(t, 1000.0, opp.RequiredCapital)
	assert.Equal(t, types.KindMultiHop, opp.Kind())
}

func TestBestRoutesThreeHopInvariants(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPathLength = 4
	p := NewPathFinder(cfg, zaptest.NewLogger(t))

	idx := market.NewPriceIndex(market.Snapshot{Quotes: []market.Quote{
		quote("arbitrum", "ETH", 2450),
		quote("arbitrum", "USDC", 1),
		quote("base", "ETH", 2400),
		quote("base", "USDC", 1),
		quote("solana", "ETH", 2500),
		quote("solana", "USDC", 1.001),
	}})

	res := p.BestRoutes(context.Background(), idx)
	require.NotEmpty(t, res.Opportunities)
	assert.LessOrEqual(t, len(res.Opportunities), 15)

	var sawThreeHop bool
	for i, opp := range res.Opportunities {
		route := opp.Route.(*types.MultiHop)
		assert.True(t, route.Closed(), route.Key())
		assert.Contains(t, []int{3, 4}, len(route.Path))
		for _, leg := range route.Legs {
			assert.NotEqual(t, leg.From.Chain, leg.To.Chain, route.Key())
		}
		assert.Greater(t, opp.NetProfit, 5.0)
		if len(route.Legs) == 3 {
			sawThreeHop = true
			assert.Equal(t, 80.0, opp.Confidence)
			assert.Equal(t, int64(9000), opp.EstimatedExecutionTimeMs)
		}
		if i > 0 {
			assert.GreaterOrEqual(t, res.Opportunities[i-1].NetProfit, opp.NetProfit)
		}
	}
	assert.True(t, sawThreeHop)
}

func TestBestRoutesMaxResults(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPathLength = 4
	cfg.MaxResults = 2
	cfg.MinProfit = -1e9
	p := NewPathFinder(cfg, zaptest.NewLogger(t))

	res := p.BestRoutes(context.Background(), twoChainIndex())
	assert.Len(t, res.Opportunities, 2)
}

func TestBestRoutesSkipsMissingPrice(t *testing.T) {
	p := NewPathFinder(testConfig(), zaptest.NewLogger(t))

	idx := market.NewPriceIndex(market.Snapshot{Quotes: []market.Quote{
		quote("base", "ETH", 2400),
		quote("base", "USDC", 1),
		quote("solana", "ETH", 2500),
	}})

	res := p.BestRoutes(context.Background(), idx)
	// (base:USDC, solana:ETH) needs a USDC price on solana
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 1, res.Evaluated)
	assert.Empty(t, res.Opportunities)
}

func TestEvaluateCompoundsFees(t *testing.T) {
	p := NewPathFinder(testConfig(), zaptest.NewLogger(t))
	a := market.Node{Chain: "base", Token: "ETH"}
	b := market.Node{Chain: "solana", Token: "USDC"}

	route := &types.MultiHop{
		Path: []market.Node{a, b, a},
		Legs: []types.Leg{
			{From: a, To: b, Rate: 1.1, FeeRate: 0.01},
			{From: b, To: a, Rate: 1.0, FeeRate: 0.01},
		},
	}

	pricing := p.Evaluate(market.NewPriceIndex(market.Snapshot{}), route)
	assert.InDelta(t, 100.0, pricing.GrossProfit, 1e-9)
	// 1000 * 1.1 * 0.99 * 0.99, not 1100 - 20
	assert.InDelta(t, 78.11, pricing.NetProfit, 1e-9)
	assert.InDelta(t, 21.89, pricing.TotalFees, 1e-9)
	assert.Equal(t, 0.0, pricing.LiquidityCeiling)
}

func TestConfidence(t *testing.T) {
	assert.Equal(t, 90.0, Confidence(2))
	assert.Equal(t, 80.0, Confidence(3))
	assert.Equal(t, 70.0, Confidence(4))
	assert.Equal(t, 60.0, Confidence(5))
	assert.Equal(t, 60.0, Confidence(8))
}

func TestBestRoutesBudgetExhausted(t *testing.T) {
	p := NewPathFinder(testConfig(), zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := p.BestRoutes(ctx, twoChainIndex())
	assert.True(t, res.Degraded)
	assert.Empty(t, res.Opportunities)
}

func BenchmarkBestRoutes(b *testing.B) {
	cfg := testConfig()
	cfg.MaxPathLength = 4
	p := NewPathFinder(cfg, zaptest.NewLogger(b))

	var quotes []market.Quote
	for _, chain := range []string{"arbitrum", "base", "fantom", "polygon", "solana"} {
		for i, token := range []string{"ETH", "USDC", "SOL", "BTC"} {
			quotes = append(quotes, quote(chain, token, float64(i+1)*10))
		}
	}
	idx := market.NewPriceIndex(market.Snapshot{Quotes: quotes})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		p.BestRoutes(context.Background(), idx)
	}
}
