package profit

import (
	"errors"
	"math"
	"testing"

	"github.com/michaelpento.lv/arbscope/flashloan"
	"github.com/michaelpento.lv/arbscope/market"
	"github.com/michaelpento.lv/arbscope/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func testNegotiator(t *testing.T, providers ...flashloan.Provider) *flashloan.Negotiator {
	if len(providers) == 0 {
		providers = []flashloan.Provider{
			{Name: "aave", FeeRate: 0.0009, Available: true},
			{Name: "balancer", FeeRate: 0.0005, Available: true},
		}
	}
	return flashloan.NewNegotiator(providers, nil, zaptest.NewLogger(t))
}

func bridgeCandidate(bridge string, gross, capital float64) *types.Opportunity {
	return types.NewOpportunity(
		&types.BridgeSpread{Bridge: bridge, Token: "USDC", FromChain: "solana", ToChain: "base"},
		types.Pricing{GrossProfit: gross, NetProfit: gross, RequiredCapital: capital, LiquidityCeiling: capital},
	)
}

func triangleCandidate(venue string, gross, fees float64) *types.Opportunity {
	return types.NewOpportunity(
		&types.Triangle{Chain: "solana", Legs: [3]market.TradingPair{{Venue: venue}}},
		types.Pricing{GrossProfit: gross, TotalFees: fees, NetProfit: gross - fees, RequiredCapital: 1000},
	)
}

func TestEstimateAddsFinancingFee(t *testing.T) {
	e := NewEstimator(testNegotiator(t), nil, zaptest.NewLogger(t))

	in := bridgeCandidate("wormhole", 400, 250_000)
	ranked, report := e.Estimate([]*types.Opportunity{in}, flashloan.LedgerState{})
	require.Len(t, ranked, 1)

	opp := ranked[0]
	require.NotNil(t, opp.Financing)
	assert.Equal(t, "balancer", opp.Provider())
	// 250k at 0.05%, plus the large-trade discount
	wantFee := 250_000 * 0.0005 * 0.95
	assert.InDelta(t, wantFee, opp.TotalFees, 1e-9)
	assert.InDelta(t, 400-wantFee, opp.NetProfit, 1e-9)
	assert.InDelta(t, opp.GrossProfit-opp.TotalFees, opp.NetProfit, 1e-12)
	assert.InDelta(t, opp.NetProfit/250_000*100, opp.ProfitPercent, 1e-12)

	// input untouched
	assert.Nil(t, in.Financing)
	assert.Equal(t, 400.0, in.NetProfit)

	assert.Equal(t, Report{Candidates: 1, Priced: 1}, report)
}

func TestEstimateThresholds(t *testing.T) {
	e := NewEstimator(testNegotiator(t), nil, zaptest.NewLogger(t))

	candidates := []*types.Opportunity{
		// 1.4 - 0.5 fee is under the triangle minimum
		triangleCandidate("a", 1.4, 0),
		triangleCandidate("b", 3, 0),
		types.NewOpportunity(
			&types.MultiHop{Path: []market.Node{{Chain: "base", Token: "ETH"}}},
			types.Pricing{GrossProfit: 5.2, NetProfit: 5.2, RequiredCapital: 1000},
		),
	}

	ranked, report := e.Estimate(candidates, flashloan.LedgerState{})
	require.Len(t, ranked, 1)
	assert.Equal(t, candidates[1].ID, ranked[0].ID)
	assert.Equal(t, 2, report.BelowThreshold)
	assert.Equal(t, 2, report.Excluded())
}

func TestEstimateExcludesInvalid(t *testing.T) {
	e := NewEstimator(testNegotiator(t), nil, zaptest.NewLogger(t))

	nan := bridgeCandidate("nan", math.NaN(), 1000)
	negative := bridgeCandidate("negative", 100, -5)
	inf := bridgeCandidate("inf", 100, math.Inf(1))

	ranked, report := e.Estimate([]*types.Opportunity{nan, negative, inf, nil}, flashloan.LedgerState{})
	assert.Empty(t, ranked)
	assert.Equal(t, 4, report.Invalid)
}

func TestEstimateNoFinancing(t *testing.T) {
	n := testNegotiator(t, flashloan.Provider{Name: "aave", FeeRate: 0.0009, Available: false})
	e := NewEstimator(n, nil, zaptest.NewLogger(t))

	ranked, report := e.Estimate([]*types.Opportunity{bridgeCandidate("wormhole", 100, 1000)}, flashloan.LedgerState{})
	assert.Empty(t, ranked)
	assert.Equal(t, 1, report.NoFinancing)
}

type failingFinancier struct{}

func (failingFinancier) Negotiate(flashloan.LedgerState, float64) (flashloan.Quote, error) {
	return flashloan.Quote{}, errors.New("backend down")
}

func TestEstimateFinancierError(t *testing.T) {
	e := NewEstimator(failingFinancier{}, nil, zaptest.NewLogger(t))

	ranked, report := e.Estimate([]*types.Opportunity{bridgeCandidate("wormhole", 100, 1000)}, flashloan.LedgerState{})
	assert.Empty(t, ranked)
	assert.Equal(t, 1, report.Invalid)
}

func TestEstimateRanking(t *testing.T) {
	e := NewEstimator(testNegotiator(t), nil, zaptest.NewLogger(t))

	candidates := []*types.Opportunity{
		bridgeCandidate("a", 10, 1000),
		bridgeCandidate("b", 30, 1000),
		bridgeCandidate("c", 20, 1000),
	}
	ranked, _ := e.Estimate(candidates, flashloan.LedgerState{})
	require.Len(t, ranked, 3)
	for i := 1; i < len(ranked); i++ {
		assert.GreaterOrEqual(t, ranked[i-1].NetProfit, ranked[i].NetProfit)
	}
	assert.Equal(t, candidates[1].ID, ranked[0].ID)
}

func TestEstimateDiscountFromLedger(t *testing.T) {
	e := NewEstimator(testNegotiator(t), nil, zaptest.NewLogger(t))
	state := flashloan.LedgerState{Volume: 2_500_000, SuccessRate: 0.92, Streak: 15, Profit: 85_000}

	ranked, _ := e.Estimate([]*types.Opportunity{bridgeCandidate("wormhole", 100, 25_000)}, state)
	require.Len(t, ranked, 1)
	assert.Equal(t, flashloan.MaxDiscount, ranked[0].Financing.Discount)
	assert.InDelta(t, 25_000*0.0005*0.3, ranked[0].Financing.Fee, 1e-9)
}
