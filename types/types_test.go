package types

import (
	"math"
	"testing"

	"github.com/michaelpento.lv/arbscope/flashloan"
	"github.com/michaelpento.lv/arbscope/market"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sugawarayuuta/sonnet"
)

func TestTriangleClosed(t *testing.T) {
	tri := &Triangle{
		Chain: "solana",
		Legs: [3]market.TradingPair{
			{From: "SOL", To: "USDC"},
			{From: "USDC", To: "ETH"},
			{From: "ETH", To: "SOL"},
		},
	}
	assert.True(t, tri.Closed())

	tri.Legs[2].To = "BTC"
	assert.False(t, tri.Closed())
}

func TestMultiHopClosed(t *testing.T) {
	a := market.Node{Chain: "base", Token: "ETH"}
	b := market.Node{Chain: "fantom", Token: "USDC"}

	assert.True(t, (&MultiHop{Path: []market.Node{a, b, a}}).Closed())
	assert.False(t, (&MultiHop{Path: []market.Node{a, b}}).Closed())
	assert.False(t, (&MultiHop{Path: []market.Node{a}}).Closed())
}

func TestRouteID(t *testing.T) {
	r1 := &BridgeSpread{Bridge: "wormhole", Token: "USDC", FromChain: "solana", ToChain: "base", BridgePrice: 1.0002}
	r2 := &BridgeSpread{Bridge: "wormhole", Token: "USDC", FromChain: "solana", ToChain: "base", BridgePrice: 0.99}
	r3 := &BridgeSpread{Bridge: "wormhole", Token: "USDC", FromChain: "base", ToChain: "solana"}

	// prices do not take part in identity
	assert.Equal(t, RouteID(r1), RouteID(r2))
	assert.NotEqual(t, RouteID(r1), RouteID(r3))
	assert.NotEmpty(t, RouteID(r1))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "triangle", KindTriangle.String())
	assert.Equal(t, "multihop", KindMultiHop.String())
	assert.Equal(t, "bridge_spread", KindBridgeSpread.String())
	assert.Equal(t, "unknown", Kind(42).String())
}

func TestPricingValid(t *testing.T) {
	ok := Pricing{GrossProfit: 10, TotalFees: 2, NetProfit: 8, RequiredCapital: 1000}
	assert.True(t, ok.Valid())

	nan := ok
	nan.NetProfit = math.NaN()
	assert.False(t, nan.Valid())

	negCapital := ok
	negCapital.RequiredCapital = -1
	assert.False(t, negCapital.Valid())

	infCapital := ok
	infCapital.RequiredCapital = math.Inf(1)
	assert.False(t, infCapital.Valid())
}

func TestOpportunityClone(t *testing.T) {
	opp := NewOpportunity(&BridgeSpread{Bridge: "stargate", Token: "USDC"}, Pricing{NetProfit: 5})
	opp.Financing = &flashloan.Quote{Provider: "aave"}

	cp := opp.Clone()
	require.Equal(t, opp.ID, cp.ID)
	cp.Financing.Provider = "balancer"
	cp.NetProfit = 1

	assert.Equal(t, "aave", opp.Provider())
	assert.Equal(t, 5.0, opp.NetProfit)
	assert.Equal(t, "balancer", cp.Provider())
	assert.Equal(t, "", NewOpportunity(&BridgeSpread{}, Pricing{}).Provider())
}

func TestOpportunityJSONCarriesKind(t *testing.T) {
	a := market.Node{Chain: "base", Token: "ETH"}
	b := market.Node{Chain: "solana", Token: "USDC"}

	tests := []struct {
		route Route
		want  string
	}{
		{&Triangle{Chain: "solana"}, "triangle"},
		{&MultiHop{Path: []market.Node{a, b, a}}, "multihop"},
		{&BridgeSpread{Bridge: "wormhole", Token: "USDC", FromChain: "solana", ToChain: "base"}, "bridge_spread"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			opp := NewOpportunity(tt.route, Pricing{NetProfit: 7.5, RequiredCapital: 1000})
			opp.Financing = &flashloan.Quote{Provider: "balancer"}

			data, err := sonnet.Marshal([]*Opportunity{opp})
			require.NoError(t, err)

			var decoded []map[string]interface{}
			require.NoError(t, sonnet.Unmarshal(data, &decoded))
			require.Len(t, decoded, 1)
			assert.Equal(t, tt.want, decoded[0]["kind"])
			assert.Equal(t, opp.ID, decoded[0]["id"])
			assert.Equal(t, 7.5, decoded[0]["net_profit"])
			assert.Contains(t, decoded[0], "route")
			assert.Contains(t, decoded[0], "financing")
		})
	}
}
