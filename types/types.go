package types

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/michaelpento.lv/arbscope/flashloan"
	"github.com/michaelpento.lv/arbscope/market"

	"github.com/cespare/xxhash/v2"
	"github.com/sugawarayuuta/sonnet"
)

// Kind identifies the discovery method of an opportunity
type Kind int

const (
	KindTriangle Kind = iota
	KindMultiHop
	KindBridgeSpread
	KindUnknown
)

func (k Kind) String() string {
	switch k {
	case KindTriangle:
		return "triangle"
	case KindMultiHop:
		return "multihop"
	case KindBridgeSpread:
		return "bridge_spread"
	default:
		return "unknown"
	}
}

// Route is the variant part of an opportunity. It is implemented by
// *Triangle, *MultiHop and *BridgeSpread only.
type Route interface {
	Kind() Kind
	// Key is a stable identity for the route, independent of prices
	Key() string
	// LegCount is the number of conversions executed on-chain
	LegCount() int
	route()
}

// Triangle is a closed three-leg cycle on one chain
type Triangle struct {
	Chain  string                `json:"chain"`
	TokenA string                `json:"token_a"`
	TokenB string                `json:"token_b"`
	TokenC string                `json:"token_c"`
	Legs   [3]market.TradingPair `json:"legs"`
}

func (t *Triangle) Kind() Kind    { return KindTriangle }
func (t *Triangle) LegCount() int { return len(t.Legs) }
func (t *Triangle) route()        {}

func (t *Triangle) Key() string {
	var b strings.Builder
	b.WriteString("triangle|")
	b.WriteString(t.Chain)
	for _, leg := range t.Legs {
		b.WriteString("|")
		b.WriteString(leg.From)
		b.WriteString(">")
		b.WriteString(leg.To)
		b.WriteString("@")
		b.WriteString(leg.Venue)
	}
	return b.String()
}

// Closed reports whether each leg ends where the next one starts
func (t *Triangle) Closed() bool {
	return t.Legs[0].To == t.Legs[1].From &&
		t.Legs[1].To == t.Legs[2].From &&
		t.Legs[2].To == t.Legs[0].From
}

// Leg is one hop of a multi-hop path
type Leg struct {
	From    market.Node `json:"from"`
	To      market.Node `json:"to"`
	Rate    float64     `json:"rate"`
	FeeRate float64     `json:"fee_rate"`
}

// MultiHop is a closed cross-chain cycle; Path[0] == Path[len(Path)-1]
type MultiHop struct {
	Path []market.Node `json:"path"`
	Legs []Leg         `json:"legs"`
}

func (m *MultiHop) Kind() Kind    { return KindMultiHop }
func (m *MultiHop) LegCount() int { return len(m.Legs) }
func (m *MultiHop) route()        {}

func (m *MultiHop) Key() string {
	var b strings.Builder
	b.WriteString("multihop")
	for _, n := range m.Path {
		b.WriteString("|")
		b.WriteString(n.Chain)
		b.WriteString(":")
		b.WriteString(n.Token)
	}
	return b.String()
}

// Closed reports whether capital returns to its origin
func (m *MultiHop) Closed() bool {
	return len(m.Path) >= 2 && m.Path[0] == m.Path[len(m.Path)-1]
}

// BridgeSpread is a discrepancy between a bridge quote and the market price
type BridgeSpread struct {
	Bridge         string  `json:"bridge"`
	Token          string  `json:"token"`
	FromChain      string  `json:"from_chain"`
	ToChain        string  `json:"to_chain"`
	BridgePrice    float64 `json:"bridge_price"`
	ReferencePrice float64 `json:"reference_price"`
	Spread         float64 `json:"spread"`
}

func (s *BridgeSpread) Kind() Kind    { return KindBridgeSpread }
func (s *BridgeSpread) LegCount() int { return 1 }
func (s *BridgeSpread) route()        {}

func (s *BridgeSpread) Key() string {
	return "bridge|" + s.Bridge + "|" + s.Token + "|" + s.FromChain + ">" + s.ToChain
}

// Pricing is the priced result shared by every route kind
type Pricing struct {
	GrossProfit              float64 `json:"gross_profit"`
	TotalFees                float64 `json:"total_fees"`
	NetProfit                float64 `json:"net_profit"`
	ProfitPercent            float64 `json:"profit_percent"`
	Confidence               float64 `json:"confidence"`
	EstimatedExecutionTimeMs int64   `json:"estimated_execution_time_ms"`
	RequiredCapital          float64 `json:"required_capital"`
	LiquidityCeiling         float64 `json:"liquidity_ceiling"`
	SlippagePercent          float64 `json:"slippage_percent"`
}

// Valid reports whether every field is finite and capital is non-negative
func (p Pricing) Valid() bool {
	for _, v := range []float64{p.GrossProfit, p.TotalFees, p.NetProfit, p.ProfitPercent,
		p.Confidence, p.LiquidityCeiling, p.SlippagePercent} {
		if !market.Finite(v) {
			return false
		}
	}
	return market.NonNegative(p.RequiredCapital) && p.TotalFees >= 0
}

// Opportunity is a candidate route with its pricing. Financing is nil until
// the profit estimator has negotiated a flash loan for it.
type Opportunity struct {
	ID        string           `json:"id"`
	Route     Route            `json:"route"`
	Pricing
	Financing *flashloan.Quote `json:"financing,omitempty"`
}

// NewOpportunity builds an opportunity with a deterministic ID derived from
// the route key
func NewOpportunity(r Route, p Pricing) *Opportunity {
	return &Opportunity{
		ID:      RouteID(r),
		Route:   r,
		Pricing: p,
	}
}

// Kind is shorthand for o.Route.Kind()
func (o *Opportunity) Kind() Kind {
	if o.Route == nil {
		return KindUnknown
	}
	return o.Route.Kind()
}

// MarshalJSON adds the route kind so consumers can decode the route variant
func (o *Opportunity) MarshalJSON() ([]byte, error) {
	type opportunity Opportunity
	return sonnet.Marshal(struct {
		Kind string `json:"kind"`
		opportunity
	}{
		Kind:        o.Kind().String(),
		opportunity: opportunity(*o),
	})
}

// Provider is the financing provider name, or "" when unfinanced
func (o *Opportunity) Provider() string {
	if o.Financing == nil {
		return ""
	}
	return o.Financing.Provider
}

// Clone returns a copy that shares the immutable route
func (o *Opportunity) Clone() *Opportunity {
	cp := *o
	if o.Financing != nil {
		f := *o.Financing
		cp.Financing = &f
	}
	return &cp
}

// RouteID hashes a route key into a short hex identifier
func RouteID(r Route) string {
	return strconv.FormatUint(xxhash.Sum64String(r.Key()), 16)
}

// Batch is a bounded group of opportunities packaged for combined execution
type Batch struct {
	Opportunities        []*Opportunity `json:"opportunities"`
	TotalProfit          float64        `json:"total_profit"`
	TotalCapital         float64        `json:"total_capital"`
	EstimatedGasSavings  float64        `json:"estimated_gas_savings"`
	ProviderOptimization bool           `json:"provider_optimization"`
	ExecutionOrder       []int          `json:"execution_order"`
}

// Plan is the output of one tick: the ranked list and the batches built from it
type Plan struct {
	ID            string         `json:"id"`
	Sequence      uint64         `json:"sequence"`
	GeneratedAt   time.Time      `json:"generated_at"`
	Opportunities []*Opportunity `json:"opportunities"`
	Batches       []*Batch       `json:"batches"`
	Unplanned     []*Opportunity `json:"unplanned,omitempty"`
	Degraded      bool           `json:"degraded"`
	Warnings      []string       `json:"warnings,omitempty"`
}

// SortByNetProfit orders opportunities by descending net profit, ties broken
// by ID so the order is reproducible
func SortByNetProfit(opps []*Opportunity) {
	sort.SliceStable(opps, func(i, j int) bool {
		if opps[i].NetProfit != opps[j].NetProfit {
			return opps[i].NetProfit > opps[j].NetProfit
		}
		return opps[i].ID < opps[j].ID
	})
}
