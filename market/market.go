// Package market holds the engine's inputs: price snapshots and the static
// trading-pair, bridge and flash-loan tables they are evaluated against.
package market

import (
	"math"
	"time"
)

// Quote is one (chain, token) reference price from a snapshot
type Quote struct {
	Chain     string  `json:"chain"`
	Token     string  `json:"token"`
	Price     float64 `json:"price"`
	Liquidity float64 `json:"liquidity"`
}

// Valid reports whether the quote carries usable numbers
func (q Quote) Valid() bool {
	return q.Chain != "" && q.Token != "" && Positive(q.Price) && NonNegative(q.Liquidity)
}

// Snapshot is a flat price table delivered once per refresh tick
type Snapshot struct {
	Sequence uint64    `json:"sequence"`
	TakenAt  time.Time `json:"taken_at"`
	Quotes   []Quote   `json:"quotes"`
}

// TradingPair is a directed conversion rate from From to To on one venue
type TradingPair struct {
	Chain     string  `yaml:"chain" json:"chain"`
	From      string  `yaml:"from" json:"from"`
	To        string  `yaml:"to" json:"to"`
	Price     float64 `yaml:"price" json:"price"`
	Venue     string  `yaml:"venue" json:"venue"`
	Liquidity float64 `yaml:"liquidity" json:"liquidity"`
	FeeRate   float64 `yaml:"fee_rate" json:"fee_rate"`
}

// Valid reports whether the pair can take part in a cycle
func (p TradingPair) Valid() bool {
	return p.From != "" && p.To != "" && p.From != p.To &&
		Positive(p.Price) && NonNegative(p.Liquidity) &&
		NonNegative(p.FeeRate) && p.FeeRate < 1
}

// BridgeRoute is a cross-chain conversion rate quoted by a bridge
type BridgeRoute struct {
	Bridge      string  `yaml:"bridge" json:"bridge"`
	Token       string  `yaml:"token" json:"token"`
	FromChain   string  `yaml:"from_chain" json:"from_chain"`
	ToChain     string  `yaml:"to_chain" json:"to_chain"`
	QuotedPrice float64 `yaml:"quoted_price" json:"quoted_price"`
}

// Valid reports whether the route has a usable quote
func (r BridgeRoute) Valid() bool {
	return r.Bridge != "" && r.Token != "" && r.FromChain != "" && r.ToChain != "" &&
		Positive(r.QuotedPrice)
}

// Finite reports whether v is neither NaN nor infinite
func Finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Positive reports whether v is finite and > 0
func Positive(v float64) bool {
	return Finite(v) && v > 0
}

// NonNegative reports whether v is finite and >= 0
func NonNegative(v float64) bool {
	return Finite(v) && v >= 0
}
