// Package gas models the gas cost of executing opportunities individually and
// as a batch.
package gas

import (
	"math"

	"github.com/ethereum/go-ethereum/params"
)

const (
	// DefaultPerLegGas covers storage reads, token transfers and swap execution
	DefaultPerLegGas       = 152_000
	DefaultBatchOverhead   = 50_000
	DefaultBatchedFraction = 0.7
)

// Model estimates gas use and converts savings to USD
type Model struct {
	PerLegGas       uint64
	BatchOverhead   uint64
	BatchedFraction float64 // share of individual gas still spent when batched
	GasToUSD        float64 // USD per unit of gas
}

// NewModel creates a model with the default gas figures priced at gasPriceGwei
// and the native token's USD price
func NewModel(gasPriceGwei, nativeUSD float64) *Model {
	return &Model{
		PerLegGas:       DefaultPerLegGas,
		BatchOverhead:   DefaultBatchOverhead,
		BatchedFraction: DefaultBatchedFraction,
		GasToUSD:        GasToUSD(gasPriceGwei, nativeUSD),
	}
}

// GasToUSD converts a gas price in gwei and a native token price into USD per
// unit of gas
func GasToUSD(gasPriceGwei, nativeUSD float64) float64 {
	return gasPriceGwei * params.GWei / params.Ether * nativeUSD
}

// EstimateGas is the gas of executing a route with legs conversions on its own
func (m *Model) EstimateGas(legs int) uint64 {
	if legs < 0 {
		legs = 0
	}
	return params.TxGas + m.PerLegGas*uint64(legs)
}

// Estimate summarizes the gas of one batch
type Estimate struct {
	IndividualGas uint64
	BatchGas      uint64
	SavingsUSD    float64
}

// EstimateBatch compares executing routes with the given leg counts one by
// one against executing them together. Savings are never negative and are
// zero for a batch of one.
func (m *Model) EstimateBatch(legCounts []int) Estimate {
	var individual uint64
	for _, legs := range legCounts {
		individual += m.EstimateGas(legs)
	}

	batch := m.BatchOverhead + uint64(math.Round(float64(individual)*m.BatchedFraction))
	est := Estimate{IndividualGas: individual, BatchGas: batch}
	if len(legCounts) <= 1 || batch >= individual {
		return est
	}

	est.SavingsUSD = math.Max(0, float64(individual-batch)*m.GasToUSD)
	return est
}
