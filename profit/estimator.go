// Package profit prices enumerated candidates net of flash-loan financing.
package profit

import (
	"errors"

	"github.com/michaelpento.lv/arbscope/flashloan"
	"github.com/michaelpento.lv/arbscope/market"
	"github.com/michaelpento.lv/arbscope/types"

	"go.uber.org/zap"
)

// Financier quotes flash-loan financing for a candidate's capital
type Financier interface {
	Negotiate(state flashloan.LedgerState, capital float64) (flashloan.Quote, error)
}

// Thresholds is the minimum net profit per route kind. A candidate must net
// strictly more than its kind's threshold; kinds not listed use zero.
type Thresholds map[types.Kind]float64

// DefaultThresholds returns the per-kind minimums used by the enumerators
func DefaultThresholds() Thresholds {
	return Thresholds{
		types.KindTriangle:     1,
		types.KindMultiHop:     5,
		types.KindBridgeSpread: 0,
	}
}

// Report counts what happened to each candidate in one pass
type Report struct {
	Candidates     int
	Priced         int
	Invalid        int
	NoFinancing    int
	BelowThreshold int
}

// Excluded is the number of candidates dropped for any reason
func (r Report) Excluded() int {
	return r.Invalid + r.NoFinancing + r.BelowThreshold
}

// Estimator calculates financed profit for candidates
type Estimator struct {
	financier  Financier
	thresholds Thresholds
	logger     *zap.Logger
}

// NewEstimator creates a new profit estimator
func NewEstimator(financier Financier, thresholds Thresholds, logger *zap.Logger) *Estimator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if thresholds == nil {
		thresholds = DefaultThresholds()
	}
	return &Estimator{
		financier:  financier,
		thresholds: thresholds,
		logger:     logger.Named("profit"),
	}
}

// Estimate finances every candidate against one ledger snapshot and returns
// the survivors ranked by net profit. Candidates are copied; the inputs are
// not modified.
func (e *Estimator) Estimate(candidates []*types.Opportunity, state flashloan.LedgerState) ([]*types.Opportunity, Report) {
	report := Report{Candidates: len(candidates)}
	ranked := make([]*types.Opportunity, 0, len(candidates))

	for _, c := range candidates {
		opp, err := e.price(c, state)
		switch {
		case errors.Is(err, errInvalidCandidate):
			report.Invalid++
			if c != nil {
				e.logger.Debug("Excluding malformed candidate", zap.String("id", c.ID))
			}
			continue
		case errors.Is(err, flashloan.ErrNoFinancing):
			report.NoFinancing++
			e.logger.Debug("Excluding unfinanced candidate", zap.String("id", c.ID))
			continue
		case err != nil:
			report.Invalid++
			e.logger.Warn("Failed to price candidate", zap.String("id", c.ID), zap.Error(err))
			continue
		}

		if opp.NetProfit <= e.thresholds[opp.Kind()] {
			report.BelowThreshold++
			continue
		}
		ranked = append(ranked, opp)
	}

	report.Priced = len(ranked)
	types.SortByNetProfit(ranked)
	return ranked, report
}

var errInvalidCandidate = errors.New("invalid candidate")

// price adds the negotiated flash-loan fee to a copy of the candidate
func (e *Estimator) price(c *types.Opportunity, state flashloan.LedgerState) (*types.Opportunity, error) {
	if c == nil || c.Route == nil || !c.Pricing.Valid() {
		return nil, errInvalidCandidate
	}

	quote, err := e.financier.Negotiate(state, c.RequiredCapital)
	if err != nil {
		return nil, err
	}
	if !market.NonNegative(quote.Fee) {
		return nil, errInvalidCandidate
	}

	opp := c.Clone()
	opp.Financing = &quote
	opp.TotalFees += quote.Fee
	opp.NetProfit = opp.GrossProfit - opp.TotalFees
	if opp.RequiredCapital > 0 {
		opp.ProfitPercent = opp.NetProfit / opp.RequiredCapital * 100
	} else {
		opp.ProfitPercent = 0
	}
	return opp, nil
}
