package flashloan

import (
	"math"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	successStep = 0.01
	failureStep = 0.02
)

// MaxSuccessRate caps the rolling success rate
const MaxSuccessRate = 0.95

// Ledger accumulates trading history for fee negotiation. It is the only
// mutable state shared across ticks; all access goes through mu.
type Ledger struct {
	mu          sync.RWMutex
	volume      decimal.Decimal
	profit      decimal.Decimal
	successRate float64
	streak      int
	outcomes    uint64
	logger      *zap.Logger
}

// NewLedger creates a ledger initialized with seed values
func NewLedger(seed LedgerState, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	rate := seed.SuccessRate
	if math.IsNaN(rate) || rate < 0 {
		rate = 0
	}
	if rate > MaxSuccessRate {
		rate = MaxSuccessRate
	}
	streak := seed.Streak
	if streak < 0 {
		streak = 0
	}
	return &Ledger{
		volume:      decimal.NewFromFloat(finiteOrZero(seed.Volume)),
		profit:      decimal.NewFromFloat(finiteOrZero(seed.Profit)),
		successRate: rate,
		streak:      streak,
		logger:      logger.Named("ledger"),
	}
}

// RecordOutcome folds one execution result into the ledger. Success moves the
// rolling rate up by 0.01 and extends the streak; failure moves it down by 0.02
// and resets the streak.
func (l *Ledger) RecordOutcome(volume float64, success bool, profit float64) {
	if !finite(volume) || volume < 0 || !finite(profit) {
		l.logger.Warn("Rejected malformed outcome",
			zap.Float64("volume", volume),
			zap.Float64("profit", profit))
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.volume = l.volume.Add(decimal.NewFromFloat(volume))
	l.profit = l.profit.Add(decimal.NewFromFloat(profit))
	l.outcomes++

	if success {
		l.successRate = math.Min(l.successRate+successStep, MaxSuccessRate)
		l.streak++
	} else {
		l.successRate = math.Max(math.Min(l.successRate-failureStep, MaxSuccessRate), 0)
		l.streak = 0
	}

	l.logger.Debug("Recorded outcome",
		zap.Bool("success", success),
		zap.Float64("success_rate", l.successRate),
		zap.Int("streak", l.streak))
}

// Snapshot returns a consistent copy of the ledger
func (l *Ledger) Snapshot() LedgerState {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return LedgerState{
		Volume:      l.volume.InexactFloat64(),
		SuccessRate: l.successRate,
		Profit:      l.profit.InexactFloat64(),
		Streak:      l.streak,
	}
}

// Outcomes is the number of outcomes recorded since construction
func (l *Ledger) Outcomes() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.outcomes
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func finiteOrZero(v float64) float64 {
	if !finite(v) {
		return 0
	}
	return v
}
