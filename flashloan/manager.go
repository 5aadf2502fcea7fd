package flashloan

import (
	"math"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Discount tiers. Bonuses are additive and capped at MaxDiscount.
const (
	MaxDiscount = 0.70

	highVolume        = 2_000_000
	highVolumeBonus   = 0.40
	mediumVolume      = 1_000_000
	mediumVolumeBonus = 0.25
	successThreshold  = 0.90
	successBonus      = 0.20
	streakThreshold   = 10
	streakBonus       = 0.15
	profitThreshold   = 50_000
	profitBonus       = 0.10
	largeTrade        = 20_000
	largeTradeBonus   = 0.05
)

// Negotiator picks the cheapest available provider for a candidate and applies
// the history-based discount
type Negotiator struct {
	mu        sync.RWMutex
	providers []Provider
	logger    *zap.Logger
	metrics   struct {
		providerSelections *prometheus.CounterVec
		noFinancing        prometheus.Counter
		discount           prometheus.Histogram
	}
}

// NewNegotiator creates a negotiator over a provider table. reg may be nil,
// in which case the instruments are not registered anywhere.
func NewNegotiator(providers []Provider, reg prometheus.Registerer, logger *zap.Logger) *Negotiator {
	if logger == nil {
		logger = zap.NewNop()
	}
	n := &Negotiator{
		logger: logger.Named("negotiator"),
	}
	n.SetProviders(providers)

	factory := promauto.With(reg)
	n.metrics.providerSelections = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "flashloan_provider_selections_total",
		Help: "Number of times each provider was selected",
	}, []string{"provider"})

	n.metrics.noFinancing = factory.NewCounter(prometheus.CounterOpts{
		Name: "flashloan_no_financing_total",
		Help: "Number of candidates with no available provider",
	})

	n.metrics.discount = factory.NewHistogram(prometheus.HistogramOpts{
		Name:    "flashloan_negotiated_discount",
		Help:    "Distribution of negotiated fee discounts",
		Buckets: prometheus.LinearBuckets(0, 0.1, 8),
	})

	return n
}

// SetProviders swaps the provider table
func (n *Negotiator) SetProviders(providers []Provider) {
	cp := make([]Provider, len(providers))
	copy(cp, providers)

	n.mu.Lock()
	defer n.mu.Unlock()
	n.providers = cp
}

// Negotiate prices the flash loan for capital against a ledger snapshot
func (n *Negotiator) Negotiate(state LedgerState, capital float64) (Quote, error) {
	provider, err := n.selectOptimalProvider()
	if err != nil {
		n.metrics.noFinancing.Inc()
		return Quote{}, err
	}

	discount := Discount(state, capital)
	rate := provider.FeeRate * (1 - discount)

	n.metrics.providerSelections.WithLabelValues(provider.Name).Inc()
	n.metrics.discount.Observe(discount)

	return Quote{
		Provider:    provider.Name,
		BaseFeeRate: provider.FeeRate,
		Discount:    discount,
		FeeRate:     rate,
		Fee:         capital * rate,
	}, nil
}

// selectOptimalProvider returns the available provider with the lowest base
// fee, ties broken by name
func (n *Negotiator) selectOptimalProvider() (Provider, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	var (
		best  Provider
		found bool
	)
	for _, p := range n.providers {
		if !p.Available || !finite(p.FeeRate) || p.FeeRate < 0 {
			continue
		}
		if !found || p.FeeRate < best.FeeRate || (p.FeeRate == best.FeeRate && p.Name < best.Name) {
			best = p
			found = true
		}
	}

	if !found {
		return Provider{}, ErrNoFinancing
	}
	return best, nil
}

// Discount computes the fee discount earned by a ledger state for a trade of
// the given notional. The result is always within [0, MaxDiscount].
func Discount(state LedgerState, notional float64) float64 {
	var d float64

	switch {
	case state.Volume > highVolume:
		d += highVolumeBonus
	case state.Volume > mediumVolume:
		d += mediumVolumeBonus
	}
	if state.SuccessRate > successThreshold {
		d += successBonus
	}
	if state.Streak > streakThreshold {
		d += streakBonus
	}
	if state.Profit > profitThreshold {
		d += profitBonus
	}
	if notional > largeTrade {
		d += largeTradeBonus
	}

	return math.Min(math.Max(d, 0), MaxDiscount)
}
