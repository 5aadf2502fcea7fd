package flashloan

import "errors"

// ErrNoFinancing is returned when no available provider can fund a candidate
var ErrNoFinancing = errors.New("no flash loan financing available")

// Provider is a capital-lending source with a percentage fee
type Provider struct {
	Name      string  `yaml:"name" json:"name"`
	FeeRate   float64 `yaml:"fee_rate" json:"fee_rate"` // fraction of principal, 0.0009 = 0.09%
	Available bool    `yaml:"available" json:"available"`
}

// Quote is the negotiated financing for one candidate
type Quote struct {
	Provider    string  `json:"provider"`
	BaseFeeRate float64 `json:"base_fee_rate"`
	Discount    float64 `json:"discount"`
	FeeRate     float64 `json:"fee_rate"`
	Fee         float64 `json:"fee"`
}

// LedgerState is a point-in-time copy of the trading-history ledger
type LedgerState struct {
	Volume      float64 `yaml:"volume" json:"volume"`
	SuccessRate float64 `yaml:"success_rate" json:"success_rate"`
	Profit      float64 `yaml:"profit" json:"profit"`
	Streak      int     `yaml:"streak" json:"streak"`
}
