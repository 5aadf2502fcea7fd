package market

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/michaelpento.lv/arbscope/flashloan"

	"gopkg.in/yaml.v2"
)

// ErrNoPairTables is returned when a table set carries no trading pairs at all
var ErrNoPairTables = errors.New("no trading pair tables supplied")

// Tables are the static inputs supplied at configuration time. They may be
// swapped between ticks but are never mutated while a tick runs.
type Tables struct {
	Pairs     []TradingPair        `yaml:"pairs"`
	Bridges   []BridgeRoute        `yaml:"bridges"`
	Providers []flashloan.Provider `yaml:"providers"`
}

// PairsByChain groups the pair table per chain, preserving table order
func (t *Tables) PairsByChain() map[string][]TradingPair {
	out := make(map[string][]TradingPair)
	for _, p := range t.Pairs {
		out[p.Chain] = append(out[p.Chain], p)
	}
	return out
}

// Chains returns the chains that own at least one pair, sorted
func (t *Tables) Chains() []string {
	seen := make(map[string]struct{})
	for _, p := range t.Pairs {
		seen[p.Chain] = struct{}{}
	}
	chains := make([]string, 0, len(seen))
	for c := range seen {
		chains = append(chains, c)
	}
	sort.Strings(chains)
	return chains
}

// Validate checks the table set is usable before the first tick
func (t *Tables) Validate() error {
	if t == nil || len(t.Pairs) == 0 {
		return ErrNoPairTables
	}
	for i, p := range t.Pairs {
		if p.Chain == "" {
			return fmt.Errorf("pair %d: chain must be specified", i)
		}
	}
	for i, p := range t.Providers {
		if p.Name == "" {
			return fmt.Errorf("provider %d: name must be specified", i)
		}
		if !NonNegative(p.FeeRate) {
			return fmt.Errorf("provider %s: fee rate must be a non-negative number", p.Name)
		}
	}
	return nil
}

// LoadTables reads a YAML table file
func LoadTables(path string) (*Tables, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tables file: %w", err)
	}

	var tables Tables
	if err := yaml.Unmarshal(data, &tables); err != nil {
		return nil, fmt.Errorf("failed to decode tables file: %w", err)
	}

	if err := tables.Validate(); err != nil {
		return nil, err
	}

	return &tables, nil
}
