package market

import "sort"

// Node identifies a token on a specific chain
type Node struct {
	Chain string `json:"chain"`
	Token string `json:"token"`
}

// PriceIndex maps chain -> token -> quote for one snapshot
type PriceIndex struct {
	quotes  map[string]map[string]Quote
	skipped int
}

// NewPriceIndex indexes a snapshot. Invalid quotes are skipped and a
// duplicated (chain, token) keeps the last quote seen.
func NewPriceIndex(snap Snapshot) *PriceIndex {
	idx := &PriceIndex{quotes: make(map[string]map[string]Quote)}
	for _, q := range snap.Quotes {
		if !q.Valid() {
			idx.skipped++
			continue
		}
		tokens, ok := idx.quotes[q.Chain]
		if !ok {
			tokens = make(map[string]Quote)
			idx.quotes[q.Chain] = tokens
		}
		tokens[q.Token] = q
	}
	return idx
}

// Price returns the reference price of token on chain
func (i *PriceIndex) Price(chain, token string) (float64, bool) {
	q, ok := i.Quote(chain, token)
	if !ok {
		return 0, false
	}
	return q.Price, true
}

// Quote returns the full quote of token on chain
func (i *PriceIndex) Quote(chain, token string) (Quote, bool) {
	tokens, ok := i.quotes[chain]
	if !ok {
		return Quote{}, false
	}
	q, ok := tokens[token]
	return q, ok
}

// Skipped is the number of snapshot quotes rejected as malformed
func (i *PriceIndex) Skipped() int {
	return i.skipped
}

// Nodes returns every indexed (chain, token) in sorted order
func (i *PriceIndex) Nodes() []Node {
	var nodes []Node
	for chain, tokens := range i.quotes {
		for token := range tokens {
			nodes = append(nodes, Node{Chain: chain, Token: token})
		}
	}
	sort.Slice(nodes, func(a, b int) bool {
		if nodes[a].Chain != nodes[b].Chain {
			return nodes[a].Chain < nodes[b].Chain
		}
		return nodes[a].Token < nodes[b].Token
	})
	return nodes
}

// Chains returns the indexed chains in sorted order
func (i *PriceIndex) Chains() []string {
	chains := make([]string, 0, len(i.quotes))
	for chain := range i.quotes {
		chains = append(chains, chain)
	}
	sort.Strings(chains)
	return chains
}

// Len is the number of indexed quotes
func (i *PriceIndex) Len() int {
	n := 0
	for _, tokens := range i.quotes {
		n += len(tokens)
	}
	return n
}
