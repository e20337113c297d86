// Package domain contains the core types shared across the arbitrage bot:
// venues, trading pairs, quotes, opportunities, risk assessments, execution
// records, and the interfaces implemented by the ledger, store, and cache
// layers.
package domain

import "fmt"

// Venue is an issuing account on the ledger acting as a trading counterparty
// reference. Immutable reference data, loaded from configuration at startup.
type Venue struct {
	Name       string
	Address    string // ledger account address issuing the currencies
	Currencies []string
}

// Issues reports whether the venue issues the given currency code. The
// native currency is tradable on every venue.
func (v Venue) Issues(currency string) bool {
	if currency == NativeCurrency {
		return true
	}
	for _, c := range v.Currencies {
		if c == currency {
			return true
		}
	}
	return false
}

// NativeCurrency is the ledger's native asset, which needs no issuer.
const NativeCurrency = "XRP"

// TradingPair identifies one tradable market: base priced in quote at a
// specific venue.
type TradingPair struct {
	Base  string
	Quote string
	Venue string // venue name; empty when the pair is venue-agnostic
}

// Market returns the venue-agnostic form of the pair, used to group quotes
// from different venues under one key for cross-venue comparison.
func (p TradingPair) Market() TradingPair {
	return TradingPair{Base: p.Base, Quote: p.Quote}
}

// String renders the pair as BASE/QUOTE or BASE/QUOTE@venue.
func (p TradingPair) String() string {
	if p.Venue == "" {
		return p.Base + "/" + p.Quote
	}
	return fmt.Sprintf("%s/%s@%s", p.Base, p.Quote, p.Venue)
}

// GeneratePairs builds the cross-product of tracked currencies against the
// native currency for every venue that issues them. Pairs where base and
// quote coincide are skipped.
func GeneratePairs(currencies []string, venues []Venue) []TradingPair {
	var pairs []TradingPair
	for _, v := range venues {
		for _, quote := range currencies {
			if quote == NativeCurrency || !v.Issues(quote) {
				continue
			}
			pairs = append(pairs, TradingPair{Base: NativeCurrency, Quote: quote, Venue: v.Name})
		}
	}
	return pairs
}

// CycleLegs expands a currency cycle into its ordered trading pairs on one
// venue. A cycle [A, B, C] becomes the legs A/B, B/C, C/A: each leg sells
// its base for its quote, returning to the start currency.
func CycleLegs(cycle []string, venue string) []TradingPair {
	legs := make([]TradingPair, len(cycle))
	for i, base := range cycle {
		quote := cycle[(i+1)%len(cycle)]
		legs[i] = TradingPair{Base: base, Quote: quote, Venue: venue}
	}
	return legs
}

// SupportsCycle reports whether the venue issues every non-native currency
// in the cycle, making all its legs tradable there.
func (v Venue) SupportsCycle(cycle []string) bool {
	for _, c := range cycle {
		if !v.Issues(c) {
			return false
		}
	}
	return true
}
