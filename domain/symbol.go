package domain

import (
	"regexp"
	"strings"
)

var symbolCleaner = regexp.MustCompile(`[^a-zA-Z0-9 -]`)

// SanitizeSymbol normalizes a client-supplied symbol: everything outside
// [A-Za-z0-9 -] is stripped and the remainder is upper-cased. Lookup against
// the supported-pair set happens on the sanitized form.
func SanitizeSymbol(raw string) string {
	return strings.ToUpper(symbolCleaner.ReplaceAllString(raw, ""))
}

// TradingPairs is the fixed allow-list of symbols clients may subscribe to.
type TradingPairs map[string]struct{}

func NewTradingPairs(symbols []string) TradingPairs {
	pairs := make(TradingPairs, len(symbols))
	for _, s := range symbols {
		pairs[SanitizeSymbol(s)] = struct{}{}
	}
	return pairs
}

func (p TradingPairs) Contains(symbol string) bool {
	_, ok := p[symbol]
	return ok
}
