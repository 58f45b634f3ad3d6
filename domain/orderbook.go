package domain

import (
	"sort"
	"sync"

	"github.com/shopspring/decimal"
)

// OrderBook is the locally maintained book for one symbol. It is private to a
// single FeedSynchronizer: created from a fresh snapshot at the start of every
// synchronization attempt and discarded when the attempt ends.
//
// Levels are keyed by the canonical decimal string of the price, so "10.30"
// and "10.3" address the same level.
type OrderBook struct {
	mu   sync.Mutex
	bids map[string]Offer
	asks map[string]Offer
}

func NewOrderBook() *OrderBook {
	return &OrderBook{
		bids: make(map[string]Offer),
		asks: make(map[string]Offer),
	}
}

// Apply upserts the given levels into the book. A zero-quantity offer removes
// its price level; removing an absent level is a no-op. The book never holds a
// zero-quantity entry.
func (ob *OrderBook) Apply(bids []Offer, asks []Offer) {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	applySide(ob.bids, bids)
	applySide(ob.asks, asks)
}

func applySide(side map[string]Offer, updates []Offer) {
	for _, offer := range updates {
		key := offer.Price.String()
		if offer.IsRemoval() {
			delete(side, key)
		} else {
			side[key] = offer
		}
	}
}

// TopBids returns up to n quantities ordered from the best (highest) bid price
// outward. n <= 0 yields an empty slice.
func (ob *OrderBook) TopBids(n int) []decimal.Decimal {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	return topOfSide(ob.bids, n, func(a, b Offer) bool {
		return a.Price.GreaterThan(b.Price)
	})
}

// TopAsks returns up to n quantities ordered from the best (lowest) ask price
// outward. n <= 0 yields an empty slice.
func (ob *OrderBook) TopAsks(n int) []decimal.Decimal {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	return topOfSide(ob.asks, n, func(a, b Offer) bool {
		return a.Price.LessThan(b.Price)
	})
}

func topOfSide(side map[string]Offer, n int, better func(a, b Offer) bool) []decimal.Decimal {
	if n <= 0 {
		return []decimal.Decimal{}
	}

	offers := make([]Offer, 0, len(side))
	for _, offer := range side {
		offers = append(offers, offer)
	}

	sort.Slice(offers, func(i, j int) bool {
		return better(offers[i], offers[j])
	})

	if len(offers) > n {
		offers = offers[:n]
	}

	quantities := make([]decimal.Decimal, len(offers))
	for i, offer := range offers {
		quantities[i] = offer.Quantity
	}

	return quantities
}

// Depth reports the number of populated bid and ask levels.
func (ob *OrderBook) Depth() (bids int, asks int) {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	return len(ob.bids), len(ob.asks)
}
