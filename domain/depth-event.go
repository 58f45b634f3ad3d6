package domain

import "encoding/json"

// DepthUpdateEvent is one parsed "depthUpdate" frame from the exchange diff
// stream. FirstUpdateID/FinalUpdateID are the U/u sequence bounds the
// continuity protocol is anchored on.
type DepthUpdateEvent struct {
	Event         string          `json:"e"`
	EventTime     int64           `json:"E"`
	Symbol        string          `json:"s"`
	FirstUpdateID int64           `json:"U"`
	FinalUpdateID int64           `json:"u"`
	Bids          [][]string      `json:"b"`
	Asks          [][]string      `json:"a"`
	Raw           json.RawMessage `json:"-"`
}

// OrderBookSnapshot is the REST depth snapshot a synchronization attempt is
// anchored on. Everything up to and including LastUpdateID is contained in it.
type OrderBookSnapshot struct {
	LastUpdateID int64           `json:"lastUpdateId"`
	Bids         [][]string      `json:"bids"`
	Asks         [][]string      `json:"asks"`
	Raw          json.RawMessage `json:"-"`
}

// OrderBookUpdate is the unit emitted to consumers: the raw string-encoded
// levels of one snapshot or one validated diff. Prices and quantities keep
// their exact wire encoding; decoding to decimals is on demand.
type OrderBookUpdate struct {
	Bids [][]string
	Asks [][]string
	Raw  json.RawMessage
}

func NewOrderBookUpdate(bids, asks [][]string, raw json.RawMessage) *OrderBookUpdate {
	return &OrderBookUpdate{Bids: bids, Asks: asks, Raw: raw}
}

// BidOffers decodes the bid levels into exact-decimal offers.
func (u *OrderBookUpdate) BidOffers() ([]Offer, error) {
	return DecodeOffers(u.Bids)
}

// AskOffers decodes the ask levels into exact-decimal offers.
func (u *OrderBookUpdate) AskOffers() ([]Offer, error) {
	return DecodeOffers(u.Asks)
}
