package domain

import "context"

// Subscription is a live stream of messages for one topic. The channel closes
// when the underlying transport fails or Unsubscribe is called.
type Subscription[T any] struct {
	Stream      <-chan T
	Topic       string
	Unsubscribe func()
}

// DepthStreamAPI opens the exchange's incremental depth-diff channel for a
// symbol.
type DepthStreamAPI interface {
	DepthDiffStream(ctx context.Context, symbol string) (*Subscription[*DepthUpdateEvent], error)
}

// SyncAPI fetches the REST order book snapshot a diff stream gets anchored on.
type SyncAPI interface {
	OrderBookSnapshot(ctx context.Context, symbol string, limit int) (*OrderBookSnapshot, error)
}
