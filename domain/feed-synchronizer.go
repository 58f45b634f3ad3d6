package domain

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gammazero/deque"
	"github.com/jpillora/backoff"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ErrStreamClosed signals that the upstream diff subscription went away
// (transport fault). The synchronizer reacts with a full restart.
var ErrStreamClosed = errors.New("depth stream closed")

const (
	DefaultSnapshotLimit   = 20
	DefaultSnapshotTimeout = 5 * time.Second
	DefaultBackoffCap      = 5 * time.Second
)

type FeedSynchronizerOpts struct {
	SnapshotLimit   int
	SnapshotTimeout time.Duration
	Backoff         *backoff.Backoff
	// OnResync is called once per restart, before the backoff wait.
	OnResync func()
}

// FeedSynchronizer keeps one symbol's depth feed anchored to a REST snapshot
// and emits an infinite stream of validated updates.
//
// One attempt: open the diff subscription, buffer incoming events while the
// snapshot request is in flight, emit the snapshot as the first update, then
// drain the buffer and the live stream through the continuity validator.
// A transport fault, a snapshot timeout, or a stream integrity fault ends the
// attempt; Run waits out the backoff and starts over with a fresh snapshot.
// The update channel closes only when ctx is cancelled.
type FeedSynchronizer struct {
	symbol    string
	streamAPI DepthStreamAPI
	syncAPI   SyncAPI

	snapshotLimit   int
	snapshotTimeout time.Duration
	backoff         *backoff.Backoff
	onResync        func()

	out    chan *OrderBookUpdate
	logger zerolog.Logger

	mu   sync.Mutex
	book *OrderBook
}

func NewFeedSynchronizer(symbol string, streamAPI DepthStreamAPI, syncAPI SyncAPI, opts FeedSynchronizerOpts) *FeedSynchronizer {
	if opts.SnapshotLimit <= 0 {
		opts.SnapshotLimit = DefaultSnapshotLimit
	}
	if opts.SnapshotTimeout <= 0 {
		opts.SnapshotTimeout = DefaultSnapshotTimeout
	}
	if opts.Backoff == nil {
		opts.Backoff = &backoff.Backoff{Min: time.Second, Max: DefaultBackoffCap, Factor: 2}
	}

	return &FeedSynchronizer{
		symbol:          symbol,
		streamAPI:       streamAPI,
		syncAPI:         syncAPI,
		snapshotLimit:   opts.SnapshotLimit,
		snapshotTimeout: opts.SnapshotTimeout,
		backoff:         opts.Backoff,
		onResync:        opts.OnResync,
		out:             make(chan *OrderBookUpdate),
		logger:          log.With().Str("component", "feed-synchronizer").Str("symbol", symbol).Logger(),
	}
}

// Updates is the stream of validated order book updates, snapshot first.
// It closes when the context passed to Run is cancelled.
func (s *FeedSynchronizer) Updates() <-chan *OrderBookUpdate {
	return s.out
}

// Book is the locally maintained order book of the current attempt, or nil
// before the first snapshot arrived.
func (s *FeedSynchronizer) Book() *OrderBook {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.book
}

// Run drives the synchronize-restart loop until ctx is cancelled.
func (s *FeedSynchronizer) Run(ctx context.Context) {
	defer close(s.out)

	for {
		err := s.attempt(ctx)
		if ctx.Err() != nil {
			return
		}

		delay := s.backoff.Duration()
		s.logger.Warn().Err(err).Dur("retry_in", delay).Msg("depth feed desynchronized, restarting from a fresh snapshot")
		if s.onResync != nil {
			s.onResync()
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

func (s *FeedSynchronizer) attempt(ctx context.Context) error {
	sub, err := s.streamAPI.DepthDiffStream(ctx, s.symbol)
	if err != nil {
		return fmt.Errorf("depth diff subscription: %w", err)
	}
	defer sub.Unsubscribe()

	queue := newDepthUpdateQueue()
	go func() {
		for event := range sub.Stream {
			queue.push(event)
		}
		queue.close()
	}()

	snapCtx, cancel := context.WithTimeout(ctx, s.snapshotTimeout)
	snapshot, err := s.syncAPI.OrderBookSnapshot(snapCtx, s.symbol, s.snapshotLimit)
	cancel()
	if err != nil {
		return fmt.Errorf("order book snapshot: %w", err)
	}

	s.mu.Lock()
	s.book = NewOrderBook()
	s.mu.Unlock()

	validator := NewDepthUpdateValidator(snapshot.LastUpdateID)

	first := NewOrderBookUpdate(snapshot.Bids, snapshot.Asks, snapshot.Raw)
	s.applyToBook(first)
	if err := s.emit(ctx, first); err != nil {
		return err
	}
	s.logger.Info().Int64("last_update_id", snapshot.LastUpdateID).Msg("anchored on fresh snapshot")

	for {
		event, err := queue.pop(ctx)
		if err != nil {
			return err
		}

		err = validator.Validate(event)
		if errors.Is(err, ErrUpdateOutdated) {
			continue
		}
		if err != nil {
			return fmt.Errorf("U=%d u=%d after lastUpdateId=%d: %w",
				event.FirstUpdateID, event.FinalUpdateID, snapshot.LastUpdateID, err)
		}

		update := NewOrderBookUpdate(event.Bids, event.Asks, event.Raw)
		s.applyToBook(update)
		if err := s.emit(ctx, update); err != nil {
			return err
		}

		// A validated event means the anchor is healthy again.
		s.backoff.Reset()
	}
}

func (s *FeedSynchronizer) emit(ctx context.Context, update *OrderBookUpdate) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case s.out <- update:
		return nil
	}
}

func (s *FeedSynchronizer) applyToBook(update *OrderBookUpdate) {
	bids, err := update.BidOffers()
	if err != nil {
		s.logger.Warn().Err(err).Msg("skipping malformed bid levels")
		return
	}
	asks, err := update.AskOffers()
	if err != nil {
		s.logger.Warn().Err(err).Msg("skipping malformed ask levels")
		return
	}

	s.mu.Lock()
	book := s.book
	s.mu.Unlock()
	book.Apply(bids, asks)
}

// depthUpdateQueue decouples the subscription read pump from the validation
// loop so diffs arriving during the snapshot fetch are retained, not dropped.
type depthUpdateQueue struct {
	mu     sync.Mutex
	events deque.Deque[*DepthUpdateEvent]
	closed bool
	notify chan struct{}
}

func newDepthUpdateQueue() *depthUpdateQueue {
	return &depthUpdateQueue{
		notify: make(chan struct{}, 1),
	}
}

func (q *depthUpdateQueue) push(event *DepthUpdateEvent) {
	q.mu.Lock()
	q.events.PushBack(event)
	q.mu.Unlock()
	q.wake()
}

func (q *depthUpdateQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.wake()
}

func (q *depthUpdateQueue) wake() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func (q *depthUpdateQueue) pop(ctx context.Context) (*DepthUpdateEvent, error) {
	for {
		q.mu.Lock()
		if q.events.Len() > 0 {
			event := q.events.PopFront()
			q.mu.Unlock()
			return event, nil
		}
		closed := q.closed
		q.mu.Unlock()

		if closed {
			return nil, ErrStreamClosed
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-q.notify:
		}
	}
}
