package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/spooky-finn/go-orderbook-relay/domain"
)

const (
	DefaultWebsocketEndpoint = "wss://stream.binance.com:9443"

	// Short keepalive so a silently dead link is noticed within seconds;
	// stale market data is worse than a spurious reconnect.
	pingInterval = 1 * time.Second
	pongTimeout  = 5 * time.Second

	depthUpdateEventType = "depthUpdate"
)

// StreamAPI opens per-symbol depth diff subscriptions over websocket.
type StreamAPI struct {
	endpoint string
	dialer   *websocket.Dialer
}

func NewStreamAPI(endpoint string) *StreamAPI {
	if endpoint == "" {
		endpoint = DefaultWebsocketEndpoint
	}

	return &StreamAPI{
		endpoint: endpoint,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 5 * time.Second,
		},
	}
}

// DepthDiffStream dials <endpoint>/ws/<sym>@depth and pumps parsed depthUpdate
// events into the returned subscription. The stream channel closes on any
// transport fault; whoever consumes it owns reconnection. Non-depthUpdate
// frames and invalid JSON are logged and skipped.
func (s *StreamAPI) DepthDiffStream(ctx context.Context, symbol string) (*domain.Subscription[*domain.DepthUpdateEvent], error) {
	topic := fmt.Sprintf("%s@depth", strings.ToLower(symbol))
	uri := fmt.Sprintf("%s/ws/%s", s.endpoint, topic)

	conn, _, err := s.dialer.DialContext(ctx, uri, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", uri, err)
	}

	logger.Info().Str("topic", topic).Msg("subscribed to depth diff stream")

	stream := make(chan *domain.DepthUpdateEvent)
	var closeOnce sync.Once
	closeConn := func() {
		closeOnce.Do(func() { _ = conn.Close() })
	}

	// Closing the connection on ctx cancellation unblocks the read pump.
	stopWatch := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			closeConn()
		case <-stopWatch:
		}
	}()

	_ = conn.SetReadDeadline(time.Now().Add(pongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})
	go s.keepAlive(conn, stopWatch)

	go func() {
		defer close(stream)
		defer close(stopWatch)
		defer closeConn()

		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() == nil {
					logger.Warn().Err(err).Str("topic", topic).Msg("depth stream read failed")
				}
				return
			}

			// Any inbound frame proves the link is alive.
			_ = conn.SetReadDeadline(time.Now().Add(pongTimeout))

			event, ok := parseDepthUpdate(msg)
			if !ok {
				continue
			}

			select {
			case <-ctx.Done():
				return
			case stream <- event:
			}
		}
	}()

	return &domain.Subscription[*domain.DepthUpdateEvent]{
		Stream:      stream,
		Topic:       topic,
		Unsubscribe: closeConn,
	}, nil
}

func (s *StreamAPI) keepAlive(conn *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(pongTimeout)); err != nil {
				return
			}
		}
	}
}

func parseDepthUpdate(msg []byte) (*domain.DepthUpdateEvent, bool) {
	event := &domain.DepthUpdateEvent{}
	if err := json.Unmarshal(msg, event); err != nil {
		logger.Warn().Err(err).Msg("received invalid JSON on depth stream")
		return nil, false
	}

	if event.Event != depthUpdateEventType {
		logger.Debug().Str("event", event.Event).Msg("skipping non-depthUpdate message")
		return nil, false
	}

	event.Raw = msg
	return event, true
}
