package binance

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spooky-finn/go-orderbook-relay/domain"
)

func startDepthServer(t *testing.T, frames []string) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		// Drain inbound control frames so client pings get answered.
		go func() {
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for _, frame := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}))
}

func wsEndpoint(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func receiveEvent(t *testing.T, sub *domain.Subscription[*domain.DepthUpdateEvent]) *domain.DepthUpdateEvent {
	t.Helper()
	select {
	case event, ok := <-sub.Stream:
		require.True(t, ok, "stream closed unexpectedly")
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a depth event")
		return nil
	}
}

func TestStreamAPI_ParsesDepthUpdates(t *testing.T) {
	server := startDepthServer(t, []string{
		`not json at all`,
		`{"e":"trade","s":"BTCUSDT"}`,
		`{"e":"depthUpdate","E":1,"s":"BTCUSDT","U":101,"u":110,"b":[["10000","1"]],"a":[["10100","0"]]}`,
	})
	defer server.Close()

	api := NewStreamAPI(wsEndpoint(server))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub, err := api.DepthDiffStream(ctx, "BTCUSDT")
	require.NoError(t, err)
	defer sub.Unsubscribe()

	assert.Equal(t, "btcusdt@depth", sub.Topic)

	// Invalid JSON and the trade event are skipped; only the depthUpdate
	// arrives.
	event := receiveEvent(t, sub)
	assert.Equal(t, int64(101), event.FirstUpdateID)
	assert.Equal(t, int64(110), event.FinalUpdateID)
	assert.Equal(t, [][]string{{"10000", "1"}}, event.Bids)
	assert.Equal(t, [][]string{{"10100", "0"}}, event.Asks)
	assert.NotEmpty(t, event.Raw)
}

func TestStreamAPI_StreamClosesOnTransportFault(t *testing.T) {
	server := startDepthServer(t, []string{
		`{"e":"depthUpdate","U":1,"u":2,"b":[],"a":[]}`,
	})

	api := NewStreamAPI(wsEndpoint(server))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub, err := api.DepthDiffStream(ctx, "BTCUSDT")
	require.NoError(t, err)

	receiveEvent(t, sub)
	server.Close() // drop the upstream connection

	select {
	case _, ok := <-sub.Stream:
		assert.False(t, ok, "stream should close when the transport drops")
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not close after transport fault")
	}
}

func TestStreamAPI_CancellationClosesStream(t *testing.T) {
	server := startDepthServer(t, []string{
		`{"e":"depthUpdate","U":1,"u":2,"b":[],"a":[]}`,
	})
	defer server.Close()

	api := NewStreamAPI(wsEndpoint(server))
	ctx, cancel := context.WithCancel(context.Background())

	sub, err := api.DepthDiffStream(ctx, "BTCUSDT")
	require.NoError(t, err)

	receiveEvent(t, sub)
	cancel()

	select {
	case _, ok := <-sub.Stream:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not close after cancellation")
	}
}

func TestStreamAPI_DialFailure(t *testing.T) {
	api := NewStreamAPI("ws://127.0.0.1:1")

	_, err := api.DepthDiffStream(context.Background(), "BTCUSDT")
	assert.Error(t, err)
}
