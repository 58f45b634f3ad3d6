package binance

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncAPI_OrderBookSnapshot(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/depth", r.URL.Path)
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		assert.Equal(t, "20", r.URL.Query().Get("limit"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"lastUpdateId":123,"bids":[["10000","1"],["9900","2"]],"asks":[["10100","1.5"]]}`))
	}))
	defer server.Close()

	api := NewSyncAPI(server.URL, 5*time.Second)
	snapshot, err := api.OrderBookSnapshot(context.Background(), "BTCUSDT", 20)

	require.NoError(t, err)
	assert.Equal(t, int64(123), snapshot.LastUpdateID)
	assert.Equal(t, [][]string{{"10000", "1"}, {"9900", "2"}}, snapshot.Bids)
	assert.Equal(t, [][]string{{"10100", "1.5"}}, snapshot.Asks)
	assert.NotEmpty(t, snapshot.Raw)
}

func TestSyncAPI_NonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"code":-1121,"msg":"Invalid symbol."}`, http.StatusBadRequest)
	}))
	defer server.Close()

	api := NewSyncAPI(server.URL, 5*time.Second)
	_, err := api.OrderBookSnapshot(context.Background(), "NOPE", 20)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 400")
}

func TestSyncAPI_ContextCancellation(t *testing.T) {
	block := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer server.Close()
	defer close(block)

	api := NewSyncAPI(server.URL, 5*time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := api.OrderBookSnapshot(ctx, "BTCUSDT", 20)
	assert.Error(t, err)
}
