package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/spooky-finn/go-orderbook-relay/domain"
)

var logger = log.With().Str("component", "binance").Logger()

const DefaultRestEndpoint = "https://api.binance.com"

// SyncAPI fetches REST order book snapshots from the exchange.
type SyncAPI struct {
	endpoint string
	client   *http.Client
}

func NewSyncAPI(endpoint string, timeout time.Duration) *SyncAPI {
	if endpoint == "" {
		endpoint = DefaultRestEndpoint
	}

	return &SyncAPI{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

// OrderBookSnapshot requests GET /api/v3/depth for the symbol. The request is
// bounded by ctx and the client timeout, whichever fires first.
func (api *SyncAPI) OrderBookSnapshot(ctx context.Context, symbol string, limit int) (*domain.OrderBookSnapshot, error) {
	query := url.Values{}
	query.Set("symbol", symbol)
	query.Set("limit", strconv.Itoa(limit))
	uri := fmt.Sprintf("%s/api/v3/depth?%s", api.endpoint, query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, err
	}

	logger.Debug().Str("symbol", symbol).Msg("fetching initial order book")

	resp, err := api.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("depth snapshot request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("depth snapshot body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("depth snapshot for %s: unexpected status %d: %s", symbol, resp.StatusCode, body)
	}

	snapshot := &domain.OrderBookSnapshot{}
	if err := json.Unmarshal(body, snapshot); err != nil {
		return nil, fmt.Errorf("depth snapshot unmarshal: %w", err)
	}
	snapshot.Raw = body

	return snapshot, nil
}
