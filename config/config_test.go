package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, ":8989", cfg.ListenAddr)
	assert.Equal(t, "https://api.binance.com", cfg.BinanceRestEndpoint)
	assert.Equal(t, 20, cfg.SnapshotLimit)
	assert.Equal(t, 5*time.Second, cfg.SnapshotTimeout)
	assert.NotEmpty(t, cfg.TradingPairs)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("LISTEN_ADDR", ":9000")
	t.Setenv("SNAPSHOT_LIMIT", "50")
	t.Setenv("RESYNC_BACKOFF", "2s")
	t.Setenv("TRADING_PAIRS", "btcusdt, ethusdt ,")

	cfg := Load()

	assert.Equal(t, ":9000", cfg.ListenAddr)
	assert.Equal(t, 50, cfg.SnapshotLimit)
	assert.Equal(t, 2*time.Second, cfg.BackoffCap)
	assert.Equal(t, []string{"btcusdt", "ethusdt"}, cfg.TradingPairs)
}
