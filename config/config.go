package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

var DebugMode = os.Getenv("DEBUG") == "true"

// defaultTradingPairs is the fixed allow-list of supported symbols. A
// deployment overrides it through TRADING_PAIRS.
var defaultTradingPairs = []string{
	"BTCUSDT",
	"BTCUSDC",
	"ETHUSDT",
	"ETHUSDC",
	"ETHBTC",
	"SOLUSDT",
	"XRPUSDT",
	"BNBUSDT",
}

type Config struct {
	ListenAddr  string
	MetricsAddr string

	BinanceRestEndpoint string
	BinanceWsEndpoint   string

	SnapshotLimit   int
	SnapshotTimeout time.Duration
	BackoffCap      time.Duration

	TradingPairs []string
}

// Load reads the configuration from the environment, with defaults for every
// value. The trading pair allow-list is the only piece of the core that is
// environment-driven.
func Load() *Config {
	return &Config{
		ListenAddr:          getEnv("LISTEN_ADDR", ":8989"),
		MetricsAddr:         getEnv("METRICS_ADDR", ":8080"),
		BinanceRestEndpoint: getEnv("BINANCE_REST_ENDPOINT", "https://api.binance.com"),
		BinanceWsEndpoint:   getEnv("BINANCE_WS_ENDPOINT", "wss://stream.binance.com:9443"),
		SnapshotLimit:       getEnvInt("SNAPSHOT_LIMIT", 20),
		SnapshotTimeout:     getEnvDuration("SNAPSHOT_TIMEOUT", 5*time.Second),
		BackoffCap:          getEnvDuration("RESYNC_BACKOFF", 5*time.Second),
		TradingPairs:        getEnvList("TRADING_PAIRS", defaultTradingPairs),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getEnvList(key string, fallback []string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}

	items := []string{}
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}

	if len(items) == 0 {
		return fallback
	}
	return items
}
