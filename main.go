package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/jpillora/backoff"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/spooky-finn/go-orderbook-relay/binance"
	"github.com/spooky-finn/go-orderbook-relay/config"
	"github.com/spooky-finn/go-orderbook-relay/domain"
	"github.com/spooky-finn/go-orderbook-relay/gateway"
	promclient "github.com/spooky-finn/go-orderbook-relay/infrastructure/prometheus"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if config.DebugMode {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	syncAPI := binance.NewSyncAPI(cfg.BinanceRestEndpoint, cfg.SnapshotTimeout)
	streamAPI := binance.NewStreamAPI(cfg.BinanceWsEndpoint)

	newFeed := func(symbol string) *domain.FeedSynchronizer {
		return domain.NewFeedSynchronizer(symbol, streamAPI, syncAPI, domain.FeedSynchronizerOpts{
			SnapshotLimit:   cfg.SnapshotLimit,
			SnapshotTimeout: cfg.SnapshotTimeout,
			Backoff:         &backoff.Backoff{Min: time.Second, Max: cfg.BackoffCap, Factor: 2},
			OnResync:        promclient.ResyncCounter.Inc,
		})
	}

	sessions := gateway.NewSessionManager()
	gw := gateway.NewGateway(sessions, domain.NewTradingPairs(cfg.TradingPairs), newFeed)

	router := gin.New()
	router.Use(gin.Recovery())
	gw.RegisterRoutes(router)

	go promclient.StartPromClientServer(cfg.MetricsAddr)

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 2 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Msg("order book relay listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown")
	}
}
