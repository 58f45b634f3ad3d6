package gateway

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/spooky-finn/go-orderbook-relay/domain"
	promclient "github.com/spooky-finn/go-orderbook-relay/infrastructure/prometheus"
)

// BookFrame is the outbound update frame: raw string-encoded levels of one
// snapshot or diff, not the aggregated local book.
type BookFrame struct {
	Bids [][]string `json:"bids"`
	Asks [][]string `json:"asks"`
}

type ErrorFrame struct {
	Error string `json:"error"`
}

// FeedFactory builds a FeedSynchronizer for a supported symbol.
type FeedFactory func(symbol string) *domain.FeedSynchronizer

// Gateway exposes the registration endpoint and the per-client order book
// stream.
type Gateway struct {
	sessions *SessionManager
	pairs    domain.TradingPairs
	newFeed  FeedFactory
	upgrader websocket.Upgrader
}

func NewGateway(sessions *SessionManager, pairs domain.TradingPairs, newFeed FeedFactory) *Gateway {
	return &Gateway{
		sessions: sessions,
		pairs:    pairs,
		newFeed:  newFeed,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (g *Gateway) RegisterRoutes(router *gin.Engine) {
	router.GET("/", g.handleRoot)
	router.POST("/register", g.handleRegister)
	router.GET("/ws/:client_id", g.handleStream)
}

func (g *Gateway) handleRoot(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}

func (g *Gateway) handleRegister(c *gin.Context) {
	c.JSON(http.StatusCreated, g.sessions.Register())
}

// handleStream owns one client connection: it reads symbol requests, answers
// unsupported ones with an error frame, and (re)starts the feed task for
// supported ones. Any fault here is confined to this client.
func (g *Gateway) handleStream(c *gin.Context) {
	clientID := c.Param("client_id")
	if _, err := uuid.Parse(clientID); err != nil {
		c.String(http.StatusBadRequest, "invalid client id")
		return
	}

	conn, err := g.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn().Err(err).Str("client_id", clientID).Msg("websocket upgrade failed")
		return
	}

	session, err := g.sessions.Attach(clientID, conn)
	if err != nil {
		_ = conn.Close()
		return
	}
	defer g.sessions.Disconnect(clientID)

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			logger.Info().Str("client_id", clientID).Msg("client connection closed")
			return
		}

		requested := string(msg)
		symbol := domain.SanitizeSymbol(requested)
		logger.Info().Str("client_id", clientID).Str("symbol", symbol).Msg("order book requested")

		if !g.pairs.Contains(symbol) {
			// The running subscription, if any, is left untouched.
			_ = session.Send(ErrorFrame{Error: fmt.Sprintf("Pair %s not found!", requested)})
			continue
		}

		if err := g.startFeed(session, symbol); err != nil {
			logger.Error().Err(err).Str("client_id", clientID).Str("symbol", symbol).Msg("failed to start order book feed")
			_ = session.Send(ErrorFrame{Error: "Internal server error"})
			return
		}
	}
}

// startFeed replaces the session's active task with a fresh synchronizer for
// symbol. SetTask guarantees the previous task has fully stopped before the
// new one is installed.
func (g *Gateway) startFeed(session *ClientSession, symbol string) error {
	feed := g.newFeed(symbol)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	task := &Task{Cancel: cancel, Done: done}

	if err := g.sessions.SetTask(session.ID, task); err != nil {
		cancel()
		close(done)
		return err
	}

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		promclient.OpenSubscriptionsGauge.Inc()
		defer promclient.OpenSubscriptionsGauge.Dec()
		feed.Run(ctx)
	}()

	go func() {
		defer wg.Done()
		sendFailed := false
		for update := range feed.Updates() {
			if sendFailed {
				continue
			}
			if err := session.Send(BookFrame{Bids: update.Bids, Asks: update.Asks}); err != nil {
				logger.Info().Err(err).Str("client_id", session.ID).Msg("stopping feed, client write failed")
				cancel()
				sendFailed = true
			}
		}
	}()

	go func() {
		wg.Wait()
		close(done)
	}()

	return nil
}
