package promclient

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

var ConnectedClientsGauge = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "orderbook_relay_connected_clients",
		Help: "number of clients with an attached streaming connection",
	},
)

var OpenSubscriptionsGauge = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "orderbook_relay_open_subscriptions",
		Help: "number of running depth feed synchronizers",
	},
)

var ResyncCounter = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "orderbook_relay_resync_total",
		Help: "depth feed restarts caused by transport or stream integrity faults",
	},
)

func StartPromClientServer(addr string) {
	reg := prometheus.NewRegistry()
	promHandler := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})

	reg.MustRegister(ConnectedClientsGauge)
	reg.MustRegister(OpenSubscriptionsGauge)
	reg.MustRegister(ResyncCounter)
	reg.MustRegister(collectors.NewGoCollector())

	mux := http.NewServeMux()
	mux.Handle("/metrics", promHandler)
	log.Info().Str("addr", addr).Msg("prometheus server listening")

	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatal().Err(err).Msg("failed to serve metrics")
	}
}
