package telemetry

import (
	"context"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Metrics is the indexer's Prometheus surface: one registry shared by
// every extractor runtime and the Query Surface, grounded on the
// teacher's HealthLogger registry + gauge set, retargeted from node
// health (block height, peer count) to extraction health (cursor
// position, apply latency, API traffic).
type Metrics struct {
	log      *logrus.Logger
	registry *prometheus.Registry

	cursorBlock    *prometheus.GaugeVec
	blocksApplied  *prometheus.CounterVec
	revertsApplied *prometheus.CounterVec
	applyDuration  *prometheus.HistogramVec
	subscriberGauge *prometheus.GaugeVec
	apiRequests    *prometheus.CounterVec
	apiDuration    *prometheus.HistogramVec
}

// New constructs a Metrics with every series registered against a fresh
// registry so tests and a running process never share global state.
func New(log *logrus.Logger) *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		log:      log,
		registry: reg,
		cursorBlock: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "indexer_extractor_cursor_block",
			Help: "Block number of the last cursor an extractor committed",
		}, []string{"extractor", "chain"}),
		blocksApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "indexer_extractor_blocks_applied_total",
			Help: "Total blocks applied by an extractor, excluding empty cursor-only advances",
		}, []string{"extractor", "chain"}),
		revertsApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "indexer_extractor_reverts_applied_total",
			Help: "Total undo/revert messages applied by an extractor",
		}, []string{"extractor", "chain"}),
		applyDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "indexer_extractor_apply_duration_seconds",
			Help:    "Time spent applying one block's changes through the store",
			Buckets: prometheus.DefBuckets,
		}, []string{"extractor", "chain"}),
		subscriberGauge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "indexer_fanout_subscribers",
			Help: "Current subscriber count per extractor's fan-out hub",
		}, []string{"extractor", "chain"}),
		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "indexer_api_requests_total",
			Help: "Total Query Surface requests by route and status class",
		}, []string{"route", "status"}),
		apiDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "indexer_api_request_duration_seconds",
			Help:    "Query Surface request latency by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}

	reg.MustRegister(
		m.cursorBlock,
		m.blocksApplied,
		m.revertsApplied,
		m.applyDuration,
		m.subscriberGauge,
		m.apiRequests,
		m.apiDuration,
	)
	return m
}

func (m *Metrics) ObserveApply(extractor, chain string, blockNumber uint64, seconds float64) {
	m.cursorBlock.WithLabelValues(extractor, chain).Set(float64(blockNumber))
	m.blocksApplied.WithLabelValues(extractor, chain).Inc()
	m.applyDuration.WithLabelValues(extractor, chain).Observe(seconds)
}

func (m *Metrics) ObserveRevert(extractor, chain string, blockNumber uint64) {
	m.cursorBlock.WithLabelValues(extractor, chain).Set(float64(blockNumber))
	m.revertsApplied.WithLabelValues(extractor, chain).Inc()
}

func (m *Metrics) SetSubscribers(extractor, chain string, n int) {
	m.subscriberGauge.WithLabelValues(extractor, chain).Set(float64(n))
}

func (m *Metrics) ObserveAPIRequest(route, statusClass string, seconds float64) {
	m.apiRequests.WithLabelValues(route, statusClass).Inc()
	m.apiDuration.WithLabelValues(route).Observe(seconds)
}

// Serve exposes the registry on addr's /metrics endpoint, mirroring the
// teacher's StartMetricsServer/ShutdownMetricsServer split so the caller
// owns the http.Server's lifecycle.
func (m *Metrics) Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.log.WithError(err).Error("metrics server stopped")
		}
	}()
	return srv
}

func (m *Metrics) Shutdown(ctx context.Context, srv *http.Server) error {
	return srv.Shutdown(ctx)
}
