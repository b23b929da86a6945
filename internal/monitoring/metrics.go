package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	connectionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "broker_connections_total",
		Help: "Total connections accepted since startup.",
	})

	connectionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "broker_connections_active",
		Help: "Currently open connections.",
	})

	topicsKnown = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "broker_topics_known",
		Help: "Number of distinct topics the hierarchy index has ever seen.",
	})

	publishesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "broker_publishes_total",
		Help: "Total PUBLISH operations processed, by topic.",
	}, []string{"topic"})

	fanoutDeliveries = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "broker_fanout_deliveries",
		Help:    "Number of subscribers reached per PUBLISH.",
		Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100, 250},
	})

	subscriptionsActive = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "broker_subscriptions_active",
		Help: "Current subscriber count, by topic.",
	}, []string{"topic"})

	droppedDeliveries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "broker_dropped_deliveries_total",
		Help: "Deliveries dropped, by reason.",
	}, []string{"reason"})
)

func init() {
	prometheus.MustRegister(
		connectionsTotal,
		connectionsActive,
		topicsKnown,
		publishesTotal,
		fanoutDeliveries,
		subscriptionsActive,
		droppedDeliveries,
	)
}

// BrokerMetrics implements broker.Metrics by recording to the package's
// Prometheus collectors. It has no state of its own beyond what
// Prometheus already tracks, so the zero value is ready to use.
type BrokerMetrics struct{}

func (BrokerMetrics) ConnectionRegistered() {
	connectionsTotal.Inc()
	connectionsActive.Inc()
}

func (BrokerMetrics) ConnectionClosed() {
	connectionsActive.Dec()
}

func (BrokerMetrics) TopicDiscovered(total int) {
	topicsKnown.Set(float64(total))
}

func (BrokerMetrics) Published(topic string, fanout int) {
	publishesTotal.WithLabelValues(topic).Inc()
	fanoutDeliveries.Observe(float64(fanout))
}

func (BrokerMetrics) Subscribed(topic string, subscriberCount int) {
	subscriptionsActive.WithLabelValues(topic).Set(float64(subscriberCount))
}

func (BrokerMetrics) Cancelled(topic string, subscriberCount int) {
	subscriptionsActive.WithLabelValues(topic).Set(float64(subscriberCount))
}

func (BrokerMetrics) Dropped(reason string) {
	droppedDeliveries.WithLabelValues(reason).Inc()
}

// Handler returns an http.Handler serving /metrics (Prometheus) and
// /healthz (a trivial liveness check) — the two outer surfaces
// SPEC_FULL.md adds beyond the wire protocol itself.
func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	return mux
}
