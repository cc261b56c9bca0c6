package metrics

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	scraperItemsTotal        *prometheus.CounterVec
	scraperOperationsTotal   *prometheus.CounterVec
	scraperOperationSeconds  *prometheus.HistogramVec
	scraperWebhookDeliveries *prometheus.CounterVec
	registerCollectorsOnce   sync.Once
	collectorsEnabled        atomic.Bool
)

// Init registers the Prometheus collectors. It is safe to call multiple times.
func Init() {
	registerCollectorsOnce.Do(func() {
		scraperItemsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_items_total",
				Help: "Total number of listing pages processed, labeled by outcome.",
			},
			[]string{"outcome"},
		)
		scraperOperationsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_operations_total",
				Help: "Total operation attempts, labeled by operation and outcome.",
			},
			[]string{"operation", "outcome"},
		)
		scraperOperationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scraper_operation_duration_seconds",
				Help:    "Histogram of operation attempt latencies.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"operation"},
		)
		scraperWebhookDeliveries = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_webhook_deliveries_total",
				Help: "Total webhook delivery attempts, labeled by outcome.",
			},
			[]string{"outcome"},
		)
		collectorsEnabled.Store(true)
	})
}

// Handler returns an http.Handler exposing the Prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

func observeItem(outcome string) {
	if !collectorsEnabled.Load() {
		return
	}
	scraperItemsTotal.WithLabelValues(outcome).Inc()
}

func observeOperation(name string, elapsed time.Duration, failed bool) {
	if !collectorsEnabled.Load() {
		return
	}
	outcome := "success"
	if failed {
		outcome = "failure"
	}
	scraperOperationsTotal.WithLabelValues(name, outcome).Inc()
	scraperOperationSeconds.WithLabelValues(name).Observe(elapsed.Seconds())
}

// ObserveWebhookDelivery counts one webhook attempt outcome.
func ObserveWebhookDelivery(outcome string) {
	if !collectorsEnabled.Load() {
		return
	}
	scraperWebhookDeliveries.WithLabelValues(outcome).Inc()
}
