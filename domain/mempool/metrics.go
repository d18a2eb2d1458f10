package mempool

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	prometheusMempoolSize     prometheus.Gauge
	prometheusMempoolOrphans  prometheus.Gauge
	prometheusMempoolRejected *prometheus.CounterVec
)

var (
	prometheusMetricsInitOnce sync.Once
)

func initPrometheusMetrics() {
	prometheusMetricsInitOnce.Do(_initPrometheusMetrics)
}

func _initPrometheusMetrics() {
	prometheusMempoolSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "mempool",
			Name:      "transactions",
			Help:      "Number of transactions in the main pool",
		},
	)

	prometheusMempoolOrphans = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "mempool",
			Name:      "orphan_transactions",
			Help:      "Number of transactions in the orphan pool",
		},
	)

	prometheusMempoolRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mempool",
			Name:      "rejected_transactions",
			Help:      "Number of transactions rejected by reject code",
		},
		[]string{"code"},
	)
}
