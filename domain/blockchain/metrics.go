package blockchain

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	prometheusChainBestHeight        prometheus.Gauge
	prometheusChainWorkBits          prometheus.Gauge
	prometheusChainBlocksConnected   prometheus.Counter
	prometheusChainBlocksDisconnect  prometheus.Counter
	prometheusChainReorgs            prometheus.Counter
	prometheusChainReorgDepth        prometheus.Histogram
	prometheusChainRejectedBlocks    *prometheus.CounterVec
	prometheusChainOrphanBlocks      prometheus.Gauge
	prometheusChainHalted            prometheus.Gauge
	prometheusChainProcessBlockMicro prometheus.Histogram
)

var (
	prometheusMetricsInitOnce sync.Once
)

func initPrometheusMetrics() {
	prometheusMetricsInitOnce.Do(_initPrometheusMetrics)
}

func _initPrometheusMetrics() {
	prometheusChainBestHeight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "blockchain",
			Name:      "best_height",
			Help:      "Height of the best chain tip",
		},
	)

	prometheusChainWorkBits = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "blockchain",
			Name:      "cumulative_work_bits",
			Help:      "Bit length of the cumulative work of the best chain",
		},
	)

	prometheusChainBlocksConnected = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "blockchain",
			Name:      "blocks_connected",
			Help:      "Number of blocks connected to the main chain",
		},
	)

	prometheusChainBlocksDisconnect = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "blockchain",
			Name:      "blocks_disconnected",
			Help:      "Number of blocks disconnected from the main chain",
		},
	)

	prometheusChainReorgs = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "blockchain",
			Name:      "reorganizations",
			Help:      "Number of chain switches that disconnected at least one block",
		},
	)

	prometheusChainReorgDepth = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "blockchain",
			Name:      "reorganization_depth",
			Help:      "Number of blocks disconnected by a chain switch",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 8),
		},
	)

	prometheusChainRejectedBlocks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "blockchain",
			Name:      "rejected_blocks",
			Help:      "Number of rejected blocks by rule error code",
		},
		[]string{"code"},
	)

	prometheusChainOrphanBlocks = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "blockchain",
			Name:      "orphan_blocks",
			Help:      "Number of blocks held in the orphan pool",
		},
	)

	prometheusChainHalted = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "blockchain",
			Name:      "halted",
			Help:      "Set to 1 once the chain halted after a failed restore",
		},
	)

	prometheusChainProcessBlockMicro = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "blockchain",
			Name:      "process_block_micros",
			Help:      "Duration of ProcessBlock in microseconds",
			Buckets:   prometheus.ExponentialBuckets(100, 4, 10),
		},
	)
}
