package scan

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// combinationsProcessed counts scanned combinations per analysis
	combinationsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lottoscan_combinations_processed_total",
		Help: "Combinations scored by this process",
	}, []string{"analysis"})

	// checkpointsTotal counts checkpoints by result (ok, failed)
	checkpointsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lottoscan_checkpoints_total",
		Help: "Checkpoint attempts by result",
	}, []string{"analysis", "result"})

	// checkpointDuration tracks read-merge-write latency
	checkpointDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lottoscan_checkpoint_duration_seconds",
		Help:    "Checkpoint duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
	}, []string{"analysis"})

	// rankSize reports the number of ranked entries
	rankSize = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "lottoscan_rank_size",
		Help: "Entries currently held in the rank",
	}, []string{"analysis"})

	// blocksRemaining reports incomplete blocks after the last checkpoint
	blocksRemaining = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "lottoscan_blocks_remaining",
		Help: "Incomplete blocks of the shared partition",
	}, []string{"analysis"})

	// scanDegraded is 1 while checkpoints are failing
	scanDegraded = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "lottoscan_scan_degraded",
		Help: "1 when the most recent checkpoint failed",
	}, []string{"analysis"})
)

// metrics binds the collectors to one analysis.
type metrics struct {
	processed       prometheus.Counter
	checkpointsOK   prometheus.Counter
	checkpointsFail prometheus.Counter
	duration        prometheus.Observer
	rank            prometheus.Gauge
	remaining       prometheus.Gauge
	degraded        prometheus.Gauge
}

func newMetrics(analysis string) *metrics {
	return &metrics{
		processed:       combinationsProcessed.WithLabelValues(analysis),
		checkpointsOK:   checkpointsTotal.WithLabelValues(analysis, "ok"),
		checkpointsFail: checkpointsTotal.WithLabelValues(analysis, "failed"),
		duration:        checkpointDuration.WithLabelValues(analysis),
		rank:            rankSize.WithLabelValues(analysis),
		remaining:       blocksRemaining.WithLabelValues(analysis),
		degraded:        scanDegraded.WithLabelValues(analysis),
	}
}
