package ledger

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RecordsWritten tracks records persisted to the sink
	RecordsWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tripcost_ledger_records_total",
			Help: "Total number of ledger records written",
		},
		[]string{"cache_hit"}, // "true", "false"
	)

	// RecordsDropped tracks records lost to a full queue or sink failure
	RecordsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tripcost_ledger_dropped_total",
			Help: "Total number of ledger records dropped",
		},
		[]string{"reason"}, // "queue_full", "sink_error", "closed"
	)

	// QueueDepth tracks records waiting to be written
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tripcost_ledger_queue_depth",
			Help: "Number of ledger records waiting to be written",
		},
	)
)
