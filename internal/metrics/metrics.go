package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ConsistencyChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "landsales_consistency_checks_total",
		Help: "Consistency checks by outcome (consistent, inconsistent, not_found).",
	},
		[]string{"outcome"},
	)

	PieceFixesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "landsales_piece_fixes_total",
		Help: "Auto-fix attempts by recommended action and result.",
	},
		[]string{"action", "result"},
	)

	StaleSalesCancelledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "landsales_stale_sales_cancelled_total",
		Help: "Total number of pending sales cancelled for staleness.",
	})

	ClaimsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "landsales_claims_total",
		Help: "Claim attempts by result (claimed, rejected, error).",
	},
		[]string{"result"},
	)

	SweepDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "landsales_sweep_duration_seconds",
		Help:    "Duration of global stale-sale sweeps.",
		Buckets: prometheus.DefBuckets,
	})

	OperationErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "landsales_operation_errors_total",
		Help: "Total number of errors encountered during specific operations.",
	},
		[]string{"operation"},
	)

	OperationLocksHeld = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "landsales_operation_locks_held",
		Help: "Current number of pieces locked by in-flight operations.",
	})

	OutboxDeliveredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "landsales_outbox_delivered_total",
		Help: "Total number of outbox tasks delivered to Kafka.",
	})
)
