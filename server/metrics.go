package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	backfillRecordsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payroll_sync_backfill_records_total",
		Help: "Total number of records admitted from historical backfill",
	})

	liveRecordsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payroll_sync_live_records_total",
		Help: "Total number of live records admitted to the timeline",
	}, []string{"kind"})

	duplicatesSuppressedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payroll_sync_duplicates_suppressed_total",
		Help: "Total number of re-delivered or stale records dropped by the store",
	})

	archiveErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payroll_sync_archive_errors_total",
		Help: "Total number of failed timeline archive flushes",
	})

	settlementBatchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payroll_sync_settlement_batches_total",
		Help: "Total number of settlement batches by terminal status",
	}, []string{"status"})

	settlementWaitHistogram = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "payroll_sync_settlement_wait_seconds",
		Help:    "Time from settlement submission to confirmation or failure",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
	})

	timelineLengthGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "payroll_sync_timeline_length",
		Help: "Current reconciled timeline length",
	})
)

// ObserveBackfill records a completed backfill of n records.
func ObserveBackfill(n int) {
	backfillRecordsTotal.Add(float64(n))
	timelineLengthGauge.Add(float64(n))
}

// ObserveLiveRecord records one admitted live record.
func ObserveLiveRecord(kind string) {
	liveRecordsTotal.WithLabelValues(kind).Inc()
	timelineLengthGauge.Inc()
}

// ObserveDuplicate records one suppressed duplicate or stale record.
func ObserveDuplicate() {
	duplicatesSuppressedTotal.Inc()
}

// ObserveArchiveError records one failed archive flush.
func ObserveArchiveError() {
	archiveErrorsTotal.Inc()
}

// ObserveSettlement records one settled batch reaching a terminal status.
func ObserveSettlement(status string, waitSeconds float64) {
	settlementBatchesTotal.WithLabelValues(status).Inc()
	settlementWaitHistogram.Observe(waitSeconds)
}
