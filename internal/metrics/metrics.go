// Package metrics exposes Prometheus collectors for the pipeline.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	scrapeCyclesTotal       *prometheus.CounterVec
	postsScannedTotal       *prometheus.CounterVec
	matchesCreatedTotal     *prometheus.CounterVec
	duplicatesSkippedTotal  *prometheus.CounterVec
	notificationsTotal      *prometheus.CounterVec
	jobBusyRejectionsTotal  *prometheus.CounterVec
	jobDisabled             *prometheus.GaugeVec
	notifyCycleMatchesTotal prometheus.Counter

	once sync.Once
)

// Init initializes the Prometheus collectors. Safe to call multiple times.
func Init() {
	once.Do(func() {
		scrapeCyclesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leadwatch_scrape_cycles_total",
				Help: "Total scrape cycles, labeled by source type and outcome.",
			},
			[]string{"source_type", "status"},
		)

		postsScannedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leadwatch_posts_scanned_total",
				Help: "Total candidate posts returned by connectors.",
			},
			[]string{"source_type"},
		)

		matchesCreatedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leadwatch_matches_created_total",
				Help: "Total new matches persisted.",
			},
			[]string{"source_type"},
		)

		duplicatesSkippedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leadwatch_duplicates_skipped_total",
				Help: "Total posts skipped because an equivalent match existed.",
			},
			[]string{"source_type"},
		)

		notificationsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leadwatch_notifications_total",
				Help: "Total channel delivery attempts, labeled by channel and outcome.",
			},
			[]string{"channel", "status"},
		)

		jobBusyRejectionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leadwatch_job_busy_rejections_total",
				Help: "Total triggers rejected because the job was already running.",
			},
			[]string{"job"},
		)

		jobDisabled = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "leadwatch_job_disabled",
				Help: "1 when a job is disabled pending operator intervention.",
			},
			[]string{"job"},
		)

		notifyCycleMatchesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "leadwatch_notify_cycle_matches_total",
				Help: "Total matches examined by notify cycles.",
			},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveScrapeCycle records the outcome of one scrape cycle.
func ObserveScrapeCycle(sourceType, status string) {
	if scrapeCyclesTotal == nil {
		return
	}
	scrapeCyclesTotal.WithLabelValues(sourceType, status).Inc()
}

// AddPostsScanned records candidate posts returned by a connector.
func AddPostsScanned(sourceType string, n int) {
	if postsScannedTotal == nil || n <= 0 {
		return
	}
	postsScannedTotal.WithLabelValues(sourceType).Add(float64(n))
}

// IncMatchCreated records a newly persisted match.
func IncMatchCreated(sourceType string) {
	if matchesCreatedTotal == nil {
		return
	}
	matchesCreatedTotal.WithLabelValues(sourceType).Inc()
}

// IncDuplicateSkipped records a benign duplicate skip.
func IncDuplicateSkipped(sourceType string) {
	if duplicatesSkippedTotal == nil {
		return
	}
	duplicatesSkippedTotal.WithLabelValues(sourceType).Inc()
}

// ObserveNotification records one channel delivery attempt.
func ObserveNotification(channel, status string) {
	if notificationsTotal == nil {
		return
	}
	notificationsTotal.WithLabelValues(channel, status).Inc()
}

// IncJobBusy records a trigger rejected by the per-job mutual exclusion.
func IncJobBusy(job string) {
	if jobBusyRejectionsTotal == nil {
		return
	}
	jobBusyRejectionsTotal.WithLabelValues(job).Inc()
}

// SetJobDisabled flags a job as disabled (or re-enabled).
func SetJobDisabled(job string, disabled bool) {
	if jobDisabled == nil {
		return
	}
	v := 0.0
	if disabled {
		v = 1.0
	}
	jobDisabled.WithLabelValues(job).Set(v)
}

// AddNotifyCycleMatches records matches examined by a notify cycle.
func AddNotifyCycleMatches(n int) {
	if notifyCycleMatchesTotal == nil || n <= 0 {
		return
	}
	notifyCycleMatchesTotal.Add(float64(n))
}
