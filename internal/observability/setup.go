package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

var (
	violationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moderation_violations_total",
			Help: "Total number of content-filter violations handled",
		},
		[]string{"type"},
	)

	mutesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moderation_mutes_total",
			Help: "Total number of escalation mutes issued",
		},
		[]string{"type"},
	)

	removalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moderation_removals_total",
			Help: "Total number of joiners removed at the gate",
		},
		[]string{"reason"},
	)

	jobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_jobs_total",
			Help: "Scheduled jobs processed, by type and outcome",
		},
		[]string{"type", "outcome"},
	)
)

func Init() {
	prometheus.MustRegister(violationsTotal, mutesTotal, removalsTotal, jobsTotal)

	go func() {
		http.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(":2112", nil); err != nil {
			log.WithError(err).Error("metrics server failed")
		}
	}()
}

func RecordViolation(violationType string) {
	violationsTotal.WithLabelValues(violationType).Inc()
}

func RecordMute(violationType string) {
	mutesTotal.WithLabelValues(violationType).Inc()
}

func RecordRemoval(reason string) {
	removalsTotal.WithLabelValues(reason).Inc()
}

func RecordJobOutcome(jobType, outcome string) {
	jobsTotal.WithLabelValues(jobType, outcome).Inc()
}
