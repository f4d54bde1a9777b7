package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	remindersAnnounced = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medreminder_reminders_announced_total",
			Help: "Total number of reminder announcements by phase",
		},
		[]string{"phase"},
	)

	reminderActions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medreminder_reminder_actions_total",
			Help: "Total number of take/snooze/dismiss actions by outcome",
		},
		[]string{"action", "result"},
	)

	detectorTickFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "medreminder_detector_tick_failures_total",
			Help: "Total number of detector ticks skipped because the schedule fetch failed",
		},
	)

	smsDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medreminder_sms_deliveries_total",
			Help: "Total number of escalation SMS attempts by path and status",
		},
		[]string{"path", "status"},
	)

	sweepRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medreminder_sweep_runs_total",
			Help: "Total number of threshold sweeps by result",
		},
		[]string{"result"},
	)

	activeSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "medreminder_active_sessions",
			Help: "Number of running reminder sessions",
		},
	)
)

// Handler returns the Prometheus metrics handler
func Handler() http.Handler {
	return promhttp.Handler()
}

func RecordAnnouncement(phase string) {
	remindersAnnounced.WithLabelValues(phase).Inc()
}

func RecordAction(action string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	reminderActions.WithLabelValues(action, result).Inc()
}

func RecordTickFailure() {
	detectorTickFailures.Inc()
}

func RecordSMS(path, status string) {
	smsDeliveries.WithLabelValues(path, status).Inc()
}

func RecordSweep(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	sweepRuns.WithLabelValues(result).Inc()
}

func SessionOpened() {
	activeSessions.Inc()
}

func SessionClosed() {
	activeSessions.Dec()
}
