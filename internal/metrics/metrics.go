package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/notifyhub/hermes-dispatch/internal/domain"
)

// Metrics groups all Prometheus instruments used across the application.
// Registered once at startup via New(); passed by pointer wherever needed.
type Metrics struct {
	ClaimedRows          prometheus.Counter
	ClaimBatches         prometheus.Counter
	SendAttempts         *prometheus.CounterVec
	SendLatency          prometheus.Histogram
	ThrottlePauses       prometheus.Counter
	ThrottlePauseSeconds prometheus.Counter
	QueueRows            *prometheus.GaugeVec
}

// New registers all instruments with the given Prometheus registerer and
// returns the populated Metrics struct.
// Using a custom registry (instead of prometheus.DefaultRegisterer) keeps
// tests isolated and avoids global state.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ClaimedRows: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hermes_claimed_rows_total",
			Help: "Rows signed by this process.",
		}),
		ClaimBatches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hermes_claim_batches_total",
			Help: "Claim calls that signed at least one row.",
		}),
		SendAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hermes_send_attempts_total",
			Help: "Send attempts by the status they resolved to.",
		}, []string{"status"}),
		SendLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "hermes_send_seconds",
			Help:    "Time spent handing one mail to the transport.",
			Buckets: prometheus.DefBuckets,
		}),
		ThrottlePauses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hermes_throttle_pauses_total",
			Help: "Pause rules that fired.",
		}),
		ThrottlePauseSeconds: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hermes_throttle_pause_seconds_total",
			Help: "Seconds of pause requested by fired rules, including dry runs.",
		}),
		QueueRows: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "hermes_queue_rows",
			Help: "Rows in the queue table by status, as of the last stats read.",
		}, []string{"status"}),
	}

	reg.MustRegister(
		m.ClaimedRows,
		m.ClaimBatches,
		m.SendAttempts,
		m.SendLatency,
		m.ThrottlePauses,
		m.ThrottlePauseSeconds,
		m.QueueRows,
	)

	return m
}

// WorkerHooks returns the metric callback functions expected by worker.MetricHooks.
// Centralises the prometheus observation calls so the dispatcher stays import-free.
func (m *Metrics) WorkerHooks() (
	onClaimed func(rows int),
	onAttempt func(status domain.Status, latency time.Duration),
	onPause func(pause time.Duration),
) {
	onClaimed = func(rows int) {
		if rows > 0 {
			m.ClaimBatches.Inc()
			m.ClaimedRows.Add(float64(rows))
		}
	}
	onAttempt = func(status domain.Status, latency time.Duration) {
		m.SendAttempts.WithLabelValues(status.String()).Inc()
		m.SendLatency.Observe(latency.Seconds())
	}
	onPause = func(pause time.Duration) {
		m.ThrottlePauses.Inc()
		m.ThrottlePauseSeconds.Add(pause.Seconds())
	}
	return
}

// ObserveStats publishes a stats snapshot on the queue gauges.
func (m *Metrics) ObserveStats(s domain.Stats) {
	m.QueueRows.WithLabelValues("unclaimed").Set(float64(s.Unclaimed))
	m.QueueRows.WithLabelValues(domain.StatusNever.String()).Set(float64(s.Never))
	m.QueueRows.WithLabelValues(domain.StatusRetry.String()).Set(float64(s.Retry))
	m.QueueRows.WithLabelValues(domain.StatusSucceed.String()).Set(float64(s.Succeed))
	m.QueueRows.WithLabelValues(domain.StatusFailed.String()).Set(float64(s.Failed))
}
