package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Poll loop metrics
	PollCycles = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "presenced_poll_cycles_total",
			Help: "Total poll cycles that produced a usable snapshot",
		},
		[]string{"kind"},
	)

	SourceErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "presenced_source_errors_total",
			Help: "Presence source queries that failed or timed out",
		},
		[]string{"kind"},
	)

	// Session engine metrics
	SessionsStarted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "presenced_sessions_started_total",
			Help: "New session intervals opened",
		},
		[]string{"kind"},
	)

	SessionsResumed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "presenced_sessions_resumed_total",
			Help: "Suspended sessions resumed within the grace period",
		},
		[]string{"kind"},
	)

	SessionsClosed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "presenced_sessions_closed_total",
			Help: "Sessions closed after exceeding the suspension threshold",
		},
		[]string{"kind"},
	)

	StoreErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "presenced_store_errors_total",
			Help: "Failed storage writes, by operation",
		},
		[]string{"kind", "op"},
	)

	// Sampler metrics
	SamplesWritten = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "presenced_online_samples_written_total",
			Help: "Online-count samples persisted (change-deduplicated)",
		},
		[]string{"kind"},
	)

	OnlineCount = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "presenced_online_count",
			Help: "Entities present in the most recent snapshot",
		},
		[]string{"kind"},
	)

	// Delivery metrics
	NotificationsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "presenced_notifications_sent_total",
			Help: "Web push notifications sent to watchers",
		},
		[]string{"kind"},
	)

	DigestsDelivered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "presenced_digests_delivered_total",
			Help: "Digest reports delivered to the channel",
		},
	)
)

// Register adds all collectors to the given registry.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		PollCycles,
		SourceErrors,
		SessionsStarted,
		SessionsResumed,
		SessionsClosed,
		StoreErrors,
		SamplesWritten,
		OnlineCount,
		NotificationsSent,
		DigestsDelivered,
	)
}
