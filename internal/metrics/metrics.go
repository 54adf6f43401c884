package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	GatewayLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cohere_gateway_lookups_total",
			Help: "Payment gateway status lookups by object kind and result",
		},
		[]string{"kind", "result"},
	)

	GatewayLookupDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "cohere_gateway_lookup_duration_seconds",
			Help: "Time taken by payment gateway status lookups",
		},
		[]string{"kind"},
	)

	CacheResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cohere_status_cache_total",
			Help: "Status cache hits and misses",
		},
		[]string{"result"},
	)

	AccessResolutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cohere_access_resolutions_total",
			Help: "Access checks by contribution type and outcome",
		},
		[]string{"type", "granted"},
	)

	WebhookEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cohere_webhook_events_total",
			Help: "Gateway webhook events by object kind",
		},
		[]string{"kind"},
	)

	ReconciledPayments = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cohere_reconciled_payments_total",
			Help: "Pending payments whose status changed during reconciliation",
		},
	)
)

func Register() {
	prometheus.MustRegister(
		GatewayLookups,
		GatewayLookupDuration,
		CacheResults,
		AccessResolutions,
		WebhookEvents,
		ReconciledPayments,
	)
}
