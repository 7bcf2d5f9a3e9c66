package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"route", "method", "status"},
	)

	IntentsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "payment_intents_created_total",
			Help: "Payment intents successfully opened with the gateway",
		},
	)
	WebhooksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_webhooks_total",
			Help: "Webhook deliveries by processing result",
		},
		[]string{"result"}, // applied|duplicate|ignored|conflict|pending|rejected|cancelled|error
	)
	CreditsApplied = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "credits_applied_total",
			Help: "Credit units added to user balances",
		},
	)
	GatewayErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_errors_total",
			Help: "Gateway call failures by kind",
		},
		[]string{"op", "kind"}, // kind: unavailable|rejected
	)

	WorkerQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "worker_queue_depth",
			Help: "Current worker queue depth",
		},
	)
)

var Handler = promhttp.Handler

func Init() {
	prometheus.MustRegister(RequestsTotal)
	prometheus.MustRegister(IntentsCreated)
	prometheus.MustRegister(WebhooksTotal)
	prometheus.MustRegister(CreditsApplied)
	prometheus.MustRegister(GatewayErrors)
	prometheus.MustRegister(WorkerQueueDepth)
}
