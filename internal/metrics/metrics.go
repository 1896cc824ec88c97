// Package metrics holds the Prometheus collectors exposed on the metrics port.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DealsBySLAStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "pipedesk_deals_sla_status",
		Help: "Open deals per SLA status as of the last sweep.",
	}, []string{"status"})

	LeadsByBucket = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "pipedesk_leads_priority_bucket",
		Help: "Leads per priority bucket as of the last sweep.",
	}, []string{"bucket"})

	SweepDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pipedesk_sweep_duration_seconds",
		Help:    "Duration of background sweeps.",
		Buckets: prometheus.DefBuckets,
	}, []string{"sweep"})

	SweepErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipedesk_sweep_errors_total",
		Help: "Sweeps aborted by an error.",
	}, []string{"sweep"})

	StageMoves = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipedesk_stage_moves_total",
		Help: "Deal stage move attempts by outcome.",
	}, []string{"outcome"})

	Notifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipedesk_notifications_total",
		Help: "Webhook notifications by kind and outcome.",
	}, []string{"kind", "outcome"})

	BreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "pipedesk_notify_breaker_state",
		Help: "Webhook circuit breaker state (0 closed, 1 half-open, 2 open).",
	}, []string{"name"})
)
