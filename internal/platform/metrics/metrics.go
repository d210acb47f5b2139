package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the broker.
type Metrics struct {
	LookupsTotal    *prometheus.CounterVec
	DebitsTotal     prometheus.Counter
	RefundsTotal    *prometheus.CounterVec
	CreditsGranted  prometheus.Counter
	UsersCreated    prometheus.Counter
	BansTotal       prometheus.Counter
	LookupDuration  prometheus.Histogram
	MessagesHandled prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		LookupsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "infobroker_lookups_total",
			Help: "Lookup pipeline executions by service and outcome",
		}, []string{"service", "status"}),
		DebitsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "infobroker_ledger_debits_total",
			Help: "Successful credit debits",
		}),
		RefundsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "infobroker_ledger_refunds_total",
			Help: "Compensating credits issued after post-debit failures",
		}, []string{"reason"}),
		CreditsGranted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "infobroker_credits_granted_total",
			Help: "Credits granted by admin operations",
		}),
		UsersCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "infobroker_users_created_total",
			Help: "Users created on first contact",
		}),
		BansTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "infobroker_bans_total",
			Help: "Ban operations applied",
		}),
		LookupDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "infobroker_lookup_duration_seconds",
			Help:    "Latency of external lookup invocations",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
		}),
		MessagesHandled: promauto.NewCounter(prometheus.CounterOpts{
			Name: "infobroker_messages_handled_total",
			Help: "Inbound transport messages dispatched",
		}),
	}
}
