package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	InvoicesOverdue   prometheus.Counter
	LateFeesApplied   prometheus.Counter
	Suspended         prometheus.Counter
	Cancelled         prometheus.Counter
	InvoicesGenerated prometheus.Counter
	JobErrors         *prometheus.CounterVec
}

func NewMetrics(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		InvoicesOverdue: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kolekta_invoices_marked_overdue_total",
			Help: "Invoices moved to overdue by the daily enforcement job.",
		}),
		LateFeesApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kolekta_late_fees_applied_total",
			Help: "Late fees applied by the daily enforcement job.",
		}),
		Suspended: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kolekta_subscriptions_suspended_total",
			Help: "Subscriptions suspended for non-payment.",
		}),
		Cancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kolekta_subscriptions_cancelled_total",
			Help: "Subscriptions cancelled after prolonged suspension.",
		}),
		InvoicesGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kolekta_invoices_generated_total",
			Help: "Invoices generated by the monthly billing job.",
		}),
		JobErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kolekta_scheduler_job_errors_total",
			Help: "Per-row errors encountered during scheduler jobs.",
		}, []string{"job"}),
	}
	reg.MustRegister(
		m.InvoicesOverdue,
		m.LateFeesApplied,
		m.Suspended,
		m.Cancelled,
		m.InvoicesGenerated,
		m.JobErrors,
	)
	return m
}
