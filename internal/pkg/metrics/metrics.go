// Package metrics exposes Prometheus instrumentation on a private registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "subscriptions"

type Metrics struct {
	registry *prometheus.Registry

	JobRuns          *prometheus.CounterVec
	JobDuration      *prometheus.HistogramVec
	WhitelistWrites  *prometheus.CounterVec
	WhitelistCASMiss prometheus.Counter
	URLSubmissions   *prometheus.CounterVec
	InvoicesCreated  prometheus.Counter
	InvoicesPaid     prometheus.Counter
	BillingFailures  prometheus.Counter
}

// New registers every collector on a fresh registry, so tests can create as
// many instances as they like.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		JobRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_runs_total",
			Help:      "Scheduled job executions by outcome.",
		}, []string{"job", "result"}),
		JobDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Scheduled job run time.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}, []string{"job"}),
		WhitelistWrites: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "whitelist_writes_total",
			Help:      "Whitelist write attempts by operation and outcome.",
		}, []string{"operation", "result"}),
		WhitelistCASMiss: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "whitelist_cas_conflicts_total",
			Help:      "Whitelist writes rejected because another writer got there first.",
		}),
		URLSubmissions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "url_submissions_total",
			Help:      "URL submissions by outcome.",
		}, []string{"result"}),
		InvoicesCreated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invoices_created_total",
			Help:      "Invoices issued.",
		}),
		InvoicesPaid: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invoices_paid_total",
			Help:      "Invoices marked as paid.",
		}),
		BillingFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "billing_failures_total",
			Help:      "Subscriptions skipped by the recurring billing run.",
		}),
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
