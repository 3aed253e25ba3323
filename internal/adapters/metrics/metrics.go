// Package metrics exposes Prometheus counters for the fallback store, reminder
// sends and bulk uploads.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gymdesk/internal/adapters/http/perf"
	"gymdesk/internal/adapters/storage"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	registry *prometheus.Registry

	Fallbacks   *prometheus.CounterVec
	Reminders   *prometheus.CounterVec
	BulkUploads *prometheus.CounterVec
}

// New creates a private registry with the service counters and the Go runtime collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Fallbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gymdesk_remote_fallbacks_total",
			Help: "Calls answered by the local store after the remote backend failed",
		}, []string{"store", "op"}),
		Reminders: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gymdesk_reminder_emails_total",
			Help: "Reminder emails by type and outcome; remote batches count once as queued",
		}, []string{"email_type", "outcome"}),
		BulkUploads: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gymdesk_bulk_upload_rows_total",
			Help: "Bulk upload rows by outcome; remote uploads count once as forwarded",
		}, []string{"outcome"}),
	}
}

// FallbackHook counts a fallback and, when collector is non-nil, adds it to the perf dashboard.
func (m *Metrics) FallbackHook(collector *perf.Collector) storage.FallbackHook {
	return func(store, op string, _ error) {
		m.Fallbacks.WithLabelValues(store, op).Inc()
		if collector != nil {
			collector.RecordFallback()
		}
	}
}

// RecordReminders counts the outcome of one reminder run.
func (m *Metrics) RecordReminders(emailType string, remote bool, sent, failed, skipped int) {
	if remote {
		m.Reminders.WithLabelValues(emailType, "queued").Inc()
		return
	}
	m.Reminders.WithLabelValues(emailType, "sent").Add(float64(sent))
	m.Reminders.WithLabelValues(emailType, "failed").Add(float64(failed))
	m.Reminders.WithLabelValues(emailType, "skipped").Add(float64(skipped))
}

// RecordBulkUpload counts the outcome of one upload.
func (m *Metrics) RecordBulkUpload(remote bool, created, skipped, errored int) {
	if remote {
		m.BulkUploads.WithLabelValues("forwarded").Inc()
		return
	}
	m.BulkUploads.WithLabelValues("created").Add(float64(created))
	m.BulkUploads.WithLabelValues("skipped").Add(float64(skipped))
	m.BulkUploads.WithLabelValues("error").Add(float64(errored))
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
