package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder collects check and notification metrics on a private registry.
// A nil *Recorder is valid and records nothing.
type Recorder struct {
	registry *prometheus.Registry

	checks        *prometheus.CounterVec
	notifications *prometheus.CounterVec
	fetchFailures prometheus.Counter
	statusAge     prometheus.Gauge
	statusUp      prometheus.Gauge
}

// NewRecorder creates a recorder with Go runtime and process collectors registered.
func NewRecorder() *Recorder {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Recorder{
		registry: registry,
		checks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "powerwatch_checks_total",
			Help: "Number of evaluated checks by job and action.",
		}, []string{"job", "action"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "powerwatch_notifications_total",
			Help: "Number of notification attempts by job, notifier and result.",
		}, []string{"job", "notifier", "result"}),
		fetchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "powerwatch_fetch_failures_total",
			Help: "Number of status fetches that failed.",
		}),
		statusAge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "powerwatch_status_age_minutes",
			Help: "Age of the last fetched status record in minutes.",
		}),
		statusUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "powerwatch_status_up",
			Help: "1 when the last fetched status reported power on, else 0.",
		}),
	}

	registry.MustRegister(r.checks, r.notifications, r.fetchFailures, r.statusAge, r.statusUp)
	return r
}

// ObserveStatus records the freshness and state of a fetched record.
func (r *Recorder) ObserveStatus(ageMinutes float64, isOn bool) {
	if r == nil {
		return
	}
	r.statusAge.Set(ageMinutes)
	if isOn {
		r.statusUp.Set(1)
	} else {
		r.statusUp.Set(0)
	}
}

// FetchFailed counts a failed fetch.
func (r *Recorder) FetchFailed() {
	if r == nil {
		return
	}
	r.fetchFailures.Inc()
}

// CheckDone counts an evaluated check.
func (r *Recorder) CheckDone(job, action string) {
	if r == nil {
		return
	}
	r.checks.WithLabelValues(job, action).Inc()
}

// Notified counts a notification attempt.
func (r *Recorder) Notified(job, notifier string, ok bool) {
	if r == nil {
		return
	}
	result := "success"
	if !ok {
		result = "failure"
	}
	r.notifications.WithLabelValues(job, notifier, result).Inc()
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
