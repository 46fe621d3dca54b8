package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the service collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	Outcomes     *prometheus.CounterVec
	Enrollments  *prometheus.CounterVec
	Recognition  prometheus.Histogram
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "attendance_outcomes_total",
			Help: "Recognition attempts by outcome (marked, duplicate, no_match, unknown_subject, error).",
		}, []string{"outcome"}),
		Enrollments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "attendance_enrollments_total",
			Help: "Face enrollments by result.",
		}, []string{"result"}),
		Recognition: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "attendance_recognition_seconds",
			Help:    "Time spent in the recognition provider.",
			Buckets: prometheus.DefBuckets,
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "attendance_http_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "attendance_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	reg.MustRegister(m.Outcomes, m.Enrollments, m.Recognition, m.HTTPRequests, m.HTTPDuration)
	return m
}

// Outcome counts one recognition attempt.
func (m *Metrics) Outcome(outcome string) {
	if m == nil {
		return
	}
	m.Outcomes.WithLabelValues(outcome).Inc()
}

// Enrollment counts one enrollment attempt.
func (m *Metrics) Enrollment(result string) {
	if m == nil {
		return
	}
	m.Enrollments.WithLabelValues(result).Inc()
}

// ObserveRecognition records provider latency since start.
func (m *Metrics) ObserveRecognition(start time.Time) {
	if m == nil {
		return
	}
	m.Recognition.Observe(time.Since(start).Seconds())
}
