package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

var HTTPRequests = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "mauth_http_requests_total",
		Help: "Total number of HTTP requests served",
	},
	[]string{"method", "route", "status"},
)

var HTTPDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "mauth_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"method", "route"},
)

// AuthEvents counts auth operations by name and outcome. The failure label
// carries the error kind, never the message.
var AuthEvents = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "mauth_auth_events_total",
		Help: "Total number of auth operations by outcome",
	},
	[]string{"event", "outcome"},
)

var EmailsSent = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "mauth_emails_sent_total",
		Help: "Total number of notification emails attempted",
	},
	[]string{"template", "outcome"},
)

var RateLimited = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "mauth_rate_limited_total",
		Help: "Total number of requests rejected by the rate limiter",
	},
	[]string{"route"},
)

var TokensPurged = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "mauth_tokens_purged_total",
		Help: "Total number of expired one-time tokens cleared",
	},
)

// Register adds every collector of this package to reg. It panics on
// duplicate registration.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(HTTPRequests, HTTPDuration, AuthEvents, EmailsSent, RateLimited, TokensPurged)
}

func RecordHTTP(method, route, status string, elapsed time.Duration) {
	HTTPRequests.WithLabelValues(method, route, status).Inc()
	HTTPDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func RecordAuth(event, outcome string) {
	AuthEvents.WithLabelValues(event, outcome).Inc()
}

func RecordEmail(template string, err error) {
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailure
	}
	EmailsSent.WithLabelValues(template, outcome).Inc()
}

func RecordRateLimited(route string) {
	RateLimited.WithLabelValues(route).Inc()
}

func RecordTokensPurged(n int64) {
	if n > 0 {
		TokensPurged.Add(float64(n))
	}
}
