// Package metrics registers the Prometheus collectors shared across
// the server and services.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequests counts handled HTTP requests.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "securechat_http_requests_total",
		Help: "Handled HTTP requests by route, method and status.",
	}, []string{"route", "method", "status"})

	// HTTPDuration tracks request latency.
	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "securechat_http_request_seconds",
		Help:    "HTTP request latency by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})

	// CryptoDuration tracks cryptographic operation latency. Key
	// generation and the password KDF are the long-running operations.
	CryptoDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "securechat_crypto_op_seconds",
		Help:    "Cryptographic operation latency by operation.",
		Buckets: []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"op"})

	// MessagesSent counts successfully stored messages.
	MessagesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "securechat_messages_sent_total",
		Help: "Messages encrypted and stored.",
	})

	// LoginFailures counts rejected authentication attempts.
	LoginFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "securechat_login_failures_total",
		Help: "Rejected login attempts.",
	})
)

// ObserveCrypto records the elapsed time of a crypto operation.
func ObserveCrypto(op string, start time.Time) {
	CryptoDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
