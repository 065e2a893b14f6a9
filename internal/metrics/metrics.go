package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "otplink_http_requests_total",
			Help: "HTTP requests by method, route and status.",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "otplink_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// MessagesProcessed counts processor outcomes:
	// no_keyword, no_otp, duplicate, detected.
	MessagesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "otplink_messages_processed_total",
			Help: "SMS messages run through the processor, by outcome.",
		},
		[]string{"result"},
	)

	ForwardAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "otplink_forward_attempts_total",
			Help: "Forwarding attempts by channel and result.",
		},
		[]string{"channel", "result"},
	)

	ForwardSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "otplink_forward_skipped_total",
			Help: "Forward calls answered without delivery, by reason.",
		},
		[]string{"reason"},
	)

	SMSPolls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "otplink_sms_polls_total",
			Help: "SMS source polls by result.",
		},
		[]string{"result"},
	)

	ListenerActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "otplink_sms_listener_active",
		Help: "1 while the SMS poll loop is running.",
	})

	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "otplink_websocket_clients",
		Help: "Connected event stream clients.",
	})
)
