package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors exposed at /metrics.
type Metrics struct {
	// ProxyRequestCounter counts chat proxy requests.
	// Labels: model, status (success|unauthorized|bad_request|upstream_error)
	ProxyRequestCounter *prometheus.CounterVec

	// ProxyRequestDuration measures end-to-end proxy latency, including
	// the time spent relaying the upstream stream.
	ProxyRequestDuration *prometheus.HistogramVec

	// ToolCallCounter counts tool protocol calls.
	// Labels: method, status (success|error)
	ToolCallCounter *prometheus.CounterVec

	// AuthFlowCounter counts OAuth flow outcomes.
	// Labels: stage (authorization|callback), status
	AuthFlowCounter *prometheus.CounterVec

	// ErrorCounter counts errors by component and type.
	ErrorCounter *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics with the given
// registerer. Pass prometheus.DefaultRegisterer in production; tests use
// a private registry so repeated construction does not collide.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ProxyRequestCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_proxy_requests_total",
				Help: "Total number of chat proxy requests by model and status",
			},
			[]string{"model", "status"},
		),

		ProxyRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "relay_proxy_request_duration_seconds",
				Help:    "Duration of chat proxy requests in seconds, including stream relay",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"model"},
		),

		ToolCallCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_tool_calls_total",
				Help: "Total number of tool protocol calls by method and status",
			},
			[]string{"method", "status"},
		),

		AuthFlowCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_auth_flows_total",
				Help: "Total number of OAuth flow stages by outcome",
			},
			[]string{"stage", "status"},
		),

		ErrorCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_errors_total",
				Help: "Total number of errors by component and error type",
			},
			[]string{"component", "error_type"},
		),
	}
}
