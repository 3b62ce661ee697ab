package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const RPCClientSubsystem = "rpc_client"

type RPCMetricer interface {
	// RecordRPCClientRequest records a request to the node and returns a
	// function to call with the outcome once the response was received.
	RecordRPCClientRequest(method string) func(err error)
}

// RPCMetrics tracks requests made to the node.
// It is meant to be embedded into the metrics struct of a service.
type RPCMetrics struct {
	clientRequestsTotal          *prometheus.CounterVec
	clientRequestDurationSeconds *prometheus.HistogramVec
	clientResponsesTotal         *prometheus.CounterVec
}

var _ RPCMetricer = (*RPCMetrics)(nil)

// MakeRPCMetrics creates the RPC metrics in the fully qualified namespace ns.
func MakeRPCMetrics(ns string, factory Factory) RPCMetrics {
	return RPCMetrics{
		clientRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: RPCClientSubsystem,
			Name:      "requests_total",
			Help:      "Total RPC requests initiated",
		}, []string{
			"method",
		}),
		clientRequestDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Subsystem: RPCClientSubsystem,
			Name:      "request_duration_seconds",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			Help:      "Histogram of RPC client request durations",
		}, []string{
			"method",
		}),
		clientResponsesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: RPCClientSubsystem,
			Name:      "responses_total",
			Help:      "Total RPC request responses received",
		}, []string{
			"method",
			"error",
		}),
	}
}

func (m *RPCMetrics) RecordRPCClientRequest(method string) func(err error) {
	m.clientRequestsTotal.WithLabelValues(method).Inc()
	timer := prometheus.NewTimer(m.clientRequestDurationSeconds.WithLabelValues(method))
	return func(err error) {
		timer.ObserveDuration()
		errStr := "<nil>"
		if err != nil {
			errStr = "error"
		}
		m.clientResponsesTotal.WithLabelValues(method, errStr).Inc()
	}
}

type NoopRPCMetrics struct{}

func (NoopRPCMetrics) RecordRPCClientRequest(string) func(err error) {
	return func(error) {}
}

var _ RPCMetricer = NoopRPCMetrics{}
