package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ethereum/go-ethereum/core/types"

	"github.com/lendlord/lendlord-sim/lend-service/metrics"
)

// TxMetrics is the prometheus implementation of TxMetricer,
// meant to be embedded into the metrics struct of a service.
type TxMetrics struct {
	currentNonce     prometheus.Gauge
	txPublishedEvent *prometheus.CounterVec
	confirmEvent     *prometheus.CounterVec
	txConfirmLatency prometheus.Histogram
	txGasUsed        prometheus.Gauge
	rpcError         prometheus.Counter
}

const TxSubsystem = "txmgr"

func MakeTxMetrics(ns string, factory metrics.Factory) TxMetrics {
	return TxMetrics{
		currentNonce: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "current_nonce",
			Help:      "Current nonce of the last sent transaction",
			Subsystem: TxSubsystem,
		}),
		txPublishedEvent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "publish_total",
			Help:      "Count of publish attempts, by error reason",
			Subsystem: TxSubsystem,
		}, []string{"error"}),
		confirmEvent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "confirm_total",
			Help:      "Count of mined transactions, by receipt status",
			Subsystem: TxSubsystem,
		}, []string{"status"}),
		txConfirmLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "confirm_latency_ms",
			Help:      "Latency between publishing a transaction and receiving its receipt",
			Buckets:   prometheus.ExponentialBucketsRange(50, 600_000, 20),
			Subsystem: TxSubsystem,
		}),
		txGasUsed: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "gas_used",
			Help:      "Gas used by the last mined transaction",
			Subsystem: TxSubsystem,
		}),
		rpcError: factory.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "rpc_error_count",
			Help:      "Count of failed nonce and receipt queries",
			Subsystem: TxSubsystem,
		}),
	}
}

func (t *TxMetrics) RecordNonce(nonce uint64) {
	t.currentNonce.Set(float64(nonce))
}

// TxPublished records a publish attempt, reason is empty on success.
func (t *TxMetrics) TxPublished(reason string) {
	if reason == "" {
		reason = "success"
	}
	t.txPublishedEvent.WithLabelValues(reason).Inc()
}

func (t *TxMetrics) TxConfirmed(receipt *types.Receipt) {
	status := "success"
	if receipt.Status != types.ReceiptStatusSuccessful {
		status = "reverted"
	}
	t.confirmEvent.WithLabelValues(status).Inc()
	t.txGasUsed.Set(float64(receipt.GasUsed))
}

func (t *TxMetrics) RecordTxConfirmationLatency(latency int64) {
	t.txConfirmLatency.Observe(float64(latency))
}

func (t *TxMetrics) RPCError() {
	t.rpcError.Inc()
}

var _ TxMetricer = (*TxMetrics)(nil)
