package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/lendlord/lendlord-sim/lend-service/eth"
	lendmetrics "github.com/lendlord/lendlord-sim/lend-service/metrics"
	txmetrics "github.com/lendlord/lendlord-sim/lend-service/txmgr/metrics"
)

const Namespace = "lend_sim"

var _ lendmetrics.RegistryMetricer = (*Metrics)(nil)

type Metricer interface {
	RecordInfo(version string)
	RecordUp()

	lendmetrics.RPCMetricer
	txmetrics.TxMetricer

	// RecordInvocation records a contract call and returns a function to call with its outcome.
	RecordInvocation(contract, method string) (onDone func(err error))
	RecordDeployment(contract string)
	RecordStep(step string, err error)
	RecordOverdraft(amount eth.ETH)
	RecordContractBalance(balance eth.ETH)
}

type Metrics struct {
	ns       string
	registry *prometheus.Registry
	factory  lendmetrics.Factory

	lendmetrics.RPCMetrics
	txmetrics.TxMetrics

	info            prometheus.GaugeVec
	up              prometheus.Gauge
	invocations     *prometheus.CounterVec
	invokeDuration  *prometheus.HistogramVec
	deployments     *prometheus.CounterVec
	steps           *prometheus.CounterVec
	overdraftWei    prometheus.Gauge
	overdraftTotal  prometheus.Counter
	contractBalance prometheus.Gauge
}

var _ Metricer = (*Metrics)(nil)

func NewMetrics(procName string) *Metrics {
	return newMetrics(procName, lendmetrics.NewRegistry())
}

func newMetrics(procName string, registry *prometheus.Registry) *Metrics {
	if procName == "" {
		procName = "default"
	}
	ns := Namespace + "_" + procName

	factory := lendmetrics.With(registry)
	return &Metrics{
		ns:       ns,
		registry: registry,
		factory:  factory,

		RPCMetrics: lendmetrics.MakeRPCMetrics(ns, factory),
		TxMetrics:  txmetrics.MakeTxMetrics(ns, factory),

		info: *factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "info",
			Help:      "Pseudo-metric tracking version and config info",
		}, []string{
			"version",
		}),
		up: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "up",
			Help:      "1 if lend-sim has finished starting up",
		}),
		invocations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "invocations_total",
			Help:      "Count of state-changing contract calls",
		}, []string{"contract", "method", "status"}),
		invokeDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "invocation_duration_seconds",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			Help:      "Duration from encoding a contract call until it was mined",
		}, []string{"contract", "method"}),
		deployments: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "deployments_total",
			Help:      "Count of deployed contracts",
		}, []string{"contract"}),
		steps: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "steps_total",
			Help:      "Count of script steps, by outcome",
		}, []string{"step", "status"}),
		overdraftWei: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "overdraft_wei",
			Help:      "Last overdraft amount read from the lending contract",
		}),
		overdraftTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "overdraft_reclaimed_wei_total",
			Help:      "Sum of overdraft amounts the admin tried to reclaim",
		}),
		contractBalance: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "lending_balance_wei",
			Help:      "Last observed ETH balance of the lending contract",
		}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Document() []lendmetrics.DocumentedMetric {
	return m.factory.Document()
}

// RecordInfo sets a pseudo-metric that contains versioning and config info.
func (m *Metrics) RecordInfo(version string) {
	m.info.WithLabelValues(version).Set(1)
}

// RecordUp sets the up metric to 1.
func (m *Metrics) RecordUp() {
	m.up.Set(1)
}

func (m *Metrics) RecordInvocation(contract, method string) (onDone func(err error)) {
	timer := prometheus.NewTimer(m.invokeDuration.WithLabelValues(contract, method))
	return func(err error) {
		timer.ObserveDuration()
		m.invocations.WithLabelValues(contract, method, status(err)).Inc()
	}
}

func (m *Metrics) RecordDeployment(contract string) {
	m.deployments.WithLabelValues(contract).Inc()
}

func (m *Metrics) RecordStep(step string, err error) {
	m.steps.WithLabelValues(step, status(err)).Inc()
}

func (m *Metrics) RecordOverdraft(amount eth.ETH) {
	m.overdraftWei.Set(amount.WeiFloat())
	m.overdraftTotal.Add(amount.WeiFloat())
}

func (m *Metrics) RecordContractBalance(balance eth.ETH) {
	m.contractBalance.Set(balance.WeiFloat())
}

func status(err error) string {
	if err != nil {
		return "failed"
	}
	return "success"
}
