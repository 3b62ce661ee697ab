package metrics

import (
	"github.com/lendlord/lendlord-sim/lend-service/eth"
	lendmetrics "github.com/lendlord/lendlord-sim/lend-service/metrics"
	txmetrics "github.com/lendlord/lendlord-sim/lend-service/txmgr/metrics"
)

type noopMetrics struct {
	txmetrics.NoopTxMetrics
	lendmetrics.NoopRPCMetrics
}

var NoopMetrics Metricer = new(noopMetrics)

func (*noopMetrics) RecordInfo(version string) {}
func (*noopMetrics) RecordUp()                 {}

func (*noopMetrics) RecordInvocation(string, string) func(error) {
	return func(error) {}
}

func (*noopMetrics) RecordDeployment(string)       {}
func (*noopMetrics) RecordStep(string, error)      {}
func (*noopMetrics) RecordOverdraft(eth.ETH)       {}
func (*noopMetrics) RecordContractBalance(eth.ETH) {}
