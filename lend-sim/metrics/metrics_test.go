package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/ethereum/go-ethereum/core/types"

	"github.com/lendlord/lendlord-sim/lend-service/eth"
	lendmetrics "github.com/lendlord/lendlord-sim/lend-service/metrics"
)

func TestLendSimMetrics(t *testing.T) {
	m := newMetrics("", prometheus.NewRegistry())
	require.NotEmpty(t, m.Document(), "sanity check there are generated metrics docs")

	version := "v1.2.3"
	m.RecordInfo(version)
	m.RecordUp()

	m.RecordInvocation("Lending", "borrowTokens")(nil)
	m.RecordInvocation("Lending", "borrowTokens")(nil)
	m.RecordInvocation("Lending", "withdrawEth")(errors.New("reverted"))
	m.RecordDeployment("Token")
	m.RecordStep("reclaim-1", nil)
	m.RecordStep("reclaim-2", errors.New("read failed"))
	m.RecordOverdraft(eth.MustParseEther("0.003"))
	m.RecordOverdraft(eth.MustParseEther("0.001"))
	m.RecordContractBalance(eth.MustParseEther("0.01"))
	m.TxConfirmed(&types.Receipt{Status: types.ReceiptStatusFailed, GasUsed: 50_000})

	c := lendmetrics.NewRegistryChecker(t, m.Registry())
	prefix := Namespace + "_default_"

	require.Equal(t, 2.0, c.Counter(prefix+"invocations_total", map[string]string{
		"contract": "Lending", "method": "borrowTokens", "status": "success",
	}))
	require.Equal(t, 1.0, c.Counter(prefix+"invocations_total", map[string]string{
		"method": "withdrawEth", "status": "failed",
	}))
	require.Equal(t, uint64(2), c.Observations(prefix+"invocation_duration_seconds", map[string]string{"method": "borrowTokens"}))
	require.Equal(t, 1.0, c.Counter(prefix+"steps_total", map[string]string{"step": "reclaim-2", "status": "failed"}))
	require.Equal(t, eth.MustParseEther("0.001").WeiFloat(), c.Gauge(prefix+"overdraft_wei", nil))
	require.InDelta(t, eth.MustParseEther("0.004").WeiFloat(), c.Counter(prefix+"overdraft_reclaimed_wei_total", nil), 1e3)
	require.Equal(t, 1.0, c.Counter(prefix+"deployments_total", map[string]string{"contract": "Token"}))
	require.Equal(t, 1.0, c.Counter(prefix+"txmgr_confirm_total", map[string]string{"status": "reverted"}))
	require.Equal(t, 1.0, c.Gauge(prefix+"up", nil))
	require.Equal(t, 1.0, c.Gauge(prefix+"info", map[string]string{"version": version}))
}

func TestNoopMetrics(t *testing.T) {
	NoopMetrics.RecordInfo("v")
	NoopMetrics.RecordInvocation("Lending", "borrowTokens")(errors.New("x"))
	NoopMetrics.RecordRPCClientRequest("eth_call")(nil)
	NoopMetrics.TxConfirmed(&types.Receipt{})
}
