package metrics

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestFactoryDocumentsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	f := With(reg)
	f.NewCounter(prometheus.CounterOpts{Namespace: "ns", Name: "a_total", Help: "a"})
	f.NewGaugeVec(prometheus.GaugeOpts{Namespace: "ns", Subsystem: "sub", Name: "b", Help: "b"}, []string{"x"})

	docs := f.Document()
	require.Len(t, docs, 2)
	require.Equal(t, DocumentedMetric{Type: "counter", Name: "ns_a_total", Help: "a"}, docs[0])
	require.Equal(t, "ns_sub_b", docs[1].Name)
	require.Equal(t, []string{"x"}, docs[1].Labels)
}

func TestRPCMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := MakeRPCMetrics("lend", With(reg))

	m.RecordRPCClientRequest("eth_chainId")(nil)
	m.RecordRPCClientRequest("eth_chainId")(nil)
	m.RecordRPCClientRequest("eth_sendRawTransaction")(errors.New("nonce too low"))

	c := NewRegistryChecker(t, reg)
	require.Equal(t, 2.0, c.Counter("lend_rpc_client_requests_total", map[string]string{"method": "eth_chainId"}))
	require.Equal(t, 1.0, c.Counter("lend_rpc_client_responses_total", map[string]string{
		"method": "eth_sendRawTransaction",
		"error":  "error",
	}))
	require.Equal(t, uint64(2), c.Observations("lend_rpc_client_request_duration_seconds", map[string]string{"method": "eth_chainId"}))
}

func TestStartServer(t *testing.T) {
	reg := prometheus.NewRegistry()
	With(reg).NewGauge(prometheus.GaugeOpts{Namespace: "lend", Name: "up", Help: "up"}).Set(1)

	srv, err := StartServer(reg, "127.0.0.1", 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Close() })

	resp, err := http.Get(fmt.Sprintf("%s/metrics", srv.HTTPEndpoint()))
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, err)
	require.True(t, strings.Contains(string(body), "lend_up 1"))
}

func TestCLIConfigCheck(t *testing.T) {
	require.NoError(t, DefaultCLIConfig().Check())
	cfg := DefaultCLIConfig()
	cfg.Enabled = true
	cfg.ListenPort = 70000
	require.ErrorIs(t, cfg.Check(), ErrInvalidPort)
}
