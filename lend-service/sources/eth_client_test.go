package sources

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/ethereum/go-ethereum/common"

	"github.com/lendlord/lendlord-sim/lend-service/metrics"
	"github.com/lendlord/lendlord-sim/lend-service/testutils"
)

func TestEthClientRecordsRequests(t *testing.T) {
	chain := testutils.NewFakeChain(1337, 100)
	reg := prometheus.NewRegistry()
	m := metrics.MakeRPCMetrics("lend", metrics.With(reg))
	cl := NewEthClient(chain, &m)
	ctx := context.Background()

	id, err := cl.ChainID(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1337), id.Int64())

	_, err = cl.TransactionReceipt(ctx, common.Hash{0x01})
	require.Error(t, err)

	h, err := cl.HeaderByNumber(ctx, nil)
	require.NoError(t, err)
	require.Equal(t, uint64(100), h.Time)

	_, err = cl.HeaderByNumber(ctx, big.NewInt(5))
	require.Error(t, err)

	c := metrics.NewRegistryChecker(t, reg)
	require.Equal(t, 1.0, c.Counter("lend_rpc_client_responses_total", map[string]string{
		"method": "eth_getTransactionReceipt",
		"error":  "<nil>",
	}))
	require.Equal(t, 1.0, c.Counter("lend_rpc_client_responses_total", map[string]string{
		"method": "eth_getBlockByNumber",
		"error":  "error",
	}))
	require.Equal(t, 2.0, c.Counter("lend_rpc_client_requests_total", map[string]string{"method": "eth_getBlockByNumber"}))
}

func TestEthClientCachesHeadersByHash(t *testing.T) {
	chain := testutils.NewFakeChain(1337, 100)
	cl := NewEthClient(chain, nil)
	ctx := context.Background()

	genesis, err := chain.HeaderByNumber(ctx, big.NewInt(0))
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		h, err := cl.HeaderByHash(ctx, genesis.Hash())
		require.NoError(t, err)
		require.Equal(t, uint64(100), h.Time)
		// callers get their own copy
		h.Time = 0
	}
	require.Equal(t, 1, chain.HashLookups())

	_, err = cl.HeaderByHash(ctx, common.Hash{0x02})
	require.Error(t, err)
	_, err = cl.HeaderByHash(ctx, common.Hash{0x02})
	require.Error(t, err)
	require.Equal(t, 3, chain.HashLookups(), "lookup failures are not cached")

	uncached := NewEthClient(chain, nil, WithHeaderCacheSize(0))
	_, err = uncached.HeaderByHash(ctx, genesis.Hash())
	require.NoError(t, err)
	_, err = uncached.HeaderByHash(ctx, genesis.Hash())
	require.NoError(t, err)
	require.Equal(t, 5, chain.HashLookups())
}

func TestEthClientRateLimit(t *testing.T) {
	chain := testutils.NewFakeChain(1337, 100)
	cl := NewEthClient(chain, nil, WithRateLimit(rate.Every(time.Hour), 1))

	_, err := cl.ChainID(context.Background())
	require.NoError(t, err)

	// the single token is spent, the next request has to wait an hour
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = cl.ChainID(ctx)
	require.Error(t, err)

	unlimited := NewEthClient(chain, nil, WithRateLimit(0, 0))
	for i := 0; i < 10; i++ {
		_, err := unlimited.ChainID(context.Background())
		require.NoError(t, err)
	}
}
