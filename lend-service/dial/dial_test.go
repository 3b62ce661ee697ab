package dial

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ethereum/go-ethereum/log"

	"github.com/lendlord/lendlord-sim/lend-service/testlog"
)

func chainIDServer(t *testing.T, failures int32) (*httptest.Server, *atomic.Int32) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		var req struct {
			ID     json.RawMessage `json:"id"`
			Method string          `json:"method"`
		}
		if err := json.Unmarshal(body, &req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if calls.Add(1) <= failures {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":` + string(req.ID) + `,"result":"0x539"}`))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestDialRetriesUntilAvailable(t *testing.T) {
	srv, calls := chainIDServer(t, 2)
	c, err := dialRPCClientWithBackoff(context.Background(), testlog.Logger(t, log.LevelDebug), srv.URL, time.Millisecond)
	require.NoError(t, err)
	defer c.Close()
	require.Equal(t, int32(3), calls.Load())
}

func TestDialEthClient(t *testing.T) {
	srv, _ := chainIDServer(t, 0)
	cl, err := DialEthClientWithTimeout(context.Background(), time.Second, testlog.Logger(t, log.LevelInfo), srv.URL)
	require.NoError(t, err)
	defer cl.Close()

	id, err := cl.ChainID(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(1337), id.Int64())
}

func TestDialGivesUpAtTimeout(t *testing.T) {
	srv, _ := chainIDServer(t, 1<<30)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := dialRPCClientWithBackoff(ctx, testlog.Logger(t, log.LevelError), srv.URL, 5*time.Millisecond)
	require.Error(t, err)
}
