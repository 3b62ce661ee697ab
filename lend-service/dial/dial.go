package dial

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rpc"
)

// DefaultDialTimeout is a default timeout for dialing a client.
const DefaultDialTimeout = 1 * time.Minute
const defaultRetryCount = 30
const defaultRetryTime = 2 * time.Second
const defaultConnectTimeout = 10 * time.Second

// DialEthClientWithTimeout dials the node at url, and retries with a fixed backoff until
// the node answers a chain ID request or the timeout expires.
func DialEthClientWithTimeout(ctx context.Context, timeout time.Duration, log log.Logger, url string) (*ethclient.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	c, err := dialRPCClientWithBackoff(ctx, log, url, defaultRetryTime)
	if err != nil {
		return nil, err
	}
	return ethclient.NewClient(c), nil
}

func dialRPCClientWithBackoff(ctx context.Context, log log.Logger, addr string, retryTime time.Duration) (*rpc.Client, error) {
	bOff := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(retryTime), defaultRetryCount), ctx)
	attempt := 0
	return backoff.RetryWithData(func() (*rpc.Client, error) {
		attempt++
		c, err := dialRPCClient(ctx, addr)
		if err != nil {
			log.Warn("Failed to dial RPC endpoint", "addr", addr, "attempt", attempt, "err", err)
		}
		return c, err
	}, bOff)
}

// dialRPCClient dials once, and checks that the endpoint answers.
func dialRPCClient(ctx context.Context, addr string) (*rpc.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultConnectTimeout)
	defer cancel()

	c, err := rpc.DialContext(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial address (%s): %w", addr, err)
	}
	var id string
	if err := c.CallContext(ctx, &id, "eth_chainId"); err != nil {
		c.Close()
		return nil, fmt.Errorf("address unavailable (%s): %w", addr, err)
	}
	return c, nil
}
