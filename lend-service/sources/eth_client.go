package sources

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"

	"github.com/lendlord/lendlord-sim/lend-service/metrics"
)

const defaultHeaderCacheSize = 128

// RPC is the subset of the go-ethereum ethclient that the simulation talks to.
type RPC interface {
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	HeaderByHash(ctx context.Context, hash common.Hash) (*types.Header, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

// EthClient records every request to the node in the RPC metrics.
// Headers looked up by hash are cached, and requests can be rate limited.
type EthClient struct {
	client  RPC
	metrics metrics.RPCMetricer
	limiter *rate.Limiter
	headers *lru.Cache[common.Hash, *types.Header]
}

var _ RPC = (*EthClient)(nil)

type EthClientOption func(s *EthClient)

// WithRateLimit makes every request wait for the limiter. A zero limit disables it.
func WithRateLimit(limit rate.Limit, burst int) EthClientOption {
	return func(s *EthClient) {
		if limit <= 0 {
			s.limiter = nil
			return
		}
		s.limiter = rate.NewLimiter(limit, max(burst, 1))
	}
}

// WithHeaderCacheSize sets how many headers are kept by hash. Zero disables the cache.
func WithHeaderCacheSize(size int) EthClientOption {
	return func(s *EthClient) {
		s.headers = nil
		if size > 0 {
			s.headers, _ = lru.New[common.Hash, *types.Header](size)
		}
	}
}

func NewEthClient(client RPC, m metrics.RPCMetricer, opts ...EthClientOption) *EthClient {
	if m == nil {
		m = metrics.NoopRPCMetrics{}
	}
	s := &EthClient{client: client, metrics: m}
	s.headers, _ = lru.New[common.Hash, *types.Header](defaultHeaderCacheSize)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *EthClient) wait(ctx context.Context) error {
	if s.limiter == nil {
		return nil
	}
	return s.limiter.Wait(ctx)
}

func (s *EthClient) ChainID(ctx context.Context) (*big.Int, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	done := s.metrics.RecordRPCClientRequest("eth_chainId")
	id, err := s.client.ChainID(ctx)
	done(err)
	return id, err
}

func (s *EthClient) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	if err := s.wait(ctx); err != nil {
		return 0, err
	}
	done := s.metrics.RecordRPCClientRequest("eth_getTransactionCount")
	nonce, err := s.client.PendingNonceAt(ctx, account)
	done(err)
	return nonce, err
}

func (s *EthClient) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	if err := s.wait(ctx); err != nil {
		return err
	}
	done := s.metrics.RecordRPCClientRequest("eth_sendRawTransaction")
	err := s.client.SendTransaction(ctx, tx)
	done(err)
	return err
}

// TransactionReceipt does not count a missing receipt as an error.
func (s *EthClient) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	done := s.metrics.RecordRPCClientRequest("eth_getTransactionReceipt")
	receipt, err := s.client.TransactionReceipt(ctx, txHash)
	if errors.Is(err, ethereum.NotFound) {
		done(nil)
	} else {
		done(err)
	}
	return receipt, err
}

func (s *EthClient) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	done := s.metrics.RecordRPCClientRequest("eth_getBlockByNumber")
	h, err := s.client.HeaderByNumber(ctx, number)
	done(err)
	return h, err
}

// HeaderByHash serves repeated lookups of the same block from the cache.
func (s *EthClient) HeaderByHash(ctx context.Context, hash common.Hash) (*types.Header, error) {
	if s.headers != nil {
		if h, ok := s.headers.Get(hash); ok {
			return types.CopyHeader(h), nil
		}
	}
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	done := s.metrics.RecordRPCClientRequest("eth_getBlockByHash")
	h, err := s.client.HeaderByHash(ctx, hash)
	done(err)
	if err != nil {
		return nil, err
	}
	if s.headers != nil {
		s.headers.Add(hash, types.CopyHeader(h))
	}
	return h, nil
}

func (s *EthClient) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	done := s.metrics.RecordRPCClientRequest("eth_call")
	out, err := s.client.CallContract(ctx, msg, blockNumber)
	done(err)
	return out, err
}

func (s *EthClient) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	done := s.metrics.RecordRPCClientRequest("eth_getBalance")
	bal, err := s.client.BalanceAt(ctx, account, blockNumber)
	done(err)
	return bal, err
}

// Close closes the underlying client, if it can be closed.
func (s *EthClient) Close() {
	if c, ok := s.client.(interface{ Close() }); ok {
		c.Close()
	}
}
