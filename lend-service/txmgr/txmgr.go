package txmgr

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"

	"github.com/lendlord/lendlord-sim/lend-service/txmgr/metrics"
)

var (
	// ErrTxReverted is returned when a transaction was mined with a failed status.
	ErrTxReverted = errors.New("transaction reverted")
	// ErrKeyMismatch is returned when the signing key does not belong to the candidate sender.
	ErrKeyMismatch = errors.New("signing key does not match sender")
)

// ETHBackend is the set of methods that the transaction manager uses to send
// transactions and wait for them to be mined.
type ETHBackend interface {
	ChainID(ctx context.Context) (*big.Int, error)

	// PendingNonceAt returns the pending nonce, the node is the only source of nonces.
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)

	// SendTransaction submits a signed transaction to the node.
	SendTransaction(ctx context.Context, tx *types.Transaction) error

	// TransactionReceipt queries the backend for a receipt associated with
	// txHash. If lookup does not fail, but the transaction is not found,
	// nil should be returned for both values.
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)

	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
}

// TxResult is the outcome of a single submitted transaction.
// Hash is set as soon as the transaction was signed, also when it later failed.
type TxResult struct {
	Hash    common.Hash
	Nonce   uint64
	Receipt *types.Receipt
	Err     error
}

func (r TxResult) Failed() bool {
	return r.Err != nil
}

// TxManager signs and submits transaction candidates.
type TxManager interface {
	// Send signs the candidate with key, publishes it and blocks until it is mined.
	// A reverted transaction returns its receipt together with ErrTxReverted.
	Send(ctx context.Context, candidate TxCandidate, key *ecdsa.PrivateKey) (*types.Receipt, error)

	// Submit is like Send, but never returns an error: failures are captured in the result.
	Submit(ctx context.Context, candidate TxCandidate, key *ecdsa.PrivateKey) TxResult

	ChainID() *big.Int
}

// SimpleTxManager is an implementation of TxManager that sends every candidate
// exactly once, with the gas parameters carried by the candidate.
type SimpleTxManager struct {
	cfg     Config
	name    string
	chainID *big.Int
	signer  types.Signer

	backend ETHBackend
	l       log.Logger
	metr    metrics.TxMetricer

	// senders holds one lock per sending account
	sendersMu sync.Mutex
	senders   map[common.Address]*sync.Mutex
}

var _ TxManager = (*SimpleTxManager)(nil)

// NewSimpleTxManager queries the chain ID of the backend and returns a manager bound to that chain.
func NewSimpleTxManager(ctx context.Context, name string, l log.Logger, m metrics.TxMetricer, backend ETHBackend, cfg Config) (*SimpleTxManager, error) {
	if cfg.ReceiptQueryInterval <= 0 {
		return nil, errors.New("receipt query interval must be greater than 0")
	}
	if cfg.GasPrice == nil {
		cfg.GasPrice = new(big.Int).Set(DefaultGasPrice)
	}
	if m == nil {
		m = &metrics.NoopTxMetrics{}
	}
	chainID, err := backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query chain ID: %w", err)
	}
	return &SimpleTxManager{
		cfg:     cfg,
		name:    name,
		chainID: chainID,
		signer:  types.NewEIP155Signer(chainID),
		backend: backend,
		l:       l.New("service", name),
		metr:    m,
		senders: make(map[common.Address]*sync.Mutex),
	}, nil
}

func (m *SimpleTxManager) ChainID() *big.Int {
	return new(big.Int).Set(m.chainID)
}

func (m *SimpleTxManager) Send(ctx context.Context, candidate TxCandidate, key *ecdsa.PrivateKey) (*types.Receipt, error) {
	res := m.send(ctx, candidate, key)
	return res.Receipt, res.Err
}

func (m *SimpleTxManager) Submit(ctx context.Context, candidate TxCandidate, key *ecdsa.PrivateKey) TxResult {
	res := m.send(ctx, candidate, key)
	if res.Err != nil {
		m.l.Error("Transaction failed", "from", candidate.From, "tx", res.Hash, "err", res.Err)
	}
	return res
}

func (m *SimpleTxManager) send(ctx context.Context, candidate TxCandidate, key *ecdsa.PrivateKey) TxResult {
	if m.cfg.NetworkTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.cfg.NetworkTimeout)
		defer cancel()
	}
	tx, err := m.publish(ctx, candidate, key)
	if tx == nil {
		return TxResult{Err: err}
	}
	if err != nil {
		return TxResult{Hash: tx.Hash(), Nonce: tx.Nonce(), Err: err}
	}
	receipt, err := m.waitMined(ctx, tx)
	return TxResult{Hash: tx.Hash(), Nonce: tx.Nonce(), Receipt: receipt, Err: err}
}

func (m *SimpleTxManager) senderLock(addr common.Address) *sync.Mutex {
	m.sendersMu.Lock()
	defer m.sendersMu.Unlock()
	mu, ok := m.senders[addr]
	if !ok {
		mu = new(sync.Mutex)
		m.senders[addr] = mu
	}
	return mu
}

// publish signs the candidate with a fresh pending nonce and hands it to the node.
// A transaction the node rejected is returned together with the error.
// The sender lock is held until the node accepted the transaction,
// so that concurrent sends from one account observe each other's nonces.
func (m *SimpleTxManager) publish(ctx context.Context, candidate TxCandidate, key *ecdsa.PrivateKey) (*types.Transaction, error) {
	if key == nil {
		return nil, fmt.Errorf("%w: no key for %s", ErrKeyMismatch, candidate.From)
	}
	if signer := crypto.PubkeyToAddress(key.PublicKey); signer != candidate.From {
		return nil, fmt.Errorf("%w: key of %s used for %s", ErrKeyMismatch, signer, candidate.From)
	}

	mu := m.senderLock(candidate.From)
	mu.Lock()
	defer mu.Unlock()

	nonce, err := m.backend.PendingNonceAt(ctx, candidate.From)
	if err != nil {
		m.metr.RPCError()
		return nil, fmt.Errorf("failed to get nonce: %w", err)
	}
	m.metr.RecordNonce(nonce)

	gasPrice := candidate.GasPrice
	if gasPrice == nil {
		gasPrice = m.cfg.GasPrice
	}
	gasLimit := candidate.GasLimit
	if gasLimit == 0 {
		gasLimit = m.cfg.GasLimit
	}
	value := candidate.Value
	if value == nil {
		value = new(big.Int)
	}
	tx, err := types.SignNewTx(key, m.signer, &types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gasLimit,
		To:       candidate.To,
		Value:    value,
		Data:     candidate.TxData,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}

	l := m.l.New("tx", tx.Hash(), "nonce", nonce, "from", candidate.From)
	if candidate.To != nil {
		l = l.New("to", *candidate.To)
	}
	l.Info("Publishing transaction", "gasPrice", gasPrice, "gasLimit", gasLimit, "value", value)
	if err := m.backend.SendTransaction(ctx, tx); err != nil {
		m.metr.TxPublished("send_error")
		return tx, fmt.Errorf("failed to publish transaction %s: %w", tx.Hash(), err)
	}
	m.metr.TxPublished("")
	l.Info("Transaction successfully published")
	return tx, nil
}

// waitMined polls for the receipt of tx until it is available or ctx is done.
func (m *SimpleTxManager) waitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	start := time.Now()
	ticker := time.NewTicker(m.cfg.ReceiptQueryInterval)
	defer ticker.Stop()

	txHash := tx.Hash()
	for {
		receipt, err := m.backend.TransactionReceipt(ctx, txHash)
		switch {
		case receipt != nil:
			m.metr.TxConfirmed(receipt)
			m.metr.RecordTxConfirmationLatency(time.Since(start).Milliseconds())
			if receipt.Status != types.ReceiptStatusSuccessful {
				m.l.Warn("Transaction reverted", "tx", txHash, "block", receipt.BlockNumber, "gasUsed", receipt.GasUsed)
				return receipt, fmt.Errorf("%w: %s", ErrTxReverted, txHash)
			}
			m.l.Info("Transaction confirmed", "tx", txHash, "block", receipt.BlockNumber, "gasUsed", receipt.GasUsed)
			return receipt, nil
		case errors.Is(err, ethereum.NotFound), err == nil:
			m.l.Trace("Transaction not yet mined", "tx", txHash)
		default:
			m.metr.RPCError()
			m.l.Info("Receipt retrieval failed", "tx", txHash, "err", err)
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for receipt of %s: %w", txHash, ctx.Err())
		case <-ticker.C:
		}
	}
}
