package testutils

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// SentTx is a transaction accepted by the FakeChain, with its recovered sender.
type SentTx struct {
	From common.Address
	Tx   *types.Transaction
}

func (s SentTx) Selector() []byte {
	if len(s.Tx.Data()) < 4 {
		return nil
	}
	return s.Tx.Data()[:4]
}

// FakeChain is an in-memory chain that mines every accepted transaction in its own block.
// It implements the backend interfaces used by the transaction manager and contract invoker.
type FakeChain struct {
	mu sync.Mutex

	chainID *big.Int
	signer  types.Signer

	nonces   map[common.Address]uint64
	sent     []SentTx
	receipts map[common.Hash]*types.Receipt
	headers  []*types.Header
	balances map[common.Address]*big.Int
	polls    map[common.Hash]int

	hashLookups int

	// BlockTime is the number of seconds between mined blocks.
	BlockTime uint64
	// TimeStep advances the chain time every time the latest header is queried.
	// Zero keeps the chain time still.
	TimeStep uint64
	// ReceiptDelay is the number of receipt queries that report NotFound before a receipt is returned.
	ReceiptDelay int

	// RevertIf marks a mined transaction as failed.
	RevertIf func(from common.Address, tx *types.Transaction) bool
	// SendErr makes the node reject a transaction.
	SendErr func(from common.Address, tx *types.Transaction) error
	// CallFn serves read-only calls.
	CallFn func(msg ethereum.CallMsg) ([]byte, error)
	// NonceErr makes nonce queries fail.
	NonceErr error
}

func NewFakeChain(chainID uint64, genesisTime uint64) *FakeChain {
	id := new(big.Int).SetUint64(chainID)
	return &FakeChain{
		chainID:   id,
		signer:    types.LatestSignerForChainID(id),
		nonces:    make(map[common.Address]uint64),
		receipts:  make(map[common.Hash]*types.Receipt),
		headers:   []*types.Header{{Number: new(big.Int), Time: genesisTime}},
		balances:  make(map[common.Address]*big.Int),
		polls:     make(map[common.Hash]int),
		BlockTime: 1,
	}
}

func (f *FakeChain) ChainID(ctx context.Context) (*big.Int, error) {
	return new(big.Int).Set(f.chainID), nil
}

func (f *FakeChain) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.NonceErr != nil {
		return 0, f.NonceErr
	}
	return f.nonces[account], nil
}

func (f *FakeChain) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	from, err := types.Sender(f.signer, tx)
	if err != nil {
		return fmt.Errorf("invalid sender: %w", err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SendErr != nil {
		if err := f.SendErr(from, tx); err != nil {
			return err
		}
	}
	if want := f.nonces[from]; tx.Nonce() != want {
		return fmt.Errorf("nonce mismatch for %s: got %d, want %d", from, tx.Nonce(), want)
	}
	f.nonces[from]++
	f.sent = append(f.sent, SentTx{From: from, Tx: tx})

	parent := f.headers[len(f.headers)-1]
	header := &types.Header{
		ParentHash: parent.Hash(),
		Number:     new(big.Int).Add(parent.Number, common.Big1),
		Time:       parent.Time + f.BlockTime,
	}
	f.headers = append(f.headers, header)

	receipt := &types.Receipt{
		Type:              tx.Type(),
		Status:            types.ReceiptStatusSuccessful,
		CumulativeGasUsed: 21_000,
		GasUsed:           21_000,
		TxHash:            tx.Hash(),
		BlockHash:         header.Hash(),
		BlockNumber:       header.Number,
	}
	if f.RevertIf != nil && f.RevertIf(from, tx) {
		receipt.Status = types.ReceiptStatusFailed
	} else {
		if tx.To() == nil {
			receipt.ContractAddress = crypto.CreateAddress(from, tx.Nonce())
		} else if tx.Value().Sign() > 0 {
			bal := f.balanceLocked(*tx.To())
			f.balances[*tx.To()] = bal.Add(bal, tx.Value())
		}
	}
	f.receipts[tx.Hash()] = receipt
	return nil
}

func (f *FakeChain) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.receipts[txHash]
	if !ok {
		return nil, ethereum.NotFound
	}
	if f.polls[txHash] < f.ReceiptDelay {
		f.polls[txHash]++
		return nil, ethereum.NotFound
	}
	return r, nil
}

func (f *FakeChain) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if number == nil {
		latest := f.headers[len(f.headers)-1]
		if f.TimeStep > 0 {
			next := &types.Header{
				ParentHash: latest.Hash(),
				Number:     new(big.Int).Add(latest.Number, common.Big1),
				Time:       latest.Time + f.TimeStep,
			}
			f.headers = append(f.headers, next)
		}
		return types.CopyHeader(latest), nil
	}
	if !number.IsUint64() || number.Uint64() >= uint64(len(f.headers)) {
		return nil, ethereum.NotFound
	}
	return types.CopyHeader(f.headers[number.Uint64()]), nil
}

func (f *FakeChain) HeaderByHash(ctx context.Context, hash common.Hash) (*types.Header, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hashLookups++
	for _, h := range f.headers {
		if h.Hash() == hash {
			return types.CopyHeader(h), nil
		}
	}
	return nil, ethereum.NotFound
}

// HashLookups returns how often HeaderByHash reached the chain.
func (f *FakeChain) HashLookups() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hashLookups
}

func (f *FakeChain) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	if f.CallFn == nil {
		return nil, errors.New("no contract call handler")
	}
	return f.CallFn(msg)
}

func (f *FakeChain) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return new(big.Int).Set(f.balanceLocked(account)), nil
}

func (f *FakeChain) balanceLocked(account common.Address) *big.Int {
	bal, ok := f.balances[account]
	if !ok {
		bal = new(big.Int)
		f.balances[account] = bal
	}
	return bal
}

// SetBalance sets the balance that BalanceAt reports for account.
func (f *FakeChain) SetBalance(account common.Address, wei *big.Int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balances[account] = new(big.Int).Set(wei)
}

// Sent returns the accepted transactions in submission order.
func (f *FakeChain) Sent() []SentTx {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]SentTx, len(f.sent))
	copy(out, f.sent)
	return out
}

// Receipt returns the receipt of a mined transaction, ignoring ReceiptDelay.
func (f *FakeChain) Receipt(txHash common.Hash) *types.Receipt {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.receipts[txHash]
}

// Latest returns the latest header without advancing time.
func (f *FakeChain) Latest() *types.Header {
	f.mu.Lock()
	defer f.mu.Unlock()
	return types.CopyHeader(f.headers[len(f.headers)-1])
}
