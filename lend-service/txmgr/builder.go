package txmgr

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/params"
)

const DefaultGasLimit uint64 = 6_000_000

// DefaultGasPrice is accepted by test networks, it is not a market estimate.
var DefaultGasPrice = big.NewInt(2 * params.GWei)

// TxCandidate is a transaction candidate that can be submitted to ask the
// TxManager to construct a transaction with gas price bounds.
type TxCandidate struct {
	// From is the account that signs the transaction.
	From common.Address
	// To is the recipient of the constructed tx. Nil means contract creation.
	To *common.Address
	// TxData is the transaction calldata, or creation code when To is nil.
	TxData []byte
	// Value is the value to send with the transaction, in wei.
	Value *big.Int
	// GasLimit is the gas limit to use for the transaction.
	GasLimit uint64
	// GasPrice is the legacy gas price, in wei.
	GasPrice *big.Int
}

// IsCreation reports whether the candidate deploys a contract.
func (c TxCandidate) IsCreation() bool {
	return c.To == nil
}

// Builder turns call data into transaction candidates with fixed gas parameters.
// The gas parameters never depend on the call: every candidate carries the same limit and price.
type Builder struct {
	gasLimit uint64
	gasPrice *big.Int
}

type BuilderOption func(b *Builder)

func WithGasLimit(limit uint64) BuilderOption {
	return func(b *Builder) {
		if limit > 0 {
			b.gasLimit = limit
		}
	}
}

func WithGasPrice(price *big.Int) BuilderOption {
	return func(b *Builder) {
		if price != nil && price.Sign() > 0 {
			b.gasPrice = new(big.Int).Set(price)
		}
	}
}

func NewBuilder(opts ...BuilderOption) *Builder {
	b := &Builder{
		gasLimit: DefaultGasLimit,
		gasPrice: new(big.Int).Set(DefaultGasPrice),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build creates a candidate from sender, optional recipient, call data and value.
// It does not validate anything, a nil value is sent as zero.
func (b *Builder) Build(from common.Address, to *common.Address, data []byte, value *big.Int) TxCandidate {
	v := new(big.Int)
	if value != nil {
		v.Set(value)
	}
	var recipient *common.Address
	if to != nil {
		addr := *to
		recipient = &addr
	}
	return TxCandidate{
		From:     from,
		To:       recipient,
		TxData:   common.CopyBytes(data),
		Value:    v,
		GasLimit: b.gasLimit,
		GasPrice: new(big.Int).Set(b.gasPrice),
	}
}

func (b *Builder) GasLimit() uint64 {
	return b.gasLimit
}

func (b *Builder) GasPrice() *big.Int {
	return new(big.Int).Set(b.gasPrice)
}
