package contract

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"

	"github.com/lendlord/lendlord-sim/lend-service/accounts"
	"github.com/lendlord/lendlord-sim/lend-service/eth"
	"github.com/lendlord/lendlord-sim/lend-service/txmgr"
)

// Caller executes read-only calls against the latest block.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

type Metricer interface {
	RecordInvocation(contract, method string) (onDone func(err error))
}

type NoopMetrics struct{}

func (NoopMetrics) RecordInvocation(string, string) func(error) {
	return func(error) {}
}

// Result is the outcome of a state-changing contract call.
type Result struct {
	Contract string
	Method   string
	From     common.Address
	Role     accounts.Role
	txmgr.TxResult
}

// Invoker turns method calls on a contract handle into signed transactions.
type Invoker struct {
	log     log.Logger
	txMgr   txmgr.TxManager
	builder *txmgr.Builder
	caller  Caller
	metrics Metricer
}

func NewInvoker(l log.Logger, txMgr txmgr.TxManager, builder *txmgr.Builder, caller Caller, m Metricer) *Invoker {
	if m == nil {
		m = NoopMetrics{}
	}
	return &Invoker{
		log:     l,
		txMgr:   txMgr,
		builder: builder,
		caller:  caller,
		metrics: m,
	}
}

// Invoke sends method(args...) to the contract from the account, with value attached.
// Only an encoding failure is returned as error. Failures to sign, submit or mine
// are logged and recorded in the result.
func (i *Invoker) Invoke(ctx context.Context, h *Handle, method string, from accounts.Account, value *big.Int, args ...any) (Result, error) {
	data, err := h.Pack(method, args...)
	if err != nil {
		return Result{}, err
	}
	l := i.log.New("contract", h.Name(), "method", method, "from", from)
	attached := eth.ZeroWei
	if value != nil {
		attached = eth.WeiBig(value)
	}
	l.Info(fmt.Sprintf("performing %s", method), "value", attached)

	onDone := i.metrics.RecordInvocation(h.Name(), method)
	to := h.Address()
	res := i.txMgr.Submit(ctx, i.builder.Build(from.Address, &to, data, value), from.Key)
	onDone(res.Err)

	if res.Err != nil {
		l.Error(fmt.Sprintf("%s failed", method), "tx", res.Hash, "err", res.Err)
	} else {
		l.Info(fmt.Sprintf("%s mined", method), "tx", res.Hash, "block", res.Receipt.BlockNumber)
	}
	return Result{
		Contract: h.Name(),
		Method:   method,
		From:     from.Address,
		Role:     from.Role,
		TxResult: res,
	}, nil
}

// Call executes method(args...) read-only as from, at the latest block, and decodes the result.
func (i *Invoker) Call(ctx context.Context, h *Handle, method string, from common.Address, args ...any) ([]any, error) {
	data, err := h.Pack(method, args...)
	if err != nil {
		return nil, err
	}
	to := h.Address()
	out, err := i.caller.CallContract(ctx, ethereum.CallMsg{From: from, To: &to, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s.%s failed: %w", h.Name(), method, err)
	}
	return h.Unpack(method, out)
}
