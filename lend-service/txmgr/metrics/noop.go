package metrics

import (
	"sync/atomic"

	"github.com/ethereum/go-ethereum/core/types"
)

// TxMetricer records the outcome of transaction sends.
type TxMetricer interface {
	RecordNonce(uint64)
	TxPublished(reason string)
	TxConfirmed(*types.Receipt)
	RecordTxConfirmationLatency(int64)
	RPCError()
}

type NoopTxMetrics struct{}

func (*NoopTxMetrics) RecordNonce(uint64)                {}
func (*NoopTxMetrics) TxPublished(string)                {}
func (*NoopTxMetrics) TxConfirmed(*types.Receipt)        {}
func (*NoopTxMetrics) RecordTxConfirmationLatency(int64) {}
func (*NoopTxMetrics) RPCError()                         {}

var _ TxMetricer = (*NoopTxMetrics)(nil)

// FakeTxMetrics counts publishes and confirmations, for tests.
type FakeTxMetrics struct {
	NoopTxMetrics
	published atomic.Uint64
	confirmed atomic.Uint64
	reverted  atomic.Uint64
	rpcErrors atomic.Uint64
}

func (m *FakeTxMetrics) TxPublished(reason string) {
	if reason == "" {
		m.published.Add(1)
	}
}

func (m *FakeTxMetrics) TxConfirmed(r *types.Receipt) {
	if r.Status == types.ReceiptStatusSuccessful {
		m.confirmed.Add(1)
	} else {
		m.reverted.Add(1)
	}
}

func (m *FakeTxMetrics) RPCError() {
	m.rpcErrors.Add(1)
}

func (m *FakeTxMetrics) Published() uint64 { return m.published.Load() }
func (m *FakeTxMetrics) Confirmed() uint64 { return m.confirmed.Load() }
func (m *FakeTxMetrics) Reverted() uint64  { return m.reverted.Load() }
func (m *FakeTxMetrics) RPCErrors() uint64 { return m.rpcErrors.Load() }
