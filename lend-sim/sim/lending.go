package sim

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/lendlord/lendlord-sim/lend-service/accounts"
	"github.com/lendlord/lendlord-sim/lend-service/contract"
)

const (
	MethodBorrowTokens                 = "borrowTokens"
	MethodReturnTokens                 = "returnTokens"
	MethodWithdrawEth                  = "withdrawEth"
	MethodCalculateOverdraft           = "calculateOverdraft"
	MethodSetTimestampLowerBound       = "setTimestampLowerBound"
	MethodWithdrawOverdraftContractEth = "withdrawOverdraftContractEth"
)

// Overdraft is the result of calculateOverdraft: the reclaimable amount in wei
// and the timestamp lower bound it was computed against.
type Overdraft struct {
	Amount              *big.Int
	TimestampLowerBound *big.Int
}

// Lending binds the lending contract methods used by the simulation.
type Lending struct {
	handle  *contract.Handle
	invoker *contract.Invoker
}

func NewLending(h *contract.Handle, invoker *contract.Invoker) *Lending {
	return &Lending{handle: h, invoker: invoker}
}

func (l *Lending) Address() common.Address {
	return l.handle.Address()
}

// BorrowTokens deposits value as collateral for a loan of durationMinutes.
func (l *Lending) BorrowTokens(ctx context.Context, from accounts.Account, durationMinutes uint64, value *big.Int) (contract.Result, error) {
	return l.invoker.Invoke(ctx, l.handle, MethodBorrowTokens, from, value, new(big.Int).SetUint64(durationMinutes))
}

func (l *Lending) ReturnTokens(ctx context.Context, from accounts.Account) (contract.Result, error) {
	return l.invoker.Invoke(ctx, l.handle, MethodReturnTokens, from, nil)
}

func (l *Lending) WithdrawEth(ctx context.Context, from accounts.Account) (contract.Result, error) {
	return l.invoker.Invoke(ctx, l.handle, MethodWithdrawEth, from, nil)
}

func (l *Lending) SetTimestampLowerBound(ctx context.Context, from accounts.Account, ts *big.Int) (contract.Result, error) {
	return l.invoker.Invoke(ctx, l.handle, MethodSetTimestampLowerBound, from, nil, ts)
}

func (l *Lending) WithdrawOverdraftContractEth(ctx context.Context, from accounts.Account, amount *big.Int) (contract.Result, error) {
	return l.invoker.Invoke(ctx, l.handle, MethodWithdrawOverdraftContractEth, from, nil, amount)
}

// CalculateOverdraft reads the current overdraft as seen by from.
func (l *Lending) CalculateOverdraft(ctx context.Context, from common.Address) (Overdraft, error) {
	out, err := l.invoker.Call(ctx, l.handle, MethodCalculateOverdraft, from)
	if err != nil {
		return Overdraft{}, err
	}
	if len(out) != 2 {
		return Overdraft{}, fmt.Errorf("%s returned %d values, expected 2", MethodCalculateOverdraft, len(out))
	}
	amount, ok := out[0].(*big.Int)
	if !ok {
		return Overdraft{}, fmt.Errorf("unexpected overdraft amount type %T", out[0])
	}
	bound, ok := out[1].(*big.Int)
	if !ok {
		return Overdraft{}, fmt.Errorf("unexpected timestamp lower bound type %T", out[1])
	}
	return Overdraft{Amount: amount, TimestampLowerBound: bound}, nil
}
