package sim

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"

	"github.com/lendlord/lendlord-sim/lend-service/accounts"
	"github.com/lendlord/lendlord-sim/lend-service/contract"
	"github.com/lendlord/lendlord-sim/lend-service/eth"
	"github.com/lendlord/lendlord-sim/lend-sim/metrics"
)

type BalanceReader interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

// Reclaim is the outcome of one overdraft sweep.
type Reclaim struct {
	Overdraft Overdraft
	// Amount is the overdraft in ether, as logged and withdrawn.
	Amount   string
	SetBound contract.Result
	Withdraw contract.Result
}

// Err joins the failures of both writes.
func (r Reclaim) Err() error {
	return errors.Join(r.SetBound.Err, r.Withdraw.Err)
}

// Reclaimer sweeps overdrafted positions of the lending contract as the admin.
type Reclaimer struct {
	log      log.Logger
	lending  *Lending
	admin    accounts.Account
	balances BalanceReader
	metrics  metrics.Metricer
}

func NewReclaimer(l log.Logger, lending *Lending, admin accounts.Account, balances BalanceReader, m metrics.Metricer) *Reclaimer {
	if m == nil {
		m = metrics.NoopMetrics
	}
	return &Reclaimer{
		log:      l,
		lending:  lending,
		admin:    admin,
		balances: balances,
		metrics:  m,
	}
}

// Reclaim reads the current overdraft, sets the timestamp lower bound it was
// computed against, then withdraws the amount. The writes are sequential and
// both are issued even for a zero overdraft.
// The returned error is set when the read or the encoding of a write failed;
// failed writes are reported in the result.
func (r *Reclaimer) Reclaim(ctx context.Context) (Reclaim, error) {
	r.logBalance(ctx, "Lending balance before reclaim")

	od, err := r.lending.CalculateOverdraft(ctx, r.admin.Address)
	if err != nil {
		return Reclaim{}, fmt.Errorf("failed to calculate overdraft: %w", err)
	}
	amount := eth.FormatUnits(od.Amount, eth.EtherDecimals)
	r.log.Info("Calculated overdraft", "amount", amount, "timestampLowerBound", od.TimestampLowerBound)
	if od.Amount.Sign() == 0 {
		r.log.Warn("Overdraft is zero, withdrawing anyway")
	}
	r.metrics.RecordOverdraft(eth.WeiBig(od.Amount))

	wei, err := eth.ParseUnits(amount, eth.EtherDecimals)
	if err != nil {
		return Reclaim{}, fmt.Errorf("failed to convert overdraft %s: %w", amount, err)
	}

	res := Reclaim{Overdraft: od, Amount: amount}
	res.SetBound, err = r.lending.SetTimestampLowerBound(ctx, r.admin, od.TimestampLowerBound)
	if err != nil {
		return res, err
	}
	res.Withdraw, err = r.lending.WithdrawOverdraftContractEth(ctx, r.admin, wei)
	if err != nil {
		return res, err
	}

	r.logBalance(ctx, "Lending balance after reclaim")
	return res, nil
}

func (r *Reclaimer) logBalance(ctx context.Context, msg string) {
	if r.balances == nil {
		return
	}
	bal, err := r.balances.BalanceAt(ctx, r.lending.Address(), nil)
	if err != nil {
		r.log.Warn("Failed to read lending balance", "err", err)
		return
	}
	balance := eth.WeiBig(bal)
	r.metrics.RecordContractBalance(balance)
	r.log.Info(msg, "balance", balance)
}
