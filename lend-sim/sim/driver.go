package sim

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"

	"github.com/lendlord/lendlord-sim/lend-service/accounts"
	"github.com/lendlord/lendlord-sim/lend-service/artifacts"
	"github.com/lendlord/lendlord-sim/lend-service/contract"
	"github.com/lendlord/lendlord-sim/lend-service/deployer"
	"github.com/lendlord/lendlord-sim/lend-service/eth"
	"github.com/lendlord/lendlord-sim/lend-service/tasks"
	"github.com/lendlord/lendlord-sim/lend-sim/metrics"
)

// Step names, as they appear in the report and the step metrics.
const (
	StepDeployToken   = "deploy-token"
	StepDeployLending = "deploy-lending"
	StepBorrowA       = "borrow-a"
	StepBorrowB       = "borrow-b"
	StepBorrowC       = "borrow-c"
	StepReturnB       = "return-b"
	StepWaitB         = "wait-b"
	StepWithdrawEthB  = "withdraw-eth-b"
	StepReclaim1      = "reclaim-1"
	StepWaitA         = "wait-a"
	StepReclaim2      = "reclaim-2"
)

// Constructor arguments of the lending contract, followed by the token address.
var lendingConstructorArgs = []int64{0, 7, 2, 10}

type borrow struct {
	step    string
	role    accounts.Role
	minutes uint64
	value   eth.ETH
}

var borrows = []borrow{
	{step: StepBorrowA, role: accounts.RoleBorrowerA, minutes: 3, value: eth.MustParseEther("0.001")},
	{step: StepBorrowB, role: accounts.RoleBorrowerB, minutes: 1, value: eth.MustParseEther("0.005")},
	{step: StepBorrowC, role: accounts.RoleBorrowerC, minutes: 0, value: eth.MustParseEther("0.004")},
}

// ChainReader is the read access the driver needs besides contract calls.
type ChainReader interface {
	tasks.HeaderSource
	BalanceReader
	HeaderByHash(ctx context.Context, hash common.Hash) (*types.Header, error)
}

type DriverConfig struct {
	// Poll bounds every wait of the script.
	Poll tasks.PollConfig
	// Now is the wall clock. Nil uses time.Now.
	Now func() time.Time
}

type Addresses struct {
	Token   common.Address
	Lending common.Address
}

// Driver deploys the contracts and runs the lending scenario against them.
type Driver struct {
	log      log.Logger
	cfg      DriverConfig
	book     *accounts.Book
	invoker  *contract.Invoker
	deployer *deployer.Deployer
	chain    ChainReader
	metrics  metrics.Metricer

	token   *artifacts.Artifact
	lending *artifacts.Artifact

	detached *tasks.Group
	report   *Report
}

type DriverDeps struct {
	Book     *accounts.Book
	Invoker  *contract.Invoker
	Deployer *deployer.Deployer
	Chain    ChainReader
	Metrics  metrics.Metricer

	// TokenArtifact is only needed to deploy.
	TokenArtifact   *artifacts.Artifact
	LendingArtifact *artifacts.Artifact
}

func NewDriver(l log.Logger, cfg DriverConfig, deps DriverDeps) (*Driver, error) {
	if deps.Book == nil || deps.Invoker == nil || deps.Chain == nil {
		return nil, errors.New("driver needs accounts, an invoker and a chain reader")
	}
	if deps.LendingArtifact == nil {
		return nil, errors.New("lending artifact is required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	m := deps.Metrics
	if m == nil {
		m = metrics.NoopMetrics
	}
	return &Driver{
		log:      l,
		cfg:      cfg,
		book:     deps.Book,
		invoker:  deps.Invoker,
		deployer: deps.Deployer,
		chain:    deps.Chain,
		metrics:  m,
		token:    deps.TokenArtifact,
		lending:  deps.LendingArtifact,
		detached: tasks.NewGroup(l),
		report:   new(Report),
	}, nil
}

func (d *Driver) Report() *Report {
	return d.report
}

// Deploy deploys the token, then the lending contract bound to the token, both from the admin account.
func (d *Driver) Deploy(ctx context.Context) (Addresses, error) {
	if d.deployer == nil || d.token == nil {
		return Addresses{}, errors.New("driver is not configured to deploy")
	}
	admin, err := d.book.Get(accounts.RoleAdmin)
	if err != nil {
		return Addresses{}, err
	}
	token, err := d.deploy(ctx, StepDeployToken, admin, d.token)
	if err != nil {
		return Addresses{}, err
	}

	args := make([]any, 0, len(lendingConstructorArgs)+1)
	for _, v := range lendingConstructorArgs {
		args = append(args, big.NewInt(v))
	}
	args = append(args, token.Address())
	lending, err := d.deploy(ctx, StepDeployLending, admin, d.lending, args...)
	if err != nil {
		return Addresses{}, err
	}
	addrs := Addresses{Token: token.Address(), Lending: lending.Address()}
	d.log.Info("Contracts deployed", "token", addrs.Token, "lending", addrs.Lending)
	return addrs, nil
}

func (d *Driver) deploy(ctx context.Context, step string, from accounts.Account, artifact *artifacts.Artifact, args ...any) (deployer.Deployment, error) {
	d.log.Info("Deploying contract", "contract", artifact.Name)
	dep, err := d.deployer.Deploy(ctx, from, artifact, args...)
	d.metrics.RecordStep(step, err)
	res := StepResult{Step: step, Role: from.Role, Method: "create " + artifact.Name, Hash: dep.TxHash, Err: err}
	d.report.Add(res)
	if err != nil {
		return deployer.Deployment{}, fmt.Errorf("%s: %w", step, err)
	}
	d.metrics.RecordDeployment(artifact.Name)
	d.log.Info("Deploying contract finished", "contract", artifact.Name, "address", dep.Address())
	return dep, nil
}

// Simulate runs the lending scenario against the lending contract at addr.
// A failed step is recorded and the script continues. Only encoding errors,
// missing accounts and cancellation stop it.
// The two reclaims are started detached, Wait joins them.
func (d *Driver) Simulate(ctx context.Context, addr common.Address) error {
	accs, err := d.accounts()
	if err != nil {
		return err
	}
	lending := NewLending(contract.NewHandle(d.lending.Name, addr, d.lending.ABI), d.invoker)
	d.log.Info("Simulating lending", "lending", addr)

	borrowed := make(map[string]contract.Result, len(borrows))
	for _, b := range borrows {
		res, err := lending.BorrowTokens(ctx, accs[b.role], b.minutes, b.value.ToBig())
		if err != nil {
			return err
		}
		d.record(b.step, res)
		borrowed[b.step] = res
	}

	res, err := lending.ReturnTokens(ctx, accs[accounts.RoleBorrowerB])
	if err != nil {
		return err
	}
	d.record(StepReturnB, res)

	if err := d.waitElapsed(ctx, StepWaitB, borrowed[StepBorrowB], time.Minute); err != nil {
		return err
	}

	res, err = lending.WithdrawEth(ctx, accs[accounts.RoleBorrowerB])
	if err != nil {
		return err
	}
	d.record(StepWithdrawEthB, res)

	reclaimer := NewReclaimer(d.log.New("role", accounts.RoleAdmin), lending, accs[accounts.RoleAdmin], d.chain, d.metrics)
	d.reclaimDetached(ctx, StepReclaim1, reclaimer)

	if err := d.waitElapsed(ctx, StepWaitA, borrowed[StepBorrowA], 3*time.Minute); err != nil {
		return err
	}

	d.reclaimDetached(ctx, StepReclaim2, reclaimer)
	return nil
}

// Wait blocks until the detached reclaims finished and returns their failures.
func (d *Driver) Wait() error {
	return d.detached.Wait()
}

func (d *Driver) accounts() (map[accounts.Role]accounts.Account, error) {
	out := make(map[accounts.Role]accounts.Account, len(accounts.Roles))
	for _, role := range accounts.Roles {
		acc, err := d.book.Get(role)
		if err != nil {
			return nil, err
		}
		out[role] = acc
	}
	return out, nil
}

func (d *Driver) record(step string, res contract.Result) {
	d.report.Add(stepFromResult(step, res))
	d.metrics.RecordStep(step, res.Err)
}

// waitElapsed waits until delay passed since the block that included since.
// Without that block the wait is on the wall clock, starting now.
// An unmet wait is recorded and the script continues.
func (d *Driver) waitElapsed(ctx context.Context, step string, since contract.Result, delay time.Duration) error {
	cond, target := d.elapsedCondition(ctx, since, delay)
	l := d.log.New("step", step, "target", target)
	l.Info("Waiting for borrow duration to elapse", "delay", delay)

	err := tasks.PollUntil(ctx, d.cfg.Poll, cond)
	d.report.Add(StepResult{Step: step, Role: since.Role, Method: "wait " + delay.String(), Err: err})
	d.metrics.RecordStep(step, err)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s: %w", step, ctxErr)
	}
	if err != nil {
		l.Warn("Wait ended before the target time, continuing", "err", err)
	} else {
		l.Info("Wait complete")
	}
	return nil
}

func (d *Driver) elapsedCondition(ctx context.Context, since contract.Result, delay time.Duration) (tasks.Condition, uint64) {
	secs := uint64(delay / time.Second)
	if since.Receipt != nil && since.Receipt.BlockHash != (common.Hash{}) {
		header, err := d.chain.HeaderByHash(ctx, since.Receipt.BlockHash)
		if err == nil {
			target := header.Time + secs
			// A dev node that only mines on demand never moves its clock while idle.
			return tasks.AnyOf(
				tasks.ChainTimeReached(d.chain, target),
				tasks.WallClockReached(target, d.cfg.Now),
			), target
		}
		d.log.Warn("Failed to read block of the awaited transaction, using the wall clock", "block", since.Receipt.BlockHash, "err", err)
	}
	target := uint64(d.cfg.Now().Unix()) + secs
	return tasks.WallClockReached(target, d.cfg.Now), target
}

func (d *Driver) reclaimDetached(ctx context.Context, step string, r *Reclaimer) {
	d.log.Info("Starting detached reclaim", "step", step)
	d.detached.Go(step, func() error {
		res, err := r.Reclaim(ctx)
		if res.SetBound.Method != "" {
			d.addDetached(step+"/set-bound", res.SetBound)
		}
		if res.Withdraw.Method != "" {
			d.addDetached(step+"/withdraw", res.Withdraw)
		}
		if err == nil {
			err = res.Err()
		} else {
			method := MethodCalculateOverdraft
			if res.SetBound.Method != "" {
				method = MethodWithdrawOverdraftContractEth
			}
			d.report.Add(StepResult{Step: step, Role: accounts.RoleAdmin, Method: method, Err: err, Detached: true})
		}
		d.metrics.RecordStep(step, err)
		return err
	})
}

func (d *Driver) addDetached(step string, res contract.Result) {
	s := stepFromResult(step, res)
	s.Detached = true
	d.report.Add(s)
}
