package deployer

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"

	"github.com/lendlord/lendlord-sim/lend-service/accounts"
	"github.com/lendlord/lendlord-sim/lend-service/artifacts"
	"github.com/lendlord/lendlord-sim/lend-service/contract"
	"github.com/lendlord/lendlord-sim/lend-service/txmgr"
)

// Deployment is a mined contract creation.
type Deployment struct {
	Handle  *contract.Handle
	TxHash  common.Hash
	Receipt *types.Receipt
}

func (d Deployment) Address() common.Address {
	return d.Handle.Address()
}

// Deployer creates contracts from artifacts, one at a time, and waits for each to be mined.
type Deployer struct {
	log     log.Logger
	txMgr   txmgr.TxManager
	builder *txmgr.Builder
}

func NewDeployer(l log.Logger, txMgr txmgr.TxManager, builder *txmgr.Builder) *Deployer {
	return &Deployer{log: l, txMgr: txMgr, builder: builder}
}

// Deploy sends the creation code of the artifact with the packed constructor args.
// Every error is fatal for the caller, there is no address to continue with.
func (d *Deployer) Deploy(ctx context.Context, from accounts.Account, artifact *artifacts.Artifact, args ...any) (Deployment, error) {
	if err := artifact.Deployable(); err != nil {
		return Deployment{}, err
	}
	ctorArgs, err := artifact.ABI.Pack("", args...)
	if err != nil {
		return Deployment{}, fmt.Errorf("%w: constructor of %s: %w", contract.ErrEncoding, artifact.Name, err)
	}
	code := make([]byte, 0, len(artifact.Bytecode)+len(ctorArgs))
	code = append(code, artifact.Bytecode...)
	code = append(code, ctorArgs...)

	l := d.log.New("contract", artifact.Name, "from", from)
	l.Info("Sending contract creation", "args", len(args), "codeSize", len(code))
	if len(ctorArgs) > 0 {
		l.Debug("Constructor arguments", "data", hexutil.Encode(ctorArgs))
	}

	res := d.txMgr.Submit(ctx, d.builder.Build(from.Address, nil, code, nil), from.Key)
	// a failed deployment keeps the hash of the transaction, if one was sent
	failed := Deployment{TxHash: res.Hash, Receipt: res.Receipt}
	if res.Err != nil {
		return failed, fmt.Errorf("failed to deploy %s (tx %s): %w", artifact.Name, res.Hash, res.Err)
	}
	addr := res.Receipt.ContractAddress
	if addr == (common.Address{}) {
		return failed, fmt.Errorf("deployment of %s returned no contract address", artifact.Name)
	}
	if res.Receipt.BlockNumber == nil {
		return failed, errors.New("deployment receipt has no block number")
	}
	if want := crypto.CreateAddress(from.Address, res.Nonce); want != addr {
		l.Warn("Deployed address differs from sender and nonce", "address", addr, "expected", want, "nonce", res.Nonce)
	}
	l.Info("Contract deployed", "address", addr, "tx", res.Hash, "block", res.Receipt.BlockNumber)
	return Deployment{
		Handle:  contract.NewHandle(artifact.Name, addr, artifact.ABI),
		TxHash:  res.Hash,
		Receipt: res.Receipt,
	}, nil
}
