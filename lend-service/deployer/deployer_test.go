package deployer

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"

	"github.com/lendlord/lendlord-sim/lend-service/accounts"
	"github.com/lendlord/lendlord-sim/lend-service/artifacts"
	"github.com/lendlord/lendlord-sim/lend-service/contract"
	"github.com/lendlord/lendlord-sim/lend-service/testlog"
	"github.com/lendlord/lendlord-sim/lend-service/testutils"
	"github.com/lendlord/lendlord-sim/lend-service/txmgr"
)

const lendingArtifact = `{"contractName":"Lending","abi":[{"type":"constructor","stateMutability":"nonpayable","inputs":[
{"name":"a","type":"uint256"},{"name":"b","type":"uint256"},{"name":"c","type":"uint256"},{"name":"d","type":"uint256"},{"name":"token","type":"address"}]}],
"bytecode":"0x60806040"}`

func newTestDeployer(t *testing.T) (*Deployer, *testutils.FakeChain, accounts.Account) {
	chain := testutils.NewFakeChain(1337, 0)
	logger := testlog.Logger(t, log.LevelDebug)
	mgr, err := txmgr.NewSimpleTxManager(context.Background(), "test", logger, nil, chain, txmgr.Config{
		GasLimit:             txmgr.DefaultGasLimit,
		GasPrice:             txmgr.DefaultGasPrice,
		ReceiptQueryInterval: time.Millisecond,
	})
	require.NoError(t, err)
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	admin := accounts.Account{Role: accounts.RoleAdmin, Address: crypto.PubkeyToAddress(key.PublicKey), Key: key}
	return NewDeployer(logger, mgr, txmgr.NewBuilder()), chain, admin
}

func TestDeployWithConstructorArgs(t *testing.T) {
	d, chain, admin := newTestDeployer(t)
	art, err := artifacts.Parse("Lending", []byte(lendingArtifact))
	require.NoError(t, err)
	token := common.HexToAddress("0x00000000000000000000000000000000000000aa")

	// one earlier transaction moves the nonce
	_, err = d.Deploy(context.Background(), admin, art, big.NewInt(1), big.NewInt(1), big.NewInt(1), big.NewInt(1), token)
	require.NoError(t, err)

	dep, err := d.Deploy(context.Background(), admin, art, big.NewInt(0), big.NewInt(7), big.NewInt(2), big.NewInt(10), token)
	require.NoError(t, err)
	require.Equal(t, crypto.CreateAddress(admin.Address, 1), dep.Address())
	require.Equal(t, "Lending", dep.Handle.Name())

	sent := chain.Sent()
	require.Len(t, sent, 2)
	tx := sent[1].Tx
	require.Nil(t, tx.To())
	require.Equal(t, dep.TxHash, tx.Hash())
	require.Equal(t, txmgr.DefaultGasLimit, tx.Gas())
	require.Equal(t, []byte{0x60, 0x80, 0x60, 0x40}, tx.Data()[:4])

	args, err := art.ABI.Constructor.Inputs.Unpack(tx.Data()[4:])
	require.NoError(t, err)
	require.Len(t, args, 5)
	require.Equal(t, int64(0), args[0].(*big.Int).Int64())
	require.Equal(t, int64(7), args[1].(*big.Int).Int64())
	require.Equal(t, int64(2), args[2].(*big.Int).Int64())
	require.Equal(t, int64(10), args[3].(*big.Int).Int64())
	require.Equal(t, token, args[4].(common.Address))
}

func TestDeployFailures(t *testing.T) {
	d, chain, admin := newTestDeployer(t)
	art, err := artifacts.Parse("Lending", []byte(lendingArtifact))
	require.NoError(t, err)

	_, err = d.Deploy(context.Background(), admin, art, big.NewInt(0))
	require.ErrorIs(t, err, contract.ErrEncoding)

	noCode, err := artifacts.Parse("Token", []byte(`{"abi":[]}`))
	require.NoError(t, err)
	_, err = d.Deploy(context.Background(), admin, noCode)
	require.ErrorIs(t, err, artifacts.ErrMissingBytecode)
	require.Empty(t, chain.Sent())

	chain.RevertIf = func(common.Address, *types.Transaction) bool { return true }
	token, err := artifacts.Parse("Token", []byte(`{"abi":[],"bytecode":"0x6080"}`))
	require.NoError(t, err)
	_, err = d.Deploy(context.Background(), admin, token)
	require.ErrorIs(t, err, txmgr.ErrTxReverted)
}
