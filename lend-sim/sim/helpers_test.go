package sim

import (
	"bytes"
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"

	"github.com/lendlord/lendlord-sim/lend-service/accounts"
	"github.com/lendlord/lendlord-sim/lend-service/artifacts"
	"github.com/lendlord/lendlord-sim/lend-service/contract"
	"github.com/lendlord/lendlord-sim/lend-service/deployer"
	"github.com/lendlord/lendlord-sim/lend-service/tasks"
	"github.com/lendlord/lendlord-sim/lend-service/testlog"
	"github.com/lendlord/lendlord-sim/lend-service/testutils"
	"github.com/lendlord/lendlord-sim/lend-service/txmgr"
)

const (
	testChainID     = 1337
	testGenesisTime = 1_700_000_000
)

const lendingMethodsABI = `
{"name":"borrowTokens","type":"function","stateMutability":"payable","inputs":[{"name":"duration","type":"uint256"}],"outputs":[]},
{"name":"withdrawEth","type":"function","stateMutability":"nonpayable","inputs":[],"outputs":[]},
{"name":"calculateOverdraft","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"amount","type":"uint256"},{"name":"timestamp","type":"uint256"}]},
{"name":"setTimestampLowerBound","type":"function","stateMutability":"nonpayable","inputs":[{"name":"timestamp","type":"uint256"}],"outputs":[]},
{"name":"withdrawOverdraftContractEth","type":"function","stateMutability":"nonpayable","inputs":[{"name":"amount","type":"uint256"}],"outputs":[]},
{"type":"constructor","stateMutability":"nonpayable","inputs":[
  {"name":"minDuration","type":"uint256"},{"name":"maxDuration","type":"uint256"},
  {"name":"interest","type":"uint256"},{"name":"overdraftPenalty","type":"uint256"},
  {"name":"token","type":"address"}]}`

const returnTokensABI = `{"name":"returnTokens","type":"function","stateMutability":"nonpayable","inputs":[],"outputs":[]},`

var (
	tokenBytecode   = []byte{0x60, 0x80, 0x60, 0x40, 0x01}
	lendingBytecode = []byte{0x60, 0x80, 0x60, 0x40, 0x02}
)

func testArtifact(t *testing.T, name string, abiJSON string, code []byte) *artifacts.Artifact {
	parsed, err := abi.JSON(bytes.NewReader([]byte(abiJSON)))
	require.NoError(t, err)
	return &artifacts.Artifact{Name: name, ABI: parsed, Bytecode: code}
}

func tokenArtifact(t *testing.T) *artifacts.Artifact {
	return testArtifact(t, "LendLordToken", `[{"type":"constructor","stateMutability":"nonpayable","inputs":[]},
{"name":"balanceOf","type":"function","stateMutability":"view","inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}]`, tokenBytecode)
}

func lendingArtifact(t *testing.T) *artifacts.Artifact {
	return testArtifact(t, "LendingContract", "["+returnTokensABI+lendingMethodsABI+"]", lendingBytecode)
}

// testClock is a wall clock that moves by step every time it is read.
type testClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.now
	c.now = c.now.Add(c.step)
	return out
}

type simHarness struct {
	t       *testing.T
	chain   *testutils.FakeChain
	accs    map[accounts.Role]accounts.Account
	book    *accounts.Book
	txMgr   txmgr.TxManager
	invoker *contract.Invoker
	logger  log.Logger
	logs    *testlog.CapturingHandler
	clock   *testClock

	token   *artifacts.Artifact
	lending *artifacts.Artifact

	overdraft Overdraft
	lendingAt common.Address
}

func newSimHarness(t *testing.T) *simHarness {
	chain := testutils.NewFakeChain(testChainID, testGenesisTime)
	chain.TimeStep = 20
	logger, logs := testlog.CaptureLogger(t, log.LevelDebug)

	accs := make(map[accounts.Role]accounts.Account)
	var list []accounts.Account
	for _, role := range accounts.Roles {
		key, err := crypto.GenerateKey()
		require.NoError(t, err)
		acc := accounts.Account{Role: role, Address: crypto.PubkeyToAddress(key.PublicKey), Key: key}
		accs[role] = acc
		list = append(list, acc)
	}
	book, err := accounts.NewBook(list...)
	require.NoError(t, err)

	mgr, err := txmgr.NewSimpleTxManager(context.Background(), "test", logger, nil, chain, txmgr.Config{
		GasLimit:             txmgr.DefaultGasLimit,
		GasPrice:             txmgr.DefaultGasPrice,
		ReceiptQueryInterval: time.Millisecond,
	})
	require.NoError(t, err)

	h := &simHarness{
		t:       t,
		chain:   chain,
		accs:    accs,
		book:    book,
		txMgr:   mgr,
		invoker: contract.NewInvoker(logger, mgr, txmgr.NewBuilder(), chain, nil),
		logger:  logger,
		logs:    logs,
		// far in the past: only the chain time can end a wait
		clock:   &testClock{now: time.Unix(0, 0)},
		token:   tokenArtifact(t),
		lending: lendingArtifact(t),
		overdraft: Overdraft{
			Amount:              big.NewInt(3_000_000_000_000_000),
			TimestampLowerBound: big.NewInt(testGenesisTime + 100),
		},
		lendingAt: common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3"),
	}
	chain.CallFn = func(msg ethereum.CallMsg) ([]byte, error) {
		method := h.lending.ABI.Methods[MethodCalculateOverdraft]
		require.Equal(t, method.ID, msg.Data)
		require.Equal(t, h.accs[accounts.RoleAdmin].Address, msg.From)
		return method.Outputs.Pack(h.overdraft.Amount, h.overdraft.TimestampLowerBound)
	}
	return h
}

func (h *simHarness) driver() *Driver {
	d, err := NewDriver(h.logger, DriverConfig{
		Poll: tasks.PollConfig{
			InitialInterval: time.Millisecond,
			MaxInterval:     2 * time.Millisecond,
			MaxElapsed:      10 * time.Second,
		},
		Now: h.clock.Now,
	}, DriverDeps{
		Book:            h.book,
		Invoker:         h.invoker,
		Deployer:        deployer.NewDeployer(h.logger, h.txMgr, txmgr.NewBuilder()),
		Chain:           h.chain,
		TokenArtifact:   h.token,
		LendingArtifact: h.lending,
	})
	require.NoError(h.t, err)
	return d
}

func (h *simHarness) lendingHandle() *contract.Handle {
	return contract.NewHandle(h.lending.Name, h.lendingAt, h.lending.ABI)
}

// isCall reports whether tx calls the lending method.
func (h *simHarness) isCall(sent testutils.SentTx, method string) bool {
	return bytes.Equal(sent.Selector(), h.lending.ABI.Methods[method].ID)
}

func (h *simHarness) callArgs(sent testutils.SentTx, method string) []any {
	require.True(h.t, h.isCall(sent, method), "expected a %s call", method)
	args, err := h.lending.ABI.Methods[method].Inputs.Unpack(sent.Tx.Data()[4:])
	require.NoError(h.t, err)
	return args
}

func (h *simHarness) blockTime(hash common.Hash) uint64 {
	receipt := h.chain.Receipt(hash)
	require.NotNil(h.t, receipt, "no receipt for %s", hash)
	header, err := h.chain.HeaderByNumber(context.Background(), receipt.BlockNumber)
	require.NoError(h.t, err)
	return header.Time
}
