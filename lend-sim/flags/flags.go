package flags

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	lendservice "github.com/lendlord/lendlord-sim/lend-service"
	"github.com/lendlord/lendlord-sim/lend-service/accounts"
	lendlog "github.com/lendlord/lendlord-sim/lend-service/log"
	lendmetrics "github.com/lendlord/lendlord-sim/lend-service/metrics"
	"github.com/lendlord/lendlord-sim/lend-service/txmgr"
)

const EnvVarPrefix = "LEND_SIM"

func prefixEnvVars(name string) []string {
	return lendservice.PrefixEnvVar(EnvVarPrefix, name)
}

var (
	// Required Flags
	RPCURLFlag = &cli.StringFlag{
		Name:    "rpc-url",
		Usage:   "HTTP or websocket URL of the Ethereum JSON-RPC node to deploy to and simulate against",
		EnvVars: prefixEnvVars("RPC_URL"),
	}

	// Optional Flags
	ChainIDFlag = &cli.Uint64Flag{
		Name:    "chain-id",
		Usage:   "Expected chain ID of the node. 0 accepts any chain",
		EnvVars: prefixEnvVars("CHAIN_ID"),
	}
	ArtifactsDirFlag = &cli.PathFlag{
		Name:    "artifacts-dir",
		Usage:   "Directory holding the compiled contract artifacts (<name>.json with abi and bytecode)",
		Value:   "build/contracts",
		EnvVars: prefixEnvVars("ARTIFACTS_DIR"),
	}
	TokenArtifactFlag = &cli.StringFlag{
		Name:    "token-artifact",
		Usage:   "Artifact name of the token contract",
		Value:   "LendLordToken",
		EnvVars: prefixEnvVars("TOKEN_ARTIFACT"),
	}
	LendingArtifactFlag = &cli.StringFlag{
		Name:    "lending-artifact",
		Usage:   "Artifact name of the lending contract",
		Value:   "LendingContract",
		EnvVars: prefixEnvVars("LENDING_ARTIFACT"),
	}
	TokenAddressFlag = &cli.StringFlag{
		Name:    "token-address",
		Usage:   "Address of an already deployed token contract. Optional, simulate only needs the lending address",
		EnvVars: prefixEnvVars("TOKEN_ADDRESS"),
	}
	LendingAddressFlag = &cli.StringFlag{
		Name:    "lending-address",
		Usage:   "Address of an already deployed lending contract. Required by simulate",
		EnvVars: prefixEnvVars("LENDING_ADDRESS"),
	}
	DialTimeoutFlag = &cli.DurationFlag{
		Name:    "rpc.dial-timeout",
		Usage:   "How long to retry connecting to the node on startup",
		Value:   time.Minute,
		EnvVars: prefixEnvVars("RPC_DIAL_TIMEOUT"),
	}
	RPCRateLimitFlag = &cli.Float64Flag{
		Name:    "rpc.rate-limit",
		Usage:   "Maximum RPC requests per second sent to the node. 0 disables the limit",
		EnvVars: prefixEnvVars("RPC_RATE_LIMIT"),
	}
	RPCRateBurstFlag = &cli.IntFlag{
		Name:    "rpc.rate-burst",
		Usage:   "Number of RPC requests that may exceed the rate limit in a burst",
		Value:   10,
		EnvVars: prefixEnvVars("RPC_RATE_BURST"),
	}
	WaitPollIntervalFlag = &cli.DurationFlag{
		Name:    "wait.poll-interval",
		Usage:   "Initial interval between chain time checks while waiting for a borrow duration to elapse",
		Value:   time.Second,
		EnvVars: prefixEnvVars("WAIT_POLL_INTERVAL"),
	}
	WaitMaxPollIntervalFlag = &cli.DurationFlag{
		Name:    "wait.max-poll-interval",
		Usage:   "Upper bound of the backoff between chain time checks",
		Value:   10 * time.Second,
		EnvVars: prefixEnvVars("WAIT_MAX_POLL_INTERVAL"),
	}
	WaitTimeoutFlag = &cli.DurationFlag{
		Name:    "wait.timeout",
		Usage:   "Give up a single wait after this long and continue the script. 0 waits until the target time is reached",
		Value:   10 * time.Minute,
		EnvVars: prefixEnvVars("WAIT_TIMEOUT"),
	}
)

var requiredFlags = []cli.Flag{
	RPCURLFlag,
}

var optionalFlags = []cli.Flag{
	ChainIDFlag,
	ArtifactsDirFlag,
	TokenArtifactFlag,
	LendingArtifactFlag,
	TokenAddressFlag,
	LendingAddressFlag,
	DialTimeoutFlag,
	RPCRateLimitFlag,
	RPCRateBurstFlag,
	WaitPollIntervalFlag,
	WaitMaxPollIntervalFlag,
	WaitTimeoutFlag,
}

func init() {
	optionalFlags = append(optionalFlags, lendlog.CLIFlags(EnvVarPrefix)...)
	optionalFlags = append(optionalFlags, lendmetrics.CLIFlags(EnvVarPrefix)...)
	optionalFlags = append(optionalFlags, txmgr.CLIFlags(EnvVarPrefix)...)
	optionalFlags = append(optionalFlags, accounts.CLIFlags(EnvVarPrefix)...)

	Flags = append(requiredFlags, optionalFlags...)
}

var Flags []cli.Flag

func CheckRequired(ctx *cli.Context) error {
	for _, f := range requiredFlags {
		if !ctx.IsSet(f.Names()[0]) {
			return fmt.Errorf("flag %s is required", f.Names()[0])
		}
	}
	return nil
}
