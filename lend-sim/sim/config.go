package sim

import (
	"errors"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/ethereum/go-ethereum/common"

	lendservice "github.com/lendlord/lendlord-sim/lend-service"
	"github.com/lendlord/lendlord-sim/lend-service/accounts"
	lendlog "github.com/lendlord/lendlord-sim/lend-service/log"
	lendmetrics "github.com/lendlord/lendlord-sim/lend-service/metrics"
	"github.com/lendlord/lendlord-sim/lend-service/tasks"
	"github.com/lendlord/lendlord-sim/lend-service/txmgr"
	"github.com/lendlord/lendlord-sim/lend-sim/flags"
)

// Mode selects which part of the lifecycle a run performs.
type Mode string

const (
	ModeRun      Mode = "run"
	ModeDeploy   Mode = "deploy"
	ModeSimulate Mode = "simulate"
)

func (m Mode) deploys() bool {
	return m == ModeRun || m == ModeDeploy
}

func (m Mode) simulates() bool {
	return m == ModeRun || m == ModeSimulate
}

type CLIConfig struct {
	Mode Mode

	RPCURL      string
	ChainID     uint64
	DialTimeout time.Duration
	// RPCRateLimit is in requests per second, 0 is unlimited.
	RPCRateLimit float64
	RPCRateBurst int

	ArtifactsDir    string
	TokenArtifact   string
	LendingArtifact string

	TokenAddress   string
	LendingAddress string

	WaitPollInterval    time.Duration
	WaitMaxPollInterval time.Duration
	WaitTimeout         time.Duration

	TxMgrConfig    txmgr.CLIConfig
	LogConfig      lendlog.CLIConfig
	MetricsConfig  lendmetrics.CLIConfig
	AccountsConfig accounts.CLIConfig
}

func (c *CLIConfig) Check() error {
	var errs []error
	switch c.Mode {
	case ModeRun, ModeDeploy, ModeSimulate:
	default:
		errs = append(errs, fmt.Errorf("unknown mode %q", c.Mode))
	}
	if c.RPCURL == "" {
		errs = append(errs, errors.New("rpc url must be set"))
	}
	if c.DialTimeout <= 0 {
		errs = append(errs, errors.New("dial timeout must be greater than 0"))
	}
	if c.RPCRateLimit < 0 {
		errs = append(errs, errors.New("rpc rate limit must not be negative"))
	}
	if c.RPCRateLimit > 0 && c.RPCRateBurst < 1 {
		errs = append(errs, errors.New("rpc rate burst must be at least 1"))
	}
	if c.Mode.deploys() {
		if c.ArtifactsDir == "" || c.TokenArtifact == "" {
			errs = append(errs, errors.New("token artifact must be set to deploy"))
		}
	}
	if c.ArtifactsDir == "" || c.LendingArtifact == "" {
		errs = append(errs, errors.New("lending artifact must be set"))
	}
	if c.TokenAddress != "" {
		if _, err := lendservice.ParseAddress(c.TokenAddress); err != nil {
			errs = append(errs, fmt.Errorf("token address: %w", err))
		}
	}
	if c.Mode == ModeSimulate {
		if _, err := lendservice.ParseAddress(c.LendingAddress); err != nil {
			errs = append(errs, fmt.Errorf("lending address: %w", err))
		}
	}
	if c.WaitPollInterval <= 0 {
		errs = append(errs, errors.New("wait poll interval must be greater than 0"))
	}
	if c.WaitMaxPollInterval < c.WaitPollInterval {
		errs = append(errs, fmt.Errorf("wait max poll interval %v is below the poll interval %v", c.WaitMaxPollInterval, c.WaitPollInterval))
	}
	if c.WaitTimeout < 0 {
		errs = append(errs, errors.New("wait timeout must not be negative"))
	}
	if err := c.TxMgrConfig.Check(); err != nil {
		errs = append(errs, err)
	}
	if err := c.LogConfig.Check(); err != nil {
		errs = append(errs, err)
	}
	if err := c.MetricsConfig.Check(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// PollConfig is the bound applied to each of the script's time waits.
func (c *CLIConfig) PollConfig() tasks.PollConfig {
	return tasks.PollConfig{
		InitialInterval: c.WaitPollInterval,
		MaxInterval:     c.WaitMaxPollInterval,
		MaxElapsed:      c.WaitTimeout,
	}
}

// Addresses returns the configured contract addresses. Unset addresses are zero.
func (c *CLIConfig) Addresses() Addresses {
	var addrs Addresses
	if c.TokenAddress != "" {
		addrs.Token = common.HexToAddress(c.TokenAddress)
	}
	if c.LendingAddress != "" {
		addrs.Lending = common.HexToAddress(c.LendingAddress)
	}
	return addrs
}

// NewConfig parses the Config from the provided flags or environment variables.
func NewConfig(ctx *cli.Context, mode Mode) *CLIConfig {
	return &CLIConfig{
		Mode: mode,

		RPCURL:      ctx.String(flags.RPCURLFlag.Name),
		ChainID:     ctx.Uint64(flags.ChainIDFlag.Name),
		DialTimeout: ctx.Duration(flags.DialTimeoutFlag.Name),

		RPCRateLimit: ctx.Float64(flags.RPCRateLimitFlag.Name),
		RPCRateBurst: ctx.Int(flags.RPCRateBurstFlag.Name),

		ArtifactsDir:    ctx.Path(flags.ArtifactsDirFlag.Name),
		TokenArtifact:   ctx.String(flags.TokenArtifactFlag.Name),
		LendingArtifact: ctx.String(flags.LendingArtifactFlag.Name),

		TokenAddress:   ctx.String(flags.TokenAddressFlag.Name),
		LendingAddress: ctx.String(flags.LendingAddressFlag.Name),

		WaitPollInterval:    ctx.Duration(flags.WaitPollIntervalFlag.Name),
		WaitMaxPollInterval: ctx.Duration(flags.WaitMaxPollIntervalFlag.Name),
		WaitTimeout:         ctx.Duration(flags.WaitTimeoutFlag.Name),

		TxMgrConfig:    txmgr.ReadCLIConfig(ctx),
		LogConfig:      lendlog.ReadCLIConfig(ctx),
		MetricsConfig:  lendmetrics.ReadCLIConfig(ctx),
		AccountsConfig: accounts.ReadCLIConfig(ctx, flags.EnvVarPrefix),
	}
}
