package txmgr

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/urfave/cli/v2"

	lendservice "github.com/lendlord/lendlord-sim/lend-service"
	"github.com/lendlord/lendlord-sim/lend-service/eth"
)

const (
	GasLimitFlagName             = "txmgr.gas-limit"
	GasPriceFlagName             = "txmgr.gas-price"
	NetworkTimeoutFlagName       = "network-timeout"
	ReceiptQueryIntervalFlagName = "txmgr.receipt-query-interval"
)

type DefaultFlagValues struct {
	GasLimit             uint64
	GasPriceGwei         float64
	NetworkTimeout       time.Duration
	ReceiptQueryInterval time.Duration
}

var DefaultLendFlagValues = DefaultFlagValues{
	GasLimit:             DefaultGasLimit,
	GasPriceGwei:         2,
	NetworkTimeout:       0,
	ReceiptQueryInterval: 500 * time.Millisecond,
}

func CLIFlags(envPrefix string) []cli.Flag {
	return CLIFlagsWithDefaults(envPrefix, DefaultLendFlagValues)
}

func CLIFlagsWithDefaults(envPrefix string, defaults DefaultFlagValues) []cli.Flag {
	prefixEnvVars := func(name string) []string {
		return lendservice.PrefixEnvVar(envPrefix, name)
	}
	return []cli.Flag{
		&cli.Uint64Flag{
			Name:    GasLimitFlagName,
			Usage:   "Gas limit attached to every transaction",
			Value:   defaults.GasLimit,
			EnvVars: prefixEnvVars("TXMGR_GAS_LIMIT"),
		},
		&cli.Float64Flag{
			Name:    GasPriceFlagName,
			Usage:   "Legacy gas price attached to every transaction, in GWei",
			Value:   defaults.GasPriceGwei,
			EnvVars: prefixEnvVars("TXMGR_GAS_PRICE"),
		},
		&cli.DurationFlag{
			Name:    NetworkTimeoutFlagName,
			Usage:   "Upper bound for a single send including mining. 0 waits until the transaction is mined",
			Value:   defaults.NetworkTimeout,
			EnvVars: prefixEnvVars("NETWORK_TIMEOUT"),
		},
		&cli.DurationFlag{
			Name:    ReceiptQueryIntervalFlagName,
			Usage:   "Frequency to poll for receipts",
			Value:   defaults.ReceiptQueryInterval,
			EnvVars: prefixEnvVars("TXMGR_RECEIPT_QUERY_INTERVAL"),
		},
	}
}

type CLIConfig struct {
	GasLimit             uint64
	GasPriceGwei         float64
	NetworkTimeout       time.Duration
	ReceiptQueryInterval time.Duration
}

func NewCLIConfig(defaults DefaultFlagValues) CLIConfig {
	return CLIConfig{
		GasLimit:             defaults.GasLimit,
		GasPriceGwei:         defaults.GasPriceGwei,
		NetworkTimeout:       defaults.NetworkTimeout,
		ReceiptQueryInterval: defaults.ReceiptQueryInterval,
	}
}

func ReadCLIConfig(ctx *cli.Context) CLIConfig {
	return CLIConfig{
		GasLimit:             ctx.Uint64(GasLimitFlagName),
		GasPriceGwei:         ctx.Float64(GasPriceFlagName),
		NetworkTimeout:       ctx.Duration(NetworkTimeoutFlagName),
		ReceiptQueryInterval: ctx.Duration(ReceiptQueryIntervalFlagName),
	}
}

func (m CLIConfig) Check() error {
	if m.GasLimit == 0 {
		return errors.New("gas limit must be provided")
	}
	if m.GasPriceGwei <= 0 {
		return errors.New("gas price must be greater than 0")
	}
	if m.NetworkTimeout < 0 {
		return fmt.Errorf("network timeout must not be negative: %v", m.NetworkTimeout)
	}
	if m.ReceiptQueryInterval <= 0 {
		return errors.New("receipt query interval must be greater than 0")
	}
	return nil
}

// Config is the validated runtime configuration of the SimpleTxManager.
type Config struct {
	GasLimit uint64
	GasPrice *big.Int

	// NetworkTimeout bounds a single Send. Zero means no bound.
	NetworkTimeout time.Duration

	ReceiptQueryInterval time.Duration
}

func NewConfig(cfg CLIConfig) (Config, error) {
	if err := cfg.Check(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	gasPrice, err := eth.GweiToWei(cfg.GasPriceGwei)
	if err != nil {
		return Config{}, fmt.Errorf("invalid gas price: %w", err)
	}
	return Config{
		GasLimit:             cfg.GasLimit,
		GasPrice:             gasPrice,
		NetworkTimeout:       cfg.NetworkTimeout,
		ReceiptQueryInterval: cfg.ReceiptQueryInterval,
	}, nil
}

func (c Config) Builder() *Builder {
	return NewBuilder(WithGasLimit(c.GasLimit), WithGasPrice(c.GasPrice))
}
