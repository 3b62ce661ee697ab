package sim

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/log"
	"github.com/spf13/afero"
	"golang.org/x/time/rate"

	"github.com/lendlord/lendlord-sim/lend-service/accounts"
	"github.com/lendlord/lendlord-sim/lend-service/artifacts"
	"github.com/lendlord/lendlord-sim/lend-service/contract"
	"github.com/lendlord/lendlord-sim/lend-service/deployer"
	"github.com/lendlord/lendlord-sim/lend-service/dial"
	"github.com/lendlord/lendlord-sim/lend-service/eth"
	"github.com/lendlord/lendlord-sim/lend-service/httputil"
	lendmetrics "github.com/lendlord/lendlord-sim/lend-service/metrics"
	"github.com/lendlord/lendlord-sim/lend-service/sources"
	"github.com/lendlord/lendlord-sim/lend-service/txmgr"
	"github.com/lendlord/lendlord-sim/lend-sim/metrics"
)

var ErrAlreadyStopped = errors.New("already stopped")

type LendSimService struct {
	Log     log.Logger
	Metrics metrics.Metricer

	Version   string
	Mode      Mode
	Addresses Addresses

	Client    *sources.EthClient
	ChainID   eth.ChainID
	Accounts  *accounts.Book
	TxManager txmgr.TxManager
	Builder   *txmgr.Builder

	// artifactsFS overrides the filesystem artifacts are read from.
	artifactsFS     afero.Fs
	tokenArtifact   *artifacts.Artifact
	lendingArtifact *artifacts.Artifact

	driver *Driver

	metricsSrv *httputil.HTTPServer

	stopped atomic.Bool
}

func LendSimServiceFromCLIConfig(ctx context.Context, version string, cfg *CLIConfig, log log.Logger) (*LendSimService, error) {
	var s LendSimService
	if err := s.initFromCLIConfig(ctx, version, cfg, log); err != nil {
		return nil, errors.Join(err, s.Stop(ctx))
	}
	return &s, nil
}

func (s *LendSimService) initFromCLIConfig(ctx context.Context, version string, cfg *CLIConfig, log log.Logger) error {
	s.Version = version
	s.Log = log
	s.Mode = cfg.Mode
	s.Addresses = cfg.Addresses()

	s.initMetrics(cfg)

	if err := s.initRPCClient(ctx, cfg); err != nil {
		return err
	}
	if err := s.initChainID(ctx, cfg); err != nil {
		return err
	}
	if err := s.initAccounts(cfg); err != nil {
		return fmt.Errorf("failed to load accounts: %w", err)
	}
	if err := s.initArtifacts(cfg); err != nil {
		return fmt.Errorf("failed to load artifacts: %w", err)
	}
	if err := s.initTxManager(ctx, cfg); err != nil {
		return fmt.Errorf("failed to init tx manager: %w", err)
	}
	if err := s.initMetricsServer(cfg); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}
	if err := s.initDriver(cfg); err != nil {
		return fmt.Errorf("failed to init driver: %w", err)
	}

	s.Metrics.RecordInfo(s.Version)
	s.Metrics.RecordUp()
	return nil
}

func (s *LendSimService) initMetrics(cfg *CLIConfig) {
	if cfg.MetricsConfig.Enabled {
		procName := "default"
		s.Metrics = metrics.NewMetrics(procName)
	} else {
		s.Metrics = metrics.NoopMetrics
	}
}

func (s *LendSimService) initRPCClient(ctx context.Context, cfg *CLIConfig) error {
	client, err := dial.DialEthClientWithTimeout(ctx, cfg.DialTimeout, s.Log, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("failed to dial rpc: %w", err)
	}
	s.Client = sources.NewEthClient(client, s.Metrics,
		sources.WithRateLimit(rate.Limit(cfg.RPCRateLimit), cfg.RPCRateBurst))
	if cfg.RPCRateLimit > 0 {
		s.Log.Info("Rate limiting rpc requests", "rate", cfg.RPCRateLimit, "burst", cfg.RPCRateBurst)
	}
	return nil
}

func (s *LendSimService) initChainID(ctx context.Context, cfg *CLIConfig) error {
	id, err := s.Client.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch chain id: %w", err)
	}
	s.ChainID = eth.ChainIDFromBig(id)
	if cfg.ChainID != 0 && s.ChainID != eth.ChainIDFromUInt64(cfg.ChainID) {
		return fmt.Errorf("node is on chain %s, expected %d", s.ChainID, cfg.ChainID)
	}
	s.Log.Info("Connected to node", "chainID", s.ChainID)
	return nil
}

func (s *LendSimService) initAccounts(cfg *CLIConfig) error {
	book, err := cfg.AccountsConfig.Load()
	if err != nil {
		return err
	}
	for _, acc := range book.Accounts() {
		s.Log.Debug("Loaded account", "account", acc)
	}
	s.Accounts = book
	return nil
}

func (s *LendSimService) initArtifacts(cfg *CLIConfig) error {
	var opts []artifacts.LoaderOption
	if s.artifactsFS != nil {
		opts = append(opts, artifacts.WithFS(s.artifactsFS))
	}
	loader := artifacts.NewLoader(cfg.ArtifactsDir, opts...)
	if cfg.Mode.deploys() {
		token, err := loader.Load(cfg.TokenArtifact)
		if err != nil {
			return err
		}
		s.tokenArtifact = token
	}
	lending, err := loader.Load(cfg.LendingArtifact)
	if err != nil {
		return err
	}
	s.lendingArtifact = lending
	return nil
}

func (s *LendSimService) initTxManager(ctx context.Context, cfg *CLIConfig) error {
	txCfg, err := txmgr.NewConfig(cfg.TxMgrConfig)
	if err != nil {
		return err
	}
	txManager, err := txmgr.NewSimpleTxManager(ctx, "lend-sim", s.Log, s.Metrics, s.Client, txCfg)
	if err != nil {
		return err
	}
	s.TxManager = txManager
	s.Builder = txCfg.Builder()
	return nil
}

func (s *LendSimService) initMetricsServer(cfg *CLIConfig) error {
	if !cfg.MetricsConfig.Enabled {
		s.Log.Info("metrics disabled")
		return nil
	}
	m, ok := s.Metrics.(lendmetrics.RegistryMetricer)
	if !ok {
		return fmt.Errorf("metrics were enabled, but metricer %T does not expose registry for metrics-server", s.Metrics)
	}
	s.Log.Debug("starting metrics server", "addr", cfg.MetricsConfig.ListenAddr, "port", cfg.MetricsConfig.ListenPort)
	metricsSrv, err := lendmetrics.StartServer(m.Registry(), cfg.MetricsConfig.ListenAddr, cfg.MetricsConfig.ListenPort)
	if err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}
	s.Log.Info("started metrics server", "addr", metricsSrv.Addr())
	s.metricsSrv = metricsSrv
	return nil
}

func (s *LendSimService) initDriver(cfg *CLIConfig) error {
	driver, err := NewDriver(s.Log, DriverConfig{Poll: cfg.PollConfig()}, DriverDeps{
		Book:            s.Accounts,
		Invoker:         contract.NewInvoker(s.Log, s.TxManager, s.Builder, s.Client, s.Metrics),
		Deployer:        deployer.NewDeployer(s.Log, s.TxManager, s.Builder),
		Chain:           s.Client,
		Metrics:         s.Metrics,
		TokenArtifact:   s.tokenArtifact,
		LendingArtifact: s.lendingArtifact,
	})
	if err != nil {
		return err
	}
	s.driver = driver
	return nil
}

// Run performs the configured mode to completion. Detached reclaims are joined
// before Run returns, their failures are part of the returned error.
func (s *LendSimService) Run(ctx context.Context) error {
	addrs := s.Addresses
	if s.Mode.deploys() {
		deployed, err := s.driver.Deploy(ctx)
		if err != nil {
			return fmt.Errorf("failed to deploy contracts: %w", err)
		}
		addrs = deployed
		s.Addresses = deployed
	}
	if !s.Mode.simulates() {
		return nil
	}
	simErr := s.driver.Simulate(ctx, addrs.Lending)
	if simErr != nil {
		simErr = fmt.Errorf("simulation aborted: %w", simErr)
	}
	s.Log.Info("Waiting for detached reclaims")
	if err := s.driver.Wait(); err != nil {
		return errors.Join(simErr, fmt.Errorf("detached reclaim failed: %w", err))
	}
	return simErr
}

func (s *LendSimService) Report() *Report {
	if s.driver == nil {
		return new(Report)
	}
	return s.driver.Report()
}

func (s *LendSimService) Stopped() bool {
	return s.stopped.Load()
}

func (s *LendSimService) Stop(ctx context.Context) error {
	if s.Stopped() {
		return ErrAlreadyStopped
	}
	if s.Log != nil {
		s.Log.Info("stopping lend-sim")
	}

	var result error
	if s.metricsSrv != nil {
		if err := s.metricsSrv.Stop(ctx); err != nil {
			result = errors.Join(result, fmt.Errorf("failed to stop metrics server: %w", err))
		}
	}

	if s.Client != nil {
		s.Client.Close()
	}

	if result == nil {
		s.stopped.Store(true)
		if s.Log != nil {
			s.Log.Info("stopped lend-sim")
		}
	}
	return result
}
