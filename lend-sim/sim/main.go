package sim

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	lendlog "github.com/lendlord/lendlord-sim/lend-service/log"
	"github.com/lendlord/lendlord-sim/lend-sim/flags"
)

// Main returns the action running the given mode to completion and printing the step report.
func Main(version string, mode Mode) cli.ActionFunc {
	return func(cliCtx *cli.Context) error {
		if err := flags.CheckRequired(cliCtx); err != nil {
			return err
		}
		cfg := NewConfig(cliCtx, mode)
		if err := cfg.Check(); err != nil {
			return fmt.Errorf("invalid CLI flags: %w", err)
		}

		l := lendlog.NewLogger(lendlog.AppOut(cliCtx), cfg.LogConfig)
		lendlog.SetGlobalLogHandler(l.Handler())
		l = l.New("run", uuid.NewString())

		l.Info("initializing lend-sim", "mode", mode, "version", version)
		s, err := LendSimServiceFromCLIConfig(cliCtx.Context, version, cfg, l)
		if err != nil {
			return err
		}
		runErr := s.Run(cliCtx.Context)

		report := s.Report()
		report.Render(lendlog.AppOut(cliCtx), cfg.LogConfig.Color)
		if mode.deploys() && runErr == nil {
			fmt.Fprintf(lendlog.AppOut(cliCtx), "token: %s\nlending: %s\n", s.Addresses.Token, s.Addresses.Lending)
		}
		if n := report.Failures(); n > 0 {
			l.Warn("Some steps failed", "failed", n, "steps", len(report.Steps()))
		}

		stopErr := s.Stop(context.Background())
		return errors.Join(runErr, stopErr)
	}
}
