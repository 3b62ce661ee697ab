package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/ethereum/go-ethereum/log"

	lendservice "github.com/lendlord/lendlord-sim/lend-service"
	"github.com/lendlord/lendlord-sim/lend-service/metrics/doc"
	"github.com/lendlord/lendlord-sim/lend-sim/flags"
	"github.com/lendlord/lendlord-sim/lend-sim/metrics"
	"github.com/lendlord/lendlord-sim/lend-sim/sim"
)

var (
	Version   = "v0.0.0"
	GitCommit = ""
	GitDate   = ""
)

func main() {
	app := cli.NewApp()
	app.Flags = flags.Flags
	app.Version = lendservice.BuildInfo{Version: Version, GitCommit: GitCommit, GitDate: GitDate}.String()
	app.Name = "lend-sim"
	app.Usage = "Lending contract simulator"
	app.Description = "Deploys the LendLord token and lending contracts and drives a scripted borrow, return, withdraw and overdraft reclaim scenario against them"
	app.Action = sim.Main(Version, sim.ModeRun)
	app.Commands = []*cli.Command{
		{
			Name:   "run",
			Usage:  "Deploy both contracts, then simulate against them",
			Flags:  flags.Flags,
			Action: sim.Main(Version, sim.ModeRun),
		},
		{
			Name:   "deploy",
			Usage:  "Deploy the token and the lending contract and print their addresses",
			Flags:  flags.Flags,
			Action: sim.Main(Version, sim.ModeDeploy),
		},
		{
			Name:   "simulate",
			Usage:  "Simulate against already deployed contracts, set by --token-address and --lending-address",
			Flags:  flags.Flags,
			Action: sim.Main(Version, sim.ModeSimulate),
		},
		{
			Name:        "doc",
			Subcommands: doc.NewSubcommands(metrics.NewMetrics("default")),
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	err := app.RunContext(ctx, os.Args)
	if err != nil {
		log.Crit("Application failed", "message", err)
	}
}
