// Command saldoctl inspects and edits the configured ledger from a shell.
package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"

	"saldo/internal/backend"
	"saldo/internal/cli"
	applog "saldo/internal/log"
	"saldo/internal/services"
)

// openLedger closes the whole dependency set, not only the service.
type openLedger struct {
	*services.LedgerService
	deps *cli.LedgerDeps
}

func (o openLedger) Close() error { return o.deps.Close() }

func main() {
	cli.LoadEnvFile()

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	for _, c := range commands {
		commander.Register(c, "ledger")
	}
	commander.Register(&hashPasswordCmd{}, "auth")

	flag.Parse()

	env := &environment{
		out: os.Stdout,
		in:  os.Stdin,
		open: func(ctx context.Context) (ledgerAPI, error) {
			cfg, err := cli.LoadAndValidateConfig()
			if err != nil {
				return nil, err
			}
			// Logs go to stderr so command output stays clean.
			logger := cli.SetupLoggerTo(os.Stderr, cfg, applog.ComponentApp)
			deps, err := cli.NewLedger(ctx, cfg, backend.NewFactory(logger.Logger), nil)
			if err != nil {
				return nil, err
			}
			return openLedger{LedgerService: deps.Ledger, deps: deps}, nil
		},
	}

	ctx, stop := cli.SignalContext(context.Background())
	status := commander.Execute(ctx, env)
	stop()
	os.Exit(int(status))
}
