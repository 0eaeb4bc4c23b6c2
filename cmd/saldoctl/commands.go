package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/subcommands"
	"github.com/shopspring/decimal"

	"saldo/internal/auth"
	"saldo/internal/core"
	"saldo/internal/services"
	"saldo/internal/store"
)

// ledgerAPI is the part of services.LedgerService the commands use.
type ledgerAPI interface {
	Submit(ctx context.Context, scope string, req core.SubmitRequest) (services.SubmitResult, error)
	Query(ctx context.Context, scope string) (services.Ledger, error)
	Total(ctx context.Context, scope string) (decimal.Decimal, error)
	History(ctx context.Context, scope string, days int) (core.History, error)
	Suggest(ctx context.Context, scope, prefix string) ([]string, error)
	Location() *time.Location
	Close() error
}

// environment is passed to every command through Commander.Execute.
type environment struct {
	out  io.Writer
	in   io.Reader
	open func(ctx context.Context) (ledgerAPI, error)
}

var commands = []subcommands.Command{
	&totalCmd{},
	&entriesCmd{},
	&historyCmd{},
	&addCmd{},
	&suggestCmd{},
}

// scoped holds the -scope flag shared by the ledger commands.
type scoped struct {
	scope string
}

func (s *scoped) setScopeFlag(f *flag.FlagSet) {
	f.StringVar(&s.scope, "scope", store.DefaultScope, "Account scope to operate on.")
}

// withLedger opens the ledger, runs fn and closes it again.
func withLedger(ctx context.Context, args []interface{}, fn func(env *environment, l ledgerAPI) error) subcommands.ExitStatus {
	env, ok := envFrom(args)
	if !ok {
		fmt.Fprintln(os.Stderr, "internal error: missing environment")
		return subcommands.ExitFailure
	}
	l, err := env.open(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer l.Close()

	if err := fn(env, l); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func envFrom(args []interface{}) (*environment, bool) {
	if len(args) == 0 {
		return nil, false
	}
	env, ok := args[0].(*environment)
	return env, ok && env != nil
}

type totalCmd struct{ scoped }

func (*totalCmd) Name() string     { return "total" }
func (*totalCmd) Synopsis() string { return "print the running total" }
func (*totalCmd) Usage() string {
	return `saldoctl total [-scope <scope>]

  Prints the initial total plus the signed sum of every entry.
`
}
func (c *totalCmd) SetFlags(f *flag.FlagSet) { c.setScopeFlag(f) }

func (c *totalCmd) Execute(ctx context.Context, _ *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	return withLedger(ctx, args, func(env *environment, l ledgerAPI) error {
		total, err := l.Total(ctx, c.scope)
		if err != nil {
			return err
		}
		fmt.Fprintln(env.out, total.String())
		return nil
	})
}

type entriesCmd struct{ scoped }

func (*entriesCmd) Name() string     { return "entries" }
func (*entriesCmd) Synopsis() string { return "list entries, most recent first" }
func (*entriesCmd) Usage() string {
	return `saldoctl entries [-scope <scope>]
`
}
func (c *entriesCmd) SetFlags(f *flag.FlagSet) { c.setScopeFlag(f) }

func (c *entriesCmd) Execute(ctx context.Context, _ *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	return withLedger(ctx, args, func(env *environment, l ledgerAPI) error {
		ledger, err := l.Query(ctx, c.scope)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(env.out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "DATE\tOPERATION\tNUMBER\tCOMMENT\tID")
		for _, e := range ledger.Entries {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
				e.Date.In(l.Location()).Format("02/01/2006 15:04"),
				e.Operation, e.Number.String(), e.Comment, e.ID)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		fmt.Fprintf(env.out, "\nTotal: %s\n", ledger.Total.String())
		return nil
	})
}

type historyCmd struct {
	scoped
	days int
}

func (*historyCmd) Name() string     { return "history" }
func (*historyCmd) Synopsis() string { return "print entries grouped by calendar day" }
func (*historyCmd) Usage() string {
	return `saldoctl history [-scope <scope>] [-days <n>]

  Groups entries by calendar day, newest day first, with the signed total
  of each day. Only the first <n> days are printed.
`
}

func (c *historyCmd) SetFlags(f *flag.FlagSet) {
	c.setScopeFlag(f)
	f.IntVar(&c.days, "days", 0, "Number of days to show (0 uses HISTORY_PAGE_DAYS).")
}

func (c *historyCmd) Execute(ctx context.Context, _ *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	return withLedger(ctx, args, func(env *environment, l ledgerAPI) error {
		h, err := l.History(ctx, c.scope, c.days)
		if err != nil {
			return err
		}
		fmt.Fprintf(env.out, "Credit: %s\n", h.Total.String())
		for _, day := range h.Days {
			fmt.Fprintf(env.out, "\n%s  %s\n", day.Date, signed(day.Total))
			for _, e := range day.Entries {
				fmt.Fprintf(env.out, "  %s  %s  %s\n",
					e.Date.In(l.Location()).Format("15:04"), signed(e.Signed()), e.Comment)
			}
		}
		if h.HasMore {
			fmt.Fprintf(env.out, "\n(%d of %d days shown)\n", h.VisibleDays, h.TotalDays)
		}
		return nil
	})
}

func signed(d decimal.Decimal) string {
	if d.IsPositive() {
		return "+" + d.String()
	}
	return d.String()
}

type addCmd struct {
	scoped
	number    string
	operation string
	comment   string
}

func (*addCmd) Name() string     { return "add" }
func (*addCmd) Synopsis() string { return "record a new entry" }
func (*addCmd) Usage() string {
	return `saldoctl add -number <n> -operation add|subtract -comment <text> [-scope <scope>]
`
}

func (c *addCmd) SetFlags(f *flag.FlagSet) {
	c.setScopeFlag(f)
	f.StringVar(&c.number, "number", "", "Amount of the entry.")
	f.StringVar(&c.operation, "operation", "", "add or subtract.")
	f.StringVar(&c.comment, "comment", "", "Description of the entry.")
}

func (c *addCmd) Execute(ctx context.Context, _ *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	return withLedger(ctx, args, func(env *environment, l ledgerAPI) error {
		res, err := l.Submit(ctx, c.scope, core.SubmitRequest{
			Number:    c.number,
			Comment:   c.comment,
			Operation: c.operation,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(env.out, "Recorded %s\nTotal: %s\n", res.Entry.ID, res.Total.String())
		return nil
	})
}

type suggestCmd struct{ scoped }

func (*suggestCmd) Name() string     { return "suggest" }
func (*suggestCmd) Synopsis() string { return "list past comments starting with a prefix" }
func (*suggestCmd) Usage() string {
	return `saldoctl suggest [-scope <scope>] <prefix>
`
}
func (c *suggestCmd) SetFlags(f *flag.FlagSet) { c.setScopeFlag(f) }

func (c *suggestCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	if f.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "suggest: missing prefix")
		return subcommands.ExitUsageError
	}
	prefix := strings.Join(f.Args(), " ")
	return withLedger(ctx, args, func(env *environment, l ledgerAPI) error {
		words, err := l.Suggest(ctx, c.scope, prefix)
		if err != nil {
			return err
		}
		for _, w := range words {
			fmt.Fprintln(env.out, w)
		}
		return nil
	})
}

type hashPasswordCmd struct{}

func (*hashPasswordCmd) Name() string     { return "hash-password" }
func (*hashPasswordCmd) Synopsis() string { return "print a bcrypt hash for AUTH_PASSWORD_HASH" }
func (*hashPasswordCmd) Usage() string {
	return `saldoctl hash-password [<password>]

  Hashes the password given as argument, or the first line of stdin.
`
}
func (*hashPasswordCmd) SetFlags(*flag.FlagSet) {}

func (*hashPasswordCmd) Execute(_ context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	env, ok := envFrom(args)
	if !ok {
		fmt.Fprintln(os.Stderr, "internal error: missing environment")
		return subcommands.ExitFailure
	}

	password := f.Arg(0)
	if password == "" {
		line, err := bufio.NewReader(env.in).ReadString('\n')
		if err != nil && err != io.EOF {
			fmt.Fprintln(os.Stderr, err)
			return subcommands.ExitFailure
		}
		password = strings.TrimRight(line, "\r\n")
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	fmt.Fprintln(env.out, hash)
	return subcommands.ExitSuccess
}
