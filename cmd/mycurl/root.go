package main

import (
	"context"
	"io"
	"log/slog"
	"mycurl/application/http"
	"mycurl/application/http/actor/client"
	"mycurl/application/util/domain"
	"mycurl/config"
	"mycurl/transport"
	"mycurl/transport/tcp"
	"strings"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var ErrExchangesFailed = errors.New("exchanges failed")

type flags struct {
	method     string
	data       string
	configPath string

	include bool
	pretty  bool
	verbose bool
	quiet   bool
}

// deps are what commands reach the network with.
type deps struct {
	dialer   transport.ConnDialer
	lookuper domain.Lookuper
	clock    clock.Clock
}

func defaultDeps() deps {
	return deps{
		dialer:   tcp.NewDialer(),
		lookuper: domain.NewNetLookuper(nil),
		clock:    clock.New(),
	}
}

func newRootCmd(stdout, stderr io.Writer, d deps) *cobra.Command {
	var f flags

	cmd := &cobra.Command{
		Use:   "mycurl [flags] <url>...",
		Short: "Fetch URLs over HTTP/1.1",
		Long: `mycurl fetches each URL over its own HTTP/1.1 connection, all at once,
and prints the body of each response.

URLs take the form [http://]host[:port][/path].`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			return run(cmd.Context(), f, args, stdout, stderr, d)
		},
	}

	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	fs := cmd.Flags()
	fs.StringVarP(&f.method, "method", "m", "", "HTTP method (default GET, or POST with --data)")
	fs.StringVarP(&f.data, "data", "d", "", "HTTP POST data")
	fs.StringVarP(&f.configPath, "config", "c", "", "YAML config file")
	fs.BoolVarP(&f.include, "include", "i", false, "Print response header")
	fs.BoolVar(&f.pretty, "pretty", false, "Indent JSON bodies")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "Log every step of exchanges")
	fs.BoolVarP(&f.quiet, "quiet", "q", false, "Log only warnings and errors")
	cmd.MarkFlagsMutuallyExclusive("verbose", "quiet")

	return cmd
}

func newLogger(w io.Writer, f flags) *slog.Logger {
	level := slog.LevelInfo
	switch {
	case f.verbose:
		level = slog.LevelDebug
	case f.quiet:
		level = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func (f flags) requestMethod() string {
	if f.method != "" {
		return strings.ToUpper(f.method)
	}
	if f.data != "" {
		return http.MethodPost
	}
	return http.MethodGet
}

func run(ctx context.Context, f flags, urls []string, stdout, stderr io.Writer, d deps) error {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return err
	}

	targets := make([]client.Target, 0, len(urls))
	for _, u := range urls {
		t, err := parseTarget(u, cfg.Port)
		if err != nil {
			return err
		}
		targets = append(targets, t)
	}

	logger := newLogger(stderr, f)
	opts := cfg.ExchangeOptions()
	c := client.New(d.dialer, d.lookuper, logger, d.clock, opts)

	var body []byte
	if f.data != "" {
		body = []byte(f.data)
	}

	exchanges := make([]*client.Exchange, 0, len(targets))
	for _, t := range targets {
		ex, err := c.Prepare(t, f.requestMethod(), body)
		if err != nil {
			return errors.Wrapf(err, "preparing %s", t)
		}
		exchanges = append(exchanges, ex)
	}

	p := newPrinter(stdout, stderr, f.include, f.pretty)

	loop := client.NewLoop(opts.Loop, logger)
	loop.OnDone(p.done)
	for _, ex := range exchanges {
		p.fetching(ex.Target())
		loop.Go(ctx, ex)
	}

	failed := 0
	for _, ex := range loop.Wait() {
		if ex.Err() != nil {
			failed++
		}
	}
	if failed > 0 {
		return errors.Wrapf(ErrExchangesFailed, "%d of %d", failed, len(exchanges))
	}

	return nil
}
