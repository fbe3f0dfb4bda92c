package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/torosent/loaded/internal/config"
	"github.com/torosent/loaded/internal/httpclient"
	"github.com/torosent/loaded/internal/logging"
	"github.com/torosent/loaded/internal/metrics"
	"github.com/torosent/loaded/internal/output"
	"github.com/torosent/loaded/internal/runner"
	"github.com/torosent/loaded/internal/tracing"
)

const (
	progressInterval = time.Second
	shutdownTimeout  = 5 * time.Second
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

// execute runs the CLI and returns the process exit code.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	httpclient.Version = version

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCommand(stdout, stderr)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		printError(stderr, err)
		return 1
	}
	return 0
}

func printError(w io.Writer, err error) {
	var verr config.ValidationError
	if errors.As(err, &verr) {
		fmt.Fprintln(w, "Error: invalid configuration:")
		for _, issue := range verr.Issues() {
			fmt.Fprintf(w, "  - %s\n", issue)
		}
		return
	}
	fmt.Fprintf(w, "Error: %v\n", err)
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "loaded",
		Short:         "HTTP/S load generator for web servers and S3-compatible object stores",
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.AddCommand(newRunCommand(stdout, stderr))
	root.AddCommand(newCompletionsCommand(root, stdout))
	return root
}

func newRunCommand(stdout, stderr io.Writer) *cobra.Command {
	run := &cobra.Command{
		Use:   "run",
		Short: "Run a load test with one of the engines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	config.RegisterRunFlags(run)

	engines := []struct {
		kind  config.EngineKind
		short string
	}{
		{config.EngineSimple, "Send the same request over and over"},
		{config.EngineS3, "PUT and GET objects against an S3-compatible endpoint"},
	}
	for _, e := range engines {
		cmd := &cobra.Command{
			Use:   string(e.kind),
			Short: e.short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runEngine(cmd, e.kind, stdout, stderr)
			},
		}
		config.RegisterEngineFlags(cmd, e.kind)
		run.AddCommand(cmd)
	}
	return run
}

func runEngine(cmd *cobra.Command, kind config.EngineKind, stdout, stderr io.Writer) error {
	cfg, err := config.NewLoader().LoadFlags(kind, cmd.Flags())
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := logging.New(stderr, cfg.LogLevel)
	if err != nil {
		return err
	}
	for _, w := range cfg.Warnings() {
		log.Warn().Msg(w)
	}

	ctx := cmd.Context()
	tp, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return &runner.SetupError{Op: "tracing", Err: err}
	}
	defer shutdownTracing(tp, log)

	r, err := runner.New(runner.Options{Config: cfg, Logger: log, Tracing: tp})
	if err != nil {
		return err
	}

	var progress *output.ProgressReporter
	if cfg.Format == config.FormatPretty {
		progress = output.NewProgressReporter(r.Live(), progressInterval, stderr)
		progress.Start()
	}

	log.Info().
		Str("engine", string(kind)).
		Str("target", cfg.TargetURL).
		Int("connections", cfg.Connections).
		Int("threads", cfg.Threads).
		Str("seed", cfg.Seed).
		Msg("starting run")

	res, err := r.Run(ctx)
	if progress != nil {
		progress.Stop()
	}
	if err != nil {
		return err
	}

	summary := metrics.Summarize(metrics.RunInfo{
		ID:          metrics.NewRunID(),
		Engine:      string(kind),
		Target:      cfg.TargetURL,
		Threads:     res.Threads,
		Connections: res.Connections,
		Seed:        cfg.Seed,
		Trigger:     string(res.Trigger),
		Elapsed:     res.Elapsed,
	}, res.Stats)

	if cfg.Format == config.FormatJSON {
		return output.PrintJSONReport(stdout, summary)
	}
	output.PrintReport(stdout, summary)
	return nil
}

func shutdownTracing(tp *tracing.Provider, log zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := tp.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("tracing shutdown failed")
	}
}
