package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/mattn/go-isatty"

	"github.com/cwygoda/thaw/internal/adapter/filestate"
	"github.com/cwygoda/thaw/internal/adapter/glacier"
	"github.com/cwygoda/thaw/internal/adapter/sqlite"
	"github.com/cwygoda/thaw/internal/cli"
	"github.com/cwygoda/thaw/internal/config"
	"github.com/cwygoda/thaw/internal/domain"
	"github.com/cwygoda/thaw/internal/inventory"
	"github.com/cwygoda/thaw/internal/logging"
	"github.com/cwygoda/thaw/internal/progress"
	"github.com/cwygoda/thaw/internal/transfer"
	"github.com/cwygoda/thaw/internal/worker"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Getenv, os.Stdout, os.Stderr))
}

func run(args []string, getenv func(string) string, stdout, stderr *os.File) int {
	cfg, rest, err := config.Load(args, getenv, stderr)
	if errors.Is(err, flag.ErrHelp) {
		cli.Usage(stderr)
		return exitOK
	}
	if err != nil {
		fmt.Fprintf(stderr, "thaw: %v\n", err)
		return exitUsage
	}

	cmd, err := cli.Parse(rest)
	if err != nil {
		fmt.Fprintf(stderr, "thaw: %v\n\n", err)
		cli.Usage(stderr)
		return exitUsage
	}

	base, err := logging.New(stderr, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(stderr, "thaw: %v\n", err)
		return exitUsage
	}
	log := base.With("run_id", uuid.NewString(), "command", cmd.Name)

	// Graceful shutdown setup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, closeApp, err := build(ctx, cfg, cmd, log, stdout, stderr)
	if err != nil {
		log.Error(ctx, "initialization failed", "error", err)
		return exitFailure
	}
	defer closeApp()

	if err := app.Run(ctx, cmd); err != nil {
		if ctx.Err() != nil {
			log.Warn(ctx, "interrupted; rerun the same command to resume", "error", err)
		} else {
			log.Error(ctx, "command failed", "error", err)
		}
		fmt.Fprintf(stderr, "thaw: %v\n", err)
		return exitFailure
	}
	return exitOK
}

func build(ctx context.Context, cfg *config.Config, cmd *cli.Command, log logging.Logger, stdout, stderr *os.File) (*cli.App, func(), error) {
	app := &cli.App{
		SizeThreshold: inventory.DefaultSizeThreshold,
		Out:           stdout,
		Log:           log,
	}
	noop := func() {}
	if !cmd.NeedsBackend() {
		return app, noop, nil
	}

	client, err := glacier.New(ctx, glacier.Options{
		Region:          cfg.Region,
		CredentialsFile: cfg.CredentialsFile,
		PartSize:        int64(cfg.PartSize),
		Log:             log,
	})
	if err != nil {
		return nil, noop, err
	}

	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return nil, noop, err
	}

	retrievalPoller, err := worker.New(client, worker.Policy{
		Interval: cfg.RetrievalPollInterval,
		Jitter:   cfg.PollJitter,
		MaxWait:  cfg.MaxPollWait,
	}, log)
	if err != nil {
		closeStore()
		return nil, noop, err
	}
	inventoryPoller, err := worker.New(client, worker.Policy{
		Interval: cfg.InventoryPollInterval,
		Jitter:   cfg.PollJitter,
		MaxWait:  cfg.MaxPollWait,
	}, log)
	if err != nil {
		closeStore()
		return nil, noop, err
	}

	app.Retrievals = domain.NewRetrievalService(client, store, retrievalPoller, log)
	app.Inventories = domain.NewInventoryService(client, inventoryPoller, cfg.OutputDir, log)
	app.Archives = domain.NewArchiveService(client, log)
	app.Transfers = transfer.New(client, reporter(stderr, log), log)
	return app, closeStore, nil
}

// openStore returns the configured job-state store and its close function.
func openStore(ctx context.Context, cfg *config.Config, log logging.Logger) (domain.JobStateStore, func(), error) {
	if cfg.StateBackend == config.BackendSQLite {
		repo, err := sqlite.New(cfg.DBPath, cfg.StaleAfter)
		if err != nil {
			return nil, nil, fmt.Errorf("initialize database: %w", err)
		}
		// Drop state for jobs that have expired server-side
		if purged, err := repo.PurgeStale(ctx); err != nil {
			log.Warn(ctx, "failed to purge stale job state", "error", err)
		} else if purged > 0 {
			log.Info(ctx, "purged stale job state", "count", purged)
		}
		return repo, func() { repo.Close() }, nil
	}

	store, err := filestate.New(cfg.StateDir, cfg.StaleAfter)
	if err != nil {
		return nil, nil, err
	}
	return store, func() {}, nil
}

// reporter prints progress dots on a terminal and logs milestones otherwise.
func reporter(w *os.File, log logging.Logger) progress.Reporter {
	if isatty.IsTerminal(w.Fd()) || isatty.IsCygwinTerminal(w.Fd()) {
		return progress.NewDotReporter(w)
	}
	return progress.NewLogReporter(log)
}
