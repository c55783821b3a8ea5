// Copyright 2026 The Roadlog Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/roadlog-foundation/roadlog/ingest"
	"github.com/roadlog-foundation/roadlog/lib/blobstore"
	"github.com/roadlog-foundation/roadlog/lib/clock"
	"github.com/roadlog-foundation/roadlog/lib/config"
	"github.com/roadlog-foundation/roadlog/lib/lockmap"
	"github.com/roadlog-foundation/roadlog/lib/process"
	"github.com/roadlog-foundation/roadlog/lib/service"
	"github.com/roadlog-foundation/roadlog/lib/store"
	"github.com/roadlog-foundation/roadlog/lib/version"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	var configPath string
	var showVersion bool
	flag.StringVar(&configPath, "config", "", "path to the roadlog.yaml config file (default: $ROADLOG_CONFIG)")
	flag.BoolVar(&showVersion, "version", false, "print version information and exit")
	flag.Parse()

	if showVersion {
		fmt.Println("roadlog-ingest " + version.Info())
		return nil
	}

	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.EnsurePaths(); err != nil {
		return err
	}

	logger := service.NewLogger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metaStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer metaStore.Close()

	blobs, err := blobstore.NewFilesystem(cfg.Paths.Blobs)
	if err != nil {
		return err
	}

	worker := ingest.NewWorker(ingest.Config{
		Store:  metaStore,
		Blobs:  blobs,
		Locks:  lockmap.NewRegistry(),
		Logger: logger,
	})
	pool := ingest.NewPool(ctx, worker, cfg.Ingest.Workers)
	defer pool.Close()

	spool := ingest.NewSpool(cfg.Paths.Spool, pool, clock.Real(), cfg.PollInterval(), logger)

	logger.Info("ingestion service running",
		"spool", cfg.Paths.Spool,
		"blobs", cfg.Paths.Blobs,
		"database", cfg.Database.Driver,
		"workers", cfg.Ingest.Workers,
		"version", version.Info(),
	)

	err = spool.Run(ctx)
	if errors.Is(err, context.Canceled) {
		logger.Info("shutting down")
		return nil
	}
	return err
}

// openStore opens the metadata store backend the config selects.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.Store, error) {
	switch cfg.Database.Driver {
	case "sqlite":
		return store.OpenSQLite(store.SQLiteConfig{
			Path:   cfg.Database.Path,
			Logger: logger,
		})
	case "postgres":
		return store.OpenPostgres(ctx, store.PostgresConfig{
			DSN:    cfg.Database.DSN,
			Logger: logger,
		})
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}
}
