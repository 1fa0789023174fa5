// Copyright 2026 The Statebridge Authors
// SPDX-License-Identifier: Apache-2.0

// statebridged is the statebridge daemon. It keeps three stores
// consistent: the structured SQLite store, the string-only flat
// store, and the hosting context reachable over a websocket.
//
// On startup it pulls the host's initial state (bounded by a
// timeout), then runs the reconciliation engine's periodic cycle
// until terminated. If the structured store cannot be opened after a
// bounded number of retries the daemon degrades to bridge-only
// operation: the flat store and the host channel keep working, and
// structured reads and writes resume on the next restart.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/statebridge-dev/statebridge/bridge"
	"github.com/statebridge-dev/statebridge/flatstore"
	"github.com/statebridge-dev/statebridge/lib/config"
	"github.com/statebridge-dev/statebridge/lib/version"
	"github.com/statebridge-dev/statebridge/store"
	"github.com/statebridge-dev/statebridge/syncengine"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath string
	var verbose bool
	var standalone bool
	var showVersion bool

	flagSet := pflag.NewFlagSet("statebridged", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to statebridge.yaml (default: $STATEBRIDGE_CONFIG)")
	flagSet.BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	flagSet.BoolVar(&standalone, "standalone", false, "run without a host channel even if one is configured")
	flagSet.BoolVar(&showVersion, "version", false, "print version and exit")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		return err
	}
	if showVersion {
		if verbose {
			fmt.Println(version.Full())
		} else {
			version.Print("statebridged")
		}
		return nil
	}

	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

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
	if err := cfg.EnsurePaths(); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return serve(ctx, cfg, logger, standalone)
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger, standalone bool) error {
	flat, err := openFlat(cfg, logger)
	if err != nil {
		return err
	}

	// A store that refuses to open does not take the process down:
	// the flat store and the host channel still work, so run
	// bridge-only and let the next restart try again.
	entryStore := openStoreWithRetry(ctx, cfg, logger)
	if entryStore != nil {
		defer entryStore.Close()
	}

	var channel bridge.Channel
	if !standalone && cfg.Host.URL != "" {
		channel, err = bridge.DialWebSocket(ctx, cfg.Host.URL, logger)
		if err != nil {
			return err
		}
	}

	hostBridge, err := bridge.New(bridge.Config{
		Channel:            channel,
		Flat:               flat,
		InitialPullTimeout: cfg.Host.InitialPullTimeoutDuration(),
		RemoteInterval:     cfg.Host.RemoteIntervalDuration(),
		ReadyDelay:         cfg.Host.ReadyDelayDuration(),
		Reload: func(context.Context) {
			logger.Info("host overwrite applied, application should re-read its state")
		},
		Logger: logger,
	})
	if err != nil {
		return err
	}

	var engine *syncengine.Engine
	if entryStore != nil {
		engine, err = syncengine.New(syncengine.Config{
			Store:           entryStore,
			Flat:            flat,
			Notifier:        hostBridge,
			Namespace:       cfg.Sync.Namespace,
			StoreInterval:   cfg.Sync.StoreIntervalDuration(),
			MaxEncodedBytes: cfg.Sync.MaxEncodedBytes,
			Logger:          logger,
		})
		if err != nil {
			return err
		}
		hostBridge.SetSyncer(engine)
	} else {
		logger.Warn("structured store unavailable, running bridge-only")
	}

	hostBridge.Start(ctx)
	defer hostBridge.Stop()

	if imported, err := hostBridge.PullInitialSaveData(ctx); err != nil {
		logger.Error("initial pull failed", "error", err)
	} else if imported > 0 {
		logger.Info("initial host state applied", "imported", imported)
	}

	if engine == nil {
		<-ctx.Done()
		logger.Info("shutting down")
		return nil
	}

	err = engine.Run(ctx)
	logger.Info("shutting down")
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}

func openFlat(cfg *config.Config, logger *slog.Logger) (flatstore.Store, error) {
	if cfg.Flat.Path == "" {
		logger.Warn("no flat store path configured, state will not survive a restart")
		return flatstore.NewMemory(), nil
	}
	return flatstore.OpenFile(cfg.Flat.Path)
}

// openStoreWithRetry tries the configured number of open attempts
// with a pause in between, returning nil when all of them fail.
func openStoreWithRetry(ctx context.Context, cfg *config.Config, logger *slog.Logger) *store.Store {
	delay := cfg.Store.OpenRetryDelayDuration()
	for attempt := 1; attempt <= cfg.Store.OpenRetries; attempt++ {
		entryStore, err := store.Open(store.Config{
			Path:           cfg.Store.Path,
			PoolSize:       cfg.Store.PoolSize,
			TimestampIndex: cfg.Store.TimestampIndex,
			Logger:         logger,
		})
		if err == nil {
			return entryStore
		}
		logger.Error("store open failed",
			"attempt", attempt,
			"of", cfg.Store.OpenRetries,
			"error", err,
		)
		if attempt == cfg.Store.OpenRetries {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil
		}
	}
	return nil
}
