// Stagehand - Show Control for Live Robotics Competitions
// Copyright 2026 Marion L. (marionlk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marionlk/stagehand

// Package main is the entry point for the Stagehand server.
//
// Stagehand drives venue audio, video, and lighting from a robotics
// tournament server's live event stream. One process owns a data
// directory and runs everything under a supervisor tree:
//
//  1. Configuration: koanf with defaults, optional JSON file, and
//     environment overrides (see internal/config)
//  2. Show state: JSON files in the data directory, guarded by a file
//     lock so a second instance cannot corrupt them
//  3. Event pipeline: tournament websocket -> bus -> processor ->
//     device controllers, with every action audited
//  4. Match scheduler: upcoming-match popups from the cached schedule
//  5. Control API: operator HTTP surface with Prometheus metrics
//
// Shutdown on SIGINT/SIGTERM is graceful: producers stop first, the
// router drains in-flight events, and the HTTP server finishes open
// requests before the process exits.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/gofrs/flock"

	"github.com/marionlk/stagehand/internal/api"
	"github.com/marionlk/stagehand/internal/audit"
	"github.com/marionlk/stagehand/internal/bus"
	"github.com/marionlk/stagehand/internal/config"
	"github.com/marionlk/stagehand/internal/devices"
	"github.com/marionlk/stagehand/internal/fieldstate"
	"github.com/marionlk/stagehand/internal/logging"
	"github.com/marionlk/stagehand/internal/processor"
	"github.com/marionlk/stagehand/internal/rules"
	"github.com/marionlk/stagehand/internal/scheduler"
	"github.com/marionlk/stagehand/internal/storage"
	"github.com/marionlk/stagehand/internal/supervisor"
	"github.com/marionlk/stagehand/internal/tm"
)

const routerStartTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("data_dir", cfg.DataDir).
		Str("tm_base_url", cfg.TM.BaseURL).
		Int("field_set_id", cfg.TM.FieldSetID).
		Msg("Starting Stagehand")

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		logging.Fatal().Err(err).Str("data_dir", cfg.DataDir).Msg("Failed to create data directory")
	}

	// One process per data directory. The state files are rewritten in
	// place, so a second instance would corrupt the show.
	dirLock := flock.New(filepath.Join(cfg.DataDir, "stagehand.lock"))
	locked, err := dirLock.TryLock()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to acquire data directory lock")
	}
	if !locked {
		logging.Fatal().Str("data_dir", cfg.DataDir).Msg("Data directory is locked by another instance")
	}
	defer func() {
		if err := dirLock.Unlock(); err != nil {
			logging.Error().Err(err).Msg("Error releasing data directory lock")
		}
	}()

	files, err := storage.NewStore(cfg.DataDir)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open state store")
	}

	trail, err := audit.Open(cfg.DataDir)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open audit trail")
	}
	defer func() {
		if err := trail.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing audit trail")
		}
	}()

	show := config.LoadShow(files)
	fields := fieldstate.NewStore(files)
	ruleSet := rules.FromStore(files)

	registry := devices.NewRegistry(show, fields, trail)

	b := bus.New(0)
	defer func() {
		if err := b.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing event bus")
		}
	}()

	proc := processor.New(files, fields, ruleSet, registry, trail)
	routerSvc := supervisor.NewRouterService(func() (*message.Router, error) {
		return processor.NewRouter(b, proc)
	})

	tmClient, err := tm.NewClient(cfg.TM)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to build tournament API client")
	}
	connector, err := tm.NewConnector(cfg.TM, tmClient, b)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to build tournament connector")
	}
	fetcher := tm.NewFetcher(tmClient, files, cfg.TM.FetchInterval)
	matchScheduler := scheduler.New(files, fields)

	handler := api.NewHandler(files, fields, registry, b)
	apiServer := api.NewServer(cfg.Server, api.NewRouter(handler, cfg.Server))

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddPipelineService(routerSvc)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	errCh := tree.ServeBackground(ctx)

	// The bus drops events published with no consumer, so every producer
	// joins the tree only once the router is subscribed.
	select {
	case <-routerSvc.Ready():
	case err := <-errCh:
		logging.Fatal().Err(err).Msg("Supervisor tree stopped before the event router started")
	case <-time.After(routerStartTimeout):
		logging.Fatal().Msg("Event router did not start in time")
	}

	tree.AddPipelineService(connector)
	tree.AddPipelineService(fetcher)
	tree.AddPipelineService(matchScheduler)
	tree.AddAPIService(apiServer)

	logging.Info().
		Str("addr", apiServer.Addr()).
		Msg("Stagehand running")

	if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor tree stopped with error")
	}

	if report, err := tree.UnstoppedServiceReport(); err == nil && len(report) > 0 {
		for _, svc := range report {
			logging.Warn().Str("service", svc.Name).Msg("Service did not stop within the shutdown timeout")
		}
	}

	logging.Info().Msg("Stagehand stopped")
}
