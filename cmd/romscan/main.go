// Zaparoo Core
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of Zaparoo Core.
//
// Zaparoo Core is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Zaparoo Core is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Zaparoo Core.  If not, see <http://www.gnu.org/licenses/>.

package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ZaparooProject/zaparoo-romscan/internal/telemetry"
	"github.com/ZaparooProject/zaparoo-romscan/pkg/config"
	"github.com/ZaparooProject/zaparoo-romscan/pkg/database/romdb"
	"github.com/ZaparooProject/zaparoo-romscan/pkg/helpers"
	"github.com/ZaparooProject/zaparoo-romscan/pkg/scraper"
	"github.com/ZaparooProject/zaparoo-romscan/pkg/scraper/cache"
	"github.com/ZaparooProject/zaparoo-romscan/pkg/scraper/igdb"
	"github.com/ZaparooProject/zaparoo-romscan/pkg/scraper/indices"
	"github.com/ZaparooProject/zaparoo-romscan/pkg/scraper/resolver"
	"github.com/ZaparooProject/zaparoo-romscan/pkg/scraper/screenscraper"
	"github.com/ZaparooProject/zaparoo-romscan/pkg/scraper/thegamesdb"
	"github.com/ZaparooProject/zaparoo-romscan/pkg/service/jobs"
	"github.com/ZaparooProject/zaparoo-romscan/pkg/service/scanner"
	"github.com/ZaparooProject/zaparoo-romscan/pkg/shared/httpclient"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const eventBuffer = 64

type flags struct {
	configDir string
	dataDir   string
	library   string
	scanType  string
	platforms string
	roms      string
	providers string
	debug     bool
	vacuum    bool
	refresh   bool
	jsonOut   bool
}

func main() {
	if err := run(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func parseFlags() *flags {
	f := &flags{}
	flag.StringVar(&f.configDir, "config", config.DefaultConfigDir(), "config directory")
	flag.StringVar(&f.dataDir, "data", config.DefaultDataDir(), "data directory for databases and logs")
	flag.StringVar(&f.library, "library", "", "library path, overrides the config file")
	flag.StringVar(&f.scanType, "type", string(scanner.ScanQuick),
		"scan type: new_platforms, quick, unmatched, update, complete or hashes")
	flag.StringVar(&f.platforms, "platforms", "", "comma separated platform ids to scan")
	flag.StringVar(&f.roms, "roms", "", "comma separated rom ids to force reidentification")
	flag.StringVar(&f.providers, "providers", "", "comma separated providers to query")
	flag.BoolVar(&f.debug, "debug", false, "enable debug logging")
	flag.BoolVar(&f.vacuum, "vacuum", false, "vacuum the library database after the scan")
	flag.BoolVar(&f.refresh, "refresh-indices", false, "refresh the lookup indices before scanning")
	flag.BoolVar(&f.jsonOut, "json", false, "print scan events as json")
	flag.Parse()
	return f
}

func requestArgs(f *flags) map[string]any {
	args := map[string]any{"scan_type": f.scanType}
	if f.platforms != "" {
		args["platform_ids"] = f.platforms
	}
	if f.roms != "" {
		args["selected_rom_ids"] = f.roms
	}
	if f.providers != "" {
		args["providers"] = f.providers
	}
	return args
}

func run() error {
	f := parseFlags()

	req, err := scanner.DecodeRequest(requestArgs(f))
	if err != nil {
		return err
	}

	defaults := config.BaseDefaults
	defaults.DebugLogging = f.debug
	cfg, err := config.NewConfig(f.configDir, defaults)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	if f.library != "" {
		cfg.SetLibraryPath(f.library)
	}

	telemetryWriter, err := telemetry.Init(cfg.ErrorReporting(), cfg.ErrorReportingDSN(), config.AppVersion)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "error reporting unavailable: %s\n", err)
	}
	defer telemetry.Close()

	writers := []io.Writer{zerolog.ConsoleWriter{Out: os.Stderr}}
	if telemetryWriter != nil {
		writers = append(writers, telemetryWriter)
	}
	if err := helpers.InitLogging(filepath.Join(f.dataDir, "logs"), writers); err != nil {
		return fmt.Errorf("error initializing logging: %w", err)
	}
	helpers.SetDebugLogging(cfg.DebugLogging() || f.debug)

	defer func() {
		if r := recover(); r != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Panic: %v\n", r)
			log.Fatal().Msgf("panic: %v", r)
		}
	}()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	store, err := cache.Open(filepath.Join(f.dataDir, config.CacheDbFile), nil)
	if err != nil {
		return fmt.Errorf("error opening cache: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn().Err(err).Msg("error closing cache")
		}
	}()
	if n, err := store.PurgeExpired(); err != nil {
		log.Warn().Err(err).Msg("error purging expired cache entries")
	} else if n > 0 {
		log.Debug().Int("entries", n).Msg("purged expired cache entries")
	}

	refresher := indices.NewRefresher(
		httpclient.NewClientWithTimeout(config.APIRequestTimeout),
		store,
		cfg.IndexSources(),
		nil,
	)
	if f.refresh {
		if err := refresher.RefreshAll(ctx); err != nil {
			log.Warn().Err(err).Msg("index refresh failed")
		}
	}
	refresher.Start(ctx, time.Duration(cfg.IndexRefreshHours())*time.Hour)
	set := indices.NewSet(store, refresher)
	defer set.Wait()

	registry := scraper.NewRegistry(
		screenscraper.New(store),
		igdb.New(store),
		thegamesdb.New(store),
	)

	db, err := romdb.OpenRomDB(ctx, filepath.Join(f.dataDir, config.LibraryDbFile))
	if err != nil {
		return fmt.Errorf("error opening library database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Warn().Err(err).Msg("error closing library database")
		}
	}()

	runner := jobs.NewRunner(ctx)
	defer runner.Close()

	events := make(chan scanner.Event, eventBuffer)
	done := make(chan scanner.Event, 1)
	channelSink := scanner.NewChannelSink(events)
	sink := scanner.SinkFunc(func(ctx context.Context, ev scanner.Event) error {
		switch ev.Name {
		case scanner.EventDone, scanner.EventDoneKO, scanner.EventCancelled:
			done <- ev
			return nil
		default:
			return channelSink.Emit(ctx, ev)
		}
	})

	svc := scanner.New(db, cfg, registry,
		scanner.WithResolver(resolver.New(set)),
		scanner.WithSink(sink),
		scanner.WithRunner(runner),
	)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	jobID, err := svc.Start(ctx, req)
	if err != nil {
		return fmt.Errorf("error starting scan: %w", err)
	}
	log.Debug().Str("job", jobID).Msg("scan started")

	var final scanner.Event
wait:
	for {
		select {
		case ev := <-events:
			printEvent(f.jsonOut, ev)
		case <-sigs:
			if err := svc.Stop(); err != nil && !errors.Is(err, scanner.ErrScanNotRunning) {
				log.Error().Err(err).Msg("error stopping scan")
			}
		case final = <-done:
			break wait
		}
	}
	for len(events) > 0 {
		printEvent(f.jsonOut, <-events)
	}
	printEvent(f.jsonOut, final)

	if f.vacuum && final.Name == scanner.EventDone {
		if err := db.Vacuum(ctx); err != nil {
			log.Warn().Err(err).Msg("error vacuuming library database")
		}
	}

	if status := svc.Status(); status.State == scanner.StateFailed {
		return fmt.Errorf("scan failed: %s", status.Error)
	}
	return nil
}

func printEvent(asJSON bool, ev scanner.Event) {
	if !asJSON {
		_, _ = fmt.Fprintln(os.Stdout, ev.Status)
		return
	}
	data, err := json.Marshal(ev)
	if err != nil {
		log.Warn().Err(err).Str("event", ev.Name).Msg("error encoding event")
		return
	}
	_, _ = fmt.Fprintln(os.Stdout, string(data))
}
