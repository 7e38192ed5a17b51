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

// Package scanner runs library scans: it walks the platform folders,
// decides which ROMs need identifying, resolves their metadata, writes
// them to the store and purges rows whose files are gone.
package scanner

import (
	"context"
	"errors"
	"fmt"

	"github.com/ZaparooProject/zaparoo-romscan/pkg/config"
	"github.com/ZaparooProject/zaparoo-romscan/pkg/database"
	"github.com/ZaparooProject/zaparoo-romscan/pkg/database/mediascanner"
	"github.com/ZaparooProject/zaparoo-romscan/pkg/helpers/syncutil"
	"github.com/ZaparooProject/zaparoo-romscan/pkg/scraper"
	"github.com/ZaparooProject/zaparoo-romscan/pkg/scraper/resolver"
	"github.com/ZaparooProject/zaparoo-romscan/pkg/service/jobs"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

// JobName is the job runner name of a library scan.
const JobName = "scan_library"

var (
	ErrScanInProgress     = errors.New("scan already in progress")
	ErrScanNotRunning     = errors.New("no scan is running")
	ErrInvalidRequest     = errors.New("invalid scan request")
	ErrAllPlatformsFailed = errors.New("every platform in scope failed")
	ErrNoRunner           = errors.New("scanner has no job runner")
	ErrScanPanicked       = errors.New("scan panicked")
)

type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// Status is a snapshot of the scanner. Stats and Error belong to the
// running scan or, when idle again, to the last one.
type Status struct {
	State State  `json:"state"`
	JobID string `json:"jobId,omitempty"`
	Error string `json:"error,omitempty"`
	Stats Stats  `json:"stats"`
}

// SnapshotSource hands out the scan settings. A snapshot is taken once
// per scan.
type SnapshotSource interface {
	ScanSnapshot() config.ScanConfig
}

// MetadataResolver identifies one ROM candidate against the providers.
type MetadataResolver interface {
	Resolve(
		ctx context.Context,
		candidate *mediascanner.RomCandidate,
		platform resolver.Platform,
		providers []scraper.Provider,
	) scraper.MergedMetadata
}

// Scanner allows one scan at a time across the process.
type Scanner struct {
	fs       afero.Fs
	store    database.RomStore
	cfg      SnapshotSource
	resolver MetadataResolver
	sink     ProgressSink
	registry *scraper.Registry
	runner   *jobs.Runner
	cancel   context.CancelFunc
	status   Status
	mu       syncutil.Mutex
}

type Option func(*Scanner)

// WithFs sets the filesystem the library is read from.
func WithFs(fs afero.Fs) Option {
	return func(s *Scanner) {
		s.fs = fs
	}
}

func WithResolver(r MetadataResolver) Option {
	return func(s *Scanner) {
		s.resolver = r
	}
}

// WithSink sets where progress events go. Events are dropped by default.
func WithSink(sink ProgressSink) Option {
	return func(s *Scanner) {
		s.sink = sink
	}
}

// WithRunner sets the job runner Start enqueues scans on.
func WithRunner(r *jobs.Runner) Option {
	return func(s *Scanner) {
		s.runner = r
	}
}

func New(store database.RomStore, cfg SnapshotSource, registry *scraper.Registry, opts ...Option) *Scanner {
	s := &Scanner{
		fs:       afero.NewOsFs(),
		store:    store,
		cfg:      cfg,
		registry: registry,
		resolver: resolver.New(nil),
		sink:     discardSink{},
		status:   Status{State: StateIdle},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Status returns the current scanner state.
func (s *Scanner) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// begin claims the scanner for a new scan.
func (s *Scanner) begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status.State == StateRunning {
		return ErrScanInProgress
	}
	s.status = Status{State: StateRunning}
	return nil
}

func (s *Scanner) end(state State, stats Stats, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.State = state
	s.status.Stats = stats
	s.status.Error = ""
	if err != nil {
		s.status.Error = err.Error()
	}
	s.cancel = nil
}

// cancelQueued ends a scan whose job was dropped before it started. It is
// a no-op unless that job's scan is still the running one.
func (s *Scanner) cancelQueued(jobID string) {
	s.mu.Lock()
	if s.status.State != StateRunning || s.status.JobID != jobID {
		s.mu.Unlock()
		return
	}
	s.status.State = StateCancelled
	s.status.Error = ""
	s.cancel = nil
	s.mu.Unlock()

	log.Info().Str("job", jobID).Msg("queued scan cancelled")
	s.emit(context.Background(), EventCancelled, "Scan cancelled", DonePayload{})
}

// Start validates the request and queues the scan on the job runner. It
// returns the job id without waiting for the scan.
func (s *Scanner) Start(ctx context.Context, req Request) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	if s.runner == nil {
		return "", ErrNoRunner
	}

	snapshot := s.cfg.ScanSnapshot()
	if err := s.begin(); err != nil {
		return "", err
	}

	id, err := s.runner.Enqueue(ctx, jobs.Job{
		Name: JobName,
		Run: func(jobCtx context.Context) error {
			_, err := s.execute(jobCtx, req, snapshot)
			return err
		},
		OnSkip: func(info jobs.JobInfo) {
			s.cancelQueued(info.ID)
		},
	}, snapshot.Timeout)
	if err != nil {
		s.end(StateFailed, Stats{}, err)
		return "", fmt.Errorf("failed to enqueue scan: %w", err)
	}

	s.mu.Lock()
	s.status.JobID = id
	s.mu.Unlock()

	// the job may have been dropped before its id was recorded
	if info, ok := s.runner.Get(id); ok && info.Status == jobs.StatusCancelled && info.StartedAt.IsZero() {
		s.cancelQueued(id)
	}

	log.Info().Str("job", id).Str("type", string(req.ScanType)).Msg("scan queued")
	return id, nil
}

// Run scans synchronously on the caller's goroutine.
func (s *Scanner) Run(ctx context.Context, req Request) (Stats, error) {
	if err := req.Validate(); err != nil {
		return Stats{}, err
	}
	snapshot := s.cfg.ScanSnapshot()
	if err := s.begin(); err != nil {
		return Stats{}, err
	}
	return s.execute(ctx, req, snapshot)
}

// Stop requests cancellation of the running scan. It returns once the
// request is made, the scan stops at the next ROM.
func (s *Scanner) Stop() error {
	s.mu.Lock()
	state := s.status.State
	jobID := s.status.JobID
	cancel := s.cancel
	s.mu.Unlock()

	if state != StateRunning {
		return ErrScanNotRunning
	}

	if s.runner != nil && s.runner.CancelByName(JobName) > 0 && jobID != "" {
		// a job cancelled before the worker picked it up never runs
		if info, ok := s.runner.Get(jobID); ok &&
			info.Status == jobs.StatusCancelled && info.StartedAt.IsZero() {
			s.cancelQueued(jobID)
		}
	}
	if cancel != nil {
		cancel()
	}

	log.Info().Msg("scan stop requested")
	return nil
}

func (s *Scanner) emit(ctx context.Context, name, status string, payload any) {
	err := s.sink.Emit(ctx, Event{Name: name, Status: status, Payload: payload})
	if err != nil {
		log.Warn().Err(err).Str("event", name).Msg("failed to emit scan event")
	}
}

// execute runs a claimed scan to its terminal state.
//
//nolint:gocritic // scan config copied for immutability
func (s *Scanner) execute(ctx context.Context, req Request, cfg config.ScanConfig) (stats Stats, err error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	run := newScanRun(s, req, cfg)
	defer func() {
		p := recover()
		if p == nil {
			return
		}
		stats = run.stats
		err = fmt.Errorf("%w: %v", ErrScanPanicked, p)
		log.Error().Interface("panic", p).Interface("stats", stats).Msg("scan panicked")
		s.end(StateFailed, stats, err)
		s.emit(context.WithoutCancel(ctx), EventDoneKO, "Scan failed: "+err.Error(),
			DonePayload{Stats: stats, Error: err.Error()})
	}()

	stats, err = run.scan(ctx)

	// terminal events go out even when the scan context is done
	emitCtx := context.WithoutCancel(ctx)
	cause := context.Cause(ctx)

	switch {
	case err == nil:
		log.Info().Interface("stats", stats).Msg("scan completed")
		s.end(StateCompleted, stats, nil)
		s.emit(emitCtx, EventDone, doneStatus(stats), DonePayload{Stats: stats})
		return stats, nil
	case ctx.Err() != nil && !errors.Is(cause, jobs.ErrJobTimeout):
		log.Info().Interface("stats", stats).Msg("scan cancelled")
		s.end(StateCancelled, stats, nil)
		s.emit(emitCtx, EventCancelled, "Scan cancelled", DonePayload{Stats: stats})
		return stats, fmt.Errorf("scan cancelled: %w", ctx.Err())
	default:
		if errors.Is(cause, jobs.ErrJobTimeout) {
			err = jobs.ErrJobTimeout
		}
		log.Error().Err(err).Interface("stats", stats).Msg("scan failed")
		s.end(StateFailed, stats, err)
		s.emit(emitCtx, EventDoneKO, "Scan failed: "+err.Error(), DonePayload{Stats: stats, Error: err.Error()})
		return stats, err
	}
}

func doneStatus(stats Stats) string {
	return fmt.Sprintf(
		"Scan completed: %d platforms, %d ROMs (%d added, %d identified), %d firmware",
		stats.ScannedPlatforms, stats.ScannedRoms, stats.AddedRoms, stats.IdentifiedRoms, stats.ScannedFirmware,
	)
}
