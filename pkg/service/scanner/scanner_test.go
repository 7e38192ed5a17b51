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

package scanner

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ZaparooProject/zaparoo-romscan/pkg/config"
	"github.com/ZaparooProject/zaparoo-romscan/pkg/database"
	"github.com/ZaparooProject/zaparoo-romscan/pkg/database/romdb"
	"github.com/ZaparooProject/zaparoo-romscan/pkg/scraper"
	"github.com/ZaparooProject/zaparoo-romscan/pkg/scraper/hasher"
	"github.com/ZaparooProject/zaparoo-romscan/pkg/service/jobs"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRoot = "/library"

var errProviderDown = errors.New("provider down")

// fakeProvider matches any search term containing one of its known keys.
type fakeProvider struct {
	onTitle    func(ctx context.Context)
	err        error
	known      map[string]string
	hashCalls  atomic.Int32
	titleCalls atomic.Int32
}

func (*fakeProvider) Name() string              { return scraper.ProviderScreenScraper }
func (*fakeProvider) IsEnabled() bool           { return true }
func (*fakeProvider) SupportsHashLookup() bool  { return true }
func (*fakeProvider) SupportsTitleLookup() bool { return true }

func (p *fakeProvider) IdentifyByHash(context.Context, []hasher.FileHash, string) (*scraper.Record, error) {
	p.hashCalls.Add(1)
	return nil, nil //nolint:nilnil // no hash match
}

func (p *fakeProvider) IdentifyByTitle(ctx context.Context, term, _ string) (*scraper.Record, error) {
	p.titleCalls.Add(1)
	if p.onTitle != nil {
		p.onTitle(ctx)
	}
	if p.err != nil {
		return nil, p.err
	}
	for key, id := range p.known {
		if strings.Contains(strings.ToLower(term), key) {
			return &scraper.Record{
				Provider:    scraper.ProviderScreenScraper,
				ProviderID:  id,
				Title:       term + " (Official)",
				Rating:      16,
				RatingScale: 20,
			}, nil
		}
	}
	return nil, nil //nolint:nilnil // no title match
}

type staticConfig struct {
	cfg config.ScanConfig
}

func (c *staticConfig) ScanSnapshot() config.ScanConfig {
	return c.cfg
}

type eventLog struct {
	events []Event
	mu     sync.Mutex
}

func (l *eventLog) Emit(_ context.Context, ev Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
	return nil
}

func (l *eventLog) names() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	names := make([]string, len(l.events))
	for i, ev := range l.events {
		names[i] = ev.Name
	}
	return names
}

type testEnv struct {
	fs       afero.Fs
	db       *romdb.RomDB
	cfg      *staticConfig
	provider *fakeProvider
	events   *eventLog
	scanner  *Scanner
}

func writeFile(t *testing.T, afs afero.Fs, p, data string) {
	t.Helper()
	full := filepath.Join(testRoot, filepath.FromSlash(p))
	require.NoError(t, afs.MkdirAll(filepath.Dir(full), 0o750))
	require.NoError(t, afero.WriteFile(afs, full, []byte(data), 0o600))
}

func removeFile(t *testing.T, afs afero.Fs, p string) {
	t.Helper()
	require.NoError(t, afs.Remove(filepath.Join(testRoot, filepath.FromSlash(p))))
}

func newTestEnv(t *testing.T, scan config.Scan, opts ...Option) *testEnv {
	t.Helper()

	sqlDB, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "romscan.db")+"?_foreign_keys=ON")
	require.NoError(t, err)
	db, err := romdb.NewForTesting(context.Background(), sqlDB, clockwork.NewFakeClock())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	env := &testEnv{
		fs:       afero.NewMemMapFs(),
		db:       db,
		provider: &fakeProvider{known: map[string]string{"metroid": "1001", "zelda": "1002"}},
		events:   &eventLog{},
	}
	env.cfg = &staticConfig{
		cfg: config.NewScanConfig(testRoot, scan, []string{scraper.ProviderScreenScraper}),
	}

	writeFile(t, env.fs, "roms/snes/Super Metroid (USA).sfc", "metroid")
	writeFile(t, env.fs, "roms/snes/Legend of Zelda, The (USA) (Rev 1).sfc", "zelda")
	writeFile(t, env.fs, "roms/nes/Unknown Homebrew (PD).nes", "homebrew")

	opts = append([]Option{WithFs(env.fs), WithSink(env.events)}, opts...)
	env.scanner = New(db, env.cfg, scraper.NewRegistry(env.provider), opts...)
	return env
}

func (e *testEnv) run(t *testing.T, req Request) Stats {
	t.Helper()
	stats, err := e.scanner.Run(context.Background(), req)
	require.NoError(t, err)
	return stats
}

func (e *testEnv) platform(t *testing.T, fsSlug string) database.Platform {
	t.Helper()
	p, err := e.db.GetPlatformByFSSlug(context.Background(), fsSlug)
	require.NoError(t, err)
	return p
}

func (e *testEnv) rom(t *testing.T, fsSlug, fileName string) (database.Rom, error) {
	t.Helper()
	return e.db.GetRomByFileName(context.Background(), e.platform(t, fsSlug).DBID, fileName)
}

func TestRun_QuickTwiceAddsNothing(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, config.Scan{})

	first := env.run(t, Request{ScanType: ScanQuick})
	assert.Equal(t, Stats{
		ScannedPlatforms:    2,
		AddedPlatforms:      2,
		IdentifiedPlatforms: 2,
		ScannedRoms:         3,
		AddedRoms:           3,
		IdentifiedRoms:      2,
	}, first)
	calls := env.provider.titleCalls.Load()
	assert.Equal(t, int32(3), calls)

	second := env.run(t, Request{ScanType: ScanQuick})
	assert.Equal(t, 0, second.AddedRoms)
	assert.Equal(t, 0, second.AddedPlatforms)
	assert.Equal(t, 3, second.ScannedRoms)
	assert.Equal(t, 2, second.IdentifiedRoms)
	assert.Equal(t, calls, env.provider.titleCalls.Load())
	assert.Equal(t, StateCompleted, env.scanner.Status().State)
}

func TestRun_StoresResolvedMetadata(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, config.Scan{})
	env.run(t, Request{ScanType: ScanQuick})

	snes := env.platform(t, "snes")
	assert.Equal(t, "snes", snes.Slug)
	assert.Equal(t, "4", snes.ProviderIDs[scraper.ProviderScreenScraper])

	rom, err := env.rom(t, "snes", "Super Metroid (USA).sfc")
	require.NoError(t, err)
	assert.Equal(t, "Super Metroid (Official)", rom.Name)
	assert.Equal(t, map[string]string{scraper.ProviderScreenScraper: "1001"}, rom.ProviderIDs)
	assert.Equal(t, []string{"USA"}, rom.Regions)
	assert.Equal(t, "sfc", rom.FileExtension)
	require.NotNil(t, rom.AverageRating)
	assert.InDelta(t, 80, *rom.AverageRating, 0.001)

	zelda, err := env.rom(t, "snes", "Legend of Zelda, The (USA) (Rev 1).sfc")
	require.NoError(t, err)
	assert.Equal(t, "1", zelda.Revision)

	homebrew, err := env.rom(t, "nes", "Unknown Homebrew (PD).nes")
	require.NoError(t, err)
	assert.Equal(t, "Unknown Homebrew", homebrew.Name)
	assert.False(t, homebrew.IsIdentified())
}

func TestRun_AllProvidersFail(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, config.Scan{})
	env.provider.err = errProviderDown

	stats := env.run(t, Request{ScanType: ScanComplete})
	assert.Equal(t, 0, stats.IdentifiedRoms)
	assert.Equal(t, 3, stats.AddedRoms)

	rom, err := env.rom(t, "snes", "Super Metroid (USA).sfc")
	require.NoError(t, err)
	assert.Equal(t, "Super Metroid", rom.Name)
	assert.Empty(t, rom.ProviderIDs)
}

func TestRun_UnmatchedOnlyRetriesUnmatched(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, config.Scan{})
	env.run(t, Request{ScanType: ScanQuick})
	before := env.provider.titleCalls.Load()

	env.provider.known["homebrew"] = "2001"
	stats := env.run(t, Request{ScanType: ScanUnmatched})

	assert.Equal(t, before+1, env.provider.titleCalls.Load())
	assert.Equal(t, 3, stats.IdentifiedRoms)
	rom, err := env.rom(t, "nes", "Unknown Homebrew (PD).nes")
	require.NoError(t, err)
	assert.True(t, rom.IsIdentified())
}

func TestRun_UpdateOnlyRefreshesMatched(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, config.Scan{})
	env.run(t, Request{ScanType: ScanQuick})
	before := env.provider.titleCalls.Load()

	env.run(t, Request{ScanType: ScanUpdate})
	assert.Equal(t, before+2, env.provider.titleCalls.Load())
}

func TestRun_SelectedRomIsReidentified(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, config.Scan{})
	env.run(t, Request{ScanType: ScanQuick})
	before := env.provider.titleCalls.Load()

	rom, err := env.rom(t, "snes", "Super Metroid (USA).sfc")
	require.NoError(t, err)

	stats := env.run(t, Request{ScanType: ScanQuick, SelectedRomIDs: []int64{rom.DBID}})
	assert.Equal(t, before+1, env.provider.titleCalls.Load())
	assert.Equal(t, 0, stats.AddedRoms)
}

func TestRun_PurgeIsScopedToScannedPlatforms(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, config.Scan{})
	env.run(t, Request{ScanType: ScanComplete})
	nes := env.platform(t, "nes")

	removeFile(t, env.fs, "roms/snes/Super Metroid (USA).sfc")

	env.run(t, Request{ScanType: ScanComplete, PlatformIDs: []int64{nes.DBID}})
	_, err := env.rom(t, "snes", "Super Metroid (USA).sfc")
	require.NoError(t, err, "rom on a platform outside the scan must not be purged")

	env.run(t, Request{ScanType: ScanComplete})
	_, err = env.rom(t, "snes", "Super Metroid (USA).sfc")
	require.ErrorIs(t, err, database.ErrNotFound)
	_, err = env.rom(t, "snes", "Legend of Zelda, The (USA) (Rev 1).sfc")
	require.NoError(t, err)
}

func TestRun_QuickKeepsSkippedRoms(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, config.Scan{})
	env.run(t, Request{ScanType: ScanQuick})
	env.run(t, Request{ScanType: ScanQuick})

	_, err := env.rom(t, "snes", "Super Metroid (USA).sfc")
	require.NoError(t, err)
}

func TestRun_ExcludedPlatformIsNeverPurged(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, config.Scan{})
	env.run(t, Request{ScanType: ScanComplete})

	env.cfg.cfg = config.NewScanConfig(testRoot, config.Scan{
		Exclusions: config.Exclusions{Platforms: []string{"nes"}},
	}, []string{scraper.ProviderScreenScraper})
	removeFile(t, env.fs, "roms/nes/Unknown Homebrew (PD).nes")

	stats := env.run(t, Request{ScanType: ScanComplete})
	assert.Equal(t, 1, stats.ScannedPlatforms)

	_, err := env.rom(t, "nes", "Unknown Homebrew (PD).nes")
	require.NoError(t, err)
}

func TestRun_RemovedPlatformIsPurged(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, config.Scan{})
	env.run(t, Request{ScanType: ScanComplete})

	require.NoError(t, env.fs.RemoveAll(filepath.Join(testRoot, "roms", "nes")))
	env.run(t, Request{ScanType: ScanComplete})

	_, err := env.db.GetPlatformByFSSlug(context.Background(), "nes")
	require.ErrorIs(t, err, database.ErrNotFound)
}

func TestRun_NewPlatformsSkipsKnown(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, config.Scan{})
	env.run(t, Request{ScanType: ScanQuick})

	writeFile(t, env.fs, "roms/megadrive/Sonic the Hedgehog (USA, Europe).md", "sonic")
	stats := env.run(t, Request{ScanType: ScanNewPlatforms})

	assert.Equal(t, 1, stats.ScannedPlatforms)
	assert.Equal(t, 1, stats.AddedPlatforms)
	assert.Equal(t, 1, stats.ScannedRoms)
	assert.Equal(t, "genesis", env.platform(t, "megadrive").Slug)
}

func TestRun_BindingSetsCanonicalSlugOnce(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, config.Scan{Bindings: map[string]string{"nes": "famicom"}})
	env.run(t, Request{ScanType: ScanQuick})
	assert.Equal(t, "nes", env.platform(t, "nes").Slug)

	env.cfg.cfg = config.NewScanConfig(testRoot, config.Scan{
		Bindings: map[string]string{"nes": "snes"},
	}, []string{scraper.ProviderScreenScraper})
	env.run(t, Request{ScanType: ScanQuick})
	assert.Equal(t, "nes", env.platform(t, "nes").Slug)
}

func TestRun_HashesNeverCallsProviders(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, config.Scan{})
	env.run(t, Request{ScanType: ScanQuick})
	before := env.provider.titleCalls.Load()

	stats := env.run(t, Request{ScanType: ScanHashes})
	assert.Equal(t, before, env.provider.titleCalls.Load())
	assert.Equal(t, int32(0), env.provider.hashCalls.Load())
	assert.Equal(t, 2, stats.IdentifiedRoms)

	rom, err := env.rom(t, "snes", "Super Metroid (USA).sfc")
	require.NoError(t, err)
	require.Len(t, rom.Files, 1)
	assert.NotEmpty(t, rom.Files[0].SHA1)
	assert.Equal(t, "Super Metroid (Official)", rom.Name)
	assert.True(t, rom.IsIdentified())
}

func TestRun_HashingTriesHashLookupFirst(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, config.Scan{HashRoms: true})
	env.run(t, Request{ScanType: ScanQuick})

	assert.Equal(t, int32(3), env.provider.hashCalls.Load())
	assert.Equal(t, int32(3), env.provider.titleCalls.Load())

	// hashes survive a later scan that doesn't hash
	env.cfg.cfg = config.NewScanConfig(testRoot, config.Scan{}, []string{scraper.ProviderScreenScraper})
	env.run(t, Request{ScanType: ScanComplete})
	rom, err := env.rom(t, "snes", "Super Metroid (USA).sfc")
	require.NoError(t, err)
	assert.NotEmpty(t, rom.Files[0].CRC32)
}

func TestRun_MultiPartRom(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, config.Scan{})
	writeFile(t, env.fs, "roms/psx/Final Fantasy VII (USA)/Final Fantasy VII (USA) (Disc 1).bin", "d1")
	writeFile(t, env.fs, "roms/psx/Final Fantasy VII (USA)/Final Fantasy VII (USA) (Disc 2).bin", "disc2")

	env.run(t, Request{ScanType: ScanQuick})

	rom, err := env.rom(t, "psx", "Final Fantasy VII (USA)")
	require.NoError(t, err)
	assert.True(t, rom.IsMulti)
	assert.Len(t, rom.Files, 2)
	assert.Equal(t, int64(7), rom.TotalSize)
}

func TestRun_Firmware(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, config.Scan{})
	writeFile(t, env.fs, "bios/snes/st018.rom", "bios")

	first := env.run(t, Request{ScanType: ScanQuick})
	assert.Equal(t, 1, first.ScannedFirmware)
	assert.Equal(t, 1, first.AddedFirmware)

	second := env.run(t, Request{ScanType: ScanQuick})
	assert.Equal(t, 1, second.ScannedFirmware)
	assert.Equal(t, 0, second.AddedFirmware)

	snes := env.platform(t, "snes")
	fw, err := env.db.GetFirmwareByFileName(context.Background(), snes.DBID, "st018.rom")
	require.NoError(t, err)
	assert.NotEmpty(t, fw.SHA1)

	removeFile(t, env.fs, "bios/snes/st018.rom")
	env.run(t, Request{ScanType: ScanQuick})
	_, err = env.db.GetFirmwareByFileName(context.Background(), snes.DBID, "st018.rom")
	require.ErrorIs(t, err, database.ErrNotFound)
}

func TestRun_Events(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, config.Scan{})
	env.run(t, Request{ScanType: ScanQuick})

	names := env.events.names()
	require.NotEmpty(t, names)
	assert.Equal(t, EventDone, names[len(names)-1])
	assert.Equal(t, EventScanningPlatform, names[0])

	roms := 0
	for _, n := range names {
		if n == EventScanningRom {
			roms++
		}
	}
	assert.Equal(t, 3, roms)

	env.events.mu.Lock()
	last := env.events.events[len(env.events.events)-1]
	env.events.mu.Unlock()
	done, ok := last.Payload.(DonePayload)
	require.True(t, ok)
	assert.Equal(t, 3, done.Stats.AddedRoms)
	assert.Contains(t, last.Status, "Scan completed")
}

func TestRun_CancelAbandonsInFlightRom(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, config.Scan{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	env.provider.onTitle = func(context.Context) { cancel() }

	_, err := env.scanner.Run(ctx, Request{ScanType: ScanComplete})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateCancelled, env.scanner.Status().State)
	assert.Equal(t, int32(1), env.provider.titleCalls.Load())

	names := env.events.names()
	assert.Equal(t, EventCancelled, names[len(names)-1])
	assert.NotContains(t, names, EventScanningRom)

	platforms, err := env.db.ListPlatforms(context.Background())
	require.NoError(t, err)
	require.Len(t, platforms, 1)
	_, err = env.db.GetRomByFileName(context.Background(), platforms[0].DBID, "Unknown Homebrew (PD).nes")
	require.ErrorIs(t, err, database.ErrNotFound)
}

func TestRun_RejectsSecondScan(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, config.Scan{})
	require.NoError(t, env.scanner.begin())

	_, err := env.scanner.Run(context.Background(), Request{ScanType: ScanQuick})
	require.ErrorIs(t, err, ErrScanInProgress)
}

func TestRun_InvalidRequest(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, config.Scan{})

	_, err := env.scanner.Run(context.Background(), Request{ScanType: "sideways"})
	require.ErrorIs(t, err, ErrInvalidRequest)
	assert.Equal(t, StateIdle, env.scanner.Status().State)
}

type failingStore struct {
	database.RomStore
}

func (failingStore) AddPlatform(context.Context, *database.Platform) error {
	return errors.New("disk full")
}

func TestRun_FailsWhenEveryPlatformFails(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, config.Scan{})
	s := New(failingStore{env.db}, env.cfg, scraper.NewRegistry(env.provider),
		WithFs(env.fs), WithSink(env.events))

	_, err := s.Run(context.Background(), Request{ScanType: ScanQuick})
	require.ErrorIs(t, err, ErrAllPlatformsFailed)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, StateFailed, s.Status().State)

	names := env.events.names()
	assert.Equal(t, []string{EventPlatformError, EventPlatformError, EventDoneKO}, names)
}

func TestRun_MissingLibraryFails(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, config.Scan{})
	env.cfg.cfg = config.NewScanConfig("/nowhere", config.Scan{}, nil)

	_, err := env.scanner.Run(context.Background(), Request{ScanType: ScanQuick})
	require.Error(t, err)
	assert.Equal(t, StateFailed, env.scanner.Status().State)
	assert.Equal(t, []string{EventDoneKO}, env.events.names())
}

func TestStartAndStop(t *testing.T) {
	t.Parallel()
	runner := jobs.NewRunner(context.Background())
	defer runner.Close()

	env := newTestEnv(t, config.Scan{}, WithRunner(runner))
	started := make(chan struct{})
	var once sync.Once
	env.provider.onTitle = func(ctx context.Context) {
		once.Do(func() { close(started) })
		<-ctx.Done()
	}

	id, err := env.scanner.Start(context.Background(), Request{ScanType: ScanComplete})
	require.NoError(t, err)
	<-started

	_, err = env.scanner.Start(context.Background(), Request{ScanType: ScanComplete})
	require.ErrorIs(t, err, ErrScanInProgress)

	require.NoError(t, env.scanner.Stop())
	require.Eventually(t, func() bool {
		return env.scanner.Status().State == StateCancelled
	}, 2*time.Second, time.Millisecond)

	require.Eventually(t, func() bool {
		info, ok := runner.Get(id)
		return ok && info.Status == jobs.StatusCancelled
	}, 2*time.Second, time.Millisecond)
	assert.Equal(t, id, env.scanner.Status().JobID)
	require.ErrorIs(t, env.scanner.Stop(), ErrScanNotRunning)
}

func TestStartWithoutRunner(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, config.Scan{})
	_, err := env.scanner.Start(context.Background(), Request{ScanType: ScanQuick})
	require.ErrorIs(t, err, ErrNoRunner)
}

func TestChannelSinkNeverBlocks(t *testing.T) {
	t.Parallel()
	ch := make(chan Event, 1)
	sink := NewChannelSink(ch)

	require.NoError(t, sink.Emit(context.Background(), Event{Name: EventScanningRom}))
	require.NoError(t, sink.Emit(context.Background(), Event{Name: EventDone}))

	assert.Len(t, ch, 1)
	assert.Equal(t, EventScanningRom, (<-ch).Name)
	require.NoError(t, NewChannelSink(nil).Emit(context.Background(), Event{}))
}

// lockedFs fails to open one library path with a permission error.
type lockedFs struct {
	afero.Fs
	locked string
}

func (f *lockedFs) Open(name string) (afero.File, error) {
	if filepath.Clean(name) == f.locked {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrPermission}
	}
	return f.Fs.Open(name) //nolint:wrapcheck // passthrough
}

func lock(env *testEnv, p string) {
	env.scanner.fs = &lockedFs{Fs: env.fs, locked: filepath.Join(testRoot, filepath.FromSlash(p))}
}

func (l *eventLog) byName(name string) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Event
	for _, ev := range l.events {
		if ev.Name == name {
			out = append(out, ev)
		}
	}
	return out
}

func TestRun_UnreadableRomFolderKeepsPlatform(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, config.Scan{})
	writeFile(t, env.fs, "roms/snes/Locked Game/disc1.bin", "1")
	writeFile(t, env.fs, "roms/snes/Locked Game/disc2.bin", "2")
	env.run(t, Request{ScanType: ScanQuick})
	_, err := env.rom(t, "snes", "Locked Game")
	require.NoError(t, err)

	lock(env, "roms/snes/Locked Game")
	stats := env.run(t, Request{ScanType: ScanComplete})

	assert.Empty(t, env.events.byName(EventPlatformError))
	assert.Equal(t, 2, stats.ScannedPlatforms)
	assert.Equal(t, 4, stats.ScannedRoms)
	assert.Equal(t, 2, stats.IdentifiedRoms)

	romErrors := env.events.byName(EventRomError)
	require.Len(t, romErrors, 1)
	payload, ok := romErrors[0].Payload.(RomErrorPayload)
	require.True(t, ok)
	assert.Equal(t, "snes", payload.Platform)
	assert.Equal(t, "Locked Game", payload.FileName)
	assert.Contains(t, payload.Error, "permission denied")

	for _, name := range []string{"Super Metroid (USA).sfc", "Legend of Zelda, The (USA) (Rev 1).sfc", "Locked Game"} {
		_, err := env.rom(t, "snes", name)
		require.NoError(t, err, name)
	}
}

func TestRun_UnhashableRomIsReported(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, config.Scan{HashRoms: true})
	lock(env, "roms/nes/Unknown Homebrew (PD).nes")

	stats := env.run(t, Request{ScanType: ScanQuick})
	assert.Equal(t, 3, stats.ScannedRoms)
	assert.Equal(t, 2, stats.AddedRoms)

	romErrors := env.events.byName(EventRomError)
	require.Len(t, romErrors, 1)
	assert.Equal(t, "Failed to read Unknown Homebrew (PD).nes", romErrors[0].Status)

	_, err := env.rom(t, "nes", "Unknown Homebrew (PD).nes")
	require.ErrorIs(t, err, database.ErrNotFound)
}

func TestRun_PanicEndsScanAsFailed(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, config.Scan{})
	env.provider.onTitle = func(context.Context) { panic("bad payload") }

	_, err := env.scanner.Run(context.Background(), Request{ScanType: ScanQuick})
	require.ErrorIs(t, err, ErrScanPanicked)
	assert.Contains(t, err.Error(), "bad payload")

	status := env.scanner.Status()
	assert.Equal(t, StateFailed, status.State)
	assert.Contains(t, status.Error, "bad payload")
	names := env.events.names()
	assert.Equal(t, EventDoneKO, names[len(names)-1])

	env.provider.onTitle = nil
	env.run(t, Request{ScanType: ScanQuick})
	assert.Equal(t, StateCompleted, env.scanner.Status().State)
}

func TestStart_PanicEndsScanAsFailed(t *testing.T) {
	t.Parallel()
	runner := jobs.NewRunner(context.Background())
	defer runner.Close()

	env := newTestEnv(t, config.Scan{}, WithRunner(runner))
	env.provider.onTitle = func(context.Context) { panic("bad payload") }

	id, err := env.scanner.Start(context.Background(), Request{ScanType: ScanQuick})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		info, ok := runner.Get(id)
		return ok && info.Status == jobs.StatusFailed
	}, 2*time.Second, time.Millisecond)

	assert.Equal(t, StateFailed, env.scanner.Status().State)
	require.ErrorIs(t, env.scanner.Stop(), ErrScanNotRunning)

	env.provider.onTitle = nil
	_, err = env.scanner.Start(context.Background(), Request{ScanType: ScanQuick})
	require.NoError(t, err)
}

func TestStart_QueuedScanDroppedOnClose(t *testing.T) {
	t.Parallel()
	runner := jobs.NewRunner(context.Background())

	started := make(chan struct{})
	_, err := runner.Enqueue(context.Background(), jobs.Job{
		Name: "busy",
		Run: func(ctx context.Context) error {
			close(started)
			<-ctx.Done()
			return ctx.Err()
		},
	}, 0)
	require.NoError(t, err)
	<-started

	env := newTestEnv(t, config.Scan{}, WithRunner(runner))
	_, err = env.scanner.Start(context.Background(), Request{ScanType: ScanQuick})
	require.NoError(t, err)
	assert.Equal(t, StateRunning, env.scanner.Status().State)

	runner.Close()

	assert.Equal(t, StateCancelled, env.scanner.Status().State)
	assert.Equal(t, []string{EventCancelled}, env.events.names())
	require.ErrorIs(t, env.scanner.Stop(), ErrScanNotRunning)
}
