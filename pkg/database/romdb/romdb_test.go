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

package romdb

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/ZaparooProject/zaparoo-romscan/pkg/database"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTempRomDB(t *testing.T) (*RomDB, *clockwork.FakeClock) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "romscan.db")
	sqlDB, err := sql.Open("sqlite3", dbPath+sqliteConnParams)
	require.NoError(t, err)

	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	db, err := NewForTesting(context.Background(), sqlDB, clock)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, clock
}

func addPlatform(t *testing.T, db *RomDB, fsSlug string) database.Platform {
	t.Helper()
	p := database.Platform{FSSlug: fsSlug, Slug: fsSlug, Name: fsSlug}
	require.NoError(t, db.AddPlatform(context.Background(), &p))
	return p
}

func TestOpenRomDB_CreatesDirectory(t *testing.T) {
	t.Parallel()
	dbPath := filepath.Join(t.TempDir(), "nested", "dir", "romscan.db")

	db, err := OpenRomDB(context.Background(), dbPath)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	assert.Equal(t, dbPath, db.GetDBPath())
	platforms, err := db.ListPlatforms(context.Background())
	require.NoError(t, err)
	assert.Empty(t, platforms)
}

func TestRomDB_PlatformUpsertIsStable(t *testing.T) {
	t.Parallel()
	db, clock := setupTempRomDB(t)
	ctx := context.Background()

	first := database.Platform{FSSlug: "megadrive", Slug: "genesis", Name: "Mega Drive"}
	require.NoError(t, db.AddPlatform(ctx, &first))
	addedAt := first.AddedAt

	clock.Advance(time.Hour)
	second := database.Platform{
		FSSlug:      "megadrive",
		Slug:        "something-else",
		Name:        "Sega Mega Drive",
		ProviderIDs: map[string]string{"igdb": "29"},
	}
	require.NoError(t, db.AddPlatform(ctx, &second))

	assert.Equal(t, first.DBID, second.DBID)
	assert.Equal(t, "genesis", second.Slug)

	got, err := db.GetPlatformByFSSlug(ctx, "megadrive")
	require.NoError(t, err)
	assert.Equal(t, "genesis", got.Slug)
	assert.Equal(t, "Sega Mega Drive", got.Name)
	assert.Equal(t, addedAt.Unix(), got.AddedAt.Unix())
	assert.Equal(t, clock.Now().Unix(), got.UpdatedAt.Unix())
	assert.True(t, got.IsIdentified())
}

func TestRomDB_GetPlatformNotFound(t *testing.T) {
	t.Parallel()
	db, _ := setupTempRomDB(t)

	_, err := db.GetPlatformByFSSlug(context.Background(), "missing")
	require.ErrorIs(t, err, database.ErrNotFound)
}

func TestRomDB_RomRoundTrip(t *testing.T) {
	t.Parallel()
	db, _ := setupTempRomDB(t)
	ctx := context.Background()
	p := addPlatform(t, db, "snes")

	rating := 82.5
	rom := database.Rom{
		PlatformDBID:   p.DBID,
		FileName:       "Super Metroid (Japan, USA) (En,Ja).sfc",
		FileNameNoTags: "Super Metroid",
		FileExtension:  "sfc",
		FilePath:       "/roms/snes/Super Metroid (Japan, USA) (En,Ja).sfc",
		Name:           "Super Metroid",
		Regions:        []string{"Japan", "USA"},
		Languages:      []string{"English", "Japanese"},
		Genres:         []string{"Action", "Platform"},
		AverageRating:  &rating,
		ProviderIDs:    map[string]string{"screenscraper": "1234"},
		TotalSize:      3_145_728,
		Files: []database.RomFile{{
			FileName: "Super Metroid (Japan, USA) (En,Ja).sfc",
			Size:     3_145_728,
			CRC32:    "d63ed5f8",
		}},
	}
	require.NoError(t, db.AddRom(ctx, &rom))
	require.NotZero(t, rom.DBID)

	got, err := db.GetRom(ctx, rom.DBID)
	require.NoError(t, err)
	assert.Equal(t, rom.Name, got.Name)
	assert.Equal(t, rom.Regions, got.Regions)
	assert.Equal(t, rom.Languages, got.Languages)
	assert.Empty(t, got.ExtraTags)
	assert.Equal(t, rom.Genres, got.Genres)
	require.NotNil(t, got.AverageRating)
	assert.InDelta(t, 82.5, *got.AverageRating, 0.001)
	assert.Equal(t, rom.ProviderIDs, got.ProviderIDs)
	assert.Equal(t, rom.Files, got.Files)
	assert.True(t, got.IsIdentified())

	byName, err := db.GetRomByFileName(ctx, p.DBID, rom.FileName)
	require.NoError(t, err)
	assert.Equal(t, rom.DBID, byName.DBID)
}

func TestRomDB_AddRomUpsertReplacesFiles(t *testing.T) {
	t.Parallel()
	db, clock := setupTempRomDB(t)
	ctx := context.Background()
	p := addPlatform(t, db, "psx")

	rom := database.Rom{
		PlatformDBID: p.DBID,
		FileName:     "Game",
		Name:         "Game",
		IsMulti:      true,
		Files: []database.RomFile{
			{FileName: "Game (Disc 1).cue", Size: 100},
			{FileName: "Game (Disc 2).cue", Size: 100},
		},
	}
	require.NoError(t, db.AddRom(ctx, &rom))
	firstID := rom.DBID

	clock.Advance(time.Minute)
	rom.Files = rom.Files[:1]
	rom.AverageRating = nil
	require.NoError(t, db.AddRom(ctx, &rom))
	assert.Equal(t, firstID, rom.DBID)

	got, err := db.GetRom(ctx, firstID)
	require.NoError(t, err)
	require.Len(t, got.Files, 1)
	assert.True(t, got.IsMulti)
	assert.Nil(t, got.AverageRating)
	assert.False(t, got.IsIdentified())
}

func TestRomDB_PurgeRomsKeepsListedNames(t *testing.T) {
	t.Parallel()
	db, _ := setupTempRomDB(t)
	ctx := context.Background()
	snes := addPlatform(t, db, "snes")
	nes := addPlatform(t, db, "nes")

	for _, r := range []database.Rom{
		{PlatformDBID: snes.DBID, FileName: "a.sfc", Name: "a"},
		{PlatformDBID: snes.DBID, FileName: "b.sfc", Name: "b"},
		{PlatformDBID: nes.DBID, FileName: "c.nes", Name: "c"},
	} {
		require.NoError(t, db.AddRom(ctx, &r))
	}

	n, err := db.PurgeRoms(ctx, snes.DBID, []string{"a.sfc"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = db.GetRomByFileName(ctx, snes.DBID, "b.sfc")
	require.ErrorIs(t, err, database.ErrNotFound)
	_, err = db.GetRomByFileName(ctx, snes.DBID, "a.sfc")
	require.NoError(t, err)
	_, err = db.GetRomByFileName(ctx, nes.DBID, "c.nes")
	require.NoError(t, err)
}

func TestRomDB_PurgePlatformsCascades(t *testing.T) {
	t.Parallel()
	db, _ := setupTempRomDB(t)
	ctx := context.Background()
	keep := addPlatform(t, db, "gba")
	gone := addPlatform(t, db, "n64")

	rom := database.Rom{
		PlatformDBID: gone.DBID,
		FileName:     "mario.z64",
		Name:         "mario",
		Files:        []database.RomFile{{FileName: "mario.z64", Size: 1}},
	}
	require.NoError(t, db.AddRom(ctx, &rom))
	fw := database.Firmware{PlatformDBID: gone.DBID, FileName: "pifdata.bin", FilePath: "/bios/pifdata.bin"}
	require.NoError(t, db.AddFirmware(ctx, &fw))

	n, err := db.PurgePlatforms(ctx, []string{"gba"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	platforms, err := db.ListPlatforms(ctx)
	require.NoError(t, err)
	require.Len(t, platforms, 1)
	assert.Equal(t, keep.DBID, platforms[0].DBID)

	_, err = db.GetRom(ctx, rom.DBID)
	require.ErrorIs(t, err, database.ErrNotFound)
	_, err = db.GetFirmwareByFileName(ctx, gone.DBID, "pifdata.bin")
	require.ErrorIs(t, err, database.ErrNotFound)

	var files int
	require.NoError(t, db.UnsafeGetSQLDb().QueryRowContext(ctx, `select count(*) from RomFiles;`).Scan(&files))
	assert.Zero(t, files)
}

func TestRomDB_FirmwareUpsertAndPurge(t *testing.T) {
	t.Parallel()
	db, _ := setupTempRomDB(t)
	ctx := context.Background()
	p := addPlatform(t, db, "psx")

	fw := database.Firmware{
		PlatformDBID: p.DBID,
		FileName:     "scph1001.bin",
		FilePath:     "/roms/bios/psx/scph1001.bin",
		Size:         524_288,
		MD5:          "924e392ed05558ffdb115408c263dccf",
	}
	require.NoError(t, db.AddFirmware(ctx, &fw))
	firstID := fw.DBID

	fw.FilePath = "/roms/psx/bios/scph1001.bin"
	require.NoError(t, db.AddFirmware(ctx, &fw))
	assert.Equal(t, firstID, fw.DBID)

	got, err := db.GetFirmwareByFileName(ctx, p.DBID, "scph1001.bin")
	require.NoError(t, err)
	assert.Equal(t, "/roms/psx/bios/scph1001.bin", got.FilePath)

	n, err := db.PurgeFirmware(ctx, p.DBID, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestRomDB_Vacuum(t *testing.T) {
	t.Parallel()
	db, _ := setupTempRomDB(t)
	require.NoError(t, db.Vacuum(context.Background()))
}

func TestRomDB_NullSQL(t *testing.T) {
	t.Parallel()
	db := &RomDB{}
	require.ErrorIs(t, db.MigrateUp(context.Background()), ErrNullSQL)
	require.NoError(t, db.Close())
}
