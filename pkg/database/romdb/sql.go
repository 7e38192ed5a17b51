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
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ZaparooProject/zaparoo-romscan/pkg/database"
	"github.com/rs/zerolog/log"
)

// Queries go here to keep the interface clean

//go:embed migrations/*.sql
var migrationFiles embed.FS

// romMetadata holds the list fields that are only ever read back whole.
type romMetadata struct {
	ScreenshotURLs []string `json:"screenshotUrls,omitempty"`
	Genres         []string `json:"genres,omitempty"`
	Companies      []string `json:"companies,omitempty"`
	AltNames       []string `json:"altNames,omitempty"`
	AgeRatings     []string `json:"ageRatings,omitempty"`
}

func sqlMigrateUp(ctx context.Context, db *sql.DB) error {
	if _, err := database.MigrateUp(ctx, db, migrationFiles, "migrations"); err != nil {
		return fmt.Errorf("failed to run rom database migrations: %w", err)
	}
	return nil
}

func sqlVacuum(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `vacuum;`)
	if err != nil {
		return fmt.Errorf("failed to vacuum database: %w", err)
	}
	return nil
}

func encodeJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode column: %w", err)
	}
	return string(b), nil
}

func decodeJSON(s string, v any) error {
	if s == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(s), v); err != nil {
		return fmt.Errorf("failed to decode column: %w", err)
	}
	return nil
}

func encodeIDs(ids map[string]string) (string, error) {
	if ids == nil {
		return "{}", nil
	}
	return encodeJSON(ids)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func closeRows(rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		log.Warn().Err(err).Msg("failed to close sql rows")
	}
}

/*
 * Platforms
 */

const platformColumns = `DBID, FSSlug, Slug, Name, ProviderIDs, AddedAt, UpdatedAt`

type scanner interface {
	Scan(dest ...any) error
}

func scanPlatform(row scanner) (database.Platform, error) {
	var p database.Platform
	var providerIDs string
	var added, updated int64
	err := row.Scan(&p.DBID, &p.FSSlug, &p.Slug, &p.Name, &providerIDs, &added, &updated)
	if err != nil {
		return p, err //nolint:wrapcheck // wrapped by callers
	}
	p.ProviderIDs = map[string]string{}
	if err := decodeJSON(providerIDs, &p.ProviderIDs); err != nil {
		return p, err
	}
	p.AddedAt = time.Unix(added, 0)
	p.UpdatedAt = time.Unix(updated, 0)
	return p, nil
}

func sqlGetPlatformByFSSlug(ctx context.Context, db *sql.DB, fsSlug string) (database.Platform, error) {
	row := db.QueryRowContext(ctx,
		`select `+platformColumns+` from Platforms where FSSlug = ?;`, fsSlug)
	p, err := scanPlatform(row)
	if errors.Is(err, sql.ErrNoRows) {
		return p, database.ErrNotFound
	}
	if err != nil {
		return p, fmt.Errorf("failed to get platform %s: %w", fsSlug, err)
	}
	return p, nil
}

// sqlAddPlatform inserts a platform or refreshes its name and provider ids.
// The stored canonical slug is never changed.
func sqlAddPlatform(ctx context.Context, db *sql.DB, p *database.Platform, now time.Time) error {
	providerIDs, err := encodeIDs(p.ProviderIDs)
	if err != nil {
		return err
	}

	var added int64
	err = db.QueryRowContext(ctx, `
		insert into Platforms (FSSlug, Slug, Name, ProviderIDs, AddedAt, UpdatedAt)
		values (?, ?, ?, ?, ?, ?)
		on conflict (FSSlug) do update set
			Name = excluded.Name,
			ProviderIDs = excluded.ProviderIDs,
			UpdatedAt = excluded.UpdatedAt
		returning DBID, Slug, AddedAt;
	`, p.FSSlug, p.Slug, p.Name, providerIDs, now.Unix(), now.Unix()).Scan(&p.DBID, &p.Slug, &added)
	if err != nil {
		return fmt.Errorf("failed to upsert platform %s: %w", p.FSSlug, err)
	}
	p.AddedAt = time.Unix(added, 0)
	p.UpdatedAt = time.Unix(now.Unix(), 0)
	return nil
}

func sqlListPlatforms(ctx context.Context, db *sql.DB) ([]database.Platform, error) {
	rows, err := db.QueryContext(ctx, `select `+platformColumns+` from Platforms order by FSSlug;`)
	if err != nil {
		return nil, fmt.Errorf("failed to list platforms: %w", err)
	}
	defer closeRows(rows)

	list := make([]database.Platform, 0)
	for rows.Next() {
		p, err := scanPlatform(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan platform row: %w", err)
		}
		list = append(list, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate platform rows: %w", err)
	}
	return list, nil
}

func sqlPurgePlatforms(ctx context.Context, db *sql.DB, keepFSSlugs []string) (int64, error) {
	keep, err := encodeJSON(nonNil(keepFSSlugs))
	if err != nil {
		return 0, err
	}
	res, err := db.ExecContext(ctx,
		`delete from Platforms where FSSlug not in (select value from json_each(?));`, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to purge platforms: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

/*
 * ROMs
 */

const romSelect = `
	select r.DBID, r.PlatformDBID, r.FileName, r.FileNameNoTags, r.FileExtension, r.FilePath,
		r.IsMulti, r.TotalSize, r.Revision, r.Regions, r.Languages, r.ExtraTags,
		r.Name, r.Summary, r.CoverURL, r.ReleaseDate, r.AverageRating, r.ProviderIDs,
		r.Metadata, r.AddedAt, r.UpdatedAt
	from Roms r
`

const (
	romByIDQuery       = romSelect + `where r.DBID = ?;`
	romByFileNameQuery = romSelect + `where r.PlatformDBID = ? and r.FileName = ?;`
)

func scanRom(row scanner) (database.Rom, error) {
	var r database.Rom
	var regions, languages, extraTags, providerIDs, metadata string
	var rating sql.NullFloat64
	var added, updated int64

	err := row.Scan(
		&r.DBID, &r.PlatformDBID, &r.FileName, &r.FileNameNoTags, &r.FileExtension, &r.FilePath,
		&r.IsMulti, &r.TotalSize, &r.Revision, &regions, &languages, &extraTags,
		&r.Name, &r.Summary, &r.CoverURL, &r.ReleaseDate, &rating, &providerIDs,
		&metadata, &added, &updated,
	)
	if err != nil {
		return r, err //nolint:wrapcheck // wrapped by callers
	}

	r.ProviderIDs = map[string]string{}
	var meta romMetadata
	for _, col := range []struct {
		dst any
		src string
	}{
		{&r.Regions, regions},
		{&r.Languages, languages},
		{&r.ExtraTags, extraTags},
		{&r.ProviderIDs, providerIDs},
		{&meta, metadata},
	} {
		if err := decodeJSON(col.src, col.dst); err != nil {
			return r, err
		}
	}

	r.ScreenshotURLs = meta.ScreenshotURLs
	r.Genres = meta.Genres
	r.Companies = meta.Companies
	r.AltNames = meta.AltNames
	r.AgeRatings = meta.AgeRatings
	if rating.Valid {
		v := rating.Float64
		r.AverageRating = &v
	}
	r.AddedAt = time.Unix(added, 0)
	r.UpdatedAt = time.Unix(updated, 0)
	return r, nil
}

func sqlGetRom(ctx context.Context, db *sql.DB, query string, args ...any) (database.Rom, error) {
	r, err := scanRom(db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return r, database.ErrNotFound
	}
	if err != nil {
		return r, fmt.Errorf("failed to get rom: %w", err)
	}

	files, err := sqlGetRomFiles(ctx, db, r.DBID)
	if err != nil {
		return r, err
	}
	r.Files = files
	return r, nil
}

func sqlGetRomFiles(ctx context.Context, db *sql.DB, romID int64) ([]database.RomFile, error) {
	rows, err := db.QueryContext(ctx, `
		select FileName, Size, CRC32, MD5, SHA1
		from RomFiles
		where RomDBID = ?
		order by DBID;
	`, romID)
	if err != nil {
		return nil, fmt.Errorf("failed to get rom files: %w", err)
	}
	defer closeRows(rows)

	files := make([]database.RomFile, 0)
	for rows.Next() {
		var f database.RomFile
		if err := rows.Scan(&f.FileName, &f.Size, &f.CRC32, &f.MD5, &f.SHA1); err != nil {
			return nil, fmt.Errorf("failed to scan rom file row: %w", err)
		}
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rom file rows: %w", err)
	}
	return files, nil
}

// sqlAddRom upserts a ROM and replaces its file rows in one transaction,
// so a failed write leaves the previous version intact.
//
//nolint:funlen // one statement per table
func sqlAddRom(ctx context.Context, db *sql.DB, r *database.Rom, now time.Time) error {
	providerIDs, err := encodeIDs(r.ProviderIDs)
	if err != nil {
		return err
	}
	cols := make([]string, 0, 4)
	for _, v := range []any{
		nonNil(r.Regions),
		nonNil(r.Languages),
		nonNil(r.ExtraTags),
		romMetadata{
			ScreenshotURLs: r.ScreenshotURLs,
			Genres:         r.Genres,
			Companies:      r.Companies,
			AltNames:       r.AltNames,
			AgeRatings:     r.AgeRatings,
		},
	} {
		s, err := encodeJSON(v)
		if err != nil {
			return err
		}
		cols = append(cols, s)
	}

	var rating sql.NullFloat64
	if r.AverageRating != nil {
		rating = sql.NullFloat64{Float64: *r.AverageRating, Valid: true}
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			log.Warn().Err(rbErr).Msg("failed to rollback rom transaction")
		}
	}()

	var added int64
	err = tx.QueryRowContext(ctx, `
		insert into Roms (
			PlatformDBID, FileName, FileNameNoTags, FileExtension, FilePath,
			IsMulti, TotalSize, Revision, Regions, Languages, ExtraTags,
			Name, Summary, CoverURL, ReleaseDate, AverageRating, ProviderIDs,
			Metadata, AddedAt, UpdatedAt
		) values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		on conflict (PlatformDBID, FileName) do update set
			FileNameNoTags = excluded.FileNameNoTags,
			FileExtension = excluded.FileExtension,
			FilePath = excluded.FilePath,
			IsMulti = excluded.IsMulti,
			TotalSize = excluded.TotalSize,
			Revision = excluded.Revision,
			Regions = excluded.Regions,
			Languages = excluded.Languages,
			ExtraTags = excluded.ExtraTags,
			Name = excluded.Name,
			Summary = excluded.Summary,
			CoverURL = excluded.CoverURL,
			ReleaseDate = excluded.ReleaseDate,
			AverageRating = excluded.AverageRating,
			ProviderIDs = excluded.ProviderIDs,
			Metadata = excluded.Metadata,
			UpdatedAt = excluded.UpdatedAt
		returning DBID, AddedAt;
	`,
		r.PlatformDBID, r.FileName, r.FileNameNoTags, r.FileExtension, r.FilePath,
		r.IsMulti, r.TotalSize, r.Revision, cols[0], cols[1], cols[2],
		r.Name, r.Summary, r.CoverURL, r.ReleaseDate, rating, providerIDs,
		cols[3], now.Unix(), now.Unix(),
	).Scan(&r.DBID, &added)
	if err != nil {
		return fmt.Errorf("failed to upsert rom %s: %w", r.FileName, err)
	}

	if _, err := tx.ExecContext(ctx, `delete from RomFiles where RomDBID = ?;`, r.DBID); err != nil {
		return fmt.Errorf("failed to clear rom files: %w", err)
	}

	if len(r.Files) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
			insert into RomFiles (RomDBID, FileName, Size, CRC32, MD5, SHA1)
			values (?, ?, ?, ?, ?, ?);
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare rom file insert statement: %w", err)
		}
		defer func() {
			if closeErr := stmt.Close(); closeErr != nil {
				log.Warn().Err(closeErr).Msg("failed to close sql statement")
			}
		}()
		for _, f := range r.Files {
			if _, err := stmt.ExecContext(ctx, r.DBID, f.FileName, f.Size, f.CRC32, f.MD5, f.SHA1); err != nil {
				return fmt.Errorf("failed to insert rom file %s: %w", f.FileName, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit rom transaction: %w", err)
	}

	r.AddedAt = time.Unix(added, 0)
	r.UpdatedAt = time.Unix(now.Unix(), 0)
	return nil
}

/*
 * Firmware
 */

func sqlGetFirmwareByFileName(
	ctx context.Context,
	db *sql.DB,
	platformID int64,
	fileName string,
) (database.Firmware, error) {
	var f database.Firmware
	var added int64
	err := db.QueryRowContext(ctx, `
		select DBID, PlatformDBID, FileName, FilePath, Size, CRC32, MD5, SHA1, AddedAt
		from Firmware
		where PlatformDBID = ? and FileName = ?;
	`, platformID, fileName).Scan(
		&f.DBID, &f.PlatformDBID, &f.FileName, &f.FilePath, &f.Size, &f.CRC32, &f.MD5, &f.SHA1, &added,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return f, database.ErrNotFound
	}
	if err != nil {
		return f, fmt.Errorf("failed to get firmware %s: %w", fileName, err)
	}
	f.AddedAt = time.Unix(added, 0)
	return f, nil
}

func sqlAddFirmware(ctx context.Context, db *sql.DB, f *database.Firmware, now time.Time) error {
	var added int64
	err := db.QueryRowContext(ctx, `
		insert into Firmware (PlatformDBID, FileName, FilePath, Size, CRC32, MD5, SHA1, AddedAt)
		values (?, ?, ?, ?, ?, ?, ?, ?)
		on conflict (PlatformDBID, FileName) do update set
			FilePath = excluded.FilePath,
			Size = excluded.Size,
			CRC32 = excluded.CRC32,
			MD5 = excluded.MD5,
			SHA1 = excluded.SHA1
		returning DBID, AddedAt;
	`, f.PlatformDBID, f.FileName, f.FilePath, f.Size, f.CRC32, f.MD5, f.SHA1, now.Unix()).Scan(&f.DBID, &added)
	if err != nil {
		return fmt.Errorf("failed to upsert firmware %s: %w", f.FileName, err)
	}
	f.AddedAt = time.Unix(added, 0)
	return nil
}

/*
 * Purge
 */

const (
	purgeRomsQuery     = `delete from Roms where PlatformDBID = ? and FileName not in (select value from json_each(?));`
	purgeFirmwareQuery = `delete from Firmware where PlatformDBID = ? and FileName not in (select value from json_each(?));`
)

func sqlPurgeRoms(ctx context.Context, db *sql.DB, platformID int64, keepFileNames []string) (int64, error) {
	return execPurge(ctx, db, purgeRomsQuery, platformID, keepFileNames)
}

func sqlPurgeFirmware(ctx context.Context, db *sql.DB, platformID int64, keepFileNames []string) (int64, error) {
	return execPurge(ctx, db, purgeFirmwareQuery, platformID, keepFileNames)
}

func execPurge(ctx context.Context, db *sql.DB, query string, platformID int64, keep []string) (int64, error) {
	keepJSON, err := encodeJSON(nonNil(keep))
	if err != nil {
		return 0, err
	}
	res, err := db.ExecContext(ctx, query, platformID, keepJSON)
	if err != nil {
		return 0, fmt.Errorf("failed to purge platform %d: %w", platformID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}
