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
	"errors"
	"fmt"
	"strings"

	"github.com/ZaparooProject/zaparoo-romscan/pkg/config"
	"github.com/ZaparooProject/zaparoo-romscan/pkg/database"
	"github.com/ZaparooProject/zaparoo-romscan/pkg/database/mediascanner"
	"github.com/ZaparooProject/zaparoo-romscan/pkg/scraper"
	"github.com/ZaparooProject/zaparoo-romscan/pkg/scraper/resolver"
	"github.com/rs/zerolog/log"
)

// scanRun is the state of one scan. It's only touched by the goroutine
// running the scan.
type scanRun struct {
	s         *Scanner
	lib       *mediascanner.Library
	selected  map[int64]struct{}
	req       Request
	providers []scraper.Provider
	cfg       config.ScanConfig
	stats     Stats
}

// platformResult is what a scanned platform keeps for the purge. A nil
// firmware list means the firmware folder could not be read and must not
// be purged.
type platformResult struct {
	romNames      []string
	firmwareNames []string
	platformID    int64
}

//nolint:gocritic // scan config copied for immutability
func newScanRun(s *Scanner, req Request, cfg config.ScanConfig) *scanRun {
	selected := make(map[int64]struct{}, len(req.SelectedRomIDs))
	for _, id := range req.SelectedRomIDs {
		selected[id] = struct{}{}
	}
	return &scanRun{
		s:        s,
		req:      req,
		cfg:      cfg,
		selected: selected,
	}
}

func (r *scanRun) hashing() bool {
	return r.cfg.HashRoms || r.req.ScanType == ScanHashes
}

// scan processes every platform in scope and then purges what's gone.
func (r *scanRun) scan(ctx context.Context) (Stats, error) {
	lib, err := mediascanner.OpenLibrary(r.s.fs, r.cfg)
	if err != nil {
		return r.stats, fmt.Errorf("failed to open library: %w", err)
	}
	r.lib = lib

	onDisk, err := lib.ListPlatforms()
	if err != nil {
		return r.stats, fmt.Errorf("failed to list platforms: %w", err)
	}

	known, err := r.s.store.ListPlatforms(ctx)
	if err != nil {
		return r.stats, fmt.Errorf("failed to list stored platforms: %w", err)
	}

	scope := r.platformScope(onDisk, known)
	if r.req.ScanType != ScanHashes {
		r.providers = r.s.registry.Ordered(r.cfg.ProviderOrder, r.req.Providers)
	}

	providerNames := make([]string, len(r.providers))
	for i, p := range r.providers {
		providerNames[i] = p.Name()
	}
	log.Info().
		Str("type", string(r.req.ScanType)).
		Str("layout", lib.Layout().String()).
		Strs("platforms", scope).
		Strs("providers", providerNames).
		Bool("hashing", r.hashing()).
		Msg("starting scan")

	results := make([]platformResult, 0, len(scope))
	var lastErr error
	for _, fsSlug := range scope {
		if err := ctx.Err(); err != nil {
			return r.stats, err //nolint:wrapcheck // context error is reported as is
		}

		res, err := r.scanPlatform(ctx, fsSlug)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return r.stats, ctxErr //nolint:wrapcheck // context error is reported as is
			}
			lastErr = err
			log.Warn().Err(err).Str("platform", fsSlug).Msg("failed to scan platform")
			r.s.emit(ctx, EventPlatformError, fmt.Sprintf("Failed to scan %s", fsSlug), PlatformPayload{
				FSSlug: fsSlug,
				Error:  err.Error(),
				Stats:  r.stats,
			})
			continue
		}
		results = append(results, res)
	}

	if len(scope) > 0 && len(results) == 0 {
		return r.stats, fmt.Errorf("%w: %w", ErrAllPlatformsFailed, lastErr)
	}

	if err := ctx.Err(); err != nil {
		return r.stats, err //nolint:wrapcheck // context error is reported as is
	}
	r.purge(ctx, results, onDisk, known)

	return r.stats, nil
}

// platformScope applies the request's platform filter and, for new
// platform scans, skips folders already in the store.
func (r *scanRun) platformScope(onDisk []string, known []database.Platform) []string {
	knownSlugs := make(map[string]struct{}, len(known))
	for _, p := range known {
		knownSlugs[p.FSSlug] = struct{}{}
	}

	var filter map[string]struct{}
	if len(r.req.PlatformIDs) > 0 {
		ids := make(map[int64]struct{}, len(r.req.PlatformIDs))
		for _, id := range r.req.PlatformIDs {
			ids[id] = struct{}{}
		}
		filter = make(map[string]struct{}, len(ids))
		for _, p := range known {
			if _, ok := ids[p.DBID]; ok {
				filter[p.FSSlug] = struct{}{}
			}
		}
		if len(filter) < len(ids) {
			log.Warn().Int("requested", len(ids)).Int("found", len(filter)).Msg("unknown platform ids in scan request")
		}
	}

	scope := make([]string, 0, len(onDisk))
	for _, fsSlug := range onDisk {
		if filter != nil {
			if _, ok := filter[fsSlug]; !ok {
				continue
			}
		}
		if r.req.ScanType == ScanNewPlatforms {
			if _, ok := knownSlugs[fsSlug]; ok {
				continue
			}
		}
		scope = append(scope, fsSlug)
	}
	return scope
}

// canonicalSlug resolves a new platform folder to a canonical slug: the
// configured binding first, then the built-in platform table.
func (r *scanRun) canonicalSlug(fsSlug string) string {
	if bound, ok := r.cfg.Binding(fsSlug); ok {
		if slug, ok := scraper.CanonicalSlug(bound); ok {
			return slug
		}
		return bound
	}
	slug, _ := scraper.CanonicalSlug(fsSlug)
	return slug
}

func (r *scanRun) upsertPlatform(ctx context.Context, fsSlug string) (database.Platform, error) {
	existing, err := r.s.store.GetPlatformByFSSlug(ctx, fsSlug)
	isNew := errors.Is(err, database.ErrNotFound)
	if err != nil && !isNew {
		return existing, fmt.Errorf("failed to get platform: %w", err)
	}

	p := database.Platform{FSSlug: fsSlug, Slug: existing.Slug}
	if isNew {
		p.Slug = r.canonicalSlug(fsSlug)
	}
	p.Name = scraper.PlatformName(p.Slug)
	p.ProviderIDs = scraper.ProviderPlatformIDs(p.Slug)

	if err := r.s.store.AddPlatform(ctx, &p); err != nil {
		return p, fmt.Errorf("failed to save platform: %w", err)
	}

	if isNew {
		r.stats.AddedPlatforms++
	}
	if p.IsIdentified() {
		r.stats.IdentifiedPlatforms++
	}
	return p, nil
}

func (r *scanRun) scanPlatform(ctx context.Context, fsSlug string) (platformResult, error) {
	r.stats.ScannedPlatforms++

	candidates, unreadable, err := r.lib.IdentifyRoms(fsSlug)
	if err != nil {
		return platformResult{}, err //nolint:wrapcheck // already names the platform
	}

	platform, err := r.upsertPlatform(ctx, fsSlug)
	if err != nil {
		return platformResult{}, err
	}

	log.Info().
		Str("platform", fsSlug).
		Str("slug", platform.Slug).
		Int("roms", len(candidates)).
		Msg("scanning platform")
	r.s.emit(ctx, EventScanningPlatform, "Scanning "+platform.Name, PlatformPayload{
		ID:     platform.DBID,
		FSSlug: platform.FSSlug,
		Slug:   platform.Slug,
		Name:   platform.Name,
		Stats:  r.stats,
	})

	res := platformResult{
		platformID:    platform.DBID,
		firmwareNames: r.scanFirmware(ctx, &platform),
		romNames:      make([]string, 0, len(candidates)+len(unreadable)),
	}

	// unreadable entries are still on disk, so their rows are kept
	for _, entry := range unreadable {
		r.stats.ScannedRoms++
		res.romNames = append(res.romNames, entry.Name)
		r.romError(ctx, fsSlug, entry.Name, entry.Err)
	}

	for i := range candidates {
		if err := ctx.Err(); err != nil {
			return res, err //nolint:wrapcheck // context error is reported as is
		}
		c := &candidates[i]
		res.romNames = append(res.romNames, c.FSName)
		if err := r.scanRom(ctx, &platform, c); err != nil {
			return res, err
		}
	}

	return res, nil
}

// scanFirmware stores the platform's bios files and returns their names.
func (r *scanRun) scanFirmware(ctx context.Context, platform *database.Platform) []string {
	found, err := r.lib.IdentifyFirmware(platform.FSSlug)
	if err != nil {
		log.Warn().Err(err).Str("platform", platform.FSSlug).Msg("failed to read firmware")
		return nil
	}

	names := make([]string, 0, len(found))
	for _, fw := range found {
		r.stats.ScannedFirmware++
		names = append(names, fw.FileName)

		_, err := r.s.store.GetFirmwareByFileName(ctx, platform.DBID, fw.FileName)
		isNew := errors.Is(err, database.ErrNotFound)
		if err != nil && !isNew {
			log.Error().Err(err).Str("file", fw.FileName).Msg("failed to look up firmware")
			continue
		}

		rec := database.Firmware{
			PlatformDBID: platform.DBID,
			FileName:     fw.FileName,
			FilePath:     fw.FSPath,
			Size:         fw.Size,
			CRC32:        fw.Hash.CRC32,
			MD5:          fw.Hash.MD5,
			SHA1:         fw.Hash.SHA1,
		}
		if err := r.s.store.AddFirmware(ctx, &rec); err != nil {
			log.Error().Err(err).Str("file", fw.FileName).Msg("failed to save firmware")
			continue
		}
		if isNew {
			r.stats.AddedFirmware++
		}
	}
	return names
}

// scanRom decides, identifies and writes a single ROM. Only a done
// context is returned as an error: everything else is logged and the scan
// moves on to the next ROM.
func (r *scanRun) scanRom(ctx context.Context, platform *database.Platform, c *mediascanner.RomCandidate) error {
	r.stats.ScannedRoms++

	existing, err := r.s.store.GetRomByFileName(ctx, platform.DBID, c.FSName)
	exists := err == nil
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		log.Error().Err(err).Str("rom", c.FSName).Msg("failed to look up rom")
		return nil
	}

	identified := exists && existing.IsIdentified()
	_, selected := r.selected[existing.DBID]
	selected = selected && exists
	if !ShouldReidentify(r.req.ScanType, exists, identified, selected) {
		if identified {
			r.stats.IdentifiedRoms++
		}
		return nil
	}

	if r.hashing() {
		if err := r.lib.ComputeHashes(c); err != nil {
			log.Warn().Err(err).Str("rom", c.FSName).Msg("failed to hash rom, skipping")
			r.romError(ctx, platform.FSSlug, c.FSName, err)
			return nil
		}
	}

	rom := newRom(platform.DBID, c)
	if r.req.ScanType == ScanHashes {
		if exists {
			copyMetadata(&rom, &existing)
		}
	} else {
		meta := r.s.resolver.Resolve(ctx, c, resolver.Platform{
			ProviderIDs: platform.ProviderIDs,
			Slug:        platform.Slug,
		}, r.providers)
		// a cancelled resolve may be partial, so the ROM is not written
		if err := ctx.Err(); err != nil {
			return err //nolint:wrapcheck // context error is reported as is
		}
		applyMetadata(&rom, &meta)
	}
	if !r.hashing() && exists {
		carryHashes(&rom, existing.Files)
	}

	if err := r.s.store.AddRom(ctx, &rom); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr //nolint:wrapcheck // context error is reported as is
		}
		log.Error().Err(err).Str("rom", c.FSName).Msg("failed to save rom")
		return nil
	}

	if !exists {
		r.stats.AddedRoms++
	}
	if rom.IsIdentified() {
		r.stats.IdentifiedRoms++
	}

	log.Debug().
		Str("rom", rom.FileName).
		Str("name", rom.Name).
		Bool("identified", rom.IsIdentified()).
		Msg("rom saved")
	r.s.emit(ctx, EventScanningRom, "Scanned "+rom.Name, RomPayload{
		Platform:   platform.FSSlug,
		FileName:   rom.FileName,
		Name:       rom.Name,
		ID:         rom.DBID,
		Identified: rom.IsIdentified(),
		Stats:      r.stats,
	})
	return nil
}

func (r *scanRun) romError(ctx context.Context, fsSlug, fileName string, err error) {
	r.s.emit(ctx, EventRomError, "Failed to read "+fileName, RomErrorPayload{
		Platform: fsSlug,
		FileName: fileName,
		Error:    err.Error(),
		Stats:    r.stats,
	})
}

// purge removes rows whose files are gone. ROMs and firmware are only
// purged on platforms that scanned cleanly. Platforms are only purged
// when the request had no platform filter, and folders that are excluded
// in config are kept.
func (r *scanRun) purge(ctx context.Context, results []platformResult, onDisk []string, known []database.Platform) {
	for _, res := range results {
		n, err := r.s.store.PurgeRoms(ctx, res.platformID, res.romNames)
		if err != nil {
			log.Error().Err(err).Int64("platform", res.platformID).Msg("failed to purge roms")
		} else if n > 0 {
			log.Info().Int64("platform", res.platformID).Int64("count", n).Msg("purged missing roms")
		}

		if res.firmwareNames == nil {
			continue
		}
		n, err = r.s.store.PurgeFirmware(ctx, res.platformID, res.firmwareNames)
		if err != nil {
			log.Error().Err(err).Int64("platform", res.platformID).Msg("failed to purge firmware")
		} else if n > 0 {
			log.Info().Int64("platform", res.platformID).Int64("count", n).Msg("purged missing firmware")
		}
	}

	if len(r.req.PlatformIDs) > 0 {
		return
	}

	keep := make([]string, 0, len(onDisk)+len(known))
	keep = append(keep, onDisk...)
	for _, p := range known {
		if r.cfg.PlatformExcluded(p.FSSlug) {
			keep = append(keep, p.FSSlug)
		}
	}
	n, err := r.s.store.PurgePlatforms(ctx, keep)
	if err != nil {
		log.Error().Err(err).Msg("failed to purge platforms")
	} else if n > 0 {
		log.Info().Int64("count", n).Msg("purged missing platforms")
	}
}

func newRom(platformID int64, c *mediascanner.RomCandidate) database.Rom {
	files := make([]database.RomFile, len(c.Parts))
	for i, part := range c.Parts {
		files[i] = database.RomFile{FileName: part.Name, Size: part.Size}
		if i < len(c.Hashes) && c.Hashes[i].Name == part.Name {
			files[i].CRC32 = c.Hashes[i].CRC32
			files[i].MD5 = c.Hashes[i].MD5
			files[i].SHA1 = c.Hashes[i].SHA1
		}
	}
	return database.Rom{
		PlatformDBID:   platformID,
		FileName:       c.FSName,
		FileNameNoTags: c.FSNameNoTags,
		FileExtension:  strings.TrimPrefix(c.FSExtension, "."),
		FilePath:       c.FSPath,
		Revision:       c.Revision,
		Regions:        c.Regions,
		Languages:      c.Languages,
		ExtraTags:      c.ExtraTags,
		TotalSize:      c.TotalSize,
		IsMulti:        c.IsMulti,
		Files:          files,
		Name:           c.FSNameNoTags,
		ProviderIDs:    map[string]string{},
	}
}

func applyMetadata(rom *database.Rom, meta *scraper.MergedMetadata) {
	rom.Name = meta.Name
	rom.Summary = meta.Summary
	rom.CoverURL = meta.CoverURL
	rom.ReleaseDate = meta.ReleaseDate
	rom.AverageRating = meta.AverageRating
	rom.ProviderIDs = meta.ProviderIDs
	rom.ScreenshotURLs = meta.ScreenshotURLs
	rom.Genres = meta.Genres
	rom.Companies = meta.Companies
	rom.AltNames = meta.AltNames
	rom.AgeRatings = meta.AgeRatings
}

// copyMetadata keeps the stored metadata of a ROM whose hashes are being
// recomputed.
func copyMetadata(rom, existing *database.Rom) {
	rom.Name = existing.Name
	rom.Summary = existing.Summary
	rom.CoverURL = existing.CoverURL
	rom.ReleaseDate = existing.ReleaseDate
	rom.AverageRating = existing.AverageRating
	rom.ProviderIDs = existing.ProviderIDs
	rom.ScreenshotURLs = existing.ScreenshotURLs
	rom.Genres = existing.Genres
	rom.Companies = existing.Companies
	rom.AltNames = existing.AltNames
	rom.AgeRatings = existing.AgeRatings
}

// carryHashes copies stored hashes onto parts of the same name and size
// when this scan did not hash.
func carryHashes(rom *database.Rom, stored []database.RomFile) {
	byName := make(map[string]database.RomFile, len(stored))
	for _, f := range stored {
		byName[f.FileName] = f
	}
	for i := range rom.Files {
		old, ok := byName[rom.Files[i].FileName]
		if !ok || old.Size != rom.Files[i].Size {
			continue
		}
		rom.Files[i].CRC32 = old.CRC32
		rom.Files[i].MD5 = old.MD5
		rom.Files[i].SHA1 = old.SHA1
	}
}
