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

package database

import (
	"context"
	"errors"
	"time"
)

/*
 * Interfaces live at this level so the scanner and the sqlite adapter in
 * romdb don't import each other.
 */

var ErrNotFound = errors.New("record not found")

/*
 * Structs for SQL records
 */

// Platform is one folder of the library. FSSlug is the folder name and is
// the upsert key. Slug is the canonical platform and never changes once
// stored.
type Platform struct {
	AddedAt     time.Time         `json:"addedAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
	ProviderIDs map[string]string `json:"providerIds"`
	FSSlug      string            `json:"fsSlug"`
	Slug        string            `json:"slug"`
	Name        string            `json:"name"`
	DBID        int64             `json:"id"`
}

// IsIdentified reports whether any provider knows the platform.
func (p *Platform) IsIdentified() bool {
	return len(p.ProviderIDs) > 0
}

// RomFile is one part of a ROM with its hashes.
type RomFile struct {
	FileName string `json:"fileName"`
	CRC32    string `json:"crc32,omitempty"`
	MD5      string `json:"md5,omitempty"`
	SHA1     string `json:"sha1,omitempty"`
	Size     int64  `json:"size"`
}

// Rom is a stored ROM, keyed by platform and file name.
type Rom struct {
	AddedAt        time.Time         `json:"addedAt"`
	UpdatedAt      time.Time         `json:"updatedAt"`
	AverageRating  *float64          `json:"averageRating,omitempty"`
	ProviderIDs    map[string]string `json:"providerIds"`
	FileName       string            `json:"fileName"`
	FileNameNoTags string            `json:"fileNameNoTags"`
	FileExtension  string            `json:"fileExtension"`
	FilePath       string            `json:"filePath"`
	Revision       string            `json:"revision,omitempty"`
	Name           string            `json:"name"`
	Summary        string            `json:"summary,omitempty"`
	CoverURL       string            `json:"coverUrl,omitempty"`
	ReleaseDate    string            `json:"releaseDate,omitempty"`
	Regions        []string          `json:"regions"`
	Languages      []string          `json:"languages"`
	ExtraTags      []string          `json:"extraTags"`
	ScreenshotURLs []string          `json:"screenshotUrls,omitempty"`
	Genres         []string          `json:"genres,omitempty"`
	Companies      []string          `json:"companies,omitempty"`
	AltNames       []string          `json:"altNames,omitempty"`
	AgeRatings     []string          `json:"ageRatings,omitempty"`
	Files          []RomFile         `json:"files"`
	DBID           int64             `json:"id"`
	PlatformDBID   int64             `json:"platformId"`
	TotalSize      int64             `json:"totalSize"`
	IsMulti        bool              `json:"isMulti"`
}

// IsIdentified reports whether at least one provider matched the ROM.
func (r *Rom) IsIdentified() bool {
	return len(r.ProviderIDs) > 0
}

// Firmware is a BIOS file stored for a platform.
type Firmware struct {
	AddedAt      time.Time `json:"addedAt"`
	FileName     string    `json:"fileName"`
	FilePath     string    `json:"filePath"`
	CRC32        string    `json:"crc32"`
	MD5          string    `json:"md5"`
	SHA1         string    `json:"sha1"`
	DBID         int64     `json:"id"`
	PlatformDBID int64     `json:"platformId"`
	Size         int64     `json:"size"`
}

/*
 * Interfaces for external deps
 */

// RomStore persists the library. Every Add is an upsert on its natural
// key and sets DBID on the argument. Get methods return ErrNotFound when
// there is no row.
type RomStore interface {
	GetPlatformByFSSlug(ctx context.Context, fsSlug string) (Platform, error)
	AddPlatform(ctx context.Context, p *Platform) error
	ListPlatforms(ctx context.Context) ([]Platform, error)
	// PurgePlatforms deletes every platform whose folder is not in keep,
	// along with its ROMs and firmware.
	PurgePlatforms(ctx context.Context, keepFSSlugs []string) (int64, error)

	GetRom(ctx context.Context, id int64) (Rom, error)
	GetRomByFileName(ctx context.Context, platformID int64, fileName string) (Rom, error)
	AddRom(ctx context.Context, r *Rom) error
	// PurgeRoms deletes the platform's ROMs whose file name is not in keep.
	PurgeRoms(ctx context.Context, platformID int64, keepFileNames []string) (int64, error)

	GetFirmwareByFileName(ctx context.Context, platformID int64, fileName string) (Firmware, error)
	AddFirmware(ctx context.Context, f *Firmware) error
	PurgeFirmware(ctx context.Context, platformID int64, keepFileNames []string) (int64, error)

	Close() error
}
