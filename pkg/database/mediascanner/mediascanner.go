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

// Package mediascanner turns a library folder tree into ROM and firmware
// candidates. It never talks to providers or the database.
package mediascanner

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/ZaparooProject/zaparoo-romscan/pkg/config"
	"github.com/ZaparooProject/zaparoo-romscan/pkg/database/tags"
	"github.com/ZaparooProject/zaparoo-romscan/pkg/scraper/hasher"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

const (
	RomsFolder = "roms"
	BiosFolder = "bios"
)

var (
	// ErrPlatformNotFound means the platform's ROM folder is missing, which
	// is different from a platform folder with no ROMs in it.
	ErrPlatformNotFound = errors.New("platform not found on disk")
	ErrLibraryNotFound  = errors.New("library path not found")
)

// Layout is the folder structure of a library.
type Layout int

const (
	// LayoutRomsFirst is <root>/roms/<platform> and <root>/bios/<platform>.
	LayoutRomsFirst Layout = iota
	// LayoutPlatformFirst is <root>/<platform>/roms and <root>/<platform>/bios.
	LayoutPlatformFirst
)

func (l Layout) String() string {
	if l == LayoutPlatformFirst {
		return "platform-first"
	}
	return "roms-first"
}

type RomPart struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// RomCandidate is one ROM as found on disk. FSPath is the folder holding
// the entry, relative to the library root with forward slashes.
type RomCandidate struct {
	FSName       string            `json:"fsName"`
	FSNameNoTags string            `json:"fsNameNoTags"`
	FSExtension  string            `json:"fsExtension"`
	FSPath       string            `json:"fsPath"`
	Revision     string            `json:"revision"`
	Parts        []RomPart         `json:"parts"`
	Regions      []string          `json:"regions"`
	Languages    []string          `json:"languages"`
	ExtraTags    []string          `json:"extraTags"`
	Hashes       []hasher.FileHash `json:"hashes"`
	TotalSize    int64             `json:"totalSize"`
	IsMulti      bool              `json:"isMulti"`
	IsFolder     bool              `json:"isFolder"`
}

// PartNames lists the file names of every part.
func (c *RomCandidate) PartNames() []string {
	names := make([]string, len(c.Parts))
	for i, p := range c.Parts {
		names[i] = p.Name
	}
	return names
}

// PartsDir is the library relative folder holding the candidate's parts.
func (c *RomCandidate) PartsDir() string {
	if c.IsFolder {
		return path.Join(c.FSPath, c.FSName)
	}
	return c.FSPath
}

// EntryError is a ROM entry that exists but could not be read. The rest of
// the platform is still listed.
type EntryError struct {
	Err  error
	Name string
}

func (e *EntryError) Error() string {
	return fmt.Sprintf("%s: %v", e.Name, e.Err)
}

func (e *EntryError) Unwrap() error {
	return e.Err
}

type FirmwareCandidate struct {
	FileName string
	FSPath   string
	Hash     hasher.FileHash
	Size     int64
}

// Library is a library root opened for one scan. The layout is detected
// once when it's opened.
type Library struct {
	fs     afero.Fs
	root   string
	cfg    config.ScanConfig
	layout Layout
}

// OpenLibrary checks the library root exists and detects its layout. A
// "roms" folder directly under the root selects LayoutRomsFirst.
//
//nolint:gocritic // scan config copied for immutability
func OpenLibrary(afs afero.Fs, cfg config.ScanConfig) (*Library, error) {
	root := filepath.Clean(cfg.LibraryPath)
	info, err := afs.Stat(root)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrLibraryNotFound, root)
	}

	layout := LayoutPlatformFirst
	if romsDir, err := findPath(afs, filepath.Join(root, RomsFolder)); err == nil {
		if info, err := afs.Stat(romsDir); err == nil && info.IsDir() {
			layout = LayoutRomsFirst
		}
	}

	log.Debug().
		Str("root", root).
		Stringer("layout", layout).
		Msg("opened library")

	return &Library{
		fs:     afs,
		root:   root,
		cfg:    cfg,
		layout: layout,
	}, nil
}

func (l *Library) Layout() Layout {
	return l.layout
}

func (l *Library) Root() string {
	return l.root
}

// findPath case-insensitively finds a file or folder at a path.
func findPath(afs afero.Fs, p string) (string, error) {
	if _, err := afs.Stat(p); err == nil {
		return p, nil
	}

	parent := filepath.Dir(p)
	name := filepath.Base(p)

	entries, err := afero.ReadDir(afs, parent)
	if err != nil {
		return "", fmt.Errorf("failed to read dir %s: %w", parent, err)
	}

	for _, entry := range entries {
		target := entry.Name()
		if len(target) == len(name) && strings.EqualFold(target, name) {
			return filepath.Join(parent, target), nil
		}
	}

	return "", fmt.Errorf("file match not found: %s: %w", p, fs.ErrNotExist)
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

// statEntry resolves symlinks so linked files and folders are treated like
// the real thing. Broken links return false.
func (l *Library) statEntry(dir string, info os.FileInfo) (os.FileInfo, bool) {
	if info.Mode()&os.ModeSymlink == 0 {
		return info, true
	}
	target, err := l.fs.Stat(filepath.Join(dir, info.Name()))
	if err != nil {
		log.Debug().Err(err).Str("name", info.Name()).Msg("skipping broken symlink")
		return nil, false
	}
	return target, true
}

func (l *Library) relative(p string) string {
	rel, err := filepath.Rel(l.root, p)
	if err != nil {
		return filepath.ToSlash(p)
	}
	return filepath.ToSlash(rel)
}

func (l *Library) abs(rel string) string {
	return filepath.Join(l.root, filepath.FromSlash(rel))
}

// ListPlatforms returns the platform folder names in the library, sorted
// by name. Hidden and excluded folders are left out.
func (l *Library) ListPlatforms() ([]string, error) {
	var base string
	if l.layout == LayoutRomsFirst {
		romsDir, err := findPath(l.fs, filepath.Join(l.root, RomsFolder))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLibraryNotFound, err)
		}
		base = romsDir
	} else {
		base = l.root
	}

	entries, err := afero.ReadDir(l.fs, base)
	if err != nil {
		return nil, fmt.Errorf("failed to list platforms: %w", err)
	}

	platforms := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if isHidden(name) {
			continue
		}
		info, ok := l.statEntry(base, entry)
		if !ok || !info.IsDir() {
			continue
		}
		if l.layout == LayoutPlatformFirst {
			if _, err := findPath(l.fs, filepath.Join(base, name, RomsFolder)); err != nil {
				continue
			}
		}
		if l.cfg.PlatformExcluded(name) {
			log.Debug().Str("platform", name).Msg("platform excluded")
			continue
		}
		platforms = append(platforms, name)
	}

	return platforms, nil
}

// platformDir returns the absolute path of a platform's roms or bios
// folder for the current layout.
func (l *Library) platformDir(fsSlug, kind string) (string, error) {
	var p string
	if l.layout == LayoutRomsFirst {
		p = filepath.Join(l.root, kind, fsSlug)
	} else {
		p = filepath.Join(l.root, fsSlug, kind)
	}
	return findPath(l.fs, p)
}

// IdentifyRoms lists the ROM candidates in a platform's ROM folder in
// listing order. Files become single candidates. Folders become multi-part
// candidates when they hold two or more usable files. ROM folders that
// can't be read are returned as entry errors instead of failing the
// platform.
func (l *Library) IdentifyRoms(fsSlug string) ([]RomCandidate, []EntryError, error) {
	dir, err := l.platformDir(fsSlug, RomsFolder)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrPlatformNotFound, fsSlug)
	}

	info, err := l.fs.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, nil, fmt.Errorf("%w: %s", ErrPlatformNotFound, fsSlug)
	}

	entries, err := afero.ReadDir(l.fs, dir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read platform %s: %w", fsSlug, err)
	}

	ex := l.cfg.Exclusions
	relDir := l.relative(dir)
	candidates := make([]RomCandidate, 0, len(entries))
	var unreadable []EntryError

	for _, entry := range entries {
		name := entry.Name()
		if isHidden(name) {
			continue
		}

		info, ok := l.statEntry(dir, entry)
		if !ok {
			continue
		}

		if !info.IsDir() {
			if !info.Mode().IsRegular() {
				continue
			}
			ext := tags.FileExtension(name)
			if config.MatchAny(ex.SingleNames, name) || config.HasExtension(ex.SingleExtensions, ext) {
				log.Debug().Str("platform", fsSlug).Str("name", name).Msg("rom excluded")
				continue
			}
			candidates = append(candidates, newFileCandidate(relDir, name, info.Size()))
			continue
		}

		if config.MatchAny(ex.MultiNames, name) ||
			config.HasExtension(ex.MultiExtensions, tags.FileExtension(name)) {
			log.Debug().Str("platform", fsSlug).Str("name", name).Msg("rom folder excluded")
			continue
		}

		parts, err := l.folderParts(filepath.Join(dir, name))
		if err != nil {
			log.Warn().Err(err).Str("platform", fsSlug).Str("name", name).Msg("skipping unreadable rom folder")
			unreadable = append(unreadable, EntryError{Name: name, Err: err})
			continue
		}

		switch len(parts) {
		case 0:
			log.Debug().Str("platform", fsSlug).Str("name", name).Msg("empty rom folder")
		case 1:
			candidates = append(candidates, newFolderCandidate(relDir, name, parts, false))
		default:
			candidates = append(candidates, newFolderCandidate(relDir, name, parts, true))
		}
	}

	return candidates, unreadable, nil
}

// folderParts lists the usable files directly inside a ROM folder.
func (l *Library) folderParts(dir string) ([]RomPart, error) {
	entries, err := afero.ReadDir(l.fs, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read rom folder %s: %w", dir, err)
	}

	ex := l.cfg.Exclusions
	parts := make([]RomPart, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if isHidden(name) {
			continue
		}
		info, ok := l.statEntry(dir, entry)
		if !ok || !info.Mode().IsRegular() {
			continue
		}
		if config.MatchAny(ex.PartNames, name) ||
			config.HasExtension(ex.PartExtensions, tags.FileExtension(name)) {
			continue
		}
		parts = append(parts, RomPart{Name: name, Size: info.Size()})
	}
	return parts, nil
}

func applyTags(c *RomCandidate) {
	res := tags.ParseTags(c.FSName)
	c.Regions = res.Regions
	c.Languages = res.Languages
	c.Revision = res.Revision
	c.ExtraTags = res.ExtraTags
}

func newFileCandidate(relDir, name string, size int64) RomCandidate {
	c := RomCandidate{
		FSName:       name,
		FSNameNoTags: tags.FileNameWithNoTags(name),
		FSExtension:  tags.FileExtension(name),
		FSPath:       relDir,
		Parts:        []RomPart{{Name: name, Size: size}},
		TotalSize:    size,
	}
	applyTags(&c)
	return c
}

func newFolderCandidate(relDir, name string, parts []RomPart, multi bool) RomCandidate {
	c := RomCandidate{
		FSName:       name,
		FSNameNoTags: tags.StripTags(name),
		FSPath:       relDir,
		Parts:        parts,
		IsMulti:      multi,
		IsFolder:     true,
	}
	if !multi {
		c.FSExtension = tags.FileExtension(parts[0].Name)
	}
	for _, p := range parts {
		c.TotalSize += p.Size
	}
	applyTags(&c)
	return c
}

// ComputeHashes fills the candidate's hashes, one per part in part order.
func (l *Library) ComputeHashes(c *RomCandidate) error {
	hashes, err := hasher.HashParts(l.fs, l.abs(c.PartsDir()), c.PartNames())
	if err != nil {
		return fmt.Errorf("failed to hash %s: %w", c.FSName, err)
	}
	c.Hashes = hashes
	return nil
}

// IdentifyFirmware lists and hashes the files in a platform's bios folder.
// A platform without a bios folder has no firmware.
func (l *Library) IdentifyFirmware(fsSlug string) ([]FirmwareCandidate, error) {
	dir, err := l.platformDir(fsSlug, BiosFolder)
	if err != nil {
		return []FirmwareCandidate{}, nil
	}

	entries, err := afero.ReadDir(l.fs, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read firmware for %s: %w", fsSlug, err)
	}

	relDir := l.relative(dir)
	firmware := make([]FirmwareCandidate, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if isHidden(name) {
			continue
		}
		info, ok := l.statEntry(dir, entry)
		if !ok || !info.Mode().IsRegular() {
			continue
		}
		h, err := hasher.HashFile(l.fs, filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("failed to hash firmware %s: %w", name, err)
		}
		firmware = append(firmware, FirmwareCandidate{
			FileName: name,
			FSPath:   relDir,
			Size:     info.Size(),
			Hash:     h,
		})
	}
	return firmware, nil
}
