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

package config

import (
	"errors"
	"fmt"
	"path"
	"strings"
	"time"
)

const DefaultScanTimeoutMinutes = 240

// Exclusions are the user rules that hide filesystem entries from a scan.
// Name rules are glob patterns, extension rules are compared without the
// leading dot and case-insensitively. Each list only applies to its own
// kind of entry.
type Exclusions struct {
	Platforms        []string `toml:"platforms,omitempty"`
	SingleNames      []string `toml:"single_names,omitempty"`
	SingleExtensions []string `toml:"single_extensions,omitempty"`
	MultiNames       []string `toml:"multi_names,omitempty"`
	MultiExtensions  []string `toml:"multi_extensions,omitempty"`
	PartNames        []string `toml:"part_names,omitempty"`
	PartExtensions   []string `toml:"part_extensions,omitempty"`
}

type Scan struct {
	// Bindings maps a filesystem folder name to a canonical platform slug.
	Bindings       map[string]string `toml:"bindings,omitempty"`
	Exclusions     Exclusions        `toml:"exclusions,omitempty"`
	TimeoutMinutes int               `toml:"timeout_minutes,omitempty"`
	HashRoms       bool              `toml:"hash_roms"`
}

var ErrInvalidBinding = errors.New("invalid platform binding")

func validatePatterns(field string, patterns []string) error {
	for _, p := range patterns {
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("%s: empty pattern", field)
		}
		if _, err := path.Match(p, ""); err != nil {
			return fmt.Errorf("%s: pattern %q: %w", field, p, err)
		}
	}
	return nil
}

// Validate checks every exclusion glob and platform binding.
func (s *Scan) Validate() error {
	ex := s.Exclusions
	groups := []struct {
		name     string
		patterns []string
	}{
		{"exclusions.platforms", ex.Platforms},
		{"exclusions.single_names", ex.SingleNames},
		{"exclusions.multi_names", ex.MultiNames},
		{"exclusions.part_names", ex.PartNames},
	}
	for _, g := range groups {
		if err := validatePatterns(g.name, g.patterns); err != nil {
			return err
		}
	}

	for _, exts := range [][]string{ex.SingleExtensions, ex.MultiExtensions, ex.PartExtensions} {
		for _, e := range exts {
			if strings.TrimSpace(strings.TrimPrefix(e, ".")) == "" {
				return errors.New("exclusions: empty extension")
			}
		}
	}

	for k, v := range s.Bindings {
		if strings.TrimSpace(k) == "" || strings.TrimSpace(v) == "" {
			return fmt.Errorf("%w: %q = %q", ErrInvalidBinding, k, v)
		}
		if strings.ContainsAny(k, `/\`) {
			return fmt.Errorf("%w: folder %q contains a path separator", ErrInvalidBinding, k)
		}
	}

	if s.TimeoutMinutes < 0 {
		return fmt.Errorf("timeout_minutes must not be negative: %d", s.TimeoutMinutes)
	}

	return nil
}

// ScanConfig is an immutable snapshot of the settings a single scan needs.
// It is taken once when a scan starts so config reloads never change the
// rules in the middle of a run.
type ScanConfig struct {
	bindings      map[string]string
	LibraryPath   string
	ProviderOrder []string
	Exclusions    Exclusions
	Timeout       time.Duration
	HashRoms      bool
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s...)
}

// NewScanConfig builds a snapshot outside of a config instance. Mostly
// useful in tests.
//
//nolint:gocritic // scan struct copied for immutability
func NewScanConfig(libraryPath string, scan Scan, providers []string) ScanConfig {
	bindings := make(map[string]string, len(scan.Bindings))
	for k, v := range scan.Bindings {
		bindings[k] = v
	}
	timeout := time.Duration(scan.TimeoutMinutes) * time.Minute
	if timeout == 0 {
		timeout = DefaultScanTimeoutMinutes * time.Minute
	}
	return ScanConfig{
		LibraryPath:   libraryPath,
		ProviderOrder: cloneStrings(providers),
		HashRoms:      scan.HashRoms,
		Timeout:       timeout,
		bindings:      bindings,
		Exclusions: Exclusions{
			Platforms:        cloneStrings(scan.Exclusions.Platforms),
			SingleNames:      cloneStrings(scan.Exclusions.SingleNames),
			SingleExtensions: cloneStrings(scan.Exclusions.SingleExtensions),
			MultiNames:       cloneStrings(scan.Exclusions.MultiNames),
			MultiExtensions:  cloneStrings(scan.Exclusions.MultiExtensions),
			PartNames:        cloneStrings(scan.Exclusions.PartNames),
			PartExtensions:   cloneStrings(scan.Exclusions.PartExtensions),
		},
	}
}

// ScanSnapshot returns a copy of the current scan settings.
func (c *Instance) ScanSnapshot() ScanConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return NewScanConfig(c.vals.Library.Path, c.vals.Scan, c.vals.Providers.Order)
}

// Binding returns the canonical slug bound to a filesystem folder name.
func (sc ScanConfig) Binding(fsSlug string) (string, bool) {
	v, ok := sc.bindings[fsSlug]
	return v, ok
}

// PlatformExcluded reports whether a platform folder matches any of the
// platform exclusion globs.
func (sc ScanConfig) PlatformExcluded(fsSlug string) bool {
	return MatchAny(sc.Exclusions.Platforms, fsSlug)
}

// MatchAny reports whether name matches any glob. Patterns were validated
// on load so match errors are treated as no match.
func MatchAny(patterns []string, name string) bool {
	for _, p := range patterns {
		if ok, err := path.Match(p, name); err == nil && ok {
			return true
		}
	}
	return false
}

// HasExtension reports whether ext (with or without the leading dot) is in
// the list, ignoring case.
func HasExtension(exts []string, ext string) bool {
	ext = strings.TrimPrefix(ext, ".")
	if ext == "" {
		return false
	}
	for _, e := range exts {
		if strings.EqualFold(strings.TrimPrefix(e, "."), ext) {
			return true
		}
	}
	return false
}
