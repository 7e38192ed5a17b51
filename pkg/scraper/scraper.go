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

// Package scraper defines the metadata provider capability interface and
// the policy used to merge provider results into one metadata record.
package scraper

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/ZaparooProject/zaparoo-romscan/pkg/scraper/hasher"
)

const (
	ProviderScreenScraper = "screenscraper"
	ProviderIGDB          = "igdb"
	ProviderTheGamesDB    = "thegamesdb"
)

var ErrNotConfigured = errors.New("provider is not configured")

// Provider is a metadata catalog. A lookup that finds nothing returns a nil
// record and a nil error. Errors are reserved for failed calls.
type Provider interface {
	Name() string

	// IsEnabled reports whether the provider has the credentials it needs.
	IsEnabled() bool

	SupportsHashLookup() bool
	SupportsTitleLookup() bool

	// IdentifyByHash looks up a ROM by the hashes of its parts.
	IdentifyByHash(ctx context.Context, hashes []hasher.FileHash, platformID string) (*Record, error)

	// IdentifyByTitle searches a normalized title scoped to the provider's
	// own platform id.
	IdentifyByTitle(ctx context.Context, term, platformID string) (*Record, error)
}

// Record is one provider's description of a game. Rating is on the
// provider's own scale, RatingScale is the top of that scale and zero
// means the provider gave no rating.
type Record struct {
	Raw            json.RawMessage `json:"raw,omitempty"`
	Provider       string          `json:"provider"`
	ProviderID     string          `json:"providerId"`
	Title          string          `json:"title"`
	Summary        string          `json:"summary,omitempty"`
	CoverURL       string          `json:"coverUrl,omitempty"`
	ReleaseDate    string          `json:"releaseDate,omitempty"`
	ScreenshotURLs []string        `json:"screenshotUrls,omitempty"`
	Genres         []string        `json:"genres,omitempty"`
	Companies      []string        `json:"companies,omitempty"`
	AltNames       []string        `json:"altNames,omitempty"`
	AgeRatings     []string        `json:"ageRatings,omitempty"`
	Rating         float64         `json:"rating,omitempty"`
	RatingScale    float64         `json:"ratingScale,omitempty"`
}
