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

// Package resolver turns one filesystem candidate into merged metadata by
// asking each enabled provider in priority order.
package resolver

import (
	"context"

	"github.com/ZaparooProject/zaparoo-romscan/pkg/database/mediascanner"
	"github.com/ZaparooProject/zaparoo-romscan/pkg/database/slugs"
	"github.com/ZaparooProject/zaparoo-romscan/pkg/scraper"
	"github.com/ZaparooProject/zaparoo-romscan/pkg/scraper/hasher"
	"github.com/ZaparooProject/zaparoo-romscan/pkg/scraper/identifiers"
	"github.com/rs/zerolog/log"
)

// Translator maps a catalog identifier to a readable title.
type Translator interface {
	Translate(ctx context.Context, id identifiers.Identifier, platformSlug string) (string, bool)
}

// Platform is what the resolver needs to know about the platform a ROM
// lives on. ProviderIDs is keyed by provider name.
type Platform struct {
	ProviderIDs map[string]string
	Slug        string
}

type Resolver struct {
	indices Translator
}

// New creates a resolver. A nil translator disables index lookups.
func New(indices Translator) *Resolver {
	return &Resolver{indices: indices}
}

func hasHashes(hashes []hasher.FileHash) bool {
	for _, h := range hashes {
		if h.CRC32 != "" || h.MD5 != "" || h.SHA1 != "" {
			return true
		}
	}
	return false
}

// Resolve queries providers for a candidate and merges what they return.
// Hash-capable providers go first when the candidate has hashes. Providers
// that did not match by hash then get a title lookup scoped to their own
// platform id. Hash matches rank above title matches when merging, each
// pass in provider order. A failing provider is logged and skipped. With
// no match the name is the tag-stripped file name.
func (r *Resolver) Resolve(
	ctx context.Context,
	candidate *mediascanner.RomCandidate,
	platform Platform,
	providers []scraper.Provider,
) scraper.MergedMetadata {
	records := make([]scraper.Record, 0, len(providers))
	matched := make(map[string]bool, len(providers))

	if hasHashes(candidate.Hashes) {
		for _, p := range providers {
			if ctx.Err() != nil {
				break
			}
			if !p.SupportsHashLookup() {
				continue
			}
			rec, err := p.IdentifyByHash(ctx, candidate.Hashes, platform.ProviderIDs[p.Name()])
			if err != nil {
				logProviderError(err, p, candidate, "hash")
				continue
			}
			if rec != nil {
				records = append(records, *rec)
				matched[p.Name()] = true
			}
		}
	}

	term := r.searchTerm(ctx, candidate, platform.Slug)
	if term != "" {
		for _, p := range providers {
			if ctx.Err() != nil {
				break
			}
			if matched[p.Name()] || !p.SupportsTitleLookup() {
				continue
			}
			platformID := platform.ProviderIDs[p.Name()]
			if platformID == "" {
				log.Debug().
					Str("provider", p.Name()).
					Str("platform", platform.Slug).
					Msg("provider has no id for platform, skipping title lookup")
				continue
			}
			rec, err := p.IdentifyByTitle(ctx, term, platformID)
			if err != nil {
				logProviderError(err, p, candidate, "title")
				continue
			}
			if rec != nil {
				records = append(records, *rec)
				matched[p.Name()] = true
			}
		}
	}

	return scraper.Merge(candidate.FSNameNoTags, records)
}

// searchTerm classifies the file name and swaps catalog identifiers for
// their indexed titles before normalizing.
func (r *Resolver) searchTerm(ctx context.Context, candidate *mediascanner.RomCandidate, platformSlug string) string {
	id := identifiers.Classify(candidate.FSName, platformSlug)
	if id.Kind == identifiers.KindNone {
		return ""
	}

	title := id.Title
	if id.Kind != identifiers.KindGeneric && r.indices != nil {
		if translated, ok := r.indices.Translate(ctx, id, platformSlug); ok {
			log.Debug().
				Str("kind", string(id.Kind)).
				Str("key", id.Key).
				Str("title", translated).
				Msg("translated identifier from index")
			title = translated
		}
	}
	return slugs.NormalizeSearchTerm(title)
}

func logProviderError(err error, p scraper.Provider, candidate *mediascanner.RomCandidate, lookup string) {
	log.Warn().
		Err(err).
		Str("provider", p.Name()).
		Str("lookup", lookup).
		Str("rom", candidate.FSName).
		Msg("metadata provider failed, skipping")
}
