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

package scraper

import (
	"sort"
	"strings"

	"github.com/ZaparooProject/zaparoo-romscan/pkg/database/slugs"
	"github.com/hbollon/go-edlib"
	"github.com/rs/zerolog/log"
)

// DefaultMinSimilarity is the lowest Jaro-Winkler score accepted as a
// title match.
const DefaultMinSimilarity float32 = 0.85

// FuzzyMatch is a candidate title scored against the search term.
type FuzzyMatch struct {
	Title      string
	Index      int
	Similarity float32
}

func matchKey(s string) string {
	return strings.ToLower(slugs.NormalizeSearchTerm(s))
}

// FindBestMatch scores candidate titles against term with Jaro-Winkler
// similarity after normalizing both sides. It returns the best candidate
// at or above minSimilarity. Ties keep the earlier candidate.
func FindBestMatch(term string, candidates []string, minSimilarity float32) (FuzzyMatch, bool) {
	query := matchKey(term)
	if query == "" {
		return FuzzyMatch{}, false
	}

	matches := make([]FuzzyMatch, 0, len(candidates))
	for i, candidate := range candidates {
		key := matchKey(candidate)
		if key == "" {
			continue
		}

		similarity := float32(1)
		if key != query {
			similarity = edlib.JaroWinklerSimilarity(query, key)
		}

		if similarity > 0.7 {
			log.Debug().
				Str("query", query).
				Str("candidate", key).
				Float32("similarity", similarity).
				Msg("title match candidate evaluation")
		}

		if similarity >= minSimilarity {
			matches = append(matches, FuzzyMatch{
				Title:      candidate,
				Index:      i,
				Similarity: similarity,
			})
		}
	}

	if len(matches) == 0 {
		return FuzzyMatch{}, false
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})
	return matches[0], true
}
