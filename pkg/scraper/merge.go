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
	"math"
	"strings"
)

// MergedMetadata is the result of merging every matching provider record.
type MergedMetadata struct {
	AverageRating  *float64          `json:"averageRating,omitempty"`
	ProviderIDs    map[string]string `json:"providerIds"`
	Name           string            `json:"name"`
	Summary        string            `json:"summary,omitempty"`
	CoverURL       string            `json:"coverUrl,omitempty"`
	ReleaseDate    string            `json:"releaseDate,omitempty"`
	ScreenshotURLs []string          `json:"screenshotUrls,omitempty"`
	Genres         []string          `json:"genres,omitempty"`
	Companies      []string          `json:"companies,omitempty"`
	AltNames       []string          `json:"altNames,omitempty"`
	AgeRatings     []string          `json:"ageRatings,omitempty"`
	Sources        []string          `json:"sources,omitempty"`
}

// IsIdentified reports whether at least one provider matched.
func (m *MergedMetadata) IsIdentified() bool {
	return len(m.ProviderIDs) > 0
}

// unionInto appends values not already present, comparing case-insensitively
// and keeping the first spelling seen.
func unionInto(dst []string, seen map[string]struct{}, values []string) []string {
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		key := strings.ToLower(v)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		dst = append(dst, v)
	}
	return dst
}

// NormalizedRating rescales a provider rating to 0-100. Zero or missing
// ratings and records without a scale return false.
func NormalizedRating(r *Record) (float64, bool) {
	if r.Rating <= 0 || r.RatingScale <= 0 || math.IsNaN(r.Rating) {
		return 0, false
	}
	v := r.Rating / r.RatingScale * 100
	return math.Min(v, 100), true
}

// Merge combines provider records in priority order. The first record with
// a value wins each scalar field. List fields are unioned in record order.
// Ratings are rescaled to 0-100 and averaged, skipping zero ratings. When
// no record matched, the name falls back to fallbackName and there are no
// provider ids.
func Merge(fallbackName string, records []Record) MergedMetadata {
	merged := MergedMetadata{
		Name:        fallbackName,
		ProviderIDs: map[string]string{},
	}

	genres := map[string]struct{}{}
	companies := map[string]struct{}{}
	altNames := map[string]struct{}{}
	ageRatings := map[string]struct{}{}
	screens := map[string]struct{}{}

	var ratingSum float64
	ratingCount := 0
	nameSet := false

	for i := range records {
		r := &records[i]
		if r.Provider == "" || r.ProviderID == "" {
			continue
		}
		if _, dup := merged.ProviderIDs[r.Provider]; dup {
			continue
		}

		merged.ProviderIDs[r.Provider] = r.ProviderID
		merged.Sources = append(merged.Sources, r.Provider)

		if !nameSet && strings.TrimSpace(r.Title) != "" {
			merged.Name = strings.TrimSpace(r.Title)
			nameSet = true
		}
		if merged.Summary == "" {
			merged.Summary = strings.TrimSpace(r.Summary)
		}
		if merged.CoverURL == "" {
			merged.CoverURL = r.CoverURL
		}
		if merged.ReleaseDate == "" {
			merged.ReleaseDate = r.ReleaseDate
		}

		merged.ScreenshotURLs = unionInto(merged.ScreenshotURLs, screens, r.ScreenshotURLs)
		merged.Genres = unionInto(merged.Genres, genres, r.Genres)
		merged.Companies = unionInto(merged.Companies, companies, r.Companies)
		merged.AltNames = unionInto(merged.AltNames, altNames, r.AltNames)
		merged.AgeRatings = unionInto(merged.AgeRatings, ageRatings, r.AgeRatings)

		if v, ok := NormalizedRating(r); ok {
			ratingSum += v
			ratingCount++
		}
	}

	if ratingCount > 0 {
		avg := math.Round(ratingSum/float64(ratingCount)*100) / 100
		merged.AverageRating = &avg
	}

	return merged
}
