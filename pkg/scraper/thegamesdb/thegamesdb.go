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

// Package thegamesdb searches TheGamesDB by title within a platform.
package thegamesdb

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ZaparooProject/zaparoo-romscan/pkg/config"
	"github.com/ZaparooProject/zaparoo-romscan/pkg/helpers"
	"github.com/ZaparooProject/zaparoo-romscan/pkg/scraper"
	"github.com/ZaparooProject/zaparoo-romscan/pkg/scraper/cache"
	"github.com/ZaparooProject/zaparoo-romscan/pkg/scraper/hasher"
	"github.com/ZaparooProject/zaparoo-romscan/pkg/shared/httpclient"
	"github.com/rs/zerolog/log"
)

const (
	DefaultBaseURL = "https://api.thegamesdb.net/v1"

	requestsPerSecond = 2
	requestTimeout    = 30 * time.Second
	notRated          = "Not Rated"
)

// TheGamesDB implements scraper.Provider for the TheGamesDB API. It has no
// hash lookup.
type TheGamesDB struct {
	client  *httpclient.Client
	store   *cache.Store
	baseURL string
}

// Option configures a TheGamesDB provider.
type Option func(*TheGamesDB)

// WithBaseURL points the provider at another API root (for testing).
func WithBaseURL(u string) Option {
	return func(tgdb *TheGamesDB) {
		tgdb.baseURL = strings.TrimRight(u, "/")
	}
}

// WithClient replaces the rate limited HTTP client.
func WithClient(c *httpclient.Client) Option {
	return func(tgdb *TheGamesDB) {
		tgdb.client = c
	}
}

func New(store *cache.Store, opts ...Option) *TheGamesDB {
	tgdb := &TheGamesDB{
		client:  httpclient.NewRateLimitedClient(requestTimeout, requestsPerSecond, 2),
		store:   store,
		baseURL: DefaultBaseURL,
	}
	for _, opt := range opts {
		opt(tgdb)
	}
	return tgdb
}

func (*TheGamesDB) Name() string {
	return scraper.ProviderTheGamesDB
}

func (tgdb *TheGamesDB) apiKey() string {
	creds := config.LookupProviderAuth(config.GetAuthCfg(), scraper.ProviderTheGamesDB, tgdb.baseURL)
	if creds == nil {
		return ""
	}
	if creds.APIKey != "" {
		return creds.APIKey
	}
	return creds.Bearer
}

func (tgdb *TheGamesDB) IsEnabled() bool {
	return tgdb.apiKey() != ""
}

func (*TheGamesDB) SupportsHashLookup() bool {
	return false
}

func (*TheGamesDB) SupportsTitleLookup() bool {
	return true
}

func (*TheGamesDB) IdentifyByHash(context.Context, []hasher.FileHash, string) (*scraper.Record, error) {
	return nil, nil //nolint:nilnil // no hash lookup
}

// IdentifyByTitle searches by game name on one platform and picks the
// closest title, including alternate names.
func (tgdb *TheGamesDB) IdentifyByTitle(ctx context.Context, term, platformID string) (*scraper.Record, error) {
	if term == "" || platformID == "" {
		return nil, nil //nolint:nilnil // nothing to search
	}

	key := cache.Key(tgdb.Name(), "title:"+platformID, strings.ToLower(term))
	return cache.Fetch(tgdb.store, key, cache.DefaultTTL, cache.DefaultMissTTL, func() (*scraper.Record, error) {
		return tgdb.searchTitle(ctx, term, platformID)
	})
}

func (tgdb *TheGamesDB) searchTitle(ctx context.Context, term, platformID string) (*scraper.Record, error) {
	params := url.Values{}
	params.Set("name", term)
	params.Set("filter[platform]", platformID)
	params.Set("fields", "overview,rating,genres,alternates,platform")
	params.Set("include", "boxart")

	var resp APIResponse
	if err := tgdb.get(ctx, "Games/ByGameName", params, &resp); err != nil {
		return nil, err
	}
	if resp.Data == nil || len(resp.Data.Games) == 0 {
		return nil, nil //nolint:nilnil // no results
	}

	// every title and alternate name is a candidate for its game
	titles := make([]string, 0, len(resp.Data.Games))
	owners := make([]int, 0, len(resp.Data.Games))
	for i, g := range resp.Data.Games {
		titles = append(titles, g.GameTitle)
		owners = append(owners, i)
		for _, alt := range g.AlternateNames {
			titles = append(titles, alt)
			owners = append(owners, i)
		}
	}

	match, ok := scraper.FindBestMatch(term, titles, scraper.DefaultMinSimilarity)
	if !ok {
		return nil, nil //nolint:nilnil // no close title
	}
	game := resp.Data.Games[owners[match.Index]]
	return tgdb.convertGame(ctx, &game, resp.Include)
}

// genres returns the genre names keyed by id, cached for a long time.
func (tgdb *TheGamesDB) genres(ctx context.Context) map[string]Genre {
	key := cache.Key(tgdb.Name(), "genres", "all")
	got, err := cache.Fetch(tgdb.store, key, cache.DefaultTTL, cache.DefaultMissTTL,
		func() (*map[string]Genre, error) {
			var resp APIResponse
			if err := tgdb.get(ctx, "Genres", url.Values{}, &resp); err != nil {
				return nil, err
			}
			if resp.Data == nil {
				return nil, nil //nolint:nilnil // no genres
			}
			return &resp.Data.Genres, nil
		})
	if err != nil {
		log.Warn().Err(err).Msg("failed to fetch TheGamesDB genres")
		return nil
	}
	if got == nil {
		return nil
	}
	return *got
}

func (tgdb *TheGamesDB) get(ctx context.Context, endpoint string, params url.Values, v any) error {
	key := tgdb.apiKey()
	if key == "" {
		return scraper.ErrNotConfigured
	}
	params.Set("apikey", key)

	u := tgdb.baseURL + "/" + endpoint + "?" + params.Encode()
	log.Debug().Str("url", helpers.MaskURL(u)).Msg("TheGamesDB request")

	if err := tgdb.client.GetJSON(ctx, u, v); err != nil {
		return fmt.Errorf("thegamesdb %s: %w", endpoint, err)
	}
	return nil
}

func (tgdb *TheGamesDB) convertGame(
	ctx context.Context,
	game *Game,
	include *APIResponseInclude,
) (*scraper.Record, error) {
	raw, err := json.Marshal(game)
	if err != nil {
		return nil, fmt.Errorf("failed to encode thegamesdb game: %w", err)
	}

	rec := &scraper.Record{
		Raw:         raw,
		Provider:    scraper.ProviderTheGamesDB,
		ProviderID:  strconv.Itoa(game.ID),
		Title:       game.GameTitle,
		Summary:     game.Overview,
		ReleaseDate: game.ReleaseDate,
		AltNames:    game.AlternateNames,
	}
	if game.Rating != "" && game.Rating != notRated {
		rec.AgeRatings = []string{game.Rating}
	}

	if include != nil && include.Boxart != nil {
		base := include.Boxart.BaseURL.Original
		for _, art := range include.Boxart.Data[rec.ProviderID] {
			switch {
			case art.Type == "boxart" && art.Side == "front" && rec.CoverURL == "":
				rec.CoverURL = base + art.Filename
			case art.Type == "screenshot":
				rec.ScreenshotURLs = append(rec.ScreenshotURLs, base+art.Filename)
			}
		}
	}

	if len(game.Genres) > 0 {
		names := tgdb.genres(ctx)
		for _, id := range game.Genres {
			if g, ok := names[strconv.Itoa(id)]; ok {
				rec.Genres = append(rec.Genres, g.Name)
			}
		}
	}

	return rec, nil
}
