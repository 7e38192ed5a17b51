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

// Package screenscraper looks games up on ScreenScraper.fr by ROM hash or
// by title.
package screenscraper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"slices"
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
	DefaultBaseURL = "https://api.screenscraper.fr/api2"

	// ScreenScraper notes are out of 20.
	ratingScale = 20

	// ScreenScraper API limits - be conservative to avoid being blocked
	requestsPerSecond = 1
	requestTimeout    = 30 * time.Second
)

// Preferred regions for names, dates and media, best first.
var preferredRegions = []string{"ss", "wor", "us", "eu", "uk", "jp"}

// ScreenScraper implements scraper.Provider for the ScreenScraper.fr API.
type ScreenScraper struct {
	client  *httpclient.Client
	store   *cache.Store
	baseURL string
}

// Option configures a ScreenScraper.
type Option func(*ScreenScraper)

// WithBaseURL points the provider at another API root (for testing).
func WithBaseURL(u string) Option {
	return func(ss *ScreenScraper) {
		ss.baseURL = strings.TrimRight(u, "/")
	}
}

// WithClient replaces the rate limited HTTP client.
func WithClient(c *httpclient.Client) Option {
	return func(ss *ScreenScraper) {
		ss.client = c
	}
}

// New creates a ScreenScraper provider. Responses are cached in store when
// it is not nil.
func New(store *cache.Store, opts ...Option) *ScreenScraper {
	ss := &ScreenScraper{
		client:  httpclient.NewRateLimitedClient(requestTimeout, requestsPerSecond, 1),
		store:   store,
		baseURL: DefaultBaseURL,
	}
	for _, opt := range opts {
		opt(ss)
	}
	return ss
}

func (*ScreenScraper) Name() string {
	return scraper.ProviderScreenScraper
}

func (ss *ScreenScraper) credentials() *config.CredentialEntry {
	return config.LookupProviderAuth(config.GetAuthCfg(), scraper.ProviderScreenScraper, ss.baseURL)
}

// IsEnabled reports whether a ScreenScraper account is configured.
func (ss *ScreenScraper) IsEnabled() bool {
	creds := ss.credentials()
	return creds != nil && creds.Username != "" && creds.Password != ""
}

func (*ScreenScraper) SupportsHashLookup() bool {
	return true
}

func (*ScreenScraper) SupportsTitleLookup() bool {
	return true
}

// IdentifyByHash tries each part's hashes in order and returns the first
// game ScreenScraper recognises.
func (ss *ScreenScraper) IdentifyByHash(
	ctx context.Context,
	hashes []hasher.FileHash,
	platformID string,
) (*scraper.Record, error) {
	for i := range hashes {
		h := hashes[i]
		key := firstNonEmpty(h.SHA1, h.MD5, h.CRC32)
		if key == "" {
			continue
		}

		rec, err := cache.Fetch(ss.store, cache.Key(ss.Name(), "hash", strings.ToLower(key)),
			cache.DefaultTTL, cache.DefaultMissTTL,
			func() (*scraper.Record, error) {
				return ss.lookupHash(ctx, &h, platformID)
			})
		if err != nil {
			return nil, err
		}
		if rec != nil {
			return rec, nil
		}
	}
	return nil, nil //nolint:nilnil // no part matched
}

// IdentifyByTitle searches ScreenScraper within one system and picks the
// closest title.
func (ss *ScreenScraper) IdentifyByTitle(ctx context.Context, term, platformID string) (*scraper.Record, error) {
	if term == "" || platformID == "" {
		return nil, nil //nolint:nilnil // nothing to search
	}

	key := cache.Key(ss.Name(), "title:"+platformID, strings.ToLower(term))
	return cache.Fetch(ss.store, key, cache.DefaultTTL, cache.DefaultMissTTL, func() (*scraper.Record, error) {
		return ss.searchTitle(ctx, term, platformID)
	})
}

func (ss *ScreenScraper) lookupHash(
	ctx context.Context,
	h *hasher.FileHash,
	platformID string,
) (*scraper.Record, error) {
	params := url.Values{}
	params.Set("romtype", "rom")
	params.Set("romnom", h.Name)
	if h.CRC32 != "" {
		params.Set("crc", strings.ToUpper(h.CRC32))
	}
	if h.MD5 != "" {
		params.Set("md5", strings.ToUpper(h.MD5))
	}
	if h.SHA1 != "" {
		params.Set("sha1", strings.ToUpper(h.SHA1))
	}
	if h.FileSize > 0 {
		params.Set("romtaille", strconv.FormatInt(h.FileSize, 10))
	}
	if platformID != "" {
		params.Set("systemeid", platformID)
	}

	resp, err := ss.get(ctx, "jeuInfos.php", params)
	if err != nil || resp == nil {
		return nil, err
	}
	if resp.Response.Game == nil || resp.Response.Game.ID == "" {
		return nil, nil //nolint:nilnil // unknown hash
	}
	return convertGame(resp.Response.Game)
}

func (ss *ScreenScraper) searchTitle(ctx context.Context, term, platformID string) (*scraper.Record, error) {
	params := url.Values{}
	params.Set("recherche", term)
	params.Set("systemeid", platformID)

	resp, err := ss.get(ctx, "jeuRecherche.php", params)
	if err != nil || resp == nil {
		return nil, err
	}

	games := make([]Game, 0, len(resp.Response.Games))
	titles := make([]string, 0, len(resp.Response.Games))
	for i := range resp.Response.Games {
		g := resp.Response.Games[i]
		if g.ID == "" {
			continue
		}
		games = append(games, g)
		titles = append(titles, preferredRegionText(g.Names))
	}

	match, ok := scraper.FindBestMatch(term, titles, scraper.DefaultMinSimilarity)
	if !ok {
		return nil, nil //nolint:nilnil // no close title
	}
	return convertGame(&games[match.Index])
}

// get calls an API endpoint with the account and developer credentials. A
// not found response returns a nil body and no error.
func (ss *ScreenScraper) get(ctx context.Context, endpoint string, params url.Values) (*APIResponse, error) {
	creds := ss.credentials()
	if creds == nil || creds.Username == "" {
		return nil, scraper.ErrNotConfigured
	}

	params.Set("output", "json")
	params.Set("softname", config.AppName)
	params.Set("ssid", creds.Username)
	params.Set("sspassword", creds.Password)
	if creds.DevID != "" {
		params.Set("devid", creds.DevID)
		params.Set("devpassword", creds.DevPassword)
	}

	u := ss.baseURL + "/" + endpoint + "?" + params.Encode()
	log.Debug().Str("url", helpers.MaskURL(u)).Msg("ScreenScraper request")

	var apiResp APIResponse
	err := ss.client.GetJSON(ctx, u, &apiResp)
	if errors.Is(err, httpclient.ErrNotFound) {
		return nil, nil //nolint:nilnil // unknown game
	}
	if err != nil {
		return nil, fmt.Errorf("screenscraper %s: %w", endpoint, err)
	}
	if apiResp.Header.Error != "" {
		return nil, fmt.Errorf("screenscraper %s: API error: %s", endpoint, apiResp.Header.Error)
	}
	return &apiResp, nil
}

func convertGame(game *Game) (*scraper.Record, error) {
	raw, err := json.Marshal(game)
	if err != nil {
		return nil, fmt.Errorf("failed to encode screenscraper game: %w", err)
	}

	rec := &scraper.Record{
		Raw:         raw,
		Provider:    scraper.ProviderScreenScraper,
		ProviderID:  game.ID,
		Title:       preferredRegionText(game.Names),
		Summary:     preferredLanguageText(game.Descriptions, "en"),
		ReleaseDate: preferredRegionText(game.Dates),
		CoverURL:    mediaURL(game.Medias, "box-2D"),
		RatingScale: ratingScale,
	}

	for _, m := range game.Medias {
		if m.Type == "ss" || m.Type == "sstitle" {
			rec.ScreenshotURLs = append(rec.ScreenshotURLs, m.URL)
		}
	}
	for _, g := range game.Genres {
		if name := preferredLanguageText(g.Names, "en"); name != "" {
			rec.Genres = append(rec.Genres, name)
		}
	}
	for _, c := range []*Text{game.Developer, game.Publisher} {
		if c != nil && c.Text != "" && !slices.Contains(rec.Companies, c.Text) {
			rec.Companies = append(rec.Companies, c.Text)
		}
	}
	for _, n := range game.Names {
		if n.Text != "" && n.Text != rec.Title {
			rec.AltNames = append(rec.AltNames, n.Text)
		}
	}
	for _, c := range game.Classifications {
		if c.Text != "" {
			rec.AgeRatings = append(rec.AgeRatings, c.Type+" "+c.Text)
		}
	}
	if game.Rating != nil {
		if v, err := strconv.ParseFloat(game.Rating.Text, 64); err == nil {
			rec.Rating = v
		}
	}

	return rec, nil
}

// preferredRegionText picks the text for the best region, falling back to
// the first entry.
func preferredRegionText(texts []Text) string {
	if len(texts) == 0 {
		return ""
	}
	for _, region := range preferredRegions {
		for _, t := range texts {
			if t.Region == region && t.Text != "" {
				return t.Text
			}
		}
	}
	return texts[0].Text
}

func preferredLanguageText(texts []Text, language string) string {
	if len(texts) == 0 {
		return ""
	}
	for _, t := range texts {
		if t.Language == language && t.Text != "" {
			return t.Text
		}
	}
	return texts[0].Text
}

func mediaURL(medias []Media, mediaType string) string {
	var first string
	for _, region := range preferredRegions {
		for _, m := range medias {
			if m.Type != mediaType {
				continue
			}
			if first == "" {
				first = m.URL
			}
			if m.Region == region {
				return m.URL
			}
		}
	}
	return first
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
