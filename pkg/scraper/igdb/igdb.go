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

// Package igdb searches IGDB by title. Requests are authorised with a
// Twitch client credentials token.
package igdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ZaparooProject/zaparoo-romscan/pkg/config"
	"github.com/ZaparooProject/zaparoo-romscan/pkg/helpers/syncutil"
	"github.com/ZaparooProject/zaparoo-romscan/pkg/scraper"
	"github.com/ZaparooProject/zaparoo-romscan/pkg/scraper/cache"
	"github.com/ZaparooProject/zaparoo-romscan/pkg/scraper/hasher"
	"github.com/ZaparooProject/zaparoo-romscan/pkg/shared/httpclient"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

const (
	DefaultBaseURL  = "https://api.igdb.com/v4"
	DefaultTokenURL = "https://id.twitch.tv/oauth2/token" // #nosec G101 - Public OAuth endpoint URL, not a credential
	imageURL        = "https://images.igdb.com/igdb/image/upload/"

	// IGDB API limits
	requestsPerSecond = 4
	requestTimeout    = 30 * time.Second
	tokenExpiryMargin = time.Minute
	searchLimit       = 10
	ratingScale       = 100
)

const gameFields = "id,name,summary,first_release_date,total_rating,cover.image_id,screenshots.image_id," +
	"genres.name,involved_companies.company.name,involved_companies.developer,involved_companies.publisher," +
	"alternative_names.name,age_ratings.category,age_ratings.rating"

var ageRatingBoards = map[int]string{
	1: "ESRB",
	2: "PEGI",
}

var ageRatingValues = map[int]string{
	1:  "3",
	2:  "7",
	3:  "12",
	4:  "16",
	5:  "18",
	6:  "RP",
	7:  "EC",
	8:  "E",
	9:  "E10",
	10: "T",
	11: "M",
	12: "AO",
}

type token struct {
	expiresAt   time.Time
	accessToken string
}

// IGDB implements scraper.Provider for the IGDB API.
type IGDB struct {
	client   *httpclient.Client
	store    *cache.Store
	clock    clockwork.Clock
	token    *token
	baseURL  string
	tokenURL string
	mu       syncutil.Mutex
}

// Option configures an IGDB provider.
type Option func(*IGDB)

// WithBaseURL points the provider at another API root (for testing).
func WithBaseURL(u string) Option {
	return func(igdb *IGDB) {
		igdb.baseURL = strings.TrimRight(u, "/")
	}
}

// WithTokenURL points token requests at another OAuth endpoint (for testing).
func WithTokenURL(u string) Option {
	return func(igdb *IGDB) {
		igdb.tokenURL = u
	}
}

// WithClient replaces the rate limited HTTP client.
func WithClient(c *httpclient.Client) Option {
	return func(igdb *IGDB) {
		igdb.client = c
	}
}

// WithClock sets the clock used for token expiry.
func WithClock(clock clockwork.Clock) Option {
	return func(igdb *IGDB) {
		igdb.clock = clock
	}
}

func New(store *cache.Store, opts ...Option) *IGDB {
	igdb := &IGDB{
		client:   httpclient.NewRateLimitedClient(requestTimeout, requestsPerSecond, requestsPerSecond),
		store:    store,
		clock:    clockwork.NewRealClock(),
		baseURL:  DefaultBaseURL,
		tokenURL: DefaultTokenURL,
	}
	for _, opt := range opts {
		opt(igdb)
	}
	return igdb
}

func (*IGDB) Name() string {
	return scraper.ProviderIGDB
}

// clientCredentials returns the Twitch client id and secret. Older auth
// files store them as username and password.
func (igdb *IGDB) clientCredentials() (id, secret string) {
	creds := config.LookupProviderAuth(config.GetAuthCfg(), scraper.ProviderIGDB, igdb.baseURL)
	if creds == nil {
		return "", ""
	}
	if creds.ClientID != "" {
		return creds.ClientID, creds.ClientSecret
	}
	return creds.Username, creds.Password
}

func (igdb *IGDB) IsEnabled() bool {
	id, secret := igdb.clientCredentials()
	return id != "" && secret != ""
}

func (*IGDB) SupportsHashLookup() bool {
	return false
}

func (*IGDB) SupportsTitleLookup() bool {
	return true
}

func (*IGDB) IdentifyByHash(context.Context, []hasher.FileHash, string) (*scraper.Record, error) {
	return nil, nil //nolint:nilnil // no hash lookup
}

// IdentifyByTitle searches IGDB within one platform and picks the closest
// title or alternative name.
func (igdb *IGDB) IdentifyByTitle(ctx context.Context, term, platformID string) (*scraper.Record, error) {
	if term == "" || platformID == "" {
		return nil, nil //nolint:nilnil // nothing to search
	}
	if _, err := strconv.Atoi(platformID); err != nil {
		return nil, fmt.Errorf("invalid IGDB platform id %q: %w", platformID, err)
	}

	key := cache.Key(igdb.Name(), "title:"+platformID, strings.ToLower(term))
	return cache.Fetch(igdb.store, key, cache.DefaultTTL, cache.DefaultMissTTL, func() (*scraper.Record, error) {
		return igdb.searchTitle(ctx, term, platformID)
	})
}

// buildSearchQuery builds an IGDB query for searching games
func buildSearchQuery(term, platformID string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(term)
	return fmt.Sprintf(`fields %s; search "%s"; where platforms = (%s); limit %d;`,
		gameFields, escaped, platformID, searchLimit)
}

func (igdb *IGDB) searchTitle(ctx context.Context, term, platformID string) (*scraper.Record, error) {
	var games []Game
	if err := igdb.query(ctx, "games", buildSearchQuery(term, platformID), &games); err != nil {
		return nil, err
	}
	if len(games) == 0 {
		return nil, nil //nolint:nilnil // no results
	}

	titles := make([]string, 0, len(games))
	owners := make([]int, 0, len(games))
	for i := range games {
		titles = append(titles, games[i].Name)
		owners = append(owners, i)
		for _, alt := range games[i].AlternativeNames {
			titles = append(titles, alt.Name)
			owners = append(owners, i)
		}
	}

	match, ok := scraper.FindBestMatch(term, titles, scraper.DefaultMinSimilarity)
	if !ok {
		return nil, nil //nolint:nilnil // no close title
	}
	return convertGame(&games[owners[match.Index]])
}

// query posts an apicalypse query to an endpoint. An expired token is
// dropped so the next call fetches a new one.
func (igdb *IGDB) query(ctx context.Context, endpoint, body string, v any) error {
	clientID, _ := igdb.clientCredentials()
	accessToken, err := igdb.ensureValidToken(ctx)
	if err != nil {
		return err
	}

	log.Debug().Str("endpoint", endpoint).Str("query", body).Msg("IGDB request")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, igdb.baseURL+"/"+endpoint, strings.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Client-ID", clientID)
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "text/plain")
	req.Header.Set("Accept", "application/json")

	err = igdb.client.DoJSON(req, v)
	if errors.Is(err, httpclient.ErrUnauthorized) {
		igdb.mu.Lock()
		igdb.token = nil
		igdb.mu.Unlock()
	}
	if err != nil {
		return fmt.Errorf("igdb %s: %w", endpoint, err)
	}
	return nil
}

// ensureValidToken returns a cached OAuth2 token or requests a new one
func (igdb *IGDB) ensureValidToken(ctx context.Context) (string, error) {
	igdb.mu.Lock()
	defer igdb.mu.Unlock()

	now := igdb.clock.Now()
	if igdb.token != nil && now.Before(igdb.token.expiresAt) {
		return igdb.token.accessToken, nil
	}

	clientID, secret := igdb.clientCredentials()
	if clientID == "" || secret == "" {
		return "", scraper.ErrNotConfigured
	}

	params := url.Values{}
	params.Set("client_id", clientID)
	params.Set("client_secret", secret)
	params.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, igdb.tokenURL, strings.NewReader(params.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var tokenResp TokenResponse
	if err := igdb.client.DoJSON(req, &tokenResp); err != nil {
		return "", fmt.Errorf("failed to request IGDB token: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return "", errors.New("IGDB token response has no access token")
	}

	igdb.token = &token{
		accessToken: tokenResp.AccessToken,
		expiresAt:   now.Add(time.Duration(tokenResp.ExpiresIn)*time.Second - tokenExpiryMargin),
	}
	log.Info().Msg("obtained IGDB access token")

	return igdb.token.accessToken, nil
}

func imageLink(size, imageID string) string {
	if imageID == "" {
		return ""
	}
	return imageURL + size + "/" + imageID + ".jpg"
}

func convertGame(game *Game) (*scraper.Record, error) {
	raw, err := json.Marshal(game)
	if err != nil {
		return nil, fmt.Errorf("failed to encode igdb game: %w", err)
	}

	rec := &scraper.Record{
		Raw:         raw,
		Provider:    scraper.ProviderIGDB,
		ProviderID:  strconv.Itoa(game.ID),
		Title:       game.Name,
		Summary:     game.Summary,
		Rating:      game.TotalRating,
		RatingScale: ratingScale,
	}
	if game.Cover != nil {
		rec.CoverURL = imageLink("t_cover_big", game.Cover.ImageID)
	}
	if game.FirstReleaseDate > 0 {
		rec.ReleaseDate = time.Unix(game.FirstReleaseDate, 0).UTC().Format(time.DateOnly)
	}
	for _, s := range game.Screenshots {
		if link := imageLink("t_screenshot_big", s.ImageID); link != "" {
			rec.ScreenshotURLs = append(rec.ScreenshotURLs, link)
		}
	}
	for _, g := range game.Genres {
		rec.Genres = append(rec.Genres, g.Name)
	}
	for _, c := range game.InvolvedCompanies {
		if c.Company.Name != "" && (c.Developer || c.Publisher) {
			rec.Companies = append(rec.Companies, c.Company.Name)
		}
	}
	for _, n := range game.AlternativeNames {
		rec.AltNames = append(rec.AltNames, n.Name)
	}
	for _, r := range game.AgeRatings {
		board, ok := ageRatingBoards[r.Category]
		value, known := ageRatingValues[r.Rating]
		if ok && known {
			rec.AgeRatings = append(rec.AgeRatings, board+" "+value)
		}
	}

	return rec, nil
}
