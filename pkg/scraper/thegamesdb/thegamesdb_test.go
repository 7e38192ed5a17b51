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

package thegamesdb

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ZaparooProject/zaparoo-romscan/pkg/config"
	"github.com/ZaparooProject/zaparoo-romscan/pkg/scraper"
	"github.com/ZaparooProject/zaparoo-romscan/pkg/scraper/cache"
	"github.com/ZaparooProject/zaparoo-romscan/pkg/shared/httpclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testCreds = map[string]config.CredentialEntry{
	scraper.ProviderTheGamesDB: {APIKey: "tgdbkey123456"},
}

func TestMain(m *testing.M) {
	config.SetAuthCfg(testCreds)
	os.Exit(m.Run())
}

const searchResponse = `{
	"code": 200,
	"status": "Success",
	"data": {
		"count": 2,
		"games": [
			{"id": 1, "game_title": "Sonic Spinball", "platform": 18},
			{
				"id": 2,
				"game_title": "Sonic the Hedgehog",
				"release_date": "1991-06-23",
				"overview": "Gotta go fast",
				"rating": "E - Everyone",
				"platform": 18,
				"genres": [1, 15],
				"alternates": ["Sonic 1"]
			}
		]
	},
	"include": {
		"boxart": {
			"base_url": {"original": "https://cdn.example/original/"},
			"data": {
				"2": [
					{"id": 10, "type": "boxart", "side": "back", "filename": "boxart/back/2-1.jpg"},
					{"id": 11, "type": "boxart", "side": "front", "filename": "boxart/front/2-1.jpg"},
					{"id": 12, "type": "screenshot", "filename": "screenshots/2-1.jpg"}
				]
			}
		}
	}
}`

const genresResponse = `{"code": 200, "data": {"genres": {
	"1": {"id": 1, "name": "Action"},
	"15": {"id": 15, "name": "Platform"}
}}}`

func newTestProvider(t *testing.T, genreCalls *atomic.Int32) *TheGamesDB {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "tgdbkey123456", r.URL.Query().Get("apikey"))
		switch r.URL.Path {
		case "/Games/ByGameName":
			assert.Equal(t, "18", r.URL.Query().Get("filter[platform]"))
			_, _ = w.Write([]byte(searchResponse))
		case "/Genres":
			if genreCalls != nil {
				genreCalls.Add(1)
			}
			_, _ = w.Write([]byte(genresResponse))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	store, err := cache.Open(filepath.Join(t.TempDir(), "cache.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return New(store,
		WithBaseURL(srv.URL),
		WithClient(httpclient.NewClientWithTransport(5*time.Second, http.DefaultTransport, nil)),
	)
}

func TestCapabilities(t *testing.T) {
	t.Parallel()

	tgdb := New(nil)
	var _ scraper.Provider = tgdb

	assert.Equal(t, scraper.ProviderTheGamesDB, tgdb.Name())
	assert.False(t, tgdb.SupportsHashLookup())
	assert.True(t, tgdb.SupportsTitleLookup())
	assert.True(t, tgdb.IsEnabled())

	rec, err := tgdb.IdentifyByHash(context.Background(), nil, "18")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestIdentifyByTitle(t *testing.T) {
	t.Parallel()

	var genreCalls atomic.Int32
	tgdb := newTestProvider(t, &genreCalls)

	rec, err := tgdb.IdentifyByTitle(context.Background(), "sonic the hedgehog", "18")
	require.NoError(t, err)
	require.NotNil(t, rec)

	assert.Equal(t, "2", rec.ProviderID)
	assert.Equal(t, "Sonic the Hedgehog", rec.Title)
	assert.Equal(t, "Gotta go fast", rec.Summary)
	assert.Equal(t, "1991-06-23", rec.ReleaseDate)
	assert.Equal(t, "https://cdn.example/original/boxart/front/2-1.jpg", rec.CoverURL)
	assert.Equal(t, []string{"https://cdn.example/original/screenshots/2-1.jpg"}, rec.ScreenshotURLs)
	assert.Equal(t, []string{"Action", "Platform"}, rec.Genres)
	assert.Equal(t, []string{"Sonic 1"}, rec.AltNames)
	assert.Equal(t, []string{"E - Everyone"}, rec.AgeRatings)
	_, rated := scraper.NormalizedRating(rec)
	assert.False(t, rated)

	// alternate names match too, genres come from the cache
	rec, err = tgdb.IdentifyByTitle(context.Background(), "sonic 1", "18")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "2", rec.ProviderID)
	assert.Equal(t, int32(1), genreCalls.Load())
}

func TestIdentifyByTitleNoMatch(t *testing.T) {
	t.Parallel()

	tgdb := newTestProvider(t, nil)
	rec, err := tgdb.IdentifyByTitle(context.Background(), "columns", "18")
	require.NoError(t, err)
	assert.Nil(t, rec)

	rec, err = tgdb.IdentifyByTitle(context.Background(), "sonic the hedgehog", "")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

//nolint:paralleltest // modifies global auth config
func TestNotConfigured(t *testing.T) {
	config.SetAuthCfg(map[string]config.CredentialEntry{})
	t.Cleanup(func() { config.SetAuthCfg(testCreds) })

	tgdb := New(nil)
	assert.False(t, tgdb.IsEnabled())
	_, err := tgdb.IdentifyByTitle(context.Background(), "tetris", "1")
	require.ErrorIs(t, err, scraper.ErrNotConfigured)
}
