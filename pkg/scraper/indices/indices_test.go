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

package indices

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ZaparooProject/zaparoo-romscan/pkg/scraper/cache"
	"github.com/ZaparooProject/zaparoo-romscan/pkg/scraper/identifiers"
	"github.com/ZaparooProject/zaparoo-romscan/pkg/shared/httpclient"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ps2CSV = "serial,title\nSLUS_200.62,Grand Theft Auto III\nSCES-50330,Jak and Daxter\n,missing\n"

const switchCSV = "title_id,product_code,name\n" +
	"0100000000010000,LA-H-AAACA,Super Mario Odyssey\n" +
	"01007EF00011E000,HAC-P-AAAAA,Zelda BOTW\n"

const mameCSV = "setname,name,year\nSF2,Street Fighter II,1991\npacman,Pac-Man,1980\n"

func openTestStore(t *testing.T) *cache.Store {
	t.Helper()
	s, err := cache.Open(filepath.Join(t.TempDir(), "cache.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func csvServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			hits.Add(1)
		}
		switch strings.TrimPrefix(r.URL.Path, "/") {
		case "ps2.csv":
			_, _ = w.Write([]byte(ps2CSV))
		case "switch.csv":
			_, _ = w.Write([]byte(switchCSV))
		case "mame.csv":
			_, _ = w.Write([]byte(mameCSV))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testClient() *httpclient.Client {
	return httpclient.NewClientWithTransport(5*time.Second, http.DefaultTransport, nil)
}

func TestBatchFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		platform string
		want     string
		id       identifiers.Identifier
		ok       bool
	}{
		{
			name:     "ps2 serial",
			id:       identifiers.Identifier{Kind: identifiers.KindSonySerial, Key: "SLUS-20062"},
			platform: "ps2",
			want:     BatchPS2Serials,
			ok:       true,
		},
		{
			name:     "opl name",
			id:       identifiers.Identifier{Kind: identifiers.KindPS2OPL, Key: "SLUS-20062"},
			platform: "ps2",
			want:     BatchPS2Serials,
			ok:       true,
		},
		{
			name:     "serial on unrelated platform",
			id:       identifiers.Identifier{Kind: identifiers.KindSonySerial, Key: "SLUS-20062"},
			platform: "snes",
		},
		{
			name:     "switch product resolved to title id",
			id:       identifiers.Identifier{Kind: identifiers.KindSwitchProductID, Key: "0100000000010000"},
			platform: "switch",
			want:     BatchSwitchTitles,
			ok:       true,
		},
		{
			name:     "switch product code",
			id:       identifiers.Identifier{Kind: identifiers.KindSwitchProductID, Key: "AAACA"},
			platform: "switch",
			want:     BatchSwitchProducts,
			ok:       true,
		},
		{
			name:     "mame",
			id:       identifiers.Identifier{Kind: identifiers.KindMAMEName, Key: "sf2"},
			platform: "arcade",
			want:     BatchMAME,
			ok:       true,
		},
		{
			name:     "generic",
			id:       identifiers.Identifier{Kind: identifiers.KindGeneric, Title: "Tetris"},
			platform: "gb",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := BatchFor(tt.id, tt.platform)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSourceOf(t *testing.T) {
	t.Parallel()

	src, ok := SourceOf(BatchSwitchProducts)
	require.True(t, ok)
	assert.Equal(t, SourceSwitch, src)

	_, ok = SourceOf("nope")
	assert.False(t, ok)
}

func TestParsers(t *testing.T) {
	t.Parallel()

	got, err := sources[SourcePS2].parse(strings.NewReader(ps2CSV))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"SLUS-20062": "Grand Theft Auto III",
		"SCES-50330": "Jak and Daxter",
	}, got[BatchPS2Serials])

	got, err = parseSwitch(strings.NewReader(switchCSV))
	require.NoError(t, err)
	assert.Equal(t, "Super Mario Odyssey", got[BatchSwitchTitles]["0100000000010000"])
	assert.Equal(t, "Zelda BOTW", got[BatchSwitchTitles]["01007EF00011E000"])
	assert.Equal(t, "Super Mario Odyssey", got[BatchSwitchProducts]["AAACA"])

	got, err = parseArcade(strings.NewReader(mameCSV))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"sf2": "Street Fighter II", "pacman": "Pac-Man"}, got[BatchMAME])
}

func TestRefresh(t *testing.T) {
	t.Parallel()

	srv := csvServer(t, nil)
	store := openTestStore(t)
	clock := clockwork.NewFakeClock()
	r := NewRefresher(testClient(), store, map[string]string{
		SourceSwitch: srv.URL + "/switch.csv",
		"bogus":      srv.URL + "/bogus.csv",
	}, clock)

	assert.Equal(t, []string{SourceSwitch}, r.Sources())

	require.NoError(t, r.Refresh(context.Background(), SourceSwitch))
	n, err := store.BatchLen(BatchSwitchTitles)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	n, err = store.BatchLen(BatchSwitchProducts)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	last, ok := r.LastRefresh(SourceSwitch)
	require.True(t, ok)
	assert.Equal(t, clock.Now(), last)

	err = r.Refresh(context.Background(), SourceMAME)
	require.ErrorIs(t, err, ErrNoSource)
}

func TestRefreshFailureKeepsOldIndex(t *testing.T) {
	t.Parallel()

	srv := csvServer(t, nil)
	store := openTestStore(t)
	require.NoError(t, store.ReplaceBatch(BatchMAME, map[string]string{"sf2": "Street Fighter II"}))

	r := NewRefresher(testClient(), store, map[string]string{
		SourceMAME: srv.URL + "/missing.csv",
	}, nil)

	err := r.Refresh(context.Background(), SourceMAME)
	require.ErrorIs(t, err, httpclient.ErrNotFound)

	title, ok, err := store.BatchLookup(BatchMAME, "sf2")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Street Fighter II", title)
}

func TestRefreshAll(t *testing.T) {
	t.Parallel()

	srv := csvServer(t, nil)
	store := openTestStore(t)
	r := NewRefresher(testClient(), store, map[string]string{
		SourcePS2:    srv.URL + "/ps2.csv",
		SourceSwitch: srv.URL + "/switch.csv",
		SourceMAME:   srv.URL + "/mame.csv",
	}, nil)

	require.NoError(t, r.RefreshAll(context.Background()))
	for _, b := range []string{BatchPS2Serials, BatchSwitchTitles, BatchSwitchProducts, BatchMAME} {
		n, err := store.BatchLen(b)
		require.NoError(t, err)
		assert.Positive(t, n, b)
	}
}

func TestTranslateTriggersOneRefresh(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := csvServer(t, &hits)
	store := openTestStore(t)
	r := NewRefresher(testClient(), store, map[string]string{
		SourcePS2: srv.URL + "/ps2.csv",
	}, nil)
	set := NewSet(store, r)

	id := identifiers.Identifier{Kind: identifiers.KindSonySerial, Key: "SLUS-20062"}

	// empty index: miss now, refresh in the background
	_, ok := set.Translate(context.Background(), id, "ps2")
	assert.False(t, ok)
	_, ok = set.Translate(context.Background(), id, "ps2")
	assert.False(t, ok)
	set.Wait()
	assert.Equal(t, int32(1), hits.Load())

	title, ok := set.Translate(context.Background(), id, "ps2")
	require.True(t, ok)
	assert.Equal(t, "Grand Theft Auto III", title)

	_, ok = set.Translate(context.Background(),
		identifiers.Identifier{Kind: identifiers.KindSonySerial, Key: "SLUS-99999"}, "ps2")
	assert.False(t, ok)
	assert.Equal(t, int32(1), hits.Load())
}

func TestTranslateWithoutSource(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	set := NewSet(store, NewRefresher(testClient(), store, nil, nil))

	_, ok := set.Translate(context.Background(),
		identifiers.Identifier{Kind: identifiers.KindMAMEName, Key: "sf2"}, "arcade")
	assert.False(t, ok)
	set.Wait()

	_, ok = set.Translate(context.Background(),
		identifiers.Identifier{Kind: identifiers.KindGeneric, Title: "Tetris"}, "gb")
	assert.False(t, ok)
}
