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
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/ZaparooProject/zaparoo-romscan/pkg/helpers"
	"github.com/ZaparooProject/zaparoo-romscan/pkg/helpers/syncutil"
	"github.com/ZaparooProject/zaparoo-romscan/pkg/scraper/cache"
	"github.com/ZaparooProject/zaparoo-romscan/pkg/shared/httpclient"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const maxParallelFetches = 3

var ErrNoSource = errors.New("no source configured for index")

// Refresher downloads index sources and swaps them into the cache.
type Refresher struct {
	client      *httpclient.Client
	store       *cache.Store
	clock       clockwork.Clock
	sources     map[string]string
	lastRefresh map[string]time.Time
	mu          syncutil.Mutex
}

// NewRefresher creates a refresher for the given source URLs keyed by
// source name. Unknown source names are ignored.
func NewRefresher(
	client *httpclient.Client,
	store *cache.Store,
	sourceURLs map[string]string,
	clock clockwork.Clock,
) *Refresher {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	urls := make(map[string]string, len(sourceURLs))
	for name, u := range sourceURLs {
		if !KnownSource(name) {
			log.Warn().Str("source", name).Msg("ignoring unknown index source")
			continue
		}
		if u != "" {
			urls[name] = u
		}
	}
	return &Refresher{
		client:      client,
		store:       store,
		clock:       clock,
		sources:     urls,
		lastRefresh: make(map[string]time.Time),
	}
}

// Sources returns the configured source names, sorted.
func (r *Refresher) Sources() []string {
	names := make([]string, 0, len(r.sources))
	for name := range r.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LastRefresh returns when a source was last refreshed successfully.
func (r *Refresher) LastRefresh(source string) (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.lastRefresh[source]
	return t, ok
}

// Refresh downloads one source and replaces every batch it feeds.
func (r *Refresher) Refresh(ctx context.Context, source string) error {
	def, ok := sources[source]
	if !ok {
		return fmt.Errorf("unknown index source: %s", source)
	}
	u, ok := r.sources[source]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoSource, source)
	}

	log.Debug().Str("source", source).Str("url", helpers.MaskURL(u)).Msg("fetching lookup index")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create index request: %w", err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch index %s: %w", source, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("failed to close response body")
		}
	}()
	if err := httpclient.CheckStatus(resp); err != nil {
		return fmt.Errorf("failed to fetch index %s: %w", source, err)
	}

	batches, err := def.parse(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to parse index %s: %w", source, err)
	}

	for _, name := range def.batches {
		values := batches[name]
		if err := r.store.ReplaceBatch(name, values); err != nil {
			return err
		}
		log.Info().
			Str("source", source).
			Str("batch", name).
			Int("entries", len(values)).
			Msg("refreshed lookup index")
	}

	r.mu.Lock()
	r.lastRefresh[source] = r.clock.Now()
	r.mu.Unlock()

	return nil
}

// RefreshAll refreshes every configured source, a few at a time. It
// returns the first error but lets the other sources finish.
func (r *Refresher) RefreshAll(ctx context.Context) error {
	var g errgroup.Group
	g.SetLimit(maxParallelFetches)

	for _, name := range r.Sources() {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("index refresh cancelled: %w", err)
			}
			err := r.Refresh(ctx, name)
			if err != nil {
				log.Warn().Err(err).Str("source", name).Msg("index refresh failed")
			}
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("index refresh failed: %w", err)
	}
	return nil
}

// Start refreshes every source on each tick of interval until ctx is
// done. The first refresh happens after one interval.
func (r *Refresher) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 || len(r.sources) == 0 {
		return
	}
	ticker := r.clock.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.Chan():
				if err := r.RefreshAll(ctx); err != nil {
					log.Warn().Err(err).Msg("scheduled index refresh failed")
				}
			}
		}
	}()
}
