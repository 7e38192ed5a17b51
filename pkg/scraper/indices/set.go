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
	"sync"

	"github.com/ZaparooProject/zaparoo-romscan/pkg/helpers/syncutil"
	"github.com/ZaparooProject/zaparoo-romscan/pkg/scraper/cache"
	"github.com/ZaparooProject/zaparoo-romscan/pkg/scraper/identifiers"
	"github.com/rs/zerolog/log"
)

// Set answers index lookups for the resolver. It never writes to the
// indices itself. An empty batch triggers one background refresh of its
// source per process.
type Set struct {
	store     *cache.Store
	refresher *Refresher
	triggered map[string]bool
	wg        sync.WaitGroup
	mu        syncutil.Mutex
}

func NewSet(store *cache.Store, refresher *Refresher) *Set {
	return &Set{
		store:     store,
		refresher: refresher,
		triggered: make(map[string]bool),
	}
}

// Translate returns the readable title for an identifier. It returns false
// when the identifier has no index, the index is empty or the key is not
// in it.
func (s *Set) Translate(_ context.Context, id identifiers.Identifier, platformSlug string) (string, bool) {
	batch, ok := BatchFor(id, platformSlug)
	if !ok || id.Key == "" {
		return "", false
	}

	n, err := s.store.BatchLen(batch)
	if err != nil {
		log.Warn().Err(err).Str("batch", batch).Msg("failed to read lookup index")
		return "", false
	}
	if n == 0 {
		s.triggerRefresh(batch)
		return "", false
	}

	title, found, err := s.store.BatchLookup(batch, id.Key)
	if err != nil {
		log.Warn().Err(err).Str("batch", batch).Msg("failed to read lookup index")
		return "", false
	}
	return title, found
}

func (s *Set) triggerRefresh(batch string) {
	if s.refresher == nil {
		return
	}
	source, ok := SourceOf(batch)
	if !ok {
		return
	}

	s.mu.Lock()
	if s.triggered[source] {
		s.mu.Unlock()
		return
	}
	s.triggered[source] = true
	s.mu.Unlock()

	log.Info().Str("source", source).Msg("lookup index empty, refreshing in background")

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		err := s.refresher.Refresh(context.Background(), source)
		if errors.Is(err, ErrNoSource) {
			log.Debug().Str("source", source).Msg("no index source configured")
			return
		}
		if err != nil {
			log.Warn().Err(err).Str("source", source).Msg("background index refresh failed")
		}
	}()
}

// Wait blocks until background refreshes started by Translate finish.
func (s *Set) Wait() {
	s.wg.Wait()
}
