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

package cache

import (
	"time"

	"github.com/rs/zerolog/log"
)

// Fetch returns the cached value for key, or calls fetch and caches what it
// returns. A nil result from fetch is cached as a miss for missTTL. Errors
// from fetch are never cached. A nil store always calls fetch.
func Fetch[T any](s *Store, key string, ttl, missTTL time.Duration, fetch func() (*T, error)) (*T, error) {
	if s == nil {
		return fetch()
	}

	var cached T
	status, err := s.Get(key, &cached)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache lookup failed")
	}
	switch status {
	case Hit:
		return &cached, nil
	case Miss:
		return nil, nil //nolint:nilnil // cached miss
	case Absent:
	}

	v, err := fetch()
	if err != nil {
		return nil, err
	}

	if v == nil {
		err = s.SetMiss(key, missTTL)
	} else {
		err = s.Set(key, v, ttl)
	}
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("failed to write cache entry")
	}
	return v, nil
}
