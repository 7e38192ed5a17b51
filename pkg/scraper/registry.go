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
	"strings"

	"github.com/rs/zerolog/log"
)

// Registry holds every known provider by name.
type Registry struct {
	providers map[string]Provider
}

func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		r.providers[strings.ToLower(p.Name())] = p
	}
	return r
}

func (r *Registry) Get(name string) (Provider, bool) {
	p, ok := r.providers[strings.ToLower(name)]
	return p, ok
}

// Ordered returns the enabled providers in the configured priority order.
// A non-empty filter further limits the list to the named providers, but
// never changes the order.
func (r *Registry) Ordered(order, filter []string) []Provider {
	allowed := make(map[string]struct{}, len(filter))
	for _, name := range filter {
		allowed[strings.ToLower(name)] = struct{}{}
	}

	out := make([]Provider, 0, len(order))
	seen := make(map[string]struct{}, len(order))
	for _, name := range order {
		key := strings.ToLower(name)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		if len(allowed) > 0 {
			if _, ok := allowed[key]; !ok {
				continue
			}
		}

		p, ok := r.providers[key]
		if !ok {
			log.Warn().Str("provider", name).Msg("unknown metadata provider in config")
			continue
		}
		if !p.IsEnabled() {
			log.Debug().Str("provider", name).Msg("metadata provider disabled, skipping")
			continue
		}
		out = append(out, p)
	}
	return out
}
