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

// Package tags classifies the parenthesized and bracketed annotations found
// in ROM filenames (regions, revision, languages and free-form extras) and
// strips them to recover the base title.
package tags

import (
	"regexp"
	"strings"
)

var reSpaces = regexp.MustCompile(`\s+`)

// Result is the classification of every tag group in a filename.
type Result struct {
	Revision  string   `json:"revision"`
	Regions   []string `json:"regions"`
	Languages []string `json:"languages"`
	ExtraTags []string `json:"extraTags"`
}

// NormalizeTag lowercases a tag, trims it and collapses inner whitespace so
// it can be looked up in the alias tables.
func NormalizeTag(s string) string {
	s = strings.TrimSpace(s)
	s = reSpaces.ReplaceAllString(s, " ")
	return strings.ToLower(s)
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}
