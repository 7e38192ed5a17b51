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

package slugs

import (
	"regexp"
	"strings"
)

var (
	reTrailingArticle = regexp.MustCompile(`(?i),\s*(the|a|an)\b`)
	reNonAlnum        = regexp.MustCompile(`[^a-z0-9]+`)
)

func stripLeadingArticle(s string) string {
	s = strings.TrimSpace(s)
	lower := strings.ToLower(s)

	for _, article := range []string{"the ", "an ", "a "} {
		if strings.HasPrefix(lower, article) && len(s) > len(article) {
			return strings.TrimSpace(s[len(article):])
		}
	}

	return s
}

// stripTrailingArticle removes the No-Intro style moved article: both
// "Legend of Zelda, The" and "Legend of Zelda, The - A Link to the Past".
func stripTrailingArticle(s string) string {
	return strings.TrimSpace(reTrailingArticle.ReplaceAllString(s, ""))
}

// Slugify reduces a title to lowercase ASCII words joined by single dashes.
// Used to compare provider titles against search terms.
func Slugify(s string) string {
	s = strings.ToLower(FoldToASCII(s))
	s = reNonAlnum.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}
