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

// Package slugs normalizes game titles into provider search terms and
// comparison slugs.
package slugs

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/ZaparooProject/zaparoo-romscan/pkg/database/tags"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var reMultiSpace = regexp.MustCompile(`\s+`)

// asciiReplacements covers letters that do not decompose into an ASCII base
// plus combining marks.
var asciiReplacements = strings.NewReplacer(
	"ß", "ss",
	"æ", "ae", "Æ", "AE",
	"œ", "oe", "Œ", "OE",
	"ø", "o", "Ø", "O",
	"ł", "l", "Ł", "L",
	"đ", "d", "Đ", "D",
	"þ", "th", "Þ", "TH",
	"ð", "d", "Ð", "D",
	"ı", "i",
	"’", "'", "‘", "'",
	"“", "\"", "”", "\"",
	"–", "-", "—", "-",
	"…", "...",
	"™", "", "®", "", "©", "",
)

// removeDiacritics strips diacritical marks from text.
func removeDiacritics(s string) string {
	t := transform.Chain(
		norm.NFD,
		runes.Remove(runes.In(unicode.Mn)),
		norm.NFC,
	)
	if normalized, _, err := transform.String(t, s); err == nil {
		return normalized
	}
	return s
}

// FoldToASCII transliterates Latin text to ASCII and drops any rune that has
// no ASCII form. Titles in other scripts fold to an empty string, so callers
// should fall back to the original when that happens.
func FoldToASCII(s string) string {
	s = asciiReplacements.Replace(s)
	s = removeDiacritics(s)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < unicode.MaxASCII {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizeSearchTerm turns a filename or title into the term sent to title
// lookups: tags stripped, underscores to spaces, leading articles and
// trailing ", The" style suffixes dropped, whitespace collapsed and Unicode
// folded to ASCII.
func NormalizeSearchTerm(name string) string {
	s := tags.StripTags(name)
	s = strings.ReplaceAll(s, "_", " ")

	if folded := FoldToASCII(s); strings.TrimSpace(folded) != "" {
		s = folded
	}

	s = reMultiSpace.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	s = stripTrailingArticle(s)
	s = stripLeadingArticle(s)

	return strings.TrimSpace(s)
}
