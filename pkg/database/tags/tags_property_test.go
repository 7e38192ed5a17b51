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

package tags

import (
	"strings"
	"testing"

	"pgregory.net/rapid"
)

func knownTagGen() *rapid.Generator[string] {
	pool := make([]string, 0, len(regionsByAlias)+len(languagesByAlias)+8)
	for alias := range regionsByAlias {
		pool = append(pool, alias)
	}
	for alias := range languagesByAlias {
		pool = append(pool, alias)
	}
	pool = append(pool, "Rev A", "Rev 1", "rev-1.2", "Beta", "Proto", "!", "Part 2", "En,Ja")
	return rapid.SampledFrom(pool)
}

// TestPropertyStripTagsRecoversTitle verifies that any combination of known
// tags appended to "Title" strips back to exactly "Title".
func TestPropertyStripTagsRecoversTitle(t *testing.T) {
	t.Parallel()
	rapid.Check(t, func(t *rapid.T) {
		tagList := rapid.SliceOfN(knownTagGen(), 0, 6).Draw(t, "tags")
		brackets := rapid.SliceOfN(rapid.SampledFrom([]string{"()", "[]", "{}"}), len(tagList), len(tagList)).
			Draw(t, "brackets")

		var b strings.Builder
		b.WriteString("Title")
		for i, tag := range tagList {
			b.WriteString(" ")
			b.WriteByte(brackets[i][0])
			b.WriteString(tag)
			b.WriteByte(brackets[i][1])
		}
		name := b.String()

		if got := StripTags(name); got != "Title" {
			t.Fatalf("StripTags(%q) = %q", name, got)
		}
		if got := FileNameWithNoTags(name + ".bin"); got != "Title" {
			t.Fatalf("FileNameWithNoTags(%q) = %q", name+".bin", got)
		}
	})
}

// TestPropertyParseTagsDeterministic verifies repeated parses agree.
func TestPropertyParseTagsDeterministic(t *testing.T) {
	t.Parallel()
	rapid.Check(t, func(t *rapid.T) {
		input := rapid.String().Draw(t, "input")
		a := ParseTags(input)
		b := ParseTags(input)
		if a.Revision != b.Revision || len(a.Regions) != len(b.Regions) ||
			len(a.Languages) != len(b.Languages) || len(a.ExtraTags) != len(b.ExtraTags) {
			t.Fatalf("ParseTags not deterministic for %q", input)
		}
	})
}

// TestPropertySquareBracketsAreDumpFlags verifies that a known tag in
// square brackets only ever lands in the extra tags.
func TestPropertySquareBracketsAreDumpFlags(t *testing.T) {
	t.Parallel()
	rapid.Check(t, func(t *rapid.T) {
		tag := knownTagGen().Draw(t, "tag")
		res := ParseTags("Title [" + tag + "].bin")
		if len(res.Regions) != 0 || len(res.Languages) != 0 || res.Revision != "" {
			t.Fatalf("ParseTags classified [%s] as %+v", tag, res)
		}
		if len(res.ExtraTags) != 1 || res.ExtraTags[0] != tag {
			t.Fatalf("ParseTags extra tags for [%s] = %v", tag, res.ExtraTags)
		}
	})
}
