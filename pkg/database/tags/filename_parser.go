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
	"regexp"
	"strings"
)

var reRevision = regexp.MustCompile(
	`(?i)^rev(?:ision)?(?:[\s\-_]+([a-z0-9][a-z0-9.\-]*)|([0-9][0-9.\-]*))$`,
)

// trailingSeparators are trimmed from the end of a title once its tags are
// gone. Periods are not included: "Super Mario Bros." keeps its dot.
const trailingSeparators = " \t_-,"

// BracketType is the kind of bracket a tag was found in.
type BracketType uint8

const (
	// BracketTypeParen covers () and {} groups: region, language, revision
	// and development status.
	BracketTypeParen BracketType = iota
	// BracketTypeSquare covers [] groups, which always hold dump info such
	// as [!], [b] or [h].
	BracketTypeSquare
)

type rawTag struct {
	Value   string
	Bracket BracketType
}

// extractTags uses a manual state machine to pull every (), [] and {} group
// out of a filename, in order of appearance. Empty groups are dropped.
func extractTags(filename string) []rawTag {
	const (
		stateOutside = iota
		stateInParen
		stateInBracket
		stateInBrace
	)

	state := stateOutside
	tagStart := 0
	found := make([]rawTag, 0, 8)

	closeGroup := func(i int, bracket BracketType) {
		tag := strings.TrimSpace(filename[tagStart:i])
		if tag != "" {
			found = append(found, rawTag{Value: tag, Bracket: bracket})
		}
		state = stateOutside
	}

	for i := range len(filename) {
		char := filename[i]

		switch state {
		case stateOutside:
			switch char {
			case '(':
				state = stateInParen
				tagStart = i + 1
			case '[':
				state = stateInBracket
				tagStart = i + 1
			case '{':
				state = stateInBrace
				tagStart = i + 1
			}
		case stateInParen:
			if char == ')' {
				closeGroup(i, BracketTypeParen)
			}
		case stateInBracket:
			if char == ']' {
				closeGroup(i, BracketTypeSquare)
			}
		case stateInBrace:
			if char == '}' {
				closeGroup(i, BracketTypeParen)
			}
		}
	}

	return found
}

// parseRevision returns the revision value of a "Rev A"/"rev-1.2" style tag.
func parseRevision(tag string) (string, bool) {
	m := reRevision.FindStringSubmatch(strings.TrimSpace(tag))
	if m == nil {
		return "", false
	}
	if m[1] != "" {
		return m[1], true
	}
	return m[2], true
}

// splitList splits a tag on commas or plus signs, returning nil when the tag
// is not a list.
func splitList(tag string) []string {
	var parts []string
	switch {
	case strings.Contains(tag, ","):
		parts = strings.Split(tag, ",")
	case strings.Contains(tag, "+"):
		parts = strings.Split(tag, "+")
	default:
		return nil
	}

	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.Trim(strings.TrimSpace(p), "-")
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// classifyList handles "Japan, USA" and "En,Ja" style groups. A list made
// only of language codes is read as languages first, because several
// two-letter language codes double as GoodTools region codes ("Nl", "Ch").
// Returns false if any element is neither a region nor a language.
func classifyList(parts []string, res *Result) bool {
	if len(parts) < 2 {
		return false
	}

	langs := make([]string, 0, len(parts))
	for _, p := range parts {
		lang, ok := CanonicalLanguage(p)
		if !ok {
			break
		}
		langs = append(langs, lang)
	}
	if len(langs) == len(parts) {
		for _, l := range langs {
			res.Languages = appendUnique(res.Languages, l)
		}
		return true
	}

	regions := make([]string, 0, len(parts))
	var mixedLangs []string
	for _, p := range parts {
		if region, ok := CanonicalRegion(p); ok {
			regions = append(regions, region)
			continue
		}
		if lang, ok := CanonicalLanguage(p); ok {
			mixedLangs = append(mixedLangs, lang)
			continue
		}
		return false
	}

	for _, r := range regions {
		res.Regions = appendUnique(res.Regions, r)
	}
	for _, l := range mixedLangs {
		res.Languages = appendUnique(res.Languages, l)
	}
	return true
}

// ParseTags classifies every tag group in a filename. It is pure and
// deterministic. The first revision tag wins; unrecognized groups are kept
// verbatim (without their brackets) as extra tags. Square bracket groups
// are dump flags and always go to the extra tags.
func ParseTags(filename string) Result {
	res := Result{
		Regions:   make([]string, 0),
		Languages: make([]string, 0),
		ExtraTags: make([]string, 0),
	}

	for _, raw := range extractTags(filename) {
		tag := raw.Value
		if raw.Bracket == BracketTypeSquare {
			res.ExtraTags = append(res.ExtraTags, tag)
			continue
		}

		if rev, ok := parseRevision(tag); ok {
			if res.Revision == "" {
				res.Revision = rev
			}
			continue
		}

		if region, ok := CanonicalRegion(tag); ok {
			res.Regions = appendUnique(res.Regions, region)
			continue
		}

		if lang, ok := CanonicalLanguage(tag); ok {
			res.Languages = appendUnique(res.Languages, lang)
			continue
		}

		if parts := splitList(tag); parts != nil && classifyList(parts, &res) {
			continue
		}

		res.ExtraTags = append(res.ExtraTags, tag)
	}

	return res
}

// StripTags removes every tag group from a name, collapses whitespace and
// trims trailing separators. An unclosed group is left in place.
func StripTags(name string) string {
	var b strings.Builder
	b.Grow(len(name))

	depthOpen := byte(0)
	groupStart := 0
	for i := range len(name) {
		char := name[i]
		if depthOpen != 0 {
			if char == depthOpen {
				depthOpen = 0
			}
			continue
		}
		switch char {
		case '(':
			depthOpen = ')'
			groupStart = i
		case '[':
			depthOpen = ']'
			groupStart = i
		case '{':
			depthOpen = '}'
			groupStart = i
		default:
			b.WriteByte(char)
		}
	}
	if depthOpen != 0 {
		b.WriteString(name[groupStart:])
	}

	title := reSpaces.ReplaceAllString(b.String(), " ")
	title = strings.TrimSpace(title)
	return strings.TrimRight(title, trailingSeparators)
}

func isExtensionToken(s string) bool {
	if s == "" || len(s) > 8 {
		return false
	}
	for i := range len(s) {
		c := s[i]
		isAlnum := (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
		if !isAlnum {
			return false
		}
	}
	return true
}

// FileExtension returns the extension of a filename without the leading dot.
// Known multi-segment extensions are matched first. A trailing segment that
// could not be an extension (it has spaces, brackets or is too long) means
// the name has no extension, so periods inside titles such as "U.S.A." or
// "Super Mario Bros. (USA)" are never treated as the boundary.
func FileExtension(name string) string {
	lower := strings.ToLower(name)
	for _, ext := range multiSegmentExtensions {
		if len(name) > len(ext)+1 && strings.HasSuffix(lower, "."+ext) {
			return name[len(name)-len(ext):]
		}
	}

	idx := strings.LastIndexByte(name, '.')
	if idx <= 0 || idx == len(name)-1 {
		return ""
	}
	ext := name[idx+1:]
	if !isExtensionToken(ext) {
		return ""
	}
	return ext
}

// FileNameWithNoExtension returns the name without its extension.
func FileNameWithNoExtension(name string) string {
	ext := FileExtension(name)
	if ext == "" {
		return name
	}
	return name[:len(name)-len(ext)-1]
}

// FileNameWithNoTags returns the base title of a file: extension and every
// tag group removed. It is used as display name and default search term.
func FileNameWithNoTags(name string) string {
	return StripTags(FileNameWithNoExtension(name))
}
