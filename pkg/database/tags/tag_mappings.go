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

// regionsByAlias maps lowercased region aliases found in filename tags to
// canonical region names. Short codes follow the GoodTools convention and
// full names follow No-Intro.
var regionsByAlias = map[string]string{
	"a":             "Australia",
	"as":            "Asia",
	"b":             "Brazil",
	"c":             "Canada",
	"ch":            "China",
	"e":             "Europe",
	"f":             "France",
	"fn":            "Finland",
	"g":             "Germany",
	"gr":            "Greece",
	"h":             "Holland",
	"hk":            "Hong Kong",
	"i":             "Italy",
	"j":             "Japan",
	"k":             "Korea",
	"nl":            "Netherlands",
	"no":            "Norway",
	"pd":            "Public Domain",
	"r":             "Russia",
	"s":             "Spain",
	"sw":            "Sweden",
	"t":             "Taiwan",
	"u":             "USA",
	"uk":            "England",
	"unk":           "Unknown",
	"unl":           "Unlicensed",
	"w":             "World",
	"jue":           "World",
	"ue":            "World",
	"australia":     "Australia",
	"asia":          "Asia",
	"brazil":        "Brazil",
	"canada":        "Canada",
	"china":         "China",
	"europe":        "Europe",
	"eur":           "Europe",
	"france":        "France",
	"finland":       "Finland",
	"germany":       "Germany",
	"greece":        "Greece",
	"holland":       "Holland",
	"hong kong":     "Hong Kong",
	"italy":         "Italy",
	"japan":         "Japan",
	"jpn":           "Japan",
	"korea":         "Korea",
	"netherlands":   "Netherlands",
	"norway":        "Norway",
	"public domain": "Public Domain",
	"russia":        "Russia",
	"spain":         "Spain",
	"sweden":        "Sweden",
	"taiwan":        "Taiwan",
	"usa":           "USA",
	"us":            "USA",
	"england":       "England",
	"unknown":       "Unknown",
	"unlicensed":    "Unlicensed",
	"world":         "World",
}

// languagesByAlias maps lowercased language codes and names to canonical
// language names.
var languagesByAlias = map[string]string{
	"ar":         "Arabic",
	"da":         "Danish",
	"de":         "German",
	"el":         "Greek",
	"en":         "English",
	"es":         "Spanish",
	"fi":         "Finnish",
	"fr":         "French",
	"it":         "Italian",
	"ja":         "Japanese",
	"ko":         "Korean",
	"nl":         "Dutch",
	"pl":         "Polish",
	"pt":         "Portuguese",
	"ru":         "Russian",
	"sv":         "Swedish",
	"zh":         "Chinese",
	"nolang":     "No Language",
	"arabic":     "Arabic",
	"danish":     "Danish",
	"german":     "German",
	"greek":      "Greek",
	"english":    "English",
	"spanish":    "Spanish",
	"finnish":    "Finnish",
	"french":     "French",
	"italian":    "Italian",
	"japanese":   "Japanese",
	"korean":     "Korean",
	"dutch":      "Dutch",
	"norwegian":  "Norwegian",
	"polish":     "Polish",
	"portuguese": "Portuguese",
	"russian":    "Russian",
	"swedish":    "Swedish",
	"chinese":    "Chinese",
}

// multiSegmentExtensions are extensions made of more than one dot-separated
// segment. They are matched before the single trailing segment so
// "Game.nkit.iso" keeps "nkit.iso" together.
var multiSegmentExtensions = []string{
	"tar.gz",
	"tar.bz2",
	"tar.xz",
	"tar.zst",
	"nkit.iso",
	"nkit.gcz",
	"nkit.rvz",
	"p8.png",
	"ps3.iso",
	"wua.zip",
}

// RegionAliases returns every region alias the parser recognizes.
func RegionAliases() []string {
	out := make([]string, 0, len(regionsByAlias))
	for k := range regionsByAlias {
		out = append(out, k)
	}
	return out
}

// CanonicalRegion returns the canonical region name for an alias.
func CanonicalRegion(alias string) (string, bool) {
	v, ok := regionsByAlias[NormalizeTag(alias)]
	return v, ok
}

// CanonicalLanguage returns the canonical language name for a code or name.
func CanonicalLanguage(alias string) (string, bool) {
	v, ok := languagesByAlias[NormalizeTag(alias)]
	return v, ok
}
