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
	"strconv"
	"strings"
)

// PlatformIDs holds the platform IDs for each provider. Zero means the
// provider has no such platform.
type PlatformIDs struct {
	ScreenScraper int
	IGDB          int
	TheGamesDB    int
}

type PlatformDefinition struct {
	Name string
	IDs  PlatformIDs
}

// PlatformDefinitions maps canonical platform slugs to display names and
// provider platform IDs.
var PlatformDefinitions = map[string]PlatformDefinition{
	// Nintendo
	"nes":     {Name: "Nintendo Entertainment System", IDs: PlatformIDs{ScreenScraper: 3, IGDB: 18, TheGamesDB: 7}},
	"snes":    {Name: "Super Nintendo Entertainment System", IDs: PlatformIDs{ScreenScraper: 4, IGDB: 19, TheGamesDB: 6}},
	"n64":     {Name: "Nintendo 64", IDs: PlatformIDs{ScreenScraper: 14, IGDB: 4, TheGamesDB: 3}},
	"gb":      {Name: "Game Boy", IDs: PlatformIDs{ScreenScraper: 9, IGDB: 33, TheGamesDB: 4}},
	"gbc":     {Name: "Game Boy Color", IDs: PlatformIDs{ScreenScraper: 10, IGDB: 22, TheGamesDB: 41}},
	"gba":     {Name: "Game Boy Advance", IDs: PlatformIDs{ScreenScraper: 12, IGDB: 24, TheGamesDB: 5}},
	"nds":     {Name: "Nintendo DS", IDs: PlatformIDs{ScreenScraper: 15, IGDB: 20, TheGamesDB: 8}},
	"3ds":     {Name: "Nintendo 3DS", IDs: PlatformIDs{ScreenScraper: 17, IGDB: 37, TheGamesDB: 4912}},
	"ngc":     {Name: "Nintendo GameCube", IDs: PlatformIDs{ScreenScraper: 13, IGDB: 21, TheGamesDB: 2}},
	"wii":     {Name: "Wii", IDs: PlatformIDs{ScreenScraper: 16, IGDB: 5, TheGamesDB: 9}},
	"wiiu":    {Name: "Wii U", IDs: PlatformIDs{ScreenScraper: 18, IGDB: 41, TheGamesDB: 38}},
	"switch":  {Name: "Nintendo Switch", IDs: PlatformIDs{ScreenScraper: 225, IGDB: 130, TheGamesDB: 4971}},
	"virtualboy": {
		Name: "Virtual Boy", IDs: PlatformIDs{ScreenScraper: 11, IGDB: 87, TheGamesDB: 4918},
	},

	// Sony
	"psx":    {Name: "PlayStation", IDs: PlatformIDs{ScreenScraper: 57, IGDB: 7, TheGamesDB: 10}},
	"ps2":    {Name: "PlayStation 2", IDs: PlatformIDs{ScreenScraper: 58, IGDB: 8, TheGamesDB: 11}},
	"ps3":    {Name: "PlayStation 3", IDs: PlatformIDs{ScreenScraper: 59, IGDB: 9, TheGamesDB: 12}},
	"psp":    {Name: "PlayStation Portable", IDs: PlatformIDs{ScreenScraper: 61, IGDB: 38, TheGamesDB: 13}},
	"psvita": {Name: "PlayStation Vita", IDs: PlatformIDs{ScreenScraper: 62, IGDB: 46, TheGamesDB: 39}},

	// Microsoft
	"xbox":    {Name: "Xbox", IDs: PlatformIDs{ScreenScraper: 32, IGDB: 11, TheGamesDB: 14}},
	"xbox360": {Name: "Xbox 360", IDs: PlatformIDs{ScreenScraper: 33, IGDB: 12, TheGamesDB: 15}},

	// Sega
	"genesis":  {Name: "Sega Mega Drive/Genesis", IDs: PlatformIDs{ScreenScraper: 1, IGDB: 29, TheGamesDB: 18}},
	"sms":      {Name: "Sega Master System", IDs: PlatformIDs{ScreenScraper: 2, IGDB: 64, TheGamesDB: 35}},
	"gamegear": {Name: "Sega Game Gear", IDs: PlatformIDs{ScreenScraper: 21, IGDB: 35, TheGamesDB: 20}},
	"segacd":   {Name: "Sega CD", IDs: PlatformIDs{ScreenScraper: 20, IGDB: 78, TheGamesDB: 21}},
	"sega32":   {Name: "Sega 32X", IDs: PlatformIDs{ScreenScraper: 19, IGDB: 30, TheGamesDB: 33}},
	"saturn":   {Name: "Sega Saturn", IDs: PlatformIDs{ScreenScraper: 22, IGDB: 32, TheGamesDB: 17}},
	"dc":       {Name: "Dreamcast", IDs: PlatformIDs{ScreenScraper: 23, IGDB: 23, TheGamesDB: 16}},
	"sg1000":   {Name: "SG-1000", IDs: PlatformIDs{ScreenScraper: 109, IGDB: 84, TheGamesDB: 4949}},

	// Atari
	"atari2600": {Name: "Atari 2600", IDs: PlatformIDs{ScreenScraper: 26, IGDB: 59, TheGamesDB: 22}},
	"atari5200": {Name: "Atari 5200", IDs: PlatformIDs{ScreenScraper: 40, IGDB: 66, TheGamesDB: 26}},
	"atari7800": {Name: "Atari 7800", IDs: PlatformIDs{ScreenScraper: 41, IGDB: 60, TheGamesDB: 27}},
	"lynx":      {Name: "Atari Lynx", IDs: PlatformIDs{ScreenScraper: 28, IGDB: 61, TheGamesDB: 4924}},
	"jaguar":    {Name: "Atari Jaguar", IDs: PlatformIDs{ScreenScraper: 27, IGDB: 62, TheGamesDB: 28}},
	"atari-st":  {Name: "Atari ST", IDs: PlatformIDs{ScreenScraper: 42, IGDB: 63, TheGamesDB: 4937}},

	// NEC and SNK
	"tg16":      {Name: "TurboGrafx-16/PC Engine", IDs: PlatformIDs{ScreenScraper: 31, IGDB: 86, TheGamesDB: 34}},
	"pc-fx":     {Name: "PC-FX", IDs: PlatformIDs{ScreenScraper: 72, IGDB: 274, TheGamesDB: 4930}},
	"neogeoaes": {Name: "Neo Geo AES", IDs: PlatformIDs{ScreenScraper: 142, IGDB: 80, TheGamesDB: 24}},
	"neo-geo-pocket": {
		Name: "Neo Geo Pocket", IDs: PlatformIDs{ScreenScraper: 25, IGDB: 119, TheGamesDB: 4922},
	},
	"neo-geo-pocket-color": {
		Name: "Neo Geo Pocket Color", IDs: PlatformIDs{ScreenScraper: 82, IGDB: 120, TheGamesDB: 4923},
	},

	// Arcade
	"arcade": {Name: "Arcade", IDs: PlatformIDs{ScreenScraper: 75, IGDB: 52, TheGamesDB: 23}},

	// Handhelds and others
	"wonderswan": {Name: "WonderSwan", IDs: PlatformIDs{ScreenScraper: 45, IGDB: 57, TheGamesDB: 4925}},
	"wonderswan-color": {
		Name: "WonderSwan Color", IDs: PlatformIDs{ScreenScraper: 46, IGDB: 123, TheGamesDB: 4926},
	},
	"colecovision":  {Name: "ColecoVision", IDs: PlatformIDs{ScreenScraper: 48, IGDB: 68, TheGamesDB: 31}},
	"intellivision": {Name: "Intellivision", IDs: PlatformIDs{ScreenScraper: 115, IGDB: 67, TheGamesDB: 32}},
	"vectrex":       {Name: "Vectrex", IDs: PlatformIDs{ScreenScraper: 102, IGDB: 70, TheGamesDB: 4939}},
	"3do":           {Name: "3DO Interactive Multiplayer", IDs: PlatformIDs{ScreenScraper: 29, IGDB: 50, TheGamesDB: 25}},

	// Computers
	"dos":   {Name: "DOS", IDs: PlatformIDs{ScreenScraper: 135, IGDB: 13, TheGamesDB: 1}},
	"amiga": {Name: "Amiga", IDs: PlatformIDs{ScreenScraper: 64, IGDB: 16, TheGamesDB: 4911}},
	"c64":   {Name: "Commodore 64", IDs: PlatformIDs{ScreenScraper: 66, IGDB: 15, TheGamesDB: 40}},
	"msx":   {Name: "MSX", IDs: PlatformIDs{ScreenScraper: 113, IGDB: 27, TheGamesDB: 4929}},
	"zxs":   {Name: "ZX Spectrum", IDs: PlatformIDs{ScreenScraper: 76, IGDB: 26, TheGamesDB: 4913}},
	"acpc":  {Name: "Amstrad CPC", IDs: PlatformIDs{ScreenScraper: 65, IGDB: 25, TheGamesDB: 4914}},
	"pico":  {Name: "PICO-8", IDs: PlatformIDs{ScreenScraper: 234, IGDB: 0, TheGamesDB: 0}},
}

// folderAliases maps common library folder names (EmulationStation and
// RetroArch conventions) to canonical slugs.
var folderAliases = map[string]string{
	"famicom":         "nes",
	"fds":             "nes",
	"superfamicom":    "snes",
	"sfc":             "snes",
	"nintendo64":      "n64",
	"gameboy":         "gb",
	"gameboycolor":    "gbc",
	"gameboyadvance":  "gba",
	"ds":              "nds",
	"n3ds":            "3ds",
	"gc":              "ngc",
	"gamecube":        "ngc",
	"vb":              "virtualboy",
	"ps1":             "psx",
	"playstation":     "psx",
	"vita":            "psvita",
	"megadrive":       "genesis",
	"md":              "genesis",
	"mastersystem":    "sms",
	"gg":              "gamegear",
	"scd":             "segacd",
	"megacd":          "segacd",
	"s32x":            "sega32",
	"sega32x":         "sega32",
	"dreamcast":       "dc",
	"atarilynx":       "lynx",
	"atarijaguar":     "jaguar",
	"atarist":         "atari-st",
	"pcengine":        "tg16",
	"turbografx16":    "tg16",
	"pcfx":            "pc-fx",
	"neogeo":          "neogeoaes",
	"ngp":             "neo-geo-pocket",
	"ngpc":            "neo-geo-pocket-color",
	"mame":            "arcade",
	"fba":             "arcade",
	"fbneo":           "arcade",
	"cps1":            "arcade",
	"cps2":            "arcade",
	"cps3":            "arcade",
	"wswan":           "wonderswan",
	"wswanc":          "wonderswan-color",
	"wonderswancolor": "wonderswan-color",
	"coleco":          "colecovision",
	"zxspectrum":      "zxs",
	"amstradcpc":      "acpc",
	"pico8":           "pico",
	"pc":              "dos",
}

// CanonicalSlug resolves a filesystem folder name to a canonical platform
// slug. Unknown folders keep their own name and return false.
func CanonicalSlug(fsSlug string) (string, bool) {
	key := strings.ToLower(strings.TrimSpace(fsSlug))
	if _, ok := PlatformDefinitions[key]; ok {
		return key, true
	}
	if slug, ok := folderAliases[key]; ok {
		return slug, true
	}
	return fsSlug, false
}

// PlatformName returns the display name for a canonical slug, or the slug
// itself when it is unknown.
func PlatformName(slug string) string {
	if def, ok := PlatformDefinitions[slug]; ok {
		return def.Name
	}
	return slug
}

// ProviderPlatformIDs returns the provider platform ids for a canonical
// slug keyed by provider name. Providers without the platform are left
// out.
func ProviderPlatformIDs(slug string) map[string]string {
	ids := map[string]string{}
	def, ok := PlatformDefinitions[slug]
	if !ok {
		return ids
	}
	if def.IDs.ScreenScraper != 0 {
		ids[ProviderScreenScraper] = strconv.Itoa(def.IDs.ScreenScraper)
	}
	if def.IDs.IGDB != 0 {
		ids[ProviderIGDB] = strconv.Itoa(def.IDs.IGDB)
	}
	if def.IDs.TheGamesDB != 0 {
		ids[ProviderTheGamesDB] = strconv.Itoa(def.IDs.TheGamesDB)
	}
	return ids
}
