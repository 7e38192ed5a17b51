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

package screenscraper

// APIResponse represents the top-level ScreenScraper API response
type APIResponse struct {
	Header   Header   `json:"header"`
	Response Response `json:"response"`
}

// Header contains API response metadata
type Header struct {
	APIVersion string `json:"APIversion"` //nolint:tagliatelle // External API format
	Success    string `json:"success"`
	Error      string `json:"error"`
}

// Response contains the actual game data
type Response struct {
	Game  *Game  `json:"jeu,omitempty"`
	Games []Game `json:"jeux,omitempty"`
}

// Game represents a game in the ScreenScraper database
type Game struct {
	Publisher       *Text            `json:"editeur,omitempty"`
	Developer       *Text            `json:"developpeur,omitempty"`
	Rating          *Text            `json:"note,omitempty"`
	ID              string           `json:"id"`
	Names           []Text           `json:"noms,omitempty"`
	Descriptions    []Text           `json:"synopsis,omitempty"`
	Dates           []Text           `json:"dates,omitempty"`
	Genres          []Genre          `json:"genres,omitempty"`
	Classifications []Classification `json:"classifications,omitempty"`
	Medias          []Media          `json:"medias,omitempty"`
}

// Text represents localized text with region and language
type Text struct {
	Region   string `json:"region,omitempty"`
	Language string `json:"langue,omitempty"`
	Text     string `json:"text"`
}

// Genre is a genre with its localized names.
type Genre struct {
	ID    string `json:"id"`
	Names []Text `json:"noms"`
}

// Media represents game media (images, videos, etc.)
type Media struct {
	Type   string `json:"type"`
	URL    string `json:"url"`
	Region string `json:"region,omitempty"`
	Format string `json:"format,omitempty"`
}

// Classification represents game ratings/classifications
type Classification struct {
	Type string `json:"type"`
	Text string `json:"text"`
}
