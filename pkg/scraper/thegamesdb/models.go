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

package thegamesdb

// APIResponse represents the root response structure from TheGamesDB API
type APIResponse struct {
	Data              *APIResponseData    `json:"data,omitempty"`
	Include           *APIResponseInclude `json:"include,omitempty"`
	Status            string              `json:"status"`
	Code              int                 `json:"code"`
	RemainingRequests int                 `json:"remaining_monthly_allowance"`
}

// APIResponseData contains the main data from API responses
type APIResponseData struct {
	Games  []Game           `json:"games,omitempty"`
	Genres map[string]Genre `json:"genres,omitempty"`
	Count  int              `json:"count,omitempty"`
}

// APIResponseInclude contains additional data referenced by IDs
type APIResponseInclude struct {
	Boxart *BoxartInclude `json:"boxart,omitempty"`
}

// BoxartInclude lists the images of each game, keyed by game id.
type BoxartInclude struct {
	BaseURL BaseURL             `json:"base_url"`
	Data    map[string][]Boxart `json:"data"`
}

// BaseURL holds the image URL prefixes for each image size.
type BaseURL struct {
	Original string `json:"original"`
	Medium   string `json:"medium"`
	Thumb    string `json:"thumb"`
}

// Game represents a game from TheGamesDB
type Game struct {
	ReleaseDate    string   `json:"release_date"`
	Overview       string   `json:"overview"`
	GameTitle      string   `json:"game_title"`
	Rating         string   `json:"rating"`
	AlternateNames []string `json:"alternates,omitempty"`
	Genres         []int    `json:"genres,omitempty"`
	Platform       int      `json:"platform"`
	ID             int      `json:"id"`
}

// Boxart represents boxart/cover art information
type Boxart struct {
	Type     string `json:"type"`
	Side     string `json:"side"`
	Filename string `json:"filename"`
	ID       int    `json:"id"`
}

// Genre represents a game genre
type Genre struct {
	Name string `json:"name"`
	ID   int    `json:"id"`
}
