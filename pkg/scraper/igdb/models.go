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

package igdb

// Game represents a game from IGDB API with the expanded fields the
// search query asks for.
//
//nolint:tagliatelle // External API format
type Game struct {
	Cover             *Image            `json:"cover,omitempty"`
	Name              string            `json:"name"`
	Summary           string            `json:"summary,omitempty"`
	Screenshots       []Image           `json:"screenshots,omitempty"`
	Genres            []Named           `json:"genres,omitempty"`
	InvolvedCompanies []InvolvedCompany `json:"involved_companies,omitempty"`
	AlternativeNames  []Named           `json:"alternative_names,omitempty"`
	AgeRatings        []AgeRating       `json:"age_ratings,omitempty"`
	ID                int               `json:"id"`
	TotalRating       float64           `json:"total_rating,omitempty"`
	FirstReleaseDate  int64             `json:"first_release_date,omitempty"`
}

// Image is a cover or screenshot reference.
//
//nolint:tagliatelle // External API format
type Image struct {
	ImageID string `json:"image_id"`
	ID      int    `json:"id"`
}

// Named is any expanded object where only the name was requested.
type Named struct {
	Name string `json:"name"`
	ID   int    `json:"id"`
}

// InvolvedCompany represents a company involved in game development
type InvolvedCompany struct {
	Company   Named `json:"company"`
	ID        int   `json:"id"`
	Developer bool  `json:"developer"`
	Publisher bool  `json:"publisher"`
}

// AgeRating is a rating board and its enum value.
type AgeRating struct {
	ID       int `json:"id"`
	Category int `json:"category"`
	Rating   int `json:"rating"`
}

// TokenResponse represents the OAuth2 token response from Twitch
//
//nolint:tagliatelle // External API format
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}
