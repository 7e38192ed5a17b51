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

package config

import (
	"fmt"
	"maps"
	"net/url"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog/log"
)

// CredentialEntry holds the credentials for one metadata provider. Entries
// are keyed either by provider name or by the provider's API URL.
type CredentialEntry struct {
	Username     string `toml:"username,omitempty"`
	Password     string `toml:"password,omitempty"`
	Bearer       string `toml:"bearer,omitempty"`
	ClientID     string `toml:"client_id,omitempty"`
	ClientSecret string `toml:"client_secret,omitempty"`
	APIKey       string `toml:"api_key,omitempty"`
	DevID        string `toml:"dev_id,omitempty"`
	DevPassword  string `toml:"dev_password,omitempty"`
}

// authRootFormat represents the flat format: ["key"] at root level
type authRootFormat map[string]CredentialEntry

// authCredsFormat represents the wrapped format: [creds."key"]
type authCredsFormat struct {
	Creds map[string]CredentialEntry `toml:"creds"`
}

// isValidAuthKey filters out TOML structural keys that get captured when
// parsing the root format in mixed-format files.
func isValidAuthKey(key string) bool {
	return key != "creds"
}

// LoadAuthFromData parses auth.toml data. Both the root level and the
// [creds."key"] formats are accepted and merged. Data that is valid for
// neither format is an error.
func LoadAuthFromData(data []byte) (map[string]CredentialEntry, error) {
	result := make(map[string]CredentialEntry)

	var root authRootFormat
	rootErr := toml.Unmarshal(data, &root)
	if rootErr == nil {
		for k, v := range root {
			if isValidAuthKey(k) {
				result[k] = v
			}
		}
	}

	var creds authCredsFormat
	credsErr := toml.Unmarshal(data, &creds)
	if credsErr == nil {
		maps.Copy(result, creds.Creds)
	}

	if rootErr != nil && credsErr != nil {
		return nil, fmt.Errorf("failed to parse auth file: %w", credsErr)
	}

	return result, nil
}

func isSchemelessKey(key string) bool {
	return !strings.Contains(key, "://")
}

// LookupAuth finds credentials for a URL. An entry keyed by a full URL
// matches when scheme and host are equal and the path is a prefix. An
// entry keyed by a bare host (or host:port) matches any scheme.
func LookupAuth(creds map[string]CredentialEntry, reqURL string) *CredentialEntry {
	if len(creds) == 0 {
		return nil
	}

	u, err := url.Parse(reqURL)
	if err != nil {
		log.Warn().Msgf("invalid auth request url: %s", reqURL)
		return nil
	}

	for k, v := range creds {
		if isSchemelessKey(k) {
			continue
		}
		defURL, err := url.Parse(k)
		if err != nil {
			log.Error().Msgf("invalid auth config url: %s", k)
			continue
		}
		if strings.EqualFold(defURL.Scheme, u.Scheme) &&
			strings.EqualFold(defURL.Host, u.Host) &&
			strings.HasPrefix(u.Path, defURL.Path) {
			return &v
		}
	}

	for k, v := range creds {
		if !isSchemelessKey(k) {
			continue
		}
		if strings.EqualFold(k, u.Host) {
			return &v
		}
	}

	return nil
}

// LookupProviderAuth returns the credentials for a provider, preferring an
// entry keyed by the provider name over one keyed by its API URL.
func LookupProviderAuth(creds map[string]CredentialEntry, provider, baseURL string) *CredentialEntry {
	for k, v := range creds {
		if strings.EqualFold(k, provider) {
			return &v
		}
	}
	if baseURL == "" {
		return nil
	}
	return LookupAuth(creds, baseURL)
}
