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

package helpers

import (
	"net/url"
	"strings"
)

const maskVisible = 2

// sensitiveParams are query parameters that carry credentials for one of
// the metadata providers.
var sensitiveParams = map[string]struct{}{
	"ssid":          {},
	"sspassword":    {},
	"devid":         {},
	"devpassword":   {},
	"apikey":        {},
	"api_key":       {},
	"client_id":     {},
	"client_secret": {},
	"access_token":  {},
	"token":         {},
	"session":       {},
}

// MaskSecret hides the middle of a credential so it can appear in logs.
// The first and last two characters are kept. Values too short to keep
// anything hidden are fully masked.
func MaskSecret(v string) string {
	if v == "" {
		return ""
	}
	r := []rune(v)
	if len(r) <= maskVisible*2 {
		return strings.Repeat("*", len(r))
	}
	return string(r[:maskVisible]) + strings.Repeat("*", len(r)-maskVisible*2) +
		string(r[len(r)-maskVisible:])
}

// MaskURL masks the values of credential query parameters and any user
// info in a URL. Unparseable input is fully masked.
func MaskURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return MaskSecret(raw)
	}

	if u.User != nil {
		name := MaskSecret(u.User.Username())
		if _, ok := u.User.Password(); ok {
			u.User = url.UserPassword(name, "****")
		} else {
			u.User = url.User(name)
		}
	}

	q := u.Query()
	changed := false
	for key, vals := range q {
		if _, ok := sensitiveParams[strings.ToLower(key)]; !ok {
			continue
		}
		for i, v := range vals {
			vals[i] = MaskSecret(v)
		}
		changed = true
	}
	if changed {
		u.RawQuery = q.Encode()
	}

	return u.String()
}
