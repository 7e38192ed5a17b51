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

// Package identifiers classifies ROM file names that carry a catalog
// identifier (disc serials, console title ids, arcade set names) instead of
// a readable title.
package identifiers

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ZaparooProject/zaparoo-romscan/pkg/database/tags"
)

type Kind string

const (
	KindNone            Kind = "none"
	KindGeneric         Kind = "generic"
	KindSonySerial      Kind = "sony_serial"
	KindPS2OPL          Kind = "ps2_opl"
	KindSwitchTitleID   Kind = "switch_title_id"
	KindSwitchProductID Kind = "switch_product_id"
	KindMAMEName        Kind = "mame_name"
)

// switchBaseMask clears the bits that distinguish updates and DLC from the
// base application id.
const switchBaseMask uint64 = 0x1FFF

// Identifier is the classification of one file name. Key is the lookup key
// for the matching index. Title is the readable fallback title, which is
// the tag-stripped name unless the file name embeds a better one.
type Identifier struct {
	Kind  Kind
	Key   string
	Title string
}

var (
	reSonySerial = regexp.MustCompile(
		`(?i)\b(S[CL][AEKPU][ADMSX]|U[CL][AEJKU][MS]|NP[EHJUK][AGHJZ])[-_ ]?(\d{3})\.?(\d{2})\b`,
	)
	reOPL           = regexp.MustCompile(`(?i)^([A-Z]{4})_(\d{3})\.(\d{2})\.(.+)$`)
	reSwitchID      = regexp.MustCompile(`(?i)\b(01[0-9a-f]{14})\b`)
	reSwitchProduct = regexp.MustCompile(`(?i)\b(?:LA|HAC)-[A-Z]-([A-Z0-9]{5})\b`)
	reMAMEName      = regexp.MustCompile(`^[a-z0-9_]{1,16}$`)
)

var sonyPlatforms = map[string]struct{}{
	"psx": {},
	"ps2": {},
	"psp": {},
}

var arcadePlatforms = map[string]struct{}{
	"arcade":    {},
	"neogeoaes": {},
}

// NormalizeSerial formats a Sony serial as PREFIX-NNNNN.
func NormalizeSerial(prefix, a, b string) string {
	return strings.ToUpper(prefix) + "-" + a + b
}

// SwitchBaseTitleID returns the base application id of a Switch title,
// update or DLC id.
func SwitchBaseTitleID(hexID string) (string, error) {
	id, err := strconv.ParseUint(hexID, 16, 64)
	if err != nil {
		return "", fmt.Errorf("invalid switch title id %q: %w", hexID, err)
	}
	return fmt.Sprintf("%016X", id&^switchBaseMask), nil
}

// Classify picks the identifier kind for a file name on a canonical
// platform. Platform specific kinds are tried first in a fixed order and
// everything else is generic.
func Classify(fileName, platformSlug string) Identifier {
	base := tags.FileNameWithNoExtension(fileName)
	title := tags.StripTags(base)
	if strings.TrimSpace(base) == "" {
		return Identifier{Kind: KindNone}
	}

	switch {
	case platformSlug == "ps2":
		if id, ok := classifyOPL(base); ok {
			return id
		}
		if id, ok := classifySony(base, title); ok {
			return id
		}
	case inSet(sonyPlatforms, platformSlug):
		if id, ok := classifySony(base, title); ok {
			return id
		}
	case platformSlug == "switch":
		if id, ok := classifySwitch(base, title); ok {
			return id
		}
	case inSet(arcadePlatforms, platformSlug):
		if reMAMEName.MatchString(base) {
			return Identifier{Kind: KindMAMEName, Key: base, Title: base}
		}
	}

	if strings.TrimSpace(title) == "" {
		return Identifier{Kind: KindNone}
	}
	return Identifier{Kind: KindGeneric, Title: title}
}

func inSet(set map[string]struct{}, key string) bool {
	_, ok := set[key]
	return ok
}

func classifyOPL(base string) (Identifier, bool) {
	m := reOPL.FindStringSubmatch(base)
	if m == nil {
		return Identifier{}, false
	}
	if !reSonySerial.MatchString(m[1] + "_" + m[2] + "." + m[3]) {
		return Identifier{}, false
	}
	return Identifier{
		Kind:  KindPS2OPL,
		Key:   NormalizeSerial(m[1], m[2], m[3]),
		Title: tags.StripTags(strings.TrimSpace(m[4])),
	}, true
}

func classifySony(base, title string) (Identifier, bool) {
	m := reSonySerial.FindStringSubmatch(base)
	if m == nil {
		return Identifier{}, false
	}
	fallback := strings.TrimSpace(reSonySerial.ReplaceAllString(title, ""))
	fallback = strings.Trim(fallback, " -_.")
	if fallback == "" {
		fallback = title
	}
	return Identifier{
		Kind:  KindSonySerial,
		Key:   NormalizeSerial(m[1], m[2], m[3]),
		Title: fallback,
	}, true
}

func classifySwitch(base, title string) (Identifier, bool) {
	if m := reSwitchID.FindStringSubmatch(base); m != nil {
		hexID := strings.ToUpper(m[1])
		fallback := strings.TrimSpace(tags.StripTags(strings.ReplaceAll(base, m[1], "")))
		if fallback == "" {
			fallback = title
		}
		baseID, err := SwitchBaseTitleID(hexID)
		if err != nil {
			return Identifier{}, false
		}
		if baseID == hexID {
			return Identifier{Kind: KindSwitchTitleID, Key: hexID, Title: fallback}, true
		}
		return Identifier{Kind: KindSwitchProductID, Key: baseID, Title: fallback}, true
	}

	if m := reSwitchProduct.FindStringSubmatch(base); m != nil {
		fallback := strings.TrimSpace(tags.StripTags(reSwitchProduct.ReplaceAllString(base, "")))
		fallback = strings.Trim(fallback, " -_.")
		if fallback == "" {
			fallback = title
		}
		return Identifier{Kind: KindSwitchProductID, Key: strings.ToUpper(m[1]), Title: fallback}, true
	}

	return Identifier{}, false
}
