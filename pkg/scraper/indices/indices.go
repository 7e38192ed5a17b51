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

// Package indices keeps the local lookup tables that translate serials,
// title ids and arcade set names into readable titles. Tables live in the
// shared cache and are only ever rebuilt by the refresher.
package indices

import (
	"fmt"
	"io"
	"strings"

	"github.com/ZaparooProject/zaparoo-romscan/pkg/scraper/identifiers"
	"github.com/gocarina/gocsv"
)

const (
	SourcePSX    = "psx"
	SourcePS2    = "ps2"
	SourcePSP    = "psp"
	SourceSwitch = "switch"
	SourceMAME   = "mame"

	BatchPSXSerials     = "sony:psx"
	BatchPS2Serials     = "sony:ps2"
	BatchPSPSerials     = "sony:psp"
	BatchSwitchTitles   = "switch:titles"
	BatchSwitchProducts = "switch:products"
	BatchMAME           = "mame"
)

// serialEntry is one row of a disc serial table.
type serialEntry struct {
	Serial string `csv:"serial"`
	Title  string `csv:"title"`
}

// switchEntry is one row of a Switch title table.
type switchEntry struct {
	TitleID     string `csv:"title_id"`
	ProductCode string `csv:"product_code"`
	Name        string `csv:"name"`
}

// arcadeEntry is one row of an arcade database export. Extra columns are
// ignored.
type arcadeEntry struct {
	Setname string `csv:"setname"`
	Name    string `csv:"name"`
}

// parser turns one source file into the batches it feeds.
type parser func(r io.Reader) (map[string]map[string]string, error)

type sourceDef struct {
	parse   parser
	batches []string
}

var sources = map[string]sourceDef{
	SourcePSX:    {batches: []string{BatchPSXSerials}, parse: serialParser(BatchPSXSerials)},
	SourcePS2:    {batches: []string{BatchPS2Serials}, parse: serialParser(BatchPS2Serials)},
	SourcePSP:    {batches: []string{BatchPSPSerials}, parse: serialParser(BatchPSPSerials)},
	SourceSwitch: {batches: []string{BatchSwitchTitles, BatchSwitchProducts}, parse: parseSwitch},
	SourceMAME:   {batches: []string{BatchMAME}, parse: parseArcade},
}

var sonyBatches = map[string]string{
	"psx": BatchPSXSerials,
	"ps2": BatchPS2Serials,
	"psp": BatchPSPSerials,
}

// KnownSource reports whether name is a supported index source.
func KnownSource(name string) bool {
	_, ok := sources[name]
	return ok
}

// SourceOf returns the source that feeds a batch.
func SourceOf(batch string) (string, bool) {
	for name, def := range sources {
		for _, b := range def.batches {
			if b == batch {
				return name, true
			}
		}
	}
	return "", false
}

// BatchFor picks the batch that can translate an identifier on a platform.
func BatchFor(id identifiers.Identifier, platformSlug string) (string, bool) {
	switch id.Kind {
	case identifiers.KindSonySerial, identifiers.KindPS2OPL:
		b, ok := sonyBatches[platformSlug]
		return b, ok
	case identifiers.KindSwitchTitleID:
		return BatchSwitchTitles, true
	case identifiers.KindSwitchProductID:
		if len(id.Key) == 16 {
			return BatchSwitchTitles, true
		}
		return BatchSwitchProducts, true
	case identifiers.KindMAMEName:
		return BatchMAME, true
	case identifiers.KindGeneric, identifiers.KindNone:
		return "", false
	default:
		return "", false
	}
}

func serialParser(batch string) parser {
	return func(r io.Reader) (map[string]map[string]string, error) {
		entries := make([]serialEntry, 0)
		if err := gocsv.Unmarshal(r, &entries); err != nil {
			return nil, fmt.Errorf("failed to unmarshal serial CSV: %w", err)
		}
		out := make(map[string]string, len(entries))
		for _, e := range entries {
			key := normalizeSerialKey(e.Serial)
			title := strings.TrimSpace(e.Title)
			if key == "" || title == "" {
				continue
			}
			out[key] = title
		}
		return map[string]map[string]string{batch: out}, nil
	}
}

// normalizeSerialKey accepts SLUS-20062, SLUS_200.62 and slus20062.
func normalizeSerialKey(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.NewReplacer("_", "", "-", "", ".", "", " ", "").Replace(s)
	if len(s) < 5 {
		return ""
	}
	return s[:4] + "-" + s[4:]
}

func parseSwitch(r io.Reader) (map[string]map[string]string, error) {
	entries := make([]switchEntry, 0)
	if err := gocsv.Unmarshal(r, &entries); err != nil {
		return nil, fmt.Errorf("failed to unmarshal switch CSV: %w", err)
	}
	titles := make(map[string]string, len(entries))
	products := make(map[string]string, len(entries))
	for _, e := range entries {
		name := strings.TrimSpace(e.Name)
		if name == "" {
			continue
		}
		if id := strings.ToUpper(strings.TrimSpace(e.TitleID)); len(id) == 16 {
			titles[id] = name
		}
		if code := productKey(e.ProductCode); code != "" {
			products[code] = name
		}
	}
	return map[string]map[string]string{
		BatchSwitchTitles:   titles,
		BatchSwitchProducts: products,
	}, nil
}

// productKey reduces LA-H-AAACA to AAACA.
func productKey(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if i := strings.LastIndexByte(code, '-'); i >= 0 {
		code = code[i+1:]
	}
	if len(code) != 5 {
		return ""
	}
	return code
}

func parseArcade(r io.Reader) (map[string]map[string]string, error) {
	entries := make([]arcadeEntry, 0)
	if err := gocsv.Unmarshal(r, &entries); err != nil {
		return nil, fmt.Errorf("failed to unmarshal arcade CSV: %w", err)
	}
	out := make(map[string]string, len(entries))
	for _, e := range entries {
		set := strings.ToLower(strings.TrimSpace(e.Setname))
		name := strings.TrimSpace(e.Name)
		if set == "" || name == "" {
			continue
		}
		out[set] = name
	}
	return map[string]map[string]string{BatchMAME: out}, nil
}
