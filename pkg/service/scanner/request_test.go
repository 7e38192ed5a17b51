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

package scanner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRequest(t *testing.T) {
	t.Parallel()

	req, err := DecodeRequest(map[string]any{
		"scan_type":        "QUICK",
		"platform_ids":     []any{float64(1), "2"},
		"selected_rom_ids": []int64{7},
		"providers":        "screenscraper,igdb",
	})
	require.NoError(t, err)
	assert.Equal(t, ScanQuick, req.ScanType)
	assert.Equal(t, []int64{1, 2}, req.PlatformIDs)
	assert.Equal(t, []int64{7}, req.SelectedRomIDs)
	assert.Equal(t, []string{"screenscraper", "igdb"}, req.Providers)
}

func TestDecodeRequest_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		args    map[string]any
		name    string
		wantMsg string
	}{
		{
			name:    "missing scan type",
			args:    map[string]any{},
			wantMsg: "scantype is required",
		},
		{
			name:    "unknown scan type",
			args:    map[string]any{"scan_type": "everything"},
			wantMsg: "scantype must be one of",
		},
		{
			name:    "negative platform id",
			args:    map[string]any{"scan_type": "complete", "platform_ids": []int64{-1}},
			wantMsg: "must be greater than 0",
		},
		{
			name:    "unknown field",
			args:    map[string]any{"scan_type": "complete", "platfrom_ids": []int64{1}},
			wantMsg: "platfrom_ids",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := DecodeRequest(tt.args)
			require.ErrorIs(t, err, ErrInvalidRequest)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestRequestValidate(t *testing.T) {
	t.Parallel()

	for _, st := range ScanTypes {
		req := Request{ScanType: st}
		require.NoError(t, req.Validate(), st)
	}

	req := Request{ScanType: ScanComplete, Providers: []string{""}}
	require.ErrorIs(t, req.Validate(), ErrInvalidRequest)
}
