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

package cache

import (
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetch(t *testing.T) {
	t.Parallel()

	s := openTestStore(t, clockwork.NewFakeClock())
	calls := 0
	fetch := func() (*payload, error) {
		calls++
		return &payload{Title: "Tetris"}, nil
	}

	got, err := Fetch(s, "tgdb:title:tetris", time.Hour, time.Minute, fetch)
	require.NoError(t, err)
	assert.Equal(t, "Tetris", got.Title)

	got, err = Fetch(s, "tgdb:title:tetris", time.Hour, time.Minute, fetch)
	require.NoError(t, err)
	assert.Equal(t, "Tetris", got.Title)
	assert.Equal(t, 1, calls)
}

func TestFetchCachesMisses(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	s := openTestStore(t, clock)
	calls := 0
	fetch := func() (*payload, error) {
		calls++
		return nil, nil
	}

	for range 3 {
		got, err := Fetch(s, "ss:hash:abc", time.Hour, time.Minute, fetch)
		require.NoError(t, err)
		assert.Nil(t, got)
	}
	assert.Equal(t, 1, calls)

	clock.Advance(2 * time.Minute)
	_, err := Fetch(s, "ss:hash:abc", time.Hour, time.Minute, fetch)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestFetchDoesNotCacheErrors(t *testing.T) {
	t.Parallel()

	s := openTestStore(t, clockwork.NewFakeClock())
	boom := errors.New("boom")
	calls := 0
	fetch := func() (*payload, error) {
		calls++
		return nil, boom
	}

	_, err := Fetch(s, "igdb:title:x", time.Hour, time.Minute, fetch)
	require.ErrorIs(t, err, boom)
	_, err = Fetch(s, "igdb:title:x", time.Hour, time.Minute, fetch)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 2, calls)

	status, err := s.Get("igdb:title:x", nil)
	require.NoError(t, err)
	assert.Equal(t, Absent, status)
}

func TestFetchNilStore(t *testing.T) {
	t.Parallel()

	got, err := Fetch[payload](nil, "k", time.Hour, time.Minute, func() (*payload, error) {
		return &payload{Title: "direct"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "direct", got.Title)
}
