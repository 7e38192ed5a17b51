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

package httpclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ZaparooProject/zaparoo-romscan/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestGetJSON(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, UserAgent, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name":"Tetris"}`))
	}))
	t.Cleanup(srv.Close)

	c := NewClientWithTransport(5*time.Second, http.DefaultTransport, nil)
	var out struct {
		Name string `json:"name"`
	}
	require.NoError(t, c.GetJSON(context.Background(), srv.URL, &out))
	assert.Equal(t, "Tetris", out.Name)
}

func TestStatusErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		sentinel error
		status   int
	}{
		{ErrRateLimited, http.StatusTooManyRequests},
		{ErrUnauthorized, http.StatusUnauthorized},
		{ErrUnauthorized, http.StatusForbidden},
		{ErrNotFound, http.StatusNotFound},
	}

	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(tt.status)
		}))

		c := NewClientWithTransport(5*time.Second, http.DefaultTransport, nil)
		var out map[string]any
		err := c.GetJSON(context.Background(), srv.URL+"/x?apikey=topsecretkey", &out)
		srv.Close()

		require.Error(t, err)
		assert.True(t, errors.Is(err, tt.sentinel), "status %d", tt.status)

		var statusErr *StatusError
		require.ErrorAs(t, err, &statusErr)
		assert.Equal(t, tt.status, statusErr.StatusCode)
		assert.NotContains(t, err.Error(), "topsecretkey")
	}
}

func TestTransportErrorIsMasked(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	addr := srv.URL
	srv.Close()

	c := NewClientWithTransport(time.Second, http.DefaultTransport, nil)
	_, err := c.Get(context.Background(), addr+"/?sspassword=hunter2hunter2")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "hunter2hunter2")
}

func TestRateLimitHonoursContext(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	limiter := rate.NewLimiter(rate.Every(time.Hour), 1)
	c := NewClientWithTransport(5*time.Second, http.DefaultTransport, limiter)

	resp, err := c.Get(context.Background(), srv.URL)
	require.NoError(t, err)
	_ = resp.Body.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.Get(ctx, srv.URL)
	require.Error(t, err)
}

func TestAuthTransportAddsBearer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer abc", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	config.SetAuthCfg(map[string]config.CredentialEntry{srv.URL: {Bearer: "abc"}})
	t.Cleanup(func() { config.SetAuthCfg(map[string]config.CredentialEntry{}) })

	c := NewClientWithTransport(5*time.Second, http.DefaultTransport, nil)
	resp, err := c.Get(context.Background(), srv.URL+"/games")
	require.NoError(t, err)
	_ = resp.Body.Close()
}
