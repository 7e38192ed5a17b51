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
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/ZaparooProject/zaparoo-romscan/pkg/config"
	"github.com/ZaparooProject/zaparoo-romscan/pkg/helpers"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	// DefaultTimeoutSeconds is the default timeout for HTTP requests
	DefaultTimeoutSeconds = 30
	UserAgent             = config.AppName + "/" + "1"
	maxErrorBody          = 512
)

var (
	ErrRateLimited  = errors.New("rate limited")
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
)

// StatusError is returned for non-2xx responses. It unwraps to one of the
// sentinel errors above when the status code has a specific meaning.
type StatusError struct {
	URL        string
	Body       string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}

func (e *StatusError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusTooManyRequests:
		return ErrRateLimited
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUnauthorized
	case http.StatusNotFound:
		return ErrNotFound
	default:
		return nil
	}
}

// AuthTransport provides automatic authentication for HTTP requests based
// on auth.toml entries keyed by URL.
type AuthTransport struct {
	Base http.RoundTripper
}

// RoundTrip implements http.RoundTripper interface with automatic authentication
func (t *AuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	if req.Header.Get("Authorization") == "" {
		creds := config.LookupAuth(config.GetAuthCfg(), req.URL.String())
		if creds != nil {
			if creds.Bearer != "" {
				req.Header.Set("Authorization", "Bearer "+creds.Bearer)
			} else if creds.Username != "" {
				auth := base64.StdEncoding.EncodeToString([]byte(creds.Username + ":" + creds.Password))
				req.Header.Set("Authorization", "Basic "+auth)
			}
		}
	}

	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", UserAgent)
	}

	resp, err := base.RoundTrip(req)
	if err != nil {
		return nil, fmt.Errorf("failed to perform HTTP round trip: %w", err)
	}
	return resp, nil
}

// RateLimitTransport waits on a token bucket before every request. The wait
// honours the request context so a cancelled scan never sits in the queue.
type RateLimitTransport struct {
	Base    http.RoundTripper
	Limiter *rate.Limiter
}

func (t *RateLimitTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Limiter != nil {
		if err := t.Limiter.Wait(req.Context()); err != nil {
			return nil, fmt.Errorf("rate limiter wait: %w", err)
		}
	}
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(req) //nolint:wrapcheck // passthrough transport
}

// DefaultTransport provides a configured transport with connection pooling and reasonable timeouts
var DefaultTransport = &http.Transport{
	DialContext: (&net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext,
	ResponseHeaderTimeout: 30 * time.Second,
	TLSHandshakeTimeout:   10 * time.Second,
	MaxIdleConns:          100,
	MaxIdleConnsPerHost:   10,
	IdleConnTimeout:       90 * time.Second,
}

// Client provides an HTTP client with authentication and sensible defaults
type Client struct {
	*http.Client
}

// NewClient creates a new HTTP client with authentication support
func NewClient() *Client {
	return NewClientWithTimeout(DefaultTimeoutSeconds * time.Second)
}

// NewClientWithTimeout creates a new HTTP client with a custom timeout
func NewClientWithTimeout(timeout time.Duration) *Client {
	return &Client{
		Client: &http.Client{
			Transport: &AuthTransport{
				Base: DefaultTransport,
			},
			Timeout: timeout,
		},
	}
}

// NewRateLimitedClient creates a client allowing at most rps requests per
// second with the given burst. Each provider gets its own limiter.
func NewRateLimitedClient(timeout time.Duration, rps float64, burst int) *Client {
	return NewClientWithTransport(timeout, DefaultTransport, rate.NewLimiter(rate.Limit(rps), burst))
}

// NewClientWithTransport is NewRateLimitedClient with a custom base
// transport, used by tests to point at an httptest server.
func NewClientWithTransport(timeout time.Duration, base http.RoundTripper, limiter *rate.Limiter) *Client {
	return &Client{
		Client: &http.Client{
			Transport: &RateLimitTransport{
				Base:    &AuthTransport{Base: base},
				Limiter: limiter,
			},
			Timeout: timeout,
		},
	}
}

// scrubError strips credentials from the URL embedded in transport errors.
func scrubError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return &url.Error{Op: urlErr.Op, URL: helpers.MaskURL(urlErr.URL), Err: urlErr.Err}
	}
	return err
}

// Do sends the request. Errors never contain unmasked credentials.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, scrubError(err)
	}
	return resp, nil
}

// Get performs a GET request and returns the response
func (c *Client) Get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", scrubError(err))
	}

	resp, err := c.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error performing GET request: %w", err)
	}

	return resp, nil
}

// Post performs a POST request with the given body and returns the response
func (c *Client) Post(ctx context.Context, rawURL, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, body)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", scrubError(err))
	}

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error performing POST request: %w", err)
	}

	return resp, nil
}

// DoJSON sends the request and decodes a 2xx JSON body into v. Other
// statuses return a *StatusError.
func (c *Client) DoJSON(req *http.Request, v any) error {
	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("error closing response body")
		}
	}()

	if err := CheckStatus(resp); err != nil {
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// GetJSON performs a GET request and decodes the JSON response into v.
func (c *Client) GetJSON(ctx context.Context, rawURL string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return fmt.Errorf("error creating request: %w", scrubError(err))
	}
	req.Header.Set("Accept", "application/json")
	return c.DoJSON(req, v)
}

// CheckStatus returns a *StatusError for non-2xx responses. The URL in the
// error is masked.
func CheckStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	u := ""
	if resp.Request != nil && resp.Request.URL != nil {
		u = helpers.MaskURL(resp.Request.URL.String())
	}
	return &StatusError{
		StatusCode: resp.StatusCode,
		URL:        u,
		Body:       string(body),
	}
}

// DefaultClient provides a shared HTTP client instance
var DefaultClient = NewClient()
