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
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/ZaparooProject/zaparoo-romscan/pkg/helpers/syncutil"
	"github.com/adrg/xdg"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog/log"
)

const (
	SchemaVersion = 1
	CfgEnv        = "ROMSCAN_CFG"
)

type Values struct {
	Library           Library   `toml:"library"`
	ErrorReportingDSN string    `toml:"error_reporting_dsn,omitempty"`
	Scan              Scan      `toml:"scan"`
	Providers         Providers `toml:"providers,omitempty"`
	Indices           Indices   `toml:"indices,omitempty"`
	ConfigSchema      int       `toml:"config_schema"`
	DebugLogging      bool      `toml:"debug_logging"`
	ErrorReporting    bool      `toml:"error_reporting"`
}

type Library struct {
	Path string `toml:"path"`
}

// Providers lists metadata providers in priority order. The first provider
// to match wins scalar fields when results are merged.
type Providers struct {
	Order []string `toml:"order,omitempty"`
}

// Indices configures the remote sources of the local lookup tables used to
// translate serials, title ids and arcade set names.
type Indices struct {
	Sources         map[string]string `toml:"sources,omitempty"`
	RefreshInterval int               `toml:"refresh_interval_hours,omitempty"`
}

var BaseDefaults = Values{
	ConfigSchema: SchemaVersion,
	Scan: Scan{
		HashRoms:       true,
		TimeoutMinutes: DefaultScanTimeoutMinutes,
		Exclusions: Exclusions{
			SingleNames:      []string{"Thumbs.db", "desktop.ini", "*.m3u.bak"},
			SingleExtensions: []string{"nfo", "txt", "xml", "db"},
			PartNames:        []string{"Thumbs.db", "desktop.ini"},
			PartExtensions:   []string{"nfo", "txt"},
		},
	},
	Providers: Providers{
		Order: []string{"screenscraper", "igdb", "thegamesdb"},
	},
	Indices: Indices{
		RefreshInterval: 24,
	},
}

type Instance struct {
	cfgPath  string
	authPath string
	vals     Values
	defaults Values
	mu       syncutil.RWMutex
}

var authCfg atomic.Value

// GetAuthCfg returns the credentials loaded from auth.toml.
func GetAuthCfg() map[string]CredentialEntry {
	val := authCfg.Load()
	if val == nil {
		return map[string]CredentialEntry{}
	}
	creds, ok := val.(map[string]CredentialEntry)
	if !ok {
		return map[string]CredentialEntry{}
	}
	return creds
}

// SetAuthCfg replaces the loaded credentials. Used by Load and by tests.
func SetAuthCfg(creds map[string]CredentialEntry) {
	authCfg.Store(creds)
}

// DefaultConfigDir is the per-user config directory.
func DefaultConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// DefaultDataDir is the per-user data directory holding the library and
// cache databases.
func DefaultDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

//nolint:gocritic // config struct copied for immutability
func NewConfig(configDir string, defaults Values) (*Instance, error) {
	cfgPath := os.Getenv(CfgEnv)
	log.Debug().Msgf("env config path: %s", cfgPath)

	if cfgPath == "" {
		cfgPath = filepath.Join(configDir, CfgFile)
	}

	cfg := Instance{
		cfgPath:  cfgPath,
		authPath: filepath.Join(filepath.Dir(cfgPath), AuthFile),
		vals:     defaults,
		defaults: defaults,
	}

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		log.Info().Msg("saving new default config to disk")

		err := os.MkdirAll(filepath.Dir(cfgPath), 0o750)
		if err != nil {
			return nil, fmt.Errorf("failed to create config directory: %w", err)
		}

		err = cfg.Save()
		if err != nil {
			return nil, err
		}
	}

	err := cfg.Load()
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Load reads config.toml (and auth.toml if present) and validates the scan
// rules. Invalid exclusion patterns or platform bindings fail the load so
// no scan ever starts with them.
func (c *Instance) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cfgPath == "" {
		return errors.New("config path not set")
	}

	data, err := os.ReadFile(c.cfgPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	// Start with defaults, then unmarshal file values on top.
	newVals := c.defaults
	err = toml.Unmarshal(data, &newVals)
	if err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if newVals.ConfigSchema != SchemaVersion {
		log.Error().Msgf(
			"schema version mismatch: got %d, expecting %d",
			newVals.ConfigSchema,
			SchemaVersion,
		)
		return errors.New("schema version mismatch")
	}

	if err := newVals.Scan.Validate(); err != nil {
		return fmt.Errorf("invalid scan config: %w", err)
	}

	c.vals = newVals

	if _, err := os.Stat(c.authPath); err == nil {
		log.Info().Msg("loading auth file")
		authData, err := os.ReadFile(c.authPath)
		if err != nil {
			return fmt.Errorf("failed to read auth file: %w", err)
		}

		creds, err := LoadAuthFromData(authData)
		if err != nil {
			return err
		}
		log.Info().Msgf("loaded %d auth entries", len(creds))
		SetAuthCfg(creds)
	}

	return nil
}

func (c *Instance) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cfgPath == "" {
		return errors.New("config path not set")
	}

	c.vals.ConfigSchema = SchemaVersion

	data, err := toml.Marshal(&c.vals)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(c.cfgPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func (c *Instance) DebugLogging() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.DebugLogging
}

func (c *Instance) SetDebugLogging(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.DebugLogging = enabled
}

func (c *Instance) ErrorReporting() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.ErrorReporting
}

// ErrorReportingDSN is the Sentry DSN errors are reported to when error
// reporting is enabled.
func (c *Instance) ErrorReportingDSN() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.ErrorReportingDSN
}

func (c *Instance) LibraryPath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Library.Path
}

func (c *Instance) SetLibraryPath(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.Library.Path = path
}

// ProviderOrder returns a copy of the configured provider priority order.
func (c *Instance) ProviderOrder() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.vals.Providers.Order...)
}

// IndexSources returns a copy of the configured index source URLs.
func (c *Instance) IndexSources() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]string, len(c.vals.Indices.Sources))
	for k, v := range c.vals.Indices.Sources {
		out[k] = v
	}
	return out
}

func (c *Instance) IndexRefreshHours() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Indices.RefreshInterval
}
