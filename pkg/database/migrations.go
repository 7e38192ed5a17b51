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

package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/ZaparooProject/zaparoo-romscan/pkg/helpers/syncutil"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog/log"
)

// goose keeps its filesystem and dialect in package globals
var migrationMutex syncutil.Mutex

// gooseLogger sends goose output to zerolog instead of stdout.
type gooseLogger struct{}

func (gooseLogger) Printf(format string, v ...any) {
	log.Debug().Msgf(format, v...)
}

func (gooseLogger) Fatalf(format string, v ...any) {
	log.Fatal().Msgf(format, v...)
}

// MigrateUp applies every pending migration in dir of files to a sqlite
// database and returns the resulting schema version.
func MigrateUp(ctx context.Context, db *sql.DB, files embed.FS, dir string) (int64, error) {
	migrationMutex.Lock()
	defer migrationMutex.Unlock()

	goose.SetLogger(gooseLogger{})
	goose.SetBaseFS(files)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return 0, fmt.Errorf("error setting goose dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, dir); err != nil {
		return 0, fmt.Errorf("error running migrations up: %w", err)
	}

	version, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return 0, fmt.Errorf("error reading schema version: %w", err)
	}
	log.Debug().Int64("version", version).Str("dir", dir).Msg("database schema up to date")
	return version, nil
}
