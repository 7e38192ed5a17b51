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

// Package romdb is the sqlite implementation of database.RomStore.
package romdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ZaparooProject/zaparoo-romscan/pkg/database"
	"github.com/jonboulle/clockwork"
	_ "github.com/mattn/go-sqlite3"
)

var ErrNullSQL = errors.New("RomDB is not connected")

const sqliteConnParams = "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=ON"

type RomDB struct {
	sql    *sql.DB
	clock  clockwork.Clock
	dbPath string
}

var _ database.RomStore = (*RomDB)(nil)

// OpenRomDB opens or creates the library database at dbPath and brings
// its schema up to date.
func OpenRomDB(ctx context.Context, dbPath string) (*RomDB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create directory for database: %w", err)
	}

	sqlInstance, err := sql.Open("sqlite3", dbPath+sqliteConnParams)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db := &RomDB{sql: sqlInstance, dbPath: dbPath, clock: clockwork.NewRealClock()}
	if err := db.MigrateUp(ctx); err != nil {
		_ = sqlInstance.Close()
		return nil, err
	}
	return db, nil
}

// NewForTesting wraps an already open connection and migrates it.
func NewForTesting(ctx context.Context, sqlDB *sql.DB, clock clockwork.Clock) (*RomDB, error) {
	db := &RomDB{sql: sqlDB, clock: clock}
	if err := db.MigrateUp(ctx); err != nil {
		return nil, err
	}
	return db, nil
}

func (db *RomDB) GetDBPath() string {
	return db.dbPath
}

func (db *RomDB) UnsafeGetSQLDb() *sql.DB {
	return db.sql
}

func (db *RomDB) MigrateUp(ctx context.Context) error {
	if db.sql == nil {
		return ErrNullSQL
	}
	return sqlMigrateUp(ctx, db.sql)
}

func (db *RomDB) Vacuum(ctx context.Context) error {
	if db.sql == nil {
		return ErrNullSQL
	}
	return sqlVacuum(ctx, db.sql)
}

func (db *RomDB) Close() error {
	if db.sql == nil {
		return nil
	}
	err := db.sql.Close()
	if err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

func (db *RomDB) GetPlatformByFSSlug(ctx context.Context, fsSlug string) (database.Platform, error) {
	return sqlGetPlatformByFSSlug(ctx, db.sql, fsSlug)
}

func (db *RomDB) AddPlatform(ctx context.Context, p *database.Platform) error {
	return sqlAddPlatform(ctx, db.sql, p, db.clock.Now())
}

func (db *RomDB) ListPlatforms(ctx context.Context) ([]database.Platform, error) {
	return sqlListPlatforms(ctx, db.sql)
}

func (db *RomDB) PurgePlatforms(ctx context.Context, keepFSSlugs []string) (int64, error) {
	return sqlPurgePlatforms(ctx, db.sql, keepFSSlugs)
}

func (db *RomDB) GetRom(ctx context.Context, id int64) (database.Rom, error) {
	return sqlGetRom(ctx, db.sql, romByIDQuery, id)
}

func (db *RomDB) GetRomByFileName(ctx context.Context, platformID int64, fileName string) (database.Rom, error) {
	return sqlGetRom(ctx, db.sql, romByFileNameQuery, platformID, fileName)
}

func (db *RomDB) AddRom(ctx context.Context, r *database.Rom) error {
	return sqlAddRom(ctx, db.sql, r, db.clock.Now())
}

func (db *RomDB) PurgeRoms(ctx context.Context, platformID int64, keepFileNames []string) (int64, error) {
	return sqlPurgeRoms(ctx, db.sql, platformID, keepFileNames)
}

func (db *RomDB) GetFirmwareByFileName(
	ctx context.Context,
	platformID int64,
	fileName string,
) (database.Firmware, error) {
	return sqlGetFirmwareByFileName(ctx, db.sql, platformID, fileName)
}

func (db *RomDB) AddFirmware(ctx context.Context, f *database.Firmware) error {
	return sqlAddFirmware(ctx, db.sql, f, db.clock.Now())
}

func (db *RomDB) PurgeFirmware(ctx context.Context, platformID int64, keepFileNames []string) (int64, error) {
	return sqlPurgeFirmware(ctx, db.sql, platformID, keepFileNames)
}
