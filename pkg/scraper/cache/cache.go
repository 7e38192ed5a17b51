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

// Package cache is the key-value store shared by metadata providers and
// the local lookup indices. Entries carry an expiry, and whole index
// batches are swapped in a single transaction.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	bolt "go.etcd.io/bbolt"
)

const (
	BucketEntries = "entries"
	batchPrefix   = "batch:"

	DefaultTTL     = 7 * 24 * time.Hour
	DefaultMissTTL = 24 * time.Hour
)

var ErrClosed = errors.New("cache is closed")

// Status is the outcome of a cache lookup.
type Status int

const (
	// Absent means the key is unknown or expired.
	Absent Status = iota
	// Hit means a value was found and decoded.
	Hit
	// Miss means a previous lookup found nothing and that was cached.
	Miss
)

type entry struct {
	Value   json.RawMessage `json:"v,omitempty"`
	Expires int64           `json:"e"`
	Miss    bool            `json:"m,omitempty"`
}

type Store struct {
	bdb   *bolt.DB
	clock clockwork.Clock
}

// Key builds a cache key in the provider:kind:key form.
func Key(provider, kind, key string) string {
	return strings.ToLower(provider) + ":" + kind + ":" + key
}

// Open opens or creates the cache database at path.
func Open(path string, clock clockwork.Clock) (*Store, error) {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(BucketEntries))
		if err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to init bolt database: %w", err)
	}

	return &Store{bdb: db, clock: clock}, nil
}

func (s *Store) Close() error {
	if err := s.bdb.Close(); err != nil {
		return fmt.Errorf("failed to close bolt database: %w", err)
	}
	return nil
}

// Get looks up key and decodes a hit into dst.
func (s *Store) Get(key string, dst any) (Status, error) {
	var raw []byte
	err := s.bdb.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(BucketEntries))
		if b == nil {
			return ErrClosed
		}
		if v := b.Get([]byte(key)); v != nil {
			raw = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return Absent, fmt.Errorf("failed to view bolt database: %w", err)
	}
	if raw == nil {
		return Absent, nil
	}

	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("dropping corrupt cache entry")
		return Absent, nil
	}
	if e.Expires > 0 && s.clock.Now().Unix() >= e.Expires {
		return Absent, nil
	}
	if e.Miss {
		return Miss, nil
	}
	if dst != nil {
		if err := json.Unmarshal(e.Value, dst); err != nil {
			return Absent, fmt.Errorf("failed to decode cache value: %w", err)
		}
	}
	return Hit, nil
}

func (s *Store) put(key string, e entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}
	err = s.bdb.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(BucketEntries))
		if b == nil {
			return ErrClosed
		}
		return b.Put([]byte(key), data)
	})
	if err != nil {
		return fmt.Errorf("failed to update bolt database: %w", err)
	}
	return nil
}

func (s *Store) expiry(ttl time.Duration) int64 {
	if ttl <= 0 {
		return 0
	}
	return s.clock.Now().Add(ttl).Unix()
}

// Set stores v under key for ttl. A zero ttl never expires.
func (s *Store) Set(key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode cache value: %w", err)
	}
	return s.put(key, entry{Value: data, Expires: s.expiry(ttl)})
}

// SetMiss records that a lookup for key found nothing.
func (s *Store) SetMiss(key string, ttl time.Duration) error {
	return s.put(key, entry{Miss: true, Expires: s.expiry(ttl)})
}

func (s *Store) Delete(key string) error {
	err := s.bdb.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(BucketEntries))
		if b == nil {
			return ErrClosed
		}
		return b.Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("failed to update bolt database: %w", err)
	}
	return nil
}

// PurgeExpired removes every expired entry and returns how many were
// removed.
func (s *Store) PurgeExpired() (int, error) {
	now := s.clock.Now().Unix()
	removed := 0
	err := s.bdb.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(BucketEntries))
		if b == nil {
			return ErrClosed
		}
		var stale [][]byte
		err := b.ForEach(func(k, v []byte) error {
			var e entry
			if err := json.Unmarshal(v, &e); err != nil || (e.Expires > 0 && now >= e.Expires) {
				stale = append(stale, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		removed = len(stale)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to purge cache: %w", err)
	}
	return removed, nil
}

func batchBucket(name string) []byte {
	return []byte(batchPrefix + name)
}

// ReplaceBatch swaps the whole contents of a named batch. Readers see
// either the old or the new batch, never a mix.
func (s *Store) ReplaceBatch(name string, values map[string]string) error {
	err := s.bdb.Update(func(tx *bolt.Tx) error {
		bucket := batchBucket(name)
		if tx.Bucket(bucket) != nil {
			if err := tx.DeleteBucket(bucket); err != nil {
				return fmt.Errorf("failed to drop batch: %w", err)
			}
		}
		b, err := tx.CreateBucket(bucket)
		if err != nil {
			return fmt.Errorf("failed to create batch: %w", err)
		}
		for k, v := range values {
			if err := b.Put([]byte(k), []byte(v)); err != nil {
				return fmt.Errorf("failed to write batch key %s: %w", k, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to replace batch %s: %w", name, err)
	}
	return nil
}

// BatchLookup returns the value of key in a named batch.
func (s *Store) BatchLookup(name, key string) (string, bool, error) {
	var (
		val   string
		found bool
	)
	err := s.bdb.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(batchBucket(name))
		if b == nil {
			return nil
		}
		if v := b.Get([]byte(key)); v != nil {
			val = string(v)
			found = true
		}
		return nil
	})
	if err != nil {
		return "", false, fmt.Errorf("failed to view bolt database: %w", err)
	}
	return val, found, nil
}

// BatchLen returns the number of keys in a named batch. A batch that was
// never written has zero keys.
func (s *Store) BatchLen(name string) (int, error) {
	n := 0
	err := s.bdb.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(batchBucket(name))
		if b == nil {
			return nil
		}
		n = b.Stats().KeyN
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to view bolt database: %w", err)
	}
	return n, nil
}
