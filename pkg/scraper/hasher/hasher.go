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

// Package hasher computes CRC32, MD5 and SHA1 digests of ROM files in a
// single streaming pass.
package hasher

import (
	"crypto/md5" //nolint:gosec // catalogs key ROMs by MD5
	"crypto/sha1" //nolint:gosec // catalogs key ROMs by SHA1
	"encoding/hex"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"io/fs"
	"path/filepath"

	"github.com/spf13/afero"
)

// ChunkSize is the read size used while hashing. Files are never loaded
// whole.
const ChunkSize = 64 * 1024

// ErrFileNotFound is returned when a file to hash does not exist. Callers
// must not treat it as an empty hash.
var ErrFileNotFound = errors.New("file not found")

// FileHash contains all hash information for one file.
type FileHash struct {
	Name     string `json:"name"`
	CRC32    string `json:"crc32"`
	MD5      string `json:"md5"`
	SHA1     string `json:"sha1"`
	FileSize int64  `json:"fileSize"`
}

// IsZero reports whether no digest was computed.
func (h FileHash) IsZero() bool {
	return h.CRC32 == "" && h.MD5 == "" && h.SHA1 == ""
}

// HashFile computes all hashes for the file at path.
func HashFile(afs afero.Fs, path string) (FileHash, error) {
	file, err := afs.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return FileHash{}, fmt.Errorf("%w: %s: %w", ErrFileNotFound, path, err)
		}
		return FileHash{}, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() {
		_ = file.Close()
	}()

	stat, err := file.Stat()
	if err != nil {
		return FileHash{}, fmt.Errorf("failed to get file stats: %w", err)
	}
	if stat.IsDir() {
		return FileHash{}, fmt.Errorf("cannot hash directory: %s", path)
	}

	hash, err := HashReader(file)
	if err != nil {
		return FileHash{}, err
	}
	hash.Name = filepath.Base(path)
	return hash, nil
}

// HashReader computes all hashes from r, reading ChunkSize bytes at a time
// and feeding every chunk to the three digests.
func HashReader(r io.Reader) (FileHash, error) {
	crc32Hash := crc32.NewIEEE()
	md5Hash := md5.New()   //nolint:gosec // see import
	sha1Hash := sha1.New() //nolint:gosec // see import

	w := io.MultiWriter(crc32Hash, md5Hash, sha1Hash)
	buf := make([]byte, ChunkSize)

	var size int64
	for {
		n, err := r.Read(buf)
		if n > 0 {
			// hash.Hash writers never return an error
			_, _ = w.Write(buf[:n])
			size += int64(n)
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return FileHash{}, fmt.Errorf("failed to read file for hashing: %w", err)
		}
	}

	return FileHash{
		CRC32:    fmt.Sprintf("%08x", crc32Hash.Sum32()),
		MD5:      hex.EncodeToString(md5Hash.Sum(nil)),
		SHA1:     hex.EncodeToString(sha1Hash.Sum(nil)),
		FileSize: size,
	}, nil
}

// HashParts hashes each part of a multi-file ROM independently and returns
// one FileHash per part in the given order. Parts are never combined into a
// single digest because each member is verified on its own.
func HashParts(afs afero.Fs, dir string, names []string) ([]FileHash, error) {
	hashes := make([]FileHash, 0, len(names))
	for _, name := range names {
		h, err := HashFile(afs, filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("failed to hash part %s: %w", name, err)
		}
		hashes = append(hashes, h)
	}
	return hashes, nil
}

// ValidateHashes checks if the provided hashes match the file. Empty
// expected fields are not compared.
func ValidateHashes(afs afero.Fs, path string, expected FileHash) (bool, error) {
	computed, err := HashFile(afs, path)
	if err != nil {
		return false, err
	}

	if expected.CRC32 != "" && computed.CRC32 != expected.CRC32 {
		return false, nil
	}
	if expected.MD5 != "" && computed.MD5 != expected.MD5 {
		return false, nil
	}
	if expected.SHA1 != "" && computed.SHA1 != expected.SHA1 {
		return false, nil
	}
	if expected.FileSize > 0 && computed.FileSize != expected.FileSize {
		return false, nil
	}

	return true, nil
}
