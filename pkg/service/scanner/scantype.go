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

// ScanType picks which ROMs a scan sends back through the resolver.
type ScanType string

const (
	// ScanNewPlatforms only scans platform folders not in the store yet.
	ScanNewPlatforms ScanType = "new_platforms"
	// ScanQuick identifies ROMs not in the store yet.
	ScanQuick ScanType = "quick"
	// ScanUnmatched retries ROMs no provider has matched.
	ScanUnmatched ScanType = "unmatched"
	// ScanUpdate refreshes metadata of ROMs that were already matched.
	ScanUpdate ScanType = "update"
	// ScanComplete identifies every ROM again.
	ScanComplete ScanType = "complete"
	// ScanHashes recomputes hashes of every ROM without calling providers.
	ScanHashes ScanType = "hashes"
)

// ScanTypes lists every valid scan type.
var ScanTypes = []ScanType{
	ScanNewPlatforms,
	ScanQuick,
	ScanUnmatched,
	ScanUpdate,
	ScanComplete,
	ScanHashes,
}

// ShouldReidentify decides whether a ROM found on disk is processed by a
// scan. A ROM explicitly selected in the request is always processed.
//
//	type            absent  unmatched  matched
//	new_platforms   yes     no         no
//	quick           yes     no         no
//	unmatched       no      yes        no
//	update          no      no         yes
//	complete        yes     yes        yes
//	hashes          yes     yes        yes
func ShouldReidentify(scanType ScanType, romExists, isIdentified, selected bool) bool {
	if selected {
		return true
	}
	switch scanType {
	case ScanNewPlatforms, ScanQuick:
		return !romExists
	case ScanUnmatched:
		return romExists && !isIdentified
	case ScanUpdate:
		return romExists && isIdentified
	case ScanComplete, ScanHashes:
		return true
	default:
		return false
	}
}
