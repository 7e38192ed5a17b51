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
	"context"

	"github.com/rs/zerolog/log"
)

const (
	EventScanningPlatform = "scan:scanning_platform"
	EventScanningRom      = "scan:scanning_rom"
	EventRomError         = "scan:rom_error"
	EventPlatformError    = "scan:platform_error"
	EventDone             = "scan:done"
	EventDoneKO           = "scan:done_ko"
	EventCancelled        = "scan:cancelled"
)

// Event is one progress update. Status is a human readable line.
type Event struct {
	Payload any    `json:"payload,omitempty"`
	Name    string `json:"name"`
	Status  string `json:"status"`
}

// PlatformPayload is sent when a platform starts or fails.
type PlatformPayload struct {
	FSSlug string `json:"fsSlug"`
	Slug   string `json:"slug,omitempty"`
	Name   string `json:"name,omitempty"`
	Error  string `json:"error,omitempty"`
	ID     int64  `json:"id,omitempty"`
	Stats  Stats  `json:"stats"`
}

// RomPayload is sent after a ROM has been written.
type RomPayload struct {
	Platform   string `json:"platform"`
	FileName   string `json:"fileName"`
	Name       string `json:"name"`
	ID         int64  `json:"id"`
	Stats      Stats  `json:"stats"`
	Identified bool   `json:"identified"`
}

// RomErrorPayload is sent for a ROM that was found but could not be read
// or hashed. The scan carries on with the next ROM.
type RomErrorPayload struct {
	Platform string `json:"platform"`
	FileName string `json:"fileName"`
	Error    string `json:"error"`
	Stats    Stats  `json:"stats"`
}

// DonePayload ends a scan. Error is set for failed scans.
type DonePayload struct {
	Error string `json:"error,omitempty"`
	Stats Stats  `json:"stats"`
}

// ProgressSink receives scan events in order.
type ProgressSink interface {
	Emit(ctx context.Context, ev Event) error
}

// SinkFunc adapts a function to ProgressSink.
type SinkFunc func(ctx context.Context, ev Event) error

func (f SinkFunc) Emit(ctx context.Context, ev Event) error {
	return f(ctx, ev)
}

// ChannelSink sends events to a notification channel. It never blocks the
// scan: events are dropped when the channel is full.
type ChannelSink struct {
	ch chan<- Event
}

func NewChannelSink(ch chan<- Event) *ChannelSink {
	return &ChannelSink{ch: ch}
}

func (s *ChannelSink) Emit(_ context.Context, ev Event) error {
	if s.ch == nil {
		return nil
	}
	select {
	case s.ch <- ev:
	default:
		log.Debug().Str("event", ev.Name).Msg("notification channel full, dropping scan event")
	}
	return nil
}

type discardSink struct{}

func (discardSink) Emit(context.Context, Event) error { return nil }
