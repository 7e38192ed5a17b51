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
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
)

// Request is what a caller asks a scan to do. Empty filters mean no
// filtering.
type Request struct {
	ScanType       ScanType `json:"scanType"       mapstructure:"scan_type"        validate:"required,oneof=new_platforms quick unmatched update complete hashes"`
	PlatformIDs    []int64  `json:"platformIds"    mapstructure:"platform_ids"     validate:"dive,gt=0"`
	SelectedRomIDs []int64  `json:"selectedRomIds" mapstructure:"selected_rom_ids" validate:"dive,gt=0"`
	Providers      []string `json:"providers"      mapstructure:"providers"        validate:"dive,required"`
}

// Stats are the running counters of a scan.
type Stats struct {
	ScannedPlatforms    int `json:"scannedPlatforms"`
	AddedPlatforms      int `json:"addedPlatforms"`
	IdentifiedPlatforms int `json:"identifiedPlatforms"`
	ScannedRoms         int `json:"scannedRoms"`
	AddedRoms           int `json:"addedRoms"`
	IdentifiedRoms      int `json:"identifiedRoms"`
	ScannedFirmware     int `json:"scannedFirmware"`
	AddedFirmware       int `json:"addedFirmware"`
}

var requestValidator = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the request fields.
func (r *Request) Validate() error {
	if err := requestValidator.Struct(r); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			msgs := make([]string, 0, len(validationErrors))
			for _, fe := range validationErrors {
				msgs = append(msgs, formatValidationError(fe))
			}
			return fmt.Errorf("%w: %s", ErrInvalidRequest, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}

func formatValidationError(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}

// DecodeRequest builds a request from loosely typed job arguments, such as
// a decoded JSON object, and validates it.
func DecodeRequest(args map[string]any) (Request, error) {
	var req Request
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &req,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToSliceHookFunc(","),
			lowerScanTypeHook(),
		),
	})
	if err != nil {
		return req, fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := decoder.Decode(args); err != nil {
		return req, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if err := req.Validate(); err != nil {
		return req, err
	}
	return req, nil
}

func lowerScanTypeHook() mapstructure.DecodeHookFuncType {
	return func(_, to reflect.Type, data any) (any, error) {
		s, ok := data.(string)
		if !ok || to != reflect.TypeFor[ScanType]() {
			return data, nil
		}
		return strings.ToLower(strings.TrimSpace(s)), nil
	}
}
