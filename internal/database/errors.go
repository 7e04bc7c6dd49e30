// Auscultor - Shared Playlist Engagement Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auscultor

package database

import "errors"

// Sentinel errors returned by lookups so the API layer can map them to 404
// responses with errors.Is.
var (
	ErrLinkNotFound       = errors.New("tracking link not found")
	ErrConnectionNotFound = errors.New("connection not found")
)
