// Auscultor - Shared Playlist Engagement Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auscultor

// Package daybucket maps instants to canonical day keys in a configured
// timezone.
//
// All aggregation in Auscultor is keyed by local calendar day in the target
// audience's timezone, not by UTC day. A play at 23:30 local time belongs to
// that local day even though it may fall on the next UTC day. The canonical
// key for a day is the UTC instant of local midnight, so keys remain
// comparable and storable as plain timestamps while still respecting DST:
// a key is 23 or 25 hours before the next key across transitions.
package daybucket

import (
	"fmt"
	"time"
)

// Bucketer converts instants to day keys for one timezone. The zero value is
// not usable; construct with New. Safe for concurrent use.
type Bucketer struct {
	loc *time.Location

	// now is injectable for tests. Defaults to time.Now.
	now func() time.Time
}

// New returns a Bucketer for the named IANA timezone, such as
// "Europe/Copenhagen". Returns an error if the zone is unknown.
func New(tz string) (*Bucketer, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", tz, err)
	}
	return &Bucketer{loc: loc, now: time.Now}, nil
}

// NewWithClock returns a Bucketer with an injected clock. Used by tests and
// by the sweep manager when replaying historical data.
func NewWithClock(tz string, now func() time.Time) (*Bucketer, error) {
	b, err := New(tz)
	if err != nil {
		return nil, err
	}
	b.now = now
	return b, nil
}

// Location returns the bucketer's timezone.
func (b *Bucketer) Location() *time.Location {
	return b.loc
}

// Key returns the canonical day key for t: the UTC instant of midnight of
// t's local calendar day in the bucketer's timezone.
//
// The conversion goes through time.Date in the target location rather than
// subtracting a fixed offset, so days around DST transitions key correctly.
func (b *Bucketer) Key(t time.Time) time.Time {
	local := t.In(b.loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, b.loc).UTC()
}

// Range returns the half-open UTC interval [start, end) covered by the local
// day containing t. The interval is 23, 24 or 25 hours long depending on DST.
func (b *Bucketer) Range(t time.Time) (start, end time.Time) {
	local := t.In(b.loc)
	start = time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, b.loc).UTC()
	end = time.Date(local.Year(), local.Month(), local.Day()+1, 0, 0, 0, 0, b.loc).UTC()
	return start, end
}

// Today returns the day key for the current instant.
func (b *Bucketer) Today() time.Time {
	return b.Key(b.now())
}

// IsToday reports whether t falls within the current local day.
func (b *Bucketer) IsToday(t time.Time) bool {
	return b.Key(t).Equal(b.Today())
}

// LastN returns the day keys for the trailing n local days ending with today,
// in ascending order. n <= 0 yields an empty slice.
//
// Keys are computed per day via calendar arithmetic in the target location,
// never by subtracting 24h multiples, so the slice is DST-correct.
func (b *Bucketer) LastN(n int) []time.Time {
	if n <= 0 {
		return nil
	}
	local := b.now().In(b.loc)
	keys := make([]time.Time, 0, n)
	for i := n - 1; i >= 0; i-- {
		keys = append(keys, time.Date(local.Year(), local.Month(), local.Day()-i, 0, 0, 0, 0, b.loc).UTC())
	}
	return keys
}
