// Auscultor - Shared Playlist Engagement Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auscultor

package daybucket

import (
	"testing"
	"time"
)

const testZone = "Europe/Copenhagen"

func newTestBucketer(t *testing.T, now time.Time) *Bucketer {
	t.Helper()
	b, err := NewWithClock(testZone, func() time.Time { return now })
	if err != nil {
		t.Fatalf("NewWithClock(%q) failed: %v", testZone, err)
	}
	return b
}

func TestNewRejectsUnknownZone(t *testing.T) {
	t.Parallel()

	if _, err := New("Not/AZone"); err == nil {
		t.Error("Expected error for unknown timezone, got nil")
	}
}

func TestKey(t *testing.T) {
	t.Parallel()

	b, err := New(testZone)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	tests := []struct {
		name string
		in   time.Time
		want time.Time
	}{
		{
			name: "winter midday",
			in:   time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC),
			want: time.Date(2026, 1, 14, 23, 0, 0, 0, time.UTC),
		},
		{
			name: "late evening stays on local day despite UTC rollover",
			// 23:30 UTC on Jan 15 is 00:30 local on Jan 16.
			in:   time.Date(2026, 1, 15, 23, 30, 0, 0, time.UTC),
			want: time.Date(2026, 1, 15, 23, 0, 0, 0, time.UTC),
		},
		{
			name: "just before local midnight",
			// 22:59 UTC on Jan 15 is 23:59 local on Jan 15.
			in:   time.Date(2026, 1, 15, 22, 59, 0, 0, time.UTC),
			want: time.Date(2026, 1, 14, 23, 0, 0, 0, time.UTC),
		},
		{
			name: "summer midday uses CEST offset",
			in:   time.Date(2026, 7, 10, 12, 0, 0, 0, time.UTC),
			want: time.Date(2026, 7, 9, 22, 0, 0, 0, time.UTC),
		},
		{
			name: "spring forward day",
			// March 29 2026 is the CET to CEST transition day.
			in:   time.Date(2026, 3, 29, 12, 0, 0, 0, time.UTC),
			want: time.Date(2026, 3, 28, 23, 0, 0, 0, time.UTC),
		},
		{
			name: "fall back day",
			// October 25 2026 is the CEST to CET transition day.
			in:   time.Date(2026, 10, 25, 12, 0, 0, 0, time.UTC),
			want: time.Date(2026, 10, 24, 22, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := b.Key(tt.in)
			if !got.Equal(tt.want) {
				t.Errorf("Key(%v) = %v, want %v", tt.in, got, tt.want)
			}
			if got.Location() != time.UTC {
				t.Errorf("Key(%v) returned non-UTC location %v", tt.in, got.Location())
			}
		})
	}
}

func TestRangeLengthAcrossDST(t *testing.T) {
	t.Parallel()

	b, err := New(testZone)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	tests := []struct {
		name string
		in   time.Time
		want time.Duration
	}{
		{"normal winter day", time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC), 24 * time.Hour},
		{"spring forward day is 23h", time.Date(2026, 3, 29, 12, 0, 0, 0, time.UTC), 23 * time.Hour},
		{"fall back day is 25h", time.Date(2026, 10, 25, 12, 0, 0, 0, time.UTC), 25 * time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end := b.Range(tt.in)
			if got := end.Sub(start); got != tt.want {
				t.Errorf("Range(%v) length = %v, want %v", tt.in, got, tt.want)
			}
			if tt.in.Before(start) || !tt.in.Before(end) {
				t.Errorf("Range(%v) = [%v, %v) does not contain the input", tt.in, start, end)
			}
			if !start.Equal(b.Key(tt.in)) {
				t.Errorf("Range start %v differs from Key %v", start, b.Key(tt.in))
			}
		})
	}
}

func TestTodayAndIsToday(t *testing.T) {
	t.Parallel()

	// 00:30 local on Jan 16 (23:30 UTC Jan 15).
	now := time.Date(2026, 1, 15, 23, 30, 0, 0, time.UTC)
	b := newTestBucketer(t, now)

	wantToday := time.Date(2026, 1, 15, 23, 0, 0, 0, time.UTC)
	if got := b.Today(); !got.Equal(wantToday) {
		t.Errorf("Today() = %v, want %v", got, wantToday)
	}

	if !b.IsToday(time.Date(2026, 1, 16, 10, 0, 0, 0, time.UTC)) {
		t.Error("Expected midday Jan 16 local to be today")
	}
	if b.IsToday(time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)) {
		t.Error("Expected midday Jan 15 local to not be today")
	}
}

func TestLastN(t *testing.T) {
	t.Parallel()

	// Two days after the spring DST transition.
	now := time.Date(2026, 3, 31, 10, 0, 0, 0, time.UTC)
	b := newTestBucketer(t, now)

	keys := b.LastN(4)
	if len(keys) != 4 {
		t.Fatalf("LastN(4) returned %d keys, want 4", len(keys))
	}

	want := []time.Time{
		time.Date(2026, 3, 27, 23, 0, 0, 0, time.UTC), // Mar 28 local
		time.Date(2026, 3, 28, 23, 0, 0, 0, time.UTC), // Mar 29 local, transition day
		time.Date(2026, 3, 29, 22, 0, 0, 0, time.UTC), // Mar 30 local, now CEST
		time.Date(2026, 3, 30, 22, 0, 0, 0, time.UTC), // Mar 31 local
	}
	for i, k := range keys {
		if !k.Equal(want[i]) {
			t.Errorf("LastN(4)[%d] = %v, want %v", i, k, want[i])
		}
	}

	// The gap spanning the transition is 23h, the rest are 24h.
	if gap := keys[2].Sub(keys[1]); gap != 23*time.Hour {
		t.Errorf("Expected 23h gap across DST transition, got %v", gap)
	}
	if gap := keys[1].Sub(keys[0]); gap != 24*time.Hour {
		t.Errorf("Expected 24h gap on normal days, got %v", gap)
	}

	if got := b.LastN(0); got != nil {
		t.Errorf("LastN(0) = %v, want nil", got)
	}
}
