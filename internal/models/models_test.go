// Auscultor - Shared Playlist Engagement Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auscultor

package models

import (
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// Connection JSON must never leak credential material. The token fields are
// tagged "-" and this test guards against a tag regression.
func TestConnectionJSONOmitsCredentials(t *testing.T) {
	t.Parallel()

	conn := Connection{
		ID:           uuid.New(),
		LinkID:       uuid.New(),
		ListenerID:   "listener-1",
		DisplayName:  "Test Listener",
		RefreshToken: "rt-super-secret",
		AccessToken:  "at-super-secret",
		TokenExpiry:  time.Now().Add(time.Hour),
		ConnectedAt:  time.Now(),
		IsActive:     true,
	}

	data, err := json.Marshal(conn)
	if err != nil {
		t.Fatalf("Failed to marshal Connection: %v", err)
	}

	body := string(data)
	for _, secret := range []string{"rt-super-secret", "at-super-secret", "refresh_token", "access_token", "token_expiry"} {
		if strings.Contains(body, secret) {
			t.Errorf("Connection JSON leaked %q: %s", secret, body)
		}
	}
}

func TestAPIResponseErrorOmittedOnSuccess(t *testing.T) {
	t.Parallel()

	resp := APIResponse{
		Status:   "success",
		Data:     map[string]int{"tracks_played": 3},
		Metadata: Metadata{Timestamp: time.Now()},
	}

	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("Failed to marshal APIResponse: %v", err)
	}
	if strings.Contains(string(data), `"error"`) {
		t.Errorf("Expected error field to be omitted, got %s", string(data))
	}

	var decoded APIResponse
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Failed to unmarshal APIResponse: %v", err)
	}
	if decoded.Status != "success" {
		t.Errorf("Expected status 'success', got '%s'", decoded.Status)
	}
	if decoded.Error != nil {
		t.Error("Expected error to be nil")
	}
}

func TestConnectionOptionalFieldsOmitted(t *testing.T) {
	t.Parallel()

	conn := Connection{ID: uuid.New(), LinkID: uuid.New(), ListenerID: "l", ConnectedAt: time.Now()}

	data, err := json.Marshal(conn)
	if err != nil {
		t.Fatalf("Failed to marshal Connection: %v", err)
	}

	for _, field := range []string{"ended_at", "last_polled_at", "display_name", "email"} {
		if strings.Contains(string(data), field) {
			t.Errorf("Expected %q to be omitted when unset", field)
		}
	}
}
