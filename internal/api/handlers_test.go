// Auscultor - Shared Playlist Engagement Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auscultor

package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/auscultor/internal/config"
	"github.com/tomtom215/auscultor/internal/database"
	"github.com/tomtom215/auscultor/internal/daybucket"
	"github.com/tomtom215/auscultor/internal/models"
)

const testCronKey = "test-cron-key"

// fakeSweeper satisfies Sweeper with canned results.
type fakeSweeper struct {
	sweepSummary     *models.SweepSummary
	sweepErr         error
	retentionSummary *models.RetentionSweepSummary
	retentionErr     error
	refreshSummary   *models.PlaylistRefreshSummary
	refreshErr       error
	lastSweep        time.Time
	pollCalls        int
}

func (f *fakeSweeper) TriggerSweep(_ context.Context) (*models.SweepSummary, error) {
	f.pollCalls++
	return f.sweepSummary, f.sweepErr
}

func (f *fakeSweeper) RunRetentionSweep(_ context.Context) (*models.RetentionSweepSummary, error) {
	return f.retentionSummary, f.retentionErr
}

func (f *fakeSweeper) RefreshPlaylists(_ context.Context) (*models.PlaylistRefreshSummary, error) {
	return f.refreshSummary, f.refreshErr
}

func (f *fakeSweeper) LastSweepTime() time.Time {
	return f.lastSweep
}

func testAPIConfig() *config.Config {
	return &config.Config{
		API: config.APIConfig{DefaultDays: 7, MaxDays: 90},
		Analytics: config.AnalyticsConfig{
			Timezone:      "UTC",
			RetentionDays: 45,
		},
		Security: config.SecurityConfig{
			CronKey:           testCronKey,
			RateLimitDisabled: true,
		},
	}
}

func setupTestRouter(t *testing.T) (http.Handler, *database.DB, *fakeSweeper) {
	t.Helper()

	db, err := database.New(&config.DatabaseConfig{Path: ":memory:", MaxMemory: "1GB"})
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("Failed to close test database: %v", err)
		}
	})

	bucket, err := daybucket.New("UTC")
	if err != nil {
		t.Fatalf("Failed to create bucketer: %v", err)
	}

	sweeper := &fakeSweeper{
		sweepSummary:     &models.SweepSummary{Processed: 2, PlaysAdded: 5},
		retentionSummary: &models.RetentionSweepSummary{Examined: 3, Deactivated: 1},
		refreshSummary:   &models.PlaylistRefreshSummary{Links: 1, Refreshed: 1},
	}

	cfg := testAPIConfig()
	handler := NewHandler(db, sweeper, cfg, bucket)
	return NewRouter(handler, cfg).Setup(), db, sweeper
}

func doRequest(t *testing.T, handler http.Handler, method, path, cronKey string) (*httptest.ResponseRecorder, *models.APIResponse) {
	t.Helper()

	req := httptest.NewRequest(method, path, nil)
	if cronKey != "" {
		req.Header.Set("X-CRON-KEY", cronKey)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var resp models.APIResponse
	if rec.Body.Len() > 0 && rec.Header().Get("Content-Type") == "application/json" {
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("Failed to decode response body: %v", err)
		}
	}
	return rec, &resp
}

func seedTestLink(t *testing.T, db *database.DB) *models.TrackingLink {
	t.Helper()
	link := &models.TrackingLink{
		Slug:         "api-test-" + uuid.NewString()[:8],
		PlaylistID:   "playlist-1",
		PlaylistName: "API Test Playlist",
	}
	if err := db.UpsertTrackingLink(context.Background(), link); err != nil {
		t.Fatalf("Failed to seed link: %v", err)
	}
	return link
}

func TestHealthLive(t *testing.T) {
	handler, _, _ := setupTestRouter(t)

	rec, resp := doRequest(t, handler, http.MethodGet, "/api/v1/health/live", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if resp.Status != "success" {
		t.Errorf("Expected success status, got %q", resp.Status)
	}
}

func TestHealthReady(t *testing.T) {
	handler, _, sweeper := setupTestRouter(t)
	sweeper.lastSweep = time.Now()

	rec, resp := doRequest(t, handler, http.MethodGet, "/api/v1/health/ready", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	data, ok := resp.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("Expected object data, got %T", resp.Data)
	}
	if data["status"] != "ready" {
		t.Errorf("Expected ready status, got %v", data["status"])
	}
	if data["database_connected"] != true {
		t.Error("Expected database_connected true")
	}
	if data["last_sweep_time"] == nil {
		t.Error("Expected last_sweep_time to be set")
	}
}

func TestHealthReadyDegradedWhenDatabaseDown(t *testing.T) {
	db, err := database.New(&config.DatabaseConfig{Path: ":memory:", MaxMemory: "1GB"})
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Failed to close database: %v", err)
	}

	bucket, err := daybucket.New("UTC")
	if err != nil {
		t.Fatalf("Failed to create bucketer: %v", err)
	}
	cfg := testAPIConfig()
	handler := NewRouter(NewHandler(db, &fakeSweeper{}, cfg, bucket), cfg).Setup()

	rec, _ := doRequest(t, handler, http.MethodGet, "/api/v1/health/ready", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503, got %d", rec.Code)
	}
}

func TestJobEndpointsRequireCronKey(t *testing.T) {
	handler, _, sweeper := setupTestRouter(t)

	paths := []string{
		"/api/v1/jobs/poll",
		"/api/v1/jobs/retention-sweep",
		"/api/v1/jobs/refresh-playlists",
	}
	for _, path := range paths {
		t.Run(path, func(t *testing.T) {
			rec, _ := doRequest(t, handler, http.MethodPost, path, "")
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("Expected 401 without key, got %d", rec.Code)
			}
			rec, _ = doRequest(t, handler, http.MethodPost, path, "wrong-key")
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("Expected 401 with wrong key, got %d", rec.Code)
			}
		})
	}
	if sweeper.pollCalls != 0 {
		t.Errorf("Rejected triggers must have no side effects, got %d sweep calls", sweeper.pollCalls)
	}
}

func TestTriggerPoll(t *testing.T) {
	handler, _, sweeper := setupTestRouter(t)

	rec, resp := doRequest(t, handler, http.MethodPost, "/api/v1/jobs/poll", testCronKey)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if resp.Status != "success" {
		t.Errorf("Expected success status, got %q", resp.Status)
	}
	if sweeper.pollCalls != 1 {
		t.Errorf("Expected 1 sweep call, got %d", sweeper.pollCalls)
	}

	data, ok := resp.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("Expected object data, got %T", resp.Data)
	}
	if data["plays_added"] != float64(5) {
		t.Errorf("Expected plays_added 5, got %v", data["plays_added"])
	}
}

func TestTriggerPollFailure(t *testing.T) {
	handler, _, sweeper := setupTestRouter(t)
	sweeper.sweepSummary = nil
	sweeper.sweepErr = errors.New("database locked")

	rec, resp := doRequest(t, handler, http.MethodPost, "/api/v1/jobs/poll", testCronKey)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("Expected 500, got %d", rec.Code)
	}
	if resp.Error == nil || resp.Error.Code != "SWEEP_FAILED" {
		t.Errorf("Expected SWEEP_FAILED error, got %+v", resp.Error)
	}
}

func TestTriggerRetentionSweep(t *testing.T) {
	handler, _, _ := setupTestRouter(t)

	rec, resp := doRequest(t, handler, http.MethodPost, "/api/v1/jobs/retention-sweep", testCronKey)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	data, ok := resp.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("Expected object data, got %T", resp.Data)
	}
	if data["deactivated"] != float64(1) {
		t.Errorf("Expected deactivated 1, got %v", data["deactivated"])
	}
}

func TestTriggerRefreshPlaylists(t *testing.T) {
	handler, _, _ := setupTestRouter(t)

	rec, resp := doRequest(t, handler, http.MethodPost, "/api/v1/jobs/refresh-playlists", testCronKey)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if resp.Status != "success" {
		t.Errorf("Expected success status, got %q", resp.Status)
	}
}

func TestLinkMetrics(t *testing.T) {
	handler, db, _ := setupTestRouter(t)
	link := seedTestLink(t, db)

	rec, resp := doRequest(t, handler, http.MethodGet, "/api/v1/links/"+link.ID.String()+"/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	data, ok := resp.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("Expected object data, got %T", resp.Data)
	}
	if data["totals"] == nil || data["last_7_days"] == nil {
		t.Errorf("Expected totals and last_7_days in response, got %v", data)
	}
}

func TestLinkMetricsNotFound(t *testing.T) {
	handler, _, _ := setupTestRouter(t)

	rec, resp := doRequest(t, handler, http.MethodGet, "/api/v1/links/"+uuid.NewString()+"/metrics", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("Expected 404, got %d", rec.Code)
	}
	if resp.Error == nil || resp.Error.Code != "NOT_FOUND" {
		t.Errorf("Expected NOT_FOUND error, got %+v", resp.Error)
	}
}

func TestLinkMetricsInvalidID(t *testing.T) {
	handler, _, _ := setupTestRouter(t)

	rec, resp := doRequest(t, handler, http.MethodGet, "/api/v1/links/not-a-uuid/metrics", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", rec.Code)
	}
	if resp.Error == nil || resp.Error.Code != "VALIDATION_ERROR" {
		t.Errorf("Expected VALIDATION_ERROR, got %+v", resp.Error)
	}
}

func TestLinkDaily(t *testing.T) {
	handler, db, _ := setupTestRouter(t)
	link := seedTestLink(t, db)

	rec, resp := doRequest(t, handler, http.MethodGet, "/api/v1/links/"+link.ID.String()+"/daily?days=5", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	series, ok := resp.Data.([]interface{})
	if !ok {
		t.Fatalf("Expected array data, got %T", resp.Data)
	}
	if len(series) != 5 {
		t.Errorf("Expected 5 zero-filled days, got %d", len(series))
	}
}

func TestLinkDailyDaysValidation(t *testing.T) {
	handler, db, _ := setupTestRouter(t)
	link := seedTestLink(t, db)
	base := "/api/v1/links/" + link.ID.String() + "/daily"

	tests := []struct {
		name       string
		query      string
		wantStatus int
	}{
		{"default", "", http.StatusOK},
		{"valid", "?days=30", http.StatusOK},
		{"zero", "?days=0", http.StatusBadRequest},
		{"negative", "?days=-1", http.StatusBadRequest},
		{"over max", "?days=91", http.StatusBadRequest},
		{"not a number", "?days=week", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, _ := doRequest(t, handler, http.MethodGet, base+tt.query, "")
			if rec.Code != tt.wantStatus {
				t.Errorf("Expected %d, got %d", tt.wantStatus, rec.Code)
			}
		})
	}
}

func TestLinkRetention(t *testing.T) {
	handler, db, _ := setupTestRouter(t)
	link := seedTestLink(t, db)

	rec, resp := doRequest(t, handler, http.MethodGet, "/api/v1/links/"+link.ID.String()+"/retention?days=7", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	cohorts, ok := resp.Data.([]interface{})
	if !ok {
		t.Fatalf("Expected array data, got %T", resp.Data)
	}
	// One cohort per window day, empty cohorts included.
	if len(cohorts) != 7 {
		t.Errorf("Expected 7 cohorts, got %d", len(cohorts))
	}
}

func TestConnectionMetricsNotFound(t *testing.T) {
	handler, _, _ := setupTestRouter(t)

	rec, resp := doRequest(t, handler, http.MethodGet, "/api/v1/connections/"+uuid.NewString()+"/metrics", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("Expected 404, got %d", rec.Code)
	}
	if resp.Error == nil || resp.Error.Code != "NOT_FOUND" {
		t.Errorf("Expected NOT_FOUND error, got %+v", resp.Error)
	}
}

func TestConnectionMetrics(t *testing.T) {
	handler, db, _ := setupTestRouter(t)
	link := seedTestLink(t, db)

	conn := &models.Connection{
		LinkID:       link.ID,
		ListenerID:   "listener-1",
		RefreshToken: "rt-1",
		ConnectedAt:  time.Now().Add(-time.Hour),
		IsActive:     true,
	}
	if err := db.InsertConnection(context.Background(), conn); err != nil {
		t.Fatalf("Failed to seed connection: %v", err)
	}

	rec, resp := doRequest(t, handler, http.MethodGet, "/api/v1/connections/"+conn.ID.String()+"/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	data, ok := resp.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("Expected object data, got %T", resp.Data)
	}
	if data["tracks_played"] != float64(0) {
		t.Errorf("Expected tracks_played 0, got %v", data["tracks_played"])
	}
}

func TestMetricsEndpointExposed(t *testing.T) {
	handler, _, _ := setupTestRouter(t)

	rec, _ := doRequest(t, handler, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
}

func TestRequestIDHeaderOnResponses(t *testing.T) {
	handler, _, _ := setupTestRouter(t)

	rec, _ := doRequest(t, handler, http.MethodGet, "/api/v1/health/live", "")
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("Expected X-Request-ID header on response")
	}
}
