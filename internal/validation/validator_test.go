// Auscultor - Shared Playlist Engagement Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auscultor

package validation

import (
	"strings"
	"testing"
)

type dailyRequest struct {
	LinkID string `validate:"required,uuid4"`
	Days   int    `validate:"min=1,max=365"`
}

func TestValidateStructPasses(t *testing.T) {
	t.Parallel()

	req := dailyRequest{LinkID: "a3bb189e-8bf9-4888-9912-ace4e6543002", Days: 30}
	if err := ValidateStruct(&req); err != nil {
		t.Errorf("Expected valid struct, got: %v", err)
	}
}

func TestValidateStructSingleError(t *testing.T) {
	t.Parallel()

	req := dailyRequest{LinkID: "not-a-uuid", Days: 30}
	verr := ValidateStruct(&req)
	if verr == nil {
		t.Fatal("Expected validation error for bad UUID")
	}
	if len(verr.Errors()) != 1 {
		t.Fatalf("Expected 1 error, got %d", len(verr.Errors()))
	}

	apiErr := verr.ToAPIError()
	if apiErr.Code != "VALIDATION_ERROR" {
		t.Errorf("Code = %q, want VALIDATION_ERROR", apiErr.Code)
	}
	if !strings.Contains(apiErr.Message, "UUID") {
		t.Errorf("Expected message to mention UUID, got %q", apiErr.Message)
	}
	if apiErr.Details["field"] != "LinkID" {
		t.Errorf("Details field = %v, want LinkID", apiErr.Details["field"])
	}
}

func TestValidateStructMultipleErrors(t *testing.T) {
	t.Parallel()

	req := dailyRequest{LinkID: "", Days: 1000}
	verr := ValidateStruct(&req)
	if verr == nil {
		t.Fatal("Expected validation errors")
	}
	if len(verr.Errors()) != 2 {
		t.Fatalf("Expected 2 errors, got %d", len(verr.Errors()))
	}

	apiErr := verr.ToAPIError()
	fields, ok := apiErr.Details["fields"].([]map[string]interface{})
	if !ok {
		t.Fatalf("Expected fields list in details, got %T", apiErr.Details["fields"])
	}
	if len(fields) != 2 {
		t.Errorf("Expected 2 field entries, got %d", len(fields))
	}
	if !strings.Contains(apiErr.Message, "LinkID") || !strings.Contains(apiErr.Message, "Days") {
		t.Errorf("Expected combined message to mention both fields, got %q", apiErr.Message)
	}
}

func TestTranslateMessages(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		req  interface{}
		want string
	}{
		{
			name: "required",
			req:  &dailyRequest{Days: 5},
			want: "LinkID is required",
		},
		{
			name: "max exceeded",
			req:  &dailyRequest{LinkID: "a3bb189e-8bf9-4888-9912-ace4e6543002", Days: 400},
			want: "Days must be at most 365",
		},
		{
			name: "min not reached",
			req:  &dailyRequest{LinkID: "a3bb189e-8bf9-4888-9912-ace4e6543002", Days: 0},
			want: "Days must be at least 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verr := ValidateStruct(tt.req)
			if verr == nil {
				t.Fatal("Expected validation error")
			}
			if got := verr.Error(); !strings.Contains(got, tt.want) {
				t.Errorf("Error() = %q, want substring %q", got, tt.want)
			}
		})
	}
}

func TestGetValidatorReturnsSameInstance(t *testing.T) {
	t.Parallel()

	if GetValidator() != GetValidator() {
		t.Error("Expected GetValidator to return the singleton instance")
	}
}
