// Auscultor - Shared Playlist Engagement Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auscultor

package spotify

import (
	"errors"
	"fmt"
)

// UpstreamError indicates a transient failure talking to the streaming
// provider: transport error, 5xx, or exhausted rate-limit retries. The sweep
// skips the affected connection and retries on the next pass.
type UpstreamError struct {
	Operation  string
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("spotify %s failed with status %d", e.Operation, e.StatusCode)
	}
	return fmt.Sprintf("spotify %s failed: %v", e.Operation, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// AuthError indicates the provider rejected credentials: a refresh token was
// revoked or the app credentials are wrong. Terminal for the connection this
// pass; the connection is never auto-deactivated, the listener may
// re-authorize later.
type AuthError struct {
	Operation string
	Err       error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("spotify %s auth failed: %v", e.Operation, e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// IsAuthError reports whether err is an AuthError anywhere in its chain.
func IsAuthError(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// IsUpstreamError reports whether err is an UpstreamError anywhere in its chain.
func IsUpstreamError(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue)
}
