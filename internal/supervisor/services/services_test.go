// Auscultor - Shared Playlist Engagement Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auscultor

package services

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"
)

// mockHTTPServer implements HTTPServer for testing.
type mockHTTPServer struct {
	listenErr     error
	shutdownErr   error
	shutdownCalls atomic.Int32
	closed        chan struct{}
}

func newMockHTTPServer() *mockHTTPServer {
	return &mockHTTPServer{closed: make(chan struct{})}
}

func (m *mockHTTPServer) ListenAndServe() error {
	if m.listenErr != nil {
		return m.listenErr
	}
	<-m.closed
	return http.ErrServerClosed
}

func (m *mockHTTPServer) Shutdown(_ context.Context) error {
	m.shutdownCalls.Add(1)
	close(m.closed)
	return m.shutdownErr
}

// mockSweepManager implements SweepManager for testing.
type mockSweepManager struct {
	startErr   error
	stopErr    error
	startCalls atomic.Int32
	stopCalls  atomic.Int32
}

func (m *mockSweepManager) Start(_ context.Context) error {
	m.startCalls.Add(1)
	return m.startErr
}

func (m *mockSweepManager) Stop() error {
	m.stopCalls.Add(1)
	return m.stopErr
}

func TestServiceInterfaces(t *testing.T) {
	t.Parallel()

	var _ suture.Service = (*HTTPServerService)(nil)
	var _ suture.Service = (*SweepService)(nil)
}

func TestHTTPServerServiceGracefulShutdown(t *testing.T) {
	t.Parallel()

	server := newMockHTTPServer()
	svc := NewHTTPServerService(server, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- svc.Serve(ctx)
	}()

	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancellation")
	}

	if server.shutdownCalls.Load() != 1 {
		t.Errorf("Expected 1 shutdown call, got %d", server.shutdownCalls.Load())
	}
}

func TestHTTPServerServiceListenFailure(t *testing.T) {
	t.Parallel()

	server := newMockHTTPServer()
	server.listenErr = errors.New("address already in use")
	svc := NewHTTPServerService(server, time.Second)

	err := svc.Serve(context.Background())
	if err == nil {
		t.Fatal("Expected error when listen fails")
	}
	if !errors.Is(err, server.listenErr) {
		t.Errorf("Expected wrapped listen error, got %v", err)
	}
}

func TestHTTPServerServiceString(t *testing.T) {
	t.Parallel()

	svc := NewHTTPServerService(newMockHTTPServer(), 0)
	if svc.String() != "http-server" {
		t.Errorf("Unexpected service name %q", svc.String())
	}
}

func TestSweepServiceLifecycle(t *testing.T) {
	t.Parallel()

	manager := &mockSweepManager{}
	svc := NewSweepService(manager)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- svc.Serve(ctx)
	}()

	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancellation")
	}

	if manager.startCalls.Load() != 1 || manager.stopCalls.Load() != 1 {
		t.Errorf("Expected 1 start and 1 stop, got %d/%d",
			manager.startCalls.Load(), manager.stopCalls.Load())
	}
}

func TestSweepServiceStartFailure(t *testing.T) {
	t.Parallel()

	manager := &mockSweepManager{startErr: errors.New("already running")}
	svc := NewSweepService(manager)

	if err := svc.Serve(context.Background()); !errors.Is(err, manager.startErr) {
		t.Errorf("Expected start error, got %v", err)
	}
	if manager.stopCalls.Load() != 0 {
		t.Error("Stop must not be called when Start fails")
	}
}
