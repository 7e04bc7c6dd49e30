// Auscultor - Shared Playlist Engagement Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auscultor

// Package database provides the DuckDB-backed storage layer for Auscultor:
// tracking links, listener connections, play events, derived listening
// sessions, and the per-day aggregate tables that feed the read API.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/tomtom215/auscultor/internal/config"
	"github.com/tomtom215/auscultor/internal/logging"
)

const defaultQueryTimeout = 30 * time.Second

// DB wraps the DuckDB connection and caches prepared statements for hot-path
// queries (dedup lookups run once per candidate play during a sweep).
type DB struct {
	conn *sql.DB
	path string

	stmtMu    sync.RWMutex
	stmtCache map[string]*sql.Stmt
}

// New opens (or creates) the DuckDB database at cfg.Path and initializes the
// schema. ":memory:" is supported for tests.
func New(cfg *config.DatabaseConfig) (*DB, error) {
	numThreads := cfg.Threads
	if numThreads <= 0 {
		numThreads = runtime.NumCPU()
	}
	maxMemory := cfg.MaxMemory
	if maxMemory == "" {
		maxMemory = "1GB"
	}

	// Parent directory must exist before DuckDB can create the file.
	// 0750 per gosec G301.
	dbDir := filepath.Dir(cfg.Path)
	if dbDir != "" && dbDir != "." {
		if err := os.MkdirAll(dbDir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dbDir, err)
		}
	}

	connStr := fmt.Sprintf(
		"%s?access_mode=read_write&threads=%d&max_memory=%s&autoinstall_known_extensions=false&autoload_known_extensions=false",
		cfg.Path, numThreads, maxMemory,
	)

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db := &DB{
		conn:      conn,
		path:      cfg.Path,
		stmtCache: make(map[string]*sql.Stmt),
	}

	if err := db.initialize(); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	logging.Info().
		Str("path", cfg.Path).
		Int("threads", numThreads).
		Str("max_memory", maxMemory).
		Msg("Database initialized")

	return db, nil
}

// initialize creates tables and indexes, then checkpoints so the schema is
// durable before the first sweep runs.
func (db *DB) initialize() error {
	if err := db.createTables(); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	if err := db.createIndexes(); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultQueryTimeout)
	defer cancel()
	if err := db.Checkpoint(ctx); err != nil {
		logging.Warn().Err(err).Msg("Failed to checkpoint after schema initialization")
	}
	return nil
}

// Conn exposes the underlying connection for callers that need raw access
// (tests, one-off maintenance).
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Ping verifies the database connection is alive.
func (db *DB) Ping(ctx context.Context) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	return db.conn.PingContext(ctx)
}

// Checkpoint forces a WAL checkpoint.
func (db *DB) Checkpoint(ctx context.Context) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	if _, err := db.conn.ExecContext(ctx, "CHECKPOINT"); err != nil {
		return fmt.Errorf("failed to checkpoint: %w", err)
	}
	return nil
}

// Close checkpoints the WAL and closes the connection. Cached prepared
// statements are closed first.
func (db *DB) Close() error {
	db.stmtMu.Lock()
	for query, stmt := range db.stmtCache {
		if err := stmt.Close(); err != nil {
			logging.Warn().Err(err).Str("query", query).Msg("Failed to close cached statement")
		}
	}
	db.stmtCache = make(map[string]*sql.Stmt)
	db.stmtMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), defaultQueryTimeout)
	defer cancel()
	if _, err := db.conn.ExecContext(ctx, "CHECKPOINT"); err != nil {
		logging.Warn().Err(err).Msg("Failed to checkpoint database before close")
	}

	if err := db.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// ensureContext guarantees queries run under a deadline. A nil or unbounded
// context gets the default query timeout.
func (db *DB) ensureContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		return context.WithTimeout(context.Background(), defaultQueryTimeout)
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		return context.WithTimeout(ctx, defaultQueryTimeout)
	}
	return ctx, func() {}
}

// getStmt returns a cached prepared statement for query, preparing it on
// first use.
func (db *DB) getStmt(ctx context.Context, query string) (*sql.Stmt, error) {
	db.stmtMu.RLock()
	stmt, ok := db.stmtCache[query]
	db.stmtMu.RUnlock()
	if ok {
		return stmt, nil
	}

	db.stmtMu.Lock()
	defer db.stmtMu.Unlock()
	if stmt, ok = db.stmtCache[query]; ok {
		return stmt, nil
	}

	stmt, err := db.conn.PrepareContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare statement: %w", err)
	}
	db.stmtCache[query] = stmt
	return stmt, nil
}

func closeQuietly(c *sql.DB) {
	if err := c.Close(); err != nil {
		logging.Warn().Err(err).Msg("Failed to close database connection")
	}
}

// rollbackQuietly rolls back a transaction, ignoring the error returned when
// the transaction was already committed.
func rollbackQuietly(tx *sql.Tx) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		logging.Warn().Err(err).Msg("Failed to roll back transaction")
	}
}
