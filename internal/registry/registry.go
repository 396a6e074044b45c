// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package registry maintains the process-local set of named database
// connections the table browser can operate on, together with the pointer to
// the currently active one.
package registry

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultID identifies the default application connection. It is never stored
// as a real entry.
const DefaultID = 0

// ErrNotFound is returned when an id matches neither the default connection
// nor a registered entry.
var ErrNotFound = errors.New("connection not found")

// testTimeout bounds the liveness probe in Test.
const testTimeout = 5 * time.Second

// Connection is a registered database connection.
type Connection struct {
	ID       int
	Name     string
	DSN      string
	ReadOnly bool

	pool *pgxpool.Pool
}

// Info is the display form of a registry entry. DSN credentials are redacted.
type Info struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	DSN      string `json:"dsn"`
	ReadOnly bool   `json:"read_only"`
	IsActive bool   `json:"is_active"`
}

// Registry holds registered connections and the active pointer.
// All methods are safe for concurrent use; concurrent Activate calls race
// freely and the last write wins.
type Registry struct {
	defaultPool *pgxpool.Pool
	defaultName string

	mu       sync.RWMutex
	entries  map[int]*Connection
	nextID   int
	activeID int
}

// New creates a Registry around the application's primary connection pool.
func New(defaultPool *pgxpool.Pool, defaultName string) *Registry {
	return &Registry{
		defaultPool: defaultPool,
		defaultName: defaultName,
		entries:     make(map[int]*Connection),
		nextID:      1,
		activeID:    DefaultID,
	}
}

// List returns all entries ordered by id, with entry 0 always present
// representing the default connection.
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []Info{{
		ID:       DefaultID,
		Name:     r.defaultName,
		DSN:      "(application default)",
		ReadOnly: false,
		IsActive: r.activeID == DefaultID,
	}}
	for _, c := range r.entries {
		out = append(out, Info{
			ID:       c.ID,
			Name:     c.Name,
			DSN:      redactDSN(c.DSN),
			ReadOnly: c.ReadOnly,
			IsActive: r.activeID == c.ID,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Test opens a transient connection to the DSN, runs a liveness probe and
// closes it. Registry state is never mutated.
func (r *Registry) Test(ctx context.Context, dsn string) error {
	ctx, cancel := context.WithTimeout(ctx, testTimeout)
	defer cancel()

	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return fmt.Errorf("connecting: %w", err)
	}
	defer func() { _ = conn.Close(context.Background()) }()

	if err := conn.Ping(ctx); err != nil {
		return fmt.Errorf("pinging: %w", err)
	}
	return nil
}

// Register opens and retains a connection pool under a newly assigned id.
// Liveness is not probed; callers are expected to Test first. The pool
// connects lazily on first use.
func (r *Registry) Register(ctx context.Context, name, dsn string, readOnly bool) (Info, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return Info{}, fmt.Errorf("opening pool: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.nextID
	r.nextID++
	r.entries[id] = &Connection{
		ID:       id,
		Name:     name,
		DSN:      dsn,
		ReadOnly: readOnly,
		pool:     pool,
	}

	return Info{
		ID:       id,
		Name:     name,
		DSN:      redactDSN(dsn),
		ReadOnly: readOnly,
		IsActive: r.activeID == id,
	}, nil
}

// Activate sets the process-wide active pointer. Returns ErrNotFound if id is
// neither DefaultID nor a registered entry.
func (r *Registry) Activate(id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id != DefaultID {
		if _, ok := r.entries[id]; !ok {
			return ErrNotFound
		}
	}
	r.activeID = id
	return nil
}

// ActiveID returns the current active pointer.
func (r *Registry) ActiveID() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.activeID
}

// Active resolves the active pointer to a concrete pool. A dangling or unset
// pointer falls back to the default application pool.
func (r *Registry) Active() *pgxpool.Pool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if c, ok := r.entries[r.activeID]; ok {
		return c.pool
	}
	return r.defaultPool
}

// Close releases all registered pools. The default pool is owned by the
// caller and is not closed here.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range r.entries {
		c.pool.Close()
	}
	r.entries = make(map[int]*Connection)
	r.activeID = DefaultID
}

// redactDSN strips credentials from a connection string for display. Both
// URL form and keyword/value form (host=x password=y) are handled.
func redactDSN(dsn string) string {
	if u, err := url.Parse(dsn); err == nil && u.User != nil {
		u.User = url.User(u.User.Username())
		return u.String()
	}

	fields := strings.Fields(dsn)
	for i, f := range fields {
		if strings.HasPrefix(f, "password=") {
			fields[i] = "password=xxxxx"
		}
	}
	return strings.Join(fields, " ")
}
