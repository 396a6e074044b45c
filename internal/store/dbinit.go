// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// InitStatus is a snapshot of database initialization state for /health.
type InitStatus struct {
	Initialized bool
	LastError   string
	Attempts    int
}

// Initializer retries database initialization in the background until it
// succeeds, instead of failing the process when the database is not yet
// reachable at startup.
type Initializer struct {
	initFn      func(ctx context.Context) error
	interval    time.Duration
	maxAttempts int // 0 means retry forever

	mu          sync.Mutex
	initialized bool
	lastError   string
	attempts    int
}

// NewInitializer creates an Initializer. initFn performs one full
// initialization pass (ping, migrate, seed) and is retried every interval
// until it returns nil.
func NewInitializer(initFn func(ctx context.Context) error, interval time.Duration, maxAttempts int) *Initializer {
	return &Initializer{
		initFn:      initFn,
		interval:    interval,
		maxAttempts: maxAttempts,
	}
}

// Status returns the current initialization state.
func (i *Initializer) Status() InitStatus {
	i.mu.Lock()
	defer i.mu.Unlock()
	return InitStatus{
		Initialized: i.initialized,
		LastError:   i.lastError,
		Attempts:    i.attempts,
	}
}

// TryOnce performs a single initialization attempt and records the outcome.
func (i *Initializer) TryOnce(ctx context.Context) bool {
	err := i.initFn(ctx)

	i.mu.Lock()
	defer i.mu.Unlock()
	i.attempts++
	if err != nil {
		i.initialized = false
		i.lastError = err.Error()
		slog.Warn("database init attempt failed", "attempt", i.attempts, "error", err)
		return false
	}
	i.initialized = true
	i.lastError = ""
	slog.Info("database schema ensured successfully", "attempts", i.attempts)
	return true
}

// Run keeps attempting initialization until success, context cancellation,
// or the attempt limit. Call in a goroutine.
func (i *Initializer) Run(ctx context.Context) {
	if i.TryOnce(ctx) {
		return
	}

	ticker := time.NewTicker(i.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if i.maxAttempts > 0 && i.Status().Attempts >= i.maxAttempts {
				slog.Error("max database init attempts reached, giving up",
					"max_attempts", i.maxAttempts)
				return
			}
			if i.TryOnce(ctx) {
				return
			}
		}
	}
}
