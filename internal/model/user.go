// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package model defines domain models shared across the application.
package model

import (
	"database/sql"
	"encoding/json"
	"time"
)

// User represents an admin-module account.
type User struct {
	ID           int64          `json:"id"`
	Email        string         `json:"email"`
	FullName     sql.NullString `json:"-"`
	PasswordHash string         `json:"-"` // Never expose in JSON
	IsAdmin      bool           `json:"is_admin"`
	CreatedAt    time.Time      `json:"created_at"`
	LastLogin    sql.NullTime   `json:"-"`
	LoginCount   int64          `json:"login_count"`
}

// MarshalJSON renders nullable fields as JSON null rather than the
// database/sql wrapper structs.
func (u User) MarshalJSON() ([]byte, error) {
	out := struct {
		ID         int64      `json:"id"`
		Email      string     `json:"email"`
		FullName   *string    `json:"full_name"`
		IsAdmin    bool       `json:"is_admin"`
		CreatedAt  time.Time  `json:"created_at"`
		LastLogin  *time.Time `json:"last_login"`
		LoginCount int64      `json:"login_count"`
	}{
		ID:         u.ID,
		Email:      u.Email,
		IsAdmin:    u.IsAdmin,
		CreatedAt:  u.CreatedAt,
		LoginCount: u.LoginCount,
	}
	if u.FullName.Valid {
		out.FullName = &u.FullName.String
	}
	if u.LastLogin.Valid {
		out.LastLogin = &u.LastLogin.Time
	}
	return json.Marshal(out)
}
