// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"database/sql"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestUserMarshalJSON_HidesPasswordHash(t *testing.T) {
	u := User{
		ID:           1,
		Email:        "a@b.com",
		PasswordHash: "$argon2id$secret",
		CreatedAt:    time.Now(),
	}

	data, err := json.Marshal(u)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	if strings.Contains(string(data), "argon2id") {
		t.Fatalf("password hash leaked into JSON: %s", data)
	}
}

func TestUserMarshalJSON_NullableFields(t *testing.T) {
	u := User{ID: 1, Email: "a@b.com", CreatedAt: time.Now()}

	data, err := json.Marshal(u)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if got["full_name"] != nil {
		t.Errorf("full_name = %v, want null", got["full_name"])
	}
	if got["last_login"] != nil {
		t.Errorf("last_login = %v, want null", got["last_login"])
	}

	u.FullName = sql.NullString{String: "Test User", Valid: true}
	u.LastLogin = sql.NullTime{Time: time.Now(), Valid: true}
	data, err = json.Marshal(u)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if got["full_name"] != "Test User" {
		t.Errorf("full_name = %v, want %q", got["full_name"], "Test User")
	}
	if got["last_login"] == nil {
		t.Error("last_login = null, want a timestamp")
	}
}
