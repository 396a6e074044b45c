// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/olegiv/oadmin-go/internal/auth"
	"github.com/olegiv/oadmin-go/internal/store"
)

func newTestTokenManager(t *testing.T) *auth.TokenManager {
	t.Helper()
	tm, err := auth.NewTokenManager("0123456789abcdef0123456789abcdef", "HS256", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenManager: %v", err)
	}
	return tm
}

func newMockQueries(t *testing.T) (*store.Queries, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return store.New(db), mock
}

func userRows(email string, isAdmin bool) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "email", "full_name", "password_hash", "is_admin",
		"created_at", "last_login", "login_count",
	}).AddRow(int64(1), email, nil, "x", isAdmin, time.Now(), nil, int64(0))
}

func TestBearerAuthMissingHeader(t *testing.T) {
	queries, _ := newMockQueries(t)
	mw := BearerAuth(newTestTokenManager(t), queries)

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run")
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/auth/me", nil))

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestBearerAuthMalformedHeader(t *testing.T) {
	queries, _ := newMockQueries(t)
	mw := BearerAuth(newTestTokenManager(t), queries)

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run")
	}))

	for _, header := range []string{"Basic abc", "Bearer", "Bearer ", "token-without-scheme"} {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
		req.Header.Set("Authorization", header)
		handler.ServeHTTP(rr, req)

		if rr.Code != http.StatusUnauthorized {
			t.Errorf("header %q: status = %d, want %d", header, rr.Code, http.StatusUnauthorized)
		}
	}
}

func TestBearerAuthInvalidToken(t *testing.T) {
	queries, _ := newMockQueries(t)
	mw := BearerAuth(newTestTokenManager(t), queries)

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run")
	}))

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer not-a-real-token")
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusUnauthorized)
	}

	var apiErr APIError
	if err := json.NewDecoder(rr.Body).Decode(&apiErr); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if apiErr.Error.Code != "unauthorized" {
		t.Errorf("error code = %q, want %q", apiErr.Error.Code, "unauthorized")
	}
}

func TestBearerAuthValidToken(t *testing.T) {
	tm := newTestTokenManager(t)
	queries, mock := newMockQueries(t)

	token, err := tm.Issue("admin@example.com")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	mock.ExpectQuery(`SELECT .+ FROM users WHERE email = \$1`).
		WithArgs("admin@example.com").
		WillReturnRows(userRows("admin@example.com", true))

	mw := BearerAuth(tm, queries)
	var called bool
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		user := GetUser(r)
		if user == nil {
			t.Fatal("GetUser returned nil inside authenticated handler")
		}
		if user.Email != "admin@example.com" {
			t.Errorf("user email = %q, want %q", user.Email, "admin@example.com")
		}
	}))

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(rr, req)

	if !called {
		t.Fatal("handler was not called")
	}
	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusOK)
	}
}

func TestBearerAuthUnknownSubject(t *testing.T) {
	tm := newTestTokenManager(t)
	queries, mock := newMockQueries(t)

	token, err := tm.Issue("ghost@example.com")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	mock.ExpectQuery(`SELECT .+ FROM users WHERE email = \$1`).
		WithArgs("ghost@example.com").
		WillReturnError(sql.ErrNoRows)

	mw := BearerAuth(tm, queries)
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run")
	}))

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestRequireAdmin(t *testing.T) {
	tm := newTestTokenManager(t)

	run := func(t *testing.T, isAdmin bool) int {
		t.Helper()
		queries, mock := newMockQueries(t)

		token, err := tm.Issue("user@example.com")
		if err != nil {
			t.Fatalf("Issue: %v", err)
		}
		mock.ExpectQuery(`SELECT .+ FROM users WHERE email = \$1`).
			WithArgs("user@example.com").
			WillReturnRows(userRows("user@example.com", isAdmin))

		handler := BearerAuth(tm, queries)(RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})))

		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/admin/db/tables", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		handler.ServeHTTP(rr, req)
		return rr.Code
	}

	if code := run(t, true); code != http.StatusOK {
		t.Errorf("admin: status = %d, want %d", code, http.StatusOK)
	}
	if code := run(t, false); code != http.StatusForbidden {
		t.Errorf("non-admin: status = %d, want %d", code, http.StatusForbidden)
	}
}

func TestRequireAdminWithoutUser(t *testing.T) {
	handler := RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run")
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/admin/db/tables", nil))

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestGetUserWithoutAuth(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if user := GetUser(req); user != nil {
		t.Errorf("GetUser = %+v, want nil", user)
	}
}
