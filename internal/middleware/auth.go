// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package middleware provides HTTP middleware for bearer-token
// authentication, authorization and request throttling.
package middleware

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/olegiv/oadmin-go/internal/auth"
	"github.com/olegiv/oadmin-go/internal/model"
	"github.com/olegiv/oadmin-go/internal/store"
)

// ContextKey is the type for request context keys set by this package.
type ContextKey string

// ContextKeyUser is the context key for the authenticated user.
const ContextKeyUser ContextKey = "user"

// APIError represents a JSON error response for the API.
type APIError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// WriteAPIError writes a JSON error response.
func WriteAPIError(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	apiErr := APIError{}
	apiErr.Error.Code = code
	apiErr.Error.Message = message

	_ = json.NewEncoder(w).Encode(apiErr)
}

// BearerAuth creates middleware that validates the Authorization header,
// resolves the token subject to a user and stores it in the request context.
// Missing, malformed, expired or unresolvable tokens all yield 401.
func BearerAuth(tokens *auth.TokenManager, queries *store.Queries) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				WriteAPIError(w, http.StatusUnauthorized, "unauthorized", "Missing Authorization header")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
				WriteAPIError(w, http.StatusUnauthorized, "unauthorized", "Invalid Authorization header format. Use: Bearer <token>")
				return
			}

			subject, err := tokens.Resolve(parts[1])
			if err != nil {
				WriteAPIError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
				return
			}

			user, err := queries.GetUserByEmail(r.Context(), subject)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					WriteAPIError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
				} else {
					slog.Error("failed to load token subject", "error", err)
					WriteAPIError(w, http.StatusInternalServerError, "internal_error", "Failed to validate token")
				}
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyUser, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUser retrieves the authenticated user from the request context.
// Returns nil if no user is in context.
func GetUser(r *http.Request) *model.User {
	user, ok := r.Context().Value(ContextKeyUser).(model.User)
	if !ok {
		return nil
	}
	return &user
}

// RequireAdmin creates middleware that rejects non-admin users with 403.
// Must run after BearerAuth.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := GetUser(r)
		if user == nil {
			WriteAPIError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
			return
		}
		if !user.IsAdmin {
			WriteAPIError(w, http.StatusForbidden, "forbidden", "Admin privileges required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
