// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"net/http"

	"github.com/olegiv/oadmin-go/internal/middleware"
)

// TokenResponse is the body of a successful token issue.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Token handles POST /auth/token. Credentials arrive as form fields
// `username` and `password`; a missing user and a wrong password produce
// the same 401.
func (h *Handler) Token(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		WriteBadRequest(w, "Invalid form body", nil)
		return
	}

	username := r.PostFormValue("username")
	password := r.PostFormValue("password")
	if username == "" || password == "" {
		WriteBadRequest(w, "username and password are required", nil)
		return
	}

	user, ok, err := h.queries.Authenticate(r.Context(), username, password)
	if err != nil {
		WriteInternalError(w, "Failed to authenticate")
		return
	}
	if !ok {
		WriteUnauthorized(w, "Invalid credentials")
		return
	}

	token, err := h.tokens.Issue(user.Email)
	if err != nil {
		WriteInternalError(w, "Failed to issue token")
		return
	}

	WriteJSON(w, http.StatusOK, TokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
	})
}

// Me handles GET /auth/me.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	if user == nil {
		WriteUnauthorized(w, "Authentication required")
		return
	}
	WriteJSON(w, http.StatusOK, user)
}
