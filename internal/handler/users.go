// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/olegiv/oadmin-go/internal/auth"
	"github.com/olegiv/oadmin-go/internal/model"
	"github.com/olegiv/oadmin-go/internal/store"
)

const maxEmailLength = 255

// CreateUserRequest represents the request body for creating a user.
// Admin status is never accepted from the request; accounts are created
// as regular users and promoted out of band.
type CreateUserRequest struct {
	Email    string  `json:"email"`
	FullName *string `json:"full_name,omitempty"`
	Password string  `json:"password"`
}

// UpdateUserRequest represents the request body for updating a user.
// Only provided fields change.
type UpdateUserRequest struct {
	FullName *string `json:"full_name,omitempty"`
	Password *string `json:"password,omitempty"`
}

// ListUsers handles GET /admin/users.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.queries.ListUsers(r.Context())
	if err != nil {
		WriteInternalError(w, "Failed to list users")
		return
	}
	WriteJSON(w, http.StatusOK, users)
}

// GetUser handles GET /admin/users/{id}.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	WriteJSON(w, http.StatusOK, user)
}

// CreateUser handles POST /admin/users.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, "Invalid JSON body", nil)
		return
	}

	validationErrors := make(map[string]string)
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" {
		validationErrors["email"] = "Email is required"
	} else if len(req.Email) > maxEmailLength {
		validationErrors["email"] = "Email is too long"
	}
	if req.Password == "" {
		validationErrors["password"] = "Password is required"
	}
	if len(validationErrors) > 0 {
		WriteBadRequest(w, "Validation failed", validationErrors)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		WriteInternalError(w, "Failed to hash password")
		return
	}

	params := store.CreateUserParams{
		Email:        req.Email,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	if req.FullName != nil {
		params.FullName = sql.NullString{String: *req.FullName, Valid: true}
	}

	user, err := h.queries.CreateUser(r.Context(), params)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			WriteBadRequest(w, "Email already registered", nil)
		} else {
			WriteInternalError(w, "Failed to create user")
		}
		return
	}

	WriteJSON(w, http.StatusCreated, user)
}

// UpdateUser handles PUT /admin/users/{id}. Omitted fields keep their
// current value.
func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	existing, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	var req UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, "Invalid JSON body", nil)
		return
	}

	params := store.UpdateUserParams{
		ID:           existing.ID,
		FullName:     existing.FullName,
		PasswordHash: existing.PasswordHash,
	}
	if req.FullName != nil {
		params.FullName = sql.NullString{String: *req.FullName, Valid: true}
	}
	if req.Password != nil {
		if *req.Password == "" {
			WriteBadRequest(w, "Password must not be empty", nil)
			return
		}
		hash, err := auth.HashPassword(*req.Password)
		if err != nil {
			WriteInternalError(w, "Failed to hash password")
			return
		}
		params.PasswordHash = hash
	}

	user, err := h.queries.UpdateUser(r.Context(), params)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			WriteNotFound(w, "User not found")
		} else {
			WriteInternalError(w, "Failed to update user")
		}
		return
	}

	WriteJSON(w, http.StatusOK, user)
}

// DeleteUser handles DELETE /admin/users/{id}.
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		WriteBadRequest(w, "Invalid user ID", nil)
		return
	}

	if err := h.queries.DeleteUser(r.Context(), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			WriteNotFound(w, "User not found")
		} else {
			WriteInternalError(w, "Failed to delete user")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// requireUser parses the user ID from the URL and fetches the user.
// Returns the user and true, or false with the response already written.
func (h *Handler) requireUser(w http.ResponseWriter, r *http.Request) (model.User, bool) {
	id, err := parseIDParam(r)
	if err != nil {
		WriteBadRequest(w, "Invalid user ID", nil)
		return model.User{}, false
	}

	user, err := h.queries.GetUserByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			WriteNotFound(w, "User not found")
		} else {
			WriteInternalError(w, "Failed to retrieve user")
		}
		return model.User{}, false
	}
	return user, true
}
