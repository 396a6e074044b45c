// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/olegiv/oadmin-go/internal/registry"
)

// RegisterConnectionRequest represents the request body for registering a
// connection. The DSN is not probed here; callers should test it first.
type RegisterConnectionRequest struct {
	Name     string `json:"name"`
	DSN      string `json:"dsn"`
	ReadOnly bool   `json:"read_only"`
}

// TestConnectionRequest represents the request body for probing a DSN.
type TestConnectionRequest struct {
	DSN string `json:"dsn"`
}

// ListConnections handles GET /admin/db/connections.
func (h *Handler) ListConnections(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.reg.List())
}

// RegisterConnection handles POST /admin/db/connections.
func (h *Handler) RegisterConnection(w http.ResponseWriter, r *http.Request) {
	var req RegisterConnectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, "Invalid JSON body", nil)
		return
	}

	validationErrors := make(map[string]string)
	if req.Name == "" {
		validationErrors["name"] = "Name is required"
	}
	if req.DSN == "" {
		validationErrors["dsn"] = "DSN is required"
	}
	if len(validationErrors) > 0 {
		WriteBadRequest(w, "Validation failed", validationErrors)
		return
	}

	info, err := h.reg.Register(r.Context(), req.Name, req.DSN, req.ReadOnly)
	if err != nil {
		WriteBadRequest(w, "Failed to register connection: "+err.Error(), nil)
		return
	}

	WriteJSON(w, http.StatusCreated, info)
}

// TestConnection handles POST /admin/db/connections/test. Registry state is
// never mutated.
func (h *Handler) TestConnection(w http.ResponseWriter, r *http.Request) {
	var req TestConnectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, "Invalid JSON body", nil)
		return
	}
	if req.DSN == "" {
		WriteBadRequest(w, "DSN is required", nil)
		return
	}

	if err := h.reg.Test(r.Context(), req.DSN); err != nil {
		WriteBadRequest(w, "Connection test failed: "+err.Error(), nil)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ActivateConnection handles POST /admin/db/connections/{id}/activate. All
// subsequent table-browser operations are routed to the activated connection.
func (h *Handler) ActivateConnection(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		WriteBadRequest(w, "Invalid connection ID", nil)
		return
	}

	if err := h.reg.Activate(int(id)); err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			WriteNotFound(w, "Connection not found")
		} else {
			WriteInternalError(w, "Failed to activate connection")
		}
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"active_id": int(id),
	})
}
