// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"net/http"
)

// HealthResponse reports service status plus the state of the background
// database initialization loop.
type HealthResponse struct {
	Status        string  `json:"status"`
	DBInitialized bool    `json:"db_initialized"`
	DBError       *string `json:"db_error"`
	DBAttempts    int     `json:"db_attempts"`
}

// Health handles GET /health. Always 200; a database that is still coming up
// is reported in the body, not via the status code.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	status := h.init.Status()

	resp := HealthResponse{
		Status:        "ok",
		DBInitialized: status.Initialized,
		DBAttempts:    status.Attempts,
	}
	if status.LastError != "" {
		resp.DBError = &status.LastError
	}

	WriteJSON(w, http.StatusOK, resp)
}
