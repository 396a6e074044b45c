// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/oadmin-go/internal/dbadmin"
)

// defaultReadLimit is used when the limit query parameter is absent.
const defaultReadLimit = 50

// RowRequest represents the request body for row mutations. Insert reads
// Values, update reads Key and Values, delete reads Key.
type RowRequest struct {
	Key    dbadmin.ValueMap `json:"key"`
	Values dbadmin.ValueMap `json:"values"`
}

// RowResponse wraps a single affected row.
type RowResponse struct {
	Row dbadmin.Row `json:"row"`
}

// DeleteResponse reports how many rows a delete removed.
type DeleteResponse struct {
	Deleted int64 `json:"deleted"`
}

// ListTables handles GET /admin/db/tables.
func (h *Handler) ListTables(w http.ResponseWriter, r *http.Request) {
	tables, err := h.browser.ListTables(r.Context())
	if err != nil {
		writeBrowserError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, tables)
}

// ReadTable handles GET /admin/db/table/{schema}/{table}.
func (h *Handler) ReadTable(w http.ResponseWriter, r *http.Request) {
	schema, table := tableParams(r)

	limit := defaultReadLimit
	offset := 0
	var err error
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if limit, err = strconv.Atoi(raw); err != nil {
			WriteBadRequest(w, "Invalid limit", nil)
			return
		}
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if offset, err = strconv.Atoi(raw); err != nil {
			WriteBadRequest(w, "Invalid offset", nil)
			return
		}
	}

	result, err := h.browser.Read(r.Context(), schema, table, limit, offset)
	if err != nil {
		writeBrowserError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, result)
}

// TableMeta handles GET /admin/db/table/{schema}/{table}/meta.
func (h *Handler) TableMeta(w http.ResponseWriter, r *http.Request) {
	schema, table := tableParams(r)

	meta, err := h.browser.Describe(r.Context(), schema, table)
	if err != nil {
		writeBrowserError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, meta)
}

// InsertRow handles POST /admin/db/table/{schema}/{table}/rows.
func (h *Handler) InsertRow(w http.ResponseWriter, r *http.Request) {
	schema, table := tableParams(r)

	req, ok := decodeRowRequest(w, r)
	if !ok {
		return
	}

	row, err := h.browser.Insert(r.Context(), schema, table, req.Values)
	if err != nil {
		writeBrowserError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, RowResponse{Row: row})
}

// UpdateRow handles PUT /admin/db/table/{schema}/{table}/rows. The key must
// match exactly one row.
func (h *Handler) UpdateRow(w http.ResponseWriter, r *http.Request) {
	schema, table := tableParams(r)

	req, ok := decodeRowRequest(w, r)
	if !ok {
		return
	}

	row, err := h.browser.Update(r.Context(), schema, table, req.Key, req.Values)
	if err != nil {
		writeBrowserError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, RowResponse{Row: row})
}

// DeleteRows handles DELETE /admin/db/table/{schema}/{table}/rows. All rows
// matching the key are removed and the count is reported.
func (h *Handler) DeleteRows(w http.ResponseWriter, r *http.Request) {
	schema, table := tableParams(r)

	req, ok := decodeRowRequest(w, r)
	if !ok {
		return
	}

	deleted, err := h.browser.Delete(r.Context(), schema, table, req.Key)
	if err != nil {
		writeBrowserError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, DeleteResponse{Deleted: deleted})
}

// tableParams extracts the schema and table URL parameters.
func tableParams(r *http.Request) (schema, table string) {
	return chi.URLParam(r, "schema"), chi.URLParam(r, "table")
}

// decodeRowRequest decodes a row mutation body. Returns false with the
// response already written on malformed input, including scalar values the
// engine does not support.
func decodeRowRequest(w http.ResponseWriter, r *http.Request) (RowRequest, bool) {
	var req RowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, "Invalid request body: "+err.Error(), nil)
		return RowRequest{}, false
	}
	return req, true
}

// writeBrowserError maps table-browser errors onto HTTP statuses. Database
// rejections (missing table, bad column, constraint violation) are client
// errors, not server faults.
func writeBrowserError(w http.ResponseWriter, err error) {
	var queryErr *dbadmin.QueryError
	switch {
	case errors.Is(err, dbadmin.ErrInvalidArgument):
		WriteBadRequest(w, err.Error(), nil)
	case errors.Is(err, dbadmin.ErrNotFound):
		WriteNotFound(w, "No row matches the given key")
	case errors.Is(err, dbadmin.ErrConflict):
		WriteConflict(w, "Key matches more than one row")
	case errors.As(err, &queryErr):
		WriteBadRequest(w, "Query failed: "+queryErr.Err.Error(), nil)
	default:
		WriteInternalError(w, "Table operation failed")
	}
}
