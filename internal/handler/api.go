// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package handler provides the REST API handlers for the admin backend.
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/olegiv/oadmin-go/internal/auth"
	"github.com/olegiv/oadmin-go/internal/dbadmin"
	"github.com/olegiv/oadmin-go/internal/registry"
	"github.com/olegiv/oadmin-go/internal/store"
)

// Browser executes table-browser operations against whichever connection is
// currently active.
type Browser interface {
	ListTables(ctx context.Context) ([]dbadmin.Table, error)
	Read(ctx context.Context, schema, table string, limit, offset int) (dbadmin.ReadResult, error)
	Describe(ctx context.Context, schema, table string) (dbadmin.TableMeta, error)
	Insert(ctx context.Context, schema, table string, values dbadmin.ValueMap) (dbadmin.Row, error)
	Update(ctx context.Context, schema, table string, key, values dbadmin.ValueMap) (dbadmin.Row, error)
	Delete(ctx context.Context, schema, table string, key dbadmin.ValueMap) (int64, error)
}

// registryBrowser resolves the active pool from the registry on every call,
// so an Activate between requests takes effect immediately.
type registryBrowser struct {
	reg *registry.Registry
}

func (b registryBrowser) active() *pgxpool.Pool { return b.reg.Active() }

func (b registryBrowser) ListTables(ctx context.Context) ([]dbadmin.Table, error) {
	return dbadmin.ListTables(ctx, b.active())
}

func (b registryBrowser) Read(ctx context.Context, schema, table string, limit, offset int) (dbadmin.ReadResult, error) {
	return dbadmin.Read(ctx, b.active(), schema, table, limit, offset)
}

func (b registryBrowser) Describe(ctx context.Context, schema, table string) (dbadmin.TableMeta, error) {
	return dbadmin.Describe(ctx, b.active(), schema, table)
}

func (b registryBrowser) Insert(ctx context.Context, schema, table string, values dbadmin.ValueMap) (dbadmin.Row, error) {
	return dbadmin.Insert(ctx, b.active(), schema, table, values)
}

func (b registryBrowser) Update(ctx context.Context, schema, table string, key, values dbadmin.ValueMap) (dbadmin.Row, error) {
	return dbadmin.Update(ctx, b.active(), schema, table, key, values)
}

func (b registryBrowser) Delete(ctx context.Context, schema, table string, key dbadmin.ValueMap) (int64, error) {
	return dbadmin.Delete(ctx, b.active(), schema, table, key)
}

// Handler holds shared dependencies for all API handlers.
type Handler struct {
	queries *store.Queries
	tokens  *auth.TokenManager
	reg     *registry.Registry
	init    *store.Initializer
	browser Browser
}

// NewHandler creates a new API handler.
func NewHandler(queries *store.Queries, tokens *auth.TokenManager, reg *registry.Registry, init *store.Initializer) *Handler {
	return &Handler{
		queries: queries,
		tokens:  tokens,
		reg:     reg,
		init:    init,
		browser: registryBrowser{reg: reg},
	}
}

// ErrorResponse is the standard API error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information.
type ErrorDetail struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteError writes an error JSON response.
func WriteError(w http.ResponseWriter, statusCode int, code, message string, details map[string]string) {
	resp := ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
	WriteJSON(w, statusCode, resp)
}

// WriteBadRequest writes a 400 Bad Request response.
func WriteBadRequest(w http.ResponseWriter, message string, details map[string]string) {
	WriteError(w, http.StatusBadRequest, "bad_request", message, details)
}

// WriteNotFound writes a 404 Not Found response.
func WriteNotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, "not_found", message, nil)
}

// WriteUnauthorized writes a 401 Unauthorized response.
func WriteUnauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, "unauthorized", message, nil)
}

// WriteConflict writes a 409 Conflict response.
func WriteConflict(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, "conflict", message, nil)
}

// WriteInternalError writes a 500 Internal Server Error response.
func WriteInternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, "internal_error", message, nil)
}

// parseIDParam extracts and parses the {id} URL parameter.
func parseIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
