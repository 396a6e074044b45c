// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package dbadmin implements a generic table browser over PostgreSQL: it
// discovers tables and their metadata from the catalog and performs paginated
// reads and keyed writes against any schema-qualified table.
//
// The engine is stateless: every operation takes the connection to act on as
// an explicit argument, so concurrent callers can target different
// connections. Identifiers (schema, table, column names) are interpolated
// into SQL with strict quoting; values always travel as bind parameters.
package dbadmin

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Read page size bounds.
const (
	MinLimit = 1
	MaxLimit = 500
)

// Sentinel errors mapped to HTTP statuses at the handler boundary.
var (
	// ErrInvalidArgument flags a malformed request shape.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNotFound is returned when a keyed operation matches zero rows.
	ErrNotFound = errors.New("row not found")
	// ErrConflict is returned when an update key matches more than one row.
	ErrConflict = errors.New("row not uniquely identified by key")
)

// QueryError wraps a database rejection of a browser operation. It is a
// client error (the table may not exist, a column name may be wrong, a
// constraint may have fired), not a fatal condition.
type QueryError struct {
	Err error
}

func (e *QueryError) Error() string { return e.Err.Error() }

// Unwrap makes errors.Is/As see the underlying database error.
func (e *QueryError) Unwrap() error { return e.Err }

// DB is the subset of pgxpool.Pool the engine needs.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Table identifies a base table in the catalog.
type Table struct {
	Schema   string `json:"schema"`
	Name     string `json:"name"`
	FullName string `json:"full_name"`
}

// Row is a column name to value mapping for one result row.
type Row map[string]any

// ReadResult is a page of rows plus the exact total row count.
type ReadResult struct {
	Total int64 `json:"total"`
	Rows  []Row `json:"rows"`
}

// quoteIdentifier quotes a PostgreSQL identifier (schema, table or column
// name). Identifiers cannot be bound as parameters, so quoting is the only
// defense here; embedded double quotes are doubled.
func quoteIdentifier(identifier string) string {
	return `"` + strings.ReplaceAll(identifier, `"`, `""`) + `"`
}

// qualifiedTable returns the quoted schema.table identifier.
func qualifiedTable(schema, table string) string {
	return quoteIdentifier(schema) + "." + quoteIdentifier(table)
}

// ListTables enumerates base tables on the given connection, excluding
// system schemas, ordered by (schema, name).
func ListTables(ctx context.Context, db DB) ([]Table, error) {
	rows, err := db.Query(ctx, `
		SELECT table_schema, table_name
		FROM information_schema.tables
		WHERE table_type = 'BASE TABLE'
		  AND table_schema NOT IN ('pg_catalog', 'information_schema')
		ORDER BY table_schema, table_name
	`)
	if err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}
	defer rows.Close()

	tables := []Table{}
	for rows.Next() {
		var t Table
		if err := rows.Scan(&t.Schema, &t.Name); err != nil {
			return nil, fmt.Errorf("scanning table row: %w", err)
		}
		t.FullName = t.Schema + "." + t.Name
		tables = append(tables, t)
	}
	return tables, rows.Err()
}

// Read returns the exact row count of the table plus one page of rows.
// limit must be within [MinLimit, MaxLimit] and offset non-negative.
func Read(ctx context.Context, db DB, schema, table string, limit, offset int) (ReadResult, error) {
	if limit < MinLimit || limit > MaxLimit {
		return ReadResult{}, fmt.Errorf("%w: limit must be between %d and %d", ErrInvalidArgument, MinLimit, MaxLimit)
	}
	if offset < 0 {
		return ReadResult{}, fmt.Errorf("%w: offset must not be negative", ErrInvalidArgument)
	}

	identifier := qualifiedTable(schema, table)

	var total int64
	countRows, err := db.Query(ctx, "SELECT COUNT(*) FROM "+identifier)
	if err != nil {
		return ReadResult{}, &QueryError{Err: err}
	}
	if countRows.Next() {
		if err := countRows.Scan(&total); err != nil {
			countRows.Close()
			return ReadResult{}, &QueryError{Err: err}
		}
	}
	countRows.Close()
	if err := countRows.Err(); err != nil {
		return ReadResult{}, &QueryError{Err: err}
	}

	dataRows, err := db.Query(ctx,
		"SELECT * FROM "+identifier+" OFFSET $1 LIMIT $2", offset, limit)
	if err != nil {
		return ReadResult{}, &QueryError{Err: err}
	}
	defer dataRows.Close()

	page, err := collectRows(dataRows)
	if err != nil {
		return ReadResult{}, &QueryError{Err: err}
	}
	return ReadResult{Total: total, Rows: page}, nil
}

// Insert adds one row. An empty value map relies entirely on column defaults.
// The returned row reflects all defaults and triggers. The insert is
// transactional: either the full row lands, or nothing does.
func Insert(ctx context.Context, db DB, schema, table string, values ValueMap) (Row, error) {
	identifier := qualifiedTable(schema, table)

	query, args := buildInsert(identifier, values)

	tx, err := db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, &QueryError{Err: err}
	}
	inserted, err := collectRows(rows)
	if err != nil {
		return nil, &QueryError{Err: err}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, &QueryError{Err: err}
	}
	if len(inserted) == 0 {
		return nil, nil
	}
	return inserted[0], nil
}

// Update modifies the single row identified by key. Zero matches fail with
// ErrNotFound; more than one match fails with ErrConflict and the
// transaction is rolled back before commit, so no row is ever mutated by an
// ambiguous key.
func Update(ctx context.Context, db DB, schema, table string, key, values ValueMap) (Row, error) {
	if len(key) == 0 {
		return nil, fmt.Errorf("%w: 'key' must be a non-empty object", ErrInvalidArgument)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%w: 'values' must be a non-empty object", ErrInvalidArgument)
	}

	identifier := qualifiedTable(schema, table)
	query, args := buildUpdate(identifier, key, values)

	tx, err := db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, &QueryError{Err: err}
	}
	updated, err := collectRows(rows)
	if err != nil {
		return nil, &QueryError{Err: err}
	}

	switch {
	case len(updated) == 0:
		return nil, ErrNotFound
	case len(updated) > 1:
		// Deliberate rollback: the SQL matched multiple rows.
		return nil, ErrConflict
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, &QueryError{Err: err}
	}
	return updated[0], nil
}

// Delete removes all rows matching key and reports how many went away.
// Zero matches fail with ErrNotFound. Multi-row matches are accepted, unlike
// Update, which rejects them.
func Delete(ctx context.Context, db DB, schema, table string, key ValueMap) (int64, error) {
	if len(key) == 0 {
		return 0, fmt.Errorf("%w: 'key' must be a non-empty object", ErrInvalidArgument)
	}

	identifier := qualifiedTable(schema, table)
	query, args := buildDelete(identifier, key)

	tx, err := db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return 0, &QueryError{Err: err}
	}
	deleted := tag.RowsAffected()
	if deleted == 0 {
		return 0, ErrNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, &QueryError{Err: err}
	}
	return deleted, nil
}

// buildInsert renders the INSERT statement and its bind arguments.
func buildInsert(identifier string, values ValueMap) (string, []any) {
	if len(values) == 0 {
		return "INSERT INTO " + identifier + " DEFAULT VALUES RETURNING *", nil
	}

	cols := values.sortedColumns()
	names := make([]string, len(cols))
	params := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, c := range cols {
		names[i] = quoteIdentifier(c)
		params[i] = fmt.Sprintf("$%d", i+1)
		args[i] = values[c].Arg()
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING *",
		identifier, strings.Join(names, ", "), strings.Join(params, ", "))
	return query, args
}

// buildUpdate renders the UPDATE statement with a SET clause from values and
// a conjoined equality WHERE clause from key.
func buildUpdate(identifier string, key, values ValueMap) (string, []any) {
	args := make([]any, 0, len(key)+len(values))

	setCols := values.sortedColumns()
	setParts := make([]string, len(setCols))
	for i, c := range setCols {
		args = append(args, values[c].Arg())
		setParts[i] = fmt.Sprintf("%s = $%d", quoteIdentifier(c), len(args))
	}

	whereParts, args := buildWhere(key, args)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s RETURNING *",
		identifier, strings.Join(setParts, ", "), strings.Join(whereParts, " AND "))
	return query, args
}

// buildDelete renders the DELETE statement with a conjoined equality WHERE
// clause from key.
func buildDelete(identifier string, key ValueMap) (string, []any) {
	whereParts, args := buildWhere(key, nil)
	query := fmt.Sprintf("DELETE FROM %s WHERE %s",
		identifier, strings.Join(whereParts, " AND "))
	return query, args
}

// buildWhere appends key equalities to args and returns the clause parts.
func buildWhere(key ValueMap, args []any) ([]string, []any) {
	cols := key.sortedColumns()
	parts := make([]string, len(cols))
	for i, c := range cols {
		args = append(args, key[c].Arg())
		parts[i] = fmt.Sprintf("%s = $%d", quoteIdentifier(c), len(args))
	}
	return parts, args
}

// collectRows scans all remaining rows into column-to-value maps.
func collectRows(rows pgx.Rows) ([]Row, error) {
	defer rows.Close()

	fields := rows.FieldDescriptions()
	out := []Row{}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		row := make(Row, len(fields))
		for i, fd := range fields {
			row[fd.Name] = values[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
