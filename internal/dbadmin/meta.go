// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package dbadmin

import (
	"context"
	"fmt"
	"sort"
)

// Column describes one table column, with PK/unique flags cross-referenced
// from the constraint introspection.
type Column struct {
	Name         string  `json:"name"`
	DataType     string  `json:"data_type"`
	IsNullable   bool    `json:"is_nullable"`
	HasDefault   bool    `json:"has_default"`
	Default      *string `json:"default"`
	IsPrimaryKey bool    `json:"is_primary_key"`
	IsUnique     bool    `json:"is_unique"`
}

// UniqueIndex is a named unique constraint with its ordered column list.
type UniqueIndex struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
}

// TableMeta is the full metadata of one table, computed on demand from the
// active connection's catalog and never cached.
type TableMeta struct {
	Schema        string        `json:"schema"`
	Name          string        `json:"name"`
	PrimaryKey    []string      `json:"primary_key"`
	UniqueIndexes []UniqueIndex `json:"unique_indexes"`
	Columns       []Column      `json:"columns"`
}

// Describe returns columns, the primary key in ordinal order, and named
// unique constraints for the given table.
func Describe(ctx context.Context, db DB, schema, table string) (TableMeta, error) {
	meta := TableMeta{Schema: schema, Name: table}

	columns, err := introspectColumns(ctx, db, schema, table)
	if err != nil {
		return TableMeta{}, err
	}

	pk, err := introspectPrimaryKey(ctx, db, schema, table)
	if err != nil {
		return TableMeta{}, err
	}

	uniques, err := introspectUniques(ctx, db, schema, table)
	if err != nil {
		return TableMeta{}, err
	}

	// Mark PK / unique flags on columns
	pkSet := make(map[string]bool, len(pk))
	for _, c := range pk {
		pkSet[c] = true
	}
	uniqueSet := make(map[string]bool)
	for _, idx := range uniques {
		for _, c := range idx.Columns {
			uniqueSet[c] = true
		}
	}
	for i := range columns {
		columns[i].IsPrimaryKey = pkSet[columns[i].Name]
		columns[i].IsUnique = uniqueSet[columns[i].Name]
	}

	meta.Columns = columns
	meta.PrimaryKey = pk
	meta.UniqueIndexes = uniques
	return meta, nil
}

func introspectColumns(ctx context.Context, db DB, schema, table string) ([]Column, error) {
	rows, err := db.Query(ctx, `
		SELECT
		  c.column_name,
		  c.data_type,
		  c.is_nullable = 'YES' AS is_nullable,
		  c.column_default
		FROM information_schema.columns c
		WHERE c.table_schema = $1
		  AND c.table_name   = $2
		ORDER BY c.ordinal_position
	`, schema, table)
	if err != nil {
		return nil, fmt.Errorf("introspecting columns: %w", err)
	}
	defer rows.Close()

	columns := []Column{}
	for rows.Next() {
		var col Column
		if err := rows.Scan(&col.Name, &col.DataType, &col.IsNullable, &col.Default); err != nil {
			return nil, fmt.Errorf("scanning column row: %w", err)
		}
		col.HasDefault = col.Default != nil
		columns = append(columns, col)
	}
	return columns, rows.Err()
}

func introspectPrimaryKey(ctx context.Context, db DB, schema, table string) ([]string, error) {
	rows, err := db.Query(ctx, `
		SELECT kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		  ON tc.constraint_name = kcu.constraint_name
		 AND tc.table_schema    = kcu.table_schema
		WHERE tc.table_schema = $1
		  AND tc.table_name   = $2
		  AND tc.constraint_type = 'PRIMARY KEY'
		ORDER BY kcu.ordinal_position
	`, schema, table)
	if err != nil {
		return nil, fmt.Errorf("introspecting primary key: %w", err)
	}
	defer rows.Close()

	pk := []string{}
	for rows.Next() {
		var col string
		if err := rows.Scan(&col); err != nil {
			return nil, fmt.Errorf("scanning primary key row: %w", err)
		}
		pk = append(pk, col)
	}
	return pk, rows.Err()
}

func introspectUniques(ctx context.Context, db DB, schema, table string) ([]UniqueIndex, error) {
	rows, err := db.Query(ctx, `
		SELECT tc.constraint_name, kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		  ON tc.constraint_name = kcu.constraint_name
		 AND tc.table_schema    = kcu.table_schema
		WHERE tc.table_schema = $1
		  AND tc.table_name   = $2
		  AND tc.constraint_type = 'UNIQUE'
		ORDER BY tc.constraint_name, kcu.ordinal_position
	`, schema, table)
	if err != nil {
		return nil, fmt.Errorf("introspecting unique constraints: %w", err)
	}
	defer rows.Close()

	grouped := map[string][]string{}
	for rows.Next() {
		var name, col string
		if err := rows.Scan(&name, &col); err != nil {
			return nil, fmt.Errorf("scanning unique constraint row: %w", err)
		}
		grouped[name] = append(grouped[name], col)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(grouped))
	for name := range grouped {
		names = append(names, name)
	}
	sort.Strings(names)

	uniques := make([]UniqueIndex, 0, len(names))
	for _, name := range names {
		uniques = append(uniques, UniqueIndex{Name: name, Columns: grouped[name]})
	}
	return uniques, nil
}
