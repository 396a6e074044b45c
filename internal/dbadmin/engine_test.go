// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package dbadmin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func mustValues(t *testing.T, jsonBody string) ValueMap {
	t.Helper()
	var m ValueMap
	if err := json.Unmarshal([]byte(jsonBody), &m); err != nil {
		t.Fatalf("decoding values: %v", err)
	}
	return m
}

func TestQuoteIdentifier(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"users", `"users"`},
		{"weird name", `"weird name"`},
		{`evil"; DROP TABLE users; --`, `"evil""; DROP TABLE users; --"`},
		{`a""b`, `"a""""b"`},
	}
	for _, tt := range tests {
		if got := quoteIdentifier(tt.in); got != tt.want {
			t.Errorf("quoteIdentifier(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestQualifiedTable(t *testing.T) {
	if got := qualifiedTable("public", "users"); got != `"public"."users"` {
		t.Errorf("qualifiedTable = %s", got)
	}
}

func TestBuildInsert_Empty(t *testing.T) {
	query, args := buildInsert(`"public"."users"`, nil)
	want := `INSERT INTO "public"."users" DEFAULT VALUES RETURNING *`
	if query != want {
		t.Errorf("query = %s, want %s", query, want)
	}
	if len(args) != 0 {
		t.Errorf("args = %v, want none", args)
	}
}

func TestBuildInsert_Values(t *testing.T) {
	values := mustValues(t, `{"email": "a@b.com", "count": 3}`)

	query, args := buildInsert(`"public"."users"`, values)
	want := `INSERT INTO "public"."users" ("count", "email") VALUES ($1, $2) RETURNING *`
	if query != want {
		t.Errorf("query = %s, want %s", query, want)
	}
	if len(args) != 2 {
		t.Fatalf("len(args) = %d, want 2", len(args))
	}
	if args[0] != int64(3) || args[1] != "a@b.com" {
		t.Errorf("args = %v", args)
	}
}

func TestBuildUpdate(t *testing.T) {
	key := mustValues(t, `{"id": 1}`)
	values := mustValues(t, `{"x": 2, "name": "n"}`)

	query, args := buildUpdate(`"s"."t"`, key, values)
	want := `UPDATE "s"."t" SET "name" = $1, "x" = $2 WHERE "id" = $3 RETURNING *`
	if query != want {
		t.Errorf("query = %s, want %s", query, want)
	}
	if len(args) != 3 {
		t.Fatalf("len(args) = %d, want 3", len(args))
	}
	if args[0] != "n" || args[1] != int64(2) || args[2] != int64(1) {
		t.Errorf("args = %v", args)
	}
}

func TestBuildDelete(t *testing.T) {
	key := mustValues(t, `{"a": 1, "b": null}`)

	query, args := buildDelete(`"s"."t"`, key)
	want := `DELETE FROM "s"."t" WHERE "a" = $1 AND "b" = $2`
	if query != want {
		t.Errorf("query = %s, want %s", query, want)
	}
	if len(args) != 2 {
		t.Fatalf("len(args) = %d, want 2", len(args))
	}
	if args[0] != int64(1) || args[1] != nil {
		t.Errorf("args = %v", args)
	}
}

func TestRead_LimitValidation(t *testing.T) {
	ctx := context.Background()
	for _, limit := range []int{0, -1, 501} {
		_, err := Read(ctx, nil, "public", "users", limit, 0)
		if !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("Read(limit=%d) error = %v, want ErrInvalidArgument", limit, err)
		}
	}
}

func TestRead_OffsetValidation(t *testing.T) {
	_, err := Read(context.Background(), nil, "public", "users", 50, -1)
	if !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Read(offset=-1) error = %v, want ErrInvalidArgument", err)
	}
}

func TestUpdate_RequiresKeyAndValues(t *testing.T) {
	ctx := context.Background()
	values := mustValues(t, `{"x": 1}`)

	_, err := Update(ctx, nil, "public", "users", nil, values)
	if !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Update(empty key) error = %v, want ErrInvalidArgument", err)
	}

	_, err = Update(ctx, nil, "public", "users", values, nil)
	if !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Update(empty values) error = %v, want ErrInvalidArgument", err)
	}
}

func TestDelete_RequiresKey(t *testing.T) {
	_, err := Delete(context.Background(), nil, "public", "users", ValueMap{})
	if !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Delete(empty key) error = %v, want ErrInvalidArgument", err)
	}
}

// fakeRows walks a canned result set through the pgx.Rows interface.
type fakeRows struct {
	fields []pgconn.FieldDescription
	rows   [][]any
	idx    int
}

func fakeResult(cols []string, rows ...[]any) *fakeRows {
	fields := make([]pgconn.FieldDescription, len(cols))
	for i, c := range cols {
		fields[i] = pgconn.FieldDescription{Name: c}
	}
	return &fakeRows{fields: fields, rows: rows}
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return r.fields }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	r.idx++
	return r.idx <= len(r.rows)
}

func (r *fakeRows) Values() ([]any, error) {
	return r.rows[r.idx-1], nil
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.rows[r.idx-1]
	for i, d := range dest {
		switch p := d.(type) {
		case *int64:
			*p = row[i].(int64)
		case *string:
			*p = row[i].(string)
		default:
			return fmt.Errorf("unsupported scan target %T", d)
		}
	}
	return nil
}

// fakeTx records whether the transaction was committed or rolled back.
// Embedding pgx.Tx leaves the unused methods unimplemented.
type fakeTx struct {
	pgx.Tx
	rows       *fakeRows
	execTag    pgconn.CommandTag
	execErr    error
	committed  bool
	rolledBack bool
}

func (tx *fakeTx) Query(_ context.Context, _ string, _ ...any) (pgx.Rows, error) {
	return tx.rows, nil
}

func (tx *fakeTx) Exec(_ context.Context, _ string, _ ...any) (pgconn.CommandTag, error) {
	return tx.execTag, tx.execErr
}

func (tx *fakeTx) Commit(context.Context) error   { tx.committed = true; return nil }
func (tx *fakeTx) Rollback(context.Context) error { tx.rolledBack = true; return nil }

// fakeDB hands out canned query results in order and a single transaction.
type fakeDB struct {
	results []*fakeRows
	tx      *fakeTx
}

func (db *fakeDB) Query(_ context.Context, _ string, _ ...any) (pgx.Rows, error) {
	rows := db.results[0]
	db.results = db.results[1:]
	return rows, nil
}

func (db *fakeDB) Exec(_ context.Context, _ string, _ ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (db *fakeDB) Begin(context.Context) (pgx.Tx, error) { return db.tx, nil }

func TestListTables_ScansCatalog(t *testing.T) {
	db := &fakeDB{results: []*fakeRows{fakeResult(
		[]string{"table_schema", "table_name"},
		[]any{"public", "users"},
		[]any{"sales", "orders"},
	)}}

	tables, err := ListTables(context.Background(), db)
	if err != nil {
		t.Fatalf("ListTables: %v", err)
	}
	if len(tables) != 2 {
		t.Fatalf("len(tables) = %d, want 2", len(tables))
	}
	if tables[0].FullName != "public.users" || tables[1].FullName != "sales.orders" {
		t.Errorf("tables = %+v", tables)
	}
}

func TestRead_TotalIndependentOfPage(t *testing.T) {
	// 7 rows in the table, a page of 2 requested.
	db := &fakeDB{results: []*fakeRows{
		fakeResult([]string{"count"}, []any{int64(7)}),
		fakeResult([]string{"id", "name"},
			[]any{int64(1), "a"},
			[]any{int64(2), "b"},
		),
	}}

	result, err := Read(context.Background(), db, "public", "users", 2, 0)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if result.Total != 7 {
		t.Errorf("Total = %d, want 7", result.Total)
	}
	if len(result.Rows) != 2 {
		t.Fatalf("len(Rows) = %d, want 2", len(result.Rows))
	}
	if result.Rows[0]["id"] != int64(1) || result.Rows[1]["name"] != "b" {
		t.Errorf("Rows = %v", result.Rows)
	}
}

func TestInsert_CommitsAndReturnsRow(t *testing.T) {
	tx := &fakeTx{rows: fakeResult([]string{"id", "email"}, []any{int64(5), "a@b.com"})}
	db := &fakeDB{tx: tx}

	row, err := Insert(context.Background(), db, "public", "users",
		mustValues(t, `{"email": "a@b.com"}`))
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if !tx.committed {
		t.Error("transaction was not committed")
	}
	if row["id"] != int64(5) {
		t.Errorf("row = %v", row)
	}
}

func TestUpdate_SingleMatchCommits(t *testing.T) {
	tx := &fakeTx{rows: fakeResult([]string{"id", "name"}, []any{int64(1), "renamed"})}
	db := &fakeDB{tx: tx}

	row, err := Update(context.Background(), db, "public", "users",
		mustValues(t, `{"id": 1}`), mustValues(t, `{"name": "renamed"}`))
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !tx.committed {
		t.Error("transaction was not committed")
	}
	if row["name"] != "renamed" {
		t.Errorf("row = %v", row)
	}
}

func TestUpdate_AmbiguousKeyAborts(t *testing.T) {
	// Two rows match the key: the write must be rolled back, never committed.
	tx := &fakeTx{rows: fakeResult([]string{"id"},
		[]any{int64(1)},
		[]any{int64(2)},
	)}
	db := &fakeDB{tx: tx}

	_, err := Update(context.Background(), db, "public", "users",
		mustValues(t, `{"status": "active"}`), mustValues(t, `{"name": "x"}`))
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("error = %v, want ErrConflict", err)
	}
	if tx.committed {
		t.Error("ambiguous update was committed")
	}
	if !tx.rolledBack {
		t.Error("ambiguous update was not rolled back")
	}
}

func TestUpdate_NoMatch(t *testing.T) {
	tx := &fakeTx{rows: fakeResult([]string{"id"})}
	db := &fakeDB{tx: tx}

	_, err := Update(context.Background(), db, "public", "users",
		mustValues(t, `{"id": 99}`), mustValues(t, `{"name": "x"}`))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
	if tx.committed {
		t.Error("zero-match update was committed")
	}
}

func TestDelete_ReportsAffectedCount(t *testing.T) {
	tx := &fakeTx{execTag: pgconn.NewCommandTag("DELETE 3")}
	db := &fakeDB{tx: tx}

	deleted, err := Delete(context.Background(), db, "public", "users",
		mustValues(t, `{"status": "stale"}`))
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if deleted != 3 {
		t.Errorf("deleted = %d, want 3", deleted)
	}
	if !tx.committed {
		t.Error("transaction was not committed")
	}
}

func TestDelete_NoMatch(t *testing.T) {
	tx := &fakeTx{execTag: pgconn.NewCommandTag("DELETE 0")}
	db := &fakeDB{tx: tx}

	_, err := Delete(context.Background(), db, "public", "users",
		mustValues(t, `{"id": 99}`))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
	if tx.committed {
		t.Error("zero-match delete was committed")
	}
}

func TestDelete_DatabaseRejection(t *testing.T) {
	tx := &fakeTx{execErr: errors.New(`relation "public"."nope" does not exist`)}
	db := &fakeDB{tx: tx}

	_, err := Delete(context.Background(), db, "public", "nope",
		mustValues(t, `{"id": 1}`))
	var qe *QueryError
	if !errors.As(err, &qe) {
		t.Fatalf("error = %v, want QueryError", err)
	}
	if tx.committed {
		t.Error("failed delete was committed")
	}
}

func TestQueryError_Unwrap(t *testing.T) {
	inner := errors.New("relation does not exist")
	var qe *QueryError = &QueryError{Err: inner}

	if !errors.Is(qe, inner) {
		t.Error("QueryError does not unwrap to the database error")
	}
	var target *QueryError
	if !errors.As(error(qe), &target) {
		t.Error("errors.As failed to match QueryError")
	}
}
