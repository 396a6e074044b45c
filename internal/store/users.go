// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/olegiv/oadmin-go/internal/auth"
	"github.com/olegiv/oadmin-go/internal/model"
)

// ErrDuplicateEmail is returned when an insert hits the email uniqueness
// constraint. Duplicates are detected at commit time, not pre-checked, so two
// racing inserts resolve to exactly one winner.
var ErrDuplicateEmail = errors.New("email already exists")

// pgUniqueViolation is the Postgres error code for unique_violation.
const pgUniqueViolation = "23505"

const userColumns = "id, email, full_name, password_hash, is_admin, created_at, last_login, login_count"

// Queries provides user directory access over a database handle.
type Queries struct {
	db *sql.DB
}

// New creates a Queries instance bound to the given database.
func New(db *sql.DB) *Queries {
	return &Queries{db: db}
}

func scanUser(row interface{ Scan(dest ...any) error }) (model.User, error) {
	var u model.User
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.FullName,
		&u.PasswordHash,
		&u.IsAdmin,
		&u.CreatedAt,
		&u.LastLogin,
		&u.LoginCount,
	)
	return u, err
}

// ListUsers returns all users in storage order.
func (q *Queries) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := q.db.QueryContext(ctx, "SELECT "+userColumns+" FROM users")
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// GetUserByID returns the user with the given id, or sql.ErrNoRows.
func (q *Queries) GetUserByID(ctx context.Context, id int64) (model.User, error) {
	row := q.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = $1", id)
	return scanUser(row)
}

// GetUserByEmail returns the user with the given email, or sql.ErrNoRows.
func (q *Queries) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	row := q.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email = $1", email)
	return scanUser(row)
}

// CreateUserParams holds the fields for CreateUser.
type CreateUserParams struct {
	Email        string
	FullName     sql.NullString
	PasswordHash string
	IsAdmin      bool
	CreatedAt    time.Time
}

// CreateUser inserts a new user and returns the stored row.
// Returns ErrDuplicateEmail if the email is already taken.
func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (model.User, error) {
	row := q.db.QueryRowContext(ctx, `
		INSERT INTO users (email, full_name, password_hash, is_admin, created_at, login_count)
		VALUES ($1, $2, $3, $4, $5, 0)
		RETURNING `+userColumns,
		arg.Email, arg.FullName, arg.PasswordHash, arg.IsAdmin, arg.CreatedAt)

	u, err := scanUser(row)
	if err != nil {
		if isUniqueViolation(err) {
			return model.User{}, ErrDuplicateEmail
		}
		return model.User{}, fmt.Errorf("creating user: %w", err)
	}
	return u, nil
}

// UpdateUserParams holds the fields for UpdateUser. Callers merge unchanged
// fields from the current row before calling.
type UpdateUserParams struct {
	ID           int64
	FullName     sql.NullString
	PasswordHash string
}

// UpdateUser updates the mutable user fields and returns the stored row.
func (q *Queries) UpdateUser(ctx context.Context, arg UpdateUserParams) (model.User, error) {
	row := q.db.QueryRowContext(ctx, `
		UPDATE users SET full_name = $1, password_hash = $2
		WHERE id = $3
		RETURNING `+userColumns,
		arg.FullName, arg.PasswordHash, arg.ID)
	return scanUser(row)
}

// DeleteUser permanently removes a user. Returns sql.ErrNoRows if no user
// with the given id exists.
func (q *Queries) DeleteUser(ctx context.Context, id int64) error {
	res, err := q.db.ExecContext(ctx, "DELETE FROM users WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// RecordLogin bumps login telemetry for a successful authentication and
// returns the updated row. The increment and timestamp land in one statement.
func (q *Queries) RecordLogin(ctx context.Context, id int64) (model.User, error) {
	row := q.db.QueryRowContext(ctx, `
		UPDATE users SET last_login = now(), login_count = login_count + 1
		WHERE id = $1
		RETURNING `+userColumns, id)
	return scanUser(row)
}

// Authenticate verifies credentials for the given email. A missing user and a
// wrong password are indistinguishable to the caller: both return ok=false
// with a nil error.
func (q *Queries) Authenticate(ctx context.Context, email, password string) (model.User, bool, error) {
	user, err := q.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, false, nil
		}
		return model.User{}, false, fmt.Errorf("looking up user: %w", err)
	}

	valid, err := auth.CheckPassword(password, user.PasswordHash)
	if err != nil || !valid {
		return model.User{}, false, nil
	}

	updated, err := q.RecordLogin(ctx, user.ID)
	if err != nil {
		return model.User{}, false, fmt.Errorf("recording login: %w", err)
	}
	return updated, true, nil
}

// isUniqueViolation reports whether err is a Postgres unique constraint error.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
