// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/olegiv/siteflow/internal/auth"
	"github.com/olegiv/siteflow/internal/model"
)

// CreateUserParams holds the fields of a new user.
type CreateUserParams struct {
	Email        string
	PasswordHash string
	Role         model.Role
	Name         string
}

const userColumns = `id, email, password_hash, role, name, created_at, updated_at`

// CreateUser inserts a user and returns it.
func (s *Store) CreateUser(ctx context.Context, p CreateUserParams) (model.User, error) {
	ctx, cancel := s.call(ctx)
	defer cancel()

	now := s.Now()
	res, err := s.q.ExecContext(ctx,
		`INSERT INTO users (email, password_hash, role, name, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		p.Email, p.PasswordHash, string(p.Role), p.Name, now, now)
	if err != nil {
		return model.User{}, fmt.Errorf("creating user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.User{}, fmt.Errorf("reading user id: %w", err)
	}
	return model.User{
		ID:           id,
		Email:        p.Email,
		PasswordHash: p.PasswordHash,
		Role:         p.Role,
		Name:         p.Name,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// GetUserByID loads a user by id.
func (s *Store) GetUserByID(ctx context.Context, id int64) (model.User, error) {
	return s.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

// GetUserByEmail loads a user by email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	return s.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE email = ? COLLATE NOCASE`, email)
}

func (s *Store) getUser(ctx context.Context, query string, arg any) (model.User, error) {
	ctx, cancel := s.call(ctx)
	defer cancel()

	var u model.User
	var role string
	err := s.q.QueryRowContext(ctx, query, arg).Scan(
		&u.ID, &u.Email, &u.PasswordHash, &role, &u.Name, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, fmt.Errorf("user %v: %w", arg, ErrNotFound)
	}
	if err != nil {
		return model.User{}, fmt.Errorf("loading user: %w", err)
	}
	u.Role = model.Role(role)
	return u, nil
}

// GetUserRole returns the stored role of a user. A missing user matches
// both ErrNotFound and auth.ErrProfileNotFound.
func (s *Store) GetUserRole(ctx context.Context, userID int64) (string, error) {
	ctx, cancel := s.call(ctx)
	defer cancel()

	var role string
	err := s.q.QueryRowContext(ctx, `SELECT role FROM users WHERE id = ?`, userID).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("user %d: %w: %w", userID, ErrNotFound, auth.ErrProfileNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("loading role of user %d: %w", userID, err)
	}
	return role, nil
}

// UpdateUserRole sets a user's role. Demoting an admin is conditional on
// another admin remaining, checked in the same statement as the write, so
// concurrent demotions cannot leave the table without an admin. Such a
// demotion fails with ErrLastAdmin.
func (s *Store) UpdateUserRole(ctx context.Context, userID int64, role model.Role) error {
	ctx, cancel := s.call(ctx)
	defer cancel()

	res, err := s.q.ExecContext(ctx,
		`UPDATE users SET role = ?, updated_at = ?
		 WHERE id = ?
		   AND (role <> 'admin' OR ? = 'admin'
		        OR (SELECT COUNT(*) FROM users WHERE role = 'admin') > 1)`,
		string(role), s.Now(), userID, string(role))
	if err != nil {
		return fmt.Errorf("updating role of user %d: %w", userID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating role of user %d: %w", userID, err)
	}
	if n > 0 {
		return nil
	}

	if _, err := s.GetUserByID(ctx, userID); err != nil {
		return err
	}
	return ErrLastAdmin
}

// CountUsersByRole counts users holding role.
func (s *Store) CountUsersByRole(ctx context.Context, role model.Role) (int64, error) {
	ctx, cancel := s.call(ctx)
	defer cancel()

	var n int64
	if err := s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE role = ?`, string(role)).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting %s users: %w", role, err)
	}
	return n, nil
}
