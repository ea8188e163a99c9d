// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/olegiv/siteflow/internal/auth"
	"github.com/olegiv/siteflow/internal/model"
)

// Default admin credentials
const (
	DefaultAdminEmail    = "admin@example.com"
	DefaultAdminPassword = "changeme"
	DefaultAdminName     = "Administrator"
)

// SeedOptions overrides the default admin account.
type SeedOptions struct {
	AdminEmail    string
	AdminPassword string
}

// Seed creates the initial admin user if it does not exist yet.
func Seed(ctx context.Context, s *Store, opts SeedOptions) error {
	email := opts.AdminEmail
	if email == "" {
		email = DefaultAdminEmail
	}
	password := opts.AdminPassword
	if password == "" {
		password = DefaultAdminPassword
	}

	_, err := s.GetUserByEmail(ctx, email)
	if err == nil {
		slog.Info("admin user already exists, skipping seed")
		return nil
	}
	if !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("checking for admin user: %w", err)
	}

	passwordHash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	user, err := s.CreateUser(ctx, CreateUserParams{
		Email:        email,
		PasswordHash: passwordHash,
		Role:         model.RoleAdmin,
		Name:         DefaultAdminName,
	})
	if err != nil {
		return fmt.Errorf("creating admin user: %w", err)
	}

	attrs := []any{"id", user.ID, "email", user.Email}
	if opts.AdminPassword == "" {
		slog.Warn("created default admin user with the default password, change it", attrs...)
	} else {
		slog.Info("created admin user", attrs...)
	}
	return nil
}
