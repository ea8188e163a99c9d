// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/olegiv/siteflow/internal/model"
)

// ErrNoSession is returned when the request carries no authenticated session.
var ErrNoSession = errors.New("no authenticated session")

// ErrProfileNotFound is returned by RoleSource when the user has no profile record.
var ErrProfileNotFound = errors.New("user profile not found")

// IdentityProvider reports the user id bound to the current session.
type IdentityProvider interface {
	ResolveCurrentUser(ctx context.Context) (userID int64, found bool)
}

// RoleSource loads the stored role string of a user.
type RoleSource interface {
	GetUserRole(ctx context.Context, userID int64) (string, error)
}

// Resolver turns a session into a model.Identity.
type Resolver struct {
	sessions IdentityProvider
	roles    RoleSource
}

// NewResolver creates a Resolver.
func NewResolver(sessions IdentityProvider, roles RoleSource) *Resolver {
	return &Resolver{sessions: sessions, roles: roles}
}

// Resolve returns the caller identity. Without a session it fails with
// ErrNoSession. A missing profile or an unrecognised stored role resolves to
// viewer, never to something more privileged.
func (r *Resolver) Resolve(ctx context.Context) (model.Identity, error) {
	userID, ok := r.sessions.ResolveCurrentUser(ctx)
	if !ok || userID <= 0 {
		return model.Identity{}, ErrNoSession
	}

	raw, err := r.roles.GetUserRole(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrProfileNotFound) {
			slog.Warn("user profile missing, defaulting to viewer", "user_id", userID)
			return model.Identity{UserID: userID, Role: model.RoleViewer}, nil
		}
		return model.Identity{}, fmt.Errorf("loading role for user %d: %w", userID, err)
	}

	role, err := model.ParseRole(raw)
	if err != nil {
		slog.Warn("stored role not recognised, defaulting to viewer", "user_id", userID, "role", raw)
		role = model.RoleViewer
	}
	return model.Identity{UserID: userID, Role: role}, nil
}
