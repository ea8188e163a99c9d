// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package session keeps signed-in users in server-side sessions.
package session

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"
)

// userIDKey is the session key holding the signed-in user id.
const userIDKey = "user_id"

// New creates a new session manager configured with SQLite store.
func New(db *sql.DB, isDev bool) *scs.SessionManager {
	sm := scs.New()
	sm.Store = sqlite3store.New(db)

	sm.Lifetime = 24 * time.Hour
	sm.Cookie.HttpOnly = true
	sm.Cookie.SameSite = http.SameSiteLaxMode
	sm.Cookie.Path = "/"
	sm.Cookie.Secure = !isDev
	if !isDev {
		// The __Host- prefix requires Secure, Path=/ and no Domain.
		sm.Cookie.Name = "__Host-session"
	}

	return sm
}

// Identities reports the user bound to the request's session.
type Identities struct {
	sm *scs.SessionManager
}

// NewIdentities wraps sm.
func NewIdentities(sm *scs.SessionManager) *Identities {
	return &Identities{sm: sm}
}

// ResolveCurrentUser returns the signed-in user id. The request must have
// passed through the manager's LoadAndSave middleware.
func (i *Identities) ResolveCurrentUser(ctx context.Context) (int64, bool) {
	id, ok := i.sm.Get(ctx, userIDKey).(int64)
	if !ok || id <= 0 {
		return 0, false
	}
	return id, true
}

// SignIn binds userID to the session under a fresh token.
func (i *Identities) SignIn(ctx context.Context, userID int64) error {
	if err := i.sm.RenewToken(ctx); err != nil {
		return fmt.Errorf("renewing session token: %w", err)
	}
	i.sm.Put(ctx, userIDKey, userID)
	return nil
}

// SignOut destroys the session.
func (i *Identities) SignOut(ctx context.Context) error {
	if err := i.sm.Destroy(ctx); err != nil {
		return fmt.Errorf("destroying session: %w", err)
	}
	return nil
}
