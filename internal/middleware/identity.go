// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/olegiv/siteflow/internal/auth"
	"github.com/olegiv/siteflow/internal/model"
)

// IdentityResolver resolves the caller of a request.
type IdentityResolver interface {
	Resolve(ctx context.Context) (model.Identity, error)
}

var _ IdentityResolver = (*auth.Resolver)(nil)

// LoadIdentity resolves the session user into the request context. Requests
// without a session continue as unauthenticated; the workflow decides what
// they may do. A lookup failure also continues unauthenticated so that a
// datastore hiccup never grants access.
func LoadIdentity(resolver IdentityResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := resolver.Resolve(r.Context())
			if err != nil {
				if !errors.Is(err, auth.ErrNoSession) {
					slog.Warn("resolving request identity failed", "error", err, "path", r.URL.Path)
				}
				next.ServeHTTP(w, r)
				return
			}
			ctx := context.WithValue(r.Context(), ContextKeyIdentity, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetIdentity returns the caller loaded by LoadIdentity, or the zero
// (unauthenticated) identity.
func GetIdentity(r *http.Request) model.Identity {
	id, _ := r.Context().Value(ContextKeyIdentity).(model.Identity)
	return id
}

// WithIdentity returns a copy of r carrying id. Intended for tests and
// internal callers that already know the caller.
func WithIdentity(r *http.Request, id model.Identity) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), ContextKeyIdentity, id))
}

// GetClientInfo returns the client address and user agent of r.
func GetClientInfo(r *http.Request) model.ClientInfo {
	return model.ClientInfo{
		IP:        GetClientIP(r),
		UserAgent: r.UserAgent(),
	}
}
