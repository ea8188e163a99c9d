// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"log/slog"
	"net/http"

	"filippo.io/csrf/gorilla"
)

// CSRFConfig configures cross-origin request protection for the API.
// Protection relies on Fetch metadata (Sec-Fetch-Site and Origin), so no
// token travels with the request.
type CSRFConfig struct {
	// Key is passed to the gorilla-compatible constructor. The Fetch
	// metadata check does not derive anything from it.
	Key []byte

	// TrustedOrigins are host[:port] values whose cross-origin requests are
	// accepted.
	TrustedOrigins []string
}

// CSRF rejects cross-origin state-changing requests with a JSON 403.
// Safe methods always pass.
func CSRF(cfg CSRFConfig) func(http.Handler) http.Handler {
	opts := []csrf.Option{csrf.ErrorHandler(http.HandlerFunc(csrfRejected))}
	if len(cfg.TrustedOrigins) > 0 {
		opts = append(opts, csrf.TrustedOrigins(cfg.TrustedOrigins))
	}
	return csrf.Protect(cfg.Key, opts...)
}

func csrfRejected(w http.ResponseWriter, r *http.Request) {
	reason := "unknown"
	if err := csrf.FailureReason(r); err != nil {
		reason = err.Error()
	}
	slog.Warn("cross-origin request rejected",
		"reason", reason,
		"method", r.Method,
		"path", r.URL.Path,
		"origin", r.Header.Get("Origin"),
		"sec_fetch_site", r.Header.Get("Sec-Fetch-Site"),
	)
	WriteAPIError(w, http.StatusForbidden, "unauthorized", "cross-origin request rejected", nil)
}
