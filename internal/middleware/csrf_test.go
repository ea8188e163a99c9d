// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCSRF(t *testing.T) {
	handler := CSRF(CSRFConfig{
		Key:            []byte("12345678901234567890123456789012"),
		TrustedOrigins: []string{"admin.example.org"},
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name      string
		method    string
		fetchSite string
		origin    string
		want      int
	}{
		{"cross-site post", http.MethodPost, "cross-site", "https://evil.example.net", http.StatusForbidden},
		{"cross-site delete", http.MethodDelete, "cross-site", "https://evil.example.net", http.StatusForbidden},
		{"same-origin post", http.MethodPost, "same-origin", "https://example.com", http.StatusOK},
		{"cross-site get", http.MethodGet, "cross-site", "https://evil.example.net", http.StatusOK},
		{"trusted origin post", http.MethodPost, "cross-site", "https://admin.example.org", http.StatusOK},
		{"non-browser client", http.MethodPost, "", "", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "https://example.com/api/changes", nil)
			if tt.fetchSite != "" {
				req.Header.Set("Sec-Fetch-Site", tt.fetchSite)
			}
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			if tt.want != http.StatusForbidden {
				return
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q, want application/json", ct)
			}
			var body APIError
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decoding body: %v", err)
			}
			if body.Error.Code != "unauthorized" {
				t.Errorf("code = %q, want unauthorized", body.Error.Code)
			}
		})
	}
}
