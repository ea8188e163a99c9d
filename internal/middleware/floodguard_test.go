// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestFloodGuard(t *testing.T) {
	guard := NewFloodGuard(0.001, 3)
	handler := guard.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(remote string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/contact", nil)
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	for i := range 3 {
		if rec := send("192.0.2.1:1000"); rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i+1, rec.Code)
		}
	}

	rec := send("192.0.2.1:1000")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
	var body APIError
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body.Error.Code != "rate_limited" {
		t.Errorf("code = %q, want rate_limited", body.Error.Code)
	}

	// Another address has its own bucket.
	if rec := send("192.0.2.2:1000"); rec.Code != http.StatusOK {
		t.Errorf("other address status = %d, want 200", rec.Code)
	}
}

func TestFloodGuard_Sweep(t *testing.T) {
	guard := NewFloodGuard(1, 1)
	if n := guard.Sweep(); n != 0 {
		t.Errorf("Sweep() on empty guard = %d, want 0", n)
	}

	for i := range maxFloodGuardEntries + 1 {
		guard.cache.get(fmt.Sprintf("10.0.%d.%d", i/256, i%256))
	}
	if n := guard.Sweep(); n != maxFloodGuardEntries+1 {
		t.Errorf("Sweep() = %d, want %d", n, maxFloodGuardEntries+1)
	}
	if n := guard.Sweep(); n != 0 {
		t.Errorf("second Sweep() = %d, want 0", n)
	}
}

func TestWriteAPIError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteAPIError(rec, http.StatusNotFound, "not_found", "change 9 not found", map[string]string{"id": "9"})

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	var body APIError
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body.Error.Code != "not_found" || body.Error.Message != "change 9 not found" || body.Error.Details["id"] != "9" {
		t.Errorf("body = %+v", body)
	}
}
