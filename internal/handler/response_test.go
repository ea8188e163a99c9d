// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/siteflow/internal/middleware"
	"github.com/olegiv/siteflow/internal/model"
	"github.com/olegiv/siteflow/internal/testutil"
	"github.com/olegiv/siteflow/internal/validation"
	"github.com/olegiv/siteflow/internal/workflow"
)

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()

	WriteJSON(w, http.StatusOK, map[string]string{"key": "value"})

	if w.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type 'application/json', got %s", ct)
	}

	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp["key"] != "value" {
		t.Errorf("expected key 'value', got %s", resp["key"])
	}
}

func TestWriteCreated(t *testing.T) {
	w := httptest.NewRecorder()

	WriteCreated(w, map[string]int{"id": 3})

	if w.Code != http.StatusCreated {
		t.Errorf("expected status %d, got %d", http.StatusCreated, w.Code)
	}
	if !strings.Contains(w.Body.String(), `"data":{"id":3}`) {
		t.Errorf("unexpected body %s", w.Body.String())
	}
}

func TestWriteError(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	h := New(nil, nil, testutil.TestLoggerSilent())
	h.now = testutil.FixedClock(now)

	member := model.Identity{UserID: 4, Role: model.RoleEditor}

	tests := []struct {
		name        string
		err         error
		id          model.Identity
		wantStatus  int
		wantCode    string
		wantMessage string
	}{
		{
			name:        "unauthorized anonymous",
			err:         &workflow.Error{Kind: workflow.KindUnauthorized, Message: "authentication required"},
			wantStatus:  http.StatusUnauthorized,
			wantCode:    "unauthorized",
			wantMessage: "authentication required",
		},
		{
			name:        "unauthorized signed in",
			err:         &workflow.Error{Kind: workflow.KindUnauthorized, Message: "your role cannot delete content"},
			id:          member,
			wantStatus:  http.StatusForbidden,
			wantCode:    "unauthorized",
			wantMessage: "your role cannot delete content",
		},
		{
			name:       "validation",
			err:        &workflow.Error{Kind: workflow.KindValidation, Message: "bad"},
			id:         member,
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "validation_failed",
		},
		{
			name:       "not found",
			err:        fmt.Errorf("wrapped: %w", &workflow.Error{Kind: workflow.KindNotFound, Message: "change 9 not found"}),
			id:         member,
			wantStatus: http.StatusNotFound,
			wantCode:   "not_found",
		},
		{
			name:       "already reviewed",
			err:        &workflow.Error{Kind: workflow.KindAlreadyReviewed, Message: "done"},
			id:         member,
			wantStatus: http.StatusConflict,
			wantCode:   "already_reviewed",
		},
		{
			name:       "apply failed",
			err:        &workflow.Error{Kind: workflow.KindApplyFailed, Message: "applying the change failed", Err: errors.New("constraint")},
			id:         member,
			wantStatus: http.StatusBadGateway,
			wantCode:   "apply_failed",
		},
		{
			name:        "internal hides cause",
			err:         &workflow.Error{Kind: workflow.KindInternal, Message: "db exploded", Err: errors.New("secret detail")},
			id:          member,
			wantStatus:  http.StatusInternalServerError,
			wantCode:    "internal",
			wantMessage: "internal error",
		},
		{
			name:        "plain error",
			err:         errors.New("boom"),
			wantStatus:  http.StatusInternalServerError,
			wantCode:    "internal",
			wantMessage: "internal error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/api/x", nil)
			if tt.id.Authenticated() {
				r = middleware.WithIdentity(r, tt.id)
			}
			w := httptest.NewRecorder()

			h.writeError(w, r, tt.err)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			var resp middleware.APIError
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("failed to unmarshal response: %v", err)
			}
			if resp.Error.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", resp.Error.Code, tt.wantCode)
			}
			if tt.wantMessage != "" && resp.Error.Message != tt.wantMessage {
				t.Errorf("message = %q, want %q", resp.Error.Message, tt.wantMessage)
			}
			if strings.Contains(w.Body.String(), "secret detail") {
				t.Error("response leaks internal cause")
			}
		})
	}
}

func TestWriteError_RateLimited(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	h := New(nil, nil, testutil.TestLoggerSilent())
	h.now = testutil.FixedClock(now)

	tests := []struct {
		resetIn time.Duration
		want    string
	}{
		{90*time.Second + 500*time.Millisecond, "91"},
		{15 * time.Minute, "900"},
		{0, "1"},
		{-time.Minute, "1"},
	}
	for _, tt := range tests {
		t.Run(tt.resetIn.String(), func(t *testing.T) {
			w := httptest.NewRecorder()
			err := &workflow.Error{Kind: workflow.KindRateLimited, Message: "slow down", ResetAt: now.Add(tt.resetIn)}

			h.writeError(w, httptest.NewRequest(http.MethodGet, "/", nil), err)

			if w.Code != http.StatusTooManyRequests {
				t.Errorf("status = %d, want 429", w.Code)
			}
			if got := w.Header().Get("Retry-After"); got != tt.want {
				t.Errorf("Retry-After = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWriteError_ValidationDetails(t *testing.T) {
	h := New(nil, nil, testutil.TestLoggerSilent())
	w := httptest.NewRecorder()
	err := &workflow.Error{
		Kind:    workflow.KindValidation,
		Message: "email: is not a valid email address",
		Err:     &validation.Error{Field: "email", Message: "is not a valid email address"},
	}

	h.writeError(w, httptest.NewRequest(http.MethodPost, "/api/contact", nil), err)

	var resp middleware.APIError
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp.Error.Details["email"] != "is not a valid email address" {
		t.Errorf("details = %v", resp.Error.Details)
	}
}

func TestDecodeJSON(t *testing.T) {
	var dst struct {
		Name string `json:"name"`
	}

	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"x"}`))
	if err := decodeJSON(r, &dst); err != nil || dst.Name != "x" {
		t.Errorf("decodeJSON() = %v, name %q", err, dst.Name)
	}

	r = httptest.NewRequest(http.MethodPost, "/", nil)
	if err := decodeJSON(r, &dst); err != nil {
		t.Errorf("empty body should be accepted, got %v", err)
	}

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":`))
	if err := decodeJSON(r, &dst); err == nil {
		t.Error("expected error for truncated body")
	}
}

func TestParseIDParam(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		want    int64
		wantErr bool
	}{
		{"valid id", "123", 123, false},
		{"large id", "9999999999", 9999999999, false},
		{"zero id", "0", 0, true},
		{"empty id", "", 0, true},
		{"invalid id", "abc", 0, true},
		{"negative id", "-1", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			rctx := chi.NewRouteContext()
			rctx.URLParams.Add("id", tt.id)
			req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

			got, err := parseIDParam(req, "id")
			if (err != nil) != tt.wantErr {
				t.Errorf("parseIDParam() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if got != tt.want {
				t.Errorf("parseIDParam() = %d, want %d", got, tt.want)
			}
		})
	}
}
