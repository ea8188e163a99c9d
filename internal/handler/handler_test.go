// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/siteflow/internal/audit"
	"github.com/olegiv/siteflow/internal/auth"
	"github.com/olegiv/siteflow/internal/middleware"
	"github.com/olegiv/siteflow/internal/model"
	"github.com/olegiv/siteflow/internal/ratelimit"
	"github.com/olegiv/siteflow/internal/store"
	"github.com/olegiv/siteflow/internal/testutil"
	"github.com/olegiv/siteflow/internal/workflow"
)

type fakeSessions struct {
	signedIn  int64
	signedOut bool
	err       error
}

func (s *fakeSessions) SignIn(_ context.Context, userID int64) error {
	if s.err != nil {
		return s.err
	}
	s.signedIn = userID
	return nil
}

func (s *fakeSessions) SignOut(context.Context) error {
	s.signedOut = true
	return s.err
}

type apiFixture struct {
	st       *store.Store
	sessions *fakeSessions
	router   http.Handler
	admin    model.Identity
	editor   model.Identity
	viewer   model.Identity
}

func newAPI(t *testing.T) *apiFixture {
	t.Helper()
	st := testutil.TestStore(t)
	logger := testutil.TestLoggerSilent()
	engine := workflow.New(st, ratelimit.New(nil), audit.New(st, logger), workflow.WithLogger(logger))

	f := &apiFixture{st: st, sessions: &fakeSessions{}}
	f.admin = model.Identity{UserID: testutil.CreateUser(t, st, "admin@example.com", model.RoleAdmin), Role: model.RoleAdmin}
	f.editor = model.Identity{UserID: testutil.CreateUser(t, st, "editor@example.com", model.RoleEditor), Role: model.RoleEditor}
	f.viewer = model.Identity{UserID: testutil.CreateUser(t, st, "viewer@example.com", model.RoleViewer), Role: model.RoleViewer}

	r := chi.NewRouter()
	r.Route("/api", New(engine, f.sessions, logger).Routes)
	f.router = r
	return f
}

// do sends a JSON request as id. The zero identity is anonymous.
func (f *apiFixture) do(t *testing.T, method, path string, body any, id model.Identity) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.RemoteAddr = "203.0.113.9:4711"
	req.Header.Set("User-Agent", "siteflow-test")
	if id.Authenticated() {
		req = middleware.WithIdentity(req, id)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decodeData[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var resp struct {
		Data T     `json:"data"`
		Meta *Meta `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp.Data
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) middleware.APIError {
	t.Helper()
	var resp middleware.APIError
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

var testimonial = map[string]any{
	"name":        "Jane Doe",
	"company":     "Acme",
	"description": "They fixed our roof in a day.",
	"rating":      5,
}

func serviceBody(title string) map[string]any {
	return map[string]any{
		"title":         title,
		"description":   "Full roof replacement",
		"require_image": false,
	}
}

func TestSubmitAndApprove(t *testing.T) {
	f := newAPI(t)

	w := f.do(t, http.MethodPost, "/api/changes", ChangeRequest{
		ResourceType: "testimonial",
		Action:       "create",
		Payload:      testimonial,
	}, f.editor)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	submitted := decodeData[model.PendingChange](t, w)
	assert.Equal(t, model.ChangeStatusPending, submitted.Status)
	assert.Equal(t, f.editor.UserID, submitted.SubmittedBy)

	path := fmt.Sprintf("/api/changes/%d/approve", submitted.ID)
	w = f.do(t, http.MethodPost, path, nil, f.admin)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	approved := decodeData[model.PendingChange](t, w)
	assert.Equal(t, model.ChangeStatusApproved, approved.Status)
	require.NotNil(t, approved.ResourceID)

	rec, err := f.st.GetByID(context.Background(), "testimonials", *approved.ResourceID)
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", rec.String("name"))

	w = f.do(t, http.MethodPost, path, nil, f.admin)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "already_reviewed", decodeError(t, w).Error.Code)
}

func TestRejectChange(t *testing.T) {
	f := newAPI(t)

	w := f.do(t, http.MethodPost, "/api/changes", ChangeRequest{
		ResourceType: "testimonial",
		Action:       "create",
		Payload:      testimonial,
	}, f.editor)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	change := decodeData[model.PendingChange](t, w)

	path := fmt.Sprintf("/api/changes/%d/reject", change.ID)
	w = f.do(t, http.MethodPost, path, map[string]string{"note": "Needs a photo"}, f.admin)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	rejected := decodeData[model.PendingChange](t, w)
	assert.Equal(t, model.ChangeStatusRejected, rejected.Status)
	require.NotNil(t, rejected.ReviewNote)
	assert.Equal(t, "Needs a photo", *rejected.ReviewNote)

	// Editors cannot review.
	w = f.do(t, http.MethodPost, path, nil, f.editor)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestErrorStatuses(t *testing.T) {
	f := newAPI(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		id     model.Identity
		status int
		code   string
	}{
		{"anonymous submit", http.MethodPost, "/api/changes", ChangeRequest{ResourceType: "testimonial", Action: "create", Payload: testimonial}, model.Identity{}, http.StatusUnauthorized, "unauthorized"},
		{"viewer submit", http.MethodPost, "/api/changes", ChangeRequest{ResourceType: "testimonial", Action: "create", Payload: testimonial}, f.viewer, http.StatusForbidden, "unauthorized"},
		{"unknown resource type", http.MethodPost, "/api/changes", ChangeRequest{ResourceType: "page", Action: "create"}, f.editor, http.StatusUnprocessableEntity, "validation_failed"},
		{"unknown action", http.MethodPost, "/api/changes", ChangeRequest{ResourceType: "blog", Action: "archive"}, f.editor, http.StatusUnprocessableEntity, "validation_failed"},
		{"invalid payload", http.MethodPost, "/api/changes", ChangeRequest{ResourceType: "testimonial", Action: "create", Payload: model.Payload{"name": "J"}}, f.editor, http.StatusUnprocessableEntity, "validation_failed"},
		{"missing change", http.MethodPost, "/api/changes/999/approve", nil, f.admin, http.StatusNotFound, "not_found"},
		{"bad change id", http.MethodPost, "/api/changes/abc/approve", nil, f.admin, http.StatusUnprocessableEntity, "validation_failed"},
		{"zero change id", http.MethodPost, "/api/changes/0/reject", nil, f.admin, http.StatusUnprocessableEntity, "validation_failed"},
		{"anonymous list", http.MethodGet, "/api/changes", nil, model.Identity{}, http.StatusUnauthorized, "unauthorized"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(t, tt.method, tt.path, tt.body, tt.id)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.Equal(t, tt.code, decodeError(t, w).Error.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
		})
	}
}

func TestMalformedBody(t *testing.T) {
	f := newAPI(t)

	req := httptest.NewRequest(http.MethodPost, "/api/changes", bytes.NewBufferString("{not json"))
	req = middleware.WithIdentity(req, f.editor)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, decodeError(t, w).Error.Message, "invalid JSON body")
}

func TestValidationDetails(t *testing.T) {
	f := newAPI(t)

	w := f.do(t, http.MethodPost, "/api/changes", ChangeRequest{
		ResourceType: "testimonial",
		Action:       "create",
		Payload:      model.Payload{"name": "Jane Doe", "description": "Fine work overall", "rating": 9},
	}, f.editor)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())
	apiErr := decodeError(t, w)
	assert.Contains(t, apiErr.Error.Details, "rating")
}

func TestListChanges(t *testing.T) {
	f := newAPI(t)

	for range 2 {
		w := f.do(t, http.MethodPost, "/api/changes", ChangeRequest{
			ResourceType: "testimonial",
			Action:       "create",
			Payload:      testimonial,
		}, f.editor)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}

	w := f.do(t, http.MethodGet, "/api/changes?status=pending", nil, f.viewer)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Data []model.PendingChange `json:"data"`
		Meta Meta                  `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Data, 2)
	assert.Equal(t, 2, resp.Meta.Total)

	w = f.do(t, http.MethodGet, "/api/changes?status=approved", nil, f.admin)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decodeData[[]model.PendingChange](t, w))

	w = f.do(t, http.MethodGet, "/api/changes?limit=1", nil, f.admin)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeData[[]model.PendingChange](t, w), 1)

	w = f.do(t, http.MethodGet, "/api/changes?limit=abc", nil, f.admin)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = f.do(t, http.MethodGet, "/api/changes?status=maybe", nil, f.admin)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestContentRoutes(t *testing.T) {
	f := newAPI(t)

	w := f.do(t, http.MethodPost, "/api/content/service", serviceBody("Roofing"), f.admin)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decodeData[ContentResult](t, w)
	assert.Equal(t, model.ResourceService, created.ResourceType)
	require.Positive(t, created.ID)

	base := "/api/content/service/" + strconv.FormatInt(created.ID, 10)

	w = f.do(t, http.MethodPut, base, serviceBody("Roof repair"), f.admin)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = f.do(t, http.MethodPost, base+"/publish", nil, f.admin)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	rec, err := f.st.GetByID(context.Background(), "services", created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Roof repair", rec.String("title"))
	assert.True(t, rec.Bool("is_published"))

	w = f.do(t, http.MethodPost, base+"/create", nil, f.admin)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = f.do(t, http.MethodPost, "/api/content/service", serviceBody("Gutters"), f.editor)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(t, http.MethodDelete, base, nil, f.editor)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(t, http.MethodDelete, base, nil, f.admin)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = f.do(t, http.MethodDelete, base, nil, f.admin)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(t, http.MethodDelete, "/api/content/page/1", nil, f.admin)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestUpdateUserRole(t *testing.T) {
	f := newAPI(t)

	path := fmt.Sprintf("/api/users/%d/role", f.editor.UserID)
	w := f.do(t, http.MethodPut, path, RoleRequest{Role: "viewer"}, f.admin)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	role, err := f.st.GetUserRole(context.Background(), f.editor.UserID)
	require.NoError(t, err)
	assert.Equal(t, "viewer", role)

	w = f.do(t, http.MethodPut, path, RoleRequest{Role: " editor "}, f.admin)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decodeData[map[string]any](t, w)
	assert.Equal(t, "editor", body["role"])

	w = f.do(t, http.MethodPut, path, RoleRequest{Role: "owner"}, f.admin)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	self := fmt.Sprintf("/api/users/%d/role", f.admin.UserID)
	w = f.do(t, http.MethodPut, self, RoleRequest{Role: "viewer"}, f.admin)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(t, http.MethodPut, "/api/users/9999/role", RoleRequest{Role: "viewer"}, f.admin)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func createUserWithPassword(t *testing.T, st *store.Store, email, password string) int64 {
	t.Helper()
	hash, err := auth.HashPassword(password)
	require.NoError(t, err)
	u, err := st.CreateUser(context.Background(), store.CreateUserParams{
		Email:        email,
		PasswordHash: hash,
		Role:         model.RoleEditor,
		Name:         "Owner",
	})
	require.NoError(t, err)
	return u.ID
}

func TestLoginLogout(t *testing.T) {
	f := newAPI(t)
	id := createUserWithPassword(t, f.st, "owner@example.com", "correct horse battery")

	w := f.do(t, http.MethodPost, "/api/login", LoginRequest{Email: "owner@example.com", Password: "wrong"}, model.Identity{})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Zero(t, f.sessions.signedIn)

	w = f.do(t, http.MethodPost, "/api/login", LoginRequest{Email: "owner@example.com", Password: "correct horse battery"}, model.Identity{})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, id, f.sessions.signedIn)
	assert.NotContains(t, w.Body.String(), "argon2")
	assert.Equal(t, "owner@example.com", decodeData[model.User](t, w).Email)

	w = f.do(t, http.MethodPost, "/api/logout", nil, model.Identity{UserID: id, Role: model.RoleEditor})
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.True(t, f.sessions.signedOut)
}

func TestLogin_SessionFailure(t *testing.T) {
	f := newAPI(t)
	createUserWithPassword(t, f.st, "owner@example.com", "correct horse battery")
	f.sessions.err = errors.New("session store down")

	w := f.do(t, http.MethodPost, "/api/login", LoginRequest{Email: "owner@example.com", Password: "correct horse battery"}, model.Identity{})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "internal", decodeError(t, w).Error.Code)
}

func TestLogin_RateLimited(t *testing.T) {
	f := newAPI(t)

	for range ratelimit.PolicyAuth.MaxRequests {
		w := f.do(t, http.MethodPost, "/api/login", LoginRequest{Email: "nobody@example.com", Password: "x"}, model.Identity{})
		require.Equal(t, http.StatusUnauthorized, w.Code)
	}

	w := f.do(t, http.MethodPost, "/api/login", LoginRequest{Email: "nobody@example.com", Password: "x"}, model.Identity{})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "rate_limited", decodeError(t, w).Error.Code)
	secs, err := strconv.Atoi(w.Header().Get("Retry-After"))
	require.NoError(t, err)
	assert.Positive(t, secs)
}

func TestSubmitContact(t *testing.T) {
	f := newAPI(t)

	w := f.do(t, http.MethodPost, "/api/contact", map[string]any{
		"name":    "Jane Doe",
		"email":   "jane@example.com",
		"subject": "Quote",
		"message": "Please call me about a new roof.",
		"consent": true,
	}, model.Identity{})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Positive(t, decodeData[map[string]int64](t, w)["id"])

	w = f.do(t, http.MethodPost, "/api/contact", map[string]any{
		"name":    "Jane Doe",
		"email":   "not-an-email",
		"message": "Please call me about a new roof.",
		"consent": true,
	}, model.Identity{})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, decodeError(t, w).Error.Details, "email")
}
