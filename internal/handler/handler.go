// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package handler exposes the editorial workflow as a JSON API.
package handler

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/siteflow/internal/model"
	"github.com/olegiv/siteflow/internal/validation"
	"github.com/olegiv/siteflow/internal/workflow"
)

// Workflow is the set of engine operations the API calls.
type Workflow interface {
	SubmitChange(ctx context.Context, actor model.Identity, client model.ClientInfo, req model.ChangeRequest) (*model.PendingChange, error)
	ApproveChange(ctx context.Context, actor model.Identity, client model.ClientInfo, changeID int64) (*model.PendingChange, error)
	RejectChange(ctx context.Context, actor model.Identity, client model.ClientInfo, changeID int64, note *string) (*model.PendingChange, error)
	ListChanges(ctx context.Context, actor model.Identity, status string, limit int) ([]model.PendingChange, error)
	ApplyDirect(ctx context.Context, actor model.Identity, client model.ClientInfo, req model.ChangeRequest) (int64, error)
	DeleteResource(ctx context.Context, actor model.Identity, client model.ClientInfo, rt model.ResourceType, id int64) error
	UpdateUserRole(ctx context.Context, actor model.Identity, client model.ClientInfo, targetID int64, newRole string) error
	SubmitContactMessage(ctx context.Context, client model.ClientInfo, in validation.Input) (int64, error)
	Login(ctx context.Context, client model.ClientInfo, email, password string) (model.User, error)
	Logout(ctx context.Context, actor model.Identity, client model.ClientInfo)
}

var _ Workflow = (*workflow.Engine)(nil)

// Sessions binds and unbinds the session user.
type Sessions interface {
	SignIn(ctx context.Context, userID int64) error
	SignOut(ctx context.Context) error
}

// Handler serves the /api routes.
type Handler struct {
	engine   Workflow
	sessions Sessions
	logger   *slog.Logger
	now      func() time.Time
}

// New creates a Handler.
func New(engine Workflow, sessions Sessions, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		engine:   engine,
		sessions: sessions,
		logger:   logger,
		now:      time.Now,
	}
}

// Routes registers the API on r.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/login", h.Login)
	r.Post("/logout", h.Logout)

	r.Get("/changes", h.ListChanges)
	r.Post("/changes", h.SubmitChange)
	r.Post("/changes/{id}/approve", h.ApproveChange)
	r.Post("/changes/{id}/reject", h.RejectChange)

	r.Post("/content/{type}", h.CreateContent)
	r.Put("/content/{type}/{id}", h.UpdateContent)
	r.Post("/content/{type}/{id}/{action}", h.ContentAction)
	r.Delete("/content/{type}/{id}", h.DeleteContent)

	r.Put("/users/{id}/role", h.UpdateUserRole)

	r.Post("/contact", h.SubmitContact)
}
