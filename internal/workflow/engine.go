// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package workflow implements the editorial approval pipeline: editors submit
// pending changes, admins approve or reject them or apply edits directly.
// Every operation takes a resolved identity and returns a tagged *Error.
package workflow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/olegiv/siteflow/internal/audit"
	"github.com/olegiv/siteflow/internal/metrics"
	"github.com/olegiv/siteflow/internal/model"
	"github.com/olegiv/siteflow/internal/ratelimit"
	"github.com/olegiv/siteflow/internal/store"
	"github.com/olegiv/siteflow/internal/validation"
)

// Store is the datastore surface the engine needs. *store.Store implements it.
type Store interface {
	store.Records
	InTx(ctx context.Context, fn func(store.Records) error) error
	ListPendingChanges(ctx context.Context, status model.ChangeStatus, limit int) ([]model.PendingChange, error)
	GetUserByID(ctx context.Context, id int64) (model.User, error)
	GetUserByEmail(ctx context.Context, email string) (model.User, error)
	UpdateUserRole(ctx context.Context, userID int64, role model.Role) error
}

var _ Store = (*store.Store)(nil)

// Engine runs workflow operations.
type Engine struct {
	store   Store
	limiter *ratelimit.Limiter
	audit   *audit.Recorder
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithMetrics records operation outcomes on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithClock overrides the time source for first-published stamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// New creates an Engine. The limiter is owned by the caller so tests and
// servers each get their own counter table.
func New(st Store, limiter *ratelimit.Limiter, recorder *audit.Recorder, opts ...Option) *Engine {
	e := &Engine{
		store:   st,
		limiter: limiter,
		audit:   recorder,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Limiter returns the engine's rate limiter.
func (e *Engine) Limiter() *ratelimit.Limiter {
	return e.limiter
}

// Operation names used in logs and metrics.
const (
	opSubmit     = "submit"
	opApprove    = "approve"
	opReject     = "reject"
	opDirect     = "direct_apply"
	opDelete     = "delete"
	opRoleChange = "role_change"
	opContact    = "contact"
	opLogin      = "login"
	opList       = "list"
)

func (e *Engine) observe(op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = string(KindOf(err))
	}
	e.metrics.Operation(op, outcome)
}

// requireIdentity fails unauthenticated callers before anything is read.
func requireIdentity(actor model.Identity) error {
	if !actor.Authenticated() {
		return unauthorized("authentication required")
	}
	return nil
}

// deny records a permission failure and returns it.
func (e *Engine) deny(ctx context.Context, actor model.Identity, client model.ClientInfo, op, resourceType, msg string) error {
	e.logger.Warn("permission denied",
		"user_id", actor.UserID,
		"role", actor.Role,
		"action", op,
		"resource_type", resourceType,
	)
	entry := audit.Entry(model.AuditAccessDenied, actor.UserID, client)
	entry.ResourceType = resourceType
	entry.Details = map[string]any{"operation": op, "role": string(actor.Role)}
	e.audit.Record(ctx, entry)
	return unauthorized(msg)
}

// limit consumes one request from key under p.
func (e *Engine) limit(ctx context.Context, p ratelimit.Policy, key string, actorID int64, client model.ClientInfo) error {
	res := e.limiter.Check(p, key)
	if res.Allowed {
		return nil
	}
	e.metrics.RateLimited(p.Name)
	e.logger.Warn("rate limit exceeded",
		"user_id", actorID,
		"policy", p.Name,
		"key", key,
		"reset_at", res.ResetAt,
		"denials", res.Denials,
	)
	// One audit row per key and window; later denials are logged and counted.
	if res.Denials == 1 {
		entry := audit.Entry(model.AuditRateLimited, actorID, client)
		entry.Details = map[string]any{"policy": p.Name, "key": key, "reset_at": res.ResetAt}
		e.audit.Record(ctx, entry)
	}
	return &Error{Kind: KindRateLimited, Message: "too many requests, try again later", ResetAt: res.ResetAt}
}

// classify converts a datastore or validation error into a tagged error.
// safe says whether repeating the operation cannot apply it twice.
func classify(err error, safe bool) error {
	var we *Error
	var ve *validation.Error
	switch {
	case err == nil:
		return nil
	case errors.As(err, &we):
		return we
	case errors.As(err, &ve):
		return newError(KindValidation, ve.Error(), err)
	case errors.Is(err, store.ErrNotFound):
		return newError(KindNotFound, "resource not found", err)
	case errors.Is(err, store.ErrNotPending):
		return newError(KindAlreadyReviewed, "change has already been reviewed", err)
	case errors.Is(err, store.ErrImageServiceMismatch):
		return newError(KindValidation, "image does not belong to that service", err)
	default:
		return internal("datastore operation failed", err, safe)
	}
}

func int64Ptr(v int64) *int64 { return &v }
