// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package audit records security-relevant actions. Recording is best effort:
// a failed write is logged and counted, never returned to the caller.
package audit

import (
	"context"
	"log/slog"
	"maps"
	"time"

	"github.com/google/uuid"
	"github.com/mileusna/useragent"

	"github.com/olegiv/siteflow/internal/metrics"
	"github.com/olegiv/siteflow/internal/model"
)

// DefaultWriteTimeout bounds a single audit write.
const DefaultWriteTimeout = 3 * time.Second

// Sink persists audit entries.
type Sink interface {
	InsertAuditLog(ctx context.Context, e *model.AuditEntry) error
}

// Recorder writes audit entries to a Sink.
type Recorder struct {
	sink    Sink
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
	timeout time.Duration
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithMetrics counts audit writes on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Recorder) { r.metrics = m }
}

// WithClock overrides the time source for entry timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) {
		if now != nil {
			r.now = now
		}
	}
}

// WithTimeout overrides the per-write timeout.
func WithTimeout(d time.Duration) Option {
	return func(r *Recorder) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// New creates a Recorder.
func New(sink Sink, logger *slog.Logger, opts ...Option) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Recorder{
		sink:    sink,
		logger:  logger,
		now:     time.Now,
		timeout: DefaultWriteTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record stores e. The write is detached from ctx cancellation so an entry
// describing a completed action is still written when the request goes away.
func (r *Recorder) Record(ctx context.Context, e model.AuditEntry) {
	if r == nil || r.sink == nil {
		return
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = r.now().UTC()
	}
	e.Details = enrich(e.Details, e.UserAgent)

	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()

	if err := r.sink.InsertAuditLog(wctx, &e); err != nil {
		r.metrics.AuditWrite(false)
		r.logger.Warn("audit write failed",
			"action", e.Action,
			"actor_id", derefID(e.ActorID),
			"resource_type", e.ResourceType,
			"error", err,
		)
		return
	}
	r.metrics.AuditWrite(true)
}

// Entry starts an entry for actor acting from client.
func Entry(action string, actorID int64, client model.ClientInfo) model.AuditEntry {
	e := model.AuditEntry{
		Action:    action,
		IPAddress: client.IP,
		UserAgent: client.UserAgent,
	}
	if actorID > 0 {
		e.ActorID = &actorID
	}
	return e
}

// enrich adds parsed user agent fields to a copy of details.
func enrich(details map[string]any, uaString string) map[string]any {
	if uaString == "" {
		return details
	}
	ua := useragent.Parse(uaString)

	out := make(map[string]any, len(details)+3)
	maps.Copy(out, details)
	if ua.Name != "" {
		out["browser"] = ua.Name
	}
	if ua.OS != "" {
		out["os"] = ua.OS
	}
	switch {
	case ua.Bot:
		out["device"] = "bot"
	case ua.Mobile:
		out["device"] = "mobile"
	case ua.Tablet:
		out["device"] = "tablet"
	default:
		out["device"] = "desktop"
	}
	return out
}

func derefID(id *int64) int64 {
	if id == nil {
		return 0
	}
	return *id
}
