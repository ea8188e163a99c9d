// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package logging provides a slog handler that copies error logs into the
// audit trail. Records at ERROR level and above are written as system.error
// audit entries in addition to the wrapped handler's output.
package logging

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/olegiv/siteflow/internal/audit"
	"github.com/olegiv/siteflow/internal/model"
)

// writeTimeout bounds one forwarded audit write.
const writeTimeout = 3 * time.Second

// AuditHandler is a slog.Handler that wraps another handler and also writes
// high-severity records to an audit sink.
type AuditHandler struct {
	inner slog.Handler
	sink  audit.Sink
	level slog.Level
	attrs []slog.Attr
	group string
}

// NewAuditHandler creates an AuditHandler forwarding ERROR and above.
func NewAuditHandler(inner slog.Handler, sink audit.Sink) *AuditHandler {
	return NewAuditHandlerWithLevel(inner, sink, slog.LevelError)
}

// NewAuditHandlerWithLevel creates an AuditHandler with a custom minimum level.
func NewAuditHandlerWithLevel(inner slog.Handler, sink audit.Sink, level slog.Level) *AuditHandler {
	return &AuditHandler{inner: inner, sink: sink, level: level}
}

// Enabled implements slog.Handler.
func (h *AuditHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle implements slog.Handler.
func (h *AuditHandler) Handle(ctx context.Context, r slog.Record) error {
	if err := h.inner.Handle(ctx, r); err != nil {
		return err
	}
	if r.Level >= h.level && h.sink != nil {
		h.forward(r)
	}
	return nil
}

// WithAttrs implements slog.Handler.
func (h *AuditHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *h
	c.inner = h.inner.WithAttrs(attrs)
	c.attrs = append(append([]slog.Attr(nil), h.attrs...), h.qualify(attrs)...)
	return &c
}

// WithGroup implements slog.Handler.
func (h *AuditHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := *h
	c.inner = h.inner.WithGroup(name)
	if c.group != "" {
		c.group += "." + name
	} else {
		c.group = name
	}
	return &c
}

// forward writes r as a system.error entry. The write uses its own context
// so a cancelled request does not drop it, and its failure is ignored: the
// record has already reached the wrapped handler.
func (h *AuditHandler) forward(r slog.Record) {
	details := make(map[string]any, len(h.attrs)+r.NumAttrs()+2)
	details["message"] = r.Message
	details["level"] = r.Level.String()
	for _, a := range h.attrs {
		details[a.Key] = a.Value.Resolve().String()
	}

	var actorID *int64
	r.Attrs(func(a slog.Attr) bool {
		for _, qa := range h.qualify([]slog.Attr{a}) {
			details[qa.Key] = qa.Value.Resolve().String()
		}
		if a.Key == "user_id" && actorID == nil {
			if id, ok := attrInt64(a.Value.Resolve()); ok && id > 0 {
				actorID = &id
			}
		}
		return true
	})

	created := r.Time
	if created.IsZero() {
		created = time.Now()
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	_ = h.sink.InsertAuditLog(ctx, &model.AuditEntry{
		ID:        uuid.NewString(),
		Action:    model.AuditSystemError,
		ActorID:   actorID,
		Details:   details,
		CreatedAt: created.UTC(),
	})
}

// qualify prefixes attribute keys with the handler's group path and
// flattens nested groups.
func (h *AuditHandler) qualify(attrs []slog.Attr) []slog.Attr {
	out := make([]slog.Attr, 0, len(attrs))
	var walk func(prefix string, a slog.Attr)
	walk = func(prefix string, a slog.Attr) {
		key := a.Key
		if prefix != "" {
			key = prefix + "." + key
		}
		v := a.Value.Resolve()
		if v.Kind() == slog.KindGroup {
			for _, ga := range v.Group() {
				walk(key, ga)
			}
			return
		}
		out = append(out, slog.Attr{Key: key, Value: v})
	}
	for _, a := range attrs {
		walk(h.group, a)
	}
	return out
}

func attrInt64(v slog.Value) (int64, bool) {
	switch v.Kind() {
	case slog.KindInt64:
		return v.Int64(), true
	case slog.KindUint64:
		return int64(v.Uint64()), true
	default:
		return 0, false
	}
}
