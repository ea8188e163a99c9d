// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/siteflow/internal/model"
	"github.com/olegiv/siteflow/internal/store"
	"github.com/olegiv/siteflow/internal/testutil"
)

// discardHandler is a slog.Handler that discards all logs.
type discardHandler struct{}

func (h discardHandler) Enabled(context.Context, slog.Level) bool  { return true }
func (h discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (h discardHandler) WithAttrs([]slog.Attr) slog.Handler        { return h }
func (h discardHandler) WithGroup(string) slog.Handler             { return h }

type memorySink struct {
	mu      sync.Mutex
	entries []model.AuditEntry
	err     error
}

func (s *memorySink) InsertAuditLog(_ context.Context, e *model.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.entries = append(s.entries, *e)
	return nil
}

func TestAuditHandler_ForwardsErrors(t *testing.T) {
	st := testutil.TestStore(t)
	logger := slog.New(NewAuditHandler(discardHandler{}, st))

	logger.Error("database connection failed", "host", "localhost", "port", 5432)

	entries, err := st.ListAuditLogs(context.Background(), store.AuditFilter{Action: model.AuditSystemError})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	e := entries[0]
	assert.NotEmpty(t, e.ID)
	assert.Nil(t, e.ActorID)
	assert.Equal(t, "database connection failed", e.Details["message"])
	assert.Equal(t, "ERROR", e.Details["level"])
	assert.Equal(t, "localhost", e.Details["host"])
	assert.Equal(t, "5432", e.Details["port"])
}

func TestAuditHandler_IgnoresLowerLevels(t *testing.T) {
	sink := &memorySink{}
	logger := slog.New(NewAuditHandler(discardHandler{}, sink))

	logger.Info("started")
	logger.Warn("slow query", "ms", 900)

	assert.Empty(t, sink.entries)
}

func TestAuditHandler_CustomLevel(t *testing.T) {
	sink := &memorySink{}
	logger := slog.New(NewAuditHandlerWithLevel(discardHandler{}, sink, slog.LevelWarn))

	logger.Warn("slow query")
	logger.Info("started")

	require.Len(t, sink.entries, 1)
	assert.Equal(t, "WARN", sink.entries[0].Details["level"])
}

func TestAuditHandler_AttrsAndGroups(t *testing.T) {
	sink := &memorySink{}
	logger := slog.New(NewAuditHandler(discardHandler{}, sink)).
		With("component", "scheduler").
		WithGroup("job")

	logger.Error("job failed", "name", "audit_purge", "user_id", int64(7), slog.Group("db", "table", "audit_logs"))

	require.Len(t, sink.entries, 1)
	d := sink.entries[0].Details
	assert.Equal(t, "scheduler", d["component"])
	assert.Equal(t, "audit_purge", d["job.name"])
	assert.Equal(t, "audit_logs", d["job.db.table"])
	require.NotNil(t, sink.entries[0].ActorID)
	assert.Equal(t, int64(7), *sink.entries[0].ActorID)
}

func TestAuditHandler_SinkFailureIsIgnored(t *testing.T) {
	sink := &memorySink{err: errors.New("disk full")}
	var buf bytes.Buffer
	logger := slog.New(NewAuditHandler(slog.NewTextHandler(&buf, nil), sink))

	logger.Error("boom")

	assert.Contains(t, buf.String(), "boom")
	assert.Empty(t, sink.entries)
}

func TestAuditHandler_CancelledContext(t *testing.T) {
	sink := &memorySink{}
	logger := slog.New(NewAuditHandler(discardHandler{}, sink))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	logger.ErrorContext(ctx, "request failed")

	assert.Len(t, sink.entries, 1)
}

func TestAuditHandler_Enabled(t *testing.T) {
	inner := slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelWarn})
	h := NewAuditHandler(inner, &memorySink{})

	assert.False(t, h.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, h.Enabled(context.Background(), slog.LevelError))
}
