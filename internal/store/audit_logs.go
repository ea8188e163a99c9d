// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/olegiv/siteflow/internal/model"
)

// InsertAuditLog appends one audit entry. The entry must already carry its id.
func (s *Store) InsertAuditLog(ctx context.Context, e *model.AuditEntry) error {
	details := "{}"
	if len(e.Details) > 0 {
		b, err := json.Marshal(e.Details)
		if err != nil {
			return fmt.Errorf("encoding audit details: %w", err)
		}
		details = string(b)
	}

	var actorID, resourceID sql.NullInt64
	if e.ActorID != nil {
		actorID = sql.NullInt64{Int64: *e.ActorID, Valid: true}
	}
	if e.ResourceID != nil {
		resourceID = sql.NullInt64{Int64: *e.ResourceID, Valid: true}
	}

	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.Now()
	}

	ctx, cancel := s.call(ctx)
	defer cancel()

	_, err := s.q.ExecContext(ctx,
		`INSERT INTO audit_logs (id, action, actor_id, resource_type, resource_id, details, ip_address, user_agent, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Action, actorID, e.ResourceType, resourceID, details, e.IPAddress, e.UserAgent, createdAt.UTC())
	if err != nil {
		return fmt.Errorf("inserting audit log: %w", err)
	}
	return nil
}

// AuditFilter narrows ListAuditLogs.
type AuditFilter struct {
	Action       string
	ResourceType string
	ResourceID   *int64
	Limit        int
}

// ListAuditLogs returns audit entries oldest first.
func (s *Store) ListAuditLogs(ctx context.Context, f AuditFilter) ([]model.AuditEntry, error) {
	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 200
	}

	query := `SELECT id, action, actor_id, resource_type, resource_id, details, ip_address, user_agent, created_at
		FROM audit_logs WHERE 1 = 1`
	var args []any
	if f.Action != "" {
		query += ` AND action = ?`
		args = append(args, f.Action)
	}
	if f.ResourceType != "" {
		query += ` AND resource_type = ?`
		args = append(args, f.ResourceType)
	}
	if f.ResourceID != nil {
		query += ` AND resource_id = ?`
		args = append(args, *f.ResourceID)
	}
	query += ` ORDER BY created_at, rowid LIMIT ?`
	args = append(args, limit)

	ctx, cancel := s.call(ctx)
	defer cancel()

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing audit logs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []model.AuditEntry
	for rows.Next() {
		var (
			e          model.AuditEntry
			actorID    sql.NullInt64
			resourceID sql.NullInt64
			details    string
		)
		if err := rows.Scan(&e.ID, &e.Action, &actorID, &e.ResourceType, &resourceID,
			&details, &e.IPAddress, &e.UserAgent, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning audit log: %w", err)
		}
		if actorID.Valid {
			e.ActorID = &actorID.Int64
		}
		if resourceID.Valid {
			e.ResourceID = &resourceID.Int64
		}
		if details != "" && details != "{}" {
			_ = json.Unmarshal([]byte(details), &e.Details)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// PurgeAuditLogs deletes entries created before cutoff and returns how many
// were removed. It is only called by the retention job.
func (s *Store) PurgeAuditLogs(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx, cancel := s.call(ctx)
	defer cancel()

	res, err := s.q.ExecContext(ctx, `DELETE FROM audit_logs WHERE created_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("purging audit logs: %w", err)
	}
	return res.RowsAffected()
}
