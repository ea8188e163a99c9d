// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/olegiv/siteflow/internal/model"
)

const pendingChangeColumns = `id, resource_type, resource_id, action, payload, status,
	submitted_by, reviewed_by, review_note, created_at, updated_at, reviewed_at`

// InsertPendingChange stores a new change with status pending.
func (s *Store) InsertPendingChange(ctx context.Context, c *model.PendingChange) (int64, error) {
	payload := c.Payload
	if payload == nil {
		payload = model.Payload{}
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("encoding change payload: %w", err)
	}

	var resourceID sql.NullInt64
	if c.ResourceID != nil {
		resourceID = sql.NullInt64{Int64: *c.ResourceID, Valid: true}
	}

	ctx, cancel := s.call(ctx)
	defer cancel()

	now := s.Now()
	res, err := s.q.ExecContext(ctx,
		`INSERT INTO pending_changes (resource_type, resource_id, action, payload, status, submitted_by, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		string(c.ResourceType), resourceID, string(c.Action), string(payloadJSON),
		string(model.ChangeStatusPending), c.SubmittedBy, now, now)
	if err != nil {
		return 0, fmt.Errorf("inserting pending change: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading pending change id: %w", err)
	}

	c.ID = id
	c.Status = model.ChangeStatusPending
	c.CreatedAt = now
	c.UpdatedAt = now
	return id, nil
}

// GetPendingChange loads a change by id.
func (s *Store) GetPendingChange(ctx context.Context, id int64) (*model.PendingChange, error) {
	ctx, cancel := s.call(ctx)
	defer cancel()

	row := s.q.QueryRowContext(ctx,
		`SELECT `+pendingChangeColumns+` FROM pending_changes WHERE id = ?`, id)
	c, err := scanPendingChange(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("pending change %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading pending change %d: %w", id, err)
	}
	return c, nil
}

// ReviewPendingChange transitions a pending change to approved or rejected.
// It fails with ErrNotPending when another review got there first and with
// ErrNotFound when the change does not exist.
func (s *Store) ReviewPendingChange(ctx context.Context, id int64, status model.ChangeStatus, reviewerID int64, note *string) error {
	if status != model.ChangeStatusApproved && status != model.ChangeStatusRejected {
		return fmt.Errorf("invalid review status %q", status)
	}

	var reviewNote sql.NullString
	if note != nil {
		reviewNote = sql.NullString{String: *note, Valid: true}
	}

	cctx, cancel := s.call(ctx)
	defer cancel()

	now := s.Now()
	res, err := s.q.ExecContext(cctx,
		`UPDATE pending_changes
		 SET status = ?, reviewed_by = ?, review_note = ?, reviewed_at = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		string(status), reviewerID, reviewNote, now, now, id, string(model.ChangeStatusPending))
	if err != nil {
		return fmt.Errorf("reviewing pending change %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading affected rows for pending change %d: %w", id, err)
	}
	if n == 1 {
		return nil
	}

	var exists int
	err = s.q.QueryRowContext(cctx, `SELECT 1 FROM pending_changes WHERE id = ?`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("pending change %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("checking pending change %d: %w", id, err)
	}
	return fmt.Errorf("pending change %d: %w", id, ErrNotPending)
}

// ListPendingChanges returns changes newest first. An empty status lists all.
func (s *Store) ListPendingChanges(ctx context.Context, status model.ChangeStatus, limit int) ([]model.PendingChange, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	ctx, cancel := s.call(ctx)
	defer cancel()

	query := `SELECT ` + pendingChangeColumns + ` FROM pending_changes`
	args := []any{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing pending changes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var changes []model.PendingChange
	for rows.Next() {
		c, err := scanPendingChange(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning pending change: %w", err)
		}
		changes = append(changes, *c)
	}
	return changes, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPendingChange(row rowScanner) (*model.PendingChange, error) {
	var (
		c            model.PendingChange
		resourceType string
		action       string
		status       string
		payload      string
		resourceID   sql.NullInt64
		reviewedBy   sql.NullInt64
		reviewNote   sql.NullString
		reviewedAt   sql.NullTime
	)
	if err := row.Scan(&c.ID, &resourceType, &resourceID, &action, &payload, &status,
		&c.SubmittedBy, &reviewedBy, &reviewNote, &c.CreatedAt, &c.UpdatedAt, &reviewedAt); err != nil {
		return nil, err
	}

	c.ResourceType = model.ResourceType(resourceType)
	c.Action = model.Action(action)
	c.Status = model.ChangeStatus(status)
	if resourceID.Valid {
		c.ResourceID = &resourceID.Int64
	}
	if reviewedBy.Valid {
		c.ReviewedBy = &reviewedBy.Int64
	}
	if reviewNote.Valid {
		c.ReviewNote = &reviewNote.String
	}
	if reviewedAt.Valid {
		c.ReviewedAt = &reviewedAt.Time
	}
	if err := json.Unmarshal([]byte(payload), &c.Payload); err != nil {
		return nil, fmt.Errorf("decoding payload of change %d: %w", c.ID, err)
	}
	return &c, nil
}
