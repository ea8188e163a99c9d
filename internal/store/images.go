// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrImageServiceMismatch is returned when an image does not belong to the
// service it is being made primary for.
var ErrImageServiceMismatch = errors.New("image does not belong to service")

// SetPrimaryImage makes imageID the single primary image of serviceID.
// The unset and the set run in one transaction, and the partial unique index
// on service_images rejects any interleaving that would leave two primaries.
func (s *Store) SetPrimaryImage(ctx context.Context, serviceID, imageID, actorID int64) error {
	return s.withTx(ctx, func(tx *Store) error {
		owner, _, err := tx.imageOwner(ctx, imageID)
		if err != nil {
			return err
		}
		if owner != serviceID {
			return fmt.Errorf("%w: image %d, service %d", ErrImageServiceMismatch, imageID, serviceID)
		}

		cctx, cancel := tx.call(ctx)
		defer cancel()

		now := tx.Now()
		if _, err := tx.q.ExecContext(cctx,
			`UPDATE service_images SET is_primary = 0, updated_by = ?, updated_at = ?
			 WHERE service_id = ? AND is_primary = 1 AND id <> ?`,
			actorID, now, serviceID, imageID); err != nil {
			return fmt.Errorf("clearing primary image of service %d: %w", serviceID, err)
		}
		if _, err := tx.q.ExecContext(cctx,
			`UPDATE service_images SET is_primary = 1, updated_by = ?, updated_at = ? WHERE id = ?`,
			actorID, now, imageID); err != nil {
			return fmt.Errorf("setting primary image %d: %w", imageID, err)
		}
		return nil
	})
}

// DeleteServiceImage removes an image. When it was the primary image, the
// remaining image with the lowest display_order becomes primary.
func (s *Store) DeleteServiceImage(ctx context.Context, imageID, actorID int64) error {
	return s.withTx(ctx, func(tx *Store) error {
		serviceID, wasPrimary, err := tx.imageOwner(ctx, imageID)
		if err != nil {
			return err
		}

		cctx, cancel := tx.call(ctx)
		defer cancel()

		if _, err := tx.q.ExecContext(cctx, `DELETE FROM service_images WHERE id = ?`, imageID); err != nil {
			return fmt.Errorf("deleting service image %d: %w", imageID, err)
		}
		if !wasPrimary {
			return nil
		}

		if _, err := tx.q.ExecContext(cctx,
			`UPDATE service_images SET is_primary = 1, updated_by = ?, updated_at = ?
			 WHERE id = (SELECT id FROM service_images WHERE service_id = ?
			             ORDER BY display_order, id LIMIT 1)`,
			actorID, tx.Now(), serviceID); err != nil {
			return fmt.Errorf("promoting primary image of service %d: %w", serviceID, err)
		}
		return nil
	})
}

// PrimaryImageIDs returns the ids of every image flagged primary for a service.
func (s *Store) PrimaryImageIDs(ctx context.Context, serviceID int64) ([]int64, error) {
	ctx, cancel := s.call(ctx)
	defer cancel()

	rows, err := s.q.QueryContext(ctx,
		`SELECT id FROM service_images WHERE service_id = ? AND is_primary = 1 ORDER BY id`, serviceID)
	if err != nil {
		return nil, fmt.Errorf("listing primary images of service %d: %w", serviceID, err)
	}
	defer func() { _ = rows.Close() }()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) imageOwner(ctx context.Context, imageID int64) (serviceID int64, primary bool, err error) {
	ctx, cancel := s.call(ctx)
	defer cancel()

	err = s.q.QueryRowContext(ctx,
		`SELECT service_id, is_primary FROM service_images WHERE id = ?`, imageID).Scan(&serviceID, &primary)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, fmt.Errorf("service_images %d: %w", imageID, ErrNotFound)
	}
	if err != nil {
		return 0, false, fmt.Errorf("loading service image %d: %w", imageID, err)
	}
	return serviceID, primary, nil
}
