// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"strconv"
	"time"

	"github.com/olegiv/siteflow/internal/model"
)

// Records is the narrow datastore surface the workflow engine mutates
// content through. *Store implements it, both standalone and inside InTx.
type Records interface {
	Insert(ctx context.Context, table string, fields Fields) (int64, error)
	UpdateByID(ctx context.Context, table string, id int64, fields Fields) error
	DeleteByID(ctx context.Context, table string, id int64) error
	GetByID(ctx context.Context, table string, id int64) (Record, error)

	// SetPrimaryImage clears the service's current primary image and marks
	// imageID primary as one unit.
	SetPrimaryImage(ctx context.Context, serviceID, imageID, actorID int64) error
	// DeleteServiceImage deletes an image and, if it was primary, promotes
	// the next image of the same service as one unit.
	DeleteServiceImage(ctx context.Context, imageID, actorID int64) error

	InsertPendingChange(ctx context.Context, c *model.PendingChange) (int64, error)
	GetPendingChange(ctx context.Context, id int64) (*model.PendingChange, error)
	// ReviewPendingChange moves a change out of pending. The status check and
	// the write are one conditional UPDATE.
	ReviewPendingChange(ctx context.Context, id int64, status model.ChangeStatus, reviewerID int64, note *string) error
}

var _ Records = (*Store)(nil)

// Record is one row loaded by GetByID, keyed by column name.
type Record map[string]any

// Int64 returns an integer column, or 0.
func (r Record) Int64(col string) int64 {
	switch v := r[col].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	case bool:
		if v {
			return 1
		}
		return 0
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	default:
		return 0
	}
}

// Bool returns a boolean column stored as an integer flag.
func (r Record) Bool(col string) bool {
	if b, ok := r[col].(bool); ok {
		return b
	}
	return r.Int64(col) != 0
}

// String returns a text column, or "".
func (r Record) String(col string) string {
	switch v := r[col].(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return ""
	}
}

// timeLayouts are the text encodings SQLite drivers use for time values.
var timeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
}

// Time returns a timestamp column. ok is false for NULL or unparseable values.
func (r Record) Time(col string) (t time.Time, ok bool) {
	switch v := r[col].(type) {
	case time.Time:
		return v, true
	case string:
		return parseTime(v)
	case []byte:
		return parseTime(string(v))
	default:
		return time.Time{}, false
	}
}

// IsNull reports whether the column is NULL or absent.
func (r Record) IsNull(col string) bool {
	return r[col] == nil
}

func parseTime(s string) (time.Time, bool) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
