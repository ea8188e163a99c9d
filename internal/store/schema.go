// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"fmt"
	"sort"
)

// tableSchema whitelists the columns the record interface may touch.
// Table and column names are only ever interpolated from this map.
type tableSchema struct {
	columns    map[string]bool
	timestamps bool
}

func newSchema(timestamps bool, cols ...string) tableSchema {
	m := make(map[string]bool, len(cols))
	for _, c := range cols {
		m[c] = true
	}
	return tableSchema{columns: m, timestamps: timestamps}
}

var contentAudit = []string{"created_by", "updated_by", "created_at", "updated_at"}

func contentSchema(cols ...string) tableSchema {
	return newSchema(true, append(cols, contentAudit...)...)
}

var tables = map[string]tableSchema{
	"testimonials": contentSchema("name", "company", "description", "rating",
		"is_published", "display_order"),
	"services": contentSchema("title", "description", "image_url", "image_alt",
		"is_published", "display_order"),
	"service_images": contentSchema("service_id", "image_url", "alt_text",
		"is_primary", "display_order"),
	"trust_images": contentSchema("image_url", "alt_text", "link_url",
		"is_published", "display_order"),
	"blog_posts": contentSchema("title", "slug", "excerpt", "content", "cover_image_url",
		"is_published", "published_at", "display_order"),
	"contact_messages": newSchema(true, "name", "email", "phone", "subject", "message",
		"consent", "ip_address", "created_at", "updated_at"),
}

func lookupTable(table string) (tableSchema, error) {
	schema, ok := tables[table]
	if !ok {
		return tableSchema{}, fmt.Errorf("%w: %q", ErrInvalidTable, table)
	}
	return schema, nil
}

func (t tableSchema) check(fields Fields) error {
	for col := range fields {
		if !t.columns[col] {
			return fmt.Errorf("%w: %q", ErrInvalidColumn, col)
		}
	}
	return nil
}

// selectColumns returns id plus every whitelisted column in a stable order.
func (t tableSchema) selectColumns() []string {
	cols := make([]string, 0, len(t.columns)+1)
	for c := range t.columns {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return append([]string{"id"}, cols...)
}

// HasColumn reports whether table has a writable column named col.
func HasColumn(table, col string) bool {
	schema, ok := tables[table]
	return ok && schema.columns[col]
}
