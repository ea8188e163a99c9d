// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package store is the SQLite datastore behind the editorial core: a narrow
// record interface over whitelisted tables, the atomic image procedures, and
// the pending-change, user and audit tables.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Sentinel errors.
var (
	ErrNotFound      = errors.New("record not found")
	ErrNotPending    = errors.New("change is no longer pending")
	ErrLastAdmin     = errors.New("cannot demote the last admin")
	ErrInvalidTable  = errors.New("invalid table")
	ErrInvalidColumn = errors.New("invalid column")
)

// DefaultTimeout bounds every datastore call when no timeout is configured.
const DefaultTimeout = 5 * time.Second

// Fields is a set of column values to write.
type Fields map[string]any

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements Records on top of database/sql.
type Store struct {
	db      *sql.DB
	q       querier
	inTx    bool
	timeout time.Duration
	now     func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates a Store over db.
func New(db *sql.DB, opts ...Option) *Store {
	s := &Store{
		db:      db,
		q:       db,
		timeout: DefaultTimeout,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DB returns the underlying connection pool.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Now returns the store's current time, truncated to microseconds so values
// round-trip through SQLite text timestamps unchanged.
func (s *Store) Now() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

// call derives a bounded context for one statement.
func (s *Store) call(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

// InTx runs fn inside a transaction. fn receives a Records bound to the
// transaction; returning an error, or cancelling ctx, rolls everything back.
// Calls made while already inside a transaction reuse it.
func (s *Store) InTx(ctx context.Context, fn func(Records) error) error {
	return s.withTx(ctx, func(tx *Store) error { return fn(tx) })
}

func (s *Store) withTx(ctx context.Context, fn func(*Store) error) error {
	if s.inTx {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	txStore := &Store{db: s.db, q: tx, inTx: true, timeout: s.timeout, now: s.now}
	if err := fn(txStore); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := ctx.Err(); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Insert writes a new row and returns its id. created_at and updated_at are
// stamped when the table has them and the caller did not.
func (s *Store) Insert(ctx context.Context, table string, fields Fields) (int64, error) {
	schema, err := lookupTable(table)
	if err != nil {
		return 0, err
	}
	if err := schema.check(fields); err != nil {
		return 0, err
	}

	row := make(Fields, len(fields)+2)
	for k, v := range fields {
		row[k] = v
	}
	if schema.timestamps {
		now := s.Now()
		if _, ok := row["created_at"]; !ok {
			row["created_at"] = now
		}
		if _, ok := row["updated_at"]; !ok {
			row["updated_at"] = now
		}
	}

	cols := sortedKeys(row)
	args := make([]any, len(cols))
	for i, c := range cols {
		args[i] = row[c]
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(cols, ", "), placeholders(len(cols)))

	ctx, cancel := s.call(ctx)
	defer cancel()

	res, err := s.q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("inserting into %s: %w", table, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading id of new %s row: %w", table, err)
	}
	return id, nil
}

// UpdateByID sets fields on the row with the given id.
func (s *Store) UpdateByID(ctx context.Context, table string, id int64, fields Fields) error {
	schema, err := lookupTable(table)
	if err != nil {
		return err
	}
	if len(fields) == 0 {
		return fmt.Errorf("updating %s %d: no fields", table, id)
	}
	if err := schema.check(fields); err != nil {
		return err
	}

	row := make(Fields, len(fields)+1)
	for k, v := range fields {
		row[k] = v
	}
	if schema.timestamps {
		row["updated_at"] = s.Now()
	}

	cols := sortedKeys(row)
	sets := make([]string, len(cols))
	args := make([]any, 0, len(cols)+1)
	for i, c := range cols {
		sets[i] = c + " = ?"
		args = append(args, row[c])
	}
	args = append(args, id)
	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", table, strings.Join(sets, ", "))

	ctx, cancel := s.call(ctx)
	defer cancel()

	res, err := s.q.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating %s %d: %w", table, id, err)
	}
	return requireAffected(res, table, id)
}

// DeleteByID removes the row with the given id.
func (s *Store) DeleteByID(ctx context.Context, table string, id int64) error {
	if _, err := lookupTable(table); err != nil {
		return err
	}

	ctx, cancel := s.call(ctx)
	defer cancel()

	res, err := s.q.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = ?", table), id)
	if err != nil {
		return fmt.Errorf("deleting %s %d: %w", table, id, err)
	}
	return requireAffected(res, table, id)
}

// GetByID loads the row with the given id.
func (s *Store) GetByID(ctx context.Context, table string, id int64) (Record, error) {
	schema, err := lookupTable(table)
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.call(ctx)
	defer cancel()

	cols := schema.selectColumns()
	rows, err := s.q.QueryContext(ctx,
		fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", strings.Join(cols, ", "), table), id)
	if err != nil {
		return nil, fmt.Errorf("loading %s %d: %w", table, id, err)
	}
	defer func() { _ = rows.Close() }()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("loading %s %d: %w", table, id, err)
		}
		return nil, fmt.Errorf("%s %d: %w", table, id, ErrNotFound)
	}

	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, fmt.Errorf("scanning %s %d: %w", table, id, err)
	}

	rec := make(Record, len(cols))
	for i, c := range cols {
		if b, ok := values[i].([]byte); ok {
			rec[c] = string(b)
			continue
		}
		rec[c] = values[i]
	}
	return rec, nil
}

func requireAffected(res sql.Result, table string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading affected rows for %s %d: %w", table, id, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", table, id, ErrNotFound)
	}
	return nil
}

func sortedKeys(f Fields) []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}
