// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package workflow

import (
	"errors"
	"time"
)

// Kind classifies a workflow failure. Each kind maps to a stable error code
// callers can branch on.
type Kind string

// Error kinds.
const (
	KindUnauthorized    Kind = "unauthorized"
	KindRateLimited     Kind = "rate_limited"
	KindValidation      Kind = "validation_failed"
	KindNotFound        Kind = "not_found"
	KindAlreadyReviewed Kind = "already_reviewed"
	KindApplyFailed     Kind = "apply_failed"
	KindInternal        Kind = "internal"
)

// Error is the tagged error returned by every Engine operation.
type Error struct {
	Kind    Kind
	Message string
	// ResetAt is when a rate-limited caller may try again.
	ResetAt time.Time
	// Err is the underlying cause, if any.
	Err error

	// safe marks an internal failure of an operation that may be repeated
	// without a second side effect.
	safe bool
}

// Sentinels for errors.Is. They match any *Error of the same kind.
var (
	ErrUnauthorized    = &Error{Kind: KindUnauthorized}
	ErrRateLimited     = &Error{Kind: KindRateLimited}
	ErrValidation      = &Error{Kind: KindValidation}
	ErrNotFound        = &Error{Kind: KindNotFound}
	ErrAlreadyReviewed = &Error{Kind: KindAlreadyReviewed}
	ErrApplyFailed     = &Error{Kind: KindApplyFailed}
	ErrInternal        = &Error{Kind: KindInternal}
)

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches sentinels by kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// KindOf returns the kind of err. Errors that are not *Error are internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Retryable reports whether a caller may repeat the failed call as is.
// Rate-limited calls may be retried after ResetAt. Internal failures are
// retryable only for operations that cannot apply twice; submits and creates
// never are.
func Retryable(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	switch e.Kind {
	case KindRateLimited:
		return true
	case KindInternal:
		return e.safe
	default:
		return false
	}
}

func newError(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Err: cause}
}

func unauthorized(msg string) *Error {
	return &Error{Kind: KindUnauthorized, Message: msg}
}

func internal(msg string, cause error, safe bool) *Error {
	return &Error{Kind: KindInternal, Message: msg, Err: cause, safe: safe}
}
