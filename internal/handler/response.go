// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/siteflow/internal/middleware"
	"github.com/olegiv/siteflow/internal/validation"
	"github.com/olegiv/siteflow/internal/workflow"
)

// maxBodySize caps request bodies.
const maxBodySize = 1 << 20

// Response is the standard API response wrapper.
type Response struct {
	Data any   `json:"data,omitempty"`
	Meta *Meta `json:"meta,omitempty"`
}

// Meta contains list metadata.
type Meta struct {
	Total int `json:"total"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteSuccess writes a 200 response wrapping data.
func WriteSuccess(w http.ResponseWriter, data any, meta *Meta) {
	WriteJSON(w, http.StatusOK, Response{Data: data, Meta: meta})
}

// WriteCreated writes a 201 response wrapping data.
func WriteCreated(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusCreated, Response{Data: data})
}

// statusFor maps a workflow error kind to an HTTP status. Unauthorized
// splits into 401 for anonymous callers and 403 for everyone else.
func statusFor(kind workflow.Kind, authenticated bool) int {
	switch kind {
	case workflow.KindUnauthorized:
		if authenticated {
			return http.StatusForbidden
		}
		return http.StatusUnauthorized
	case workflow.KindRateLimited:
		return http.StatusTooManyRequests
	case workflow.KindValidation:
		return http.StatusUnprocessableEntity
	case workflow.KindNotFound:
		return http.StatusNotFound
	case workflow.KindAlreadyReviewed:
		return http.StatusConflict
	case workflow.KindApplyFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as an API error. Internal causes are logged and
// never sent to the client.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := workflow.KindOf(err)
	status := statusFor(kind, middleware.GetIdentity(r).Authenticated())

	var we *workflow.Error
	message := "internal error"
	if errors.As(err, &we) && we.Message != "" && kind != workflow.KindInternal {
		message = we.Message
	}

	var details map[string]string
	var ve *validation.Error
	if errors.As(err, &ve) && ve.Field != "" {
		details = map[string]string{ve.Field: ve.Message}
	}

	switch kind {
	case workflow.KindInternal:
		h.logger.Error("request failed", "error", err, "method", r.Method, "path", r.URL.Path,
			"retryable", workflow.Retryable(err))
		if workflow.Retryable(err) {
			message = "temporary failure, please retry"
		}
	case workflow.KindApplyFailed:
		h.logger.Warn("change could not be applied", "error", err, "path", r.URL.Path)
	case workflow.KindRateLimited:
		if we != nil {
			w.Header().Set("Retry-After", retryAfter(we, h.now))
		}
	}

	middleware.WriteAPIError(w, status, string(kind), message, details)
}

// retryAfter returns the whole seconds until the limiter window resets,
// at least one.
func retryAfter(e *workflow.Error, now func() time.Time) string {
	secs := int(math.Ceil(e.ResetAt.Sub(now()).Seconds()))
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}

// badRequest reports a malformed request as a validation failure.
func badRequest(w http.ResponseWriter, message string) {
	middleware.WriteAPIError(w, http.StatusUnprocessableEntity, string(workflow.KindValidation), message, nil)
}

// decodeJSON reads r's body into dst. An empty body leaves dst untouched.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodySize))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

// parseIDParam parses a positive int64 URL parameter.
func parseIDParam(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return id, nil
}
