// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"net/http"
	"strconv"

	"github.com/olegiv/siteflow/internal/middleware"
	"github.com/olegiv/siteflow/internal/model"
)

// Page size for change listings.
const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// ChangeRequest is the body of POST /api/changes.
type ChangeRequest struct {
	ResourceType string        `json:"resource_type"`
	ResourceID   *int64        `json:"resource_id,omitempty"`
	Action       string        `json:"action"`
	Payload      model.Payload `json:"payload"`
}

// RejectRequest is the optional body of POST /api/changes/{id}/reject.
type RejectRequest struct {
	Note *string `json:"note"`
}

// ListChanges handles GET /api/changes?status=&limit=.
func (h *Handler) ListChanges(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			badRequest(w, "limit must be a positive integer")
			return
		}
		limit = min(n, maxListLimit)
	}

	changes, err := h.engine.ListChanges(r.Context(), middleware.GetIdentity(r), r.URL.Query().Get("status"), limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	WriteSuccess(w, changes, &Meta{Total: len(changes)})
}

// SubmitChange handles POST /api/changes.
func (h *Handler) SubmitChange(w http.ResponseWriter, r *http.Request) {
	var body ChangeRequest
	if err := decodeJSON(r, &body); err != nil {
		badRequest(w, err.Error())
		return
	}

	rt, err := model.ParseResourceType(body.ResourceType)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	action, err := model.ParseAction(body.Action)
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	change, err := h.engine.SubmitChange(r.Context(), middleware.GetIdentity(r), middleware.GetClientInfo(r), model.ChangeRequest{
		ResourceType: rt,
		ResourceID:   body.ResourceID,
		Action:       action,
		Payload:      body.Payload,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	WriteCreated(w, change)
}

// ApproveChange handles POST /api/changes/{id}/approve.
func (h *Handler) ApproveChange(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	change, err := h.engine.ApproveChange(r.Context(), middleware.GetIdentity(r), middleware.GetClientInfo(r), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	WriteSuccess(w, change, nil)
}

// RejectChange handles POST /api/changes/{id}/reject.
func (h *Handler) RejectChange(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	var body RejectRequest
	if err := decodeJSON(r, &body); err != nil {
		badRequest(w, err.Error())
		return
	}

	change, err := h.engine.RejectChange(r.Context(), middleware.GetIdentity(r), middleware.GetClientInfo(r), id, body.Note)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	WriteSuccess(w, change, nil)
}
