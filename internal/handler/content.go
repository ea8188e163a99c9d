// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/siteflow/internal/middleware"
	"github.com/olegiv/siteflow/internal/model"
)

// ContentResult is returned by the direct content routes.
type ContentResult struct {
	ResourceType model.ResourceType `json:"resource_type"`
	ID           int64              `json:"id"`
	Action       model.Action       `json:"action,omitempty"`
}

// CreateContent handles POST /api/content/{type}. The body is the payload.
func (h *Handler) CreateContent(w http.ResponseWriter, r *http.Request) {
	h.applyDirect(w, r, string(model.ActionCreate), false)
}

// UpdateContent handles PUT /api/content/{type}/{id}.
func (h *Handler) UpdateContent(w http.ResponseWriter, r *http.Request) {
	h.applyDirect(w, r, string(model.ActionUpdate), true)
}

// ContentAction handles POST /api/content/{type}/{id}/{action} for publish,
// unpublish and set_primary.
func (h *Handler) ContentAction(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "action")
	if raw == string(model.ActionCreate) || raw == string(model.ActionUpdate) {
		badRequest(w, "use the content create and update routes for "+raw)
		return
	}
	h.applyDirect(w, r, raw, true)
}

func (h *Handler) applyDirect(w http.ResponseWriter, r *http.Request, rawAction string, withID bool) {
	rt, err := model.ParseResourceType(chi.URLParam(r, "type"))
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	action, err := model.ParseAction(rawAction)
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	req := model.ChangeRequest{ResourceType: rt, Action: action, Payload: model.Payload{}}
	if withID {
		id, err := parseIDParam(r, "id")
		if err != nil {
			badRequest(w, err.Error())
			return
		}
		req.ResourceID = &id
	}
	if err := decodeJSON(r, &req.Payload); err != nil {
		badRequest(w, err.Error())
		return
	}

	id, err := h.engine.ApplyDirect(r.Context(), middleware.GetIdentity(r), middleware.GetClientInfo(r), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	result := ContentResult{ResourceType: rt, ID: id, Action: action}
	if action == model.ActionCreate {
		WriteCreated(w, result)
		return
	}
	WriteSuccess(w, result, nil)
}

// DeleteContent handles DELETE /api/content/{type}/{id}.
func (h *Handler) DeleteContent(w http.ResponseWriter, r *http.Request) {
	rt, err := model.ParseResourceType(chi.URLParam(r, "type"))
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	id, err := parseIDParam(r, "id")
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	if err := h.engine.DeleteResource(r.Context(), middleware.GetIdentity(r), middleware.GetClientInfo(r), rt, id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
