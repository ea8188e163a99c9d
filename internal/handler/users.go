// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"net/http"

	"github.com/olegiv/siteflow/internal/middleware"
	"github.com/olegiv/siteflow/internal/model"
)

// RoleRequest is the body of PUT /api/users/{id}/role.
type RoleRequest struct {
	Role string `json:"role"`
}

// UpdateUserRole handles PUT /api/users/{id}/role.
func (h *Handler) UpdateUserRole(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	var body RoleRequest
	if err := decodeJSON(r, &body); err != nil {
		badRequest(w, err.Error())
		return
	}

	if err := h.engine.UpdateUserRole(r.Context(), middleware.GetIdentity(r), middleware.GetClientInfo(r), id, body.Role); err != nil {
		h.writeError(w, r, err)
		return
	}
	// The engine accepted the role, so it parses.
	role, _ := model.ParseRole(body.Role)
	WriteSuccess(w, map[string]any{"id": id, "role": role}, nil)
}
