// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"net/http"

	"github.com/olegiv/siteflow/internal/middleware"
	"github.com/olegiv/siteflow/internal/validation"
)

// SubmitContact handles the public POST /api/contact form.
func (h *Handler) SubmitContact(w http.ResponseWriter, r *http.Request) {
	in := validation.Input{}
	if err := decodeJSON(r, &in); err != nil {
		badRequest(w, err.Error())
		return
	}

	id, err := h.engine.SubmitContactMessage(r.Context(), middleware.GetClientInfo(r), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	WriteCreated(w, map[string]int64{"id": id})
}
