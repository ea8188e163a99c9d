// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"net/http"

	"github.com/olegiv/siteflow/internal/middleware"
)

// LoginRequest is the body of POST /api/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login checks credentials and binds the user to a fresh session.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	user, err := h.engine.Login(r.Context(), middleware.GetClientInfo(r), req.Email, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.sessions.SignIn(r.Context(), user.ID); err != nil {
		h.logger.Error("failed to start session", "error", err, "user_id", user.ID)
		middleware.WriteAPIError(w, http.StatusInternalServerError, "internal", "internal error", nil)
		return
	}

	h.logger.Info("user logged in", "user_id", user.ID, "email", user.Email)
	WriteSuccess(w, user, nil)
}

// Logout ends the current session. It succeeds for anonymous callers too.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetIdentity(r)
	h.engine.Logout(r.Context(), actor, middleware.GetClientInfo(r))

	if err := h.sessions.SignOut(r.Context()); err != nil {
		h.logger.Error("failed to destroy session", "error", err, "user_id", actor.UserID)
		middleware.WriteAPIError(w, http.StatusInternalServerError, "internal", "internal error", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
