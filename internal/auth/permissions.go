// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package auth

import "github.com/olegiv/siteflow/internal/model"

// Capability predicates. Roles are parsed with model.ParseRole before they
// reach these functions; anything else simply gets no capability.

// CanEdit reports whether the role may propose or make content edits.
func CanEdit(role model.Role) bool {
	return role == model.RoleAdmin || role == model.RoleEditor
}

// CanPublishDirectly reports whether the role's edits bypass review.
func CanPublishDirectly(role model.Role) bool {
	return role == model.RoleAdmin
}

// CanDelete reports whether the role may delete content.
func CanDelete(role model.Role) bool {
	return role == model.RoleAdmin
}

// CanApprove reports whether the role may review pending changes.
func CanApprove(role model.Role) bool {
	return role == model.RoleAdmin
}

// CanViewDashboard reports whether the role may open the admin dashboard.
func CanViewDashboard(role model.Role) bool {
	switch role {
	case model.RoleAdmin, model.RoleEditor, model.RoleViewer:
		return true
	default:
		return false
	}
}

// CanManageUsers reports whether the role may change other users' roles.
func CanManageUsers(role model.Role) bool {
	return role == model.RoleAdmin
}

// MustReview reports whether the role's edits go through the pending-change queue.
func MustReview(role model.Role) bool {
	return CanEdit(role) && !CanPublishDirectly(role)
}
