// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import "time"

// Audit actions. Direct content mutations use "<resource_type>.<action>".
const (
	AuditPendingSubmit  = "pending_change.submit"
	AuditPendingApprove = "pending_change.approve"
	AuditPendingReject  = "pending_change.reject"
	AuditPendingAuto    = "pending_change.auto_reject"
	AuditRoleChange     = "user.role_change"
	AuditLogin          = "auth.login"
	AuditLoginFailed    = "auth.login_failed"
	AuditLogout         = "auth.logout"
	AuditAccessDenied   = "auth.access_denied"
	AuditRateLimited    = "auth.rate_limited"
	AuditContactSubmit  = "contact.submit"
	AuditSystemError    = "system.error"
)

// ContentAuditAction builds the audit action for a direct content mutation.
func ContentAuditAction(rt ResourceType, action string) string {
	return string(rt) + "." + action
}

// AuditEntry is an append-only record of a security-relevant action.
type AuditEntry struct {
	ID           string         `json:"id"`
	Action       string         `json:"action"`
	ActorID      *int64         `json:"actor_id,omitempty"`
	ResourceType string         `json:"resource_type,omitempty"`
	ResourceID   *int64         `json:"resource_id,omitempty"`
	Details      map[string]any `json:"details,omitempty"`
	IPAddress    string         `json:"ip_address,omitempty"`
	UserAgent    string         `json:"user_agent,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}
