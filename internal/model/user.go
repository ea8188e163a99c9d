// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package model defines domain models and types used throughout the application
// including roles, pending changes, content resources and audit entries.
package model

import (
	"fmt"
	"strings"
	"time"
)

// Role is the privilege level attached to a user identity.
type Role string

// User roles.
const (
	RoleAdmin  Role = "admin"
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
)

// ValidRoles contains all valid user roles.
var ValidRoles = []Role{RoleAdmin, RoleEditor, RoleViewer}

// ParseRole converts a raw string into a Role.
// Unknown values are rejected here so that capability checks never see them.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.TrimSpace(s)); r {
	case RoleAdmin, RoleEditor, RoleViewer:
		return r, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// String implements fmt.Stringer.
func (r Role) String() string {
	return string(r)
}

// User represents a backend user.
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // Never expose in JSON
	Role         Role      `json:"role"`
	Name         string    `json:"name"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// IsAdmin returns true if the user has admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Identity is a resolved caller: who is acting and with which role.
type Identity struct {
	UserID int64
	Role   Role
}

// Authenticated reports whether the identity refers to a real user.
func (i Identity) Authenticated() bool {
	return i.UserID > 0
}

// ClientInfo carries request metadata recorded in the audit log.
type ClientInfo struct {
	IP        string
	UserAgent string
}
