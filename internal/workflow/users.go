// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package workflow

import (
	"context"
	"errors"
	"strings"

	"github.com/olegiv/siteflow/internal/audit"
	"github.com/olegiv/siteflow/internal/auth"
	"github.com/olegiv/siteflow/internal/model"
	"github.com/olegiv/siteflow/internal/ratelimit"
	"github.com/olegiv/siteflow/internal/store"
)

// UpdateUserRole changes another user's role. Acting on yourself always
// fails, whatever your role, and the last admin cannot be demoted.
func (e *Engine) UpdateUserRole(ctx context.Context, actor model.Identity, client model.ClientInfo, targetID int64, newRole string) (err error) {
	defer func() { e.observe(opRoleChange, err) }()

	if err := requireIdentity(actor); err != nil {
		return err
	}
	if actor.UserID == targetID {
		return e.deny(ctx, actor, client, opRoleChange, "user", "you cannot change your own role")
	}
	if !auth.CanManageUsers(actor.Role) {
		return e.deny(ctx, actor, client, opRoleChange, "user", "your role cannot manage users")
	}
	if err := e.limit(ctx, ratelimit.PolicyAdmin, ratelimit.UserKey(ratelimit.PolicyAdmin, actor.UserID, "user_role"), actor.UserID, client); err != nil {
		return err
	}

	role, err := model.ParseRole(newRole)
	if err != nil {
		return newError(KindValidation, err.Error(), err)
	}

	target, err := e.store.GetUserByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return newError(KindNotFound, "user not found", err)
		}
		return classify(err, true)
	}
	if target.Role == role {
		return nil
	}

	if err := e.store.UpdateUserRole(ctx, targetID, role); err != nil {
		if errors.Is(err, store.ErrLastAdmin) {
			return newError(KindValidation, "cannot demote the last admin", err)
		}
		return classify(err, true)
	}

	entry := audit.Entry(model.AuditRoleChange, actor.UserID, client)
	entry.ResourceType = "user"
	entry.ResourceID = int64Ptr(targetID)
	entry.Details = map[string]any{"from": string(target.Role), "to": string(role)}
	e.audit.Record(ctx, entry)
	return nil
}

// Login checks credentials. Attempts are limited per client address under
// the auth policy; a successful login clears the counter.
func (e *Engine) Login(ctx context.Context, client model.ClientInfo, email, password string) (user model.User, err error) {
	defer func() { e.observe(opLogin, err) }()

	key := ratelimit.IPKey(client.IP, "login")
	if err := e.limit(ctx, ratelimit.PolicyAuth, key, 0, client); err != nil {
		return model.User{}, err
	}

	email = strings.TrimSpace(email)
	failed := func(reason string, actorID int64) error {
		e.logger.Warn("login failed", "email", email, "reason", reason, "ip", client.IP)
		entry := audit.Entry(model.AuditLoginFailed, actorID, client)
		entry.ResourceType = "user"
		entry.Details = map[string]any{"email": email, "reason": reason}
		e.audit.Record(ctx, entry)
		return unauthorized("invalid email or password")
	}

	if email == "" || password == "" {
		return model.User{}, failed("missing_credentials", 0)
	}

	user, err = e.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			auth.CheckPasswordDummy(password)
			return model.User{}, failed("unknown_user", 0)
		}
		return model.User{}, classify(err, true)
	}

	ok, err := auth.CheckPassword(password, user.PasswordHash)
	if err != nil || !ok {
		return model.User{}, failed("bad_password", user.ID)
	}

	e.limiter.Reset(key)

	entry := audit.Entry(model.AuditLogin, user.ID, client)
	entry.ResourceType = "user"
	entry.ResourceID = int64Ptr(user.ID)
	e.audit.Record(ctx, entry)
	return user, nil
}

// Logout records the end of a session.
func (e *Engine) Logout(ctx context.Context, actor model.Identity, client model.ClientInfo) {
	if !actor.Authenticated() {
		return
	}
	entry := audit.Entry(model.AuditLogout, actor.UserID, client)
	entry.ResourceType = "user"
	entry.ResourceID = int64Ptr(actor.UserID)
	e.audit.Record(ctx, entry)
}
