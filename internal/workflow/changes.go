// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/olegiv/siteflow/internal/audit"
	"github.com/olegiv/siteflow/internal/auth"
	"github.com/olegiv/siteflow/internal/model"
	"github.com/olegiv/siteflow/internal/ratelimit"
	"github.com/olegiv/siteflow/internal/store"
	"github.com/olegiv/siteflow/internal/validation"
)

// MaxReviewNoteLength caps reviewer notes.
const MaxReviewNoteLength = 1000

// applyError marks a failure of the resource mutation itself, as opposed to
// the status write that follows it.
type applyError struct{ err error }

func (e *applyError) Error() string { return e.err.Error() }
func (e *applyError) Unwrap() error { return e.err }

// SubmitChange queues req for review. Only roles whose edits must be
// reviewed may submit; admins use ApplyDirect. Submitting is not idempotent.
func (e *Engine) SubmitChange(ctx context.Context, actor model.Identity, client model.ClientInfo, req model.ChangeRequest) (change *model.PendingChange, err error) {
	defer func() { e.observe(opSubmit, err) }()

	if err := requireIdentity(actor); err != nil {
		return nil, err
	}
	if !auth.MustReview(actor.Role) {
		msg := "your role cannot submit changes"
		if auth.CanPublishDirectly(actor.Role) {
			msg = "admins apply changes directly"
		}
		return nil, e.deny(ctx, actor, client, opSubmit, string(req.ResourceType), msg)
	}
	if err := e.limit(ctx, ratelimit.PolicyAdmin, ratelimit.UserKey(ratelimit.PolicyAdmin, actor.UserID, "pending_change"), actor.UserID, client); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, newError(KindValidation, err.Error(), err)
	}
	payload, err := validation.Payload(req.ResourceType, req.Action, req.Payload)
	if err != nil {
		return nil, classify(err, false)
	}

	if req.ResourceID != nil {
		if _, err := e.store.GetByID(ctx, req.ResourceType.Table(), *req.ResourceID); err != nil {
			return nil, classify(err, true)
		}
	}

	change = &model.PendingChange{
		ResourceType: req.ResourceType,
		ResourceID:   req.ResourceID,
		Action:       req.Action,
		Payload:      payload,
		SubmittedBy:  actor.UserID,
	}
	if _, err := e.store.InsertPendingChange(ctx, change); err != nil {
		return nil, classify(err, false)
	}

	entry := changeEntry(model.AuditPendingSubmit, actor.UserID, client, change)
	e.audit.Record(ctx, entry)
	return change, nil
}

// ApproveChange applies a pending change and marks it approved in one
// transaction. If applying fails the change is auto-rejected and the failure
// is returned as KindApplyFailed. If ctx is cancelled first, nothing is
// written and the change stays pending.
func (e *Engine) ApproveChange(ctx context.Context, actor model.Identity, client model.ClientInfo, changeID int64) (change *model.PendingChange, err error) {
	defer func() { e.observe(opApprove, err) }()

	change, err = e.reviewable(ctx, actor, client, opApprove, changeID)
	if err != nil {
		return nil, err
	}

	m := mutation{
		resourceType: change.ResourceType,
		resourceID:   change.ResourceID,
		action:       change.Action,
		payload:      change.Payload,
		createdBy:    change.SubmittedBy,
		actorID:      actor.UserID,
	}
	var resourceID int64
	err = e.store.InTx(ctx, func(r store.Records) error {
		// Claim the change first so a concurrent reviewer loses with
		// ErrNotPending before anything is applied.
		if err := r.ReviewPendingChange(ctx, changeID, model.ChangeStatusApproved, actor.UserID, nil); err != nil {
			return err
		}
		id, aerr := e.apply(ctx, r, m)
		if aerr != nil {
			return &applyError{err: aerr}
		}
		resourceID = id
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			e.logger.Info("approval cancelled, change left pending", "change_id", changeID, "user_id", actor.UserID)
			return nil, internal("request cancelled before the change was applied", ctx.Err(), true)
		}
		var ae *applyError
		if errors.As(err, &ae) {
			return nil, e.autoReject(ctx, actor, client, change, ae.err)
		}
		return nil, classify(err, true)
	}

	now := e.now().UTC()
	change.Status = model.ChangeStatusApproved
	change.ReviewedBy = int64Ptr(actor.UserID)
	change.ReviewedAt = &now
	if change.Action == model.ActionCreate {
		change.ResourceID = int64Ptr(resourceID)
	}

	entry := changeEntry(model.AuditPendingApprove, actor.UserID, client, change)
	e.audit.Record(ctx, entry)
	return change, nil
}

// autoReject closes a change whose payload could not be applied and returns
// the apply failure wrapping cause.
func (e *Engine) autoReject(ctx context.Context, actor model.Identity, client model.ClientInfo, change *model.PendingChange, cause error) error {
	note := validation.SanitizeString(model.AutoRejectPrefix+cause.Error(), MaxReviewNoteLength)

	e.logger.Warn("applying approved change failed, auto-rejecting",
		"change_id", change.ID,
		"resource_type", change.ResourceType,
		"action", change.Action,
		"error", cause,
	)
	if err := e.store.ReviewPendingChange(ctx, change.ID, model.ChangeStatusRejected, actor.UserID, &note); err != nil {
		e.logger.Warn("auto-reject could not update change", "change_id", change.ID, "error", err)
	} else {
		e.metrics.AutoReject()
		change.Status = model.ChangeStatusRejected
		change.ReviewedBy = int64Ptr(actor.UserID)
		change.ReviewNote = &note
	}

	entry := changeEntry(model.AuditPendingAuto, actor.UserID, client, change)
	entry.Details["error"] = cause.Error()
	e.audit.Record(ctx, entry)

	return newError(KindApplyFailed, "applying the change failed", cause)
}

// RejectChange closes a pending change without touching the resource.
func (e *Engine) RejectChange(ctx context.Context, actor model.Identity, client model.ClientInfo, changeID int64, note *string) (change *model.PendingChange, err error) {
	defer func() { e.observe(opReject, err) }()

	change, err = e.reviewable(ctx, actor, client, opReject, changeID)
	if err != nil {
		return nil, err
	}

	var cleaned *string
	if note != nil {
		if s := validation.SanitizeString(*note, MaxReviewNoteLength); s != "" {
			cleaned = &s
		}
	}
	if err := e.store.ReviewPendingChange(ctx, changeID, model.ChangeStatusRejected, actor.UserID, cleaned); err != nil {
		return nil, classify(err, true)
	}

	now := e.now().UTC()
	change.Status = model.ChangeStatusRejected
	change.ReviewedBy = int64Ptr(actor.UserID)
	change.ReviewNote = cleaned
	change.ReviewedAt = &now

	entry := changeEntry(model.AuditPendingReject, actor.UserID, client, change)
	if cleaned != nil {
		entry.Details["note"] = *cleaned
	}
	e.audit.Record(ctx, entry)
	return change, nil
}

// reviewable runs the checks shared by approve and reject and returns the
// change if it is still pending.
func (e *Engine) reviewable(ctx context.Context, actor model.Identity, client model.ClientInfo, op string, changeID int64) (*model.PendingChange, error) {
	if err := requireIdentity(actor); err != nil {
		return nil, err
	}
	if !auth.CanApprove(actor.Role) {
		return nil, e.deny(ctx, actor, client, op, "pending_change", "your role cannot review changes")
	}
	if err := e.limit(ctx, ratelimit.PolicyAdmin, ratelimit.UserKey(ratelimit.PolicyAdmin, actor.UserID, "review"), actor.UserID, client); err != nil {
		return nil, err
	}

	change, err := e.store.GetPendingChange(ctx, changeID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, newError(KindNotFound, fmt.Sprintf("change %d not found", changeID), err)
		}
		return nil, classify(err, true)
	}
	if !change.IsPending() {
		return nil, newError(KindAlreadyReviewed, fmt.Sprintf("change %d was already %s", changeID, change.Status), nil)
	}
	return change, nil
}

// ListChanges returns pending changes, newest first. An empty status lists
// every change.
func (e *Engine) ListChanges(ctx context.Context, actor model.Identity, status string, limit int) (changes []model.PendingChange, err error) {
	defer func() { e.observe(opList, err) }()

	if err := requireIdentity(actor); err != nil {
		return nil, err
	}
	if !auth.CanViewDashboard(actor.Role) {
		return nil, e.deny(ctx, actor, model.ClientInfo{}, opList, "pending_change", "your role cannot view changes")
	}

	var st model.ChangeStatus
	if status != "" {
		if st, err = model.ParseChangeStatus(status); err != nil {
			return nil, newError(KindValidation, err.Error(), err)
		}
	}
	changes, err = e.store.ListPendingChanges(ctx, st, limit)
	if err != nil {
		return nil, classify(err, true)
	}
	if changes == nil {
		changes = []model.PendingChange{}
	}
	return changes, nil
}

func changeEntry(action string, actorID int64, client model.ClientInfo, c *model.PendingChange) model.AuditEntry {
	entry := audit.Entry(action, actorID, client)
	entry.ResourceType = "pending_change"
	entry.ResourceID = int64Ptr(c.ID)
	details := map[string]any{
		"resource_type": string(c.ResourceType),
		"action":        string(c.Action),
	}
	if c.ResourceID != nil {
		details["resource_id"] = *c.ResourceID
	}
	entry.Details = details
	return entry
}
