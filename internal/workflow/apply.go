// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"strconv"
	"time"

	"github.com/olegiv/siteflow/internal/audit"
	"github.com/olegiv/siteflow/internal/auth"
	"github.com/olegiv/siteflow/internal/model"
	"github.com/olegiv/siteflow/internal/ratelimit"
	"github.com/olegiv/siteflow/internal/store"
	"github.com/olegiv/siteflow/internal/validation"
)

// mutation is one content change ready to apply.
type mutation struct {
	resourceType model.ResourceType
	resourceID   *int64
	action       model.Action
	payload      model.Payload
	createdBy    int64
	actorID      int64
}

// apply writes m through r and returns the id of the affected resource.
func (e *Engine) apply(ctx context.Context, r store.Records, m mutation) (int64, error) {
	if err := model.CheckCombination(m.resourceType, m.action, m.resourceID); err != nil {
		return 0, err
	}
	table := m.resourceType.Table()
	if table == "" {
		return 0, fmt.Errorf("unknown resource type %q", m.resourceType)
	}

	switch m.action {
	case model.ActionCreate:
		fields := store.Fields(maps.Clone(m.payload))
		if fields == nil {
			fields = store.Fields{}
		}
		fields[model.FieldCreatedBy] = m.createdBy
		fields[model.FieldUpdatedBy] = m.actorID
		return r.Insert(ctx, table, fields)

	case model.ActionUpdate:
		fields := store.Fields(maps.Clone(m.payload))
		if fields == nil {
			fields = store.Fields{}
		}
		fields[model.FieldUpdatedBy] = m.actorID
		return *m.resourceID, r.UpdateByID(ctx, table, *m.resourceID, fields)

	case model.ActionPublish, model.ActionUnpublish:
		publish := m.action == model.ActionPublish
		fields := store.Fields{
			model.FieldIsPublished: publish,
			model.FieldUpdatedBy:   m.actorID,
		}
		if publish && m.resourceType == model.ResourceBlog {
			rec, err := r.GetByID(ctx, table, *m.resourceID)
			if err != nil {
				return 0, err
			}
			if rec.IsNull(model.FieldPublishedAt) {
				fields[model.FieldPublishedAt] = e.now().UTC().Truncate(time.Microsecond)
			}
		}
		return *m.resourceID, r.UpdateByID(ctx, table, *m.resourceID, fields)

	case model.ActionSetPrimary:
		serviceID, err := payloadInt64(m.payload, model.FieldServiceID)
		if err != nil {
			return 0, err
		}
		return *m.resourceID, r.SetPrimaryImage(ctx, serviceID, *m.resourceID, m.actorID)

	default:
		return 0, fmt.Errorf("unknown action %q", m.action)
	}
}

// ApplyDirect validates req and applies it immediately. Only roles that may
// publish directly can use it; the resulting resource matches what
// SubmitChange followed by ApproveChange would produce.
func (e *Engine) ApplyDirect(ctx context.Context, actor model.Identity, client model.ClientInfo, req model.ChangeRequest) (id int64, err error) {
	defer func() { e.observe(opDirect, err) }()

	if err := requireIdentity(actor); err != nil {
		return 0, err
	}
	if !auth.CanPublishDirectly(actor.Role) {
		return 0, e.deny(ctx, actor, client, opDirect, string(req.ResourceType), "your role cannot apply changes directly")
	}
	if err := e.limit(ctx, ratelimit.PolicyAdmin, ratelimit.UserKey(ratelimit.PolicyAdmin, actor.UserID, "content"), actor.UserID, client); err != nil {
		return 0, err
	}
	if err := req.Validate(); err != nil {
		return 0, newError(KindValidation, err.Error(), err)
	}
	payload, err := validation.Payload(req.ResourceType, req.Action, req.Payload)
	if err != nil {
		return 0, classify(err, false)
	}

	m := mutation{
		resourceType: req.ResourceType,
		resourceID:   req.ResourceID,
		action:       req.Action,
		payload:      payload,
		createdBy:    actor.UserID,
		actorID:      actor.UserID,
	}
	err = e.store.InTx(ctx, func(r store.Records) error {
		var aerr error
		id, aerr = e.apply(ctx, r, m)
		return aerr
	})
	if err != nil {
		if ctx.Err() != nil {
			return 0, internal("request cancelled", ctx.Err(), req.Action != model.ActionCreate)
		}
		return 0, classify(err, req.Action != model.ActionCreate)
	}

	entry := audit.Entry(model.ContentAuditAction(req.ResourceType, string(req.Action)), actor.UserID, client)
	entry.ResourceType = string(req.ResourceType)
	entry.ResourceID = int64Ptr(id)
	entry.Details = map[string]any{
		"resource_type": string(req.ResourceType),
		"action":        string(req.Action),
	}
	e.audit.Record(ctx, entry)
	return id, nil
}

// DeleteResource removes a content resource. Deleting a primary service
// image promotes the next image of the same service.
func (e *Engine) DeleteResource(ctx context.Context, actor model.Identity, client model.ClientInfo, rt model.ResourceType, id int64) (err error) {
	defer func() { e.observe(opDelete, err) }()

	if err := requireIdentity(actor); err != nil {
		return err
	}
	if !auth.CanDelete(actor.Role) {
		return e.deny(ctx, actor, client, opDelete, string(rt), "your role cannot delete content")
	}
	if err := e.limit(ctx, ratelimit.PolicyAdmin, ratelimit.UserKey(ratelimit.PolicyAdmin, actor.UserID, "content"), actor.UserID, client); err != nil {
		return err
	}
	table := rt.Table()
	if table == "" {
		return newError(KindValidation, fmt.Sprintf("unknown resource type %q", rt), nil)
	}
	if id <= 0 {
		return newError(KindValidation, "resource id is required", nil)
	}

	err = e.store.InTx(ctx, func(r store.Records) error {
		if rt == model.ResourceServiceImage {
			return r.DeleteServiceImage(ctx, id, actor.UserID)
		}
		return r.DeleteByID(ctx, table, id)
	})
	if err != nil {
		return classify(err, true)
	}

	entry := audit.Entry(model.ContentAuditAction(rt, "delete"), actor.UserID, client)
	entry.ResourceType = string(rt)
	entry.ResourceID = int64Ptr(id)
	e.audit.Record(ctx, entry)
	return nil
}

// payloadInt64 reads an integer payload value. Payloads that went through
// JSON carry numbers as float64.
func payloadInt64(p model.Payload, key string) (int64, error) {
	switch v := p[key].(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case float64:
		if v != float64(int64(v)) {
			return 0, fmt.Errorf("%s must be an integer", key)
		}
		return int64(v), nil
	case json.Number:
		return v.Int64()
	case string:
		return strconv.ParseInt(v, 10, 64)
	default:
		return 0, fmt.Errorf("%s is required", key)
	}
}
