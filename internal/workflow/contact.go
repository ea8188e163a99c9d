// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package workflow

import (
	"context"

	"github.com/olegiv/siteflow/internal/audit"
	"github.com/olegiv/siteflow/internal/model"
	"github.com/olegiv/siteflow/internal/ratelimit"
	"github.com/olegiv/siteflow/internal/store"
	"github.com/olegiv/siteflow/internal/validation"
)

// SubmitContactMessage stores a public contact form submission. It needs no
// identity and is limited per client address under the api policy.
func (e *Engine) SubmitContactMessage(ctx context.Context, client model.ClientInfo, in validation.Input) (id int64, err error) {
	defer func() { e.observe(opContact, err) }()

	if err := e.limit(ctx, ratelimit.PolicyAPI, ratelimit.IPKey(client.IP, "contact"), 0, client); err != nil {
		return 0, err
	}

	msg, err := validation.Contact(in)
	if err != nil {
		return 0, classify(err, false)
	}

	id, err = e.store.Insert(ctx, "contact_messages", store.Fields{
		"name":       msg.Name,
		"email":      msg.Email,
		"phone":      msg.Phone,
		"subject":    msg.Subject,
		"message":    msg.Message,
		"consent":    msg.Consent,
		"ip_address": client.IP,
	})
	if err != nil {
		return 0, classify(err, false)
	}

	entry := audit.Entry(model.AuditContactSubmit, 0, client)
	entry.ResourceType = "contact_message"
	entry.ResourceID = int64Ptr(id)
	if msg.Subject != "" {
		entry.Details = map[string]any{"subject": msg.Subject}
	}
	e.audit.Record(ctx, entry)
	return id, nil
}
