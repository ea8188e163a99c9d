// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"fmt"
	"time"
)

// ResourceType identifies a kind of live content record.
type ResourceType string

// Resource types.
const (
	ResourceTestimonial  ResourceType = "testimonial"
	ResourceService      ResourceType = "service"
	ResourceServiceImage ResourceType = "service_image"
	ResourceTrustImage   ResourceType = "trust_image"
	ResourceBlog         ResourceType = "blog"
)

// ResourceTypes lists every editable resource type.
var ResourceTypes = []ResourceType{
	ResourceTestimonial,
	ResourceService,
	ResourceServiceImage,
	ResourceTrustImage,
	ResourceBlog,
}

// ParseResourceType converts a raw string into a ResourceType.
func ParseResourceType(s string) (ResourceType, error) {
	for _, rt := range ResourceTypes {
		if string(rt) == s {
			return rt, nil
		}
	}
	return "", fmt.Errorf("unknown resource type %q", s)
}

// Table returns the datastore table backing the resource type.
func (rt ResourceType) Table() string {
	switch rt {
	case ResourceTestimonial:
		return "testimonials"
	case ResourceService:
		return "services"
	case ResourceServiceImage:
		return "service_images"
	case ResourceTrustImage:
		return "trust_images"
	case ResourceBlog:
		return "blog_posts"
	default:
		return ""
	}
}

// Publishable reports whether the resource carries an is_published flag.
func (rt ResourceType) Publishable() bool {
	return rt != ResourceServiceImage
}

// Action is the kind of mutation a change applies.
type Action string

// Change actions.
const (
	ActionCreate     Action = "create"
	ActionUpdate     Action = "update"
	ActionPublish    Action = "publish"
	ActionUnpublish  Action = "unpublish"
	ActionSetPrimary Action = "set_primary"
)

// Actions lists every recognised change action.
var Actions = []Action{ActionCreate, ActionUpdate, ActionPublish, ActionUnpublish, ActionSetPrimary}

// ParseAction converts a raw string into an Action.
func ParseAction(s string) (Action, error) {
	for _, a := range Actions {
		if string(a) == s {
			return a, nil
		}
	}
	return "", fmt.Errorf("unknown action %q", s)
}

// CheckCombination rejects resource/action pairs that cannot be applied.
// resourceID is nil for creates and required for everything else.
func CheckCombination(rt ResourceType, action Action, resourceID *int64) error {
	switch action {
	case ActionCreate:
		if resourceID != nil {
			return fmt.Errorf("create must not reference an existing %s", rt)
		}
		return nil
	case ActionPublish, ActionUnpublish:
		if !rt.Publishable() {
			return fmt.Errorf("%s cannot be published or unpublished", rt)
		}
	case ActionSetPrimary:
		if rt != ResourceServiceImage {
			return fmt.Errorf("set_primary only applies to %s, not %s", ResourceServiceImage, rt)
		}
	case ActionUpdate:
	default:
		return fmt.Errorf("unknown action %q", action)
	}
	if resourceID == nil || *resourceID <= 0 {
		return fmt.Errorf("%s on %s requires a resource id", action, rt)
	}
	return nil
}

// ChangeStatus is the review state of a pending change.
type ChangeStatus string

// Change statuses. pending moves to approved or rejected exactly once.
const (
	ChangeStatusPending  ChangeStatus = "pending"
	ChangeStatusApproved ChangeStatus = "approved"
	ChangeStatusRejected ChangeStatus = "rejected"
)

// ParseChangeStatus converts a raw string into a ChangeStatus.
func ParseChangeStatus(s string) (ChangeStatus, error) {
	switch st := ChangeStatus(s); st {
	case ChangeStatusPending, ChangeStatusApproved, ChangeStatusRejected:
		return st, nil
	default:
		return "", fmt.Errorf("unknown change status %q", s)
	}
}

// AutoRejectPrefix starts the review note of a change rejected because applying it failed.
const AutoRejectPrefix = "Auto-rejected: "

// Payload is the set of fields a change applies to its resource.
type Payload map[string]any

// PendingChange is a proposed mutation awaiting admin review.
type PendingChange struct {
	ID           int64        `json:"id"`
	ResourceType ResourceType `json:"resource_type"`
	ResourceID   *int64       `json:"resource_id,omitempty"`
	Action       Action       `json:"action"`
	Payload      Payload      `json:"payload"`
	Status       ChangeStatus `json:"status"`
	SubmittedBy  int64        `json:"submitted_by"`
	ReviewedBy   *int64       `json:"reviewed_by,omitempty"`
	ReviewNote   *string      `json:"review_note,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
	ReviewedAt   *time.Time   `json:"reviewed_at,omitempty"`
}

// IsPending reports whether the change can still be reviewed.
func (c *PendingChange) IsPending() bool {
	return c.Status == ChangeStatusPending
}

// ChangeRequest is a decoded mutation request, shared by the review queue
// and the direct-apply path.
type ChangeRequest struct {
	ResourceType ResourceType
	ResourceID   *int64
	Action       Action
	Payload      Payload
}

// Validate checks the request's resource/action combination.
func (r ChangeRequest) Validate() error {
	if r.ResourceType.Table() == "" {
		return fmt.Errorf("unknown resource type %q", r.ResourceType)
	}
	return CheckCombination(r.ResourceType, r.Action, r.ResourceID)
}
