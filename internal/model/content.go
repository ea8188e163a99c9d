// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

// Common content columns.
const (
	FieldIsPublished  = "is_published"
	FieldPublishedAt  = "published_at"
	FieldDisplayOrder = "display_order"
	FieldCreatedBy    = "created_by"
	FieldUpdatedBy    = "updated_by"
	FieldIsPrimary    = "is_primary"
	FieldServiceID    = "service_id"
)

// Testimonial is a customer quote shown on the public site.
type Testimonial struct {
	Name         string `json:"name"`
	Company      string `json:"company,omitempty"`
	Description  string `json:"description"`
	Rating       int    `json:"rating"`
	DisplayOrder int    `json:"display_order"`
}

// Fields returns the datastore columns for the testimonial.
func (t Testimonial) Fields() Payload {
	return Payload{
		"name":            t.Name,
		"company":         t.Company,
		"description":     t.Description,
		"rating":          t.Rating,
		FieldDisplayOrder: t.DisplayOrder,
	}
}

// Service is an offered service with an optional cover image.
type Service struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	ImageURL     string `json:"image_url,omitempty"`
	ImageAlt     string `json:"image_alt,omitempty"`
	DisplayOrder int    `json:"display_order"`
}

// Fields returns the datastore columns for the service.
func (s Service) Fields() Payload {
	return Payload{
		"title":           s.Title,
		"description":     s.Description,
		"image_url":       s.ImageURL,
		"image_alt":       s.ImageAlt,
		FieldDisplayOrder: s.DisplayOrder,
	}
}

// Image is a gallery image, either attached to a service or a trust badge.
type Image struct {
	ServiceID    int64  `json:"service_id,omitempty"`
	ImageURL     string `json:"image_url"`
	AltText      string `json:"alt_text"`
	LinkURL      string `json:"link_url,omitempty"`
	DisplayOrder int    `json:"display_order"`
}

// ServiceImageFields returns the datastore columns for a service image.
func (i Image) ServiceImageFields() Payload {
	return Payload{
		FieldServiceID:    i.ServiceID,
		"image_url":       i.ImageURL,
		"alt_text":        i.AltText,
		FieldDisplayOrder: i.DisplayOrder,
	}
}

// TrustImageFields returns the datastore columns for a trust image.
func (i Image) TrustImageFields() Payload {
	return Payload{
		"image_url":       i.ImageURL,
		"alt_text":        i.AltText,
		"link_url":        i.LinkURL,
		FieldDisplayOrder: i.DisplayOrder,
	}
}

// BlogPost is a blog article. Content holds sanitized HTML.
type BlogPost struct {
	Title         string `json:"title"`
	Slug          string `json:"slug"`
	Excerpt       string `json:"excerpt,omitempty"`
	Content       string `json:"content"`
	CoverImageURL string `json:"cover_image_url,omitempty"`
	DisplayOrder  int    `json:"display_order"`
}

// Fields returns the datastore columns for the blog post.
func (b BlogPost) Fields() Payload {
	return Payload{
		"title":           b.Title,
		"slug":            b.Slug,
		"excerpt":         b.Excerpt,
		"content":         b.Content,
		"cover_image_url": b.CoverImageURL,
		FieldDisplayOrder: b.DisplayOrder,
	}
}

// ContactMessage is a message sent through the public contact form.
type ContactMessage struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone,omitempty"`
	Subject string `json:"subject,omitempty"`
	Message string `json:"message"`
	Consent bool   `json:"consent"`
}
