// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package validation

import (
	"fmt"
	"net/mail"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/olegiv/siteflow/internal/model"
)

// Input is a raw decoded request body.
type Input = map[string]any

// phonePattern is a loose international phone number.
var phonePattern = regexp.MustCompile(`^\+?[0-9 ().\-]{7,20}$`)

// Testimonial validates a testimonial form.
func Testimonial(in Input) (model.Testimonial, error) {
	var t model.Testimonial
	var err error

	if t.Name, err = requiredText(in, "name", MaxNameLength, 2); err != nil {
		return t, err
	}
	t.Company = SanitizeString(text(in, "company"), MaxNameLength)
	if t.Description, err = requiredText(in, "description", MaxDescriptionLength, 10); err != nil {
		return t, err
	}
	if t.Rating, err = ValidateIntRange("rating", in["rating"], 1, 5); err != nil {
		return t, err
	}
	if t.DisplayOrder, err = displayOrder(in); err != nil {
		return t, err
	}
	return t, nil
}

// Service validates a service form. The cover image and its alt text are
// required unless requireImage is false.
func Service(in Input, requireImage bool) (model.Service, error) {
	var s model.Service
	var err error

	if s.Title, err = requiredText(in, "title", MaxTitleLength, 3); err != nil {
		return s, err
	}
	if s.Description, err = requiredText(in, "description", MaxDescriptionLength, 10); err != nil {
		return s, err
	}

	rawURL := text(in, "image_url")
	if requireImage || strings.TrimSpace(rawURL) != "" {
		if s.ImageURL, err = urlField(in, "image_url"); err != nil {
			return s, err
		}
		if s.ImageAlt, err = requiredText(in, "image_alt", MaxAltTextLength, 3); err != nil {
			return s, err
		}
	}

	if s.DisplayOrder, err = displayOrder(in); err != nil {
		return s, err
	}
	return s, nil
}

// ServiceImage validates an image attached to a service.
func ServiceImage(in Input) (model.Image, error) {
	var img model.Image
	serviceID, err := ValidateIntRange("service_id", in["service_id"], 1, maxID)
	if err != nil {
		return img, err
	}
	img.ServiceID = int64(serviceID)
	if img.ImageURL, err = urlField(in, "image_url"); err != nil {
		return img, err
	}
	img.AltText = SanitizeString(text(in, "alt_text"), MaxAltTextLength)
	if img.DisplayOrder, err = displayOrder(in); err != nil {
		return img, err
	}
	return img, nil
}

// TrustImage validates a trust badge image.
func TrustImage(in Input) (model.Image, error) {
	var img model.Image
	var err error
	if img.ImageURL, err = urlField(in, "image_url"); err != nil {
		return img, err
	}
	img.AltText = SanitizeString(text(in, "alt_text"), MaxAltTextLength)
	if strings.TrimSpace(text(in, "link_url")) != "" {
		if img.LinkURL, err = urlField(in, "link_url"); err != nil {
			return img, err
		}
	}
	if img.DisplayOrder, err = displayOrder(in); err != nil {
		return img, err
	}
	return img, nil
}

// Blog validates a blog post. A content_format of "markdown" renders the
// body before sanitizing it. The slug is derived from the title when omitted.
func Blog(in Input) (model.BlogPost, error) {
	var b model.BlogPost
	var err error

	if b.Title, err = requiredText(in, "title", MaxTitleLength, 3); err != nil {
		return b, err
	}

	rawSlug := SanitizeString(text(in, "slug"), MaxSlugLength*2)
	if LooksLikeSQLInjection(rawSlug) {
		return b, fieldError("slug", "contains disallowed characters")
	}
	if rawSlug == "" {
		rawSlug = b.Title
	}
	b.Slug = Slugify(rawSlug)
	if b.Slug == "" {
		return b, fieldError("slug", "must contain at least one letter or digit")
	}
	if LooksLikeSQLInjection(b.Slug) {
		return b, fieldError("slug", "contains disallowed characters")
	}

	content := text(in, "content")
	if len(content) > MaxBlogContentLength {
		return b, fieldError("content", "must be at most %d characters", MaxBlogContentLength)
	}
	switch format := text(in, "content_format"); format {
	case "", "html":
	case "markdown":
		if content, err = RenderMarkdown(content); err != nil {
			return b, fieldError("content", "could not be rendered")
		}
	default:
		return b, fieldError("content_format", "unknown format %q", format)
	}
	b.Content = strings.TrimSpace(SanitizeHTML(content))
	if utf8.RuneCountInString(b.Content) < 10 {
		return b, fieldError("content", "must be at least 10 characters")
	}

	b.Excerpt = SanitizeString(text(in, "excerpt"), MaxExcerptLength)
	if strings.TrimSpace(text(in, "cover_image_url")) != "" {
		if b.CoverImageURL, err = urlField(in, "cover_image_url"); err != nil {
			return b, err
		}
	}
	if b.DisplayOrder, err = displayOrder(in); err != nil {
		return b, err
	}
	return b, nil
}

// Contact validates a public contact form submission.
func Contact(in Input) (model.ContactMessage, error) {
	var c model.ContactMessage
	var err error

	if c.Name, err = requiredText(in, "name", MaxNameLength, 2); err != nil {
		return c, err
	}

	email := SanitizeString(text(in, "email"), MaxEmailLength+1)
	if email == "" {
		return c, fieldError("email", "is required")
	}
	if len(email) > MaxEmailLength {
		return c, fieldError("email", "must be at most %d characters", MaxEmailLength)
	}
	addr, perr := mail.ParseAddress(email)
	if perr != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@")+1:], ".") {
		return c, fieldError("email", "is not a valid email address")
	}
	c.Email = email

	if phone := SanitizeString(text(in, "phone"), 32); phone != "" {
		if !phonePattern.MatchString(phone) {
			return c, fieldError("phone", "is not a valid phone number")
		}
		c.Phone = phone
	}

	c.Subject = SanitizeString(text(in, "subject"), MaxSubjectLength)
	if c.Message, err = requiredText(in, "message", MaxMessageLength, 10); err != nil {
		return c, err
	}

	if !truthy(in["consent"]) {
		return c, fieldError("consent", "must be given")
	}
	c.Consent = true
	return c, nil
}

// Payload validates a change payload for the given resource and action and
// returns the sanitized column values to store.
func Payload(rt model.ResourceType, action model.Action, in model.Payload) (model.Payload, error) {
	switch action {
	case model.ActionPublish, model.ActionUnpublish:
		return model.Payload{}, nil
	case model.ActionSetPrimary:
		serviceID, err := ValidateIntRange(model.FieldServiceID, in[model.FieldServiceID], 1, maxID)
		if err != nil {
			return nil, err
		}
		return model.Payload{model.FieldServiceID: int64(serviceID)}, nil
	case model.ActionCreate, model.ActionUpdate:
	default:
		return nil, &Error{Message: fmt.Sprintf("unknown action %q", action)}
	}

	if in == nil {
		in = model.Payload{}
	}
	switch rt {
	case model.ResourceTestimonial:
		t, err := Testimonial(in)
		if err != nil {
			return nil, err
		}
		return t.Fields(), nil
	case model.ResourceService:
		requireImage := true
		if v, ok := in["require_image"]; ok {
			requireImage = truthy(v)
		}
		s, err := Service(in, requireImage)
		if err != nil {
			return nil, err
		}
		return s.Fields(), nil
	case model.ResourceServiceImage:
		img, err := ServiceImage(in)
		if err != nil {
			return nil, err
		}
		return img.ServiceImageFields(), nil
	case model.ResourceTrustImage:
		img, err := TrustImage(in)
		if err != nil {
			return nil, err
		}
		return img.TrustImageFields(), nil
	case model.ResourceBlog:
		b, err := Blog(in)
		if err != nil {
			return nil, err
		}
		return b.Fields(), nil
	default:
		return nil, &Error{Message: fmt.Sprintf("unknown resource type %q", rt)}
	}
}

// maxID bounds ids parsed from input.
const maxID = 1<<31 - 1

func requiredText(in Input, field string, maxLen, minLen int) (string, error) {
	s := SanitizeString(text(in, field), maxLen)
	if s == "" {
		return "", fieldError(field, "is required")
	}
	if utf8.RuneCountInString(s) < minLen {
		return "", fieldError(field, "must be at least %d characters", minLen)
	}
	return s, nil
}

func urlField(in Input, field string) (string, error) {
	u, err := SanitizeURL(text(in, field))
	if err != nil {
		return "", withField(field, err)
	}
	return u, nil
}

func displayOrder(in Input) (int, error) {
	v, ok := in[model.FieldDisplayOrder]
	if !ok || v == nil || v == "" {
		return 0, nil
	}
	return ValidateIntRange(model.FieldDisplayOrder, v, 0, 100000)
}

// text returns a string input value. Numbers are formatted so a form that
// posts "company": 42 is not silently dropped.
func text(in Input, field string) string {
	switch v := in[field].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		return ""
	}
}

func truthy(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true", "on", "yes", "1":
			return true
		}
	case float64:
		return b == 1
	case int:
		return b == 1
	}
	return false
}
