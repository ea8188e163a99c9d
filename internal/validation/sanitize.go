// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package validation sanitizes and validates content submitted to the
// editorial workflow. Expected failures are returned as *Error values.
package validation

import (
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Length limits.
const (
	MaxNameLength        = 100
	MaxTitleLength       = 200
	MaxAltTextLength     = 200
	MaxSubjectLength     = 200
	MaxExcerptLength     = 500
	MaxDescriptionLength = 2000
	MaxMessageLength     = 5000
	MaxBlogContentLength = 100000
	MaxURLLength         = 2048
	MaxEmailLength       = 254
	MaxSlugLength        = 200
)

// Error is a validation failure on one field.
type Error struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func fieldError(field, format string, args ...any) *Error {
	return &Error{Field: field, Message: fmt.Sprintf(format, args...)}
}

// SanitizeString strips NUL and C0 control characters other than newline and
// tab, trims surrounding whitespace, and truncates to maxLen runes.
func SanitizeString(s string, maxLen int) string {
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}
	s = strings.Map(func(r rune) rune {
		if r < 0x20 && r != '\n' && r != '\t' {
			return -1
		}
		return r
	}, s)
	s = strings.TrimSpace(s)
	if maxLen > 0 && utf8.RuneCountInString(s) > maxLen {
		s = string([]rune(s)[:maxLen])
	}
	return s
}

// blockedSchemes are rejected anywhere in a URL, regardless of how it parses.
var blockedSchemes = []string{"javascript:", "data:", "vbscript:"}

// SanitizeURL accepts absolute http and https URLs only.
func SanitizeURL(raw string) (string, error) {
	s := SanitizeString(raw, 0)
	if s == "" {
		return "", &Error{Message: "URL is required"}
	}
	if len(s) > MaxURLLength {
		return "", &Error{Message: fmt.Sprintf("URL exceeds %d characters", MaxURLLength)}
	}

	lower := strings.ToLower(s)
	for _, scheme := range blockedSchemes {
		if strings.Contains(lower, scheme) {
			return "", &Error{Message: "URL scheme is not allowed"}
		}
	}

	u, err := url.Parse(s)
	if err != nil {
		return "", &Error{Message: "URL is not valid"}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", &Error{Message: "URL must use http or https"}
	}
	if u.Host == "" {
		return "", &Error{Message: "URL must include a host"}
	}
	return u.String(), nil
}

// ParseInt converts a decoded input value to an int. Fractional numbers,
// NaN, infinities and non-numeric strings are rejected.
func ParseInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		if n > math.MaxInt || n < math.MinInt {
			return 0, &Error{Message: "number is out of range"}
		}
		return int(n), nil
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, &Error{Message: "must be a number"}
		}
		if n != math.Trunc(n) {
			return 0, &Error{Message: "must be a whole number"}
		}
		if n > math.MaxInt32 || n < math.MinInt32 {
			return 0, &Error{Message: "number is out of range"}
		}
		return int(n), nil
	case json.Number:
		i, err := strconv.Atoi(string(n))
		if err != nil {
			return 0, &Error{Message: "must be a whole number"}
		}
		return i, nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, &Error{Message: "must be a whole number"}
		}
		return i, nil
	case nil:
		return 0, &Error{Message: "is required"}
	default:
		return 0, &Error{Message: "must be a whole number"}
	}
}

// ValidateInt parses an integer field with no bounds.
func ValidateInt(field string, v any) (int, error) {
	n, err := ParseInt(v)
	if err != nil {
		return 0, withField(field, err)
	}
	return n, nil
}

// ValidateIntRange parses an integer field and enforces min <= n <= max.
func ValidateIntRange(field string, v any, minVal, maxVal int) (int, error) {
	n, err := ValidateInt(field, v)
	if err != nil {
		return 0, err
	}
	if n < minVal || n > maxVal {
		return 0, fieldError(field, "must be between %d and %d", minVal, maxVal)
	}
	return n, nil
}

func withField(field string, err error) error {
	if ve, ok := err.(*Error); ok {
		return &Error{Field: field, Message: ve.Message}
	}
	return err
}
