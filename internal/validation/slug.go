// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package validation

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/mozillazg/go-unidecode"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	// apostrophes are dropped rather than turned into separators.
	apostrophes = strings.NewReplacer("'", "", "’", "", "‘", "")
	// nonAlnum matches any run of characters outside a-z and 0-9.
	nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)
)

// Slugify converts a string to a URL-friendly slug: lowercase ASCII letters
// and digits separated by single hyphens, at most MaxSlugLength long.
func Slugify(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)

	// Transliterate what accent stripping leaves behind (ß, Cyrillic, CJK).
	result = unidecode.Unidecode(result)

	result = strings.ToLower(result)
	result = apostrophes.Replace(result)
	result = nonAlnum.ReplaceAllString(result, "-")
	result = strings.Trim(result, "-")

	if len(result) > MaxSlugLength {
		result = strings.TrimRight(result[:MaxSlugLength], "-")
	}
	return result
}

// sqlInjectionPatterns is a coarse denylist checked on slugs before and
// after slugification. Keywords must be separated by whitespace or SQL
// comments, so hyphenated prose such as "how-to-drop-tables" passes.
var sqlInjectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bunion(\s|/\*.*?\*/)+(all(\s|/\*.*?\*/)+)?select\b`),
	regexp.MustCompile(`(?i)\bdrop(\s|/\*.*?\*/)+(table|database)\b`),
	regexp.MustCompile(`(?i)\binsert(\s|/\*.*?\*/)+into\b`),
	regexp.MustCompile(`(?i)\bdelete(\s|/\*.*?\*/)+from\b`),
	regexp.MustCompile(`(?i)\bor\s+['"]?1['"]?\s*=\s*['"]?1\b`),
	regexp.MustCompile(`--|;|/\*|\*/|\bxp_`),
}

// LooksLikeSQLInjection reports whether s matches the denylist.
func LooksLikeSQLInjection(s string) bool {
	for _, re := range sqlInjectionPatterns {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}
