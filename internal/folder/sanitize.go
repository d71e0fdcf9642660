// Package folder manages the mailbox folder hierarchy: name
// sanitization, spam and trash folder discovery, category folder
// bookkeeping, and migration of legacy folders with unsafe names.
package folder

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// FallbackSegment is used when sanitization leaves nothing behind.
const FallbackSegment = "Category"

// CategoryPrefix marks folders created by the organizer.
const CategoryPrefix = "Category_"

var (
	whitespaceRe  = regexp.MustCompile(`\s+`)
	underscoresRe = regexp.MustCompile(`_+`)
)

// SanitizeSegment makes one path segment safe for any IMAP server:
// accented characters are decomposed and reduced to ASCII, anything
// outside letters, digits, dot, underscore, hyphen and space becomes an
// underscore, whitespace runs collapse to single underscores, and the
// hierarchy delimiter is neutralized. Empty results fall back to
// "Category". The function is idempotent: sanitizing a sanitized name
// returns it unchanged.
func SanitizeSegment(s, delim string) string {
	if s == "" {
		return FallbackSegment
	}

	decomposed := norm.NFKD.String(s)
	var ascii strings.Builder
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) || r > unicode.MaxASCII {
			continue
		}
		ascii.WriteRune(r)
	}

	var cleaned strings.Builder
	for _, r := range ascii.String() {
		if allowedInSegment(r) {
			cleaned.WriteRune(r)
		} else {
			cleaned.WriteRune('_')
		}
	}

	out := whitespaceRe.ReplaceAllString(cleaned.String(), "_")
	out = strings.Trim(out, "_")
	if delim != "" {
		out = strings.ReplaceAll(out, delim, "_")
	}
	out = underscoresRe.ReplaceAllString(out, "_")
	if out == "" {
		return FallbackSegment
	}
	return out
}

func allowedInSegment(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '.' || r == '_' || r == '-' || r == ' ':
		return true
	default:
		return false
	}
}

// IsSafeSegment reports whether a segment needs no sanitization at all.
// Stricter than SanitizeSegment's allowed set: spaces are unsafe here.
func IsSafeSegment(seg string) bool {
	if seg == "" {
		return false
	}
	for _, r := range seg {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '.' || r == '_' || r == '-':
		default:
			return false
		}
	}
	return true
}
