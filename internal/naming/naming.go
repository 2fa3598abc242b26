// Package naming normalises free-text names into identifiers and splits
// location hints into comparable tokens.
package naming

import (
	"strconv"
	"strings"
	"time"
	"unicode"
)

// Slug lowercases name and collapses every run of characters outside
// [a-z0-9] into a single dash. Leading and trailing dashes are dropped.
func Slug(name string) string {
	var sb strings.Builder
	sb.Grow(len(name))
	pendingDash := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if pendingDash && sb.Len() > 0 {
				sb.WriteByte('-')
			}
			pendingDash = false
			sb.WriteRune(r)
		default:
			pendingDash = true
		}
	}
	return sb.String()
}

// GenerateID returns slug(name)-<unix millis>. Names without any usable
// characters fall back to fallback (or "item").
func GenerateID(name, fallback string, now time.Time) string {
	s := Slug(name)
	if s == "" {
		s = Slug(fallback)
	}
	if s == "" {
		s = "item"
	}
	return s + "-" + strconv.FormatInt(now.UnixMilli(), 10)
}

// HintTokens splits a region/country hint into lowercase tokens longer than
// two characters.
func HintTokens(hint string) []string {
	fields := strings.FieldsFunc(strings.ToLower(hint), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := make([]string, 0, len(fields))
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if len([]rune(f)) <= 2 {
			continue
		}
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

// MatchesHint reports whether any token is a case-insensitive substring of
// any of the fields.
func MatchesHint(tokens []string, fields ...string) bool {
	if len(tokens) == 0 {
		return false
	}
	for _, f := range fields {
		f = strings.ToLower(strings.TrimSpace(f))
		if f == "" {
			continue
		}
		for _, tok := range tokens {
			if strings.Contains(f, tok) {
				return true
			}
		}
	}
	return false
}

// ContainsFold reports whether needle is a case-insensitive substring of
// haystack. Empty needles never match.
func ContainsFold(haystack, needle string) bool {
	needle = strings.ToLower(strings.TrimSpace(needle))
	if needle == "" {
		return false
	}
	return strings.Contains(strings.ToLower(haystack), needle)
}
