package post

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// whitespaceRegex matches one or more whitespace characters
var whitespaceRegex = regexp.MustCompile(`\s+`)

// Normalize trims, lowercases and collapses internal whitespace.
func Normalize(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ToLower(s)
	return whitespaceRegex.ReplaceAllString(s, " ")
}

// NormalizePlatform normalizes a single platform identifier.
func NormalizePlatform(p Platform) Platform {
	return Platform(Normalize(string(p)))
}

// NormalizePlatforms normalizes and deduplicates platform identifiers,
// keeping first-seen order. Empty entries are dropped.
func NormalizePlatforms(in []Platform) []Platform {
	seen := make(map[Platform]bool, len(in))
	out := make([]Platform, 0, len(in))
	for _, p := range in {
		p = NormalizePlatform(p)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

// NormalizeTags normalizes and deduplicates tags, keeping first-seen order.
func NormalizeTags(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, t := range in {
		t = Normalize(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// CountChars returns the character count as runes (not bytes).
func CountChars(text string) int {
	return utf8.RuneCountInString(text)
}
