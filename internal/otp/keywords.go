package otp

import "strings"

var defaultKeywords = []string{
	"otp",
	"code",
	"verification",
	"login",
	"verify",
	"password",
	"auth",
	"authenticate",
	"security",
}

// DefaultKeywords returns a fresh copy of the built-in keyword list.
func DefaultKeywords() []string {
	out := make([]string, len(defaultKeywords))
	copy(out, defaultKeywords)
	return out
}

// ContainsKeywords reports whether any keyword occurs in message, ignoring
// case. An empty keyword list never matches; empty keywords are skipped,
// unlike a plain substring test where "" would match every message.
func ContainsKeywords(message string, keywords []string) bool {
	if len(keywords) == 0 {
		return false
	}
	lower := strings.ToLower(message)
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// NormalizeKeyword trims and lowercases a keyword the way it is stored.
func NormalizeKeyword(kw string) string {
	return strings.ToLower(strings.TrimSpace(kw))
}

// NormalizeKeywords normalizes every keyword, drops empties and repeats, and
// keeps the first-seen order.
func NormalizeKeywords(keywords []string) []string {
	seen := make(map[string]struct{}, len(keywords))
	out := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = NormalizeKeyword(kw)
		if kw == "" {
			continue
		}
		if _, dup := seen[kw]; dup {
			continue
		}
		seen[kw] = struct{}{}
		out = append(out, kw)
	}
	return out
}
