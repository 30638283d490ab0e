// Package util holds small string helpers shared by logging and handlers.
package util

import (
	"net/url"
	"strings"
	"unicode/utf8"
)

// HideAPIKey keeps a few leading and trailing characters of a secret for log lines.
func HideAPIKey(apiKey string) string {
	var keep int
	switch n := len(apiKey); {
	case n > 8:
		keep = 4
	case n > 4:
		keep = 2
	case n > 2:
		keep = 1
	default:
		return apiKey
	}
	return apiKey[:keep] + "..." + apiKey[len(apiKey)-keep:]
}

// sensitiveQueryMarkers are substrings that mark a query parameter as secret.
var sensitiveQueryMarkers = []string{"api-key", "apikey", "api_key", "token", "secret", "jwt"}

// MaskSensitiveQuery replaces secret query values, e.g. token or apikey, with HideAPIKey output.
func MaskSensitiveQuery(raw string) string {
	if raw == "" {
		return ""
	}
	parts := strings.Split(raw, "&")
	changed := false
	for i, part := range parts {
		key, value, _ := strings.Cut(part, "=")
		if key == "" || !isSensitiveQueryKey(unescapeOr(key)) {
			continue
		}
		parts[i] = key + "=" + url.QueryEscape(HideAPIKey(strings.TrimSpace(unescapeOr(value))))
		changed = true
	}
	if !changed {
		return raw
	}
	return strings.Join(parts, "&")
}

func unescapeOr(s string) string {
	if decoded, err := url.QueryUnescape(s); err == nil {
		return decoded
	}
	return s
}

func isSensitiveQueryKey(key string) bool {
	key = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(key)), "[]")
	if key == "" {
		return false
	}
	if key == "key" {
		return true
	}
	for _, marker := range sensitiveQueryMarkers {
		if strings.Contains(key, marker) {
			return true
		}
	}
	return false
}

// Truncate returns at most n runes of s.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
