package utils

import (
	"net/url"
	"strings"
)

// maxMaskLen caps how many mask characters Mask emits so the length of long
// secrets is not revealed.
const maxMaskLen = 10

// Truncate is a simple string truncate
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// Mask replaces a secret with at most 10 asterisks.
func Mask(secret string) string {
	return strings.Repeat("*", min(len(secret), maxMaskLen))
}

// RedactURL keeps the scheme and host of an endpoint and masks the rest, since
// hosted RPC providers embed API keys in the path or query.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return Mask(raw)
	}

	redacted := u.Scheme + "://" + u.Host
	rest := strings.TrimPrefix(u.Path, "/")
	if u.RawQuery != "" {
		rest += "?" + u.RawQuery
	}
	if rest != "" {
		redacted += "/" + Mask(rest)
	}

	return redacted
}
