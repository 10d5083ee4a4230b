package utils

import (
	"net/url"
	"regexp"
	"strings"
)

var handlePattern = regexp.MustCompile(`^[A-Za-z0-9_]{1,15}$`)

// hosts we accept profile URLs from
var profileHosts = map[string]bool{
	"x.com":              true,
	"www.x.com":          true,
	"mobile.x.com":       true,
	"twitter.com":        true,
	"www.twitter.com":    true,
	"mobile.twitter.com": true,
}

// NormalizeUsername extracts the bare handle from a handle, @handle or profile URL.
// Case is preserved. Returns "" when no valid handle can be extracted.
func NormalizeUsername(input string) string {
	input = strings.TrimSpace(input)
	if input == "" {
		return ""
	}

	candidate := input
	if looksLikeURL(input) {
		candidate = handleFromURL(input)
	}

	candidate = strings.TrimPrefix(candidate, "@")
	if !handlePattern.MatchString(candidate) {
		return ""
	}
	return candidate
}

func looksLikeURL(input string) bool {
	lower := strings.ToLower(input)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return true
	}
	host, _, _ := strings.Cut(lower, "/")
	return profileHosts[host]
}

// handleFromURL returns the first path segment of an X/Twitter profile URL
func handleFromURL(raw string) string {
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if !profileHosts[strings.ToLower(u.Hostname())] {
		return ""
	}

	segment, _, _ := strings.Cut(strings.TrimPrefix(u.Path, "/"), "/")
	return segment
}
