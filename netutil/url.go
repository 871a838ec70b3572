package netutil

import (
	"net/url"
	"strings"
)

// JoinURL appends path segments to a base URL, keeping the base's query and
// fragment out of the result.
func JoinURL(base string, segments ...string) (string, error) {
	return url.JoinPath(base, segments...)
}

// StripCredentials removes user:password@ from a URL for safe logging and
// error text. Returns the input unchanged when it cannot be parsed.
func StripCredentials(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	parsed.User = nil
	return parsed.String()
}

// NormalizeURL returns the canonical form of a URL: lowercased scheme and
// host, default ports and credentials removed, trailing slash trimmed, query
// parameters sorted. Differently spelled URLs of the same codebase normalize
// to the same string.
func NormalizeURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	parsed.User = nil
	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.ToLower(parsed.Host)

	host := parsed.Hostname()
	port := parsed.Port()
	if (parsed.Scheme == "https" && port == "443") ||
		(parsed.Scheme == "http" && port == "80") {
		parsed.Host = host
	}

	if parsed.Path != "/" && strings.HasSuffix(parsed.Path, "/") {
		parsed.Path = strings.TrimSuffix(parsed.Path, "/")
	}

	if parsed.RawQuery != "" {
		parsed.RawQuery = parsed.Query().Encode()
	}

	return parsed.String()
}
