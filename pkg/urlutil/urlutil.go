package urlutil

import (
	"fmt"
	"net/url"
	"strings"
)

// OriginAndPath reduces an absolute URL to scheme://host/path.
//
// The reduction follows these rules:
//   - Scheme and host are lowercased
//   - Default ports are omitted (e.g., :80 for http, :443 for https)
//   - User info, query parameters and fragments are removed
//   - An empty path becomes "/"
//   - The path is otherwise kept verbatim, including trailing slashes
//
// Properties:
//   - Pure: no state, no memory
//   - Idempotent: reducing an already reduced URL yields the same string
func OriginAndPath(sourceUrl url.URL) string {
	reduced := url.URL{
		Scheme:  lowerASCII(sourceUrl.Scheme),
		Host:    lowerASCII(sourceUrl.Host),
		Path:    sourceUrl.Path,
		RawPath: sourceUrl.RawPath,
	}

	if host, port := reduced.Hostname(), reduced.Port(); port != "" {
		if (reduced.Scheme == "http" && port == "80") ||
			(reduced.Scheme == "https" && port == "443") {
			reduced.Host = host
			if strings.Contains(host, ":") {
				// IPv6 literal needs its brackets back
				reduced.Host = "[" + host + "]"
			}
		}
	}

	if reduced.Path == "" {
		reduced.Path = "/"
		reduced.RawPath = ""
	}

	return reduced.String()
}

// WithQuery appends every entry of params to the query string of base.
// Parameter order is not preserved: url.Values encodes keys sorted.
func WithQuery(base string, params map[string]string) (string, error) {
	target, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid base url %q: %w", base, err)
	}
	if !target.IsAbs() || target.Host == "" {
		return "", fmt.Errorf("base url %q is not absolute", base)
	}

	query := target.Query()
	for key, value := range params {
		query.Add(key, value)
	}
	target.RawQuery = query.Encode()

	return target.String(), nil
}

// lowerASCII converts ASCII characters to lowercase without allocating.
// This is faster than strings.ToLower for ASCII-only strings.
func lowerASCII(s string) string {
	var needsLower bool
	for i := 0; i < len(s); i++ {
		if s[i] >= 'A' && s[i] <= 'Z' {
			needsLower = true
			break
		}
	}
	if !needsLower {
		return s
	}
	b := make([]byte, len(s))
	copy(b, s)
	for i := 0; i < len(b); i++ {
		if b[i] >= 'A' && b[i] <= 'Z' {
			b[i] += 'a' - 'A'
		}
	}
	return string(b)
}
