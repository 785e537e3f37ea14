// Package endpoint inspects and rewrites base URLs of local inference servers.
package endpoint

import (
	"net/url"
	"strings"
)

// RequiredSuffix is the versioned API prefix OpenAI-compatible local servers expect.
const RequiredSuffix = "/v1"

// parseAbsolute parses raw as an absolute URL. Strings without scheme or host
// (e.g. "localhost:11434") are not treated as URLs.
func parseAbsolute(raw string) (*url.URL, bool) {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, false
	}
	return u, true
}

// HasRequiredSuffix reports whether the endpoint's path already ends in RequiredSuffix.
// Empty input counts as having it, so callers treat it as a no-op.
func HasRequiredSuffix(endpoint string) bool {
	trimmed := strings.TrimSpace(endpoint)
	if trimmed == "" {
		return true
	}
	if u, ok := parseAbsolute(trimmed); ok {
		return strings.HasSuffix(strings.TrimRight(u.Path, "/"), RequiredSuffix)
	}
	return strings.HasSuffix(strings.TrimRight(trimmed, "/"), RequiredSuffix)
}

// MissingSuffix is the negation of HasRequiredSuffix.
func MissingSuffix(endpoint string) bool {
	return !HasRequiredSuffix(endpoint)
}

// CanAutoFix reports whether the suffix is missing and the endpoint is host-only, the
// only case where appending it cannot collide with a custom path.
func CanAutoFix(endpoint string) bool {
	trimmed := strings.TrimSpace(endpoint)
	if trimmed == "" || !MissingSuffix(trimmed) {
		return false
	}
	if u, ok := parseAbsolute(trimmed); ok {
		return strings.TrimRight(u.Path, "/") == ""
	}
	withoutQuery := trimmed
	if i := strings.IndexAny(withoutQuery, "?#"); i >= 0 {
		withoutQuery = withoutQuery[:i]
	}
	return !strings.Contains(strings.TrimRight(withoutQuery, "/"), "/")
}

// AppendSuffix appends RequiredSuffix once, collapsing duplicate slashes in the path.
// Endpoints that already carry the suffix are returned trimmed but otherwise unchanged.
func AppendSuffix(endpoint string) string {
	trimmed := strings.TrimSpace(endpoint)
	if trimmed == "" || HasRequiredSuffix(trimmed) {
		return trimmed
	}
	if u, ok := parseAbsolute(trimmed); ok {
		u.Path = collapseSlashes(strings.TrimRight(u.Path, "/") + RequiredSuffix)
		u.RawPath = ""
		return u.String()
	}
	return strings.TrimRight(trimmed, "/") + RequiredSuffix
}

// BaseURL strips a trailing RequiredSuffix (with optional slash) and then one trailing
// slash, yielding the server root used for introspection paths.
func BaseURL(endpoint string) string {
	base := strings.TrimSpace(endpoint)
	if strings.HasSuffix(base, RequiredSuffix+"/") {
		base = strings.TrimSuffix(base, RequiredSuffix+"/")
	} else {
		base = strings.TrimSuffix(base, RequiredSuffix)
	}
	return strings.TrimSuffix(base, "/")
}

func collapseSlashes(path string) string {
	var b strings.Builder
	b.Grow(len(path))
	prevSlash := false
	for i := 0; i < len(path); i++ {
		c := path[i]
		if c == '/' {
			if prevSlash {
				continue
			}
			prevSlash = true
		} else {
			prevSlash = false
		}
		b.WriteByte(c)
	}
	return b.String()
}
