package gateway

import (
	"strings"
)

// Resolve picks the upstream for one request. The requested target wins
// only when dynamic targets are allowed and it is non-empty.
func Resolve(configured, requested string, dynamicAllowed bool) string {
	if dynamicAllowed && requested != "" {
		return requested
	}
	return configured
}

// JoinURL concatenates target and path, collapsing repeated slashes in the
// path part. The scheme separator and the query string are left alone.
func JoinURL(target, path string) string {
	joined := target + path
	scheme, rest, ok := strings.Cut(joined, "://")
	if !ok {
		return collapsePath(joined)
	}
	return scheme + "://" + collapsePath(rest)
}

func collapsePath(s string) string {
	p, query, ok := strings.Cut(s, "?")
	if !ok {
		return collapseSlashes(s)
	}
	return collapseSlashes(p) + "?" + query
}

func collapseSlashes(s string) string {
	if !strings.Contains(s, "//") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	prev := byte(0)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '/' && prev == '/' {
			continue
		}
		b.WriteByte(c)
		prev = c
	}
	return b.String()
}
