package codec

import (
	"mime"
	"net/http"
	"strings"
)

// Content types understood by the codec.
const (
	ContentTypeJSON       = "application/json"
	ContentTypeURLEncoded = "application/x-www-form-urlencoded"
	ContentTypeMultipart  = "multipart/form-data"
)

// IsJSON reports whether ct names a JSON media type, including structured
// suffixes such as application/problem+json.
func IsJSON(ct string) bool {
	return strings.Contains(mediaType(ct), "json")
}

// IsURLEncoded reports whether ct is application/x-www-form-urlencoded.
func IsURLEncoded(ct string) bool {
	return mediaType(ct) == ContentTypeURLEncoded
}

// IsMultipart reports whether ct is multipart/form-data.
func IsMultipart(ct string) bool {
	return mediaType(ct) == ContentTypeMultipart
}

// HasBody reports whether requests with the given method may carry a body.
// GET and HEAD never do.
func HasBody(method string) bool {
	switch strings.ToUpper(method) {
	case http.MethodGet, http.MethodHead:
		return false
	default:
		return true
	}
}

func mediaType(ct string) string {
	if ct == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		// Fall back to the bare prefix for malformed parameters.
		mt, _, _ = strings.Cut(ct, ";")
	}
	return strings.ToLower(strings.TrimSpace(mt))
}
