package logging

import (
	"log/slog"
	"regexp"
	"strings"

	"relayhq/relay/pkg/config"
)

// Redactor masks credentials in log attributes: app tokens from handshakes,
// authorization and cookie headers, and anything matching a configured
// pattern.
type Redactor struct {
	patterns []redactPattern
}

type redactPattern struct {
	name        string
	regex       *regexp.Regexp
	replacement string
}

// Built-in pattern names.
const (
	PatternBearerToken = "bearer_token"
	PatternBasicAuth   = "basic_auth"
	PatternAppToken    = "app_token"
	PatternQueryToken  = "query_token"
	PatternPassword    = "password"
)

var defaultPatterns = []struct {
	name        string
	regex       string
	replacement string
}{
	{PatternBearerToken, `Bearer\s+[a-zA-Z0-9\-._~+/]+=*`, "Bearer ***"},
	{PatternBasicAuth, `Basic\s+[a-zA-Z0-9+/]+=*`, "Basic ***"},
	// Handshake JSON, e.g. an envelope echoed into an error message.
	{PatternAppToken, `("appToken"\s*:\s*")[^"]*(")`, "${1}***${2}"},
	{PatternQueryToken, `([?&](?:token|access_token|api_key|key)=)[^&\s]+`, "${1}***"},
	{PatternPassword, `(password|passwd|pwd)[:=]\s*[^\s&]+`, "$1: ***"},
}

// sensitiveKeys are attribute or header names whose values are always masked.
var sensitiveKeys = []string{
	"password", "passwd", "secret", "token",
	"authorization", "cookie", "api_key", "apikey", "x-api-key",
	"private_key",
}

// NewRedactor creates a Redactor with the built-in patterns plus custom ones.
// Invalid custom patterns are skipped; config validation reports them.
func NewRedactor(custom []config.RedactPattern) *Redactor {
	r := &Redactor{}
	for _, p := range defaultPatterns {
		r.patterns = append(r.patterns, redactPattern{
			name:        p.name,
			regex:       regexp.MustCompile(p.regex),
			replacement: p.replacement,
		})
	}
	for _, p := range custom {
		regex, err := regexp.Compile(p.Pattern)
		if err != nil {
			continue
		}
		replacement := p.Replacement
		if replacement == "" {
			replacement = "***"
		}
		r.patterns = append(r.patterns, redactPattern{name: p.Name, regex: regex, replacement: replacement})
	}
	return r
}

// RedactString applies every pattern to value.
func (r *Redactor) RedactString(value string) string {
	if value == "" {
		return value
	}
	for _, p := range r.patterns {
		value = p.regex.ReplaceAllString(value, p.replacement)
	}
	return value
}

// RedactAttr masks a single attribute. Groups are walked recursively.
func (r *Redactor) RedactAttr(a slog.Attr) slog.Attr {
	v := a.Value.Resolve()
	switch v.Kind() {
	case slog.KindGroup:
		attrs := v.Group()
		out := make([]slog.Attr, len(attrs))
		for i, ga := range attrs {
			out[i] = r.RedactAttr(ga)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(out...)}
	case slog.KindString:
		if IsSensitiveKey(a.Key) {
			return slog.String(a.Key, MaskValue(v.String()))
		}
		return slog.String(a.Key, r.RedactString(v.String()))
	case slog.KindAny:
		if IsSensitiveKey(a.Key) {
			return slog.String(a.Key, "***")
		}
		if err, ok := v.Any().(error); ok {
			return slog.String(a.Key, r.RedactString(err.Error()))
		}
		if headers, ok := v.Any().(map[string]string); ok {
			return slog.Any(a.Key, RedactHeaders(headers))
		}
		return slog.Attr{Key: a.Key, Value: v}
	default:
		if IsSensitiveKey(a.Key) {
			return slog.String(a.Key, "***")
		}
		return slog.Attr{Key: a.Key, Value: v}
	}
}

// IsSensitiveKey reports whether key names a credential.
func IsSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

// MaskValue hides a secret, keeping a four character prefix of longer values
// so that different credentials can be told apart.
func MaskValue(v string) string {
	switch {
	case v == "":
		return ""
	case len(v) <= 8:
		return "***"
	default:
		return v[:4] + "***"
	}
}

// RedactHeaders returns a copy of headers with credential values masked.
func RedactHeaders(headers map[string]string) map[string]string {
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		if IsSensitiveKey(k) {
			v = MaskValue(v)
		}
		out[k] = v
	}
	return out
}
