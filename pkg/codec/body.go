package codec

import (
	"bytes"
	"encoding/json"
)

// WrapBody converts a raw request body into a JSON value that can travel
// inside an envelope. JSON objects, arrays, numbers and booleans are carried
// as-is; everything else (plain text, form strings, JSON string literals) is
// carried as a JSON string. An absent body yields nil.
func WrapBody(body []byte) json.RawMessage {
	if IsEmpty(body) {
		return nil
	}

	trimmed := bytes.TrimSpace(body)
	if json.Valid(trimmed) && trimmed[0] != '"' {
		return json.RawMessage(trimmed)
	}

	quoted, err := json.Marshal(string(body))
	if err != nil {
		return nil
	}
	return quoted
}

// UnwrapBody is the inverse of WrapBody: JSON strings are unquoted and other
// JSON values are returned verbatim.
func UnwrapBody(value json.RawMessage) []byte {
	if IsEmpty(value) {
		return nil
	}

	trimmed := bytes.TrimSpace(value)
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return []byte(s)
		}
	}
	return []byte(trimmed)
}
