package envelope

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"relayhq/relay/pkg/codec"
)

// FormDataField is the field that carries an envelope inside a multipart body.
const FormDataField = "formData"

var (
	// ErrMalformed is returned when a body is not a usable envelope.
	ErrMalformed = errors.New("malformed envelope")
)

// HandShake identifies the caller to the relay server.
type HandShake struct {
	AppID      string          `json:"appId,omitempty" yaml:"app_id,omitempty"`
	AppToken   string          `json:"appToken,omitempty" yaml:"app_token,omitempty"`
	Timestamps int64           `json:"timestamps" yaml:"-"`
	User       json.RawMessage `json:"user,omitempty" yaml:"-"`
}

// Attributes is the static authorization block of an envelope.
type Attributes struct {
	HandShake *HandShake `json:"handshake,omitempty"`

	// Target is only honored by servers that enable dynamic targets.
	Target string `json:"target,omitempty"`
}

// Values is the wrapped request.
type Values struct {
	Method  string            `json:"method"`
	Path    string            `json:"path"`
	Headers map[string]string `json:"headers"`

	// Body is the request body as a JSON value. Non-JSON bodies travel as a
	// JSON string, see codec.WrapBody.
	Body json.RawMessage `json:"body,omitempty"`
}

// Header returns the value of the named header, ignoring case.
func (v Values) Header(name string) string {
	if s, ok := v.Headers[name]; ok {
		return s
	}
	for k, s := range v.Headers {
		if strings.EqualFold(k, name) {
			return s
		}
	}
	return ""
}

// RawBody returns the wrapped body in its original byte form.
func (v Values) RawBody() []byte {
	return codec.UnwrapBody(v.Body)
}

// IsMultipart reports whether the wrapped request is multipart/form-data.
func (v Values) IsMultipart() bool {
	return codec.IsMultipart(v.Header("Content-Type"))
}

// Envelope is one wrapped request.
type Envelope struct {
	Attributes Attributes `json:"attributes"`
	Values     Values     `json:"values"`
	Timestamps int64      `json:"timestamps"`
}

// Now returns the current time in epoch milliseconds, the unit of every
// timestamps field.
func Now() int64 {
	return time.Now().UnixMilli()
}

// Marshal encodes e. Multipart envelopes are wrapped in a formData object.
func Marshal(e *Envelope) ([]byte, error) {
	if e == nil {
		return nil, fmt.Errorf("%w: nil envelope", ErrMalformed)
	}

	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}

	if !e.Values.IsMultipart() {
		return data, nil
	}

	wrapped, err := json.Marshal(map[string]string{FormDataField: string(data)})
	if err != nil {
		return nil, fmt.Errorf("encode envelope form data: %w", err)
	}
	return wrapped, nil
}

// Parse decodes an envelope from body, unwrapping the formData shape when
// present. The wrapped request must name a method and a path.
func Parse(body []byte) (*Envelope, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrMalformed)
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(body, &probe); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	if inner, ok := probe[FormDataField]; ok {
		if _, hasValues := probe["values"]; !hasValues {
			unwrapped, err := unwrapFormData(inner)
			if err != nil {
				return nil, err
			}
			body = unwrapped
		}
	}

	var e Envelope
	if err := json.Unmarshal(body, &e); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	if e.Values.Method == "" {
		return nil, fmt.Errorf("%w: values.method is required", ErrMalformed)
	}
	if e.Values.Path == "" {
		return nil, fmt.Errorf("%w: values.path is required", ErrMalformed)
	}
	e.Values.Method = strings.ToUpper(e.Values.Method)
	if e.Values.Headers == nil {
		e.Values.Headers = map[string]string{}
	}

	return &e, nil
}

// unwrapFormData accepts the formData field either as a JSON-encoded string
// or, from lenient clients, as a nested object.
func unwrapFormData(raw json.RawMessage) ([]byte, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("%w: formData: %v", ErrMalformed, err)
		}
		return []byte(s), nil
	}
	if len(raw) > 0 && raw[0] == '{' {
		return raw, nil
	}
	return nil, fmt.Errorf("%w: formData must be a string", ErrMalformed)
}
