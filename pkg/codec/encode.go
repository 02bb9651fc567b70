package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"net/url"
	"os"
	"sort"
	"strings"
)

// FileRef points at a file to upload as a multipart part.
type FileRef struct {
	// Path is the local path the file is streamed from.
	Path string `json:"path" yaml:"path"`

	// Name is the filename announced in the part's Content-Disposition.
	Name string `json:"name" yaml:"name"`

	// Type is the part's MIME type (default: application/octet-stream).
	Type string `json:"type,omitempty" yaml:"type,omitempty"`
}

// Payload is an encoded wire body.
type Payload struct {
	// Body streams the encoded bytes. It is closed by the HTTP transport once
	// the request is sent, or by Close if the request is abandoned.
	Body io.ReadCloser

	// ContentType, when non-empty, replaces the request's Content-Type.
	ContentType string

	// Length is the body length, or -1 when unknown.
	Length int64
}

// Close releases the payload without sending it.
func (p *Payload) Close() error {
	if p == nil || p.Body == nil {
		return nil
	}
	return p.Body.Close()
}

// Raw wraps already-encoded bytes.
func Raw(body []byte) *Payload {
	return &Payload{
		Body:   io.NopCloser(bytes.NewReader(body)),
		Length: int64(len(body)),
	}
}

// IsEmpty reports whether body is absent: empty, whitespace or JSON null.
func IsEmpty(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// Encode applies the encoding rules in order and returns the wire payload.
// It returns nil when no body should be sent.
func Encode(method string, body []byte, contentType string, files map[string]FileRef) (*Payload, error) {
	if !HasBody(method) || IsEmpty(body) {
		return nil, nil
	}

	switch {
	case IsURLEncoded(contentType):
		if p, ok := EncodeURLEncoded(body); ok {
			return p, nil
		}
	case IsMultipart(contentType):
		p, ok, err := EncodeMultipart(body, files)
		if err != nil {
			return nil, err
		}
		if ok {
			return p, nil
		}
	}

	return Raw(body), nil
}

// EncodeURLEncoded flattens a JSON object into a query string. ok is false
// when body is not a JSON object, in which case the caller should forward it
// unchanged.
func EncodeURLEncoded(body []byte) (p *Payload, ok bool) {
	obj, ok := parseObject(body)
	if !ok {
		return nil, false
	}

	values := url.Values{}
	for name, v := range obj {
		flatten(name, v, values)
	}

	encoded := []byte(values.Encode())
	p = Raw(encoded)
	p.ContentType = ContentTypeURLEncoded
	return p, true
}

// EncodeMultipart builds a streamed multipart/form-data payload from a JSON
// object and a set of file references. ok is false when body is not a JSON
// object. Files are checked up front so that a missing file fails before
// anything is sent.
func EncodeMultipart(body []byte, files map[string]FileRef) (p *Payload, ok bool, err error) {
	obj, ok := parseObject(body)
	if !ok {
		return nil, false, nil
	}

	fileNames := make([]string, 0, len(files))
	for field, ref := range files {
		if _, err := os.Stat(ref.Path); err != nil {
			return nil, true, fmt.Errorf("multipart file %q: %w", field, err)
		}
		fileNames = append(fileNames, field)
	}
	sort.Strings(fileNames)

	fieldNames := make([]string, 0, len(obj))
	for name := range obj {
		fieldNames = append(fieldNames, name)
	}
	sort.Strings(fieldNames)

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		err := writeFields(mw, fieldNames, obj)
		if err == nil {
			err = writeFiles(mw, fileNames, files)
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	return &Payload{
		Body:        pr,
		ContentType: mw.FormDataContentType(),
		Length:      -1,
	}, true, nil
}

func writeFields(mw *multipart.Writer, names []string, obj map[string]any) error {
	for _, name := range names {
		if err := mw.WriteField(name, scalarString(obj[name])); err != nil {
			return fmt.Errorf("write field %q: %w", name, err)
		}
	}
	return nil
}

func writeFiles(mw *multipart.Writer, fields []string, files map[string]FileRef) error {
	for _, field := range fields {
		ref := files[field]

		f, err := os.Open(ref.Path)
		if err != nil {
			return fmt.Errorf("open multipart file %q: %w", field, err)
		}

		name := ref.Name
		if name == "" {
			name = baseName(ref.Path)
		}
		ct := ref.Type
		if ct == "" {
			ct = "application/octet-stream"
		}

		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
			escapeQuotes(field), escapeQuotes(name)))
		h.Set("Content-Type", ct)

		part, err := mw.CreatePart(h)
		if err == nil {
			_, err = io.Copy(part, f)
		}
		f.Close()
		if err != nil {
			return fmt.Errorf("stream multipart file %q: %w", field, err)
		}
	}
	return nil
}

// parseObject decodes body as a JSON object, keeping numbers verbatim.
func parseObject(body []byte) (map[string]any, bool) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var obj map[string]any
	if err := dec.Decode(&obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

// flatten writes v under key using bracket notation for nested objects and a
// repeated key for arrays.
func flatten(key string, v any, out url.Values) {
	switch t := v.(type) {
	case map[string]any:
		names := make([]string, 0, len(t))
		for name := range t {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			flatten(key+"["+name+"]", t[name], out)
		}
	case []any:
		for _, item := range t {
			if _, nested := item.(map[string]any); nested {
				flatten(key+"[]", item, out)
				continue
			}
			out.Add(key, scalarString(item))
		}
	default:
		out.Add(key, scalarString(v))
	}
}

// scalarString renders a decoded JSON value as a form value. Objects and
// arrays are rendered as compact JSON.
func scalarString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

func baseName(path string) string {
	if i := strings.LastIndexAny(path, `/\`); i >= 0 {
		return path[i+1:]
	}
	return path
}
