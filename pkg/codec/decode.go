package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/url"
	"os"
)

// DefaultMaxBodyBytes bounds the bytes Decode reads from a non-file body.
const DefaultMaxBodyBytes = 10 << 20

// ErrBodyTooLarge is returned when an inbound body exceeds the limit.
var ErrBodyTooLarge = errors.New("request body too large")

// DecodeOptions controls Decode.
type DecodeOptions struct {
	// SpoolDir receives uploaded files (default: os.TempDir()).
	SpoolDir string

	// MaxBodyBytes bounds non-file content (default: 10 MiB).
	MaxBodyBytes int64
}

// Decoded is a logical body parsed from the wire.
type Decoded struct {
	// Body is JSON for JSON, urlencoded and multipart inputs, and the raw
	// bytes otherwise.
	Body []byte

	// Files holds spooled multipart uploads keyed by field name.
	Files map[string]FileRef
}

// Decode parses an inbound wire body into its logical form. Callers own the
// spooled files and should release them with RemoveFiles.
func Decode(contentType string, r io.Reader, opts DecodeOptions) (*Decoded, error) {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if r == nil {
		return &Decoded{}, nil
	}

	if IsMultipart(contentType) {
		return decodeMultipart(contentType, r, opts)
	}

	raw, err := readLimited(r, opts.MaxBodyBytes)
	if err != nil {
		return nil, err
	}

	if IsURLEncoded(contentType) {
		values, err := url.ParseQuery(string(raw))
		if err != nil {
			return nil, fmt.Errorf("parse urlencoded body: %w", err)
		}
		body, err := json.Marshal(valuesToObject(values))
		if err != nil {
			return nil, err
		}
		return &Decoded{Body: body}, nil
	}

	return &Decoded{Body: raw}, nil
}

// RemoveFiles deletes spooled files. It returns the first error encountered.
func RemoveFiles(files map[string]FileRef) error {
	var first error
	for _, ref := range files {
		if err := os.Remove(ref.Path); err != nil && !errors.Is(err, os.ErrNotExist) && first == nil {
			first = err
		}
	}
	return first
}

func decodeMultipart(contentType string, r io.Reader, opts DecodeOptions) (*Decoded, error) {
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, fmt.Errorf("parse multipart content type: %w", err)
	}
	boundary := params["boundary"]
	if boundary == "" {
		return nil, errors.New("multipart content type has no boundary")
	}

	mr := multipart.NewReader(r, boundary)
	values := url.Values{}
	files := make(map[string]FileRef)
	budget := opts.MaxBodyBytes

	fail := func(err error) (*Decoded, error) {
		_ = RemoveFiles(files)
		return nil, err
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fail(fmt.Errorf("read multipart part: %w", err))
		}

		name := part.FormName()
		if name == "" {
			part.Close()
			continue
		}

		if part.FileName() == "" {
			b, err := readLimited(part, budget)
			part.Close()
			if err != nil {
				return fail(err)
			}
			budget -= int64(len(b))
			values.Add(name, string(b))
			continue
		}

		ref, err := spool(part, opts.SpoolDir)
		part.Close()
		if err != nil {
			return fail(err)
		}
		if old, dup := files[name]; dup {
			_ = os.Remove(old.Path)
		}
		files[name] = ref
	}

	body, err := json.Marshal(valuesToObject(values))
	if err != nil {
		return fail(err)
	}
	if len(files) == 0 {
		files = nil
	}
	return &Decoded{Body: body, Files: files}, nil
}

func spool(part *multipart.Part, dir string) (FileRef, error) {
	f, err := os.CreateTemp(dir, "relay-upload-*")
	if err != nil {
		return FileRef{}, fmt.Errorf("spool upload: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, part); err != nil {
		os.Remove(f.Name())
		return FileRef{}, fmt.Errorf("spool upload %q: %w", part.FileName(), err)
	}

	return FileRef{
		Path: f.Name(),
		Name: part.FileName(),
		Type: part.Header.Get("Content-Type"),
	}, nil
}

func readLimited(r io.Reader, limit int64) ([]byte, error) {
	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if n > limit {
		return nil, ErrBodyTooLarge
	}
	return buf.Bytes(), nil
}

// valuesToObject turns form values into a JSON-ready object: single values
// become strings and repeated values become arrays.
func valuesToObject(values url.Values) map[string]any {
	obj := make(map[string]any, len(values))
	for name, vs := range values {
		if len(vs) == 1 {
			obj[name] = vs[0]
			continue
		}
		items := make([]any, len(vs))
		for i, v := range vs {
			items[i] = v
		}
		obj[name] = items
	}
	return obj
}
