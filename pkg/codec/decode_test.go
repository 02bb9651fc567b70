package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime/multipart"
	"os"
	"strings"
	"testing"
)

func TestDecodeJSON(t *testing.T) {
	d, err := Decode(ContentTypeJSON, strings.NewReader(`{"a":1}`), DecodeOptions{})
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if string(d.Body) != `{"a":1}` {
		t.Errorf("Body = %s", d.Body)
	}
	if d.Files != nil {
		t.Errorf("Files = %v, want nil", d.Files)
	}
}

func TestDecodeURLEncoded(t *testing.T) {
	d, err := Decode(ContentTypeURLEncoded, strings.NewReader("a=1&tag=x&tag=y"), DecodeOptions{})
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	var obj map[string]any
	if err := json.Unmarshal(d.Body, &obj); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if obj["a"] != "1" {
		t.Errorf("a = %v", obj["a"])
	}
	tags, ok := obj["tag"].([]any)
	if !ok || len(tags) != 2 || tags[0] != "x" || tags[1] != "y" {
		t.Errorf("tag = %v", obj["tag"])
	}
}

func TestDecodeMultipart(t *testing.T) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("name", "ann")
	fw, _ := mw.CreateFormFile("doc", "report.txt")
	_, _ = fw.Write([]byte("file-content"))
	_ = mw.Close()

	d, err := Decode(mw.FormDataContentType(), &buf, DecodeOptions{SpoolDir: t.TempDir()})
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	defer RemoveFiles(d.Files)

	var obj map[string]any
	if err := json.Unmarshal(d.Body, &obj); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if obj["name"] != "ann" {
		t.Errorf("name = %v", obj["name"])
	}

	ref, ok := d.Files["doc"]
	if !ok {
		t.Fatalf("Files = %v, want doc", d.Files)
	}
	if ref.Name != "report.txt" {
		t.Errorf("Name = %q", ref.Name)
	}
	data, err := os.ReadFile(ref.Path)
	if err != nil || string(data) != "file-content" {
		t.Errorf("spooled file = %q, %v", data, err)
	}

	if err := RemoveFiles(d.Files); err != nil {
		t.Fatalf("RemoveFiles() error = %v", err)
	}
	if _, err := os.Stat(ref.Path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("spooled file still exists: %v", err)
	}
}

func TestDecodeRoundTripThroughEncode(t *testing.T) {
	dir := t.TempDir()
	src := dir + "/in.txt"
	if err := os.WriteFile(src, []byte("hello"), 0o600); err != nil {
		t.Fatal(err)
	}

	p, err := Encode("POST", []byte(`{"field":"value"}`), ContentTypeMultipart, map[string]FileRef{
		"upload": {Path: src, Name: "in.txt", Type: "text/plain"},
	})
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	d, err := Decode(p.ContentType, p.Body, DecodeOptions{SpoolDir: dir})
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if !strings.Contains(string(d.Body), `"field":"value"`) {
		t.Errorf("Body = %s", d.Body)
	}
	if d.Files["upload"].Type != "text/plain" {
		t.Errorf("file type = %q", d.Files["upload"].Type)
	}
}

func TestDecodeLimits(t *testing.T) {
	_, err := Decode(ContentTypeJSON, strings.NewReader(strings.Repeat("x", 32)), DecodeOptions{MaxBodyBytes: 16})
	if !errors.Is(err, ErrBodyTooLarge) {
		t.Errorf("Decode() error = %v, want ErrBodyTooLarge", err)
	}

	_, err = Decode("multipart/form-data", strings.NewReader(""), DecodeOptions{})
	if err == nil {
		t.Error("Decode() accepted multipart without a boundary")
	}
}
