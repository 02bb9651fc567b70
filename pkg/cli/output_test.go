package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
)

func sampleTable() *Table {
	t := &Table{Headers: []string{"pattern", "target"}}
	t.Append("^/api", "http://backend:8080")
	t.Append("^/docs", "http://docs, inc")
	return t
}

func TestTextFormatter(t *testing.T) {
	tests := []struct {
		name string
		data any
		want []string
	}{
		{
			name: "plain value",
			data: "test message",
			want: []string{"test message\n"},
		},
		{
			name: "table",
			data: sampleTable(),
			want: []string{"PATTERN  TARGET", "^/api    http://backend:8080", "^/docs   http://docs, inc"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			if err := (&TextFormatter{}).FormatTo(buf, tt.data); err != nil {
				t.Fatalf("FormatTo() error = %v", err)
			}
			for _, want := range tt.want {
				if !strings.Contains(buf.String(), want) {
					t.Errorf("output %q does not contain %q", buf.String(), want)
				}
			}
		})
	}
}

func TestJSONFormatter(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := (&JSONFormatter{Indent: true}).FormatTo(buf, sampleTable()); err != nil {
		t.Fatalf("FormatTo() error = %v", err)
	}

	var got []map[string]string
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(got) != 2 || got[0]["pattern"] != "^/api" || got[1]["target"] != "http://docs, inc" {
		t.Errorf("records = %v", got)
	}

	buf.Reset()
	if err := (&JSONFormatter{}).FormatTo(buf, map[string]int{"rules": 3}); err != nil {
		t.Fatalf("FormatTo() error = %v", err)
	}
	if strings.TrimSpace(buf.String()) != `{"rules":3}` {
		t.Errorf("output = %q", buf.String())
	}
}

func TestCSVFormatter(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := (&CSVFormatter{}).FormatTo(buf, sampleTable()); err != nil {
		t.Fatalf("FormatTo() error = %v", err)
	}

	want := "pattern,target\n^/api,http://backend:8080\n^/docs,\"http://docs, inc\"\n"
	if buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}

	if err := (&CSVFormatter{}).FormatTo(buf, "not a table"); err == nil {
		t.Error("expected an error for non-table data")
	}
}

func TestNewFormatter(t *testing.T) {
	tests := []struct {
		format OutputFormat
		want   string
	}{
		{FormatText, "*cli.TextFormatter"},
		{FormatJSON, "*cli.JSONFormatter"},
		{FormatCSV, "*cli.CSVFormatter"},
		{"unknown", "*cli.TextFormatter"},
	}

	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			if got := fmt.Sprintf("%T", NewFormatter(tt.format)); got != tt.want {
				t.Errorf("NewFormatter(%q) type = %v, want %v", tt.format, got, tt.want)
			}
		})
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    OutputFormat
		wantErr bool
	}{
		{"", FormatText, false},
		{"JSON", FormatJSON, false},
		{"csv", FormatCSV, false},
		{"junit", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
