package output

import (
	"bytes"
	"strings"
	"testing"
)

type memberRow struct {
	Address string `json:"address" yaml:"address"`
	State   string `json:"state" yaml:"state"`
	Self    bool   `json:"self" yaml:"self"`
	Conn    string `json:"connection" yaml:"connection" table:"wide"`
	secret  string
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"table", FormatTable, false},
		{"JSON", FormatJSON, false},
		{" yaml ", FormatYAML, false},
		{"", FormatTable, false},
		{"xml", "", true},
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

func TestNewFormatter(t *testing.T) {
	if _, ok := NewFormatter(FormatJSON, false).(*JSONFormatter); !ok {
		t.Error("json should give a JSONFormatter")
	}
	if _, ok := NewFormatter(FormatYAML, false).(*YAMLFormatter); !ok {
		t.Error("yaml should give a YAMLFormatter")
	}
	tf, ok := NewFormatter("unknown", true).(*TableFormatter)
	if !ok || !tf.Wide {
		t.Error("unknown formats should give a wide TableFormatter")
	}
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	err := (&JSONFormatter{}).Format(&buf, memberRow{Address: "10.0.0.1:5701", Self: true})
	if err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, `"address": "10.0.0.1:5701"`) || !strings.Contains(out, `"self": true`) {
		t.Errorf("Format() = %s", out)
	}
}

func TestYAMLFormatter(t *testing.T) {
	var buf bytes.Buffer
	rows := []memberRow{{Address: "10.0.0.1:5701", State: "active"}}
	if err := (&YAMLFormatter{}).Format(&buf, rows); err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	want := "- address: 10.0.0.1:5701\n  state: active\n  self: false\n  connection: \"\"\n"
	if buf.String() != want {
		t.Errorf("Format() =\n%s\nwant\n%s", buf.String(), want)
	}
}
